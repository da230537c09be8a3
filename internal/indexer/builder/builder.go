package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/0x5457/decl-index/internal/constants"
	"github.com/0x5457/decl-index/internal/corpus"
	"github.com/0x5457/decl-index/internal/indexer"
	"github.com/0x5457/decl-index/internal/matrix"
	"github.com/0x5457/decl-index/internal/models"
	"github.com/0x5457/decl-index/internal/names"
	"github.com/0x5457/decl-index/internal/storage"
	"github.com/0x5457/decl-index/internal/storage/sqlite"
)

// Builder loads an embedding matrix into a fresh index and writes the
// row-aligned name table, record catalog and manifest next to it.
type Builder struct {
	factory  storage.IndexFactory
	model    string
	params   map[string]int
	progress models.ProgressFunc
}

type Option func(*Builder)

// WithModel is the model id recorded in the manifest when the matrix has no
// info file; otherwise the info file's model wins.
func WithModel(model string) Option {
	return func(b *Builder) { b.model = model }
}

// WithIndexParams records the index parameters in the manifest.
func WithIndexParams(params map[string]int) Option {
	return func(b *Builder) { b.params = params }
}

func WithProgress(fn models.ProgressFunc) Option {
	return func(b *Builder) { b.progress = fn }
}

func New(factory storage.IndexFactory, opts ...Option) *Builder {
	b := &Builder{factory: factory}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Paths lists the files a build writes under prefix.
type Paths struct {
	Index    string
	Names    string
	Catalog  string
	Manifest string
}

func (b *Builder) Paths(prefix string) Paths {
	return Paths{
		Index:    b.factory.Path(prefix),
		Names:    prefix + constants.NamesExt,
		Catalog:  prefix + constants.CatalogExt,
		Manifest: prefix + constants.ManifestExt,
	}
}

// Build indexes every matrix row in chunks of chunkSize and returns the
// number of rows. Chunking bounds memory only; the index content is the same
// for any chunk size.
func (b *Builder) Build(ctx context.Context, matrixPath, corpusPath, prefix string, dim, chunkSize int) (int, error) {
	if chunkSize <= 0 {
		chunkSize = constants.DefaultChunkSize
	}
	paths := b.Paths(prefix)
	lock, err := indexer.LockOutput(prefix)
	if err != nil {
		return 0, err
	}
	defer indexer.Unlock(lock)

	runID := indexer.NewRunID()
	started := time.Now()

	r, err := matrix.Open(matrixPath, dim)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()
	rows := r.Rows()
	model, err := b.matrixModel(runID, matrixPath, dim, rows)
	if err != nil {
		return 0, err
	}
	log.Printf("[%s] building %s index over %d rows (dim=%d, chunk=%d)", runID, b.factory.Name(), rows, dim, chunkSize)

	w, err := b.factory.Create(ctx, prefix, dim)
	if err != nil {
		return 0, err
	}
	defer func() { _ = w.Close() }()
	for start := 0; start < rows; start += chunkSize {
		vecs, err := r.ReadRows(start, chunkSize)
		if err != nil {
			return 0, err
		}
		if err := w.Add(ctx, int64(start), vecs); err != nil {
			return 0, fmt.Errorf("add rows %d-%d: %w", start, start+len(vecs)-1, err)
		}
		b.progress.Report(models.NewProgress(models.StageInsert, start+len(vecs), rows))
	}
	if err := w.Commit(ctx); err != nil {
		return 0, fmt.Errorf("persist index %s: %w", paths.Index, err)
	}
	log.Printf("[%s] index written to %s", runID, paths.Index)

	declNames, err := b.writeCatalog(ctx, corpusPath, paths.Catalog, chunkSize)
	if err != nil {
		return 0, err
	}
	if len(declNames) != rows {
		log.Printf("[%s] warning: corpus has %d records but matrix has %d rows", runID, len(declNames), rows)
	}
	if err := names.Write(paths.Names, declNames); err != nil {
		return 0, err
	}
	b.progress.Report(models.NewProgress(models.StageNames, len(declNames), rows))

	sum, err := indexer.FileSHA256(corpusPath)
	if err != nil {
		return 0, err
	}
	err = indexer.WriteManifest(paths.Manifest, indexer.Manifest{
		BuildID:      runID,
		CreatedAt:    time.Now().UTC(),
		Model:        model,
		Dimension:    dim,
		Rows:         rows,
		Backend:      b.factory.Name(),
		Params:       b.params,
		Corpus:       corpusPath,
		CorpusSHA256: sum,
	})
	if err != nil {
		return 0, err
	}

	log.Printf("[%s] built %d rows in %s", runID, rows, time.Since(started).Round(time.Millisecond))
	b.progress.Report(models.NewProgress(models.StageDone, rows, rows))
	return rows, nil
}

// matrixModel returns the model that embedded matrixPath, read from its info
// file, falling back to the configured model.
func (b *Builder) matrixModel(runID, matrixPath string, dim, rows int) (string, error) {
	info, err := indexer.ReadMatrixInfo(indexer.MatrixInfoPath(matrixPath))
	if err != nil {
		return "", err
	}
	if info == nil {
		log.Printf("[%s] no info file next to %s; recording configured model %q", runID, matrixPath, b.model)
		return b.model, nil
	}
	if info.Dimension != dim {
		return "", fmt.Errorf("%w: matrix %s was embedded with dimension %d, want %d",
			matrix.ErrShape, matrixPath, info.Dimension, dim)
	}
	if info.Rows != rows {
		log.Printf("[%s] warning: info file records %d rows but matrix has %d", runID, info.Rows, rows)
	}
	if b.model != "" && info.Model != b.model {
		log.Printf("[%s] warning: matrix was embedded with %q, configured model is %q; recording %q",
			runID, info.Model, b.model, info.Model)
	}
	return info.Model, nil
}

// writeCatalog streams the corpus once, storing every record and returning
// the decl names in file order.
func (b *Builder) writeCatalog(ctx context.Context, corpusPath, catalogPath string, chunkSize int) ([]string, error) {
	cr, err := corpus.Open(corpusPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cr.Close() }()
	cat, err := sqlite.Create(catalogPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cat.Close() }()

	var declNames []string
	batch := make([]models.Record, 0, chunkSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		start := len(declNames) - len(batch)
		if err := cat.PutRecords(ctx, start, batch); err != nil {
			return fmt.Errorf("catalog rows %d-%d: %w", start, len(declNames)-1, err)
		}
		batch = batch[:0]
		b.progress.Report(models.Progress{Stage: models.StageCatalog, Done: len(declNames)})
		return nil
	}
	for {
		rec, err := cr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		declNames = append(declNames, rec.Decl)
		batch = append(batch, rec)
		if len(batch) == chunkSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return declNames, nil
}
