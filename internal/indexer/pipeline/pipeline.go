package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/0x5457/decl-index/internal/corpus"
	"github.com/0x5457/decl-index/internal/indexer"
	"github.com/0x5457/decl-index/internal/matrix"
	"github.com/0x5457/decl-index/internal/models"
)

// BatchEmbedder is the throttled client the pipeline drives.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
	MaxBatch() int
	ModelName() string
}

type Pipeline struct {
	client   BatchEmbedder
	progress models.ProgressFunc
}

type Option func(*Pipeline)

// WithProgress receives one update per written batch.
func WithProgress(fn models.ProgressFunc) Option {
	return func(p *Pipeline) { p.progress = fn }
}

func New(client BatchEmbedder, opts ...Option) *Pipeline {
	p := &Pipeline{client: client}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run embeds every corpus line into outputPath, row i holding line i, and
// returns the row count. A completed run also writes the matrix info file; a
// failed run leaves a partial matrix and no info file behind.
func (p *Pipeline) Run(ctx context.Context, corpusPath, outputPath string, batchSize int) (int, error) {
	if limit := p.client.MaxBatch(); batchSize <= 0 || (limit > 0 && batchSize > limit) {
		batchSize = limit
	}
	if batchSize <= 0 {
		return 0, fmt.Errorf("invalid batch size %d", batchSize)
	}
	lock, err := indexer.LockOutput(outputPath)
	if err != nil {
		return 0, err
	}
	defer indexer.Unlock(lock)

	infoPath := indexer.MatrixInfoPath(outputPath)
	if err := os.Remove(infoPath); err != nil && !os.IsNotExist(err) {
		return 0, err
	}

	runID := indexer.NewRunID()
	started := time.Now()
	dim := p.client.Dim()

	total, err := corpus.CountLines(corpusPath)
	if err != nil {
		return 0, err
	}
	p.progress.Report(models.NewProgress(models.StageCount, total, total))
	log.Printf("[%s] embedding %d records from %s into %s (dim=%d, batch=%d)",
		runID, total, corpusPath, outputPath, dim, batchSize)

	w, err := matrix.Create(outputPath, total, dim)
	if err != nil {
		return 0, err
	}
	defer func() { _ = w.Close() }()

	r, err := corpus.Open(corpusPath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()

	buf := make([]string, 0, batchSize)
	row := 0
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		vecs, err := p.client.EmbedBatch(ctx, buf)
		if err != nil {
			return fmt.Errorf("embed rows %d-%d: %w", row, row+len(buf)-1, err)
		}
		if err := w.WriteRows(row, vecs); err != nil {
			return err
		}
		row += len(buf)
		buf = buf[:0]
		p.progress.Report(models.NewProgress(models.StageEmbed, row, total))
		return nil
	}

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return row, err
		}
		if r.Line() > total {
			return row, fmt.Errorf("%w: corpus %s grew during the run", matrix.ErrShape, corpusPath)
		}
		buf = append(buf, rec.Text)
		if len(buf) == batchSize {
			if err := flush(); err != nil {
				return row, err
			}
		}
	}
	if err := flush(); err != nil {
		return row, err
	}
	if row != total {
		return row, fmt.Errorf("%w: embedded %d rows, corpus has %d lines", matrix.ErrShape, row, total)
	}
	if err := w.Sync(); err != nil {
		return row, err
	}
	err = indexer.WriteMatrixInfo(infoPath, indexer.MatrixInfo{
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Model:     p.client.ModelName(),
		Dimension: dim,
		Rows:      row,
		Corpus:    corpusPath,
	})
	if err != nil {
		return row, err
	}

	log.Printf("[%s] embedded %d rows in %s", runID, row, time.Since(started).Round(time.Millisecond))
	p.progress.Report(models.NewProgress(models.StageDone, row, total))
	return row, nil
}
