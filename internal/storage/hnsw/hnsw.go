// Package hnsw stores vectors in an HNSW graph exported to <prefix>.hnsw.
package hnsw

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/0x5457/decl-index/internal/constants"
	"github.com/0x5457/decl-index/internal/matrix"
	"github.com/0x5457/decl-index/internal/storage"
)

const Ext = ".hnsw"

// Params are the graph construction and query parameters. EfConstruction is
// the beam width while inserting; EfSearch is the beam width of queries and
// is raised to k when k is larger.
type Params struct {
	M              int
	EfConstruction int
	EfSearch       int
}

func (p Params) withDefaults() Params {
	if p.M <= 0 {
		p.M = constants.DefaultM
	}
	if p.EfConstruction <= 0 {
		p.EfConstruction = constants.DefaultEfConstruction
	}
	if p.EfSearch <= 0 {
		p.EfSearch = constants.DefaultEfSearch
	}
	return p
}

// DefaultParams are the parameters used for any field left zero.
func DefaultParams() Params { return Params{}.withDefaults() }

type Factory struct {
	params Params
}

func NewFactory(p Params) *Factory { return &Factory{params: p.withDefaults()} }

func (f *Factory) Name() string              { return "hnsw" }
func (f *Factory) Path(prefix string) string { return prefix + Ext }
func (f *Factory) Params() Params            { return f.params }

func (f *Factory) Create(_ context.Context, prefix string, dim int) (storage.IndexWriter, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dim=%d", matrix.ErrShape, dim)
	}
	return &Writer{path: f.Path(prefix), dim: dim, g: newGraph(f.params, dim)}, nil
}

func (f *Factory) Open(_ context.Context, prefix string, dim int) (storage.VectorIndex, error) {
	path := f.Path(prefix)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open index %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	g, err := importGraph(bufio.NewReader(file), f.params)
	if err != nil {
		return nil, fmt.Errorf("cannot load index %s: %w", path, err)
	}
	if g.rows > 0 && g.dim != dim {
		return nil, fmt.Errorf("%w: index %s has dimension %d, want %d", matrix.ErrShape, path, g.dim, dim)
	}
	return &Index{g: g, efSearch: f.params.EfSearch}, nil
}

// Writer inserts rows into an in-memory graph and exports it on Commit.
type Writer struct {
	path string
	dim  int
	g    *graph
	next int64
}

func (w *Writer) Add(ctx context.Context, start int64, vecs [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if start != w.next {
		return fmt.Errorf("%w: add at row %d, next row is %d", matrix.ErrShape, start, w.next)
	}
	for i, v := range vecs {
		if len(v) != w.dim {
			return fmt.Errorf("%w: row %d has %d values, want %d", matrix.ErrShape, start+int64(i), len(v), w.dim)
		}
	}
	for i, v := range vecs {
		w.g.insert(append([]float32(nil), v...), start+int64(i))
	}
	w.next += int64(len(vecs))
	return nil
}

func (w *Writer) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := w.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("cannot create index %s: %w", tmp, err)
	}
	bw := bufio.NewWriter(f)
	if err := w.g.export(bw); err != nil {
		_ = f.Close()
		return fmt.Errorf("export index: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, w.path)
}

func (w *Writer) Close() error { return nil }

// Index is a loaded graph. It is safe for concurrent searches.
type Index struct {
	g        *graph
	efSearch int
}

func (i *Index) Len() int { return i.g.rows }

func (i *Index) Search(ctx context.Context, query []float32, k int) ([]storage.Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	res := make([]storage.Neighbor, 0, k)
	for _, c := range i.g.search(query, max(i.efSearch, k)) {
		for _, row := range i.g.nodes[c.id].rows {
			res = append(res, storage.Neighbor{Label: row, Distance: c.dist})
		}
	}
	storage.SortNeighbors(res)
	return storage.PadNeighbors(res, k), nil
}

func (i *Index) Close() error { return nil }
