// Package memory is an exact brute-force index persisted as a flat matrix.
package memory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/0x5457/decl-index/internal/matrix"
	"github.com/0x5457/decl-index/internal/storage"
)

const Ext = ".flat"

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) Name() string              { return "flat" }
func (f *Factory) Path(prefix string) string { return prefix + Ext }

func (f *Factory) Create(_ context.Context, prefix string, dim int) (storage.IndexWriter, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dim=%d", matrix.ErrShape, dim)
	}
	return &Writer{path: f.Path(prefix), store: NewInMemoryVectorStore(dim)}, nil
}

func (f *Factory) Open(_ context.Context, prefix string, dim int) (storage.VectorIndex, error) {
	r, err := matrix.Open(f.Path(prefix), dim)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	vecs, err := r.ReadRows(0, r.Rows())
	if err != nil {
		return nil, err
	}
	s := NewInMemoryVectorStore(dim)
	if err := s.Add(0, vecs); err != nil {
		return nil, err
	}
	return s, nil
}

// Writer buffers rows in memory and writes them as one matrix on Commit.
type Writer struct {
	path  string
	store *InMemoryVectorStore
}

func (w *Writer) Add(ctx context.Context, start int64, vecs [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return w.store.Add(start, vecs)
}

func (w *Writer) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp := w.path + ".tmp"
	mw, err := matrix.Create(tmp, w.store.Len(), w.store.dim)
	if err != nil {
		return err
	}
	if err := mw.WriteRows(0, w.store.vecs); err != nil {
		_ = mw.Close()
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, w.path)
}

func (w *Writer) Close() error { return nil }

// InMemoryVectorStore holds rows densely; the label of a vector is its position.
type InMemoryVectorStore struct {
	mu   sync.RWMutex
	dim  int
	vecs [][]float32
}

func NewInMemoryVectorStore(dim int) *InMemoryVectorStore {
	return &InMemoryVectorStore{dim: dim}
}

// Add appends vecs; start must equal the current population.
func (s *InMemoryVectorStore) Add(start int64, vecs [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if start != int64(len(s.vecs)) {
		return fmt.Errorf("%w: add at row %d, population is %d", matrix.ErrShape, start, len(s.vecs))
	}
	for i, v := range vecs {
		if len(v) != s.dim {
			return fmt.Errorf("%w: row %d has %d values, want %d", matrix.ErrShape, start+int64(i), len(v), s.dim)
		}
		s.vecs = append(s.vecs, append([]float32(nil), v...))
	}
	return nil
}

func (s *InMemoryVectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vecs)
}

func (s *InMemoryVectorStore) Search(ctx context.Context, query []float32, k int) ([]storage.Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	scored := make([]storage.Neighbor, len(s.vecs))
	for i, v := range s.vecs {
		scored[i] = storage.Neighbor{Label: int64(i), Distance: storage.SquaredL2(query, v)}
	}
	top := k
	if top > len(scored) {
		top = len(scored)
	}
	// partial selection sort: k is small next to the population
	for i := 0; i < top; i++ {
		best := i
		for j := i + 1; j < len(scored); j++ {
			if scored[j].Distance < scored[best].Distance {
				best = j
			}
		}
		scored[i], scored[best] = scored[best], scored[i]
	}
	res := scored[:top]
	storage.SortNeighbors(res)
	return storage.PadNeighbors(res, k), nil
}

func (s *InMemoryVectorStore) Close() error { return nil }
