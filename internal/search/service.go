package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"sync/atomic"

	"github.com/0x5457/decl-index/internal/constants"
	"github.com/0x5457/decl-index/internal/embeddings"
	"github.com/0x5457/decl-index/internal/indexer"
	"github.com/0x5457/decl-index/internal/models"
	"github.com/0x5457/decl-index/internal/names"
	"github.com/0x5457/decl-index/internal/storage"
	"github.com/0x5457/decl-index/internal/storage/sqlite"
)

var (
	// ErrMisaligned is returned when the index population and the name table
	// disagree on the number of rows.
	ErrMisaligned = errors.New("search: index and name table are misaligned")
	// ErrModelMismatch is returned when the query embedder is not the model
	// the index was built with.
	ErrModelMismatch = errors.New("search: embedding model differs from the index manifest")
	// ErrNotLoaded is returned by queries before Load succeeds.
	ErrNotLoaded = errors.New("search: index not loaded")
	// ErrNoCatalog is returned by record lookups when the build wrote no catalog.
	ErrNoCatalog = errors.New("search: no record catalog")
)

// Options locate the artifacts of one build.
type Options struct {
	Prefix    string
	Dimension int
}

type state struct {
	index    storage.VectorIndex
	names    []string
	catalog  storage.RecordCatalog
	manifest *indexer.Manifest
}

// Service answers nearest-declaration queries. It is loaded once and then
// shared read-only by every caller.
type Service struct {
	embedder embeddings.Embedder
	factory  storage.IndexFactory
	opts     Options
	st       atomic.Pointer[state]
}

func New(embedder embeddings.Embedder, factory storage.IndexFactory, opts Options) *Service {
	return &Service{embedder: embedder, factory: factory, opts: opts}
}

// Open creates and loads a Service.
func Open(ctx context.Context, embedder embeddings.Embedder, factory storage.IndexFactory, opts Options) (*Service, error) {
	s := New(embedder, factory, opts)
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads the index, name table, catalog and manifest under the prefix.
func (s *Service) Load(ctx context.Context) error {
	prefix := s.opts.Prefix
	manifest, err := indexer.ReadManifest(prefix + constants.ManifestExt)
	if err != nil {
		return err
	}
	if manifest != nil {
		if manifest.Model != "" && manifest.Model != s.embedder.ModelName() {
			return fmt.Errorf("%w: index built with %q, query embedder is %q", ErrModelMismatch, manifest.Model, s.embedder.ModelName())
		}
		if manifest.Backend != "" && manifest.Backend != s.factory.Name() {
			log.Printf("search: manifest backend %s, loading with %s", manifest.Backend, s.factory.Name())
		}
	}

	idx, err := s.factory.Open(ctx, prefix, s.opts.Dimension)
	if err != nil {
		return err
	}
	table, err := names.Read(prefix + constants.NamesExt)
	if err != nil {
		_ = idx.Close()
		return err
	}
	if idx.Len() != len(table) {
		_ = idx.Close()
		return fmt.Errorf("%w: index has %d vectors, name table has %d entries", ErrMisaligned, idx.Len(), len(table))
	}

	var catalog storage.RecordCatalog
	catalogPath := prefix + constants.CatalogExt
	if _, statErr := os.Stat(catalogPath); statErr == nil {
		c, err := sqlite.Open(catalogPath)
		if err != nil {
			_ = idx.Close()
			return err
		}
		catalog = c
	}

	old := s.st.Swap(&state{index: idx, names: table, catalog: catalog, manifest: manifest})
	if old != nil {
		closeState(old)
	}
	log.Printf("search: loaded %s index %s with %d rows", s.factory.Name(), s.factory.Path(prefix), idx.Len())
	return nil
}

// Close releases the loaded index and catalog.
func (s *Service) Close(context.Context) error {
	if st := s.st.Swap(nil); st != nil {
		return closeState(st)
	}
	return nil
}

func closeState(st *state) error {
	err := st.index.Close()
	if st.catalog != nil {
		err = errors.Join(err, st.catalog.Close())
	}
	return err
}

func (s *Service) loaded() (*state, error) {
	st := s.st.Load()
	if st == nil {
		return nil, ErrNotLoaded
	}
	return st, nil
}

// Len is the number of indexed rows, or 0 before Load.
func (s *Service) Len() int {
	if st := s.st.Load(); st != nil {
		return len(st.names)
	}
	return 0
}

// Manifest returns the build manifest, if the build wrote one.
func (s *Service) Manifest() *indexer.Manifest {
	if st := s.st.Load(); st != nil {
		return st.manifest
	}
	return nil
}

// Normalize returns v scaled to unit L2 norm. A zero vector is returned as is.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// KNearest embeds query, normalizes it and returns up to k rows by
// ascending squared Euclidean distance.
func (s *Service) KNearest(ctx context.Context, query string, k int) ([]models.Hit, error) {
	st, err := s.loaded()
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return []models.Hit{}, nil
	}
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) != s.opts.Dimension {
		return nil, fmt.Errorf("%w: query has %d values, index has %d", embeddings.ErrDimensionMismatch, len(vec), s.opts.Dimension)
	}
	neighbors, err := st.index.Search(ctx, Normalize(vec), k)
	if err != nil {
		return nil, err
	}
	storage.SortNeighbors(neighbors)
	hits := make([]models.Hit, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Label == storage.InvalidLabel || n.Label < 0 || n.Label >= int64(len(st.names)) {
			continue
		}
		hits = append(hits, models.Hit{Row: int(n.Label), Name: st.names[n.Label], Distance: n.Distance})
	}
	return hits, nil
}

// KNearestDetailed is KNearest with each hit joined to its catalog record.
func (s *Service) KNearestDetailed(ctx context.Context, query string, k int) ([]models.DetailedHit, error) {
	hits, err := s.KNearest(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]models.DetailedHit, len(hits))
	for i, h := range hits {
		out[i].Hit = h
		rec, err := s.Describe(ctx, h.Row)
		if err != nil && !errors.Is(err, ErrNoCatalog) {
			return nil, err
		}
		out[i].Record = rec
	}
	return out, nil
}

// Describe returns the corpus record stored for row.
func (s *Service) Describe(ctx context.Context, row int) (*models.Record, error) {
	st, err := s.loaded()
	if err != nil {
		return nil, err
	}
	if st.catalog == nil {
		return nil, ErrNoCatalog
	}
	return st.catalog.GetRecord(ctx, row)
}

// Lookup returns the rows named decl.
func (s *Service) Lookup(ctx context.Context, decl string) ([]int, error) {
	st, err := s.loaded()
	if err != nil {
		return nil, err
	}
	if st.catalog != nil {
		return st.catalog.FindByName(ctx, decl)
	}
	var rows []int
	for i, n := range st.names {
		if n == decl {
			rows = append(rows, i)
		}
	}
	return rows, nil
}
