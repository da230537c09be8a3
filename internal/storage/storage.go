package storage

import (
	"cmp"
	"context"
	"slices"

	"github.com/0x5457/decl-index/internal/models"
)

// InvalidLabel marks an empty result slot when an index holds fewer than k vectors.
const InvalidLabel int64 = -1

// Neighbor is one raw index result. Label is the matrix row; Distance is the
// squared Euclidean distance to the query.
type Neighbor struct {
	Label    int64
	Distance float32
}

// IndexWriter receives matrix rows in order and persists them on Commit.
type IndexWriter interface {
	Add(ctx context.Context, start int64, vecs [][]float32) error
	Commit(ctx context.Context) error
	Close() error
}

// VectorIndex is a loaded, read-only index. Search returns exactly k
// neighbours, padding with InvalidLabel when the population is smaller.
type VectorIndex interface {
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	Len() int
	Close() error
}

// IndexFactory creates and opens one kind of index under a path prefix.
type IndexFactory interface {
	Name() string
	Path(prefix string) string
	Create(ctx context.Context, prefix string, dim int) (IndexWriter, error)
	Open(ctx context.Context, prefix string, dim int) (VectorIndex, error)
}

// RecordCatalog maps matrix rows to their corpus records.
type RecordCatalog interface {
	PutRecords(ctx context.Context, start int, records []models.Record) error
	GetRecord(ctx context.Context, row int) (*models.Record, error)
	FindByName(ctx context.Context, decl string) ([]int, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// SquaredL2 returns the squared Euclidean distance between a and b.
func SquaredL2(a, b []float32) float32 {
	var sum float64
	for i := 0; i < len(a) && i < len(b); i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}

// SortNeighbors orders by ascending distance, then by label.
func SortNeighbors(ns []Neighbor) {
	slices.SortStableFunc(ns, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
}

// PadNeighbors truncates or pads ns to exactly k entries.
func PadNeighbors(ns []Neighbor, k int) []Neighbor {
	if k <= 0 {
		return nil
	}
	if len(ns) >= k {
		return ns[:k]
	}
	out := make([]Neighbor, k)
	copy(out, ns)
	for i := len(ns); i < k; i++ {
		out[i] = Neighbor{Label: InvalidLabel}
	}
	return out
}
