package hnsw

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/0x5457/decl-index/internal/matrix"
	"github.com/0x5457/decl-index/internal/storage"
	"github.com/0x5457/decl-index/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, prefix string, dim int, chunks ...[][]float32) {
	t.Helper()
	ctx := context.Background()
	w, err := NewFactory(Params{}).Create(ctx, prefix, dim)
	require.NoError(t, err)
	var row int64
	for _, c := range chunks {
		require.NoError(t, w.Add(ctx, row, c))
		row += int64(len(c))
	}
	require.NoError(t, w.Commit(ctx))
	require.NoError(t, w.Close())
}

func TestDuplicateRowsAreBothNearest(t *testing.T) {
	ctx := context.Background()
	prefix := filepath.Join(t.TempDir(), "idx")
	build(t, prefix, 4,
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}},
		[][]float32{{1, 0, 0, 0}},
	)

	idx, err := NewFactory(Params{}).Open(ctx, prefix, 4)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()
	assert.Equal(t, 3, idx.Len())

	got, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.ElementsMatch(t, []int64{0, 2}, []int64{got[0].Label, got[1].Label})
	assert.Zero(t, got[0].Distance)
	assert.Zero(t, got[1].Distance)
	assert.Equal(t, int64(1), got[2].Label)
	assert.InDelta(t, 2.0, got[2].Distance, 1e-6)
}

func TestSearchPadsWhenKExceedsPopulation(t *testing.T) {
	ctx := context.Background()
	prefix := filepath.Join(t.TempDir(), "idx")
	build(t, prefix, 2, [][]float32{{1, 0}})

	idx, err := NewFactory(Params{}).Open(ctx, prefix, 2)
	require.NoError(t, err)
	got, err := idx.Search(ctx, []float32{0, 1}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(0), got[0].Label)
	assert.Equal(t, storage.InvalidLabel, got[1].Label)
	assert.Equal(t, storage.InvalidLabel, got[2].Label)
}

func TestOpenRejectsWrongDimension(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "idx")
	build(t, prefix, 2, [][]float32{{1, 0}})
	_, err := NewFactory(Params{}).Open(context.Background(), prefix, 3)
	assert.ErrorIs(t, err, matrix.ErrShape)
}

func TestAddRejectsGaps(t *testing.T) {
	ctx := context.Background()
	w, err := NewFactory(Params{}).Create(ctx, filepath.Join(t.TempDir(), "idx"), 2)
	require.NoError(t, err)
	assert.ErrorIs(t, w.Add(ctx, 1, [][]float32{{1, 0}}), matrix.ErrShape)
	assert.ErrorIs(t, w.Add(ctx, 0, [][]float32{{1, 0, 0}}), matrix.ErrShape)
}

func TestParamsDefaults(t *testing.T) {
	p := NewFactory(Params{}).Params()
	assert.Equal(t, 32, p.M)
	assert.Equal(t, 200, p.EfConstruction)
	assert.Equal(t, DefaultParams(), p)
	assert.Equal(t, "idx.hnsw", NewFactory(p).Path("idx"))
}

func buildChunked(t *testing.T, prefix string, vecs [][]float32, chunk int) {
	t.Helper()
	var chunks [][][]float32
	for start := 0; start < len(vecs); start += chunk {
		chunks = append(chunks, vecs[start:min(start+chunk, len(vecs))])
	}
	build(t, prefix, len(vecs[0]), chunks...)
}

func TestSelfNearestOnClusteredVectors(t *testing.T) {
	ctx := context.Background()
	vecs := storagetest.ClusteredVectors(7, 2000, 32, 16, 40)
	prefix := filepath.Join(t.TempDir(), "idx")
	buildChunked(t, prefix, vecs, 512)

	idx, err := NewFactory(Params{}).Open(ctx, prefix, 32)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()
	assert.Equal(t, 2000, idx.Len())

	storagetest.AssertSelfNearest(t, idx, vecs, 7)
}

func TestNearQueriesFindTheirRow(t *testing.T) {
	ctx := context.Background()
	vecs := storagetest.ClusteredVectors(11, 2000, 32, 16, 0)
	prefix := filepath.Join(t.TempDir(), "idx")
	buildChunked(t, prefix, vecs, 4096)

	idx, err := NewFactory(Params{}).Open(ctx, prefix, 32)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()
	g := idx.(*Index).g
	require.Greater(t, len(g.nodes), DefaultParams().EfSearch)

	misses := 0
	for r := 0; r < len(vecs); r += 13 {
		q := make([]float32, len(vecs[r]))
		for j, f := range vecs[r] {
			q[j] = f * 1.001
		}
		_, exact := g.find(q)
		require.False(t, exact)

		got, err := idx.Search(ctx, q, 15)
		require.NoError(t, err)
		if got[0].Label != int64(r) || got[0].Distance >= 1e-5 {
			misses++
			t.Logf("row %d: nearest is row %d at %.6f", r, got[0].Label, got[0].Distance)
		}
	}
	assert.Zero(t, misses)
}

func TestIdenticalVectorsShareNode(t *testing.T) {
	g := newGraph(DefaultParams(), 2)
	g.insert([]float32{0, 0}, 0)
	g.insert([]float32{1, 0}, 1)
	g.insert([]float32{0, 0}, 2)
	g.insert([]float32{0, 0}, 3)

	assert.Equal(t, 4, g.rows)
	require.Len(t, g.nodes, 2)
	assert.Equal(t, []int64{0, 2, 3}, g.nodes[0].rows)
}

func TestBuildIsDeterministic(t *testing.T) {
	vecs := storagetest.ClusteredVectors(3, 300, 8, 4, 25)
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a"), filepath.Join(dir, "b")
	buildChunked(t, a, vecs, 1)
	buildChunked(t, b, vecs, 100)

	ab, err := os.ReadFile(a + Ext)
	require.NoError(t, err)
	bb, err := os.ReadFile(b + Ext)
	require.NoError(t, err)
	assert.Equal(t, ab, bb)
}

func TestOpenRejectsForeignFile(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "idx")
	require.NoError(t, os.WriteFile(prefix+Ext, []byte("not an index at all"), 0o644))
	_, err := NewFactory(Params{}).Open(context.Background(), prefix, 2)
	assert.ErrorIs(t, err, ErrFormat)
}
