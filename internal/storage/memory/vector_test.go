package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/0x5457/decl-index/internal/matrix"
	"github.com/0x5457/decl-index/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatIndexRoundTrip(t *testing.T) {
	ctx := context.Background()
	prefix := filepath.Join(t.TempDir(), "idx")
	f := NewFactory()

	w, err := f.Create(ctx, prefix, 2)
	require.NoError(t, err)
	require.NoError(t, w.Add(ctx, 0, [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, w.Add(ctx, 2, [][]float32{{1, 0}}))
	require.NoError(t, w.Commit(ctx))
	require.NoError(t, w.Close())

	idx, err := f.Open(ctx, prefix, 2)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()
	assert.Equal(t, 3, idx.Len())

	got, err := idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, storage.Neighbor{Label: 0, Distance: 0}, got[0])
	assert.Equal(t, storage.Neighbor{Label: 2, Distance: 0}, got[1])
	assert.Equal(t, storage.Neighbor{Label: 1, Distance: 2}, got[2])
	assert.Equal(t, storage.InvalidLabel, got[3].Label)
	assert.Equal(t, storage.InvalidLabel, got[4].Label)
}

func TestAddOutOfOrder(t *testing.T) {
	s := NewInMemoryVectorStore(2)
	assert.ErrorIs(t, s.Add(1, [][]float32{{1, 0}}), matrix.ErrShape)
	assert.ErrorIs(t, s.Add(0, [][]float32{{1}}), matrix.ErrShape)
}

func TestSearchEmpty(t *testing.T) {
	got, err := NewInMemoryVectorStore(2).Search(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []storage.Neighbor{{Label: storage.InvalidLabel}, {Label: storage.InvalidLabel}}, got)
}
