package qdrant

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/0x5457/decl-index/internal/matrix"
	"github.com/0x5457/decl-index/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCollections records collection requests.
type fakeCollections struct {
	qdrant.CollectionsClient
	created *qdrant.CreateCollection
}

func (f *fakeCollections) Delete(_ context.Context, _ *qdrant.DeleteCollection, _ ...grpc.CallOption) (*qdrant.CollectionOperationResponse, error) {
	return &qdrant.CollectionOperationResponse{Result: true}, nil
}

func (f *fakeCollections) Create(_ context.Context, in *qdrant.CreateCollection, _ ...grpc.CallOption) (*qdrant.CollectionOperationResponse, error) {
	f.created = in
	return &qdrant.CollectionOperationResponse{Result: true}, nil
}

// fakePoints reports a fixed point count and records searches.
type fakePoints struct {
	qdrant.PointsClient
	count    uint64
	searched *qdrant.SearchPoints
}

func (f *fakePoints) Count(_ context.Context, _ *qdrant.CountPoints, _ ...grpc.CallOption) (*qdrant.CountResponse, error) {
	return &qdrant.CountResponse{Result: &qdrant.CountResult{Count: f.count}}, nil
}

func (f *fakePoints) Search(_ context.Context, in *qdrant.SearchPoints, _ ...grpc.CallOption) (*qdrant.SearchResponse, error) {
	f.searched = in
	return &qdrant.SearchResponse{Result: []*qdrant.ScoredPoint{
		{Id: pointID(1), Score: 2},
		{Id: pointID(0), Score: 0},
	}}, nil
}

func fakeFactory(p Params, points *fakePoints, collections *fakeCollections) *Factory {
	f := NewFactory("", "", p)
	f.dial = func(string) (*conn, error) {
		return &conn{points: points, collections: collections}, nil
	}
	return f
}

func TestCollectionName(t *testing.T) {
	f := NewFactory("", "", Params{})
	assert.Equal(t, "mathlib4_hnsw", f.CollectionName("datasets/mathlib4_hnsw"))
	assert.Equal(t, "my_index_v2", f.CollectionName("/tmp/my index.v2"))
	assert.Equal(t, "fixed", NewFactory("", "fixed", Params{}).CollectionName("datasets/x"))
	assert.Equal(t, "p.qdrant.json", f.Path("p"))
}

func TestDescriptorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "idx"+Ext)
	want := Descriptor{Addr: "localhost:6334", Collection: "idx", Dimension: 4, Rows: 3}
	require.NoError(t, WriteDescriptor(path, want))
	got, err := ReadDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestOpenChecksDescriptorDimension(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "idx")
	f := NewFactory("", "", Params{})
	require.NoError(t, WriteDescriptor(f.Path(prefix), Descriptor{Addr: "localhost:6334", Collection: "idx", Dimension: 4}))
	_, err := f.Open(context.Background(), prefix, 8)
	assert.ErrorIs(t, err, matrix.ErrShape)
}

func TestCreateConfiguresHNSW(t *testing.T) {
	collections := &fakeCollections{}
	f := fakeFactory(Params{}, &fakePoints{}, collections)

	w, err := f.Create(context.Background(), filepath.Join(t.TempDir(), "idx"), 4)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	require.NotNil(t, collections.created)
	assert.Equal(t, "idx", collections.created.GetCollectionName())
	hnsw := collections.created.GetHnswConfig()
	require.NotNil(t, hnsw)
	assert.Equal(t, uint64(32), hnsw.GetM())
	assert.Equal(t, uint64(200), hnsw.GetEfConstruct())

	custom := &fakeCollections{}
	_, err = fakeFactory(Params{M: 8, EfConstruction: 40}, &fakePoints{}, custom).
		Create(context.Background(), filepath.Join(t.TempDir(), "idx"), 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), custom.created.GetHnswConfig().GetM())
	assert.Equal(t, uint64(40), custom.created.GetHnswConfig().GetEfConstruct())
}

func TestOpenCountsRemotePoints(t *testing.T) {
	ctx := context.Background()
	prefix := filepath.Join(t.TempDir(), "idx")
	points := &fakePoints{count: 2}
	f := fakeFactory(Params{}, points, &fakeCollections{})
	require.NoError(t, WriteDescriptor(f.Path(prefix), Descriptor{Addr: "remote:6334", Collection: "idx", Dimension: 2, Rows: 5}))

	idx, err := f.Open(ctx, prefix, 2)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()
	assert.Equal(t, 2, idx.Len())

	got, err := idx.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []storage.Neighbor{
		{Label: 0, Distance: 0},
		{Label: 1, Distance: 4},
		{Label: storage.InvalidLabel},
	}, got)
	require.NotNil(t, points.searched)
	assert.Equal(t, uint64(64), points.searched.GetParams().GetHnswEf())
}

func TestEmptyCollectionSearchPads(t *testing.T) {
	ctx := context.Background()
	prefix := filepath.Join(t.TempDir(), "idx")
	points := &fakePoints{}
	f := fakeFactory(Params{}, points, &fakeCollections{})
	require.NoError(t, WriteDescriptor(f.Path(prefix), Descriptor{Addr: "localhost:6334", Collection: "idx", Dimension: 2}))
	idx, err := f.Open(ctx, prefix, 2)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()
	got, err := idx.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []storage.Neighbor{{Label: storage.InvalidLabel}, {Label: storage.InvalidLabel}}, got)
	assert.Nil(t, points.searched)
}

// Requires a running Qdrant; set QDRANT_ADDR to enable.
func TestLiveRoundTrip(t *testing.T) {
	addr := os.Getenv("QDRANT_ADDR")
	if addr == "" {
		t.Skip("QDRANT_ADDR not set")
	}
	ctx := context.Background()
	prefix := filepath.Join(t.TempDir(), "decl_index_test")
	f := NewFactory(addr, "", Params{})
	w, err := f.Create(ctx, prefix, 4)
	require.NoError(t, err)
	require.NoError(t, w.Add(ctx, 0, [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {1, 0, 0, 0}}))
	require.NoError(t, w.Commit(ctx))
	require.NoError(t, w.Close())

	idx, err := f.Open(ctx, prefix, 4)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()
	assert.Equal(t, 3, idx.Len())
	got, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{0, 2}, []int64{got[0].Label, got[1].Label})
	assert.Equal(t, int64(1), got[2].Label)
}
