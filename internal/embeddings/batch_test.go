package embeddings_test

import (
	"context"
	"errors"
	"testing"

	"github.com/0x5457/decl-index/internal/embeddings"
	"github.com/0x5457/decl-index/internal/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEmbedder struct {
	calls [][]string
	dim   int
	err   error
}

func (r *recordingEmbedder) ModelName() string { return "recording" }

func (r *recordingEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	r.calls = append(r.calls, append([]string(nil), texts...))
	if r.err != nil {
		return nil, r.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, r.dim)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}

func (r *recordingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := r.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

type countingLimiter struct{ charged []int }

func (c *countingLimiter) Acquire(_ context.Context, tokens int) error {
	c.charged = append(c.charged, tokens)
	return nil
}

func TestEmbedBatchInterleavesZeroVectors(t *testing.T) {
	emb := &recordingEmbedder{dim: 4}
	lim := &countingLimiter{}
	c := embeddings.NewBatchClient(emb, lim, tokenizer.Approx{}, 4, 8)

	out, err := c.EmbedBatch(context.Background(), []string{"", "a b", "", "ccc d e"})
	require.NoError(t, err)
	require.Len(t, out, 4)

	assert.Equal(t, []float32{0, 0, 0, 0}, out[0])
	assert.Equal(t, float32(3), out[1][0])
	assert.Equal(t, []float32{0, 0, 0, 0}, out[2])
	assert.Equal(t, float32(7), out[3][0])

	require.Len(t, emb.calls, 1)
	assert.Equal(t, []string{"a b", "ccc d e"}, emb.calls[0])
	assert.Equal(t, []int{5}, lim.charged)
}

func TestEmbedBatchAllEmptySkipsRemoteAndLimiter(t *testing.T) {
	emb := &recordingEmbedder{dim: 3}
	lim := &countingLimiter{}
	c := embeddings.NewBatchClient(emb, lim, tokenizer.Approx{}, 3, 8)

	out, err := c.EmbedBatch(context.Background(), []string{"", "", ""})
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, v := range out {
		assert.Equal(t, []float32{0, 0, 0}, v)
	}
	assert.Empty(t, emb.calls)
	assert.Empty(t, lim.charged)
}

func TestEmbedBatchRejectsOversizedBatch(t *testing.T) {
	c := embeddings.NewBatchClient(&recordingEmbedder{dim: 2}, &countingLimiter{}, tokenizer.Approx{}, 2, 2)
	_, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	assert.ErrorIs(t, err, embeddings.ErrBatchTooLarge)
}

func TestEmbedBatchPropagatesProviderError(t *testing.T) {
	boom := errors.New("boom")
	c := embeddings.NewBatchClient(&recordingEmbedder{dim: 2, err: boom}, &countingLimiter{}, tokenizer.Approx{}, 2, 8)
	_, err := c.EmbedBatch(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, boom)
}

func TestEmbedBatchChecksDimension(t *testing.T) {
	c := embeddings.NewBatchClient(&recordingEmbedder{dim: 3}, &countingLimiter{}, tokenizer.Approx{}, 4, 8)
	_, err := c.EmbedBatch(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, embeddings.ErrDimensionMismatch)
}

func TestDimensionForModel(t *testing.T) {
	assert.Equal(t, 3072, embeddings.DimensionForModel("text-embedding-3-large"))
	assert.Equal(t, 1536, embeddings.DimensionForModel("text-embedding-3-small"))
}
