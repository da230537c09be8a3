package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/0x5457/decl-index/internal/tokenizer"
)

var (
	// ErrBatchTooLarge is returned when a batch exceeds the endpoint limit.
	ErrBatchTooLarge = errors.New("embeddings: batch exceeds provider limit")
	// ErrDimensionMismatch is returned when the provider returns a vector of
	// the wrong width.
	ErrDimensionMismatch = errors.New("embeddings: dimension mismatch")
)

// Acquirer gates outgoing tokens.
type Acquirer interface {
	Acquire(ctx context.Context, tokens int) error
}

// BatchClient embeds batches under a token budget. Empty texts become zero
// vectors without a remote call or a budget charge.
type BatchClient struct {
	embedder Embedder
	limiter  Acquirer
	counter  tokenizer.Counter
	dim      int
	maxBatch int
}

func NewBatchClient(
	e Embedder,
	limiter Acquirer,
	counter tokenizer.Counter,
	dim int,
	maxBatch int,
) *BatchClient {
	return &BatchClient{embedder: e, limiter: limiter, counter: counter, dim: dim, maxBatch: maxBatch}
}

func (c *BatchClient) Dim() int      { return c.dim }
func (c *BatchClient) MaxBatch() int { return c.maxBatch }

// ModelName reports the underlying embedder's model.
func (c *BatchClient) ModelName() string { return c.embedder.ModelName() }

// EmbedBatch returns one vector per text, in input order.
func (c *BatchClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.maxBatch > 0 && len(texts) > c.maxBatch {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(texts), c.maxBatch)
	}
	out := make([][]float32, len(texts))
	valid := make([]string, 0, len(texts))
	for _, t := range texts {
		if t != "" {
			valid = append(valid, t)
		}
	}
	if len(valid) > 0 {
		if err := c.limiter.Acquire(ctx, tokenizer.Sum(c.counter, valid)); err != nil {
			return nil, err
		}
		vecs, err := c.embedder.EmbedTexts(ctx, valid)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(valid) {
			return nil, fmt.Errorf("embeddings: provider returned %d vectors for %d inputs", len(vecs), len(valid))
		}
		next := 0
		for i, t := range texts {
			if t == "" {
				continue
			}
			if len(vecs[next]) != c.dim {
				return nil, fmt.Errorf("%w: got %d want %d", ErrDimensionMismatch, len(vecs[next]), c.dim)
			}
			out[i] = vecs[next]
			next++
		}
	}
	for i := range out {
		if out[i] == nil {
			out[i] = make([]float32, c.dim)
		}
	}
	return out, nil
}
