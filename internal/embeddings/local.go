package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// LocalEmbedder derives a fixed pseudo-random vector from each text. It
// needs no network and is used for offline runs and tests.
type LocalEmbedder struct {
	dim int
}

func NewLocal(dim int) *LocalEmbedder { return &LocalEmbedder{dim: dim} }

func (e *LocalEmbedder) ModelName() string { return "local-fixed" }

func (e *LocalEmbedder) Dim() int { return e.dim }

func (e *LocalEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vecs[i] = hashToVector(t, e.dim)
	}
	return vecs, nil
}

func (e *LocalEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return hashToVector(text, e.dim), nil
}

// hashToVector fills dim values in about [-1, 1] from sha256(block || text), one
// digest per 32 values, so wide vectors do not repeat.
func hashToVector(s string, dim int) []float32 {
	if dim <= 0 {
		return []float32{}
	}
	vec := make([]float32, dim)
	buf := make([]byte, 4+len(s))
	copy(buf[4:], s)
	for block := 0; block*sha256.Size < dim; block++ {
		binary.LittleEndian.PutUint32(buf, uint32(block))
		h := sha256.Sum256(buf)
		for j, b := range h {
			i := block*sha256.Size + j
			if i >= dim {
				break
			}
			vec[i] = float32(int8(b)) / 127.0
		}
	}
	return vec
}
