package embeddings

import (
	"context"
	"strings"

	"github.com/0x5457/decl-index/internal/constants"
)

type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

// DimensionForModel returns the output width of an OpenAI embedding model.
func DimensionForModel(model string) int {
	if strings.Contains(model, "large") {
		return constants.LargeModelDim
	}
	return constants.DefaultModelDim
}
