package embeddingsfx

import (
	"fmt"

	"github.com/0x5457/decl-index/internal/config/configfx"
	"github.com/0x5457/decl-index/internal/embeddings"
	"github.com/0x5457/decl-index/internal/ratelimit"
	"github.com/0x5457/decl-index/internal/tokenizer"
	"go.uber.org/fx"
)

// Params represents dependencies for embeddings components
type Params struct {
	fx.In

	Config *configfx.Config
}

// Dimension resolves the embedding width: explicit config wins, otherwise
// it follows the model name.
func Dimension(cfg *configfx.Config) int {
	if cfg.Embedding.Dimension > 0 {
		return cfg.Embedding.Dimension
	}
	return embeddings.DimensionForModel(cfg.Embedding.Model)
}

// ModelID is the model name the configured embedder reports, without
// constructing it.
func ModelID(cfg *configfx.Config) string {
	switch cfg.Embedding.Provider {
	case "openai":
		return "openai:" + cfg.Embedding.Model
	case "api":
		return "api"
	case "local":
		return "local-fixed"
	default:
		return cfg.Embedding.Provider
	}
}

// NewEmbedder creates a new embedder instance
func NewEmbedder(params Params) (embeddings.Embedder, error) {
	cfg := params.Config.Embedding
	switch cfg.Provider {
	case "openai":
		return embeddings.NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case "api":
		return embeddings.NewApi(cfg.EmbedURL), nil
	case "local":
		return embeddings.NewLocal(Dimension(params.Config)), nil
	default:
		return nil, fmt.Errorf("unsupported embeddings provider: %s", cfg.Provider)
	}
}

// NewLocalEmbedder creates a local embedder for testing
func NewLocalEmbedder(dimension int) embeddings.Embedder {
	return embeddings.NewLocal(dimension)
}

// NewCounter picks the tokenizer used for budget accounting.
func NewCounter(params Params) (tokenizer.Counter, error) {
	if params.Config.Embedding.Provider != "openai" {
		return tokenizer.Approx{}, nil
	}
	return tokenizer.NewTiktoken(params.Config.Embedding.Model)
}

// NewLimiter creates the process-wide token limiter.
func NewLimiter(params Params) *ratelimit.Limiter {
	return ratelimit.New(params.Config.Embedding.TokensPerMinute)
}

// BatchParams represents dependencies for the batch client
type BatchParams struct {
	fx.In

	Config   *configfx.Config
	Embedder embeddings.Embedder
	Limiter  *ratelimit.Limiter
	Counter  tokenizer.Counter
}

// NewBatchClient creates the throttled batch embedding client
func NewBatchClient(params BatchParams) *embeddings.BatchClient {
	return embeddings.NewBatchClient(
		params.Embedder,
		params.Limiter,
		params.Counter,
		Dimension(params.Config),
		params.Config.Embedding.MaxBatch,
	)
}

// Module provides embeddings components
var Module = fx.Module("embeddings",
	fx.Provide(
		NewEmbedder,
		NewCounter,
		NewLimiter,
		NewBatchClient,
	),
)
