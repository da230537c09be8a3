package embeddingsfx

import (
	"context"
	"testing"

	"github.com/0x5457/decl-index/internal/config/configfx"
	"github.com/0x5457/decl-index/internal/embeddings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestEmbeddingsModule(t *testing.T) {
	cfg := configfx.Default()
	cfg.Embedding.Provider = "local"
	cfg.Embedding.Dimension = 8

	var (
		embedder embeddings.Embedder
		client   *embeddings.BatchClient
	)
	app := fx.New(
		Module,
		fx.Supply(cfg),
		fx.Populate(&embedder, &client),
	)

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	defer func() {
		require.NoError(t, app.Stop(ctx))
	}()

	assert.Equal(t, "local-fixed", embedder.ModelName())
	assert.Equal(t, 8, client.Dim())
	assert.Equal(t, 2048, client.MaxBatch())
}

func TestUnsupportedProvider(t *testing.T) {
	cfg := configfx.Default()
	cfg.Embedding.Provider = "nope"
	_, err := NewEmbedder(Params{Config: cfg})
	assert.Error(t, err)
}

func TestDimension(t *testing.T) {
	cfg := configfx.Default()
	assert.Equal(t, 3072, Dimension(cfg))
	cfg.Embedding.Dimension = 12
	assert.Equal(t, 12, Dimension(cfg))
}

func TestModelIDMatchesEmbedder(t *testing.T) {
	for _, provider := range []string{"local", "api"} {
		cfg := configfx.Default()
		cfg.Embedding.Provider = provider
		e, err := NewEmbedder(Params{Config: cfg})
		require.NoError(t, err)
		assert.Equal(t, e.ModelName(), ModelID(cfg), provider)
	}

	cfg := configfx.Default()
	cfg.Embedding.APIKey = "sk-test"
	e, err := NewEmbedder(Params{Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, "openai:text-embedding-3-large", ModelID(cfg))
	assert.Equal(t, e.ModelName(), ModelID(cfg))
}
