package indexerfx

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/0x5457/decl-index/internal/config/configfx"
	"github.com/0x5457/decl-index/internal/corpus"
	"github.com/0x5457/decl-index/internal/embeddings/embeddingsfx"
	"github.com/0x5457/decl-index/internal/indexer"
	"github.com/0x5457/decl-index/internal/indexer/builder"
	"github.com/0x5457/decl-index/internal/indexer/pipeline"
	"github.com/0x5457/decl-index/internal/models"
	"github.com/0x5457/decl-index/internal/storage/memory"
	"github.com/0x5457/decl-index/internal/storage/storagefx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestEmbedThenBuild(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := configfx.Default()
	cfg.Embedding.Provider = "local"
	cfg.Embedding.Dimension = 8
	cfg.Index.Backend = "hnsw"
	cfg.Index.Prefix = filepath.Join(dir, "idx")
	cfg.CorpusPath = filepath.Join(dir, "corpus.jsonl")
	cfg.MatrixPath = filepath.Join(dir, "vecs.f32")

	f, err := os.Create(cfg.CorpusPath)
	require.NoError(t, err)
	require.NoError(t, corpus.Write(f, []models.Record{
		{Decl: "a", Text: "alpha"},
		{Decl: "b", Text: ""},
		{Decl: "c", Text: "gamma"},
	}))
	require.NoError(t, f.Close())

	var (
		p        *pipeline.Pipeline
		b        *builder.Builder
		progress []models.Progress
	)
	app := fx.New(
		embeddingsfx.Module,
		storagefx.Module,
		Module,
		fx.Supply(cfg),
		fx.Provide(func() models.ProgressFunc {
			return func(p models.Progress) { progress = append(progress, p) }
		}),
		fx.Populate(&p, &b),
	)
	require.NoError(t, app.Err())

	n, err := p.Run(ctx, cfg.CorpusPath, cfg.MatrixPath, cfg.Embedding.BatchSize)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = b.Build(ctx, cfg.MatrixPath, cfg.CorpusPath, cfg.Index.Prefix, 8, cfg.Index.ChunkSize)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NotEmpty(t, progress)

	m, err := indexer.ReadManifest(cfg.Index.Prefix + ".manifest.json")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "local-fixed", m.Model)
	assert.Equal(t, 32, m.Params["m"])

	// a build configured for another provider still records the embed run's model
	other := *cfg
	other.Embedding.Provider = "openai"
	other.Index.Prefix = filepath.Join(dir, "other")
	_, err = NewBuilder(BuilderParams{Config: &other, Factory: memory.NewFactory()}).
		Build(ctx, cfg.MatrixPath, cfg.CorpusPath, other.Index.Prefix, 8, 0)
	require.NoError(t, err)
	m, err = indexer.ReadManifest(other.Index.Prefix + ".manifest.json")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "local-fixed", m.Model)
}
