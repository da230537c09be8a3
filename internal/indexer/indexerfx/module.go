package indexerfx

import (
	"github.com/0x5457/decl-index/internal/config/configfx"
	"github.com/0x5457/decl-index/internal/embeddings"
	"github.com/0x5457/decl-index/internal/embeddings/embeddingsfx"
	"github.com/0x5457/decl-index/internal/indexer/builder"
	"github.com/0x5457/decl-index/internal/indexer/pipeline"
	"github.com/0x5457/decl-index/internal/models"
	"github.com/0x5457/decl-index/internal/storage"
	"go.uber.org/fx"
)

// PipelineParams represents dependencies for the embedding pipeline
type PipelineParams struct {
	fx.In

	Client   *embeddings.BatchClient
	Progress models.ProgressFunc `optional:"true"`
}

// NewPipeline creates the batch embedding pipeline
func NewPipeline(params PipelineParams) *pipeline.Pipeline {
	return pipeline.New(params.Client, pipeline.WithProgress(params.Progress))
}

// BuilderParams represents dependencies for the index builder
type BuilderParams struct {
	fx.In

	Config   *configfx.Config
	Factory  storage.IndexFactory
	Progress models.ProgressFunc `optional:"true"`
}

// NewBuilder creates the index builder. It does not need an embedder, so
// building works without provider credentials.
func NewBuilder(params BuilderParams) *builder.Builder {
	idx := params.Config.Index
	return builder.New(params.Factory,
		builder.WithModel(embeddingsfx.ModelID(params.Config)),
		builder.WithIndexParams(map[string]int{
			"m":               idx.M,
			"ef_construction": idx.EfConstruction,
			"ef_search":       idx.EfSearch,
			"chunk_size":      idx.ChunkSize,
		}),
		builder.WithProgress(params.Progress),
	)
}

// Module provides indexing components
var Module = fx.Module("indexer",
	fx.Provide(
		NewPipeline,
		NewBuilder,
	),
)
