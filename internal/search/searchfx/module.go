package searchfx

import (
	"github.com/0x5457/decl-index/internal/config/configfx"
	"github.com/0x5457/decl-index/internal/embeddings"
	"github.com/0x5457/decl-index/internal/embeddings/embeddingsfx"
	"github.com/0x5457/decl-index/internal/search"
	"github.com/0x5457/decl-index/internal/storage"
	"go.uber.org/fx"
)

// Params represents dependencies for search service
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *configfx.Config
	Embedder  embeddings.Embedder
	Factory   storage.IndexFactory
}

// NewSearchService creates the query service. The index is loaded when the
// app starts and released when it stops.
func NewSearchService(params Params) *search.Service {
	svc := search.New(params.Embedder, params.Factory, search.Options{
		Prefix:    params.Config.Index.Prefix,
		Dimension: embeddingsfx.Dimension(params.Config),
	})
	params.Lifecycle.Append(fx.Hook{
		OnStart: svc.Load,
		OnStop:  svc.Close,
	})
	return svc
}

// Module provides search components
var Module = fx.Module("search",
	fx.Provide(NewSearchService),
)
