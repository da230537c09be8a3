package storagefx

import (
	"fmt"

	"github.com/0x5457/decl-index/internal/config/configfx"
	"github.com/0x5457/decl-index/internal/storage"
	"github.com/0x5457/decl-index/internal/storage/hnsw"
	"github.com/0x5457/decl-index/internal/storage/memory"
	"github.com/0x5457/decl-index/internal/storage/qdrant"
	"github.com/0x5457/decl-index/internal/storage/sqlvec"
	"go.uber.org/fx"
)

// Params represents dependencies for storage components
type Params struct {
	fx.In

	Config *configfx.Config
}

// Backends lists the accepted index.backend values.
var Backends = []string{"hnsw", "sqlvec", "qdrant", "flat"}

// NewIndexFactory returns the factory for the configured backend.
func NewIndexFactory(params Params) (storage.IndexFactory, error) {
	cfg := params.Config.Index
	switch cfg.Backend {
	case "hnsw", "":
		return hnsw.NewFactory(hnsw.Params{
			M:              cfg.M,
			EfConstruction: cfg.EfConstruction,
			EfSearch:       cfg.EfSearch,
		}), nil
	case "sqlvec":
		return sqlvec.NewFactory(), nil
	case "qdrant":
		return qdrant.NewFactory(cfg.QdrantAddr, cfg.QdrantCollection, qdrant.Params{
			M:              cfg.M,
			EfConstruction: cfg.EfConstruction,
			EfSearch:       cfg.EfSearch,
		}), nil
	case "flat":
		return memory.NewFactory(), nil
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", cfg.Backend)
	}
}

// Module provides storage components
var Module = fx.Module("storage",
	fx.Provide(NewIndexFactory),
)
