package storagefx

import (
	"testing"

	"github.com/0x5457/decl-index/internal/config/configfx"
	"github.com/0x5457/decl-index/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestModuleProvidesConfiguredBackend(t *testing.T) {
	for _, backend := range Backends {
		t.Run(backend, func(t *testing.T) {
			cfg := configfx.Default()
			cfg.Index.Backend = backend

			var f storage.IndexFactory
			app := fx.New(
				Module,
				fx.Supply(cfg),
				fx.Populate(&f),
				fx.NopLogger,
			)
			require.NoError(t, app.Err())
			assert.Equal(t, backend, f.Name())
		})
	}
}

func TestUnsupportedBackend(t *testing.T) {
	cfg := configfx.Default()
	cfg.Index.Backend = "faiss"
	_, err := NewIndexFactory(Params{Config: cfg})
	assert.ErrorContains(t, err, "unsupported index backend")
}
