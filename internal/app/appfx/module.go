package appfx

import (
	"context"
	"errors"
	"fmt"

	"github.com/0x5457/decl-index/cmd/cmdsfx"
	"github.com/0x5457/decl-index/internal/config/configfx"
	"github.com/0x5457/decl-index/internal/embeddings/embeddingsfx"
	"github.com/0x5457/decl-index/internal/indexer/indexerfx"
	"github.com/0x5457/decl-index/internal/mcp/mcpfx"
	"github.com/0x5457/decl-index/internal/parser/parserfx"
	"github.com/0x5457/decl-index/internal/search/searchfx"
	"github.com/0x5457/decl-index/internal/storage/storagefx"
	"go.uber.org/fx"
)

// Module combines all application modules. fx only builds what a command
// asks for, so extract and build never construct an embedding provider.
var Module = fx.Options(
	configfx.Module,
	parserfx.Module,
	embeddingsfx.Module,
	storagefx.Module,
	searchfx.Module,
	indexerfx.Module,
	mcpfx.Module,
	cmdsfx.Module,
)

// WithConfig supplies the config file locations and applies command line
// overrides on top of the loaded configuration.
func WithConfig(configFile, envFile string, apply func(*configfx.Config)) fx.Option {
	opts := []fx.Option{
		fx.Supply(
			fx.Annotate(configFile, fx.ResultTags(`name:"configFile"`)),
			fx.Annotate(envFile, fx.ResultTags(`name:"envFile"`)),
		),
	}
	if apply != nil {
		opts = append(opts, fx.Decorate(func(cfg *configfx.Config) *configfx.Config {
			apply(cfg)
			return cfg
		}))
	}
	return fx.Options(opts...)
}

// WithMCPLifecycle hooks the MCP lifecycle into the app.
func WithMCPLifecycle() fx.Option {
	return fx.Invoke(func(lc fx.Lifecycle, mcpLifecycle *mcpfx.Lifecycle) {
		lc.Append(fx.Hook{
			OnStart: mcpLifecycle.Start,
			OnStop:  mcpLifecycle.Stop,
		})
	})
}

// NewApp creates an Fx app from Module and opts
func NewApp(opts ...fx.Option) *fx.App {
	return fx.New(
		Module,
		fx.NopLogger,
		fx.Options(opts...),
	)
}

// Run starts app, runs fn and stops app again.
func Run(ctx context.Context, app *fx.App, fn func(context.Context) error) error {
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}
	runErr := fn(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to stop application: %w", err))
	}
	return runErr
}
