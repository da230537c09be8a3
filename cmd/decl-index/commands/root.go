package commands

import (
	"github.com/0x5457/decl-index/internal/app/appfx"
	"github.com/0x5457/decl-index/internal/config/configfx"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// NewRootCommand assembles the decl-index command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "decl-index",
		Short:         "Semantic search over Lean declarations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "YAML config file")
	root.PersistentFlags().String("env-file", "", "dotenv file (defaults to ./.env when present)")

	root.AddCommand(
		NewExtractCommand(),
		NewEmbedCommand(),
		NewBuildCommand(),
		NewSearchCommand(),
		NewMCPServeCommand(),
		NewMCPClientCommand(),
	)
	return root
}

// newApp builds the fx app for cmd with the global config flags and the
// command's own overrides.
func newApp(cmd *cobra.Command, flags *configFlags, opts ...fx.Option) *fx.App {
	configFile, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")
	var apply func(*configfx.Config)
	if flags != nil {
		apply = flags.apply(cmd)
	}
	return appfx.NewApp(append([]fx.Option{appfx.WithConfig(configFile, envFile, apply)}, opts...)...)
}
