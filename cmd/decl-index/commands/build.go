package commands

import (
	"context"

	"github.com/0x5457/decl-index/cmd/cmdsfx"
	"github.com/0x5457/decl-index/internal/app/appfx"
	"github.com/0x5457/decl-index/internal/indexer/builder"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func NewBuildCommand() *cobra.Command {
	var flags configFlags

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the nearest-neighbour index and name table from the matrix",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				runner *cmdsfx.CommandRunner
				b      *builder.Builder
			)
			app := newApp(cmd, &flags, fx.Populate(&runner, &b))
			return appfx.Run(cmd.Context(), app, func(ctx context.Context) error {
				return runner.RunBuild(ctx, b)
			})
		},
	}

	flags.addCorpus(cmd)
	flags.addMatrix(cmd)
	flags.addIndex(cmd)
	flags.addBuildParams(cmd)
	cmd.Flags().StringVar(&flags.model, "model", "", "embedding model recorded in the manifest")
	cmd.Flags().StringVar(&flags.provider, "provider", "", "embedding provider recorded in the manifest")
	cmd.Flags().IntVar(&flags.dimension, "dimension", 0, "embedding dimension (0 follows the model)")
	return cmd
}
