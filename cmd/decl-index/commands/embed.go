package commands

import (
	"context"

	"github.com/0x5457/decl-index/cmd/cmdsfx"
	"github.com/0x5457/decl-index/internal/app/appfx"
	"github.com/0x5457/decl-index/internal/indexer/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func NewEmbedCommand() *cobra.Command {
	var flags configFlags

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Embed every corpus line into the float32 matrix",
		Long: `Embed every corpus line into a headerless float32 matrix, row i holding
line i. Requests are batched and throttled to the configured token budget.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				runner *cmdsfx.CommandRunner
				pl     *pipeline.Pipeline
			)
			app := newApp(cmd, &flags, fx.Populate(&runner, &pl))
			return appfx.Run(cmd.Context(), app, func(ctx context.Context) error {
				return runner.RunEmbed(ctx, pl)
			})
		},
	}

	flags.addCorpus(cmd)
	flags.addMatrix(cmd)
	flags.addProvider(cmd)
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "texts per request (at most 2048)")
	return cmd
}
