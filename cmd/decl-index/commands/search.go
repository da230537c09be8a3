package commands

import (
	"context"

	"github.com/0x5457/decl-index/cmd/cmdsfx"
	"github.com/0x5457/decl-index/internal/app/appfx"
	"github.com/0x5457/decl-index/internal/constants"
	"github.com/0x5457/decl-index/internal/search"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func NewSearchCommand() *cobra.Command {
	var (
		flags   configFlags
		topK    int
		details bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the declarations nearest to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				runner *cmdsfx.CommandRunner
				svc    *search.Service
			)
			app := newApp(cmd, &flags, fx.Populate(&runner, &svc))
			return appfx.Run(cmd.Context(), app, func(ctx context.Context) error {
				return runner.RunSearch(ctx, svc, args[0], topK, details)
			})
		},
	}

	flags.addIndex(cmd)
	flags.addProvider(cmd)
	cmd.Flags().IntVar(&flags.efSearch, "ef-search", 0, "query-time candidate list size")
	cmd.Flags().IntVarP(&topK, "top-k", "k", constants.DefaultTopK, "number of results")
	cmd.Flags().BoolVar(&details, "details", false, "print the corpus record of each hit")
	return cmd
}
