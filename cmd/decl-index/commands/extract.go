package commands

import (
	"context"

	"github.com/0x5457/decl-index/cmd/cmdsfx"
	"github.com/0x5457/decl-index/internal/app/appfx"
	"github.com/0x5457/decl-index/internal/parser"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func NewExtractCommand() *cobra.Command {
	var (
		flags  configFlags
		subdir string
	)

	cmd := &cobra.Command{
		Use:   "extract <lean-root>",
		Short: "Extract theorem, lemma and def headers from a Lean tree into the corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				runner *cmdsfx.CommandRunner
				p      parser.Parser
			)
			app := newApp(cmd, &flags, fx.Populate(&runner, &p))
			return appfx.Run(cmd.Context(), app, func(context.Context) error {
				_, err := runner.RunExtract(p, args[0], subdir)
				return err
			})
		},
	}

	flags.addCorpus(cmd)
	cmd.Flags().StringVar(&subdir, "subdir", "", "only files under a directory with this name")
	return cmd
}
