package commands

import (
	"context"

	"github.com/0x5457/decl-index/cmd/cmdsfx"
	"github.com/0x5457/decl-index/internal/app/appfx"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// NewMCPServeCommand serves the k_nearest and declaration tools over MCP.
func NewMCPServeCommand() *cobra.Command {
	var (
		flags     configFlags
		transport string
		address   string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run MCP server",
		Long:  "Run MCP server exposing nearest-declaration search over the built index.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				runner *cmdsfx.CommandRunner
				srv    *server.MCPServer
			)
			app := newApp(cmd, &flags, appfx.WithMCPLifecycle(), fx.Populate(&runner, &srv))
			return appfx.Run(cmd.Context(), app, func(context.Context) error {
				return runner.RunMCPServer(srv, transport, address)
			})
		},
	}

	flags.addIndex(cmd)
	flags.addProvider(cmd)
	cmd.Flags().
		StringVarP(&transport, "transport", "t", "stdio", "transport (stdio, http, sse)")
	cmd.Flags().StringVarP(&address, "address", "a", "", "server address (http modes), e.g. :8080")
	return cmd
}
