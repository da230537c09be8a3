package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/0x5457/decl-index/internal/app/appfx"
	"github.com/0x5457/decl-index/internal/constants"
	appmcp "github.com/0x5457/decl-index/internal/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const (
	transportStdio  = "stdio"
	transportHTTP   = "http"
	transportSSE    = "sse"
	transportInproc = "inproc"
)

// NewMCPClientCommand creates commands for connecting to and interacting with MCP servers
func NewMCPClientCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-client",
		Short: "MCP client commands",
		Long:  "Commands for connecting to and interacting with a decl-index MCP server",
	}

	cmd.AddCommand(
		newMCPCallCommand(),
		newMCPListToolsCommand(),
		newMCPSearchCommand(),
	)

	cmd.PersistentFlags().
		StringP("transport", "t", transportStdio, "transport (stdio, http, sse, inproc)")
	cmd.PersistentFlags().
		StringP("address", "a", "", "server URL (http/sse), ignored for stdio/inproc")
	cmd.PersistentFlags().
		Duration("timeout", 30*time.Second, "overall request timeout")
	return cmd
}

// parseToolArgs turns key=value pairs into tool arguments, keeping numbers
// and booleans typed.
func parseToolArgs(args []string) (map[string]any, error) {
	toolArgs := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid argument format: %s (expected key=value)", arg)
		}
		if val, err := strconv.Atoi(value); err == nil {
			toolArgs[key] = val
		} else if val, err := strconv.ParseBool(value); err == nil {
			toolArgs[key] = val
		} else {
			toolArgs[key] = value
		}
	}
	return toolArgs, nil
}

func newMCPCallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "call <tool_name> [key=value...]",
		Short: "Call a specific MCP tool",
		Long: `Call a specific MCP tool with arguments.
Arguments should be provided as key=value pairs.

Example:
  decl-index mcp-client call k_nearest query="commutativity of addition" k=5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs, err := parseToolArgs(args[1:])
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, client *appmcp.Client) error {
				result, err := client.Call(ctx, args[0], toolArgs)
				if err != nil {
					return fmt.Errorf("call tool failed: %w", err)
				}
				return printJSON(result)
			})
		},
	}
}

func newMCPListToolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-tools",
		Short: "List available MCP tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client *appmcp.Client) error {
				tools, err := client.ListTools(ctx)
				if err != nil {
					return fmt.Errorf("failed to list tools: %w", err)
				}
				if len(tools) == 0 {
					fmt.Println("No tools available")
					return nil
				}

				fmt.Printf("Available MCP tools (%d):\n\n", len(tools))
				for i, tool := range tools {
					fmt.Printf("%d. %s\n", i+1, tool.Name)
					if tool.Description != "" {
						fmt.Printf("   Description: %s\n", tool.Description)
					}
					if len(tool.InputSchema.Properties) > 0 {
						fmt.Printf("   Parameters:\n")
						for name, prop := range tool.InputSchema.Properties {
							required := ""
							if slices.Contains(tool.InputSchema.Required, name) {
								required = " (required)"
							}
							desc := ""
							if propMap, ok := prop.(map[string]any); ok {
								if d, ok := propMap["description"].(string); ok {
									desc = ": " + d
								}
							}
							fmt.Printf("     - %s%s%s\n", name, required, desc)
						}
					}
					fmt.Println()
				}
				return nil
			})
		},
	}
}

func newMCPSearchCommand() *cobra.Command {
	var (
		topK    int
		details bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Nearest declarations through the k_nearest tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client *appmcp.Client) error {
				result, err := client.Call(ctx, appmcp.ToolKNearest, map[string]any{
					"query":   args[0],
					"k":       topK,
					"details": details,
				})
				if err != nil {
					return fmt.Errorf("search failed: %w", err)
				}
				return printJSON(result)
			})
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", constants.DefaultTopK, "number of results")
	cmd.Flags().BoolVar(&details, "details", false, "include corpus records")
	return cmd
}

func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("format result failed: %w", err)
	}
	fmt.Println(string(output))
	return nil
}

// withClient connects with the transport flags of cmd and runs fn.
func withClient(cmd *cobra.Command, fn func(context.Context, *appmcp.Client) error) error {
	transport, _ := cmd.Flags().GetString("transport")
	address, _ := cmd.Flags().GetString("address")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if transport == transportInproc {
		// the in-process server needs the index loaded for the whole call
		var srv *server.MCPServer
		app := newApp(cmd, nil, fx.Populate(&srv))
		return appfx.Run(ctx, app, func(ctx context.Context) error {
			client, err := appmcp.NewInProcessClient(ctx, srv)
			if err != nil {
				return fmt.Errorf("create MCP client failed: %w", err)
			}
			defer client.Close() //nolint:errcheck
			return fn(ctx, client)
		})
	}

	client, err := createMCPClient(ctx, transport, address, serverArgs(cmd))
	if err != nil {
		return fmt.Errorf("create MCP client failed: %w", err)
	}
	defer client.Close() //nolint:errcheck
	return fn(ctx, client)
}

// serverArgs forwards the global config flags to a spawned stdio server.
func serverArgs(cmd *cobra.Command) []string {
	args := []string{"mcp"}
	for _, name := range []string{"config", "env-file"} {
		if v, _ := cmd.Flags().GetString(name); v != "" {
			args = append(args, "--"+name, v)
		}
	}
	return args
}

func createMCPClient(
	ctx context.Context,
	transport, address string,
	args []string,
) (*appmcp.Client, error) {
	switch transport {
	case transportStdio:
		self, err := os.Executable()
		if err != nil {
			self = "decl-index"
		}
		return appmcp.NewStdioClient(ctx, self, args...)
	case transportHTTP:
		if address == "" {
			address = "http://127.0.0.1:8080/mcp"
		}
		return appmcp.NewHTTPClient(ctx, address)
	case transportSSE:
		if address == "" {
			address = "http://127.0.0.1:8080/mcp/sse"
		}
		return appmcp.NewSSEClient(ctx, address)
	default:
		return nil, fmt.Errorf(
			"unsupported transport: %s (supported: stdio, http, sse, inproc)",
			transport,
		)
	}
}
