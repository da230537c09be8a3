package mcpfx

import (
	"context"
	"log"

	appmcp "github.com/0x5457/decl-index/internal/mcp"
	"github.com/0x5457/decl-index/internal/search"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"
)

// Params represents dependencies for MCP server
type Params struct {
	fx.In

	SearchService *search.Service `optional:"true"`
}

// NewMCPServer creates a new MCP server instance. Without a search service
// the tools report an error instead of failing the app.
func NewMCPServer(params Params) *server.MCPServer {
	if params.SearchService == nil {
		return appmcp.New(nil)
	}
	return appmcp.New(params.SearchService)
}

// Lifecycle logs the served index when the app starts.
type Lifecycle struct {
	server        *server.MCPServer
	searchService *search.Service
}

// NewLifecycle creates a new MCP lifecycle manager
func NewLifecycle(srv *server.MCPServer, params Params) *Lifecycle {
	return &Lifecycle{server: srv, searchService: params.SearchService}
}

// Start runs after the search service has loaded its index.
func (m *Lifecycle) Start(ctx context.Context) error {
	if m.searchService == nil {
		log.Printf("mcp: %s started without a search index", appmcp.ServerName)
		return nil
	}
	rows := m.searchService.Len()
	if man := m.searchService.Manifest(); man != nil {
		log.Printf("mcp: %s serving %d rows (model %s, backend %s)", appmcp.ServerName, rows, man.Model, man.Backend)
		return nil
	}
	log.Printf("mcp: %s serving %d rows", appmcp.ServerName, rows)
	return nil
}

// Stop handles graceful shutdown
func (m *Lifecycle) Stop(ctx context.Context) error {
	// the search service releases the index in its own hook
	return nil
}

// Module provides MCP server components
var Module = fx.Module("mcp",
	fx.Provide(
		NewMCPServer,
		NewLifecycle,
	),
)
