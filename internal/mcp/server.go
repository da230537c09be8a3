package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/0x5457/decl-index/internal/constants"
	"github.com/0x5457/decl-index/internal/models"
)

const (
	ServerName    = "decl-index/mcp"
	ServerVersion = "0.1.0"

	ToolKNearest    = "k_nearest"
	ToolDeclaration = "declaration"
)

var errNoSearcher = errors.New("search service not initialized")

// Searcher is the query surface the tools need. *search.Service satisfies it.
type Searcher interface {
	KNearest(ctx context.Context, query string, k int) ([]models.Hit, error)
	KNearestDetailed(ctx context.Context, query string, k int) ([]models.DetailedHit, error)
	Describe(ctx context.Context, row int) (*models.Record, error)
	Lookup(ctx context.Context, decl string) ([]int, error)
}

// Server holds the handlers of the MCP tools.
type Server struct {
	searcher Searcher
}

// New builds an MCP server exposing nearest-declaration search.
func New(searcher Searcher) *server.MCPServer {
	s := server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(true))
	srv := &Server{searcher: searcher}
	srv.register(s)
	return s
}

func (s *Server) register(m *server.MCPServer) {
	m.AddTool(kNearestTool(), s.handleKNearest)
	m.AddTool(declarationTool(), s.handleDeclaration)
}

func kNearestTool() mcp.Tool {
	return mcp.NewTool(ToolKNearest,
		mcp.WithDescription(
			"Find the declarations whose type and doc are closest to a natural language or type query",
		),
		mcp.WithString("query", mcp.Required(), mcp.Description("Query text")),
		mcp.WithNumber("k",
			mcp.Description("Number of results"),
			mcp.DefaultNumber(constants.DefaultTopK),
		),
		mcp.WithBoolean("details",
			mcp.Description("Include the full corpus record of each hit"),
			mcp.DefaultBool(false),
		),
	)
}

func declarationTool() mcp.Tool {
	return mcp.NewTool(ToolDeclaration,
		mcp.WithDescription("Fetch indexed declarations by name or by row number"),
		mcp.WithString("name", mcp.Description("Fully qualified declaration name")),
		mcp.WithNumber("row", mcp.Description("Row number returned by k_nearest")),
	)
}

func (s *Server) handleKNearest(
	ctx context.Context,
	req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.searcher == nil {
		return mcp.NewToolResultError(errNoSearcher.Error()), nil
	}
	k := req.GetInt("k", constants.DefaultTopK)

	if req.GetBool("details", false) {
		hits, err := s.searcher.KNearestDetailed(ctx, query, k)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultStructuredOnly(map[string]any{"hits": hits}), nil
	}
	hits, err := s.searcher.KNearest(ctx, query, k)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultStructuredOnly(map[string]any{"hits": hits}), nil
}

func (s *Server) handleDeclaration(
	ctx context.Context,
	req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	row := req.GetInt("row", -1)
	if name == "" && row < 0 {
		return mcp.NewToolResultError("either name or row is required"), nil
	}
	if s.searcher == nil {
		return mcp.NewToolResultError(errNoSearcher.Error()), nil
	}

	var rows []int
	if name != "" {
		found, err := s.searcher.Lookup(ctx, name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		rows = found
	} else {
		rows = []int{row}
	}

	records := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		rec, err := s.searcher.Describe(ctx, r)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if rec == nil {
			continue
		}
		records = append(records, map[string]any{"row": r, "record": rec})
	}
	if len(records) == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("declaration not found: %s", describeKey(name, row))), nil
	}
	return mcp.NewToolResultStructuredOnly(map[string]any{"declarations": records}), nil
}

func describeKey(name string, row int) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("row %d", row)
}
