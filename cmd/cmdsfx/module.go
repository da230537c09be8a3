package cmdsfx

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/0x5457/decl-index/internal/config/configfx"
	"github.com/0x5457/decl-index/internal/corpus"
	"github.com/0x5457/decl-index/internal/embeddings/embeddingsfx"
	"github.com/0x5457/decl-index/internal/indexer/builder"
	"github.com/0x5457/decl-index/internal/indexer/pipeline"
	"github.com/0x5457/decl-index/internal/models"
	"github.com/0x5457/decl-index/internal/parser"
	"github.com/0x5457/decl-index/internal/search"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"
)

// CommandRunner provides methods to run different application commands.
// Each method takes only the components its command needs, so fx builds
// nothing else (no provider credentials for extract or build).
type CommandRunner struct {
	config *configfx.Config
	out    io.Writer
}

// Params represents dependencies for command runner
type Params struct {
	fx.In

	Config *configfx.Config
	Out    io.Writer `name:"stdout" optional:"true"`
}

// NewCommandRunner creates a new command runner
func NewCommandRunner(params Params) *CommandRunner {
	out := params.Out
	if out == nil {
		out = os.Stdout
	}
	return &CommandRunner{config: params.Config, out: out}
}

// NewProgressFunc renders pipeline and builder progress on one line.
func NewProgressFunc(r *CommandRunner) models.ProgressFunc {
	return r.PrintProgress
}

func (r *CommandRunner) PrintProgress(p models.Progress) {
	switch p.Stage {
	case models.StageEmbed, models.StageInsert:
		fmt.Fprintf(r.out, "\r[%3.0f%%] stage=%s rows:%d/%d %-20s",
			p.Percent*100, p.Stage, p.Done, p.Total, p.Message)
	case models.StageDone:
		fmt.Fprintf(r.out, "\r[100%%] stage=%s rows:%d %-20s\n", p.Stage, p.Total, "")
	}
}

// RunExtract writes the declarations under root to the configured corpus.
func (r *CommandRunner) RunExtract(p parser.Parser, root, subdir string) (int, error) {
	if p == nil {
		return 0, fmt.Errorf("parser not available")
	}
	records, err := p.ParseProject(root, subdir)
	if err != nil {
		return 0, err
	}
	path := r.config.CorpusPath
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	if err := corpus.Write(f, records); err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("write corpus %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	fmt.Fprintf(r.out, "extracted %d declarations into %s\n", len(records), path)
	return len(records), nil
}

// RunEmbed embeds the configured corpus into the configured matrix.
func (r *CommandRunner) RunEmbed(ctx context.Context, p *pipeline.Pipeline) error {
	if p == nil {
		return fmt.Errorf("embedding pipeline not available")
	}
	rows, err := p.Run(ctx, r.config.CorpusPath, r.config.MatrixPath, r.config.Embedding.BatchSize)
	if err != nil {
		fmt.Fprintln(r.out)
		return err
	}
	fmt.Fprintf(r.out, "embedded %d rows into %s\n", rows, r.config.MatrixPath)
	return nil
}

// RunBuild indexes the configured matrix under the configured prefix.
func (r *CommandRunner) RunBuild(ctx context.Context, b *builder.Builder) error {
	if b == nil {
		return fmt.Errorf("index builder not available")
	}
	cfg := r.config
	rows, err := b.Build(ctx, cfg.MatrixPath, cfg.CorpusPath, cfg.Index.Prefix,
		embeddingsfx.Dimension(cfg), cfg.Index.ChunkSize)
	if err != nil {
		fmt.Fprintln(r.out)
		return err
	}
	fmt.Fprintf(r.out, "indexed %d rows into %s\n", rows, b.Paths(cfg.Index.Prefix).Index)
	return nil
}

// RunSearch prints the k nearest declarations to query.
func (r *CommandRunner) RunSearch(
	ctx context.Context,
	svc *search.Service,
	query string,
	k int,
	details bool,
) error {
	if svc == nil {
		return fmt.Errorf("search service not available")
	}
	if !details {
		hits, err := svc.KNearest(ctx, query, k)
		if err != nil {
			return err
		}
		for i, hit := range hits {
			fmt.Fprintf(r.out, "%2d. [%.4f] %s\n", i+1, hit.Distance, hit.Name)
		}
		return nil
	}

	hits, err := svc.KNearestDetailed(ctx, query, k)
	if err != nil {
		return err
	}
	for i, hit := range hits {
		fmt.Fprintf(r.out, "Result %d (distance: %.4f):\n", i+1, hit.Distance)
		fmt.Fprintf(r.out, "Name: %s\n", hit.Name)
		if rec := hit.Record; rec != nil {
			fmt.Fprintf(r.out, "Path: %s\n", rec.Path)
			fmt.Fprintf(r.out, "Type: %s\n", rec.Type)
			if rec.Doc != "" {
				fmt.Fprintf(r.out, "Doc: %s\n", rec.Doc)
			}
		}
		fmt.Fprintln(r.out)
	}
	return nil
}

// RunMCPServer serves s until the transport stops.
func (r *CommandRunner) RunMCPServer(s *server.MCPServer, transport, address string) error {
	if s == nil {
		return fmt.Errorf("MCP server not available")
	}

	switch transport {
	case "stdio":
		return server.ServeStdio(s)
	case "http":
		// Streamable HTTP server on address, default ":8080" if empty
		addr := address
		if addr == "" {
			addr = ":8080"
		}
		log.Printf("mcp: streamable http on %s", addr)
		return server.NewStreamableHTTPServer(s).Start(addr)
	case "sse":
		// SSE server exposes two endpoints; default base path "/mcp"
		addr := address
		if addr == "" {
			addr = ":8080"
		}
		log.Printf("mcp: sse on %s/mcp", addr)
		sseSrv := server.NewSSEServer(s,
			server.WithBaseURL(""),
			server.WithStaticBasePath("/mcp"),
		)
		return sseSrv.Start(addr)
	default:
		return fmt.Errorf(
			"unsupported transport: %s (supported: stdio, http, sse)",
			transport,
		)
	}
}

// Module provides command runner
var Module = fx.Module("commands",
	fx.Provide(
		NewCommandRunner,
		NewProgressFunc,
	),
)
