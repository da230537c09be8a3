package parserfx

import (
	"github.com/0x5457/decl-index/internal/parser"
	"github.com/0x5457/decl-index/internal/parser/leanparser"
	"go.uber.org/fx"
)

// NewParser provides the Lean declaration extractor behind the Parser
// interface used by the extract command.
func NewParser() parser.Parser {
	return leanparser.New()
}

// Module provides the declaration parser
var Module = fx.Module("parser",
	fx.Provide(NewParser),
)
