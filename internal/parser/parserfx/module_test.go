package parserfx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/0x5457/decl-index/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestParserModule(t *testing.T) {
	var p parser.Parser
	app := fx.New(
		Module,
		fx.NopLogger,
		fx.Populate(&p),
	)
	require.NoError(t, app.Err())
	require.NotNil(t, p)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Mathlib", "Logic"), 0o755))
	src := "theorem not_not2 : ∀ p : Prop, ¬¬p → p := by\n  intro p h; exact Classical.byContradiction h\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "Mathlib", "Logic", "Basic.lean"), []byte(src), 0o644))

	records, err := p.ParseProject(root, "Logic")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Mathlib.Logic.Basic.not_not2", records[0].Decl)
	assert.Equal(t, records[0].Type, records[0].Text)
}
