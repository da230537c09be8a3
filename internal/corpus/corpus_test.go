package corpus

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/0x5457/decl-index/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCountLines(t *testing.T) {
	cases := map[string]int{
		"":               0,
		"a\n":            1,
		"a\nb\n":         2,
		"a\nb":           2,
		"a\n\nb\n":       3,
		"{\"text\":\"\"}": 1,
	}
	for content, want := range cases {
		n, err := CountLines(writeFile(t, content))
		require.NoError(t, err)
		assert.Equal(t, want, n, "content %q", content)
	}
}

func TestReaderStreamsInOrder(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, Write(&sb, []models.Record{
		{ID: 0, Decl: "Nat.succ_le", Type: "a < b", Doc: "", Text: "a < b"},
		{ID: 1, Decl: "Nat.le_refl", Type: "a ≤ a", Doc: "reflexivity", Text: "a ≤ a\nreflexivity"},
	}))
	sb.WriteString(`{"text": ""}` + "\n")

	r, err := Open(writeFile(t, sb.String()))
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	var got []models.Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, rec)
	}
	require.Len(t, got, 3)
	assert.Equal(t, "Nat.succ_le", got[0].Decl)
	assert.Equal(t, "a ≤ a\nreflexivity", got[1].Text)
	assert.Equal(t, "", got[2].Text)
	assert.Equal(t, 3, r.Line())
}

func TestReaderRejectsMissingText(t *testing.T) {
	r, err := Open(writeFile(t, `{"decl":"x"}`+"\n"))
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	_, err = r.Next()
	assert.ErrorIs(t, err, ErrMissingText)
}

func TestReaderRejectsBadJSON(t *testing.T) {
	r, err := Open(writeFile(t, "not json\n"))
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	_, err = r.Next()
	assert.ErrorContains(t, err, "line 1")
}
