package tokenizer_test

import (
	"testing"

	"github.com/0x5457/decl-index/internal/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApproxCountsWords(t *testing.T) {
	c := tokenizer.Approx{}
	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 4, c.Count("Symmetric r → swap"))
}

func TestSum(t *testing.T) {
	assert.Equal(t, 5, tokenizer.Sum(tokenizer.Approx{}, []string{"a b", "", "c d e"}))
}

func TestTiktokenDeterministic(t *testing.T) {
	tk, err := tokenizer.NewTiktoken("text-embedding-3-large")
	require.NoError(t, err)

	n := tk.Count("theorem add_comm (a b : ℕ) : a + b = b + a")
	assert.Positive(t, n)
	assert.Equal(t, n, tk.Count("theorem add_comm (a b : ℕ) : a + b = b + a"))
	assert.Equal(t, 0, tk.Count(""))
}
