package matrix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePreSizesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "vecs.f32")
	w, err := Create(path, 5, 3)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5*3*4), st.Size())
}

func TestWriteAndReadRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vecs.f32")
	w, err := Create(path, 4, 2)
	require.NoError(t, err)
	require.NoError(t, w.WriteRows(0, [][]float32{{1, 2}, {3, 4}}))
	require.NoError(t, w.WriteRows(2, [][]float32{{5, 6}}))
	// out of order write seeks back
	require.NoError(t, w.WriteRows(3, [][]float32{{7, 8}}))
	require.NoError(t, w.WriteRows(1, [][]float32{{-3, -4}}))
	require.NoError(t, w.Close())

	r, err := Open(path, 2)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	assert.Equal(t, 4, r.Rows())

	rows, err := r.ReadRows(0, 10)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}, {-3, -4}, {5, 6}, {7, 8}}, rows)

	tail, err := r.ReadRows(3, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{7, 8}}, tail)

	none, err := r.ReadRows(4, 2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWriteRowsRejectsBadShape(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "vecs.f32"), 2, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	assert.ErrorIs(t, w.WriteRows(1, [][]float32{{1, 2}, {3, 4}}), ErrShape)
	assert.ErrorIs(t, w.WriteRows(0, [][]float32{{1, 2, 3}}), ErrShape)
}

func TestOpenRejectsPartialRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vecs.f32")
	require.NoError(t, os.WriteFile(path, make([]byte, 10), 0o644))
	_, err := Open(path, 2)
	assert.ErrorIs(t, err, ErrShape)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.f32"), 2)
	assert.Error(t, err)
}
