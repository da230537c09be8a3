// Package storagetest holds shared fixtures for vector index tests.
package storagetest

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x5457/decl-index/internal/storage"
)

// ClusteredVectors returns n seeded unit vectors scattered around a few
// centroids. Every zeroEvery-th row is the zero vector that empty texts embed
// to; zeroEvery <= 0 disables them.
func ClusteredVectors(seed uint64, n, dim, clusters, zeroEvery int) [][]float32 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	centroids := make([][]float64, clusters)
	for c := range centroids {
		centroids[c] = make([]float64, dim)
		for j := range centroids[c] {
			centroids[c][j] = rng.NormFloat64()
		}
	}

	vecs := make([][]float32, n)
	for i := range vecs {
		vecs[i] = make([]float32, dim)
		if zeroEvery > 0 && i%zeroEvery == zeroEvery-1 {
			continue
		}
		c := centroids[rng.IntN(clusters)]
		raw := make([]float64, dim)
		var norm float64
		for j := range raw {
			raw[j] = c[j] + 0.35*rng.NormFloat64()
			norm += raw[j] * raw[j]
		}
		norm = math.Sqrt(norm)
		for j := range raw {
			vecs[i][j] = float32(raw[j] / norm)
		}
	}
	return vecs
}

// ZeroRows returns the rows of vecs that are all zero, ascending.
func ZeroRows(vecs [][]float32) []int64 {
	var rows []int64
	for r, v := range vecs {
		if isZero(v) {
			rows = append(rows, int64(r))
		}
	}
	return rows
}

func isZero(v []float32) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}

// AssertSelfNearest checks that every step-th non-zero row of vecs, used as a
// query, comes back first at distance ~0, and that the zero query returns
// every zero row first in row order.
func AssertSelfNearest(t *testing.T, idx storage.VectorIndex, vecs [][]float32, step int) {
	t.Helper()
	ctx := context.Background()

	misses := 0
	for r := 0; r < len(vecs); r += step {
		if isZero(vecs[r]) {
			continue
		}
		got, err := idx.Search(ctx, vecs[r], 10)
		require.NoError(t, err)
		require.Len(t, got, 10)
		if got[0].Label != int64(r) || got[0].Distance >= 1e-5 {
			misses++
			t.Logf("row %d: nearest is row %d at %.6f", r, got[0].Label, got[0].Distance)
		}
	}
	assert.Zero(t, misses, "rows not nearest to themselves")

	zeros := ZeroRows(vecs)
	if len(zeros) == 0 {
		return
	}
	got, err := idx.Search(ctx, make([]float32, len(vecs[0])), len(zeros)+1)
	require.NoError(t, err)
	require.Len(t, got, len(zeros)+1)
	labels := make([]int64, len(zeros))
	for i := range zeros {
		labels[i] = got[i].Label
		assert.Less(t, got[i].Distance, float32(1e-5))
	}
	assert.Equal(t, zeros, labels)
	assert.InDelta(t, 1.0, got[len(zeros)].Distance, 1e-4)
}
