package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSquaredL2(t *testing.T) {
	assert.Equal(t, float32(0), SquaredL2([]float32{1, 0}, []float32{1, 0}))
	assert.Equal(t, float32(2), SquaredL2([]float32{1, 0}, []float32{0, 1}))
	assert.Equal(t, float32(4), SquaredL2([]float32{1, 0}, []float32{-1, 0}))
}

func TestSortNeighborsBreaksTiesByLabel(t *testing.T) {
	ns := []Neighbor{{Label: 2, Distance: 0}, {Label: 1, Distance: 0.5}, {Label: 0, Distance: 0}}
	SortNeighbors(ns)
	assert.Equal(t, []Neighbor{{Label: 0}, {Label: 2}, {Label: 1, Distance: 0.5}}, ns)
}

func TestPadNeighbors(t *testing.T) {
	ns := []Neighbor{{Label: 3, Distance: 1}}
	padded := PadNeighbors(ns, 3)
	assert.Equal(t, []Neighbor{{Label: 3, Distance: 1}, {Label: InvalidLabel}, {Label: InvalidLabel}}, padded)
	assert.Len(t, PadNeighbors(padded, 2), 2)
	assert.Nil(t, PadNeighbors(ns, 0))
}
