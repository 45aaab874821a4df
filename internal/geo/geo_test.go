package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCode_FixedPrecision(t *testing.T) {
	t.Parallel()

	// Downtown San Francisco.
	code := EncodeCode(37.7749, -122.4194, 4)
	require.Len(t, code, 4)
	assert.Equal(t, "9q8y", code)

	// Zero precision falls back to the default.
	assert.Len(t, EncodeCode(37.7749, -122.4194, 0), DefaultCodePrecision)
}

func TestSearchCells_IncludesCenterAndNeighbors(t *testing.T) {
	t.Parallel()

	cells := SearchCells(37.7749, -122.4194, 4)
	require.Len(t, cells, 9)
	assert.Equal(t, "9q8y", cells[0])

	seen := make(map[string]bool)
	for _, c := range cells {
		assert.Len(t, c, 4)
		assert.False(t, seen[c], "cells must be distinct")
		seen[c] = true
	}
}

func TestDistanceMiles(t *testing.T) {
	t.Parallel()

	// SF to LA is roughly 347 miles.
	d := DistanceMiles(37.7749, -122.4194, 34.0522, -118.2437)
	assert.InDelta(t, 347, d, 5)

	// Same point is zero.
	assert.InDelta(t, 0, DistanceMiles(40.0, -70.0, 40.0, -70.0), 1e-9)
}
