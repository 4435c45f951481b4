package tilekernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitioner_SplitsToFitBudget(t *testing.T) {
	s := schema1D(1, 100, 100)
	sa := NewSubarray(s)
	require.NoError(t, sa.AddRange(0, IntCoord(Int64, 1), IntCoord(Int64, 100)))

	estimate := func(sa *Subarray, attrs []string) uint64 {
		return sa.CellNum() * 4 // int32 cells
	}

	p := NewPartitioner(sa, []string{"a0"}, 40, estimate) // budget fits 10 cells
	var total uint64
	for {
		part, ok, err := p.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.LessOrEqual(t, estimate(part, []string{"a0"}), uint64(40))
		total += part.CellNum()
	}
	assert.Equal(t, uint64(100), total)
}

func TestPartitioner_UnsplittableOverflow(t *testing.T) {
	s := schema1D(1, 100, 100)
	sa := NewSubarray(s)
	require.NoError(t, sa.AddRange(0, IntCoord(Int64, 5), IntCoord(Int64, 5)))

	estimate := func(sa *Subarray, attrs []string) uint64 { return 1000 }
	p := NewPartitioner(sa, []string{"a0"}, 1, estimate)

	_, _, err := p.Next()
	assert.ErrorIs(t, err, ErrUnsplittableOverflow)
}
