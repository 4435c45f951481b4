package tilekernel

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCoordBytes_Int32(t *testing.T) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(int32(-7)))
	c := decodeCoordBytes(Int32, b)
	assert.Equal(t, int64(-7), c.I)
}

func TestDecodeCoordBytes_Float32(t *testing.T) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(3.5))
	c := decodeCoordBytes(Float32, b)
	assert.Equal(t, float64(3.5), c.F)
}

func TestDecodeCoordBytes_Float64(t *testing.T) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(-12.25))
	c := decodeCoordBytes(Float64, b)
	assert.Equal(t, -12.25, c.F)
}

func TestCoordsInRanges(t *testing.T) {
	ranges := []Range{rng(0, 10), rng(0, 10)}
	assert.True(t, coordsInRanges([]Coord{IntCoord(Int64, 5), IntCoord(Int64, 5)}, ranges))
	assert.False(t, coordsInRanges([]Coord{IntCoord(Int64, 11), IntCoord(Int64, 5)}, ranges))
}

func TestSparseReadEngine_Prune_UsesFragmentRTree(t *testing.T) {
	s := schema1D(1, 100, 100)
	s.ArrayType = Sparse

	fm := NewFragmentMetadata("f1", false, time.Unix(0, 0), time.Unix(0, 1))
	fm.Tiles = []TileInfo{
		{MBR: MBR{Ranges: []Range{rng(1, 10)}}, Offset: map[string]uint64{}, Size: map[string]uint64{}},
		{MBR: MBR{Ranges: []Range{rng(50, 60)}}, Offset: map[string]uint64{}, Size: map[string]uint64{}},
	}
	require.NoError(t, fm.BuildRTree())

	e := NewSparseReadEngine(s, nil, []*FragmentMetadata{fm})
	sa := NewSubarray(s)
	require.NoError(t, sa.AddRange(0, IntCoord(Int64, 5), IntCoord(Int64, 15)))

	cands, err := e.prune(sa)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, 0, cands[0].tileIdx)
}

// TestReadCellLayout_DefersToSchemaForGlobalOrder covers the default
// (global-order/unordered) resolution: a sparse schema declared with
// hilbert cell order keeps it when the read doesn't explicitly override
// with row-major/column-major.
func TestReadCellLayout_DefersToSchemaForGlobalOrder(t *testing.T) {
	s := schema1D(1, 100, 100)
	s.ArrayType = Sparse
	s.CellOrder = Hilbert

	assert.Equal(t, Hilbert, readCellLayout(s, GlobalOrderLayout))
	assert.Equal(t, RowMajor, readCellLayout(s, RowMajor))
	assert.Equal(t, ColumnMajor, readCellLayout(s, ColumnMajor))
}
