package tilekernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dimInt(name string, lo, hi, extent int64) Dimension {
	return Dimension{Name: name, Dtype: Int64, Lo: IntCoord(Int64, lo), Hi: IntCoord(Int64, hi), Extent: IntCoord(Int64, extent)}
}

func TestDimension_NumTiles(t *testing.T) {
	d := dimInt("d0", 1, 10, 5)
	assert.Equal(t, uint64(2), d.NumTiles())

	// last tile clipped: span 13 over extent 5 => 3 tiles, last partial
	d2 := dimInt("d0", 1, 13, 5)
	assert.Equal(t, uint64(3), d2.NumTiles())
}

func TestDomain_AddDimension_RejectsBadBounds(t *testing.T) {
	dom := &Domain{}
	err := dom.AddDimension(dimInt("d0", 10, 1, 5))
	require.Error(t, err)
}

func TestArraySchema_CellSize(t *testing.T) {
	s := NewArraySchema(Dense)
	require.NoError(t, s.Domain.AddDimension(dimInt("d0", 1, 10, 5)))
	s.AddAttribute(Attribute{Name: "a0", Dtype: Int32, CellValNum: 1})
	s.AddAttribute(Attribute{Name: "a1", Dtype: Float64, CellValNum: VarNum})

	size, err := s.CellSize("a0")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), size)

	varSize, err := s.VarSize("a1")
	require.NoError(t, err)
	assert.True(t, varSize)

	_, err = s.CellSize("missing")
	assert.ErrorIs(t, err, ErrUnknownName)
}

func TestArraySchema_Check_HilbertRules(t *testing.T) {
	s := NewArraySchema(Dense)
	require.NoError(t, s.Domain.AddDimension(dimInt("d0", 1, 10, 5)))
	s.AddAttribute(Attribute{Name: "a0", Dtype: Int32, CellValNum: 1})
	s.CellOrder = Hilbert

	err := s.Check()
	assert.ErrorIs(t, err, ErrInvalidLayout)

	s2 := NewArraySchema(Sparse)
	require.NoError(t, s2.Domain.AddDimension(dimInt("d0", 1, 10, 5)))
	s2.AddAttribute(Attribute{Name: "a0", Dtype: Int32, CellValNum: 1})
	s2.TileOrder = Hilbert
	err = s2.Check()
	assert.ErrorIs(t, err, ErrInvalidLayout)
}

func TestArraySchema_CoordsSize(t *testing.T) {
	s := NewArraySchema(Sparse)
	require.NoError(t, s.Domain.AddDimension(dimInt("d0", 1, 10, 5)))
	d1 := Dimension{Name: "d1", Dtype: Float64, Lo: FloatCoord(Float64, 0), Hi: FloatCoord(Float64, 100), Extent: FloatCoord(Float64, 10)}
	require.NoError(t, s.Domain.AddDimension(d1))
	assert.Equal(t, uint64(16), s.CoordsSize())
}
