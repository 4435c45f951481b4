package tilekernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schema1D(lo, hi, extent int64) *ArraySchema {
	s := NewArraySchema(Dense)
	_ = s.Domain.AddDimension(dimInt("d0", lo, hi, extent))
	s.AddAttribute(Attribute{Name: "a0", Dtype: Int32, CellValNum: 1})
	return s
}

func TestSubarray_AddRange_OOB(t *testing.T) {
	s := schema1D(1, 10, 5)
	sa := NewSubarray(s)
	err := sa.AddRange(0, IntCoord(Int64, 11), IntCoord(Int64, 20))
	assert.ErrorIs(t, err, ErrOOB)
}

func TestSubarray_AddRange_InvalidRange(t *testing.T) {
	s := schema1D(1, 10, 5)
	sa := NewSubarray(s)
	err := sa.AddRange(0, IntCoord(Int64, 8), IntCoord(Int64, 2))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func schemaFloat1D(lo, hi float64) *ArraySchema {
	s := NewArraySchema(Dense)
	d := Dimension{Name: "d0", Dtype: Float64, Lo: FloatCoord(Float64, lo), Hi: FloatCoord(Float64, hi)}
	_ = s.Domain.AddDimension(d)
	s.AddAttribute(Attribute{Name: "a0", Dtype: Float64, CellValNum: 1})
	return s
}

func TestSubarray_AddRange_NaNRejected(t *testing.T) {
	s := schemaFloat1D(-10, 10)
	sa := NewSubarray(s)
	err := sa.AddRange(0, FloatCoord(Float64, math.NaN()), FloatCoord(Float64, 5))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestSubarray_AddRange_InfRejected(t *testing.T) {
	s := schemaFloat1D(-10, 10)
	sa := NewSubarray(s)
	err := sa.AddRange(0, FloatCoord(Float64, 0), FloatCoord(Float64, math.Inf(1)))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestSubarray_AddRange_OOB_WarnClips(t *testing.T) {
	s := schema1D(1, 10, 5)
	sa := NewSubarray(s)
	sa.SetConfig(ConfigReadRangeOOB, "warn")

	err := sa.AddRange(0, IntCoord(Int64, 5), IntCoord(Int64, 20))
	require.NoError(t, err)

	rs := sa.RangesForDim(0)
	require.Len(t, rs, 1)
	assert.Equal(t, int64(5), rs[0].Lo.I)
	assert.Equal(t, int64(10), rs[0].Hi.I)
}

func TestSubarray_AddRange_OOB_WarnFullyOutsideIsNoOp(t *testing.T) {
	s := schema1D(1, 10, 5)
	sa := NewSubarray(s)
	sa.SetConfig(ConfigReadRangeOOB, "warn")

	err := sa.AddRange(0, IntCoord(Int64, 11), IntCoord(Int64, 20))
	require.NoError(t, err)
	assert.Empty(t, sa.ranges[0])
}

func TestSubarray_RangesForDim_DefaultsToFullDomain(t *testing.T) {
	s := schema1D(1, 10, 5)
	sa := NewSubarray(s)
	rs := sa.RangesForDim(0)
	require.Len(t, rs, 1)
	assert.Equal(t, int64(1), rs[0].Lo.I)
	assert.Equal(t, int64(10), rs[0].Hi.I)
}

func TestSubarray_CellNum(t *testing.T) {
	s := schema1D(1, 10, 5)
	sa := NewSubarray(s)
	require.NoError(t, sa.AddRange(0, IntCoord(Int64, 3), IntCoord(Int64, 6)))
	assert.Equal(t, uint64(4), sa.CellNum())
}

func TestSubarray_Split(t *testing.T) {
	s := schema1D(1, 10, 5)
	sa := NewSubarray(s)
	require.NoError(t, sa.AddRange(0, IntCoord(Int64, 1), IntCoord(Int64, 10)))

	left, right, err := sa.Split(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), left.CellNum()+right.CellNum())
}

func TestSubarray_Split_Unsplittable(t *testing.T) {
	s := schema1D(1, 10, 5)
	sa := NewSubarray(s)
	require.NoError(t, sa.AddRange(0, IntCoord(Int64, 5), IntCoord(Int64, 5)))
	_, _, err := sa.Split(0)
	assert.ErrorIs(t, err, ErrUnsplittableOverflow)
}
