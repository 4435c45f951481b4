package tilekernel

import (
	"math"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// Datatype is the scalar type of a dimension or attribute. It mirrors the
// subset of tiledb.Datatype values the engine actually plans and decodes
// against; the tiledb constants are reused directly rather than redeclared
// so that schema blobs stay wire-compatible with the FilterList/VFS
// collaborators in tiledb.go.
type Datatype = tiledb.Datatype

const (
	Int8    = tiledb.TILEDB_INT8
	Uint8   = tiledb.TILEDB_UINT8
	Int16   = tiledb.TILEDB_INT16
	Uint16  = tiledb.TILEDB_UINT16
	Int32   = tiledb.TILEDB_INT32
	Uint32  = tiledb.TILEDB_UINT32
	Int64   = tiledb.TILEDB_INT64
	Uint64  = tiledb.TILEDB_UINT64
	Float32 = tiledb.TILEDB_FLOAT32
	Float64 = tiledb.TILEDB_FLOAT64
	StringAscii = tiledb.TILEDB_STRING_ASCII
)

// TypeSize returns the fixed byte width of one scalar value of dtype.
// StringAscii has no fixed size; callers must check IsVar beforehand.
func TypeSize(dtype Datatype) uint64 {
	switch dtype {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	case StringAscii:
		return 1
	default:
		return 8
	}
}

// IsIntegral reports whether dtype is one of the fixed-width integer kinds.
func IsIntegral(dtype Datatype) bool {
	switch dtype {
	case Int8, Uint8, Int16, Uint16, Int32, Uint32, Int64, Uint64:
		return true
	default:
		return false
	}
}

// IsFloat reports whether dtype is float32 or float64.
func IsFloat(dtype Datatype) bool {
	return dtype == Float32 || dtype == Float64
}

// FillValue returns the schema-default fill value for dtype as a float64
// carrier; dense reads widen/narrow it to the attribute's concrete type.
// Treated as schema-declared fill with this default.
func FillValue(dtype Datatype) float64 {
	switch dtype {
	case Int8:
		return float64(math.MinInt8)
	case Int16:
		return float64(math.MinInt16)
	case Int32:
		return float64(math.MinInt32)
	case Int64:
		return float64(math.MinInt64)
	case Uint8, Uint16, Uint32, Uint64:
		return 0
	case Float32, Float64:
		return math.NaN()
	case StringAscii:
		return 0 // 0x00
	default:
		return math.NaN()
	}
}
