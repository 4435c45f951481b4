package tilekernel

import (
	"encoding/binary"
	"math"

	"github.com/samber/lo"
)

// read_dense.go is the dense read engine: it walks the subarray's tile
// domain in the subarray's declared layout (the schema's tile order for
// global-order/unordered reads), and within each tile walks cells in the
// matching cell layout, resolving each cell against the newest fragment that
// actually wrote it and falling back to the attribute's fill value where
// no fragment ever did.

// DenseReadEngine executes one dense Subarray against a fragment set
// already sorted newest-first (see SortFragmentsNewestFirst).
type DenseReadEngine struct {
	schema *ArraySchema
	store  *TileStore
	frags  []*FragmentMetadata // newest-first
}

func NewDenseReadEngine(schema *ArraySchema, store *TileStore, frags []*FragmentMetadata) *DenseReadEngine {
	return &DenseReadEngine{schema: schema, store: store, frags: frags}
}

// tileDomainCoord is one tile's coordinate, plus its per-dimension cell
// extent clipped against the array domain (the last tile along a
// dimension may be partial).
type tileDomainCoord struct {
	tileCoords []int64
	cellRange  []Range
}

// planTileDomain enumerates every tile coordinate intersecting sa's
// bounding ranges, in the order readTileLayout resolves, clipping each tile's cell
// range to both the array domain and sa's requested ranges.
func (e *DenseReadEngine) planTileDomain(sa *Subarray) []tileDomainCoord {
	bounding := sa.Bounding()
	rank := e.schema.Domain.Rank()

	axisTiles := make([][]tileDomainCoord, rank)
	for dim := 0; dim < rank; dim++ {
		d := e.schema.Domain.Dimensions[dim]
		lo0 := (bounding[dim].Lo.I - d.Lo.I) / d.Extent.I
		hi0 := (bounding[dim].Hi.I - d.Lo.I) / d.Extent.I

		axis := make([]tileDomainCoord, 0, hi0-lo0+1)
		for t := lo0; t <= hi0; t++ {
			tileLo := d.Lo.I + t*d.Extent.I
			tileHi := tileLo + d.Extent.I - 1
			if tileHi > d.Hi.I {
				tileHi = d.Hi.I
			}
			clipLo, clipHi := tileLo, tileHi
			if bounding[dim].Lo.I > clipLo {
				clipLo = bounding[dim].Lo.I
			}
			if bounding[dim].Hi.I < clipHi {
				clipHi = bounding[dim].Hi.I
			}
			axis = append(axis, tileDomainCoord{
				tileCoords: []int64{t},
				cellRange:  []Range{{Lo: IntCoord(d.Dtype, clipLo), Hi: IntCoord(d.Dtype, clipHi)}},
			})
		}
		axisTiles[dim] = axis
	}

	// cross product across dimensions, combined in the schema's tile
	// order so global-order emission falls out of iterating the result
	// slice in order.
	combos := []tileDomainCoord{{tileCoords: []int64{}, cellRange: []Range{}}}
	for dim := 0; dim < rank; dim++ {
		next := make([]tileDomainCoord, 0, len(combos)*len(axisTiles[dim]))
		for _, c := range combos {
			for _, a := range axisTiles[dim] {
				next = append(next, tileDomainCoord{
					tileCoords: append(append([]int64(nil), c.tileCoords...), a.tileCoords...),
					cellRange:  append(append([]Range(nil), c.cellRange...), a.cellRange...),
				})
			}
		}
		combos = next
	}

	tileCoordVals := lo.Map(combos, func(c tileDomainCoord, _ int) []Coord {
		out := make([]Coord, rank)
		for i, t := range c.tileCoords {
			out[i] = IntCoord(e.schema.Domain.Dimensions[i].Dtype, t*e.schema.Domain.Dimensions[i].Extent.I+e.schema.Domain.Dimensions[i].Lo.I)
		}
		return out
	})
	// tiles are walked in sa's declared layout (§4.6: "results are always
	// emitted in the subarray's declared layout"); global-order/unordered
	// reads fall back to the schema's own tile order.
	tileLayout := readTileLayout(e.schema, sa.Layout())
	sortCombosByLayout(tileLayout, combos, tileCoordVals)

	return combos
}

// readTileLayout resolves the tile traversal order a read should use: an
// explicit row-major/column-major read layout overrides the schema's own
// tile order; global-order (and any other non-row/column layout, e.g.
// unordered) defers to the schema's declared tile order.
func readTileLayout(schema *ArraySchema, declared Layout) Layout {
	switch declared {
	case RowMajor, ColumnMajor:
		return declared
	default:
		return schema.TileOrder
	}
}

// readCellLayout is readTileLayout's counterpart for within-tile cell walk
// order, deferring to the schema's declared cell order (which may be
// Hilbert, on sparse arrays) for global-order/unordered reads.
func readCellLayout(schema *ArraySchema, declared Layout) Layout {
	switch declared {
	case RowMajor, ColumnMajor:
		return declared
	default:
		return schema.CellOrder
	}
}

func sortCombosByLayout(layout Layout, combos []tileDomainCoord, coords [][]Coord) {
	// stable insertion sort over an index permutation, since
	// combos must move in lockstep with their coordinate tuples
	idx := make([]int, len(combos))
	for i := range idx {
		idx[i] = i
	}
	for i := 1; i < len(idx); i++ {
		j := i
		for j > 0 && orderCmp(layout, coords[idx[j-1]], coords[idx[j]]) > 0 {
			idx[j-1], idx[j] = idx[j], idx[j-1]
			j--
		}
	}
	orig := append([]tileDomainCoord(nil), combos...)
	for i, oi := range idx {
		combos[i] = orig[oi]
	}
}

// fragmentTileIndex finds, for fragment f, the tile index whose MBR
// contains cellRange exactly (dense fragments store one tile per tile
// coordinate, so this is an equality match rather than an overlap test).
func fragmentTileIndex(f *FragmentMetadata, cellRange []Range) (int, bool) {
	for i, t := range f.Tiles {
		if mbrEqual(t.MBR, cellRange) {
			return i, true
		}
	}
	return 0, false
}

func mbrEqual(m MBR, ranges []Range) bool {
	if len(m.Ranges) != len(ranges) {
		return false
	}
	for i := range ranges {
		if m.Ranges[i].Lo.Compare(ranges[i].Lo) != 0 || m.Ranges[i].Hi.Compare(ranges[i].Hi) != 0 {
			return false
		}
	}
	return true
}

// Run walks the planned tile domain and copies every requested attribute's
// cells into coord's buffers via CopyFixed/CopyVar, newest fragment wins
// per tile, synthetic fill for tiles no fragment wrote. It stops (without
// error) the moment coord reports Incomplete, leaving LastCell at the
// resume point.
func (e *DenseReadEngine) Run(sa *Subarray, attrs []string, coord *Coordinator) error {
	tiles := e.planTileDomain(sa)
	cellLayout := readCellLayout(e.schema, sa.Layout())

	for _, td := range tiles {
		owner, tileIdx, found := e.ownerFragment(td.cellRange)

		for _, attr := range attrs {
			dt, err := e.schema.Type(attr)
			if err != nil {
				return err
			}
			size, _ := e.schema.CellSize(attr)
			if size == 0 {
				size = TypeSize(dt)
			}

			var raw []byte
			if found {
				raw, err = e.store.Fetch(owner, attr, tileIdx)
				if err != nil {
					return err
				}
			}

			if !e.emitTileCells(td.cellRange, attr, raw, size, dt, found, cellLayout, coord) {
				return nil
			}
		}
	}
	coord.Finish()
	return nil
}

// ownerFragment returns the newest fragment (this engine's frags is
// already newest-first) whose tile index matches cellRange, and that
// tile's index within the fragment.
func (e *DenseReadEngine) ownerFragment(cellRange []Range) (*FragmentMetadata, int, bool) {
	for _, f := range e.frags {
		if idx, ok := fragmentTileIndex(f, cellRange); ok {
			return f, idx, true
		}
	}
	return nil, 0, false
}

// emitTileCells walks cellRange in cellLayout (the subarray's declared read
// layout, or the schema's own cell order for global-order/unordered reads),
// copying each cell's bytes (or the fill value, if the tile was never
// written) into coord. Physical byte position within the tile is always
// resolved via GetCellPos, which uses the schema's actual on-disk cell
// order regardless of cellLayout — only the emission sequence changes.
// Returns false the moment a copy reports buffer overflow.
func (e *DenseReadEngine) emitTileCells(cellRange []Range, attr string, raw []byte, cellSize uint64, dt Datatype, found bool, cellLayout Layout, coord *Coordinator) bool {
	coords := make([]Coord, len(cellRange))
	for i, r := range cellRange {
		coords[i] = r.Lo
	}

	fill := fillBytes(dt, cellSize)

	for {
		var cellBytes []byte
		if found {
			pos, err := e.schema.GetCellPos(coords)
			if err != nil {
				return true // programming error upstream; dense cells always resolve
			}
			start := pos * cellSize
			if start+cellSize <= uint64(len(raw)) {
				cellBytes = raw[start : start+cellSize]
			} else {
				cellBytes = fill
			}
		} else {
			cellBytes = fill
		}

		if !coord.CopyFixed(attr, cellBytes) {
			return false
		}
		coord.MarkResume(coords)

		next, more := nextCellCoordsInLayout(cellLayout, cellRange, coords)
		if !more {
			return true
		}
		coords = next
	}
}

func fillBytes(dt Datatype, size uint64) []byte {
	out := make([]byte, size)
	switch dt {
	case Float32:
		binary.LittleEndian.PutUint32(out, math.Float32bits(float32(math.NaN())))
	case Float64:
		binary.LittleEndian.PutUint64(out, math.Float64bits(math.NaN()))
	case Uint8, Uint16, Uint32, Uint64, StringAscii:
		// zero fill is correct for every unsigned width and for the
		// 0x00 char convention.
	default:
		v := int64(FillValue(dt))
		switch size {
		case 1:
			out[0] = byte(v)
		case 2:
			binary.LittleEndian.PutUint16(out, uint16(v))
		case 4:
			binary.LittleEndian.PutUint32(out, uint32(v))
		case 8:
			binary.LittleEndian.PutUint64(out, uint64(v))
		}
	}
	return out
}
