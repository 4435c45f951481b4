package tilekernel

import "encoding/binary"

// writer_dense.go is the dense write path: given a caller's subarray and
// column-major-filled attribute buffers, it computes the tile-by-tile copy
// plan (which input byte range maps to which position inside which output
// tile), pads any partially-written tile with the attribute's fill value,
// and hands each finished tile to the filter pipeline before it's staged
// for the fragment writer.

// CopyPlanEntry describes one contiguous run to copy from a caller's input
// buffer into a specific tile's output position.
type CopyPlanEntry struct {
	TileCoords []int64
	SrcOffset  uint64
	DstPos     uint64 // cell position within the destination tile
	Len        uint64 // cell count
}

// DenseTiler computes copy plans for a write against sa and produces the
// finished, fill-padded tile buffers ready for the filter pipeline.
type DenseTiler struct {
	schema *ArraySchema
}

func NewDenseTiler(schema *ArraySchema) *DenseTiler {
	return &DenseTiler{schema: schema}
}

// tileDomainOf mirrors DenseReadEngine.planTileDomain but is kept local to
// the writer: the write path always operates over the caller's subarray
// directly (global-order writes require sa to exactly tile-align; see
// CheckGlobalOrder below), with no partitioner splitting involved. Tile iteration
// always follows the schema's own declared tile order here regardless of
// sa's read-layout setting — that setting only governs how a *read*
// reorders its emission, never how a write's tiles are laid out on disk.
func (w *DenseTiler) tileDomainOf(sa *Subarray) []tileDomainCoord {
	eng := &DenseReadEngine{schema: w.schema}
	writeOrder := sa.clone()
	writeOrder.SetLayout(GlobalOrderLayout)
	return eng.planTileDomain(writeOrder)
}

// CheckGlobalOrder verifies that sa's ranges are tile-aligned on every
// dimension, the precondition for a global-order write: IncompleteWrite if
// a dimension's range doesn't start and end on a tile boundary (except
// the last tile of the domain, which may be clipped).
func (w *DenseTiler) CheckGlobalOrder(sa *Subarray) error {
	for dim, d := range w.schema.Domain.Dimensions {
		for _, r := range sa.RangesForDim(dim) {
			if (r.Lo.I-d.Lo.I)%d.Extent.I != 0 {
				return ErrIncompleteWrite
			}
			isLastTile := r.Hi.I == d.Hi.I
			if !isLastTile && (r.Hi.I-d.Lo.I+1)%d.Extent.I != 0 {
				return ErrIncompleteWrite
			}
		}
	}
	return nil
}

// BuildCopyPlan maps input cells (laid out in the schema's cell order
// across sa's full range) onto per-tile destination positions.
func (w *DenseTiler) BuildCopyPlan(sa *Subarray) []CopyPlanEntry {
	tiles := w.tileDomainOf(sa)
	var plan []CopyPlanEntry
	var srcCursor uint64

	for _, td := range tiles {
		coords := make([]Coord, len(td.cellRange))
		for i, r := range td.cellRange {
			coords[i] = r.Lo
		}
		runStart := srcCursor
		var runLen uint64
		dstStart, _ := w.schema.GetCellPos(coords)

		for {
			runLen++
			next, more := w.schema.GetNextCellCoords(td.cellRange, coords)
			if !more {
				break
			}
			// contiguous within the tile as long as cell order walk stays
			// sequential in destination position, which GetCellPos/
			// GetNextCellCoords guarantee by construction for a single
			// tile's local cell order.
			coords = next
		}

		plan = append(plan, CopyPlanEntry{
			TileCoords: td.tileCoords,
			SrcOffset:  runStart,
			DstPos:     dstStart,
			Len:        runLen,
		})
		srcCursor += runLen
	}
	return plan
}

// MaterializeTile copies src (the caller's full attribute buffer, indexed
// by cell, cellSize bytes each) into one tile-sized output buffer per
// plan entries belonging to tileCoords, padding any cell the plan doesn't
// cover with attr's fill value.
func (w *DenseTiler) MaterializeTile(tileCoords []int64, cellRange []Range, plan []CopyPlanEntry, src []byte, cellSize uint64, dt Datatype) []byte {
	tileCells := uint64(1)
	for _, r := range cellRange {
		tileCells *= r.Span()
	}
	out := make([]byte, tileCells*cellSize)

	fill := fillBytes(dt, cellSize)
	for i := uint64(0); i < tileCells; i++ {
		copy(out[i*cellSize:], fill)
	}

	for _, e := range plan {
		if !tileCoordsEqual(e.TileCoords, tileCoords) {
			continue
		}
		srcStart := e.SrcOffset * cellSize
		dstStart := e.DstPos * cellSize
		n := e.Len * cellSize
		copy(out[dstStart:dstStart+n], src[srcStart:srcStart+n])
	}
	return out
}

func tileCoordsEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// BuildVarOffsets converts a caller-supplied offsets buffer (byte or
// element mode, per schema.OffsetsElements) into absolute byte boundaries
// into values, appending the conventional extra trailing element
// (values length) when schema.OffsetsExtraElement is set.
func (w *DenseTiler) BuildVarOffsets(offsets []uint64, valuesLen uint64, cellSize uint64) []byte {
	n := len(offsets)
	extra := 0
	if w.schema.OffsetsExtraElement {
		extra = 1
	}
	out := make([]byte, (n+extra)*8)
	for i, o := range offsets {
		b := o
		if w.schema.OffsetsElements {
			b = o * cellSize
		}
		binary.LittleEndian.PutUint64(out[i*8:], b)
	}
	if extra == 1 {
		binary.LittleEndian.PutUint64(out[n*8:], valuesLen)
	}
	return out
}
