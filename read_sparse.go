package tilekernel

import (
	"encoding/binary"
	"math"
)

// read_sparse.go is the sparse read engine: per fragment it prunes tiles
// via the fragment's R-tree, decodes each candidate tile's coordinates,
// and feeds every cell whose coordinate falls inside the requested ranges
// into a CellQueue that reconciles across fragments in the schema's cell
// order (honouring Hilbert cell order via ArraySchema.CellOrderCmp).

type SparseReadEngine struct {
	schema *ArraySchema
	store  *TileStore
	frags  []*FragmentMetadata // newest-first
}

func NewSparseReadEngine(schema *ArraySchema, store *TileStore, frags []*FragmentMetadata) *SparseReadEngine {
	return &SparseReadEngine{schema: schema, store: store, frags: frags}
}

// candidateTile is one fragment/tile pair surviving the R-tree prune.
type candidateTile struct {
	fragRank int
	frag     *FragmentMetadata
	tileIdx  int
}

// prune finds every (fragment, tile) pair whose MBR overlaps sa's
// per-dimension ranges, across all fragments, using each fragment's own
// R-tree.
func (e *SparseReadEngine) prune(sa *Subarray) ([]candidateTile, error) {
	bounding := sa.Bounding()
	var out []candidateTile
	for rank, f := range e.frags {
		idxs, err := f.Overlaps(bounding)
		if err != nil {
			return nil, err
		}
		for _, idx := range idxs {
			out = append(out, candidateTile{fragRank: rank, frag: f, tileIdx: idx})
		}
	}
	return out, nil
}

// decodeCoords reads and unpacks a candidate tile's coordinate buffer into
// per-cell coordinate tuples, in on-disk cell order.
func (e *SparseReadEngine) decodeCoords(ct candidateTile) ([][]Coord, error) {
	raw, err := e.store.Fetch(ct.frag, "__coords", ct.tileIdx)
	if err != nil {
		return nil, err
	}

	rank := e.schema.Domain.Rank()
	cellSize := e.schema.CoordsSize()
	if cellSize == 0 {
		return nil, Fail(KindInternal, "sparse read over all-string domain unsupported", nil)
	}
	n := uint64(len(raw)) / cellSize

	out := make([][]Coord, n)
	for i := uint64(0); i < n; i++ {
		cell := raw[i*cellSize:]
		coords := make([]Coord, rank)
		off := 0
		for d := 0; d < rank; d++ {
			dim := e.schema.Domain.Dimensions[d]
			size := int(TypeSize(dim.Dtype))
			coords[d] = decodeCoordBytes(dim.Dtype, cell[off:off+size])
			off += size
		}
		out[i] = coords
	}
	return out, nil
}

func decodeCoordBytes(dt Datatype, b []byte) Coord {
	if IsFloat(dt) {
		if len(b) == 4 {
			bits := binary.LittleEndian.Uint32(b)
			return FloatCoord(dt, float64(math.Float32frombits(bits)))
		}
		bits := binary.LittleEndian.Uint64(b)
		return FloatCoord(dt, math.Float64frombits(bits))
	}
	var v int64
	switch len(b) {
	case 1:
		v = int64(int8(b[0]))
	case 2:
		v = int64(int16(binary.LittleEndian.Uint16(b)))
	case 4:
		v = int64(int32(binary.LittleEndian.Uint32(b)))
	default:
		v = int64(binary.LittleEndian.Uint64(b))
	}
	return IntCoord(dt, v)
}

// Run prunes, decodes, reconciles, and copies every cell of sa's requested
// ranges across attrs into coord, newest fragment wins at equal
// coordinates when the schema disallows duplicates. Stops (without error)
// the instant coord reports Incomplete.
func (e *SparseReadEngine) Run(sa *Subarray, attrs []string, coord *Coordinator) error {
	candidates, err := e.prune(sa)
	if err != nil {
		return err
	}

	bounding := sa.Bounding()
	// results are always emitted in sa's declared read layout (§4.7);
	// global-order/unordered reads fall back to the schema's own cell
	// order, which CellOrderCmp already resolves correctly including the
	// Hilbert case. Hilbert itself is rejected as a read layout at Submit,
	// so an explicit declared layout here is always row-major/column-major.
	cellLayout := readCellLayout(e.schema, sa.Layout())
	cmp := e.schema.CellOrderCmp
	if cellLayout != e.schema.CellOrder {
		cmp = func(a, b []Coord) int { return orderCmp(cellLayout, a, b) }
	}
	q := NewCellQueue(cmp)

	type decoded struct {
		ct     candidateTile
		coords [][]Coord
	}
	byCand := make([]decoded, len(candidates))
	for i, ct := range candidates {
		cs, err := e.decodeCoords(ct)
		if err != nil {
			return err
		}
		byCand[i] = decoded{ct: ct, coords: cs}

		for pos, c := range cs {
			if !coordsInRanges(c, bounding) {
				continue
			}
			q.Push(CellRef{Kind: SparsePopped, Coords: c, FragRank: ct.fragRank, TileIdx: ct.tileIdx, CellPos: uint64(pos)})
		}
	}

	for {
		ref, ok := q.Pop()
		if !ok {
			break
		}
		if !e.schema.AllowsDups {
			q.DrainDuplicates(ref.Coords, cmp)
		}

		owner := e.frags[ref.FragRank]
		for _, attr := range attrs {
			varSize, _ := e.schema.VarSize(attr)
			if varSize {
				if !e.copyVarCell(owner, attr, ref, coord) {
					return nil
				}
			} else {
				if !e.copyFixedCell(owner, attr, ref, coord) {
					return nil
				}
			}
		}
		coord.MarkResume(ref.Coords)
	}

	coord.Finish()
	return nil
}

func (e *SparseReadEngine) copyFixedCell(f *FragmentMetadata, attr string, ref CellRef, coord *Coordinator) bool {
	raw, err := e.store.Fetch(f, attr, ref.TileIdx)
	if err != nil {
		return true
	}
	dt, _ := e.schema.Type(attr)
	size := TypeSize(dt)
	start := ref.CellPos * size
	var cell []byte
	if start+size <= uint64(len(raw)) {
		cell = raw[start : start+size]
	} else {
		cell = make([]byte, size)
	}
	return coord.CopyFixed(attr, cell)
}

func (e *SparseReadEngine) copyVarCell(f *FragmentMetadata, attr string, ref CellRef, coord *Coordinator) bool {
	offsets, err := e.store.FetchOffsets(f, attr, ref.TileIdx)
	if err != nil {
		return true
	}
	values, err := e.store.Fetch(f, attr, ref.TileIdx)
	if err != nil {
		return true
	}

	n := uint64(len(offsets)) / 8
	start := binary.LittleEndian.Uint64(offsets[ref.CellPos*8:])
	var end uint64
	if ref.CellPos+1 < n {
		end = binary.LittleEndian.Uint64(offsets[(ref.CellPos+1)*8:])
	} else {
		end = uint64(len(values))
	}
	if end > uint64(len(values)) || start > end {
		return coord.CopyVar(attr, nil)
	}
	return coord.CopyVar(attr, values[start:end])
}

// coordsInRanges reports whether coords falls within ranges on every
// dimension.
func coordsInRanges(coords []Coord, ranges []Range) bool {
	for i, r := range ranges {
		if coords[i].Less(r.Lo) || r.Hi.Less(coords[i]) {
			return false
		}
	}
	return true
}
