package tilekernel

// comparator.go implements the ArraySchema accessors: the cell
// and tile order comparators, cell-position linearisation within a tile,
// cell successor/predecessor, and global tile id computation. All are
// O(k) in the domain rank; each call switches on the schema's layout.

// orderCmp compares two coordinate tuples lexicographically in the given
// layout's dimension priority. RowMajor compares dim 0 first (slowest
// varying); ColumnMajor compares the last dim first.
func orderCmp(layout Layout, a, b []Coord) int {
	n := len(a)
	switch layout {
	case ColumnMajor:
		for i := n - 1; i >= 0; i-- {
			if c := a[i].Compare(b[i]); c != 0 {
				return c
			}
		}
		return 0
	default: // RowMajor; Hilbert cell order is compared via HilbertValue, see hilbert.go
		for i := 0; i < n; i++ {
			if c := a[i].Compare(b[i]); c != 0 {
				return c
			}
		}
		return 0
	}
}

// CellOrderCmp is a total order over coordinate tuples consistent with the
// schema's declared cell order.
func (s *ArraySchema) CellOrderCmp(a, b []Coord) int {
	if s.CellOrder == Hilbert {
		ha, _ := HilbertValue(&s.Domain, a)
		hb, _ := HilbertValue(&s.Domain, b)
		switch {
		case ha < hb:
			return -1
		case ha > hb:
			return 1
		default:
			return 0
		}
	}
	return orderCmp(s.CellOrder, a, b)
}

// TileOrderCmp is a total order over *tile* coordinate tuples consistent
// with the schema's declared tile order. Tile order is never Hilbert
// (enforced by ArraySchema.Check), so this is always a plain lexicographic
// comparison.
func (s *ArraySchema) TileOrderCmp(a, b []Coord) int {
	return orderCmp(s.TileOrder, a, b)
}

// tileLocalIndex returns the cell's 0-based coordinate within its own
// tile, per dimension.
func (s *ArraySchema) tileLocalIndex(dim int, coord Coord) int64 {
	d := s.Domain.Dimensions[dim]
	if d.IsString() {
		return 0
	}
	return (coord.I - d.Lo.I) % d.Extent.I
}

// GetCellPos linearises coords into its 0-based position within the tile
// it belongs to, honouring the schema's cell order. O(k).
func (s *ArraySchema) GetCellPos(coords []Coord) (uint64, error) {
	rank := s.Domain.Rank()
	if len(coords) != rank {
		return 0, Fail(KindInternal, "coordinate rank mismatch", nil)
	}

	extents := make([]int64, rank)
	locals := make([]int64, rank)
	for i := 0; i < rank; i++ {
		d := s.Domain.Dimensions[i]
		if d.IsString() {
			return 0, Fail(KindInternal, "GetCellPos undefined for string dimensions", nil)
		}
		extents[i] = d.Extent.I
		locals[i] = s.tileLocalIndex(i, coords[i])
	}

	var pos uint64
	switch s.CellOrder {
	case ColumnMajor:
		stride := uint64(1)
		for i := 0; i < rank; i++ {
			pos += uint64(locals[i]) * stride
			stride *= uint64(extents[i])
		}
	default: // RowMajor and Hilbert-packed tiles both linearise row-major inside a tile
		stride := uint64(1)
		for i := rank - 1; i >= 0; i-- {
			pos += uint64(locals[i]) * stride
			stride *= uint64(extents[i])
		}
	}
	return pos, nil
}

// TileID computes the global tile id for coords: the tile coordinate is
// first derived per dimension, then linearised in the schema's tile
// order. O(k).
func (s *ArraySchema) TileID(coords []Coord) (uint64, error) {
	rank := s.Domain.Rank()
	if len(coords) != rank {
		return 0, Fail(KindInternal, "coordinate rank mismatch", nil)
	}

	tileCoords := make([]int64, rank)
	numTiles := make([]uint64, rank)
	for i := 0; i < rank; i++ {
		d := s.Domain.Dimensions[i]
		if d.IsString() {
			return 0, Fail(KindInternal, "TileID undefined for string dimensions", nil)
		}
		tileCoords[i] = (coords[i].I - d.Lo.I) / d.Extent.I
		numTiles[i] = d.NumTiles()
	}

	var id uint64
	switch s.TileOrder {
	case ColumnMajor:
		stride := uint64(1)
		for i := 0; i < rank; i++ {
			id += uint64(tileCoords[i]) * stride
			stride *= numTiles[i]
		}
	default:
		stride := uint64(1)
		for i := rank - 1; i >= 0; i-- {
			id += uint64(tileCoords[i]) * stride
			stride *= numTiles[i]
		}
	}
	return id, nil
}

// GetNextCellCoords returns the successor of coords within tileDomain (the
// per-dimension [lo,hi] extent of the owning tile, clipped against the
// array domain), wrapping at the tile edge. The second return is false
// when coords is the tile's last cell in cell order.
func (s *ArraySchema) GetNextCellCoords(tileDomain []Range, coords []Coord) ([]Coord, bool) {
	return nextCellCoordsInLayout(s.CellOrder, tileDomain, coords)
}

// GetPreviousCellCoords is the predecessor of GetNextCellCoords.
func (s *ArraySchema) GetPreviousCellCoords(tileDomain []Range, coords []Coord) ([]Coord, bool) {
	return prevCellCoordsInLayout(s.CellOrder, tileDomain, coords)
}

// fastestVaryingOrder returns, for layout, the dimension priority order used
// by the successor/predecessor walk: the last entry is the fastest-varying
// dimension. Hilbert has no cell-by-cell successor notion of its own and
// falls back to row-major, matching orderCmp's own Hilbert fallback.
func fastestVaryingOrder(layout Layout, rank int) []int {
	order := make([]int, rank)
	switch layout {
	case ColumnMajor:
		for i := 0; i < rank; i++ {
			order[i] = i // fastest varying is dim 0
		}
	default:
		for i := 0; i < rank; i++ {
			order[i] = rank - 1 - i // fastest varying is the last dim
		}
	}
	return order
}

// nextCellCoordsInLayout and prevCellCoordsInLayout generalise
// GetNextCellCoords/GetPreviousCellCoords to an explicit layout rather than
// the schema's own declared cell order, so the read engines can walk a
// tile's cells in the subarray's declared read layout (§4.6/§4.7) while
// GetCellPos still resolves the cell's physical position using the
// schema's actual on-disk cell order.
func nextCellCoordsInLayout(layout Layout, tileDomain []Range, coords []Coord) ([]Coord, bool) {
	rank := len(coords)
	out := make([]Coord, rank)
	copy(out, coords)

	for _, dim := range fastestVaryingOrder(layout, rank) {
		if out[dim].I < tileDomain[dim].Hi.I {
			out[dim] = out[dim].Add(1)
			return out, true
		}
		out[dim] = tileDomain[dim].Lo
	}
	return out, false
}

func prevCellCoordsInLayout(layout Layout, tileDomain []Range, coords []Coord) ([]Coord, bool) {
	rank := len(coords)
	out := make([]Coord, rank)
	copy(out, coords)

	for _, dim := range fastestVaryingOrder(layout, rank) {
		if out[dim].I > tileDomain[dim].Lo.I {
			out[dim] = out[dim].Add(-1)
			return out, true
		}
		out[dim] = tileDomain[dim].Hi
	}
	return out, false
}
