package tilekernel

import (
	"log"
	"sync"

	"github.com/samber/lo"
)

// subarray.go implements Subarray: the per-dimension multi-range selection
// that seeds both the partitioner and the read engines. Ranges are added
// per dimension, independently of each other; the subarray's shape is their
// cross product, never explicitly materialised.

type Subarray struct {
	schema *ArraySchema
	ranges [][]Range // ranges[dim] = ranges added for that dimension, in add order
	layout Layout
	config map[string]string

	oobWarnOnce sync.Once
}

func NewSubarray(schema *ArraySchema) *Subarray {
	rank := schema.Domain.Rank()
	sa := &Subarray{
		schema: schema,
		ranges: make([][]Range, rank),
		layout: RowMajor,
		config: map[string]string{},
	}
	return sa
}

// AddRange appends one selection range on dim. InvalidRange if lo or hi is
// NaN/infinite, or if lo > hi. OOBError if the range falls (even partially)
// outside the dimension's domain, unless sm.read_range_oob is set to "warn"
// on this subarray (via SetConfig), in which case the range is clipped to the domain
// and a one-shot warning is logged instead of failing the call.
func (sa *Subarray) AddRange(dim int, lo, hi Coord) error {
	if dim < 0 || dim >= len(sa.ranges) {
		return Fail(KindUnknownName, "dimension index out of range", nil)
	}
	if !lo.IsFinite() || !hi.IsFinite() {
		return ErrInvalidRange
	}
	if lo.Compare(hi) > 0 {
		return ErrInvalidRange
	}
	d := sa.schema.Domain.Dimensions[dim]
	if !d.IsString() {
		if lo.Compare(d.Lo) < 0 || hi.Compare(d.Hi) > 0 {
			if sa.config[ConfigReadRangeOOB] != "warn" {
				return ErrOOB
			}
			if lo.Compare(d.Lo) < 0 {
				lo = d.Lo
			}
			if hi.Compare(d.Hi) > 0 {
				hi = d.Hi
			}
			if lo.Compare(hi) > 0 {
				// fully outside the domain: nothing survives clipping.
				sa.warnOOB(dim)
				return nil
			}
			sa.warnOOB(dim)
		}
	}
	sa.ranges[dim] = append(sa.ranges[dim], Range{Lo: lo, Hi: hi})
	return nil
}

// warnOOB logs the out-of-domain clip once per Subarray instance, matching
// §6's "unknown keys are ignored with a one-shot warning" per-context
// warning scope applied to the read_range_oob clip path.
func (sa *Subarray) warnOOB(dim int) {
	sa.oobWarnOnce.Do(func() {
		log.Printf("tilekernel: range on dimension %d outside domain, clipped (sm.read_range_oob=warn)", dim)
	})
}

// AddRangeByName resolves dim by dimension name before delegating to
// AddRange.
func (sa *Subarray) AddRangeByName(name string, lo, hi Coord) error {
	for i, d := range sa.schema.Domain.Dimensions {
		if d.Name == name {
			return sa.AddRange(i, lo, hi)
		}
	}
	return ErrUnknownName
}

func (sa *Subarray) SetLayout(l Layout) { sa.layout = l }
func (sa *Subarray) Layout() Layout     { return sa.layout }

// SetConfig stores a free-form sm.*/vfs.* override applied when this
// subarray's query executes, mirroring Config.Set's key/value contract.
func (sa *Subarray) SetConfig(key, value string) { sa.config[key] = value }

// RangesForDim returns the ranges added against dim, or the dimension's
// full domain as a single implicit range when none were added.
func (sa *Subarray) RangesForDim(dim int) []Range {
	if len(sa.ranges[dim]) > 0 {
		return sa.ranges[dim]
	}
	d := sa.schema.Domain.Dimensions[dim]
	return []Range{{Lo: d.Lo, Hi: d.Hi}}
}

// Bounding returns the single tightest range per dimension: the union span
// of that dimension's ranges (min lo, max hi), used by the read engines to
// seed their fragment-overlap MBR tests in one shot rather than per
// sub-range.
func (sa *Subarray) Bounding() []Range {
	rank := len(sa.ranges)
	out := make([]Range, rank)
	for i := 0; i < rank; i++ {
		rs := sa.RangesForDim(i)
		lo, hi := rs[0].Lo, rs[0].Hi
		for _, r := range rs[1:] {
			if r.Lo.Less(lo) {
				lo = r.Lo
			}
			if hi.Less(r.Hi) {
				hi = r.Hi
			}
		}
		out[i] = Range{Lo: lo, Hi: hi}
	}
	return out
}

// CellNum estimates the number of cells covered across all dimensions'
// range sets. Used by the partitioner's cost model; undefined (returns 0)
// for domains with any string dimension, since those have no fixed
// per-cell size to budget against.
func (sa *Subarray) CellNum() uint64 {
	total := uint64(1)
	for i, d := range sa.schema.Domain.Dimensions {
		if d.IsString() {
			return 0
		}
		var dimTotal uint64
		for _, r := range sa.RangesForDim(i) {
			dimTotal += r.Span()
		}
		total *= dimTotal
	}
	return total
}

// Split divides sa into two subarrays at the midpoint of the range set on
// splitDim, used by the partitioner when a candidate partition's estimated
// memory exceeds budget. The widest-range dimension is always split along
// its single largest range.
func (sa *Subarray) Split(splitDim int) (*Subarray, *Subarray, error) {
	rs := sa.RangesForDim(splitDim)
	widest := lo.MaxBy(rs, func(a, b Range) bool { return a.Span() > b.Span() })
	if widest.Span() <= 1 {
		return nil, nil, ErrUnsplittableOverflow
	}

	mid := widest.Lo.I + int64(widest.Span())/2
	left := Range{Lo: widest.Lo, Hi: IntCoord(widest.Lo.Dtype, mid-1)}
	right := Range{Lo: IntCoord(widest.Lo.Dtype, mid), Hi: widest.Hi}

	a := sa.clone()
	b := sa.clone()
	a.ranges[splitDim] = replaceRange(a.ranges[splitDim], widest, left)
	b.ranges[splitDim] = replaceRange(b.ranges[splitDim], widest, right)
	return a, b, nil
}

func replaceRange(rs []Range, old, replacement Range) []Range {
	out := make([]Range, 0, len(rs))
	replaced := false
	for _, r := range rs {
		if !replaced && r == old {
			out = append(out, replacement)
			replaced = true
			continue
		}
		out = append(out, r)
	}
	return out
}

func (sa *Subarray) clone() *Subarray {
	out := &Subarray{schema: sa.schema, layout: sa.layout, config: sa.config}
	out.ranges = make([][]Range, len(sa.ranges))
	for i, rs := range sa.ranges {
		out.ranges[i] = append([]Range(nil), rs...)
	}
	return out
}

// WidestDim returns the dimension index whose range set spans the most
// cells, the partitioner's default split candidate.
func (sa *Subarray) WidestDim() int {
	best, bestSpan := 0, uint64(0)
	for i, d := range sa.schema.Domain.Dimensions {
		if d.IsString() {
			continue
		}
		var span uint64
		for _, r := range sa.RangesForDim(i) {
			span += r.Span()
		}
		if span > bestSpan {
			best, bestSpan = i, span
		}
	}
	return best
}
