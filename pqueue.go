package tilekernel

import "container/heap"

// pqueue.go is the fragment-reconciliation merge queue used by the sparse
// read engine (the dense engine resolves each tile by a newest-first
// fragment scan instead): each entry is one fragment's next unconsumed
// cell in global cell order, and popping always returns the cell that
// should be emitted next across all open fragments, with "newest fragment
// wins" breaking position ties.

// CellRefKind tags which kind of fragment produced a CellRef, since dense
// and sparse fragments reconcile against different tie-break rules (a
// dense fragment always wins over the synthetic fill value; two sparse
// fragments break ties on recency; a duplicate-free array drops the older
// of two equal-coordinate sparse cells entirely).
type CellRefKind int

const (
	DensePopped CellRefKind = iota
	SparsePopped
	UnaryPoint // a single implicit cell with no competing fragment, e.g. the fill value
)

// CellRef is one candidate cell pulled from a fragment's tile stream: its
// coordinate, which fragment it came from (by reconciliation priority
// rank, lower is newer), and its position within that fragment's current
// tile.
type CellRef struct {
	Kind     CellRefKind
	Coords   []Coord
	FragRank int // index into the caller's newest-first fragment slice
	TileIdx  int
	CellPos  uint64
}

// pqItem is the heap element: a CellRef plus the comparator used to order
// it against its neighbours.
type pqItem struct {
	ref CellRef
	idx int
}

type cellHeap struct {
	items []pqItem
	less  func(a, b CellRef) bool
}

func (h cellHeap) Len() int { return len(h.items) }
func (h cellHeap) Less(i, j int) bool {
	return h.less(h.items[i].ref, h.items[j].ref)
}
func (h cellHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].idx, h.items[j].idx = i, j
}
func (h *cellHeap) Push(x any) {
	it := x.(pqItem)
	it.idx = len(h.items)
	h.items = append(h.items, it)
}
func (h *cellHeap) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

// CellQueue merges per-fragment cell streams into one global-order stream.
// cmp orders two CellRefs by coordinate (in the array's cell order); when
// coordinates are equal the fragment with the lower FragRank (newer, by
// the caller's newest-first ordering) must sort first so Pop always
// surfaces the winning cell before its superseded duplicates.
type CellQueue struct {
	h *cellHeap
}

func NewCellQueue(cmp func(a, b []Coord) int) *CellQueue {
	h := &cellHeap{less: func(a, b CellRef) bool {
		if c := cmp(a.Coords, b.Coords); c != 0 {
			return c < 0
		}
		return a.FragRank < b.FragRank
	}}
	heap.Init(h)
	return &CellQueue{h: h}
}

func (q *CellQueue) Push(ref CellRef) { heap.Push(q.h, pqItem{ref: ref}) }

func (q *CellQueue) Len() int { return q.h.Len() }

// Pop removes and returns the globally-next cell. ok is false when the
// queue is drained.
func (q *CellQueue) Pop() (CellRef, bool) {
	if q.h.Len() == 0 {
		return CellRef{}, false
	}
	it := heap.Pop(q.h).(pqItem)
	return it.ref, true
}

// Peek inspects the next cell without removing it.
func (q *CellQueue) Peek() (CellRef, bool) {
	if q.h.Len() == 0 {
		return CellRef{}, false
	}
	return q.h.items[0].ref, true
}

// DrainDuplicates pops and discards every queued cell whose coordinate
// equals winner's, implementing the allow_dups=false policy: once the
// newest fragment's cell at a coordinate has been emitted, every older
// fragment's cell at that same coordinate is superseded and dropped.
func (q *CellQueue) DrainDuplicates(winner []Coord, cmp func(a, b []Coord) int) {
	for q.h.Len() > 0 {
		next := q.h.items[0].ref
		if cmp(next.Coords, winner) != 0 {
			return
		}
		heap.Pop(q.h)
	}
}
