package tilekernel

// partitioner.go implements the work-stack splitter that turns one
// Subarray into a stream of sub-partitions small enough to fit the
// caller's result buffers, emitting each as soon as it fits rather than
// computing the whole partition set up front.

// BudgetEstimator estimates the worst-case result size, in bytes, of
// executing sa against attrs. Query.Submit supplies the concrete
// estimator (fixed-size attrs: cell count * cell size; var-size attrs: a
// flat 64 bytes per cell), kept decoupled from the
// partitioner so its splitting logic stays storage-agnostic.
type BudgetEstimator func(sa *Subarray, attrs []string) uint64

// Partitioner pulls sub-partitions off a LIFO work stack, splitting a
// partition that would overflow the memory budget along its widest
// dimension and pushing both halves back, deepest (smaller) piece first.
type Partitioner struct {
	stack     []*Subarray
	estimate  BudgetEstimator
	attrs     []string
	budget    uint64
}

func NewPartitioner(sa *Subarray, attrs []string, budget uint64, estimate BudgetEstimator) *Partitioner {
	return &Partitioner{stack: []*Subarray{sa}, estimate: estimate, attrs: attrs, budget: budget}
}

// Next pops and returns the next partition that fits the budget, splitting
// as many times as needed. ok is false once the stack is drained. An
// UnsplittableOverflow from Subarray.Split propagates unchanged: a single
// cell (or dimension) that still overflows the budget can't be serviced
// without enlarging the caller's buffers.
func (p *Partitioner) Next() (sa *Subarray, ok bool, err error) {
	for len(p.stack) > 0 {
		n := len(p.stack) - 1
		cur := p.stack[n]
		p.stack = p.stack[:n]

		if p.estimate == nil || p.estimate(cur, p.attrs) <= p.budget {
			return cur, true, nil
		}

		left, right, splitErr := cur.Split(cur.WidestDim())
		if splitErr != nil {
			return nil, false, splitErr
		}
		// push the larger half first so the smaller half (more likely to
		// already fit) is processed next, keeping partitions flowing
		// rather than re-splitting the same side repeatedly.
		p.stack = append(p.stack, right, left)
	}
	return nil, false, nil
}

// Done reports whether every partition has been emitted.
func (p *Partitioner) Done() bool { return len(p.stack) == 0 }
