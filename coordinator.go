package tilekernel

// coordinator.go is the streaming result assembler: it owns the caller's
// per-attribute output buffers, copies reconciled cells into them in the
// order the read engine emits them, detects when a buffer fills mid-tile, and drives the
// query status state machine the way a caller's submit-loop expects to
// observe it.

// QueryStatus is the externally visible state of a query across repeated
// Submit calls.
type QueryStatus int

const (
	Uninitialized QueryStatus = iota
	InProgress
	Incomplete
	Complete
	Failed
)

func (s QueryStatus) String() string {
	switch s {
	case InProgress:
		return "in-progress"
	case Incomplete:
		return "incomplete"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// AttrBuffer is the caller-owned output slot for one attribute: a fixed
// byte buffer, an optional offsets buffer (var-length attributes), and an
// optional validity buffer (nullable attributes). Used/UsedOffsets/
// UsedValidity track how much of each has been filled so far this Submit.
type AttrBuffer struct {
	Data     []byte
	Offsets  []uint64
	Validity []byte

	Used         uint64
	UsedOffsets  uint64
	UsedValidity uint64
}

// Remaining reports free bytes/elements in each of the buffer's slots.
func (b *AttrBuffer) remainingData() uint64     { return uint64(len(b.Data)) - b.Used }
func (b *AttrBuffer) remainingOffsets() uint64   { return uint64(len(b.Offsets)) - b.UsedOffsets }
func (b *AttrBuffer) remainingValidity() uint64  { return uint64(len(b.Validity)) - b.UsedValidity }

// Coordinator drives one query's buffer-filling pass: CopyFixed/CopyVar is
// invoked once per reconciled cell and attribute; when a buffer can't hold the
// next cell, Status flips to Incomplete and the caller is expected to
// drain, reset Used counters, and resubmit from the resume point recorded
// in LastCell.
type Coordinator struct {
	schema  *ArraySchema
	buffers map[string]*AttrBuffer
	status  QueryStatus

	// LastCell is the coordinate of the last cell successfully copied,
	// used as the resume marker the next Submit's range restriction is
	// built from.
	LastCell []Coord
}

func NewCoordinator(schema *ArraySchema, buffers map[string]*AttrBuffer) *Coordinator {
	return &Coordinator{schema: schema, buffers: buffers, status: Uninitialized}
}

func (c *Coordinator) Status() QueryStatus { return c.status }

// Begin transitions any status other than Failed (Uninitialized, Incomplete,
// Complete) to InProgress at the start of a Submit call; Failed stays Failed.
func (c *Coordinator) Begin() {
	if c.status == Failed {
		return
	}
	c.status = InProgress
}

// CopyFixed appends one fixed-size cell's bytes for attr. Returns false
// (without copying) when the buffer doesn't have room, the caller's signal
// to stop this Submit and report Incomplete.
func (c *Coordinator) CopyFixed(attr string, cell []byte) bool {
	buf := c.buffers[attr]
	if buf == nil {
		return true // caller didn't request this attribute; nothing to copy
	}
	if buf.remainingData() < uint64(len(cell)) {
		c.status = Incomplete
		return false
	}
	copy(buf.Data[buf.Used:], cell)
	buf.Used += uint64(len(cell))
	return true
}

// CopyVar appends one variable-length cell's value bytes plus its offset
// entry for attr. The offset recorded is the byte (or element, depending
// on the schema's OffsetsElements setting) position the value starts at.
func (c *Coordinator) CopyVar(attr string, value []byte) bool {
	buf := c.buffers[attr]
	if buf == nil {
		return true
	}
	if buf.remainingData() < uint64(len(value)) || buf.remainingOffsets() < 1 {
		c.status = Incomplete
		return false
	}

	var offsetEntry uint64
	if c.schema.OffsetsElements {
		cellSize := TypeSize(c.schema.mustAttrDtype(attr))
		if cellSize == 0 {
			cellSize = 1
		}
		offsetEntry = buf.Used / cellSize
	} else {
		offsetEntry = buf.Used
	}

	buf.Offsets[buf.UsedOffsets] = offsetEntry
	buf.UsedOffsets++
	copy(buf.Data[buf.Used:], value)
	buf.Used += uint64(len(value))
	return true
}

// CopyValidity appends one validity byte (1 = valid, 0 = null) for attr.
func (c *Coordinator) CopyValidity(attr string, valid bool) bool {
	buf := c.buffers[attr]
	if buf == nil || len(buf.Validity) == 0 {
		return true
	}
	if buf.remainingValidity() < 1 {
		c.status = Incomplete
		return false
	}
	v := byte(0)
	if valid {
		v = 1
	}
	buf.Validity[buf.UsedValidity] = v
	buf.UsedValidity++
	return true
}

// MarkResume records coords as the last cell fully copied this Submit, the
// point the next call's implicit range restriction resumes from.
func (c *Coordinator) MarkResume(coords []Coord) {
	c.LastCell = append([]Coord(nil), coords...)
}

// Finish transitions InProgress -> Complete when every queued cell was
// copied without hitting a buffer limit, or leaves Incomplete/Failed as
// they are.
func (c *Coordinator) Finish() {
	if c.status == InProgress {
		c.status = Complete
	}
}

// Fail transitions the query to Failed; once Failed a query never recovers
// and must be recreated.
func (c *Coordinator) Fail() { c.status = Failed }

// HasResults reports whether any buffer received at least one cell this
// Submit, distinguishing "stopped before any fragment contributed" from a
// genuine empty-range result.
func (c *Coordinator) HasResults() bool {
	for _, b := range c.buffers {
		if b.Used > 0 || b.UsedOffsets > 0 {
			return true
		}
	}
	return false
}

// ResultSizes returns how many bytes/offsets/validity entries were written
// into each attribute's buffers this Submit, the values a caller reads
// back via get_result_buffer after a Submit/Finish.
func (c *Coordinator) ResultSizes() map[string][3]uint64 {
	out := make(map[string][3]uint64, len(c.buffers))
	for name, b := range c.buffers {
		out[name] = [3]uint64{b.Used, b.UsedOffsets, b.UsedValidity}
	}
	return out
}

// mustAttrDtype looks up attr's dtype, defaulting to Uint8 (size 1) if the
// schema lookup fails; CopyVar already validated attr exists against a
// caller-supplied buffer map, so this only guards a defensive fallback.
func (s *ArraySchema) mustAttrDtype(attr string) Datatype {
	dt, err := s.Type(attr)
	if err != nil {
		return Uint8
	}
	return dt
}
