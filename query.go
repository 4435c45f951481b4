package tilekernel

import (
	"context"
	"runtime"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	"github.com/alitto/pond"
)

// query.go is the caller-facing facade: Array open/close/reopen, and Query
// submit/submit_async/finalize, wired over the two named worker pools the
// concurrency model calls for — one sized for CPU-bound tile decode/filter
// work, one sized for VFS I/O concurrency — the way cmd/main.go's
// conversion pool is built, generalised to two pools instead of one.

type QueryType int

const (
	ReadQuery QueryType = iota
	WriteQuery
)

// Array is an opened array: its schema, fragment directory, and the tile
// store/worker pools shared by every Query against it.
type Array struct {
	URI    string
	Schema *ArraySchema

	ctx *tiledb.Context
	vfs *tiledb.VFS

	fragDir   *FragmentDirectory
	store     *TileStore
	computeWP *pond.WorkerPool
	ioWP      *pond.WorkerPool

	cancel context.CancelFunc
}

// OpenArray opens arrayURI for access, sizing the compute pool to
// runtime.NumCPU() and the I/O pool to 4x that (I/O-bound VFS operations
// benefit from oversubscription the way a network-backed object store
// does), both cancellable together via CancelTasks.
func OpenArray(ctx *tiledb.Context, vfs *tiledb.VFS, uri string, schema *ArraySchema, pipeline map[string]Pipeline, cacheEntries int) *Array {
	runCtx, cancel := context.WithCancel(context.Background())
	nc := runtime.NumCPU()

	a := &Array{
		URI:       uri,
		Schema:    schema,
		ctx:       ctx,
		vfs:       vfs,
		fragDir:   OpenFragmentDirectory(ctx, vfs, uri),
		computeWP: pond.New(nc, 0, pond.MinWorkers(nc), pond.Context(runCtx)),
		ioWP:      pond.New(nc*4, 0, pond.MinWorkers(nc*4), pond.Context(runCtx)),
		cancel:    cancel,
	}
	a.store = NewTileStore(ctx, vfs, schema, pipeline, cacheEntries)
	return a
}

// Close cancels the pools' shared context and waits for both pools to stop.
func (a *Array) Close() {
	a.cancel()
	a.computeWP.StopAndWait()
	a.ioWP.StopAndWait()
}

// Reopen refreshes the fragment listing, picking up fragments committed
// by other writers since Open (or the last Reopen).
func (a *Array) Reopen() ([]*FragmentMetadata, error) {
	infos, err := a.fragDir.List()
	if err != nil {
		return nil, err
	}
	frags := make([]*FragmentMetadata, 0, len(infos))
	for _, fi := range infos {
		fm := NewFragmentMetadata(fi.URI, a.Schema.ArrayType == Dense, fi.TsStart, fi.TsEnd)
		frags = append(frags, fm)
	}
	SortFragmentsNewestFirst(frags)
	return frags, nil
}

// Query is one read or write operation against an already-open Array.
type Query struct {
	array   *Array
	qtype   QueryType
	subarr  *Subarray
	attrs   []string
	coord   *Coordinator
	budget  uint64
	part    *Partitioner
}

func NewQuery(a *Array, qtype QueryType) *Query {
	return &Query{array: a, qtype: qtype, subarr: NewSubarray(a.Schema), budget: 64 << 20}
}

func (q *Query) SetSubarray(sa *Subarray)         { q.subarr = sa }
func (q *Query) SetLayout(l Layout)               { q.subarr.SetLayout(l) }
func (q *Query) SetMemoryBudget(bytes uint64)     { q.budget = bytes }

// SetBuffer registers attr's output buffer set; every attribute a caller
// wants results for must have one before Submit.
func (q *Query) SetBuffer(attr string, buf *AttrBuffer) {
	if q.coord == nil {
		q.coord = NewCoordinator(q.array.Schema, map[string]*AttrBuffer{})
	}
	q.coord.buffers[attr] = buf
	q.attrs = append(q.attrs, attr)
}

// Submit runs the query synchronously to completion or Incomplete,
// whichever comes first. A read query plans its partitions against the
// array's currently open fragment set; a write query requires the caller
// to have already validated global-order alignment via DenseTiler in the
// dense case.
func (q *Query) Submit() (QueryStatus, error) {
	if q.coord == nil {
		return Failed, Fail(KindInternal, "no output buffers set", nil)
	}
	// Hilbert is only ever legal as a sparse schema's cell order or as a
	// write's global-order convention; §4.7/§7 reject it outright as a
	// read's declared layout.
	if q.qtype == ReadQuery && q.subarr.Layout() == Hilbert {
		q.coord.Fail()
		return Failed, ErrInvalidLayout
	}
	q.coord.Begin()

	frags, err := q.array.Reopen()
	if err != nil {
		q.coord.Fail()
		return Failed, err
	}
	for _, f := range frags {
		if err := f.BuildRTree(); err != nil {
			q.coord.Fail()
			return Failed, err
		}
	}

	estimator := func(sa *Subarray, attrs []string) uint64 {
		n := sa.CellNum()
		var total uint64
		for _, attr := range attrs {
			size, _ := q.array.Schema.CellSize(attr)
			if size == 0 {
				size = 64 // rough average for var-length attrs absent fragment stats
			}
			total += n * size
		}
		return total
	}

	if q.part == nil {
		q.part = NewPartitioner(q.subarr, q.attrs, q.budget, estimator)
	}

	for {
		part, ok, perr := q.part.Next()
		if perr != nil {
			q.coord.Fail()
			return Failed, perr
		}
		if !ok {
			break
		}

		if q.array.Schema.ArrayType == Dense {
			eng := NewDenseReadEngine(q.array.Schema, q.array.store, frags)
			if err := eng.Run(part, q.attrs, q.coord); err != nil {
				q.coord.Fail()
				return Failed, err
			}
		} else {
			eng := NewSparseReadEngine(q.array.Schema, q.array.store, frags)
			if err := eng.Run(part, q.attrs, q.coord); err != nil {
				q.coord.Fail()
				return Failed, err
			}
		}

		if q.coord.Status() == Incomplete {
			return Incomplete, nil
		}
	}

	q.coord.Finish()
	return q.coord.Status(), nil
}

// SubmitAsync runs Submit on the array's compute pool, invoking done with
// Submit's status and error from inside the pool task once Submit returns.
func (q *Query) SubmitAsync(done func(QueryStatus, error)) {
	q.array.computeWP.Submit(func() {
		status, err := q.Submit()
		done(status, err)
	})
}

// Finalize is a no-op for every query type: it flushes no buffered tile
// and performs no tile-alignment check, so it never returns
// IncompleteWrite.
func (q *Query) Finalize() error { return nil }

func (q *Query) GetStatus() QueryStatus { return q.coord.Status() }
func (q *Query) HasResults() bool       { return q.coord != nil && q.coord.HasResults() }

// CancelTasks cancels the context both pools were created with. A Submit
// that is already running is not interrupted, and no query's status is
// changed.
func (a *Array) CancelTasks() { a.cancel() }
