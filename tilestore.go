package tilekernel

import (
	"fmt"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	"github.com/golang/groupcache/lru"
)

// tilestore.go is the fetch -> decode -> cache path shared by the dense and
// sparse read engines: given a fragment, an attribute, and a tile index it
// returns the decoded, unfiltered bytes for that tile, memoising the result
// so a tile overlapping several partitions' ranges is only paid for once.

// tileKey identifies one cached unit: a fragment's tile, for one attribute,
// in one of its three possible buffers (fixed/var values, offsets, or
// validity).
type tileKey struct {
	fragURI string
	attr    string
	tile    int
	part    tilePart
}

type tilePart int

const (
	partFixed tilePart = iota
	partOffsets
	partValidity
)

// TileStore owns the VFS handle, the per-attribute filter pipelines, and an
// LRU cache of decoded tile buffers. One TileStore is shared by every open
// Query against the same array.
type TileStore struct {
	ctx      *tiledb.Context
	vfs      *tiledb.VFS
	schema   *ArraySchema
	pipeline map[string]Pipeline // attr name -> its filter pipeline; "__coords" for dimension tiles

	cache *lru.Cache
}

// NewTileStore builds a store over schema's attributes, capping the decoded-
// tile cache at maxEntries buffers. A zero maxEntries disables eviction
// (lru.New(0) is unbounded), matching groupcache/lru's own convention.
func NewTileStore(ctx *tiledb.Context, vfs *tiledb.VFS, schema *ArraySchema, pipeline map[string]Pipeline, maxEntries int) *TileStore {
	return &TileStore{
		ctx:      ctx,
		vfs:      vfs,
		schema:   schema,
		pipeline: pipeline,
		cache:    lru.New(maxEntries),
	}
}

// Fetch returns the decoded fixed-size (or coords) buffer for tile i of attr
// in fragment fm, reading through the cache.
func (ts *TileStore) Fetch(fm *FragmentMetadata, attr string, i int) ([]byte, error) {
	return ts.fetchPart(fm, attr, i, partFixed)
}

// FetchOffsets returns the decoded offsets buffer for a var-length
// attribute's tile.
func (ts *TileStore) FetchOffsets(fm *FragmentMetadata, attr string, i int) ([]byte, error) {
	return ts.fetchPart(fm, attr, i, partOffsets)
}

// FetchValidity returns the decoded 1-byte-per-cell validity buffer for a
// nullable attribute's tile.
func (ts *TileStore) FetchValidity(fm *FragmentMetadata, attr string, i int) ([]byte, error) {
	return ts.fetchPart(fm, attr, i, partValidity)
}

func (ts *TileStore) fetchPart(fm *FragmentMetadata, attr string, i int, part tilePart) ([]byte, error) {
	key := tileKey{fragURI: fm.URI, attr: attr, tile: i, part: part}
	if v, ok := ts.cache.Get(key); ok {
		return v.([]byte), nil
	}

	fileAttr := attr
	switch part {
	case partOffsets:
		fileAttr = attr + ".offsets"
	case partValidity:
		fileAttr = attr + ".validity"
	}

	off, err := fm.TileOffset(i, fileAttr)
	if err != nil {
		return nil, err
	}
	size, err := fm.TileSize(i, fileAttr)
	if err != nil {
		return nil, err
	}

	raw, err := ts.readRange(fm, attr, off, size)
	if err != nil {
		return nil, err
	}

	pipeline := ts.pipeline[attr]
	decoded, err := pipeline.Unapply(raw, 0)
	if err != nil {
		return nil, err
	}

	ts.cache.Add(key, decoded)
	return decoded, nil
}

// readRange reads [off, off+size) from the per-attribute data file backing
// fragment fm. Attribute and dimension tiles are laid out one file per name
// under the fragment directory, the same physical layout tiledb.go's VFS
// helpers already assume for the rest of the collaborator surface.
func (ts *TileStore) readRange(fm *FragmentMetadata, attr string, off, size uint64) ([]byte, error) {
	path := fm.URI + "/" + dataFileName(attr)

	fh, err := ts.vfs.Open(path, tiledb.TILEDB_VFS_READ)
	if err != nil {
		return nil, Fail(KindIO, "opening tile data file "+path, err)
	}
	defer fh.Close()

	buf := make([]byte, size)
	if size > 0 {
		if _, err := fh.Seek(int64(off), 0); err != nil {
			return nil, Fail(KindIO, fmt.Sprintf("seeking %s to offset %d", path, off), err)
		}
		n, err := fh.Read(buf)
		if err != nil {
			return nil, Fail(KindIO, fmt.Sprintf("reading tile bytes from %s at offset %d", path, off), err)
		}
		if uint64(n) != size {
			return nil, Fail(KindIO, fmt.Sprintf("short read from %s: got %d want %d", path, n, size), nil)
		}
	}
	return buf, nil
}

func dataFileName(attr string) string {
	if attr == "__coords" {
		return "__coords.tdb"
	}
	return attr + ".tdb"
}

// InvalidateFragment drops every cached entry belonging to fragURI, used
// after a vacuum removes the fragment from the directory listing.
func (ts *TileStore) InvalidateFragment(fragURI string) {
	// groupcache/lru has no selective-eviction API; since vacuum is rare
	// relative to reads, the whole cache is cleared rather than tracking a
	// per-fragment key index just for this path.
	ts.cache.Clear()
}
