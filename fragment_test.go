package tilekernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rng(lo, hi int64) Range {
	return Range{Lo: IntCoord(Int64, lo), Hi: IntCoord(Int64, hi)}
}

func TestMBR_Overlaps(t *testing.T) {
	m := MBR{Ranges: []Range{rng(0, 10), rng(0, 10)}}
	assert.True(t, m.Overlaps([]Range{rng(5, 15), rng(5, 15)}))
	assert.False(t, m.Overlaps([]Range{rng(11, 15), rng(0, 10)}))
}

func TestMBR_Centroid(t *testing.T) {
	m := MBR{Ranges: []Range{rng(0, 10)}}
	c := m.Centroid()
	require.Len(t, c, 1)
	assert.Equal(t, int64(5), c[0].I)
}

func TestFragmentMetadata_Overlaps_RequiresRTreeBuilt(t *testing.T) {
	fm := NewFragmentMetadata("f1", true, time.Unix(0, 0), time.Unix(0, 1))
	_, err := fm.Overlaps([]Range{rng(0, 10)})
	assert.Error(t, err)
}

func TestFragmentMetadata_BuildRTree_EmptyTilesFails(t *testing.T) {
	fm := NewFragmentMetadata("f1", true, time.Unix(0, 0), time.Unix(0, 1))
	err := fm.BuildRTree()
	assert.Error(t, err)
}

func TestFragmentMetadata_Overlaps_FindsIntersectingTiles(t *testing.T) {
	fm := NewFragmentMetadata("f1", true, time.Unix(0, 0), time.Unix(0, 1))
	fm.Tiles = []TileInfo{
		{MBR: MBR{Ranges: []Range{rng(0, 4)}}, Offset: map[string]uint64{}, Size: map[string]uint64{}},
		{MBR: MBR{Ranges: []Range{rng(5, 9)}}, Offset: map[string]uint64{}, Size: map[string]uint64{}},
		{MBR: MBR{Ranges: []Range{rng(10, 14)}}, Offset: map[string]uint64{}, Size: map[string]uint64{}},
	}
	require.NoError(t, fm.BuildRTree())

	hits, err := fm.Overlaps([]Range{rng(5, 11)})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, hits)
}

func TestFragmentMetadata_TileOffsetSize_MissingAttr(t *testing.T) {
	fm := NewFragmentMetadata("f1", true, time.Unix(0, 0), time.Unix(0, 1))
	fm.Tiles = []TileInfo{{MBR: MBR{Ranges: []Range{rng(0, 4)}}, Offset: map[string]uint64{"a0": 128}, Size: map[string]uint64{"a0": 64}}}

	off, err := fm.TileOffset(0, "a0")
	require.NoError(t, err)
	assert.Equal(t, uint64(128), off)

	sz, err := fm.TileSize(0, "a0")
	require.NoError(t, err)
	assert.Equal(t, uint64(64), sz)

	_, err = fm.TileOffset(0, "missing")
	assert.Error(t, err)
	_, err = fm.TileOffset(5, "a0")
	assert.Error(t, err)
}
