package tilekernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFragmentName(t *testing.T) {
	name := "__a1b2-c3d4_1000_2000_5"
	tsStart, tsEnd, ok := parseFragmentName(name)
	require.True(t, ok)
	assert.Equal(t, time.Unix(0, 1000), tsStart)
	assert.Equal(t, time.Unix(0, 2000), tsEnd)
}

func TestParseFragmentName_Malformed(t *testing.T) {
	_, _, ok := parseFragmentName("not-a-fragment-name")
	assert.False(t, ok)
}

func frag(uri string, start, end int64) FragInfo {
	return FragInfo{URI: uri, TsStart: time.Unix(0, start), TsEnd: time.Unix(0, end)}
}

func TestRemoveConsolidatedFragmentURIs_StrictContainment(t *testing.T) {
	frags := []FragInfo{
		frag("f1", 0, 100),
		frag("f2", 0, 500), // strictly contains f1
	}
	kept := RemoveConsolidatedFragmentURIs(frags)
	require.Len(t, kept, 1)
	assert.Equal(t, "f2", kept[0].URI)
}

func TestRemoveConsolidatedFragmentURIs_TieOnTsEndKeepsWidestStart(t *testing.T) {
	frags := []FragInfo{
		frag("f1", 100, 500),
		frag("f2", 0, 500), // same t_end, wider t_start range (earlier start)
	}
	kept := RemoveConsolidatedFragmentURIs(frags)
	require.Len(t, kept, 1)
	assert.Equal(t, "f2", kept[0].URI)
}

func TestRemoveConsolidatedFragmentURIs_Idempotent(t *testing.T) {
	frags := []FragInfo{
		frag("f1", 0, 100),
		frag("f2", 200, 300),
		frag("f3", 0, 500),
	}
	once := RemoveConsolidatedFragmentURIs(frags)
	twice := RemoveConsolidatedFragmentURIs(once)
	assert.Equal(t, once, twice)
}

func TestRemoveConsolidatedFragmentURIs_OrderPreserving(t *testing.T) {
	frags := []FragInfo{
		frag("f1", 600, 700),
		frag("f2", 0, 100),
	}
	kept := RemoveConsolidatedFragmentURIs(frags)
	require.Len(t, kept, 2)
	assert.Equal(t, "f1", kept[0].URI)
	assert.Equal(t, "f2", kept[1].URI)
}

func TestFragmentMetadata_NewerThan(t *testing.T) {
	older := NewFragmentMetadata("f1", true, time.Unix(0, 0), time.Unix(0, 100))
	newer := NewFragmentMetadata("f2", true, time.Unix(0, 0), time.Unix(0, 200))
	assert.True(t, newer.newerThan(older))
	assert.False(t, older.newerThan(newer))
}

func TestSortFragmentsNewestFirst(t *testing.T) {
	a := NewFragmentMetadata("a", true, time.Unix(0, 0), time.Unix(0, 100))
	b := NewFragmentMetadata("b", true, time.Unix(0, 0), time.Unix(0, 300))
	c := NewFragmentMetadata("c", true, time.Unix(0, 0), time.Unix(0, 200))

	frags := []*FragmentMetadata{a, b, c}
	SortFragmentsNewestFirst(frags)
	assert.Equal(t, "b", frags[0].URI)
	assert.Equal(t, "c", frags[1].URI)
	assert.Equal(t, "a", frags[2].URI)
}
