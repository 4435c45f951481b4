package tilekernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_CopyFixed_Overflow(t *testing.T) {
	s := schema1D(1, 10, 5)
	buf := &AttrBuffer{Data: make([]byte, 8)} // room for exactly 2 int32 cells
	c := NewCoordinator(s, map[string]*AttrBuffer{"a0": buf})
	c.Begin()

	ok := c.CopyFixed("a0", []byte{1, 0, 0, 0})
	require.True(t, ok)
	ok = c.CopyFixed("a0", []byte{2, 0, 0, 0})
	require.True(t, ok)
	ok = c.CopyFixed("a0", []byte{3, 0, 0, 0})
	assert.False(t, ok)
	assert.Equal(t, Incomplete, c.Status())
}

func TestCoordinator_Finish_Complete(t *testing.T) {
	s := schema1D(1, 10, 5)
	buf := &AttrBuffer{Data: make([]byte, 16)}
	c := NewCoordinator(s, map[string]*AttrBuffer{"a0": buf})
	c.Begin()
	require.True(t, c.CopyFixed("a0", []byte{1, 0, 0, 0}))
	c.Finish()
	assert.Equal(t, Complete, c.Status())
}

func TestCoordinator_HasResults(t *testing.T) {
	s := schema1D(1, 10, 5)
	buf := &AttrBuffer{Data: make([]byte, 16)}
	c := NewCoordinator(s, map[string]*AttrBuffer{"a0": buf})
	c.Begin()
	assert.False(t, c.HasResults())
	require.True(t, c.CopyFixed("a0", []byte{1, 0, 0, 0}))
	assert.True(t, c.HasResults())
}

func TestCoordinator_FailIsSticky(t *testing.T) {
	s := schema1D(1, 10, 5)
	c := NewCoordinator(s, map[string]*AttrBuffer{})
	c.Fail()
	c.Begin()
	assert.Equal(t, Failed, c.Status())
}
