package tilekernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestQuery_Submit_RejectsHilbertReadLayout covers SPEC_FULL's open-
// question (a) resolution: Hilbert is legal as a sparse cell order and as
// a write's global-order convention, but a read query that requests it as
// its declared layout must fail outright with InvalidLayout before any
// fragment listing or planning happens.
func TestQuery_Submit_RejectsHilbertReadLayout(t *testing.T) {
	s := schema1D(1, 10, 5)
	a := &Array{Schema: s}
	q := NewQuery(a, ReadQuery)
	q.SetBuffer("a0", &AttrBuffer{Data: make([]byte, 40)})
	q.SetLayout(Hilbert)

	status, err := q.Submit()
	assert.Equal(t, Failed, status)
	assert.ErrorIs(t, err, ErrInvalidLayout)
}
