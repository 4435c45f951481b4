package tilekernel

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u64Bytes(vals ...uint64) []byte {
	out := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(out[i*8:], v)
	}
	return out
}

func TestPipeline_Zstd_RoundTrip(t *testing.T) {
	p := Pipeline{Kinds: []FilterKind{FilterZstd}, Level: 3}
	orig := []byte("the quick brown fox jumps over the lazy dog, repeated repeated repeated")

	enc, err := p.Apply(orig)
	require.NoError(t, err)

	dec, err := p.Unapply(enc, len(orig))
	require.NoError(t, err)
	assert.Equal(t, orig, dec)
}

func TestPipeline_Gzip_RoundTrip(t *testing.T) {
	p := Pipeline{Kinds: []FilterKind{FilterGzip}, Level: 6}
	orig := []byte("some tile bytes that deflate should compress just fine 12345 12345")

	enc, err := p.Apply(orig)
	require.NoError(t, err)

	dec, err := p.Unapply(enc, len(orig))
	require.NoError(t, err)
	assert.Equal(t, orig, dec)
}

func TestPipeline_PositiveDelta_RoundTrip(t *testing.T) {
	p := Pipeline{Kinds: []FilterKind{FilterPositiveDelta}}
	orig := u64Bytes(10, 12, 15, 15, 20)

	enc, err := p.Apply(orig)
	require.NoError(t, err)
	assert.NotEqual(t, orig, enc)

	dec, err := p.Unapply(enc, len(orig))
	require.NoError(t, err)
	assert.Equal(t, orig, dec)
}

func TestPipeline_ByteShuffle_RoundTrip(t *testing.T) {
	p := Pipeline{Kinds: []FilterKind{FilterByteShuffle}}
	orig := u64Bytes(0x0102030405060708, 0x1112131415161718)

	enc, err := p.Apply(orig)
	require.NoError(t, err)

	dec, err := p.Unapply(enc, len(orig))
	require.NoError(t, err)
	assert.Equal(t, orig, dec)
}

func TestPipeline_Chained_RoundTrip(t *testing.T) {
	p := Pipeline{Kinds: []FilterKind{FilterPositiveDelta, FilterByteShuffle, FilterZstd}, Level: 3}
	orig := u64Bytes(100, 110, 125, 140, 140, 150)

	enc, err := p.Apply(orig)
	require.NoError(t, err)

	dec, err := p.Unapply(enc, len(orig))
	require.NoError(t, err)
	assert.Equal(t, orig, dec)
}

func TestPipeline_None_Passthrough(t *testing.T) {
	p := Pipeline{}
	orig := []byte{1, 2, 3, 4}

	enc, err := p.Apply(orig)
	require.NoError(t, err)
	assert.Equal(t, orig, enc)

	dec, err := p.Unapply(enc, len(orig))
	require.NoError(t, err)
	assert.Equal(t, orig, dec)
}
