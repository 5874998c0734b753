package pfor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompositionArbitraryLengths(t *testing.T) {
	for _, n := range []int{0, 1, 5, 127, 128, 129, 255, 256, 1000, 4096, 70000} {
		t.Run(fmt.Sprintf("n_%d", n), func(t *testing.T) {
			src := genClustered(n, int64(n))
			assertFullRoundTrip(t, NewComposition(NewFastPFOR(), NewStreamVByte()), src)
			assertFullRoundTrip(t, NewComposition(NewOptPFD(), NewStreamVByte()), src)
		})
	}
}

func TestCompositionTailOnly(t *testing.T) {
	assert := assert.New(t)
	c := NewComposition(NewFastPFOR(), NewStreamVByte())
	src := genClustered(90, 6)
	compressed := assertFullRoundTrip(t, c, src)
	// The block codec encodes nothing below one full block; its section
	// degenerates to a literal zero count ahead of the tail codec's.
	assert.Equal(uint32(0), compressed[0])
	assert.Equal(uint32(90), compressed[1])
}

func TestCompositionBlockAlignedSkipsTail(t *testing.T) {
	assert := assert.New(t)
	c := NewComposition(NewFastPFOR(), NewStreamVByte())
	f := NewFastPFOR()
	src := genClustered(4*BlockSize, 16)

	composed := assertFullRoundTrip(t, c, src)
	direct := assertBlockRoundTrip(t, f, src)
	assert.Equal(direct, composed, "block-aligned input should leave no tail section")
}

func TestCompositionCursorConservation(t *testing.T) {
	assert := assert.New(t)
	c := NewComposition(NewOptPFD(), NewStreamVByte())
	src := genClustered(300, 9)

	out := make([]uint32, 4096)
	inpos, outpos := NewCursor(0), NewCursor(0)
	c.Compress(src, inpos, len(src), out, outpos)
	assert.Equal(len(src), inpos.Get(), "composition must consume every value")

	dst := make([]uint32, len(src))
	rdpos, wrpos := NewCursor(0), NewCursor(0)
	assert.NoError(c.Uncompress(out, rdpos, outpos.Get(), dst, wrpos))
	assert.Equal(outpos.Get(), rdpos.Get())
	assert.Equal(len(src), wrpos.Get())
	assert.Equal(src, dst)
}

func TestCompositionPropagatesError(t *testing.T) {
	assert := assert.New(t)
	c := NewComposition(NewFastPFOR(), NewStreamVByte())
	src := genClustered(200, 10)
	valid := compressToWords(t, c, src)

	corrupt := append([]uint32(nil), valid...)
	corrupt[1] = 1 << 30 // first page meta offset
	dst := make([]uint32, len(src))
	assert.ErrorIs(c.Uncompress(corrupt, NewCursor(0), len(corrupt), dst, NewCursor(0)), ErrMalformedStream)
}
