package pfor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamVByteRoundTrip(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 17, 127, 128, 1000} {
		assertFullRoundTrip(t, NewStreamVByte(), genClustered(n, int64(n)))
	}
}

func TestStreamVByteEmpty(t *testing.T) {
	assertFullRoundTrip(t, NewStreamVByte(), nil)
}

func TestStreamVByteWideValues(t *testing.T) {
	assertFullRoundTrip(t, NewStreamVByte(), []uint32{0, 1, 255, 256, 65535, 65536, 1<<24 - 1, 1 << 24, ^uint32(0)})
}

func TestStreamVByteDeterministic(t *testing.T) {
	s := NewStreamVByte()
	src := genClustered(300, 31)
	first := append([]uint32(nil), compressToWords(t, s, src)...)
	// Dirty the scratch buffer with a bigger payload, then re-encode.
	compressToWords(t, s, genConst(2000, ^uint32(0)))
	second := compressToWords(t, s, src)
	assert.Equal(t, first, second, "padding bytes must not leak scratch contents")
}

func TestStreamVByteCursorChaining(t *testing.T) {
	assert := assert.New(t)
	s := NewStreamVByte()
	a := genClustered(100, 1)
	b := genClustered(50, 2)

	out := make([]uint32, 1024)
	inpos, outpos := NewCursor(0), NewCursor(0)
	s.Compress(a, inpos, len(a), out, outpos)
	wordsA := outpos.Get()
	inpos.Set(0)
	s.Compress(b, inpos, len(b), out, outpos)

	dst := make([]uint32, len(a)+len(b))
	rdpos, wrpos := NewCursor(0), NewCursor(0)
	assert.NoError(s.Uncompress(out, rdpos, wordsA, dst, wrpos))
	assert.NoError(s.Uncompress(out, rdpos, outpos.Get()-wordsA, dst, wrpos))
	assert.Equal(a, dst[:len(a)])
	assert.Equal(b, dst[len(a):])
}

func TestStreamVByteMalformed(t *testing.T) {
	assert := assert.New(t)
	s := NewStreamVByte()
	valid := compressToWords(t, s, genClustered(64, 4))
	out := make([]uint32, 64)

	truncated := valid[:1]
	assert.ErrorIs(s.Uncompress(truncated, NewCursor(0), len(truncated), out, NewCursor(0)), ErrMalformedStream)

	overCount := append([]uint32(nil), valid...)
	overCount[0] = 1 << 20
	assert.ErrorIs(s.Uncompress(overCount, NewCursor(0), len(overCount), out, NewCursor(0)), ErrMalformedStream)

	overBytes := append([]uint32(nil), valid...)
	overBytes[1] = 1 << 20
	assert.ErrorIs(s.Uncompress(overBytes, NewCursor(0), len(overBytes), out, NewCursor(0)), ErrMalformedStream)
}
