package pfor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCursor(t *testing.T) {
	assert := assert.New(t)
	c := NewCursor(3)
	assert.Equal(3, c.Get())
	c.Increment()
	assert.Equal(4, c.Get())
	c.Add(10)
	assert.Equal(14, c.Get())
	c.Set(0)
	assert.Equal(0, c.Get())
}

func TestMaxBits(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(0, maxBits([]uint32{0, 0, 0}, 0, 3))
	assert.Equal(3, maxBits([]uint32{1, 7, 2}, 0, 3))
	assert.Equal(32, maxBits([]uint32{0, 1 << 31}, 0, 2))
	assert.Equal(1, maxBits([]uint32{9, 1, 9}, 1, 1))
}

func TestFloorBy(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(0, floorBy(127, 128))
	assert.Equal(128, floorBy(128, 128))
	assert.Equal(128, floorBy(255, 128))
	assert.Equal(69888, floorBy(70000, 128))
}

// compressToWords runs one Compress call through fresh cursors and
// returns exactly the words written.
func compressToWords(t *testing.T, c Codec, src []uint32) []uint32 {
	t.Helper()
	out := make([]uint32, 2*len(src)+4096)
	inpos, outpos := NewCursor(0), NewCursor(0)
	c.Compress(src, inpos, len(src), out, outpos)
	return out[:outpos.Get()]
}

// uncompressWords decodes a complete stream, asserting that the decoder
// produces exactly n values and consumes exactly the words it was given.
func uncompressWords(t *testing.T, c Codec, compressed []uint32, n int) []uint32 {
	t.Helper()
	out := make([]uint32, n)
	inpos, outpos := NewCursor(0), NewCursor(0)
	err := c.Uncompress(compressed, inpos, len(compressed), out, outpos)
	assert.NoError(t, err)
	assert.Equal(t, n, outpos.Get(), "decoded value count mismatch")
	assert.Equal(t, len(compressed), inpos.Get(), "decoder should consume the whole stream")
	return out[:outpos.Get()]
}

// assertBlockRoundTrip round-trips src through a block codec, expecting
// the sub-128 tail to be dropped. It returns the compressed words.
func assertBlockRoundTrip(t *testing.T, c Codec, src []uint32) []uint32 {
	t.Helper()
	compressed := compressToWords(t, c, src)
	want := src[:floorBy(len(src), BlockSize)]
	if len(want) == 0 {
		assert.Empty(t, compressed, "empty input should write nothing")
		return compressed
	}
	got := uncompressWords(t, c, compressed, len(want))
	assert.Equal(t, want, got)
	return compressed
}

// assertFullRoundTrip round-trips src through a codec that consumes every
// value, such as StreamVByte or a Composition.
func assertFullRoundTrip(t *testing.T, c Codec, src []uint32) []uint32 {
	t.Helper()
	compressed := compressToWords(t, c, src)
	if len(src) == 0 {
		assert.Empty(t, compressed, "empty input should write nothing")
		return compressed
	}
	got := uncompressWords(t, c, compressed, len(src))
	assert.Equal(t, src, got)
	return compressed
}

func genConst(n int, v uint32) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func genRamp(n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = uint32(i)
	}
	return out
}

// genRandomWidth produces n values uniformly drawn from [0, 2^width).
func genRandomWidth(n, width int, seed int64) []uint32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]uint32, n)
	if width == 0 {
		return out
	}
	for i := range out {
		out[i] = uint32(rng.Uint64() & (1<<width - 1))
	}
	return out
}

// genClustered produces mostly small values with sparse large outliers,
// the shape patching codecs are built for.
func genClustered(n int, seed int64) []uint32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]uint32, n)
	for i := range out {
		out[i] = uint32(rng.Intn(1 << 6))
		if rng.Intn(20) == 0 {
			out[i] = rng.Uint32() >> uint(rng.Intn(8))
		}
	}
	return out
}
