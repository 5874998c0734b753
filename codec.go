// Package pfor implements patched frame-of-reference compression for
// 32-bit unsigned integers.
//
// Two block codecs are provided. FastPFOR encodes integers in blocks of
// 128 within pages of up to 65536 integers, storing per-block exception
// values in width-bucketed side tables at the end of each page. OptPFD
// restricts bit widths to a fixed table and codes each block's exceptions
// inline with Simple16. Both produce self-describing word streams whose
// first word is the encoded value count.
//
// Both codecs only consume multiples of 128 integers; trailing values are
// dropped by Compress. Wrap a codec in a Composition with the StreamVByte
// codec to handle arbitrary lengths:
//
//	c := pfor.NewComposition(pfor.NewFastPFOR(), pfor.NewStreamVByte())
//
// Neither codec applies differential coding. For sorted lists, compute
// deltas separately (see Delta and InverseDelta).
//
// Codec instances own mutable scratch buffers and are not safe for
// concurrent use. For multi-threaded applications, each goroutine should
// use its own instance.
package pfor

import (
	"encoding/binary"
	"errors"
	"math/bits"
)

// ErrMalformedStream is returned by Uncompress when a compressed stream
// fails validation. Streams from trusted encoders never trigger it.
var ErrMalformedStream = errors.New("pfor: malformed stream")

// bo is the byte order used whenever byte buffers are reinterpreted as
// 32-bit words. The wire format is little-endian regardless of host order.
var bo = binary.LittleEndian

// Cursor is a mutable position in a slice of 32-bit words. Encoder and
// decoder share the convention that a cursor points at the next unread or
// unwritten slot; callees advance it in place.
type Cursor struct {
	pos int
}

// NewCursor returns a cursor starting at pos.
func NewCursor(pos int) *Cursor {
	return &Cursor{pos: pos}
}

// Get returns the current position.
func (c *Cursor) Get() int {
	return c.pos
}

// Set moves the cursor to pos.
func (c *Cursor) Set(pos int) {
	c.pos = pos
}

// Add advances the cursor by n slots.
func (c *Cursor) Add(n int) {
	c.pos += n
}

// Increment advances the cursor by one slot.
func (c *Cursor) Increment() {
	c.pos++
}

// Codec compresses and uncompresses slices of 32-bit integers through
// caller-supplied cursors. Compress assumes a well-formed call and a
// sufficiently sized output slice; an undersized output is a programming
// error. Uncompress validates the stream and reports ErrMalformedStream
// on corrupt input, leaving the cursors at an unspecified position.
type Codec interface {
	Compress(in []uint32, inpos *Cursor, inlen int, out []uint32, outpos *Cursor)
	Uncompress(in []uint32, inpos *Cursor, inlen int, out []uint32, outpos *Cursor) error
}

// floorBy rounds n down to the nearest multiple of factor.
func floorBy(n, factor int) int {
	return n - n%factor
}

// ceilBy32 rounds n up to the next multiple of 32, the group size the
// bit-packing routines consume.
func ceilBy32(n int) int {
	return (n + 31) &^ 31
}

// maxBits returns the number of bits required by the largest value in
// in[pos:pos+n], computed with a single OR-reduction over the slice.
func maxBits(in []uint32, pos, n int) int {
	var or uint32
	for _, v := range in[pos : pos+n] {
		or |= v
	}
	return bits.Len32(or)
}
