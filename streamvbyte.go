package pfor

import (
	"fmt"

	"github.com/mhr3/streamvbyte"
)

// StreamVByte is a byte-oriented variable-length codec with no block
// alignment requirement. It exists mainly as the second half of a
// Composition, picking up the sub-128 tail the block codecs drop, but it
// is a complete Codec in its own right.
//
// Wire format: [count][byte length][Stream-VByte payload packed into
// little-endian words, zero-padded to a word boundary].
//
// A StreamVByte instance owns a byte scratch buffer and must not be
// shared across goroutines.
type StreamVByte struct {
	scratch []byte
}

// NewStreamVByte constructs the codec.
func NewStreamVByte() *StreamVByte {
	return &StreamVByte{}
}

// Compress encodes in[inpos:inpos+inlen] into out at outpos, advancing
// both cursors. Unlike the block codecs it consumes every value.
func (s *StreamVByte) Compress(in []uint32, inpos *Cursor, inlen int, out []uint32, outpos *Cursor) {
	if inlen == 0 {
		return
	}
	tmpoutpos := outpos.Get()
	out[tmpoutpos] = uint32(inlen)
	tmpoutpos++

	if need := streamvbyte.MaxEncodedLen(inlen) + 3; len(s.scratch) < need {
		s.scratch = make([]byte, need)
	}
	data := streamvbyte.EncodeUint32(in[inpos.Get():inpos.Get()+inlen], &streamvbyte.EncodeOptions[uint32]{
		Buffer: s.scratch,
	})
	out[tmpoutpos] = uint32(len(data))
	tmpoutpos++

	// Repack the bytes into words through the scratch buffer, zero-filling
	// the final partial word so identical inputs always produce identical
	// streams.
	words := (len(data) + 3) / 4
	buf := s.scratch[:words*4]
	copy(buf, data)
	clear(buf[len(data):])
	for k := 0; k < words; k++ {
		out[tmpoutpos+k] = bo.Uint32(buf[4*k:])
	}
	tmpoutpos += words

	inpos.Add(inlen)
	outpos.Set(tmpoutpos)
}

// Uncompress decodes a stream produced by Compress, advancing both
// cursors.
func (s *StreamVByte) Uncompress(in []uint32, inpos *Cursor, inlen int, out []uint32, outpos *Cursor) error {
	if inlen == 0 {
		return nil
	}
	tmpinpos := inpos.Get()
	if tmpinpos+2 > len(in) {
		return fmt.Errorf("%w: truncated header at %d", ErrMalformedStream, tmpinpos)
	}
	count := int(in[tmpinpos])
	nbytes := int(in[tmpinpos+1])
	tmpinpos += 2
	words := (nbytes + 3) / 4
	if tmpinpos+words > len(in) {
		return fmt.Errorf("%w: payload of %d bytes overruns input", ErrMalformedStream, nbytes)
	}
	if outpos.Get()+count > len(out) {
		return fmt.Errorf("%w: value count %d overruns output", ErrMalformedStream, count)
	}

	if len(s.scratch) < words*4 {
		s.scratch = make([]byte, words*4)
	}
	for k := 0; k < words; k++ {
		bo.PutUint32(s.scratch[4*k:], in[tmpinpos+k])
	}
	tmpinpos += words

	streamvbyte.DecodeUint32(s.scratch[:nbytes], count, &streamvbyte.DecodeOptions[uint32]{
		Buffer: out[outpos.Get() : outpos.Get()+count],
	})

	inpos.Set(tmpinpos)
	outpos.Add(count)
	return nil
}

func (s *StreamVByte) String() string {
	return "StreamVByte"
}
