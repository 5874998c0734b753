package pfor

import (
	"fmt"

	"github.com/intcomp/pfor-go/internal/bitpack"
	"github.com/intcomp/pfor-go/internal/simple16"
)

// optBits is the set of packed widths OptPFD may choose from.
var optBits = [17]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 16, 20, 32}

// optInvBits maps a required width to the smallest index i with
// optBits[i] covering it.
var optInvBits = [33]int{
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 14, 14,
	15, 15, 15, 15, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16,
}

// OptPFD is the patching codec of Yan, Ding and Suel, using Simple16 as
// the secondary coder for exceptions. Each 128-integer block picks the
// width from optBits minimizing packed size plus the Simple16-coded size
// of its exceptions, so the search prices the exact bytes the encoder
// will emit.
//
// Wire format, after the leading value-count word, per block:
//
//	[header: width index | nexcept<<8 | exceptsize<<16]
//	[Simple16 payload, exceptsize words]   when nexcept > 0
//	[bit-packed low bits, 4*optBits[index] words]
//
// The Simple16 payload carries the nexcept exception high bits followed
// by their nexcept block positions.
//
// An OptPFD instance owns a scratch buffer and must not be shared across
// goroutines. Note that despite the trailing D in the name, no delta
// coding is applied; compute deltas separately for sorted lists.
type OptPFD struct {
	pageSize     int
	exceptBuffer [2 * BlockSize]uint32
}

// NewOptPFD constructs the codec. The page size is fixed at 65536.
func NewOptPFD() *OptPFD {
	return &OptPFD{pageSize: DefaultPageSize}
}

// Compress encodes in[inpos:inpos+inlen] into out at outpos, advancing
// both cursors. The length is truncated down to a multiple of 128; if
// that leaves nothing, both cursors stay put.
func (o *OptPFD) Compress(in []uint32, inpos *Cursor, inlen int, out []uint32, outpos *Cursor) {
	inlen = floorBy(inlen, BlockSize)
	if inlen == 0 {
		return
	}
	out[outpos.Get()] = uint32(inlen)
	outpos.Increment()

	finalinpos := inpos.Get() + inlen
	for inpos.Get() != finalinpos {
		thissize := min(o.pageSize, finalinpos-inpos.Get())
		o.encodePage(in, inpos, thissize, out, outpos)
	}
}

// bestBFromData selects the width index for the block at pos by trying
// every candidate width and pricing its exceptions through the Simple16
// estimator. Candidates start at index 0, or at index 4 (width 4) once
// the block needs more than 20 bits, which keeps the spilled high bits
// below 2^28, the most Simple16 can code. The comparison uses
// <= so later, larger widths win ties; a candidate turning every value
// into an exception is skipped outright.
func (o *OptPFD) bestBFromData(in []uint32, pos int) (besti, bestexcept int) {
	mb := maxBits(in, pos, BlockSize)
	mini := 0
	if mini+28 < optBits[optInvBits[mb]] {
		mini = optBits[optInvBits[mb]] - 28
	}
	besti = len(optBits) - 1
	bestcost := optBits[besti] * 4
	for i := mini; i < len(optBits)-1; i++ {
		tmpcounter := 0
		for k := pos; k < BlockSize+pos; k++ {
			if in[k]>>optBits[i] != 0 {
				tmpcounter++
			}
		}
		if tmpcounter == BlockSize {
			continue
		}
		for k, c := pos, 0; k < pos+BlockSize; k++ {
			if in[k]>>optBits[i] != 0 {
				o.exceptBuffer[tmpcounter+c] = uint32(k - pos)
				o.exceptBuffer[c] = in[k] >> optBits[i]
				c++
			}
		}
		thiscost := optBits[i]*4 + simple16.Estimate(o.exceptBuffer[:], 2*tmpcounter)
		if thiscost <= bestcost {
			bestcost = thiscost
			besti = i
			bestexcept = tmpcounter
		}
	}
	return besti, bestexcept
}

func (o *OptPFD) encodePage(in []uint32, inpos *Cursor, thissize int, out []uint32, outpos *Cursor) {
	tmpoutpos := outpos.Get()
	tmpinpos := inpos.Get()

	for finalinpos := tmpinpos + thissize; tmpinpos+BlockSize <= finalinpos; tmpinpos += BlockSize {
		besti, nexcept := o.bestBFromData(in, tmpinpos)
		exceptsize := 0
		remember := tmpoutpos
		tmpoutpos++
		if nexcept > 0 {
			c := 0
			for i := 0; i < BlockSize; i++ {
				if in[tmpinpos+i]>>optBits[besti] != 0 {
					o.exceptBuffer[c+nexcept] = uint32(i)
					o.exceptBuffer[c] = in[tmpinpos+i] >> optBits[besti]
					c++
				}
			}
			exceptsize = simple16.Compress(o.exceptBuffer[:], 2*nexcept, out[tmpoutpos:])
			tmpoutpos += exceptsize
		}
		out[remember] = uint32(besti) | uint32(nexcept)<<8 | uint32(exceptsize)<<16
		for k := 0; k < BlockSize; k += 32 {
			bitpack.Pack32(in[tmpinpos+k:], out[tmpoutpos:], optBits[besti])
			tmpoutpos += optBits[besti]
		}
	}
	inpos.Set(tmpinpos)
	outpos.Set(tmpoutpos)
}

// Uncompress decodes a stream produced by Compress. The inlen parameter
// only distinguishes the empty call; the consumed length follows from
// the per-block headers. The out slice must have room for the value
// count stored in the stream. The Simple16 word count in a block header
// is not checked against the exception count: a header whose words hold
// fewer than 2*nexcept values makes decoding panic with an index error
// instead of returning ErrMalformedStream.
func (o *OptPFD) Uncompress(in []uint32, inpos *Cursor, inlen int, out []uint32, outpos *Cursor) error {
	if inlen == 0 {
		return nil
	}
	nvalues := int(in[inpos.Get()])
	inpos.Increment()

	finalout := outpos.Get() + nvalues
	for outpos.Get() != finalout {
		thissize := min(o.pageSize, finalout-outpos.Get())
		if err := o.decodePage(in, inpos, out, outpos, thissize); err != nil {
			return err
		}
	}
	return nil
}

func (o *OptPFD) decodePage(in []uint32, inpos *Cursor, out []uint32, outpos *Cursor, thissize int) error {
	tmpoutpos := outpos.Get()
	tmpinpos := inpos.Get()

	for run := 0; run < thissize/BlockSize; run++ {
		if tmpinpos >= len(in) {
			return fmt.Errorf("%w: block header at %d past end of input", ErrMalformedStream, tmpinpos)
		}
		header := in[tmpinpos]
		b := int(header & 0xFF)
		cexcept := int(header >> 8 & 0xFF)
		exceptsize := int(header >> 16)
		tmpinpos++
		if b >= len(optBits) {
			return fmt.Errorf("%w: width index %d outside table", ErrMalformedStream, b)
		}
		if cexcept > BlockSize {
			return fmt.Errorf("%w: exception count %d exceeds block", ErrMalformedStream, cexcept)
		}
		width := optBits[b]
		if tmpinpos+exceptsize+4*width > len(in) {
			return fmt.Errorf("%w: block data overruns input", ErrMalformedStream)
		}
		if cexcept > 0 {
			simple16.Uncompress(in[tmpinpos:], exceptsize, o.exceptBuffer[:], 2*cexcept)
		}
		tmpinpos += exceptsize
		for k := 0; k < BlockSize; k += 32 {
			bitpack.Unpack32(in[tmpinpos:], out[tmpoutpos+k:], width)
			tmpinpos += width
		}
		for k := 0; k < cexcept; k++ {
			pos := int(o.exceptBuffer[k+cexcept])
			if pos >= BlockSize {
				return fmt.Errorf("%w: exception position %d exceeds block", ErrMalformedStream, pos)
			}
			out[tmpoutpos+pos] |= o.exceptBuffer[k] << width
		}
		tmpoutpos += BlockSize
	}
	outpos.Set(tmpoutpos)
	inpos.Set(tmpinpos)
	return nil
}

func (o *OptPFD) String() string {
	return "OptPFD"
}
