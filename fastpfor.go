package pfor

import (
	"fmt"
	"math/bits"

	"github.com/intcomp/pfor-go/internal/bitpack"
)

const (
	// BlockSize is the number of integers covered by one width selection.
	// Both codecs only consume multiples of it.
	BlockSize = 128

	// overheadOfEachExcept is the amortized bit cost of recording one
	// exception's position and identity in the page side channel.
	overheadOfEachExcept = 8

	// DefaultPageSize is the number of integers sharing one exception
	// side table.
	DefaultPageSize = 65536
)

// FastPFOR is a patching codec designed for speed. It encodes integers in
// blocks of 128 within pages of up to 65536, choosing a per-block bit
// width from a histogram of required widths and spilling the high bits of
// outliers into per-width buckets that are bit-packed once per page.
//
// Wire format, after the leading value-count word, per page:
//
//	[meta offset, in words, relative to this word]
//	[bit-packed low bits, 4*b words per block]
//	[byte size][per-block byte records, padded to a word boundary]
//	[bucket bitmap]
//	per set bit k, ascending: [count][values packed at width k]
//
// Each block's byte record is b, cexcept and, when cexcept > 0, maxbits
// followed by the cexcept exception positions.
//
// A FastPFOR instance owns its scratch buffers and must not be shared
// across goroutines.
type FastPFOR struct {
	pageSize int

	// dataToBePacked[k] collects the high bits of every exception in the
	// current page whose width is k. Bucket lengths stay multiples of 32
	// so the packing routines can consume full groups; the padding slots
	// are zeroed before packing and never decoded.
	dataToBePacked [33][]uint32

	// byteContainer stages the per-block records for one page before they
	// are reinterpreted as little-endian words.
	byteContainer []byte

	// Working area, reset at every page boundary.
	dataPointers [33]int
	freqs        [33]int
}

// NewFastPFOR constructs the codec with the default page size.
func NewFastPFOR() *FastPFOR {
	return NewFastPFORPageSize(DefaultPageSize)
}

// NewFastPFORPageSize constructs the codec with a custom page size, for
// expert use. The page size must be a positive multiple of 128; anything
// else is a programming error and panics.
func NewFastPFORPageSize(pageSize int) *FastPFOR {
	if pageSize <= 0 || pageSize%BlockSize != 0 {
		panic(fmt.Sprintf("pfor: page size %d is not a positive multiple of %d", pageSize, BlockSize))
	}
	f := &FastPFOR{
		pageSize:      pageSize,
		byteContainer: make([]byte, 0, 3*pageSize/BlockSize+pageSize),
	}
	for k := 1; k < len(f.dataToBePacked); k++ {
		// Bucket lengths must be 32-aligned from the start, not just
		// after growth, so the packing routines can always consume
		// full groups.
		f.dataToBePacked[k] = make([]uint32, ceilBy32(pageSize/32*4))
	}
	return f
}

// Compress encodes in[inpos:inpos+inlen] into out at outpos, advancing
// both cursors. The length is truncated down to a multiple of 128; if
// that leaves nothing, both cursors stay put. Trailing values are the
// caller's problem (see Composition).
func (f *FastPFOR) Compress(in []uint32, inpos *Cursor, inlen int, out []uint32, outpos *Cursor) {
	inlen = floorBy(inlen, BlockSize)
	if inlen == 0 {
		return
	}
	out[outpos.Get()] = uint32(inlen)
	outpos.Increment()

	finalinpos := inpos.Get() + inlen
	for inpos.Get() != finalinpos {
		thissize := min(f.pageSize, finalinpos-inpos.Get())
		f.encodePage(in, inpos, thissize, out, outpos)
	}
}

// bestBFromData selects the packed width for the block at pos. It builds
// a histogram of required widths, starts from the true maximum maxb with
// zero exceptions, then walks the candidate widths downward accumulating
// exception counts. A candidate wins only on a strictly lower cost, so
// larger widths are preferred on ties. The walk stops once a block would
// carry more than 127 exceptions.
func (f *FastPFOR) bestBFromData(in []uint32, pos int) (bestb, bestc, maxb int) {
	freqs := &f.freqs
	clear(freqs[:])
	for _, v := range in[pos : pos+BlockSize] {
		freqs[bits.Len32(v)]++
	}

	bestb = 32
	for freqs[bestb] == 0 {
		bestb--
	}
	maxb = bestb
	bestcost := maxb * BlockSize
	cexcept := 0
	for b := maxb - 1; b >= 0; b-- {
		cexcept += freqs[b+1]
		if cexcept > 127 {
			break
		}
		// The trailing 8 is the cost of storing maxb itself.
		thiscost := cexcept*overheadOfEachExcept + cexcept*(maxb-b) + b*BlockSize + 8
		if thiscost < bestcost {
			bestcost = thiscost
			bestb = b
			bestc = cexcept
		}
	}
	return bestb, bestc, maxb
}

func (f *FastPFOR) encodePage(in []uint32, inpos *Cursor, thissize int, out []uint32, outpos *Cursor) {
	headerpos := outpos.Get()
	outpos.Increment()
	tmpoutpos := outpos.Get()

	clear(f.dataPointers[:])
	f.byteContainer = f.byteContainer[:0]

	tmpinpos := inpos.Get()
	for finalinpos := tmpinpos + thissize - BlockSize; tmpinpos <= finalinpos; tmpinpos += BlockSize {
		bestb, bestc, maxb := f.bestBFromData(in, tmpinpos)
		f.byteContainer = append(f.byteContainer, byte(bestb), byte(bestc))
		if bestc > 0 {
			f.byteContainer = append(f.byteContainer, byte(maxb))
			index := maxb - bestb
			if f.dataPointers[index]+bestc >= len(f.dataToBePacked[index]) {
				newSize := ceilBy32(2 * (f.dataPointers[index] + bestc))
				grown := make([]uint32, newSize)
				copy(grown, f.dataToBePacked[index])
				f.dataToBePacked[index] = grown
			}
			for k := 0; k < BlockSize; k++ {
				if in[k+tmpinpos]>>bestb != 0 {
					// we have an exception
					f.byteContainer = append(f.byteContainer, byte(k))
					f.dataToBePacked[index][f.dataPointers[index]] = in[k+tmpinpos] >> bestb
					f.dataPointers[index]++
				}
			}
		}
		for k := 0; k < BlockSize; k += 32 {
			bitpack.Pack32(in[tmpinpos+k:], out[tmpoutpos:], bestb)
			tmpoutpos += bestb
		}
	}
	inpos.Set(tmpinpos)
	out[headerpos] = uint32(tmpoutpos - headerpos)

	bytesize := len(f.byteContainer)
	for len(f.byteContainer)&3 != 0 {
		f.byteContainer = append(f.byteContainer, 0)
	}
	out[tmpoutpos] = uint32(bytesize)
	tmpoutpos++
	howmanyints := len(f.byteContainer) / 4
	for k := 0; k < howmanyints; k++ {
		out[tmpoutpos+k] = bo.Uint32(f.byteContainer[4*k:])
	}
	tmpoutpos += howmanyints

	var bitmap uint32
	for k := 1; k <= 32; k++ {
		if f.dataPointers[k] != 0 {
			bitmap |= 1 << (k - 1)
		}
	}
	out[tmpoutpos] = bitmap
	tmpoutpos++
	for k := 1; k <= 32; k++ {
		size := f.dataPointers[k]
		if size == 0 {
			continue
		}
		out[tmpoutpos] = uint32(size)
		tmpoutpos++
		// Zero the padding slots so stale values from earlier pages or
		// decodes never reach the stream.
		clear(f.dataToBePacked[k][size:ceilBy32(size)])
		for j := 0; j < size; j += 32 {
			bitpack.Pack32(f.dataToBePacked[k][j:], out[tmpoutpos:], k)
			tmpoutpos += k
		}
	}
	outpos.Set(tmpoutpos)
}

// Uncompress decodes a stream produced by Compress. The inlen parameter
// only distinguishes the empty call; the consumed length is deduced from
// the embedded offsets. The out slice must have room for the value count
// stored in the stream.
func (f *FastPFOR) Uncompress(in []uint32, inpos *Cursor, inlen int, out []uint32, outpos *Cursor) error {
	if inlen == 0 {
		return nil
	}
	nvalues := int(in[inpos.Get()])
	inpos.Increment()

	finalout := outpos.Get() + nvalues
	for outpos.Get() != finalout {
		thissize := min(f.pageSize, finalout-outpos.Get())
		if err := f.decodePage(in, inpos, out, outpos, thissize); err != nil {
			return err
		}
	}
	return nil
}

func (f *FastPFOR) decodePage(in []uint32, inpos *Cursor, out []uint32, outpos *Cursor, thissize int) error {
	initpos := inpos.Get()
	if initpos >= len(in) {
		return fmt.Errorf("%w: page header at %d past end of input", ErrMalformedStream, initpos)
	}
	wheremeta := int(in[initpos])
	inpos.Increment()
	inexcept := initpos + wheremeta
	if wheremeta < 1 || inexcept+1 >= len(in) {
		return fmt.Errorf("%w: meta offset %d out of range", ErrMalformedStream, wheremeta)
	}
	bytesize := int(in[inexcept])
	inexcept++
	howmanyints := (bytesize + 3) / 4
	if bytesize < 0 || inexcept+howmanyints >= len(in) {
		return fmt.Errorf("%w: byte container size %d out of range", ErrMalformedStream, bytesize)
	}
	f.byteContainer = f.byteContainer[:0]
	for k := 0; k < howmanyints; k++ {
		f.byteContainer = bo.AppendUint32(f.byteContainer, in[inexcept+k])
	}
	inexcept += howmanyints

	bitmap := in[inexcept]
	inexcept++
	for k := 1; k <= 32; k++ {
		if bitmap&(1<<(k-1)) == 0 {
			continue
		}
		if inexcept >= len(in) {
			return fmt.Errorf("%w: exception bucket %d past end of input", ErrMalformedStream, k)
		}
		size := int(in[inexcept])
		inexcept++
		packedWords := ceilBy32(size) / 32 * k
		if size <= 0 || size > f.pageSize || inexcept+packedWords > len(in) {
			return fmt.Errorf("%w: exception bucket %d has size %d", ErrMalformedStream, k, size)
		}
		if len(f.dataToBePacked[k]) < size {
			f.dataToBePacked[k] = make([]uint32, ceilBy32(size))
		}
		buf := f.dataToBePacked[k]
		for j := 0; j < size; j += 32 {
			bitpack.Unpack32(in[inexcept:], buf[j:], k)
			inexcept += k
		}
	}
	// Reuse dataPointers as per-bucket read cursors.
	clear(f.dataPointers[:])

	tmpoutpos := outpos.Get()
	tmpinpos := inpos.Get()
	lowbitsEnd := initpos + wheremeta
	bc := f.byteContainer
	bpos := 0

	for run := 0; run < thissize/BlockSize; run++ {
		if bpos+2 > len(bc) {
			return fmt.Errorf("%w: byte container exhausted at block %d", ErrMalformedStream, run)
		}
		b := int(bc[bpos])
		cexcept := int(bc[bpos+1])
		bpos += 2
		if b > 32 {
			return fmt.Errorf("%w: block width %d exceeds 32", ErrMalformedStream, b)
		}
		if tmpinpos+4*b > lowbitsEnd {
			return fmt.Errorf("%w: packed data overruns page metadata", ErrMalformedStream)
		}
		for k := 0; k < BlockSize; k += 32 {
			bitpack.Unpack32(in[tmpinpos:], out[tmpoutpos+k:], b)
			tmpinpos += b
		}
		if cexcept > 0 {
			if bpos+1+cexcept > len(bc) {
				return fmt.Errorf("%w: byte container exhausted at block %d", ErrMalformedStream, run)
			}
			maxbits := int(bc[bpos])
			bpos++
			index := maxbits - b
			if maxbits > 32 || index < 1 {
				return fmt.Errorf("%w: block maxbits %d with width %d", ErrMalformedStream, maxbits, b)
			}
			bucket := f.dataToBePacked[index]
			for k := 0; k < cexcept; k++ {
				pos := int(bc[bpos])
				bpos++
				if pos >= BlockSize {
					return fmt.Errorf("%w: exception position %d exceeds block", ErrMalformedStream, pos)
				}
				if f.dataPointers[index] >= len(bucket) {
					return fmt.Errorf("%w: exception bucket %d exhausted", ErrMalformedStream, index)
				}
				out[pos+tmpoutpos] |= bucket[f.dataPointers[index]] << b
				f.dataPointers[index]++
			}
		}
		tmpoutpos += BlockSize
	}
	outpos.Set(tmpoutpos)
	inpos.Set(inexcept)
	return nil
}

func (f *FastPFOR) String() string {
	return "FastPFOR"
}
