package pfor

// Composition chains two codecs: the first consumes the largest prefix it
// is willing to encode (for the block codecs, the largest multiple of
// 128) and the second takes whatever remains. The usual pairing is a
// block codec with StreamVByte so arbitrary lengths round-trip:
//
//	c := pfor.NewComposition(pfor.NewFastPFOR(), pfor.NewStreamVByte())
type Composition struct {
	first  Codec
	second Codec
}

// NewComposition composes first and second. The order is significant and
// must match between compression and decompression.
func NewComposition(first, second Codec) *Composition {
	return &Composition{first: first, second: second}
}

// Compress encodes with the first codec, then hands the unconsumed tail
// to the second. When the first codec produces nothing a literal zero
// count is written in its place so the decoder still finds two sections.
func (c *Composition) Compress(in []uint32, inpos *Cursor, inlen int, out []uint32, outpos *Cursor) {
	if inlen == 0 {
		return
	}
	inposInit := inpos.Get()
	outposInit := outpos.Get()
	c.first.Compress(in, inpos, inlen, out, outpos)
	if outpos.Get() == outposInit {
		out[outposInit] = 0
		outpos.Increment()
	}
	inlen -= inpos.Get() - inposInit
	c.second.Compress(in, inpos, inlen, out, outpos)
}

// Uncompress decodes the first codec's section, then the second's,
// adjusting the remaining word count by what the first consumed.
func (c *Composition) Uncompress(in []uint32, inpos *Cursor, inlen int, out []uint32, outpos *Cursor) error {
	if inlen == 0 {
		return nil
	}
	init := inpos.Get()
	if err := c.first.Uncompress(in, inpos, inlen, out, outpos); err != nil {
		return err
	}
	inlen -= inpos.Get() - init
	return c.second.Uncompress(in, inpos, inlen, out, outpos)
}

func (c *Composition) String() string {
	return "Composition"
}
