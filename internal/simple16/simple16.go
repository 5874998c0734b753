// Package simple16 implements the Simple16 word-aligned integer coder.
//
// Each output word carries a 4-bit selector and a 28-bit payload. The
// selector picks one of sixteen layouts, from twenty-eight 1-bit values
// down to a single 28-bit value. Values of 2^28 or more cannot be
// represented; callers must bound their inputs accordingly.
package simple16

const (
	numSelectors = 16
	payloadBits  = 28
)

// count[s] is the number of values selector s packs into one word.
var count = [numSelectors]int{28, 21, 21, 21, 14, 9, 8, 7, 6, 6, 5, 5, 4, 3, 2, 1}

// widths[s] lists the per-value bit widths for selector s. Every row sums
// to 28.
var widths = [numSelectors][]int{
	{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
	{2, 2, 2, 2, 2, 2, 2, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
	{1, 1, 1, 1, 1, 1, 1, 2, 2, 2, 2, 2, 2, 2, 1, 1, 1, 1, 1, 1, 1},
	{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 2, 2, 2, 2, 2, 2, 2},
	{2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2},
	{4, 3, 3, 3, 3, 3, 3, 3, 3},
	{3, 4, 4, 4, 4, 3, 3, 3},
	{4, 4, 4, 4, 4, 4, 4},
	{5, 5, 5, 5, 4, 4},
	{4, 4, 5, 5, 5, 5},
	{6, 6, 6, 5, 5},
	{5, 5, 6, 6, 6},
	{7, 7, 7, 7},
	{10, 9, 9},
	{14, 14},
	{28},
}

// limit[s][j] is 1 << widths[s][j], the exclusive upper bound for the j-th
// value under selector s. Precomputed so the selection loop compares
// instead of shifting.
var limit [numSelectors][]uint32

func init() {
	for s, row := range widths {
		limit[s] = make([]uint32, len(row))
		for j, w := range row {
			limit[s][j] = 1 << w
		}
	}
}

// fitBlock returns how many leading values of in the best selector can
// pack into a single word, without writing anything. It panics when no
// selector fits, which only happens for values >= 2^28.
func fitBlock(in []uint32) int {
	for s := 0; s < numSelectors; s++ {
		n := count[s]
		if n > len(in) {
			n = len(in)
		}
		j := 0
		for j < n && in[j] < limit[s][j] {
			j++
		}
		if j == n {
			return n
		}
	}
	panic("simple16: value out of range (>= 1<<28)")
}

// packBlock packs as many leading values of in as one word can hold,
// writes the word, and returns the number of values consumed.
func packBlock(in []uint32, out *uint32) int {
	for s := 0; s < numSelectors; s++ {
		n := count[s]
		if n > len(in) {
			n = len(in)
		}
		word := uint32(s) << payloadBits
		shift := 0
		j := 0
		for j < n && in[j] < limit[s][j] {
			word |= in[j] << shift
			shift += widths[s][j]
			j++
		}
		if j == n {
			*out = word
			return n
		}
	}
	panic("simple16: value out of range (>= 1<<28)")
}

// unpackBlock decodes one word into out, stopping after at most n values,
// and returns the number of values produced.
func unpackBlock(word uint32, out []uint32, n int) int {
	s := int(word >> payloadBits)
	k := count[s]
	if k > n {
		k = n
	}
	shift := 0
	for j := 0; j < k; j++ {
		w := widths[s][j]
		out[j] = (word >> shift) & (1<<w - 1)
		shift += w
	}
	return k
}

// Estimate returns the number of words Compress would emit for in[:n].
// It runs the same selector search as Compress so the two always agree;
// cost models built on Estimate therefore price the real output.
func Estimate(in []uint32, n int) int {
	words := 0
	for n > 0 {
		k := fitBlock(in[:n])
		in = in[k:]
		n -= k
		words++
	}
	return words
}

// Compress packs in[:n] into out and returns the number of words written.
func Compress(in []uint32, n int, out []uint32) int {
	words := 0
	for n > 0 {
		k := packBlock(in[:n], &out[words])
		in = in[k:]
		n -= k
		words++
	}
	return words
}

// Uncompress decodes n values from the leading inWords words of in into
// out. A well-formed stream yields exactly n values from exactly inWords
// words; reads never stray past inWords.
func Uncompress(in []uint32, inWords int, out []uint32, n int) {
	in = in[:inWords]
	pos := 0
	for n > 0 {
		k := unpackBlock(in[pos], out, n)
		out = out[k:]
		n -= k
		pos++
	}
}
