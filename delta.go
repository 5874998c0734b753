package pfor

// Delta rewrites data in place as first-order differences. Neither block
// codec applies it implicitly; call it before Compress when encoding
// sorted lists, and InverseDelta after Uncompress. Differences wrap
// modulo 2^32, so strictly increasing input is not required, but only
// sorted input compresses well.
func Delta(data []uint32) {
	for i := len(data) - 1; i > 0; i-- {
		data[i] -= data[i-1]
	}
}

// InverseDelta reconstructs the original values from first-order
// differences in place. The main loop is unrolled four ways to keep the
// prefix-sum dependency chain out of the loop overhead.
func InverseDelta(data []uint32) {
	if len(data) == 0 {
		return
	}
	sz0 := len(data) / 4 * 4
	i := 1
	if sz0 >= 4 {
		a := data[0]
		for ; i < sz0-4; i += 4 {
			data[i] += a
			data[i+1] += data[i]
			data[i+2] += data[i+1]
			data[i+3] += data[i+2]
			a = data[i+3]
		}
	}
	for ; i != len(data); i++ {
		data[i] += data[i-1]
	}
}
