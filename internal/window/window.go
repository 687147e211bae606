// Package window keeps recent decoder output so that back-references can
// reach past the start of the current destination buffer.
package window

// Size is the amount of history kept. It covers the longest distance either
// codec can encode.
const Size = 1 << 18

// A Window holds the last Size bytes delivered by a decoder.
// The zero value is empty.
type Window struct {
	buf [Size]byte
	n   int
}

// Reset empties w.
func (w *Window) Reset() {
	w.n = 0
}

// Bytes returns the retained history, oldest byte first.
func (w *Window) Bytes() []byte {
	return w.buf[Size-w.n:]
}

// Append adds p to the end of the history, dropping the oldest bytes when
// the window is full.
func (w *Window) Append(p []byte) {
	if len(p) >= Size {
		copy(w.buf[:], p[len(p)-Size:])
		w.n = Size
		return
	}
	keep := min(w.n, Size-len(p))
	copy(w.buf[Size-len(p)-keep:], w.buf[Size-keep:])
	copy(w.buf[Size-len(p):], p)
	w.n = keep + len(p)
}

// CopyMatch writes n bytes to dst[pos:] copied from dist bytes earlier in
// the output. Bytes before dst[0] come from the end of hist. When dist < n
// the copy overlaps its own output and repeats the last dist bytes.
// The caller checks that dist <= len(hist)+pos and pos+n <= len(dst).
func CopyMatch(dst []byte, pos int, hist []byte, dist, n int) {
	from := pos - dist
	if from >= 0 {
		if dist >= n {
			copy(dst[pos:pos+n], dst[from:from+n])
			return
		}
		for i := 0; i < n; i++ {
			dst[pos+i] = dst[from+i]
		}
		return
	}
	i := 0
	for ; i < n && from+i < 0; i++ {
		dst[pos+i] = hist[len(hist)+from+i]
	}
	for ; i < n; i++ {
		dst[pos+i] = dst[from+i]
	}
}
