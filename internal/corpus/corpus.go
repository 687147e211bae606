// Package corpus generates deterministic test inputs.
package corpus

import "math/rand"

var words = []string{
	"the", "light", "of", "rays", "which", "refracted", "in", "prism", "and",
	"colours", "are", "by", "glass", "that", "is", "reflected", "from",
	"surface", "experiment", "white", "red", "violet", "lens", "image",
	"paper", "sun", "hole", "window", "shutter", "dark", "chamber", "angle",
	"incidence", "refraction", "degrees", "proportion", "sines", "observed",
}

// Text returns n bytes of word-salad prose, seeded so that the same
// arguments always give the same bytes.
func Text(n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	b := make([]byte, 0, n+16)
	for len(b) < n {
		b = append(b, words[r.Intn(len(words))]...)
		switch r.Intn(12) {
		case 0:
			b = append(b, ". "...)
		case 1:
			b = append(b, ",\n"...)
		default:
			b = append(b, ' ')
		}
	}
	return b[:n]
}

// Random returns n incompressible bytes.
func Random(n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	b := make([]byte, n)
	r.Read(b)
	return b
}

// Mixed alternates runs of text, random bytes and repeated bytes, so that
// an encoder sees every kind of input within one buffer.
func Mixed(n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	b := make([]byte, 0, n)
	for len(b) < n {
		k := 1 + r.Intn(5000)
		switch r.Intn(3) {
		case 0:
			b = append(b, Text(k, r.Int63())...)
		case 1:
			b = append(b, Random(k, r.Int63())...)
		default:
			c := byte(r.Intn(256))
			for i := 0; i < k; i++ {
				b = append(b, c)
			}
		}
	}
	return b[:n]
}
