//go:build cgo

package lzfse

import (
	"bytes"
	"testing"

	"github.com/andybalholm/lzfse/internal/corpus"
	reference "github.com/blacktop/lzfse-cgo"
)

func interopInputs() map[string][]byte {
	return map[string][]byte{
		"tiny":   []byte("hello"),
		"lzvn":   corpus.Text(3000, 1),
		"text":   corpus.Text(200000, 2),
		"random": corpus.Random(70000, 3),
		"mixed":  corpus.Mixed(300000, 4),
		"run":    bytes.Repeat([]byte{'q'}, 50000),
	}
}

// TestReferenceDecodes checks that the C library decodes our streams.
func TestReferenceDecodes(t *testing.T) {
	for name, data := range interopInputs() {
		for _, format := range []HeaderFormat{HeaderPacked, HeaderPlain} {
			compressed := encode(t, &Encoder{HeaderFormat: format}, data)
			if got := reference.DecodeBuffer(compressed); !bytes.Equal(got, data) {
				t.Errorf("%s: reference decoder output doesn't match", name)
			}
		}
	}
}

// TestDecodesReference checks that we decode the C library's streams.
func TestDecodesReference(t *testing.T) {
	for name, data := range interopInputs() {
		compressed := reference.EncodeBuffer(data)
		if len(compressed) == 0 {
			// The C encoder refuses inputs shorter than 8 bytes.
			if len(data) >= 8 {
				t.Errorf("%s: reference encoder produced no output", name)
			}
			continue
		}
		got, err := Decode(nil, compressed)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if !bytes.Equal(got, data) {
			t.Errorf("%s: decompressed output doesn't match", name)
		}
	}
}
