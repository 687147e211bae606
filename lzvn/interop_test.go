//go:build cgo

package lzvn

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/andybalholm/lzfse/internal/corpus"
	reference "github.com/blacktop/lzfse-cgo"
)

// TestReferenceDecoder checks that the C decoder accepts our streams.
func TestReferenceDecoder(t *testing.T) {
	for name, data := range testInputs() {
		enc := make([]byte, MaxEncodedLen(len(data)))
		enc = enc[:EncodeBuffer(enc, data, nil)]
		out := make([]byte, len(data))
		if n := int(reference.DecodeLZVNBuffer(enc, out)); n != len(data) {
			t.Fatalf("%s: reference decoder produced %d bytes, want %d", name, n, len(data))
		}
		if !bytes.Equal(out, data) {
			t.Fatalf("%s: reference decoder output doesn't match", name)
		}
	}
}

// TestReferenceEncoder decodes the LZVN blocks the C library writes for
// small inputs.
func TestReferenceEncoder(t *testing.T) {
	for i, data := range [][]byte{corpus.Text(3000, 9), corpus.Mixed(4000, 10)} {
		enc := reference.EncodeBuffer(data)
		if len(enc) < 12 || binary.LittleEndian.Uint32(enc) != 0x6e787662 {
			t.Skipf("input %d was not written as an LZVN block", i)
		}
		payload := enc[12 : 12+binary.LittleEndian.Uint32(enc[8:])]
		out := make([]byte, len(data))
		if n := DecodeBuffer(out, payload); n != len(data) || !bytes.Equal(out, data) {
			t.Fatalf("input %d: decompressed output doesn't match", i)
		}
	}
}
