package lzvn

import (
	"bytes"
	"testing"

	"github.com/andybalholm/lzfse/internal/corpus"
	"github.com/andybalholm/lzfse/lz"
	"github.com/pkg/errors"
)

func testInputs() map[string][]byte {
	return map[string][]byte{
		"text":   corpus.Text(100000, 1),
		"random": corpus.Random(5000, 2),
		"mixed":  corpus.Mixed(70000, 3),
		"run":    bytes.Repeat([]byte{'z'}, 10000),
		"short":  []byte("abcdabcd"),
		"period": bytes.Repeat([]byte("0123456789abcdefghij"), 3000),
	}
}

func roundTrip(t *testing.T, name string, data []byte) {
	enc := make([]byte, MaxEncodedLen(len(data)))
	n := EncodeBuffer(enc, data, nil)
	if n == 0 {
		t.Fatalf("%s: encode failed", name)
	}
	out := make([]byte, len(data))
	if got := DecodeBuffer(out, enc[:n]); got != len(data) {
		t.Fatalf("%s: decoded %d bytes, want %d", name, got, len(data))
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("%s: decompressed output doesn't match", name)
	}
}

func TestRoundTrip(t *testing.T) {
	for name, data := range testInputs() {
		roundTrip(t, name, data)
	}
}

func TestSearchLen(t *testing.T) {
	data := corpus.Text(100000, 7)
	fast := make([]byte, MaxEncodedLen(len(data)))
	n1 := EncodeBuffer(fast, data, nil)
	slow := make([]byte, MaxEncodedLen(len(data)))
	n2 := EncodeBuffer(slow, data, &Encoder{SearchLen: 32})
	if n2 == 0 || n2 > n1+n1/20 {
		t.Fatalf("chained search: %d bytes, single hash: %d bytes", n2, n1)
	}
	out := make([]byte, len(data))
	if got := DecodeBuffer(out, slow[:n2]); got != len(data) || !bytes.Equal(out, data) {
		t.Fatal("decompressed output doesn't match")
	}
}

func TestEncodeAllocs(t *testing.T) {
	for name, data := range map[string][]byte{
		"text":   corpus.Text(SmallInputSize-1, 11),
		"mixed":  corpus.Mixed(SmallInputSize-1, 12),
		"period": bytes.Repeat([]byte("abcdefg"), SmallInputSize/7),
	} {
		var e Encoder
		dst := make([]byte, MaxEncodedLen(len(data)))
		allocs := testing.AllocsPerRun(10, func() {
			if e.EncodeBuffer(dst, data) == 0 {
				t.Fatalf("%s: encode failed", name)
			}
		})
		if allocs != 0 {
			t.Errorf("%s: %v allocations per EncodeBuffer call", name, allocs)
		}
	}
}

func TestEncodeLimits(t *testing.T) {
	if n := EncodeBuffer(make([]byte, 100), []byte("1234567"), nil); n != 0 {
		t.Fatalf("short input encoded to %d bytes", n)
	}
	if n := EncodeBuffer(make([]byte, 100), corpus.Random(1000, 4), nil); n != 0 {
		t.Fatalf("encoding of 1000 random bytes fit in 100 bytes (%d)", n)
	}
	data := corpus.Text(2000, 5)
	full := make([]byte, MaxEncodedLen(len(data)))
	n := EncodeBuffer(full, data, nil)
	if m := EncodeBuffer(make([]byte, n-1), data, nil); m != 0 {
		t.Fatalf("encoded to %d bytes with only %d available", m, n-1)
	}
	if m := EncodeBuffer(make([]byte, n), data, nil); m != n {
		t.Fatalf("exact-size buffer: got %d, want %d", m, n)
	}
}

func TestEncodeMatches(t *testing.T) {
	data := corpus.Text(50000, 6)
	var mf lz.SingleHash
	matches := mf.FindMatches(nil, data)
	var e Encoder
	enc := e.Encode(nil, data, matches, true)
	out := make([]byte, len(data))
	if n := DecodeBuffer(out, enc); n != len(data) || !bytes.Equal(out, data) {
		t.Fatal("decompressed output doesn't match")
	}
}

func TestInstructions(t *testing.T) {
	eos := string(endOfStream[:])
	for _, c := range []struct {
		name    string
		history string
		stream  string
		want    string
	}{
		{"small literal", "", "\xe3xyz" + eos, "xyz"},
		{"small distance", "", "\xe4abcd\x08\x04" + eos, "abcdabcd"},
		{"previous distance", "", "\xe4abcd\x08\x04\xf3" + eos, "abcdabcdabc"},
		{"literals in match", "", "\xe4abcd\x48\x04Z" + eos, "abcdZbcdZ"},
		{"large literal", "", "\xe0\x00" + "0123456789abcdef" + eos, "0123456789abcdef"},
		{"nop", "", "\x0e\xe1q\x16" + eos, "q"},
		{"large distance", "abcd", "\x0f\x04\x00" + eos, "abcd"},
		{"overlap", "", "\xe1a\x38\x01" + eos, "aaaaaaaaaaa"},
	} {
		out := make([]byte, len(c.want)+8)
		d := Decoder{Src: []byte(c.stream), Dst: out, History: []byte(c.history)}
		if err := d.Decode(); err != nil {
			t.Errorf("%s: %v", c.name, err)
			continue
		}
		if got := string(out[:d.DstPos]); got != c.want {
			t.Errorf("%s: got %q, want %q", c.name, got, c.want)
		}
		if d.SrcPos != len(c.stream) {
			t.Errorf("%s: consumed %d of %d bytes", c.name, d.SrcPos, len(c.stream))
		}
	}
}

func TestMalformed(t *testing.T) {
	for _, stream := range []string{
		"\x70",
		"\xd5",
		"\x1e",
		"\x08\x01",           // match before any output
		"\xe4abcd\x08\x05",   // distance past the start
		"\xf3",               // no previous distance
		"\xe2ab\x0f\x00\x00", // zero distance
	} {
		d := Decoder{Src: []byte(stream), Dst: make([]byte, 64)}
		if err := d.Decode(); !errors.Is(err, ErrMalformed) {
			t.Errorf("%q: got %v, want ErrMalformed", stream, err)
		}
	}
}

func TestSourceExhausted(t *testing.T) {
	for _, stream := range []string{"", "\xe4ab", "\xe0", "\x0f\x04", "\x06\x00\x00"} {
		d := Decoder{Src: []byte(stream), Dst: make([]byte, 64)}
		if err := d.Decode(); !errors.Is(err, ErrSourceExhausted) {
			t.Errorf("%q: got %v, want ErrSourceExhausted", stream, err)
		}
		if d.SrcPos != 0 {
			t.Errorf("%q: consumed %d bytes of an incomplete instruction", stream, d.SrcPos)
		}
	}
}

func TestResume(t *testing.T) {
	data := corpus.Mixed(30000, 7)
	enc := make([]byte, MaxEncodedLen(len(data)))
	enc = enc[:EncodeBuffer(enc, data, nil)]

	out := make([]byte, len(data))
	d := Decoder{Src: enc}
	for step := 7; ; step += 7 {
		if step > len(out)+7 {
			t.Fatal("decoder did not finish")
		}
		d.Dst = out[:min(step, len(out))]
		err := d.Decode()
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDestinationFull) {
			t.Fatal(err)
		}
	}
	if !bytes.Equal(out, data) {
		t.Fatal("decompressed output doesn't match")
	}
}

func TestHistory(t *testing.T) {
	data := corpus.Text(20000, 8)
	enc := make([]byte, MaxEncodedLen(len(data)))
	enc = enc[:EncodeBuffer(enc, data, nil)]

	first := make([]byte, 5000)
	d := Decoder{Src: enc, Dst: first}
	if err := d.Decode(); !errors.Is(err, ErrDestinationFull) {
		t.Fatalf("got %v, want ErrDestinationFull", err)
	}
	second := make([]byte, len(data)-len(first))
	d.History = first
	d.Dst = second
	d.DstPos = 0
	if err := d.Decode(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(append(first, second...), data) {
		t.Fatal("decompressed output doesn't match")
	}
}

func benchmark(b *testing.B, data []byte) {
	benchmarkEncoder(b, new(Encoder), data)
}

func benchmarkEncoder(b *testing.B, e *Encoder, data []byte) {
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))
	dst := make([]byte, MaxEncodedLen(len(data)))
	n := e.EncodeBuffer(dst, data)
	b.ReportMetric(float64(len(data))/float64(n), "ratio")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.EncodeBuffer(dst, data)
	}
}

func BenchmarkEncodeText(b *testing.B) {
	benchmark(b, corpus.Text(4000, 1))
}

func BenchmarkEncodeMixed(b *testing.B) {
	benchmark(b, corpus.Mixed(4000, 3))
}

func BenchmarkEncodeTextChain(b *testing.B) {
	benchmarkEncoder(b, &Encoder{SearchLen: 16}, corpus.Text(4000, 1))
}
