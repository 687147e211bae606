package fse

import (
	"math/rand"
	"testing"
)

func TestNormalize(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, nstates := range []int{64, 256, 1024} {
		for trial := 0; trial < 200; trial++ {
			nsym := 20
			if nstates == 1024 {
				nsym = 256
			}
			counts := make([]uint32, nsym)
			switch trial % 4 {
			case 0: // one dominant symbol
				counts[r.Intn(nsym)] = uint32(1 + r.Intn(100000))
				counts[r.Intn(nsym)]++
			case 1: // everything present once
				for i := range counts {
					counts[i] = 1
				}
			case 2: // empty
			default:
				for i := range counts {
					if r.Intn(3) == 0 {
						counts[i] = uint32(r.Intn(5000))
					}
				}
			}
			freq := make([]uint16, nsym)
			Normalize(freq, counts, nstates)
			if err := CheckFreq(freq, nstates); err != nil {
				t.Fatalf("nstates %d, counts %v: %v (freq %v)", nstates, counts, err, freq)
			}
			for i, c := range counts {
				if c != 0 && freq[i] == 0 {
					t.Fatalf("symbol %d occurs %d times but has no states", i, c)
				}
			}
		}
	}
}

func TestCheckFreq(t *testing.T) {
	freq := make([]uint16, 20)
	freq[0] = 60
	freq[5] = 4
	if err := CheckFreq(freq, 64); err != nil {
		t.Fatal(err)
	}
	freq[5] = 3
	if CheckFreq(freq, 64) == nil {
		t.Fatal("short table accepted")
	}
	freq[5] = 5
	if CheckFreq(freq, 64) == nil {
		t.Fatal("long table accepted")
	}
}

var (
	testVBits = []uint8{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 3, 5, 8, 11}
	testVBase = []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 24, 56, 312}
)

func symbolOf(v int) int {
	s := 0
	for s+1 < len(testVBase) && int(testVBase[s+1]) <= v {
		s++
	}
	return s
}

// TestRoundTrip encodes values last to first, the way LZFSE does, and
// decodes them back front to back.
func TestRoundTrip(t *testing.T) {
	const nstates = 64
	r := rand.New(rand.NewSource(2))
	values := make([]int, 5000)
	counts := make([]uint32, len(testVBase))
	for i := range values {
		if r.Intn(4) == 0 {
			values[i] = r.Intn(2360)
		} else {
			values[i] = r.Intn(16)
		}
		counts[symbolOf(values[i])]++
	}
	freq := make([]uint16, len(counts))
	Normalize(freq, counts, nstates)
	enc := make([]EncoderEntry, len(freq))
	InitEncoderTable(enc, freq, nstates)

	buf := make([]byte, 8, 8*len(values))
	buf = buf[:cap(buf)]
	pos := 8
	var out OutStream
	var state uint16
	var err error
	for i := len(values) - 1; i >= 0; i-- {
		s := symbolOf(values[i])
		out.Push(uint(testVBits[s]), uint64(values[i]-int(testVBase[s])))
		Encode(&state, enc, &out, s)
		if pos, err = out.Flush(buf, pos); err != nil {
			t.Fatal(err)
		}
	}
	pos, pad, err := out.Finish(buf, pos)
	if err != nil {
		t.Fatal(err)
	}

	if err := CheckFreq(freq, nstates); err != nil {
		t.Fatal(err)
	}
	dec := make([]DecoderEntry, nstates)
	if err := InitDecoderTable(dec, freq, nstates, testVBits, testVBase); err != nil {
		t.Fatal(err)
	}
	var in InStream
	if err := in.Init(buf, 0, pos, pad); err != nil {
		t.Fatal(err)
	}
	for i, want := range values {
		if err := in.Flush(buf); err != nil {
			t.Fatalf("value %d: %v", i, err)
		}
		if got := Decode(&state, dec, &in); int(got) != want {
			t.Fatalf("value %d: got %d, want %d", i, got, want)
		}
	}
	if state != 0 {
		t.Fatalf("final state %d, want the encoder's initial state 0", state)
	}
}

func TestLiteralTable(t *testing.T) {
	freq := make([]uint16, 256)
	freq['a'] = 1000
	freq['b'] = 24
	dec := make([]DecoderEntry, 1024)
	if err := InitDecoderTable(dec, freq, 1024, nil, nil); err != nil {
		t.Fatal(err)
	}
	if dec[0].VBase != 'a' || dec[1023].VBase != 'b' || dec[0].ValueBits != 0 {
		t.Fatalf("unexpected entries %+v %+v", dec[0], dec[1023])
	}
}

func TestInStreamInit(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5, 6, 7, 8, 0x02}
	var in InStream
	if err := in.Init(buf, 0, 9, -6); err != nil {
		t.Fatalf("valid stream rejected: %v", err)
	}
	if in.Init(buf, 0, 9, -7) == nil {
		t.Fatal("nonzero padding bits accepted")
	}
	if in.Init(buf, 3, 9, -6) == nil {
		t.Fatal("read below the start of the payload")
	}
	if in.Init(buf, 0, 9, 1) == nil {
		t.Fatal("positive bit count accepted")
	}
}

func TestForwardInStream(t *testing.T) {
	var out OutStream
	buf := make([]byte, 16)
	out.Push(3, 5)
	out.Push(14, 0x2abc)
	out.Push(2, 1)
	pos, err := out.Flush(buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	pos, _, err = out.Finish(buf, pos)
	if err != nil {
		t.Fatal(err)
	}

	var in ForwardInStream
	in.Init(0)
	for _, f := range []struct {
		n    uint
		want uint32
	}{{3, 5}, {14, 0x2abc}, {2, 1}} {
		in.Refill(buf, pos)
		if got := in.Peek() & (1<<f.n - 1); got != f.want {
			t.Fatalf("got %#x, want %#x", got, f.want)
		}
		if err := in.Skip(f.n); err != nil {
			t.Fatal(err)
		}
	}
	if !in.Done(pos) {
		t.Fatal("stream should be finished")
	}
	if in.Skip(9) == nil {
		t.Fatal("read past the end")
	}
}
