package window

import (
	"bytes"
	"testing"
)

func TestAppend(t *testing.T) {
	var w Window
	w.Append([]byte("hello "))
	w.Append([]byte("world"))
	if got := string(w.Bytes()); got != "hello world" {
		t.Fatalf("got %q", got)
	}

	big := bytes.Repeat([]byte{1, 2, 3}, Size/3+10)
	w.Append(big)
	if !bytes.Equal(w.Bytes(), big[len(big)-Size:]) {
		t.Fatal("oversized append kept the wrong bytes")
	}

	w.Append([]byte("tail"))
	got := w.Bytes()
	if len(got) != Size || string(got[Size-4:]) != "tail" || !bytes.Equal(got[:Size-4], big[len(big)-Size+4:]) {
		t.Fatal("window did not slide")
	}

	w.Reset()
	if len(w.Bytes()) != 0 {
		t.Fatal("Reset left history behind")
	}
}

func TestCopyMatch(t *testing.T) {
	for _, c := range []struct {
		name    string
		hist    string
		prefix  string
		dist, n int
		want    string
	}{
		{"disjoint", "", "abcdef", 6, 3, "abcdefabc"},
		{"overlap", "", "ab", 2, 7, "ababababa"},
		{"run", "", "x", 1, 4, "xxxxx"},
		{"history", "0123", "", 4, 4, "0123"},
		{"history overlap", "xy", "", 2, 5, "xyxyx"},
		{"straddle", "012", "ab", 4, 6, "ab12ab12"},
	} {
		dst := make([]byte, len(c.prefix)+c.n)
		copy(dst, c.prefix)
		CopyMatch(dst, len(c.prefix), []byte(c.hist), c.dist, c.n)
		if string(dst) != c.want {
			t.Errorf("%s: got %q, want %q", c.name, dst, c.want)
		}
	}
}
