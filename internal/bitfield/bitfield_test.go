package bitfield

import "testing"

func TestInsertExtract(t *testing.T) {
	var w uint64
	w = Insert(w, 40000, 0, 20)
	w = Insert(w, 50008, 20, 20)
	w = Insert(w, 10000, 40, 20)
	w = Insert(w, 7, 60, 3)
	for _, c := range []struct {
		start, n uint
		want     uint64
	}{
		{0, 20, 40000},
		{20, 20, 50008},
		{40, 20, 10000},
		{60, 3, 7},
		{63, 1, 0},
	} {
		if got := Extract(w, c.start, c.n); got != c.want {
			t.Errorf("Extract(%d, %d) = %d, want %d", c.start, c.n, got, c.want)
		}
	}
}

func TestInsertTruncates(t *testing.T) {
	if got := Insert[uint32](0, 0x7ff, 4, 10); got != 0x3ff<<4 {
		t.Fatalf("got %#x", got)
	}
	if got := Extract[uint64](^uint64(0), 0, 64); got != ^uint64(0) {
		t.Fatalf("full-width field: got %#x", got)
	}
}

func TestOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("no panic for a field past the word")
		}
	}()
	Extract[uint32](1, 30, 4)
}
