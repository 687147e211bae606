// Package bitfield reads and writes fixed-position bit fields inside
// integer words.
package bitfield

import (
	"fmt"
	"unsafe"

	"golang.org/x/exp/constraints"
)

func check[T constraints.Unsigned](x T, start, n uint) {
	if width := uint(unsafe.Sizeof(x) * 8); start+n > width || n == 0 {
		panic(fmt.Sprintf("bitfield: field [%d:%d] out of range for %d-bit word", start, start+n, width))
	}
}

// Mask returns a value with the n low bits set.
func Mask[T constraints.Unsigned](n uint) T {
	return T(1)<<n - 1
}

// Extract returns the n-bit field of x that begins at bit start.
func Extract[T constraints.Unsigned](x T, start, n uint) T {
	check(x, start, n)
	return (x >> start) & Mask[T](n)
}

// Insert returns x with the n-bit field at bit start replaced by the low
// n bits of v.
func Insert[T constraints.Unsigned](x, v T, start, n uint) T {
	check(x, start, n)
	m := Mask[T](n) << start
	return x&^m | (v<<start)&m
}
