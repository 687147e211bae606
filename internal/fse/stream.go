package fse

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

var (
	// ErrCorrupt is returned when a bit stream does not decode cleanly.
	ErrCorrupt = errors.New("fse: corrupt bit stream")
	// ErrShortBuffer is returned when an output buffer is too small.
	ErrShortBuffer = errors.New("fse: output buffer too small")
)

// An OutStream accumulates bits and writes them out in whole bytes, low
// bits first. Bits pushed later end up at higher positions in the output.
type OutStream struct {
	accum uint64
	nbits uint
}

// Push adds the n low bits of b to the stream. b must have no higher bits
// set, and the accumulator must have room for n more bits.
func (s *OutStream) Push(n uint, b uint64) {
	s.accum |= b << s.nbits
	s.nbits += n
}

// Flush writes the complete bytes held in the accumulator to dst[pos:] and
// returns the new position.
func (s *OutStream) Flush(dst []byte, pos int) (int, error) {
	n := int(s.nbits >> 3)
	if n > len(dst)-pos {
		return pos, ErrShortBuffer
	}
	for i := 0; i < n; i++ {
		dst[pos+i] = byte(s.accum >> (8 * i))
	}
	s.accum >>= 8 * uint(n)
	s.nbits &= 7
	return pos + n, nil
}

// Finish writes out everything left in the accumulator, padding the last
// byte with zero bits. It returns the new position and the padding as a
// value in [-7, 0], which is what InStream.Init expects.
func (s *OutStream) Finish(dst []byte, pos int) (int, int, error) {
	n := int(s.nbits+7) >> 3
	if n > len(dst)-pos {
		return pos, 0, ErrShortBuffer
	}
	for i := 0; i < n; i++ {
		dst[pos+i] = byte(s.accum >> (8 * i))
	}
	pad := int(s.nbits) - 8*n
	s.accum, s.nbits = 0, 0
	return pos + n, pad, nil
}

// An InStream reads the bits written by an OutStream in reverse order,
// walking the payload from its last byte toward its first. The accumulator
// holds between 56 and 63 bits after Init and after every Flush.
type InStream struct {
	accum uint64
	nbits int
	pos   int // index of the lowest byte loaded so far
	start int // lowest index the stream may load
}

// Init prepares s to read a payload that ends at buf[end]. Loads never go
// below buf[start]. n is the padding value returned by OutStream.Finish.
func (s *InStream) Init(buf []byte, start, end, n int) error {
	if start < 0 || end > len(buf) {
		return ErrCorrupt
	}
	if n != 0 {
		if end-8 < start {
			return ErrCorrupt
		}
		s.pos = end - 8
		s.accum = binary.LittleEndian.Uint64(buf[s.pos:])
		s.nbits = n + 64
	} else {
		if end-7 < start {
			return ErrCorrupt
		}
		s.pos = end - 7
		s.accum = uint64(binary.LittleEndian.Uint32(buf[s.pos:])) |
			uint64(binary.LittleEndian.Uint16(buf[s.pos+4:]))<<32 |
			uint64(buf[s.pos+6])<<48
		s.nbits = 56
	}
	s.start = start
	if s.nbits < 56 || s.nbits >= 64 || s.accum>>uint(s.nbits) != 0 {
		return ErrCorrupt
	}
	return nil
}

// Flush loads whole bytes until the accumulator holds at least 56 bits.
func (s *InStream) Flush(buf []byte) error {
	nbits := (63 - s.nbits) &^ 7
	n := nbits >> 3
	if s.pos-n < s.start {
		return ErrCorrupt
	}
	s.pos -= n
	var incoming uint64
	if s.pos+8 <= len(buf) {
		incoming = binary.LittleEndian.Uint64(buf[s.pos:]) & (1<<uint(nbits) - 1)
	} else {
		for i := n - 1; i >= 0; i-- {
			incoming = incoming<<8 | uint64(buf[s.pos+i])
		}
	}
	s.accum = s.accum<<uint(nbits) | incoming
	s.nbits += nbits
	return nil
}

// Pull removes and returns the n most recently written bits.
func (s *InStream) Pull(n uint) uint64 {
	s.nbits -= int(n)
	r := s.accum >> uint(s.nbits)
	s.accum &= 1<<uint(s.nbits) - 1
	return r
}

// A ForwardInStream reads bits from a byte sequence in the order they were
// written, low bits first, with a 32-bit accumulator refilled one byte at a
// time.
type ForwardInStream struct {
	accum uint32
	nbits uint
	pos   int
}

// Init starts reading at buf[pos].
func (s *ForwardInStream) Init(pos int) {
	*s = ForwardInStream{pos: pos}
}

// Refill loads bytes from buf[:end] until the accumulator is full or the
// input runs out.
func (s *ForwardInStream) Refill(buf []byte, end int) {
	for s.pos < end && s.nbits+8 <= 32 {
		s.accum |= uint32(buf[s.pos]) << s.nbits
		s.nbits += 8
		s.pos++
	}
}

// Peek returns the accumulator without consuming anything.
func (s *ForwardInStream) Peek() uint32 {
	return s.accum
}

// Skip consumes n bits.
func (s *ForwardInStream) Skip(n uint) error {
	if n > s.nbits {
		return ErrCorrupt
	}
	s.accum >>= n
	s.nbits -= n
	return nil
}

// Done reports whether the stream ended exactly at end, with only the
// padding of the last byte left over.
func (s *ForwardInStream) Done(end int) bool {
	return s.nbits < 8 && s.pos == end
}
