// Package lzvn implements LZVN, the byte-oriented LZ77 format that LZFSE
// uses for small blocks.
//
// An LZVN stream is a sequence of instructions. Each one carries up to
// three literal bytes and a match, or a run of literals, or a match that
// reuses the previous distance. The stream ends with an end-of-stream
// instruction (0x06 followed by seven zero bytes).
package lzvn

import (
	"slices"
	"unsafe"

	"github.com/andybalholm/lzfse/lz"
)

const (
	// MinSourceSize is the shortest input EncodeBuffer will compress.
	MinSourceSize = 8

	// MaxDistance is the longest match distance the format can express.
	MaxDistance = 65535

	// SmallInputSize is the largest input whose matches EncodeBuffer finds
	// without allocating: every match covers at least 4 bytes, so the
	// Encoder's built-in match buffer holds them all.
	SmallInputSize = 4096
)

var endOfStream = [8]byte{0x06}

// MaxEncodedLen returns an upper bound on the encoded size of n bytes.
func MaxEncodedLen(n int) int {
	return n + n/128 + 16
}

// An Encoder holds the match finder state. The zero value is ready to use.
// It implements lz.Encoder, so it can also encode matches found elsewhere.
type Encoder struct {
	// SearchLen is how many hash chain entries EncodeBuffer examines at
	// each position. Values above 1 find longer matches more slowly, and
	// the chain is allocated on first use.
	SearchLen int

	finder  lz.SingleHash
	chain   lz.HashChain
	parser  lz.GreedyParser
	matches []lz.Match
	buf     [SmallInputSize/4 + 1]lz.Match
}

// EncodeScratchSize returns the size of the scratch state used by
// EncodeBuffer.
func EncodeScratchSize() int {
	return int(unsafe.Sizeof(Encoder{}))
}

// EncodeBuffer compresses src into dst and returns the number of bytes
// written. It returns 0 if src is shorter than MinSourceSize or the result
// does not fit in dst. A nil scratch is allocated.
func EncodeBuffer(dst, src []byte, scratch *Encoder) int {
	if scratch == nil {
		scratch = new(Encoder)
	}
	return scratch.EncodeBuffer(dst, src)
}

func (e *Encoder) findMatches(src []byte) []lz.Match {
	var mf lz.MatchFinder = &e.finder
	if e.SearchLen > 1 {
		e.chain.SearchLen = e.SearchLen
		e.chain.MaxDistance = MaxDistance
		e.chain.Parser = &e.parser
		mf = &e.chain
	} else {
		e.finder.MaxDistance = MaxDistance
		e.finder.Parser = &e.parser
	}
	matches := e.matches[:0]
	if matches == nil {
		matches = e.buf[:0]
	}
	matches = mf.FindMatches(matches, src)
	e.matches = matches[:0]
	return matches
}

// EncodeBuffer compresses src into dst and returns the number of bytes
// written, or 0 on failure.
func (e *Encoder) EncodeBuffer(dst, src []byte) int {
	if len(src) < MinSourceSize || len(dst) < len(endOfStream) {
		return 0
	}

	// out never grows past dst: an append that would reallocate makes
	// len(out) exceed len(dst), and the encode is abandoned.
	out := dst[:0:len(dst)]
	pos, dPrev := 0, 0
	for _, m := range e.findMatches(src) {
		out, dPrev = appendSequence(out, src[pos:pos+m.Unmatched], m.Length, m.Distance, dPrev)
		if len(out) > len(dst)-len(endOfStream) {
			return 0
		}
		pos += m.Unmatched + m.Length
	}
	out = append(out, endOfStream[:]...)
	return len(out)
}

// Encode appends an LZVN stream for src to dst. Each call starts a new
// stream, so no match may reach before src[0]. Match lengths must be at
// least 3 and distances at most MaxDistance. The end-of-stream instruction
// is written only when lastBlock is set.
func (e *Encoder) Encode(dst []byte, src []byte, matches []lz.Match, lastBlock bool) []byte {
	dst = slices.Grow(dst, MaxEncodedLen(len(src)))
	pos, dPrev := 0, 0
	for _, m := range matches {
		dst, dPrev = appendSequence(dst, src[pos:pos+m.Unmatched], m.Length, m.Distance, dPrev)
		pos += m.Unmatched + m.Length
	}
	if pos < len(src) {
		dst = appendLiterals(dst, src[pos:])
	}
	if lastBlock {
		dst = append(dst, endOfStream[:]...)
	}
	return dst
}

// appendLiterals writes lits as literal-only instructions.
func appendLiterals(dst, lits []byte) []byte {
	for len(lits) > 15 {
		n := min(len(lits), 271)
		dst = append(dst, 0xe0, byte(n-16))
		dst = append(dst, lits[:n]...)
		lits = lits[n:]
	}
	if len(lits) > 0 {
		dst = append(dst, 0xe0|byte(len(lits)))
		dst = append(dst, lits...)
	}
	return dst
}

// appendSequence writes lits followed by a match of length m at distance
// dist, and returns the distance the next match may reuse.
func appendSequence(dst, lits []byte, m, dist, dPrev int) ([]byte, int) {
	if m == 0 {
		return appendLiterals(dst, lits), dPrev
	}
	if len(lits) > 3 {
		n := len(lits) &^ 3
		dst = appendLiterals(dst, lits[:n])
		lits = lits[n:]
	}
	l := len(lits)

	// The first instruction carries up to 10-2l bytes of the match; that
	// keeps its opcode out of the ranges used by other instructions.
	x := min(m, 10-2*l)
	m -= x
	x -= 3

	switch {
	case dist == dPrev && l == 0:
		dst = append(dst, 0xf0|byte(x+3))
	case dist == dPrev:
		dst = append(dst, byte(l<<6|x<<3|6))
		dst = append(dst, lits...)
	case dist < 0x600:
		dst = append(dst, byte(l<<6|x<<3|dist>>8), byte(dist))
		dst = append(dst, lits...)
	case dist >= 1<<14 || m == 0 || x+3+m > 34:
		dst = append(dst, byte(l<<6|x<<3|7), byte(dist), byte(dist>>8))
		dst = append(dst, lits...)
	default:
		x += m
		m = 0
		dst = append(dst, byte(0xa0|x>>2|l<<3), byte(dist<<2|x&3), byte(dist>>6))
		dst = append(dst, lits...)
	}

	for m > 15 {
		n := min(m, 271)
		dst = append(dst, 0xf0, byte(n-16))
		m -= n
	}
	if m > 0 {
		dst = append(dst, 0xf0|byte(m))
	}
	return dst, dist
}
