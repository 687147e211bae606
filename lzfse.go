// Package lzfse implements the LZFSE compression format: LZ77 matching
// followed by finite state entropy coding of the literals and of the
// (L, M, D) match triplets.
//
// A compressed stream is a sequence of blocks, each starting with a 4-byte
// magic number, and ends with an end-of-stream block. Small inputs are
// stored as LZVN blocks (see package lzvn) or uncompressed.
package lzfse

import (
	"fmt"
	"math/bits"

	"github.com/andybalholm/lzfse/lzvn"
	"github.com/pkg/errors"
)

var (
	// ErrSourceExhausted means the compressed stream ended in the middle of
	// a block.
	ErrSourceExhausted = errors.New("lzfse: source exhausted")
	// ErrDestinationFull means there is no room left in the destination.
	// A Decoder can be resumed with more room.
	ErrDestinationFull = errors.New("lzfse: destination full")
	// ErrMalformedStream means the input is not a valid LZFSE stream.
	ErrMalformedStream = errors.New("lzfse: malformed stream")
)

type magic uint32

const (
	endOfStreamBlockMagic  magic = 0x24787662 // bvx$
	uncompressedBlockMagic magic = 0x2d787662 // bvx-
	compressedV1BlockMagic magic = 0x31787662 // bvx1: plain frequency tables
	compressedV2BlockMagic magic = 0x32787662 // bvx2: packed frequency tables
	lzvnBlockMagic         magic = 0x6e787662 // bvxn
)

func (m magic) String() string {
	switch m {
	case endOfStreamBlockMagic:
		return "bvx$"
	case uncompressedBlockMagic:
		return "bvx-"
	case compressedV1BlockMagic:
		return "bvx1"
	case compressedV2BlockMagic:
		return "bvx2"
	case lzvnBlockMagic:
		return "bvxn"
	}
	return fmt.Sprintf("magic(%#08x)", uint32(m))
}

const (
	hashBits  = 14
	hashWidth = 4 // candidates per history bucket

	// DefaultGoodMatch is the match length that is taken without looking
	// for a better match at the next position.
	DefaultGoodMatch = 40

	// DefaultLZVNThreshold is the input size below which LZVN is used
	// instead of LZFSE.
	DefaultLZVNThreshold = lzvn.SmallInputSize

	lSymbols       = 20
	mSymbols       = 20
	dSymbols       = 64
	literalSymbols = 256

	lStates       = 64
	mStates       = 64
	dStates       = 256
	literalStates = 1024

	matchesPerBlock  = 10000
	literalsPerBlock = 4 * matchesPerBlock

	maxL = 315
	maxM = 2359
	maxD = 262139

	maxMatchLength = 100 * maxM

	// The decoder unpacks literals in groups of 4, so it needs some room
	// past literalsPerBlock.
	decoderLiteralsSize = literalsPerBlock + 64

	uncompressedHeaderSize = 8
	lzvnHeaderSize         = 12
	v1HeaderSize           = 772
	v2FixedHeaderSize      = 32
)

var lExtraBits = [lSymbols]uint8{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 3, 5, 8,
}

var lBaseValue = [lSymbols]int32{
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 20, 28, 60,
}

var mExtraBits = [mSymbols]uint8{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 3, 5, 8, 11,
}

var mBaseValue = [mSymbols]int32{
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 24, 56, 312,
}

var dExtraBits = [dSymbols]uint8{
	0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3,
	4, 4, 4, 4, 5, 5, 5, 5, 6, 6, 6, 6, 7, 7, 7, 7,
	8, 8, 8, 8, 9, 9, 9, 9, 10, 10, 10, 10, 11, 11, 11, 11,
	12, 12, 12, 12, 13, 13, 13, 13, 14, 14, 14, 14, 15, 15, 15, 15,
}

var dBaseValue = [dSymbols]int32{
	0, 1, 2, 3, 4, 6, 8, 10, 12, 16,
	20, 24, 28, 36, 44, 52, 60, 76, 92, 108,
	124, 156, 188, 220, 252, 316, 380, 444, 508, 636,
	764, 892, 1020, 1276, 1532, 1788, 2044, 2556, 3068, 3580,
	4092, 5116, 6140, 7164, 8188, 10236, 12284, 14332, 16380, 20476,
	24572, 28668, 32764, 40956, 49148, 57340, 65532, 81916, 98300, 114684,
	131068, 163836, 196604, 229372,
}

// lSymbol returns the symbol for a literal count in [0, maxL].
func lSymbol(l int) int {
	switch {
	case l < 16:
		return l
	case l < 20:
		return 16
	case l < 28:
		return 17
	case l < 60:
		return 18
	}
	return 19
}

// mSymbol returns the symbol for a match length in [0, maxM].
func mSymbol(m int) int {
	switch {
	case m < 16:
		return m
	case m < 24:
		return 16
	case m < 56:
		return 17
	case m < 312:
		return 18
	}
	return 19
}

// dSymbol returns the symbol for a distance in [0, maxD]. The distance
// symbols come in groups of four sharing an extra bit count e, covering
// d+4 in [4<<e, 8<<e).
func dSymbol(d int) int {
	e := bits.Len(uint(d+4)) - 3
	return 4*e + (d+4)>>e - 4
}
