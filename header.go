package lzfse

import (
	"encoding/binary"

	"github.com/andybalholm/lzfse/internal/bitfield"
	"github.com/andybalholm/lzfse/internal/fse"
	"github.com/pkg/errors"
)

const freqCount = lSymbols + mSymbols + dSymbols + literalSymbols

// A blockHeader holds the fields of a compressed block header. The plain
// (bvx1) encoding stores them as they are; the packed (bvx2) encoding
// bit-packs the counts and states and codes the frequency tables with a
// variable-length code.
type blockHeader struct {
	nRaw            uint32 // decoded size of the block
	nPayload        uint32 // nLiteralPayload + nLMDPayload
	nLiterals       uint32
	nMatches        uint32
	nLiteralPayload uint32
	nLMDPayload     uint32

	// Final encoder states and bit counts; the decoder starts from them.
	literalBits  int32 // in [-7, 0]
	literalState [4]uint16
	lmdBits      int32 // in [-7, 0]
	lState       uint16
	mState       uint16
	dState       uint16

	// Normalized frequencies for L, M, D and literal symbols, in that
	// order.
	freq [freqCount]uint16
}

func (h *blockHeader) lFreq() []uint16 { return h.freq[:lSymbols] }
func (h *blockHeader) mFreq() []uint16 { return h.freq[lSymbols : lSymbols+mSymbols] }
func (h *blockHeader) dFreq() []uint16 {
	return h.freq[lSymbols+mSymbols : lSymbols+mSymbols+dSymbols]
}
func (h *blockHeader) literalFreq() []uint16 { return h.freq[lSymbols+mSymbols+dSymbols:] }

// check validates the fields a decoder relies on.
func (h *blockHeader) check() error {
	switch {
	case h.nLiterals > literalsPerBlock:
		return errors.Wrapf(ErrMalformedStream, "%d literals in one block", h.nLiterals)
	case h.nMatches > matchesPerBlock:
		return errors.Wrapf(ErrMalformedStream, "%d matches in one block", h.nMatches)
	case h.lState >= lStates || h.mState >= mStates || h.dState >= dStates:
		return errors.Wrap(ErrMalformedStream, "LMD state out of range")
	}
	for _, s := range h.literalState {
		if s >= literalStates {
			return errors.Wrap(ErrMalformedStream, "literal state out of range")
		}
	}
	for _, t := range []struct {
		name    string
		freq    []uint16
		nstates int
	}{
		{"L", h.lFreq(), lStates},
		{"M", h.mFreq(), mStates},
		{"D", h.dFreq(), dStates},
		{"literal", h.literalFreq(), literalStates},
	} {
		if err := fse.CheckFreq(t.freq, t.nstates); err != nil {
			return errors.Wrapf(ErrMalformedStream, "%s frequency table: %v", t.name, err)
		}
	}
	return nil
}

// putPlain writes the bvx1 encoding of h to dst, which must hold at least
// v1HeaderSize bytes.
func (h *blockHeader) putPlain(dst []byte) int {
	le := binary.LittleEndian
	le.PutUint32(dst[0:], uint32(compressedV1BlockMagic))
	le.PutUint32(dst[4:], h.nRaw)
	le.PutUint32(dst[8:], h.nPayload)
	le.PutUint32(dst[12:], h.nLiterals)
	le.PutUint32(dst[16:], h.nMatches)
	le.PutUint32(dst[20:], h.nLiteralPayload)
	le.PutUint32(dst[24:], h.nLMDPayload)
	le.PutUint32(dst[28:], uint32(h.literalBits))
	for i, s := range h.literalState {
		le.PutUint16(dst[32+2*i:], s)
	}
	le.PutUint32(dst[40:], uint32(h.lmdBits))
	le.PutUint16(dst[44:], h.lState)
	le.PutUint16(dst[46:], h.mState)
	le.PutUint16(dst[48:], h.dState)
	for i, f := range h.freq {
		le.PutUint16(dst[50+2*i:], f)
	}
	dst[v1HeaderSize-2], dst[v1HeaderSize-1] = 0, 0
	return v1HeaderSize
}

// parsePlain reads a bvx1 header from the start of src.
func (h *blockHeader) parsePlain(src []byte) (int, error) {
	if len(src) < v1HeaderSize {
		return 0, ErrSourceExhausted
	}
	le := binary.LittleEndian
	h.nRaw = le.Uint32(src[4:])
	h.nPayload = le.Uint32(src[8:])
	h.nLiterals = le.Uint32(src[12:])
	h.nMatches = le.Uint32(src[16:])
	h.nLiteralPayload = le.Uint32(src[20:])
	h.nLMDPayload = le.Uint32(src[24:])
	h.literalBits = int32(le.Uint32(src[28:]))
	for i := range h.literalState {
		h.literalState[i] = le.Uint16(src[32+2*i:])
	}
	h.lmdBits = int32(le.Uint32(src[40:]))
	h.lState = le.Uint16(src[44:])
	h.mState = le.Uint16(src[46:])
	h.dState = le.Uint16(src[48:])
	for i := range h.freq {
		h.freq[i] = le.Uint16(src[50+2*i:])
	}
	return v1HeaderSize, nil
}

// freqCode returns the variable-length code for a frequency value:
// 2 to 5 bits for values below 8, 8 bits up to 23, and 14 bits above.
func freqCode(v uint16) (nbits uint, code uint64) {
	switch {
	case v < 8:
		c := freqSmallCodes[v]
		return uint(c[0]), uint64(c[1])
	case v < 24:
		return 8, uint64(v-8)<<4 | 0x7
	}
	return 14, uint64(v-24)<<4 | 0xf
}

var freqSmallCodes = [8][2]uint8{
	{2, 0}, {2, 2}, {3, 1}, {3, 5}, {5, 3}, {5, 11}, {5, 19}, {5, 27},
}

var freqNBits = [32]uint8{
	2, 3, 2, 5, 2, 3, 2, 8, 2, 3, 2, 5, 2, 3, 2, 14,
	2, 3, 2, 5, 2, 3, 2, 8, 2, 3, 2, 5, 2, 3, 2, 14,
}

var freqValue = [32]int8{
	0, 2, 1, 4, 0, 3, 1, -1, 0, 2, 1, 5, 0, 3, 1, -1,
	0, 2, 1, 6, 0, 3, 1, -1, 0, 2, 1, 7, 0, 3, 1, -1,
}

// decodeFreq decodes the frequency value at the bottom of bits and returns
// it with its code length.
func decodeFreq(bits uint32) (uint16, uint) {
	b := bits & 31
	n := uint(freqNBits[b])
	switch n {
	case 8:
		return 8 + uint16(bits>>4&0xf), n
	case 14:
		return 24 + uint16(bits>>4&0x3ff), n
	}
	return uint16(freqValue[b]), n
}

// packedSize returns the size of the bvx2 encoding of h.
func (h *blockHeader) packedSize() int {
	nbits := 0
	for _, f := range h.freq {
		n, _ := freqCode(f)
		nbits += int(n)
	}
	return v2FixedHeaderSize + (nbits+7)>>3
}

// putPacked writes the bvx2 encoding of h to dst, which must hold at least
// h.packedSize() bytes.
func (h *blockHeader) putPacked(dst []byte) (int, error) {
	size := h.packedSize()

	var w0, w1, w2 uint64
	w0 = bitfield.Insert(w0, uint64(h.nLiterals), 0, 20)
	w0 = bitfield.Insert(w0, uint64(h.nLiteralPayload), 20, 20)
	w0 = bitfield.Insert(w0, uint64(h.nMatches), 40, 20)
	w0 = bitfield.Insert(w0, uint64(h.literalBits+7), 60, 3)
	for i, s := range h.literalState {
		w1 = bitfield.Insert(w1, uint64(s), uint(10*i), 10)
	}
	w1 = bitfield.Insert(w1, uint64(h.nLMDPayload), 40, 20)
	w1 = bitfield.Insert(w1, uint64(h.lmdBits+7), 60, 3)
	w2 = bitfield.Insert(w2, uint64(size), 0, 32)
	w2 = bitfield.Insert(w2, uint64(h.lState), 32, 10)
	w2 = bitfield.Insert(w2, uint64(h.mState), 42, 10)
	w2 = bitfield.Insert(w2, uint64(h.dState), 52, 10)

	le := binary.LittleEndian
	le.PutUint32(dst[0:], uint32(compressedV2BlockMagic))
	le.PutUint32(dst[4:], h.nRaw)
	le.PutUint64(dst[8:], w0)
	le.PutUint64(dst[16:], w1)
	le.PutUint64(dst[24:], w2)

	var out fse.OutStream
	pos := v2FixedHeaderSize
	var err error
	for _, f := range h.freq {
		out.Push(freqCode(f))
		if pos, err = out.Flush(dst[:size], pos); err != nil {
			return 0, err
		}
	}
	if pos, _, err = out.Finish(dst[:size], pos); err != nil {
		return 0, err
	}
	return pos, nil
}

// parsePacked reads a bvx2 header from the start of src.
func (h *blockHeader) parsePacked(src []byte) (int, error) {
	if len(src) < v2FixedHeaderSize {
		return 0, ErrSourceExhausted
	}
	le := binary.LittleEndian
	w0 := le.Uint64(src[8:])
	w1 := le.Uint64(src[16:])
	w2 := le.Uint64(src[24:])

	size := int(bitfield.Extract(w2, 0, 32))
	if size < v2FixedHeaderSize {
		return 0, errors.Wrapf(ErrMalformedStream, "packed header size %d", size)
	}
	if len(src) < size {
		return 0, ErrSourceExhausted
	}

	h.nRaw = le.Uint32(src[4:])
	h.nLiterals = uint32(bitfield.Extract(w0, 0, 20))
	h.nLiteralPayload = uint32(bitfield.Extract(w0, 20, 20))
	h.nMatches = uint32(bitfield.Extract(w0, 40, 20))
	h.literalBits = int32(bitfield.Extract(w0, 60, 3)) - 7
	for i := range h.literalState {
		h.literalState[i] = uint16(bitfield.Extract(w1, uint(10*i), 10))
	}
	h.nLMDPayload = uint32(bitfield.Extract(w1, 40, 20))
	h.lmdBits = int32(bitfield.Extract(w1, 60, 3)) - 7
	h.lState = uint16(bitfield.Extract(w2, 32, 10))
	h.mState = uint16(bitfield.Extract(w2, 42, 10))
	h.dState = uint16(bitfield.Extract(w2, 52, 10))
	h.nPayload = h.nLiteralPayload + h.nLMDPayload

	h.freq = [freqCount]uint16{}
	if size == v2FixedHeaderSize {
		// No tables; check will reject the block.
		return size, nil
	}
	var in fse.ForwardInStream
	in.Init(v2FixedHeaderSize)
	for i := range h.freq {
		in.Refill(src, size)
		v, n := decodeFreq(in.Peek())
		if err := in.Skip(n); err != nil {
			return 0, errors.Wrap(ErrMalformedStream, "frequency tables overrun the header")
		}
		h.freq[i] = v
	}
	if !in.Done(size) {
		return 0, errors.Wrap(ErrMalformedStream, "frequency tables don't fill the header")
	}
	return size, nil
}
