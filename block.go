package lzfse

import (
	"github.com/andybalholm/lzfse/internal/fse"
	"github.com/pkg/errors"
)

// encodeMatches writes the triplets and literals collected so far as one
// compressed block, and empties the block.
func (e *Encoder) encodeMatches() error {
	if e.nMatches == 0 && e.nLiterals == 0 {
		return nil
	}

	var h blockHeader
	h.nMatches = uint32(e.nMatches)

	// A distance equal to the previous one is sent as 0.
	var dPrev int32
	nRaw := 0
	for i := 0; i < e.nMatches; i++ {
		nRaw += int(e.l[i] + e.m[i])
		if e.d[i] == dPrev {
			e.d[i] = 0
		} else {
			dPrev = e.d[i]
		}
	}
	h.nRaw = uint32(nRaw)

	// The literal stream is coded four at a time.
	for e.nLiterals&3 != 0 {
		e.literals[e.nLiterals] = 0
		e.nLiterals++
	}
	h.nLiterals = uint32(e.nLiterals)

	var lCounts [lSymbols]uint32
	var mCounts [mSymbols]uint32
	var dCounts [dSymbols]uint32
	var literalCounts [literalSymbols]uint32
	for i := 0; i < e.nMatches; i++ {
		lCounts[lSymbol(int(e.l[i]))]++
		mCounts[mSymbol(int(e.m[i]))]++
		dCounts[dSymbol(int(e.d[i]))]++
	}
	for _, c := range e.literals[:e.nLiterals] {
		literalCounts[c]++
	}
	fse.Normalize(h.lFreq(), lCounts[:], lStates)
	fse.Normalize(h.mFreq(), mCounts[:], mStates)
	fse.Normalize(h.dFreq(), dCounts[:], dStates)
	fse.Normalize(h.literalFreq(), literalCounts[:], literalStates)

	var lEnc [lSymbols]fse.EncoderEntry
	var mEnc [mSymbols]fse.EncoderEntry
	var dEnc [dSymbols]fse.EncoderEntry
	var literalEnc [literalSymbols]fse.EncoderEntry
	fse.InitEncoderTable(lEnc[:], h.lFreq(), lStates)
	fse.InitEncoderTable(mEnc[:], h.mFreq(), mStates)
	fse.InitEncoderTable(dEnc[:], h.dFreq(), dStates)
	fse.InitEncoderTable(literalEnc[:], h.literalFreq(), literalStates)

	headerSize := v1HeaderSize
	packed := false
	if e.HeaderFormat != HeaderPlain {
		if n := h.packedSize(); e.HeaderFormat == HeaderPacked || n < v1HeaderSize {
			headerSize, packed = n, true
		}
	}
	if len(e.dst)-e.dstPos < headerSize {
		return ErrDestinationFull
	}
	payloadStart := e.dstPos + headerSize

	// Literals are written last to first, so that the decoder, which
	// reads the stream backward, gets them in order.
	var out fse.OutStream
	pos := payloadStart
	var err error
	var literalState [4]uint16
	for i := e.nLiterals - 4; i >= 0; i -= 4 {
		for j := 3; j >= 0; j-- {
			fse.Encode(&literalState[j], literalEnc[:], &out, int(e.literals[i+j]))
		}
		if pos, err = out.Flush(e.dst, pos); err != nil {
			return destinationFull(err)
		}
	}
	var literalBits int
	if pos, literalBits, err = out.Finish(e.dst, pos); err != nil {
		return destinationFull(err)
	}
	h.literalState = literalState
	h.literalBits = int32(literalBits)
	h.nLiteralPayload = uint32(pos - payloadStart)

	// The LMD stream starts with 8 zero bytes, so the decoder never
	// reads before it.
	lmdStart := pos
	if len(e.dst)-pos < 8 {
		return ErrDestinationFull
	}
	clear(e.dst[pos : pos+8])
	pos += 8

	var lState, mState, dState uint16
	for i := e.nMatches - 1; i >= 0; i-- {
		d := int(e.d[i])
		s := dSymbol(d)
		out.Push(uint(dExtraBits[s]), uint64(d-int(dBaseValue[s])))
		fse.Encode(&dState, dEnc[:], &out, s)

		m := int(e.m[i])
		s = mSymbol(m)
		out.Push(uint(mExtraBits[s]), uint64(m-int(mBaseValue[s])))
		fse.Encode(&mState, mEnc[:], &out, s)

		l := int(e.l[i])
		s = lSymbol(l)
		out.Push(uint(lExtraBits[s]), uint64(l-int(lBaseValue[s])))
		fse.Encode(&lState, lEnc[:], &out, s)

		if pos, err = out.Flush(e.dst, pos); err != nil {
			return destinationFull(err)
		}
	}
	var lmdBits int
	if pos, lmdBits, err = out.Finish(e.dst, pos); err != nil {
		return destinationFull(err)
	}
	h.lState, h.mState, h.dState = lState, mState, dState
	h.lmdBits = int32(lmdBits)
	h.nLMDPayload = uint32(pos - lmdStart)
	h.nPayload = h.nLiteralPayload + h.nLMDPayload

	if packed {
		if _, err := h.putPacked(e.dst[e.dstPos:]); err != nil {
			return destinationFull(err)
		}
	} else {
		h.putPlain(e.dst[e.dstPos:])
	}

	e.dstPos = pos
	e.nMatches = 0
	e.nLiterals = 0
	return nil
}

func destinationFull(err error) error {
	if errors.Is(err, fse.ErrShortBuffer) {
		return ErrDestinationFull
	}
	return err
}
