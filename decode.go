package lzfse

import (
	"encoding/binary"
	"slices"
	"strconv"
	"unsafe"

	"github.com/andybalholm/lzfse/internal/fse"
	"github.com/andybalholm/lzfse/internal/window"
	"github.com/andybalholm/lzfse/lzvn"
	"github.com/apex/log"
	"github.com/pkg/errors"
)

// DecoderState is the position of a Decoder within the stream.
type DecoderState int

const (
	StateBlockStart DecoderState = iota
	StateLiteralStream
	StateLMDStream
	StateUncompressedCopy
	StateDelegatedCopy
	StateDone
	StateError
)

func (s DecoderState) String() string {
	switch s {
	case StateBlockStart:
		return "block start"
	case StateLiteralStream:
		return "literal stream"
	case StateLMDStream:
		return "LMD stream"
	case StateUncompressedCopy:
		return "uncompressed copy"
	case StateDelegatedCopy:
		return "LZVN block"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	}
	return "DecoderState(" + strconv.Itoa(int(s)) + ")"
}

// A Decoder decompresses one LZFSE stream. When the destination fills up
// before the stream ends, Decode returns ErrDestinationFull and the next
// call continues where it stopped; the destination passed to each call
// may be a different buffer.
type Decoder struct {
	src    []byte
	srcPos int
	state  DecoderState
	err    error

	// Output from earlier calls, for matches that reach back past the
	// start of the destination. DecodeBuffer makes only one call, so it
	// skips keeping it.
	history   window.Window
	noHistory bool

	header blockHeader

	// Uncompressed and LZVN blocks.
	rawLeft     int
	payloadLeft int
	lzvn        lzvn.Decoder

	// Compressed blocks. The literals are decoded in one go when the block
	// starts; the LMD stream is decoded as output is produced.
	blockStart  int
	lmdStart    int
	lmdEnd      int
	nLiterals   int
	literalPos  int
	matchesLeft int
	in          fse.InStream
	lState      uint16
	mState      uint16
	dState      uint16
	l, m        int // unfinished part of the current triplet
	dist        int

	literals     [decoderLiteralsSize]byte
	lTable       [lStates]fse.DecoderEntry
	mTable       [mStates]fse.DecoderEntry
	dTable       [dStates]fse.DecoderEntry
	literalTable [literalStates]fse.DecoderEntry
}

// NewDecoder returns a Decoder that reads the stream in src.
func NewDecoder(src []byte) *Decoder {
	d := new(Decoder)
	d.Reset(src)
	return d
}

// Reset discards the Decoder's state and starts decoding src.
func (d *Decoder) Reset(src []byte) {
	d.src = src
	d.srcPos = 0
	d.state = StateBlockStart
	d.err = nil
	d.history.Reset()
	d.noHistory = false
	d.l, d.m = 0, 0
}

// State returns where the Decoder is in the stream.
func (d *Decoder) State() DecoderState {
	return d.state
}

// Decode writes decompressed data to dst and returns the number of bytes
// written. It returns nil once the end of the stream is reached, and
// ErrDestinationFull if dst filled up first; in that case Decode should be
// called again with more room. Any other error is permanent.
func (d *Decoder) Decode(dst []byte) (int, error) {
	pos := 0
	var err error
	for err == nil {
		switch d.state {
		case StateBlockStart:
			err = d.startBlock()
		case StateLiteralStream:
			err = d.decodeLiterals()
		case StateLMDStream:
			pos, err = d.decodeLMD(dst, pos)
		case StateUncompressedCopy:
			pos, err = d.copyUncompressed(dst, pos)
		case StateDelegatedCopy:
			pos, err = d.decodeLZVN(dst, pos)
		case StateDone:
			d.remember(dst[:pos])
			return pos, nil
		case StateError:
			return pos, d.err
		}
	}

	if err == ErrDestinationFull {
		d.remember(dst[:pos])
		return pos, err
	}
	log.WithError(err).WithFields(log.Fields{
		"state":  d.state.String(),
		"offset": d.srcPos,
	}).Debug("lzfse: decode failed")
	d.state = StateError
	d.err = err
	return pos, err
}

func (d *Decoder) remember(out []byte) {
	if !d.noHistory {
		d.history.Append(out)
	}
}

// startBlock reads the header of the next block.
func (d *Decoder) startBlock() error {
	src := d.src[d.srcPos:]
	if len(src) < 4 {
		return ErrSourceExhausted
	}
	switch m := magic(binary.LittleEndian.Uint32(src)); m {
	case endOfStreamBlockMagic:
		d.srcPos += 4
		d.state = StateDone

	case uncompressedBlockMagic:
		if len(src) < uncompressedHeaderSize {
			return ErrSourceExhausted
		}
		d.rawLeft = int(binary.LittleEndian.Uint32(src[4:]))
		d.srcPos += uncompressedHeaderSize
		d.state = StateUncompressedCopy

	case lzvnBlockMagic:
		if len(src) < lzvnHeaderSize {
			return ErrSourceExhausted
		}
		d.rawLeft = int(binary.LittleEndian.Uint32(src[4:]))
		d.payloadLeft = int(binary.LittleEndian.Uint32(src[8:]))
		d.srcPos += lzvnHeaderSize
		d.lzvn = lzvn.Decoder{}
		d.state = StateDelegatedCopy

	case compressedV1BlockMagic, compressedV2BlockMagic:
		return d.startCompressed(m, src)

	default:
		return errors.Wrapf(ErrMalformedStream, "unknown block %v", m)
	}
	return nil
}

// startCompressed reads a bvx1 or bvx2 header and builds the decoding
// tables.
func (d *Decoder) startCompressed(m magic, src []byte) error {
	h := &d.header
	var n int
	var err error
	if m == compressedV1BlockMagic {
		n, err = h.parsePlain(src)
	} else {
		n, err = h.parsePacked(src)
	}
	if err != nil {
		return err
	}
	if err := h.check(); err != nil {
		return err
	}
	if uint64(len(src)) < uint64(n)+uint64(h.nLiteralPayload)+uint64(h.nLMDPayload) {
		return ErrSourceExhausted
	}

	for _, t := range []struct {
		table   []fse.DecoderEntry
		freq    []uint16
		nstates int
		vbits   []uint8
		vbase   []int32
	}{
		{d.lTable[:], h.lFreq(), lStates, lExtraBits[:], lBaseValue[:]},
		{d.mTable[:], h.mFreq(), mStates, mExtraBits[:], mBaseValue[:]},
		{d.dTable[:], h.dFreq(), dStates, dExtraBits[:], dBaseValue[:]},
		{d.literalTable[:], h.literalFreq(), literalStates, nil, nil},
	} {
		if err := fse.InitDecoderTable(t.table, t.freq, t.nstates, t.vbits, t.vbase); err != nil {
			return errors.Wrap(ErrMalformedStream, err.Error())
		}
	}

	d.blockStart = d.srcPos
	d.lmdStart = d.srcPos + n + int(h.nLiteralPayload)
	d.lmdEnd = d.lmdStart + int(h.nLMDPayload)
	d.nLiterals = int(h.nLiterals)
	d.matchesLeft = int(h.nMatches)
	d.state = StateLiteralStream
	return nil
}

// decodeLiterals decodes the whole literal stream of the block.
func (d *Decoder) decodeLiterals() error {
	h := &d.header
	var in fse.InStream
	if err := in.Init(d.src, d.blockStart, d.lmdStart, int(h.literalBits)); err != nil {
		return errors.Wrap(ErrMalformedStream, "literal stream: "+err.Error())
	}
	state := h.literalState
	table := d.literalTable[:]
	for i := 0; i < d.nLiterals; i += 4 {
		if err := in.Flush(d.src); err != nil {
			return errors.Wrap(ErrMalformedStream, "literal stream: "+err.Error())
		}
		d.literals[i+0] = byte(fse.Decode(&state[0], table, &in))
		d.literals[i+1] = byte(fse.Decode(&state[1], table, &in))
		d.literals[i+2] = byte(fse.Decode(&state[2], table, &in))
		d.literals[i+3] = byte(fse.Decode(&state[3], table, &in))
	}

	if err := d.in.Init(d.src, d.lmdStart, d.lmdEnd, int(h.lmdBits)); err != nil {
		return errors.Wrap(ErrMalformedStream, "LMD stream: "+err.Error())
	}
	d.lState, d.mState, d.dState = h.lState, h.mState, h.dState
	d.literalPos = 0
	d.l, d.m = 0, 0
	d.dist = -1
	d.state = StateLMDStream
	return nil
}

// decodeLMD decodes triplets and writes their literals and matches to
// dst[pos:].
func (d *Decoder) decodeLMD(dst []byte, pos int) (int, error) {
	hist := d.history.Bytes()
	for {
		if d.l == 0 && d.m == 0 {
			if d.matchesLeft == 0 {
				d.srcPos = d.lmdEnd
				d.state = StateBlockStart
				return pos, nil
			}
			if err := d.in.Flush(d.src); err != nil {
				return pos, errors.Wrap(ErrMalformedStream, "LMD stream: "+err.Error())
			}
			l := int(fse.Decode(&d.lState, d.lTable[:], &d.in))
			m := int(fse.Decode(&d.mState, d.mTable[:], &d.in))
			if dist := int(fse.Decode(&d.dState, d.dTable[:], &d.in)); dist != 0 {
				d.dist = dist
			}
			if l > d.nLiterals-d.literalPos {
				return pos, errors.Wrapf(ErrMalformedStream, "%d literals wanted, %d left", l, d.nLiterals-d.literalPos)
			}
			if d.dist < 1 || d.dist > len(hist)+pos+l {
				return pos, errors.Wrapf(ErrMalformedStream, "match distance %d out of range", d.dist)
			}
			d.matchesLeft--
			d.l, d.m = l, m
		}

		n := min(d.l, len(dst)-pos)
		copy(dst[pos:pos+n], d.literals[d.literalPos:])
		pos += n
		d.literalPos += n
		d.l -= n
		if d.l > 0 {
			return pos, ErrDestinationFull
		}

		n = min(d.m, len(dst)-pos)
		window.CopyMatch(dst, pos, hist, d.dist, n)
		pos += n
		d.m -= n
		if d.m > 0 {
			return pos, ErrDestinationFull
		}
	}
}

func (d *Decoder) copyUncompressed(dst []byte, pos int) (int, error) {
	for d.rawLeft > 0 {
		src := d.src[d.srcPos:]
		if len(src) == 0 {
			return pos, ErrSourceExhausted
		}
		if pos == len(dst) {
			return pos, ErrDestinationFull
		}
		n := copy(dst[pos:], src[:min(d.rawLeft, len(src))])
		pos += n
		d.srcPos += n
		d.rawLeft -= n
	}
	d.state = StateBlockStart
	return pos, nil
}

// decodeLZVN runs the LZVN decoder on the block's payload, limiting it to
// the payload and to the block's decoded size.
func (d *Decoder) decodeLZVN(dst []byte, pos int) (int, error) {
	avail := len(d.src) - d.srcPos
	truncated := avail < d.payloadLeft
	srcLen := min(d.payloadLeft, avail)

	z := &d.lzvn
	z.Src = d.src[d.srcPos : d.srcPos+srcLen]
	z.SrcPos = 0
	z.Dst = dst[:pos+min(len(dst)-pos, d.rawLeft)]
	z.DstPos = pos
	z.History = d.history.Bytes()

	err := z.Decode()

	d.srcPos += z.SrcPos
	d.payloadLeft -= z.SrcPos
	d.rawLeft -= z.DstPos - pos
	pos = z.DstPos
	z.Src, z.Dst, z.History = nil, nil, nil

	switch {
	case d.rawLeft == 0 && d.payloadLeft == 0 && z.EndOfStream:
		d.state = StateBlockStart
		return pos, nil
	case errors.Is(err, lzvn.ErrMalformed):
		return pos, errors.Wrap(ErrMalformedStream, err.Error())
	case z.EndOfStream, d.payloadLeft == 0, d.rawLeft == 0:
		return pos, errors.Wrap(ErrMalformedStream, "LZVN payload doesn't match the block header")
	case errors.Is(err, lzvn.ErrSourceExhausted):
		if truncated {
			return pos, ErrSourceExhausted
		}
		return pos, errors.Wrap(ErrMalformedStream, "LZVN payload ends mid-instruction")
	}
	return pos, ErrDestinationFull
}

// DecodeScratchSize returns the size of the scratch state DecodeBuffer
// needs, which is the size of a Decoder.
func DecodeScratchSize() int {
	return int(unsafe.Sizeof(Decoder{}))
}

// DecodeBuffer decompresses src into dst and returns the number of bytes
// written. If dst is too small, it returns len(dst), with dst holding the
// start of the output. It returns 0 if src is not a valid stream.
// If scratch is nil, a Decoder is allocated for the call.
func DecodeBuffer(dst, src []byte, scratch *Decoder) int {
	if scratch == nil {
		scratch = new(Decoder)
	}
	scratch.Reset(src)
	scratch.noHistory = true
	n, err := scratch.Decode(dst)
	switch {
	case err == nil:
		return n
	case err == ErrDestinationFull:
		return len(dst)
	}
	return 0
}

// Decode appends the decompressed contents of the stream in src to dst.
func Decode(dst, src []byte) ([]byte, error) {
	d := NewDecoder(src)
	for {
		if len(dst) == cap(dst) {
			dst = slices.Grow(dst, max(4*len(src), 4096))
		}
		n, err := d.Decode(dst[len(dst):cap(dst)])
		dst = dst[:len(dst)+n]
		if err != ErrDestinationFull {
			return dst, err
		}
	}
}
