package lzfse

import (
	"encoding/binary"
	"math"
	"slices"
	"unsafe"

	"github.com/andybalholm/lzfse/lz"
	"github.com/andybalholm/lzfse/lzvn"
	"github.com/apex/log"
	"github.com/pkg/errors"
)

// HeaderFormat selects how compressed block headers are written.
type HeaderFormat int

const (
	// HeaderAuto writes whichever header encoding is smaller.
	HeaderAuto HeaderFormat = iota
	// HeaderPacked always writes packed (bvx2) headers.
	HeaderPacked
	// HeaderPlain always writes plain (bvx1) headers.
	HeaderPlain
)

const defaultChunkSize = 1 << 18

// An Encoder compresses buffers. The zero value is ready to use, with the
// default settings. An Encoder may be reused, but not concurrently.
type Encoder struct {
	// GoodMatch is the match length that is accepted immediately,
	// without checking the next position for something better.
	// The default is DefaultGoodMatch.
	GoodMatch int

	// LZVNThreshold is the input size below which LZVN is used.
	// The default is DefaultLZVNThreshold.
	LZVNThreshold int

	HeaderFormat HeaderFormat

	// Inputs of at least chunkThreshold bytes are encoded chunkSize bytes
	// at a time, so that positions fit in the history table.
	chunkThreshold int
	chunkSize      int

	history    historyTable
	candidates [1]lz.AbsoluteMatch

	// Positions relative to history.base.
	srcEnd     int
	encodeI    int // next position to search
	srcLiteral int // first byte not yet covered by a triplet
	pending    lz.AbsoluteMatch

	dst    []byte
	dstPos int

	// The current block.
	nMatches  int
	nLiterals int
	l         [matchesPerBlock]int32
	m         [matchesPerBlock]int32
	d         [matchesPerBlock]int32
	literals  [literalsPerBlock + 4]byte

	lzvn lzvn.Encoder
}

// EncodeScratchSize returns the size of the scratch state EncodeBuffer
// needs, which is the size of an Encoder.
func EncodeScratchSize() int {
	return int(unsafe.Sizeof(Encoder{}))
}

// EncodeBuffer compresses src into dst and returns the number of bytes
// written. It returns 0 if dst is too small; there is no partial output.
// If scratch is nil, an Encoder is allocated for the call.
func EncodeBuffer(dst, src []byte, scratch *Encoder) int {
	if scratch == nil {
		scratch = new(Encoder)
	}
	return scratch.EncodeBuffer(dst, src)
}

func (e *Encoder) init() {
	if e.GoodMatch == 0 {
		e.GoodMatch = DefaultGoodMatch
	}
	if e.LZVNThreshold == 0 {
		e.LZVNThreshold = DefaultLZVNThreshold
	}
	if e.chunkThreshold == 0 {
		e.chunkThreshold = math.MaxInt32
	}
	if e.chunkSize == 0 {
		e.chunkSize = defaultChunkSize
	}
}

// EncodeBuffer compresses src into dst and returns the number of bytes
// written, or 0 if dst is too small.
func (e *Encoder) EncodeBuffer(dst, src []byte) int {
	e.init()

	if len(src) >= lzvn.MinSourceSize {
		if len(src) < e.LZVNThreshold {
			if n := e.encodeLZVN(dst, src); n > 0 {
				return n
			}
		} else {
			n, err := e.encodeLZFSE(dst, src)
			if err == nil {
				return n
			}
			log.WithError(err).WithField("size", len(src)).Debug("lzfse: storing block uncompressed")
		}
	}
	return encodeUncompressed(dst, src)
}

// Encode appends the compressed form of src to dst. It makes room for an
// uncompressed block, so it fails only for inputs of 2 GiB or more that
// don't compress.
func (e *Encoder) Encode(dst, src []byte) []byte {
	need := len(src) + uncompressedHeaderSize + 4
	start := len(dst)
	dst = slices.Grow(dst, need)
	n := e.EncodeBuffer(dst[start:start+need], src)
	return dst[:start+n]
}

// encodeUncompressed stores src in one uncompressed block followed by an
// end-of-stream block.
func encodeUncompressed(dst, src []byte) int {
	if len(src)+uncompressedHeaderSize+4 > len(dst) || len(src) >= math.MaxInt32 {
		return 0
	}
	binary.LittleEndian.PutUint32(dst, uint32(uncompressedBlockMagic))
	binary.LittleEndian.PutUint32(dst[4:], uint32(len(src)))
	n := uncompressedHeaderSize + copy(dst[uncompressedHeaderSize:], src)
	binary.LittleEndian.PutUint32(dst[n:], uint32(endOfStreamBlockMagic))
	return n + 4
}

// encodeLZVN stores src as one LZVN block followed by an end-of-stream
// block. It returns 0 if LZVN fails or doesn't make src smaller.
func (e *Encoder) encodeLZVN(dst, src []byte) int {
	if len(dst) <= lzvnHeaderSize+4 {
		return 0
	}
	n := e.lzvn.EncodeBuffer(dst[lzvnHeaderSize:len(dst)-4], src)
	if n == 0 || n >= len(src) {
		return 0
	}
	binary.LittleEndian.PutUint32(dst, uint32(lzvnBlockMagic))
	binary.LittleEndian.PutUint32(dst[4:], uint32(len(src)))
	binary.LittleEndian.PutUint32(dst[8:], uint32(n))
	n += lzvnHeaderSize
	binary.LittleEndian.PutUint32(dst[n:], uint32(endOfStreamBlockMagic))
	return n + 4
}

// encodeLZFSE writes src as LZFSE blocks followed by an end-of-stream
// block.
func (e *Encoder) encodeLZFSE(dst, src []byte) (int, error) {
	e.history.reset(src)
	e.dst = dst
	e.dstPos = 0
	e.encodeI = 0
	e.srcLiteral = 0
	e.pending = lz.AbsoluteMatch{}
	e.nMatches = 0
	e.nLiterals = 0
	defer func() {
		e.dst = nil
		e.history.src = nil
	}()

	if len(src) >= e.chunkThreshold && len(src) >= e.chunkSize {
		log.WithFields(log.Fields{
			"size":  len(src),
			"chunk": e.chunkSize,
		}).Debug("lzfse: encoding in chunks")

		b := e.chunkSize
		remaining := len(src) - b
		e.srcEnd = b
		if err := e.encodeBase(); err != nil {
			return 0, err
		}
		for remaining >= b {
			e.srcEnd = 2 * b
			if err := e.encodeBase(); err != nil {
				return 0, err
			}
			e.translate(b)
			remaining -= b
		}
		e.srcEnd = b + remaining
	} else {
		e.srcEnd = len(src)
	}

	if err := e.encodeBase(); err != nil {
		return 0, err
	}
	if err := e.finish(); err != nil {
		return 0, err
	}
	return e.dstPos, nil
}

// encodeBase runs the match search from encodeI up to srcEnd, holding
// back one pending match so that a better one starting at a later
// position can replace it.
func (e *Encoder) encodeBase() error {
	limit := e.srcEnd - 8
	for ; e.encodeI < limit; e.encodeI++ {
		pos := e.encodeI
		found := e.history.Search(e.candidates[:0], pos, e.srcLiteral, limit)

		if len(found) == 0 {
			if pos-e.srcLiteral > 8*maxL {
				if e.pending.Length() > 0 {
					if err := e.pushMatch(e.pending); err != nil {
						return err
					}
					e.pending = lz.AbsoluteMatch{}
				} else if err := e.pushLiterals(maxL); err != nil {
					return err
				}
			}
			continue
		}

		incoming := found[0]
		switch {
		case incoming.Length() >= e.GoodMatch:
			if e.pending.Length() > 0 && e.pending.End <= incoming.Start {
				if err := e.pushMatch(e.pending); err != nil {
					return err
				}
			}
			if err := e.pushMatch(incoming); err != nil {
				return err
			}
			e.pending = lz.AbsoluteMatch{}

		case e.pending.Length() == 0:
			e.pending = incoming

		case e.pending.End <= incoming.Start:
			if err := e.pushMatch(e.pending); err != nil {
				return err
			}
			e.pending = incoming

		default:
			// The two overlap; keep the longer one.
			m := e.pending
			if incoming.Length() > m.Length() {
				m = incoming
			}
			if err := e.pushMatch(m); err != nil {
				return err
			}
			e.pending = lz.AbsoluteMatch{}
		}
	}
	return nil
}

// finish flushes the pending match and the trailing literals, writes the
// last block, and ends the stream.
func (e *Encoder) finish() error {
	if e.pending.Length() > 0 {
		if err := e.pushMatch(e.pending); err != nil {
			return err
		}
		e.pending = lz.AbsoluteMatch{}
	}
	if err := e.pushLiterals(e.srcEnd - e.srcLiteral); err != nil {
		return err
	}
	if err := e.encodeMatches(); err != nil {
		return err
	}
	if len(e.dst)-e.dstPos < 4 {
		return ErrDestinationFull
	}
	binary.LittleEndian.PutUint32(e.dst[e.dstPos:], uint32(endOfStreamBlockMagic))
	e.dstPos += 4
	return nil
}

// translate shifts all positions back by delta bytes so that they stay
// small while the encoder walks through a large input.
func (e *Encoder) translate(delta int) {
	e.srcEnd -= delta
	e.encodeI -= delta
	e.srcLiteral -= delta
	if e.pending.Length() > 0 {
		e.pending.Start -= delta
		e.pending.End -= delta
		e.pending.Match -= delta
	}
	e.history.translate(delta)
}

// srcBytes returns the input between two relative positions.
func (e *Encoder) srcBytes(start, end int) []byte {
	return e.history.src[e.history.base+start : e.history.base+end]
}

// pushMatch adds the literals before m and m itself to the current block,
// writing the block out first if they don't fit.
func (e *Encoder) pushMatch(m lz.AbsoluteMatch) error {
	if !e.tryPushMatch(m) {
		if e.nMatches == 0 {
			return errors.Errorf("lzfse: match %+v doesn't fit in an empty block", m)
		}
		if err := e.encodeMatches(); err != nil {
			return err
		}
		if !e.tryPushMatch(m) {
			return errors.Errorf("lzfse: match %+v doesn't fit in an empty block", m)
		}
	}
	e.srcLiteral = m.End
	return nil
}

// tryPushMatch splits the literals before m and m itself into triplets
// within the L and M limits, and adds them all to the block or none.
func (e *Encoder) tryPushMatch(m lz.AbsoluteMatch) bool {
	nMatches, nLiterals := e.nMatches, e.nLiterals
	lits := e.srcBytes(e.srcLiteral, m.Start)
	length := m.Length()
	dist := int32(m.Start - m.Match)

	for len(lits) > maxL {
		if !e.pushLMD(maxL, 0, 1, lits[:maxL]) {
			e.nMatches, e.nLiterals = nMatches, nLiterals
			return false
		}
		lits = lits[maxL:]
	}
	for length > maxM {
		if !e.pushLMD(len(lits), maxM, dist, lits) {
			e.nMatches, e.nLiterals = nMatches, nLiterals
			return false
		}
		lits = nil
		length -= maxM
	}
	if !e.pushLMD(len(lits), length, dist, lits) {
		e.nMatches, e.nLiterals = nMatches, nLiterals
		return false
	}
	return true
}

// pushLMD adds one triplet and its literals to the block. It returns false
// if the block is full.
func (e *Encoder) pushLMD(l, m int, d int32, lits []byte) bool {
	if e.nMatches == matchesPerBlock || e.nLiterals+l > literalsPerBlock {
		return false
	}
	e.l[e.nMatches] = int32(l)
	e.m[e.nMatches] = int32(m)
	e.d[e.nMatches] = d
	e.nMatches++
	e.nLiterals += copy(e.literals[e.nLiterals:], lits[:l])
	return true
}

// pushLiterals adds the next n literals as match-free triplets.
func (e *Encoder) pushLiterals(n int) error {
	for n > 0 {
		l := min(n, maxL)
		if !e.pushLMD(l, 0, 1, e.srcBytes(e.srcLiteral, e.srcLiteral+l)) {
			if err := e.encodeMatches(); err != nil {
				return err
			}
			continue
		}
		e.srcLiteral += l
		n -= l
	}
	return nil
}
