package lzvn

import (
	"encoding/binary"
	"unsafe"

	"github.com/andybalholm/lzfse/internal/window"
	"github.com/pkg/errors"
)

var (
	// ErrSourceExhausted means the next instruction is not completely
	// present in Src. Nothing of it has been consumed.
	ErrSourceExhausted = errors.New("lzvn: source exhausted")
	// ErrDestinationFull means Dst has no room for the rest of the current
	// instruction. Its progress is saved in the Decoder.
	ErrDestinationFull = errors.New("lzvn: destination full")
	// ErrMalformed means the stream contains an undefined opcode or an
	// invalid distance.
	ErrMalformed = errors.New("lzvn: malformed stream")
)

// A Decoder holds the state of an LZVN decode. The caller owns the buffers
// and cursors, and may change Src, Dst and History between calls to Decode
// as long as unconsumed input and the bytes before DstPos stay where they
// were. The zero value is ready to use once Src and Dst are set.
type Decoder struct {
	Src    []byte
	SrcPos int

	Dst    []byte
	DstPos int

	// History holds output that precedes Dst[0]. Matches may reach into it.
	History []byte

	// DPrev is the distance of the last match.
	DPrev int

	// EndOfStream is set once the end-of-stream instruction is consumed.
	EndOfStream bool

	// An instruction interrupted by a full destination.
	l, m, d int
}

// DecodeScratchSize returns the size of the state DecodeBuffer keeps.
func DecodeScratchSize() int {
	return int(unsafe.Sizeof(Decoder{}))
}

// DecodeBuffer decodes the LZVN stream in src into dst, returning the number
// of bytes written. It stops at the end-of-stream instruction, when dst is
// full, or at the first error.
func DecodeBuffer(dst, src []byte) int {
	d := Decoder{Src: src, Dst: dst}
	d.Decode()
	return d.DstPos
}

// Decode runs until the end of the stream or an error. It returns nil
// once the end-of-stream instruction has been consumed.
func (d *Decoder) Decode() error {
	for !d.EndOfStream {
		if d.l != 0 || d.m != 0 {
			if err := d.copyPending(); err != nil {
				return err
			}
			continue
		}
		if err := d.next(); err != nil {
			return err
		}
	}
	return nil
}

// copyPending emits the literals, then the match, of the current
// instruction.
func (d *Decoder) copyPending() error {
	if d.l > 0 {
		n := min(d.l, len(d.Dst)-d.DstPos)
		copy(d.Dst[d.DstPos:d.DstPos+n], d.Src[d.SrcPos:d.SrcPos+n])
		d.DstPos += n
		d.SrcPos += n
		d.l -= n
		if d.l > 0 {
			return ErrDestinationFull
		}
	}
	if d.m > 0 {
		n := min(d.m, len(d.Dst)-d.DstPos)
		window.CopyMatch(d.Dst, d.DstPos, d.History, d.d, n)
		d.DstPos += n
		d.m -= n
		if d.m > 0 {
			return ErrDestinationFull
		}
	}
	return nil
}

// next decodes one instruction header. On success the instruction's
// literal count, match length and distance are pending.
func (d *Decoder) next() error {
	src := d.Src[d.SrcPos:]
	if len(src) == 0 {
		return ErrSourceExhausted
	}
	op := src[0]

	var n, l, m, dist int
	switch {
	case op == 0x06: // end of stream
		if len(src) < 8 {
			return ErrSourceExhausted
		}
		d.SrcPos += 8
		d.EndOfStream = true
		return nil

	case op == 0x0e || op == 0x16: // nop
		d.SrcPos++
		return nil

	case op == 0xf0: // large match, previous distance
		if len(src) < 2 {
			return ErrSourceExhausted
		}
		n, m, dist = 2, int(src[1])+16, d.DPrev

	case op > 0xf0: // small match, previous distance
		n, m, dist = 1, int(op&0xf), d.DPrev

	case op == 0xe0: // large literal
		if len(src) < 2 {
			return ErrSourceExhausted
		}
		n, l = 2, int(src[1])+16

	case op > 0xe0 && op < 0xf0: // small literal
		n, l = 1, int(op&0xf)

	case op >= 0xd0 && op < 0xe0, op >= 0x70 && op < 0x80:
		return errors.Wrapf(ErrMalformed, "undefined opcode %#02x", op)

	case op >= 0xa0 && op < 0xc0: // medium distance
		if len(src) < 3 {
			return ErrSourceExhausted
		}
		opnd := int(binary.LittleEndian.Uint16(src[1:]))
		n = 3
		l = int(op>>3) & 3
		m = (int(op&7)<<2 | opnd&3) + 3
		dist = opnd >> 2

	case op&7 == 7: // large distance
		if len(src) < 3 {
			return ErrSourceExhausted
		}
		n = 3
		l = int(op >> 6)
		m = int(op>>3&7) + 3
		dist = int(binary.LittleEndian.Uint16(src[1:]))

	case op&7 == 6: // previous distance
		l = int(op >> 6)
		if l == 0 {
			return errors.Wrapf(ErrMalformed, "undefined opcode %#02x", op)
		}
		n = 1
		m = int(op>>3&7) + 3
		dist = d.DPrev

	default: // small distance
		if len(src) < 2 {
			return ErrSourceExhausted
		}
		n = 2
		l = int(op >> 6)
		m = int(op>>3&7) + 3
		dist = int(op&7)<<8 | int(src[1])
	}

	if len(src) < n+l {
		return ErrSourceExhausted
	}
	if m > 0 {
		if dist == 0 || dist > len(d.History)+d.DstPos+l {
			return errors.Wrapf(ErrMalformed, "match distance %d out of range", dist)
		}
		d.DPrev = dist
	}
	d.SrcPos += n
	d.l, d.m, d.d = l, m, dist
	return nil
}
