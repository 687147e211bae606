// Package fse implements the finite state entropy (tANS) coder used by
// LZFSE blocks: bit streams, frequency normalization, and the encode and
// decode transition tables.
package fse

import (
	"math/bits"

	"github.com/pkg/errors"
)

// An EncoderEntry describes how one symbol is encoded.
type EncoderEntry struct {
	s0     int16 // states >= s0 emit k bits, the others k-1
	k      int16
	delta0 int16 // next state offset when emitting k bits
	delta1 int16 // next state offset when emitting k-1 bits
}

// A DecoderEntry describes one decoder state. For literal streams ValueBits
// is 0 and VBase is the symbol itself.
type DecoderEntry struct {
	TotalBits uint8 // state bits + extra value bits
	ValueBits uint8 // extra value bits
	Delta     int16 // base of the next state
	VBase     int32 // value of the symbol before the extra bits are added
}

// Normalize scales the histogram counts into freq so that the entries sum
// to nstates, giving every symbol that occurs at least one state.
// nstates must be a power of two, and len(freq) == len(counts).
func Normalize(freq []uint16, counts []uint32, nstates int) {
	var total uint32
	for _, c := range counts {
		total += c
	}
	var step uint32
	if total != 0 {
		step = (1 << 31) / total
	}
	shift := uint(bits.LeadingZeros32(uint32(nstates)) - 1)

	remaining := nstates
	maxFreq, maxSym := 0, 0
	for i, c := range counts {
		// Round to nearest with one extra bit of precision.
		f := int((((c * step) >> shift) + 1) >> 1)
		if f == 0 && c != 0 {
			f = 1
		}
		freq[i] = uint16(f)
		remaining -= f
		if f > maxFreq {
			maxFreq, maxSym = f, i
		}
	}

	if -remaining < maxFreq>>2 {
		freq[maxSym] = uint16(int(freq[maxSym]) + remaining)
	} else {
		adjust(freq, -remaining)
	}
}

// adjust takes overrun states away from the symbols, taking from the
// larger ones first and never going below 1.
func adjust(freq []uint16, overrun int) {
	for shift := 3; overrun != 0 && shift >= 0; shift-- {
		for i, f := range freq {
			if f <= 1 {
				continue
			}
			n := min(int(f-1)>>shift, overrun)
			freq[i] -= uint16(n)
			overrun -= n
			if overrun == 0 {
				break
			}
		}
	}
}

// CheckFreq verifies that freq describes exactly nstates states.
func CheckFreq(freq []uint16, nstates int) error {
	sum := 0
	for _, f := range freq {
		sum += int(f)
		if sum > nstates {
			return errors.Wrapf(ErrCorrupt, "frequencies exceed %d states", nstates)
		}
	}
	if sum != nstates {
		return errors.Wrapf(ErrCorrupt, "frequencies sum to %d, want %d", sum, nstates)
	}
	return nil
}

// InitEncoderTable fills t (one entry per symbol) from a normalized table.
func InitEncoderTable(t []EncoderEntry, freq []uint16, nstates int) {
	offset := 0
	nclz := bits.LeadingZeros32(uint32(nstates))
	for i, f16 := range freq {
		f := int(f16)
		if f == 0 {
			t[i] = EncoderEntry{}
			continue
		}
		// k is the shift that puts f<<k in [nstates, 2*nstates).
		k := bits.LeadingZeros32(uint32(f)) - nclz
		e := EncoderEntry{
			s0:     int16((f << k) - nstates),
			k:      int16(k),
			delta0: int16(offset - f + (nstates >> k)),
		}
		if k > 0 {
			e.delta1 = int16(offset - f + (nstates >> (k - 1)))
		}
		t[i] = e
		offset += f
	}
}

// InitDecoderTable fills t (one entry per state) from a normalized table
// that has passed CheckFreq. vbits and vbase give the extra bits and base
// value of each symbol; when they are nil the decoded value is the symbol.
func InitDecoderTable(t []DecoderEntry, freq []uint16, nstates int, vbits []uint8, vbase []int32) error {
	nclz := bits.LeadingZeros32(uint32(nstates))
	n := 0
	for i, f16 := range freq {
		f := int(f16)
		if f == 0 {
			continue
		}
		if n+f > nstates || n+f > len(t) {
			return errors.Wrap(ErrCorrupt, "frequency table overflows the state table")
		}
		k := bits.LeadingZeros32(uint32(f)) - nclz
		j0 := ((2 * nstates) >> k) - f

		e := DecoderEntry{VBase: int32(i)}
		if vbits != nil {
			e.ValueBits = vbits[i]
			e.VBase = vbase[i]
		}
		for j := 0; j < f; j++ {
			if j < j0 {
				e.TotalBits = uint8(k) + e.ValueBits
				e.Delta = int16(((f + j) << k) - nstates)
			} else {
				e.TotalBits = uint8(k-1) + e.ValueBits
				e.Delta = int16((j - j0) << (k - 1))
			}
			t[n] = e
			n++
		}
	}
	return nil
}

// Encode pushes the bits for symbol onto out and moves the state on.
func Encode(state *uint16, t []EncoderEntry, out *OutStream, symbol int) {
	s := int(*state)
	e := t[symbol]
	nbits, delta := int(e.k), int(e.delta0)
	if s < int(e.s0) {
		nbits, delta = nbits-1, int(e.delta1)
	}
	out.Push(uint(nbits), uint64(s&(1<<nbits-1)))
	*state = uint16(delta + s>>nbits)
}

// Decode reads one value and moves the state on. The accumulator must hold
// at least TotalBits bits.
func Decode(state *uint16, t []DecoderEntry, in *InStream) int32 {
	e := t[*state]
	b := in.Pull(uint(e.TotalBits))
	*state = uint16(int(e.Delta) + int(b>>e.ValueBits))
	return e.VBase + int32(b&(1<<e.ValueBits-1))
}
