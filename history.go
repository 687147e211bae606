package lzfse

import (
	"encoding/binary"

	"github.com/andybalholm/lzfse/lz"
)

// noPosition marks an empty history slot. It is far enough back that it
// never passes the distance check.
const noPosition = -4 * maxD

// A historySet holds the most recent positions whose first four bytes
// hash to the same bucket, newest first.
type historySet struct {
	pos   [hashWidth]int32
	value [hashWidth]uint32
}

// A historyTable finds matches for the LZFSE encoder. Positions are
// relative to base, an offset into src that moves forward as a large input
// is encoded in chunks.
type historyTable struct {
	src  []byte
	base int
	sets [1 << hashBits]historySet
}

func hashX(x uint32) uint32 {
	return (x * 2654435761) >> (32 - hashBits)
}

func (h *historyTable) reset(src []byte) {
	h.src = src
	h.base = 0
	var empty historySet
	for i := range empty.pos {
		empty.pos[i] = noPosition
	}
	for i := range h.sets {
		h.sets[i] = empty
	}
}

// translate moves base forward by delta bytes.
func (h *historyTable) translate(delta int) {
	h.base += delta
	d := int32(delta)
	for i := range h.sets {
		s := &h.sets[i]
		for j, p := range s.pos {
			s.pos[j] = max(p-d, noPosition)
		}
	}
}

// Search records pos in the history and returns the longest match starting
// at pos, extended backward as far as min and ending at or before max.
// Positions before min, or too close to max for a 4-byte match, are
// recorded but not searched.
func (h *historyTable) Search(dst []lz.AbsoluteMatch, pos, min, max int) []lz.AbsoluteMatch {
	src := h.src
	abs := h.base + pos
	x := binary.LittleEndian.Uint32(src[abs:])

	set := &h.sets[hashX(x)]
	prev := *set
	copy(set.pos[1:], prev.pos[:hashWidth-1])
	copy(set.value[1:], prev.value[:hashWidth-1])
	set.pos[0] = int32(pos)
	set.value[0] = x

	if pos < min || pos+4 > max {
		return dst
	}

	var best lz.AbsoluteMatch
	for k := 0; k < hashWidth; k++ {
		ref := int(prev.pos[k])
		if prev.value[k] != x || ref+maxD < pos || h.base+ref < 0 {
			continue
		}
		end := lz.ExtendMatch(src[:h.base+max], h.base+ref+4, abs+4) - h.base
		if end-pos > best.Length() {
			best = lz.AbsoluteMatch{Start: pos, End: end, Match: ref}
		}
	}
	if best.Length() == 0 {
		return dst
	}

	if best.Length() > maxMatchLength {
		best.End = best.Start + maxMatchLength
	}
	for best.Start > min && h.base+best.Match > 0 && src[h.base+best.Start-1] == src[h.base+best.Match-1] {
		best.Start--
		best.Match--
	}
	return append(dst, best)
}
