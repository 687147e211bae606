package lz

import "encoding/binary"

// SingleHash is an implementation of the MatchFinder interface
// that uses a simple 4-byte hash to find matches. Each call to FindMatches
// is independent: matches never reach into earlier calls' input.
type SingleHash struct {
	// MaxDistance is the maximum distance (in bytes) to look back for
	// a match. The default is 65535.
	MaxDistance int

	// Parser chooses among the matches. The default is a GreedyParser.
	Parser Parser

	table [tableSize]uint32

	src []byte
}

func (q *SingleHash) Reset() {
	q.table = [tableSize]uint32{}
	q.src = nil
}

// FindMatches looks for matches in src, appends them to dst, and returns dst.
func (q *SingleHash) FindMatches(dst []Match, src []byte) []Match {
	if q.MaxDistance == 0 {
		q.MaxDistance = 65535
	}
	if q.Parser == nil {
		q.Parser = new(GreedyParser)
	}
	q.Reset()
	q.src = src
	dst = q.Parser.Parse(dst, q, 0, len(src))
	q.src = nil
	return dst
}

func (q *SingleHash) Search(dst []AbsoluteMatch, pos, min, max int) []AbsoluteMatch {
	if pos+4 > len(q.src) {
		return dst
	}
	src := q.src

	h := hash4(binary.LittleEndian.Uint32(src[pos:]))
	candidate := int(q.table[h&tableMask])
	q.table[h&tableMask] = uint32(pos)

	if candidate == 0 || pos-candidate > q.MaxDistance {
		return dst
	}

	if binary.LittleEndian.Uint32(src[pos:]) != binary.LittleEndian.Uint32(src[candidate:]) {
		return dst
	}

	// We have a 4-byte match now.

	start := pos
	match := candidate
	end := ExtendMatch(src[:max], match+4, start+4)
	for start > min && match > 0 && src[start-1] == src[match-1] {
		start--
		match--
	}

	return append(dst, AbsoluteMatch{
		Start: start,
		End:   end,
		Match: match,
	})
}
