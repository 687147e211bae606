package lz

import "encoding/binary"

// HashChain is an implementation of the MatchFinder interface that
// uses hash chaining to find longer matches. Like SingleHash, each call to
// FindMatches is independent.
type HashChain struct {
	// SearchLen is how many entries to examine on the hash chain.
	// The default is 1.
	SearchLen int

	// MaxDistance is the maximum distance (in bytes) to look back for
	// a match. The default is 65535.
	MaxDistance int

	// Parser chooses among the matches. The default is a GreedyParser.
	Parser Parser

	table [tableSize]uint32

	src   []byte
	chain []uint16
}

func (q *HashChain) Reset() {
	q.table = [tableSize]uint32{}
	q.src = nil
	q.chain = q.chain[:0]
}

// FindMatches looks for matches in src, appends them to dst, and returns dst.
func (q *HashChain) FindMatches(dst []Match, src []byte) []Match {
	if q.MaxDistance == 0 {
		q.MaxDistance = 65535
	}
	if q.SearchLen == 0 {
		q.SearchLen = 1
	}
	if q.Parser == nil {
		q.Parser = new(GreedyParser)
	}
	q.Reset()
	q.src = src

	// The table holds position+1, so that 0 means empty. Chain entries are
	// 16-bit deltas; a longer step ends the chain.
	chain := q.chain
	for i := 0; i+3 < len(src); i++ {
		h := hash4(binary.LittleEndian.Uint32(src[i:])) & tableMask
		candidate := int(q.table[h]) - 1
		q.table[h] = uint32(i + 1)
		if candidate < 0 || i-candidate > 65535 {
			chain = append(chain, 0)
		} else {
			chain = append(chain, uint16(i-candidate))
		}
	}
	q.chain = chain

	dst = q.Parser.Parse(dst, q, 0, len(src))
	q.src = nil
	return dst
}

func (q *HashChain) Search(dst []AbsoluteMatch, pos, min, max int) []AbsoluteMatch {
	if pos >= len(q.chain) || pos+4 > len(q.src) {
		return dst
	}
	src := q.src
	searchSeq := binary.LittleEndian.Uint32(src[pos:])

	var length int

	candidate := pos
	for i := 0; i < q.SearchLen; i++ {
		d := q.chain[candidate]
		if d == 0 {
			break
		}
		candidate -= int(d)
		if candidate < 0 || pos-candidate > q.MaxDistance {
			break
		}
		if binary.LittleEndian.Uint32(src[candidate:]) != searchSeq {
			continue
		}

		newEnd := ExtendMatch(src[:max], candidate+4, pos+4)

		newStart := pos
		newMatch := candidate
		for newStart > min && newMatch > 0 && src[newStart-1] == src[newMatch-1] {
			newStart--
			newMatch--
		}

		if newEnd-newStart > length {
			dst = append(dst, AbsoluteMatch{
				Start: newStart,
				End:   newEnd,
				Match: newMatch,
			})
			length = newEnd - newStart
		}
	}

	return dst
}
