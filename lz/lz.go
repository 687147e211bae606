// Package lz holds the LZ77 intermediate representation shared by the
// compressors in this module.
//
// Most LZ77 compressors have two main parts:
//   - Something that looks for repeated sequences of bytes
//   - An encoder for the compressed data format (often an entropy coder)
//
// Keeping the two apart lets the LZVN and LZFSE encoders share match
// finding helpers, and lets tests feed the same matches to more than one
// encoder.
package lz

// A Match is the basic unit of LZ77 compression: an L, M, D triplet.
type Match struct {
	Unmatched int // the number of unmatched bytes since the previous match (L)
	Length    int // the number of bytes in the matched string (M); it may be 0 at the end of the input
	Distance  int // how far back in the stream to copy from (D)
}

// A MatchFinder performs the LZ77 stage of compression, looking for matches.
type MatchFinder interface {
	// FindMatches looks for matches in src, appends them to dst, and returns dst.
	FindMatches(dst []Match, src []byte) []Match

	// Reset clears any internal state, preparing the MatchFinder to be used with
	// a new stream.
	Reset()
}

// An Encoder encodes the data in its final format.
type Encoder interface {
	// Encode appends the encoded format of src to dst, using the match
	// information from matches.
	Encode(dst []byte, src []byte, matches []Match, lastBlock bool) []byte
}
