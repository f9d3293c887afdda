package sieve

import (
	"strings"

	"github.com/park285/fumen-sieve/internal/domain"
)

// Sequence is the committed drop order: the before group followed by the after group.
// Duplicates are kept; positions are meaningful.
type Sequence struct {
	pieces []domain.Piece
}

func NewSequence(before, after []domain.Piece) Sequence {
	s := make([]domain.Piece, 0, len(before)+len(after))
	s = append(s, before...)
	s = append(s, after...)
	return Sequence{pieces: s}
}

func (s Sequence) Len() int { return len(s.pieces) }

// RightmostIndexOf returns the last position of p in the sequence.
func (s Sequence) RightmostIndexOf(p domain.Piece) (int, bool) {
	for i := len(s.pieces) - 1; i >= 0; i-- {
		if s.pieces[i] == p {
			return i, true
		}
	}
	return -1, false
}

// Precedes reports whether the last occurrence of a comes strictly before the last
// occurrence of b. Either piece missing from the sequence yields found=false.
func (s Sequence) Precedes(a, b domain.Piece) (precedes bool, found bool) {
	ia, okA := s.RightmostIndexOf(a)
	ib, okB := s.RightmostIndexOf(b)
	if !okA || !okB {
		return false, false
	}
	return ia < ib, true
}

func (s Sequence) String() string {
	var b strings.Builder
	for _, p := range s.pieces {
		b.WriteString(p.String())
	}
	return b.String()
}
