package sieve

import (
	"fmt"

	"github.com/park285/fumen-sieve/internal/domain"
)

// SupportState is the accumulated support verdict for one tracked color.
type SupportState uint8

const (
	StateUnknown SupportState = iota
	StateUnsupported
	StateSupported
)

func (s SupportState) String() string {
	switch s {
	case StateUnsupported:
		return "unsupported"
	case StateSupported:
		return "supported"
	default:
		return "unknown"
	}
}

// Targets is the set of tracked colors, indexed by piece ordinal.
type Targets [domain.NumPieces]bool

func NewTargets(pieces []domain.Piece) Targets {
	var t Targets
	for _, p := range pieces {
		t[p] = true
	}
	return t
}

func (t Targets) Has(p domain.Piece) bool { return t[p] }

// SupportVerdict holds the final per-color states of one scan.
type SupportVerdict struct {
	States  [domain.NumPieces]SupportState
	tracked Targets
}

// OK reports whether no tracked color ended unsupported. Colors never seen stay unknown
// and are accepted.
func (v SupportVerdict) OK() bool {
	for p, tracked := range v.tracked {
		if tracked && v.States[p] == StateUnsupported {
			return false
		}
	}
	return true
}

// Unsupported lists the tracked colors that failed.
func (v SupportVerdict) Unsupported() []domain.Piece {
	var out []domain.Piece
	for p, tracked := range v.tracked {
		if tracked && v.States[p] == StateUnsupported {
			out = append(out, domain.Piece(p))
		}
	}
	return out
}

func (v *SupportVerdict) record(p domain.Piece, supported bool) {
	// Supported is skipped by the caller; Unsupported never upgrades.
	if v.States[p] != StateUnknown {
		return
	}
	if supported {
		v.States[p] = StateSupported
	} else {
		v.States[p] = StateUnsupported
	}
}

// belowRule decides whether the tracked cell of color self rests on below.
type belowRule func(self domain.Piece, below domain.Cell) (bool, error)

// scanSupport walks the field bottom to top, left to right, and folds every tracked cell
// into the verdict. The floor and garbage always support. The scan never stops early on
// an unsupported finding; it stops only when rule returns an error.
func scanSupport(f *domain.Field, targets Targets, rule belowRule) (SupportVerdict, error) {
	v := SupportVerdict{tracked: targets}
	for y := 0; y < f.Height(); y++ {
		for x := 0; x < f.Width(); x++ {
			p, ok := f.At(x, y).PieceOf()
			if !ok || !targets.Has(p) || v.States[p] == StateSupported {
				continue
			}
			if y == 0 {
				v.record(p, true)
				continue
			}
			below := f.At(x, y-1)
			if below.IsGarbage() {
				v.record(p, true)
				continue
			}
			supported, err := rule(p, below)
			if err != nil {
				return v, fmt.Errorf("cell (%d,%d): %w", x, y, err)
			}
			v.record(p, supported)
		}
	}
	return v, nil
}

// CheckBefore runs the first support phase. A cell is supported by a different color
// that is itself tracked; stacking on the same color does not count.
func CheckBefore(f *domain.Field, targets Targets) SupportVerdict {
	v, _ := scanSupport(f, targets, func(self domain.Piece, below domain.Cell) (bool, error) {
		bp, ok := below.PieceOf()
		return ok && targets.Has(bp) && bp != self, nil
	})
	return v
}

// CheckAfter runs the order-aware support phase. Empty and pivot cells never support.
// Any other color supports only if its last occurrence in seq comes strictly before
// the last occurrence of the supported color. A below color absent from seq is a
// contract violation.
func CheckAfter(f *domain.Field, targets Targets, seq Sequence, pivot domain.Piece) (SupportVerdict, error) {
	return scanSupport(f, targets, func(self domain.Piece, below domain.Cell) (bool, error) {
		bp, ok := below.PieceOf()
		if !ok || bp == pivot {
			return false, nil
		}
		if _, found := seq.RightmostIndexOf(bp); !found {
			return false, fmt.Errorf("%w: %s not found in sequence %s", domain.ErrContractViolation, bp, seq)
		}
		earlier, found := seq.Precedes(bp, self)
		if !found {
			return false, fmt.Errorf("%w: %s not found in sequence %s", domain.ErrContractViolation, self, seq)
		}
		return earlier, nil
	})
}
