// Package sieve holds the structural checks applied to one decoded field: gap
// continuity and the two support phases.
package sieve

import (
	"fmt"

	"github.com/park285/fumen-sieve/internal/domain"
)

// Outcome is the structural verdict for one field.
type Outcome string

const (
	Accepted       Outcome = "accepted"
	RejectedGap    Outcome = "gap"
	RejectedBefore Outcome = "unsupported_before"
	RejectedAfter  Outcome = "unsupported_after"
)

// Groups is the caller-supplied drop order split at the pivot.
type Groups struct {
	Before []domain.Piece
	After  []domain.Piece
	Pivot  domain.Piece
}

// ParseGroups expands letter notation for both groups and the pivot.
func ParseGroups(before, after, pivot string) (Groups, error) {
	b, err := domain.ParsePieces(before)
	if err != nil {
		return Groups{}, fmt.Errorf("before group: %w", err)
	}
	a, err := domain.ParsePieces(after)
	if err != nil {
		return Groups{}, fmt.Errorf("after group: %w", err)
	}
	pv, err := domain.ParsePieces(pivot)
	if err != nil {
		return Groups{}, fmt.Errorf("pivot: %w", err)
	}
	if len(pv) != 1 {
		return Groups{}, fmt.Errorf("pivot must be a single piece letter, got %q", pivot)
	}
	return Groups{Before: b, After: a, Pivot: pv[0]}, nil
}

func (g Groups) Sequence() Sequence { return NewSequence(g.Before, g.After) }

// Key is a stable textual form of the groups, used for cache keys.
func (g Groups) Key() string {
	return fmt.Sprintf("%s:%s:%s", NewSequence(g.Before, nil), NewSequence(g.After, nil), g.Pivot)
}

// Evaluate runs gap continuity, then phase 1 over the before group, then phase 2 over
// the after group. The error is non-nil only for contract violations.
func Evaluate(f *domain.Field, g Groups) (Outcome, error) {
	if !IsContinuous(f) {
		return RejectedGap, nil
	}
	if !CheckBefore(f, NewTargets(g.Before)).OK() {
		return RejectedBefore, nil
	}
	v, err := CheckAfter(f, NewTargets(g.After), g.Sequence(), g.Pivot)
	if err != nil {
		return "", err
	}
	if !v.OK() {
		return RejectedAfter, nil
	}
	return Accepted, nil
}
