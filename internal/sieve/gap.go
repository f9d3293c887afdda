package sieve

import "github.com/park285/fumen-sieve/internal/domain"

// IsContinuous reports whether every empty run in every row touches at least one column
// that is empty in the row directly above it. The row above the top row is treated as
// fully open, so the top row always passes.
func IsContinuous(f *domain.Field) bool {
	mask := make([]bool, f.Width())
	for i := range mask {
		mask[i] = true
	}
	for y := f.Height() - 1; y >= 0; y-- {
		var ok bool
		mask, ok = scanRow(mask, f.Row(y))
		if !ok {
			return false
		}
	}
	return true
}

// scanRow checks one row against the ceiling mask and returns the row's own emptiness
// as the ceiling for the row below. A solid row has no runs and always passes.
func scanRow(ceiling []bool, row []domain.Cell) ([]bool, bool) {
	for _, r := range emptyRuns(row) {
		if !anyOpen(ceiling, r) {
			return ceiling, false
		}
	}
	next := make([]bool, len(row))
	for x, c := range row {
		next[x] = c.IsEmpty()
	}
	return next, true
}

// span is a half-open column range [start, end).
type span struct{ start, end int }

func emptyRuns(row []domain.Cell) []span {
	var runs []span
	start := -1
	for x, c := range row {
		switch {
		case c.IsEmpty() && start < 0:
			start = x
		case !c.IsEmpty() && start >= 0:
			runs = append(runs, span{start, x})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, span{start, len(row)})
	}
	return runs
}

func anyOpen(mask []bool, r span) bool {
	for x := r.start; x < r.end; x++ {
		if mask[x] {
			return true
		}
	}
	return false
}
