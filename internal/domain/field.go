package domain

import (
	"fmt"
	"strings"
)

// Piece identifies one of the seven tetromino colors.
type Piece uint8

const (
	PieceI Piece = iota
	PieceL
	PieceO
	PieceZ
	PieceT
	PieceJ
	PieceS
)

// NumPieces is the size of the closed piece set.
const NumPieces = 7

var pieceLetters = [NumPieces]rune{'I', 'L', 'O', 'Z', 'T', 'J', 'S'}

func (p Piece) String() string {
	if int(p) >= NumPieces {
		return fmt.Sprintf("Piece(%d)", uint8(p))
	}
	return string(pieceLetters[p])
}

// ParsePiece maps a piece letter (either case) to its Piece.
func ParsePiece(r rune) (Piece, error) {
	switch r {
	case 'I', 'i':
		return PieceI, nil
	case 'L', 'l':
		return PieceL, nil
	case 'O', 'o':
		return PieceO, nil
	case 'Z', 'z':
		return PieceZ, nil
	case 'T', 't':
		return PieceT, nil
	case 'J', 'j':
		return PieceJ, nil
	case 'S', 's':
		return PieceS, nil
	}
	return 0, fmt.Errorf("%w: invalid piece letter %q", ErrInvalidPiece, r)
}

// ParsePieces expands compact letter notation ("JLT") into pieces, keeping order and
// duplicates. Whitespace is ignored.
func ParsePieces(s string) ([]Piece, error) {
	out := make([]Piece, 0, len(s))
	for _, r := range s {
		if r == ' ' || r == '\t' {
			continue
		}
		p, err := ParsePiece(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// CellKind tags a grid position.
type CellKind uint8

const (
	KindEmpty CellKind = iota
	KindGarbage
	KindColor
)

// Cell is one grid position. Piece is meaningful only for KindColor.
type Cell struct {
	Kind  CellKind
	Piece Piece
}

var (
	Empty   = Cell{Kind: KindEmpty}
	Garbage = Cell{Kind: KindGarbage}
)

// Color returns the cell holding piece p.
func Color(p Piece) Cell { return Cell{Kind: KindColor, Piece: p} }

func (c Cell) IsEmpty() bool   { return c.Kind == KindEmpty }
func (c Cell) IsGarbage() bool { return c.Kind == KindGarbage }

// PieceOf reports the piece color of c, if any.
func (c Cell) PieceOf() (Piece, bool) {
	if c.Kind != KindColor {
		return 0, false
	}
	return c.Piece, true
}

func (c Cell) String() string {
	switch c.Kind {
	case KindEmpty:
		return "_"
	case KindGarbage:
		return "X"
	default:
		return c.Piece.String()
	}
}

// Field is an immutable grid. Row 0 is the bottom row.
type Field struct {
	width int
	rows  [][]Cell
}

// NewField copies rows (bottom first) into a Field. Every row must share one width.
func NewField(rows [][]Cell) (*Field, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyField
	}
	width := len(rows[0])
	if width == 0 {
		return nil, ErrEmptyField
	}
	cp := make([][]Cell, len(rows))
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrRaggedField, y, len(row), width)
		}
		cp[y] = append([]Cell(nil), row...)
	}
	return &Field{width: width, rows: cp}, nil
}

func (f *Field) Width() int  { return f.width }
func (f *Field) Height() int { return len(f.rows) }

// At returns the cell at column x, row y (y=0 bottom).
func (f *Field) At(x, y int) Cell { return f.rows[y][x] }

// Row returns a copy of row y.
func (f *Field) Row(y int) []Cell { return append([]Cell(nil), f.rows[y]...) }

// TopOccupied returns the index of the highest row holding a non-empty cell, or -1.
func (f *Field) TopOccupied() int {
	for y := len(f.rows) - 1; y >= 0; y-- {
		for _, c := range f.rows[y] {
			if !c.IsEmpty() {
				return y
			}
		}
	}
	return -1
}

// ParseField reads text notation: one line per row, top row first. '_' or '.' is empty,
// 'X' or 'G' garbage, piece letters are colors. Blank lines are ignored.
func ParseField(s string) (*Field, error) {
	var lines []string
	for _, ln := range strings.Split(s, "\n") {
		ln = strings.TrimSpace(ln)
		if ln != "" {
			lines = append(lines, ln)
		}
	}
	rows := make([][]Cell, 0, len(lines))
	for i := len(lines) - 1; i >= 0; i-- {
		row := make([]Cell, 0, len(lines[i]))
		for _, r := range lines[i] {
			switch r {
			case '_', '.':
				row = append(row, Empty)
			case 'X', 'x', 'G', 'g':
				row = append(row, Garbage)
			default:
				p, err := ParsePiece(r)
				if err != nil {
					return nil, err
				}
				row = append(row, Color(p))
			}
		}
		rows = append(rows, row)
	}
	return NewField(rows)
}

// String renders the field in ParseField notation.
func (f *Field) String() string {
	var b strings.Builder
	for y := len(f.rows) - 1; y >= 0; y-- {
		for _, c := range f.rows[y] {
			b.WriteString(c.String())
		}
		if y > 0 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
