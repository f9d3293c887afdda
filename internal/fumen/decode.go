// Package fumen decodes v115 fumen board notation.
package fumen

import (
	"fmt"
	"strings"

	"github.com/park285/fumen-sieve/internal/domain"
)

const (
	fieldTop    = 23
	fieldWidth  = 10
	fieldBlocks = (fieldTop + 1) * fieldWidth // includes the garbage row
	encodeTable = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
)

// Errors
var (
	ErrVersion   = errf("unsupported fumen version")
	ErrMalformed = errf("malformed fumen data")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error { return staticErr(s) }

// Action is the piece and flags attached to a page.
type Action struct {
	Piece    domain.Cell
	Rotation int
	Position int
	Rise     bool
	Mirror   bool
	Colorize bool
	Comment  bool
	Lock     bool
}

type Page struct {
	Index  int
	Action Action
}

// Fumen is a decoded fumen. Field holds the first page's playfield without the garbage
// row; later pages are decoded for their structure only.
type Fumen struct {
	Pages []Page
	Field *domain.Field
}

// Decode parses fumen data such as "v115@vhAAgH". Line-break '?' characters are ignored.
func Decode(data string) (*Fumen, error) {
	body, err := stripVersion(strings.TrimSpace(data))
	if err != nil {
		return nil, err
	}
	vals, err := toValues(body)
	if err != nil {
		return nil, err
	}
	p := &poller{vals: vals}

	var cur [fieldBlocks]int
	out := &Fumen{}
	repeat := 0
	for p.remaining() > 0 {
		if repeat > 0 {
			repeat--
		} else {
			unchanged, err := decodeFieldDiff(p, &cur)
			if err != nil {
				return nil, fmt.Errorf("page %d: %w", len(out.Pages)+1, err)
			}
			if unchanged {
				if repeat, err = p.poll(1); err != nil {
					return nil, fmt.Errorf("page %d: %w", len(out.Pages)+1, err)
				}
			}
		}
		if len(out.Pages) == 0 {
			if out.Field, err = toField(&cur); err != nil {
				return nil, err
			}
		}
		act, err := decodeAction(p)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", len(out.Pages)+1, err)
		}
		out.Pages = append(out.Pages, Page{Index: len(out.Pages), Action: act})
	}
	if len(out.Pages) == 0 {
		return nil, fmt.Errorf("%w: no pages", ErrMalformed)
	}
	return out, nil
}

func stripVersion(s string) (string, error) {
	at := strings.IndexByte(s, '@')
	if at < 0 {
		return "", fmt.Errorf("%w: missing version prefix", ErrVersion)
	}
	switch s[:at] {
	case "v115", "m115", "d115":
		return strings.ReplaceAll(s[at+1:], "?", ""), nil
	}
	return "", fmt.Errorf("%w: %q", ErrVersion, s[:at])
}

func toValues(s string) ([]int, error) {
	vals := make([]int, 0, len(s))
	for i := 0; i < len(s); i++ {
		v := strings.IndexByte(encodeTable, s[i])
		if v < 0 {
			return nil, fmt.Errorf("%w: invalid character %q at %d", ErrMalformed, s[i], i)
		}
		vals = append(vals, v)
	}
	return vals, nil
}

type poller struct {
	vals []int
	pos  int
}

func (p *poller) remaining() int { return len(p.vals) - p.pos }

// poll reads n base-64 digits, least significant first.
func (p *poller) poll(n int) (int, error) {
	if p.remaining() < n {
		return 0, fmt.Errorf("%w: unexpected end of data", ErrMalformed)
	}
	v, mul := 0, 1
	for i := 0; i < n; i++ {
		v += p.vals[p.pos] * mul
		mul *= 64
		p.pos++
	}
	return v, nil
}

// decodeFieldDiff applies one page's run-length field diff to cur. It reports whether the
// whole field was a single unchanged run, in which case a repeat count follows.
func decodeFieldDiff(p *poller, cur *[fieldBlocks]int) (bool, error) {
	for idx := 0; idx < fieldBlocks; {
		v, err := p.poll(2)
		if err != nil {
			return false, err
		}
		diff := v/fieldBlocks - 8
		n := v%fieldBlocks + 1
		if idx+n > fieldBlocks {
			return false, fmt.Errorf("%w: field run overflows %d blocks", ErrMalformed, fieldBlocks)
		}
		if diff == 0 && n == fieldBlocks {
			return true, nil
		}
		for k := 0; k < n; k++ {
			cur[idx+k] += diff
		}
		idx += n
	}
	return false, nil
}

func decodeAction(p *poller) (Action, error) {
	v, err := p.poll(3)
	if err != nil {
		return Action{}, err
	}
	typ := v % 8
	v /= 8
	a := Action{Rotation: v % 4}
	v /= 4
	a.Position = v % fieldBlocks
	v /= fieldBlocks
	a.Rise = v%2 == 1
	v /= 2
	a.Mirror = v%2 == 1
	v /= 2
	a.Colorize = v%2 == 1
	v /= 2
	a.Comment = v%2 == 1
	v /= 2
	a.Lock = v%2 == 0
	if a.Piece, err = cellOf(typ); err != nil {
		return Action{}, err
	}
	if a.Comment {
		n, err := p.poll(2)
		if err != nil {
			return Action{}, err
		}
		// comment text is packed 4 characters per 5 digits
		for i := 0; i < (n+3)/4; i++ {
			if _, err := p.poll(5); err != nil {
				return Action{}, err
			}
		}
	}
	return a, nil
}

func cellOf(v int) (domain.Cell, error) {
	switch v {
	case 0:
		return domain.Empty, nil
	case 1:
		return domain.Color(domain.PieceI), nil
	case 2:
		return domain.Color(domain.PieceL), nil
	case 3:
		return domain.Color(domain.PieceO), nil
	case 4:
		return domain.Color(domain.PieceZ), nil
	case 5:
		return domain.Color(domain.PieceT), nil
	case 6:
		return domain.Color(domain.PieceJ), nil
	case 7:
		return domain.Color(domain.PieceS), nil
	case 8:
		return domain.Garbage, nil
	}
	return domain.Cell{}, fmt.Errorf("%w: cell value %d out of range", ErrMalformed, v)
}

// toField converts the raw block array (top row first, garbage row last) into a Field
// with row 0 at the bottom.
func toField(cur *[fieldBlocks]int) (*domain.Field, error) {
	rows := make([][]domain.Cell, fieldTop)
	for y := 0; y < fieldTop; y++ {
		base := (fieldTop - 1 - y) * fieldWidth
		row := make([]domain.Cell, fieldWidth)
		for x := 0; x < fieldWidth; x++ {
			c, err := cellOf(cur[base+x])
			if err != nil {
				return nil, err
			}
			row[x] = c
		}
		rows[y] = row
	}
	return domain.NewField(rows)
}
