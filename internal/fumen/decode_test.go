package fumen

import (
	"errors"
	"testing"

	"github.com/park285/fumen-sieve/internal/domain"
)

func TestDecodeEmptyField(t *testing.T) {
	fm, err := Decode("v115@vhAAgH")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(fm.Pages) != 1 {
		t.Fatalf("pages = %d", len(fm.Pages))
	}
	if fm.Field.Width() != 10 || fm.Field.Height() != 23 {
		t.Fatalf("field size = %dx%d", fm.Field.Width(), fm.Field.Height())
	}
	if fm.Field.TopOccupied() != -1 {
		t.Fatalf("expected empty field:\n%s", fm.Field)
	}
	act := fm.Pages[0].Action
	if !act.Piece.IsEmpty() || !act.Colorize || !act.Lock || act.Comment {
		t.Fatalf("action = %+v", act)
	}
}

func TestDecodeBottomRow(t *testing.T) {
	fm, err := Decode("v115@bhzhPeAgH")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	f := fm.Field
	for x := 0; x < 10; x++ {
		want := domain.Empty
		if x < 4 {
			want = domain.Color(domain.PieceI)
		}
		if got := f.At(x, 0); got != want {
			t.Fatalf("cell (%d,0) = %s want %s", x, got, want)
		}
	}
	if f.TopOccupied() != 0 {
		t.Fatalf("TopOccupied = %d", f.TopOccupied())
	}
}

func TestDecodeCountsPages(t *testing.T) {
	cases := map[string]int{
		"v115@vhAAgHvhAAAA":  2, // second page carries its own unchanged field
		"v115@vhBAgHAAA":     2, // second page reuses the field via repeat count
		"v115@vhAAgWDAAAAAA": 1, // comment body skipped
	}
	for data, want := range cases {
		fm, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode(%q): %v", data, err)
		}
		if len(fm.Pages) != want {
			t.Fatalf("Decode(%q): pages = %d want %d", data, len(fm.Pages), want)
		}
	}
}

func TestDecodeStripsLineBreaks(t *testing.T) {
	fm, err := Decode("v115@bh?zhPe?AgH")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if fm.Field.At(0, 0) != domain.Color(domain.PieceI) {
		t.Fatalf("unexpected field:\n%s", fm.Field)
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		data string
		want error
	}{
		{"vhAAgH", ErrVersion},
		{"v110@vhAAgH", ErrVersion},
		{"v115@vh!AgH", ErrMalformed},
		{"v115@vhAAg", ErrMalformed},
		{"v115@/dAgH", ErrMalformed},
		{"v115@", ErrMalformed},
	}
	for _, tc := range cases {
		if _, err := Decode(tc.data); !errors.Is(err, tc.want) {
			t.Fatalf("Decode(%q): err = %v want %v", tc.data, err, tc.want)
		}
	}
}

func TestDecodeGarbageRow(t *testing.T) {
	fm, err := Decode("v115@bhJ8JeAgH")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	f := fm.Field
	for x := 0; x < 10; x++ {
		if got := f.At(x, 0); got != domain.Garbage {
			t.Fatalf("cell (%d,0) = %s want garbage", x, got)
		}
		if got := f.At(x, 1); !got.IsEmpty() {
			t.Fatalf("cell (%d,1) = %s want empty", x, got)
		}
	}
}

func TestDecodeMixedColors(t *testing.T) {
	fm, err := Decode("v115@bhglwwH8JeAgH")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := map[int]domain.Cell{
		0: domain.Color(domain.PieceL),
		1: domain.Color(domain.PieceT),
	}
	for x := 0; x < 10; x++ {
		w, ok := want[x]
		if !ok {
			w = domain.Garbage
		}
		if got := fm.Field.At(x, 0); got != w {
			t.Fatalf("cell (%d,0) = %s want %s", x, got, w)
		}
	}
}

func TestDecodeDropsBottomGarbageRow(t *testing.T) {
	// the only occupied cells sit in the row below the playfield
	fm, err := Decode("v115@lhJ8AgH")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if fm.Field.Height() != 23 || fm.Field.TopOccupied() != -1 {
		t.Fatalf("expected empty playfield:\n%s", fm.Field)
	}
}
