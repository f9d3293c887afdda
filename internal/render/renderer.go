// Package render draws fields as PNG images for review of accepted boards.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/fumen-sieve/internal/domain"
)

const (
	defaultCellSize = 16
	captionHeight   = 18
	headroomRows    = 1
)

type Options struct {
	Caption  string
	CellSize int
}

type Renderer interface {
	RenderPNG(ctx context.Context, f *domain.Field, opts Options) ([]byte, error)
}

type svgRenderer struct{}

func NewSVGRenderer() Renderer { return &svgRenderer{} }

var (
	backgroundColor = color.RGBA{24, 24, 28, 255}
	captionColor    = color.RGBA{226, 228, 240, 255}
	garbageFill     = "#999999"
)

var pieceFill = [domain.NumPieces]string{
	domain.PieceI: "#0f9bd7",
	domain.PieceL: "#e35b02",
	domain.PieceO: "#e39f02",
	domain.PieceZ: "#d70f37",
	domain.PieceT: "#af298a",
	domain.PieceJ: "#2141c6",
	domain.PieceS: "#59b101",
}

// RenderPNG draws the occupied part of the field plus one row of headroom. Row 0 is at
// the bottom of the image.
func (r *svgRenderer) RenderPNG(ctx context.Context, f *domain.Field, opts Options) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("field is nil")
	}
	cell := opts.CellSize
	if cell <= 0 {
		cell = defaultCellSize
	}
	rows := f.TopOccupied() + 1 + headroomRows
	if rows > f.Height() {
		rows = f.Height()
	}
	boardW, boardH := f.Width()*cell, rows*cell
	top := 0
	if opts.Caption != "" {
		top = captionHeight
	}

	board, err := rasterize(fieldSVG(f, rows, cell), boardW, boardH)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img := image.NewRGBA(image.Rect(0, 0, boardW, boardH+top))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)
	imagedraw.Draw(img, image.Rect(0, top, boardW, top+boardH), board, image.Point{}, imagedraw.Over)
	if opts.Caption != "" {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(captionColor),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(3, 13),
		}
		d.DrawString(opts.Caption)
	}

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return pngBuf.Bytes(), nil
}

// fieldSVG emits one rect per non-empty cell, leaving a 1px gutter between cells.
func fieldSVG(f *domain.Field, rows, cell int) []byte {
	w, h := f.Width()*cell, rows*cell
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, w, h, w, h)
	for y := 0; y < rows; y++ {
		py := (rows - 1 - y) * cell
		for x := 0; x < f.Width(); x++ {
			fill := cellFill(f.At(x, y))
			if fill == "" {
				continue
			}
			fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s"/>`, x*cell, py, cell-1, cell-1, fill)
		}
	}
	b.WriteString(`</svg>`)
	return []byte(b.String())
}

func cellFill(c domain.Cell) string {
	if c.IsGarbage() {
		return garbageFill
	}
	if p, ok := c.PieceOf(); ok {
		return pieceFill[p]
	}
	return ""
}

func rasterize(svg []byte, w, h int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svg))
	if err != nil {
		return nil, fmt.Errorf("parse field svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, imagedraw.Src)
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)
	return img, nil
}
