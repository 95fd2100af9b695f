// Package render draws an analyzed board onto a square raster surface.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strconv"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/04pril/minesight/internal/board"
)

const (
	// MinCellSize keeps the corner label clear of the centered digit.
	MinCellSize = 48

	labelPad  = 2
	glyphUnit = 32 // cell pixels per glyph scale step
)

// ErrSurfaceSize is returned when a surface does not match the renderer.
var ErrSurfaceSize = errors.New("surface size mismatch")

// Renderer draws boards of a fixed pixel size.
type Renderer struct {
	size  int
	cell  int
	theme Theme
	face  font.Face
}

// NewRenderer returns a renderer for a size x size surface. The size must be
// a multiple of board.Size with cells of at least MinCellSize pixels.
func NewRenderer(size int, th Theme) (*Renderer, error) {
	if size <= 0 || size%board.Size != 0 {
		return nil, fmt.Errorf("render: size %d is not a positive multiple of %d", size, board.Size)
	}
	if size/board.Size < MinCellSize {
		return nil, fmt.Errorf("render: size %d gives %dpx cells, need at least %d", size, size/board.Size, MinCellSize)
	}
	return &Renderer{
		size:  size,
		cell:  size / board.Size,
		theme: th,
		face:  basicfont.Face7x13,
	}, nil
}

func (r *Renderer) Size() int     { return r.size }
func (r *Renderer) CellSize() int { return r.cell }
func (r *Renderer) Theme() Theme  { return r.theme }

// NewSurface allocates a surface this renderer can draw on.
func (r *Renderer) NewSurface() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, r.size, r.size))
}

// CellRect returns the pixel rectangle of a cell in surface coordinates.
func (r *Renderer) CellRect(row, col int) image.Rectangle {
	return image.Rect(col*r.cell, row*r.cell, (col+1)*r.cell, (row+1)*r.cell)
}

// Render clears dst and draws every cell of b. Drawing the same board twice
// yields identical pixels.
func (r *Renderer) Render(dst *image.RGBA, b *board.Board) error {
	bounds := dst.Bounds()
	if bounds.Dx() != r.size || bounds.Dy() != r.size {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrSurfaceSize, bounds.Dx(), bounds.Dy(), r.size, r.size)
	}
	th := r.theme
	draw.Draw(dst, bounds, image.NewUniform(th.Background), image.Point{}, draw.Src)

	for row := 0; row < board.Size; row++ {
		for col := 0; col < board.Size; col++ {
			r.drawCell(dst, b, row, col)
		}
	}
	return nil
}

func (r *Renderer) drawCell(dst *image.RGBA, b *board.Board, row, col int) {
	th := r.theme
	rect := r.CellRect(row, col).Add(dst.Bounds().Min)
	v := b.Value(row, col)

	fill := th.Closed
	if v > board.Unopened {
		fill = th.Open
	}
	draw.Draw(dst, rect, image.NewUniform(fill), image.Point{}, draw.Src)
	strokeRect(dst, rect, th.Grid)

	if v > board.Unopened {
		scale := r.cell / glyphUnit
		if scale < 1 {
			scale = 1
		}
		r.drawCentered(dst, strconv.Itoa(v), rect, th.DigitColor(v), scale)
	}

	label := fmt.Sprintf("%d,%d", row+1, col+1)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(th.Label),
		Face: r.face,
		Dot:  fixed.P(rect.Min.X+labelPad+1, rect.Min.Y+labelPad+r.face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(label)
}

// drawCentered renders s at 1x into a scratch image and scales it into the
// middle of rect. The scale shrinks until the glyphs fit inside the cell
// padding, and nothing is drawn outside rect.
func (r *Renderer) drawCentered(dst *image.RGBA, s string, rect image.Rectangle, clr color.Color, scale int) {
	m := r.face.Metrics()
	d := &font.Drawer{Face: r.face}
	w := d.MeasureString(s).Ceil()
	h := m.Height.Ceil()
	for scale > 1 && w*scale > rect.Dx()-2*labelPad {
		scale--
	}

	glyph := image.NewRGBA(image.Rect(0, 0, w, h))
	d.Dst = glyph
	d.Src = image.NewUniform(clr)
	d.Dot = fixed.P(0, m.Ascent.Ceil())
	d.DrawString(s)

	gw, gh := w*scale, h*scale
	x := rect.Min.X + (rect.Dx()-gw)/2
	y := rect.Min.Y + (rect.Dy()-gh)/2
	cell := dst.SubImage(rect).(*image.RGBA)
	draw.NearestNeighbor.Scale(cell, image.Rect(x, y, x+gw, y+gh), glyph, glyph.Bounds(), draw.Over, nil)
}

func strokeRect(dst draw.Image, rect image.Rectangle, clr color.Color) {
	u := image.NewUniform(clr)
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+1),
		image.Rect(rect.Min.X, rect.Max.Y-1, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+1, rect.Max.Y),
		image.Rect(rect.Max.X-1, rect.Min.Y, rect.Max.X, rect.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, u, image.Point{}, draw.Src)
	}
}
