// Package highlight marks safe moves on a rendered board and describes them
// as text.
package highlight

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/04pril/minesight/internal/board"
)

// edgeFade is the fraction of the tint lost at the cell corners.
const edgeFade = 0.6

// Geometry locates cells on a surface. *render.Renderer satisfies it.
type Geometry interface {
	CellRect(row, col int) image.Rectangle
	CellSize() int
}

// Highlighter overlays a translucent radial tint on safe cells.
type Highlighter struct {
	geom Geometry
	tint *image.Uniform
	mask *image.Alpha
}

// New builds a highlighter. tint should be translucent; it is composited
// over the rendered cells.
func New(geom Geometry, tint color.Color) *Highlighter {
	return &Highlighter{
		geom: geom,
		tint: image.NewUniform(tint),
		mask: radialMask(geom.CellSize()),
	}
}

// Highlight must run after the board has been rendered onto dst. Moves are
// drawn in order; moves off the board are skipped.
func (h *Highlighter) Highlight(dst draw.Image, moves []board.Move) {
	origin := dst.Bounds().Min
	for _, m := range moves {
		if !m.InRange() {
			continue
		}
		rect := h.geom.CellRect(m.Row, m.Col).Add(origin)
		draw.DrawMask(dst, rect, h.tint, image.Point{}, h.mask, image.Point{}, draw.Over)
	}
}

// radialMask is full strength at the cell center and fades toward the corners
// so neighbouring highlighted cells stay apart.
func radialMask(size int) *image.Alpha {
	m := image.NewAlpha(image.Rect(0, 0, size, size))
	c := float64(size) / 2
	maxDist := math.Hypot(c, c)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)+0.5-c, float64(y)+0.5-c) / maxDist
			if d > 1 {
				d = 1
			}
			m.SetAlpha(x, y, color.Alpha{A: uint8(math.Round(255 * (1 - edgeFade*d)))})
		}
	}
	return m
}
