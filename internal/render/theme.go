package render

import (
	"image/color"
	"strings"
)

// Theme is the palette used to draw a board.
type Theme struct {
	Name       string
	Background color.Color
	Closed     color.Color
	Open       color.Color
	Grid       color.Color
	Label      color.Color
	Highlight  color.Color // translucent, composited over safe cells
	Digits     map[int]color.Color
	Digit      color.Color // digits without an entry in Digits
}

// DigitColor returns the glyph color for an opened cell showing v.
func (t Theme) DigitColor(v int) color.Color {
	if c, ok := t.Digits[v]; ok {
		return c
	}
	return t.Digit
}

// WithDigits returns a copy of t with the given digit colors layered on top.
func (t Theme) WithDigits(overrides map[int]color.Color) Theme {
	merged := make(map[int]color.Color, len(t.Digits)+len(overrides))
	for k, v := range t.Digits {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	t.Digits = merged
	return t
}

var Themes = []Theme{
	{
		Name:       "Classic",
		Background: rgb(255, 255, 255),
		Closed:     rgb(204, 204, 204),
		Open:       rgb(255, 255, 255),
		Grid:       rgb(153, 153, 153),
		Label:      rgb(120, 120, 120),
		Highlight:  color.NRGBA{R: 0, G: 255, B: 0, A: 77},
		Digits: map[int]color.Color{
			1: rgb(25, 25, 220),
			2: rgb(0, 130, 0),
		},
		Digit: rgb(0, 0, 0),
	},
	{
		Name:       "Dark",
		Background: rgb(34, 36, 42),
		Closed:     rgb(62, 66, 78),
		Open:       rgb(86, 90, 102),
		Grid:       rgb(30, 33, 41),
		Label:      rgb(160, 164, 176),
		Highlight:  color.NRGBA{R: 107, G: 199, B: 255, A: 90},
		Digits: map[int]color.Color{
			1: rgb(120, 170, 255),
			2: rgb(90, 210, 90),
		},
		Digit: rgb(242, 242, 245),
	},
}

// ThemeByName looks a theme up case-insensitively.
func ThemeByName(name string) (Theme, bool) {
	for _, th := range Themes {
		if strings.EqualFold(th.Name, name) {
			return th, true
		}
	}
	return Theme{}, false
}

func rgb(r, g, b uint8) color.Color {
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
