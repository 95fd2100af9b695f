// Package preview decodes a selected board photo and scales it to fit a
// preview pane.
package preview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/04pril/minesight/internal/analysis"
)

// DefaultMaxPixels bounds the declared size of an image Load will decode when
// no limit is given.
const DefaultMaxPixels = 40_000_000

// ErrTooLarge is returned for images whose declared size exceeds the pixel
// limit. Nothing beyond the header is decoded for them.
var ErrTooLarge = errors.New("image too large to preview")

// Image is a decoded, fit-scaled preview of an upload.
type Image struct {
	Filename string
	Format   string
	Source   image.Point // original dimensions
	Pixels   *image.RGBA
}

// Load decodes up and scales it down (never up) to fit within maxW x maxH,
// keeping the aspect ratio. Images declaring more than maxPixels pixels are
// rejected with ErrTooLarge before decoding; maxPixels <= 0 means
// DefaultMaxPixels.
func Load(up analysis.Upload, maxW, maxH int, maxPixels int64) (*Image, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(up.Data))
	if err != nil {
		return nil, fmt.Errorf("preview %s: %w", up.Filename, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("preview %s: %dx%d: %w", up.Filename, cfg.Width, cfg.Height, ErrTooLarge)
	}

	src, format, err := image.Decode(bytes.NewReader(up.Data))
	if err != nil {
		return nil, fmt.Errorf("preview %s: %w", up.Filename, err)
	}
	sb := src.Bounds()
	w, h := Fit(sb.Dx(), sb.Dy(), maxW, maxH)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)
	return &Image{
		Filename: up.Filename,
		Format:   format,
		Source:   image.Pt(sb.Dx(), sb.Dy()),
		Pixels:   dst,
	}, nil
}

// Fit returns the largest size no bigger than w x h and maxW x maxH with the
// aspect ratio of w x h. Non-positive limits leave that axis unconstrained.
func Fit(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if maxH > 0 && float64(h)*scale > float64(maxH) {
		scale = float64(maxH) / float64(h)
	}
	fw := int(float64(w)*scale + 0.5)
	fh := int(float64(h)*scale + 0.5)
	if fw < 1 {
		fw = 1
	}
	if fh < 1 {
		fh = 1
	}
	return fw, fh
}
