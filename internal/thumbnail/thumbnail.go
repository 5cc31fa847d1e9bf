// Package thumbnail renders JPEG previews of raster images.
package thumbnail

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"

	// Registered decoders.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"

	"docvault/internal/dv"
)

var supported = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// Renderer scales images down to fit a bounding box and encodes them as
// JPEG. Images that already fit are re-encoded at their own size.
type Renderer struct {
	width   int
	height  int
	quality int
}

var _ dv.Thumbnailer = (*Renderer)(nil)

// NewRenderer creates a renderer for a width x height box.
func NewRenderer(width, height, quality int) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("thumbnail box must be positive, got %dx%d", width, height)
	}
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("jpeg quality must be between 1 and 100, got %d", quality)
	}
	return &Renderer{width: width, height: height, quality: quality}, nil
}

func (r *Renderer) Supports(mimetype string) bool {
	return supported[mimetype]
}

func (r *Renderer) Extension() string {
	return ".jpg"
}

// Render decodes src and writes the JPEG preview to dst. Transparent
// areas are flattened onto white.
func (r *Renderer) Render(src io.Reader, dst io.Writer) error {
	img, _, err := image.Decode(src)
	if err != nil {
		return fmt.Errorf("decoding image: %w", err)
	}

	bounds := img.Bounds()
	w, h := Fit(bounds.Dx(), bounds.Dy(), r.width, r.height)
	if w == 0 || h == 0 {
		return fmt.Errorf("image has no pixels")
	}

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(canvas, canvas.Bounds(), img, bounds, draw.Over, nil)

	if err := jpeg.Encode(dst, canvas, &jpeg.Options{Quality: r.quality}); err != nil {
		return fmt.Errorf("encoding jpeg: %w", err)
	}
	return nil
}

// Fit returns the size of a w x h image scaled to fit a maxW x maxH box
// with its aspect ratio kept. Images are never scaled up, and a non-empty
// image never shrinks below one pixel on either side.
func Fit(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if w <= maxW && h <= maxH {
		return w, h
	}
	// Compare w/maxW with h/maxH without floats.
	if w*maxH >= h*maxW {
		return maxW, max(1, h*maxW/w)
	}
	return max(1, w*maxH/h), maxH
}
