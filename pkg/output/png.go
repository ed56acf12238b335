package output

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/draw"

	"github.com/df07/go-pathtracer/pkg/core"
)

// ToRGBA quantizes img into an 8-bit RGBA image
func ToRGBA(img *core.Image, gamma bool) *image.RGBA {
	rgba := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c := QuantizeColor(img.At(x, y), gamma)
			rgba.SetRGBA(x, y, color.RGBA{R: c[0], G: c[1], B: c[2], A: 255})
		}
	}
	return rgba
}

// WritePreviewPNG writes img as a PNG scaled to width pixels wide, keeping the
// aspect ratio. A width <= 0 or >= the image width writes the image unscaled.
func WritePreviewPNG(w io.Writer, img *core.Image, width int, gamma bool) error {
	src := ToRGBA(img, gamma)

	var out image.Image = src
	if width > 0 && width < img.Width {
		height := max(1, img.Height*width/img.Width)
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		out = dst
	}

	if err := png.Encode(w, out); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
