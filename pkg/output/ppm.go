// Package output writes rendered images to disk formats.
package output

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/df07/go-pathtracer/pkg/core"
)

// byteRange keeps 256·x below 256 so 1.0 maps to 255
var byteRange = core.NewInterval(0, 0.999)

// Quantize converts a linear color channel to a byte. With gamma, the value
// is first raised to 1/2 (non-positive values map to 0).
func Quantize(c float64, gamma bool) uint8 {
	if gamma {
		c = linearToGamma(c)
	}
	if math.IsNaN(c) {
		c = 0
	}
	return uint8(256 * byteRange.Clamp(c))
}

func linearToGamma(c float64) float64 {
	if c > 0 {
		return math.Sqrt(c)
	}
	return 0
}

// QuantizeColor converts a linear color to an RGB byte triple
func QuantizeColor(c core.Vec3, gamma bool) [3]uint8 {
	return [3]uint8{Quantize(c.X, gamma), Quantize(c.Y, gamma), Quantize(c.Z, gamma)}
}

// WritePPM writes img as a plain-text P3 PPM: a "P3\n<w> <h>\n255\n" header
// followed by one "r g b" line per pixel in row-major order
func WritePPM(w io.Writer, img *core.Image, gamma bool) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P3\n%d %d\n255\n", img.Width, img.Height); err != nil {
		return fmt.Errorf("write ppm header: %w", err)
	}
	for _, p := range img.Pixels {
		rgb := QuantizeColor(p, gamma)
		if _, err := fmt.Fprintf(bw, "%d %d %d\n", rgb[0], rgb[1], rgb[2]); err != nil {
			return fmt.Errorf("write ppm pixel: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write ppm: %w", err)
	}
	return nil
}
