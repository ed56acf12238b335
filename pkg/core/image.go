package core

// Image is a linear-space color buffer in row-major order, top row first
type Image struct {
	Width  int
	Height int
	Pixels []Vec3
}

// NewImage allocates a black image
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pixels: make([]Vec3, width*height),
	}
}

// At returns the color of pixel (x, y)
func (img *Image) At(x, y int) Vec3 {
	return img.Pixels[y*img.Width+x]
}

// Set stores the color of pixel (x, y)
func (img *Image) Set(x, y int, c Vec3) {
	img.Pixels[y*img.Width+x] = c
}

// Mean returns the average color over all pixels
func (img *Image) Mean() Vec3 {
	var sum Vec3
	for _, p := range img.Pixels {
		sum = sum.Add(p)
	}
	if len(img.Pixels) == 0 {
		return sum
	}
	return sum.Divide(float64(len(img.Pixels)))
}
