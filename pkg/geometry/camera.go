package geometry

import (
	"math"

	"github.com/df07/go-pathtracer/pkg/core"
)

// CameraConfig contains the user-facing camera and image parameters
type CameraConfig struct {
	Width           int       // Image width in pixels
	Height          int       // Image height in pixels
	SamplesPerPixel int       // Rays averaged per pixel
	MaxDepth        int       // Maximum ray bounce depth
	VFov            float64   // Vertical field of view in degrees
	LookFrom        core.Vec3 // Camera position
	LookAt          core.Vec3 // Point the camera looks at
	VUp             core.Vec3 // Camera-relative up direction
	DefocusAngle    float64   // Variation angle of rays through each pixel, in degrees
	FocusDist       float64   // Distance from LookFrom to the plane of perfect focus
}

// MergeCameraConfig overrides the non-zero fields of base with those of override
func MergeCameraConfig(base, override CameraConfig) CameraConfig {
	result := base
	if override.Width != 0 {
		result.Width = override.Width
	}
	if override.Height != 0 {
		result.Height = override.Height
	}
	if override.SamplesPerPixel != 0 {
		result.SamplesPerPixel = override.SamplesPerPixel
	}
	if override.MaxDepth != 0 {
		result.MaxDepth = override.MaxDepth
	}
	if override.VFov != 0 {
		result.VFov = override.VFov
	}
	if override.LookFrom != (core.Vec3{}) {
		result.LookFrom = override.LookFrom
	}
	if override.LookAt != (core.Vec3{}) {
		result.LookAt = override.LookAt
	}
	if override.VUp != (core.Vec3{}) {
		result.VUp = override.VUp
	}
	if override.DefocusAngle != 0 {
		result.DefocusAngle = override.DefocusAngle
	}
	if override.FocusDist != 0 {
		result.FocusDist = override.FocusDist
	}
	return result
}

// Camera generates primary rays. All derived state is computed once by
// NewCamera and never changes, so a Camera may be shared between goroutines.
type Camera struct {
	config           CameraConfig
	center           core.Vec3
	pixel00          core.Vec3 // Location of pixel (0, 0)
	pixelDeltaU      core.Vec3 // Offset to the pixel to the right
	pixelDeltaV      core.Vec3 // Offset to the pixel below
	defocusDiskU     core.Vec3
	defocusDiskV     core.Vec3
	pixelSampleScale float64
}

// NewCamera derives the viewport from the configuration.
// A zero FocusDist is replaced by the distance from LookFrom to LookAt.
func NewCamera(config CameraConfig) *Camera {
	if config.FocusDist <= 0 {
		config.FocusDist = config.LookFrom.Subtract(config.LookAt).Length()
	}

	aspectRatio := float64(config.Width) / float64(config.Height)
	center := config.LookFrom

	h := math.Tan(degreesToRadians(config.VFov) / 2)
	viewportHeight := 2 * h * config.FocusDist
	viewportWidth := viewportHeight * aspectRatio

	// Orthonormal camera basis
	w := config.LookFrom.Subtract(config.LookAt).Normalize()
	u := config.VUp.Cross(w).Normalize()
	v := w.Cross(u)

	// Viewport edges: u runs right, v runs down the image
	viewportU := u.Multiply(viewportWidth)
	viewportV := v.Negate().Multiply(viewportHeight)

	pixelDeltaU := viewportU.Divide(float64(config.Width))
	pixelDeltaV := viewportV.Divide(float64(config.Height))

	upperLeft := center.
		Subtract(w.Multiply(config.FocusDist)).
		Subtract(viewportU.Multiply(0.5)).
		Subtract(viewportV.Multiply(0.5))
	pixel00 := upperLeft.Add(pixelDeltaU.Add(pixelDeltaV).Multiply(0.5))

	defocusRadius := config.FocusDist * math.Tan(degreesToRadians(config.DefocusAngle/2))

	return &Camera{
		config:           config,
		center:           center,
		pixel00:          pixel00,
		pixelDeltaU:      pixelDeltaU,
		pixelDeltaV:      pixelDeltaV,
		defocusDiskU:     u.Multiply(defocusRadius),
		defocusDiskV:     v.Multiply(defocusRadius),
		pixelSampleScale: 1.0 / float64(config.SamplesPerPixel),
	}
}

// Config returns the configuration the camera was built from, with the
// resolved focus distance
func (c *Camera) Config() CameraConfig {
	return c.config
}

// Width returns the image width in pixels
func (c *Camera) Width() int { return c.config.Width }

// Height returns the image height in pixels
func (c *Camera) Height() int { return c.config.Height }

// Center returns the camera position
func (c *Camera) Center() core.Vec3 { return c.center }

// PixelSampleScale is the weight of one sample in a pixel average
func (c *Camera) PixelSampleScale() float64 { return c.pixelSampleScale }

// PixelCenter returns the location of the center of pixel (i, j) on the focus plane
func (c *Camera) PixelCenter(i, j int) core.Vec3 {
	return c.pixel00.
		Add(c.pixelDeltaU.Multiply(float64(i))).
		Add(c.pixelDeltaV.Multiply(float64(j)))
}

// GetRay returns a normalized ray through a jittered point of pixel (i, j),
// where i is the column and j the row counted from the top-left corner
func (c *Camera) GetRay(i, j int, sampler core.Sampler) core.Ray {
	offset := sampler.Get2D()
	pixelSample := c.pixel00.
		Add(c.pixelDeltaU.Multiply(float64(i) + offset.X - 0.5)).
		Add(c.pixelDeltaV.Multiply(float64(j) + offset.Y - 0.5))

	origin := c.center
	if c.config.DefocusAngle > 0 {
		origin = c.defocusDiskSample(sampler)
	}

	return core.NewRay(origin, pixelSample.Subtract(origin).Normalize())
}

// GenerateRays emits width·height·batch rays for one batch. Rays are emitted
// pixel-major, sample-minor: index = (y·width + x)·batch + sample.
func (c *Camera) GenerateRays(batch int, sampler core.Sampler, emit func(index int, ray core.Ray)) {
	index := 0
	for y := 0; y < c.config.Height; y++ {
		for x := 0; x < c.config.Width; x++ {
			for range batch {
				emit(index, c.GetRay(x, y, sampler))
				index++
			}
		}
	}
}

func (c *Camera) defocusDiskSample(sampler core.Sampler) core.Vec3 {
	p := core.RandomInUnitDisk(sampler)
	return c.center.Add(c.defocusDiskU.Multiply(p.X)).Add(c.defocusDiskV.Multiply(p.Y))
}

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
