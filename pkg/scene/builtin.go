package scene

import (
	"math/rand"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/material"
)

// NewThreeSpheresScene creates a diffuse, a glass (with an air bubble) and a
// fuzzy metal sphere resting on a large ground sphere
func NewThreeSpheresScene(_ int64, cameraOverrides ...geometry.CameraConfig) *Scene {
	cameraConfig := mergeOverrides(geometry.CameraConfig{
		Width:           400,
		Height:          225, // 16:9
		SamplesPerPixel: 100,
		MaxDepth:        50,
		VFov:            90,
		LookFrom:        core.NewVec3(0, 0, 0),
		LookAt:          core.NewVec3(0, 0, -1),
		VUp:             core.NewVec3(0, 1, 0),
		FocusDist:       1,
	}, cameraOverrides)

	ground := material.NewLambertian(core.NewVec3(0.8, 0.8, 0.0))
	center := material.NewLambertian(core.NewVec3(0.1, 0.2, 0.5))
	glass := material.NewDielectric(1.5)
	bubble := material.NewDielectric(1.0 / 1.5)
	gold := material.NewMetal(core.NewVec3(0.8, 0.6, 0.2), 1.0)

	world := geometry.NewWorld(
		geometry.NewSphere(core.NewVec3(0, -100.5, -1), 100, ground),
		geometry.NewSphere(core.NewVec3(0, 0, -1.2), 0.5, center),
		geometry.NewSphere(core.NewVec3(-1, 0, -1), 0.5, glass),
		geometry.NewSphere(core.NewVec3(-1, 0, -1), 0.4, bubble),
		geometry.NewSphere(core.NewVec3(1, 0, -1), 0.5, gold),
	)

	return New("three-spheres", cameraConfig, world)
}

// NewGPUSampleScene is the three-spheres layout with a mirror-polished metal
// sphere, viewed from behind the origin
func NewGPUSampleScene(_ int64, cameraOverrides ...geometry.CameraConfig) *Scene {
	cameraConfig := mergeOverrides(geometry.CameraConfig{
		Width:           480,
		Height:          320,
		SamplesPerPixel: 100,
		MaxDepth:        50,
		VFov:            90,
		LookFrom:        core.NewVec3(0, 0, -3),
		LookAt:          core.NewVec3(0, 0, 0),
		VUp:             core.NewVec3(0, 1, 0),
	}, cameraOverrides)

	world := geometry.NewWorld(
		geometry.NewSphere(core.NewVec3(0, -100.5, -1), 100, material.NewLambertian(core.NewVec3(0.8, 0.8, 0.0))),
		geometry.NewSphere(core.NewVec3(0, 0, -1.2), 0.5, material.NewLambertian(core.NewVec3(0.1, 0.2, 0.5))),
		geometry.NewSphere(core.NewVec3(-1, 0, -1), 0.5, material.NewDielectric(1.5)),
		geometry.NewSphere(core.NewVec3(-1, 0, -1), 0.4, material.NewDielectric(1.0/1.5)),
		geometry.NewSphere(core.NewVec3(1, 0, -1), 0.5, material.NewMetal(core.NewVec3(0.8, 0.6, 0.2), 0)),
	)

	return New("gpu-sample", cameraConfig, world)
}

// NewSingleSphereScene creates one diffuse sphere above a ground sphere
func NewSingleSphereScene(_ int64, cameraOverrides ...geometry.CameraConfig) *Scene {
	cameraConfig := mergeOverrides(geometry.CameraConfig{
		Width:           320,
		Height:          180,
		SamplesPerPixel: 50,
		MaxDepth:        20,
		VFov:            90,
		LookFrom:        core.NewVec3(0, 0, 0),
		LookAt:          core.NewVec3(0, 0, -1),
		VUp:             core.NewVec3(0, 1, 0),
		FocusDist:       1,
	}, cameraOverrides)

	world := geometry.NewWorld(
		geometry.NewSphere(core.NewVec3(0, -100.5, -1), 100, material.NewLambertian(core.NewVec3(0.5, 0.5, 0.5))),
		geometry.NewSphere(core.NewVec3(0, 0, -1), 0.5, material.NewLambertian(core.NewVec3(0.5, 0.5, 0.5))),
	)

	return New("single-sphere", cameraConfig, world)
}

// NewRandomScene scatters small random spheres around three large ones.
// The same seed always produces the same scene.
func NewRandomScene(seed int64, cameraOverrides ...geometry.CameraConfig) *Scene {
	cameraConfig := mergeOverrides(geometry.CameraConfig{
		Width:           480,
		Height:          320,
		SamplesPerPixel: 100,
		MaxDepth:        25,
		VFov:            20,
		LookFrom:        core.NewVec3(13, 2, 3),
		LookAt:          core.NewVec3(0, 0, 0),
		VUp:             core.NewVec3(0, 1, 0),
		DefocusAngle:    0.6,
		FocusDist:       10,
	}, cameraOverrides)

	random := rand.New(rand.NewSource(seed))
	randomColor := func() core.Vec3 {
		return core.NewVec3(random.Float64(), random.Float64(), random.Float64())
	}

	world := geometry.NewWorld(
		geometry.NewSphere(core.NewVec3(0, -1000, 0), 1000, material.NewLambertian(core.NewVec3(0.5, 0.5, 0.5))),
	)

	keepClear := core.NewVec3(4, 0.2, 0)
	for a := -2; a < 2; a++ {
		for b := -2; b < 2; b++ {
			chooseMaterial := random.Float64()
			center := core.NewVec3(float64(a)+0.9*random.Float64(), 0.2, float64(b)+0.9*random.Float64())
			if center.Subtract(keepClear).Length() <= 0.9 {
				continue
			}

			var m material.Material
			switch {
			case chooseMaterial < 0.8:
				m = material.NewLambertian(randomColor().MultiplyVec(randomColor()))
			case chooseMaterial < 0.95:
				albedo := randomColor().Add(core.NewVec3(1, 1, 1)).Multiply(0.5)
				m = material.NewMetal(albedo, random.Float64()/2)
			default:
				m = material.NewDielectric(1.5)
			}
			world.Add(geometry.NewSphere(center, 0.2, m))
		}
	}

	world.Add(geometry.NewSphere(core.NewVec3(0, 1, 0), 1, material.NewDielectric(1.5)))
	world.Add(geometry.NewSphere(core.NewVec3(-4, 1, 0), 1, material.NewLambertian(core.NewVec3(0.4, 0.2, 0.1))))
	world.Add(geometry.NewSphere(core.NewVec3(4, 1, 0), 1, material.NewMetal(core.NewVec3(0.7, 0.6, 0.5), 0)))

	return New("random", cameraConfig, world)
}
