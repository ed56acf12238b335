package scene

import (
	"errors"
	"fmt"
	"sort"

	"github.com/df07/go-pathtracer/pkg/geometry"
)

// ErrUnknownScene is returned when a built-in scene name is not registered
var ErrUnknownScene = errors.New("unknown scene")

// Scene contains all the elements needed for rendering
type Scene struct {
	Name         string
	CameraConfig geometry.CameraConfig
	Camera       *geometry.Camera
	World        *geometry.World
}

// New builds a scene, deriving the camera from its configuration
func New(name string, cameraConfig geometry.CameraConfig, world *geometry.World) *Scene {
	camera := geometry.NewCamera(cameraConfig)
	return &Scene{
		Name:         name,
		CameraConfig: camera.Config(),
		Camera:       camera,
		World:        world,
	}
}

// Width returns the image width in pixels
func (s *Scene) Width() int { return s.CameraConfig.Width }

// Height returns the image height in pixels
func (s *Scene) Height() int { return s.CameraConfig.Height }

// WithOverrides returns a copy of the scene whose camera is rebuilt from the
// non-zero fields of overrides. The world is shared.
func (s *Scene) WithOverrides(overrides geometry.CameraConfig) *Scene {
	return New(s.Name, geometry.MergeCameraConfig(s.CameraConfig, overrides), s.World)
}

// Builder creates a built-in scene. Seed drives any randomized placement.
type Builder func(seed int64, cameraOverrides ...geometry.CameraConfig) *Scene

var builders = map[string]Builder{
	"three-spheres": NewThreeSpheresScene,
	"random":        NewRandomScene,
	"single-sphere": NewSingleSphereScene,
	"gpu-sample":    NewGPUSampleScene,
}

// Create builds the built-in scene registered under name
func Create(name string, seed int64, cameraOverrides ...geometry.CameraConfig) (*Scene, error) {
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownScene, name, Names())
	}
	return build(seed, cameraOverrides...), nil
}

// Names lists the built-in scenes in alphabetical order
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func mergeOverrides(base geometry.CameraConfig, overrides []geometry.CameraConfig) geometry.CameraConfig {
	if len(overrides) > 0 {
		return geometry.MergeCameraConfig(base, overrides[0])
	}
	return base
}
