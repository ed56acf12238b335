package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/material"
)

// ErrInvalidScene is returned when a scene file is well-formed JSON but
// describes something that cannot be rendered
var ErrInvalidScene = errors.New("invalid scene")

// File is the JSON representation of a scene
type File struct {
	Name      string                  `json:"name"`
	Camera    CameraFile              `json:"camera"`
	Materials map[string]MaterialFile `json:"materials"`
	Spheres   []SphereFile            `json:"spheres"`
}

// CameraFile describes the camera and image
type CameraFile struct {
	Width           int        `json:"width"`
	Height          int        `json:"height"`
	SamplesPerPixel int        `json:"samples_per_pixel"`
	MaxDepth        int        `json:"max_depth"`
	VFov            float64    `json:"vfov"`
	LookFrom        [3]float64 `json:"look_from"`
	LookAt          [3]float64 `json:"look_at"`
	VUp             [3]float64 `json:"vup"`
	DefocusAngle    float64    `json:"defocus_angle"`
	FocusDist       float64    `json:"focus_dist"`
}

// MaterialFile describes one named material
type MaterialFile struct {
	Type            string     `json:"type"`
	Albedo          [3]float64 `json:"albedo"`
	Fuzz            float64    `json:"fuzz"`
	RefractionIndex float64    `json:"refraction_index"`
}

// SphereFile places a sphere with a material referenced by name
type SphereFile struct {
	Center   [3]float64 `json:"center"`
	Radius   float64    `json:"radius"`
	Material string     `json:"material"`
}

// LoadFile reads a scene from a JSON file
func LoadFile(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scene: %w", err)
	}
	defer f.Close()

	s, err := LoadJSON(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// LoadJSON decodes and validates a scene
func LoadJSON(r io.Reader) (*Scene, error) {
	var file File
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	return file.Build()
}

// Build converts the file representation into a renderable scene
func (f File) Build() (*Scene, error) {
	cameraConfig, err := f.Camera.config()
	if err != nil {
		return nil, err
	}

	materials := make(map[string]material.Material, len(f.Materials))
	for name, mf := range f.Materials {
		m, err := mf.material()
		if err != nil {
			return nil, fmt.Errorf("%w: material %q: %v", ErrInvalidScene, name, err)
		}
		materials[name] = m
	}

	world := geometry.NewWorld()
	for i, sf := range f.Spheres {
		m, ok := materials[sf.Material]
		if !ok {
			return nil, fmt.Errorf("%w: sphere %d references unknown material %q", ErrInvalidScene, i, sf.Material)
		}
		if sf.Radius <= 0 {
			return nil, fmt.Errorf("%w: sphere %d has non-positive radius %g", ErrInvalidScene, i, sf.Radius)
		}
		world.Add(geometry.NewSphere(vec(sf.Center), sf.Radius, m))
	}

	return New(f.Name, cameraConfig, world), nil
}

func (c CameraFile) config() (geometry.CameraConfig, error) {
	config := geometry.CameraConfig{
		Width:           c.Width,
		Height:          c.Height,
		SamplesPerPixel: c.SamplesPerPixel,
		MaxDepth:        c.MaxDepth,
		VFov:            c.VFov,
		LookFrom:        vec(c.LookFrom),
		LookAt:          vec(c.LookAt),
		VUp:             vec(c.VUp),
		DefocusAngle:    c.DefocusAngle,
		FocusDist:       c.FocusDist,
	}

	if config.Width <= 0 || config.Height <= 0 {
		return config, fmt.Errorf("%w: image size %dx%d", ErrInvalidScene, config.Width, config.Height)
	}
	if config.SamplesPerPixel == 0 {
		config.SamplesPerPixel = 100
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 50
	}
	if config.VFov == 0 {
		config.VFov = 90
	}
	if config.VUp == (core.Vec3{}) {
		config.VUp = core.NewVec3(0, 1, 0)
	}
	if config.LookFrom == config.LookAt {
		return config, fmt.Errorf("%w: look_from equals look_at", ErrInvalidScene)
	}
	return config, nil
}

func (m MaterialFile) material() (material.Material, error) {
	kind, err := material.ParseKind(m.Type)
	if err != nil {
		return material.Material{}, err
	}
	switch kind {
	case material.KindMetal:
		return material.NewMetal(vec(m.Albedo), m.Fuzz), nil
	case material.KindDielectric:
		if m.RefractionIndex <= 0 {
			return material.Material{}, fmt.Errorf("refraction index must be positive, got %g", m.RefractionIndex)
		}
		return material.NewDielectric(m.RefractionIndex), nil
	default:
		return material.NewLambertian(vec(m.Albedo)), nil
	}
}

func vec(v [3]float64) core.Vec3 {
	return core.NewVec3(v[0], v[1], v[2])
}
