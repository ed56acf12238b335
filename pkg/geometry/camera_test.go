package geometry

import (
	"math"
	"testing"

	"github.com/df07/go-pathtracer/pkg/core"
)

func testCameraConfig() CameraConfig {
	return CameraConfig{
		Width:           3,
		Height:          3,
		SamplesPerPixel: 4,
		MaxDepth:        10,
		VFov:            90,
		LookFrom:        core.NewVec3(0, 0, 0),
		LookAt:          core.NewVec3(0, 0, -1),
		VUp:             core.NewVec3(0, 1, 0),
		FocusDist:       1,
	}
}

func TestCamera_GetRay(t *testing.T) {
	camera := NewCamera(testCameraConfig())
	third := 2.0 / 3.0

	tests := []struct {
		name   string
		i, j   int
		target core.Vec3
	}{
		{"center pixel", 1, 1, core.NewVec3(0, 0, -1)},
		{"top left pixel", 0, 0, core.NewVec3(-third, third, -1)},
		{"bottom right pixel", 2, 2, core.NewVec3(third, -third, -1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 0.5 draws give a zero jitter offset
			ray := camera.GetRay(tt.i, tt.j, core.NewSequenceSampler(0.5))
			if ray.Origin != camera.Center() {
				t.Errorf("Expected origin at camera center, got %v", ray.Origin)
			}
			expected := tt.target.Normalize()
			if ray.Direction.Subtract(expected).Length() > 1e-9 {
				t.Errorf("Expected direction %v, got %v", expected, ray.Direction)
			}
		})
	}
}

func TestCamera_JitterStaysInPixel(t *testing.T) {
	camera := NewCamera(testCameraConfig())
	sampler := core.NewSeededSampler(1)
	halfPixel := 1.0 / 3.0

	for range 500 {
		ray := camera.GetRay(1, 1, sampler)
		if math.Abs(ray.Direction.Length()-1) > 1e-9 {
			t.Fatalf("Expected normalized direction, got length %f", ray.Direction.Length())
		}
		// Intersect with the focus plane z = -1
		p := ray.At(-1 / ray.Direction.Z)
		if math.Abs(p.X) > halfPixel+1e-9 || math.Abs(p.Y) > halfPixel+1e-9 {
			t.Fatalf("Sample point %v outside the center pixel", p)
		}
	}
}

func TestCamera_Defocus(t *testing.T) {
	config := testCameraConfig()
	config.DefocusAngle = 10
	config.FocusDist = 2
	camera := NewCamera(config)
	sampler := core.NewSeededSampler(5)
	radius := 2 * math.Tan(5*math.Pi/180)

	moved := false
	for range 200 {
		ray := camera.GetRay(1, 1, sampler)
		offset := ray.Origin.Subtract(camera.Center())
		if offset.Length() > radius+1e-9 {
			t.Fatalf("Origin %v outside defocus disk of radius %f", ray.Origin, radius)
		}
		if math.Abs(offset.Z) > 1e-12 {
			t.Fatalf("Defocus disk should lie in the u,v plane, got offset %v", offset)
		}
		if offset.Length() > 0 {
			moved = true
		}
	}
	if !moved {
		t.Error("Expected ray origins to vary across the defocus disk")
	}
}

func TestCamera_FocusDistDefaultsToLookDistance(t *testing.T) {
	config := testCameraConfig()
	config.LookFrom = core.NewVec3(0, 0, 3)
	config.LookAt = core.NewVec3(0, 0, 0)
	config.FocusDist = 0

	camera := NewCamera(config)
	if got := camera.Config().FocusDist; math.Abs(got-3) > 1e-12 {
		t.Errorf("Expected focus distance 3, got %f", got)
	}
	if got := camera.PixelSampleScale(); got != 0.25 {
		t.Errorf("Expected pixel sample scale 0.25, got %f", got)
	}
}

func TestCamera_GenerateRaysOrder(t *testing.T) {
	config := testCameraConfig()
	config.Width = 4
	config.Height = 2
	camera := NewCamera(config)

	const batch = 3
	var indices []int
	var directions []core.Vec3
	camera.GenerateRays(batch, core.NewSequenceSampler(0.5), func(index int, ray core.Ray) {
		indices = append(indices, index)
		directions = append(directions, ray.Direction)
	})

	if len(indices) != 4*2*batch {
		t.Fatalf("Expected %d rays, got %d", 4*2*batch, len(indices))
	}
	for i, idx := range indices {
		if i != idx {
			t.Fatalf("Expected sequential indices, got %d at position %d", idx, i)
		}
	}

	// Every ray of pixel p lies in [p*batch, (p+1)*batch)
	for y := range 2 {
		for x := range 4 {
			pixel := y*4 + x
			expected := camera.GetRay(x, y, core.NewSequenceSampler(0.5)).Direction
			for s := range batch {
				if directions[pixel*batch+s].Subtract(expected).Length() > 1e-12 {
					t.Fatalf("Ray %d does not belong to pixel (%d,%d)", pixel*batch+s, x, y)
				}
			}
		}
	}
}

func TestMergeCameraConfig(t *testing.T) {
	base := testCameraConfig()
	merged := MergeCameraConfig(base, CameraConfig{Width: 640, SamplesPerPixel: 32})
	if merged.Width != 640 || merged.SamplesPerPixel != 32 {
		t.Errorf("Expected overrides to apply, got %+v", merged)
	}
	if merged.Height != base.Height || merged.VFov != base.VFov {
		t.Errorf("Expected zero fields to keep base values, got %+v", merged)
	}
}
