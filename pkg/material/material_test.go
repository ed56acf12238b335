package material

import (
	"math"
	"math/rand"
	"testing"

	"github.com/df07/go-pathtracer/pkg/core"
)

const tolerance = 1e-9

func upHit(m Material, frontFace bool) HitRecord {
	return HitRecord{
		Point:     core.NewVec3(0, 0, 0),
		Normal:    core.NewVec3(0, 1, 0),
		T:         1.0,
		FrontFace: frontFace,
		Material:  m,
	}
}

func TestScatter_OriginIsHitPoint(t *testing.T) {
	materials := []Material{
		NewLambertian(core.NewVec3(0.5, 0.5, 0.5)),
		NewMetal(core.NewVec3(0.8, 0.6, 0.2), 0.3),
		NewDielectric(1.5),
	}
	ray := core.NewRay(core.NewVec3(-1, 1, 0), core.NewVec3(1, -1, 0))
	sampler := core.NewRandomSampler(rand.New(rand.NewSource(42)))

	for _, m := range materials {
		t.Run(m.Kind.String(), func(t *testing.T) {
			hit := upHit(m, true)
			hit.Point = core.NewVec3(0.25, 0, -0.5)
			for range 100 {
				result := Scatter(ray, hit, sampler)
				if result.Scattered.Origin != hit.Point {
					t.Fatalf("Expected origin %v, got %v", hit.Point, result.Scattered.Origin)
				}
				if result.Scattered.Direction.NearZero() {
					t.Fatalf("Scattered direction is degenerate: %v", result.Scattered.Direction)
				}
			}
		})
	}
}

func TestScatter_DoesNotMutateInputs(t *testing.T) {
	ray := core.NewRay(core.NewVec3(0, 1, 0), core.NewVec3(0.3, -1, 0.1))
	hit := upHit(NewMetal(core.NewVec3(1, 1, 1), 0.5), true)
	rayCopy, hitCopy := ray, hit

	Scatter(ray, hit, core.NewSeededSampler(1))

	if ray != rayCopy || hit != hitCopy {
		t.Error("Scatter modified its inputs")
	}
}

func TestLambertian(t *testing.T) {
	albedo := core.NewVec3(0.1, 0.2, 0.5)
	m := NewLambertian(albedo)
	ray := core.NewRay(core.NewVec3(0, 1, 0), core.NewVec3(0, -1, 0))

	t.Run("Attenuation is albedo", func(t *testing.T) {
		result := Scatter(ray, upHit(m, true), core.NewSeededSampler(3))
		if result.Attenuation != albedo {
			t.Errorf("Expected attenuation %v, got %v", albedo, result.Attenuation)
		}
	})

	t.Run("Direction stays in the normal hemisphere", func(t *testing.T) {
		sampler := core.NewSeededSampler(4)
		for range 1000 {
			result := Scatter(ray, upHit(m, true), sampler)
			if result.Scattered.Direction.Dot(core.NewVec3(0, 1, 0)) < -tolerance {
				t.Fatalf("Direction %v points below the surface", result.Scattered.Direction)
			}
		}
	})

	t.Run("Degenerate direction falls back to normal", func(t *testing.T) {
		// The unit vector drawn is (0,-1,0), exactly cancelling the normal
		sampler := core.NewSequenceSampler(0.5, 0.25, 0.5)
		result := Scatter(ray, upHit(m, true), sampler)
		if result.Scattered.Direction != core.NewVec3(0, 1, 0) {
			t.Errorf("Expected fallback to normal, got %v", result.Scattered.Direction)
		}
	})
}

func TestMetal(t *testing.T) {
	t.Run("Mirror reflection", func(t *testing.T) {
		albedo := core.NewVec3(0.7, 0.6, 0.5)
		m := NewMetal(albedo, 0)
		ray := core.NewRay(core.NewVec3(-1, 1, 0), core.NewVec3(1, -1, 0))

		result := Scatter(ray, upHit(m, true), core.NewSeededSampler(1))

		expected := core.NewVec3(1, 1, 0).Normalize()
		if result.Scattered.Direction.Subtract(expected).Length() > tolerance {
			t.Errorf("Expected direction %v, got %v", expected, result.Scattered.Direction)
		}
		if result.Attenuation != albedo {
			t.Errorf("Expected attenuation %v, got %v", albedo, result.Attenuation)
		}
	})

	t.Run("Fuzz stays within unit ball of mirror direction", func(t *testing.T) {
		m := NewMetal(core.NewVec3(1, 1, 1), 0.5)
		ray := core.NewRay(core.NewVec3(-1, 1, 0), core.NewVec3(1, -1, 0))
		mirror := core.NewVec3(1, 1, 0).Normalize()
		sampler := core.NewSeededSampler(2)

		for range 500 {
			result := Scatter(ray, upHit(m, true), sampler)
			offset := result.Scattered.Direction.Subtract(mirror).Length()
			if math.Abs(offset-0.5) > 1e-9 {
				t.Fatalf("Expected fuzz offset 0.5, got %f", offset)
			}
		}
	})
}

func TestNewMetal_ClampsFuzz(t *testing.T) {
	tests := []struct {
		fuzz, expected float64
	}{
		{-0.5, 0},
		{0.3, 0.3},
		{1.0, 1.0},
		{4.0, 1.0},
	}
	for _, tt := range tests {
		if got := NewMetal(core.NewVec3(1, 1, 1), tt.fuzz).Fuzz; got != tt.expected {
			t.Errorf("NewMetal fuzz %f: expected %f, got %f", tt.fuzz, tt.expected, got)
		}
	}
}

func TestDielectric(t *testing.T) {
	t.Run("Index 1 passes straight through", func(t *testing.T) {
		m := NewDielectric(1.0)
		for _, degrees := range []float64{0, 20, 45, 60, 75, 85} {
			theta := degrees * math.Pi / 180
			direction := core.NewVec3(math.Sin(theta), -math.Cos(theta), 0)
			ray := core.NewRay(direction.Negate(), direction)

			// Any draw at or above the Schlick term refracts
			r := Reflectance(math.Cos(theta), 1.0)
			draw := r + (1-r)/2
			result := Scatter(ray, upHit(m, true), core.NewSequenceSampler(draw))

			if result.Scattered.Direction.Subtract(direction).Length() > 1e-6 {
				t.Errorf("%g°: expected unchanged direction %v, got %v", degrees, direction, result.Scattered.Direction)
			}
			if result.Attenuation != core.NewVec3(1, 1, 1) {
				t.Errorf("%g°: expected white attenuation, got %v", degrees, result.Attenuation)
			}
		}
	})

	t.Run("Index 1 still reflects grazing rays below the Schlick term", func(t *testing.T) {
		m := NewDielectric(1.0)
		theta := 85 * math.Pi / 180
		direction := core.NewVec3(math.Sin(theta), -math.Cos(theta), 0)
		r := Reflectance(math.Cos(theta), 1.0)
		if r <= 0.1 {
			t.Fatalf("Expected a noticeable grazing reflectance, got %g", r)
		}

		result := Scatter(core.NewRay(direction.Negate(), direction), upHit(m, true), core.NewSequenceSampler(r/2))
		expected := Reflect(direction, core.NewVec3(0, 1, 0))
		if result.Scattered.Direction.Subtract(expected).Length() > 1e-6 {
			t.Errorf("Expected reflected direction %v, got %v", expected, result.Scattered.Direction)
		}
	})

	t.Run("Total internal reflection", func(t *testing.T) {
		m := NewDielectric(1.5)
		// Leaving glass at a grazing angle: 1.5 * sin(60°) > 1
		direction := core.NewVec3(math.Sin(math.Pi/3), -math.Cos(math.Pi/3), 0)
		ray := core.NewRay(core.NewVec3(0, 1, 0), direction)

		for _, draw := range []float64{0, 0.5, 0.999} {
			result := Scatter(ray, upHit(m, false), core.NewSequenceSampler(draw))
			expected := Reflect(direction, core.NewVec3(0, 1, 0))
			if result.Scattered.Direction.Subtract(expected).Length() > tolerance {
				t.Errorf("Draw %f: expected reflection %v, got %v", draw, expected, result.Scattered.Direction)
			}
		}
	})

	t.Run("Refraction bends toward the normal when entering", func(t *testing.T) {
		m := NewDielectric(1.5)
		direction := core.NewVec3(1, -1, 0).Normalize()
		ray := core.NewRay(core.NewVec3(-1, 1, 0), direction)

		result := Scatter(ray, upHit(m, true), core.NewSequenceSampler(0.999))
		out := result.Scattered.Direction.Normalize()

		sinIn := direction.X
		sinOut := out.X
		if math.Abs(sinIn/1.5-sinOut) > 1e-9 {
			t.Errorf("Snell's law violated: sin in %f, sin out %f", sinIn, sinOut)
		}
		if out.Y >= 0 {
			t.Errorf("Refracted ray should continue downward, got %v", out)
		}
	})

	t.Run("Both outcomes occur", func(t *testing.T) {
		m := NewDielectric(1.5)
		ray := core.NewRay(core.NewVec3(-1, 1, 0), core.NewVec3(1, -1, 0))
		sampler := core.NewSeededSampler(42)
		reflected, refracted := 0, 0
		for range 2000 {
			result := Scatter(ray, upHit(m, true), sampler)
			if result.Scattered.Direction.Y > 0 {
				reflected++
			} else {
				refracted++
			}
		}
		if reflected == 0 || refracted == 0 {
			t.Errorf("Expected both reflection and refraction, got %d/%d", reflected, refracted)
		}
		if reflected > refracted {
			t.Errorf("Reflection should be the minority at 45°, got %d reflected vs %d refracted", reflected, refracted)
		}
	})
}

func TestReflect_PreservesAngle(t *testing.T) {
	sampler := core.NewSeededSampler(9)
	for range 100 {
		n := core.RandomUnitVector(sampler)
		v := core.RandomUnitVector(sampler)
		r := Reflect(v, n)
		if math.Abs(r.Length()-v.Length()) > tolerance {
			t.Fatalf("Reflection changed length: %f vs %f", r.Length(), v.Length())
		}
		if math.Abs(r.Dot(n)+v.Dot(n)) > tolerance {
			t.Fatalf("Reflection should negate the normal component: %f vs %f", r.Dot(n), v.Dot(n))
		}
	}
}

func TestReflectance(t *testing.T) {
	// Normal incidence on glass gives r0 = 0.04
	if got := Reflectance(1.0, 1.5); math.Abs(got-0.04) > tolerance {
		t.Errorf("Expected 0.04, got %f", got)
	}
	// Grazing incidence reflects everything
	if got := Reflectance(0.0, 1.5); math.Abs(got-1.0) > tolerance {
		t.Errorf("Expected 1.0, got %f", got)
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindLambertian, KindMetal, KindDielectric} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("velvet"); err == nil {
		t.Error("Expected error for unknown material")
	}
}
