package core

import (
	"math"
	"math/rand"
	"testing"
)

func TestRandomUnitVector_IsUnitLength(t *testing.T) {
	sampler := NewRandomSampler(rand.New(rand.NewSource(42)))

	var mean Vec3
	const n = 10000
	for range n {
		v := RandomUnitVector(sampler)
		if math.Abs(v.Length()-1) > 1e-9 {
			t.Fatalf("Expected unit vector, got length %f", v.Length())
		}
		mean = mean.Add(v)
	}

	// Uniform directions average out to the origin
	mean = mean.Divide(n)
	if mean.Length() > 0.05 {
		t.Errorf("Expected mean direction near zero, got %v", mean)
	}
}

func TestRandomUnitVector_RejectsOutsideBall(t *testing.T) {
	// First candidate (1,1,1)-ish lies outside the ball, second maps to (0.5,0,0)
	sampler := NewSequenceSampler(0.99, 0.99, 0.99, 0.75, 0.5, 0.5)
	v := RandomUnitVector(sampler)
	if v.Subtract(NewVec3(1, 0, 0)).Length() > 1e-12 {
		t.Errorf("Expected (1,0,0), got %v", v)
	}
}

func TestRandomUnitVector_DegenerateSamplerTerminates(t *testing.T) {
	// 0.5 maps every candidate to the origin, which is always rejected
	v := RandomUnitVector(NewSequenceSampler(0.5))
	if math.Abs(v.Length()-1) > 1e-9 {
		t.Errorf("Expected unit vector from fallback, got %v", v)
	}
}

func TestRandomInUnitDisk(t *testing.T) {
	sampler := NewSeededSampler(7)
	for range 1000 {
		p := RandomInUnitDisk(sampler)
		if p.Z != 0 {
			t.Fatalf("Expected z = 0, got %v", p)
		}
		if p.LengthSquared() >= 1 {
			t.Fatalf("Expected point inside unit disk, got %v", p)
		}
	}
}

func TestSequenceSampler_Wraps(t *testing.T) {
	s := NewSequenceSampler(0.1, 0.2, 0.3)
	got := []float64{s.Get1D(), s.Get1D(), s.Get1D(), s.Get1D()}
	expected := []float64{0.1, 0.2, 0.3, 0.1}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Value %d: expected %f, got %f", i, expected[i], got[i])
		}
	}
}

func TestSeededSampler_Deterministic(t *testing.T) {
	a := NewSeededSampler(123)
	b := NewSeededSampler(123)
	for i := range 10 {
		if a.Get1D() != b.Get1D() {
			t.Fatalf("Samplers with equal seeds diverged at value %d", i)
		}
	}
}
