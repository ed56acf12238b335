package core

import (
	"math"
	"math/rand"
)

// Sampler provides random sampling for rendering algorithms
// Can be swapped out for deterministic testing
type Sampler interface {
	Get1D() float64
	Get2D() Vec2
	Get3D() Vec3
}

// RandomSampler wraps a standard Go random generator
type RandomSampler struct {
	random *rand.Rand
}

// NewRandomSampler creates a sampler from a Go random generator
func NewRandomSampler(random *rand.Rand) *RandomSampler {
	return &RandomSampler{random: random}
}

// NewSeededSampler creates a sampler with its own generator seeded by seed
func NewSeededSampler(seed int64) *RandomSampler {
	return NewRandomSampler(rand.New(rand.NewSource(seed)))
}

// Get1D returns a random float64 in [0, 1)
func (r *RandomSampler) Get1D() float64 {
	return r.random.Float64()
}

// Get2D returns two random float64 values in [0, 1)
func (r *RandomSampler) Get2D() Vec2 {
	return NewVec2(r.random.Float64(), r.random.Float64())
}

// Get3D returns three random float64 values in [0, 1)
func (r *RandomSampler) Get3D() Vec3 {
	return NewVec3(r.random.Float64(), r.random.Float64(), r.random.Float64())
}

// SequenceSampler replays a fixed cyclic sequence of values in [0, 1).
// It is not safe for concurrent use.
type SequenceSampler struct {
	values []float64
	next   int
}

// NewSequenceSampler creates a sampler that returns values in order, wrapping around
func NewSequenceSampler(values ...float64) *SequenceSampler {
	if len(values) == 0 {
		values = []float64{0.5}
	}
	return &SequenceSampler{values: values}
}

// Get1D returns the next value of the sequence
func (s *SequenceSampler) Get1D() float64 {
	v := s.values[s.next]
	s.next = (s.next + 1) % len(s.values)
	return v
}

// Get2D returns the next two values of the sequence
func (s *SequenceSampler) Get2D() Vec2 {
	x := s.Get1D()
	return NewVec2(x, s.Get1D())
}

// Get3D returns the next three values of the sequence
func (s *SequenceSampler) Get3D() Vec3 {
	x := s.Get1D()
	y := s.Get1D()
	return NewVec3(x, y, s.Get1D())
}

// maxRejections bounds the rejection loops so a degenerate sampler cannot spin forever
const maxRejections = 64

// RandomInUnitCube returns a point with each component uniform in [-1, 1)
func RandomInUnitCube(sampler Sampler) Vec3 {
	p := sampler.Get3D()
	return NewVec3(2*p.X-1, 2*p.Y-1, 2*p.Z-1)
}

// RandomUnitVector returns a direction uniformly distributed on the unit sphere.
// Candidates in the unit cube are rejected until one falls inside the unit
// ball and is not vanishingly short.
func RandomUnitVector(sampler Sampler) Vec3 {
	for range maxRejections {
		p := RandomInUnitCube(sampler)
		lensq := p.LengthSquared()
		if 1e-160 < lensq && lensq <= 1 {
			return p.Divide(math.Sqrt(lensq))
		}
	}
	// Fall back to the analytic mapping of the last two values
	return SampleOnUnitSphere(sampler.Get2D())
}

// RandomInUnitDisk returns a point uniformly distributed in the unit disk (z = 0)
func RandomInUnitDisk(sampler Sampler) Vec3 {
	for range maxRejections {
		s := sampler.Get2D()
		p := NewVec3(2*s.X-1, 2*s.Y-1, 0)
		if p.LengthSquared() < 1 {
			return p
		}
	}
	return SamplePointInUnitDisk(sampler.Get2D())
}

// SampleOnUnitSphere maps a 2D sample to a uniform direction on the unit sphere
func SampleOnUnitSphere(sample Vec2) Vec3 {
	z := 1.0 - 2.0*sample.X
	r := math.Sqrt(math.Max(0, 1.0-z*z))
	phi := 2.0 * math.Pi * sample.Y
	return NewVec3(r*math.Cos(phi), r*math.Sin(phi), z)
}

// SamplePointInUnitDisk maps a 2D sample to the unit disk using concentric mapping
func SamplePointInUnitDisk(sample Vec2) Vec3 {
	// Map sample to [-1,1]² and handle degeneracy at the origin
	u := NewVec2(2*sample.X-1, 2*sample.Y-1)
	if u.X == 0 && u.Y == 0 {
		return Vec3{}
	}

	var theta, r float64
	if math.Abs(u.X) > math.Abs(u.Y) {
		r = u.X
		theta = math.Pi / 4 * (u.Y / u.X)
	} else {
		r = u.Y
		theta = math.Pi/2 - math.Pi/4*(u.X/u.Y)
	}

	return NewVec3(r*math.Cos(theta), r*math.Sin(theta), 0)
}
