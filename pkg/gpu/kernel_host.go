package gpu

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/df07/go-pathtracer/pkg/material"
)

// The host trace kernel mirrors shaders/trace.wgsl statement for statement in
// float32 so both devices produce the same estimator.

const (
	hostTMin              float32 = 0.001
	hostTFar              float32 = 3.0e38
	hostNearZero          float32 = 1e-8
	hostMaxRejectionTries         = 64
)

type vec3f [3]float32

func (a vec3f) add(b vec3f) vec3f     { return vec3f{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a vec3f) sub(b vec3f) vec3f     { return vec3f{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func (a vec3f) mul(b vec3f) vec3f     { return vec3f{a[0] * b[0], a[1] * b[1], a[2] * b[2]} }
func (a vec3f) scale(s float32) vec3f { return vec3f{a[0] * s, a[1] * s, a[2] * s} }
func (a vec3f) dot(b vec3f) float32   { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
func (a vec3f) neg() vec3f            { return vec3f{-a[0], -a[1], -a[2]} }
func (a vec3f) length() float32       { return math32.Sqrt(a.dot(a)) }
func (a vec3f) normalize() vec3f      { return a.scale(1 / a.length()) }
func (a vec3f) nearZero() bool {
	return math32.Abs(a[0]) < hostNearZero && math32.Abs(a[1]) < hostNearZero && math32.Abs(a[2]) < hostNearZero
}

// pcgHash is the PCG-RXS-M-XS 32-bit hash used as the per-invocation RNG
func pcgHash(input uint32) uint32 {
	state := input*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}

// invocationSeed derives the RNG state of one invocation in one pass
func invocationSeed(id uint32, u Uniforms) uint32 {
	return pcgHash(id ^ pcgHash(u.BounceIndex^pcgHash(u.PassIndex^u.Seed)))
}

type pcgRand struct {
	state uint32
}

// float returns a uniform value in [0, 1) with 24 bits of precision
func (r *pcgRand) float() float32 {
	r.state = pcgHash(r.state)
	return float32(r.state>>8) / 16777216.0
}

func (r *pcgRand) unitVector() vec3f {
	for range hostMaxRejectionTries {
		p := vec3f{r.float()*2 - 1, r.float()*2 - 1, r.float()*2 - 1}
		lensq := p.dot(p)
		if lensq > 1e-30 && lensq <= 1 {
			return p.scale(1 / math32.Sqrt(lensq))
		}
	}
	z := 1 - 2*r.float()
	radius := math32.Sqrt(math32.Max(0, 1-z*z))
	phi := 2 * math32.Pi * r.float()
	return vec3f{radius * math32.Cos(phi), radius * math32.Sin(phi), z}
}

func reflectf(v, n vec3f) vec3f {
	return v.sub(n.scale(2 * v.dot(n)))
}

func refractf(uv, n vec3f, ratio float32) vec3f {
	cosTheta := math32.Min(uv.neg().dot(n), 1)
	perp := uv.add(n.scale(cosTheta)).scale(ratio)
	parallel := n.scale(-math32.Sqrt(math32.Abs(1 - perp.dot(perp))))
	return perp.add(parallel)
}

func reflectancef(cosine, refractionIndex float32) float32 {
	r0 := (1 - refractionIndex) / (1 + refractionIndex)
	r0 = r0 * r0
	return r0 + (1-r0)*math32.Pow(1-cosine, 5)
}

func backgroundf(direction vec3f) vec3f {
	unit := direction.normalize()
	a := 0.5 * (unit[1] + 1)
	return vec3f{1, 1, 1}.scale(1 - a).add(vec3f{0.5, 0.7, 1}.scale(a))
}

type hostHit struct {
	point     vec3f
	normal    vec3f
	t         float32
	frontFace bool
	sphere    int
}

func hitSpheres(spheres []SphereRecord, origin, direction vec3f) (hostHit, bool) {
	var hit hostHit
	found := false
	closest := hostTFar
	for i, s := range spheres {
		oc := vec3f(s.Center).sub(origin)
		a := direction.dot(direction)
		h := direction.dot(oc)
		c := oc.dot(oc) - s.Radius*s.Radius
		disc := h*h - a*c
		if disc < 0 {
			continue
		}
		sqrtd := math32.Sqrt(disc)
		root := (h - sqrtd) / a
		if root <= hostTMin || root >= closest {
			root = (h + sqrtd) / a
			if root <= hostTMin || root >= closest {
				continue
			}
		}
		closest = root
		p := origin.add(direction.scale(root))
		outward := p.sub(vec3f(s.Center)).scale(1 / s.Radius)
		front := direction.dot(outward) < 0
		normal := outward
		if !front {
			normal = outward.neg()
		}
		hit = hostHit{point: p, normal: normal, t: root, frontFace: front, sphere: i}
		found = true
	}
	return hit, found
}

// traceRay advances one ray by a single bounce
func traceRay(ray RayRecord, spheres []SphereRecord, rng *pcgRand) RayRecord {
	if ray.BouncesLeft == 0 {
		return ray
	}

	origin, direction, color := vec3f(ray.Origin), vec3f(ray.Direction), vec3f(ray.Color)
	hit, ok := hitSpheres(spheres, origin, direction)
	if !ok {
		ray.Color = color.mul(backgroundf(direction))
		ray.BouncesLeft = 0
		return ray
	}

	s := spheres[hit.sphere]
	attenuation := vec3f(s.Albedo)
	var scattered vec3f
	switch material.Kind(s.MaterialKind) {
	case material.KindMetal:
		scattered = reflectf(direction, hit.normal).normalize()
		if s.Fuzz > 0 {
			scattered = scattered.add(rng.unitVector().scale(s.Fuzz))
		}
		if scattered.nearZero() {
			scattered = hit.normal
		}
	case material.KindDielectric:
		attenuation = vec3f{1, 1, 1}
		ratio := s.RefractionIndex
		if hit.frontFace {
			ratio = 1 / s.RefractionIndex
		}
		unit := direction.normalize()
		cosTheta := math32.Min(unit.neg().dot(hit.normal), 1)
		sinTheta := math32.Sqrt(math32.Max(0, 1-cosTheta*cosTheta))
		if ratio*sinTheta > 1 || reflectancef(cosTheta, s.RefractionIndex) > rng.float() {
			scattered = reflectf(unit, hit.normal)
		} else {
			scattered = refractf(unit, hit.normal, ratio)
		}
	default:
		scattered = hit.normal.add(rng.unitVector())
		if scattered.nearZero() {
			scattered = hit.normal
		}
	}

	ray.Origin = hit.point
	ray.Direction = scattered
	ray.Color = color.mul(attenuation)
	ray.BouncesLeft--
	if ray.BouncesLeft == 0 {
		ray.Color = [3]float32{}
	}
	return ray
}

// hostTrace is the host form of the trace kernel
func hostTrace(bindings [][]byte) (func(gidX, gidY uint32), error) {
	if len(bindings) <= bindingRaysOut {
		return nil, fmt.Errorf("trace kernel: %d bindings bound, want %d", len(bindings), bindingRaysOut+1)
	}
	u, err := DecodeUniforms(bindings[bindingUniforms])
	if err != nil {
		return nil, fmt.Errorf("trace kernel: %w", err)
	}
	raysIn, raysOut := bindings[bindingRaysIn], bindings[bindingRaysOut]
	if need := int(u.RayCount) * RayRecordSize; len(raysIn) < need || len(raysOut) < need {
		return nil, fmt.Errorf("trace kernel: ray buffers hold %d/%d bytes, want %d",
			len(raysIn), len(raysOut), need)
	}
	if need := int(u.SphereCount) * SphereRecordSize; len(bindings[bindingSpheres]) < need {
		return nil, fmt.Errorf("trace kernel: sphere buffer holds %d bytes, want %d",
			len(bindings[bindingSpheres]), need)
	}

	spheres := make([]SphereRecord, u.SphereCount)
	for i := range spheres {
		spheres[i] = GetSphereRecord(bindings[bindingSpheres], i)
	}

	return func(gidX, gidY uint32) {
		id := gidX + gidY*u.RowStride
		if id >= u.RayCount {
			return
		}
		ray := GetRayRecord(raysIn, int(id))
		if ray.BouncesLeft == 0 {
			PutRayRecord(raysOut, int(id), ray)
			return
		}
		rng := pcgRand{state: invocationSeed(id, u)}
		PutRayRecord(raysOut, int(id), traceRay(ray, spheres, &rng))
	}, nil
}
