package material

import "github.com/df07/go-pathtracer/pkg/core"

func scatterMetal(m Material, rayIn core.Ray, hit HitRecord, sampler core.Sampler) ScatterResult {
	reflected := Reflect(rayIn.Direction, hit.Normal).Normalize()
	if m.Fuzz > 0 {
		reflected = reflected.Add(core.RandomUnitVector(sampler).Multiply(m.Fuzz))
	}

	// A fuzzed direction can point below the surface. It is still traced:
	// absorption only happens through depth exhaustion.
	if reflected.NearZero() {
		reflected = hit.Normal
	}

	return ScatterResult{
		Attenuation: m.Albedo,
		Scattered:   core.NewRay(hit.Point, reflected),
	}
}

// Reflect returns v mirrored about the normal n
func Reflect(v, n core.Vec3) core.Vec3 {
	return v.Subtract(n.Multiply(2 * v.Dot(n)))
}
