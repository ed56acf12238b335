package material

import "github.com/df07/go-pathtracer/pkg/core"

func scatterLambertian(m Material, hit HitRecord, sampler core.Sampler) ScatterResult {
	direction := hit.Normal.Add(core.RandomUnitVector(sampler))

	// Catch degenerate scatter direction
	if direction.NearZero() {
		direction = hit.Normal
	}

	return ScatterResult{
		Attenuation: m.Albedo,
		Scattered:   core.NewRay(hit.Point, direction),
	}
}
