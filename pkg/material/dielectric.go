package material

import (
	"math"

	"github.com/df07/go-pathtracer/pkg/core"
)

func scatterDielectric(m Material, rayIn core.Ray, hit HitRecord, sampler core.Sampler) ScatterResult {
	// Entering the material from outside uses 1/η, leaving it uses η
	ratio := m.RefractionIndex
	if hit.FrontFace {
		ratio = 1.0 / m.RefractionIndex
	}

	unitDirection := rayIn.Direction.Normalize()
	cosTheta := math.Min(unitDirection.Negate().Dot(hit.Normal), 1.0)
	sinTheta := math.Sqrt(math.Max(0, 1.0-cosTheta*cosTheta))

	cannotRefract := ratio*sinTheta > 1.0

	var direction core.Vec3
	if cannotRefract || Reflectance(cosTheta, m.RefractionIndex) > sampler.Get1D() {
		direction = Reflect(unitDirection, hit.Normal)
	} else {
		direction = Refract(unitDirection, hit.Normal, ratio)
	}

	return ScatterResult{
		Attenuation: core.NewVec3(1, 1, 1),
		Scattered:   core.NewRay(hit.Point, direction),
	}
}

// Refract bends the unit vector uv through a surface with normal n using
// Snell's law, where ratio is η_incident / η_transmitted
func Refract(uv, n core.Vec3, ratio float64) core.Vec3 {
	cosTheta := math.Min(uv.Negate().Dot(n), 1.0)
	rOutPerp := uv.Add(n.Multiply(cosTheta)).Multiply(ratio)
	rOutParallel := n.Multiply(-math.Sqrt(math.Abs(1.0 - rOutPerp.LengthSquared())))
	return rOutPerp.Add(rOutParallel)
}

// Reflectance calculates the Fresnel reflectance using Schlick's approximation,
// with r0 derived from the material's refraction index
func Reflectance(cosine, refractionIndex float64) float64 {
	r0 := (1 - refractionIndex) / (1 + refractionIndex)
	r0 = r0 * r0
	return r0 + (1-r0)*math.Pow(1-cosine, 5)
}
