package material

import (
	"fmt"

	"github.com/df07/go-pathtracer/pkg/core"
)

// Kind identifies the scattering model of a Material
type Kind uint32

// The numeric values are shared with the GPU sphere layout
const (
	KindLambertian Kind = 0
	KindMetal      Kind = 1
	KindDielectric Kind = 2
)

// String returns the lowercase name of the kind
func (k Kind) String() string {
	switch k {
	case KindLambertian:
		return "lambertian"
	case KindMetal:
		return "metal"
	case KindDielectric:
		return "dielectric"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// ParseKind converts a name produced by Kind.String back into a Kind
func ParseKind(name string) (Kind, error) {
	switch name {
	case "lambertian", "diffuse":
		return KindLambertian, nil
	case "metal":
		return KindMetal, nil
	case "dielectric", "glass":
		return KindDielectric, nil
	}
	return 0, fmt.Errorf("unknown material %q", name)
}

// Material is a closed set of surface scattering models. Only the fields
// used by Kind are meaningful: Albedo for Lambertian and Metal, Fuzz for
// Metal, RefractionIndex for Dielectric.
type Material struct {
	Kind            Kind
	Albedo          core.Vec3
	Fuzz            float64
	RefractionIndex float64
}

// NewLambertian creates a diffuse material
func NewLambertian(albedo core.Vec3) Material {
	return Material{Kind: KindLambertian, Albedo: albedo}
}

// NewMetal creates a specular material. Fuzz is clamped to [0, 1].
func NewMetal(albedo core.Vec3, fuzz float64) Material {
	return Material{Kind: KindMetal, Albedo: albedo, Fuzz: max(0, min(1, fuzz))}
}

// NewDielectric creates a clear refractive material
func NewDielectric(refractionIndex float64) Material {
	return Material{Kind: KindDielectric, RefractionIndex: refractionIndex}
}

// HitRecord describes a ray-surface intersection
type HitRecord struct {
	Point     core.Vec3 // Point of intersection
	Normal    core.Vec3 // Unit normal, always opposing the incoming ray
	T         float64   // Parameter t along the ray
	FrontFace bool      // Whether the ray hit the outside of the surface
	Material  Material
}

// SetFaceNormal sets the normal vector and determines front/back face
func (h *HitRecord) SetFaceNormal(ray core.Ray, outwardNormal core.Vec3) {
	h.FrontFace = ray.Direction.Dot(outwardNormal) < 0
	if h.FrontFace {
		h.Normal = outwardNormal
	} else {
		h.Normal = outwardNormal.Negate()
	}
}

// ScatterResult is the outcome of one scattering event
type ScatterResult struct {
	Attenuation core.Vec3
	Scattered   core.Ray
}

// Scatter maps an incoming ray and its hit to an attenuation and exactly one
// outgoing ray starting at the hit point. Neither input is modified.
func Scatter(rayIn core.Ray, hit HitRecord, sampler core.Sampler) ScatterResult {
	switch hit.Material.Kind {
	case KindMetal:
		return scatterMetal(hit.Material, rayIn, hit, sampler)
	case KindDielectric:
		return scatterDielectric(hit.Material, rayIn, hit, sampler)
	default:
		return scatterLambertian(hit.Material, hit, sampler)
	}
}

// Scatter scatters rayIn off hit using this material, regardless of hit.Material
func (m Material) Scatter(rayIn core.Ray, hit HitRecord, sampler core.Sampler) ScatterResult {
	hit.Material = m
	return Scatter(rayIn, hit, sampler)
}
