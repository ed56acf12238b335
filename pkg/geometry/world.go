package geometry

import (
	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/material"
)

// SurfaceKind identifies the shape stored in a Surface
type SurfaceKind int

const (
	// SurfaceSphere is the only supported shape
	SurfaceSphere SurfaceKind = iota
)

// Surface is a closed set of intersectable shapes
type Surface struct {
	Kind   SurfaceKind
	Sphere Sphere
}

// SphereSurface wraps a sphere as a Surface
func SphereSurface(s Sphere) Surface {
	return Surface{Kind: SurfaceSphere, Sphere: s}
}

// Hit intersects the ray with the wrapped shape
func (s Surface) Hit(ray core.Ray, rayT core.Interval) (material.HitRecord, bool) {
	switch s.Kind {
	case SurfaceSphere:
		return s.Sphere.Hit(ray, rayT)
	}
	return material.HitRecord{}, false
}

// World is an ordered list of surfaces. It is read-only once rendering starts
// and may be shared between goroutines.
type World struct {
	Surfaces []Surface
}

// NewWorld creates a world from a list of spheres
func NewWorld(spheres ...Sphere) *World {
	w := &World{Surfaces: make([]Surface, 0, len(spheres))}
	for _, s := range spheres {
		w.Add(s)
	}
	return w
}

// Add appends a sphere to the world
func (w *World) Add(s Sphere) {
	w.Surfaces = append(w.Surfaces, SphereSurface(s))
}

// Len returns the number of surfaces
func (w *World) Len() int {
	return len(w.Surfaces)
}

// Spheres returns the spheres of the world in order
func (w *World) Spheres() []Sphere {
	spheres := make([]Sphere, 0, len(w.Surfaces))
	for _, s := range w.Surfaces {
		if s.Kind == SurfaceSphere {
			spheres = append(spheres, s.Sphere)
		}
	}
	return spheres
}

// Hit returns the nearest intersection within rayT. Every surface is tested,
// each against a window shrunk to the closest hit so far, so on equal t the
// earlier surface wins.
func (w *World) Hit(ray core.Ray, rayT core.Interval) (material.HitRecord, bool) {
	var closest material.HitRecord
	hitAnything := false
	closestSoFar := rayT.Max

	for _, surface := range w.Surfaces {
		if hit, ok := surface.Hit(ray, core.NewInterval(rayT.Min, closestSoFar)); ok {
			hitAnything = true
			closestSoFar = hit.T
			closest = hit
		}
	}

	return closest, hitAnything
}
