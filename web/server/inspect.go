package server

import (
	"fmt"
	"math"
	"net/http"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/material"
	"github.com/df07/go-pathtracer/pkg/scene"
)

// InspectResponse represents the JSON response for object inspection
type InspectResponse struct {
	Hit          bool           `json:"hit"`
	MaterialType string         `json:"materialType,omitempty"`
	Point        [3]float64     `json:"point"`
	Normal       [3]float64     `json:"normal"`
	Distance     float64        `json:"distance"`
	FrontFace    bool           `json:"frontFace"`
	Properties   map[string]any `json:"properties,omitempty"`
}

var inspectInterval = core.NewInterval(0.001, math.Inf(1))

// extractMaterialInfo describes the parameters that matter for the material's kind
func extractMaterialInfo(mat material.Material) map[string]any {
	properties := make(map[string]any)
	switch mat.Kind {
	case material.KindLambertian, material.KindMetal:
		properties["albedo"] = vecArray(mat.Albedo)
		properties["color"] = fmt.Sprintf("#%02x%02x%02x",
			int(min(mat.Albedo.X, 1)*255), int(min(mat.Albedo.Y, 1)*255), int(min(mat.Albedo.Z, 1)*255))
		if mat.Kind == material.KindMetal {
			properties["fuzz"] = mat.Fuzz
		}
	case material.KindDielectric:
		properties["refractionIndex"] = mat.RefractionIndex
	}
	return properties
}

// handleInspect casts a ray through the center of pixel (x, y) and reports
// the nearest surface it hits
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("scene")
	if name == "" {
		name = defaultScene
	}

	width, err := parseIntParam(q, "width", 0, minDimension, maxDimension)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	height, err := parseIntParam(q, "height", 0, minDimension, maxDimension)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	seed, err := parseInt64Param(q, "seed", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sc, err := scene.Create(name, seed, geometry.CameraConfig{Width: width, Height: height})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	x, err := parseIntParam(q, "x", -1, 0, sc.Width()-1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	y, err := parseIntParam(q, "y", -1, 0, sc.Height()-1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if x < 0 || y < 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("x and y are required"))
		return
	}

	writeJSON(w, http.StatusOK, inspect(sc, x, y))
}

func inspect(sc *scene.Scene, x, y int) InspectResponse {
	origin := sc.Camera.Center()
	ray := core.NewRay(origin, sc.Camera.PixelCenter(x, y).Subtract(origin).Normalize())

	hit, ok := sc.World.Hit(ray, inspectInterval)
	if !ok {
		return InspectResponse{Hit: false}
	}
	return InspectResponse{
		Hit:          true,
		MaterialType: hit.Material.Kind.String(),
		Point:        vecArray(hit.Point),
		Normal:       vecArray(hit.Normal),
		Distance:     hit.T,
		FrontFace:    hit.FrontFace,
		Properties:   extractMaterialInfo(hit.Material),
	}
}

func vecArray(v core.Vec3) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}
