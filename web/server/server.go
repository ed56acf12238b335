package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/gpu"
	"github.com/df07/go-pathtracer/pkg/scene"
)

// Request limits
const (
	minDimension = 1
	maxDimension = 2000
	maxSamples   = 10000
	minDepth     = 0
	maxDepth     = 1000
)

// Server handles web requests for the path tracer
type Server struct {
	port    int
	workers int // CPU workers and host device goroutines, 0 = NumCPU
	mux     *http.ServeMux
}

// NewServer creates a new web server
func NewServer(port, workers int) *Server {
	s := &Server{port: port, workers: workers, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/scenes", s.handleScenes)
	s.mux.HandleFunc("GET /api/scene-config", s.handleSceneConfig)
	s.mux.HandleFunc("GET /api/render", s.handleRender)
	s.mux.HandleFunc("GET /api/inspect", s.handleInspect)
	return s
}

// Handler returns the routes served by Start
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the web server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	core.Logger().Info("starting web server", "url", fmt.Sprintf("http://localhost%s", addr))
	return http.ListenAndServe(addr, s.mux)
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ScenesResponse lists what a render request can choose from
type ScenesResponse struct {
	Scenes   []string `json:"scenes"`
	Backends []string `json:"backends"`
	Devices  []string `json:"devices"`
}

func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ScenesResponse{
		Scenes:   scene.Names(),
		Backends: []string{backendCPU, backendGPU},
		Devices:  append([]string{gpu.DeviceAuto}, gpu.Devices()...),
	})
}

// handleSceneConfig returns the default camera of a scene and the limits
// a render request is validated against
func (s *Server) handleSceneConfig(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("scene")
	if name == "" {
		name = defaultScene
	}

	sc, err := scene.Create(name, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cfg := sc.CameraConfig
	writeJSON(w, http.StatusOK, map[string]any{
		"scene": name,
		"defaults": map[string]any{
			"width":           cfg.Width,
			"height":          cfg.Height,
			"samplesPerPixel": cfg.SamplesPerPixel,
			"maxDepth":        cfg.MaxDepth,
			"vfov":            cfg.VFov,
			"defocusAngle":    cfg.DefocusAngle,
			"focusDist":       cfg.FocusDist,
			"spheres":         sc.World.Len(),
		},
		"limits": map[string]any{
			"width":  map[string]int{"min": minDimension, "max": maxDimension},
			"height": map[string]int{"min": minDimension, "max": maxDimension},
			"spp":    map[string]int{"min": 1, "max": maxSamples},
			"depth":  map[string]int{"min": minDepth, "max": maxDepth},
		},
	})
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

func parseInt64Param(values url.Values, key string, defaultValue int64) (int64, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		core.Logger().Warn("write response failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
