package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/gpu"
	"github.com/df07/go-pathtracer/pkg/output"
	"github.com/df07/go-pathtracer/pkg/renderer"
	"github.com/df07/go-pathtracer/pkg/scene"
)

const (
	backendCPU   = "cpu"
	backendGPU   = "gpu"
	formatPNG    = "png"
	formatPPM    = "ppm"
	defaultScene = "three-spheres"
)

// RenderRequest represents a render request from the client. Zero image
// fields keep the scene's own values, as does a MaxDepth of -1.
type RenderRequest struct {
	Scene     string
	Backend   string // cpu or gpu
	Device    string // auto, wgpu or host
	Width     int
	Height    int
	Samples   int
	MaxDepth  int
	BatchSize int
	Seed      int64
	Format    string // png or ppm
	Gamma     bool
}

// parseRenderRequest parses request parameters
func (s *Server) parseRenderRequest(r *http.Request) (*RenderRequest, error) {
	q := r.URL.Query()
	req := &RenderRequest{
		Scene:   q.Get("scene"),
		Backend: q.Get("backend"),
		Device:  q.Get("device"),
		Format:  q.Get("format"),
		Gamma:   q.Get("gamma") != "false",
	}
	if req.Scene == "" {
		req.Scene = defaultScene
	}
	if req.Backend == "" {
		req.Backend = backendCPU
	}
	if req.Backend != backendCPU && req.Backend != backendGPU {
		return nil, fmt.Errorf("backend must be %s or %s, got: %s", backendCPU, backendGPU, req.Backend)
	}
	if req.Device == "" {
		req.Device = gpu.DeviceAuto
	}
	if req.Device != gpu.DeviceAuto && !slices.Contains(gpu.Devices(), req.Device) {
		return nil, fmt.Errorf("device must be one of %v, got: %s", append([]string{gpu.DeviceAuto}, gpu.Devices()...), req.Device)
	}
	if req.Format == "" {
		req.Format = formatPNG
	}
	if req.Format != formatPNG && req.Format != formatPPM {
		return nil, fmt.Errorf("format must be %s or %s, got: %s", formatPNG, formatPPM, req.Format)
	}

	var err error
	if req.Width, err = parseIntParam(q, "width", 0, minDimension, maxDimension); err != nil {
		return nil, err
	}
	if req.Height, err = parseIntParam(q, "height", 0, minDimension, maxDimension); err != nil {
		return nil, err
	}
	if req.Samples, err = parseIntParam(q, "spp", 0, 1, maxSamples); err != nil {
		return nil, err
	}
	if req.MaxDepth, err = parseIntParam(q, "depth", -1, minDepth, maxDepth); err != nil {
		return nil, err
	}
	if req.BatchSize, err = parseIntParam(q, "batch", 0, 1, maxSamples); err != nil {
		return nil, err
	}
	if req.Seed, err = parseInt64Param(q, "seed", time.Now().UnixNano()); err != nil {
		return nil, err
	}
	return req, nil
}

// handleRender renders a scene to completion and responds with the image.
// The render is abandoned when the client disconnects.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRenderRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sc, err := scene.Create(req.Scene, req.Seed, geometry.CameraConfig{
		Width:           req.Width,
		Height:          req.Height,
		SamplesPerPixel: req.Samples,
		MaxDepth:        max(req.MaxDepth, 0),
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.MaxDepth == 0 {
		// Overrides skip zero fields; an explicit depth of 0 renders black
		cfg := sc.CameraConfig
		cfg.MaxDepth = 0
		sc = scene.New(sc.Name, cfg, sc.World)
	}

	log := core.Logger()
	start := time.Now()
	img, err := s.render(r.Context(), req, sc)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, context.Canceled):
			log.Info("render abandoned by client", "scene", req.Scene)
			return
		case errors.Is(err, gpu.ErrBufferTooLarge), errors.Is(err, gpu.ErrUnknownDevice):
			status = http.StatusBadRequest
		case errors.Is(err, gpu.ErrDeviceUnavailable):
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err)
		return
	}
	elapsed := time.Since(start)
	log.Info("web render complete", "scene", req.Scene, "backend", req.Backend,
		"width", img.Width, "height", img.Height, "elapsed", elapsed)

	var buf bytes.Buffer
	contentType := "image/png"
	if req.Format == formatPPM {
		contentType = "image/x-portable-pixmap"
		err = output.WritePPM(&buf, img, req.Gamma)
	} else {
		err = output.WritePreviewPNG(&buf, img, 0, req.Gamma)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Render-Elapsed-Ms", strconv.FormatInt(elapsed.Milliseconds(), 10))
	w.Header().Set("X-Render-Seed", strconv.FormatInt(req.Seed, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Warn("write image failed", "err", err)
	}
}

func (s *Server) render(ctx context.Context, req *RenderRequest, sc *scene.Scene) (*core.Image, error) {
	if req.Backend == backendGPU {
		dev, err := gpu.OpenDevice(req.Device, s.workers)
		if err != nil {
			return nil, err
		}
		defer dev.Release()
		return gpu.NewRenderer(dev, gpu.Config{BatchSize: req.BatchSize, Seed: req.Seed}).Render(ctx, sc)
	}
	return renderer.NewRaytracer(sc, renderer.Config{Workers: s.workers, Seed: req.Seed}).Render(ctx)
}
