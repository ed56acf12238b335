package gpu

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/renderer"
	"github.com/df07/go-pathtracer/pkg/scene"
)

func TestPlanBatch(t *testing.T) {
	limits := Limits{MaxStorageBufferSize: 100 * 48 * 10, MaxWorkgroupsPerDimension: 65535}

	tests := []struct {
		name      string
		spp       int
		requested int
		want      int
		wantErr   error
	}{
		{"auto picks largest fitting batch", 100, 0, 10, nil},
		{"auto capped by spp", 4, 0, 4, nil},
		{"requested fits", 100, 7, 7, nil},
		{"requested capped by spp", 3, 7, 3, nil},
		{"requested too large", 100, 11, 0, ErrBufferTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlanBatch(10, 10, tt.spp, tt.requested, limits)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("PlanBatch: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected batch %d, got %d", tt.want, got)
			}
		})
	}

	t.Run("single sample too large", func(t *testing.T) {
		_, err := PlanBatch(1000, 1000, 1, 0, limits)
		if !errors.Is(err, ErrBufferTooLarge) {
			t.Errorf("Expected ErrBufferTooLarge, got %v", err)
		}
	})
}

func TestBatches(t *testing.T) {
	tests := []struct {
		spp, batch int
		want       []int
	}{
		{10, 10, []int{10}},
		{10, 4, []int{4, 4, 2}},
		{1, 8, []int{1}},
		{9, 3, []int{3, 3, 3}},
	}
	for _, tt := range tests {
		got := Batches(tt.spp, tt.batch)
		sum := 0
		for _, n := range got {
			sum += n
		}
		if len(got) != len(tt.want) || sum != tt.spp {
			t.Errorf("Batches(%d, %d) = %v, want %v", tt.spp, tt.batch, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Batches(%d, %d) = %v, want %v", tt.spp, tt.batch, got, tt.want)
				break
			}
		}
	}
}

func smallScene(t *testing.T, spp, depth int) *scene.Scene {
	t.Helper()
	s, err := scene.Create("three-spheres", 42, geometry.CameraConfig{
		Width: 16, Height: 9, SamplesPerPixel: spp, MaxDepth: depth,
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func relativeDiff(a, b float64) float64 {
	return math.Abs(a-b) / math.Max(math.Abs(b), 1e-9)
}

func TestRenderer_MatchesCPU(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping convergence comparison in short mode")
	}
	s := smallScene(t, 600, 10)

	cpu, err := renderer.NewRaytracer(s, renderer.Config{Workers: 4, Seed: 1}).Render(context.Background())
	if err != nil {
		t.Fatalf("CPU render: %v", err)
	}

	dev := NewHostDevice(4)
	defer dev.Release()
	gpuImg, err := NewRenderer(dev, Config{BatchSize: 64, Seed: 2}).Render(context.Background(), s)
	if err != nil {
		t.Fatalf("GPU render: %v", err)
	}

	cpuMean, gpuMean := cpu.Mean(), gpuImg.Mean()
	for i, pair := range [][2]float64{{gpuMean.X, cpuMean.X}, {gpuMean.Y, cpuMean.Y}, {gpuMean.Z, cpuMean.Z}} {
		if d := relativeDiff(pair[0], pair[1]); d > 0.02 {
			t.Errorf("Channel %d: GPU mean %.4f vs CPU mean %.4f (%.1f%% apart)", i, pair[0], pair[1], d*100)
		}
	}
}

func TestRenderer_RemainderBatch(t *testing.T) {
	// 10 spp in batches of 4 traces 4+4+2 samples. A very narrow view of an
	// empty scene sees the horizon color in every sample, so each pixel is
	// that color only if every sample is counted exactly once.
	s := scene.New("horizon", geometry.CameraConfig{
		Width: 4, Height: 3, SamplesPerPixel: 10, MaxDepth: 3,
		VFov: 0.01, LookFrom: core.NewVec3(0, 0, 0), LookAt: core.NewVec3(0, 0, -1), VUp: core.NewVec3(0, 1, 0),
	}, geometry.NewWorld())

	dev := NewHostDevice(2)
	defer dev.Release()
	img, err := NewRenderer(dev, Config{BatchSize: 4, Seed: 3}).Render(context.Background(), s)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	horizon := core.NewVec3(0.75, 0.85, 1.0)
	for i, p := range img.Pixels {
		if p.Subtract(horizon).Length() > 1e-3 {
			t.Errorf("Pixel %d: expected %v, got %v", i, horizon, p)
		}
	}
}

// directionKernel replaces tracing with writing each live ray's own
// direction into its color, so a pixel's average points through that pixel
func directionKernel() Kernel {
	k := TraceKernel()
	k.Name = "direction"
	k.Host = func(bindings [][]byte) (func(gidX, gidY uint32), error) {
		u, err := DecodeUniforms(bindings[bindingUniforms])
		if err != nil {
			return nil, err
		}
		in, out := bindings[bindingRaysIn], bindings[bindingRaysOut]
		return func(gidX, gidY uint32) {
			id := gidX + gidY*u.RowStride
			if id >= u.RayCount {
				return
			}
			ray := GetRayRecord(in, int(id))
			if ray.BouncesLeft > 0 {
				ray.Color = ray.Direction
				ray.BouncesLeft = 0
			}
			PutRayRecord(out, int(id), ray)
		}, nil
	}
	return k
}

func TestRenderer_SamplesAccumulateIntoTheirPixel(t *testing.T) {
	s := scene.New("directions", geometry.CameraConfig{
		Width: 8, Height: 6, SamplesPerPixel: 40, MaxDepth: 2,
		VFov: 60, LookFrom: core.NewVec3(0, 0, 0), LookAt: core.NewVec3(0, 0, -1), VUp: core.NewVec3(0, 1, 0),
	}, geometry.NewWorld())

	dev := NewHostDevice(2)
	defer dev.Release()
	r := NewRenderer(dev, Config{BatchSize: 16, Seed: 9})
	r.kernel = directionKernel()
	img, err := r.Render(context.Background(), s)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	centers := make([]core.Vec3, len(img.Pixels))
	for y := range s.Height() {
		for x := range s.Width() {
			centers[y*s.Width()+x] = s.Camera.PixelCenter(x, y).Subtract(s.Camera.Center()).Normalize()
		}
	}

	// Jitter keeps each average well inside its pixel, so the nearest pixel
	// center must be the pixel's own
	for p, c := range img.Pixels {
		got := c.Normalize()
		nearest := 0
		for q, center := range centers {
			if got.Subtract(center).Length() < got.Subtract(centers[nearest]).Length() {
				nearest = q
			}
		}
		if nearest != p {
			t.Errorf("Pixel %d (x=%d, y=%d) holds samples aimed at pixel %d", p, p%s.Width(), p/s.Width(), nearest)
		}
	}
}

func TestRenderer_ZeroDepthIsBlack(t *testing.T) {
	s := smallScene(t, 4, 0)
	// MergeCameraConfig ignores zero overrides, so force the depth directly
	s.CameraConfig.MaxDepth = 0

	dev := NewHostDevice(2)
	defer dev.Release()
	img, err := NewRenderer(dev, Config{Seed: 1}).Render(context.Background(), s)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if m := img.Mean(); m != (core.Vec3{}) {
		t.Errorf("Expected black image, got mean %v", m)
	}
}

func TestRenderer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dev := NewHostDevice(1)
	defer dev.Release()
	_, err := NewRenderer(dev, Config{}).Render(ctx, smallScene(t, 4, 4))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRenderer_WGPU(t *testing.T) {
	if os.Getenv("PATHTRACER_GPU_TESTS") != "1" {
		t.Skip("set PATHTRACER_GPU_TESTS=1 to run on a real adapter")
	}
	dev, err := OpenWGPU()
	if err != nil {
		t.Skipf("no WebGPU device: %v", err)
	}
	defer dev.Release()

	s := smallScene(t, 200, 10)
	img, err := NewRenderer(dev, Config{BatchSize: 50, Seed: 5}).Render(context.Background(), s)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	host := NewHostDevice(0)
	defer host.Release()
	ref, err := NewRenderer(host, Config{BatchSize: 50, Seed: 5}).Render(context.Background(), s)
	if err != nil {
		t.Fatalf("host Render: %v", err)
	}

	gm, hm := img.Mean(), ref.Mean()
	if relativeDiff(gm.X, hm.X) > 0.03 || relativeDiff(gm.Y, hm.Y) > 0.03 || relativeDiff(gm.Z, hm.Z) > 0.03 {
		t.Errorf("WebGPU mean %v differs from host mean %v", gm, hm)
	}
}
