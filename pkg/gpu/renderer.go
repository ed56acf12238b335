package gpu

import (
	"context"
	"fmt"
	"time"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/scene"
)

// Config controls wavefront batching
type Config struct {
	BatchSize int   // Samples per pixel traced per batch, <= 0 picks the largest that fits
	Seed      int64 // Seeds camera jitter and the per-invocation kernel RNG
}

// Renderer renders scenes on a Device. Each batch traces BatchSize samples of
// every pixel at once: camera rays are generated on the host, uploaded, and
// advanced by MaxDepth trace passes ping-ponging between two ray buffers.
type Renderer struct {
	device Device
	config Config
	kernel Kernel
}

// NewRenderer creates a renderer on device
func NewRenderer(device Device, config Config) *Renderer {
	return &Renderer{device: device, config: config, kernel: TraceKernel()}
}

// PlanBatch returns the samples per pixel of each batch for a width·height
// image at spp samples. A batch whose ray buffer would exceed the device
// limit is rejected with ErrBufferTooLarge.
func PlanBatch(width, height, spp, requested int, limits Limits) (int, error) {
	pixels := uint64(width) * uint64(height)
	if pixels == 0 || spp <= 0 {
		return 0, fmt.Errorf("plan batch: empty render %dx%d at %d spp", width, height, spp)
	}
	maxBatch := limits.MaxStorageBufferSize / (pixels * RayRecordSize)

	batch := uint64(requested)
	if requested <= 0 {
		batch = min(uint64(spp), maxBatch)
		if batch == 0 {
			return 0, fmt.Errorf("plan batch: one sample of %dx%d needs %d bytes: %w",
				width, height, pixels*RayRecordSize, ErrBufferTooLarge)
		}
	}
	batch = min(batch, uint64(spp))
	if batch > maxBatch {
		return 0, fmt.Errorf("plan batch: %d samples of %dx%d need %d bytes: %w",
			batch, width, height, batch*pixels*RayRecordSize, ErrBufferTooLarge)
	}
	return int(batch), nil
}

// Batches splits spp into batch-sized chunks; the last may be smaller
func Batches(spp, batch int) []int {
	var sizes []int
	for done := 0; done < spp; done += batch {
		sizes = append(sizes, min(batch, spp-done))
	}
	return sizes
}

type wavefront struct {
	device   Device
	pipeline Pipeline
	spheres  Buffer
	uniforms Buffer
	rays     [2]Buffer
	staging  Buffer
}

func (w *wavefront) release() {
	for _, b := range []Buffer{w.spheres, w.uniforms, w.rays[0], w.rays[1], w.staging} {
		if b != nil {
			b.Release()
		}
	}
	if w.pipeline != nil {
		w.pipeline.Release()
	}
}

func newWavefront(device Device, kernel Kernel, sphereData []byte, maxRays int) (*wavefront, error) {
	w := &wavefront{device: device}
	var err error
	if w.pipeline, err = device.CreatePipeline(kernel); err != nil {
		w.release()
		return nil, err
	}
	if w.spheres, err = device.CreateBuffer("spheres", uint64(len(sphereData)), UsageStorage|UsageCopyDst); err != nil {
		w.release()
		return nil, err
	}
	if err = device.WriteBuffer(w.spheres, 0, sphereData); err != nil {
		w.release()
		return nil, err
	}
	if w.uniforms, err = device.CreateBuffer("uniforms", UniformsSize, UsageUniform|UsageCopyDst); err != nil {
		w.release()
		return nil, err
	}
	raySize := uint64(maxRays) * RayRecordSize
	for i := range w.rays {
		label := fmt.Sprintf("rays_%d", i)
		if w.rays[i], err = device.CreateBuffer(label, raySize, UsageStorage|UsageCopyDst|UsageCopySrc); err != nil {
			w.release()
			return nil, err
		}
	}
	if w.staging, err = device.CreateBuffer("staging", raySize, UsageMapRead|UsageCopyDst); err != nil {
		w.release()
		return nil, err
	}
	return w, nil
}

// Render traces every batch and returns the per-pixel average of all
// samples. Pixel p accumulates the rays at indices p·batch .. p·batch+batch-1.
func (r *Renderer) Render(ctx context.Context, s *scene.Scene) (*core.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("gpu render %s: %w", s.Name, err)
	}

	cfg := s.CameraConfig
	width, height := cfg.Width, cfg.Height
	pixels := width * height
	batch, err := PlanBatch(width, height, cfg.SamplesPerPixel, r.config.BatchSize, r.device.Limits())
	if err != nil {
		return nil, fmt.Errorf("gpu render %s: %w", s.Name, err)
	}
	batches := Batches(cfg.SamplesPerPixel, batch)

	sphereCount := len(s.World.Spheres())
	w, err := newWavefront(r.device, r.kernel, EncodeSpheres(s.World), pixels*batch)
	if err != nil {
		return nil, fmt.Errorf("gpu render %s: %w", s.Name, err)
	}
	defer w.release()

	log := core.Logger()
	log.Info("gpu render started",
		"scene", s.Name, "width", width, "height", height,
		"spp", cfg.SamplesPerPixel, "depth", cfg.MaxDepth,
		"device", r.device.Info().Name, "batch", batch, "batches", len(batches))
	start := time.Now()

	seed := uint32(r.config.Seed) ^ uint32(r.config.Seed>>32)
	accum := make([]core.Vec3, pixels)
	upload := make([]byte, pixels*batch*RayRecordSize)
	for batchIndex, n := range batches {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("gpu render %s: batch %d: %w", s.Name, batchIndex, err)
		}
		batchStart := time.Now()

		rayCount := pixels * n
		sampler := core.NewSeededSampler(batchSeed(r.config.Seed, batchIndex))
		s.Camera.GenerateRays(n, sampler, func(index int, ray core.Ray) {
			PutRayRecord(upload, index, NewRayRecord(ray, cfg.MaxDepth))
		})
		size := uint64(rayCount) * RayRecordSize
		if err := r.device.WriteBuffer(w.rays[0], 0, upload[:size]); err != nil {
			return nil, fmt.Errorf("gpu render %s: upload batch %d: %w", s.Name, batchIndex, err)
		}

		final, err := r.trace(ctx, w, uint32(batchIndex), seed, uint32(sphereCount), uint32(rayCount), cfg.MaxDepth)
		if err != nil {
			return nil, fmt.Errorf("gpu render %s: batch %d: %w", s.Name, batchIndex, err)
		}

		if err := r.device.CopyBuffer(final, w.staging, size); err != nil {
			return nil, fmt.Errorf("gpu render %s: readback batch %d: %w", s.Name, batchIndex, err)
		}
		data, err := r.device.ReadBuffer(ctx, w.staging, size)
		if err != nil {
			return nil, fmt.Errorf("gpu render %s: readback batch %d: %w", s.Name, batchIndex, err)
		}
		for i := range rayCount {
			pixel := i / n
			accum[pixel] = accum[pixel].Add(GetRayRecord(data, i).ColorVec())
		}

		log.Debug("batch finished", "batch", batchIndex+1, "total", len(batches),
			"samples", n, "elapsed", time.Since(batchStart))
	}

	img := core.NewImage(width, height)
	scale := 1.0 / float64(cfg.SamplesPerPixel)
	for i, c := range accum {
		img.Pixels[i] = c.Multiply(scale)
	}

	log.Info("gpu render finished", "scene", s.Name, "elapsed", time.Since(start))
	return img, nil
}

// trace runs depth passes over the rays in w.rays[0] and returns the buffer
// holding the result. Pass k reads rays[k%2] and writes rays[(k+1)%2].
func (r *Renderer) trace(ctx context.Context, w *wavefront, passIndex, seed, sphereCount, rayCount uint32, depth int) (Buffer, error) {
	depth = max(depth, 0)
	limits := r.device.Limits()
	groupsX, groupsY, rowStride := DispatchGrid(rayCount, r.kernel.WorkgroupSize, limits.MaxWorkgroupsPerDimension)
	if groupsY > limits.MaxWorkgroupsPerDimension {
		return nil, fmt.Errorf("%d rays need %dx%d workgroups: %w", rayCount, groupsX, groupsY, ErrBufferTooLarge)
	}

	for bounce := range depth {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		u := Uniforms{
			PassIndex:   passIndex,
			BounceIndex: uint32(bounce),
			SphereCount: sphereCount,
			RayCount:    rayCount,
			Seed:        seed,
			RowStride:   rowStride,
		}
		if err := r.device.WriteBuffer(w.uniforms, 0, u.Bytes()); err != nil {
			return nil, fmt.Errorf("pass %d: %w", bounce, err)
		}
		in, out := w.rays[bounce%2], w.rays[(bounce+1)%2]
		bindings := []Binding{
			{Index: bindingUniforms, Buffer: w.uniforms},
			{Index: bindingSpheres, Buffer: w.spheres},
			{Index: bindingRaysIn, Buffer: in},
			{Index: bindingRaysOut, Buffer: out},
		}
		if err := r.device.Dispatch(w.pipeline, bindings, groupsX, groupsY); err != nil {
			return nil, fmt.Errorf("pass %d: %w", bounce, err)
		}
		core.Logger().Debug("trace pass finished", "batch", passIndex, "bounce", bounce, "rays", rayCount)
	}
	return w.rays[depth%2], nil
}

// batchSeed mixes the base seed with the batch index
func batchSeed(seed int64, batch int) int64 {
	return seed*2862933555777941757 + int64(batch)*3037000493 + 7
}
