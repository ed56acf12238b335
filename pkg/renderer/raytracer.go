package renderer

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/material"
	"github.com/df07/go-pathtracer/pkg/scene"
)

// hitInterval excludes hits closer than 0.001 to avoid re-hitting the surface
// a ray just left
var hitInterval = core.NewInterval(0.001, math.Inf(1))

var (
	skyWhite = core.NewVec3(1.0, 1.0, 1.0)
	skyBlue  = core.NewVec3(0.5, 0.7, 1.0)
)

// Background returns the sky gradient seen by a ray that escapes the scene
func Background(ray core.Ray) core.Vec3 {
	unitDirection := ray.Direction.Normalize()

	// Map y from [-1,1] to [0,1]
	t := 0.5 * (unitDirection.Y + 1.0)

	return skyWhite.Multiply(1.0 - t).Add(skyBlue.Multiply(t))
}

// RayColor returns the radiance carried back along ray, following at most
// depth bounces. Depth 0 is black.
func RayColor(ray core.Ray, world *geometry.World, depth int, sampler core.Sampler) core.Vec3 {
	if depth <= 0 {
		return core.Vec3{}
	}

	hit, isHit := world.Hit(ray, hitInterval)
	if !isHit {
		return Background(ray)
	}

	scatter := material.Scatter(ray, hit, sampler)
	return scatter.Attenuation.MultiplyVec(RayColor(scatter.Scattered, world, depth-1, sampler))
}

// Config controls CPU scheduling
type Config struct {
	Workers     int   // Pool size, <= 0 means runtime.NumCPU()
	RowsPerTask int   // Rows per task, <= 0 means height / Workers
	Seed        int64 // Base seed; each task derives its own generator from it
}

// DefaultConfig returns sensible default values
func DefaultConfig() Config {
	return Config{
		Workers: runtime.NumCPU(),
		Seed:    42,
	}
}

// Raytracer renders a scene on the CPU with a fixed pool of workers
type Raytracer struct {
	scene  *scene.Scene
	config Config
}

// NewRaytracer creates a new raytracer
func NewRaytracer(s *scene.Scene, config Config) *Raytracer {
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.RowsPerTask <= 0 {
		config.RowsPerTask = max(1, s.Height()/config.Workers)
	}
	return &Raytracer{scene: s, config: config}
}

// Config returns the resolved scheduling configuration
func (rt *Raytracer) Config() Config {
	return rt.config
}

// RenderTask renders every row of task. Each task samples from its own
// generator seeded by the task's first row, so results do not depend on
// which worker runs the task or when.
func (rt *Raytracer) RenderTask(task RenderTask) TaskResult {
	camera := rt.scene.Camera
	cfg := rt.scene.CameraConfig
	sampler := core.NewSeededSampler(taskSeed(rt.config.Seed, task.StartRow))

	result := TaskResult{Task: task, Rows: make([]RowResult, 0, task.EndRow-task.StartRow)}
	for j := task.StartRow; j < task.EndRow; j++ {
		row := make([]core.Vec3, cfg.Width)
		for i := range row {
			var pixel core.Vec3
			for range cfg.SamplesPerPixel {
				ray := camera.GetRay(i, j, sampler)
				pixel = pixel.Add(RayColor(ray, rt.scene.World, cfg.MaxDepth, sampler))
			}
			row[i] = pixel.Multiply(camera.PixelSampleScale())
		}
		result.Rows = append(result.Rows, RowResult{Row: j, Pixels: row})
	}
	return result
}

// Render blocks until every row has been rendered and returns the averaged
// linear image. Rows are reassembled by index, so the output is independent
// of task completion order.
func (rt *Raytracer) Render(ctx context.Context) (*core.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("render %s: %w", rt.scene.Name, err)
	}

	width, height := rt.scene.Width(), rt.scene.Height()
	tasks := PartitionRows(height, rt.config.RowsPerTask)

	log := core.Logger()
	log.Info("cpu render started",
		"scene", rt.scene.Name, "width", width, "height", height,
		"spp", rt.scene.CameraConfig.SamplesPerPixel, "depth", rt.scene.CameraConfig.MaxDepth,
		"workers", rt.config.Workers, "tasks", len(tasks))
	start := time.Now()

	img, err := RunTasks(ctx, rt, tasks, rt.config.Workers, width, height)
	if err != nil {
		log.Info("cpu render cancelled", "scene", rt.scene.Name, "elapsed", time.Since(start))
		return nil, fmt.Errorf("render %s: %w", rt.scene.Name, err)
	}

	log.Info("cpu render finished", "scene", rt.scene.Name, "elapsed", time.Since(start))
	return img, nil
}

// cancelAwareRenderer skips tasks picked up after ctx is done
type cancelAwareRenderer struct {
	ctx      context.Context
	renderer TaskRenderer
}

func (c cancelAwareRenderer) RenderTask(task RenderTask) TaskResult {
	if c.ctx.Err() != nil {
		return TaskResult{Task: task}
	}
	return c.renderer.RenderTask(task)
}

// RunTasks executes tasks on a pool of workers and reassembles the rows they
// report into an image. Exactly len(tasks) results are drained even when ctx
// is cancelled; tasks not yet started are then skipped and ctx's error is
// returned instead of a partial image.
func RunTasks(ctx context.Context, renderer TaskRenderer, tasks []RenderTask, workers, width, height int) (*core.Image, error) {
	pool := NewWorkerPool(cancelAwareRenderer{ctx: ctx, renderer: renderer}, workers, len(tasks))
	pool.Start()
	for _, task := range tasks {
		pool.SubmitTask(task)
	}

	log := core.Logger()
	rows := make([][]core.Vec3, height)
	for done := range len(tasks) {
		result, ok := pool.GetResult()
		if !ok {
			break
		}
		for _, row := range result.Rows {
			rows[row.Row] = row.Pixels
		}
		log.Debug("task finished", "start_row", result.Task.StartRow, "end_row", result.Task.EndRow,
			"done", done+1, "total", len(tasks))
	}
	pool.Stop()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := core.NewImage(width, height)
	for j, row := range rows {
		copy(img.Pixels[j*width:(j+1)*width], row)
	}
	return img, nil
}

// taskSeed mixes the base seed with the task's first row
func taskSeed(seed int64, startRow int) int64 {
	return seed*6364136223846793005 + int64(startRow)*1442695040888963407 + 1
}
