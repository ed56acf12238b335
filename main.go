package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/df07/go-pathtracer/pkg/config"
	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/gpu"
	"github.com/df07/go-pathtracer/pkg/output"
	"github.com/df07/go-pathtracer/pkg/renderer"
	"github.com/df07/go-pathtracer/pkg/scene"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.LookupEnv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one render and returns the process exit code
func run(ctx context.Context, args []string, lookupEnv func(string) (string, bool), stdout, stderr io.Writer) int {
	cfg, err := config.Load(args, lookupEnv)
	if errors.Is(err, flag.ErrHelp) {
		config.Usage(stdout)
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "Available scenes:")
		for _, name := range scene.Names() {
			fmt.Fprintf(stdout, "  %s\n", name)
		}
		fmt.Fprintf(stdout, "GPU devices (priority order): %v\n", gpu.Devices())
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	core.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	log := core.Logger()

	s, err := createScene(cfg)
	if err != nil {
		log.Error("scene setup failed", "err", err)
		return 1
	}

	start := time.Now()
	img, err := render(ctx, cfg, s)
	if err != nil {
		log.Error("render failed", "backend", cfg.Backend, "err", err)
		return 1
	}
	log.Info("render complete", "backend", cfg.Backend, "scene", s.Name,
		"width", img.Width, "height", img.Height, "elapsed", time.Since(start))

	if err := writeOutputs(cfg, img); err != nil {
		log.Error("writing output failed", "err", err)
		return 1
	}
	return 0
}

// createScene loads the scene file when one is given, otherwise the named
// built-in scene, and applies the image overrides from cfg
func createScene(cfg config.Config) (*scene.Scene, error) {
	if cfg.SceneFile != "" {
		s, err := scene.LoadFile(cfg.SceneFile)
		if err != nil {
			return nil, err
		}
		return s.WithOverrides(cfg.CameraOverrides()), nil
	}
	return scene.Create(cfg.Scene, cfg.Seed, cfg.CameraOverrides())
}

func render(ctx context.Context, cfg config.Config, s *scene.Scene) (*core.Image, error) {
	switch cfg.Backend {
	case config.BackendGPU:
		dev, err := gpu.OpenDevice(cfg.Device, cfg.Workers)
		if err != nil {
			return nil, err
		}
		defer dev.Release()
		return gpu.NewRenderer(dev, gpu.Config{BatchSize: cfg.BatchSize, Seed: cfg.Seed}).Render(ctx, s)
	default:
		rt := renderer.NewRaytracer(s, renderer.Config{
			Workers:     cfg.Workers,
			RowsPerTask: cfg.RowsPerTask,
			Seed:        cfg.Seed,
		})
		return rt.Render(ctx)
	}
}

// writeOutputs writes the PPM and, when requested, the PNG preview. Parent
// directories are created as needed.
func writeOutputs(cfg config.Config, img *core.Image) error {
	if err := writeFile(cfg.Output, func(w io.Writer) error {
		return output.WritePPM(w, img, cfg.Gamma)
	}); err != nil {
		return err
	}
	core.Logger().Info("image saved", "path", cfg.Output)

	if cfg.Preview == "" {
		return nil
	}
	if err := writeFile(cfg.Preview, func(w io.Writer) error {
		return output.WritePreviewPNG(w, img, cfg.PreviewWidth, cfg.Gamma)
	}); err != nil {
		return err
	}
	core.Logger().Info("preview saved", "path", cfg.Preview)
	return nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
