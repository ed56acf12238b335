// Package config resolves the renderer's settings from command line flags,
// PATHTRACER_* environment variables and an optional .env file, in that
// order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"

	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/gpu"
)

// ErrInvalid is returned when a setting is out of range or unknown
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix prefixes the environment variable of every flag
const EnvPrefix = "PATHTRACER_"

// Backends
const (
	BackendCPU = "cpu"
	BackendGPU = "gpu"
)

// Config holds every setting of a render run
type Config struct {
	Backend   string // cpu or gpu
	Device    string // auto, wgpu or host; gpu backend only
	Scene     string // built-in scene name
	SceneFile string // JSON scene, takes precedence over Scene

	// Zero keeps the scene's own value
	Width           int
	Height          int
	SamplesPerPixel int
	MaxDepth        int

	Workers     int // CPU workers and host device goroutines, 0 = NumCPU
	RowsPerTask int // 0 = height / workers
	BatchSize   int // GPU samples per batch, 0 = largest that fits
	Seed        int64

	Output       string // PPM path
	Preview      string // optional PNG path
	PreviewWidth int
	Gamma        bool

	LogLevel slog.Level
	EnvFile  string
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		Backend:      BackendCPU,
		Device:       gpu.DeviceAuto,
		Scene:        "three-spheres",
		Seed:         42,
		Output:       "image.ppm",
		PreviewWidth: 320,
		Gamma:        true,
		LogLevel:     slog.LevelInfo,
		EnvFile:      ".env",
	}
}

// EnvName returns the environment variable that sets flag name
func EnvName(name string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

type levelValue struct{ level *slog.Level }

func (v levelValue) String() string {
	if v.level == nil {
		return ""
	}
	return strings.ToLower(v.level.String())
}

func (v levelValue) Set(s string) error { return v.level.UnmarshalText([]byte(s)) }

func newFlagSet(cfg *Config, output io.Writer) *flag.FlagSet {
	flags := flag.NewFlagSet("pathtracer", flag.ContinueOnError)
	flags.SetOutput(output)

	flags.StringVar(&cfg.Backend, "backend", cfg.Backend, "Renderer backend: 'cpu' or 'gpu'")
	flags.StringVar(&cfg.Device, "device", cfg.Device, "GPU device: 'auto', 'wgpu' or 'host'")
	flags.StringVar(&cfg.Scene, "scene", cfg.Scene, "Built-in scene name")
	flags.StringVar(&cfg.SceneFile, "scene-file", cfg.SceneFile, "JSON scene file (overrides -scene)")
	flags.IntVar(&cfg.Width, "width", cfg.Width, "Image width, 0 keeps the scene's")
	flags.IntVar(&cfg.Height, "height", cfg.Height, "Image height, 0 keeps the scene's")
	flags.IntVar(&cfg.SamplesPerPixel, "spp", cfg.SamplesPerPixel, "Samples per pixel, 0 keeps the scene's")
	flags.IntVar(&cfg.MaxDepth, "depth", cfg.MaxDepth, "Maximum bounces, 0 keeps the scene's")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "Worker goroutines, 0 uses every CPU")
	flags.IntVar(&cfg.RowsPerTask, "rows-per-task", cfg.RowsPerTask, "Rows per CPU task, 0 splits evenly across workers")
	flags.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "GPU samples per pixel per batch, 0 picks the largest that fits")
	flags.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	flags.StringVar(&cfg.Output, "output", cfg.Output, "Output PPM path")
	flags.StringVar(&cfg.Preview, "preview", cfg.Preview, "Optional downscaled PNG preview path")
	flags.IntVar(&cfg.PreviewWidth, "preview-width", cfg.PreviewWidth, "Preview width in pixels")
	flags.BoolVar(&cfg.Gamma, "gamma", cfg.Gamma, "Apply sqrt gamma when quantizing")
	flags.Var(levelValue{&cfg.LogLevel}, "log-level", "Log level: debug, info, warn or error")
	flags.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "Optional .env file with PATHTRACER_* defaults")
	return flags
}

// Usage writes the flag documentation to w
func Usage(w io.Writer) {
	cfg := Default()
	flags := newFlagSet(&cfg, w)
	fmt.Fprintln(w, "Usage: pathtracer [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	flags.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Every option can also be set with %s<NAME>, e.g. %s.\n", EnvPrefix, EnvName("rows-per-task"))
}

// Load parses args. Flags not given on the command line fall back to
// lookupEnv, then to the .env file, then to Default. A missing .env file is
// not an error. Returns flag.ErrHelp for -h.
func Load(args []string, lookupEnv func(string) (string, bool)) (Config, error) {
	cfg := Default()
	flags := newFlagSet(&cfg, io.Discard)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cfg, err
		}
		return cfg, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if flags.NArg() > 0 {
		return cfg, fmt.Errorf("%w: unexpected arguments %v", ErrInvalid, flags.Args())
	}

	explicit := make(map[string]bool)
	flags.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if !explicit["env-file"] {
		if v, ok := lookupEnv(EnvName("env-file")); ok {
			cfg.EnvFile = v
		}
	}
	dotenv, err := readEnvFile(cfg.EnvFile)
	if err != nil {
		return cfg, err
	}

	var errs []error
	flags.VisitAll(func(f *flag.Flag) {
		if explicit[f.Name] || f.Name == "env-file" {
			return
		}
		key := EnvName(f.Name)
		v, ok := lookupEnv(key)
		if !ok {
			v, ok = dotenv[key]
		}
		if !ok {
			return
		}
		if err := f.Value.Set(v); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", key, v, err))
		}
	})
	if len(errs) > 0 {
		return cfg, fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}

	return cfg, cfg.Validate()
}

func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: env file %s: %w", ErrInvalid, path, err)
	}
	return values, nil
}

// Validate checks ranges and names
func (c Config) Validate() error {
	var problems []string
	switch c.Backend {
	case BackendCPU, BackendGPU:
	default:
		problems = append(problems, fmt.Sprintf("unknown backend %q", c.Backend))
	}
	switch c.Device {
	case gpu.DeviceAuto, gpu.DeviceWGPU, gpu.DeviceHost:
	default:
		problems = append(problems, fmt.Sprintf("unknown device %q", c.Device))
	}
	if c.Scene == "" && c.SceneFile == "" {
		problems = append(problems, "no scene or scene file")
	}
	for _, v := range []struct {
		name  string
		value int
	}{
		{"width", c.Width}, {"height", c.Height}, {"spp", c.SamplesPerPixel}, {"depth", c.MaxDepth},
		{"workers", c.Workers}, {"rows-per-task", c.RowsPerTask}, {"batch", c.BatchSize},
		{"preview-width", c.PreviewWidth},
	} {
		if v.value < 0 {
			problems = append(problems, fmt.Sprintf("%s must not be negative, got %d", v.name, v.value))
		}
	}
	if c.Output == "" {
		problems = append(problems, "output path is empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// CameraOverrides returns the non-zero image settings as camera overrides
func (c Config) CameraOverrides() geometry.CameraConfig {
	return geometry.CameraConfig{
		Width:           c.Width,
		Height:          c.Height,
		SamplesPerPixel: c.SamplesPerPixel,
		MaxDepth:        c.MaxDepth,
	}
}
