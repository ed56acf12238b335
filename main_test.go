package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/df07/go-pathtracer/pkg/config"
	"github.com/df07/go-pathtracer/pkg/scene"
)

func noEnv(string) (string, bool) { return "", false }

func TestCreateScene(t *testing.T) {
	sceneFile := filepath.Join(t.TempDir(), "one.json")
	content := `{
		"camera": {"width": 20, "height": 10, "samples_per_pixel": 2, "max_depth": 3,
			"vfov": 40, "look_from": [0, 0, 1], "look_at": [0, 0, -1], "vup": [0, 1, 0]},
		"materials": {"red": {"type": "lambertian", "albedo": [0.8, 0.1, 0.1]}},
		"spheres": [{"center": [0, 0, -1], "radius": 0.5, "material": "red"}]
	}`
	if err := os.WriteFile(sceneFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		sceneName   string
		sceneFile   string
		width       int
		expectError bool
		wantWidth   int
	}{
		{"three-spheres scene", "three-spheres", "", 0, false, 0},
		{"random scene", "random", "", 0, false, 0},
		{"width override", "single-sphere", "", 64, false, 64},
		{"scene file", "three-spheres", sceneFile, 0, false, 20},
		{"scene file with override", "", sceneFile, 40, false, 40},
		{"unknown scene", "nonexistent", "", 0, true, 0},
		{"missing scene file", "", filepath.Join(t.TempDir(), "nope.json"), 0, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Scene, cfg.SceneFile, cfg.Width = tt.sceneName, tt.sceneFile, tt.width

			s, err := createScene(cfg)
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error for scene %q / file %q", tt.sceneName, tt.sceneFile)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if s.Width() <= 0 || s.Height() <= 0 {
				t.Errorf("Scene dimensions should be positive, got %dx%d", s.Width(), s.Height())
			}
			if tt.wantWidth != 0 && s.Width() != tt.wantWidth {
				t.Errorf("Expected width %d, got %d", tt.wantWidth, s.Width())
			}
		})
	}

	t.Run("unknown scene wraps ErrUnknownScene", func(t *testing.T) {
		cfg := config.Default()
		cfg.Scene = "nonexistent"
		if _, err := createScene(cfg); !errors.Is(err, scene.ErrUnknownScene) {
			t.Errorf("Expected ErrUnknownScene, got %v", err)
		}
	})
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-h"}, noEnv, &stdout, &stderr); code != 0 {
		t.Fatalf("Expected exit code 0, got %d (stderr: %s)", code, stderr.String())
	}
	for _, want := range []string{"-backend", "three-spheres", "PATHTRACER_"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("Help output missing %q", want)
		}
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-backend", "fpga"}, noEnv, &stdout, &stderr); code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "fpga") {
		t.Errorf("Expected the bad backend in the error, got %q", stderr.String())
	}
}

func TestRun_WritesImages(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"cpu", []string{"-backend", "cpu", "-workers", "2"}},
		{"gpu on host device", []string{"-backend", "gpu", "-device", "host", "-workers", "2", "-batch", "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			ppm := filepath.Join(dir, "out", "image.ppm")
			png := filepath.Join(dir, "preview.png")
			args := append([]string{
				"-env-file", filepath.Join(dir, "missing.env"),
				"-scene", "three-spheres", "-width", "16", "-height", "9", "-spp", "3", "-depth", "4",
				"-output", ppm, "-preview", png, "-preview-width", "8", "-log-level", "warn",
			}, tt.args...)

			var stdout, stderr bytes.Buffer
			if code := run(context.Background(), args, noEnv, &stdout, &stderr); code != 0 {
				t.Fatalf("Expected exit code 0, got %d (stderr: %s)", code, stderr.String())
			}

			f, err := os.Open(ppm)
			if err != nil {
				t.Fatalf("PPM not written: %v", err)
			}
			defer f.Close()
			lines := 0
			sc := bufio.NewScanner(f)
			for sc.Scan() {
				lines++
			}
			if lines != 3+16*9 {
				t.Errorf("Expected %d PPM lines, got %d", 3+16*9, lines)
			}

			if info, err := os.Stat(png); err != nil || info.Size() == 0 {
				t.Errorf("Preview not written: %v", err)
			}
		})
	}
}

func TestRun_CancelledWritesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	ppm := filepath.Join(dir, "image.ppm")
	args := []string{"-env-file", filepath.Join(dir, "missing.env"), "-width", "16", "-height", "9", "-spp", "2", "-output", ppm}

	var stdout, stderr bytes.Buffer
	if code := run(ctx, args, noEnv, &stdout, &stderr); code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if _, err := os.Stat(ppm); !os.IsNotExist(err) {
		t.Errorf("Expected no output after cancellation, stat returned %v", err)
	}
}
