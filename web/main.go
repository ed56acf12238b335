package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/web/server"
)

func main() {
	port := flag.Int("port", 8080, "Port to serve on")
	workers := flag.Int("workers", 0, "Render workers per request, 0 uses every CPU")
	debug := flag.Bool("debug", false, "Log per-task and per-pass progress")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	core.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	webServer := server.NewServer(*port, *workers)
	if err := webServer.Start(); err != nil {
		core.Logger().Error("web server stopped", "err", err)
		os.Exit(1)
	}
}
