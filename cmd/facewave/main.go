// facewave serves face contour capture and audio-reactive animation
// sessions over HTTP and websockets.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/facewave/internal/config"
	"github.com/teslashibe/facewave/internal/log"
	"github.com/teslashibe/facewave/pkg/app"
)

func main() {
	configPath := flag.String("config", os.Getenv("FACEWAVE_CONFIG"), "Path to YAML config (defaults when empty)")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rtpAddr := flag.String("rtp", "", "UDP address for Opus RTP audio input, e.g. :5004")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Init("info")
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.Server.LogLevel = *logLevel
	}
	if *rtpAddr != "" {
		cfg.Audio.RTPAddr = *rtpAddr
	}
	log.Init(cfg.Server.LogLevel)

	a, err := app.New(cfg)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Init(ctx); err != nil {
		log.Error("initialization failed", "error", err)
		os.Exit(1)
	}

	runErr := a.Run(ctx)

	shutdownCtx, done := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer done()
	if err := a.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown error", "error", err)
	}

	if runErr != nil {
		log.Error("runtime error", "error", runErr)
		os.Exit(1)
	}
}
