package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/pathviz/config"
	"github.com/pthm-cable/pathviz/neural"
	"github.com/pthm-cable/pathviz/telemetry"
	"github.com/pthm-cable/pathviz/viewer"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logLevel := flag.String("log-level", "", "debug, info, warn or error (empty = use config)")
	outputDir := flag.String("output-dir", "", "Directory for snapshot CSVs (empty = use config)")
	weightsPath := flag.String("weights", "", "JSON weights of a learned drift, toggled with L")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (empty = use config)")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Set up slog (JSON to stdout for structured logging)
	level := *logLevel
	if level == "" {
		level = cfg.Telemetry.LogLevel
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l})))

	opts := viewer.Options{OutputDir: cfg.Telemetry.OutputDir}
	if *outputDir != "" {
		opts.OutputDir = *outputDir
	}
	if *weightsPath != "" {
		f, err := os.Open(*weightsPath)
		if err != nil {
			slog.Error("failed to open weights", "error", err)
			os.Exit(1)
		}
		p, err := neural.LoadPredictor(f)
		f.Close()
		if err != nil {
			slog.Error("failed to load weights", "path", *weightsPath, "error", err)
			os.Exit(1)
		}
		opts.Learned = p
	}

	addr := cfg.Telemetry.MetricsAddr
	if *metricsAddr != "" {
		addr = *metricsAddr
	}
	if addr != "" {
		srv := telemetry.ServeMetrics(addr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	rl.SetConfigFlags(rl.FlagWindowResizable)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), cfg.Screen.Title)
	defer rl.CloseWindow()

	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))
	// Escape cancels drags and precompute instead of closing
	rl.SetExitKey(rl.KeyNull)

	v := viewer.New(cfg, opts)
	defer v.Unload()

	for !rl.WindowShouldClose() {
		v.Update()
		v.Draw()
	}
}
