package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pthm-cable/touchfield/config"
	"github.com/pthm-cable/touchfield/service"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	listen := flag.String("listen", "", "Websocket bridge address (empty = use config)")
	deviceKind := flag.String("device", "", "Device kind: simulated, serial or none (empty = use config)")
	duration := flag.Duration("duration", 0, "Stop after this long (0 = run until signalled)")
	logStats := flag.Bool("log-stats", false, "Log loop counters every second")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *deviceKind != "" {
		cfg.Device.Kind = *deviceKind
		if err := cfg.Validate(); err != nil {
			slog.Error("invalid device", "error", err)
			os.Exit(1)
		}
	}

	svc, err := service.New(cfg, service.Options{
		OutputDir: *outputDir,
		Listen:    *listen,
		Logger:    logger,
	})
	if err != nil {
		slog.Error("failed to start haptic service", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	svc.Start(ctx)

	var statsC <-chan time.Time
	if *logStats {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		statsC = ticker.C
	}

	for running := true; running; {
		select {
		case <-ctx.Done():
			running = false
		case <-statsC:
			t := svc.Loop.Telemetry.Load()
			slog.Info("haptic loop",
				"state", t.State,
				"ticks", t.Ticks,
				"clamped", t.Clamped,
				"skipped", t.Skipped,
				"swaps", t.Swaps,
			)
		}
	}

	slog.Info("shutting down")
	svc.Close()
}
