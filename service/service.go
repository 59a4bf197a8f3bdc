// Package service wires the haptic loop to its collaborators: the force
// device, the live tunables, the pyramid channel fed by the terrain
// generator, CSV recording and the websocket bridge.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pthm-cable/touchfield/config"
	"github.com/pthm-cable/touchfield/device"
	"github.com/pthm-cable/touchfield/haptics"
	"github.com/pthm-cable/touchfield/heightfield"
	"github.com/pthm-cable/touchfield/mip"
	"github.com/pthm-cable/touchfield/server"
	"github.com/pthm-cable/touchfield/snapshot"
	"github.com/pthm-cable/touchfield/telemetry"
)

// Options overrides parts of the configuration at startup.
type Options struct {
	OutputDir string        // Replaces telemetry.output_dir when set
	Listen    string        // Replaces server.listen when set
	Device    device.Device // Used instead of the configured device when set
	Logger    *slog.Logger
}

// Service owns every long-lived component of a haptic session.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger

	Device device.Device
	Params *haptics.Params
	Loop   *haptics.Loop

	channel *snapshot.Channel[mip.Pyramid]
	gen     *heightfield.Generator
	texture atomic.Pointer[mip.HeightTexture]

	out      *telemetry.OutputManager
	recorder *telemetry.Recorder
	server   *server.Server
	listen   string

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New builds a service from cfg and publishes the initial surface. Nothing
// runs until Start.
func New(cfg *config.Config, opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dev := opts.Device
	if dev == nil {
		var err error
		if dev, err = device.New(cfg.Device, cfg.Derived.StaleAfter, logger); err != nil {
			return nil, err
		}
	}

	params, err := haptics.NewParams(cfg.Surface)
	if err != nil {
		return nil, fmt.Errorf("surface: %w", err)
	}

	ch, err := snapshot.New[mip.Pyramid](cfg.Channel.BufferCount)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:     cfg,
		logger:  logger,
		Device:  dev,
		Params:  params,
		channel: ch,
		gen:     heightfield.NewGenerator(cfg.Terrain),
		listen:  cfg.Server.Listen,
	}
	if opts.Listen != "" {
		s.listen = opts.Listen
	}

	if err := s.Publish(s.gen.Generate(cfg.Pyramid.Size, 0)); err != nil {
		return nil, err
	}

	outputDir := cfg.Telemetry.OutputDir
	if opts.OutputDir != "" {
		outputDir = opts.OutputDir
	}
	if s.out, err = telemetry.NewOutputManager(outputDir); err != nil {
		return nil, err
	}
	if s.out != nil {
		if err := s.out.WriteConfig(cfg); err != nil {
			s.out.Close()
			return nil, err
		}
		s.recorder = telemetry.NewRecorder(s.out, cfg.Telemetry.QueueSize, cfg.Telemetry.BatchSize, logger)
		logger.Info("recording session", "dir", s.out.Dir(), "session", s.out.SessionID())
	}

	s.Loop = haptics.NewLoop(dev, params, ch.Reader(), haptics.Options{
		TickPeriod:    cfg.Derived.TickPeriod,
		MaxForce:      cfg.Loop.MaxForce,
		EnableEpsilon: cfg.Loop.EnableEpsilon,
		ForceButton:   cfg.Loop.ForceButton,
		Logger:        logger,
		Perf:          telemetry.NewPerfCollector(cfg.Loop.PerfWindow),
		Recorder:      s.recorder,
		RecordEach:    cfg.Telemetry.RecordEach,
	})

	if s.listen != "" {
		s.server = server.New(params, s.Loop.Telemetry.Load, cfg.Derived.ServerPeriod, logger)
	}
	return s, nil
}

// Publish builds a pyramid from tex and hands it to the haptic loop. tex
// must not be modified afterwards; it is kept for display.
func (s *Service) Publish(tex mip.HeightTexture) error {
	pyr, err := mip.Build(tex)
	if err != nil {
		return fmt.Errorf("building pyramid: %w", err)
	}
	s.channel.Publish(pyr)
	s.texture.Store(&tex)
	return nil
}

// Texture returns the most recently published height texture.
func (s *Service) Texture() *mip.HeightTexture {
	return s.texture.Load()
}

// Generator returns the terrain generator.
func (s *Service) Generator() *heightfield.Generator {
	return s.gen
}

// ChannelStats returns the pyramid channel counters.
func (s *Service) ChannelStats() snapshot.Stats {
	return s.channel.Stats()
}

// Start launches the haptic loop, the terrain republisher when the surface
// drifts, and the websocket bridge when configured.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.Loop.Start(ctx)

	if s.cfg.Terrain.TimeSpeed > 0 && s.cfg.Derived.TerrainEvery > 0 {
		s.wg.Go(func() { s.runTerrain(ctx, s.cfg.Derived.TerrainEvery) })
	}
	if s.server != nil {
		s.wg.Go(func() {
			if err := s.server.ListenAndServe(ctx, s.listen); err != nil {
				s.logger.Error("websocket bridge failed", "addr", s.listen, "error", err)
			}
		})
	}
	s.logger.Info("haptic service started",
		"device", s.cfg.Device.Kind,
		"tick_period", s.cfg.Derived.TickPeriod,
		"pyramid_size", s.cfg.Pyramid.Size,
		"listen", s.listen,
	)
}

// runTerrain regenerates and republishes the surface every period.
func (s *Service) runTerrain(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tex := s.gen.Generate(s.cfg.Pyramid.Size, time.Since(start).Seconds())
			if err := s.Publish(tex); err != nil {
				s.logger.Error("republishing terrain", "error", err)
			}
		}
	}
}

// Close stops the loop first so the device is disarmed, then the helpers,
// then flushes recording.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.Loop.Stop()
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()

		if s.recorder != nil {
			s.recorder.Close()
			s.logger.Info("recording closed",
				"written", s.recorder.Written(), "dropped", s.recorder.Dropped())
		}
		if s.out != nil {
			if err := s.out.Close(); err != nil {
				s.logger.Warn("closing output", "error", err)
			}
		}

		stats := s.channel.Stats()
		s.logger.Info("haptic service stopped",
			"publishes", stats.Publishes, "overflows", stats.Overflows,
			"telemetry_dropped", s.Loop.Telemetry.Dropped())
	})
}

// OutputDir returns the recording session directory, or "" when not
// recording.
func (s *Service) OutputDir() string {
	if s.out == nil {
		return ""
	}
	return s.out.Dir()
}
