package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pthm-cable/touchfield/config"
	"github.com/pthm-cable/touchfield/device"
	"github.com/pthm-cable/touchfield/haptics"
)

var quiet = slog.New(slog.DiscardHandler)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Pyramid.Size = 32
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestNewPublishesInitialSurface(t *testing.T) {
	s, err := New(testConfig(), Options{Device: device.NewSimulated(), Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	tex := s.Texture()
	if tex == nil || tex.W != 32 || tex.H != 32 {
		t.Fatalf("expected a 32x32 initial texture, got %+v", tex)
	}
	if got := s.ChannelStats().Publishes; got != 1 {
		t.Errorf("expected 1 publish, got %d", got)
	}
	if s.OutputDir() != "" {
		t.Error("expected no recording without an output dir")
	}
}

func TestRunAndClose(t *testing.T) {
	dev := device.NewSimulated()
	s, err := New(testConfig(), Options{Device: dev, Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	waitFor(t, "ticks", func() bool { return s.Loop.Telemetry.Load().Ticks > 10 })
	if s.Loop.State() != haptics.Connected {
		t.Errorf("expected connected, got %v", s.Loop.State())
	}
	if s.Loop.Telemetry.Load().Swaps != 1 {
		t.Errorf("expected the initial surface swapped in, got %d swaps", s.Loop.Telemetry.Load().Swaps)
	}

	s.Close()
	if dev.IsOpen() {
		t.Error("expected device closed")
	}
	// Close is idempotent
	s.Close()
}

func TestUnavailableDeviceIsNonFatal(t *testing.T) {
	cfg := testConfig()
	cfg.Device.Kind = "none"
	s, err := New(cfg, Options{Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())

	select {
	case <-s.Loop.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit with an unavailable device")
	}
	if s.Loop.IsEnabled() {
		t.Error("expected loop disabled")
	}
	s.Close()
}

func TestTerrainRepublishes(t *testing.T) {
	cfg := testConfig()
	cfg.Terrain.TimeSpeed = 1
	cfg.Derived.TerrainEvery = 5 * time.Millisecond

	s, err := New(cfg, Options{Device: device.NewSimulated(), Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	first := s.Texture()
	s.Start(context.Background())
	defer s.Close()

	waitFor(t, "republish", func() bool { return s.ChannelStats().Publishes >= 3 })
	if s.Texture() == first {
		t.Error("expected the display texture to follow republishes")
	}
}

func TestRecordingSession(t *testing.T) {
	cfg := testConfig()
	cfg.Telemetry.BatchSize = 8
	s, err := New(cfg, Options{Device: device.NewSimulated(), OutputDir: t.TempDir(), Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	dir := s.OutputDir()
	if dir == "" {
		t.Fatal("expected a session dir")
	}

	s.Start(context.Background())
	waitFor(t, "ticks", func() bool { return s.Loop.Telemetry.Load().Ticks > 20 })
	s.Close()

	for _, name := range []string{"config.yaml", "ticks.csv"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("expected %s: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("expected %s to be non-empty", name)
		}
	}
}

func TestBridgeStopsWithService(t *testing.T) {
	s, err := New(testConfig(), Options{Device: device.NewSimulated(), Listen: "127.0.0.1:0", Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return with the bridge running")
	}
}
