package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/google/go-cmp/cmp"

	"github.com/pthm-cable/touchfield/config"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("expected nil manager for empty dir, got %v, %v", om, err)
	}
	// Nil manager methods are no-ops
	if err := om.WriteTicks([]TickRecord{{Tick: 1}}); err != nil {
		t.Error(err)
	}
	if om.Dir() != "" || om.SessionID() != "" {
		t.Error("expected empty dir and session for nil manager")
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
}

func TestOutputManagerWritesSession(t *testing.T) {
	base := t.TempDir()
	om, err := NewOutputManager(base)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(om.Dir(), base) {
		t.Errorf("expected session dir under %s, got %s", base, om.Dir())
	}
	if !strings.HasSuffix(om.Dir(), om.SessionID()[:8]) {
		t.Errorf("expected session dir to end with the session id, got %s", om.Dir())
	}

	first := []TickRecord{{Tick: 1, State: "connected", PZ: -0.01}}
	second := []TickRecord{{Tick: 2, State: "force_active", FZ: 1.5, Locked: true}}
	if err := om.WriteTicks(first); err != nil {
		t.Fatal(err)
	}
	if err := om.WriteTicks(second); err != nil {
		t.Fatal(err)
	}
	if err := om.WritePerf([]PerfStatsCSV{{WindowEnd: 1000, AvgTickUS: 80}}); err != nil {
		t.Fatal(err)
	}
	if err := om.WriteConfig(config.Defaults()); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(om.Dir(), "ticks.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var got []TickRecord
	if err := gocsv.UnmarshalFile(f, &got); err != nil {
		t.Fatal(err)
	}
	want := append(first, second...)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ticks mismatch (-want +got):\n%s", diff)
	}

	if _, err := config.Load(filepath.Join(om.Dir(), "config.yaml")); err != nil {
		t.Errorf("expected written config to load: %v", err)
	}
}
