package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"github.com/pthm-cable/touchfield/config"
)

// TickRecord is one haptic tick in ticks.csv.
type TickRecord struct {
	Tick      uint64  `csv:"tick"`
	ElapsedUS int64   `csv:"elapsed_us"`
	State     string  `csv:"state"`
	PX        float32 `csv:"px"`
	PY        float32 `csv:"py"`
	PZ        float32 `csv:"pz"`
	FX        float32 `csv:"fx"`
	FY        float32 `csv:"fy"`
	FZ        float32 `csv:"fz"`
	Height    float64 `csv:"height"`
	Locked    bool    `csv:"locked"`
	Clamped   bool    `csv:"clamped"`
	Button    bool    `csv:"button"`
}

// OutputManager handles one recording session: a directory holding
// ticks.csv, perf.csv and config.yaml.
type OutputManager struct {
	dir       string
	sessionID string
	ticksFile *os.File
	perfFile  *os.File

	// Track if headers have been written
	ticksHeaderWritten bool
	perfHeaderWritten  bool
}

// NewOutputManager creates a session directory under baseDir and opens the
// CSV files in it. Returns nil if baseDir is empty (output disabled).
func NewOutputManager(baseDir string) (*OutputManager, error) {
	if baseDir == "" {
		return nil, nil
	}

	id := uuid.New().String()
	dir := filepath.Join(baseDir, time.Now().UTC().Format("20060102-150405")+"-"+id[:8])
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir, sessionID: id}

	f, err := os.Create(filepath.Join(dir, "ticks.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating ticks.csv: %w", err)
	}
	om.ticksFile = f

	f, err = os.Create(filepath.Join(dir, "perf.csv"))
	if err != nil {
		om.ticksFile.Close()
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	om.perfFile = f

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteTicks appends tick records to ticks.csv.
func (om *OutputManager) WriteTicks(records []TickRecord) error {
	if om == nil || len(records) == 0 {
		return nil
	}
	if err := writeCSV(om.ticksFile, records, &om.ticksHeaderWritten); err != nil {
		return fmt.Errorf("writing ticks: %w", err)
	}
	return nil
}

// WritePerf appends performance records to perf.csv.
func (om *OutputManager) WritePerf(records []PerfStatsCSV) error {
	if om == nil || len(records) == 0 {
		return nil
	}
	if err := writeCSV(om.perfFile, records, &om.perfHeaderWritten); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// writeCSV writes the header only on the first call for a file.
func writeCSV[T any](f *os.File, records []T, headerWritten *bool) error {
	if !*headerWritten {
		if err := gocsv.Marshal(records, f); err != nil {
			return err
		}
		*headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, f)
}

// Dir returns the session directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// SessionID returns the session's unique id.
func (om *OutputManager) SessionID() string {
	if om == nil {
		return ""
	}
	return om.sessionID
}

// Close closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, f := range []*os.File{om.ticksFile, om.perfFile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
