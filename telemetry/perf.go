package telemetry

import (
	"log/slog"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Phase identifies a section of the haptic tick.
type Phase int

// Phases of one haptic tick, in execution order.
const (
	PhaseDevice Phase = iota
	PhaseSnapshot
	PhaseSolve
	PhaseOutput
	numPhases

	noPhase Phase = -1
)

var phaseNames = [numPhases]string{
	PhaseDevice:   "device",
	PhaseSnapshot: "snapshot",
	PhaseSolve:    "solve",
	PhaseOutput:   "output",
}

func (p Phase) String() string {
	if p < 0 || p >= numPhases {
		return "unknown"
	}
	return phaseNames[p]
}

// Phases lists every tick phase.
func Phases() []Phase {
	return []Phase{PhaseDevice, PhaseSnapshot, PhaseSolve, PhaseOutput}
}

// PerfSample holds timing data for a single tick.
type PerfSample struct {
	Start        time.Time
	TickDuration time.Duration
	Phases       [numPhases]time.Duration
}

// PerfCollector tracks performance metrics over a rolling window.
// It is owned by one goroutine and does not allocate per tick.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases [numPhases]time.Duration
	tickStart     time.Time
	phaseStart    time.Time
	lastPhase     Phase

	// Frame timing (for the viewer)
	lastFrameTime time.Time
	frameDuration time.Duration

	intervals []float64

	now func() time.Time
}

// NewPerfCollector creates a new performance collector.
// windowSize: number of ticks to aggregate over (e.g., 1000 for 1 second at 1 kHz).
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 1000
	}
	return &PerfCollector{
		windowSize: windowSize,
		samples:    make([]PerfSample, windowSize),
		lastPhase:  noPhase,
		intervals:  make([]float64, 0, windowSize),
		now:        time.Now,
	}
}

// WindowSize returns the number of ticks aggregated per window.
func (p *PerfCollector) WindowSize() int {
	return p.windowSize
}

// StartTick begins timing a new tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = p.now()
	p.currentPhases = [numPhases]time.Duration{}
	p.lastPhase = noPhase
}

// StartPhase begins timing a specific phase, ending the previous one.
func (p *PerfCollector) StartPhase(phase Phase) {
	now := p.now()
	if p.lastPhase != noPhase {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndTick finishes timing the current tick and records the sample.
func (p *PerfCollector) EndTick() {
	now := p.now()
	if p.lastPhase != noPhase {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	p.samples[p.writeIndex] = PerfSample{
		Start:        p.tickStart,
		TickDuration: now.Sub(p.tickStart),
		Phases:       p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// RecordFrame records frame timing for the viewer.
func (p *PerfCollector) RecordFrame() {
	now := p.now()
	if !p.lastFrameTime.IsZero() {
		p.frameDuration = now.Sub(p.lastFrameTime)
	}
	p.lastFrameTime = now
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	// Tick timing
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration

	// Start-to-start spacing of ticks; Jitter is its standard deviation.
	AvgInterval time.Duration
	Jitter      time.Duration

	// Phase breakdown (average durations)
	PhaseAvg map[Phase]time.Duration

	// Phase percentages of total tick time
	PhasePct map[Phase]float64

	// Throughput
	TicksPerSecond float64

	// Frame timing (viewer)
	FrameDuration time.Duration
	FPS           float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	var fps float64
	if p.frameDuration > 0 {
		fps = float64(time.Second) / float64(p.frameDuration)
	}

	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg:      make(map[Phase]time.Duration),
			PhasePct:      make(map[Phase]float64),
			FrameDuration: p.frameDuration,
			FPS:           fps,
		}
	}

	var totalTick time.Duration
	var minTick, maxTick time.Duration
	var phaseSum [numPhases]time.Duration

	// Oldest sample first so intervals are positive.
	oldest := 0
	if p.sampleCount == p.windowSize {
		oldest = p.writeIndex
	}
	p.intervals = p.intervals[:0]
	var prevStart time.Time
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[(oldest+i)%p.windowSize]
		totalTick += s.TickDuration

		if i == 0 || s.TickDuration < minTick {
			minTick = s.TickDuration
		}
		if s.TickDuration > maxTick {
			maxTick = s.TickDuration
		}
		for ph, dur := range s.Phases {
			phaseSum[ph] += dur
		}
		if i > 0 {
			p.intervals = append(p.intervals, float64(s.Start.Sub(prevStart)))
		}
		prevStart = s.Start
	}

	avgTick := totalTick / time.Duration(p.sampleCount)

	phaseAvg := make(map[Phase]time.Duration, numPhases)
	phasePct := make(map[Phase]float64, numPhases)
	for ph, sum := range phaseSum {
		if sum == 0 {
			continue
		}
		avg := sum / time.Duration(p.sampleCount)
		phaseAvg[Phase(ph)] = avg
		if avgTick > 0 {
			phasePct[Phase(ph)] = float64(avg) / float64(avgTick) * 100
		}
	}

	stats := PerfStats{
		AvgTickDuration: avgTick,
		MinTickDuration: minTick,
		MaxTickDuration: maxTick,
		PhaseAvg:        phaseAvg,
		PhasePct:        phasePct,
		FrameDuration:   p.frameDuration,
		FPS:             fps,
	}

	switch len(p.intervals) {
	case 0:
	case 1:
		stats.AvgInterval = time.Duration(p.intervals[0])
	default:
		mean, std := stat.MeanStdDev(p.intervals, nil)
		stats.AvgInterval = time.Duration(mean)
		stats.Jitter = time.Duration(std)
	}

	switch {
	case stats.AvgInterval > 0:
		stats.TicksPerSecond = float64(time.Second) / float64(stats.AvgInterval)
	case avgTick > 0:
		stats.TicksPerSecond = float64(time.Second) / float64(avgTick)
	}

	return stats
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"min_tick_us", s.MinTickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"jitter_us", s.Jitter.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
	}

	if s.FPS > 0 {
		attrs = append(attrs, "fps", int(s.FPS))
	}

	for _, ph := range Phases() {
		if pct, ok := s.PhasePct[ph]; ok && pct > 0.1 {
			attrs = append(attrs, ph.String()+"_pct", float64(int(pct*10))/10.0)
		}
	}

	logger.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("min_tick_us", s.MinTickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Int64("jitter_us", s.Jitter.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	}

	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}

	for _, ph := range Phases() {
		if pct, ok := s.PhasePct[ph]; ok {
			attrs = append(attrs, slog.Float64(ph.String()+"_pct", pct))
		}
	}

	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd   uint64  `csv:"window_end"`
	AvgTickUS   int64   `csv:"avg_tick_us"`
	MinTickUS   int64   `csv:"min_tick_us"`
	MaxTickUS   int64   `csv:"max_tick_us"`
	IntervalUS  int64   `csv:"interval_us"`
	JitterUS    int64   `csv:"jitter_us"`
	TicksPerSec float64 `csv:"ticks_per_sec"`
	DevicePct   float64 `csv:"device_pct"`
	SnapshotPct float64 `csv:"snapshot_pct"`
	SolvePct    float64 `csv:"solve_pct"`
	OutputPct   float64 `csv:"output_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(windowEnd uint64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:   windowEnd,
		AvgTickUS:   s.AvgTickDuration.Microseconds(),
		MinTickUS:   s.MinTickDuration.Microseconds(),
		MaxTickUS:   s.MaxTickDuration.Microseconds(),
		IntervalUS:  s.AvgInterval.Microseconds(),
		JitterUS:    s.Jitter.Microseconds(),
		TicksPerSec: s.TicksPerSecond,
		DevicePct:   s.PhasePct[PhaseDevice],
		SnapshotPct: s.PhasePct[PhaseSnapshot],
		SolvePct:    s.PhasePct[PhaseSolve],
		OutputPct:   s.PhasePct[PhaseOutput],
	}
}
