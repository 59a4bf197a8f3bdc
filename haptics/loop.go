package haptics

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/touchfield/device"
	"github.com/pthm-cable/touchfield/mip"
	"github.com/pthm-cable/touchfield/physics"
	"github.com/pthm-cable/touchfield/snapshot"
	"github.com/pthm-cable/touchfield/telemetry"
)

// errLogInterval throttles repeated device error logs.
const errLogInterval = time.Second

// Options configures a Loop.
type Options struct {
	// TickPeriod paces the loop. 0 runs ticks back to back, paced by the
	// device calls.
	TickPeriod time.Duration

	// MaxForce clamps the magnitude of every force sent to the device.
	MaxForce float64

	// EnableEpsilon is the force magnitude below which output may be armed.
	EnableEpsilon float64

	// ForceButton is the device button reported in telemetry.
	ForceButton int

	Logger *slog.Logger

	// Perf receives per-phase timings; nil disables timing.
	Perf *telemetry.PerfCollector

	// Recorder receives tick records every RecordEach ticks and a perf
	// record per perf window; nil disables recording.
	Recorder   *telemetry.Recorder
	RecordEach int

	// Clock drives solver velocities; nil uses the wall clock.
	Clock func() time.Duration
}

// Loop is the real-time haptic control loop. It owns the device for its
// lifetime: Start opens it, Stop disarms and closes it.
type Loop struct {
	dev    device.Device
	params *Params
	reader *snapshot.Reader[mip.Pyramid]
	opts   Options
	logger *slog.Logger

	solver *physics.Solver
	pyr    *mip.Pyramid

	Telemetry TelemetryBox

	state   atomic.Int32
	enabled atomic.Bool
	started atomic.Bool
	stop    atomic.Bool
	stopCh  chan struct{}
	once    sync.Once
	done    chan struct{}

	ticks   atomic.Uint64
	clamped atomic.Uint64
	skipped atomic.Uint64
	swaps   atomic.Uint64

	lastErrLog time.Time
	suppressed int
}

// NewLoop creates a loop. reader may be nil, in which case the solver sees
// only the ground plane.
func NewLoop(dev device.Device, params *Params, reader *snapshot.Reader[mip.Pyramid], opts Options) *Loop {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RecordEach < 1 {
		opts.RecordEach = 1
	}
	if opts.MaxForce <= 0 {
		opts.MaxForce = math.Inf(1)
	}
	return &Loop{
		dev:    dev,
		params: params,
		reader: reader,
		opts:   opts,
		logger: opts.Logger,
		solver: physics.NewSolver(opts.Clock),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start opens the device and runs the loop on its own goroutine. Cancelling
// ctx or calling Stop ends it. Start is a no-op after the first call.
func (l *Loop) Start(ctx context.Context) {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	go l.run(ctx)
}

// Stop requests cancellation and waits for the loop to shut down.
func (l *Loop) Stop() {
	l.stop.Store(true)
	l.once.Do(func() { close(l.stopCh) })
	if l.started.Load() {
		<-l.done
	}
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// IsEnabled reports whether the device opened and the loop is running.
func (l *Loop) IsEnabled() bool {
	return l.enabled.Load()
}

// State returns the current connection state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Stats returns the loop counters.
func (l *Loop) Stats() (ticks, clamped, skipped, swaps uint64) {
	return l.ticks.Load(), l.clamped.Load(), l.skipped.Load(), l.swaps.Load()
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	if err := l.open(); err != nil {
		return
	}
	defer l.shutdown()

	var tick <-chan time.Time
	if l.opts.TickPeriod > 0 {
		ticker := time.NewTicker(l.opts.TickPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if l.stop.Load() {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		l.tick()

		if tick != nil {
			select {
			case <-ctx.Done():
				return
			case <-l.stopCh:
				return
			case <-tick:
			}
		}
	}
}

func (l *Loop) open() error {
	if err := l.dev.Open(); err != nil {
		l.logger.Error("haptic device unavailable", "error", err)
		l.Telemetry.Publish(Telemetry{State: Disconnected})
		return err
	}
	l.enabled.Store(true)
	l.setState(Connected)
	l.logger.Info("haptic loop started", "tick_period", l.opts.TickPeriod, "max_force", l.opts.MaxForce)
	return nil
}

func (l *Loop) tick() {
	perf := l.opts.Perf
	if perf != nil {
		perf.StartTick()
		perf.StartPhase(telemetry.PhaseDevice)
		defer perf.EndTick()
	}
	n := l.ticks.Add(1)

	pos, err := l.dev.Position()
	if err != nil {
		l.deviceError("position", err)
		return
	}
	button, err := l.dev.Button(l.opts.ForceButton)
	if err != nil {
		l.deviceError("button", err)
		return
	}

	if perf != nil {
		perf.StartPhase(telemetry.PhaseSnapshot)
	}
	if l.reader != nil && l.reader.HasUpdate() {
		if p, ok := l.reader.TryConsume(); ok {
			l.pyr = p
			l.swaps.Add(1)
		}
	}

	if perf != nil {
		perf.StartPhase(telemetry.PhaseSolve)
	}
	world := r3.Vec{X: float64(pos[0]), Y: float64(pos[1]), Z: float64(pos[2])}
	force := l.solver.Step(l.params.Settings(), l.pyr, world)
	force, clamped := clampForce(force, l.opts.MaxForce)
	if clamped {
		l.clamped.Add(1)
	}

	if perf != nil {
		perf.StartPhase(telemetry.PhaseOutput)
	}
	out := toVec3f(force)
	l.gate(r3.Norm(force))
	if l.State() == ForceActive {
		if err := l.dev.SetForce(out); err != nil {
			l.deviceError("set_force", err)
		}
	}

	last, _ := l.solver.Last()
	t := Telemetry{
		Position: pos,
		Force:    out,
		Height:   last.Height,
		Locked:   last.Locked,
		Button:   button,
		State:    l.State(),
		Ticks:    n,
		Clamped:  l.clamped.Load(),
		Skipped:  l.skipped.Load(),
		Swaps:    l.swaps.Load(),
	}
	l.Telemetry.TryPublish(t)
	l.record(n, last, t, clamped)
}

// gate arms output only when force is requested and the computed force is
// small, and disarms when the request is withdrawn.
func (l *Loop) gate(magnitude float64) {
	requested := l.params.ForceRequested.Load()
	switch l.State() {
	case Connected:
		if !requested || magnitude >= l.opts.EnableEpsilon {
			return
		}
		if err := l.dev.EnableForce(true); err != nil {
			l.deviceError("enable_force", err)
			return
		}
		l.setState(ForceActive)
		l.logger.Info("haptic force armed")
	case ForceActive:
		if requested {
			return
		}
		l.disarm()
		l.logger.Info("haptic force disarmed")
	}
}

func (l *Loop) disarm() {
	if err := l.dev.SetForce(device.Vec3f{}); err != nil {
		l.deviceError("set_force", err)
	}
	if err := l.dev.EnableForce(false); err != nil {
		l.deviceError("enable_force", err)
	}
	l.setState(Connected)
}

func (l *Loop) shutdown() {
	if l.State() == ForceActive {
		l.disarm()
	}
	if err := l.dev.Close(); err != nil {
		l.logger.Warn("closing haptic device", "error", err)
	}
	l.enabled.Store(false)
	l.setState(Disconnected)

	t := l.Telemetry.Load()
	t.State = Disconnected
	t.Force = device.Vec3f{}
	l.Telemetry.Publish(t)

	ticks, clamped, skipped, swaps := l.Stats()
	l.logger.Info("haptic loop stopped",
		"ticks", ticks, "clamped", clamped, "skipped", skipped, "swaps", swaps)
}

func (l *Loop) record(n uint64, step physics.Step, t Telemetry, clamped bool) {
	rec := l.opts.Recorder
	perf := l.opts.Perf
	if perf != nil && n%uint64(perf.WindowSize()) == 0 {
		stats := perf.Stats()
		l.logger.Debug("haptic perf", "stats", stats)
		if rec != nil {
			rec.RecordPerf(stats.ToCSV(n))
		}
	}
	if rec == nil || n%uint64(l.opts.RecordEach) != 0 {
		return
	}
	rec.Record(telemetry.TickRecord{
		Tick:      n,
		ElapsedUS: step.Elapsed,
		State:     t.State.String(),
		PX:        t.Position[0],
		PY:        t.Position[1],
		PZ:        t.Position[2],
		FX:        t.Force[0],
		FY:        t.Force[1],
		FZ:        t.Force[2],
		Height:    finiteOr(step.Height, 0),
		Locked:    step.Locked,
		Clamped:   clamped,
		Button:    t.Button,
	})
}

// deviceError skips the rest of the tick's device work and logs at most once
// per errLogInterval.
func (l *Loop) deviceError(op string, err error) {
	l.skipped.Add(1)
	now := time.Now()
	if now.Sub(l.lastErrLog) < errLogInterval {
		l.suppressed++
		return
	}
	l.logger.Warn("haptic device error", "op", op, "error", err, "suppressed", l.suppressed)
	l.lastErrLog = now
	l.suppressed = 0
}

// clampForce limits the magnitude of f to limit.
func clampForce(f r3.Vec, limit float64) (r3.Vec, bool) {
	m := r3.Norm(f)
	if m <= limit || m == 0 {
		return f, false
	}
	return r3.Scale(limit/m, f), true
}

func toVec3f(v r3.Vec) device.Vec3f {
	return device.Vec3f{float32(v.X), float32(v.Y), float32(v.Z)}
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
