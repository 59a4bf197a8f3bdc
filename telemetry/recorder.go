package telemetry

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// flushInterval bounds how long a partial batch waits before being written.
const flushInterval = 250 * time.Millisecond

// Recorder moves tick and perf records off the haptic goroutine and writes
// them in batches. Record never blocks; records are dropped when the queue
// is full.
type Recorder struct {
	out    *OutputManager
	batch  int
	logger *slog.Logger

	ticks chan TickRecord
	perf  chan PerfStatsCSV
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once

	written atomic.Uint64
	dropped atomic.Uint64
}

// NewRecorder starts a recorder writing to out. A nil out discards records.
func NewRecorder(out *OutputManager, queueSize, batchSize int, logger *slog.Logger) *Recorder {
	if queueSize < 1 {
		queueSize = 4096
	}
	if batchSize < 1 {
		batchSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		out:    out,
		batch:  batchSize,
		logger: logger,
		ticks:  make(chan TickRecord, queueSize),
		perf:   make(chan PerfStatsCSV, 16),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Record queues a tick record. Returns false when it was dropped.
func (r *Recorder) Record(rec TickRecord) bool {
	select {
	case r.ticks <- rec:
		return true
	default:
		r.dropped.Add(1)
		return false
	}
}

// RecordPerf queues a perf window record. Returns false when it was dropped.
func (r *Recorder) RecordPerf(rec PerfStatsCSV) bool {
	select {
	case r.perf <- rec:
		return true
	default:
		r.dropped.Add(1)
		return false
	}
}

// Written returns the number of tick records written.
func (r *Recorder) Written() uint64 { return r.written.Load() }

// Dropped returns the number of records dropped because the queue was full.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Close drains queued records, writes them and stops the writer.
// Records queued after Close are dropped.
func (r *Recorder) Close() {
	r.once.Do(func() { close(r.quit) })
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	pending := make([]TickRecord, 0, r.batch)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := r.out.WriteTicks(pending); err != nil {
			r.logger.Error("recorder write failed", "error", err, "records", len(pending))
		} else {
			r.written.Add(uint64(len(pending)))
		}
		pending = pending[:0]
	}
	writePerf := func(rec PerfStatsCSV) {
		if err := r.out.WritePerf([]PerfStatsCSV{rec}); err != nil {
			r.logger.Error("recorder perf write failed", "error", err)
		}
	}

	for {
		select {
		case rec := <-r.ticks:
			pending = append(pending, rec)
			if len(pending) >= r.batch {
				flush()
			}
		case rec := <-r.perf:
			writePerf(rec)
		case <-ticker.C:
			flush()
		case <-r.quit:
			for {
				select {
				case rec := <-r.ticks:
					pending = append(pending, rec)
					if len(pending) >= r.batch {
						flush()
					}
				case rec := <-r.perf:
					writePerf(rec)
				default:
					flush()
					return
				}
			}
		}
	}
}
