package haptics

import (
	"sync"
	"sync/atomic"

	"github.com/pthm-cable/touchfield/device"
)

// Telemetry is the display state published once per tick.
type Telemetry struct {
	Position device.Vec3f `json:"position"`
	Force    device.Vec3f `json:"force"`
	Height   float64      `json:"height"`
	Locked   bool         `json:"locked"`
	Button   bool         `json:"button"`
	State    State        `json:"state"`
	Ticks    uint64       `json:"ticks"`
	Clamped  uint64       `json:"clamped"`
	Skipped  uint64       `json:"skipped"`
	Swaps    uint64       `json:"swaps"`
}

// TelemetryBox holds the latest Telemetry as one logically atomic group.
// The haptic goroutine only ever tries the lock; a failed try drops that
// update.
type TelemetryBox struct {
	mu      sync.Mutex
	v       Telemetry
	dropped atomic.Uint64
}

// TryPublish stores t unless a reader holds the lock.
func (b *TelemetryBox) TryPublish(t Telemetry) bool {
	if !b.mu.TryLock() {
		b.dropped.Add(1)
		return false
	}
	b.v = t
	b.mu.Unlock()
	return true
}

// Publish stores t, waiting for the lock. Not for the haptic tick.
func (b *TelemetryBox) Publish(t Telemetry) {
	b.mu.Lock()
	b.v = t
	b.mu.Unlock()
}

// Load returns the latest telemetry.
func (b *TelemetryBox) Load() Telemetry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.v
}

// Dropped returns how many updates were lost to lock contention.
func (b *TelemetryBox) Dropped() uint64 {
	return b.dropped.Load()
}
