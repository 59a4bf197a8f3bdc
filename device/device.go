// Package device defines the force-feedback probe capability and its
// implementations.
package device

import (
	"errors"
	"fmt"
)

// Vec3f is a single-precision device-space vector.
type Vec3f [3]float32

// MaxButtons is the number of button ids a device may report.
const MaxButtons = 32

// Device errors.
var (
	ErrUnavailable = errors.New("device unavailable")
	ErrNotOpen     = errors.New("device not open")
	ErrStale       = errors.New("device position is stale")
	ErrButton      = errors.New("button id out of range")
)

// Device is a force-feedback probe. Position, Button, SetForce and
// EnableForce are called from the haptic goroutine only; Open and Close
// bracket its lifetime.
type Device interface {
	Open() error
	Close() error
	Position() (Vec3f, error)
	SetForce(f Vec3f) error
	EnableForce(on bool) error
	Button(id int) (bool, error)
}

func checkButton(id int) error {
	if id < 0 || id >= MaxButtons {
		return fmt.Errorf("%w: %d", ErrButton, id)
	}
	return nil
}
