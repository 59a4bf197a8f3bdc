// Package physics computes contact forces between the haptic probe and a
// sampled height-field surface.
package physics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// InputSpace selects how device coordinates map to the internal frame.
type InputSpace int

const (
	// ZUp devices already report z as up.
	ZUp InputSpace = iota
	// YUp devices report y as up and z towards the user.
	YUp
)

// ParseInputSpace converts a config name to an InputSpace.
func ParseInputSpace(s string) (InputSpace, error) {
	switch s {
	case "", "z_up":
		return ZUp, nil
	case "y_up":
		return YUp, nil
	}
	return ZUp, fmt.Errorf("unknown input space %q", s)
}

func (s InputSpace) String() string {
	if s == YUp {
		return "y_up"
	}
	return "z_up"
}

// Frame rotates between device space and the internal z-up working frame.
type Frame struct {
	in, out  r3.Rotation
	identity bool
}

var frames = [...]Frame{
	ZUp: {identity: true},
	YUp: {
		in:  r3.NewRotation(math.Pi/2, r3.Vec{X: 1}),
		out: r3.NewRotation(-math.Pi/2, r3.Vec{X: 1}),
	},
}

// FrameFor returns the fixed frame for an input space.
func FrameFor(s InputSpace) Frame {
	if s < 0 || int(s) >= len(frames) {
		return frames[ZUp]
	}
	return frames[s]
}

// In rotates a device-space vector into the working frame.
func (f Frame) In(v r3.Vec) r3.Vec {
	if f.identity {
		return v
	}
	return f.in.Rotate(v)
}

// Out rotates a working-frame vector back to device space.
func (f Frame) Out(v r3.Vec) r3.Vec {
	if f.identity {
		return v
	}
	return f.out.Rotate(v)
}
