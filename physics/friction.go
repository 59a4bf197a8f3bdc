package physics

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// FrictionMode selects the friction model.
type FrictionMode int

const (
	FrictionOff FrictionMode = iota
	FrictionStickSlip
	FrictionKinetic
)

// ParseFrictionMode converts a config name to a FrictionMode.
func ParseFrictionMode(s string) (FrictionMode, error) {
	switch s {
	case "off", "":
		return FrictionOff, nil
	case "stick_slip":
		return FrictionStickSlip, nil
	case "kinetic":
		return FrictionKinetic, nil
	}
	return FrictionOff, fmt.Errorf("unknown friction mode %q", s)
}

func (m FrictionMode) String() string {
	switch m {
	case FrictionStickSlip:
		return "stick_slip"
	case FrictionKinetic:
		return "kinetic"
	}
	return "off"
}

// FrictionInput is one tick's view of the contact for the friction model.
type FrictionInput struct {
	Mode       FrictionMode
	PrevHeight float64
	Height     float64
	SurfacePos r3.Vec
	SurfaceVel r3.Vec
	Normal     float64 // Normal force magnitude
	Static     float64 // u_s
	Kinetic    float64 // u_k, callers keep u_k < u_s
	Stiffness  float64 // Spring constant between probe and stick point
}

// Friction is a stick-slip model around a stick point carried across ticks.
type Friction struct {
	stick    r3.Vec
	hasStick bool
}

// Reset forgets the stick point.
func (f *Friction) Reset() {
	f.stick = r3.Vec{}
	f.hasStick = false
}

// Stick returns the current stick point.
func (f *Friction) Stick() r3.Vec { return f.stick }

// Apply advances the model one tick and returns the tangential force.
func (f *Friction) Apply(in FrictionInput) r3.Vec {
	if in.Mode == FrictionOff {
		return r3.Vec{}
	}
	if !f.hasStick || (in.PrevHeight > 0 && in.Height <= 0) {
		f.stick = in.SurfacePos
		f.hasStick = true
	}

	stiff := in.Stiffness
	if stiff <= 0 {
		stiff = 1
	}
	n := abs(in.Normal)
	speed := r3.Norm(in.SurfaceVel)

	slipping := speed > n*in.Static
	if in.Mode == FrictionKinetic {
		slipping = speed > 0
	}
	if slipping && speed > 0 {
		d := n * in.Kinetic
		dir := r3.Scale(-1/speed, in.SurfaceVel)
		f.stick = r3.Add(in.SurfacePos, r3.Scale(d/stiff, dir))
		return r3.Scale(d, dir)
	}

	disp := r3.Sub(f.stick, in.SurfacePos)
	force := r3.Scale(stiff, disp)
	limit := n * in.Static
	if m := r3.Norm(force); m > limit {
		if m == 0 || limit <= 0 {
			f.stick = in.SurfacePos
			return r3.Vec{}
		}
		k := limit / m
		f.stick = r3.Add(in.SurfacePos, r3.Scale(k, disp))
		force = r3.Scale(k, force)
	}
	return force
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
