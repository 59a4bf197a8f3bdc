package physics

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/touchfield/history"
	"github.com/pthm-cable/touchfield/mip"
	"github.com/pthm-cable/touchfield/surface"
)

// lockDepth is the contact depth above which the contact plane is locked.
const lockDepth = 0.9

// historyLen is the number of steps kept for finite differences.
const historyLen = 2

// Solver turns probe positions into contact forces, one tick at a time.
// It is owned by the haptic goroutine and is not safe for concurrent use.
type Solver struct {
	sampler  surface.Sampler
	history  *history.Sized[Step]
	friction Friction
	clock    func() time.Duration
}

// NewSolver creates a solver. clock returns the time since some fixed
// origin; nil uses the monotonic wall clock.
func NewSolver(clock func() time.Duration) *Solver {
	if clock == nil {
		start := time.Now()
		clock = func() time.Duration { return time.Since(start) }
	}
	return &Solver{
		history: history.New[Step](historyLen),
		clock:   clock,
	}
}

// Reset clears history and friction state.
func (s *Solver) Reset() {
	s.history.Reset()
	s.friction.Reset()
}

// Last returns the most recent step.
func (s *Solver) Last() (Step, bool) {
	return s.history.Back(0)
}

// Previous returns the step before the most recent one.
func (s *Solver) Previous() (Step, bool) {
	return s.history.Back(1)
}

// Step computes the device-space force for a device-space probe position.
// A nil pyramid behaves like an infinite ground plane.
func (s *Solver) Step(set Settings, pyr *mip.Pyramid, world r3.Vec) r3.Vec {
	frame := FrameFor(set.InputSpace)
	scale := set.BoundsScale
	if scale <= 0 {
		scale = 1
	}
	q := r3.Scale(1/scale, frame.In(world))

	prev, hasPrev := s.history.Back(0)
	step := Step{
		Elapsed:  s.clock().Microseconds(),
		Position: q,
		Height:   math.Inf(1),
	}
	if hasPrev {
		dt := float64(step.Elapsed-prev.Elapsed) / 1e6
		if dt > 0 {
			step.Velocity = r3.Scale(1/dt, r3.Sub(q, prev.Position))
		} else {
			step.Velocity = prev.Velocity
		}
	}
	s.history.Push(step)
	cur := s.history.BackPtr(0)

	var gravity r3.Vec
	if set.Gravity > 0 {
		gravity.Z = -set.Gravity
	}

	s.sampler.Aspect = set.Aspect
	tx, ty := s.sampler.Remap(q.X+0.5, q.Y+0.5)
	if pyr == nil || !surface.InDomain(tx, ty) {
		// Off the sampled surface: infinite ground plane at height 0.
		depth := SurfaceDepth(q.Z, set.Softness)
		cur.NormalForce = r3.Scale(set.SurfaceForce*depth, surface.Up)
		cur.Height = q.Z
		return s.finish(frame, r3.Add(gravity, cur.NormalForce), gravity)
	}

	band := math.Max(set.Softness, 0)
	n, h, ok := s.sample(set, pyr, q, tx, ty)
	bridged := false
	if ok && h > band && hasPrev && prev.Locked {
		// The fresh sample lost contact while the probe is still under the
		// plane locked last tick: hold that plane for this tick only.
		if hl := r3.Dot(r3.Sub(q, prev.Lock.Point), prev.Lock.Normal); hl <= 0 {
			n, h, bridged = prev.Lock.Normal, hl, true
		}
	}
	if !ok || h > band {
		if ok {
			cur.Height = h
		} else {
			cur.Height = q.Z
		}
		cur.NormalForce = r3.Vec{}
		return s.finish(frame, gravity, gravity)
	}

	depth := SurfaceDepth(h, set.Softness)
	cur.NormalForce = SoftenSurfaceNormal(r3.Scale(set.SurfaceForce, n), depth, set.MinForce)
	cur.Height = h
	contact := r3.Sub(q, r3.Scale(h, n))
	cur.SurfacePos = contact
	cur.SurfaceVel = r3.Sub(cur.Velocity, r3.Scale(r3.Dot(cur.Velocity, n), n))

	if !bridged && depth > lockDepth {
		cur.Locked = true
		cur.Lock = Plane{Normal: n, Point: contact}
	}

	total := r3.Add(gravity, cur.NormalForce)
	if set.FrictionMode != FrictionOff && h <= 0 {
		prevHeight := math.Inf(1)
		if hasPrev {
			prevHeight = prev.Height
		}
		ff := s.friction.Apply(FrictionInput{
			Mode:       set.FrictionMode,
			PrevHeight: prevHeight,
			Height:     h,
			SurfacePos: cur.SurfacePos,
			SurfaceVel: cur.SurfaceVel,
			Normal:     r3.Norm(cur.NormalForce),
			Static:     set.StaticFriction,
			Kinetic:    set.KineticFriction,
			Stiffness:  set.FrictionStiffness,
		})
		cur.StickPoint = s.friction.Stick()
		total = r3.Add(total, ff)
	}

	return s.finish(frame, total, gravity)
}

// sample returns the contact normal and the probe's signed distance to the
// tangent plane at (tx, ty).
func (s *Solver) sample(set Settings, pyr *mip.Pyramid, q r3.Vec, tx, ty float64) (r3.Vec, float64, bool) {
	level := set.MipLevel
	top, ok := s.sampler.Height(pyr.Level(level), tx, ty)
	if !ok {
		return surface.Up, 0, false
	}

	surfH := top
	var n r3.Vec
	volumetric := false
	pen := top - q.Z
	band := float64(set.VolumeLayers) * set.LayerThickness
	if set.VolumeLayers > 1 && set.LayerThickness > 0 && pen > 0 && pen < band {
		d := pen / set.LayerThickness
		lower := level + int(d)
		t := d - math.Floor(d)
		surfH, n, volumetric = s.sampler.Volume(r3.Vec{X: tx, Y: ty}, pyr.Level(lower), pyr.Level(lower+1), t)
	}
	if !volumetric {
		// Single level, also used when the coarser layer has run out of cells.
		surfH = top
		n, ok = s.sampler.Normal(pyr.Level(level), tx, ty)
		if !ok {
			return surface.Up, 0, false
		}
	}
	return n, (q.Z - surfH) * n.Z, true
}

// finish rejects non-finite forces and rotates back to device space.
func (s *Solver) finish(frame Frame, force, fallback r3.Vec) r3.Vec {
	if !finite(force) {
		force = fallback
	}
	return frame.Out(force)
}

func finite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
