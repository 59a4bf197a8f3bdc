package physics

import "gonum.org/v1/gonum/spatial/r3"

// Plane is a cached contact plane.
type Plane struct {
	Normal r3.Vec
	Point  r3.Vec
}

// Step records one solver tick in the working frame.
type Step struct {
	Elapsed     int64 // Microseconds since the solver started
	Position    r3.Vec
	Velocity    r3.Vec
	NormalForce r3.Vec
	Height      float64 // Signed height above the contact surface
	StickPoint  r3.Vec
	SurfacePos  r3.Vec
	SurfaceVel  r3.Vec

	// Lock is valid when Locked is set.
	Lock   Plane
	Locked bool
}

// Settings is a per-tick copy of the live tunables.
type Settings struct {
	BoundsScale       float64
	SurfaceForce      float64
	Softness          float64
	MinForce          float64
	StaticFriction    float64
	KineticFriction   float64
	FrictionStiffness float64
	FrictionMode      FrictionMode
	MipLevel          int
	Gravity           float64 // <= 0 disables gravity
	VolumeLayers      int
	LayerThickness    float64
	InputSpace        InputSpace
	Aspect            float64
}

// DefaultSettings returns hard-surface settings with friction off.
func DefaultSettings() Settings {
	return Settings{
		BoundsScale:       1,
		SurfaceForce:      1,
		StaticFriction:    0.6,
		KineticFriction:   0.3,
		FrictionStiffness: 40,
		VolumeLayers:      1,
		LayerThickness:    0.02,
		Aspect:            1,
	}
}
