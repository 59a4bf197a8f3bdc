package physics

import "gonum.org/v1/gonum/spatial/r3"

// SurfaceDepth maps a signed height above the surface to a contact depth in
// [0,1]. At or below the surface the depth is 1; above it the depth eases to
// 0 across the softness band. A softness <= 0 is a hard surface with no band.
func SurfaceDepth(height, softness float64) float64 {
	if height <= 0 || softness <= 0 {
		return 1
	}
	x := clamp01(height / softness)
	return 1 - x*x*(3-2*x)
}

// SoftenSurfaceNormal scales a raw normal force by depth, never dropping
// below the minForce fraction (clamped to [0,1]).
func SoftenSurfaceNormal(force r3.Vec, depth, minForce float64) r3.Vec {
	m := clamp01(minForce)
	return r3.Scale(m+(1-m)*clamp01(depth), force)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
