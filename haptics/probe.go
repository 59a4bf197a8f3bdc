package haptics

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/touchfield/device"
	"github.com/pthm-cable/touchfield/physics"
)

// DevicePosition maps a surface coordinate (u, v in [0,1], z above the
// ground plane in working units) to the device position that reaches it.
func DevicePosition(set physics.Settings, u, v, z float64) device.Vec3f {
	scale := set.BoundsScale
	if scale <= 0 {
		scale = 1
	}
	q := r3.Scale(scale, r3.Vec{X: u - 0.5, Y: v - 0.5, Z: z})
	return toVec3f(physics.FrameFor(set.InputSpace).Out(q))
}

// SurfaceCoord is the inverse of DevicePosition.
func SurfaceCoord(set physics.Settings, pos device.Vec3f) (u, v, z float64) {
	scale := set.BoundsScale
	if scale <= 0 {
		scale = 1
	}
	w := r3.Vec{X: float64(pos[0]), Y: float64(pos[1]), Z: float64(pos[2])}
	q := r3.Scale(1/scale, physics.FrameFor(set.InputSpace).In(w))
	return q.X + 0.5, q.Y + 0.5, q.Z
}
