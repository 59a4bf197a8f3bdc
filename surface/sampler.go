// Package surface samples heights and normals from mip pyramid levels.
//
// All functions are pure and allocation-free so they can run on the
// haptic goroutine.
package surface

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/touchfield/mip"
)

const (
	// NormalKernel is the central-difference step in uv units.
	NormalKernel = 0.001

	// NormalUp is the up component of the unnormalised gradient normal.
	// Calibrated so a unit height change across the full domain tilts the
	// normal by 45 degrees.
	NormalUp = 1.0

	minGradientNorm = 1e-9
)

// Up is the unit up vector of the internal frame.
var Up = r3.Vec{Z: 1}

// Sampler maps device-aspect coordinates onto the square capture domain and
// samples pyramid levels there.
type Sampler struct {
	// Aspect is the workspace width/height ratio. Values <= 0 mean 1.
	Aspect float64
}

// Remap converts device-aspect uv to square texture coordinates. The square
// is stretched across the longer workspace axis.
func (s Sampler) Remap(u, v float64) (tx, ty float64) {
	a := s.Aspect
	if a <= 0 || a == 1 {
		return u, v
	}
	if a > 1 {
		return 0.5 + (u-0.5)/a, v
	}
	return u, 0.5 + (v-0.5)*a
}

// InDomain reports whether texture coordinates lie in the unit square.
func InDomain(tx, ty float64) bool {
	return tx >= 0 && tx <= 1 && ty >= 0 && ty <= 1
}

// Height bilinearly interpolates the height at texture coordinates.
// Returns false for empty levels, coordinates outside the unit square, or
// missing data.
func (s Sampler) Height(lvl *mip.Level, tx, ty float64) (float64, bool) {
	if lvl == nil || lvl.Empty() || !InDomain(tx, ty) {
		return 0, false
	}

	// Texel centres sit at (i+0.5)/W
	fx := tx*float64(lvl.W) - 0.5
	fy := ty*float64(lvl.H) - 0.5
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	ax := fx - float64(x0)
	ay := fy - float64(y0)

	x1 := clampIndex(x0+1, lvl.W)
	y1 := clampIndex(y0+1, lvl.H)
	x0 = clampIndex(x0, lvl.W)
	y0 = clampIndex(y0, lvl.H)

	h00 := float64(lvl.At(x0, y0).Height())
	h10 := float64(lvl.At(x1, y0).Height())
	h01 := float64(lvl.At(x0, y1).Height())
	h11 := float64(lvl.At(x1, y1).Height())

	top := h00 + (h10-h00)*ax
	bottom := h01 + (h11-h01)*ax
	h := top + (bottom-top)*ay
	if math.IsNaN(h) {
		return 0, false
	}
	return h, true
}

// Normal estimates the surface normal by central differences of Height.
// Degenerate gradients return Up and false.
func (s Sampler) Normal(lvl *mip.Level, tx, ty float64) (r3.Vec, bool) {
	const k = NormalKernel
	hu0, ok0 := s.Height(lvl, clamp01(tx-k), ty)
	hu1, ok1 := s.Height(lvl, clamp01(tx+k), ty)
	hv0, ok2 := s.Height(lvl, tx, clamp01(ty-k))
	hv1, ok3 := s.Height(lvl, tx, clamp01(ty+k))
	if !(ok0 && ok1 && ok2 && ok3) {
		return Up, false
	}

	du := clamp01(tx+k) - clamp01(tx-k)
	dv := clamp01(ty+k) - clamp01(ty-k)
	if du <= 0 || dv <= 0 {
		return Up, false
	}
	n := r3.Vec{X: -(hu1 - hu0) / du, Y: -(hv1 - hv0) / dv, Z: NormalUp}
	norm := r3.Norm(n)
	if norm < minGradientNorm || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return Up, false
	}
	return r3.Scale(1/norm, n), true
}

// Volume treats two levels as the floor and ceiling of a soft volume and
// interpolates height and normal along t in [0,1] (0 = lower).
func (s Sampler) Volume(coord r3.Vec, lower, upper *mip.Level, t float64) (float64, r3.Vec, bool) {
	t = clamp01(t)
	h0, ok0 := s.Height(lower, coord.X, coord.Y)
	h1, ok1 := s.Height(upper, coord.X, coord.Y)
	n0, ok2 := s.Normal(lower, coord.X, coord.Y)
	n1, ok3 := s.Normal(upper, coord.X, coord.Y)
	if !(ok0 && ok1 && ok2 && ok3) {
		return 0, Up, false
	}

	h := h0 + (h1-h0)*t
	n := r3.Add(r3.Scale(1-t, n0), r3.Scale(t, n1))
	norm := r3.Norm(n)
	if norm < minGradientNorm {
		return 0, Up, false
	}
	return h, r3.Scale(1/norm, n), true
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
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
