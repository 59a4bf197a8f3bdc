// Package camera maps between screen pixels and surface uv coordinates for
// the viewer.
package camera

// Camera is a pan/zoom view onto the unit uv square. At zoom 1 the square
// fits the shorter viewport side.
type Camera struct {
	// U, V is the uv coordinate at the viewport centre
	U, V float32

	// Zoom level (1.0 = fit, 2.0 = 2x magnification)
	Zoom float32

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float32

	// Zoom constraints
	MinZoom, MaxZoom float32
}

// New creates a camera centred on the square at fit zoom.
func New(viewportW, viewportH float32) *Camera {
	return &Camera{
		U:         0.5,
		V:         0.5,
		Zoom:      1.0,
		ViewportW: viewportW,
		ViewportH: viewportH,
		MinZoom:   0.5,
		MaxZoom:   16.0,
	}
}

// scale returns pixels per uv unit.
func (c *Camera) scale() float32 {
	side := c.ViewportW
	if c.ViewportH < side {
		side = c.ViewportH
	}
	return side * c.Zoom
}

// UVToScreen converts uv coordinates to screen coordinates.
func (c *Camera) UVToScreen(u, v float32) (sx, sy float32) {
	s := c.scale()
	sx = c.ViewportW/2 + (u-c.U)*s
	sy = c.ViewportH/2 + (v-c.V)*s
	return sx, sy
}

// ScreenToUV converts screen coordinates to uv coordinates. The result may
// lie outside the unit square.
func (c *Camera) ScreenToUV(sx, sy float32) (u, v float32) {
	s := c.scale()
	u = c.U + (sx-c.ViewportW/2)/s
	v = c.V + (sy-c.ViewportH/2)/s
	return u, v
}

// Contains reports whether screen point lies over the unit square.
func (c *Camera) Contains(sx, sy float32) bool {
	u, v := c.ScreenToUV(sx, sy)
	return u >= 0 && u <= 1 && v >= 0 && v <= 1
}

// SquareRect returns the screen rectangle covered by the unit square.
func (c *Camera) SquareRect() (x, y, w, h float32) {
	x, y = c.UVToScreen(0, 0)
	s := c.scale()
	return x, y, s, s
}

// Resize updates viewport dimensions.
func (c *Camera) Resize(viewportW, viewportH float32) {
	c.ViewportW = viewportW
	c.ViewportH = viewportH
}

// Pan moves the camera by the given delta in screen pixels. The centre is
// kept inside the unit square.
func (c *Camera) Pan(dx, dy float32) {
	s := c.scale()
	c.U = clamp(c.U+dx/s, 0, 1)
	c.V = clamp(c.V+dy/s, 0, 1)
}

// SetZoom sets the zoom level, clamped to min/max.
func (c *Camera) SetZoom(zoom float32) {
	c.Zoom = clamp(zoom, c.MinZoom, c.MaxZoom)
}

// ZoomBy multiplies the current zoom by the given factor.
func (c *Camera) ZoomBy(factor float32) {
	c.SetZoom(c.Zoom * factor)
}

// ZoomAt zooms by factor keeping the uv under the screen point fixed.
func (c *Camera) ZoomAt(sx, sy, factor float32) {
	u, v := c.ScreenToUV(sx, sy)
	c.ZoomBy(factor)
	nu, nv := c.ScreenToUV(sx, sy)
	c.U = clamp(c.U+u-nu, 0, 1)
	c.V = clamp(c.V+v-nv, 0, 1)
}

// Reset returns the camera to the default position and zoom.
func (c *Camera) Reset() {
	c.U = 0.5
	c.V = 0.5
	c.Zoom = 1.0
}

// VisibleUV returns the uv bounds of the visible area.
func (c *Camera) VisibleUV() (minU, minV, maxU, maxV float32) {
	s := c.scale()
	halfW := c.ViewportW / (2 * s)
	halfH := c.ViewportH / (2 * s)
	return c.U - halfW, c.V - halfH, c.U + halfW, c.V + halfH
}

// clamp restricts a value to a range.
func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
