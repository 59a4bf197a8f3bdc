package ui

import (
	"image/color"

	"github.com/pthm-cable/touchfield/mip"
)

// MissingColor marks texels with no height data.
var MissingColor = color.RGBA{R: 90, G: 20, B: 70, A: 255}

// HeightColor maps a height in [-amplitude, amplitude] to a gradient:
// dark blue -> cyan -> yellow-green -> white.
func HeightColor(h, amplitude float32) color.RGBA {
	if h != h {
		return MissingColor
	}
	if amplitude <= 0 {
		amplitude = 1
	}
	v := clamp((h/amplitude+1)/2, 0, 1)

	var r, g, b float32
	switch {
	case v < 0.25:
		t := v / 0.25
		r, g, b = 10+t*30, 20+t*60, 60+t*100
	case v < 0.5:
		t := (v - 0.25) / 0.25
		r, g, b = 40+t*20, 80+t*120, 160+t*40
	case v < 0.75:
		t := (v - 0.5) / 0.25
		r, g, b = 60+t*140, 200-t*40, 200-t*150
	default:
		t := (v - 0.75) / 0.25
		r, g, b = 200+t*55, 160+t*95, 50+t*205
	}
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}
}

// HeightPixels colours every texel of tex into dst, growing it if needed.
func HeightPixels(dst []color.RGBA, tex mip.HeightTexture, amplitude float32) []color.RGBA {
	n := tex.W * tex.H
	if cap(dst) < n {
		dst = make([]color.RGBA, n)
	}
	dst = dst[:n]
	for i, h := range tex.Heights[:n] {
		dst[i] = HeightColor(h, amplitude)
	}
	return dst
}
