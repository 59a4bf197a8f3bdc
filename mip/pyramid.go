// Package mip builds multi-resolution height pyramids from height textures.
package mip

import (
	"errors"
	"fmt"
	"math"
)

// NumLevels is the number of levels in every pyramid.
const NumLevels = 6

var (
	ErrEmptyTexture = errors.New("mip: empty height texture")
	ErrSizeMismatch = errors.New("mip: height texture size mismatch")
)

// HeightTexture is a row-major grid of surface heights.
// NaN marks texels with no data.
type HeightTexture struct {
	W, H    int
	Heights []float32
}

// Sample is one pyramid cell: {nx, ny, nz, height}.
// NaN in any component means "no force here".
type Sample [4]float32

// Height returns the height component.
func (s Sample) Height() float32 { return s[3] }

// Valid reports whether no component is NaN.
func (s Sample) Valid() bool {
	for _, c := range s {
		if c != c {
			return false
		}
	}
	return true
}

// Level is one resolution of the pyramid.
type Level struct {
	W, H  int
	Cells []Sample
}

// Empty reports whether the level has no cells.
func (l *Level) Empty() bool { return l.W == 0 || l.H == 0 }

// At returns the cell at (x, y). Callers keep x, y in range.
func (l *Level) At(x, y int) Sample {
	return l.Cells[y*l.W+x]
}

// Pyramid holds NumLevels progressively half-resolution levels.
// Level 0 is full resolution. A built pyramid is never modified; rebuild
// and republish it instead.
type Pyramid struct {
	Levels [NumLevels]Level
}

// Level returns level k clamped to the valid range.
func (p *Pyramid) Level(k int) *Level {
	if k < 0 {
		k = 0
	}
	if k >= NumLevels {
		k = NumLevels - 1
	}
	return &p.Levels[k]
}

// Build constructs a pyramid from a height texture. Level 0 carries the
// texel heights plus central-difference normals; each further level is the
// 2x2 box mean of the one below.
func Build(tex HeightTexture) (Pyramid, error) {
	var p Pyramid
	if tex.W <= 0 || tex.H <= 0 {
		return p, ErrEmptyTexture
	}
	if len(tex.Heights) != tex.W*tex.H {
		return p, fmt.Errorf("%w: %dx%d needs %d texels, got %d",
			ErrSizeMismatch, tex.W, tex.H, tex.W*tex.H, len(tex.Heights))
	}

	p.Levels[0] = baseLevel(tex)
	for k := 1; k < NumLevels; k++ {
		p.Levels[k] = downsample(&p.Levels[k-1])
	}
	return p, nil
}

func baseLevel(tex HeightTexture) Level {
	lvl := Level{W: tex.W, H: tex.H, Cells: make([]Sample, tex.W*tex.H)}
	h := func(x, y int) float64 {
		x = clampInt(x, 0, tex.W-1)
		y = clampInt(y, 0, tex.H-1)
		return float64(tex.Heights[y*tex.W+x])
	}

	// Heights are in surface units over a unit square, so one texel step is 1/W.
	sx := float64(tex.W) / 2
	sy := float64(tex.H) / 2
	for y := 0; y < tex.H; y++ {
		for x := 0; x < tex.W; x++ {
			dhdu := (h(x+1, y) - h(x-1, y)) * sx
			dhdv := (h(x, y+1) - h(x, y-1)) * sy
			nx, ny, nz := -dhdu, -dhdv, 1.0
			inv := 1 / math.Sqrt(nx*nx+ny*ny+nz*nz)
			lvl.Cells[y*tex.W+x] = Sample{
				float32(nx * inv), float32(ny * inv), float32(nz * inv),
				tex.Heights[y*tex.W+x],
			}
		}
	}
	return lvl
}

func downsample(src *Level) Level {
	w, h := src.W/2, src.H/2
	if w == 0 || h == 0 {
		return Level{}
	}
	dst := Level{W: w, H: h, Cells: make([]Sample, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := src.At(2*x, 2*y)
			b := src.At(2*x+1, 2*y)
			c := src.At(2*x, 2*y+1)
			d := src.At(2*x+1, 2*y+1)
			var s Sample
			for i := range s {
				s[i] = (a[i] + b[i] + c[i] + d[i]) * 0.25
			}
			dst.Cells[y*w+x] = s
		}
	}
	return dst
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
