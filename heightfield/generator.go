// Package heightfield produces synthetic height textures for the haptic
// surface: fractal terrain, flat planes and missing-data holes.
package heightfield

import (
	"math"
	"math/rand"

	"github.com/pthm-cable/touchfield/config"
	"github.com/pthm-cable/touchfield/mip"
)

// Hole is a circular missing-data patch in uv units.
type Hole struct {
	U, V, Radius float64
}

// Generator fills height textures from drifting fractal noise.
type Generator struct {
	cfg   config.TerrainConfig
	noise *Perlin
	holes []Hole
}

// NewGenerator creates a generator. Hole placement is fixed by the seed.
func NewGenerator(cfg config.TerrainConfig) *Generator {
	g := &Generator{
		cfg:   cfg,
		noise: NewPerlin(cfg.Seed),
	}
	rng := rand.New(rand.NewSource(cfg.Seed ^ 0x5eed))
	for i := 0; i < cfg.Holes; i++ {
		g.holes = append(g.holes, Hole{
			U:      0.1 + 0.8*rng.Float64(),
			V:      0.1 + 0.8*rng.Float64(),
			Radius: 0.02 + 0.04*rng.Float64(),
		})
	}
	return g
}

// Holes returns the missing-data patches.
func (g *Generator) Holes() []Hole {
	return g.holes
}

// Fill writes a size x size texture for time t, reusing tex.Heights when
// it is large enough. Heights are centred on zero within ±Amplitude.
func (g *Generator) Fill(tex *mip.HeightTexture, size int, t float64) {
	n := size * size
	if cap(tex.Heights) < n {
		tex.Heights = make([]float32, n)
	}
	tex.W, tex.H = size, size
	tex.Heights = tex.Heights[:n]

	z := t * g.cfg.TimeSpeed
	amp := g.cfg.Amplitude
	for y := 0; y < size; y++ {
		v := (float64(y) + 0.5) / float64(size)
		for x := 0; x < size; x++ {
			u := (float64(x) + 0.5) / float64(size)
			h := g.noise.FBM(u*g.cfg.Scale, v*g.cfg.Scale, z, g.cfg.Octaves, g.cfg.Lacunarity, g.cfg.Gain)
			tex.Heights[y*size+x] = float32(amp * max(-1, min(1, h)))
		}
	}
	Punch(tex, g.holes)
}

// Generate returns a fresh texture for time t.
func (g *Generator) Generate(size int, t float64) mip.HeightTexture {
	var tex mip.HeightTexture
	g.Fill(&tex, size, t)
	return tex
}

// Flat returns a size x size texture at constant height.
func Flat(size int, height float32) mip.HeightTexture {
	tex := mip.HeightTexture{W: size, H: size, Heights: make([]float32, size*size)}
	for i := range tex.Heights {
		tex.Heights[i] = height
	}
	return tex
}

// Punch marks every texel whose centre lies inside a hole as missing.
func Punch(tex *mip.HeightTexture, holes []Hole) {
	nan := float32(math.NaN())
	for _, h := range holes {
		x0 := max(0, int((h.U-h.Radius)*float64(tex.W)))
		x1 := min(tex.W-1, int((h.U+h.Radius)*float64(tex.W)))
		y0 := max(0, int((h.V-h.Radius)*float64(tex.H)))
		y1 := min(tex.H-1, int((h.V+h.Radius)*float64(tex.H)))
		r2 := h.Radius * h.Radius
		for y := y0; y <= y1; y++ {
			dv := (float64(y)+0.5)/float64(tex.H) - h.V
			for x := x0; x <= x1; x++ {
				du := (float64(x)+0.5)/float64(tex.W) - h.U
				if du*du+dv*dv <= r2 {
					tex.Heights[y*tex.W+x] = nan
				}
			}
		}
	}
}
