package heightfield

import (
	"math"
	"math/rand"
)

// Perlin is seeded gradient noise in three dimensions. The third axis is
// used as time so a drifting surface changes smoothly between frames.
type Perlin struct {
	perm [512]uint8
}

// NewPerlin creates a noise source with a shuffled permutation table.
func NewPerlin(seed int64) *Perlin {
	rng := rand.New(rand.NewSource(seed))
	p := &Perlin{}
	order := rng.Perm(256)
	for i, v := range order {
		p.perm[i] = uint8(v)
		p.perm[i+256] = uint8(v)
	}
	return p
}

// gradients are the 12 cube edge directions; hashes index them mod 12.
var gradients = [12][3]float64{
	{1, 1, 0}, {-1, 1, 0}, {1, -1, 0}, {-1, -1, 0},
	{1, 0, 1}, {-1, 0, 1}, {1, 0, -1}, {-1, 0, -1},
	{0, 1, 1}, {0, -1, 1}, {0, 1, -1}, {0, -1, -1},
}

// At returns noise in roughly [-1, 1].
func (p *Perlin) At(x, y, z float64) float64 {
	fx, fy, fz := math.Floor(x), math.Floor(y), math.Floor(z)
	xi, yi, zi := int(fx)&255, int(fy)&255, int(fz)&255
	x, y, z = x-fx, y-fy, z-fz

	corner := func(dx, dy, dz int) float64 {
		h := p.perm[int(p.perm[int(p.perm[xi+dx])+yi+dy])+zi+dz]
		g := gradients[int(h)%12]
		return g[0]*(x-float64(dx)) + g[1]*(y-float64(dy)) + g[2]*(z-float64(dz))
	}

	u, v, w := quintic(x), quintic(y), quintic(z)
	x00 := mix(corner(0, 0, 0), corner(1, 0, 0), u)
	x10 := mix(corner(0, 1, 0), corner(1, 1, 0), u)
	x01 := mix(corner(0, 0, 1), corner(1, 0, 1), u)
	x11 := mix(corner(0, 1, 1), corner(1, 1, 1), u)
	return mix(mix(x00, x10, v), mix(x01, x11, v), w)
}

// FBM sums octaves of noise, each at lacunarity times the frequency and
// gain times the amplitude of the last. The result is normalised by the
// total amplitude.
func (p *Perlin) FBM(x, y, z float64, octaves int, lacunarity, gain float64) float64 {
	if octaves < 1 {
		octaves = 1
	}
	var sum, norm float64
	amp, freq := 1.0, 1.0
	for o := 0; o < octaves; o++ {
		sum += amp * p.At(x*freq, y*freq, z)
		norm += amp
		freq *= lacunarity
		amp *= gain
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

func quintic(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func mix(a, b, t float64) float64 {
	return a + t*(b-a)
}
