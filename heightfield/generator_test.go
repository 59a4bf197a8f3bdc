package heightfield

import (
	"math"
	"testing"

	"github.com/pthm-cable/touchfield/config"
	"github.com/pthm-cable/touchfield/mip"
)

func terrainConfig() config.TerrainConfig {
	return config.Defaults().Terrain
}

func TestGenerateDeterministic(t *testing.T) {
	a := NewGenerator(terrainConfig()).Generate(32, 0)
	b := NewGenerator(terrainConfig()).Generate(32, 0)

	if a.W != 32 || a.H != 32 || len(a.Heights) != 32*32 {
		t.Fatalf("unexpected dims %dx%d (%d)", a.W, a.H, len(a.Heights))
	}
	for i := range a.Heights {
		if a.Heights[i] != b.Heights[i] {
			t.Fatalf("texel %d differs between identical seeds: %g vs %g", i, a.Heights[i], b.Heights[i])
		}
	}
}

func TestGenerateWithinAmplitude(t *testing.T) {
	cfg := terrainConfig()
	cfg.Amplitude = 0.2
	tex := NewGenerator(cfg).Generate(64, 0)

	var lo, hi float32 = 1, -1
	for _, h := range tex.Heights {
		if math.IsNaN(float64(h)) {
			t.Fatal("unexpected missing data without holes")
		}
		lo = min(lo, h)
		hi = max(hi, h)
	}
	if lo < -0.2 || hi > 0.2 {
		t.Errorf("heights [%g, %g] exceed amplitude", lo, hi)
	}
	if hi-lo < 1e-3 {
		t.Errorf("expected a varied surface, got range %g", hi-lo)
	}
}

func TestGenerateDrifts(t *testing.T) {
	cfg := terrainConfig()
	cfg.TimeSpeed = 1
	g := NewGenerator(cfg)

	a := g.Generate(16, 0)
	b := g.Generate(16, 0.5)
	same := true
	for i := range a.Heights {
		if a.Heights[i] != b.Heights[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("expected the surface to change over time")
	}
}

func TestHolesAreMissingData(t *testing.T) {
	cfg := terrainConfig()
	cfg.Holes = 3
	g := NewGenerator(cfg)
	if len(g.Holes()) != 3 {
		t.Fatalf("expected 3 holes, got %d", len(g.Holes()))
	}

	const size = 128
	tex := g.Generate(size, 0)
	for _, h := range g.Holes() {
		x := int(h.U * size)
		y := int(h.V * size)
		if !math.IsNaN(float64(tex.Heights[y*size+x])) {
			t.Errorf("expected NaN at hole centre (%d,%d)", x, y)
		}
	}

	if _, err := mip.Build(tex); err != nil {
		t.Errorf("expected a texture with holes to build: %v", err)
	}
}

func TestFillReusesBuffer(t *testing.T) {
	g := NewGenerator(terrainConfig())
	tex := mip.HeightTexture{Heights: make([]float32, 0, 64*64)}
	buf := tex.Heights[:1]

	g.Fill(&tex, 32, 0)
	if &tex.Heights[0] != &buf[0] {
		t.Error("expected Fill to reuse a large enough buffer")
	}
}

func TestFlat(t *testing.T) {
	tex := Flat(8, 0.25)
	for _, h := range tex.Heights {
		if h != 0.25 {
			t.Fatalf("expected 0.25, got %g", h)
		}
	}
}

func TestPerlinRange(t *testing.T) {
	p := NewPerlin(1)
	for i := 0; i < 1000; i++ {
		x := float64(i) * 0.137
		v := p.At(x, x*0.7, x*0.3)
		if v < -1.5 || v > 1.5 {
			t.Fatalf("noise %g out of range at %g", v, x)
		}
	}
	if v := p.At(3, 4, 5); v != 0 {
		t.Errorf("expected zero at lattice points, got %g", v)
	}
}
