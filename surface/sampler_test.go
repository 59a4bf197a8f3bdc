package surface

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/touchfield/mip"
)

var approx = cmpopts.EquateApprox(0, 1e-6)

func buildLevel(t *testing.T, w, h int, height func(x, y int) float32) *mip.Pyramid {
	t.Helper()
	tex := mip.HeightTexture{W: w, H: h, Heights: make([]float32, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			tex.Heights[y*w+x] = height(x, y)
		}
	}
	p, err := mip.Build(tex)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return &p
}

func TestHeightFlat(t *testing.T) {
	p := buildLevel(t, 16, 16, func(x, y int) float32 { return 0.25 })
	var s Sampler

	h, ok := s.Height(p.Level(0), 0.5, 0.5)
	if !ok || math.Abs(h-0.25) > 1e-6 {
		t.Errorf("expected 0.25, got %f,%v", h, ok)
	}
}

func TestHeightBilinearRamp(t *testing.T) {
	// Height increases linearly with texel x: texel centre i sits at (i+0.5)/W.
	const w = 8
	p := buildLevel(t, w, 4, func(x, y int) float32 { return float32(x) })
	var s Sampler

	for _, tx := range []float64{0.2, 0.35, 0.5, 0.8} {
		want := tx*w - 0.5
		h, ok := s.Height(p.Level(0), tx, 0.5)
		if !ok {
			t.Fatalf("expected sample at %f", tx)
		}
		if math.Abs(h-want) > 1e-5 {
			t.Errorf("tx=%f: expected %f, got %f", tx, want, h)
		}
	}
}

func TestHeightOutOfDomain(t *testing.T) {
	p := buildLevel(t, 4, 4, func(x, y int) float32 { return 0 })
	var s Sampler

	for _, uv := range [][2]float64{{-0.1, 0.5}, {0.5, 1.1}, {2, 2}} {
		if _, ok := s.Height(p.Level(0), uv[0], uv[1]); ok {
			t.Errorf("expected %v to be outside the domain", uv)
		}
	}
	if _, ok := s.Height(nil, 0.5, 0.5); ok {
		t.Error("expected nil level to fail")
	}
	if _, ok := s.Height(p.Level(mip.NumLevels-1), 0.5, 0.5); ok {
		t.Error("expected empty level to fail")
	}
}

func TestHeightMissingData(t *testing.T) {
	nan := float32(math.NaN())
	p := buildLevel(t, 8, 8, func(x, y int) float32 {
		if x < 4 {
			return nan
		}
		return 0
	})
	var s Sampler

	if _, ok := s.Height(p.Level(0), 0.1, 0.5); ok {
		t.Error("expected missing data to report no sample")
	}
	if _, ok := s.Height(p.Level(0), 0.9, 0.5); !ok {
		t.Error("expected valid region to sample")
	}
}

func TestNormalFlatIsUp(t *testing.T) {
	p := buildLevel(t, 16, 16, func(x, y int) float32 { return 0 })
	var s Sampler

	n, ok := s.Normal(p.Level(0), 0.5, 0.5)
	if !ok {
		t.Fatal("expected a normal on a flat surface")
	}
	if diff := cmp.Diff(Up, n, approx); diff != "" {
		t.Errorf("normal mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalSlope(t *testing.T) {
	// h = u across the domain, so dh/du = 1 and the normal is (-1,0,1)/sqrt2.
	const w = 32
	p := buildLevel(t, w, w, func(x, y int) float32 { return (float32(x) + 0.5) / w })
	var s Sampler

	n, ok := s.Normal(p.Level(0), 0.5, 0.5)
	if !ok {
		t.Fatal("expected a normal")
	}
	want := r3.Vec{X: -1 / math.Sqrt2, Z: 1 / math.Sqrt2}
	if diff := cmp.Diff(want, n, cmpopts.EquateApprox(0, 1e-3)); diff != "" {
		t.Errorf("normal mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalDegenerate(t *testing.T) {
	p := buildLevel(t, 8, 8, func(x, y int) float32 { return float32(math.NaN()) })
	var s Sampler

	n, ok := s.Normal(p.Level(0), 0.5, 0.5)
	if ok {
		t.Error("expected degenerate normal to report no force")
	}
	if n != Up {
		t.Errorf("expected fallback to Up, got %v", n)
	}
}

func TestVolumeInterpolates(t *testing.T) {
	lower := &mip.Level{W: 1, H: 1, Cells: []mip.Sample{{0, 0, 1, 0.2}}}
	upper := &mip.Level{W: 1, H: 1, Cells: []mip.Sample{{0, 0, 1, 0.6}}}
	var s Sampler

	coord := r3.Vec{X: 0.5, Y: 0.5}
	for _, tc := range []struct{ t, want float64 }{
		{0, 0.2}, {0.5, 0.4}, {1, 0.6}, {-1, 0.2}, {3, 0.6},
	} {
		h, n, ok := s.Volume(coord, lower, upper, tc.t)
		if !ok {
			t.Fatalf("t=%f: expected sample", tc.t)
		}
		if math.Abs(h-tc.want) > 1e-6 {
			t.Errorf("t=%f: expected %f, got %f", tc.t, tc.want, h)
		}
		if diff := cmp.Diff(Up, n, approx); diff != "" {
			t.Errorf("t=%f: normal mismatch:\n%s", tc.t, diff)
		}
	}
}

func TestRemap(t *testing.T) {
	tests := []struct {
		aspect, u, v, tx, ty float64
	}{
		{1, 0.3, 0.7, 0.3, 0.7},
		{0, 0.3, 0.7, 0.3, 0.7},
		{2, 1.5, 0.5, 1, 0.5},
		{2, 0.5, 0.2, 0.5, 0.2},
		{0.5, 0.2, 1.5, 0.2, 1},
	}
	for _, tc := range tests {
		tx, ty := Sampler{Aspect: tc.aspect}.Remap(tc.u, tc.v)
		if math.Abs(tx-tc.tx) > 1e-9 || math.Abs(ty-tc.ty) > 1e-9 {
			t.Errorf("aspect %g remap(%g,%g) = (%g,%g), want (%g,%g)",
				tc.aspect, tc.u, tc.v, tx, ty, tc.tx, tc.ty)
		}
	}
}
