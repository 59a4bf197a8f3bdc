package ui

import (
	"image/color"
	"math"
	"testing"

	"github.com/pthm-cable/touchfield/config"
	"github.com/pthm-cable/touchfield/haptics"
	"github.com/pthm-cable/touchfield/mip"
	"github.com/pthm-cable/touchfield/physics"
)

func newParams(t *testing.T) *haptics.Params {
	t.Helper()
	p, err := haptics.NewParams(config.Defaults().Surface)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestHeightColorGradient(t *testing.T) {
	low := HeightColor(-1, 1)
	high := HeightColor(1, 1)
	if low != (color.RGBA{R: 10, G: 20, B: 60, A: 255}) {
		t.Errorf("unexpected low colour %v", low)
	}
	if high != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("unexpected high colour %v", high)
	}
	if HeightColor(5, 1) != high {
		t.Error("expected heights above amplitude to clamp")
	}
	if HeightColor(float32(math.NaN()), 1) != MissingColor {
		t.Error("expected NaN to use the missing colour")
	}
}

func TestHeightPixelsReusesBuffer(t *testing.T) {
	tex := mip.HeightTexture{W: 2, H: 2, Heights: []float32{-0.1, 0, 0.1, float32(math.NaN())}}
	buf := make([]color.RGBA, 0, 16)

	px := HeightPixels(buf, tex, 0.1)
	if len(px) != 4 {
		t.Fatalf("expected 4 pixels, got %d", len(px))
	}
	if &px[0] != &buf[:1][0] {
		t.Error("expected the buffer to be reused")
	}
	if px[3] != MissingColor {
		t.Errorf("expected missing colour, got %v", px[3])
	}
}

func TestBarFraction(t *testing.T) {
	tests := []struct {
		value float32
		rng   FieldRange
		want  float32
	}{
		{0.5, DefaultRange(), 0.5},
		{2, DefaultRange(), 1},
		{-1, DefaultRange(), 0},
		{1, FieldRange{Min: 1, Max: 1}, 0},
	}
	for _, tc := range tests {
		if got := barFraction(tc.value, tc.rng); got != tc.want {
			t.Errorf("barFraction(%g, %v) = %g, want %g", tc.value, tc.rng, got, tc.want)
		}
	}
	if got := centeredFraction(-0.5, CenteredRange()); got != -0.5 {
		t.Errorf("expected -0.5, got %g", got)
	}
	if got := centeredFraction(3, FieldRange{Min: -2, Max: 2}); got != 1 {
		t.Errorf("expected clamp to 1, got %g", got)
	}
}

func TestTunablesRoundtrip(t *testing.T) {
	p := newParams(t)
	for _, tn := range Tunables() {
		cur := tn.Get(p)
		if cur < float64(tn.Min) || cur > float64(tn.Max) {
			t.Errorf("%s: default %g outside slider range [%g, %g]", tn.ID, cur, tn.Min, tn.Max)
		}
		if err := p.Apply(tn.Update(cur)); err != nil {
			t.Errorf("%s: reapplying current value failed: %v", tn.ID, err)
		}
	}
}

func TestApplyTunable(t *testing.T) {
	p := newParams(t)
	byID := map[string]Tunable{}
	for _, tn := range Tunables() {
		byID[tn.ID] = tn
	}

	if err := ApplyTunable(p, byID["softness"], 0.05); err != nil {
		t.Fatal(err)
	}
	if got := p.Softness.Load(); math.Abs(got-0.05) > 1e-6 {
		t.Errorf("expected softness 0.05, got %g", got)
	}

	if err := ApplyTunable(p, byID["mip_level"], 2.4); err != nil {
		t.Fatal(err)
	}
	if got := p.MipLevel.Load(); got != 2 {
		t.Errorf("expected mip level rounded to 2, got %d", got)
	}

	if err := ApplyTunable(p, byID["kinetic_friction"], 1.9); err == nil {
		t.Error("expected kinetic above static to be rejected")
	}
}

func TestModeCycling(t *testing.T) {
	m := physics.FrictionOff
	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		next := NextFrictionMode(m)
		seen[next] = true
		var err error
		if m, err = physics.ParseFrictionMode(next); err != nil {
			t.Fatal(err)
		}
	}
	if len(seen) != 3 || m != physics.FrictionOff {
		t.Errorf("expected a full cycle back to off, saw %v ending at %v", seen, m)
	}
	if NextInputSpace(physics.ZUp) != "y_up" || NextInputSpace(physics.YUp) != "z_up" {
		t.Error("expected input space to toggle")
	}
}

func TestTelemetrySections(t *testing.T) {
	data := HUDData{
		Telemetry: haptics.Telemetry{State: haptics.ForceActive, Force: [3]float32{0, 3, 4}, Height: math.Inf(1)},
		MaxForce:  5,
	}
	if got := data.ForceMagnitude(); got != 5 {
		t.Errorf("expected |F| 5, got %g", got)
	}

	texts := map[string]string{}
	for _, sd := range TelemetrySections(data.MaxForce) {
		for _, fd := range sd.Fields {
			if fd.Widget == WidgetText {
				texts[fd.ID] = fieldText(fd, data)
			}
		}
	}
	if texts["state"] != "force_active" {
		t.Errorf("expected state text, got %q", texts["state"])
	}
	if texts["height"] != "-" {
		t.Errorf("expected infinite height shown as -, got %q", texts["height"])
	}
}
