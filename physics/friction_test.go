package physics

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/spatial/r3"
)

// frictionTick is one call to Friction.Apply and what it should produce.
type frictionTick struct {
	prevHeight float64
	pos        r3.Vec
	vel        r3.Vec
	wantForce  r3.Vec
	wantStick  r3.Vec
}

func TestFrictionApply(t *testing.T) {
	const (
		static  = 0.6
		kinetic = 0.3
		stiff   = 40.0
	)
	tests := []struct {
		name  string
		mode  FrictionMode
		ticks []frictionTick
	}{
		{
			name: "off",
			mode: FrictionOff,
			ticks: []frictionTick{
				{prevHeight: 1, pos: r3.Vec{X: 0.2}, vel: r3.Vec{X: 5}},
			},
		},
		{
			name: "first contact sets stick point",
			mode: FrictionStickSlip,
			ticks: []frictionTick{
				{prevHeight: 1, pos: r3.Vec{X: 0.1, Y: 0.2}, wantStick: r3.Vec{X: 0.1, Y: 0.2}},
			},
		},
		{
			name: "static spring below limit",
			mode: FrictionStickSlip,
			ticks: []frictionTick{
				{prevHeight: 1},
				{prevHeight: -0.01, pos: r3.Vec{X: 0.01}, wantForce: r3.Vec{X: -0.4}},
			},
		},
		{
			name: "static spring clamped to limit",
			mode: FrictionStickSlip,
			ticks: []frictionTick{
				{prevHeight: 1},
				{prevHeight: -0.01, pos: r3.Vec{X: 0.05}, wantForce: r3.Vec{X: -0.6}, wantStick: r3.Vec{X: 0.035}},
			},
		},
		{
			name: "touchdown resets stick point",
			mode: FrictionStickSlip,
			ticks: []frictionTick{
				{prevHeight: 1},
				{prevHeight: -0.01, pos: r3.Vec{X: 0.01}, wantForce: r3.Vec{X: -0.4}},
				{prevHeight: 0.02, pos: r3.Vec{X: 0.3}, wantStick: r3.Vec{X: 0.3}},
			},
		},
		{
			name: "fast slide is kinetic",
			mode: FrictionStickSlip,
			ticks: []frictionTick{
				{prevHeight: 1},
				{prevHeight: -0.01, pos: r3.Vec{X: 0.1}, vel: r3.Vec{X: 1}, wantForce: r3.Vec{X: -0.3}, wantStick: r3.Vec{X: 0.1 - 0.3/40}},
			},
		},
		{
			name: "kinetic mode slips at any speed",
			mode: FrictionKinetic,
			ticks: []frictionTick{
				{prevHeight: 1},
				{prevHeight: -0.01, pos: r3.Vec{Y: 0.01}, vel: r3.Vec{Y: 0.1}, wantForce: r3.Vec{Y: -0.3}, wantStick: r3.Vec{Y: 0.01 - 0.3/40}},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var f Friction
			for i, tick := range tc.ticks {
				got := f.Apply(FrictionInput{
					Mode:       tc.mode,
					PrevHeight: tick.prevHeight,
					Height:     -0.01,
					SurfacePos: tick.pos,
					SurfaceVel: tick.vel,
					Normal:     1,
					Static:     static,
					Kinetic:    kinetic,
					Stiffness:  stiff,
				})
				if diff := cmp.Diff(tick.wantForce, got, approx); diff != "" {
					t.Errorf("tick %d force (-want +got):\n%s", i, diff)
				}
				if tc.mode == FrictionOff {
					continue
				}
				if diff := cmp.Diff(tick.wantStick, f.Stick(), approx); diff != "" {
					t.Errorf("tick %d stick point (-want +got):\n%s", i, diff)
				}
			}
		})
	}
}

func TestFrictionStationaryWithinStaticCone(t *testing.T) {
	for _, normal := range []float64{0.2, 1, 2.5} {
		var f Friction
		f.Apply(FrictionInput{Mode: FrictionStickSlip, PrevHeight: 1, Height: -0.01, Normal: normal, Static: 0.6, Kinetic: 0.3, Stiffness: 40})

		limit := normal * 0.6
		for d := 0.0; d <= 0.2; d += 0.005 {
			f.stick = r3.Vec{}
			got := f.Apply(FrictionInput{
				Mode:       FrictionStickSlip,
				PrevHeight: -0.01,
				Height:     -0.01,
				SurfacePos: r3.Vec{X: d, Y: d / 2},
				Normal:     normal,
				Static:     0.6,
				Kinetic:    0.3,
				Stiffness:  40,
			})
			if m := r3.Norm(got); m > limit+1e-9 {
				t.Fatalf("normal %g, displacement %g: |F|=%g exceeds static limit %g", normal, d, m, limit)
			}
			if d > 0 && math.Abs(r3.Norm(got)-math.Min(40*r3.Norm(r3.Vec{X: d, Y: d / 2}), limit)) > 1e-9 {
				t.Fatalf("normal %g, displacement %g: unexpected |F|=%g", normal, d, r3.Norm(got))
			}
		}
	}
}
