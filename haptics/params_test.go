package haptics

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pthm-cable/touchfield/config"
	"github.com/pthm-cable/touchfield/physics"
)

func TestNewParamsFromDefaults(t *testing.T) {
	cfg := config.Defaults().Surface
	p, err := NewParams(cfg)
	if err != nil {
		t.Fatal(err)
	}

	want := physics.Settings{
		BoundsScale:       cfg.BoundsScale,
		SurfaceForce:      cfg.Force,
		Softness:          cfg.Softness,
		MinForce:          cfg.MinForce,
		StaticFriction:    cfg.StaticFriction,
		KineticFriction:   cfg.KineticFriction,
		FrictionStiffness: cfg.FrictionStiffness,
		FrictionMode:      physics.FrictionStickSlip,
		MipLevel:          cfg.MipLevel,
		Gravity:           cfg.Gravity,
		VolumeLayers:      cfg.VolumeLayers,
		LayerThickness:    cfg.LayerThickness,
		InputSpace:        physics.ZUp,
		Aspect:            cfg.Aspect,
	}
	if diff := cmp.Diff(want, p.Settings()); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
	if p.ForceRequested.Load() {
		t.Error("expected force not requested initially")
	}
}

func TestNewParamsRejectsUnknownModes(t *testing.T) {
	cfg := config.Defaults().Surface
	cfg.FrictionMode = "grippy"
	if _, err := NewParams(cfg); err == nil {
		t.Error("expected unknown friction mode to fail")
	}

	cfg = config.Defaults().Surface
	cfg.InputSpace = "x_up"
	if _, err := NewParams(cfg); err == nil {
		t.Error("expected unknown input space to fail")
	}
}

func TestApplyPartialUpdate(t *testing.T) {
	p, _ := NewParams(config.Defaults().Surface)
	before := p.Settings()

	err := p.Apply(Update{
		Softness:       ptrTo(0.05),
		FrictionMode:   ptrTo("kinetic"),
		InputSpace:     ptrTo("y_up"),
		MipLevel:       ptrTo(2),
		ForceRequested: ptrTo(true),
	})
	if err != nil {
		t.Fatal(err)
	}

	want := before
	want.Softness = 0.05
	want.FrictionMode = physics.FrictionKinetic
	want.InputSpace = physics.YUp
	want.MipLevel = 2
	if diff := cmp.Diff(want, p.Settings()); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
	if !p.ForceRequested.Load() {
		t.Error("expected force requested")
	}
}

func TestApplyValidation(t *testing.T) {
	tests := []struct {
		name   string
		update Update
		isErr  error
	}{
		{"kinetic above static", Update{KineticFriction: ptrTo(0.9)}, ErrFrictionOrder},
		{"static below kinetic", Update{StaticFriction: ptrTo(0.1)}, ErrFrictionOrder},
		{"bad mode", Update{FrictionMode: ptrTo("sticky")}, nil},
		{"bad space", Update{InputSpace: ptrTo("w_up")}, nil},
		{"bad scale", Update{BoundsScale: ptrTo(0.0)}, nil},
		{"bad level", Update{MipLevel: ptrTo(6)}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := NewParams(config.Defaults().Surface)
			before := p.Settings()

			// Valid fields in a rejected update must not be stored either
			tc.update.Softness = ptrTo(0.5)
			err := p.Apply(tc.update)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.isErr != nil && !errors.Is(err, tc.isErr) {
				t.Errorf("expected %v, got %v", tc.isErr, err)
			}
			if diff := cmp.Diff(before, p.Settings()); diff != "" {
				t.Errorf("rejected update changed settings (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApplyFrictionPair(t *testing.T) {
	p, _ := NewParams(config.Defaults().Surface)
	// Raising both together is valid even though kinetic alone would not be
	if err := p.Apply(Update{StaticFriction: ptrTo(1.2), KineticFriction: ptrTo(0.9)}); err != nil {
		t.Fatal(err)
	}
	s := p.Settings()
	if s.StaticFriction != 1.2 || s.KineticFriction != 0.9 {
		t.Errorf("unexpected friction pair %g/%g", s.StaticFriction, s.KineticFriction)
	}
}

func TestApplyConcurrentFrictionWriters(t *testing.T) {
	for i := 0; i < 200; i++ {
		p, _ := NewParams(config.Defaults().Surface)

		// Each update is valid against 0.6/0.3 on its own; together they
		// would invert the pair, so one of them must be rejected.
		var wg sync.WaitGroup
		errs := make([]error, 2)
		start := make(chan struct{})
		for j, u := range []Update{
			{StaticFriction: ptrTo(0.35)},
			{KineticFriction: ptrTo(0.5)},
		} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				errs[j] = p.Apply(u)
			}()
		}
		close(start)
		wg.Wait()

		s := p.Settings()
		if s.KineticFriction >= s.StaticFriction {
			t.Fatalf("iteration %d: friction pair inverted: static=%g kinetic=%g", i, s.StaticFriction, s.KineticFriction)
		}
		rejected := 0
		for _, err := range errs {
			if errors.Is(err, ErrFrictionOrder) {
				rejected++
			}
		}
		if rejected != 1 {
			t.Fatalf("iteration %d: expected exactly one rejected update, got %v", i, errs)
		}
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		Disconnected: "disconnected",
		Connected:    "connected",
		ForceActive:  "force_active",
	} {
		if s.String() != want {
			t.Errorf("expected %q, got %q", want, s.String())
		}
		text, _ := s.MarshalText()
		if string(text) != want {
			t.Errorf("expected text %q, got %q", want, text)
		}
	}
}
