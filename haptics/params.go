// Package haptics runs the real-time force loop and holds the tunables and
// telemetry it shares with the UI.
package haptics

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/pthm-cable/touchfield/config"
	"github.com/pthm-cable/touchfield/mip"
	"github.com/pthm-cable/touchfield/physics"
)

// Float is an atomically accessed float64.
type Float struct {
	bits atomic.Uint64
}

func (f *Float) Load() float64   { return math.Float64frombits(f.bits.Load()) }
func (f *Float) Store(v float64) { f.bits.Store(math.Float64bits(v)) }

// Params holds the live tunables. Each field is independently atomic; there
// is no cross-field consistency, so a tick may see a mix of old and new
// values while the UI is editing. Writers going through Apply are
// serialised so cross-field checks hold after every update.
type Params struct {
	mu sync.Mutex // held by Apply


	BoundsScale       Float
	SurfaceForce      Float
	Softness          Float
	MinForce          Float
	StaticFriction    Float
	KineticFriction   Float
	FrictionStiffness Float
	Gravity           Float
	LayerThickness    Float
	Aspect            Float

	FrictionMode atomic.Int32
	MipLevel     atomic.Int32
	VolumeLayers atomic.Int32
	InputSpace   atomic.Int32

	ForceRequested atomic.Bool
}

// ErrFrictionOrder is returned when an update would leave kinetic friction
// at or above static friction.
var ErrFrictionOrder = errors.New("kinetic friction must be below static friction")

// NewParams creates tunables from the surface configuration.
func NewParams(cfg config.SurfaceConfig) (*Params, error) {
	mode, err := physics.ParseFrictionMode(cfg.FrictionMode)
	if err != nil {
		return nil, err
	}
	space, err := physics.ParseInputSpace(cfg.InputSpace)
	if err != nil {
		return nil, err
	}

	p := &Params{}
	p.BoundsScale.Store(cfg.BoundsScale)
	p.SurfaceForce.Store(cfg.Force)
	p.Softness.Store(cfg.Softness)
	p.MinForce.Store(cfg.MinForce)
	p.StaticFriction.Store(cfg.StaticFriction)
	p.KineticFriction.Store(cfg.KineticFriction)
	p.FrictionStiffness.Store(cfg.FrictionStiffness)
	p.Gravity.Store(cfg.Gravity)
	p.LayerThickness.Store(cfg.LayerThickness)
	p.Aspect.Store(cfg.Aspect)
	p.FrictionMode.Store(int32(mode))
	p.MipLevel.Store(int32(cfg.MipLevel))
	p.VolumeLayers.Store(int32(cfg.VolumeLayers))
	p.InputSpace.Store(int32(space))
	return p, nil
}

// Settings loads every tunable for one tick.
func (p *Params) Settings() physics.Settings {
	return physics.Settings{
		BoundsScale:       p.BoundsScale.Load(),
		SurfaceForce:      p.SurfaceForce.Load(),
		Softness:          p.Softness.Load(),
		MinForce:          p.MinForce.Load(),
		StaticFriction:    p.StaticFriction.Load(),
		KineticFriction:   p.KineticFriction.Load(),
		FrictionStiffness: p.FrictionStiffness.Load(),
		FrictionMode:      physics.FrictionMode(p.FrictionMode.Load()),
		MipLevel:          int(p.MipLevel.Load()),
		Gravity:           p.Gravity.Load(),
		VolumeLayers:      int(p.VolumeLayers.Load()),
		LayerThickness:    p.LayerThickness.Load(),
		InputSpace:        physics.InputSpace(p.InputSpace.Load()),
		Aspect:            p.Aspect.Load(),
	}
}

// Update is a partial change to the tunables. Nil fields are left alone.
type Update struct {
	BoundsScale       *float64 `json:"bounds_scale,omitempty"`
	SurfaceForce      *float64 `json:"surface_force,omitempty"`
	Softness          *float64 `json:"softness,omitempty"`
	MinForce          *float64 `json:"min_force,omitempty"`
	StaticFriction    *float64 `json:"static_friction,omitempty"`
	KineticFriction   *float64 `json:"kinetic_friction,omitempty"`
	FrictionStiffness *float64 `json:"friction_stiffness,omitempty"`
	FrictionMode      *string  `json:"friction_mode,omitempty"`
	MipLevel          *int     `json:"mip_level,omitempty"`
	Gravity           *float64 `json:"gravity,omitempty"`
	VolumeLayers      *int     `json:"volume_layers,omitempty"`
	LayerThickness    *float64 `json:"layer_thickness,omitempty"`
	InputSpace        *string  `json:"input_space,omitempty"`
	Aspect            *float64 `json:"aspect,omitempty"`
	ForceRequested    *bool    `json:"force_requested,omitempty"`
}

// Apply validates u against the current values and stores it. Nothing is
// stored when validation fails. Concurrent calls are serialised.
func (p *Params) Apply(u Update) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		mode  physics.FrictionMode
		space physics.InputSpace
		err   error
	)
	if u.FrictionMode != nil {
		if mode, err = physics.ParseFrictionMode(*u.FrictionMode); err != nil {
			return err
		}
	}
	if u.InputSpace != nil {
		if space, err = physics.ParseInputSpace(*u.InputSpace); err != nil {
			return err
		}
	}
	if u.BoundsScale != nil && *u.BoundsScale <= 0 {
		return fmt.Errorf("bounds_scale must be positive: %g", *u.BoundsScale)
	}
	if u.MipLevel != nil && (*u.MipLevel < 0 || *u.MipLevel >= mip.NumLevels) {
		return fmt.Errorf("mip_level out of range: %d", *u.MipLevel)
	}

	static, kinetic := p.StaticFriction.Load(), p.KineticFriction.Load()
	if u.StaticFriction != nil {
		static = *u.StaticFriction
	}
	if u.KineticFriction != nil {
		kinetic = *u.KineticFriction
	}
	if kinetic >= static {
		return fmt.Errorf("%w: kinetic=%g static=%g", ErrFrictionOrder, kinetic, static)
	}

	storeFloat(&p.BoundsScale, u.BoundsScale)
	storeFloat(&p.SurfaceForce, u.SurfaceForce)
	storeFloat(&p.Softness, u.Softness)
	storeFloat(&p.MinForce, u.MinForce)
	storeFloat(&p.StaticFriction, u.StaticFriction)
	storeFloat(&p.KineticFriction, u.KineticFriction)
	storeFloat(&p.FrictionStiffness, u.FrictionStiffness)
	storeFloat(&p.Gravity, u.Gravity)
	storeFloat(&p.LayerThickness, u.LayerThickness)
	storeFloat(&p.Aspect, u.Aspect)
	if u.FrictionMode != nil {
		p.FrictionMode.Store(int32(mode))
	}
	if u.InputSpace != nil {
		p.InputSpace.Store(int32(space))
	}
	if u.MipLevel != nil {
		p.MipLevel.Store(int32(*u.MipLevel))
	}
	if u.VolumeLayers != nil {
		p.VolumeLayers.Store(int32(*u.VolumeLayers))
	}
	if u.ForceRequested != nil {
		p.ForceRequested.Store(*u.ForceRequested)
	}
	return nil
}

func storeFloat(f *Float, v *float64) {
	if v != nil {
		f.Store(*v)
	}
}

// Current returns every tunable as a fully populated Update.
func (p *Params) Current() Update {
	s := p.Settings()
	return Update{
		BoundsScale:       &s.BoundsScale,
		SurfaceForce:      &s.SurfaceForce,
		Softness:          &s.Softness,
		MinForce:          &s.MinForce,
		StaticFriction:    &s.StaticFriction,
		KineticFriction:   &s.KineticFriction,
		FrictionStiffness: &s.FrictionStiffness,
		FrictionMode:      ptrTo(s.FrictionMode.String()),
		MipLevel:          &s.MipLevel,
		Gravity:           &s.Gravity,
		VolumeLayers:      &s.VolumeLayers,
		LayerThickness:    &s.LayerThickness,
		InputSpace:        ptrTo(s.InputSpace.String()),
		Aspect:            &s.Aspect,
		ForceRequested:    ptrTo(p.ForceRequested.Load()),
	}
}

func ptrTo[T any](v T) *T { return &v }
