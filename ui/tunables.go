package ui

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/touchfield/haptics"
	"github.com/pthm-cable/touchfield/mip"
	"github.com/pthm-cable/touchfield/physics"
)

// Tunable describes one slider-controlled parameter.
type Tunable struct {
	ID       string
	Label    string
	Format   string
	Min, Max float32
	Integer  bool
	Get      func(p *haptics.Params) float64
	Update   func(v float64) haptics.Update
}

func floatTunable(id, label, format string, lo, hi float32, f func(*haptics.Params) *haptics.Float, u func(*float64) haptics.Update) Tunable {
	return Tunable{
		ID: id, Label: label, Format: format, Min: lo, Max: hi,
		Get:    func(p *haptics.Params) float64 { return f(p).Load() },
		Update: func(v float64) haptics.Update { return u(&v) },
	}
}

// Tunables returns the slider descriptors in display order.
func Tunables() []Tunable {
	return []Tunable{
		floatTunable("surface_force", "Surface force", "%.2f", 0, 5,
			func(p *haptics.Params) *haptics.Float { return &p.SurfaceForce },
			func(v *float64) haptics.Update { return haptics.Update{SurfaceForce: v} }),
		floatTunable("softness", "Softness", "%.3f", 0, 0.2,
			func(p *haptics.Params) *haptics.Float { return &p.Softness },
			func(v *float64) haptics.Update { return haptics.Update{Softness: v} }),
		floatTunable("min_force", "Min force", "%.2f", 0, 1,
			func(p *haptics.Params) *haptics.Float { return &p.MinForce },
			func(v *float64) haptics.Update { return haptics.Update{MinForce: v} }),
		floatTunable("static_friction", "Static friction", "%.2f", 0, 2,
			func(p *haptics.Params) *haptics.Float { return &p.StaticFriction },
			func(v *float64) haptics.Update { return haptics.Update{StaticFriction: v} }),
		floatTunable("kinetic_friction", "Kinetic friction", "%.2f", 0, 2,
			func(p *haptics.Params) *haptics.Float { return &p.KineticFriction },
			func(v *float64) haptics.Update { return haptics.Update{KineticFriction: v} }),
		floatTunable("friction_stiffness", "Friction stiffness", "%.0f", 0, 200,
			func(p *haptics.Params) *haptics.Float { return &p.FrictionStiffness },
			func(v *float64) haptics.Update { return haptics.Update{FrictionStiffness: v} }),
		floatTunable("gravity", "Gravity", "%.2f", 0, 2,
			func(p *haptics.Params) *haptics.Float { return &p.Gravity },
			func(v *float64) haptics.Update { return haptics.Update{Gravity: v} }),
		floatTunable("bounds_scale", "Bounds scale", "%.2f", 0.1, 4,
			func(p *haptics.Params) *haptics.Float { return &p.BoundsScale },
			func(v *float64) haptics.Update { return haptics.Update{BoundsScale: v} }),
		floatTunable("aspect", "Aspect", "%.2f", 0.25, 4,
			func(p *haptics.Params) *haptics.Float { return &p.Aspect },
			func(v *float64) haptics.Update { return haptics.Update{Aspect: v} }),
		floatTunable("layer_thickness", "Layer thickness", "%.3f", 0.001, 0.1,
			func(p *haptics.Params) *haptics.Float { return &p.LayerThickness },
			func(v *float64) haptics.Update { return haptics.Update{LayerThickness: v} }),
		{
			ID: "volume_layers", Label: "Volume layers", Format: "%.0f", Min: 1, Max: mip.NumLevels - 1, Integer: true,
			Get: func(p *haptics.Params) float64 { return float64(p.VolumeLayers.Load()) },
			Update: func(v float64) haptics.Update {
				n := int(v)
				return haptics.Update{VolumeLayers: &n}
			},
		},
		{
			ID: "mip_level", Label: "Mip level", Format: "%.0f", Min: 0, Max: mip.NumLevels - 1, Integer: true,
			Get: func(p *haptics.Params) float64 { return float64(p.MipLevel.Load()) },
			Update: func(v float64) haptics.Update {
				n := int(v)
				return haptics.Update{MipLevel: &n}
			},
		},
	}
}

// ApplyTunable stores v for t, rounding integer tunables. It returns nil
// without touching params when the value is unchanged.
func ApplyTunable(p *haptics.Params, t Tunable, v float32) error {
	value := float64(v)
	if t.Integer {
		value = math.Round(value)
	}
	if value == t.Get(p) {
		return nil
	}
	return p.Apply(t.Update(value))
}

// NextFrictionMode returns the mode after m in button order.
func NextFrictionMode(m physics.FrictionMode) string {
	switch m {
	case physics.FrictionOff:
		return physics.FrictionStickSlip.String()
	case physics.FrictionStickSlip:
		return physics.FrictionKinetic.String()
	}
	return physics.FrictionOff.String()
}

// NextInputSpace returns the other input space.
func NextInputSpace(s physics.InputSpace) string {
	if s == physics.ZUp {
		return physics.YUp.String()
	}
	return physics.ZUp.String()
}

// TunablesPanel draws sliders and buttons bound to live params.
type TunablesPanel struct {
	renderer *Renderer
	params   *haptics.Params
	tunables []Tunable
	x, y     int32
	width    int32

	// LastError holds the most recent rejected update, cleared on success.
	LastError string
}

// NewTunablesPanel creates a panel at (x, y).
func NewTunablesPanel(params *haptics.Params, x, y, width int32) *TunablesPanel {
	return &TunablesPanel{
		renderer: NewRenderer(),
		params:   params,
		tunables: Tunables(),
		x:        x,
		y:        y,
		width:    width,
	}
}

// SetY moves the panel's top edge.
func (t *TunablesPanel) SetY(y int32) {
	t.y = y
}

func (t *TunablesPanel) apply(u haptics.Update) {
	if err := t.params.Apply(u); err != nil {
		t.LastError = err.Error()
		return
	}
	t.LastError = ""
}

// Draw renders the panel and applies any edits.
func (t *TunablesPanel) Draw() {
	r := t.renderer
	pad := r.Theme.Padding
	inner := t.width - pad*2
	x := t.x + pad

	y := r.DrawSectionHeader(x, t.y, "Tunables")

	requested := t.params.ForceRequested.Load()
	if r.DrawButton(x, y, inner, toggleText(requested, "Release force", "Request force")) {
		toggled := !requested
		t.apply(haptics.Update{ForceRequested: &toggled})
	}
	y += 30

	mode := physics.FrictionMode(t.params.FrictionMode.Load())
	space := physics.InputSpace(t.params.InputSpace.Load())
	half := (inner - 6) / 2
	if r.DrawButton(x, y, half, "Friction: "+mode.String()) {
		next := NextFrictionMode(mode)
		t.apply(haptics.Update{FrictionMode: &next})
	}
	if r.DrawButton(x+half+6, y, half, "Space: "+space.String()) {
		next := NextInputSpace(space)
		t.apply(haptics.Update{InputSpace: &next})
	}
	y += 34

	for _, tn := range t.tunables {
		cur := float32(tn.Get(t.params))
		var v float32
		v, y = r.DrawSlider(x, y, tn.Label, tn.Format, cur, tn.Min, tn.Max, inner)
		if v != cur {
			if err := ApplyTunable(t.params, tn, v); err != nil {
				t.LastError = err.Error()
			} else {
				t.LastError = ""
			}
		}
	}

	if t.LastError != "" {
		rl.DrawText(t.LastError, x, y, r.Theme.FontSize, r.Theme.ErrorColor)
	}
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
