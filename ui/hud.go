package ui

import (
	"fmt"
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/touchfield/haptics"
	"github.com/pthm-cable/touchfield/telemetry"
)

// HUDData holds everything the telemetry panel displays.
type HUDData struct {
	Telemetry haptics.Telemetry
	Frame     telemetry.PerfStats
	MaxForce  float32
	Dropped   uint64 // Telemetry updates lost to lock contention
}

// ForceMagnitude returns |Telemetry.Force|.
func (d HUDData) ForceMagnitude() float32 {
	f := d.Telemetry.Force
	return float32(math.Sqrt(float64(f[0]*f[0] + f[1]*f[1] + f[2]*f[2])))
}

func hud(data any) HUDData { return data.(HUDData) }

// TelemetrySections describes the telemetry panel.
func TelemetrySections(maxForce float32) []SectionDescriptor {
	if maxForce <= 0 {
		maxForce = 1
	}
	forceRng := FieldRange{Min: -maxForce, Max: maxForce}
	component := func(label string, i int) FieldDescriptor {
		return FieldDescriptor{
			ID: "force_" + label, Label: label, Widget: WidgetCenteredBar, Range: forceRng,
			Getter: func(d any) float32 { return hud(d).Telemetry.Force[i] },
		}
	}
	return []SectionDescriptor{
		{
			ID:    "device",
			Title: "Device",
			Fields: []FieldDescriptor{
				{ID: "state", Label: "State", Widget: WidgetText, TextGetter: func(d any) string {
					return hud(d).Telemetry.State.String()
				}},
				{ID: "position", Label: "Probe", Widget: WidgetText, TextGetter: func(d any) string {
					p := hud(d).Telemetry.Position
					return fmt.Sprintf("%+.3f %+.3f %+.3f", p[0], p[1], p[2])
				}},
				{ID: "button", Label: "Button", Widget: WidgetText, TextGetter: func(d any) string {
					if hud(d).Telemetry.Button {
						return "down"
					}
					return "up"
				}},
			},
		},
		{
			ID:    "contact",
			Title: "Contact",
			Fields: []FieldDescriptor{
				{ID: "height", Label: "Height", Widget: WidgetText, TextGetter: func(d any) string {
					h := hud(d).Telemetry.Height
					if math.IsInf(h, 0) || math.IsNaN(h) {
						return "-"
					}
					return fmt.Sprintf("%+.4f", h)
				}},
				{ID: "locked", Label: "Locked", Widget: WidgetText, TextGetter: func(d any) string {
					return fmt.Sprintf("%t", hud(d).Telemetry.Locked)
				}},
				{ID: "magnitude", Label: "|F|", Widget: WidgetBar, Range: FieldRange{Max: maxForce},
					Getter: func(d any) float32 { return hud(d).ForceMagnitude() }},
				component("Fx", 0),
				component("Fy", 1),
				component("Fz", 2),
			},
		},
		{
			ID:    "loop",
			Title: "Loop",
			Fields: []FieldDescriptor{
				{ID: "ticks", Label: "Ticks", Widget: WidgetText, TextGetter: func(d any) string {
					return fmt.Sprintf("%d", hud(d).Telemetry.Ticks)
				}},
				{ID: "clamped", Label: "Clamped", Widget: WidgetText, TextGetter: func(d any) string {
					return fmt.Sprintf("%d", hud(d).Telemetry.Clamped)
				}},
				{ID: "skipped", Label: "Skipped", Widget: WidgetText, TextGetter: func(d any) string {
					return fmt.Sprintf("%d", hud(d).Telemetry.Skipped)
				}},
				{ID: "swaps", Label: "Swaps", Widget: WidgetText, TextGetter: func(d any) string {
					return fmt.Sprintf("%d", hud(d).Telemetry.Swaps)
				}},
				{ID: "dropped", Label: "Dropped", Widget: WidgetText, TextGetter: func(d any) string {
					return fmt.Sprintf("%d", hud(d).Dropped)
				}},
				{ID: "fps", Label: "FPS", Widget: WidgetText, Format: "%.0f",
					Getter: func(d any) float32 { return float32(hud(d).Frame.FPS) }},
			},
		},
	}
}

// HUD renders the telemetry panel.
type HUD struct {
	renderer *Renderer
	sections []SectionDescriptor
	x, y     int32
	width    int32
}

// NewHUD creates a telemetry panel at (x, y).
func NewHUD(x, y, width int32, maxForce float32) *HUD {
	return &HUD{
		renderer: NewRenderer(),
		sections: TelemetrySections(maxForce),
		x:        x,
		y:        y,
		width:    width,
	}
}

// Draw renders the panel and returns the Y below it.
func (h *HUD) Draw(data HUDData) int32 {
	r := h.renderer
	pad := r.Theme.Padding
	height := h.height()
	r.DrawPanel(h.x, h.y, h.width, height)

	y := h.y + pad
	for _, sd := range h.sections {
		y = r.DrawSection(h.x+pad, y, sd, data, h.width-pad*2)
	}
	return h.y + height
}

func (h *HUD) height() int32 {
	t := h.renderer.Theme
	var lines int32
	for _, sd := range h.sections {
		lines += int32(len(sd.Fields)) + 1
	}
	return lines*(t.LineHeight+2) + t.Padding*2 + int32(len(h.sections))*4
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}
