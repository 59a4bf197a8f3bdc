// Terminal stand-in for a haptic device: arrow keys move a simulated probe
// over the surface and the computed force is shown next to a shaded height
// map.
//
// Usage: go run ./cmd/hapticterm [-config path] [-log file]
//
// Keys: arrows move (shift = faster), w/s or PgUp/PgDn raise/lower,
// space requests force, b toggles the button, f cycles friction, q quits.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/pthm-cable/touchfield/config"
	"github.com/pthm-cable/touchfield/device"
	"github.com/pthm-cable/touchfield/haptics"
	"github.com/pthm-cable/touchfield/mip"
	"github.com/pthm-cable/touchfield/physics"
	"github.com/pthm-cable/touchfield/service"
	"github.com/pthm-cable/touchfield/ui"
)

// shades from low to high.
var shades = []rune(" .:-=+*#%@")

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logPath := flag.String("log", "", "Write JSON logs to this file (default: discard)")
	flag.Parse()

	var logOut io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.Create(*logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger := slog.New(slog.NewJSONHandler(logOut, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	dev := device.NewSimulated()
	svc, err := service.New(cfg, service.Options{Device: dev, Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start haptic service: %v\n", err)
		os.Exit(1)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	defer func() {
		cancel()
		svc.Close()
	}()

	t := &term{
		screen:    screen,
		svc:       svc,
		dev:       dev,
		button:    cfg.Loop.ForceButton,
		amplitude: float32(cfg.Terrain.Amplitude),
		probe:     probe{U: 0.5, V: 0.5, Z: 0.02},
	}
	t.run()
}

type term struct {
	screen    tcell.Screen
	svc       *service.Service
	dev       *device.Simulated
	button    int
	amplitude float32
	probe     probe
	status    string
}

func (t *term) run() {
	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := t.screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	t.apply()
	for {
		select {
		case ev := <-eventChan:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if !t.handle(ev) {
					return
				}
			case *tcell.EventResize:
				t.screen.Sync()
			}
		case <-ticker.C:
			t.draw()
		}
	}
}

func (t *term) handle(ev *tcell.EventKey) bool {
	params := t.svc.Params
	switch t.probe.handleKey(ev) {
	case actionQuit:
		return false
	case actionToggleForce:
		params.ForceRequested.Store(!params.ForceRequested.Load())
	case actionNextFriction:
		next := ui.NextFrictionMode(physics.FrictionMode(params.FrictionMode.Load()))
		if err := params.Apply(haptics.Update{FrictionMode: &next}); err != nil {
			t.status = err.Error()
		}
	}
	t.apply()
	return true
}

// apply pushes the probe state into the simulated device.
func (t *term) apply() {
	set := t.svc.Params.Settings()
	t.dev.SetPosition(haptics.DevicePosition(set, t.probe.U, t.probe.V, t.probe.Z))
	t.dev.SetButton(t.button, t.probe.Button)
}

func (t *term) draw() {
	s := t.screen
	s.Clear()
	w, h := s.Size()

	mapW := w - 34
	mapH := h - 1
	if mapW > mapH*2 {
		mapW = mapH * 2
	}
	if tex := t.svc.Texture(); tex != nil && mapW > 0 && mapH > 0 {
		t.drawMap(tex, mapW, mapH)
	}

	tel := t.svc.Loop.Telemetry.Load()
	f := tel.Force
	mag := math.Sqrt(float64(f[0]*f[0] + f[1]*f[1] + f[2]*f[2]))
	lines := []string{
		"state    " + tel.State.String(),
		fmt.Sprintf("probe    u %.2f v %.2f", t.probe.U, t.probe.V),
		fmt.Sprintf("         z %+.4f", t.probe.Z),
		fmt.Sprintf("height   %s", formatHeight(tel.Height)),
		fmt.Sprintf("force    %+.2f %+.2f %+.2f", f[0], f[1], f[2]),
		fmt.Sprintf("|F|      %.3f", mag),
		fmt.Sprintf("locked   %t", tel.Locked),
		fmt.Sprintf("button   %t", tel.Button),
		fmt.Sprintf("friction %s", physics.FrictionMode(t.svc.Params.FrictionMode.Load())),
		fmt.Sprintf("ticks    %d", tel.Ticks),
		fmt.Sprintf("clamped  %d", tel.Clamped),
		fmt.Sprintf("skipped  %d", tel.Skipped),
		"",
		"arrows move  w/s height",
		"space force  b button",
		"f friction   q quit",
	}
	x := mapW + 2
	for i, line := range lines {
		drawText(s, x, i, line, tcell.StyleDefault)
	}
	if t.status != "" {
		drawText(s, 0, h-1, t.status, tcell.StyleDefault.Foreground(tcell.ColorRed))
	}
	s.Show()
}

// drawMap renders tex as shaded cells with the probe marked.
func (t *term) drawMap(tex *mip.HeightTexture, mapW, mapH int) {
	for row := 0; row < mapH; row++ {
		ty := row * tex.H / mapH
		for col := 0; col < mapW; col++ {
			tx := col * tex.W / mapW
			hgt := tex.Heights[ty*tex.W+tx]
			c := ui.HeightColor(hgt, t.amplitude)
			style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B)))
			t.screen.SetContent(col, row, shade(hgt, t.amplitude), nil, style)
		}
	}

	px := int(t.probe.U * float64(mapW-1))
	py := int(t.probe.V * float64(mapH-1))
	marker := tcell.StyleDefault.Foreground(tcell.ColorWhite).Reverse(true)
	if t.svc.Loop.State() == haptics.ForceActive {
		marker = tcell.StyleDefault.Foreground(tcell.ColorRed).Reverse(true)
	}
	t.screen.SetContent(px, py, 'o', nil, marker)
}

func shade(h, amplitude float32) rune {
	if h != h {
		return 'x'
	}
	if amplitude <= 0 {
		amplitude = 1
	}
	v := (h/amplitude + 1) / 2
	i := int(v * float32(len(shades)-1))
	if i < 0 {
		i = 0
	}
	if i >= len(shades) {
		i = len(shades) - 1
	}
	return shades[i]
}

func formatHeight(h float64) string {
	if math.IsInf(h, 0) || math.IsNaN(h) {
		return "-"
	}
	return fmt.Sprintf("%+.4f", h)
}

func drawText(s tcell.Screen, x, y int, text string, style tcell.Style) {
	for i, r := range text {
		s.SetContent(x+i, y, r, nil, style)
	}
}
