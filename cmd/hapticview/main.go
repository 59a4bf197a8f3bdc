// Haptic surface viewer - drives a simulated probe with the mouse and shows
// the surface, the computed force and the live tunables.
//
// Usage: go run ./cmd/hapticview [-config path]
//
// Mouse over the surface moves the probe, the wheel raises and lowers it,
// shift+wheel zooms, right-drag pans, space requests force, B holds the
// button, R resets the view.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log/slog"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/touchfield/camera"
	"github.com/pthm-cable/touchfield/config"
	"github.com/pthm-cable/touchfield/device"
	"github.com/pthm-cable/touchfield/haptics"
	"github.com/pthm-cable/touchfield/mip"
	"github.com/pthm-cable/touchfield/service"
	"github.com/pthm-cable/touchfield/telemetry"
	"github.com/pthm-cable/touchfield/ui"
)

const (
	panelWidth = 300
	probeStep  = 0.005
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	dev := device.NewSimulated()
	svc, err := service.New(cfg, service.Options{Device: dev, OutputDir: *outputDir, Logger: logger})
	if err != nil {
		slog.Error("failed to start haptic service", "error", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	defer func() {
		cancel()
		svc.Close()
	}()

	width, height := int32(cfg.Viewer.Width), int32(cfg.Viewer.Height)
	rl.SetConfigFlags(rl.FlagWindowResizable)
	rl.InitWindow(width, height, "Haptic Surface")
	defer rl.CloseWindow()
	rl.SetTargetFPS(int32(cfg.Viewer.TargetFPS))

	cam := camera.New(float32(width-panelWidth), float32(height))
	hud := ui.NewHUD(int32(width-panelWidth), 0, panelWidth, float32(cfg.Loop.MaxForce))
	tunables := ui.NewTunablesPanel(svc.Params, int32(width-panelWidth), 0, panelWidth)
	frames := telemetry.NewPerfCollector(60)

	view := newSurfaceView(svc.Texture())
	defer view.Unload()

	amplitude := float32(cfg.Terrain.Amplitude)
	if amplitude <= 0 {
		amplitude = 1
	}
	probeZ := 0.05
	probeU, probeV := 0.5, 0.5

	for !rl.WindowShouldClose() {
		frames.RecordFrame()

		if rl.IsWindowResized() {
			width, height = int32(rl.GetScreenWidth()), int32(rl.GetScreenHeight())
			cam.Resize(float32(width-panelWidth), float32(height))
			hud = ui.NewHUD(width-panelWidth, 0, panelWidth, float32(cfg.Loop.MaxForce))
			tunables = ui.NewTunablesPanel(svc.Params, width-panelWidth, 0, panelWidth)
		}

		// Input
		mouse := rl.GetMousePosition()
		overView := mouse.X < float32(width-panelWidth)
		wheel := rl.GetMouseWheelMove()
		shift := rl.IsKeyDown(rl.KeyLeftShift) || rl.IsKeyDown(rl.KeyRightShift)
		if overView && wheel != 0 {
			if shift {
				cam.ZoomAt(mouse.X, mouse.Y, 1+0.1*wheel)
			} else {
				probeZ += float64(wheel) * probeStep
			}
		}
		if rl.IsMouseButtonDown(rl.MouseButtonRight) {
			d := rl.GetMouseDelta()
			cam.Pan(-d.X, -d.Y)
		}
		if rl.IsKeyPressed(rl.KeyR) {
			cam.Reset()
		}
		if rl.IsKeyPressed(rl.KeySpace) {
			svc.Params.ForceRequested.Store(!svc.Params.ForceRequested.Load())
		}
		dev.SetButton(cfg.Loop.ForceButton, rl.IsKeyDown(rl.KeyB))

		if overView && cam.Contains(mouse.X, mouse.Y) {
			u, v := cam.ScreenToUV(mouse.X, mouse.Y)
			probeU, probeV = float64(u), float64(v)
		}
		set := svc.Params.Settings()
		dev.SetPosition(haptics.DevicePosition(set, probeU, probeV, probeZ))

		view.Sync(svc.Texture(), amplitude)
		tel := svc.Loop.Telemetry.Load()

		rl.BeginDrawing()
		rl.ClearBackground(rl.Color{R: 12, G: 14, B: 18, A: 255})

		view.Draw(cam)
		drawProbe(cam, probeU, probeV, tel, float32(cfg.Loop.MaxForce))

		rl.DrawText(fmt.Sprintf("probe z %+.3f  zoom %.1fx", probeZ, cam.Zoom), 10, 10, 16, rl.LightGray)
		hud.DrawControls(height, "wheel: probe z | shift+wheel: zoom | right-drag: pan | space: force | B: button | R: reset")

		y := hud.Draw(ui.HUDData{
			Telemetry: tel,
			Frame:     frames.Stats(),
			MaxForce:  float32(cfg.Loop.MaxForce),
			Dropped:   svc.Loop.Telemetry.Dropped(),
		})
		tunables.SetY(y + 8)
		tunables.Draw()

		rl.EndDrawing()
	}
}

// surfaceView keeps a GPU texture in step with the published height texture.
type surfaceView struct {
	src     *mip.HeightTexture
	pixels  []color.RGBA
	texture rl.Texture2D
}

func newSurfaceView(tex *mip.HeightTexture) *surfaceView {
	img := rl.GenImageColor(tex.W, tex.H, rl.Black)
	v := &surfaceView{texture: rl.LoadTextureFromImage(img)}
	rl.UnloadImage(img)
	return v
}

// Sync uploads tex when it differs from the last upload.
func (v *surfaceView) Sync(tex *mip.HeightTexture, amplitude float32) {
	if tex == nil || tex == v.src {
		return
	}
	if tex.W != int(v.texture.Width) || tex.H != int(v.texture.Height) {
		rl.UnloadTexture(v.texture)
		img := rl.GenImageColor(tex.W, tex.H, rl.Black)
		v.texture = rl.LoadTextureFromImage(img)
		rl.UnloadImage(img)
	}
	v.pixels = ui.HeightPixels(v.pixels, *tex, amplitude)
	rl.UpdateTexture(v.texture, v.pixels)
	v.src = tex
}

func (v *surfaceView) Draw(cam *camera.Camera) {
	x, y, w, h := cam.SquareRect()
	rl.DrawTexturePro(
		v.texture,
		rl.Rectangle{X: 0, Y: 0, Width: float32(v.texture.Width), Height: float32(v.texture.Height)},
		rl.Rectangle{X: x, Y: y, Width: w, Height: h},
		rl.Vector2{X: 0, Y: 0},
		0,
		rl.White,
	)
	rl.DrawRectangleLines(int32(x), int32(y), int32(w), int32(h), rl.DarkGray)
}

func (v *surfaceView) Unload() {
	rl.UnloadTexture(v.texture)
}

// drawProbe marks the probe and draws the lateral force as an arrow. The
// marker turns red while force output is armed.
func drawProbe(cam *camera.Camera, u, v float64, tel haptics.Telemetry, maxForce float32) {
	sx, sy := cam.UVToScreen(float32(u), float32(v))
	c := rl.SkyBlue
	if tel.State == haptics.ForceActive {
		c = rl.Red
	}
	radius := float32(6)
	if tel.Locked {
		radius = 9
	}
	rl.DrawCircleLines(int32(sx), int32(sy), radius, c)

	if maxForce <= 0 {
		maxForce = 1
	}
	const arrowLen = 60
	ex := sx + tel.Force[0]/maxForce*arrowLen
	ey := sy + tel.Force[1]/maxForce*arrowLen
	rl.DrawLineEx(rl.Vector2{X: sx, Y: sy}, rl.Vector2{X: ex, Y: ey}, 2, c)
}
