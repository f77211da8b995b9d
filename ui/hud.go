package ui

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/pathviz/precompute"
	"github.com/pthm-cable/pathviz/telemetry"
	"github.com/pthm-cable/pathviz/view"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title     string
	Time      float64
	Mode      string
	Noise     string
	Diffusion string
	Method    string
	Learned   bool
	Particles int
	Version   uint64
	FPS       int32
	Cursor    string // data coordinates under the mouse
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{renderer: NewRenderer()}
}

// Draw renders the HUD in the top-left corner.
func (h *HUD) Draw(data HUDData) {
	rl.DrawText(data.Title, 10, 10, 20, rl.White)

	drift := "closed form"
	if data.Learned {
		drift = "learned"
	}
	rl.DrawText(
		fmt.Sprintf("t = %.3f | %s | drift: %s", data.Time, data.Mode, drift),
		10, 35, 16, rl.LightGray,
	)
	rl.DrawText(
		fmt.Sprintf("noise: %s | diffusion: %s | %s", data.Noise, data.Diffusion, data.Method),
		10, 55, 16, rl.LightGray,
	)
	rl.DrawText(
		fmt.Sprintf("Particles: %d | Version: %d | FPS: %d", data.Particles, data.Version, data.FPS),
		10, 75, 16, rl.LightGray,
	)
	if data.Cursor != "" {
		rl.DrawText(data.Cursor, 10, 95, 14, rl.Gray)
	}
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// ProgressPanel shows each precompute controller's state.
type ProgressPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewProgressPanel creates a progress panel at (x, y).
func NewProgressPanel(x, y, width int32) *ProgressPanel {
	return &ProgressPanel{renderer: NewRenderer(), x: x, y: y, width: width}
}

// SetPosition updates the panel position.
func (p *ProgressPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders one bar per controller and returns the Y below the panel.
func (p *ProgressPanel) Draw(progress []view.Progress) int32 {
	r := p.renderer
	pad := r.Theme.Padding
	height := pad*2 + r.Theme.LineHeight + 2 + int32(len(progress))*(r.Theme.LineHeight+2)
	r.DrawPanel(p.x, p.y, p.width, height)

	y := r.DrawSectionHeader(p.x+pad, p.y+pad, "Precompute")
	for _, pr := range progress {
		y = r.DrawProgress(p.x+pad, y, pr.Name, pr.Done, pr.Total, pr.State == precompute.Computing, p.width-2*pad)
	}
	return p.y + height
}

// LayersPanel lists the layer toggles with their keys.
type LayersPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewLayersPanel creates a layers panel at (x, y).
func NewLayersPanel(x, y, width int32) *LayersPanel {
	return &LayersPanel{renderer: NewRenderer(), x: x, y: y, width: width}
}

// SetPosition updates the panel position.
func (l *LayersPanel) SetPosition(x, y int32) {
	l.x = x
	l.y = y
}

// Draw renders the panel and returns the Y below it.
func (l *LayersPanel) Draw(layers *LayerRegistry) int32 {
	r := l.renderer
	pad := r.Theme.Padding
	all := layers.All()
	height := pad*2 + r.Theme.LineHeight + 2 + int32(len(all))*r.Theme.LineHeight
	r.DrawPanel(l.x, l.y, l.width, height)

	y := r.DrawSectionHeader(l.x+pad, l.y+pad, "Layers")
	for _, desc := range all {
		l.drawToggle(l.x+pad, y, desc, layers.IsEnabled(desc.ID), l.width-2*pad)
		y += r.Theme.LineHeight
	}
	return l.y + height
}

func (l *LayersPanel) drawToggle(x, y int32, desc LayerDescriptor, enabled bool, width int32) {
	r := l.renderer

	statusColor := rl.Color{R: 80, G: 80, B: 80, A: 255}
	nameColor := r.Theme.LabelColor
	if enabled {
		statusColor = rl.Color{R: 100, G: 200, B: 100, A: 255}
		nameColor = rl.White
	}
	rl.DrawRectangle(x, y+2, 8, 8, statusColor)
	rl.DrawText(desc.Name, x+14, y, r.Theme.FontSize, nameColor)

	if desc.KeyLabel != "" {
		keyText := fmt.Sprintf("[%s]", desc.KeyLabel)
		keyWidth := rl.MeasureText(keyText, r.Theme.FontSize)
		rl.DrawText(keyText, x+width-keyWidth, y, r.Theme.FontSize, rl.Color{R: 150, G: 150, B: 150, A: 255})
	}
}

// PerfPanel renders the frame phase breakdown.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{renderer: NewRenderer(), x: x, y: y}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the frame stage breakdown and per-controller chunk timings.
func (p *PerfPanel) Draw(pr telemetry.Profile) {
	x, y := p.x, p.y

	rl.DrawText("Frame Performance", x, y, 16, rl.White)
	y += 20
	rl.DrawText(fmt.Sprintf("Avg: %s  P95: %s", pr.FrameAvg.Round(time.Microsecond), pr.FrameP95.Round(time.Microsecond)), x, y, 14, rl.Yellow)
	y += 16

	for _, st := range pr.Stages {
		color := rl.LightGray
		if st.Pct > 50 {
			color = rl.Red
		} else if st.Pct > 25 {
			color = rl.Orange
		}
		rl.DrawText(fmt.Sprintf("%-13s %8s %5.1f%%", st.Name, st.Avg.Round(time.Microsecond), st.Pct), x, y, 12, color)
		y += 14
	}

	if len(pr.Chunks) == 0 {
		return
	}
	y += 6
	rl.DrawText("Precompute chunks", x, y, 14, rl.White)
	y += 16
	for _, c := range pr.Chunks {
		rl.DrawText(fmt.Sprintf("%-13s %8s p95 %8s %7.0f f/s", c.Controller, c.Avg.Round(time.Microsecond), c.P95.Round(time.Microsecond), c.FramesPerSec), x, y, 12, rl.LightGray)
		y += 14
	}
}
