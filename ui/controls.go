package ui

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
)

// Change marks which controls the user touched this frame.
type Change uint16

const (
	ChangeTime Change = 1 << iota
	ChangeSteps
	ChangeNoise
	ChangeDiffusion
	ChangeMethod
	ChangeMode
	ChangeResetView
	ChangeCancel
)

// Controls is the state behind the control panel.
type Controls struct {
	Time      float32 // in [0, 1]
	Animating bool
	Speed     float32 // time units per second

	Steps        int
	DiffusionMax float32

	Noise     int // index into ControlsPanel.NoiseNames
	Diffusion int
	Method    int
	Marginal  bool
}

// Advance moves time forward by dt seconds when animating, looping back to
// zero past the end. It reports whether time changed.
func (c *Controls) Advance(dt float32) bool {
	if !c.Animating || dt <= 0 {
		return false
	}
	c.Time += dt * c.Speed
	if c.Time > 1 {
		c.Time = 0
	}
	return true
}

// Cycle steps index i by delta through n choices, wrapping at both ends.
func Cycle(i, n, delta int) int {
	if n <= 0 {
		return 0
	}
	i = (i + delta) % n
	if i < 0 {
		i += n
	}
	return i
}

// ControlsPanel draws sliders and buttons for Controls.
type ControlsPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32

	NoiseNames     []string
	DiffusionNames []string
	MethodNames    []string
	MaxSteps       int
	MaxDiffusion   float32
}

// NewControlsPanel creates a panel at (x, y).
func NewControlsPanel(x, y, width int32) *ControlsPanel {
	return &ControlsPanel{
		renderer:     NewRenderer(),
		x:            x,
		y:            y,
		width:        width,
		MaxSteps:     500,
		MaxDiffusion: 3,
	}
}

// SetPosition updates the panel position.
func (p *ControlsPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Contains reports whether a screen point lies over the panel.
func (p *ControlsPanel) Contains(x, y float32) bool {
	return x >= float32(p.x) && x <= float32(p.x+p.width) && y >= float32(p.y) && y <= float32(p.y+p.height())
}

func (p *ControlsPanel) height() int32 {
	return 410
}

// Draw renders the panel, applies user input to c and returns what changed.
func (p *ControlsPanel) Draw(c *Controls) Change {
	r := p.renderer
	pad := r.Theme.Padding
	r.DrawPanel(p.x, p.y, p.width, p.height())

	x := float32(p.x + pad)
	y := p.y + pad
	sliderW := float32(p.width - 2*pad - 50)
	var changed Change

	y = r.DrawSectionHeader(p.x+pad, y, "Path")

	// Time
	y = r.DrawLabel(p.x+pad, y, "Time t")
	t := gui.SliderBar(rl.Rectangle{X: x, Y: float32(y), Width: sliderW, Height: 18}, "", "", c.Time, 0, 1)
	rl.DrawText(fmt.Sprintf("%.2f", c.Time), int32(x+sliderW+6), y+3, r.Theme.FontSize, r.Theme.ValueColor)
	if t != c.Time {
		c.Time = t
		changed |= ChangeTime
	}
	y += 26

	if gui.Button(rl.Rectangle{X: x, Y: float32(y), Width: 90, Height: 24}, toggleText(c.Animating, "Stop", "Animate")) {
		c.Animating = !c.Animating
	}
	if gui.Button(rl.Rectangle{X: x + 100, Y: float32(y), Width: 90, Height: 24}, toggleText(c.Marginal, "Marginal", "Conditional")) {
		c.Marginal = !c.Marginal
		changed |= ChangeMode
	}
	y += 34

	// Schedules
	y = r.DrawSectionHeader(p.x+pad, y, "Schedules")
	if d := p.chooser(&y, "Noise", p.NoiseNames, c.Noise); d != 0 {
		c.Noise = Cycle(c.Noise, len(p.NoiseNames), d)
		changed |= ChangeNoise
	}
	if d := p.chooser(&y, "Diffusion", p.DiffusionNames, c.Diffusion); d != 0 {
		c.Diffusion = Cycle(c.Diffusion, len(p.DiffusionNames), d)
		changed |= ChangeDiffusion
	}

	y = r.DrawLabel(p.x+pad, y, "Diffusion max")
	dm := gui.SliderBar(rl.Rectangle{X: x, Y: float32(y), Width: sliderW, Height: 18}, "", "", c.DiffusionMax, 0, p.MaxDiffusion)
	rl.DrawText(fmt.Sprintf("%.2f", c.DiffusionMax), int32(x+sliderW+6), y+3, r.Theme.FontSize, r.Theme.ValueColor)
	if dm != c.DiffusionMax {
		c.DiffusionMax = dm
		changed |= ChangeDiffusion
	}
	y += 26

	// Integration
	y = r.DrawSectionHeader(p.x+pad, y, "Integration")
	if d := p.chooser(&y, "Method", p.MethodNames, c.Method); d != 0 {
		c.Method = Cycle(c.Method, len(p.MethodNames), d)
		changed |= ChangeMethod
	}
	y = r.DrawLabel(p.x+pad, y, "Steps")
	steps := gui.SliderBar(rl.Rectangle{X: x, Y: float32(y), Width: sliderW, Height: 18}, "", "", float32(c.Steps), 1, float32(p.MaxSteps))
	rl.DrawText(fmt.Sprintf("%d", c.Steps), int32(x+sliderW+6), y+3, r.Theme.FontSize, r.Theme.ValueColor)
	if s := int(steps + 0.5); s != c.Steps {
		c.Steps = s
		changed |= ChangeSteps
	}
	y += 34

	if gui.Button(rl.Rectangle{X: x, Y: float32(y), Width: 90, Height: 24}, "Reset View") {
		changed |= ChangeResetView
	}
	if gui.Button(rl.Rectangle{X: x + 100, Y: float32(y), Width: 90, Height: 24}, "Cancel") {
		changed |= ChangeCancel
	}

	return changed
}

// chooser draws "< name >" buttons and returns -1, +1 or 0.
func (p *ControlsPanel) chooser(y *int32, label string, names []string, i int) int {
	r := p.renderer
	x := float32(p.x + r.Theme.Padding)
	name := ""
	if i >= 0 && i < len(names) {
		name = names[i]
	}
	rl.DrawText(label+":", int32(x), *y+5, r.Theme.FontSize, r.Theme.LabelColor)
	bx := x + float32(r.Theme.LabelWidth)
	d := 0
	if gui.Button(rl.Rectangle{X: bx, Y: float32(*y), Width: 22, Height: 22}, "<") {
		d = -1
	}
	rl.DrawText(name, int32(bx)+28, *y+5, r.Theme.FontSize, r.Theme.ValueColor)
	if gui.Button(rl.Rectangle{X: float32(p.x+p.width-r.Theme.Padding) - 22, Y: float32(*y), Width: 22, Height: 22}, ">") {
		d = 1
	}
	*y += 28
	return d
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
