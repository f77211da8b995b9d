package viewer

import (
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/pathviz/geom"
	"github.com/pthm-cable/pathviz/view"
)

// hitRadius is how close, in pixels, a click must be to grab a handle.
const hitRadius = 12

type dragKind int

const (
	dragNone dragKind = iota
	dragDataPoint
	dragComponent
	dragPan
)

type dragState struct {
	kind  dragKind
	index int  // component index for dragComponent
	moved bool // the frame was panned and needs a Reframe on release
}

// pickHandle returns what a press at pixel (mx, my) grabs: the data point in
// conditional mode, the nearest mixture mean in marginal mode.
func pickHandle(vw *view.View, mx, my float64) (dragKind, int) {
	s := vw.Settings()
	frame := vw.Frame()
	near := func(p geom.Vec2) bool {
		px, py := frame.Forward(p)
		return geom.V(px-mx, py-my).Len() <= hitRadius
	}

	if s.Mode == view.Marginal && s.Mixture != nil && s.Mixture.Len() > 0 {
		i := s.Mixture.Nearest(frame.Inverse(mx, my))
		if near(s.Mixture.Component(i).Mean) {
			return dragComponent, i
		}
		return dragNone, 0
	}
	if near(s.DataPoint) {
		return dragDataPoint, 0
	}
	return dragNone, 0
}

// handleInput processes keyboard and mouse input.
func (v *Viewer) handleInput() {
	v.handleResize()

	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}
	if rl.IsKeyPressed(rl.KeyEscape) {
		v.drag = dragState{}
		v.view.Cancel()
	}
	if rl.IsKeyPressed(rl.KeySpace) {
		v.controls.Animating = !v.controls.Animating
	}

	// Frame stepping with , and .
	step := float32(1) / float32(max(v.cfg.View.Frames-1, 1))
	if rl.IsKeyPressed(rl.KeyComma) {
		v.controls.Time = max(v.controls.Time-step, 0)
	}
	if rl.IsKeyPressed(rl.KeyPeriod) {
		v.controls.Time = min(v.controls.Time+step, 1)
	}

	if key := rl.GetKeyPressed(); key != 0 {
		if id, on, ok := v.layers.HandleKeyPress(key); ok {
			slog.Debug("layer_toggled", "layer", string(id), "enabled", on)
		}
	}

	if rl.IsKeyPressed(rl.KeyL) {
		v.toggleLearned()
	}
	if rl.IsKeyPressed(rl.KeyS) {
		if err := v.snapshot(); err != nil {
			slog.Warn("snapshot_failed", "error", err)
		}
	}

	v.handleMouse()
}

// handleResize checks for window resize and propagates new dimensions.
func (v *Viewer) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	w := float32(rl.GetScreenWidth())
	h := float32(rl.GetScreenHeight())
	if w == v.screenWidth && h == v.screenHeight {
		return
	}
	v.screenWidth = w
	v.screenHeight = h
	v.view.Resize(float64(w), float64(h))
	v.layout()
}

// handleMouse drags handles with the left button, pans with the right and
// zooms with the wheel. A and Delete edit the mixture under the cursor.
func (v *Viewer) handleMouse() {
	mouse := rl.GetMousePosition()
	mx, my := float64(mouse.X), float64(mouse.Y)
	frame := v.view.Frame()
	overPanel := v.panel.Contains(mouse.X, mouse.Y)

	if rl.IsMouseButtonPressed(rl.MouseButtonLeft) && !overPanel {
		v.drag.kind, v.drag.index = pickHandle(v.view, mx, my)
	}
	if rl.IsMouseButtonPressed(rl.MouseButtonRight) && !overPanel {
		v.drag.kind = dragPan
	}

	switch v.drag.kind {
	case dragDataPoint:
		v.view.SetDataPoint(frame.Inverse(mx, my))
	case dragComponent:
		if d := rl.GetMouseDelta(); d.X == 0 && d.Y == 0 {
			break
		}
		if err := moveComponent(v.view, v.drag.index, frame.Inverse(mx, my)); err != nil {
			slog.Warn("mixture_edit_rejected", "error", err)
			v.drag.kind = dragNone
		}
	case dragPan:
		if d := rl.GetMouseDelta(); d.X != 0 || d.Y != 0 {
			frame.Pan(float64(d.X), float64(d.Y))
			v.drag.moved = true
		}
	}

	if rl.IsMouseButtonReleased(rl.MouseButtonLeft) || rl.IsMouseButtonReleased(rl.MouseButtonRight) {
		if v.drag.moved {
			v.view.Reframe()
		}
		v.drag = dragState{}
	}

	if wheel := rl.GetMouseWheelMove(); wheel != 0 && !overPanel {
		frame.ZoomBy(1 + float64(wheel)*0.1)
		v.view.Reframe()
	}
	if rl.IsKeyPressed(rl.KeyHome) {
		frame.Reset()
		v.view.Reframe()
	}

	if overPanel {
		return
	}
	if rl.IsKeyPressed(rl.KeyA) {
		if err := addComponent(v.view, frame.Inverse(mx, my)); err != nil {
			slog.Warn("mixture_edit_rejected", "error", err)
		} else {
			v.controls.Marginal = true
		}
	}
	if rl.IsKeyPressed(rl.KeyDelete) || rl.IsKeyPressed(rl.KeyBackspace) {
		if err := removeComponent(v.view, frame.Inverse(mx, my)); err != nil {
			slog.Warn("mixture_edit_rejected", "error", err)
		}
	}
}

// toggleLearned switches between the closed-form and the loaded learned drift.
func (v *Viewer) toggleLearned() {
	if v.opts.Learned == nil {
		slog.Info("learned_drift_unavailable")
		return
	}
	if v.view.Settings().Learned != nil {
		v.view.SetLearned(nil)
	} else {
		v.view.SetLearned(v.opts.Learned)
	}
}
