package viewer

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/pathviz/geom"
	"github.com/pthm-cable/pathviz/renderer"
	"github.com/pthm-cable/pathviz/ui"
	"github.com/pthm-cable/pathviz/view"
)

const legend = "[Space] animate  [,/.] step  [drag] move target  [A/Del] add/remove component  [RMB] pan  [wheel] zoom  [L] learned  [S] snapshot"

// drawPlot draws the enabled layers at the current time.
func (v *Viewer) drawPlot() {
	t := float64(v.controls.Time)
	frame := v.view.Frame()

	if df, ok := v.view.DensityAt(t); ok {
		if v.layers.IsEnabled(ui.LayerDensity) {
			v.density.Update(df.Grid)
			v.density.Draw(v.screenWidth, v.screenHeight)
		}
		if v.layers.IsEnabled(ui.LayerContours) {
			renderer.DrawContours(df.Grid, df.Contours)
		}
	}
	if ff, ok := v.view.FieldAt(t); ok && v.layers.IsEnabled(ui.LayerArrows) {
		renderer.DrawField(ff.Field)
	}
	if v.layers.IsEnabled(ui.LayerTrajectories) {
		renderer.DrawTrajectories(v.view.Trajectories(), frame, t)
	}
	if v.layers.IsEnabled(ui.LayerParticles) {
		renderer.DrawParticles(v.view.EachParticle, frame)
	}

	s := v.view.Settings()
	if s.Mode == view.Marginal || v.layers.IsEnabled(ui.LayerComponents) {
		if s.Mixture != nil {
			comps := s.Mixture.Components()
			means := make([]geom.Vec2, len(comps))
			for i, c := range comps {
				means[i] = c.Mean
			}
			selected := -1
			if v.drag.kind == dragComponent {
				selected = v.drag.index
			}
			renderer.DrawComponents(frame, means, s.Mixture.Weights(), selected)
		}
	}
	if s.Mode == view.Conditional {
		renderer.DrawTarget(frame, s.DataPoint, v.drag.kind == dragDataPoint)
	}
}

// drawUI draws the HUD and panels and returns the panel changes.
func (v *Viewer) drawUI() ui.Change {
	s := v.view.Settings()
	mouse := rl.GetMousePosition()
	cursor := v.view.Frame().Inverse(float64(mouse.X), float64(mouse.Y))

	v.hud.Draw(ui.HUDData{
		Title:     v.cfg.Screen.Title,
		Time:      float64(v.controls.Time),
		Mode:      string(s.Mode),
		Noise:     string(s.Noise.Kind()),
		Diffusion: string(s.Diffusion.Kind()),
		Method:    methodLabel(s),
		Learned:   s.Learned != nil,
		Particles: v.view.ParticleCount(),
		Version:   v.view.Version(),
		FPS:       rl.GetFPS(),
		Cursor:    fmt.Sprintf("x=%.3f y=%.3f", cursor.X, cursor.Y),
	})
	v.hud.DrawControls(int32(v.screenHeight), legend)

	changed := v.panel.Draw(&v.controls)

	x := int32(v.screenWidth) - panelWidth - 10
	v.progress.SetPosition(x, 430)
	y := v.progress.Draw(v.view.Progress())
	v.layersUI.SetPosition(x, y+10)
	v.layersUI.Draw(v.layers)

	if v.layers.IsEnabled(ui.LayerPerf) {
		v.perfUI.Draw(v.perf.Stats())
	}
	return changed
}

// methodLabel names the selected method, and the one it falls back to.
func methodLabel(s view.Settings) string {
	if eff := s.EffectiveMethod(); eff != s.Method {
		return fmt.Sprintf("%s (as %s)", s.Method, eff)
	}
	return string(s.Method)
}
