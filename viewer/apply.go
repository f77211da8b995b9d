package viewer

import (
	"fmt"

	"github.com/pthm-cable/pathviz/geom"
	"github.com/pthm-cable/pathviz/mixture"
	"github.com/pthm-cable/pathviz/schedule"
	"github.com/pthm-cable/pathviz/ui"
	"github.com/pthm-cable/pathviz/view"
)

// newComponentVariance is the isotropic variance of components added with A.
const newComponentVariance = 0.1

// apply pushes panel changes into the view.
func (v *Viewer) apply(ch ui.Change) error {
	return applyControls(v.view, v.controls, ch, v.cfg.Schedule.NoiseParams)
}

// applyControls maps the changed controls onto view setters. Only the inputs
// flagged in ch are touched, so unrelated precomputed work survives.
func applyControls(vw *view.View, c ui.Controls, ch ui.Change, params schedule.NoiseParams) error {
	if ch&ui.ChangeCancel != 0 {
		vw.Cancel()
	}
	if ch&ui.ChangeResetView != 0 {
		vw.Frame().Reset()
		vw.Reframe()
	}
	if ch&ui.ChangeMode != 0 {
		if c.Marginal {
			vw.SetMode(view.Marginal)
		} else {
			vw.SetMode(view.Conditional)
		}
	}
	if ch&ui.ChangeNoise != 0 {
		n, err := schedule.NewNoise(pick(schedule.NoiseKinds, c.Noise), params)
		if err != nil {
			return fmt.Errorf("noise schedule: %w", err)
		}
		vw.SetNoise(n)
	}
	if ch&ui.ChangeDiffusion != 0 {
		d, err := schedule.NewDiffusion(pick(schedule.DiffusionKinds, c.Diffusion), float64(c.DiffusionMax))
		if err != nil {
			return fmt.Errorf("diffusion schedule: %w", err)
		}
		vw.SetDiffusion(d)
	}
	if ch&ui.ChangeMethod != 0 {
		vw.SetMethod(pick(Methods, c.Method))
	}
	if ch&ui.ChangeSteps != 0 {
		vw.SetSteps(c.Steps)
	}
	return nil
}

// pick returns choices[i], or the first choice when i is out of range.
func pick[T any](choices []T, i int) T {
	if i < 0 || i >= len(choices) {
		i = 0
	}
	return choices[i]
}

// addComponent places a new isotropic component at p. In conditional mode the
// view switches to marginal so the edit is visible.
func addComponent(vw *view.View, p geom.Vec2) error {
	err := vw.EditMixture(func(m *mixture.Mixture) error {
		return m.Add(mixture.Component{
			Mean:   p,
			Weight: 1 / float64(m.Len()+1),
			Cov:    mixture.Isotropic(newComponentVariance),
		})
	})
	if err != nil {
		return err
	}
	vw.SetMode(view.Marginal)
	return nil
}

// removeComponent deletes the component nearest p. The last one stays.
func removeComponent(vw *view.View, p geom.Vec2) error {
	return vw.EditMixture(func(m *mixture.Mixture) error {
		return m.Remove(m.Nearest(p))
	})
}

// moveComponent drags component i to p.
func moveComponent(vw *view.View, i int, p geom.Vec2) error {
	return vw.EditMixture(func(m *mixture.Mixture) error {
		return m.SetMean(i, p)
	})
}
