package integrate

import (
	"iter"

	"github.com/pthm-cable/pathviz/geom"
	"github.com/pthm-cable/pathviz/schedule"
	"github.com/pthm-cable/pathviz/vecfield"
)

// Method selects how a batch of particles is integrated.
type Method string

const (
	MethodODE         Method = "ode"
	MethodSDE         Method = "sde"
	MethodMarginalSDE Method = "marginal_sde"
)

// Batch describes a set of particles to integrate with one provider.
// Noise must hold one Increments per start for the SDE methods; Steps is
// ignored for them.
type Batch struct {
	Method    Method
	Provider  vecfield.Provider
	Diffusion schedule.Diffusion
	Starts    []geom.Vec2
	Noise     []Increments
	Steps     int
	Domain    geom.Rect
}

// Len returns the number of particles.
func (b Batch) Len() int { return len(b.Starts) }

// One integrates particle i.
func (b Batch) One(i int) Trajectory {
	switch b.Method {
	case MethodSDE:
		return SDE(b.Provider, b.Diffusion, b.Starts[i], b.Noise[i], b.Domain)
	case MethodMarginalSDE:
		if sp, ok := b.Provider.(ScoredProvider); ok {
			return MarginalSDE(sp, b.Diffusion, b.Starts[i], b.Noise[i], b.Domain)
		}
		return SDE(b.Provider, b.Diffusion, b.Starts[i], b.Noise[i], b.Domain)
	default:
		return ODE(b.Provider, b.Starts[i], b.Steps, b.Domain)
	}
}

// All yields the trajectories one particle at a time. The sequence is lazy
// and can be restarted; each pass recomputes from the starts.
func (b Batch) All() iter.Seq[Trajectory] {
	return func(yield func(Trajectory) bool) {
		for i := range b.Starts {
			if !yield(b.One(i)) {
				return
			}
		}
	}
}

// Run integrates every particle eagerly.
func (b Batch) Run() []Trajectory {
	out := make([]Trajectory, 0, len(b.Starts))
	for tr := range b.All() {
		out = append(out, tr)
	}
	return out
}
