// Package integrate advances points along drift fields from t=0 to t=1, with
// explicit Euler for the ODE and Euler–Maruyama for the SDE variants.
//
// Every function here is pure: trajectories depend only on their arguments,
// so a stored trajectory can be replayed at any time index without being
// recomputed.
package integrate

import (
	"slices"

	"github.com/pthm-cable/pathviz/geom"
	"github.com/pthm-cable/pathviz/schedule"
	"github.com/pthm-cable/pathviz/vecfield"
)

// Trajectory is the time-indexed path of one particle. When Truncated is set
// the particle left the domain and Points is shorter than the step count.
type Trajectory struct {
	Points    []geom.Vec2
	Times     []float64
	Truncated bool
}

// Len returns the number of realized points.
func (tr Trajectory) Len() int { return len(tr.Points) }

// End returns the last realized point.
func (tr Trajectory) End() geom.Vec2 {
	if len(tr.Points) == 0 {
		return geom.Vec2{}
	}
	return tr.Points[len(tr.Points)-1]
}

// ScoredProvider is a drift that also exposes its score.
type ScoredProvider interface {
	vecfield.Provider
	vecfield.Scorer
}

// stepper returns the increment applied at step k from x at time t.
type stepper func(k int, x geom.Vec2, t, dt float64) geom.Vec2

func run(x0 geom.Vec2, steps int, domain geom.Rect, step stepper) Trajectory {
	if steps < 1 {
		return Trajectory{Points: []geom.Vec2{x0}, Times: []float64{0}}
	}
	tr := Trajectory{
		Points: make([]geom.Vec2, 1, steps+1),
		Times:  make([]float64, 1, steps+1),
	}
	tr.Points[0] = x0

	dt := 1 / float64(steps)
	x := x0
	for k := 0; k < steps; k++ {
		t := float64(k) * dt
		next := x.Add(step(k, x, t, dt))
		if !next.IsFinite() || !domain.Contains(next) {
			tr.Truncated = true
			return tr
		}
		x = next
		tr.Points = append(tr.Points, x)
		tr.Times = append(tr.Times, float64(k+1)*dt)
	}
	return tr
}

// ODE integrates dx = u(x, t)·dt with explicit Euler.
func ODE(p vecfield.Provider, x0 geom.Vec2, steps int, domain geom.Rect) Trajectory {
	return run(x0, steps, domain, func(_ int, x geom.Vec2, t, dt float64) geom.Vec2 {
		return p.Drift(x, t).Scale(dt)
	})
}

// SDE integrates dx = u(x, t)·dt + σ(t)·dW with Euler–Maruyama. The step
// count is len(noise).
func SDE(p vecfield.Provider, d schedule.Diffusion, x0 geom.Vec2, noise Increments, domain geom.Rect) Trajectory {
	return run(x0, len(noise), domain, func(k int, x geom.Vec2, t, dt float64) geom.Vec2 {
		return p.Drift(x, t).Scale(dt).Add(noise[k].Scale(d.Sigma(t)))
	})
}

// MaxScoreGain bounds σ²·dt/(2v) in MarginalSDE, where v is the smallest
// variance the score divides by. Past 1 an explicit step overshoots the mode.
const MaxScoreGain = 0.5

// scoreVariance is implemented by scores of the form -(x - μ)/v.
type scoreVariance interface {
	ScoreVariance(t float64) float64
}

// MarginalSDE is SDE with the score correction: the drift becomes
// u(x, t) + σ(t)²/2·∇log p_t(x), which keeps the path's marginals. When the
// provider reports its score variance, the correction's step gain is capped
// at MaxScoreGain so a collapsing β cannot throw particles out of the domain.
func MarginalSDE(p ScoredProvider, d schedule.Diffusion, x0 geom.Vec2, noise Increments, domain geom.Rect) Trajectory {
	sv, bounded := p.(scoreVariance)
	return run(x0, len(noise), domain, func(k int, x geom.Vec2, t, dt float64) geom.Vec2 {
		sigma := d.Sigma(t)
		gain := sigma * sigma * dt / 2
		if bounded {
			gain = min(gain, MaxScoreGain*sv.ScoreVariance(t))
		}
		step := p.Drift(x, t).Scale(dt).Add(p.Score(x, t).Scale(gain))
		return step.Add(noise[k].Scale(sigma))
	})
}

// Propagate moves samples drawn at t=0 to time t on the conditional path
// toward z in closed form: x(t) = α(t)·z + β(t)·sample. The result is written
// into dst (grown as needed) and returned.
func Propagate(s schedule.Noise, z geom.Vec2, samples []geom.Vec2, t float64, dst []geom.Vec2) []geom.Vec2 {
	dst = slices.Grow(dst[:0], len(samples))[:len(samples)]
	a, b := s.Alpha(t), s.Beta(t)
	az := z.Scale(a)
	for i, e := range samples {
		dst[i] = az.Add(e.Scale(b))
	}
	return dst
}

// PathAt returns the trajectory position at time t, linearly interpolated
// between steps. Times past a truncated end return the last realized point.
func PathAt(tr Trajectory, t float64) geom.Vec2 {
	n := len(tr.Points)
	if n == 0 {
		return geom.Vec2{}
	}
	if t <= tr.Times[0] {
		return tr.Points[0]
	}
	if t >= tr.Times[n-1] {
		return tr.Points[n-1]
	}
	i, found := slices.BinarySearch(tr.Times, t)
	if found {
		return tr.Points[i]
	}
	// Times[i-1] < t < Times[i]
	t0, t1 := tr.Times[i-1], tr.Times[i]
	f := (t - t0) / (t1 - t0)
	return tr.Points[i-1].Add(tr.Points[i].Sub(tr.Points[i-1]).Scale(f))
}
