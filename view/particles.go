package view

import (
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/pathviz/components"
	"github.com/pthm-cable/pathviz/geom"
)

// Propagate moves the particle cloud to time t.
//
// The conditional path has a closed form, α(t)·z + β(t)·ε, so particles are
// placed directly. The marginal path and learned drifts have none; particles
// continue from the last propagation time with Euler steps of the active
// drift, and restart from t=0 when time runs backwards or an input changed.
func (v *View) Propagate(t float64) {
	t = geom.Clamp(t, 0, 1)
	reset := v.resample || !v.hasLast || t < v.lastTime
	if v.resample {
		v.spawn()
	}

	if v.settings.Mode == Marginal || v.settings.Learned != nil {
		if reset {
			v.placeClosedForm(0, true)
			v.lastTime = 0
		}
		v.stepDrift(v.lastTime, t)
	} else {
		v.placeClosedForm(t, reset)
	}
	v.lastTime = t
	v.hasLast = true
}

// LastTime returns the time of the last propagation.
func (v *View) LastTime() (float64, bool) { return v.lastTime, v.hasLast }

// ParticleCount returns the number of live particles.
func (v *View) ParticleCount() int {
	n := 0
	query := v.filter.Query()
	for query.Next() {
		n++
	}
	return n
}

// EachParticle calls fn for each particle's position and trail.
func (v *View) EachParticle(fn func(pos geom.Vec2, trail *components.Trail)) {
	query := v.filter.Query()
	for query.Next() {
		pos, _, trail := query.Get()
		fn(pos.Vec(), trail)
	}
}

// spawn replaces the particle cloud with fresh draws from the current target.
func (v *View) spawn() {
	var toRemove []ecs.Entity
	query := v.filter.Query()
	for query.Next() {
		toRemove = append(toRemove, query.Entity())
	}
	for _, e := range toRemove {
		v.world.RemoveEntity(e)
	}

	_, zs, eps := Starts(v.settings, v.rng, v.opts.Count)
	for i := range zs {
		pos := components.Position{}
		origin := components.Origin{Z: zs[i], Eps: eps[i]}
		trail := components.Trail{}
		v.mapper.NewEntity(&pos, &origin, &trail)
	}
	v.resample = false
	v.hasLast = false
}

// placeClosedForm puts every particle at α(t)·z + β(t)·ε.
func (v *View) placeClosedForm(t float64, reset bool) {
	a, b := v.settings.Noise.Alpha(t), v.settings.Noise.Beta(t)
	query := v.filter.Query()
	for query.Next() {
		pos, origin, trail := query.Get()
		x := origin.Z.Scale(a).Add(origin.Eps.Scale(b))
		pos.X, pos.Y = x.X, x.Y
		if reset {
			trail.Reset()
		}
		trail.Push(x)
	}
}

// stepDrift integrates the active drift from t0 to t1 with steps no
// longer than 1/Steps. Particles with a non-finite update stay put.
func (v *View) stepDrift(t0, t1 float64) {
	if t1 <= t0 {
		return
	}
	n := int(math.Ceil((t1 - t0) * float64(v.settings.Steps)))
	dt := (t1 - t0) / float64(n)

	query := v.filter.Query()
	for query.Next() {
		pos, _, trail := query.Get()
		x := pos.Vec()
		for k := 0; k < n; k++ {
			next := x.Add(v.drift.Drift(x, t0+float64(k)*dt).Scale(dt))
			if !next.IsFinite() {
				break
			}
			x = next
		}
		pos.X, pos.Y = x.X, x.Y
		trail.Push(x)
	}
}
