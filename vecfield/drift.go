// Package vecfield computes drift (velocity) and score fields of probability
// paths, for a single data point or a Gaussian mixture, and samples them onto
// a grid of screen arrows.
package vecfield

import (
	"math"
	"sync/atomic"

	"github.com/pthm-cable/pathviz/geom"
	"github.com/pthm-cable/pathviz/mixture"
	"github.com/pthm-cable/pathviz/schedule"
)

// TimeEpsilon keeps coefficient evaluation away from the singular endpoints.
const TimeEpsilon = 1e-3

// Provider returns the drift u(x, t). Implementations must be safe for
// concurrent use.
type Provider interface {
	Drift(x geom.Vec2, t float64) geom.Vec2
}

// Scorer returns ∇log p_t(x).
type Scorer interface {
	Score(x geom.Vec2, t float64) geom.Vec2
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(x geom.Vec2, t float64) geom.Vec2

func (f ProviderFunc) Drift(x geom.Vec2, t float64) geom.Vec2 { return f(x, t) }

// coeffs holds the schedule terms shared by the drift formulas, evaluated at
// a clamped time.
type coeffs struct {
	alpha  float64
	ratio  float64 // β̇/β with β floored
	data   float64 // α̇ - ratio·α
	betaSq float64
}

func coefficients(s schedule.Noise, t float64) coeffs {
	tc := geom.Clamp(t, TimeEpsilon, 1-TimeEpsilon)
	a := s.Alpha(tc)
	b := math.Max(s.Beta(tc), math.Sqrt(schedule.MinBetaSq))
	r := s.BetaDot(tc) / b
	return coeffs{
		alpha:  a,
		ratio:  r,
		data:   s.AlphaDot(tc) - r*a,
		betaSq: b * b,
	}
}

// Conditional is the drift of the path conditioned on one data point Z:
// u(x, t) = (α̇ - (β̇/β)α)·z + (β̇/β)·x.
type Conditional struct {
	Noise schedule.Noise
	Z     geom.Vec2
}

// NewConditional returns the conditional field toward z.
func NewConditional(s schedule.Noise, z geom.Vec2) Conditional {
	return Conditional{Noise: s, Z: z}
}

func (c Conditional) Drift(x geom.Vec2, t float64) geom.Vec2 {
	k := coefficients(c.Noise, t)
	return c.Z.Scale(k.data).Add(x.Scale(k.ratio))
}

// ScoreVariance returns the floored β² the score divides by at t.
func (c Conditional) ScoreVariance(t float64) float64 {
	return coefficients(c.Noise, t).betaSq
}

// Score is the conditional score -(x - α·z)/β².
func (c Conditional) Score(x geom.Vec2, t float64) geom.Vec2 {
	k := coefficients(c.Noise, t)
	return x.Sub(c.Z.Scale(k.alpha)).Scale(-1 / k.betaSq)
}

// Marginal is the drift of the mixture's marginal path: the conditional drift
// with z replaced by the posterior mean E[z | x_t = x]. Points with no
// component assignment get a zero drift and score.
type Marginal struct {
	Noise   schedule.Noise
	Mixture *mixture.Mixture

	// Last transformed snapshot; grid sampling evaluates many points at one t
	last atomic.Pointer[mixture.Snapshot]
}

// NewMarginal returns the marginal field of m. m is cloned, so later edits to
// the caller's mixture do not affect the field.
func NewMarginal(s schedule.Noise, m *mixture.Mixture) *Marginal {
	return &Marginal{Noise: s, Mixture: m.Clone()}
}

// Snapshot returns the mixture transformed to (clamped) time t.
func (m *Marginal) Snapshot(t float64) mixture.Snapshot {
	tc := geom.Clamp(t, TimeEpsilon, 1-TimeEpsilon)
	if snap := m.last.Load(); snap != nil && snap.T == tc {
		return *snap
	}
	snap := m.Mixture.AtTime(m.Noise, tc)
	m.last.Store(&snap)
	return snap
}

func (m *Marginal) Drift(x geom.Vec2, t float64) geom.Vec2 {
	k := coefficients(m.Noise, t)
	mean, ok := m.Snapshot(t).PosteriorMean(x)
	if !ok {
		return geom.Vec2{}
	}
	return x.Scale(k.ratio).Add(mean.Scale(k.data))
}

// ScoreVariance returns a lower bound on the transformed component variances:
// α²Σ + β²I never drops below β² along any direction.
func (m *Marginal) ScoreVariance(t float64) float64 {
	return coefficients(m.Noise, t).betaSq
}

func (m *Marginal) Score(x geom.Vec2, t float64) geom.Vec2 {
	s, _ := m.Snapshot(t).Score(x)
	return s
}

// ScoreField presents a Scorer as a Provider so the score can be drawn with
// the same arrow sampling as a drift.
type ScoreField struct {
	Scorer Scorer
}

func (s ScoreField) Drift(x geom.Vec2, t float64) geom.Vec2 {
	return s.Scorer.Score(x, t)
}
