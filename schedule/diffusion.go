package schedule

import "math"

// Diffusion is a diffusion coefficient schedule σ(t) with a known upper bound.
// Only the stochastic sampler uses one.
type Diffusion interface {
	Kind() DiffusionKind
	Sigma(t float64) float64
	// Max is the largest value Sigma can return, used for plot scaling.
	Max() float64
}

// Constant is σ(t)=max.
type Constant struct{ MaxSigma float64 }

func (Constant) Kind() DiffusionKind { return DiffusionConstant }
func (c Constant) Sigma(t float64) float64 { return c.MaxSigma }
func (c Constant) Max() float64 { return c.MaxSigma }

// LinearIncreasing is σ(t)=max·t.
type LinearIncreasing struct{ MaxSigma float64 }

func (LinearIncreasing) Kind() DiffusionKind { return DiffusionLinearIncreasing }
func (l LinearIncreasing) Sigma(t float64) float64 { return l.MaxSigma * clampT(t) }
func (l LinearIncreasing) Max() float64 { return l.MaxSigma }

// LinearDecreasing is σ(t)=max·(1-t).
type LinearDecreasing struct{ MaxSigma float64 }

func (LinearDecreasing) Kind() DiffusionKind { return DiffusionLinearDecreasing }
func (l LinearDecreasing) Sigma(t float64) float64 { return l.MaxSigma * (1 - clampT(t)) }
func (l LinearDecreasing) Max() float64 { return l.MaxSigma }

// Quadratic is σ(t)=max·t².
type Quadratic struct{ MaxSigma float64 }

func (Quadratic) Kind() DiffusionKind { return DiffusionQuadratic }

func (q Quadratic) Sigma(t float64) float64 {
	t = clampT(t)
	return q.MaxSigma * t * t
}

func (q Quadratic) Max() float64 { return q.MaxSigma }

// SqrtDiffusion is σ(t)=max·√t.
type SqrtDiffusion struct{ MaxSigma float64 }

func (SqrtDiffusion) Kind() DiffusionKind { return DiffusionSqrt }
func (s SqrtDiffusion) Sigma(t float64) float64 { return s.MaxSigma * math.Sqrt(clampT(t)) }
func (s SqrtDiffusion) Max() float64 { return s.MaxSigma }

// SineBump is σ(t)=max·sin(πt): zero at both ends, peak at t=0.5.
type SineBump struct{ MaxSigma float64 }

func (SineBump) Kind() DiffusionKind { return DiffusionSineBump }

func (s SineBump) Sigma(t float64) float64 {
	return s.MaxSigma * math.Max(math.Sin(math.Pi*clampT(t)), 0)
}

func (s SineBump) Max() float64 { return s.MaxSigma }
