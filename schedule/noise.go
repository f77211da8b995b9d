// Package schedule provides the noise schedules α(t), β(t) that define a
// probability path between standard noise (t=0) and data (t=1), and the
// diffusion coefficient schedules σ(t) used by the stochastic sampler.
//
// Every schedule is a small immutable value. Swapping one family for another
// never requires changes elsewhere; pick one with NewNoise or NewDiffusion once
// at configuration time.
package schedule

import "math"

const (
	// MinBetaSq floors β² wherever it is used as a variance or divisor.
	MinBetaSq = 1e-4

	// FiniteDiffStep is the centered difference step for numeric derivatives.
	FiniteDiffStep = 1e-5

	// derivEps keeps analytic derivatives finite at singular endpoints.
	derivEps = 1e-6
)

// Noise is a noise schedule: x_t = α(t)·z + β(t)·ε.
type Noise interface {
	Kind() NoiseKind
	Alpha(t float64) float64
	Beta(t float64) float64
	AlphaDot(t float64) float64
	BetaDot(t float64) float64
}

// BetaSq returns β(t)² floored at MinBetaSq.
func BetaSq(s Noise, t float64) float64 {
	b := s.Beta(t)
	return math.Max(b*b, MinBetaSq)
}

// FiniteDiff approximates f'(t) with a centered difference, keeping both
// evaluation points inside [0, 1].
func FiniteDiff(f func(float64) float64, t float64) float64 {
	t0 := math.Max(t-FiniteDiffStep, 0)
	t1 := math.Min(t+FiniteDiffStep, 1)
	if t1 <= t0 {
		return 0
	}
	return (f(t1) - f(t0)) / (t1 - t0)
}

// Standard reports whether s starts at pure noise and ends at pure data.
func Standard(s Noise) bool {
	const tol = 1e-6
	return math.Abs(s.Alpha(0)) < tol &&
		math.Abs(s.Beta(0)-1) < tol &&
		math.Abs(s.Alpha(1)-1) < tol &&
		math.Abs(s.Beta(1)) < tol
}

func clampT(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

func clampDeriv(t float64) float64 {
	if t < derivEps {
		return derivEps
	}
	if t > 1-derivEps {
		return 1 - derivEps
	}
	return t
}

// Linear is α=t, β=1-t.
type Linear struct{}

func (Linear) Kind() NoiseKind { return NoiseLinear }
func (Linear) Alpha(t float64) float64 { return clampT(t) }
func (Linear) Beta(t float64) float64 { return 1 - clampT(t) }
func (Linear) AlphaDot(t float64) float64 { return 1 }
func (Linear) BetaDot(t float64) float64 { return -1 }

// Smoothstep eases in and out: α=3t²-2t³, β=1-α.
type Smoothstep struct{}

func (Smoothstep) Kind() NoiseKind { return NoiseSmoothstep }

func (Smoothstep) Alpha(t float64) float64 {
	t = clampT(t)
	return t * t * (3 - 2*t)
}

func (s Smoothstep) Beta(t float64) float64 { return 1 - s.Alpha(t) }

func (Smoothstep) AlphaDot(t float64) float64 {
	t = clampT(t)
	return 6 * t * (1 - t)
}

func (s Smoothstep) BetaDot(t float64) float64 { return -s.AlphaDot(t) }

// ConstantVariance keeps α²+β²=1 with α=t.
type ConstantVariance struct{}

func (ConstantVariance) Kind() NoiseKind { return NoiseConstantVariance }
func (ConstantVariance) Alpha(t float64) float64 { return clampT(t) }

func (ConstantVariance) Beta(t float64) float64 {
	t = clampT(t)
	return math.Sqrt(1 - t*t)
}

func (ConstantVariance) AlphaDot(t float64) float64 { return 1 }

func (ConstantVariance) BetaDot(t float64) float64 {
	t = clampDeriv(t)
	return -t / math.Sqrt(1-t*t)
}

// Sqrt is α=√t, β=√(1-t).
type Sqrt struct{}

func (Sqrt) Kind() NoiseKind { return NoiseSqrt }
func (Sqrt) Alpha(t float64) float64 { return math.Sqrt(clampT(t)) }
func (Sqrt) Beta(t float64) float64 { return math.Sqrt(1 - clampT(t)) }

func (Sqrt) AlphaDot(t float64) float64 {
	return 0.5 / math.Sqrt(clampDeriv(t))
}

func (Sqrt) BetaDot(t float64) float64 {
	return -0.5 / math.Sqrt(1-clampDeriv(t))
}

// InverseSqrt is α=1-√(1-t), β=√(1-t): slow start, fast finish.
type InverseSqrt struct{}

func (InverseSqrt) Kind() NoiseKind { return NoiseInverseSqrt }
func (InverseSqrt) Alpha(t float64) float64 { return 1 - math.Sqrt(1-clampT(t)) }
func (InverseSqrt) Beta(t float64) float64 { return math.Sqrt(1 - clampT(t)) }

func (InverseSqrt) AlphaDot(t float64) float64 {
	return 0.5 / math.Sqrt(1-clampDeriv(t))
}

func (InverseSqrt) BetaDot(t float64) float64 {
	return -0.5 / math.Sqrt(1-clampDeriv(t))
}

// Circular sweeps an angle θ(t)=Theta0+(Theta1-Theta0)·t with α=sin θ and
// β=max(cos θ, 0). Only the default range [0, π/2] satisfies the standard
// endpoint values; other ranges are accepted as-is.
type Circular struct {
	Theta0, Theta1 float64
}

// DefaultCircular returns the quarter-turn circular schedule.
func DefaultCircular() Circular {
	return Circular{Theta0: 0, Theta1: math.Pi / 2}
}

func (Circular) Kind() NoiseKind { return NoiseCircular }

func (c Circular) theta(t float64) float64 {
	return c.Theta0 + (c.Theta1-c.Theta0)*clampT(t)
}

func (c Circular) Alpha(t float64) float64 { return math.Sin(c.theta(t)) }

func (c Circular) Beta(t float64) float64 { return math.Max(math.Cos(c.theta(t)), 0) }

func (c Circular) AlphaDot(t float64) float64 {
	return (c.Theta1 - c.Theta0) * math.Cos(c.theta(t))
}

func (c Circular) BetaDot(t float64) float64 {
	th := c.theta(t)
	if math.Cos(th) <= 0 {
		return 0
	}
	return -(c.Theta1 - c.Theta0) * math.Sin(th)
}

// Func is a schedule given by arbitrary α and β functions; derivatives are
// approximated with FiniteDiff.
type Func struct {
	A, B func(t float64) float64
}

func (Func) Kind() NoiseKind { return NoiseCustom }

func (f Func) Alpha(t float64) float64 { return f.A(clampT(t)) }

func (f Func) Beta(t float64) float64 { return math.Max(f.B(clampT(t)), 0) }

func (f Func) AlphaDot(t float64) float64 { return FiniteDiff(f.Alpha, clampT(t)) }

func (f Func) BetaDot(t float64) float64 { return FiniteDiff(f.Beta, clampT(t)) }
