package schedule

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownKind is returned when a schedule tag does not name a family.
var ErrUnknownKind = errors.New("schedule: unknown kind")

// NoiseKind tags a noise schedule family.
type NoiseKind string

const (
	NoiseLinear           NoiseKind = "linear"
	NoiseSmoothstep       NoiseKind = "smoothstep"
	NoiseConstantVariance NoiseKind = "constant_variance"
	NoiseSqrt             NoiseKind = "sqrt"
	NoiseInverseSqrt      NoiseKind = "inverse_sqrt"
	NoiseCircular         NoiseKind = "circular"
	NoiseCustom           NoiseKind = "custom"
)

// NoiseKinds lists the families selectable by tag, in display order.
var NoiseKinds = []NoiseKind{
	NoiseLinear,
	NoiseSmoothstep,
	NoiseConstantVariance,
	NoiseSqrt,
	NoiseInverseSqrt,
	NoiseCircular,
}

// DiffusionKind tags a diffusion coefficient family.
type DiffusionKind string

const (
	DiffusionConstant         DiffusionKind = "constant"
	DiffusionLinearIncreasing DiffusionKind = "linear_increasing"
	DiffusionLinearDecreasing DiffusionKind = "linear_decreasing"
	DiffusionQuadratic        DiffusionKind = "quadratic"
	DiffusionSqrt             DiffusionKind = "sqrt"
	DiffusionSineBump         DiffusionKind = "sine_bump"
)

// DiffusionKinds lists the diffusion families, in display order.
var DiffusionKinds = []DiffusionKind{
	DiffusionConstant,
	DiffusionLinearIncreasing,
	DiffusionLinearDecreasing,
	DiffusionQuadratic,
	DiffusionSqrt,
	DiffusionSineBump,
}

// NoiseParams holds the numeric parameters a family may need.
// Zero values select the family defaults.
type NoiseParams struct {
	Theta0 float64 `yaml:"theta0"`
	Theta1 float64 `yaml:"theta1"`
}

// NewNoise maps a tag to its schedule. Tags are case-insensitive and accept
// '-' in place of '_'.
func NewNoise(kind NoiseKind, p NoiseParams) (Noise, error) {
	switch normalize(string(kind)) {
	case string(NoiseLinear):
		return Linear{}, nil
	case string(NoiseSmoothstep):
		return Smoothstep{}, nil
	case string(NoiseConstantVariance):
		return ConstantVariance{}, nil
	case string(NoiseSqrt):
		return Sqrt{}, nil
	case string(NoiseInverseSqrt):
		return InverseSqrt{}, nil
	case string(NoiseCircular):
		c := DefaultCircular()
		if p.Theta0 != 0 || p.Theta1 != 0 {
			c = Circular{Theta0: p.Theta0, Theta1: p.Theta1}
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: noise %q", ErrUnknownKind, kind)
}

// NewDiffusion maps a tag to its diffusion schedule with the given maximum.
// Negative maxima are treated as their magnitude.
func NewDiffusion(kind DiffusionKind, maxSigma float64) (Diffusion, error) {
	m := math.Abs(maxSigma)
	switch normalize(string(kind)) {
	case string(DiffusionConstant):
		return Constant{MaxSigma: m}, nil
	case string(DiffusionLinearIncreasing):
		return LinearIncreasing{MaxSigma: m}, nil
	case string(DiffusionLinearDecreasing):
		return LinearDecreasing{MaxSigma: m}, nil
	case string(DiffusionQuadratic):
		return Quadratic{MaxSigma: m}, nil
	case string(DiffusionSqrt):
		return SqrtDiffusion{MaxSigma: m}, nil
	case string(DiffusionSineBump):
		return SineBump{MaxSigma: m}, nil
	}
	return nil, fmt.Errorf("%w: diffusion %q", ErrUnknownKind, kind)
}

func normalize(tag string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(tag)), "-", "_")
}
