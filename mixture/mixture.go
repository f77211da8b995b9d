// Package mixture models 2D Gaussian mixtures and their marginals along a
// noise schedule: each component's mean scales by α(t) and its covariance
// becomes α²Σ + β²I.
package mixture

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/pathviz/geom"
)

// Sentinel errors for mixture edits.
var (
	ErrNegativeWeight = errors.New("mixture: weight must be non-negative and finite")
	ErrNotPSD         = errors.New("mixture: covariance is not positive semi-definite")
	ErrIndex          = errors.New("mixture: component index out of range")
	ErrEmpty          = errors.New("mixture: a mixture needs at least one component")
)

// psdTolerance absorbs rounding when checking semi-definiteness.
const psdTolerance = 1e-12

// Cov2 is a symmetric 2x2 covariance matrix [[XX, XY], [XY, YY]].
type Cov2 struct {
	XX, XY, YY float64
}

// Isotropic returns variance·I.
func Isotropic(variance float64) Cov2 {
	return Cov2{XX: variance, YY: variance}
}

// Det returns the determinant.
func (c Cov2) Det() float64 {
	return c.XX*c.YY - c.XY*c.XY
}

// PSD reports whether c is positive semi-definite (within rounding).
func (c Cov2) PSD() bool {
	if math.IsNaN(c.XX) || math.IsNaN(c.XY) || math.IsNaN(c.YY) {
		return false
	}
	return c.XX >= -psdTolerance && c.YY >= -psdTolerance && c.Det() >= -psdTolerance
}

// MulVec returns c·v.
func (c Cov2) MulVec(v geom.Vec2) geom.Vec2 {
	return geom.Vec2{X: c.XX*v.X + c.XY*v.Y, Y: c.XY*v.X + c.YY*v.Y}
}

// Component is one weighted Gaussian of a mixture.
// A zero covariance is a point mass at Mean.
type Component struct {
	Mean   geom.Vec2
	Weight float64
	Cov    Cov2
}

func (c Component) validate() error {
	if c.Weight < 0 || math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) {
		return fmt.Errorf("%w: %v", ErrNegativeWeight, c.Weight)
	}
	if !c.Cov.PSD() {
		return fmt.Errorf("%w: %+v", ErrNotPSD, c.Cov)
	}
	return nil
}

// Mixture is a weighted set of Gaussian components whose weights always sum
// to one. Mixtures are not safe for concurrent mutation; hand a Clone to any
// computation that may outlive the next edit.
type Mixture struct {
	comps []Component
}

// New builds a mixture from components, renormalizing their weights.
func New(comps ...Component) (*Mixture, error) {
	if len(comps) == 0 {
		return nil, ErrEmpty
	}
	for _, c := range comps {
		if err := c.validate(); err != nil {
			return nil, err
		}
	}
	m := &Mixture{comps: append([]Component(nil), comps...)}
	m.renormalize()
	return m, nil
}

// Point returns the single-component mixture concentrated at z.
func Point(z geom.Vec2) *Mixture {
	return &Mixture{comps: []Component{{Mean: z, Weight: 1}}}
}

// Len returns the number of components.
func (m *Mixture) Len() int {
	return len(m.comps)
}

// Component returns component i.
func (m *Mixture) Component(i int) Component {
	return m.comps[i]
}

// Components returns a copy of all components.
func (m *Mixture) Components() []Component {
	return append([]Component(nil), m.comps...)
}

// Weights returns a copy of the normalized weights.
func (m *Mixture) Weights() []float64 {
	w := make([]float64, len(m.comps))
	for i, c := range m.comps {
		w[i] = c.Weight
	}
	return w
}

// Clone returns an independent copy.
func (m *Mixture) Clone() *Mixture {
	return &Mixture{comps: m.Components()}
}

// Add appends a component and renormalizes. The new weight is taken relative
// to the existing (normalized) weights before renormalization.
func (m *Mixture) Add(c Component) error {
	if err := c.validate(); err != nil {
		return err
	}
	m.comps = append(m.comps, c)
	m.renormalize()
	return nil
}

// Remove deletes component i. The last component cannot be removed.
func (m *Mixture) Remove(i int) error {
	if i < 0 || i >= len(m.comps) {
		return fmt.Errorf("%w: %d", ErrIndex, i)
	}
	if len(m.comps) == 1 {
		return ErrEmpty
	}
	m.comps = append(m.comps[:i], m.comps[i+1:]...)
	m.renormalize()
	return nil
}

// SetWeight changes the raw weight of component i and renormalizes.
func (m *Mixture) SetWeight(i int, w float64) error {
	if i < 0 || i >= len(m.comps) {
		return fmt.Errorf("%w: %d", ErrIndex, i)
	}
	c := m.comps[i]
	c.Weight = w
	if err := c.validate(); err != nil {
		return err
	}
	m.comps[i] = c
	m.renormalize()
	return nil
}

// SetMean moves component i.
func (m *Mixture) SetMean(i int, mean geom.Vec2) error {
	if i < 0 || i >= len(m.comps) {
		return fmt.Errorf("%w: %d", ErrIndex, i)
	}
	m.comps[i].Mean = mean
	return nil
}

// SetCov replaces the covariance of component i.
func (m *Mixture) SetCov(i int, cov Cov2) error {
	if i < 0 || i >= len(m.comps) {
		return fmt.Errorf("%w: %d", ErrIndex, i)
	}
	if !cov.PSD() {
		return fmt.Errorf("%w: %+v", ErrNotPSD, cov)
	}
	m.comps[i].Cov = cov
	return nil
}

// Nearest returns the index of the component whose mean is closest to p.
func (m *Mixture) Nearest(p geom.Vec2) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range m.comps {
		if d := c.Mean.Sub(p).LenSq(); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// renormalize rescales weights to sum to one; all-zero weights become uniform.
func (m *Mixture) renormalize() {
	w := m.Weights()
	total := floats.Sum(w)
	if total <= 0 {
		for i := range m.comps {
			m.comps[i].Weight = 1 / float64(len(m.comps))
		}
		return
	}
	floats.Scale(1/total, w)
	for i := range m.comps {
		m.comps[i].Weight = w[i]
	}
}
