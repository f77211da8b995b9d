package mixture

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/pathviz/geom"
	"github.com/pthm-cable/pathviz/schedule"
)

const (
	// DetEpsilon is the smallest |det Σ| treated as a usable covariance.
	DetEpsilon = 1e-10

	// MinTotalDensity is the mixture density below which a point has no
	// component assignment.
	MinTotalDensity = 1e-10
)

// Gaussian is one component of a mixture after the time transform.
type Gaussian struct {
	Origin geom.Vec2 // data-space mean μ_k
	Source Cov2      // data-space covariance Σ_k
	Mean   geom.Vec2 // α·μ_k
	Cov    Cov2      // α²Σ_k + β²I
	Weight float64

	// Degenerate components contribute zero density and score.
	Degenerate bool

	inv  Cov2
	norm float64
}

// NewGaussian prepares a Gaussian for repeated evaluation. The covariance is
// factorized once; a failed factorization or |det| < DetEpsilon marks it
// degenerate.
func NewGaussian(mean geom.Vec2, cov Cov2, weight float64) Gaussian {
	g := Gaussian{
		Origin: mean,
		Source: cov,
		Mean:   mean,
		Cov:    cov,
		Weight: weight,
	}
	g.factor()
	return g
}

func (g *Gaussian) factor() {
	sym := mat.NewSymDense(2, []float64{g.Cov.XX, g.Cov.XY, g.Cov.XY, g.Cov.YY})

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		g.Degenerate = true
		return
	}
	det := chol.Det()
	if math.Abs(det) < DetEpsilon {
		g.Degenerate = true
		return
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		g.Degenerate = true
		return
	}
	g.inv = Cov2{XX: inv.At(0, 0), XY: inv.At(0, 1), YY: inv.At(1, 1)}
	g.norm = 1 / (2 * math.Pi * math.Sqrt(det))
}

// Inverse returns Σ⁻¹ of the transformed covariance (zero when degenerate).
func (g Gaussian) Inverse() Cov2 {
	return g.inv
}

// Density returns the unweighted normal density at x.
func (g Gaussian) Density(x geom.Vec2) float64 {
	if g.Degenerate {
		return 0
	}
	d := x.Sub(g.Mean)
	q := d.Dot(g.inv.MulVec(d))
	return g.norm * math.Exp(-0.5*q)
}

// Score returns ∇log N(x) = -Σ⁻¹(x - mean).
func (g Gaussian) Score(x geom.Vec2) geom.Vec2 {
	if g.Degenerate {
		return geom.Vec2{}
	}
	return g.inv.MulVec(x.Sub(g.Mean)).Scale(-1)
}

// Snapshot is a mixture transformed to one time on a noise schedule.
// Snapshots are immutable and safe to share.
type Snapshot struct {
	T         float64
	Alpha     float64
	BetaSq    float64
	Gaussians []Gaussian
}

// AtTime returns the marginal of mixing m with isotropic noise at time t:
// component means scale by α(t) and covariances become α²Σ + β²I.
func (m *Mixture) AtTime(s schedule.Noise, t float64) Snapshot {
	a := s.Alpha(t)
	b2 := schedule.BetaSq(s, t)

	snap := Snapshot{
		T:         t,
		Alpha:     a,
		BetaSq:    b2,
		Gaussians: make([]Gaussian, len(m.comps)),
	}
	for i, c := range m.comps {
		g := Gaussian{
			Origin: c.Mean,
			Source: c.Cov,
			Mean:   c.Mean.Scale(a),
			Cov: Cov2{
				XX: a*a*c.Cov.XX + b2,
				XY: a * a * c.Cov.XY,
				YY: a*a*c.Cov.YY + b2,
			},
			Weight: c.Weight,
		}
		g.factor()
		snap.Gaussians[i] = g
	}
	return snap
}

// Static returns the untransformed mixture as a snapshot (α=1, β=0).
// Point-mass components are degenerate here.
func (m *Mixture) Static() Snapshot {
	snap := Snapshot{T: 1, Alpha: 1, Gaussians: make([]Gaussian, len(m.comps))}
	for i, c := range m.comps {
		snap.Gaussians[i] = NewGaussian(c.Mean, c.Cov, c.Weight)
	}
	return snap
}

// Density returns the weighted mixture density at x.
func (s Snapshot) Density(x geom.Vec2) float64 {
	var total float64
	for i := range s.Gaussians {
		g := &s.Gaussians[i]
		if g.Weight == 0 {
			continue
		}
		total += g.Weight * g.Density(x)
	}
	return total
}

// Posterior fills dst with the responsibilities γ_k(x) and returns it.
// ok is false when the total density is below MinTotalDensity, in which case
// dst is all zeros.
func (s Snapshot) Posterior(x geom.Vec2, dst []float64) (gamma []float64, ok bool) {
	if cap(dst) < len(s.Gaussians) {
		dst = make([]float64, len(s.Gaussians))
	}
	dst = dst[:len(s.Gaussians)]

	var total float64
	for i := range s.Gaussians {
		g := &s.Gaussians[i]
		dst[i] = g.Weight * g.Density(x)
		total += dst[i]
	}
	if total < MinTotalDensity {
		for i := range dst {
			dst[i] = 0
		}
		return dst, false
	}
	for i := range dst {
		dst[i] /= total
	}
	return dst, true
}

// PosteriorMean returns E[z | x_t = x]: the responsibility-weighted average of
// each component's conditional target μ_k + α·Σ_k·Σ_{k,t}⁻¹(x - α·μ_k).
func (s Snapshot) PosteriorMean(x geom.Vec2) (geom.Vec2, bool) {
	var buf [8]float64
	gamma, ok := s.Posterior(x, buf[:0])
	if !ok {
		return geom.Vec2{}, false
	}
	var mean geom.Vec2
	for i := range s.Gaussians {
		if gamma[i] == 0 {
			continue
		}
		g := &s.Gaussians[i]
		shift := g.Source.MulVec(g.inv.MulVec(x.Sub(g.Mean))).Scale(s.Alpha)
		mean = mean.Add(g.Origin.Add(shift).Scale(gamma[i]))
	}
	return mean, true
}

// Score returns ∇log p_t(x) = Σ_k γ_k·(-Σ_{k,t}⁻¹(x - α·μ_k)).
func (s Snapshot) Score(x geom.Vec2) (geom.Vec2, bool) {
	var buf [8]float64
	gamma, ok := s.Posterior(x, buf[:0])
	if !ok {
		return geom.Vec2{}, false
	}
	var score geom.Vec2
	for i := range s.Gaussians {
		if gamma[i] == 0 {
			continue
		}
		score = score.Add(s.Gaussians[i].Score(x).Scale(gamma[i]))
	}
	return score, true
}
