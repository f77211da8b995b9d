package mixture

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/pthm-cable/pathviz/geom"
)

// sampler draws from one component.
type sampler struct {
	mean   geom.Vec2
	normal *distmv.Normal // nil for singular covariances

	// Principal axes for singular (rank ≤ 1) covariances
	axes [2]geom.Vec2
}

func newSampler(c Component, rng *rand.Rand) sampler {
	s := sampler{mean: c.Mean}
	sym := mat.NewSymDense(2, []float64{c.Cov.XX, c.Cov.XY, c.Cov.XY, c.Cov.YY})
	if c.Cov.Det() > DetEpsilon {
		if n, ok := distmv.NewNormal([]float64{c.Mean.X, c.Mean.Y}, sym, rng); ok {
			s.normal = n
			return s
		}
	}

	// Semi-definite: sample along the eigenvectors with non-negative variance
	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return s
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	for k := 0; k < 2; k++ {
		sd := math.Sqrt(math.Max(values[k], 0))
		s.axes[k] = geom.Vec2{X: vecs.At(0, k) * sd, Y: vecs.At(1, k) * sd}
	}
	return s
}

func (s sampler) draw(rng *rand.Rand) geom.Vec2 {
	if s.normal != nil {
		var buf [2]float64
		s.normal.Rand(buf[:])
		return geom.Vec2{X: buf[0], Y: buf[1]}
	}
	p := s.mean
	for _, ax := range s.axes {
		if ax.X == 0 && ax.Y == 0 {
			continue
		}
		p = p.Add(ax.Scale(rng.NormFloat64()))
	}
	return p
}

// Sample draws n data points from the mixture.
func (m *Mixture) Sample(rng *rand.Rand, n int) []geom.Vec2 {
	samplers := make([]sampler, len(m.comps))
	cdf := make([]float64, len(m.comps))
	var acc float64
	for i, c := range m.comps {
		samplers[i] = newSampler(c, rng)
		acc += c.Weight
		cdf[i] = acc
	}

	out := make([]geom.Vec2, n)
	for j := range out {
		u := rng.Float64() * acc
		k := len(cdf) - 1
		for i, edge := range cdf {
			if u < edge {
				k = i
				break
			}
		}
		out[j] = samplers[k].draw(rng)
	}
	return out
}

// Moments returns the empirical per-axis mean and (unbiased) variance.
func Moments(points []geom.Vec2) (mean, variance geom.Vec2) {
	if len(points) == 0 {
		return geom.Vec2{}, geom.Vec2{}
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	mean = geom.Vec2{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}
	if len(points) > 1 {
		variance = geom.Vec2{X: stat.Variance(xs, nil), Y: stat.Variance(ys, nil)}
	}
	return mean, variance
}
