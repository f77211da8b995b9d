package mixture

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/pathviz/geom"
	"github.com/pthm-cable/pathviz/schedule"
)

func weightSum(m *Mixture) float64 {
	var s float64
	for _, w := range m.Weights() {
		s += w
	}
	return s
}

func TestWeightsAlwaysSumToOne(t *testing.T) {
	m, err := New(
		Component{Mean: geom.V(-1, 0), Weight: 3, Cov: Isotropic(0.1)},
		Component{Mean: geom.V(1, 0), Weight: 1, Cov: Isotropic(0.2)},
	)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, weightSum(m), 1e-9)
	assert.InDelta(t, 0.75, m.Component(0).Weight, 1e-12)

	require.NoError(t, m.Add(Component{Mean: geom.V(0, 1), Weight: 0.5, Cov: Isotropic(0.05)}))
	assert.InDelta(t, 1.0, weightSum(m), 1e-9)

	require.NoError(t, m.SetWeight(2, 7))
	assert.InDelta(t, 1.0, weightSum(m), 1e-9)

	require.NoError(t, m.Remove(0))
	assert.InDelta(t, 1.0, weightSum(m), 1e-9)
	assert.Equal(t, 2, m.Len())

	require.NoError(t, m.SetWeight(0, 0))
	require.NoError(t, m.SetWeight(1, 0))
	assert.InDelta(t, 1.0, weightSum(m), 1e-9)
	assert.InDelta(t, 0.5, m.Component(0).Weight, 1e-12)
}

func TestRandomEditsKeepNormalization(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	m := Point(geom.V(0, 0))

	for i := 0; i < 500; i++ {
		switch rng.IntN(3) {
		case 0:
			_ = m.Add(Component{Mean: geom.V(rng.Float64(), rng.Float64()), Weight: rng.Float64() * 5, Cov: Isotropic(rng.Float64())})
		case 1:
			_ = m.Remove(rng.IntN(m.Len()))
		case 2:
			_ = m.SetWeight(rng.IntN(m.Len()), rng.Float64()*3)
		}
		require.InDelta(t, 1.0, weightSum(m), 1e-9, "after edit %d", i)
	}
}

func TestEditErrors(t *testing.T) {
	m := Point(geom.V(1, 1))

	assert.True(t, errors.Is(m.Remove(0), ErrEmpty))
	assert.True(t, errors.Is(m.Remove(3), ErrIndex))
	assert.True(t, errors.Is(m.SetWeight(0, -1), ErrNegativeWeight))
	assert.True(t, errors.Is(m.SetWeight(0, math.NaN()), ErrNegativeWeight))
	assert.True(t, errors.Is(m.SetCov(0, Cov2{XX: 1, XY: 2, YY: 1}), ErrNotPSD))
	assert.True(t, errors.Is(m.SetMean(-1, geom.V(0, 0)), ErrIndex))

	_, err := New()
	assert.True(t, errors.Is(err, ErrEmpty))

	// Failed edits leave the mixture unchanged
	assert.Equal(t, 1.0, m.Component(0).Weight)
}

func TestCloneIsIndependent(t *testing.T) {
	m := Point(geom.V(1, 2))
	c := m.Clone()
	require.NoError(t, c.SetMean(0, geom.V(5, 5)))
	assert.Equal(t, geom.V(1, 2), m.Component(0).Mean)
}

func TestNearest(t *testing.T) {
	m, err := New(
		Component{Mean: geom.V(-2, 0), Weight: 1},
		Component{Mean: geom.V(2, 0), Weight: 1},
	)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Nearest(geom.V(1.5, 0.3)))
}

func TestDensityIntegratesToOne(t *testing.T) {
	g := NewGaussian(geom.V(0.3, -0.2), Cov2{XX: 0.5, XY: 0.1, YY: 0.3}, 1)
	require.False(t, g.Degenerate)

	const (
		lo, hi = -5.0, 5.0
		n      = 400
	)
	h := (hi - lo) / n
	var sum float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			x := geom.V(lo+(float64(i)+0.5)*h, lo+(float64(j)+0.5)*h)
			sum += g.Density(x)
		}
	}
	assert.InDelta(t, 1.0, sum*h*h, 1e-3)
}

func TestDegenerateCovarianceContributesZero(t *testing.T) {
	g := NewGaussian(geom.V(0, 0), Cov2{XX: 1, XY: 1, YY: 1}, 1)
	assert.True(t, g.Degenerate)
	assert.Equal(t, 0.0, g.Density(geom.V(0, 0)))
	assert.Equal(t, geom.Vec2{}, g.Score(geom.V(1, 1)))

	// A point mass is degenerate untransformed but fine once noise is added
	m := Point(geom.V(1, 0.5))
	assert.True(t, m.Static().Gaussians[0].Degenerate)
	assert.False(t, m.AtTime(schedule.Linear{}, 0.5).Gaussians[0].Degenerate)
}

func TestAtTimeLinearPointMass(t *testing.T) {
	m := Point(geom.V(1, 0.5))
	snap := m.AtTime(schedule.Linear{}, 0.5)

	g := snap.Gaussians[0]
	assert.InDelta(t, 0.5, g.Mean.X, 1e-12)
	assert.InDelta(t, 0.25, g.Mean.Y, 1e-12)
	// β(0.5)² = 0.25 on each axis
	assert.InDelta(t, 0.25, g.Cov.XX, 1e-12)
	assert.InDelta(t, 0.25, g.Cov.YY, 1e-12)
	assert.InDelta(t, 0.0, g.Cov.XY, 1e-12)

	// β is floored near t=1
	end := m.AtTime(schedule.Linear{}, 1)
	assert.InDelta(t, schedule.MinBetaSq, end.Gaussians[0].Cov.XX, 1e-15)
}

func TestAtTimeCovarianceTransform(t *testing.T) {
	m, err := New(Component{Mean: geom.V(2, -1), Weight: 1, Cov: Cov2{XX: 0.4, XY: 0.1, YY: 0.2}})
	require.NoError(t, err)

	snap := m.AtTime(schedule.Sqrt{}, 0.36)
	a := math.Sqrt(0.36)
	b2 := 1 - 0.36
	g := snap.Gaussians[0]
	assert.InDelta(t, a*a*0.4+b2, g.Cov.XX, 1e-12)
	assert.InDelta(t, a*a*0.1, g.Cov.XY, 1e-12)
	assert.InDelta(t, a*a*0.2+b2, g.Cov.YY, 1e-12)
	assert.InDelta(t, 2*a, g.Mean.X, 1e-12)
}

func TestPosteriorSumsToOne(t *testing.T) {
	m, err := New(
		Component{Mean: geom.V(-1, 0), Weight: 1, Cov: Isotropic(0.2)},
		Component{Mean: geom.V(1, 0), Weight: 2, Cov: Isotropic(0.2)},
	)
	require.NoError(t, err)
	snap := m.AtTime(schedule.Linear{}, 0.7)

	gamma, ok := snap.Posterior(geom.V(0.2, 0.1), nil)
	require.True(t, ok)
	assert.InDelta(t, 1.0, gamma[0]+gamma[1], 1e-12)

	// Closer to the right component, heavier weight: it dominates
	assert.Greater(t, gamma[1], gamma[0])
}

func TestPosteriorFarAwayHasNoAssignment(t *testing.T) {
	m, err := New(Component{Mean: geom.V(0, 0), Weight: 1, Cov: Isotropic(0.01)})
	require.NoError(t, err)
	snap := m.AtTime(schedule.Linear{}, 0.99)

	gamma, ok := snap.Posterior(geom.V(50, 50), nil)
	assert.False(t, ok)
	assert.Equal(t, 0.0, gamma[0])

	s, ok := snap.Score(geom.V(50, 50))
	assert.False(t, ok)
	assert.Equal(t, geom.Vec2{}, s)
}

func TestPosteriorMeanSingleComponent(t *testing.T) {
	// With a point mass the posterior mean is the point itself
	z := geom.V(1, 0.5)
	snap := Point(z).AtTime(schedule.Linear{}, 0.4)

	pm, ok := snap.PosteriorMean(geom.V(0.3, -0.2))
	require.True(t, ok)
	assert.InDelta(t, z.X, pm.X, 1e-12)
	assert.InDelta(t, z.Y, pm.Y, 1e-12)
}

func TestScoreMatchesNumericGradient(t *testing.T) {
	m, err := New(
		Component{Mean: geom.V(-1, 0.5), Weight: 1, Cov: Cov2{XX: 0.3, XY: 0.05, YY: 0.2}},
		Component{Mean: geom.V(1, -0.5), Weight: 1, Cov: Isotropic(0.1)},
	)
	require.NoError(t, err)
	snap := m.AtTime(schedule.ConstantVariance{}, 0.6)

	x := geom.V(0.1, 0.2)
	const h = 1e-5
	logp := func(p geom.Vec2) float64 { return math.Log(snap.Density(p)) }
	want := geom.V(
		(logp(x.Add(geom.V(h, 0)))-logp(x.Sub(geom.V(h, 0))))/(2*h),
		(logp(x.Add(geom.V(0, h)))-logp(x.Sub(geom.V(0, h))))/(2*h),
	)

	got, ok := snap.Score(x)
	require.True(t, ok)
	assert.InDelta(t, want.X, got.X, 1e-5)
	assert.InDelta(t, want.Y, got.Y, 1e-5)
}

func TestSampleConvergesToPathMoments(t *testing.T) {
	// Linear schedule, z=(1, 0.5), t=0.5: mean (0.5, 0.25), variance β²=0.25
	rng := rand.New(rand.NewPCG(42, 7))
	snap := Point(geom.V(1, 0.5)).AtTime(schedule.Linear{}, 0.5)
	g := snap.Gaussians[0]

	noised, err := New(Component{Mean: g.Mean, Weight: 1, Cov: g.Cov})
	require.NoError(t, err)

	points := noised.Sample(rng, 40000)
	mean, variance := Moments(points)
	assert.InDelta(t, 0.5, mean.X, 0.01)
	assert.InDelta(t, 0.25, mean.Y, 0.01)
	assert.InDelta(t, 0.25, variance.X, 0.01)
	assert.InDelta(t, 0.25, variance.Y, 0.01)
}

func TestSampleSingularCovariance(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))

	// Point mass: every draw is the mean
	for _, p := range Point(geom.V(2, 3)).Sample(rng, 10) {
		assert.Equal(t, geom.V(2, 3), p)
	}

	// Rank-1 covariance along x: y never moves
	m, err := New(Component{Mean: geom.V(0, 1), Weight: 1, Cov: Cov2{XX: 1}})
	require.NoError(t, err)
	points := m.Sample(rng, 2000)
	mean, variance := Moments(points)
	assert.InDelta(t, 1.0, mean.Y, 1e-9)
	assert.InDelta(t, 1.0, variance.X, 0.1)
}

func TestSampleRespectsWeights(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	m, err := New(
		Component{Mean: geom.V(-10, 0), Weight: 1},
		Component{Mean: geom.V(10, 0), Weight: 3},
	)
	require.NoError(t, err)

	right := 0
	for _, p := range m.Sample(rng, 8000) {
		if p.X > 0 {
			right++
		}
	}
	assert.InDelta(t, 0.75, float64(right)/8000, 0.02)
}

func TestMomentsEmpty(t *testing.T) {
	mean, variance := Moments(nil)
	assert.Equal(t, geom.Vec2{}, mean)
	assert.Equal(t, geom.Vec2{}, variance)
}
