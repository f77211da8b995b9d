package vecfield

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/pathviz/geom"
	"github.com/pthm-cable/pathviz/mixture"
	"github.com/pthm-cable/pathviz/scale"
	"github.com/pthm-cable/pathviz/schedule"
)

var families = []schedule.Noise{
	schedule.Linear{},
	schedule.Smoothstep{},
	schedule.ConstantVariance{},
	schedule.Sqrt{},
	schedule.InverseSqrt{},
	schedule.DefaultCircular(),
}

func TestMarginalSinglePointMatchesConditional(t *testing.T) {
	z := geom.V(1, 0.5)
	offsets := []geom.Vec2{geom.V(0, 0), geom.V(-0.7, 0.3), geom.V(1.2, -0.4)}

	for _, s := range families {
		t.Run(string(s.Kind()), func(t *testing.T) {
			cond := NewConditional(s, z)
			marg := NewMarginal(s, mixture.Point(z))
			for _, tm := range []float64{0, 0.1, 0.5, 0.9, 1} {
				// Points within a couple of standard deviations of the path mean
				tc := geom.Clamp(tm, TimeEpsilon, 1-TimeEpsilon)
				b := math.Max(s.Beta(tc), 0.01)
				for _, e := range offsets {
					x := z.Scale(s.Alpha(tc)).Add(e.Scale(b))

					want := cond.Drift(x, tm)
					got := marg.Drift(x, tm)
					assert.InDelta(t, want.X, got.X, 1e-9*math.Max(1, math.Abs(want.X)), "t=%v x=%v", tm, x)
					assert.InDelta(t, want.Y, got.Y, 1e-9*math.Max(1, math.Abs(want.Y)), "t=%v x=%v", tm, x)

					ws := cond.Score(x, tm)
					gs := marg.Score(x, tm)
					assert.InDelta(t, ws.X, gs.X, 1e-6*math.Max(1, math.Abs(ws.X)))
					assert.InDelta(t, ws.Y, gs.Y, 1e-6*math.Max(1, math.Abs(ws.Y)))
				}
			}
		})
	}
}

func TestConditionalLinearVelocityIsConstantAlongPath(t *testing.T) {
	// x(t) = t·z + (1-t)·ε has constant velocity z - ε
	z := geom.V(1, 0.5)
	eps := geom.V(-0.3, 0.8)
	c := NewConditional(schedule.Linear{}, z)
	want := z.Sub(eps)

	for _, tm := range []float64{0.1, 0.25, 0.5, 0.75, 0.95} {
		x := z.Scale(tm).Add(eps.Scale(1 - tm))
		u := c.Drift(x, tm)
		assert.InDelta(t, want.X, u.X, 1e-9)
		assert.InDelta(t, want.Y, u.Y, 1e-9)
	}
}

func TestDriftFiniteAtEndpoints(t *testing.T) {
	m, err := mixture.New(
		mixture.Component{Mean: geom.V(-1, 0), Weight: 1, Cov: mixture.Isotropic(0.05)},
		mixture.Component{Mean: geom.V(1, 1), Weight: 1, Cov: mixture.Isotropic(0.1)},
	)
	require.NoError(t, err)

	for _, s := range families {
		c := NewConditional(s, geom.V(0.5, 0.5))
		mg := NewMarginal(s, m)
		for _, tm := range []float64{0, 1e-9, 1 - 1e-9, 1} {
			assert.True(t, c.Drift(geom.V(0.2, 0.1), tm).IsFinite(), "%s t=%v", s.Kind(), tm)
			assert.True(t, c.Score(geom.V(0.2, 0.1), tm).IsFinite(), "%s t=%v", s.Kind(), tm)
			assert.True(t, mg.Drift(geom.V(0.2, 0.1), tm).IsFinite(), "%s t=%v", s.Kind(), tm)
		}
	}
}

func TestMarginalNoAssignmentIsZero(t *testing.T) {
	m, err := mixture.New(mixture.Component{Mean: geom.V(0, 0), Weight: 1, Cov: mixture.Isotropic(0.001)})
	require.NoError(t, err)
	mg := NewMarginal(schedule.Linear{}, m)

	far := geom.V(40, -40)
	assert.Equal(t, geom.Vec2{}, mg.Drift(far, 0.99))
	assert.Equal(t, geom.Vec2{}, mg.Score(far, 0.99))
}

func TestMarginalIgnoresLaterEdits(t *testing.T) {
	m := mixture.Point(geom.V(1, 1))
	mg := NewMarginal(schedule.Linear{}, m)
	before := mg.Drift(geom.V(0, 0), 0.5)

	require.NoError(t, m.SetMean(0, geom.V(-1, -1)))
	assert.Equal(t, before, mg.Drift(geom.V(0, 0), 0.5))
}

func TestMarginalPullsTowardNearestComponent(t *testing.T) {
	m, err := mixture.New(
		mixture.Component{Mean: geom.V(-1, 0), Weight: 1, Cov: mixture.Isotropic(0.01)},
		mixture.Component{Mean: geom.V(1, 0), Weight: 1, Cov: mixture.Isotropic(0.01)},
	)
	require.NoError(t, err)
	mg := NewMarginal(schedule.Linear{}, m)

	// Late in the path a point right of center heads to the right component
	u := mg.Drift(geom.V(0.5, 0), 0.8)
	assert.Greater(t, u.X, 0.0)
	u = mg.Drift(geom.V(-0.5, 0), 0.8)
	assert.Less(t, u.X, 0.0)
}

func TestScoreVarianceIsFlooredBetaSq(t *testing.T) {
	z := geom.V(1, 0.5)
	c := NewConditional(schedule.Linear{}, z)
	m := NewMarginal(schedule.Linear{}, mixture.Point(z))

	assert.InDelta(t, 0.25, c.ScoreVariance(0.5), 1e-12)
	assert.InDelta(t, schedule.MinBetaSq, c.ScoreVariance(1), 1e-15)
	for _, tm := range []float64{0, 0.3, 0.5, 0.99, 1} {
		assert.Equal(t, c.ScoreVariance(tm), m.ScoreVariance(tm))
	}
}

func TestScoreField(t *testing.T) {
	c := NewConditional(schedule.Linear{}, geom.V(0, 0))
	sf := ScoreField{Scorer: c}
	x := geom.V(0.3, -0.2)
	assert.Equal(t, c.Score(x, 0.4), sf.Drift(x, 0.4))
}

func TestCompress(t *testing.T) {
	style := DefaultArrowStyle()
	assert.InDelta(t, 1.0, style.Compress(16, 16), 1e-12)
	assert.InDelta(t, 0.5, style.Compress(1, 16), 1e-12)
	assert.Equal(t, 0.0, style.Compress(0, 16))
	assert.Equal(t, 0.0, style.Compress(5, 0))
	assert.Equal(t, 1.0, style.Compress(32, 16), "clamped above")

	style.Normalization = NormLog
	assert.InDelta(t, math.Log(4)/math.Log(16), style.Compress(3, 15), 1e-12)

	assert.Equal(t, 3.0, style.Length(0))
	assert.Equal(t, 10.0, style.Length(1))
}

func TestParseNormalization(t *testing.T) {
	n, err := ParseNormalization(" LOG ")
	require.NoError(t, err)
	assert.Equal(t, NormLog, n)

	_, err = ParseNormalization("cubic")
	assert.Error(t, err)
}

func testFrame() *scale.Frame {
	// 50 px per data unit
	return scale.NewFrame(geom.Rect{MinX: -2, MinY: -2, MaxX: 2, MaxY: 2}, 200, 200)
}

func TestSampleDropsShortArrows(t *testing.T) {
	// Raw length 5·|x| px: the two center columns (|x| = 0.2) fall below 2px
	p := ProviderFunc(func(x geom.Vec2, _ float64) geom.Vec2 { return geom.V(0.1*x.X, 0) })
	spec := GridSpec{Cols: 10, Rows: 10}
	style := DefaultArrowStyle()

	f := Sample(p, spec, testFrame(), 0.5, style, 0)
	assert.Len(t, f.Arrows, 80)
	assert.InDelta(t, 9.0, f.Max, 1e-9)

	var longest float64
	for _, a := range f.Arrows {
		l := a.Delta.Len()
		assert.GreaterOrEqual(t, l, style.MinPx-1e-9)
		assert.LessOrEqual(t, l, style.MaxPx+1e-9)
		assert.GreaterOrEqual(t, a.Magnitude, 0.0)
		assert.LessOrEqual(t, a.Magnitude, 1.0)
		assert.GreaterOrEqual(t, math.Abs(a.Origin.X), 0.6-1e-9)
		longest = math.Max(longest, l)
	}
	assert.InDelta(t, style.MaxPx, longest, 1e-9)
}

func TestSampleFlipsY(t *testing.T) {
	up := ProviderFunc(func(geom.Vec2, float64) geom.Vec2 { return geom.V(0, 1) })
	f := Sample(up, GridSpec{Cols: 2, Rows: 2}, testFrame(), 0.5, DefaultArrowStyle(), 0)
	require.Len(t, f.Arrows, 4)
	for _, a := range f.Arrows {
		assert.Less(t, a.Delta.Y, 0.0, "data up is screen up")
		assert.InDelta(t, 0.0, a.Delta.X, 1e-12)
		assert.Equal(t, geom.V(0, 1), a.Drift)
	}
}

func TestGlobalMaxKeepsLengthsStable(t *testing.T) {
	c := NewConditional(schedule.Linear{}, geom.V(1, 0.5))
	spec := GridSpec{Cols: 12, Rows: 12}
	frame := testFrame()
	style := DefaultArrowStyle()

	gmax := GlobalMax(c, spec, frame, GlobalMaxTime)
	require.Greater(t, gmax, 0.0)

	early := Sample(c, spec, frame, 0.1, style, gmax)
	late := Sample(c, spec, frame, 0.9, style, gmax)
	assert.Equal(t, gmax, early.Max)
	assert.Equal(t, gmax, late.Max)

	// Drift grows toward t=1, so early arrows never saturate
	for _, a := range early.Arrows {
		assert.Less(t, a.Magnitude, 1.0)
	}
}

func TestSampleSkipsNonFinite(t *testing.T) {
	bad := ProviderFunc(func(x geom.Vec2, _ float64) geom.Vec2 {
		if x.X > 0 {
			return geom.V(math.Inf(1), 0)
		}
		return geom.V(1, 0)
	})
	f := Sample(bad, GridSpec{Cols: 4, Rows: 1}, testFrame(), 0, DefaultArrowStyle(), 0)
	assert.Len(t, f.Arrows, 2)
	assert.Equal(t, 50.0, GlobalMax(bad, GridSpec{Cols: 4, Rows: 1}, testFrame(), 0))
}
