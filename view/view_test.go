package view

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/pathviz/components"
	"github.com/pthm-cable/pathviz/config"
	"github.com/pthm-cable/pathviz/geom"
	"github.com/pthm-cable/pathviz/integrate"
	"github.com/pthm-cable/pathviz/mixture"
	"github.com/pthm-cable/pathviz/schedule"
	"github.com/pthm-cable/pathviz/vecfield"
)

func testOptions() Options {
	return Options{
		Domain:      geom.Rect{MinX: -3, MinY: -3, MaxX: 3, MaxY: 3},
		Integration: geom.Rect{MinX: -50, MinY: -50, MaxX: 50, MaxY: 50},
		Width:       200,
		Height:      200,
		GridW:       20,
		GridH:       20,
		Arrows:      vecfield.GridSpec{Cols: 6, Rows: 6},
		Style:       vecfield.DefaultArrowStyle(),
		Levels:      []float64{0.25, 0.5},
		Frames:      5,
		ChunkSize:   4,
		Count:       20,
		Seed:        9,
	}
}

func testSettings() Settings {
	return Settings{
		DataPoint: geom.V(1, 0.5),
		Noise:     schedule.Linear{},
		Diffusion: schedule.Constant{MaxSigma: 0.5},
		Steps:     50,
		Method:    integrate.MethodODE,
		Mode:      Conditional,
	}
}

func TestDrainCommitsAllOutputs(t *testing.T) {
	v := New(testOptions(), testSettings())
	assert.True(t, v.Busy())
	require.NoError(t, v.Drain(context.Background()))
	assert.False(t, v.Busy())

	ds := v.Densities()
	require.Len(t, ds, 5)
	assert.Equal(t, 0.0, ds[0].T)
	assert.Equal(t, 1.0, ds[4].T)
	assert.Len(t, ds[2].Contours, 2)
	assert.Equal(t, 20, ds[2].Grid.W)

	require.Len(t, v.Fields(), 5)
	require.Len(t, v.Trajectories(), 20)
}

func TestDataPointChangeMidFlight(t *testing.T) {
	v := New(testOptions(), testSettings())
	v.Step()

	target := geom.V(-2, 1)
	v.SetDataPoint(target)
	require.NoError(t, v.Drain(context.Background()))

	// Linear conditional paths are integrated exactly by Euler steps
	for _, tr := range v.Trajectories() {
		require.False(t, tr.Truncated)
		assert.InDelta(t, target.X, tr.End().X, 1e-4)
		assert.InDelta(t, target.Y, tr.End().Y, 1e-4)
	}

	for _, p := range v.Progress() {
		if p.Name == "trajectories" {
			assert.Equal(t, uint64(1), p.Stats.Aborted)
			assert.Equal(t, uint64(1), p.Stats.Committed)
		}
	}
}

func TestDiffusionOnlyInvalidatesTrajectories(t *testing.T) {
	v := New(testOptions(), testSettings())
	require.NoError(t, v.Drain(context.Background()))

	v.SetDiffusion(schedule.SineBump{MaxSigma: 1})
	v.SetSteps(50) // unchanged, no request

	requested := map[string]uint64{}
	for _, p := range v.Progress() {
		requested[p.Name] = p.Stats.Requested
	}
	assert.Equal(t, uint64(1), requested["density"])
	assert.Equal(t, uint64(1), requested["field"])
	assert.Equal(t, uint64(2), requested["trajectories"])
}

func TestSDETrajectoriesAreReproducible(t *testing.T) {
	s := testSettings()
	s.Method = integrate.MethodSDE
	a := NewBatch(s, testOptions().Integration, 3, 4).Run()
	b := NewBatch(s, testOptions().Integration, 3, 4).Run()
	require.Len(t, a, 4)
	assert.Equal(t, a, b)

	ode := testSettings()
	c := NewBatch(ode, testOptions().Integration, 3, 4).Run()
	assert.NotEqual(t, a[0].End(), c[0].End())
}

func TestNonstandardScheduleWarns(t *testing.T) {
	var buf bytes.Buffer
	opts := testOptions()
	opts.Logger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	v := New(opts, testSettings())
	assert.NotContains(t, buf.String(), "nonstandard_schedule")

	c := schedule.Circular{Theta0: 0.2, Theta1: 1.4}
	v.SetNoise(c)
	assert.Contains(t, buf.String(), `"msg":"nonstandard_schedule"`)
	assert.Equal(t, c, v.Settings().Noise, "schedule is used as given")
}

func TestConditionalPropagationIsClosedForm(t *testing.T) {
	v := New(testOptions(), testSettings())
	v.Propagate(1)
	assert.Equal(t, 20, v.ParticleCount())

	v.EachParticle(func(pos geom.Vec2, _ *components.Trail) {
		assert.InDelta(t, 1, pos.X, 1e-12)
		assert.InDelta(t, 0.5, pos.Y, 1e-12)
	})
}

func TestPropagationResetsWhenTimeRunsBackwards(t *testing.T) {
	trailLen := func(v *View) int {
		n := -1
		v.EachParticle(func(_ geom.Vec2, tr *components.Trail) { n = tr.Count })
		return n
	}

	v := New(testOptions(), testSettings())
	v.Propagate(0.5)
	v.Propagate(0.8)
	assert.Equal(t, 2, trailLen(v), "moving forward continues")
	v.Propagate(0.2)
	assert.Equal(t, 1, trailLen(v), "moving backward resets")

	last, ok := v.LastTime()
	assert.True(t, ok)
	assert.Equal(t, 0.2, last)

	// An input change resamples the cloud
	v.SetSteps(10)
	v.Propagate(0.3)
	assert.Equal(t, 1, trailLen(v))
}

func TestMarginalPropagationContinues(t *testing.T) {
	s := testSettings()
	s.Mode = Marginal
	s.Mixture = mixture.Point(s.DataPoint)
	v := New(testOptions(), s)

	v.Propagate(0.5)
	v.Propagate(0.9)

	// For a single point the marginal drift equals the conditional one, and
	// linear paths are integrated exactly, so stepping lands on the closed form
	var got, want []geom.Vec2
	v.EachParticle(func(pos geom.Vec2, _ *components.Trail) { got = append(got, pos) })
	query := v.filter.Query()
	for query.Next() {
		_, origin, _ := query.Get()
		want = append(want, origin.Z.Scale(0.9).Add(origin.Eps.Scale(0.1)))
	}
	require.Len(t, got, 20)
	for i := range got {
		assert.InDelta(t, want[i].X, got[i].X, 1e-4)
		assert.InDelta(t, want[i].Y, got[i].Y, 1e-4)
	}
}

func TestEditMixture(t *testing.T) {
	s := testSettings()
	s.Mixture = mixture.Point(geom.V(0, 0))
	v := New(testOptions(), s)
	before := v.Version()

	boom := errors.New("boom")
	err := v.EditMixture(func(m *mixture.Mixture) error {
		_ = m.SetMean(0, geom.V(5, 5))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, v.Version())
	assert.Equal(t, geom.V(0, 0), v.Settings().Mixture.Component(0).Mean)

	require.NoError(t, v.EditMixture(func(m *mixture.Mixture) error {
		return m.SetMean(0, geom.V(2, 2))
	}))
	assert.Equal(t, before+1, v.Version())
	assert.Equal(t, geom.V(2, 2), v.Settings().Mixture.Component(0).Mean)
}

func TestFrameLookup(t *testing.T) {
	v := New(testOptions(), testSettings())
	_, ok := v.FieldAt(0.5)
	assert.False(t, ok, "nothing committed yet")

	require.NoError(t, v.Drain(context.Background()))
	f, ok := v.FieldAt(0.6)
	require.True(t, ok)
	assert.Equal(t, 0.5, f.T)

	d, ok := v.DensityAt(2)
	require.True(t, ok)
	assert.Equal(t, 1.0, d.T)
}

func TestFrameTime(t *testing.T) {
	assert.Equal(t, 0.0, FrameTime(0, 1))
	assert.Equal(t, 0.25, FrameTime(1, 5))
	assert.Equal(t, 1.0, FrameTime(4, 5))
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	v := New(OptionsFromConfig(cfg), SettingsFromConfig(cfg))
	assert.Equal(t, Conditional, v.Settings().Mode)
	assert.Equal(t, 3, v.Settings().Mixture.Len())
	assert.Equal(t, cfg.Contours.Levels, v.Options().Levels)
	v.Cancel()
	assert.False(t, v.Busy())
}

func TestLearnedDriftReplacesClosedForm(t *testing.T) {
	v := New(testOptions(), testSettings())
	require.NoError(t, v.Drain(context.Background()))

	still := vecfield.ProviderFunc(func(geom.Vec2, float64) geom.Vec2 { return geom.Vec2{} })
	v.SetLearned(still)
	require.NoError(t, v.Drain(context.Background()))

	for _, tr := range v.Trajectories() {
		assert.Equal(t, tr.Points[0], tr.End(), "zero drift leaves particles in place")
	}
	f, ok := v.FieldAt(0.5)
	require.True(t, ok)
	assert.Empty(t, f.Field.Arrows)

	for _, p := range v.Progress() {
		if p.Name == "density" {
			assert.Equal(t, uint64(1), p.Stats.Requested)
		}
	}
}

func TestUnscoredMarginalSDEWarnsOnce(t *testing.T) {
	var buf bytes.Buffer
	opts := testOptions()
	opts.Logger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s := testSettings()
	s.Method = integrate.MethodMarginalSDE
	v := New(opts, s)
	assert.Equal(t, integrate.MethodMarginalSDE, v.Settings().EffectiveMethod())
	assert.NotContains(t, buf.String(), "score_correction_unavailable")

	learned := vecfield.ProviderFunc(func(x geom.Vec2, _ float64) geom.Vec2 { return x.Scale(-1) })
	v.SetLearned(learned)
	v.SetLearned(learned)
	assert.Equal(t, integrate.MethodSDE, v.Settings().EffectiveMethod())
	assert.Equal(t, 1, strings.Count(buf.String(), `"msg":"score_correction_unavailable"`))

	// Leaving the combination re-arms the warning
	v.SetMethod(integrate.MethodODE)
	v.SetMethod(integrate.MethodMarginalSDE)
	assert.Equal(t, 2, strings.Count(buf.String(), `"msg":"score_correction_unavailable"`))

	v.SetLearned(nil)
	assert.Equal(t, integrate.MethodMarginalSDE, v.Settings().EffectiveMethod())
	assert.Equal(t, 2, strings.Count(buf.String(), `"msg":"score_correction_unavailable"`))
}

func TestLearnedDriftMovesConditionalParticles(t *testing.T) {
	v := New(testOptions(), testSettings())
	still := vecfield.ProviderFunc(func(geom.Vec2, float64) geom.Vec2 { return geom.Vec2{} })
	v.SetLearned(still)
	v.Propagate(0.5)

	// Linear starts at β(0)·ε = ε; a zero drift keeps particles there
	// instead of placing them on the closed-form path
	var got, want []geom.Vec2
	v.EachParticle(func(pos geom.Vec2, _ *components.Trail) { got = append(got, pos) })
	query := v.filter.Query()
	for query.Next() {
		_, origin, _ := query.Get()
		want = append(want, origin.Eps)
	}
	require.Len(t, got, 20)
	for i := range got {
		assert.InDelta(t, want[i].X, got[i].X, 1e-12)
		assert.InDelta(t, want[i].Y, got[i].Y, 1e-12)
	}

	v.SetLearned(nil)
	v.Propagate(1)
	v.EachParticle(func(pos geom.Vec2, _ *components.Trail) {
		assert.InDelta(t, 1, pos.X, 1e-12)
		assert.InDelta(t, 0.5, pos.Y, 1e-12)
	})
}
