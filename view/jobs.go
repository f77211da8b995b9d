package view

import (
	"math/rand/v2"

	"github.com/pthm-cable/pathviz/density"
	"github.com/pthm-cable/pathviz/geom"
	"github.com/pthm-cable/pathviz/integrate"
	"github.com/pthm-cable/pathviz/precompute"
	"github.com/pthm-cable/pathviz/vecfield"
)

// DensityFrame is the density grid and its contours at one time.
type DensityFrame struct {
	T        float64
	Grid     *density.Grid
	Contours []density.Contour
}

// FieldFrame is the arrow field at one time.
type FieldFrame struct {
	T     float64
	Field vecfield.Field
}

// FrameTime returns the time of frame i out of n, spread uniformly over [0, 1].
func FrameTime(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}

func densityBuilder(opts Options) precompute.Builder[Request, DensityFrame] {
	return func(req Request) precompute.Plan[DensityFrame] {
		target := req.Settings.Target()
		noise := req.Settings.Noise
		frame := req.Frame
		return precompute.Plan[DensityFrame]{
			Frames: opts.Frames,
			Seq: func(yield func(DensityFrame) bool) {
				for i := 0; i < opts.Frames; i++ {
					t := FrameTime(i, opts.Frames)
					g := density.Evaluate(target, noise, t, &frame, opts.GridW, opts.GridH)
					df := DensityFrame{T: t, Grid: g}
					if len(opts.Levels) > 0 {
						df.Contours = density.Contours(g, opts.Levels)
					}
					if !yield(df) {
						return
					}
				}
			},
		}
	}
}

func fieldBuilder(opts Options) precompute.Builder[Request, FieldFrame] {
	return func(req Request) precompute.Plan[FieldFrame] {
		p := req.Settings.Provider()
		frame := req.Frame
		return precompute.Plan[FieldFrame]{
			Frames: opts.Frames,
			Seq: func(yield func(FieldFrame) bool) {
				// Shared normalization keeps arrow lengths stable across frames
				peak := vecfield.GlobalMax(p, opts.Arrows, &frame, vecfield.GlobalMaxTime)
				for i := 0; i < opts.Frames; i++ {
					t := FrameTime(i, opts.Frames)
					f := vecfield.Sample(p, opts.Arrows, &frame, t, opts.Style, peak)
					if !yield(FieldFrame{T: t, Field: f}) {
						return
					}
				}
			},
		}
	}
}

// Starts draws the t=0 positions of n particles: α(0)·z + β(0)·ε with z from
// the target distribution. The same seed gives the same starts and noise, so
// editing an input changes the paths but not their realizations.
func Starts(s Settings, rng *rand.Rand, n int) (starts, zs, eps []geom.Vec2) {
	target := s.Target()
	zs = target.Sample(rng, n)
	eps = integrate.StandardNormal(rng, n)
	starts = make([]geom.Vec2, n)
	a0, b0 := s.Noise.Alpha(0), s.Noise.Beta(0)
	for i := range starts {
		starts[i] = zs[i].Scale(a0).Add(eps[i].Scale(b0))
	}
	return starts, zs, eps
}

// NewBatch builds the trajectory batch for a request. Noise is generated only
// for the stochastic methods.
func NewBatch(s Settings, domain geom.Rect, seed uint64, n int) integrate.Batch {
	rng := rand.New(rand.NewPCG(seed, 0))
	starts, _, _ := Starts(s, rng, n)
	b := integrate.Batch{
		Method:    s.Method,
		Provider:  s.Provider(),
		Diffusion: s.Diffusion,
		Starts:    starts,
		Steps:     s.Steps,
		Domain:    domain,
	}
	if s.Method == integrate.MethodSDE || s.Method == integrate.MethodMarginalSDE {
		b.Noise = integrate.NewNoiseSet(rng, n, s.Steps)
	}
	return b
}

func trajectoryBuilder(opts Options) precompute.Builder[Request, integrate.Trajectory] {
	return func(req Request) precompute.Plan[integrate.Trajectory] {
		if opts.Count < 1 {
			return precompute.Plan[integrate.Trajectory]{}
		}
		b := NewBatch(req.Settings, opts.Integration, opts.Seed, opts.Count)
		return precompute.Plan[integrate.Trajectory]{Frames: b.Len(), Seq: b.All()}
	}
}
