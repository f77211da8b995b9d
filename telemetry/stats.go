package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/pathviz/integrate"
	"github.com/pthm-cable/pathviz/vecfield"
)

// Summary kinds.
const (
	KindField        = "field"
	KindTrajectories = "trajectories"
	KindDensity      = "density"
)

// FrameStats summarizes the values of one precomputed frame.
type FrameStats struct {
	Kind  string  `csv:"kind"`
	Frame int     `csv:"frame"`
	T     float64 `csv:"t"`
	Count int     `csv:"count"`

	Mean float64 `csv:"mean"`
	Std  float64 `csv:"std"`
	P10  float64 `csv:"p10"`
	P50  float64 `csv:"p50"`
	P90  float64 `csv:"p90"`
	Max  float64 `csv:"max"`

	// Trajectories stopped early (non-finite or out of domain)
	Truncated int `csv:"truncated"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Summarize fills the distribution fields of s from values. The standard
// deviation is the population one.
func Summarize(s *FrameStats, values []float64) {
	s.Count = len(values)
	if len(values) == 0 {
		return
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	s.Mean = mean
	s.Std = math.Sqrt(variance)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	s.P10 = Percentile(sorted, 0.10)
	s.P50 = Percentile(sorted, 0.50)
	s.P90 = Percentile(sorted, 0.90)
	s.Max = sorted[len(sorted)-1]
}

// FieldStats summarizes the raw drift magnitudes of the drawn arrows.
func FieldStats(f vecfield.Field, frame int) FrameStats {
	s := FrameStats{Kind: KindField, Frame: frame, T: f.T}
	mags := make([]float64, len(f.Arrows))
	for i, a := range f.Arrows {
		mags[i] = a.Drift.Len()
	}
	Summarize(&s, mags)
	return s
}

// TrajectoryStats summarizes the end-point displacement of each trajectory.
func TrajectoryStats(trs []integrate.Trajectory) FrameStats {
	s := FrameStats{Kind: KindTrajectories, T: 1}
	disp := make([]float64, 0, len(trs))
	for _, tr := range trs {
		if tr.Truncated {
			s.Truncated++
		}
		if tr.Len() == 0 {
			continue
		}
		disp = append(disp, tr.End().Sub(tr.Points[0]).Len())
	}
	Summarize(&s, disp)
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s FrameStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kind", s.Kind),
		slog.Int("frame", s.Frame),
		slog.Float64("t", s.T),
		slog.Int("count", s.Count),
		slog.Float64("mean", s.Mean),
		slog.Float64("std", s.Std),
		slog.Float64("p50", s.P50),
		slog.Float64("max", s.Max),
		slog.Int("truncated", s.Truncated),
	)
}
