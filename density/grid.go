// Package density rasterizes time-transformed Gaussian mixtures onto a pixel
// grid and extracts iso-probability contours from the result.
package density

import (
	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/pathviz/mixture"
	"github.com/pthm-cable/pathviz/scale"
	"github.com/pthm-cable/pathviz/schedule"
)

// Grid is a dense W x H array of density samples, row-major from the top-left
// pixel. A Grid is produced whole and never mutated after it is returned.
type Grid struct {
	W, H   int
	Values []float64
	Max    float64

	// Pixel size of one cell
	CellW, CellH float64
}

// At returns the density of cell (i, j).
func (g *Grid) At(i, j int) float64 {
	return g.Values[j*g.W+i]
}

// Normalized returns the density of cell (i, j) divided by the grid max,
// or 0 for an all-zero grid.
func (g *Grid) Normalized(i, j int) float64 {
	if g.Max <= 0 {
		return 0
	}
	return g.At(i, j) / g.Max
}

// Pixel converts (possibly fractional) grid coordinates to the pixel position
// of the corresponding cell center.
func (g *Grid) Pixel(gx, gy float64) (px, py float64) {
	return (gx + 0.5) * g.CellW, (gy + 0.5) * g.CellH
}

// Evaluate samples the density of m on the path defined by s at time t over a
// w x h grid spanning frame. Each cell is evaluated at its pixel center mapped
// back through the frame's scales.
func Evaluate(m *mixture.Mixture, s schedule.Noise, t float64, frame *scale.Frame, w, h int) *Grid {
	return EvaluateSnapshot(m.AtTime(s, t), frame, w, h)
}

// EvaluateSnapshot rasterizes an already transformed mixture.
func EvaluateSnapshot(snap mixture.Snapshot, frame *scale.Frame, w, h int) *Grid {
	if w < 1 || h < 1 {
		return &Grid{}
	}
	g := &Grid{
		W:      w,
		H:      h,
		Values: make([]float64, w*h),
		CellW:  frame.Width / float64(w),
		CellH:  frame.Height / float64(h),
	}

	xs := centers(w, g.CellW)
	ys := centers(h, g.CellH)
	for j, py := range ys {
		row := g.Values[j*w : (j+1)*w]
		for i, px := range xs {
			v := snap.Density(frame.Inverse(px, py))
			row[i] = v
			if v > g.Max {
				g.Max = v
			}
		}
	}
	return g
}

// centers returns the n cell-center offsets for cells of the given size.
func centers(n int, size float64) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = size / 2
		return out
	}
	return floats.Span(out, size/2, (float64(n)-0.5)*size)
}
