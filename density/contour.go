package density

import "math"

// DefaultLevels are the relative contour levels, as fractions of the grid max.
var DefaultLevels = []float64{0.1, 0.25, 0.5, 0.75, 0.9}

// Point is a position in grid coordinates, within [0, W-1] x [0, H-1].
type Point struct {
	X, Y float64
}

// Segment is one iso-line piece inside a single grid cell.
type Segment struct {
	A, B Point
}

// Polyline is a chain of connected segments. Closed reports whether the first
// and last points coincide.
type Polyline struct {
	Points []Point
	Closed bool
}

// Contour holds the iso-lines of one level.
type Contour struct {
	Relative float64 // fraction of the grid max
	Level    float64 // absolute density
	Segments []Segment
	Lines    []Polyline
}

// cell edges
const (
	edgeTop = iota
	edgeRight
	edgeBottom
	edgeLeft
)

// cases maps a corner mask (bit0 top-left, bit1 top-right, bit2 bottom-right,
// bit3 bottom-left; set when above the level) to its edge pairs. The saddle
// masks 5 and 10 are resolved separately.
var cases = [16][][2]int{
	0:  nil,
	1:  {{edgeTop, edgeLeft}},
	2:  {{edgeTop, edgeRight}},
	3:  {{edgeLeft, edgeRight}},
	4:  {{edgeRight, edgeBottom}},
	6:  {{edgeTop, edgeBottom}},
	7:  {{edgeLeft, edgeBottom}},
	8:  {{edgeLeft, edgeBottom}},
	9:  {{edgeTop, edgeBottom}},
	11: {{edgeRight, edgeBottom}},
	12: {{edgeLeft, edgeRight}},
	13: {{edgeTop, edgeRight}},
	14: {{edgeTop, edgeLeft}},
	15: nil,
}

// Contours runs marching squares over g at each relative level (nil means
// DefaultLevels). Levels at or below zero, or an all-zero grid, yield empty
// contours.
func Contours(g *Grid, levels []float64) []Contour {
	if levels == nil {
		levels = DefaultLevels
	}
	out := make([]Contour, len(levels))
	for n, rel := range levels {
		c := Contour{Relative: rel, Level: rel * g.Max}
		if g.Max > 0 && rel > 0 && g.W >= 2 && g.H >= 2 {
			c.Segments = march(g, c.Level)
			c.Lines = Chain(c.Segments)
		}
		out[n] = c
	}
	return out
}

func march(g *Grid, level float64) []Segment {
	var segs []Segment
	for j := 0; j < g.H-1; j++ {
		for i := 0; i < g.W-1; i++ {
			v := [4]float64{g.At(i, j), g.At(i+1, j), g.At(i+1, j+1), g.At(i, j+1)}
			mask := 0
			for k, x := range v {
				if x > level {
					mask |= 1 << k
				}
			}

			pairs := cases[mask]
			switch mask {
			case 5, 10:
				center := (v[0] + v[1] + v[2] + v[3]) / 4
				// Above-level center joins the above corners diagonally
				if (center > level) == (mask == 5) {
					pairs = [][2]int{{edgeTop, edgeRight}, {edgeLeft, edgeBottom}}
				} else {
					pairs = [][2]int{{edgeTop, edgeLeft}, {edgeRight, edgeBottom}}
				}
			}

			for _, p := range pairs {
				segs = append(segs, Segment{
					A: crossing(i, j, p[0], v, level),
					B: crossing(i, j, p[1], v, level),
				})
			}
		}
	}
	return segs
}

// crossing linearly interpolates the level crossing along one cell edge.
func crossing(i, j, edge int, v [4]float64, level float64) Point {
	x, y := float64(i), float64(j)
	switch edge {
	case edgeTop:
		return Point{X: x + lerp(v[0], v[1], level), Y: y}
	case edgeRight:
		return Point{X: x + 1, Y: y + lerp(v[1], v[2], level)}
	case edgeBottom:
		return Point{X: x + lerp(v[3], v[2], level), Y: y + 1}
	default:
		return Point{X: x, Y: y + lerp(v[0], v[3], level)}
	}
}

func lerp(a, b, level float64) float64 {
	if a == b {
		return 0.5
	}
	f := (level - a) / (b - a)
	return math.Max(0, math.Min(1, f))
}

// Chain joins segments sharing endpoints into polylines.
func Chain(segs []Segment) []Polyline {
	byPoint := make(map[Point][]int, 2*len(segs))
	for n, s := range segs {
		byPoint[s.A] = append(byPoint[s.A], n)
		byPoint[s.B] = append(byPoint[s.B], n)
	}
	used := make([]bool, len(segs))

	// next finds an unused segment touching p and returns its other end.
	next := func(p Point) (Point, bool) {
		for _, n := range byPoint[p] {
			if used[n] {
				continue
			}
			used[n] = true
			if segs[n].A == p {
				return segs[n].B, true
			}
			return segs[n].A, true
		}
		return Point{}, false
	}

	var lines []Polyline
	for n, s := range segs {
		if used[n] {
			continue
		}
		used[n] = true

		pts := []Point{s.A, s.B}
		for {
			p, ok := next(pts[len(pts)-1])
			if !ok {
				break
			}
			pts = append(pts, p)
		}

		// Extend backwards from the start for open chains
		var head []Point
		for p := pts[0]; ; {
			q, ok := next(p)
			if !ok {
				break
			}
			head = append(head, q)
			p = q
		}
		if len(head) > 0 {
			for l, r := 0, len(head)-1; l < r; l, r = l+1, r-1 {
				head[l], head[r] = head[r], head[l]
			}
			pts = append(head, pts...)
		}

		lines = append(lines, Polyline{
			Points: pts,
			Closed: len(pts) > 2 && pts[0] == pts[len(pts)-1],
		})
	}
	return lines
}
