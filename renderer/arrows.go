package renderer

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/pathviz/density"
	"github.com/pthm-cable/pathviz/geom"
	"github.com/pthm-cable/pathviz/vecfield"
)

// ArrowHead returns the two barb ends of an arrow drawn from origin along
// delta, in pixels. The head is at most 40% of the arrow length.
func ArrowHead(origin, delta geom.Vec2, size float64) (left, right geom.Vec2) {
	l := delta.Len()
	if l == 0 {
		return origin, origin
	}
	size = math.Min(size, 0.4*l)
	dir := delta.Scale(1 / l)
	perp := geom.V(-dir.Y, dir.X)
	tip := origin.Add(delta)
	base := tip.Sub(dir.Scale(size))
	return base.Add(perp.Scale(size / 2)), base.Sub(perp.Scale(size / 2))
}

// DrawField draws every arrow of f, brighter where the field is stronger.
func DrawField(f vecfield.Field) {
	for _, a := range f.Arrows {
		if a.Delta.LenSq() == 0 {
			continue
		}
		alpha := uint8(90 + 165*geom.Clamp(a.Magnitude, 0, 1))
		col := rl.Color{R: 235, G: 240, B: 245, A: alpha}
		tip := a.Pixel.Add(a.Delta)
		l, r := ArrowHead(a.Pixel, a.Delta, 4)
		rl.DrawLineV(vec(a.Pixel), vec(tip), col)
		rl.DrawLineV(vec(tip), vec(l), col)
		rl.DrawLineV(vec(tip), vec(r), col)
	}
}

// DrawContours draws the iso-lines of g, heavier for higher levels.
func DrawContours(g *density.Grid, cs []density.Contour) {
	for _, c := range cs {
		col := rl.Color{R: 255, G: 255, B: 255, A: uint8(60 + 150*geom.Clamp(c.Relative, 0, 1))}
		for _, line := range c.Lines {
			for i := 1; i < len(line.Points); i++ {
				a, b := line.Points[i-1], line.Points[i]
				ax, ay := g.Pixel(a.X, a.Y)
				bx, by := g.Pixel(b.X, b.Y)
				rl.DrawLineV(rl.Vector2{X: float32(ax), Y: float32(ay)}, rl.Vector2{X: float32(bx), Y: float32(by)}, col)
			}
		}
	}
}

func vec(v geom.Vec2) rl.Vector2 {
	return rl.Vector2{X: float32(v.X), Y: float32(v.Y)}
}
