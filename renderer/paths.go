package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/pathviz/components"
	"github.com/pthm-cable/pathviz/geom"
	"github.com/pthm-cable/pathviz/integrate"
	"github.com/pthm-cable/pathviz/scale"
)

var (
	pathColor     = rl.Color{R: 255, G: 170, B: 60, A: 255}
	particleColor = rl.Color{R: 120, G: 220, B: 255, A: 255}
	targetColor   = rl.Color{R: 255, G: 80, B: 80, A: 255}
)

// TrailFade returns the alpha scale of trail segment i of n, counted from the
// oldest point. Falloff is quadratic towards the tail.
func TrailFade(i, n int) float32 {
	if n <= 1 {
		return 1
	}
	f := float32(i+1) / float32(n)
	return f * f
}

// DrawTrajectories draws each path up to time t and a marker at its position
// at t. Truncated paths end where they left the domain.
func DrawTrajectories(trs []integrate.Trajectory, frame *scale.Frame, t float64) {
	rl.BeginBlendMode(rl.BlendAdditive)
	line := pathColor
	line.A = 40
	for _, tr := range trs {
		var prev rl.Vector2
		for i, p := range tr.Points {
			if tr.Times[i] > t {
				break
			}
			cur := pixel(frame, p)
			if i > 0 {
				rl.DrawLineV(prev, cur, line)
			}
			prev = cur
		}
		if tr.Len() > 0 {
			rl.DrawCircleV(pixel(frame, integrate.PathAt(tr, t)), 2, pathColor)
		}
	}
	rl.EndBlendMode()
}

// DrawParticles draws the live particle cloud with fading trails.
func DrawParticles(each func(fn func(pos geom.Vec2, trail *components.Trail)), frame *scale.Frame) {
	rl.BeginBlendMode(rl.BlendAdditive)
	each(func(pos geom.Vec2, trail *components.Trail) {
		n, i := trail.Count, 0
		var prev rl.Vector2
		trail.Each(func(p geom.Vec2) {
			cur := pixel(frame, p)
			if i > 0 {
				c := particleColor
				c.A = uint8(140 * TrailFade(i, n))
				rl.DrawLineV(prev, cur, c)
			}
			prev = cur
			i++
		})
		rl.DrawCircleV(pixel(frame, pos), 2.5, particleColor)
	})
	rl.EndBlendMode()
}

// DrawTarget marks the data point, ringed when it is being dragged.
func DrawTarget(frame *scale.Frame, z geom.Vec2, active bool) {
	p := pixel(frame, z)
	rl.DrawCircleV(p, 6, targetColor)
	if active {
		rl.DrawCircleLines(int32(p.X), int32(p.Y), 10, rl.White)
	}
}

// DrawComponents marks each mixture mean with a cross sized by its weight.
func DrawComponents(frame *scale.Frame, means []geom.Vec2, weights []float64, selected int) {
	for i, m := range means {
		p := pixel(frame, m)
		s := float32(4 + 10*weights[i])
		c := rl.Color{R: 255, G: 255, B: 255, A: 200}
		if i == selected {
			c = targetColor
		}
		rl.DrawLineV(rl.Vector2{X: p.X - s, Y: p.Y}, rl.Vector2{X: p.X + s, Y: p.Y}, c)
		rl.DrawLineV(rl.Vector2{X: p.X, Y: p.Y - s}, rl.Vector2{X: p.X, Y: p.Y + s}, c)
	}
}

func pixel(frame *scale.Frame, p geom.Vec2) rl.Vector2 {
	x, y := frame.Forward(p)
	return rl.Vector2{X: float32(x), Y: float32(y)}
}
