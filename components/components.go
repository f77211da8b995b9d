// Package components defines ECS components for the view's particle cloud.
package components

import "github.com/pthm-cable/pathviz/geom"

// Position is a particle's current location in data space.
type Position struct {
	X, Y float64
}

// Vec returns the position as a vector.
func (p Position) Vec() geom.Vec2 { return geom.V(p.X, p.Y) }

// Origin is the pair a particle was drawn from: a data sample Z and the
// standard normal sample Eps. Under a conditional path the particle sits at
// α(t)·Z + β(t)·Eps.
type Origin struct {
	Z   geom.Vec2
	Eps geom.Vec2
}

// TrailLength is the number of past positions kept per particle.
const TrailLength = 24

// Trail is a fixed-size ring of recent positions.
type Trail struct {
	Points [TrailLength]geom.Vec2
	Head   int // next write index
	Count  int
}

// Push records p, overwriting the oldest point when full.
func (t *Trail) Push(p geom.Vec2) {
	t.Points[t.Head] = p
	t.Head = (t.Head + 1) % TrailLength
	if t.Count < TrailLength {
		t.Count++
	}
}

// Reset empties the trail.
func (t *Trail) Reset() {
	t.Head = 0
	t.Count = 0
}

// Each calls fn for the stored points from oldest to newest.
func (t *Trail) Each(fn func(p geom.Vec2)) {
	start := t.Head - t.Count
	if start < 0 {
		start += TrailLength
	}
	for i := 0; i < t.Count; i++ {
		fn(t.Points[(start+i)%TrailLength])
	}
}
