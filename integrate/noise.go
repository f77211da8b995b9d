package integrate

import (
	"math"
	"math/rand/v2"

	"github.com/pthm-cable/pathviz/geom"
)

// Increments is a pre-generated Brownian path: one N(0, dt) pair per step.
// Reusing the same Increments reproduces the same realized trajectory.
type Increments []geom.Vec2

// Steps returns the number of steps the increments cover.
func (w Increments) Steps() int { return len(w) }

// boxMuller returns two independent standard normals from two uniforms.
func boxMuller(rng *rand.Rand) (float64, float64) {
	u1 := 1 - rng.Float64() // (0, 1]
	u2 := rng.Float64()
	r := math.Sqrt(-2 * math.Log(u1))
	s, c := math.Sincos(2 * math.Pi * u2)
	return r * c, r * s
}

// NewNoise draws the Brownian increments for a trajectory of the given step
// count over t ∈ [0, 1].
func NewNoise(rng *rand.Rand, steps int) Increments {
	if steps < 1 {
		return nil
	}
	sd := math.Sqrt(1 / float64(steps))
	w := make(Increments, steps)
	for k := range w {
		a, b := boxMuller(rng)
		w[k] = geom.Vec2{X: a * sd, Y: b * sd}
	}
	return w
}

// NewNoiseSet draws independent increments for n trajectories.
func NewNoiseSet(rng *rand.Rand, n, steps int) []Increments {
	out := make([]Increments, n)
	for i := range out {
		out[i] = NewNoise(rng, steps)
	}
	return out
}

// StandardNormal draws n points from N(0, I), the t=0 end of a standard path.
func StandardNormal(rng *rand.Rand, n int) []geom.Vec2 {
	out := make([]geom.Vec2, n)
	for i := range out {
		a, b := boxMuller(rng)
		out[i] = geom.Vec2{X: a, Y: b}
	}
	return out
}
