package ui

import (
	"testing"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/stretchr/testify/assert"
)

func TestCycle(t *testing.T) {
	assert.Equal(t, 1, Cycle(0, 3, 1))
	assert.Equal(t, 0, Cycle(2, 3, 1), "wraps past the end")
	assert.Equal(t, 2, Cycle(0, 3, -1), "wraps below zero")
	assert.Equal(t, 0, Cycle(4, 0, 1), "no choices")
}

func TestControlsAdvance(t *testing.T) {
	c := Controls{Time: 0.5, Speed: 0.25}
	assert.False(t, c.Advance(1), "paused")
	assert.Equal(t, float32(0.5), c.Time)

	c.Animating = true
	assert.True(t, c.Advance(1))
	assert.InDelta(t, 0.75, c.Time, 1e-6)

	c.Advance(2)
	assert.Equal(t, float32(0), c.Time, "loops past t=1")
}

func TestFraction(t *testing.T) {
	assert.Equal(t, float32(1), Fraction(0, 0))
	assert.Equal(t, float32(0.25), Fraction(1, 4))
}

func TestLayerDefaults(t *testing.T) {
	reg := NewLayerRegistry()
	assert.True(t, reg.IsEnabled(LayerDensity))
	assert.True(t, reg.IsEnabled(LayerParticles))
	assert.False(t, reg.IsEnabled(LayerTrajectories))
	assert.False(t, reg.IsEnabled("missing"))
}

func TestLayerExclusive(t *testing.T) {
	reg := NewLayerRegistry()
	assert.True(t, reg.Toggle(LayerTrajectories))
	assert.False(t, reg.IsEnabled(LayerParticles), "enabling trajectories hides particles")

	reg.SetEnabled(LayerParticles, true)
	assert.False(t, reg.IsEnabled(LayerTrajectories))

	// Disabling leaves the other layer alone
	reg.SetEnabled(LayerParticles, false)
	assert.False(t, reg.IsEnabled(LayerTrajectories))
	assert.False(t, reg.Toggle("missing"))
}

func TestLayerKeyPress(t *testing.T) {
	reg := NewLayerRegistry()
	id, on, ok := reg.HandleKeyPress(rl.KeyC)
	assert.True(t, ok)
	assert.Equal(t, LayerContours, id)
	assert.False(t, on)

	_, _, ok = reg.HandleKeyPress(rl.KeyZ)
	assert.False(t, ok)
}
