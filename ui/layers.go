package ui

import (
	rl "github.com/gen2brain/raylib-go/raylib"
)

// LayerID uniquely identifies a toggleable plot layer.
type LayerID string

// Standard layer IDs.
const (
	LayerDensity      LayerID = "density"
	LayerContours     LayerID = "contours"
	LayerArrows       LayerID = "arrows"
	LayerTrajectories LayerID = "trajectories"
	LayerParticles    LayerID = "particles"
	LayerComponents   LayerID = "components"
	LayerPerf         LayerID = "perf"
)

// LayerDescriptor defines a layer that can be toggled.
type LayerDescriptor struct {
	ID        LayerID
	Name      string
	Key       int32 // keyboard key to toggle (0 = no key)
	KeyLabel  string
	Category  string    // "plot" or "debug"
	Default   bool      // enabled at startup
	Exclusive []LayerID // disabled when this one is enabled
}

// LayerRegistry manages layer state and metadata.
type LayerRegistry struct {
	descriptors []LayerDescriptor
	byID        map[LayerID]LayerDescriptor
	enabled     map[LayerID]bool
}

// NewLayerRegistry creates a registry with the default layers.
func NewLayerRegistry() *LayerRegistry {
	reg := &LayerRegistry{
		byID:    make(map[LayerID]LayerDescriptor),
		enabled: make(map[LayerID]bool),
	}
	reg.registerDefaults()
	return reg
}

func (r *LayerRegistry) registerDefaults() {
	r.Register(LayerDescriptor{ID: LayerDensity, Name: "Density", Key: rl.KeyD, KeyLabel: "D", Category: "plot", Default: true})
	r.Register(LayerDescriptor{ID: LayerContours, Name: "Contours", Key: rl.KeyC, KeyLabel: "C", Category: "plot", Default: true})
	r.Register(LayerDescriptor{ID: LayerArrows, Name: "Drift Arrows", Key: rl.KeyV, KeyLabel: "V", Category: "plot", Default: true})

	// The precomputed paths and the live cloud show the same particles two ways
	r.Register(LayerDescriptor{
		ID: LayerTrajectories, Name: "Trajectories", Key: rl.KeyT, KeyLabel: "T", Category: "plot",
		Exclusive: []LayerID{LayerParticles},
	})
	r.Register(LayerDescriptor{
		ID: LayerParticles, Name: "Particles", Key: rl.KeyP, KeyLabel: "P", Category: "plot", Default: true,
		Exclusive: []LayerID{LayerTrajectories},
	})

	r.Register(LayerDescriptor{ID: LayerComponents, Name: "Mixture Means", Key: rl.KeyX, KeyLabel: "X", Category: "debug"})
	r.Register(LayerDescriptor{ID: LayerPerf, Name: "Perf", Key: rl.KeyF3, KeyLabel: "F3", Category: "debug"})
}

// Register adds a layer to the registry.
func (r *LayerRegistry) Register(desc LayerDescriptor) {
	r.descriptors = append(r.descriptors, desc)
	r.byID[desc.ID] = desc
	r.enabled[desc.ID] = desc.Default
}

// Toggle switches a layer on/off and handles exclusivity.
func (r *LayerRegistry) Toggle(id LayerID) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	r.SetEnabled(id, !r.enabled[id])
	return r.enabled[id]
}

// SetEnabled explicitly sets a layer's state.
func (r *LayerRegistry) SetEnabled(id LayerID, enabled bool) {
	desc, ok := r.byID[id]
	if !ok {
		return
	}
	r.enabled[id] = enabled
	if enabled {
		for _, excl := range desc.Exclusive {
			r.enabled[excl] = false
		}
	}
}

// IsEnabled returns whether a layer is shown.
func (r *LayerRegistry) IsEnabled(id LayerID) bool {
	return r.enabled[id]
}

// All returns all registered layers in registration order.
func (r *LayerRegistry) All() []LayerDescriptor {
	return r.descriptors
}

// HandleKeyPress toggles the layer bound to key.
// Returns the layer ID, its new state and whether a toggle occurred.
func (r *LayerRegistry) HandleKeyPress(key int32) (LayerID, bool, bool) {
	for _, desc := range r.descriptors {
		if desc.Key == key {
			return desc.ID, r.Toggle(desc.ID), true
		}
	}
	return "", false, false
}
