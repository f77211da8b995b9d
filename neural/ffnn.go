// Package neural provides a small feedforward network that predicts the drift
// u(x, t) from learned weights, as a drop-in vecfield.Provider.
package neural

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	"github.com/pthm-cable/pathviz/geom"
)

// Network dimensions. Inputs are (x, y, t); outputs are (u_x, u_y).
const (
	NumInputs  = 3
	NumOutputs = 2
)

// ErrShape is returned when serialized weights do not match the layer sizes.
var ErrShape = errors.New("neural: weight shape mismatch")

// FFNN is a two-layer tanh network. It is read-only after construction and
// safe for concurrent use.
type FFNN struct {
	Hidden int
	W1     []float64 // [Hidden * NumInputs], row major
	B1     []float64 // [Hidden]
	W2     []float64 // [NumOutputs * Hidden]
	B2     []float64 // [NumOutputs]
}

// NewFFNN creates a network with Xavier-initialized weights and zero biases.
func NewFFNN(rng *rand.Rand, hidden int) *FFNN {
	if hidden < 1 {
		hidden = 1
	}
	nn := &FFNN{
		Hidden: hidden,
		W1:     make([]float64, hidden*NumInputs),
		B1:     make([]float64, hidden),
		W2:     make([]float64, NumOutputs*hidden),
		B2:     make([]float64, NumOutputs),
	}
	scale1 := math.Sqrt(2.0 / NumInputs)
	scale2 := math.Sqrt(2.0 / float64(hidden))
	for i := range nn.W1 {
		nn.W1[i] = rng.NormFloat64() * scale1
	}
	for i := range nn.W2 {
		nn.W2[i] = rng.NormFloat64() * scale2
	}
	return nn
}

// Forward computes the raw outputs for one input.
func (nn *FFNN) Forward(x, y, t float64) (ux, uy float64) {
	var out [NumOutputs]float64
	copy(out[:], nn.B2)
	for i := 0; i < nn.Hidden; i++ {
		row := nn.W1[i*NumInputs : (i+1)*NumInputs]
		h := math.Tanh(nn.B1[i] + row[0]*x + row[1]*y + row[2]*t)
		for o := 0; o < NumOutputs; o++ {
			out[o] += nn.W2[o*nn.Hidden+i] * h
		}
	}
	return out[0], out[1]
}

// Activations holds captured intermediate layer values.
type Activations struct {
	Inputs  [NumInputs]float64
	Hidden  []float64
	Outputs [NumOutputs]float64
}

// ForwardWithCapture is Forward that also records the hidden layer.
func (nn *FFNN) ForwardWithCapture(x, y, t float64) (ux, uy float64, act *Activations) {
	act = &Activations{
		Inputs: [NumInputs]float64{x, y, t},
		Hidden: make([]float64, nn.Hidden),
	}
	copy(act.Outputs[:], nn.B2)
	for i := 0; i < nn.Hidden; i++ {
		row := nn.W1[i*NumInputs : (i+1)*NumInputs]
		h := math.Tanh(nn.B1[i] + row[0]*x + row[1]*y + row[2]*t)
		act.Hidden[i] = h
		for o := 0; o < NumOutputs; o++ {
			act.Outputs[o] += nn.W2[o*nn.Hidden+i] * h
		}
	}
	return act.Outputs[0], act.Outputs[1], act
}

// Clone creates a deep copy of the network.
func (nn *FFNN) Clone() *FFNN {
	return &FFNN{
		Hidden: nn.Hidden,
		W1:     append([]float64(nil), nn.W1...),
		B1:     append([]float64(nil), nn.B1...),
		W2:     append([]float64(nil), nn.W2...),
		B2:     append([]float64(nil), nn.B2...),
	}
}

// Weights holds flattened network weights for serialization.
type Weights struct {
	Hidden int       `json:"hidden"`
	W1     []float64 `json:"w1"`
	B1     []float64 `json:"b1"`
	W2     []float64 `json:"w2"`
	B2     []float64 `json:"b2"`
}

// MarshalWeights copies the network weights into serializable form.
func (nn *FFNN) MarshalWeights() Weights {
	c := nn.Clone()
	return Weights{Hidden: c.Hidden, W1: c.W1, B1: c.B1, W2: c.W2, B2: c.B2}
}

// UnmarshalWeights builds a network from flattened weights. Unlike a partial
// restore, every layer must have exactly the size implied by Hidden.
func UnmarshalWeights(w Weights) (*FFNN, error) {
	h := w.Hidden
	switch {
	case h < 1:
		return nil, fmt.Errorf("%w: hidden=%d", ErrShape, h)
	case len(w.W1) != h*NumInputs:
		return nil, fmt.Errorf("%w: w1 has %d values, want %d", ErrShape, len(w.W1), h*NumInputs)
	case len(w.B1) != h:
		return nil, fmt.Errorf("%w: b1 has %d values, want %d", ErrShape, len(w.B1), h)
	case len(w.W2) != NumOutputs*h:
		return nil, fmt.Errorf("%w: w2 has %d values, want %d", ErrShape, len(w.W2), NumOutputs*h)
	case len(w.B2) != NumOutputs:
		return nil, fmt.Errorf("%w: b2 has %d values, want %d", ErrShape, len(w.B2), NumOutputs)
	}
	nn := &FFNN{Hidden: h}
	nn.W1 = append([]float64(nil), w.W1...)
	nn.B1 = append([]float64(nil), w.B1...)
	nn.W2 = append([]float64(nil), w.W2...)
	nn.B2 = append([]float64(nil), w.B2...)
	return nn, nil
}

// Predictor adapts a network to the drift provider interface. The network
// sees the clamped time so the endpoints stay inside its training range.
type Predictor struct {
	Net *FFNN
}

// Drift returns the predicted velocity at x and time t. Non-finite predictions
// collapse to zero.
func (p Predictor) Drift(x geom.Vec2, t float64) geom.Vec2 {
	ux, uy := p.Net.Forward(x.X, x.Y, geom.Clamp(t, 0, 1))
	u := geom.V(ux, uy)
	if !u.IsFinite() {
		return geom.Vec2{}
	}
	return u
}

// LoadPredictor decodes JSON weights from r.
func LoadPredictor(r io.Reader) (Predictor, error) {
	var w Weights
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return Predictor{}, fmt.Errorf("decoding weights: %w", err)
	}
	nn, err := UnmarshalWeights(w)
	if err != nil {
		return Predictor{}, err
	}
	return Predictor{Net: nn}, nil
}

// SavePredictor encodes the predictor's weights as JSON to w.
func SavePredictor(w io.Writer, p Predictor) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p.Net.MarshalWeights()); err != nil {
		return fmt.Errorf("encoding weights: %w", err)
	}
	return nil
}
