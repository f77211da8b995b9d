package vecfield

import (
	"fmt"
	"math"
	"strings"

	"github.com/pthm-cable/pathviz/geom"
	"github.com/pthm-cable/pathviz/scale"
)

// GlobalMaxTime is the near-terminal time used to sample the stable arrow max.
const GlobalMaxTime = 0.99

// Normalization selects how raw arrow lengths are compressed.
type Normalization string

const (
	NormLog   Normalization = "log"   // log(l+1)/log(max+1)
	NormPower Normalization = "power" // l^p/max^p
)

// ParseNormalization maps a config tag to a Normalization.
func ParseNormalization(s string) (Normalization, error) {
	switch n := Normalization(strings.ToLower(strings.TrimSpace(s))); n {
	case NormLog, NormPower:
		return n, nil
	}
	return "", fmt.Errorf("vecfield: unknown normalization %q", s)
}

// ArrowStyle controls arrow length compression.
type ArrowStyle struct {
	Normalization Normalization `yaml:"normalization"`
	Power         float64       `yaml:"power"`
	MinPx         float64       `yaml:"min_px"`
	MaxPx         float64       `yaml:"max_px"`
	MinRawPx      float64       `yaml:"min_raw_px"`
}

// DefaultArrowStyle returns power normalization with p=0.25 into a 3-10px band.
func DefaultArrowStyle() ArrowStyle {
	return ArrowStyle{
		Normalization: NormPower,
		Power:         0.25,
		MinPx:         3,
		MaxPx:         10,
		MinRawPx:      2,
	}
}

// Compress maps a raw pixel length to [0, 1] relative to peak.
func (s ArrowStyle) Compress(l, peak float64) float64 {
	if peak <= 0 || l <= 0 {
		return 0
	}
	var v float64
	switch s.Normalization {
	case NormLog:
		v = math.Log(l+1) / math.Log(peak+1)
	default:
		p := s.Power
		if p <= 0 {
			p = 0.25
		}
		v = math.Pow(l, p) / math.Pow(peak, p)
	}
	return geom.Clamp(v, 0, 1)
}

// Length maps a normalized magnitude into the [MinPx, MaxPx] band.
func (s ArrowStyle) Length(norm float64) float64 {
	return s.MinPx + norm*(s.MaxPx-s.MinPx)
}

// GridSpec is the arrow lattice: Cols x Rows cells across the frame, one arrow
// at each cell center.
type GridSpec struct {
	Cols int `yaml:"cols"`
	Rows int `yaml:"rows"`
}

// Arrow is one sampled field vector.
type Arrow struct {
	Origin geom.Vec2 // data space
	Pixel  geom.Vec2 // origin in pixel space
	Drift  geom.Vec2 // raw field value
	Delta  geom.Vec2 // pixel-space arrow, length in [MinPx, MaxPx]

	// Normalized magnitude in [0, 1]
	Magnitude float64
}

// Field is a set of arrows sampled at one time.
type Field struct {
	T      float64
	Max    float64 // max used for normalization
	Arrows []Arrow
}

// origins yields the pixel centers of the arrow lattice.
func origins(spec GridSpec, frame *scale.Frame, fn func(px, py float64)) {
	if spec.Cols < 1 || spec.Rows < 1 {
		return
	}
	cw := frame.Width / float64(spec.Cols)
	ch := frame.Height / float64(spec.Rows)
	for j := 0; j < spec.Rows; j++ {
		for i := 0; i < spec.Cols; i++ {
			fn((float64(i)+0.5)*cw, (float64(j)+0.5)*ch)
		}
	}
}

// rawPixel returns the screen displacement of drift u at x.
func rawPixel(frame *scale.Frame, x, u geom.Vec2) geom.Vec2 {
	x0, y0 := frame.Forward(x)
	x1, y1 := frame.Forward(x.Add(u))
	return geom.Vec2{X: x1 - x0, Y: y1 - y0}
}

// GlobalMax returns the largest raw pixel arrow length of p over the lattice
// at time t. Pass GlobalMaxTime for a max that stays stable while t animates.
func GlobalMax(p Provider, spec GridSpec, frame *scale.Frame, t float64) float64 {
	var peak float64
	origins(spec, frame, func(px, py float64) {
		x := frame.Inverse(px, py)
		u := p.Drift(x, t)
		if !u.IsFinite() {
			return
		}
		if l := rawPixel(frame, x, u).Len(); l > peak {
			peak = l
		}
	})
	return peak
}

// Sample evaluates p over the lattice at time t. Arrows shorter than
// style.MinRawPx on screen are dropped. Lengths are normalized against
// globalMax, or against this frame's max when globalMax is not positive.
func Sample(p Provider, spec GridSpec, frame *scale.Frame, t float64, style ArrowStyle, globalMax float64) Field {
	type raw struct {
		x, px, u, d geom.Vec2
		l           float64
	}
	var raws []raw
	var frameMax float64
	origins(spec, frame, func(px, py float64) {
		x := frame.Inverse(px, py)
		u := p.Drift(x, t)
		if !u.IsFinite() {
			return
		}
		d := rawPixel(frame, x, u)
		l := d.Len()
		frameMax = math.Max(frameMax, l)
		if l < style.MinRawPx {
			return
		}
		raws = append(raws, raw{x: x, px: geom.V(px, py), u: u, d: d, l: l})
	})

	peak := globalMax
	if peak <= 0 {
		peak = frameMax
	}
	f := Field{T: t, Max: peak, Arrows: make([]Arrow, 0, len(raws))}
	for _, r := range raws {
		norm := style.Compress(r.l, peak)
		f.Arrows = append(f.Arrows, Arrow{
			Origin:    r.x,
			Pixel:     r.px,
			Drift:     r.u,
			Delta:     r.d.Normalized().Scale(style.Length(norm)),
			Magnitude: norm,
		})
	}
	return f
}
