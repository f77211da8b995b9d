// Package renderer draws view frames with raylib: the density heatmap, its
// contour lines, drift arrows, trajectories and the live particle cloud.
package renderer

import (
	"image/color"

	"github.com/pthm-cable/pathviz/geom"
)

// Colormap maps a normalized density in [0, 1] to a color on a
// dark blue -> cyan -> yellow -> white gradient. Out-of-range values clamp.
func Colormap(v float64) color.RGBA {
	v = geom.Clamp(v, 0, 1)
	var r, g, b float64
	switch {
	case v < 0.25:
		t := v / 0.25
		r, g, b = 10+t*30, 20+t*60, 60+t*100
	case v < 0.5:
		t := (v - 0.25) / 0.25
		r, g, b = 40+t*20, 80+t*120, 160+t*40
	case v < 0.75:
		t := (v - 0.5) / 0.25
		r, g, b = 60+t*140, 200-t*40, 200-t*150
	default:
		t := (v - 0.75) / 0.25
		r, g, b = 200+t*55, 160+t*95, 50+t*205
	}
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}
}

// Fill writes the colormapped values into dst, reusing its storage.
func Fill(dst []color.RGBA, values []float64, max float64) []color.RGBA {
	if cap(dst) < len(values) {
		dst = make([]color.RGBA, len(values))
	}
	dst = dst[:len(values)]
	for i, v := range values {
		if max > 0 {
			v /= max
		} else {
			v = 0
		}
		dst[i] = Colormap(v)
	}
	return dst
}
