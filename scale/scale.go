// Package scale provides the affine mappings between data space and pixel space.
package scale

import "github.com/pthm-cable/pathviz/geom"

// Linear maps the data interval [D0, D1] onto the pixel interval [R0, R1].
// R1 may be smaller than R0 (flipped axis).
type Linear struct {
	D0, D1 float64
	R0, R1 float64
}

// Forward maps a data value to pixel space.
func (l Linear) Forward(d float64) float64 {
	if l.D1 == l.D0 {
		return l.R0
	}
	return l.R0 + (d-l.D0)*(l.R1-l.R0)/(l.D1-l.D0)
}

// Inverse maps a pixel value back to data space.
func (l Linear) Inverse(r float64) float64 {
	if l.R1 == l.R0 {
		return l.D0
	}
	return l.D0 + (r-l.R0)*(l.D1-l.D0)/(l.R1-l.R0)
}

// PixelsPerUnit returns the absolute pixel length of one data unit.
func (l Linear) PixelsPerUnit() float64 {
	if l.D1 == l.D0 {
		return 0
	}
	r := (l.R1 - l.R0) / (l.D1 - l.D0)
	if r < 0 {
		return -r
	}
	return r
}

// Frame is a 2D viewport: a data-space window shown in a Width x Height pixel area.
// The Y axis is flipped so larger data Y values appear higher on screen.
// Supports pan and zoom around a data-space center.
type Frame struct {
	// Base data window at zoom 1
	Domain geom.Rect

	// Pixel dimensions
	Width, Height float64

	// Current center in data coordinates and zoom level (1 = Domain fills the frame)
	CX, CY float64
	Zoom   float64

	MinZoom, MaxZoom float64

	X, Y Linear
}

// NewFrame creates a frame showing domain in a width x height pixel area.
func NewFrame(domain geom.Rect, width, height float64) *Frame {
	f := &Frame{
		Domain:  domain,
		Width:   width,
		Height:  height,
		CX:      (domain.MinX + domain.MaxX) / 2,
		CY:      (domain.MinY + domain.MaxY) / 2,
		Zoom:    1,
		MinZoom: 0.25,
		MaxZoom: 8,
	}
	f.rebuild()
	return f
}

// rebuild recomputes the axis scales from center and zoom.
func (f *Frame) rebuild() {
	halfW := f.Domain.Width() / (2 * f.Zoom)
	halfH := f.Domain.Height() / (2 * f.Zoom)
	f.X = Linear{D0: f.CX - halfW, D1: f.CX + halfW, R0: 0, R1: f.Width}
	f.Y = Linear{D0: f.CY - halfH, D1: f.CY + halfH, R0: f.Height, R1: 0}
}

// Forward converts a data point to pixel coordinates.
func (f *Frame) Forward(p geom.Vec2) (px, py float64) {
	return f.X.Forward(p.X), f.Y.Forward(p.Y)
}

// Inverse converts pixel coordinates to a data point.
func (f *Frame) Inverse(px, py float64) geom.Vec2 {
	return geom.Vec2{X: f.X.Inverse(px), Y: f.Y.Inverse(py)}
}

// Visible returns the data-space window currently shown.
func (f *Frame) Visible() geom.Rect {
	return geom.Rect{MinX: f.X.D0, MaxX: f.X.D1, MinY: f.Y.D0, MaxY: f.Y.D1}
}

// Pan drags the content by the given delta in screen pixels.
func (f *Frame) Pan(dx, dy float64) {
	// Screen right is data +X, screen down is data -Y
	f.CX -= dx / f.X.PixelsPerUnit()
	f.CY += dy / f.Y.PixelsPerUnit()
	f.rebuild()
}

// SetZoom sets the zoom level, clamped to min/max.
func (f *Frame) SetZoom(zoom float64) {
	f.Zoom = geom.Clamp(zoom, f.MinZoom, f.MaxZoom)
	f.rebuild()
}

// ZoomBy multiplies the current zoom by the given factor.
func (f *Frame) ZoomBy(factor float64) {
	f.SetZoom(f.Zoom * factor)
}

// Resize updates the pixel dimensions.
func (f *Frame) Resize(width, height float64) {
	if width == f.Width && height == f.Height {
		return
	}
	f.Width = width
	f.Height = height
	f.rebuild()
}

// Reset returns the frame to the base domain at zoom 1.
func (f *Frame) Reset() {
	f.CX = (f.Domain.MinX + f.Domain.MaxX) / 2
	f.CY = (f.Domain.MinY + f.Domain.MaxY) / 2
	f.Zoom = 1
	f.rebuild()
}
