package renderer

import (
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/pathviz/density"
)

// DensityLayer uploads density grids to a GPU texture and stretches it over
// the plot area.
type DensityLayer struct {
	texture rl.Texture2D
	w, h    int
	pixels  []color.RGBA
	current *density.Grid
}

// NewDensityLayer creates an empty layer. Textures are allocated on the first
// Update.
func NewDensityLayer() *DensityLayer {
	return &DensityLayer{}
}

// Update uploads g if it differs from the grid already on the GPU.
func (d *DensityLayer) Update(g *density.Grid) {
	if g == nil || g == d.current || g.W < 1 || g.H < 1 {
		return
	}
	if g.W != d.w || g.H != d.h {
		d.unload()
		img := rl.GenImageColor(g.W, g.H, rl.Black)
		d.texture = rl.LoadTextureFromImage(img)
		rl.UnloadImage(img)
		rl.SetTextureFilter(d.texture, rl.FilterBilinear)
		d.w, d.h = g.W, g.H
	}
	d.pixels = Fill(d.pixels, g.Values, g.Max)
	rl.UpdateTexture(d.texture, d.pixels)
	d.current = g
}

// Draw stretches the texture over a width x height area at the origin.
func (d *DensityLayer) Draw(width, height float32) {
	if d.current == nil {
		return
	}
	rl.DrawTexturePro(
		d.texture,
		rl.Rectangle{X: 0, Y: 0, Width: float32(d.w), Height: float32(d.h)},
		rl.Rectangle{X: 0, Y: 0, Width: width, Height: height},
		rl.Vector2{X: 0, Y: 0},
		0,
		rl.White,
	)
}

// Unload frees the GPU texture.
func (d *DensityLayer) Unload() {
	d.unload()
	d.current = nil
}

func (d *DensityLayer) unload() {
	if d.w > 0 {
		rl.UnloadTexture(d.texture)
		d.w, d.h = 0, 0
	}
}
