// Package viewer runs the interactive window: it feeds user input into a
// view.View, advances its precompute controllers once per frame and draws
// the committed results.
package viewer

import (
	"log/slog"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/pathviz/config"
	"github.com/pthm-cable/pathviz/integrate"
	"github.com/pthm-cable/pathviz/renderer"
	"github.com/pthm-cable/pathviz/schedule"
	"github.com/pthm-cable/pathviz/telemetry"
	"github.com/pthm-cable/pathviz/ui"
	"github.com/pthm-cable/pathviz/vecfield"
	"github.com/pthm-cable/pathviz/view"
)

const panelWidth = 270

// Methods lists the integration methods selectable in the panel.
var Methods = []integrate.Method{integrate.MethodODE, integrate.MethodSDE, integrate.MethodMarginalSDE}

// Options configures a Viewer beyond the loaded config.
type Options struct {
	OutputDir string            // snapshots go here; empty disables them
	Learned   vecfield.Provider // optional learned drift, toggled with L
}

// Viewer holds the complete interactive state.
type Viewer struct {
	cfg  *config.Config
	opts Options
	view *view.View

	controls ui.Controls
	panel    *ui.ControlsPanel
	layers   *ui.LayerRegistry
	layersUI *ui.LayersPanel
	progress *ui.ProgressPanel
	hud      *ui.HUD
	perfUI   *ui.PerfPanel

	density *renderer.DensityLayer
	perf    *telemetry.Profiler
	out     *telemetry.OutputManager

	drag        dragState
	lastVersion uint64
	lastTime    float32
	frames      int
	snapshots   int

	screenWidth, screenHeight float32
}

// New creates a viewer from cfg. It must be called after the window is open.
func New(cfg *config.Config, opts Options) *Viewer {
	s := view.SettingsFromConfig(cfg)
	perf := telemetry.NewProfiler(cfg.Telemetry.PerfWindow, time.Now)
	vopts := view.OptionsFromConfig(cfg)
	vopts.OnChunk = perf.ObserveChunk
	v := &Viewer{
		cfg:          cfg,
		opts:         opts,
		view:         view.New(vopts, s),
		panel:        ui.NewControlsPanel(0, 10, panelWidth),
		layers:       ui.NewLayerRegistry(),
		layersUI:     ui.NewLayersPanel(0, 0, panelWidth),
		progress:     ui.NewProgressPanel(0, 0, panelWidth),
		hud:          ui.NewHUD(),
		perfUI:       ui.NewPerfPanel(10, 130),
		density:      renderer.NewDensityLayer(),
		perf:         perf,
		screenWidth:  float32(cfg.Screen.Width),
		screenHeight: float32(cfg.Screen.Height),
		lastTime:     -1,
	}
	if !cfg.Contours.Enabled {
		v.layers.SetEnabled(ui.LayerContours, false)
	}
	v.controls = initialControls(cfg, s)
	v.panel.NoiseNames = kindNames(schedule.NoiseKinds)
	v.panel.DiffusionNames = kindNames(schedule.DiffusionKinds)
	v.panel.MethodNames = kindNames(Methods)
	v.layout()

	slog.Info("viewer_started",
		"mode", string(s.Mode),
		"noise", string(s.Noise.Kind()),
		"diffusion", string(s.Diffusion.Kind()),
		"particles", cfg.Trajectories.Count,
		"frames", cfg.View.Frames,
		"learned", opts.Learned != nil,
	)
	return v
}

// View exposes the underlying view.
func (v *Viewer) View() *view.View { return v.view }

// Update handles input, advances precomputation and moves the particles.
func (v *Viewer) Update() {
	v.perf.BeginFrame()

	v.perf.Stage(telemetry.StageInput)
	v.handleInput()
	v.controls.Advance(rl.GetFrameTime())

	v.perf.Stage(telemetry.StagePrecompute)
	v.view.Step()

	v.perf.Stage(telemetry.StagePropagate)
	if v.controls.Time != v.lastTime || v.view.Version() != v.lastVersion {
		v.view.Propagate(float64(v.controls.Time))
		v.lastTime = v.controls.Time
		v.lastVersion = v.view.Version()
	}
}

// Draw renders one frame and applies panel input for the next.
func (v *Viewer) Draw() {
	v.perf.Stage(telemetry.StageRender)
	rl.BeginDrawing()
	rl.ClearBackground(rl.Color{R: 8, G: 12, B: 28, A: 255})

	v.drawPlot()
	changed := v.drawUI()

	rl.EndDrawing()
	v.perf.EndFrame()

	if err := v.apply(changed); err != nil {
		slog.Warn("control_rejected", "error", err)
	}

	v.frames++
	if w := v.cfg.Telemetry.PerfWindow; w > 0 && v.frames%w == 0 {
		slog.Info("perf", "profile", v.perf.Profile())
	}
}

// Unload releases GPU resources and flushes snapshot files.
func (v *Viewer) Unload() {
	v.view.Cancel()
	v.density.Unload()
	if v.out != nil {
		if err := v.out.WriteProfile(v.perf.Profile(), int32(v.frames)); err != nil {
			slog.Warn("perf_write_failed", "error", err)
		}
		if err := v.out.Close(); err != nil {
			slog.Warn("output_close_failed", "error", err)
		}
	}
}

// layout places the right-hand panels for the current screen width.
func (v *Viewer) layout() {
	x := int32(v.screenWidth) - panelWidth - 10
	v.panel.SetPosition(x, 10)
}

func initialControls(cfg *config.Config, s view.Settings) ui.Controls {
	c := ui.Controls{
		Time:         float32(cfg.View.Time),
		Speed:        0.2,
		Steps:        s.Steps,
		DiffusionMax: float32(s.Diffusion.Max()),
		Marginal:     s.Mode == view.Marginal,
	}
	for i, k := range schedule.NoiseKinds {
		if k == s.Noise.Kind() {
			c.Noise = i
		}
	}
	for i, k := range schedule.DiffusionKinds {
		if k == s.Diffusion.Kind() {
			c.Diffusion = i
		}
	}
	for i, m := range Methods {
		if m == s.Method {
			c.Method = i
		}
	}
	return c
}

func kindNames[K ~string](kinds []K) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
