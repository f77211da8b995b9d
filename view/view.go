// Package view owns the interactive state of one live visualization: the
// data point and mixture, the chosen schedules, the step count, the sampled
// particle cloud and the last propagation time. Engine packages stay pure;
// the view passes its state into them and routes every invalidation through
// precompute controllers so stale work is abandoned rather than finished.
package view

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/pathviz/components"
	"github.com/pthm-cable/pathviz/config"
	"github.com/pthm-cable/pathviz/geom"
	"github.com/pthm-cable/pathviz/integrate"
	"github.com/pthm-cable/pathviz/mixture"
	"github.com/pthm-cable/pathviz/precompute"
	"github.com/pthm-cable/pathviz/scale"
	"github.com/pthm-cable/pathviz/schedule"
	"github.com/pthm-cable/pathviz/vecfield"
)

// Mode selects which path the view shows.
type Mode string

const (
	// Conditional shows the path towards the single data point.
	Conditional Mode = config.ModeConditional
	// Marginal shows the path towards the whole mixture.
	Marginal Mode = config.ModeMarginal
)

// Options are the fixed layout and budget of a view.
type Options struct {
	Domain      geom.Rect // data window
	Integration geom.Rect // particles leaving it are truncated
	Width       float64   // pixels
	Height      float64

	GridW, GridH int // density grid cells
	Arrows       vecfield.GridSpec
	Style        vecfield.ArrowStyle
	Levels       []float64 // relative contour levels; empty disables contours

	Frames    int // precomputed animation frames
	ChunkSize int
	Count     int // particles and trajectories
	Seed      uint64

	Logger *slog.Logger

	// OnChunk, when set, receives every precompute chunk's timing
	OnChunk func(precompute.ChunkReport)
}

// OptionsFromConfig builds view options from a loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Domain:      cfg.Derived.Domain,
		Integration: cfg.Derived.Integration,
		Width:       float64(cfg.Screen.Width),
		Height:      float64(cfg.Screen.Height),
		GridW:       cfg.View.GridWidth,
		GridH:       cfg.View.GridHeight,
		Arrows:      cfg.Derived.Arrows,
		Style:       cfg.Arrows,
		Frames:      cfg.View.Frames,
		ChunkSize:   cfg.View.ChunkSize,
		Count:       cfg.Trajectories.Count,
		Seed:        cfg.Trajectories.Seed,
	}
	if cfg.Contours.Enabled {
		opts.Levels = cfg.Contours.Levels
	}
	return opts
}

// Settings are the inputs whose change invalidates precomputed work.
type Settings struct {
	DataPoint geom.Vec2
	Mixture   *mixture.Mixture
	Noise     schedule.Noise
	Diffusion schedule.Diffusion
	Steps     int
	Method    integrate.Method
	Mode      Mode

	// Learned replaces the closed-form drift when set, e.g. a neural.Predictor
	Learned vecfield.Provider
}

// SettingsFromConfig builds the initial settings from a loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		DataPoint: cfg.Derived.DataPoint,
		Mixture:   cfg.Derived.Mixture.Clone(),
		Noise:     cfg.Derived.Noise,
		Diffusion: cfg.Derived.Diffusion,
		Steps:     cfg.Trajectories.Steps,
		Method:    cfg.Derived.Method,
		Mode:      Mode(cfg.View.Mode),
	}
}

// Target returns the distribution the path ends at.
func (s Settings) Target() *mixture.Mixture {
	if s.Mode == Marginal && s.Mixture != nil && s.Mixture.Len() > 0 {
		return s.Mixture
	}
	return mixture.Point(s.DataPoint)
}

// Provider returns the drift for the current mode.
func (s Settings) Provider() vecfield.Provider {
	if s.Learned != nil {
		return s.Learned
	}
	if s.Mode == Marginal {
		return vecfield.NewMarginal(s.Noise, s.Target())
	}
	return vecfield.NewConditional(s.Noise, s.DataPoint)
}

// EffectiveMethod is the method trajectories are actually integrated with:
// marginal_sde needs a scored drift and otherwise runs as sde.
func (s Settings) EffectiveMethod() integrate.Method {
	if s.Method == integrate.MethodMarginalSDE {
		if _, ok := s.Provider().(integrate.ScoredProvider); !ok {
			return integrate.MethodSDE
		}
	}
	return s.Method
}

// Request is an immutable snapshot handed to the precompute builders.
type Request struct {
	Version  uint64
	Settings Settings
	Frame    scale.Frame
}

// deps marks which precomputed outputs an input feeds.
type deps uint8

const (
	depDensity deps = 1 << iota
	depField
	depTrajectories
	depParticles

	depLayout = depDensity | depField
	depAll    = depDensity | depField | depTrajectories | depParticles
)

// View is driven from a single goroutine.
type View struct {
	opts     Options
	log      *slog.Logger
	settings Settings
	frame    *scale.Frame
	version  uint64

	densities    *precompute.Controller[Request, DensityFrame]
	fields       *precompute.Controller[Request, FieldFrame]
	trajectories *precompute.Controller[Request, integrate.Trajectory]

	// Particle cloud
	world    *ecs.World
	mapper   *ecs.Map3[components.Position, components.Origin, components.Trail]
	filter   *ecs.Filter3[components.Position, components.Origin, components.Trail]
	rng      *rand.Rand
	drift    vecfield.Provider
	resample bool
	lastTime float64
	hasLast  bool

	// The unscored marginal_sde fallback was already reported
	scoreWarned bool
}

// New creates a view and issues the initial precompute requests.
func New(opts Options, s Settings) *View {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Frames < 1 {
		opts.Frames = 1
	}
	if opts.ChunkSize < 1 {
		opts.ChunkSize = precompute.DefaultChunkSize
	}
	if s.Steps < 1 {
		s.Steps = 1
	}
	if s.Mode == "" {
		s.Mode = Conditional
	}
	if s.Mixture != nil {
		s.Mixture = s.Mixture.Clone()
	}

	world := ecs.NewWorld()
	v := &View{
		opts:     opts,
		log:      opts.Logger,
		settings: s,
		frame:    scale.NewFrame(opts.Domain, opts.Width, opts.Height),
		world:    world,
		mapper:   ecs.NewMap3[components.Position, components.Origin, components.Trail](world),
		filter:   ecs.NewFilter3[components.Position, components.Origin, components.Trail](world),
		rng:      rand.New(rand.NewPCG(opts.Seed, 0x70617468)),
	}

	v.densities = precompute.New("density", densityBuilder(opts),
		precompute.WithChunkSize[Request, DensityFrame](opts.ChunkSize),
		precompute.WithLogger[Request, DensityFrame](v.log),
		precompute.WithChunkObserver[Request, DensityFrame](opts.OnChunk))
	v.fields = precompute.New("field", fieldBuilder(opts),
		precompute.WithChunkSize[Request, FieldFrame](opts.ChunkSize),
		precompute.WithLogger[Request, FieldFrame](v.log),
		precompute.WithChunkObserver[Request, FieldFrame](opts.OnChunk))
	v.trajectories = precompute.New("trajectories", trajectoryBuilder(opts),
		precompute.WithChunkSize[Request, integrate.Trajectory](opts.ChunkSize),
		precompute.WithLogger[Request, integrate.Trajectory](v.log),
		precompute.WithChunkObserver[Request, integrate.Trajectory](opts.OnChunk))

	v.checkSchedule(s.Noise)
	v.checkScore()
	v.invalidate("init", depAll)
	return v
}

// Settings returns a copy of the current settings.
func (v *View) Settings() Settings {
	s := v.settings
	if s.Mixture != nil {
		s.Mixture = s.Mixture.Clone()
	}
	return s
}

// Options returns the view's layout.
func (v *View) Options() Options { return v.opts }

// Frame returns the live coordinate frame. Call Reframe after panning or
// zooming it.
func (v *View) Frame() *scale.Frame { return v.frame }

// Version counts invalidations.
func (v *View) Version() uint64 { return v.version }

// SetDataPoint moves the conditional target.
func (v *View) SetDataPoint(p geom.Vec2) {
	if p == v.settings.DataPoint {
		return
	}
	v.settings.DataPoint = p
	v.invalidate("data_point", depAll)
}

// SetMixture replaces the data distribution.
func (v *View) SetMixture(m *mixture.Mixture) {
	v.settings.Mixture = m.Clone()
	v.invalidate("mixture", depAll)
}

// EditMixture applies fn to a copy of the mixture and keeps the result only
// when fn succeeds.
func (v *View) EditMixture(fn func(m *mixture.Mixture) error) error {
	var m *mixture.Mixture
	if v.settings.Mixture != nil {
		m = v.settings.Mixture.Clone()
	} else {
		m = mixture.Point(v.settings.DataPoint)
	}
	if err := fn(m); err != nil {
		return err
	}
	v.settings.Mixture = m
	v.invalidate("mixture", depAll)
	return nil
}

// SetNoise switches the noise schedule.
func (v *View) SetNoise(n schedule.Noise) {
	v.checkSchedule(n)
	v.settings.Noise = n
	v.invalidate("noise_schedule", depAll)
}

// SetDiffusion switches the diffusion schedule. Only stochastic trajectories
// depend on it.
func (v *View) SetDiffusion(d schedule.Diffusion) {
	v.settings.Diffusion = d
	v.invalidate("diffusion_schedule", depTrajectories)
}

// SetSteps changes the integration step count.
func (v *View) SetSteps(steps int) {
	if steps < 1 {
		steps = 1
	}
	if steps == v.settings.Steps {
		return
	}
	v.settings.Steps = steps
	v.invalidate("steps", depTrajectories|depParticles)
}

// SetMethod changes how trajectories are integrated.
func (v *View) SetMethod(m integrate.Method) {
	if m == v.settings.Method {
		return
	}
	v.settings.Method = m
	v.checkScore()
	v.invalidate("method", depTrajectories)
}

// SetLearned installs a learned drift, or restores the closed form when p is
// nil. Densities are unaffected.
func (v *View) SetLearned(p vecfield.Provider) {
	v.settings.Learned = p
	v.checkScore()
	v.invalidate("learned_drift", depField|depTrajectories|depParticles)
}

// SetMode switches between the conditional and marginal paths.
func (v *View) SetMode(m Mode) {
	if m == v.settings.Mode {
		return
	}
	v.settings.Mode = m
	v.invalidate("mode", depAll)
}

// Resize changes the pixel area.
func (v *View) Resize(width, height float64) {
	v.opts.Width, v.opts.Height = width, height
	v.frame.Resize(width, height)
	v.invalidate("resize", depLayout)
}

// Reframe recomputes pixel-dependent outputs after a pan or zoom.
func (v *View) Reframe() {
	v.invalidate("reframe", depLayout)
}

// checkSchedule warns about schedules that do not run from pure noise to
// pure data. They are used as given.
func (v *View) checkSchedule(n schedule.Noise) {
	if n == nil || schedule.Standard(n) {
		return
	}
	v.log.Warn("nonstandard_schedule",
		"kind", string(n.Kind()),
		"alpha0", n.Alpha(0),
		"beta0", n.Beta(0),
		"alpha1", n.Alpha(1),
		"beta1", n.Beta(1),
	)
}

// checkScore warns, once per occurrence, when marginal_sde is paired with a
// drift that has no score. Such batches integrate as a plain SDE.
func (v *View) checkScore() {
	if v.settings.EffectiveMethod() == v.settings.Method {
		v.scoreWarned = false
		return
	}
	if v.scoreWarned {
		return
	}
	v.scoreWarned = true
	v.log.Warn("score_correction_unavailable",
		"method", string(v.settings.Method),
		"learned", v.settings.Learned != nil,
		"fallback", string(integrate.MethodSDE),
	)
}

// invalidate issues new requests to every controller fed by the change.
func (v *View) invalidate(reason string, d deps) {
	v.version++
	req := Request{Version: v.version, Settings: v.Settings(), Frame: *v.frame}
	v.drift = v.settings.Provider()

	if d&depDensity != 0 {
		v.densities.Update(req)
	}
	if d&depField != 0 {
		v.fields.Update(req)
	}
	if d&depTrajectories != 0 {
		v.trajectories.Update(req)
	}
	if d&depParticles != 0 {
		v.resample = true
	}
	v.log.Debug("view_invalidated", "reason", reason, "version", v.version)
}

// Step advances every controller by one chunk and reports whether any work
// remains.
func (v *View) Step() bool {
	busy := v.densities.Step()
	busy = v.fields.Step() || busy
	busy = v.trajectories.Step() || busy
	return busy
}

// Busy reports whether any controller has work in flight or pending.
func (v *View) Busy() bool {
	return v.densities.State() == precompute.Computing ||
		v.fields.State() == precompute.Computing ||
		v.trajectories.State() == precompute.Computing
}

// Drain runs every controller to completion.
func (v *View) Drain(ctx context.Context) error {
	if err := v.densities.Drain(ctx); err != nil {
		return err
	}
	if err := v.fields.Drain(ctx); err != nil {
		return err
	}
	return v.trajectories.Drain(ctx)
}

// Cancel drops all in-flight and pending work. Committed results stay.
func (v *View) Cancel() {
	v.densities.Cancel()
	v.fields.Cancel()
	v.trajectories.Cancel()
}

// Progress is frames done and expected per controller.
type Progress struct {
	Name        string
	Done, Total int
	State       precompute.State
	Stats       precompute.Stats
}

// Progress reports the controllers' state.
func (v *View) Progress() []Progress {
	out := make([]Progress, 0, 3)
	add := func(name string, done, total int, st precompute.State, stats precompute.Stats) {
		out = append(out, Progress{Name: name, Done: done, Total: total, State: st, Stats: stats})
	}
	d, t := v.densities.Progress()
	add(v.densities.Name(), d, t, v.densities.State(), v.densities.Stats())
	d, t = v.fields.Progress()
	add(v.fields.Name(), d, t, v.fields.State(), v.fields.Stats())
	d, t = v.trajectories.Progress()
	add(v.trajectories.Name(), d, t, v.trajectories.State(), v.trajectories.Stats())
	return out
}

// Densities returns the committed density frames.
func (v *View) Densities() []DensityFrame {
	r, _ := v.densities.Committed()
	return r.Frames
}

// Fields returns the committed arrow frames.
func (v *View) Fields() []FieldFrame {
	r, _ := v.fields.Committed()
	return r.Frames
}

// Trajectories returns the committed trajectories.
func (v *View) Trajectories() []integrate.Trajectory {
	r, _ := v.trajectories.Committed()
	return r.Frames
}

// DensityAt returns the committed density frame nearest t.
func (v *View) DensityAt(t float64) (DensityFrame, bool) {
	return nearest(v.Densities(), t)
}

// FieldAt returns the committed field frame nearest t.
func (v *View) FieldAt(t float64) (FieldFrame, bool) {
	return nearest(v.Fields(), t)
}

// nearest picks the frame whose time is closest to t on the uniform frame grid.
func nearest[F any](frames []F, t float64) (F, bool) {
	var zero F
	if len(frames) == 0 {
		return zero, false
	}
	i := int(geom.Clamp(t, 0, 1)*float64(len(frames)-1) + 0.5)
	return frames[i], true
}
