// Package config provides configuration loading and access for the viewer and
// the exporter.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/pathviz/geom"
	"github.com/pthm-cable/pathviz/integrate"
	"github.com/pthm-cable/pathviz/mixture"
	"github.com/pthm-cable/pathviz/schedule"
	"github.com/pthm-cable/pathviz/vecfield"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all configuration parameters.
type Config struct {
	Screen       ScreenConfig        `yaml:"screen"`
	View         ViewConfig          `yaml:"view"`
	Schedule     ScheduleConfig      `yaml:"schedule"`
	Arrows       vecfield.ArrowStyle `yaml:"arrows"`
	Contours     ContoursConfig      `yaml:"contours"`
	Trajectories TrajectoriesConfig  `yaml:"trajectories"`
	Mixture      MixtureConfig       `yaml:"mixture"`
	Telemetry    TelemetryConfig     `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds window settings.
type ScreenConfig struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	TargetFPS int    `yaml:"target_fps"`
	Title     string `yaml:"title"`
}

// RectConfig is a data-space rectangle.
type RectConfig struct {
	MinX float64 `yaml:"min_x"`
	MinY float64 `yaml:"min_y"`
	MaxX float64 `yaml:"max_x"`
	MaxY float64 `yaml:"max_y"`
}

// ViewConfig holds the plotted region and precompute settings.
type ViewConfig struct {
	Domain RectConfig `yaml:"domain"`
	// Density grid resolution in cells
	GridWidth  int `yaml:"grid_width"`
	GridHeight int `yaml:"grid_height"`
	// Arrow lattice
	ArrowCols int `yaml:"arrow_cols"`
	ArrowRows int `yaml:"arrow_rows"`
	// Animation frames precomputed per request
	Frames    int     `yaml:"frames"`
	ChunkSize int     `yaml:"chunk_size"`
	Time      float64 `yaml:"time"`
	// ModeConditional or ModeMarginal
	Mode string `yaml:"mode"`
}

// View modes.
const (
	ModeConditional = "conditional"
	ModeMarginal    = "marginal"
)

// ScheduleConfig selects the noise and diffusion schedules.
type ScheduleConfig struct {
	Noise        string               `yaml:"noise"`
	NoiseParams  schedule.NoiseParams `yaml:"noise_params"`
	Diffusion    string               `yaml:"diffusion"`
	DiffusionMax float64              `yaml:"diffusion_max"`
}

// ContoursConfig holds the relative iso-levels.
type ContoursConfig struct {
	Enabled bool      `yaml:"enabled"`
	Levels  []float64 `yaml:"levels"`
}

// TrajectoriesConfig holds particle integration settings.
type TrajectoriesConfig struct {
	Count  int    `yaml:"count"`
	Steps  int    `yaml:"steps"`
	Seed   uint64 `yaml:"seed"`
	Method string `yaml:"method"` // ode, sde, marginal_sde
	// Particles leaving the domain scaled by this factor are truncated
	DomainMargin float64 `yaml:"domain_margin"`
}

// ComponentConfig is one mixture component.
type ComponentConfig struct {
	Mean   [2]float64 `yaml:"mean"`
	Weight float64    `yaml:"weight"`
	// Covariance as [xx, xy, yy]
	Cov [3]float64 `yaml:"cov"`
}

// MixtureConfig holds the data distribution.
type MixtureConfig struct {
	DataPoint  [2]float64        `yaml:"data_point"`
	Components []ComponentConfig `yaml:"components"`
}

// TelemetryConfig holds output settings.
type TelemetryConfig struct {
	PerfWindow  int    `yaml:"perf_window"`
	OutputDir   string `yaml:"output_dir"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// DerivedConfig holds engine values built from the loaded config.
type DerivedConfig struct {
	Domain      geom.Rect
	Integration geom.Rect // Domain grown by DomainMargin
	DataPoint   geom.Vec2
	Noise       schedule.Noise
	Diffusion   schedule.Diffusion
	Mixture     *mixture.Mixture
	Method      integrate.Method
	Arrows      vecfield.GridSpec
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := cfg.merge(data); err != nil {
			return nil, err
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, fmt.Errorf("deriving config: %w", err)
	}
	return cfg, nil
}

// Parse builds a config from YAML bytes merged over the embedded defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if err := cfg.merge(data); err != nil {
		return nil, err
	}
	if err := cfg.computeDerived(); err != nil {
		return nil, fmt.Errorf("deriving config: %w", err)
	}
	return cfg, nil
}

// merge unmarshals data over c. Only fields present in data are overwritten,
// except lists, which are replaced whole.
func (c *Config) merge(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// computeDerived builds the engine values from the loaded config.
func (c *Config) computeDerived() error {
	d := c.View.Domain
	if d.MaxX <= d.MinX || d.MaxY <= d.MinY {
		return fmt.Errorf("empty view domain %+v", d)
	}
	c.Derived.Domain = geom.Rect{MinX: d.MinX, MinY: d.MinY, MaxX: d.MaxX, MaxY: d.MaxY}

	// Integration domain: grown around the view so particles can overshoot
	m := c.Trajectories.DomainMargin
	if m < 1 {
		m = 1
	}
	cx, cy := (d.MinX+d.MaxX)/2, (d.MinY+d.MaxY)/2
	hw, hh := (d.MaxX-d.MinX)/2*m, (d.MaxY-d.MinY)/2*m
	c.Derived.Integration = geom.Rect{MinX: cx - hw, MinY: cy - hh, MaxX: cx + hw, MaxY: cy + hh}

	noise, err := schedule.NewNoise(schedule.NoiseKind(c.Schedule.Noise), c.Schedule.NoiseParams)
	if err != nil {
		return err
	}
	c.Derived.Noise = noise

	diff, err := schedule.NewDiffusion(schedule.DiffusionKind(c.Schedule.Diffusion), c.Schedule.DiffusionMax)
	if err != nil {
		return err
	}
	c.Derived.Diffusion = diff

	norm, err := vecfield.ParseNormalization(string(c.Arrows.Normalization))
	if err != nil {
		return err
	}
	c.Arrows.Normalization = norm
	c.Derived.Arrows = vecfield.GridSpec{Cols: c.View.ArrowCols, Rows: c.View.ArrowRows}

	switch integrate.Method(c.Trajectories.Method) {
	case integrate.MethodODE, integrate.MethodSDE, integrate.MethodMarginalSDE:
		c.Derived.Method = integrate.Method(c.Trajectories.Method)
	default:
		return fmt.Errorf("unknown trajectory method %q", c.Trajectories.Method)
	}

	switch c.View.Mode {
	case ModeConditional, ModeMarginal:
	default:
		return fmt.Errorf("unknown view mode %q", c.View.Mode)
	}

	c.Derived.DataPoint = geom.V(c.Mixture.DataPoint[0], c.Mixture.DataPoint[1])
	mix, err := c.Mixture.Build()
	if err != nil {
		return err
	}
	c.Derived.Mixture = mix

	if c.View.ChunkSize < 1 {
		c.View.ChunkSize = 8
	}
	if len(c.Contours.Levels) == 0 {
		c.Contours.Levels = []float64{0.1, 0.25, 0.5, 0.75, 0.9}
	}
	return nil
}

// Build constructs the configured mixture. With no components the mixture is
// a point mass at the data point.
func (mc MixtureConfig) Build() (*mixture.Mixture, error) {
	if len(mc.Components) == 0 {
		return mixture.Point(geom.V(mc.DataPoint[0], mc.DataPoint[1])), nil
	}
	comps := make([]mixture.Component, len(mc.Components))
	for i, cc := range mc.Components {
		comps[i] = mixture.Component{
			Mean:   geom.V(cc.Mean[0], cc.Mean[1]),
			Weight: cc.Weight,
			Cov:    mixture.Cov2{XX: cc.Cov[0], XY: cc.Cov[1], YY: cc.Cov[2]},
		}
	}
	m, err := mixture.New(comps...)
	if err != nil {
		return nil, fmt.Errorf("mixture: %w", err)
	}
	return m, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
