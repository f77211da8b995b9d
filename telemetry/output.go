package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/pathviz/config"
	"github.com/pthm-cable/pathviz/density"
	"github.com/pthm-cable/pathviz/integrate"
	"github.com/pthm-cable/pathviz/vecfield"
)

// TrajectoryRow is one integrated point of one particle.
type TrajectoryRow struct {
	RunID     string  `csv:"run_id"`
	Particle  int     `csv:"particle"`
	Step      int     `csv:"step"`
	T         float64 `csv:"t"`
	X         float64 `csv:"x"`
	Y         float64 `csv:"y"`
	Truncated bool    `csv:"truncated"`
}

// ArrowRow is one drawn arrow of one field frame.
type ArrowRow struct {
	RunID     string  `csv:"run_id"`
	Frame     int     `csv:"frame"`
	T         float64 `csv:"t"`
	X         float64 `csv:"x"`
	Y         float64 `csv:"y"`
	UX        float64 `csv:"ux"`
	UY        float64 `csv:"uy"`
	PX        float64 `csv:"px"`
	PY        float64 `csv:"py"`
	DX        float64 `csv:"dx"`
	DY        float64 `csv:"dy"`
	Magnitude float64 `csv:"magnitude"`
}

// DensityRow is one cell of one density grid.
type DensityRow struct {
	RunID      string  `csv:"run_id"`
	Frame      int     `csv:"frame"`
	T          float64 `csv:"t"`
	I          int     `csv:"i"`
	J          int     `csv:"j"`
	Density    float64 `csv:"density"`
	Normalized float64 `csv:"normalized"`
}

// ContourRow is one vertex of one contour polyline.
type ContourRow struct {
	RunID    string  `csv:"run_id"`
	Frame    int     `csv:"frame"`
	T        float64 `csv:"t"`
	Relative float64 `csv:"relative"`
	Line     int     `csv:"line"`
	Vertex   int     `csv:"vertex"`
	X        float64 `csv:"x"`
	Y        float64 `csv:"y"`
	Closed   bool    `csv:"closed"`
}

// OutputManager handles structured export output with CSV logging.
// Files are created lazily on first write; each file gets its header once.
type OutputManager struct {
	dir   string
	runID string
	files map[string]*os.File
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir, runID string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &OutputManager{dir: dir, runID: runID, files: make(map[string]*os.File)}, nil
}

// writeRows appends records to name, writing the header on the first call.
func writeRows[T any](om *OutputManager, name string, records []T) error {
	if om == nil {
		return nil
	}
	f, ok := om.files[name]
	if !ok {
		var err error
		f, err = os.Create(filepath.Join(om.dir, name))
		if err != nil {
			return fmt.Errorf("creating %s: %w", name, err)
		}
		om.files[name] = f
		if err := gocsv.Marshal(records, f); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, f); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// WriteConfig saves the effective configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteTrajectories writes every point of every trajectory to trajectories.csv.
func (om *OutputManager) WriteTrajectories(trs []integrate.Trajectory) error {
	if om == nil {
		return nil
	}
	var rows []TrajectoryRow
	for i, tr := range trs {
		for k, p := range tr.Points {
			rows = append(rows, TrajectoryRow{
				RunID:     om.runID,
				Particle:  i,
				Step:      k,
				T:         tr.Times[k],
				X:         p.X,
				Y:         p.Y,
				Truncated: tr.Truncated,
			})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return writeRows(om, "trajectories.csv", rows)
}

// WriteField writes the arrows of one field frame to field.csv.
func (om *OutputManager) WriteField(frame int, f vecfield.Field) error {
	if om == nil || len(f.Arrows) == 0 {
		return nil
	}
	rows := make([]ArrowRow, len(f.Arrows))
	for i, a := range f.Arrows {
		rows[i] = ArrowRow{
			RunID:     om.runID,
			Frame:     frame,
			T:         f.T,
			X:         a.Origin.X,
			Y:         a.Origin.Y,
			UX:        a.Drift.X,
			UY:        a.Drift.Y,
			PX:        a.Pixel.X,
			PY:        a.Pixel.Y,
			DX:        a.Delta.X,
			DY:        a.Delta.Y,
			Magnitude: a.Magnitude,
		}
	}
	return writeRows(om, "field.csv", rows)
}

// WriteDensity writes one density grid to density.csv.
func (om *OutputManager) WriteDensity(frame int, t float64, g *density.Grid) error {
	if om == nil || g == nil || len(g.Values) == 0 {
		return nil
	}
	rows := make([]DensityRow, 0, g.W*g.H)
	for j := 0; j < g.H; j++ {
		for i := 0; i < g.W; i++ {
			rows = append(rows, DensityRow{
				RunID:      om.runID,
				Frame:      frame,
				T:          t,
				I:          i,
				J:          j,
				Density:    g.At(i, j),
				Normalized: g.Normalized(i, j),
			})
		}
	}
	return writeRows(om, "density.csv", rows)
}

// WriteContours writes the chained contour lines of one frame to contours.csv.
// Vertices are in grid coordinates.
func (om *OutputManager) WriteContours(frame int, t float64, cs []density.Contour) error {
	if om == nil {
		return nil
	}
	var rows []ContourRow
	for _, c := range cs {
		for li, line := range c.Lines {
			for vi, p := range line.Points {
				rows = append(rows, ContourRow{
					RunID:    om.runID,
					Frame:    frame,
					T:        t,
					Relative: c.Relative,
					Line:     li,
					Vertex:   vi,
					X:        p.X,
					Y:        p.Y,
					Closed:   line.Closed,
				})
			}
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return writeRows(om, "contours.csv", rows)
}

// WriteStats writes frame summaries to stats.csv.
func (om *OutputManager) WriteStats(stats ...FrameStats) error {
	if len(stats) == 0 {
		return nil
	}
	return writeRows(om, "stats.csv", stats)
}

// WriteProfile appends the profile's rows to perf.csv.
func (om *OutputManager) WriteProfile(pr Profile, windowEnd int32) error {
	return writeRows(om, "perf.csv", pr.Rows(windowEnd))
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// RunID returns the identifier stamped on every row.
func (om *OutputManager) RunID() string {
	if om == nil {
		return ""
	}
	return om.runID
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for name, f := range om.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s: %w", name, err)
		}
	}
	om.files = make(map[string]*os.File)
	return firstErr
}
