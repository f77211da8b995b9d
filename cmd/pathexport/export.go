package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/pathviz/config"
	"github.com/pthm-cable/pathviz/density"
	"github.com/pthm-cable/pathviz/neural"
	"github.com/pthm-cable/pathviz/scale"
	"github.com/pthm-cable/pathviz/telemetry"
	"github.com/pthm-cable/pathviz/vecfield"
	"github.com/pthm-cable/pathviz/view"
)

// kind selects which outputs a run writes.
type kind uint8

const (
	kindDensity kind = 1 << iota
	kindField
	kindTrajectories
)

// exporter holds one run's inputs. Engine calls are pure, so frames are
// evaluated in parallel and written in order afterwards.
type exporter struct {
	settings view.Settings
	opts     view.Options
	frame    *scale.Frame
	om       *telemetry.OutputManager
	perf     *telemetry.Profiler
	workers  int
}

func runExport(cmd *cobra.Command, k kind) error {
	cfg := config.Cfg()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runID := uuid.NewString()
	dir := filepath.Join(outputDir, runID)
	om, err := telemetry.NewOutputManager(dir, runID)
	if err != nil {
		return err
	}
	defer om.Close()

	e := &exporter{
		settings: view.SettingsFromConfig(cfg),
		opts:     view.OptionsFromConfig(cfg),
		om:       om,
		perf:     telemetry.NewProfiler(1, time.Now),
		workers:  workers,
	}
	if frames > 0 {
		e.opts.Frames = frames
	}
	if e.opts.Frames < 1 {
		e.opts.Frames = 1
	}
	if e.workers < 1 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	e.frame = scale.NewFrame(e.opts.Domain, e.opts.Width, e.opts.Height)

	if weightsPath != "" {
		p, err := loadWeights(weightsPath)
		if err != nil {
			return err
		}
		e.settings.Learned = p
	}

	slog.Info("export_started",
		"run_id", runID,
		"dir", dir,
		"frames", e.opts.Frames,
		"mode", string(e.settings.Mode),
		"noise", string(e.settings.Noise.Kind()),
		"learned", e.settings.Learned != nil,
	)

	e.perf.BeginFrame()
	if k&kindDensity != 0 {
		if err := e.exportDensity(ctx); err != nil {
			return fmt.Errorf("density: %w", err)
		}
	}
	if k&kindField != 0 {
		if err := e.exportField(ctx); err != nil {
			return fmt.Errorf("field: %w", err)
		}
	}
	if k&kindTrajectories != 0 {
		if err := e.exportTrajectories(ctx); err != nil {
			return fmt.Errorf("trajectories: %w", err)
		}
	}
	e.perf.Stage(telemetry.StageWrite)
	if err := om.WriteConfig(cfg); err != nil {
		return err
	}
	e.perf.EndFrame()

	profile := e.perf.Profile()
	if err := om.WriteProfile(profile, 1); err != nil {
		return err
	}
	slog.Info("export_finished", "run_id", runID, "perf", profile)
	return nil
}

// loadWeights reads a learned drift from a JSON weights file.
func loadWeights(path string) (neural.Predictor, error) {
	f, err := os.Open(path)
	if err != nil {
		return neural.Predictor{}, fmt.Errorf("opening weights: %w", err)
	}
	defer f.Close()
	return neural.LoadPredictor(f)
}

// computeFrames evaluates fn for every index on up to workers goroutines.
func computeFrames[T any](ctx context.Context, n, workers int, fn func(i int) T) ([]T, error) {
	out := make([]T, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = fn(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *exporter) exportDensity(ctx context.Context) error {
	e.perf.Stage(telemetry.StageDensity)
	target := e.settings.Target()
	grids, err := computeFrames(ctx, e.opts.Frames, e.workers, func(i int) *density.Grid {
		return density.Evaluate(target, e.settings.Noise, view.FrameTime(i, e.opts.Frames), e.frame, e.opts.GridW, e.opts.GridH)
	})
	if err != nil {
		return err
	}

	e.perf.Stage(telemetry.StageContours)
	contours := make([][]density.Contour, len(grids))
	if len(e.opts.Levels) > 0 {
		contours, err = computeFrames(ctx, len(grids), e.workers, func(i int) []density.Contour {
			return density.Contours(grids[i], e.opts.Levels)
		})
		if err != nil {
			return err
		}
	}

	e.perf.Stage(telemetry.StageWrite)
	for i, g := range grids {
		t := view.FrameTime(i, e.opts.Frames)
		if err := e.om.WriteDensity(i, t, g); err != nil {
			return err
		}
		if err := e.om.WriteContours(i, t, contours[i]); err != nil {
			return err
		}
		s := telemetry.FrameStats{Kind: telemetry.KindDensity, Frame: i, T: t}
		telemetry.Summarize(&s, g.Values)
		if err := e.om.WriteStats(s); err != nil {
			return err
		}
	}
	slog.Debug("density_exported", "frames", len(grids))
	return nil
}

func (e *exporter) exportField(ctx context.Context) error {
	e.perf.Stage(telemetry.StageField)
	p := e.settings.Provider()
	peak := vecfield.GlobalMax(p, e.opts.Arrows, e.frame, vecfield.GlobalMaxTime)
	fields, err := computeFrames(ctx, e.opts.Frames, e.workers, func(i int) vecfield.Field {
		return vecfield.Sample(p, e.opts.Arrows, e.frame, view.FrameTime(i, e.opts.Frames), e.opts.Style, peak)
	})
	if err != nil {
		return err
	}

	e.perf.Stage(telemetry.StageWrite)
	for i, f := range fields {
		if err := e.om.WriteField(i, f); err != nil {
			return err
		}
		if err := e.om.WriteStats(telemetry.FieldStats(f, i)); err != nil {
			return err
		}
	}
	slog.Debug("field_exported", "frames", len(fields), "global_max_px", peak)
	return nil
}

func (e *exporter) exportTrajectories(ctx context.Context) error {
	e.perf.Stage(telemetry.StageTrajectories)
	b := view.NewBatch(e.settings, e.opts.Integration, e.opts.Seed, e.opts.Count)
	trs, err := computeFrames(ctx, b.Len(), e.workers, b.One)
	if err != nil {
		return err
	}

	e.perf.Stage(telemetry.StageWrite)
	if err := e.om.WriteTrajectories(trs); err != nil {
		return err
	}
	s := telemetry.TrajectoryStats(trs)
	if err := e.om.WriteStats(s); err != nil {
		return err
	}
	slog.Debug("trajectories_exported", "count", len(trs), "stats", s)
	return nil
}
