package viewer

import (
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/pthm-cable/pathviz/telemetry"
	"github.com/pthm-cable/pathviz/view"
)

// errNoOutput is returned when snapshots are requested without an output dir.
var errNoOutput = errors.New("no output directory configured")

// snapshot writes the committed frames at the current time to the run
// directory, opening it on first use.
func (v *Viewer) snapshot() error {
	if v.opts.OutputDir == "" {
		return errNoOutput
	}
	if v.out == nil {
		runID := uuid.NewString()
		om, err := telemetry.NewOutputManager(filepath.Join(v.opts.OutputDir, runID), runID)
		if err != nil {
			return err
		}
		if err := om.WriteConfig(v.cfg); err != nil {
			om.Close()
			return err
		}
		v.out = om
	}

	t := float64(v.controls.Time)
	if err := writeSnapshot(v.out, v.view, v.snapshots, t); err != nil {
		return err
	}
	slog.Info("snapshot_written", "dir", v.out.Dir(), "frame", v.snapshots, "t", t, "version", v.view.Version())
	v.snapshots++
	return nil
}

// writeSnapshot records whatever the view has committed at time t as frame
// number frame. Missing outputs are skipped.
func writeSnapshot(om *telemetry.OutputManager, vw *view.View, frame int, t float64) error {
	var stats []telemetry.FrameStats

	if df, ok := vw.DensityAt(t); ok {
		if err := om.WriteDensity(frame, df.T, df.Grid); err != nil {
			return err
		}
		if err := om.WriteContours(frame, df.T, df.Contours); err != nil {
			return err
		}
		s := telemetry.FrameStats{Kind: telemetry.KindDensity, Frame: frame, T: df.T}
		telemetry.Summarize(&s, df.Grid.Values)
		stats = append(stats, s)
	}
	if ff, ok := vw.FieldAt(t); ok {
		if err := om.WriteField(frame, ff.Field); err != nil {
			return err
		}
		stats = append(stats, telemetry.FieldStats(ff.Field, frame))
	}
	if trs := vw.Trajectories(); len(trs) > 0 {
		if err := om.WriteTrajectories(trs); err != nil {
			return err
		}
		s := telemetry.TrajectoryStats(trs)
		s.Frame = frame
		stats = append(stats, s)
	}
	if len(stats) == 0 {
		return nil
	}
	return om.WriteStats(stats...)
}
