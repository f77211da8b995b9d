package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/pathviz/config"
	"github.com/pthm-cable/pathviz/density"
	"github.com/pthm-cable/pathviz/geom"
	"github.com/pthm-cable/pathviz/integrate"
	"github.com/pthm-cable/pathviz/vecfield"
)

func TestOutputDisabled(t *testing.T) {
	om, err := NewOutputManager("", "run")
	require.NoError(t, err)
	assert.Nil(t, om)

	// Every writer is a no-op on a nil manager
	assert.NoError(t, om.WriteTrajectories([]integrate.Trajectory{{Points: []geom.Vec2{{}}, Times: []float64{0}}}))
	assert.NoError(t, om.WriteProfile(Profile{}, 1))
	assert.NoError(t, om.Close())
	assert.Equal(t, "", om.Dir())
}

func TestWriteTrajectoriesAppends(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir, "abc")
	require.NoError(t, err)

	tr := integrate.Trajectory{
		Points: []geom.Vec2{geom.V(0, 0), geom.V(0.5, 1)},
		Times:  []float64{0, 0.5},
	}
	require.NoError(t, om.WriteTrajectories([]integrate.Trajectory{tr}))
	require.NoError(t, om.WriteTrajectories([]integrate.Trajectory{tr, tr}))
	require.NoError(t, om.Close())

	f, err := os.Open(filepath.Join(dir, "trajectories.csv"))
	require.NoError(t, err)
	defer f.Close()

	var rows []TrajectoryRow
	require.NoError(t, gocsv.UnmarshalFile(f, &rows))
	require.Len(t, rows, 6, "header written once")
	assert.Equal(t, "abc", rows[0].RunID)
	assert.Equal(t, 1, rows[5].Step)
	assert.Equal(t, 1, rows[5].Particle)
	assert.Equal(t, 0.5, rows[5].T)
}

func TestWriteFieldDensityContours(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir, "run")
	require.NoError(t, err)

	f := vecfield.Field{T: 0.5, Arrows: []vecfield.Arrow{{Origin: geom.V(1, 2), Drift: geom.V(3, 4)}}}
	require.NoError(t, om.WriteField(0, f))

	g := &density.Grid{W: 2, H: 2, Values: []float64{0, 0, 0, 4}, Max: 4}
	require.NoError(t, om.WriteDensity(0, 0.5, g))
	require.NoError(t, om.WriteContours(0, 0.5, density.Contours(g, []float64{0.5})))
	require.NoError(t, om.WriteStats(FieldStats(f, 0)))
	require.NoError(t, om.Close())

	data, err := os.ReadFile(filepath.Join(dir, "field.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "run_id,frame,t,x,y,ux,uy"))

	data, err = os.ReadFile(filepath.Join(dir, "density.csv"))
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(string(data), "\n"))

	_, err = os.Stat(filepath.Join(dir, "contours.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "stats.csv"))
	assert.NoError(t, err)
}

func TestWriteConfig(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir, "run")
	require.NoError(t, err)

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.NoError(t, om.WriteConfig(cfg))

	_, err = config.Load(filepath.Join(dir, "config.yaml"))
	assert.NoError(t, err)
}
