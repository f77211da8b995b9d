package main

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/pathviz/neural"
)

// execute runs the root command and returns the single run directory it made.
func execute(t *testing.T, args ...string) string {
	t.Helper()
	dir := t.TempDir()
	rootCmd.SetArgs(append(args, "--output-dir", dir, "--frames", "3", "--weights", "", "--log-level", "error"))
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	_, err = uuid.Parse(entries[0].Name())
	require.NoError(t, err, "run directory is named by its run id")
	return filepath.Join(dir, entries[0].Name())
}

func TestExportAll(t *testing.T) {
	run := execute(t, "all")
	for _, name := range []string{
		"density.csv", "contours.csv", "field.csv", "trajectories.csv",
		"stats.csv", "perf.csv", "config.yaml",
	} {
		_, err := os.Stat(filepath.Join(run, name))
		assert.NoError(t, err, name)
	}
}

func TestExportSingleKind(t *testing.T) {
	run := execute(t, "trajectories")

	_, err := os.Stat(filepath.Join(run, "trajectories.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(run, "density.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestExportWithLearnedDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.json")
	f, err := os.Create(path)
	require.NoError(t, err)
	p := neural.Predictor{Net: neural.NewFFNN(rand.New(rand.NewPCG(1, 2)), 8)}
	require.NoError(t, neural.SavePredictor(f, p))
	require.NoError(t, f.Close())

	dir := t.TempDir()
	rootCmd.SetArgs([]string{"field", "--output-dir", dir, "--frames", "2", "--weights", path, "--log-level", "error"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	rootCmd.SetArgs([]string{"field", "--output-dir", dir, "--weights", filepath.Join(dir, "missing.json")})
	assert.Error(t, rootCmd.ExecuteContext(context.Background()))
	weightsPath = ""
}

func TestComputeFramesKeepsOrder(t *testing.T) {
	out, err := computeFrames(context.Background(), 50, 4, func(i int) int { return i * i })
	require.NoError(t, err)
	for i, v := range out {
		assert.Equal(t, i*i, v)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = computeFrames(ctx, 5, 2, func(i int) int { return i })
	assert.ErrorIs(t, err, context.Canceled)
}
