package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/pathviz/precompute"
)

// manualClock advances only when told to.
type manualClock struct {
	t time.Time
}

func (c *manualClock) now() time.Time          { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestProfilerStageShares(t *testing.T) {
	clk := &manualClock{t: time.Unix(0, 0)}
	p := NewProfiler(4, clk.now)

	for i := 0; i < 3; i++ {
		p.BeginFrame()
		p.Stage(StageInput)
		clk.advance(time.Millisecond)
		p.Stage(StagePrecompute)
		clk.advance(3 * time.Millisecond)
		p.Stage(StageRender)
		clk.advance(6 * time.Millisecond)
		p.EndFrame()
	}

	pr := p.Profile()
	assert.Equal(t, 3, pr.Frames)
	assert.Equal(t, 10*time.Millisecond, pr.FrameAvg)
	assert.Equal(t, 10*time.Millisecond, pr.FrameMax)

	require.Len(t, pr.Stages, 3)
	assert.Equal(t, []string{StageInput, StagePrecompute, StageRender},
		[]string{pr.Stages[0].Name, pr.Stages[1].Name, pr.Stages[2].Name})
	render, ok := pr.Stage(StageRender)
	require.True(t, ok)
	assert.Equal(t, 6*time.Millisecond, render.Avg)
	assert.InDelta(t, 60, render.Pct, 1e-9)
	input, _ := pr.Stage(StageInput)
	assert.InDelta(t, 10, input.Pct, 1e-9)

	_, ok = pr.Stage(StageWrite)
	assert.False(t, ok)
}

func TestProfilerRollingWindow(t *testing.T) {
	clk := &manualClock{t: time.Unix(0, 0)}
	p := NewProfiler(2, clk.now)

	for _, d := range []time.Duration{time.Millisecond, 2 * time.Millisecond, 5 * time.Millisecond} {
		p.BeginFrame()
		p.Stage(StageRender)
		clk.advance(d)
		p.EndFrame()
	}

	pr := p.Profile()
	assert.Equal(t, 2, pr.Frames)
	assert.Equal(t, 3500*time.Microsecond, pr.FrameAvg)
	assert.Equal(t, 5*time.Millisecond, pr.FrameMax)
}

func TestProfilerRepeatedStageAccumulates(t *testing.T) {
	clk := &manualClock{t: time.Unix(0, 0)}
	p := NewProfiler(1, clk.now)

	p.BeginFrame()
	p.Stage(StageRender)
	clk.advance(time.Millisecond)
	p.Stage(StagePrecompute)
	clk.advance(time.Millisecond)
	p.Stage(StageRender)
	clk.advance(2 * time.Millisecond)
	p.EndFrame()

	render, ok := p.Profile().Stage(StageRender)
	require.True(t, ok)
	assert.Equal(t, 3*time.Millisecond, render.Avg)
	assert.InDelta(t, 75, render.Pct, 1e-9)
}

func TestProfilerIgnoresUnopenedFrame(t *testing.T) {
	clk := &manualClock{t: time.Unix(0, 0)}
	p := NewProfiler(4, clk.now)

	p.Stage(StageRender)
	clk.advance(time.Millisecond)
	p.EndFrame()

	pr := p.Profile()
	assert.Equal(t, 0, pr.Frames)
	assert.Empty(t, pr.Stages)
	assert.Equal(t, time.Duration(0), pr.FrameAvg)

	rows := pr.Rows(1)
	require.Len(t, rows, 1)
	assert.Equal(t, RowFrame, rows[0].Kind)
}

func TestProfilerChunkStats(t *testing.T) {
	p := NewProfiler(8, nil)
	reports := []precompute.ChunkReport{
		{Controller: "density", Frames: 4, Elapsed: 2 * time.Millisecond},
		{Controller: "field", Frames: 8, Elapsed: time.Millisecond},
		{Controller: "density", Frames: 4, Elapsed: 2 * time.Millisecond},
		{Controller: "density", Frames: 2, Elapsed: time.Millisecond, Done: true},
	}
	for _, r := range reports {
		p.ObserveChunk(r)
	}

	pr := p.Profile()
	require.Len(t, pr.Chunks, 2)
	assert.Equal(t, "density", pr.Chunks[0].Controller, "first seen first")

	d, ok := pr.Chunk("density")
	require.True(t, ok)
	assert.Equal(t, uint64(3), d.Chunks)
	assert.Equal(t, 5*time.Millisecond/3, d.Avg)
	assert.Equal(t, 2*time.Millisecond, d.P95)
	assert.Equal(t, 2*time.Millisecond, d.Max)
	assert.InDelta(t, 2000, d.FramesPerSec, 1e-6)

	f, _ := pr.Chunk("field")
	assert.InDelta(t, 8000, f.FramesPerSec, 1e-6)

	rows := pr.Rows(9)
	require.Len(t, rows, 3)
	assert.Equal(t, RowChunk, rows[1].Kind)
	assert.Equal(t, "density", rows[1].Name)
	assert.Equal(t, int32(9), rows[2].WindowEnd)
}

func TestProfilerObservesController(t *testing.T) {
	p := NewProfiler(16, nil)
	var build precompute.Builder[int, int] = func(n int) precompute.Plan[int] {
		return precompute.Plan[int]{Frames: n, Seq: func(yield func(int) bool) {
			for i := 0; i < n; i++ {
				if !yield(i) {
					return
				}
			}
		}}
	}
	c := precompute.New("trajectories", build,
		precompute.WithChunkSize[int, int](3),
		precompute.WithChunkObserver[int, int](p.ObserveChunk),
	)
	c.Update(7)
	require.NoError(t, c.Drain(context.Background()))

	stat, ok := p.Profile().Chunk("trajectories")
	require.True(t, ok)
	assert.Equal(t, uint64(3), stat.Chunks)
}
