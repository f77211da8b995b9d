package telemetry

import (
	"log/slog"
	"slices"
	"time"

	"github.com/pthm-cable/pathviz/precompute"
)

// Stage names. The viewer times input, precompute, propagate and render; the
// exporter times the per-output stages and write.
const (
	StageInput        = "input"
	StagePrecompute   = "precompute"
	StagePropagate    = "propagate"
	StageRender       = "render"
	StageDensity      = "density"
	StageContours     = "contours"
	StageField        = "field"
	StageTrajectories = "trajectories"
	StageWrite        = "write"
)

var stageOrder = []string{
	StageInput, StagePrecompute, StagePropagate, StageRender,
	StageDensity, StageContours, StageField, StageTrajectories, StageWrite,
}

// Clock reports the current time.
type Clock func() time.Time

type frameSample struct {
	total  time.Duration
	stages map[string]time.Duration
}

// durationRing is a fixed-size window of durations with a lifetime count.
type durationRing struct {
	samples []time.Duration
	frames  []int
	next    int
	count   int
	total   uint64
}

func newDurationRing(n int) *durationRing {
	return &durationRing{samples: make([]time.Duration, n), frames: make([]int, n)}
}

func (r *durationRing) add(d time.Duration, frames int) {
	r.samples[r.next] = d
	r.frames[r.next] = frames
	r.next = (r.next + 1) % len(r.samples)
	r.count = min(r.count+1, len(r.samples))
	r.total++
}

// Profiler keeps rolling windows of per-frame stage timings and of
// precompute chunk timings per controller. It is not safe for concurrent use.
type Profiler struct {
	now    Clock
	window int

	frames []frameSample
	next   int
	count  int

	cur        frameSample
	inFrame    bool
	frameStart time.Time
	stage      string
	stageStart time.Time

	chunks      map[string]*durationRing
	controllers []string
}

// NewProfiler returns a profiler averaging over window frames. A nil clock
// uses time.Now.
func NewProfiler(window int, now Clock) *Profiler {
	if window < 1 {
		window = 60
	}
	if now == nil {
		now = time.Now
	}
	return &Profiler{
		now:    now,
		window: window,
		frames: make([]frameSample, window),
		chunks: make(map[string]*durationRing),
	}
}

// BeginFrame starts timing a frame. An unfinished frame is discarded.
func (p *Profiler) BeginFrame() {
	p.cur = frameSample{stages: make(map[string]time.Duration)}
	p.frameStart = p.now()
	p.stage = ""
	p.inFrame = true
}

// Stage closes the running stage and starts name. Repeated stages accumulate.
func (p *Profiler) Stage(name string) {
	if !p.inFrame {
		return
	}
	t := p.now()
	p.closeStage(t)
	p.stage = name
	p.stageStart = t
}

func (p *Profiler) closeStage(t time.Time) {
	if p.stage != "" {
		p.cur.stages[p.stage] += t.Sub(p.stageStart)
	}
}

// EndFrame closes the frame and adds it to the window.
func (p *Profiler) EndFrame() {
	if !p.inFrame {
		return
	}
	t := p.now()
	p.closeStage(t)
	p.cur.total = t.Sub(p.frameStart)
	p.frames[p.next] = p.cur
	p.next = (p.next + 1) % p.window
	p.count = min(p.count+1, p.window)
	p.inFrame = false
	p.stage = ""
}

// ObserveChunk records one precompute chunk. It matches the controller's
// chunk observer signature.
func (p *Profiler) ObserveChunk(r precompute.ChunkReport) {
	ring, ok := p.chunks[r.Controller]
	if !ok {
		ring = newDurationRing(p.window)
		p.chunks[r.Controller] = ring
		p.controllers = append(p.controllers, r.Controller)
	}
	ring.add(r.Elapsed, r.Frames)
}

// StageStat is one stage's share of the frame.
type StageStat struct {
	Name string
	Avg  time.Duration
	Pct  float64 // of the average frame
}

// ChunkStat summarizes one controller's recent chunks.
type ChunkStat struct {
	Controller   string
	Chunks       uint64 // lifetime
	Avg, P95     time.Duration
	Max          time.Duration
	FramesPerSec float64 // precomputed frames per second of chunk time
}

// Profile is a snapshot of the profiler's windows.
type Profile struct {
	Frames   int
	FrameAvg time.Duration
	FrameP95 time.Duration
	FrameMax time.Duration
	Stages   []StageStat
	Chunks   []ChunkStat
}

// Stage returns the named stage's stat.
func (pr Profile) Stage(name string) (StageStat, bool) {
	for _, s := range pr.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageStat{}, false
}

// Chunk returns the named controller's stat.
func (pr Profile) Chunk(controller string) (ChunkStat, bool) {
	for _, c := range pr.Chunks {
		if c.Controller == controller {
			return c, true
		}
	}
	return ChunkStat{}, false
}

// spread returns the mean, 95th percentile and maximum of ds.
func spread(ds []time.Duration) (avg, p95, maxD time.Duration) {
	if len(ds) == 0 {
		return 0, 0, 0
	}
	ns := make([]float64, len(ds))
	var sum time.Duration
	for i, d := range ds {
		sum += d
		ns[i] = float64(d)
	}
	slices.Sort(ns)
	return sum / time.Duration(len(ds)), time.Duration(Percentile(ns, 0.95)), time.Duration(ns[len(ns)-1])
}

// Profile computes the current window statistics. Stages appear in a fixed
// order; controllers in the order first seen.
func (p *Profiler) Profile() Profile {
	pr := Profile{Frames: p.count}

	totals := make([]time.Duration, p.count)
	stageSum := make(map[string]time.Duration)
	for i := 0; i < p.count; i++ {
		f := p.frames[i]
		totals[i] = f.total
		for name, d := range f.stages {
			stageSum[name] += d
		}
	}
	pr.FrameAvg, pr.FrameP95, pr.FrameMax = spread(totals)

	if p.count > 0 {
		for _, name := range stageOrder {
			sum, ok := stageSum[name]
			if !ok {
				continue
			}
			st := StageStat{Name: name, Avg: sum / time.Duration(p.count)}
			if pr.FrameAvg > 0 {
				st.Pct = float64(st.Avg) / float64(pr.FrameAvg) * 100
			}
			pr.Stages = append(pr.Stages, st)
		}
	}

	for _, name := range p.controllers {
		ring := p.chunks[name]
		cs := ChunkStat{Controller: name, Chunks: ring.total}
		ds := ring.samples[:ring.count]
		cs.Avg, cs.P95, cs.Max = spread(ds)

		var busy time.Duration
		frames := 0
		for i, d := range ds {
			busy += d
			frames += ring.frames[i]
		}
		if busy > 0 {
			cs.FramesPerSec = float64(frames) / busy.Seconds()
		}
		pr.Chunks = append(pr.Chunks, cs)
	}
	return pr
}

// LogValue implements slog.LogValuer.
func (pr Profile) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("frames", pr.Frames),
		slog.Int64("frame_avg_us", pr.FrameAvg.Microseconds()),
		slog.Int64("frame_p95_us", pr.FrameP95.Microseconds()),
		slog.Int64("frame_max_us", pr.FrameMax.Microseconds()),
	}
	for _, s := range pr.Stages {
		attrs = append(attrs, slog.Float64(s.Name+"_pct", float64(int(s.Pct*10))/10))
	}
	for _, c := range pr.Chunks {
		attrs = append(attrs, slog.Group(c.Controller,
			slog.Uint64("chunks", c.Chunks),
			slog.Int64("avg_us", c.Avg.Microseconds()),
			slog.Int64("p95_us", c.P95.Microseconds()),
			slog.Float64("frames_per_sec", c.FramesPerSec),
		))
	}
	return slog.GroupValue(attrs...)
}

// ProfileRow is one flat perf.csv record: the frame total, a stage, or a
// precompute controller.
type ProfileRow struct {
	WindowEnd    int32   `csv:"window_end"`
	Kind         string  `csv:"kind"`
	Name         string  `csv:"name"`
	Count        uint64  `csv:"count"`
	AvgUS        int64   `csv:"avg_us"`
	P95US        int64   `csv:"p95_us"`
	MaxUS        int64   `csv:"max_us"`
	Pct          float64 `csv:"pct"`
	FramesPerSec float64 `csv:"frames_per_sec"`
}

// Row kinds.
const (
	RowFrame = "frame"
	RowStage = "stage"
	RowChunk = "chunk"
)

// Rows flattens the profile for CSV output.
func (pr Profile) Rows(windowEnd int32) []ProfileRow {
	rows := []ProfileRow{{
		WindowEnd: windowEnd,
		Kind:      RowFrame,
		Name:      RowFrame,
		Count:     uint64(pr.Frames),
		AvgUS:     pr.FrameAvg.Microseconds(),
		P95US:     pr.FrameP95.Microseconds(),
		MaxUS:     pr.FrameMax.Microseconds(),
		Pct:       100,
	}}
	for _, s := range pr.Stages {
		rows = append(rows, ProfileRow{
			WindowEnd: windowEnd,
			Kind:      RowStage,
			Name:      s.Name,
			Count:     uint64(pr.Frames),
			AvgUS:     s.Avg.Microseconds(),
			Pct:       s.Pct,
		})
	}
	for _, c := range pr.Chunks {
		rows = append(rows, ProfileRow{
			WindowEnd:    windowEnd,
			Kind:         RowChunk,
			Name:         c.Controller,
			Count:        c.Chunks,
			AvgUS:        c.Avg.Microseconds(),
			P95US:        c.P95.Microseconds(),
			MaxUS:        c.Max.Microseconds(),
			FramesPerSec: c.FramesPerSec,
		})
	}
	return rows
}
