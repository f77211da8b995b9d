// Package precompute drives chunked, cancellable computation of per-frame
// results (fields, trajectories, sampled points) for a live view.
//
// A Controller is a small state machine, Idle → Computing → (Idle | Computing).
// Callers describe the newest inputs with Update; the controller builds a lazy
// Plan for them and advances it ChunkSize frames per Step. Between chunks it
// compares generations: when a newer request is pending, the in-flight buffer
// is abandoned without ever being committed and work restarts from the newest
// state. Intermediate requests are coalesced, so only the latest state is ever
// fully computed.
//
// A Controller is driven by a single goroutine (a render loop or Drain) and
// holds no locks.
package precompute

import (
	"context"
	"iter"
	"log/slog"
	"runtime"
	"time"
)

// DefaultChunkSize is the number of frames computed between generation checks.
const DefaultChunkSize = 8

// Generation identifies a request. Generations increase monotonically per
// controller; zero means "no request yet".
type Generation uint64

// Plan is a lazy, finite, restartable sequence of frames. Frames is the
// expected length, used for progress reporting only.
type Plan[R any] struct {
	Frames int
	Seq    iter.Seq[R]
}

// Builder turns an input state into a Plan. It runs once per started job and
// must not retain or mutate the state's shared parts.
type Builder[S, R any] func(state S) Plan[R]

// Result is a committed, complete set of frames.
type Result[R any] struct {
	Generation Generation
	Frames     []R
	Elapsed    time.Duration
}

// ChunkReport describes one Step's worth of work.
type ChunkReport struct {
	Controller string
	Generation Generation
	Frames     int
	Elapsed    time.Duration
	Done       bool
}

// Stats counts controller activity since construction.
type Stats struct {
	Requested uint64
	Started   uint64
	Committed uint64
	Aborted   uint64
	Chunks    uint64
}

// State is the controller's lifecycle state.
type State int

const (
	Idle State = iota
	Computing
)

func (s State) String() string {
	if s == Computing {
		return "computing"
	}
	return "idle"
}

type request[S any] struct {
	gen   Generation
	state S
}

type job[R any] struct {
	gen     Generation
	frames  int
	next    func() (R, bool)
	stop    func()
	buf     []R
	started time.Time
}

// Controller coalesces requests and computes the newest one in chunks.
type Controller[S, R any] struct {
	name      string
	build     Builder[S, R]
	chunkSize int
	logger    *slog.Logger
	onCommit  func(Result[R])
	onChunk   func(ChunkReport)

	latest  Generation
	pending *request[S]
	active  *job[R]

	committed    Result[R]
	hasCommitted bool

	stats Stats
}

// Option configures a Controller.
type Option[S, R any] func(*Controller[S, R])

// WithChunkSize sets how many frames are computed per Step.
func WithChunkSize[S, R any](n int) Option[S, R] {
	return func(c *Controller[S, R]) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger[S, R any](l *slog.Logger) Option[S, R] {
	return func(c *Controller[S, R]) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOnCommit registers a callback invoked synchronously after each commit.
func WithOnCommit[S, R any](fn func(Result[R])) Option[S, R] {
	return func(c *Controller[S, R]) {
		c.onCommit = fn
	}
}

// WithChunkObserver registers a callback invoked after every chunk, before
// the job is committed or aborted.
func WithChunkObserver[S, R any](fn func(ChunkReport)) Option[S, R] {
	return func(c *Controller[S, R]) {
		c.onChunk = fn
	}
}

// New creates an idle controller. name labels logs and metrics.
func New[S, R any](name string, build Builder[S, R], opts ...Option[S, R]) *Controller[S, R] {
	c := &Controller[S, R]{
		name:      name,
		build:     build,
		chunkSize: DefaultChunkSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the controller's label.
func (c *Controller[S, R]) Name() string { return c.name }

// Update records state as the newest request and returns its generation. It
// never blocks; a pending request that has not started yet is replaced.
func (c *Controller[S, R]) Update(state S) Generation {
	c.latest++
	c.stats.Requested++
	c.pending = &request[S]{gen: c.latest, state: state}
	return c.latest
}

// Latest returns the generation of the newest request.
func (c *Controller[S, R]) Latest() Generation { return c.latest }

// State reports whether work is in flight or pending.
func (c *Controller[S, R]) State() State {
	if c.active != nil || c.pending != nil {
		return Computing
	}
	return Idle
}

// Progress returns frames computed and expected for the in-flight job.
func (c *Controller[S, R]) Progress() (done, total int) {
	if c.active == nil {
		return 0, 0
	}
	return len(c.active.buf), c.active.frames
}

// Committed returns the most recently committed result.
func (c *Controller[S, R]) Committed() (Result[R], bool) {
	return c.committed, c.hasCommitted
}

// Stats returns a copy of the activity counters.
func (c *Controller[S, R]) Stats() Stats { return c.stats }

// Step advances the controller by one chunk and reports whether more work
// remains. A stale in-flight job is aborted before any new work starts.
func (c *Controller[S, R]) Step() bool {
	if c.active != nil && c.pending != nil {
		c.abort(c.pending.gen)
	}
	if c.active == nil {
		if c.pending == nil {
			return false
		}
		c.start()
	}

	j := c.active
	start := time.Now()
	before := len(j.buf)
	done := false
	for i := 0; i < c.chunkSize; i++ {
		r, ok := j.next()
		if !ok {
			done = true
			break
		}
		j.buf = append(j.buf, r)
	}
	elapsed := time.Since(start)
	c.stats.Chunks++
	chunkDuration.WithLabelValues(c.name).Observe(elapsed.Seconds())
	if c.onChunk != nil {
		c.onChunk(ChunkReport{
			Controller: c.name,
			Generation: j.gen,
			Frames:     len(j.buf) - before,
			Elapsed:    elapsed,
			Done:       done,
		})
	}

	switch {
	case c.pending != nil:
		// A plan that re-entered Update made itself stale
		c.abort(c.pending.gen)
	case done:
		c.commit()
	}
	return c.State() == Computing
}

// Drain steps until the controller is idle, yielding the processor between
// chunks. It returns ctx.Err() if the context ends first; the in-flight job is
// left in place and resumes on the next Step.
func (c *Controller[S, R]) Drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !c.Step() {
			return nil
		}
		runtime.Gosched()
	}
}

// Cancel abandons both the in-flight job and any pending request.
func (c *Controller[S, R]) Cancel() {
	if c.active != nil {
		c.abort(c.latest)
	}
	c.pending = nil
}

func (c *Controller[S, R]) start() {
	req := c.pending
	c.pending = nil

	plan := c.build(req.state)
	seq := plan.Seq
	if seq == nil {
		seq = func(func(R) bool) {}
	}
	next, stop := iter.Pull(seq)
	c.active = &job[R]{
		gen:     req.gen,
		frames:  plan.Frames,
		next:    next,
		stop:    stop,
		buf:     make([]R, 0, max(plan.Frames, 0)),
		started: time.Now(),
	}
	c.stats.Started++
	jobsTotal.WithLabelValues(c.name, eventStarted).Inc()
}

func (c *Controller[S, R]) commit() {
	j := c.active
	c.active = nil
	j.stop()

	c.committed = Result[R]{
		Generation: j.gen,
		Frames:     j.buf,
		Elapsed:    time.Since(j.started),
	}
	c.hasCommitted = true
	c.stats.Committed++
	jobsTotal.WithLabelValues(c.name, eventCommitted).Inc()
	framesPerJob.WithLabelValues(c.name).Observe(float64(len(j.buf)))

	c.logger.Debug("precompute_committed",
		"view", c.name,
		"generation", uint64(j.gen),
		"frames", len(j.buf),
		"elapsed_ms", time.Since(j.started).Milliseconds(),
	)
	if c.onCommit != nil {
		c.onCommit(c.committed)
	}
}

// abort drops the in-flight job in favour of generation newer.
func (c *Controller[S, R]) abort(newer Generation) {
	j := c.active
	c.active = nil
	j.stop()

	c.stats.Aborted++
	jobsTotal.WithLabelValues(c.name, eventAborted).Inc()
	c.logger.Debug("precompute_aborted",
		"view", c.name,
		"generation", uint64(j.gen),
		"superseded_by", uint64(newer),
		"frames_done", len(j.buf),
		"frames_total", j.frames,
	)
}
