package precompute

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics, labelled by controller (view) name.
var (
	// jobsTotal counts job lifecycle events: started, committed, aborted
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathviz_precompute_jobs_total",
		Help: "Precompute jobs by view and event",
	}, []string{"view", "event"})

	// chunkDuration tracks the wall time of one cooperative chunk
	chunkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pathviz_precompute_chunk_duration_seconds",
		Help:    "Duration of one precompute chunk in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~400ms
	}, []string{"view"})

	// framesPerJob tracks the size of committed jobs
	framesPerJob = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pathviz_precompute_frames",
		Help:    "Frames produced per committed precompute job",
		Buckets: []float64{1, 10, 30, 60, 100, 250, 1000},
	}, []string{"view"})
)

const (
	eventStarted   = "started"
	eventCommitted = "committed"
	eventAborted   = "aborted"
)
