package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the sync core and the dev server
type Metrics struct {
	// Client side
	MutationsTotal *prometheus.CounterVec
	PollsTotal     *prometheus.CounterVec
	CachePosts     prometheus.Gauge

	// Dev server
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all metrics once
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			MutationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "feedsync_mutations_total",
					Help: "Mutations by kind and final state",
				},
				[]string{"kind", "outcome"},
			),
			PollsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "feedsync_polls_total",
					Help: "Thread polls by outcome",
				},
				[]string{"outcome"},
			),
			CachePosts: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "feedsync_cache_posts",
					Help: "Posts currently held in the entity cache",
				},
			),
			RequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "feedsync_request_duration_seconds",
					Help:    "Dev server request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"route"},
			),
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "feedsync_requests_total",
					Help: "Dev server requests by route and status",
				},
				[]string{"route", "status"},
			),
		}
	})
	return instance
}

// Get returns the metrics, initializing them on first use
func Get() *Metrics {
	return Initialize()
}

// RecordMutation counts a finished mutation
func RecordMutation(kind, outcome string) {
	Get().MutationsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordPoll counts one thread poll
func RecordPoll(outcome string) {
	Get().PollsTotal.WithLabelValues(outcome).Inc()
}

// SetCachePosts reports the entity cache size
func SetCachePosts(n int) {
	Get().CachePosts.Set(float64(n))
}

// ObserveRequest records a dev server request
func ObserveRequest(route, status string, took time.Duration) {
	m := Get()
	m.RequestDuration.WithLabelValues(route).Observe(took.Seconds())
	m.RequestsTotal.WithLabelValues(route, status).Inc()
}
