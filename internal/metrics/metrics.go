package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics registers the engine's Prometheus collectors. All methods accept a
// nil receiver so callers without a metrics pipeline (the CLI, tests) can
// pass nil.
type Metrics struct {
	QueriesTotal        prometheus.Counter
	QueryFailures       *prometheus.CounterVec
	BeliefsPersisted    prometheus.Counter
	BeliefsSkipped      prometheus.Counter
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
	AggregationWarnings prometheus.Counter
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		QueriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hindsight_queries_total",
			Help: "Total number of per-sensor belief queries served",
		}),
		QueryFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hindsight_query_failures_total",
			Help: "Per-sensor belief query failures by condition",
		}, []string{"condition"}),
		BeliefsPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hindsight_beliefs_persisted_total",
			Help: "Belief rows written to the store",
		}),
		BeliefsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hindsight_beliefs_skipped_unchanged_total",
			Help: "Candidate belief rows dropped because the store already held them",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hindsight_frame_cache_hits_total",
			Help: "Belief frame cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hindsight_frame_cache_misses_total",
			Help: "Belief frame cache misses",
		}),
		AggregationWarnings: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hindsight_aggregation_warnings_total",
			Help: "Cross-sensor aggregations flagged as approximate",
		}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hindsight_http_requests_total",
			Help: "HTTP requests by method and status",
		}, []string{"method", "status"}),
		HTTPDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "hindsight_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) QueryServed() {
	if m == nil {
		return
	}
	m.QueriesTotal.Inc()
}

func (m *Metrics) QueryFailed(condition string) {
	if m == nil {
		return
	}
	m.QueryFailures.WithLabelValues(condition).Inc()
}

func (m *Metrics) RecordPersisted(written, skipped int64) {
	if m == nil {
		return
	}
	m.BeliefsPersisted.Add(float64(written))
	m.BeliefsSkipped.Add(float64(skipped))
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

func (m *Metrics) AggregationWarned() {
	if m == nil {
		return
	}
	m.AggregationWarnings.Inc()
}

func (m *Metrics) ObserveHTTP(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.Observe(elapsed.Seconds())
}
