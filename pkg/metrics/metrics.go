// Package metrics defines the Prometheus metric collectors used by the
// assistant service and the server that exposes them for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	QuestionsTotal       *prometheus.CounterVec
	RankingLatency       prometheus.Histogram
	RankingResultsCount  prometheus.Histogram
	RemoteAttemptsTotal  *prometheus.CounterVec
	RemoteLatency        prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CorpusSegments       prometheus.Gauge
	LexiconEntries       prometheus.Gauge
	ActiveSessions       prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all metrics and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 45, 90},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		QuestionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_questions_total",
				Help: "Questions handled by result (answered, failed, no_local_match).",
			},
			[]string{"result"},
		),
		RankingLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ranking_latency_seconds",
				Help:    "Local ranking latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
			},
		),
		RankingResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ranking_results_count",
				Help:    "Number of ranked segments returned per question.",
				Buckets: []float64{0, 1, 2, 3},
			},
		),
		RemoteAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remote_assistant_attempts_total",
				Help: "Remote assistant attempts by outcome (success, retryable, terminal).",
			},
			[]string{"outcome"},
		),
		RemoteLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "remote_assistant_latency_seconds",
				Help:    "Remote assistant call latency including retries.",
				Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 45, 90, 150},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "answer_cache_hits_total",
				Help: "Total number of answer cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "answer_cache_misses_total",
				Help: "Total number of answer cache misses.",
			},
		),
		CorpusSegments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_segments_loaded",
				Help: "Number of corpus segments loaded.",
			},
		),
		LexiconEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lexicon_entries_loaded",
				Help: "Number of lexicon entries loaded.",
			},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_sessions",
				Help: "Number of conversation sessions held in memory.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QuestionsTotal,
		m.RankingLatency,
		m.RankingResultsCount,
		m.RemoteAttemptsTotal,
		m.RemoteLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CorpusSegments,
		m.LexiconEntries,
		m.ActiveSessions,
		m.CircuitBreakerState,
	)

	return m
}
