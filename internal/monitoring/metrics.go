package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RunsTotal           *prometheus.CounterVec
	RunDuration         prometheus.Histogram
	SourcesTotal        *prometheus.CounterVec
	CandidatesTotal     *prometheus.CounterVec
	FetchAttemptsTotal  *prometheus.CounterVec
	RelevanceScore      prometheus.Histogram
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers every collector on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_runs_total",
			Help: "The total number of scraping runs by final state",
		}, []string{"state"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvester_run_duration_seconds",
			Help:    "Wall time of complete scraping runs",
			Buckets: []float64{30, 60, 120, 300, 600, 1200, 2400, 3600},
		}),
		SourcesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_sources_processed_total",
			Help: "The total number of sources processed by outcome",
		}, []string{"outcome"}), // ok, failed
		CandidatesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_candidates_total",
			Help: "The total number of title-matched candidates by outcome",
		}, []string{"outcome"}), // inserted, skipped_duplicate, skipped_irrelevant, persist_error
		FetchAttemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_fetch_attempts_total",
			Help: "The total number of page fetch attempts by result",
		}, []string{"result"}),
		RelevanceScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvester_relevance_score",
			Help:    "Distribution of relevance scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) IncRun(state string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) ObserveRunDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
}

func (m *Metrics) IncSource(outcome string) {
	if m == nil {
		return
	}
	m.SourcesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncCandidate(outcome string) {
	if m == nil {
		return
	}
	m.CandidatesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncFetchAttempt(result string) {
	if m == nil {
		return
	}
	m.FetchAttemptsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveScore(score float64) {
	if m == nil {
		return
	}
	m.RelevanceScore.Observe(score)
}

func (m *Metrics) ObserveHTTP(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}
