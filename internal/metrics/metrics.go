// Package metrics exposes Prometheus collectors for the lead engine.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	searchesTotal      *prometheus.CounterVec
	siteFetchesTotal   *prometheus.CounterVec
	siteFetchDuration  prometheus.Histogram
	leadsInsertedTotal *prometheus.CounterVec
	validationsTotal   *prometheus.CounterVec
	jobsTotal          *prometheus.CounterVec
	activeJobs         prometheus.Gauge
	limiterQueueDepth  prometheus.Gauge

	once sync.Once
)

// Init registers all collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		searchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadengine_searches_total",
				Help: "Search queries issued, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)
		siteFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadengine_site_fetches_total",
				Help: "Site page fetches, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)
		siteFetchDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "leadengine_site_fetch_duration_seconds",
				Help:    "Latency of site page fetches.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
			},
		)
		leadsInsertedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadengine_leads_total",
				Help: "Lead persistence attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		validationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadengine_email_validations_total",
				Help: "Email validations, labeled by reason.",
			},
			[]string{"reason"},
		)
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadengine_jobs_total",
				Help: "Finished jobs, labeled by final status.",
			},
			[]string{"status"},
		)
		activeJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "leadengine_active_jobs",
				Help: "Jobs currently running.",
			},
		)
		limiterQueueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "leadengine_limiter_queue_depth",
				Help: "URL tasks waiting for a concurrency slot.",
			},
		)
	})
}

// SearchCompleted records one search query outcome.
func SearchCompleted(source, outcome string) {
	if searchesTotal != nil {
		searchesTotal.WithLabelValues(source, outcome).Inc()
	}
}

// SiteFetched records one page fetch.
func SiteFetched(kind, outcome string, dur time.Duration) {
	if siteFetchesTotal != nil {
		siteFetchesTotal.WithLabelValues(kind, outcome).Inc()
	}
	if siteFetchDuration != nil && dur > 0 {
		siteFetchDuration.Observe(dur.Seconds())
	}
}

// LeadInserted records one persistence attempt outcome (inserted, duplicate,
// invalid_domain, error).
func LeadInserted(outcome string) {
	if leadsInsertedTotal != nil {
		leadsInsertedTotal.WithLabelValues(outcome).Inc()
	}
}

// ValidationCompleted records one email validation by its reason.
func ValidationCompleted(reason string) {
	if validationsTotal != nil {
		validationsTotal.WithLabelValues(reason).Inc()
	}
}

// JobFinished records a job's final status.
func JobFinished(status string) {
	if jobsTotal != nil {
		jobsTotal.WithLabelValues(status).Inc()
	}
}

// JobActive adjusts the running-jobs gauge by delta.
func JobActive(delta int) {
	if activeJobs != nil {
		activeJobs.Add(float64(delta))
	}
}

// SetLimiterQueueDepth publishes the current limiter backlog.
func SetLimiterQueueDepth(n int) {
	if limiterQueueDepth != nil {
		limiterQueueDepth.Set(float64(n))
	}
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
