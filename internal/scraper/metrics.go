package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for crawl runs.
type Metrics struct {
	Registry        *prometheus.Registry
	RunsTotal       *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	AcceptedTotal   *prometheus.CounterVec
	SkippedTotal    *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
	RetriesTotal    prometheus.Counter
	SinkErrorsTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_runs_total",
			Help: "Crawl runs by category and outcome.",
		},
		[]string{"category", "status"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawl_run_duration_seconds",
			Help:    "Wall time of a category crawl.",
			Buckets: []float64{30, 60, 120, 300, 600, 1200, 2400},
		},
		[]string{"category"},
	)
	accepted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_products_accepted_total",
			Help: "Products written to a result document.",
		},
		[]string{"category"},
	)
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_products_skipped_total",
			Help: "Listing rows dropped, by reason.",
		},
		[]string{"category", "reason"},
	)
	lookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_cache_lookups_total",
			Help: "Detail cache lookups by result.",
		},
		[]string{"result"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawl_retries_total",
			Help: "Failed attempts that were retried.",
		},
	)
	sinkErrors := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawl_sink_errors_total",
			Help: "Accepted products the export sink failed to store.",
		},
	)

	registry.MustRegister(runs, duration, accepted, skipped, lookups, retries, sinkErrors)

	return &Metrics{
		Registry:        registry,
		RunsTotal:       runs,
		RunDuration:     duration,
		AcceptedTotal:   accepted,
		SkippedTotal:    skipped,
		CacheLookups:    lookups,
		RetriesTotal:    retries,
		SinkErrorsTotal: sinkErrors,
	}
}

func (m *Metrics) ObserveRun(category, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(category, status).Inc()
	m.RunDuration.WithLabelValues(category).Observe(d.Seconds())
}

func (m *Metrics) IncAccepted(category string) {
	if m == nil {
		return
	}
	m.AcceptedTotal.WithLabelValues(category).Inc()
}

func (m *Metrics) IncSkipped(category, reason string) {
	if m == nil {
		return
	}
	m.SkippedTotal.WithLabelValues(category, reason).Inc()
}

func (m *Metrics) IncCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) AddRetries(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RetriesTotal.Add(float64(n))
}

func (m *Metrics) IncSinkError() {
	if m == nil {
		return
	}
	m.SinkErrorsTotal.Inc()
}
