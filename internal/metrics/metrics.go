// Package metrics exposes Prometheus collectors for the acquisition pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal            *prometheus.CounterVec
	ingestOutcomesTotal  *prometheus.CounterVec
	fetchDurationSeconds *prometheus.HistogramVec
	dedupHitsTotal       prometheus.Counter
	degradedEventsTotal  *prometheus.CounterVec
	urlsQueuedTotal      *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regintel_jobs_total",
				Help: "Total number of jobs completed, labeled by class and state.",
			},
			[]string{"class", "state"},
		)

		ingestOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regintel_ingest_outcomes_total",
				Help: "Terminal ingestion outcomes, labeled by kind.",
			},
			[]string{"kind"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "regintel_fetch_duration_seconds",
				Help:    "Histogram of source fetch latencies, labeled by domain.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		dedupHitsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "regintel_dedup_hits_total",
				Help: "Ingestions short-circuited by the deduplication index.",
			},
		)

		degradedEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regintel_degraded_events_total",
				Help: "Non-fatal capability failures, labeled by capability.",
			},
			[]string{"capability"},
		)

		urlsQueuedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regintel_urls_queued_total",
				Help: "Ingestion jobs enqueued by the schedulers, labeled by producer.",
			},
			[]string{"producer"},
		)
	})
}

// RecordJob counts a completed job.
func RecordJob(class, state string) {
	if jobsTotal == nil {
		return
	}
	jobsTotal.WithLabelValues(class, state).Inc()
}

// RecordOutcome counts a terminal ingestion outcome.
func RecordOutcome(kind string) {
	if ingestOutcomesTotal == nil {
		return
	}
	ingestOutcomesTotal.WithLabelValues(kind).Inc()
}

// ObserveFetch records one source fetch duration.
func ObserveFetch(domain string, d time.Duration) {
	if fetchDurationSeconds == nil {
		return
	}
	fetchDurationSeconds.WithLabelValues(domain).Observe(d.Seconds())
}

// RecordDedupHit counts one duplicate short-circuit.
func RecordDedupHit() {
	if dedupHitsTotal == nil {
		return
	}
	dedupHitsTotal.Inc()
}

// RecordDegraded counts one swallowed capability failure.
func RecordDegraded(capability string) {
	if degradedEventsTotal == nil {
		return
	}
	degradedEventsTotal.WithLabelValues(capability).Inc()
}

// RecordQueued counts one scheduler-enqueued ingestion job.
func RecordQueued(producer string) {
	if urlsQueuedTotal == nil {
		return
	}
	urlsQueuedTotal.WithLabelValues(producer).Inc()
}
