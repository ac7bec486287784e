// Package metrics exposes Prometheus instrumentation for the merge service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and histograms for the merge pipeline.
type Metrics struct {
	registry             *prometheus.Registry
	mergesEnqueuedTotal  prometheus.Counter
	mergesCompletedTotal prometheus.Counter
	mergesFailedTotal    prometheus.Counter
	manifestFetchesTotal prometheus.Counter
	mergeDuration        prometheus.Histogram
}

// New creates and registers the merge service metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	mergesEnqueuedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vodstitch_merges_enqueued_total",
		Help: "Total number of merge jobs accepted and enqueued",
	})
	mergesCompletedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vodstitch_merges_completed_total",
		Help: "Total number of merge jobs completed successfully",
	})
	mergesFailedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vodstitch_merges_failed_total",
		Help: "Total number of merge job attempts that failed",
	})
	manifestFetchesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vodstitch_manifest_fetches_total",
		Help: "Total number of slice manifests fetched from the origin",
	})
	mergeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vodstitch_merge_duration_seconds",
		Help:    "Wall time of one merge operation, fetch to final store write",
		Buckets: prometheus.DefBuckets,
	})

	registry.MustRegister(
		mergesEnqueuedTotal,
		mergesCompletedTotal,
		mergesFailedTotal,
		manifestFetchesTotal,
		mergeDuration,
	)

	return &Metrics{
		registry:             registry,
		mergesEnqueuedTotal:  mergesEnqueuedTotal,
		mergesCompletedTotal: mergesCompletedTotal,
		mergesFailedTotal:    mergesFailedTotal,
		manifestFetchesTotal: manifestFetchesTotal,
		mergeDuration:        mergeDuration,
	}
}

// IncMergesEnqueued increments the enqueued merge jobs counter.
func (m *Metrics) IncMergesEnqueued() {
	m.mergesEnqueuedTotal.Inc()
}

// IncMergesCompleted increments the completed merge jobs counter.
func (m *Metrics) IncMergesCompleted() {
	m.mergesCompletedTotal.Inc()
}

// IncMergesFailed increments the failed merge attempts counter.
func (m *Metrics) IncMergesFailed() {
	m.mergesFailedTotal.Inc()
}

// IncManifestFetches increments the fetched manifests counter.
func (m *Metrics) IncManifestFetches() {
	m.manifestFetchesTotal.Inc()
}

// ObserveMergeDuration records the wall time of one merge operation.
func (m *Metrics) ObserveMergeDuration(d time.Duration) {
	m.mergeDuration.Observe(d.Seconds())
}

// Handler returns an http.Handler that serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
