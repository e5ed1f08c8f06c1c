// Package metrics implements types.Metrics on top of the Prometheus client.
package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements the Metrics interface with pre-registered
// vectors. Every metric name is prefixed with the sanitized component name.
type PrometheusMetrics struct {
	namespace string

	processedTotal  *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
	fileSizeBytes   *prometheus.HistogramVec
	inProgress      *prometheus.GaugeVec
}

// New creates and registers the metric vectors for namespace with the
// default Prometheus registerer.
//
// Registered metrics:
//   - {namespace}_processed_total{status,type}
//   - {namespace}_errors_total{error_type,operation}
//   - {namespace}_cache_lookups_total{result}
//   - {namespace}_retries_total{kind}
//   - {namespace}_duration_seconds{operation}
//   - {namespace}_artifact_size_bytes{media_type}
//   - {namespace}_in_progress{operation}
//
// Panics if a metric with the same name is already registered.
func New(namespace string) *PrometheusMetrics {
	ns := sanitize(namespace)
	m := &PrometheusMetrics{namespace: ns}

	m.processedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: ns + "_processed_total",
			Help: fmt.Sprintf("Operations processed by %s", namespace),
		},
		[]string{"status", "type"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: ns + "_errors_total",
			Help: fmt.Sprintf("Errors in %s by category", namespace),
		},
		[]string{"error_type", "operation"},
	)

	m.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: ns + "_cache_lookups_total",
			Help: fmt.Sprintf("Cache lookups in %s by result", namespace),
		},
		[]string{"result"},
	)

	m.retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: ns + "_retries_total",
			Help: fmt.Sprintf("Retried attempts in %s by failure kind", namespace),
		},
		[]string{"kind"},
	)

	// downloads run from seconds to hours
	m.durationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    ns + "_duration_seconds",
			Help:    fmt.Sprintf("Operation duration in %s", namespace),
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		},
		[]string{"operation"},
	)

	// 1MB .. 4GB
	m.fileSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    ns + "_artifact_size_bytes",
			Help:    fmt.Sprintf("Artifact sizes delivered by %s", namespace),
			Buckets: prometheus.ExponentialBuckets(1<<20, 4, 7),
		},
		[]string{"media_type"},
	)

	m.inProgress = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: ns + "_in_progress",
			Help: fmt.Sprintf("Operations in progress in %s", namespace),
		},
		[]string{"operation"},
	)

	prometheus.MustRegister(
		m.processedTotal,
		m.errorsTotal,
		m.cacheLookups,
		m.retriesTotal,
		m.durationSeconds,
		m.fileSizeBytes,
		m.inProgress,
	)

	return m
}

// RecordSuccess increments {ns}_processed_total with status="success".
func (m *PrometheusMetrics) RecordSuccess(operationType string) {
	m.processedTotal.WithLabelValues("success", operationType).Inc()
}

// RecordError increments both the processed counter (status="error") and the
// per-category error counter.
func (m *PrometheusMetrics) RecordError(operationType string, errorType string) {
	m.processedTotal.WithLabelValues("error", operationType).Inc()
	m.errorsTotal.WithLabelValues(errorType, operationType).Inc()
}

// RecordDuration observes duration (seconds) for operation.
func (m *PrometheusMetrics) RecordDuration(operation string, duration float64) {
	m.durationSeconds.WithLabelValues(operation).Observe(duration)
}

// RecordFileSize observes the size of a delivered artifact.
func (m *PrometheusMetrics) RecordFileSize(mediaType string, bytes int64) {
	m.fileSizeBytes.WithLabelValues(mediaType).Observe(float64(bytes))
}

// RecordCacheLookup counts a cache lookup as hit or miss.
func (m *PrometheusMetrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordRetry counts one retried attempt of the given failure kind.
func (m *PrometheusMetrics) RecordRetry(kind string) {
	m.retriesTotal.WithLabelValues(kind).Inc()
}

// StartOperation increments the in-progress gauge. Pair with EndOperation.
func (m *PrometheusMetrics) StartOperation(operation string) {
	m.inProgress.WithLabelValues(operation).Inc()
}

// EndOperation decrements the in-progress gauge.
func (m *PrometheusMetrics) EndOperation(operation string) {
	m.inProgress.WithLabelValues(operation).Dec()
}

// sanitize maps a component name such as "transport.guard" to a valid
// Prometheus metric prefix.
func sanitize(name string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_", "/", "_")
	return r.Replace(strings.ToLower(name))
}
