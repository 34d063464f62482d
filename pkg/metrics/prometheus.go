// Package metrics provides Prometheus metrics for the emotion classifier.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Inference latencies sit well under a second on CPU.
var defaultBuckets = []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000}

// Manager owns the classifier's Prometheus collectors.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	predictions        *prometheus.CounterVec
	predictionErrors   prometheus.Counter
	inferenceLatency   prometheus.Histogram
	checkpointsMissing prometheus.Counter
	checkpointsLoaded  prometheus.Counter
	facesProcessed     *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a metrics manager. Without WithRegistry it uses a fresh
// registry so several managers can coexist in tests.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "fer",
		subsystem:        "classifier",
		histogramBuckets: defaultBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.predictions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "predictions_total",
		Help:      "Total number of classified faces by predicted emotion",
	}, []string{"label"})

	m.predictionErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "prediction_errors_total",
		Help:      "Total number of inference calls that returned an error",
	})

	m.inferenceLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "inference_latency_milliseconds",
		Help:      "Histogram of forward-pass latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.checkpointsMissing = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "checkpoint_missing_total",
		Help:      "Number of builds that proceeded with untrained weights",
	})

	m.checkpointsLoaded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "checkpoint_loaded_total",
		Help:      "Number of successful checkpoint loads",
	})

	m.facesProcessed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "faces_processed_total",
		Help:      "Faces classified by the command-line drivers",
	}, []string{"driver"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordPrediction counts a classified face and its inference latency.
func (m *Manager) RecordPrediction(label string, latency time.Duration) {
	m.predictions.WithLabelValues(label).Inc()
	m.inferenceLatency.Observe(float64(latency) / float64(time.Millisecond))
}

// RecordPredictionError counts a failed inference call.
func (m *Manager) RecordPredictionError() { m.predictionErrors.Inc() }

// RecordCheckpointMissing counts a build that found no checkpoint.
func (m *Manager) RecordCheckpointMissing() { m.checkpointsMissing.Inc() }

// RecordCheckpointLoaded counts a successful checkpoint load.
func (m *Manager) RecordCheckpointLoaded() { m.checkpointsLoaded.Inc() }

// RecordFace counts a face handled by the named driver.
func (m *Manager) RecordFace(driver string) { m.facesProcessed.WithLabelValues(driver).Inc() }

// RecordHTTPRequest counts a request and records its duration.
func (m *Manager) RecordHTTPRequest(endpoint, method, status string, d time.Duration) {
	m.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(float64(d) / float64(time.Millisecond))
}

// Registry exposes the underlying registry.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
