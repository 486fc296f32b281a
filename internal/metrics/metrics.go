package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GRPCServerHandlingSeconds is a histogram for gRPC server request latencies
	GRPCServerHandlingSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grpc_server_handling_seconds",
			Help:    "Histogram of response latency (seconds) of gRPC that had been application-level handled by the server.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "code"},
	)

	// InferenceInputElements tracks how many elements each inference call
	// was fed across all inputs.
	InferenceInputElements = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "onnxrun_inference_input_elements",
			Help:    "Histogram of total input elements per inference call.",
			Buckets: prometheus.ExponentialBuckets(1, 8, 10),
		},
	)

	// InferenceLatencySeconds is a histogram for inference-only latency
	InferenceLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "onnxrun_inference_latency_seconds",
			Help:    "Histogram of inference latency (seconds) excluding transport overhead.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// CacheRequests counts output cache lookups by result (hit, miss, error).
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onnxrun_cache_requests_total",
			Help: "Output cache lookups by result.",
		},
		[]string{"result"},
	)

	// Comparisons counts reference comparisons by outcome (pass, fail).
	Comparisons = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onnxrun_comparisons_total",
			Help: "Output comparisons against reference tensors by outcome.",
		},
		[]string{"outcome"},
	)

	// HealthStatus is a gauge indicating the health status of the service
	HealthStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "health_status",
			Help: "Health status of the service (1 = healthy, 0 = unhealthy).",
		},
	)
)

// RecordGRPCLatency records the latency of a gRPC method call
func RecordGRPCLatency(method, code string, seconds float64) {
	GRPCServerHandlingSeconds.WithLabelValues(method, code).Observe(seconds)
}

// RecordInferenceInputs records the number of input elements of one call
func RecordInferenceInputs(elements int) {
	InferenceInputElements.Observe(float64(elements))
}

// RecordInferenceLatency records the latency of an inference call
func RecordInferenceLatency(seconds float64) {
	InferenceLatencySeconds.Observe(seconds)
}

// RecordCache records an output cache lookup result
func RecordCache(result string) {
	CacheRequests.WithLabelValues(result).Inc()
}

// RecordComparison records the outcome of one reference comparison
func RecordComparison(pass bool) {
	outcome := "fail"
	if pass {
		outcome = "pass"
	}
	Comparisons.WithLabelValues(outcome).Inc()
}

// SetHealthy sets the health status to healthy
func SetHealthy() {
	HealthStatus.Set(1)
}

// SetUnhealthy sets the health status to unhealthy
func SetUnhealthy() {
	HealthStatus.Set(0)
}
