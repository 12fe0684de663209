// Package metrics provides Prometheus metrics for gateway operations.
//
// # Basic Usage
//
//	metrics.RecordOperation("rbc-bank", "sync_data", "success", 120*time.Millisecond)
//	metrics.ConnectedConnectors.WithLabelValues("kafka").Inc()
//
// All metrics are registered on the default Prometheus registry at package
// initialization and can be exposed with promhttp.Handler().
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts operation log entries.
	// Labels: connector (connector or module name), operation, status (success/error/warning)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_operations_total",
			Help: "Total number of connector and module operations",
		},
		[]string{"connector", "operation", "status"},
	)

	// OperationDuration tracks how long operations take, in seconds.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "gateway_operation_duration_seconds",
			Help: "Operation latency in seconds",
			Buckets: []float64{
				0.001, // in-memory and sandbox operations
				0.01,
				0.05,
				0.1,
				0.5,
				1,
				5, // default broker poll timeout
				10,
				30, // plugin and HTTP timeouts
			},
		},
		[]string{"connector", "operation"},
	)

	// ConnectedConnectors tracks live connections by connector type.
	ConnectedConnectors = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_connected_connectors",
			Help: "Number of connectors currently connected",
		},
		[]string{"type"},
	)

	// HTTPRequestDuration tracks outbound HTTP calls made by clients.
	// Labels: host, method, code (status code, or "error" for transport failures)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "Outbound HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"host", "method", "code"},
	)
)

// RecordOperation records the outcome and latency of one operation.
func RecordOperation(connector, operation, status string, d time.Duration) {
	OperationsTotal.WithLabelValues(connector, operation, status).Inc()
	OperationDuration.WithLabelValues(connector, operation).Observe(d.Seconds())
}

// RecordHTTPRequest records one outbound HTTP call.
func RecordHTTPRequest(host, method, code string, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(host, method, code).Observe(d.Seconds())
}
