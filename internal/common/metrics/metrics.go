// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of dashboard requests answered by the gateway",
		},
		[]string{"resource", "method", "status"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_upstream_duration_seconds",
			Help:    "Duration of outbound calls to the external management service",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource", "method"},
	)

	TransportFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_transport_failures_total",
			Help: "Outbound calls that could not complete at the network level",
		},
		[]string{"resource"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_rate_limited_total",
			Help: "Requests rejected by the per-resource rate limiter",
		},
		[]string{"resource"},
	)

	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_circuit_state",
			Help: "Circuit breaker state per resource (0 closed, 1 half-open, 2 open)",
		},
		[]string{"resource"},
	)

	InFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_requests_in_flight",
			Help: "Number of dashboard requests currently being proxied",
		},
		[]string{"resource"},
	)
)
