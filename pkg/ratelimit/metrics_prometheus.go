package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
//
// All metrics live in a custom registry for better testability and
// isolation; pass Registry() to promhttp.HandlerFor to expose them.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// checksTotal tracks admission checks by category and outcome.
	// Labels:
	//   - category: operation class ("matching", "scraping", "general")
	//   - status: "allowed", "denied" or "error"
	checksTotal *prometheus.CounterVec

	// checkDuration tracks admission check latency. Buckets are tuned for
	// single-round-trip Redis script execution: sub-millisecond locally,
	// tens of milliseconds cross-zone, anything above that indicates a
	// store problem.
	checkDuration *prometheus.HistogramVec

	// activeKeys is the number of live rate-limit keys observed by the most
	// recent stats scan.
	activeKeys prometheus.Gauge

	// connectionState maps the store connection state to a numeric gauge
	// (0=disconnected, 1=connecting, 2=connected, 3=reconnecting, 4=failed).
	connectionState prometheus.Gauge
}

// NewPrometheusMetrics creates a PrometheusMetrics instance with a custom
// registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	checksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_checks_total",
			Help: "Total admission checks by category and status",
		},
		[]string{"category", "status"},
	)

	checkDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ratelimit_check_duration_seconds",
			Help:    "Duration of admission check operations",
			Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"category"},
	)

	activeKeys := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ratelimit_active_keys",
			Help: "Number of live rate limit keys seen by the last stats scan",
		},
	)

	connectionState := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ratelimit_store_connection_state",
			Help: "Store connection state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting, 4=failed)",
		},
	)

	registry.MustRegister(checksTotal, checkDuration, activeKeys, connectionState)

	return &PrometheusMetrics{
		registry:        registry,
		checksTotal:     checksTotal,
		checkDuration:   checkDuration,
		activeKeys:      activeKeys,
		connectionState: connectionState,
	}
}

// Registry returns the Prometheus registry containing all limiter metrics.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest is a no-op for Prometheus; requests are derivable as the sum
// of the allowed/denied/error series.
func (m *PrometheusMetrics) RecordRequest(category string) {}

// RecordAllowed records an admitted check.
func (m *PrometheusMetrics) RecordAllowed(category string) {
	m.checksTotal.WithLabelValues(category, "allowed").Inc()
}

// RecordDenied records a rejected check.
func (m *PrometheusMetrics) RecordDenied(category string) {
	m.checksTotal.WithLabelValues(category, "denied").Inc()
}

// RecordError records a check that failed on a store or script error.
func (m *PrometheusMetrics) RecordError(category string) {
	m.checksTotal.WithLabelValues(category, "error").Inc()
}

// RecordCheckDuration records the duration of one admission check.
func (m *PrometheusMetrics) RecordCheckDuration(category string, duration time.Duration) {
	m.checkDuration.WithLabelValues(category).Observe(duration.Seconds())
}

// RecordConnectionState records the store connection state.
func (m *PrometheusMetrics) RecordConnectionState(state string) {
	var value float64
	switch state {
	case "disconnected":
		value = 0
	case "connecting":
		value = 1
	case "connected":
		value = 2
	case "reconnecting":
		value = 3
	case "failed":
		value = 4
	}
	m.connectionState.Set(value)
}

// SetActiveKeys records the number of live rate-limit keys.
func (m *PrometheusMetrics) SetActiveKeys(count int) {
	m.activeKeys.Set(float64(count))
}
