package ratelimit

import "time"

// NoOpMetrics implements the Metrics interface with no-op implementations.
//
// Useful for tests and for benchmarking limiter performance without metrics
// overhead.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new NoOpMetrics instance.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

// RecordRequest is a no-op implementation.
func (m *NoOpMetrics) RecordRequest(category string) {}

// RecordAllowed is a no-op implementation.
func (m *NoOpMetrics) RecordAllowed(category string) {}

// RecordDenied is a no-op implementation.
func (m *NoOpMetrics) RecordDenied(category string) {}

// RecordError is a no-op implementation.
func (m *NoOpMetrics) RecordError(category string) {}

// RecordCheckDuration is a no-op implementation.
func (m *NoOpMetrics) RecordCheckDuration(category string, duration time.Duration) {}

// RecordConnectionState is a no-op implementation.
func (m *NoOpMetrics) RecordConnectionState(state string) {}

// SetActiveKeys is a no-op implementation.
func (m *NoOpMetrics) SetActiveKeys(count int) {}
