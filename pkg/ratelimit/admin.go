package ratelimit

import (
	"context"
	"fmt"
)

// Stats aggregates process-local counters with a store-wide key scan.
type Stats struct {
	// TotalRequests is the number of admission checks this process has run.
	TotalRequests int64 `json:"total_requests"`

	// Allowed is the number of admitted checks.
	Allowed int64 `json:"allowed"`

	// Denied is the number of rejected checks, including fail-closed ones.
	Denied int64 `json:"denied"`

	// Errors is the number of checks that failed on store/script errors.
	Errors int64 `json:"errors"`

	// CacheHits is the number of tiered checks resolved by an exact
	// (tier, category) table hit rather than a fallback.
	CacheHits int64 `json:"cache_hits"`

	// RejectionRate is Denied/TotalRequests as a percentage.
	RejectionRate float64 `json:"rejection_rate"`

	// ErrorRate is Errors/TotalRequests as a percentage.
	ErrorRate float64 `json:"error_rate"`

	// ActiveKeys is the number of live rate-limit keys in the store.
	ActiveKeys int `json:"active_keys"`

	// TrackedEntries is the total number of window entries across all keys.
	TrackedEntries int64 `json:"tracked_entries"`
}

// ResetLimit deletes the rate-limit key for one (identifier, category)
// pair. Idempotent: resetting a key that does not exist succeeds.
func (l *Limiter) ResetLimit(ctx context.Context, identifier, category string) error {
	if err := l.store.Delete(ctx, BuildKey(category, identifier)); err != nil {
		return fmt.Errorf("reset limit: %w", err)
	}
	return nil
}

// ResetAllLimits deletes every rate-limit key matching the glob pattern and
// returns the number deleted. An empty pattern matches all rate-limit keys.
//
// Operator tool; the underlying SCAN is paced and must not be called from
// request paths.
func (l *Limiter) ResetAllLimits(ctx context.Context, pattern string) (int64, error) {
	if pattern == "" {
		pattern = KeyPattern("")
	}
	deleted, err := l.store.DeleteByPattern(ctx, pattern)
	if err != nil {
		return deleted, fmt.Errorf("reset all limits: %w", err)
	}
	return deleted, nil
}

// GlobalStats combines the process-local counters with an O(keys) store
// scan. When the scan fails the local counters are still returned alongside
// the error so operators see a partial picture rather than nothing.
func (l *Limiter) GlobalStats(ctx context.Context) (Stats, error) {
	stats := Stats{
		TotalRequests: l.requests.Load(),
		Allowed:       l.allowed.Load(),
		Denied:        l.denied.Load(),
		Errors:        l.errors.Load(),
		CacheHits:     l.cacheHits.Load(),
	}
	if stats.TotalRequests > 0 {
		stats.RejectionRate = float64(stats.Denied) / float64(stats.TotalRequests) * 100
		stats.ErrorRate = float64(stats.Errors) / float64(stats.TotalRequests) * 100
	}

	keys, entries, err := l.store.SumEntries(ctx, KeyPattern(""))
	if err != nil {
		return stats, fmt.Errorf("global stats scan: %w", err)
	}
	stats.ActiveKeys = keys
	stats.TrackedEntries = entries
	l.metrics.SetActiveKeys(keys)
	return stats, nil
}

// HealthStatus is the three-way health classification of the limiter.
type HealthStatus string

const (
	// HealthHealthy means the store is reachable and the lifetime error
	// rate is at most 10%.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded means the store is reachable but the lifetime error
	// rate exceeds 10%.
	HealthDegraded HealthStatus = "degraded"

	// HealthUnhealthy means the store is unreachable; admission is
	// currently failing closed.
	HealthUnhealthy HealthStatus = "unhealthy"
)

// Health is the result of one health check.
type Health struct {
	Status          HealthStatus `json:"status"`
	StoreConnected  bool         `json:"store_connected"`
	ConnectionState string       `json:"connection_state"`
	ErrorRate       float64      `json:"error_rate"`
}

// HealthCheck probes the store and classifies the limiter's health.
//
// The probe attempts a connection if none exists, so a health check can pull
// the limiter out of a transient disconnect.
func (l *Limiter) HealthCheck(ctx context.Context) Health {
	health := Health{StoreConnected: true}

	if err := l.store.Ping(ctx); err != nil {
		health.StoreConnected = false
		health.Status = HealthUnhealthy
	}

	requests := l.requests.Load()
	if requests > 0 {
		health.ErrorRate = float64(l.errors.Load()) / float64(requests) * 100
	}
	health.ConnectionState = l.store.State().String()

	if health.StoreConnected {
		if health.ErrorRate > 10 {
			health.Status = HealthDegraded
		} else {
			health.Status = HealthHealthy
		}
	}
	return health
}
