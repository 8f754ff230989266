package ratelimit

import (
	"errors"
	"time"
)

// Sentinel errors returned by the store layer. The admission path converts
// all of them into fail-closed Decisions; the admin path propagates them.
var (
	// ErrStoreUnavailable indicates that no Redis connection is currently
	// available. Admission checks fail closed when they see this error.
	ErrStoreUnavailable = errors.New("ratelimit: coordination store unavailable")

	// ErrConnectionFailed indicates that the connection retry budget has been
	// exhausted and the store is in the terminal Failed state. Recovery
	// requires ResetConnection or a process restart.
	ErrConnectionFailed = errors.New("ratelimit: store connection failed after max retries")

	// ErrNotInitialized is returned by the Default() accessor before
	// InitDefault has been called.
	ErrNotInitialized = errors.New("ratelimit: default limiter not initialized")
)

// Metrics defines the interface for recording rate limiting events.
//
// Implementations can use Prometheus or custom metrics systems. The limiter
// additionally keeps its own process-local counters (see Stats), which are
// authoritative for error-rate and rejection-rate calculations; Metrics is
// export-only observability.
type Metrics interface {
	// RecordRequest records that an admission check started.
	RecordRequest(category string)

	// RecordAllowed records an admission check that allowed the request.
	RecordAllowed(category string)

	// RecordDenied records an admission check that denied the request.
	RecordDenied(category string)

	// RecordError records an admission check that failed because of a store
	// or script error. Errored checks are also denied (fail-closed).
	RecordError(category string)

	// RecordCheckDuration records the duration of one admission check.
	RecordCheckDuration(category string, duration time.Duration)

	// RecordConnectionState records the store connection state
	// (e.g., "connected", "reconnecting", "failed").
	RecordConnectionState(state string)

	// SetActiveKeys records the number of live rate-limit keys observed by
	// the most recent stats scan.
	SetActiveKeys(count int)
}

// Clock provides an abstraction for time operations to enable testing.
//
// The clock is always read in-process and the value passed to the admission
// script as an argument, so that a single logical "now" is used consistently
// for purge, count, and insert within one invocation.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// SystemClock is a Clock implementation that uses the system time.
type SystemClock struct{}

// Now returns the current system time.
func (c *SystemClock) Now() time.Time {
	return time.Now()
}
