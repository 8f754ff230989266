package ratelimit

import (
	"fmt"
	"time"
)

// Decision represents the result of one admission check.
//
// This domain model carries everything the HTTP layer needs to enforce the
// verdict and populate standard rate-limiting headers.
type Decision struct {
	// Key is the store key the check was performed against.
	Key string

	// Allowed indicates whether the request should be permitted.
	Allowed bool

	// Limit is the maximum number of requests allowed in the window.
	Limit int

	// Remaining is the number of requests left in the current window.
	// Zero means the budget is exhausted.
	Remaining int

	// ResetAt is an upper bound on when capacity frees up (now + window).
	// It is not an exact expiry of any single window entry.
	ResetAt time.Time

	// RetryAfter is the duration the client should wait before retrying,
	// calculated as ResetAt - now at decision time.
	RetryAfter time.Duration

	// Tier is the resolved subscriber tier, set by CheckTieredLimit.
	// Empty for direct CheckLimit calls.
	Tier string

	// FailedClosed is true when the denial was caused by a store failure
	// rather than a genuine over-limit condition. End callers cannot
	// distinguish the two; this field exists for logging and tests only.
	FailedClosed bool
}

// String returns a human-readable representation of the decision.
func (d *Decision) String() string {
	if d.Allowed {
		return fmt.Sprintf("Decision{Allowed: true, Key: %s, Remaining: %d/%d, ResetAt: %s}",
			d.Key, d.Remaining, d.Limit, d.ResetAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("Decision{Allowed: false, Key: %s, Limit: %d, RetryAfter: %s}",
		d.Key, d.Limit, d.RetryAfter)
}

// IsDenied returns true if the request was denied.
func (d *Decision) IsDenied() bool {
	return !d.Allowed
}

// ResetAtUnix returns the reset time as a Unix timestamp in seconds.
// Useful for the X-RateLimit-Reset header.
func (d *Decision) ResetAtUnix() int64 {
	return d.ResetAt.Unix()
}

// RetryAfterSeconds returns the retry delay in whole seconds, never negative.
// Useful for the Retry-After header.
func (d *Decision) RetryAfterSeconds() int64 {
	seconds := int64(d.RetryAfter.Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}

// newAllowedDecision builds a Decision for an admitted request.
func newAllowedDecision(key string, limit, remaining int, now, resetAt time.Time) Decision {
	return Decision{
		Key:        key,
		Allowed:    true,
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    resetAt,
		RetryAfter: nonNegative(resetAt.Sub(now)),
	}
}

// newDeniedDecision builds a Decision for a rejected request.
func newDeniedDecision(key string, limit int, now, resetAt time.Time, failedClosed bool) Decision {
	return Decision{
		Key:          key,
		Allowed:      false,
		Limit:        limit,
		Remaining:    0,
		ResetAt:      resetAt,
		RetryAfter:   nonNegative(resetAt.Sub(now)),
		FailedClosed: failedClosed,
	}
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
