package ratelimit

import (
	"strings"
	"testing"
	"time"
)

func TestDecision_RetryAfterSeconds(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter time.Duration
		want       int64
	}{
		{"positive", 90 * time.Second, 90},
		{"sub-second truncates to zero", 900 * time.Millisecond, 0},
		{"zero", 0, 0},
		{"negative clamps to zero", -5 * time.Second, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decision{RetryAfter: tt.retryAfter}
			if got := d.RetryAfterSeconds(); got != tt.want {
				t.Errorf("RetryAfterSeconds() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDecision_Constructors(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	resetAt := now.Add(15 * time.Minute)

	allowed := newAllowedDecision("rate_limit:matching:u1", 25, 24, now, resetAt)
	if !allowed.Allowed || allowed.IsDenied() {
		t.Error("allowed decision reports denied")
	}
	if allowed.Remaining != 24 {
		t.Errorf("Remaining = %d, want 24", allowed.Remaining)
	}
	if allowed.RetryAfter != 15*time.Minute {
		t.Errorf("RetryAfter = %v, want 15m", allowed.RetryAfter)
	}
	if allowed.FailedClosed {
		t.Error("allowed decision cannot be fail-closed")
	}

	denied := newDeniedDecision("rate_limit:matching:u1", 25, now, resetAt, true)
	if denied.Allowed || !denied.IsDenied() {
		t.Error("denied decision reports allowed")
	}
	if denied.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", denied.Remaining)
	}
	if !denied.FailedClosed {
		t.Error("FailedClosed not propagated")
	}
	if denied.ResetAtUnix() != resetAt.Unix() {
		t.Errorf("ResetAtUnix() = %d, want %d", denied.ResetAtUnix(), resetAt.Unix())
	}

	// A reset time in the past must not produce a negative retry delay.
	stale := newDeniedDecision("k", 5, now, now.Add(-time.Minute), false)
	if stale.RetryAfter != 0 {
		t.Errorf("RetryAfter = %v, want 0 for past reset", stale.RetryAfter)
	}
}

func TestDecision_String(t *testing.T) {
	now := time.Now()
	allowed := newAllowedDecision("k", 10, 9, now, now.Add(time.Minute))
	if !strings.Contains(allowed.String(), "Allowed: true") {
		t.Errorf("String() = %q", allowed.String())
	}

	denied := newDeniedDecision("k", 10, now, now.Add(time.Minute), false)
	if !strings.Contains(denied.String(), "Allowed: false") {
		t.Errorf("String() = %q", denied.String())
	}
}
