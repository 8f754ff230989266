package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConnectionState_String(t *testing.T) {
	tests := []struct {
		state ConnectionState
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateReconnecting, "reconnecting"},
		{StateFailed, "failed"},
		{ConnectionState(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ConnectionState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestBackoffDelay(t *testing.T) {
	step := 100 * time.Millisecond
	maxDelay := 3 * time.Second

	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{29, 2900 * time.Millisecond},
		{30, 3 * time.Second},
		{31, 3 * time.Second},
		{1000, 3 * time.Second},
	}

	for _, tt := range tests {
		if got := backoffDelay(tt.retryCount, step, maxDelay); got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.retryCount, got, tt.want)
		}
	}
}

func TestStoreConfig_ApplyDefaults(t *testing.T) {
	cfg := StoreConfig{}
	cfg.ApplyDefaults()

	if cfg.URL == "" {
		t.Error("URL default not applied")
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %v, want 10s", cfg.ConnectTimeout)
	}
	if cfg.OperationTimeout != 2*time.Second {
		t.Errorf("OperationTimeout = %v, want 2s", cfg.OperationTimeout)
	}
	if cfg.MaxConnectRetries != 5 {
		t.Errorf("MaxConnectRetries = %d, want 5", cfg.MaxConnectRetries)
	}
	if cfg.RetryBackoffStep != 100*time.Millisecond {
		t.Errorf("RetryBackoffStep = %v, want 100ms", cfg.RetryBackoffStep)
	}
	if cfg.RetryBackoffCap != 3*time.Second {
		t.Errorf("RetryBackoffCap = %v, want 3s", cfg.RetryBackoffCap)
	}
	if cfg.Logger == nil {
		t.Error("Logger default not applied")
	}
}

func TestRedisStore_LazyConnect(t *testing.T) {
	_, store := newTestStore(t)

	if got := store.State(); got != StateDisconnected {
		t.Fatalf("state before first use = %v, want disconnected", got)
	}

	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if got := store.State(); got != StateConnected {
		t.Errorf("state after first use = %v, want connected", got)
	}
}

func TestRedisStore_RetryBudgetExhaustion(t *testing.T) {
	// Nothing listens on this port; every attempt fails fast.
	store := NewRedisStore(StoreConfig{
		URL:               "redis://127.0.0.1:1",
		ConnectTimeout:    50 * time.Millisecond,
		MaxConnectRetries: 2,
		RetryBackoffStep:  time.Millisecond,
		Logger:            discardLogger(),
	})
	t.Cleanup(func() { _ = store.Close() })

	err := store.Ping(context.Background())
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Ping error = %v, want ErrConnectionFailed", err)
	}
	if got := store.State(); got != StateFailed {
		t.Fatalf("state = %v, want failed", got)
	}

	// Failed is terminal: subsequent operations do not retry.
	if err := store.Ping(context.Background()); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Ping in failed state = %v, want ErrConnectionFailed", err)
	}

	// ResetConnection clears the terminal state.
	store.ResetConnection()
	if got := store.State(); got != StateDisconnected {
		t.Errorf("state after ResetConnection = %v, want disconnected", got)
	}
}

func TestRedisStore_InvalidURLFailsTerminally(t *testing.T) {
	store := NewRedisStore(StoreConfig{
		URL:    "not-a-url",
		Logger: discardLogger(),
	})
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Ping(context.Background()); err == nil {
		t.Fatal("expected error for invalid URL")
	}
	if got := store.State(); got != StateFailed {
		t.Errorf("state = %v, want failed", got)
	}
}

func TestRedisStore_CloseIsIdempotent(t *testing.T) {
	_, store := newTestStore(t)

	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if err := store.Ping(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Ping after Close = %v, want ErrStoreUnavailable", err)
	}
}

func TestRedisStore_Delete(t *testing.T) {
	ctx := context.Background()
	_, store := newTestStore(t)
	now := time.Now()

	const key = "rate_limit:general:u1"
	if _, err := store.EvalAdmission(ctx, key, 5, time.Minute, now, member(now, 0)); err != nil {
		t.Fatalf("EvalAdmission: %v", err)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	count, err := store.CountInWindow(ctx, key, time.Minute, now)
	if err != nil {
		t.Fatalf("CountInWindow: %v", err)
	}
	if count != 0 {
		t.Errorf("count after delete = %d, want 0", count)
	}

	// Deleting a missing key is not an error.
	if err := store.Delete(ctx, "rate_limit:general:missing"); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
}

func TestRedisStore_DeleteByPattern(t *testing.T) {
	ctx := context.Background()
	_, store := newTestStore(t)
	now := time.Now()

	seed := []string{
		"rate_limit:matching:u1",
		"rate_limit:matching:u2",
		"rate_limit:matching:u3",
		"rate_limit:general:u1",
	}
	for i, key := range seed {
		if _, err := store.EvalAdmission(ctx, key, 5, time.Minute, now, member(now, i)); err != nil {
			t.Fatalf("EvalAdmission %s: %v", key, err)
		}
	}

	deleted, err := store.DeleteByPattern(ctx, "rate_limit:matching:*")
	if err != nil {
		t.Fatalf("DeleteByPattern: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	// The non-matching key survives.
	count, err := store.CountInWindow(ctx, "rate_limit:general:u1", time.Minute, now)
	if err != nil {
		t.Fatalf("CountInWindow: %v", err)
	}
	if count != 1 {
		t.Errorf("general key count = %d, want 1", count)
	}
}

func TestRedisStore_SumEntries(t *testing.T) {
	ctx := context.Background()
	_, store := newTestStore(t)
	now := time.Now()

	// Two keys, three entries total.
	for i := 0; i < 2; i++ {
		if _, err := store.EvalAdmission(ctx, "rate_limit:matching:u1", 5, time.Minute, now, member(now, i)); err != nil {
			t.Fatalf("EvalAdmission: %v", err)
		}
	}
	if _, err := store.EvalAdmission(ctx, "rate_limit:general:u2", 5, time.Minute, now, member(now, 2)); err != nil {
		t.Fatalf("EvalAdmission: %v", err)
	}

	keys, entries, err := store.SumEntries(ctx, "rate_limit:*")
	if err != nil {
		t.Fatalf("SumEntries: %v", err)
	}
	if keys != 2 {
		t.Errorf("keys = %d, want 2", keys)
	}
	if entries != 3 {
		t.Errorf("entries = %d, want 3", entries)
	}
}
