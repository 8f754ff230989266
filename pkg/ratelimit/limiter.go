package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

// Limiter is the per-key orchestration engine.
//
// One Limiter per process is shared by all request handlers; see InitDefault.
// The engine holds no per-key state: all authoritative admission state lives
// in Redis, so two processes sharing one store enforce one global budget.
type Limiter struct {
	store    *RedisStore
	policies *PolicyTable
	metrics  Metrics
	clock    Clock
	logger   *slog.Logger
	breaker  *gobreaker.CircuitBreaker

	// Process-local counters. Not authoritative across restarts;
	// authoritative admission state lives only in the store.
	requests  atomic.Int64
	allowed   atomic.Int64
	denied    atomic.Int64
	errors    atomic.Int64
	cacheHits atomic.Int64
}

// New creates a rate limiter engine. The store connects lazily on the first
// admission check.
func New(cfg Config) *Limiter {
	cfg.ApplyDefaults()

	logger := cfg.Logger
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ratelimit-store",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("store circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return &Limiter{
		store:    NewRedisStore(cfg.Store),
		policies: cfg.Policies,
		metrics:  cfg.Metrics,
		clock:    cfg.Clock,
		logger:   logger,
		breaker:  breaker,
	}
}

// CheckLimit performs one sliding-window admission check.
//
// It never returns an error: any store or script failure is absorbed into a
// denied Decision (fail-closed), because admitting unbounded traffic when
// the limiter cannot see global state is the less safe failure mode.
//
// Parameters:
//   - ctx: Request context; bounds connection and script execution time
//   - identifier: Caller identity (API key, IP address, user email)
//   - limit: Maximum admitted requests per window (0 always denies)
//   - window: Trailing interval the limit applies to
//   - category: Operation class used to namespace the key
func (l *Limiter) CheckLimit(ctx context.Context, identifier string, limit int, window time.Duration, category string) Decision {
	l.requests.Add(1)
	l.metrics.RecordRequest(category)

	now := l.clock.Now()
	key := BuildKey(category, identifier)
	member := fmt.Sprintf("%d:%s", now.UnixMilli(), uuid.New().String())

	raw, err := l.breaker.Execute(func() (interface{}, error) {
		return l.store.EvalAdmission(ctx, key, limit, window, now, member)
	})

	l.metrics.RecordCheckDuration(category, l.clock.Now().Sub(now))
	l.metrics.RecordConnectionState(l.store.State().String())

	if err != nil {
		l.errors.Add(1)
		l.denied.Add(1)
		l.metrics.RecordError(category)
		l.metrics.RecordDenied(category)
		l.logger.Warn("admission check failed, failing closed",
			slog.String("key", key),
			slog.String("connection_state", l.store.State().String()),
			slog.Any("error", err))
		return newDeniedDecision(key, limit, now, now.Add(window), true)
	}

	result := raw.(admissionResult)
	resetAt := time.UnixMilli(result.resetMs)
	if result.allowed {
		l.allowed.Add(1)
		l.metrics.RecordAllowed(category)
		return newAllowedDecision(key, limit, int(result.remaining), now, resetAt)
	}

	l.denied.Add(1)
	l.metrics.RecordDenied(category)
	return newDeniedDecision(key, limit, now, resetAt, false)
}

// CheckTieredLimit resolves the policy for (tier, category) and delegates to
// CheckLimit, annotating the Decision with the resolved tier.
//
// Resolution is total: unknown tiers fall back to free, unknown categories
// to the tier's general policy, so this method can never fail on policy
// grounds.
func (l *Limiter) CheckTieredLimit(ctx context.Context, identifier, category, tier string) Decision {
	policy, resolved, exact := l.policies.Resolve(tier, category)
	if exact {
		l.cacheHits.Add(1)
	}

	decision := l.CheckLimit(ctx, identifier, policy.Limit, policy.Window, category)
	decision.Tier = resolved.String()
	return decision
}

// Status reports the current window occupancy for one key.
type Status struct {
	// Key is the store key the status was read from.
	Key string

	// Limit is the configured per-window maximum.
	Limit int

	// Current is the number of live entries in the window.
	Current int

	// Remaining is max(0, Limit - Current).
	Remaining int

	// ResetAt is an upper bound on when capacity frees up.
	ResetAt time.Time

	// StoreAvailable is false when the store could not be reached and the
	// optimistic defaults (Current=0, Remaining=Limit) were reported.
	StoreAvailable bool
}

// GetLimitStatus is a non-mutating read of one key's window: it purges
// expired entries and reports the live count without inserting a new entry,
// so status displays never consume capacity.
//
// Unlike CheckLimit this read is optimistic on failure: when the store is
// unreachable it reports a full budget. Dashboards should not show users as
// throttled just because the limiter's store blinked.
func (l *Limiter) GetLimitStatus(ctx context.Context, identifier string, limit int, window time.Duration, category string) Status {
	now := l.clock.Now()
	key := BuildKey(category, identifier)

	count, err := l.store.CountInWindow(ctx, key, window, now)
	if err != nil {
		l.logger.Debug("status read failed, reporting optimistic defaults",
			slog.String("key", key),
			slog.Any("error", err))
		return Status{
			Key:       key,
			Limit:     limit,
			Current:   0,
			Remaining: limit,
			ResetAt:   now.Add(window),
		}
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Key:            key,
		Limit:          limit,
		Current:        int(count),
		Remaining:      remaining,
		ResetAt:        now.Add(window),
		StoreAvailable: true,
	}
}

// GetTieredLimitStatus resolves the policy for (tier, category) and reports
// status against it.
func (l *Limiter) GetTieredLimitStatus(ctx context.Context, identifier, category, tier string) Status {
	policy, _, _ := l.policies.Resolve(tier, category)
	return l.GetLimitStatus(ctx, identifier, policy.Limit, policy.Window, category)
}

// ConnectionState returns the store's current connection state.
func (l *Limiter) ConnectionState() ConnectionState {
	return l.store.State()
}

// ResetConnection clears a terminal Failed store state so the next check
// attempts a fresh connect. Operator escape hatch; see RedisStore.
func (l *Limiter) ResetConnection() {
	l.store.ResetConnection()
}

// Close gracefully releases the store connection. Safe to call multiple
// times; must be invoked on process shutdown to avoid orphaned connections.
func (l *Limiter) Close() error {
	return l.store.Close()
}
