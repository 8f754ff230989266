package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ConnectionState describes the lifecycle of the shared Redis connection.
type ConnectionState int32

const (
	// StateDisconnected means no connection has been attempted yet, or the
	// connection was released by Close/ResetConnection.
	StateDisconnected ConnectionState = iota

	// StateConnecting means the first connection attempt is in flight.
	StateConnecting

	// StateConnected means the connection is established and usable.
	StateConnected

	// StateReconnecting means a previous attempt failed and retries with
	// backoff are in progress.
	StateReconnecting

	// StateFailed is terminal: the retry budget is exhausted. Only
	// ResetConnection or a process restart leaves this state.
	StateFailed
)

// String returns a string representation of the connection state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StoreConfig holds the configuration for the Redis store client.
type StoreConfig struct {
	// URL is the Redis connection string (redis://host:port/db).
	URL string

	// ConnectTimeout bounds one socket-level connect/ping attempt.
	// Default: 10 seconds.
	ConnectTimeout time.Duration

	// OperationTimeout bounds one script execution or key operation.
	// Default: 2 seconds.
	OperationTimeout time.Duration

	// MaxConnectRetries is the number of connection attempts before the
	// store enters the terminal Failed state. Default: 5.
	MaxConnectRetries int

	// RetryBackoffStep is multiplied by the retry count to produce the
	// delay before each retry. Default: 100ms.
	RetryBackoffStep time.Duration

	// RetryBackoffCap caps the backoff delay. Default: 3 seconds.
	RetryBackoffCap time.Duration

	// ScanPageSize is the COUNT hint for SCAN-based enumeration.
	// Default: 100.
	ScanPageSize int64

	// ScanPagesPerSecond paces SCAN pages during bulk enumeration so that
	// O(keys) admin scans do not crowd out admission traffic. Default: 100.
	ScanPagesPerSecond float64

	// Logger for connection lifecycle events. Default: slog.Default().
	Logger *slog.Logger
}

// ApplyDefaults sets safe default values for any missing configuration.
func (c *StoreConfig) ApplyDefaults() {
	if c.URL == "" {
		c.URL = "redis://localhost:6379/0"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = 2 * time.Second
	}
	if c.MaxConnectRetries <= 0 {
		c.MaxConnectRetries = 5
	}
	if c.RetryBackoffStep <= 0 {
		c.RetryBackoffStep = 100 * time.Millisecond
	}
	if c.RetryBackoffCap <= 0 {
		c.RetryBackoffCap = 3 * time.Second
	}
	if c.ScanPageSize <= 0 {
		c.ScanPageSize = 100
	}
	if c.ScanPagesPerSecond <= 0 {
		c.ScanPagesPerSecond = 100
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RedisStore owns the shared Redis connection and executes the admission
// script against it.
//
// The store connects lazily on first use. Concurrent callers arriving while
// a connection attempt is in flight share the same attempt via singleflight
// instead of issuing redundant connects, which prevents connection-storm
// amplification during a cold start or after a drop.
type RedisStore struct {
	cfg    StoreConfig
	logger *slog.Logger

	admission   *redis.Script
	status      *redis.Script
	scanLimiter *rate.Limiter

	connectGroup singleflight.Group

	mu         sync.RWMutex
	client     *redis.Client
	state      ConnectionState
	retryCount int
	closed     bool
}

// NewRedisStore creates a store client. No connection is established until
// the first operation needs one.
func NewRedisStore(cfg StoreConfig) *RedisStore {
	cfg.ApplyDefaults()
	return &RedisStore{
		cfg:         cfg,
		logger:      cfg.Logger,
		admission:   newAdmissionScript(),
		status:      newStatusScript(),
		scanLimiter: rate.NewLimiter(rate.Limit(cfg.ScanPagesPerSecond), 1),
		state:       StateDisconnected,
	}
}

// State returns the current connection state.
func (s *RedisStore) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ensureConnected returns a usable client, establishing the connection if
// necessary. All concurrent callers share one in-flight attempt.
func (s *RedisStore) ensureConnected(ctx context.Context) (*redis.Client, error) {
	s.mu.RLock()
	switch {
	case s.closed:
		s.mu.RUnlock()
		return nil, ErrStoreUnavailable
	case s.state == StateFailed:
		s.mu.RUnlock()
		return nil, ErrConnectionFailed
	case s.state == StateConnected && s.client != nil:
		client := s.client
		s.mu.RUnlock()
		return client, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.connectGroup.Do("connect", func() (interface{}, error) {
		return s.connect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*redis.Client), nil
}

// connect runs the bounded retry loop. It is only ever executed by one
// goroutine at a time (guarded by singleflight).
func (s *RedisStore) connect(ctx context.Context) (*redis.Client, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreUnavailable
	}
	if s.state == StateConnected && s.client != nil {
		client := s.client
		s.mu.Unlock()
		return client, nil
	}
	if s.state == StateFailed {
		s.mu.Unlock()
		return nil, ErrConnectionFailed
	}
	if s.retryCount == 0 {
		s.state = StateConnecting
	} else {
		s.state = StateReconnecting
	}
	s.mu.Unlock()

	opts, err := redis.ParseURL(s.cfg.URL)
	if err != nil {
		s.markFailed()
		return nil, fmt.Errorf("parse store url: %w", err)
	}
	opts.DialTimeout = s.cfg.ConnectTimeout
	opts.ReadTimeout = s.cfg.OperationTimeout
	opts.WriteTimeout = s.cfg.OperationTimeout
	// Admission calls are never retried inline; retry is the reconnection
	// policy's responsibility.
	opts.MaxRetries = -1

	for {
		s.mu.Lock()
		attempt := s.retryCount
		s.mu.Unlock()

		if attempt >= s.cfg.MaxConnectRetries {
			s.markFailed()
			return nil, ErrConnectionFailed
		}

		if attempt > 0 {
			delay := backoffDelay(attempt, s.cfg.RetryBackoffStep, s.cfg.RetryBackoffCap)
			select {
			case <-ctx.Done():
				// The caller's budget ran out mid-retry. Leave the state
				// machine in Reconnecting so the next caller resumes.
				return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, ctx.Err())
			case <-time.After(delay):
			}
		}

		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		err = client.Ping(pingCtx).Err()
		cancel()

		if err == nil {
			s.mu.Lock()
			s.client = client
			s.state = StateConnected
			s.retryCount = 0
			s.mu.Unlock()
			s.logger.Info("connected to rate limit store",
				slog.String("url", s.cfg.URL))
			return client, nil
		}
		_ = client.Close()

		s.mu.Lock()
		s.retryCount++
		s.state = StateReconnecting
		count := s.retryCount
		s.mu.Unlock()

		s.logger.Warn("rate limit store connection attempt failed",
			slog.Int("attempt", count),
			slog.Int("max_attempts", s.cfg.MaxConnectRetries),
			slog.Any("error", err))
	}
}

// markFailed moves the state machine to the terminal Failed state.
func (s *RedisStore) markFailed() {
	s.mu.Lock()
	s.state = StateFailed
	s.mu.Unlock()
	s.logger.Error("rate limit store marked failed, admission will fail closed",
		slog.Int("max_attempts", s.cfg.MaxConnectRetries))
}

// backoffDelay implements the capped linear reconnect backoff
// min(retryCount * step, cap).
func backoffDelay(retryCount int, step, maxDelay time.Duration) time.Duration {
	delay := time.Duration(retryCount) * step
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// EvalAdmission executes the atomic admission script for one key.
//
// The caller supplies now so that purge, count, and insert inside the script
// all observe the same clock value, and a collision-resistant member for the
// new window entry.
func (s *RedisStore) EvalAdmission(ctx context.Context, key string, limit int, window time.Duration, now time.Time, member string) (admissionResult, error) {
	client, err := s.ensureConnected(ctx)
	if err != nil {
		return admissionResult{}, err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	raw, err := s.admission.Run(opCtx, client, []string{key},
		limit, window.Milliseconds(), now.UnixMilli(), member).Result()
	if err != nil {
		return admissionResult{}, fmt.Errorf("admission script: %w", err)
	}
	return parseAdmissionResult(raw)
}

// CountInWindow purges expired entries for one key and returns the number of
// live ones. It never inserts an entry.
func (s *RedisStore) CountInWindow(ctx context.Context, key string, window time.Duration, now time.Time) (int64, error) {
	client, err := s.ensureConnected(ctx)
	if err != nil {
		return 0, err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	count, err := s.status.Run(opCtx, client, []string{key},
		window.Milliseconds(), now.UnixMilli()).Int64()
	if err != nil {
		return 0, fmt.Errorf("status script: %w", err)
	}
	return count, nil
}

// Delete removes one rate-limit key. Deleting a missing key is not an error.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	client, err := s.ensureConnected(ctx)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	if err := client.Del(opCtx, key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// DeleteByPattern enumerates keys matching the glob pattern and deletes them
// in batches, returning the number deleted.
//
// This is an O(keys) SCAN intended for operator use, paced by the store's
// scan limiter so it stays off the admission hot path's back.
func (s *RedisStore) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	client, err := s.ensureConnected(ctx)
	if err != nil {
		return 0, err
	}

	var deleted int64
	var cursor uint64
	for {
		if err := s.scanLimiter.Wait(ctx); err != nil {
			return deleted, err
		}

		keys, next, err := client.Scan(ctx, cursor, pattern, s.cfg.ScanPageSize).Result()
		if err != nil {
			return deleted, fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("bulk delete: %w", err)
			}
			deleted += n
		}

		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// SumEntries enumerates keys matching the pattern and sums their live entry
// counts. Returns the number of keys seen and the total entry count.
//
// Like DeleteByPattern this is an O(keys) scan for the admin surface only.
func (s *RedisStore) SumEntries(ctx context.Context, pattern string) (keys int, entries int64, err error) {
	client, err := s.ensureConnected(ctx)
	if err != nil {
		return 0, 0, err
	}

	var cursor uint64
	for {
		if err := s.scanLimiter.Wait(ctx); err != nil {
			return keys, entries, err
		}

		page, next, err := client.Scan(ctx, cursor, pattern, s.cfg.ScanPageSize).Result()
		if err != nil {
			return keys, entries, fmt.Errorf("scan %s: %w", pattern, err)
		}

		for _, key := range page {
			count, err := client.ZCard(ctx, key).Result()
			if err != nil {
				return keys, entries, fmt.Errorf("zcard %s: %w", key, err)
			}
			keys++
			entries += count
		}

		cursor = next
		if cursor == 0 {
			return keys, entries, nil
		}
	}
}

// Ping issues a liveness probe, connecting first if necessary.
func (s *RedisStore) Ping(ctx context.Context) error {
	client, err := s.ensureConnected(ctx)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	if err := client.Ping(opCtx).Err(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// ResetConnection clears the terminal Failed state and releases the current
// client so the next operation attempts a fresh connect. Intended as an
// operator escape hatch.
func (s *RedisStore) ResetConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		_ = s.client.Close()
		s.client = nil
	}
	s.state = StateDisconnected
	s.retryCount = 0
}

// Close releases the Redis connection. It is safe to call multiple times;
// all operations after Close report the store as unavailable.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.state = StateDisconnected

	if s.client != nil {
		err := s.client.Close()
		s.client = nil
		if err != nil {
			return fmt.Errorf("close store client: %w", err)
		}
	}
	return nil
}
