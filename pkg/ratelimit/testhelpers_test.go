package ratelimit

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

// MockClock implements Clock interface for testing
type MockClock struct {
	mu  sync.RWMutex
	now time.Time
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

func (m *MockClock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStore starts an in-process Redis and a store pointed at it.
func newTestStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	store := NewRedisStore(StoreConfig{
		URL:    "redis://" + mr.Addr(),
		Logger: discardLogger(),
	})
	t.Cleanup(func() {
		_ = store.Close()
	})
	return mr, store
}

// startMiniredisAt starts an in-process Redis bound to a specific address,
// for tests that simulate a store restart.
func startMiniredisAt(t *testing.T, addr string) *miniredis.Miniredis {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	if err := mr.StartAddr(addr); err != nil {
		t.Fatalf("restart miniredis at %s: %v", addr, err)
	}
	return mr
}

// newTestLimiter builds a limiter against an in-process Redis with a
// controllable clock.
func newTestLimiter(t *testing.T, clock Clock) (*miniredis.Miniredis, *Limiter) {
	t.Helper()

	mr := miniredis.RunT(t)
	limiter := New(Config{
		Store: StoreConfig{
			URL:    "redis://" + mr.Addr(),
			Logger: discardLogger(),
		},
		Clock:  clock,
		Logger: discardLogger(),
	})
	t.Cleanup(func() {
		_ = limiter.Close()
	})
	return mr, limiter
}
