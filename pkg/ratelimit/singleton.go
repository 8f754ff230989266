package ratelimit

import (
	"sync"
)

// The process-wide limiter is an explicitly constructed, dependency-injected
// service rather than implicit module-level state. InitDefault performs the
// one-time construction; Default hands the instance to callers; ResetDefault
// lets tests construct a fresh instance in isolation.
var (
	defaultMu      sync.Mutex
	defaultLimiter *Limiter
)

// InitDefault constructs the process-wide limiter exactly once and returns
// it. Subsequent calls return the existing instance regardless of the config
// passed, so all callers in a process share one engine and one store
// connection.
func InitDefault(cfg Config) *Limiter {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultLimiter == nil {
		defaultLimiter = New(cfg)
	}
	return defaultLimiter
}

// Default returns the process-wide limiter, or ErrNotInitialized if
// InitDefault has not been called yet.
func Default() (*Limiter, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultLimiter == nil {
		return nil, ErrNotInitialized
	}
	return defaultLimiter, nil
}

// ResetDefault closes and clears the process-wide limiter so the next
// InitDefault builds a fresh one. Intended for tests and controlled
// shutdown paths.
func ResetDefault() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultLimiter == nil {
		return nil
	}
	err := defaultLimiter.Close()
	defaultLimiter = nil
	return err
}
