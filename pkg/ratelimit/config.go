package ratelimit

import (
	"fmt"
	"log/slog"
	"time"
)

// Config contains the configuration for the rate limiter engine.
type Config struct {
	// Store configures the Redis client (URL, timeouts, retry budget).
	Store StoreConfig

	// Policies is the tier/category policy table used by CheckTieredLimit.
	// Default: DefaultPolicyTable().
	Policies *PolicyTable

	// Metrics records rate limiting events. Default: NoOpMetrics.
	Metrics Metrics

	// Clock provides time abstraction for testing. Default: SystemClock.
	Clock Clock

	// Logger for admission failures and lifecycle events.
	// Default: slog.Default().
	Logger *slog.Logger

	// BreakerMaxRequests is the number of probe requests allowed through
	// while the store circuit is half-open. Default: 3.
	BreakerMaxRequests uint32

	// BreakerInterval is the cyclic period of the closed state used to
	// clear failure counts. Default: 30 seconds.
	BreakerInterval time.Duration

	// BreakerTimeout is how long the circuit stays open before probing the
	// store again. While open, admission fails closed without touching
	// Redis. Default: 15 seconds.
	BreakerTimeout time.Duration

	// BreakerFailureThreshold is the failure ratio that trips the circuit
	// (e.g. 0.6 = 60%). Default: 0.6.
	BreakerFailureThreshold float64

	// BreakerMinRequests is the minimum number of requests in an interval
	// before the failure ratio is evaluated. Default: 5.
	BreakerMinRequests uint32
}

// ApplyDefaults sets safe default values for any missing configuration.
func (c *Config) ApplyDefaults() {
	c.Store.ApplyDefaults()

	if c.Policies == nil {
		c.Policies = DefaultPolicyTable()
	}
	if c.Metrics == nil {
		c.Metrics = NewNoOpMetrics()
	}
	if c.Clock == nil {
		c.Clock = &SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.BreakerMaxRequests == 0 {
		c.BreakerMaxRequests = 3
	}
	if c.BreakerInterval <= 0 {
		c.BreakerInterval = 30 * time.Second
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 15 * time.Second
	}
	if c.BreakerFailureThreshold <= 0 {
		c.BreakerFailureThreshold = 0.6
	}
	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = 5
	}
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.Store.URL == "" {
		return fmt.Errorf("store URL cannot be empty")
	}
	if c.BreakerFailureThreshold < 0 || c.BreakerFailureThreshold > 1 {
		return fmt.Errorf("BreakerFailureThreshold must be between 0 and 1, got %v", c.BreakerFailureThreshold)
	}
	return nil
}

// DefaultConfig returns a Config with safe default values. Useful for tests
// and as a starting point for configuration loading.
func DefaultConfig() Config {
	config := Config{}
	config.ApplyDefaults()
	return config
}
