package ratelimit

import (
	"testing"
	"time"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Policies == nil {
		t.Error("Policies default not applied")
	}
	if cfg.Metrics == nil {
		t.Error("Metrics default not applied")
	}
	if cfg.Clock == nil {
		t.Error("Clock default not applied")
	}
	if cfg.Logger == nil {
		t.Error("Logger default not applied")
	}
	if cfg.BreakerMaxRequests != 3 {
		t.Errorf("BreakerMaxRequests = %d, want 3", cfg.BreakerMaxRequests)
	}
	if cfg.BreakerInterval != 30*time.Second {
		t.Errorf("BreakerInterval = %v, want 30s", cfg.BreakerInterval)
	}
	if cfg.BreakerTimeout != 15*time.Second {
		t.Errorf("BreakerTimeout = %v, want 15s", cfg.BreakerTimeout)
	}
	if cfg.BreakerFailureThreshold != 0.6 {
		t.Errorf("BreakerFailureThreshold = %v, want 0.6", cfg.BreakerFailureThreshold)
	}
	if cfg.BreakerMinRequests != 5 {
		t.Errorf("BreakerMinRequests = %d, want 5", cfg.BreakerMinRequests)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty store URL",
			mutate:  func(c *Config) { c.Store.URL = "" },
			wantErr: true,
		},
		{
			name:    "threshold above 1",
			mutate:  func(c *Config) { c.BreakerFailureThreshold = 1.5 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
