// Package config loads application configuration from environment variables
// and optional files, with warn-and-default semantics: a misconfigured value
// degrades to a safe default instead of preventing startup.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"jobpulse/pkg/config"
	"jobpulse/pkg/ratelimit"
)

// LoadLimiterConfig loads the rate limiter configuration from environment
// variables.
//
// Environment variables:
//   - STORE_URL: Redis connection string (default: redis://localhost:6379/0;
//     REDIS_URL is accepted as an alias)
//   - RATELIMIT_CONNECT_TIMEOUT: socket connect timeout (default: 10s)
//   - RATELIMIT_OP_TIMEOUT: per-operation timeout (default: 2s)
//   - RATELIMIT_MAX_CONNECT_RETRIES: retry budget before the terminal
//     Failed state (default: 5)
//   - RATELIMIT_RETRY_BACKOFF_STEP: linear backoff step (default: 100ms)
//   - RATELIMIT_RETRY_BACKOFF_CAP: backoff cap (default: 3s)
//   - RATELIMIT_CB_FAILURE_THRESHOLD: circuit breaker failure ratio
//     (default: 0.6)
//   - RATELIMIT_CB_TIMEOUT: circuit breaker open duration (default: 15s)
//   - RATELIMIT_POLICY_FILE: optional YAML policy table overriding the
//     compiled-in defaults
func LoadLimiterConfig(logger *slog.Logger) ratelimit.Config {
	storeURL := config.GetEnvString("STORE_URL", "")
	if storeURL == "" {
		storeURL = config.GetEnvString("REDIS_URL", "redis://localhost:6379/0")
	}

	connectTimeout := config.GetEnvDuration("RATELIMIT_CONNECT_TIMEOUT", 10*time.Second)
	if err := config.ValidatePositiveDuration(connectTimeout); err != nil {
		logger.Warn("invalid RATELIMIT_CONNECT_TIMEOUT, using default",
			slog.String("value", connectTimeout.String()),
			slog.String("error", err.Error()))
		connectTimeout = 10 * time.Second
	}

	opTimeout := config.GetEnvDuration("RATELIMIT_OP_TIMEOUT", 2*time.Second)
	if err := config.ValidatePositiveDuration(opTimeout); err != nil {
		logger.Warn("invalid RATELIMIT_OP_TIMEOUT, using default",
			slog.String("value", opTimeout.String()),
			slog.String("error", err.Error()))
		opTimeout = 2 * time.Second
	}

	cfg := ratelimit.Config{
		Store: ratelimit.StoreConfig{
			URL:                storeURL,
			ConnectTimeout:     connectTimeout,
			OperationTimeout:   opTimeout,
			MaxConnectRetries:  config.GetEnvInt("RATELIMIT_MAX_CONNECT_RETRIES", 5),
			RetryBackoffStep:   config.GetEnvDuration("RATELIMIT_RETRY_BACKOFF_STEP", 100*time.Millisecond),
			RetryBackoffCap:    config.GetEnvDuration("RATELIMIT_RETRY_BACKOFF_CAP", 3*time.Second),
			ScanPageSize:       int64(config.GetEnvInt("RATELIMIT_SCAN_PAGE_SIZE", 100)),
			ScanPagesPerSecond: config.GetEnvFloat("RATELIMIT_SCAN_PAGES_PER_SECOND", 100),
			Logger:             logger,
		},
		Logger:                  logger,
		BreakerFailureThreshold: config.GetEnvFloat("RATELIMIT_CB_FAILURE_THRESHOLD", 0.6),
		BreakerTimeout:          config.GetEnvDuration("RATELIMIT_CB_TIMEOUT", 15*time.Second),
	}

	cfg.Policies = loadPolicyTable(logger)
	return cfg
}

// policyFile is the YAML shape of an external policy table.
//
//	tiers:
//	  premium:
//	    matching:
//	      limit: 25
//	      window: 15m
type policyFile struct {
	Tiers map[string]map[string]policyEntry `yaml:"tiers"`
}

type policyEntry struct {
	Limit  int          `yaml:"limit"`
	Window yamlDuration `yaml:"window"`
}

// yamlDuration decodes Go duration strings ("15m", "1h30m") from YAML.
type yamlDuration time.Duration

func (d *yamlDuration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = yamlDuration(parsed)
	return nil
}

// loadPolicyTable returns the policy table from RATELIMIT_POLICY_FILE if
// set and readable, otherwise the compiled-in defaults. A broken policy
// file must never take admission control down with it.
func loadPolicyTable(logger *slog.Logger) *ratelimit.PolicyTable {
	path := config.GetEnvString("RATELIMIT_POLICY_FILE", "")
	if path == "" {
		return ratelimit.DefaultPolicyTable()
	}

	table, err := LoadPolicyTableFile(path)
	if err != nil {
		logger.Warn("failed to load policy file, using compiled-in defaults",
			slog.String("path", path),
			slog.Any("error", err))
		return ratelimit.DefaultPolicyTable()
	}

	logger.Info("loaded rate limit policy table", slog.String("path", path))
	return table
}

// LoadPolicyTableFile parses a YAML policy table from the given path.
func LoadPolicyTableFile(path string) (*ratelimit.PolicyTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if len(file.Tiers) == 0 {
		return nil, fmt.Errorf("policy file %s defines no tiers", path)
	}

	policies := make(map[ratelimit.Tier]map[string]ratelimit.Policy, len(file.Tiers))
	for tier, categories := range file.Tiers {
		policies[ratelimit.Tier(tier)] = make(map[string]ratelimit.Policy, len(categories))
		for category, entry := range categories {
			window := time.Duration(entry.Window)
			if entry.Limit < 0 || window <= 0 {
				return nil, fmt.Errorf("invalid policy for %s/%s: limit=%d window=%v",
					tier, category, entry.Limit, window)
			}
			policies[ratelimit.Tier(tier)][category] = ratelimit.Policy{
				Limit:  entry.Limit,
				Window: window,
			}
		}
	}

	return ratelimit.NewPolicyTable(policies), nil
}
