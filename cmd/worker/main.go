// The worker periodically scans the rate-limit store and publishes
// aggregate statistics: active key counts, tracked window entries, and
// limiter health. It shares no process state with the API servers; every
// figure comes from the store, so one worker observes the whole fleet.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	appconfig "jobpulse/internal/config"
	"jobpulse/internal/observability/logging"
	"jobpulse/pkg/config"
	"jobpulse/pkg/ratelimit"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	limiterMetrics := ratelimit.NewPrometheusMetrics()
	cfg := appconfig.LoadLimiterConfig(logger)
	cfg.Metrics = limiterMetrics

	limiter := ratelimit.New(cfg)
	defer func() {
		if err := limiter.Close(); err != nil {
			logger.Error("failed to close rate limiter", slog.Any("error", err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startMetricsServer(ctx, logger, limiter, limiterMetrics)

	schedule := config.GetEnvString("STATS_SCHEDULE", "@every 1m")
	scanTimeout := config.GetEnvDuration("STATS_SCAN_TIMEOUT", 30*time.Second)

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		reportStats(ctx, logger, limiter, scanTimeout)
	}); err != nil {
		logger.Error("invalid stats schedule",
			slog.String("schedule", schedule),
			slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()
	logger.Info("stats worker started", slog.String("schedule", schedule))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down worker...")
	cancel()

	// Let an in-flight scan finish before dropping the store connection.
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(scanTimeout):
		logger.Warn("stats scan did not finish before shutdown deadline")
	}
	logger.Info("worker stopped")
}

// reportStats runs one store scan and logs the aggregate picture. A failed
// scan still logs the process-local counters so the gap is visible.
func reportStats(ctx context.Context, logger *slog.Logger, limiter *ratelimit.Limiter, timeout time.Duration) {
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stats, err := limiter.GlobalStats(scanCtx)
	if err != nil {
		logger.Warn("stats scan failed",
			slog.String("connection_state", limiter.ConnectionState().String()),
			slog.Any("error", err))
		return
	}

	health := limiter.HealthCheck(scanCtx)
	logger.Info("rate limit stats",
		slog.Int("active_keys", stats.ActiveKeys),
		slog.Int64("tracked_entries", stats.TrackedEntries),
		slog.Int64("total_requests", stats.TotalRequests),
		slog.Float64("rejection_rate", stats.RejectionRate),
		slog.Float64("error_rate", stats.ErrorRate),
		slog.String("health", string(health.Status)),
		slog.String("connection_state", health.ConnectionState))
}
