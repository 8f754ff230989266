package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jobpulse/pkg/config"
	"jobpulse/pkg/ratelimit"
)

// startMetricsServer exposes the worker's Prometheus metrics and health
// probe. It runs in its own goroutine and shuts down when ctx is canceled.
//
// Endpoints:
//   - GET /metrics  - Prometheus metrics (default registry + limiter registry)
//   - GET /healthz  - limiter health probe; 503 only when the store is down
//
// Environment variables:
//   - METRICS_ADDR: listen address (default: :9090)
func startMetricsServer(ctx context.Context, logger *slog.Logger, limiter *ratelimit.Limiter, limiterMetrics *ratelimit.PrometheusMetrics) {
	addr := config.GetEnvString("METRICS_ADDR", ":9090")

	gatherers := prometheus.Gatherers{
		prometheus.DefaultGatherer,
		limiterMetrics.Registry(),
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		health := limiter.HealthCheck(r.Context())
		code := http.StatusOK
		if health.Status == ratelimit.HealthUnhealthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(health)
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}()
}
