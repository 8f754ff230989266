package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appconfig "jobpulse/internal/config"
	hhttp "jobpulse/internal/handler/http"
	"jobpulse/internal/handler/http/admin"
	"jobpulse/internal/handler/http/middleware"
	"jobpulse/internal/handler/http/requestid"
	"jobpulse/internal/handler/http/respond"
	"jobpulse/internal/observability/logging"
	"jobpulse/internal/observability/tracing"
	"jobpulse/pkg/config"
	"jobpulse/pkg/ratelimit"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	limiterMetrics := ratelimit.NewPrometheusMetrics()
	cfg := appconfig.LoadLimiterConfig(logger)
	cfg.Metrics = limiterMetrics

	limiter := ratelimit.InitDefault(cfg)
	defer func() {
		if err := limiter.Close(); err != nil {
			logger.Error("failed to close rate limiter", slog.Any("error", err))
		}
	}()

	handler := setupRoutes(logger, limiter, limiterMetrics)
	runServer(logger, handler)
}

// setupRoutes builds the full HTTP handler: public health and metrics
// endpoints, the admin surface, and rate-limited API routes.
func setupRoutes(logger *slog.Logger, limiter *ratelimit.Limiter, limiterMetrics *ratelimit.PrometheusMetrics) http.Handler {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Warn("JWT_SECRET not set, bearer token identities disabled")
	}

	rateLimited := middleware.RateLimit(middleware.RateLimitConfig{
		Limiter:  limiter,
		Identity: &middleware.TokenIdentityExtractor{JWTSecret: []byte(jwtSecret)},
		Category: middleware.DefaultCategories(),
	})

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /v1/matching/candidates", placeholderHandler("matching"))
	apiMux.HandleFunc("GET /v1/scraping/jobs", placeholderHandler("scraping"))
	apiMux.HandleFunc("GET /v1/jobs", placeholderHandler("general"))

	// Limiter metrics carry their own registry; the HTTP metrics use the
	// default one. One endpoint serves both.
	gatherers := prometheus.Gatherers{
		prometheus.DefaultGatherer,
		limiterMetrics.Registry(),
	}

	rootMux := http.NewServeMux()
	rootMux.HandleFunc("GET /healthz", admin.Healthz(limiter))
	rootMux.Handle("GET /metrics", promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))
	admin.NewHandler(limiter, logger).Register(rootMux)
	rootMux.Handle("/v1/", rateLimited(apiMux))

	// Outermost first: request ID, tracing, then logging so every entry
	// carries both IDs, then metrics and panic recovery.
	return hhttp.Chain(rootMux,
		requestid.Middleware,
		tracing.Middleware,
		hhttp.Logging(logger),
		hhttp.Metrics,
		hhttp.Recover(logger),
	)
}

// placeholderHandler stands in for the job-matching API routes this service
// fronts. The limiter is the product here; the routes only prove admission
// works end to end.
func placeholderHandler(category string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{
			"status":   "ok",
			"category": category,
		})
	}
}

// runServer starts the HTTP server and blocks until SIGINT or SIGTERM, then
// shuts down gracefully.
func runServer(logger *slog.Logger, handler http.Handler) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := config.GetEnvString("HTTP_ADDR", ":8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
