package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"jobpulse/internal/handler/http/respond"
	"jobpulse/internal/observability/metrics"
	"jobpulse/internal/observability/tracing"
	"jobpulse/pkg/ratelimit"
)

// CategoryResolver maps a request to an operation category.
type CategoryResolver func(r *http.Request) string

// PathPrefixCategories returns a CategoryResolver that matches the request
// path against prefixes in order, falling back to "general".
func PathPrefixCategories(prefixes map[string]string) CategoryResolver {
	return func(r *http.Request) string {
		for prefix, category := range prefixes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				return category
			}
		}
		return ratelimit.CategoryGeneral
	}
}

// DefaultCategories maps the service's API surface to operation categories.
func DefaultCategories() CategoryResolver {
	return PathPrefixCategories(map[string]string{
		"/v1/matching": ratelimit.CategoryMatching,
		"/v1/scraping": ratelimit.CategoryScraping,
	})
}

// RateLimitConfig configures the admission enforcement middleware.
type RateLimitConfig struct {
	// Limiter performs the admission checks.
	Limiter *ratelimit.Limiter

	// Identity extracts (identifier, tier) from the request.
	Identity IdentityExtractor

	// Category maps the request to an operation category.
	// Default: DefaultCategories().
	Category CategoryResolver
}

// RateLimit returns middleware that enforces tiered sliding-window limits.
//
// Every response carries the standard X-RateLimit-* headers. A denied
// request receives 429 with a Retry-After hint; a denial caused by a store
// failure is indistinguishable from a genuine over-limit denial, by design.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Category == nil {
		cfg.Category = DefaultCategories()
	}
	if cfg.Identity == nil {
		cfg.Identity = &TokenIdentityExtractor{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			category := cfg.Category(r)
			identity := cfg.Identity.Extract(r)

			ctx, span := tracing.GetTracer().Start(r.Context(), "ratelimit.check")
			decision := cfg.Limiter.CheckTieredLimit(ctx, identity.Identifier, category, identity.Tier)
			span.SetAttributes(
				attribute.String("ratelimit.category", category),
				attribute.String("ratelimit.tier", decision.Tier),
				attribute.Bool("ratelimit.allowed", decision.Allowed),
			)
			span.End()

			header := w.Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			header.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			header.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAtUnix(), 10))

			if decision.IsDenied() {
				metrics.RecordRateLimited(r.URL.Path, category)
				header.Set("Retry-After", strconv.FormatInt(decision.RetryAfterSeconds(), 10))
				respond.JSON(w, http.StatusTooManyRequests, map[string]any{
					"error":       "rate limit exceeded",
					"retry_after": decision.RetryAfterSeconds(),
					"reset_at":    decision.ResetAtUnix(),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
