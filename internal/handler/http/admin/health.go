package admin

import (
	"net/http"

	"jobpulse/internal/handler/http/respond"
	"jobpulse/pkg/ratelimit"
)

// Healthz serves the liveness/readiness endpoint.
//
// The mapping is deliberate: a degraded limiter still serves traffic (it
// fails closed), so only an unreachable store reports 503.
func Healthz(limiter *ratelimit.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := limiter.HealthCheck(r.Context())

		code := http.StatusOK
		if health.Status == ratelimit.HealthUnhealthy {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(w, code, health)
	}
}
