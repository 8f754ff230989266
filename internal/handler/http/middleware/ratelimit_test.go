package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobpulse/pkg/ratelimit"
)

func newTestLimiter(t *testing.T) *ratelimit.Limiter {
	t.Helper()

	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := ratelimit.New(ratelimit.Config{
		Store: ratelimit.StoreConfig{
			URL:    "redis://" + mr.Addr(),
			Logger: logger,
		},
		Policies: ratelimit.NewPolicyTable(map[ratelimit.Tier]map[string]ratelimit.Policy{
			ratelimit.TierFree: {
				ratelimit.CategoryGeneral:  {Limit: 2, Window: time.Minute},
				ratelimit.CategoryMatching: {Limit: 1, Window: time.Minute},
			},
		}),
		Logger: logger,
	})
	t.Cleanup(func() { _ = limiter.Close() })
	return limiter
}

type staticIdentity struct {
	identity Identity
}

func (s *staticIdentity) Extract(*http.Request) Identity {
	return s.identity
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_HeadersOnAllowedRequest(t *testing.T) {
	limiter := newTestLimiter(t)
	handler := RateLimit(RateLimitConfig{
		Limiter:  limiter,
		Identity: &staticIdentity{Identity{Identifier: "u1"}},
	})(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	assert.Empty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimit_DeniesOverLimit(t *testing.T) {
	limiter := newTestLimiter(t)
	handler := RateLimit(RateLimitConfig{
		Limiter:  limiter,
		Identity: &staticIdentity{Identity{Identifier: "u1"}},
	})(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Positive(t, retryAfter)
	assert.LessOrEqual(t, retryAfter, 60)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestRateLimit_CategoriesHaveSeparateBudgets(t *testing.T) {
	limiter := newTestLimiter(t)
	handler := RateLimit(RateLimitConfig{
		Limiter:  limiter,
		Identity: &staticIdentity{Identity{Identifier: "u1"}},
	})(okHandler())

	// The matching budget (1) is exhausted by one request.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/matching/run", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/matching/run", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// The general budget for the same identity is untouched.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPathPrefixCategories(t *testing.T) {
	resolver := DefaultCategories()

	tests := []struct {
		path string
		want string
	}{
		{"/v1/matching/candidates", ratelimit.CategoryMatching},
		{"/v1/scraping/jobs", ratelimit.CategoryScraping},
		{"/v1/jobs", ratelimit.CategoryGeneral},
		{"/", ratelimit.CategoryGeneral},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.path, nil)
		assert.Equal(t, tt.want, resolver(r), "path %s", tt.path)
	}
}
