// Package admin exposes the operator surface of the rate limiting service:
// limit resets, status reads, aggregate statistics, and health checks.
package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"jobpulse/internal/handler/http/respond"
	"jobpulse/pkg/ratelimit"
)

// Handler serves the admin endpoints.
type Handler struct {
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// NewHandler creates an admin handler.
func NewHandler(limiter *ratelimit.Limiter, logger *slog.Logger) *Handler {
	return &Handler{limiter: limiter, logger: logger}
}

// Register wires the admin routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /admin/ratelimit/reset", h.ResetLimit)
	mux.HandleFunc("POST /admin/ratelimit/reset-all", h.ResetAllLimits)
	mux.HandleFunc("POST /admin/ratelimit/reset-connection", h.ResetConnection)
	mux.HandleFunc("GET /admin/ratelimit/status", h.Status)
	mux.HandleFunc("GET /admin/ratelimit/stats", h.Stats)
}

type resetRequest struct {
	Identifier string `json:"identifier"`
	Category   string `json:"category"`
}

// ResetLimit clears the window for one (identifier, category) pair.
// Resetting a key that has no entries succeeds; the operation is idempotent.
func (h *Handler) ResetLimit(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if req.Identifier == "" {
		respond.Error(w, http.StatusBadRequest, errors.New("identifier is required"))
		return
	}
	if req.Category == "" {
		req.Category = ratelimit.CategoryGeneral
	}

	if err := h.limiter.ResetLimit(r.Context(), req.Identifier, req.Category); err != nil {
		h.logger.Error("reset limit failed",
			slog.String("identifier", req.Identifier),
			slog.String("category", req.Category),
			slog.Any("error", err))
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	h.logger.Info("rate limit reset",
		slog.String("identifier", req.Identifier),
		slog.String("category", req.Category))
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type resetAllRequest struct {
	// Pattern is a glob over store keys. Empty resets every rate-limit key.
	Pattern string `json:"pattern"`
}

// ResetAllLimits clears every window matching a key pattern and reports how
// many keys were deleted.
func (h *Handler) ResetAllLimits(w http.ResponseWriter, r *http.Request) {
	var req resetAllRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.Error(w, http.StatusBadRequest, errors.New("invalid request body"))
			return
		}
	}

	deleted, err := h.limiter.ResetAllLimits(r.Context(), req.Pattern)
	if err != nil {
		h.logger.Error("reset all limits failed",
			slog.String("pattern", req.Pattern),
			slog.Any("error", err))
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	h.logger.Info("rate limits reset",
		slog.String("pattern", req.Pattern),
		slog.Int64("deleted", deleted))
	respond.JSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// ResetConnection clears a terminal store connection failure so the next
// admission check attempts a fresh connect.
func (h *Handler) ResetConnection(w http.ResponseWriter, r *http.Request) {
	h.limiter.ResetConnection()
	h.logger.Info("store connection state reset")
	respond.JSON(w, http.StatusOK, map[string]string{
		"status":           "ok",
		"connection_state": h.limiter.ConnectionState().String(),
	})
}

type statusResponse struct {
	Identifier     string `json:"identifier"`
	Category       string `json:"category"`
	Tier           string `json:"tier"`
	Limit          int    `json:"limit"`
	Current        int    `json:"current"`
	Remaining      int    `json:"remaining"`
	ResetAt        int64  `json:"reset_at"`
	StoreAvailable bool   `json:"store_available"`
}

// Status reports the current window occupancy for one identifier without
// consuming capacity.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	identifier := q.Get("identifier")
	if identifier == "" {
		respond.Error(w, http.StatusBadRequest, errors.New("identifier is required"))
		return
	}
	category := q.Get("category")
	if category == "" {
		category = ratelimit.CategoryGeneral
	}
	tier := q.Get("tier")

	status := h.limiter.GetTieredLimitStatus(r.Context(), identifier, category, tier)

	respond.JSON(w, http.StatusOK, statusResponse{
		Identifier:     identifier,
		Category:       category,
		Tier:           tier,
		Limit:          status.Limit,
		Current:        status.Current,
		Remaining:      status.Remaining,
		ResetAt:        status.ResetAt.Unix(),
		StoreAvailable: status.StoreAvailable,
	})
}

// Stats reports aggregate limiter statistics. A failed store scan still
// returns the process-local counters with a 200, flagged as partial.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.limiter.GlobalStats(r.Context())
	if err != nil {
		h.logger.Warn("stats scan failed, returning partial stats",
			slog.Any("error", err))
		respond.JSON(w, http.StatusOK, map[string]any{
			"stats":   stats,
			"partial": true,
		})
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"stats": stats})
}
