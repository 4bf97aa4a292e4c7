// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github-commit-notifier/internal/aggregator"
	"github-commit-notifier/internal/github"
	"github-commit-notifier/internal/model"
	"github-commit-notifier/internal/store"
)

// Aggregation is the on-demand repository/commit view operation.
type Aggregation interface {
	Aggregate(ctx context.Context, username, token string) (*aggregator.Result, error)
}

// ScanTrigger runs one scan pass; the external scheduler calls it via
// the check-commits endpoint.
type ScanTrigger interface {
	Scan(ctx context.Context)
}

// Handler is the container for API dependencies.
type Handler struct {
	db         store.Store
	agg        Aggregation
	scanner    ScanTrigger
	cronSecret string
	logger     *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(db store.Store, agg Aggregation, scanner ScanTrigger, cronSecret string, logger *slog.Logger) http.Handler {
	h := &Handler{
		db:         db,
		agg:        agg,
		scanner:    scanner,
		cronSecret: cronSecret,
		logger:     logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/users/{username}/activity", h.getUserActivity)
		r.Post("/subscriptions", h.createSubscription)
		r.Get("/subscriptions", h.listSubscriptions)
		r.Delete("/subscriptions/{id}", h.deleteSubscription)
		r.Post("/check-commits", h.checkCommits)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getUserActivity returns the ranked repository/commit bundle for a user.
// GET /v1/users/{username}/activity
// An explicit token may be supplied via the X-GitHub-Token header.
func (h *Handler) getUserActivity(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	token := r.Header.Get("X-GitHub-Token")

	result, err := h.agg.Aggregate(r.Context(), username, token)
	if err != nil {
		status, msg := upstreamStatus(err)
		if status == http.StatusBadGateway {
			h.logger.Error("Aggregation failed", "username", username, "error", err)
		}
		respondWithError(w, status, msg)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

type createSubscriptionRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Frequency string `json:"frequency"`
}

// createSubscription registers a watcher for a GitHub username.
// POST /v1/subscriptions
func (h *Handler) createSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		respondWithError(w, http.StatusBadRequest, "A valid 'email' is required")
		return
	}
	if req.Username == "" {
		respondWithError(w, http.StatusBadRequest, "'username' is required")
		return
	}
	if req.Frequency == "" {
		req.Frequency = model.FrequencyDaily
	}
	switch req.Frequency {
	case model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyRealtime:
	default:
		respondWithError(w, http.StatusBadRequest, "'frequency' must be one of daily, weekly, realtime")
		return
	}

	sub, err := h.db.CreateSubscription(r.Context(), store.CreateSubscriptionParams{
		Email:     req.Email,
		Username:  req.Username,
		Frequency: req.Frequency,
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadySubscribed) {
			respondWithError(w, http.StatusConflict, "You're already subscribed to this user")
			return
		}
		h.logger.Error("Failed to create subscription", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to create subscription")
		return
	}

	respondWithJSON(w, http.StatusCreated, sub)
}

// listSubscriptions returns subscriptions, newest first.
// GET /v1/subscriptions?email=...
func (h *Handler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.db.ListSubscriptions(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		h.logger.Error("Failed to list subscriptions", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch subscriptions")
		return
	}
	if subs == nil {
		subs = []model.Subscription{}
	}

	respondWithJSON(w, http.StatusOK, subs)
}

// deleteSubscription removes a subscription by ID.
// DELETE /v1/subscriptions/{id}
func (h *Handler) deleteSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid subscription ID")
		return
	}

	if err := h.db.DeleteSubscription(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			respondWithError(w, http.StatusNotFound, "Subscription not found")
			return
		}
		h.logger.Error("Failed to delete subscription", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to delete subscription")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// checkCommits runs one scan pass. When a cron secret is configured the
// caller must present it as a bearer token.
// POST /v1/check-commits
func (h *Handler) checkCommits(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret != "" && r.Header.Get("Authorization") != "Bearer "+h.cronSecret {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	h.scanner.Scan(r.Context())

	respondWithJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Commit check completed",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// upstreamStatus maps the upstream failure taxonomy onto user-facing
// HTTP responses.
func upstreamStatus(err error) (int, string) {
	switch {
	case errors.Is(err, github.ErrNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, github.ErrRateLimited):
		return http.StatusTooManyRequests, "Rate limit exceeded. Please try again later."
	case errors.Is(err, github.ErrUnauthorized):
		return http.StatusUnauthorized, "Authentication failed. Please check your GitHub token."
	default:
		return http.StatusBadGateway, "Failed to fetch data from GitHub"
	}
}
