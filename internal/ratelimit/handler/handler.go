package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks WindowService,BucketService

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"bulwark/internal/ratelimit/config"
	"bulwark/internal/ratelimit/models"
	dErrors "bulwark/pkg/domain-errors"
	"bulwark/pkg/platform/httputil"
	"bulwark/pkg/requestcontext"
)

// WindowService exposes the fixed-window counters to operators.
type WindowService interface {
	GetUserRateLimitStatus(ctx context.Context, userID string) (*models.UserRateLimitStatus, error)
	ResetUserRateLimits(ctx context.Context, userID string)
}

// BucketService exposes token buckets to operators.
type BucketService interface {
	Peek(ctx context.Context, key string, preset config.BucketPreset) (tokens float64, found bool, err error)
	Reset(ctx context.Context, key string) error
}

type Handler struct {
	windows WindowService
	buckets BucketService
	presets map[string]config.BucketPreset
	logger  *slog.Logger
}

func New(windows WindowService, buckets BucketService, cfg *config.Config, logger *slog.Logger) *Handler {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Handler{
		windows: windows,
		buckets: buckets,
		presets: cfg.Buckets,
		logger:  logger,
	}
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/rate-limit/users/{user_id}", h.HandleGetUserStatus)
	r.Delete("/admin/rate-limit/users/{user_id}", h.HandleResetUser)
	r.Get("/admin/rate-limit/buckets/{preset}/{actor}", h.HandleGetBucket)
	r.Post("/admin/rate-limit/buckets/reset", h.HandleResetBucket)
}

// HandleGetUserStatus implements GET /admin/rate-limit/users/{user_id}.
// Output: { "user_id": "...", "minute": {...}, "hour": {...}, "day": {...} }
func (h *Handler) HandleGetUserStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	status, err := h.windows.GetUserRateLimitStatus(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read rate limit status",
			"error", err,
			"user_id", userID,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limit store unavailable"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

// HandleResetUser implements DELETE /admin/rate-limit/users/{user_id}.
// Clears minute, hour and day counters. Store errors are logged by the
// service and never surface here.
func (h *Handler) HandleResetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	h.windows.ResetUserRateLimits(ctx, userID)
	h.logger.InfoContext(ctx, "user rate limits reset",
		"user_id", userID,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, &models.ResetResponse{UserID: userID, Reset: true})
}

// HandleGetBucket implements GET /admin/rate-limit/buckets/{preset}/{actor}.
// Output: { "key": "...", "preset": "upload", "tokens": 4.0, "capacity": 10, "found": true }
func (h *Handler) HandleGetBucket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	presetName := strings.ToLower(chi.URLParam(r, "preset"))
	preset, ok := h.presets[presetName]
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "unknown bucket preset"))
		return
	}
	actor := strings.TrimSpace(chi.URLParam(r, "actor"))
	if actor == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "actor is required"))
		return
	}

	key := models.BucketKey(presetName, actor)
	tokens, found, err := h.buckets.Peek(ctx, key, preset)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read bucket",
			"error", err,
			"key", key,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limit store unavailable"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &models.BucketStatusResponse{
		Key:      key,
		Preset:   presetName,
		Tokens:   tokens,
		Capacity: preset.Capacity,
		Found:    found,
	})
}

// HandleResetBucket implements POST /admin/rate-limit/buckets/reset.
// Input: { "preset": "upload", "actor": "user_42" }
func (h *Handler) HandleResetBucket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndValidate[models.ResetBucketRequest](w, r, h.logger)
	if !ok {
		return
	}
	if _, known := h.presets[req.Preset]; !known {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "unknown bucket preset"))
		return
	}

	key := models.BucketKey(req.Preset, req.Actor)
	if err := h.buckets.Reset(ctx, key); err != nil {
		h.logger.ErrorContext(ctx, "failed to reset bucket",
			"error", err,
			"key", key,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limit store unavailable"))
		return
	}

	h.logger.InfoContext(ctx, "bucket reset", "key", key, "request_id", requestcontext.RequestID(ctx))
	httputil.WriteJSON(w, http.StatusOK, &models.ResetResponse{Key: key, Reset: true})
}

func (h *Handler) userIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(chi.URLParam(r, "user_id"))
	if userID == "" || len(userID) > 256 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user_id"))
		return "", false
	}
	return userID, true
}
