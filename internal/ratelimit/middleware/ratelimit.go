// Package middleware enforces rate limits at the HTTP boundary.
package middleware

//go:generate mockgen -source=ratelimit.go -destination=mocks/mocks.go -package=mocks WindowLimiter,BucketLimiter

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"bulwark/internal/ratelimit/config"
	"bulwark/internal/ratelimit/models"
	"bulwark/pkg/platform/httputil"
	"bulwark/pkg/platform/middleware/metadata"
	"bulwark/pkg/platform/privacy"
	"bulwark/pkg/requestcontext"
)

// Response headers.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderStatus     = "X-RateLimit-Status"
	HeaderRetryAfter = "Retry-After"

	statusDegraded = "degraded"
)

// WindowLimiter is the fixed-window side of the limiter.
type WindowLimiter interface {
	CheckNotificationRateLimit(ctx context.Context, userID, deviceID string) *models.NotificationResult
	CheckWindow(ctx context.Context, userID string, w models.Window) *models.WindowResult
}

// BucketLimiter is the token-bucket side of the limiter.
type BucketLimiter interface {
	CheckPreset(ctx context.Context, key string, preset config.BucketPreset) *models.BucketResult
}

// KeyFunc derives the bucket actor for a request. An empty result skips the
// check.
type KeyFunc func(r *http.Request) string

// ByUser keys buckets on the authenticated user, falling back to the client IP.
func ByUser(r *http.Request) string {
	if id := requestcontext.UserID(r.Context()); id != "" {
		return "user_" + id
	}
	return ByIP(r)
}

// ByIP keys buckets on the resolved client IP.
func ByIP(r *http.Request) string {
	if ip := metadata.GetClientIP(r.Context()); ip != "" {
		return "ip_" + ip
	}
	return ""
}

type Middleware struct {
	windows WindowLimiter
	buckets BucketLimiter
	presets map[string]config.BucketPreset
	logger  *slog.Logger
}

func New(windows WindowLimiter, buckets BucketLimiter, cfg *config.Config, logger *slog.Logger) *Middleware {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		windows: windows,
		buckets: buckets,
		presets: cfg.Buckets,
		logger:  logger,
	}
}

// Notification applies the composite user/device/global check. Requests
// without an authenticated user pass through; mount RequireUser in front when
// anonymous access is not acceptable.
func (m *Middleware) Notification() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := requestcontext.UserID(ctx)
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			result := m.windows.CheckNotificationRateLimit(ctx, userID, requestcontext.DeviceID(ctx))
			setLimitHeaders(w, result.Limit, result.Remaining, result.Degraded)
			if !result.Allowed {
				m.logger.InfoContext(ctx, "notification rate limit exceeded",
					"user_id", userID,
					"denied_by", result.DeniedBy,
					"ip_prefix", privacy.AnonymizeIP(metadata.GetClientIP(ctx)),
				)
				writeRateLimitExceeded(w, requestcontext.Now(ctx), result.RetryAfter,
					"Too many notifications. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Window applies an hourly or daily per-user cap.
func (m *Middleware) Window(window models.Window) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := requestcontext.UserID(ctx)
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			result := m.windows.CheckWindow(ctx, userID, window)
			setLimitHeaders(w, result.Limit, result.Remaining, result.Degraded)
			if !result.Allowed {
				writeRateLimitExceeded(w, requestcontext.Now(ctx), result.RetryAfter,
					"You have exceeded your quota for this operation. The "+string(window)+" window has not reset yet.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenBucket admits requests against a named preset. An unknown preset is a
// configuration fault: it is logged once per request and the request allowed.
func (m *Middleware) TokenBucket(preset string, keyFn KeyFunc) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = ByUser
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p, ok := m.presets[preset]
			if !ok {
				m.logger.ErrorContext(ctx, "unknown token bucket preset, allowing request", "preset", preset)
				next.ServeHTTP(w, r)
				return
			}
			actor := keyFn(r)
			if actor == "" {
				next.ServeHTTP(w, r)
				return
			}

			result := m.buckets.CheckPreset(ctx, models.BucketKey(preset, actor), p)
			setLimitHeaders(w, result.Capacity, result.Remaining, result.Degraded)
			if !result.Allowed {
				writeRateLimitExceeded(w, requestcontext.Now(ctx), result.RetryAfter,
					"Too many "+preset+" requests. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setLimitHeaders(w http.ResponseWriter, limit, remaining int, degraded bool) {
	h := w.Header()
	if limit > 0 {
		h.Set(HeaderLimit, strconv.Itoa(limit))
		h.Set(HeaderRemaining, strconv.Itoa(remaining))
	}
	if degraded {
		h.Set(HeaderStatus, statusDegraded)
	}
}

func writeRateLimitExceeded(w http.ResponseWriter, now time.Time, retryAfter time.Duration, message string) {
	seconds := int((retryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set(HeaderRetryAfter, strconv.Itoa(seconds))
	w.Header().Set(HeaderReset, strconv.FormatInt(now.Add(time.Duration(seconds)*time.Second).Unix(), 10))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Code:       "RATE_LIMITED",
		Message:    message,
		RetryAfter: seconds,
	})
}
