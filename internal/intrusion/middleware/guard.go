// Package middleware wires the intrusion detector into the request pipeline.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"bulwark/internal/intrusion/metrics"
	"bulwark/internal/intrusion/models"
	dErrors "bulwark/pkg/domain-errors"
	"bulwark/pkg/platform/httputil"
	"bulwark/pkg/platform/middleware/metadata"
	"bulwark/pkg/platform/privacy"
)

// Tracker is the stateful side of intrusion detection.
type Tracker interface {
	Enabled() bool
	Allowlisted(ip string) bool
	IsBlocked(ctx context.Context, ip string) (*models.BlockRecord, bool)
	RejectBlocked(ctx context.Context, rec *models.BlockRecord)
	TriggerHoneypot(ctx context.Context, ip, path string) bool
	RecordViolation(ctx context.Context, ip string, category models.Category) (int64, bool)
}

// Inspector finds attack signatures in a request.
type Inspector interface {
	IsHoneypot(path string) bool
	Inspect(r *http.Request) (*models.Match, error)
}

type Middleware struct {
	tracker   Tracker
	inspector Inspector
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(tracker Tracker, inspector Inspector, m *metrics.Metrics, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		tracker:   tracker,
		inspector: inspector,
		metrics:   m,
		logger:    logger,
	}
}

// Guard runs the block list, honeypot and content checks in that order.
// Each one ends the request when it fires.
func (m *Middleware) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := metadata.GetClientIP(ctx)
		if ip == "" || !m.tracker.Enabled() || m.tracker.Allowlisted(ip) {
			next.ServeHTTP(w, r)
			return
		}

		if rec, blocked := m.tracker.IsBlocked(ctx, ip); blocked {
			m.tracker.RejectBlocked(ctx, rec)
			httputil.WriteJSON(w, http.StatusForbidden, &models.DeniedResponse{
				Error:   "ip_blocked",
				Code:    "IP_BLOCKED",
				Message: "Your address has been blocked.",
			})
			return
		}

		if m.inspector.IsHoneypot(r.URL.Path) {
			m.tracker.TriggerHoneypot(ctx, ip, r.URL.Path)
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "not found"))
			return
		}

		start := time.Now()
		match, err := m.inspector.Inspect(r)
		m.metrics.ObserveScanDuration(time.Since(start).Seconds())
		if err != nil {
			// An unreadable body is the next handler's problem.
			m.logger.DebugContext(ctx, "request scan incomplete", "error", err)
		}
		if match == nil {
			next.ServeHTTP(w, r)
			return
		}

		count, blocked := m.tracker.RecordViolation(ctx, ip, match.Category)
		m.logger.WarnContext(ctx, "suspicious pattern",
			"ip_prefix", privacy.AnonymizeIP(ip),
			"category", string(match.Category),
			"signature", match.Signature,
			"location", string(match.Location),
			"count", count,
			"blocked", blocked,
		)
		httputil.WriteJSON(w, http.StatusForbidden, &models.DeniedResponse{
			Error:    "suspicious_pattern",
			Code:     "SUSPICIOUS_PATTERN",
			Message:  "The request was rejected.",
			Category: match.Category,
		})
	})
}

// AuthFailureObserver counts a 401 from downstream as an auth_failure
// violation for the client address.
func (m *Middleware) AuthFailureObserver(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := metadata.GetClientIP(ctx)
		if ip == "" || !m.tracker.Enabled() || m.tracker.Allowlisted(ip) {
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if ww.Status() == http.StatusUnauthorized {
			// The client may already be gone; the count must still land.
			m.tracker.RecordViolation(context.WithoutCancel(ctx), ip, models.CategoryAuthFailure)
		}
	})
}
