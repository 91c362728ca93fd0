// Package middleware renders the reputation gate's terminal block response.
package middleware

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"bulwark/internal/ipreputation/config"
	"bulwark/internal/ipreputation/models"
	"bulwark/pkg/platform/httputil"
	"bulwark/pkg/platform/middleware/metadata"
)

//go:embed templates/blocked.html
var templateFS embed.FS

var blockedPage = template.Must(template.ParseFS(templateFS, "templates/blocked.html"))

// Evaluator is the reputation gate.
type Evaluator interface {
	Evaluate(ctx context.Context, ip string) *models.Decision
}

type Middleware struct {
	gate    Evaluator
	format  string
	contact string
	logger  *slog.Logger
}

func New(gate Evaluator, cfg *config.Config, logger *slog.Logger) *Middleware {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		gate:    gate,
		format:  cfg.ResponseFormat,
		contact: cfg.SupportContact,
		logger:  logger,
	}
}

type pageData struct {
	Reasons []string
	Contact string
}

// Gate rejects requests whose client address has a blocking verdict.
func (m *Middleware) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := metadata.GetClientIP(ctx)
		if ip == "" {
			next.ServeHTTP(w, r)
			return
		}
		d := m.gate.Evaluate(ctx, ip)
		if d.Allowed {
			next.ServeHTTP(w, r)
			return
		}
		m.writeBlocked(w, r, d.Reasons)
	})
}

func (m *Middleware) writeBlocked(w http.ResponseWriter, r *http.Request, reasons []string) {
	if reasons == nil {
		reasons = []string{}
	}
	if !m.wantsHTML(r) {
		httputil.WriteJSON(w, http.StatusForbidden, &models.BlockedResponse{
			Error:   "ip_blocked",
			Code:    "IP_BLOCKED",
			Message: "Access from your network has been blocked.",
			Reasons: reasons,
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusForbidden)
	if err := blockedPage.Execute(w, pageData{Reasons: reasons, Contact: m.contact}); err != nil {
		m.logger.ErrorContext(r.Context(), "failed to render block page", "error", err)
	}
}

func (m *Middleware) wantsHTML(r *http.Request) bool {
	switch m.format {
	case config.FormatHTML:
		return true
	case config.FormatJSON:
		return false
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
