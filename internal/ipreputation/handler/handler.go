package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"

	"bulwark/internal/ipreputation/models"
	dErrors "bulwark/pkg/domain-errors"
	"bulwark/pkg/platform/httputil"
	"bulwark/pkg/requestcontext"
)

type Service interface {
	Evaluate(ctx context.Context, ip string) *models.Decision
	Invalidate(ctx context.Context, ip string) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/ip-reputation/{ip}", h.HandleGet)
	r.Delete("/admin/ip-reputation/{ip}", h.HandleInvalidate)
}

// HandleGet implements GET /admin/ip-reputation/{ip}. It runs the gate, so a
// cache miss spends one lookup and caches the result.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ip, ok := ipParam(w, r)
	if !ok {
		return
	}
	d := h.service.Evaluate(r.Context(), ip)
	httputil.WriteJSON(w, http.StatusOK, models.NewReputationResponse(d))
}

// HandleInvalidate implements DELETE /admin/ip-reputation/{ip}.
func (h *Handler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ip, ok := ipParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Invalidate(ctx, ip); err != nil {
		h.logger.ErrorContext(ctx, "failed to invalidate reputation cache",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "reputation cache unavailable"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &models.InvalidateResponse{IP: ip, Invalidated: true})
}

func ipParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	addr, err := netip.ParseAddr(chi.URLParam(r, "ip"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid ip address"))
		return "", false
	}
	return addr.Unmap().String(), true
}
