package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"

	"bulwark/internal/intrusion/models"
	dErrors "bulwark/pkg/domain-errors"
	"bulwark/pkg/platform/httputil"
	"bulwark/pkg/requestcontext"
)

type Service interface {
	ListBlocks(ctx context.Context) ([]*models.BlockRecord, error)
	GetBlock(ctx context.Context, ip string) (*models.BlockRecord, error)
	Block(ctx context.Context, ip string, category models.Category, trigger models.Trigger, reason string, duration time.Duration) error
	Unblock(ctx context.Context, ip string) error
}

type Handler struct {
	service         Service
	defaultDuration time.Duration
	logger          *slog.Logger
}

// New builds the admin handler. Manual blocks without a duration use
// defaultDuration.
func New(service Service, defaultDuration time.Duration, logger *slog.Logger) *Handler {
	return &Handler{service: service, defaultDuration: defaultDuration, logger: logger}
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/intrusion/blocks", h.HandleList)
	r.Post("/admin/intrusion/blocks", h.HandleBlock)
	r.Get("/admin/intrusion/blocks/{ip}", h.HandleGet)
	r.Delete("/admin/intrusion/blocks/{ip}", h.HandleUnblock)
}

// HandleList implements GET /admin/intrusion/blocks.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.service.ListBlocks(r.Context())
	if err != nil {
		h.fail(w, r, "failed to list blocks", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &models.BlockListResponse{Blocks: blocks, Count: len(blocks)})
}

// HandleGet implements GET /admin/intrusion/blocks/{ip}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ip, ok := ipParam(w, r)
	if !ok {
		return
	}
	rec, err := h.service.GetBlock(r.Context(), ip)
	if err != nil {
		h.fail(w, r, "failed to get block", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// HandleBlock implements POST /admin/intrusion/blocks.
func (h *Handler) HandleBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndValidate[models.BlockRequest](w, r, h.logger)
	if !ok {
		return
	}
	duration, ok := req.ParsedDuration(h.defaultDuration)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "duration must be between 1s and 720h"))
		return
	}
	addr, _ := netip.ParseAddr(req.IP)
	ip := addr.Unmap().String()
	reason := req.Reason
	if reason == "" {
		reason = "manual block"
	}
	if err := h.service.Block(ctx, ip, models.CategoryManual, models.TriggerManual, reason, duration); err != nil {
		h.fail(w, r, "failed to block ip", dErrors.Wrap(err, dErrors.CodeUnavailable, "counter store unavailable"))
		return
	}
	rec, err := h.service.GetBlock(ctx, ip)
	if err != nil {
		h.fail(w, r, "failed to read back block", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rec)
}

// HandleUnblock implements DELETE /admin/intrusion/blocks/{ip}.
func (h *Handler) HandleUnblock(w http.ResponseWriter, r *http.Request) {
	ip, ok := ipParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Unblock(r.Context(), ip); err != nil {
		h.fail(w, r, "failed to unblock ip", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &models.UnblockResponse{IP: ip, Unblocked: true})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		ctx := r.Context()
		h.logger.ErrorContext(ctx, msg,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}

func ipParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	addr, err := netip.ParseAddr(chi.URLParam(r, "ip"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid ip address"))
		return "", false
	}
	return addr.Unmap().String(), true
}
