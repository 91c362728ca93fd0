// Package service tracks violations per address and category and escalates
// repeat offenders to a block.
//
// Block records live at blocked:{ip} with the block duration as TTL; the
// blocked:index set lets operators list them. Store failures never block a
// request: reads fail open and writes are logged and counted.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks ReputationInvalidator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"bulwark/internal/counter"
	"bulwark/internal/intrusion/config"
	"bulwark/internal/intrusion/metrics"
	"bulwark/internal/intrusion/models"
	"bulwark/internal/platform/observability"
	dErrors "bulwark/pkg/domain-errors"
	"bulwark/pkg/platform/audit"
	"bulwark/pkg/platform/ipnet"
	"bulwark/pkg/platform/privacy"
	"bulwark/pkg/requestcontext"
)

const component = "intrusion"

// ReputationInvalidator drops a cached reputation verdict in the background.
type ReputationInvalidator interface {
	InvalidateAsync(ip string)
}

type Service struct {
	store          counter.Store
	config         *config.Config
	allowlist      *ipnet.Allowlist
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher observability.AuditPublisher
	reputation     ReputationInvalidator
	atomic         bool
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher observability.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithReputationInvalidator clears the reputation cache on unblock.
func WithReputationInvalidator(r ReputationInvalidator) Option {
	return func(s *Service) {
		s.reputation = r
	}
}

// WithAtomicIncrement uses the store's single round-trip increment for
// violation counters when available.
func WithAtomicIncrement(enabled bool) Option {
	return func(s *Service) {
		s.atomic = enabled
	}
}

// New builds the service. In dev mode loopback addresses are allowlisted.
func New(store counter.Store, cfg *config.Config, devMode bool, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("counter store is required")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	allowlist, err := ipnet.NewAllowlist(cfg.Allowlist, devMode)
	if err != nil {
		return nil, err
	}
	s := &Service{
		store:     store,
		config:    cfg,
		allowlist: allowlist,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Enabled reports whether detection runs at all.
func (s *Service) Enabled() bool {
	return s.config.Enabled
}

// Allowlisted reports whether ip bypasses every intrusion check.
func (s *Service) Allowlisted(ip string) bool {
	return s.allowlist.Contains(ip)
}

// IsBlocked returns the active block for ip. Store errors fail open. A
// record that cannot be decoded still blocks; its presence is the signal.
func (s *Service) IsBlocked(ctx context.Context, ip string) (*models.BlockRecord, bool) {
	raw, found, err := s.store.Get(ctx, models.BlockKey(ip))
	if err != nil {
		s.storeError(ctx, "get_block", ip, err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	rec := &models.BlockRecord{IP: ip}
	if err := json.Unmarshal([]byte(raw), rec); err != nil {
		s.logger.WarnContext(ctx, "undecodable block record", "ip_prefix", privacy.AnonymizeIP(ip))
	}
	return rec, true
}

// RecordViolation counts one violation of category by ip and blocks ip for
// the temporary duration once the count reaches the category threshold.
// Errors are logged, never returned.
func (s *Service) RecordViolation(ctx context.Context, ip string, category models.Category) (count int64, blocked bool) {
	s.metrics.IncrementDetection(string(category))
	count, err := counter.IncrWindow(ctx, s.store, models.ViolationKey(category, ip), s.config.ViolationWindow, s.atomic)
	if err != nil {
		s.storeError(ctx, "record_violation", ip, err)
		return 0, false
	}

	observability.LogAudit(ctx, s.logger, s.auditPublisher, component, audit.EventSuspiciousPattern, audit.DecisionDenied,
		"ip", ip,
		"reason", string(category),
		"count", count,
	)

	threshold := s.config.Thresholds.For(string(category))
	if count < int64(threshold) {
		return count, false
	}
	reason := fmt.Sprintf("%d %s violations within %s", count, category, s.config.ViolationWindow)
	if err := s.Block(ctx, ip, category, models.TriggerThreshold, reason, s.config.TemporaryBlockDuration); err != nil {
		s.storeError(ctx, "block", ip, err)
		return count, false
	}
	return count, true
}

// TriggerHoneypot blocks ip for the extended duration on first contact.
func (s *Service) TriggerHoneypot(ctx context.Context, ip, path string) bool {
	observability.LogAudit(ctx, s.logger, s.auditPublisher, component, audit.EventHoneypotTriggered, audit.DecisionDenied,
		"ip", ip,
		"reason", path,
	)
	if err := s.Block(ctx, ip, models.CategoryHoneypot, models.TriggerHoneypot, "honeypot "+path, s.config.ExtendedBlockDuration); err != nil {
		s.storeError(ctx, "block", ip, err)
		return false
	}
	return true
}

// Block writes a block record with the given duration and indexes it.
func (s *Service) Block(ctx context.Context, ip string, category models.Category, trigger models.Trigger, reason string, duration time.Duration) error {
	now := requestcontext.Now(ctx).UTC()
	rec := &models.BlockRecord{
		IP:        ip,
		Category:  category,
		Trigger:   trigger,
		Reason:    reason,
		BlockedAt: now,
		ExpiresAt: now.Add(duration),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, models.BlockKey(ip), string(data), duration); err != nil {
		return err
	}
	if _, err := s.store.SAdd(ctx, models.BlockIndexKey, ip); err != nil {
		// The record is already enforced; only listing is affected.
		s.storeError(ctx, "index_add", ip, err)
	}

	s.metrics.IncrementBlock(string(trigger))
	observability.LogAudit(ctx, s.logger, s.auditPublisher, component, audit.EventIPBlocked, audit.DecisionBlocked,
		"ip", ip,
		"reason", reason,
		"category", string(category),
		"trigger", string(trigger),
		"duration", duration.String(),
	)
	return nil
}

// GetBlock returns the block for ip or a not-found domain error.
func (s *Service) GetBlock(ctx context.Context, ip string) (*models.BlockRecord, error) {
	raw, found, err := s.store.Get(ctx, models.BlockKey(ip))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "counter store unavailable")
	}
	if !found {
		return nil, dErrors.New(dErrors.CodeNotFound, "block record not found")
	}
	rec := &models.BlockRecord{IP: ip}
	_ = json.Unmarshal([]byte(raw), rec)
	return rec, nil
}

// ListBlocks returns active blocks from the index. Members whose record has
// expired are skipped; the cleanup worker removes them.
func (s *Service) ListBlocks(ctx context.Context) ([]*models.BlockRecord, error) {
	members, err := s.store.SMembers(ctx, models.BlockIndexKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "counter store unavailable")
	}
	out := make([]*models.BlockRecord, 0, len(members))
	for _, ip := range members {
		rec, err := s.GetBlock(ctx, ip)
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Unblock deletes the block record and every violation counter for ip,
// removes it from the index and drops its cached reputation verdict in the
// background.
func (s *Service) Unblock(ctx context.Context, ip string) error {
	keys := make([]string, 0, len(models.TrackedCategories)+1)
	keys = append(keys, models.BlockKey(ip))
	for _, c := range models.TrackedCategories {
		keys = append(keys, models.ViolationKey(c, ip))
	}
	if _, err := s.store.Del(ctx, keys...); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "counter store unavailable")
	}
	if _, err := s.store.SRem(ctx, models.BlockIndexKey, ip); err != nil {
		s.storeError(ctx, "index_remove", ip, err)
	}
	if s.reputation != nil {
		s.reputation.InvalidateAsync(ip)
	}
	observability.LogAudit(ctx, s.logger, s.auditPublisher, component, audit.EventIPUnblocked, audit.DecisionUnblocked,
		"ip", ip,
	)
	return nil
}

// PruneIndex removes index members whose block record has expired and
// returns the removed and remaining counts.
func (s *Service) PruneIndex(ctx context.Context) (removed, remaining int, err error) {
	members, err := s.store.SMembers(ctx, models.BlockIndexKey)
	if err != nil {
		return 0, 0, err
	}
	var stale []string
	for _, ip := range members {
		_, found, err := s.store.Get(ctx, models.BlockKey(ip))
		if err != nil {
			return 0, 0, err
		}
		if !found {
			stale = append(stale, ip)
		}
	}
	if len(stale) > 0 {
		n, err := s.store.SRem(ctx, models.BlockIndexKey, stale...)
		if err != nil {
			return 0, 0, err
		}
		removed = int(n)
	}
	remaining = len(members) - len(stale)
	s.metrics.SetBlockedIPs(remaining)
	return removed, remaining, nil
}

// RejectBlocked records a request turned away by an active block.
func (s *Service) RejectBlocked(ctx context.Context, rec *models.BlockRecord) {
	s.metrics.IncrementBlockedRequest()
	s.logger.DebugContext(ctx, string(audit.EventBlockedRequestRejected),
		"ip_prefix", privacy.AnonymizeIP(rec.IP),
		"category", string(rec.Category),
	)
}

func (s *Service) storeError(ctx context.Context, op, ip string, err error) {
	s.metrics.IncrementStoreError(op)
	s.logger.WarnContext(ctx, "intrusion store operation failed, failing open",
		"op", op,
		"ip_prefix", privacy.AnonymizeIP(ip),
		"error", err,
	)
}

// NormalizeIP canonicalizes an address for use in keys. ok is false for
// anything that does not parse.
func NormalizeIP(raw string) (ip string, ok bool) {
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}
