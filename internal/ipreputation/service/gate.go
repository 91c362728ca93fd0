// Package service decides whether a client address may pass the reputation
// gate.
//
// Evaluate never returns an error. Lookup failures let the request through
// without caching anything, so the next request retries the lookup.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"bulwark/internal/counter"
	"bulwark/internal/ipreputation/config"
	"bulwark/internal/ipreputation/metrics"
	"bulwark/internal/ipreputation/models"
	"bulwark/internal/platform/observability"
	"bulwark/internal/platform/tracing"
	"bulwark/pkg/platform/audit"
	"bulwark/pkg/platform/ipnet"
	"bulwark/pkg/platform/privacy"
	"bulwark/pkg/requestcontext"
)

const component = "ipreputation"

// invalidateTimeout bounds a background invalidation.
const invalidateTimeout = 5 * time.Second

// Lookuper fetches a fresh reputation payload.
type Lookuper interface {
	Lookup(ctx context.Context, ip string) (*models.Payload, error)
}

type Gate struct {
	store          counter.Store
	lookup         Lookuper
	config         *config.Config
	allowlist      *ipnet.Allowlist
	group          singleflight.Group
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         tracing.Tracer
	auditPublisher observability.AuditPublisher

	inflight sync.WaitGroup
	closeMu  sync.RWMutex
	closed   bool
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func WithTracer(t tracing.Tracer) Option {
	return func(g *Gate) {
		if t != nil {
			g.tracer = t
		}
	}
}

func WithAuditPublisher(publisher observability.AuditPublisher) Option {
	return func(g *Gate) {
		g.auditPublisher = publisher
	}
}

// NewGate builds the gate. In dev mode loopback addresses bypass it in
// addition to the configured allowlist.
func NewGate(store counter.Store, lookup Lookuper, cfg *config.Config, devMode bool, opts ...Option) (*Gate, error) {
	if store == nil {
		return nil, errors.New("counter store is required")
	}
	if lookup == nil {
		return nil, errors.New("reputation lookup is required")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	allowlist, err := ipnet.NewAllowlist(cfg.Allowlist, devMode)
	if err != nil {
		return nil, err
	}
	g := &Gate{
		store:     store,
		lookup:    lookup,
		config:    cfg,
		allowlist: allowlist,
		logger:    slog.Default(),
		tracer:    tracing.NewNoop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Evaluate runs allowlist → cache → lookup → analyze → cache for ip.
func (g *Gate) Evaluate(ctx context.Context, ip string) *models.Decision {
	ctx, span := g.tracer.Start(ctx, tracing.SpanReputationEvaluate,
		tracing.String(tracing.AttrIPPrefix, privacy.AnonymizeIP(ip)),
	)
	d := g.evaluate(ctx, ip)
	span.SetAttributes(
		tracing.String(tracing.AttrSource, string(d.Source)),
		tracing.Bool(tracing.AttrBlocked, !d.Allowed),
	)
	span.End(nil)

	g.metrics.ObserveDecision(string(d.Source), d.Allowed)
	if !d.Allowed {
		observability.LogAudit(ctx, g.logger, g.auditPublisher, component, audit.EventReputationBlocked, audit.DecisionBlocked,
			"ip", d.IP,
			"source", string(d.Source),
			"reason", firstReason(d.Reasons),
		)
	}
	return d
}

func (g *Gate) evaluate(ctx context.Context, raw string) *models.Decision {
	if !g.config.Enabled {
		return models.Allow(raw, models.SourceDisabled)
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		g.logger.DebugContext(ctx, "unparseable client address, skipping reputation gate", "ip", raw)
		return models.Allow(raw, models.SourceFailOpen)
	}
	ip := addr.Unmap().String()
	if g.allowlist.Contains(ip) {
		return models.Allow(ip, models.SourceAllowlist)
	}

	if v := g.cached(ctx, ip); v != nil {
		return models.FromVerdict(v, models.SourceCache)
	}

	// Concurrent misses for one address share a single lookup. The shared
	// call is detached from the first caller's cancellation; the client's
	// own timeout bounds it.
	out, err, shared := g.group.Do(ip, func() (any, error) {
		return g.fetch(context.WithoutCancel(ctx), ip)
	})
	if shared {
		g.logger.DebugContext(ctx, "reputation lookup shared", "ip_prefix", privacy.AnonymizeIP(ip))
	}
	if err != nil {
		g.logger.WarnContext(ctx, "reputation lookup failed, allowing request",
			"ip_prefix", privacy.AnonymizeIP(ip),
			"error", err,
		)
		return models.Allow(ip, models.SourceFailOpen)
	}
	return models.FromVerdict(out.(*models.Verdict), models.SourceLookup)
}

// cached returns the stored verdict, or nil on miss, store error or a corrupt
// record. Corrupt records are deleted so the next lookup can replace them.
func (g *Gate) cached(ctx context.Context, ip string) *models.Verdict {
	key := models.CacheKey(ip)
	raw, found, err := g.store.Get(ctx, key)
	if err != nil {
		g.metrics.IncrementCacheError("get")
		g.logger.WarnContext(ctx, "reputation cache read failed", "key", key, "error", err)
		return nil
	}
	if !found {
		return nil
	}
	var v models.Verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil || v.IP == "" {
		g.logger.WarnContext(ctx, "corrupt reputation cache entry, discarding", "key", key)
		if _, err := g.store.Del(ctx, key); err != nil {
			g.metrics.IncrementCacheError("del")
		}
		return nil
	}
	return &v
}

func (g *Gate) fetch(ctx context.Context, ip string) (*models.Verdict, error) {
	payload, err := g.lookup.Lookup(ctx, ip)
	if err != nil {
		return nil, err
	}
	blocked, reasons := Analyze(payload, g.config.Checks, g.config.BlockedCloudProviders)
	if reasons == nil {
		reasons = []string{}
	}
	v := &models.Verdict{
		IP:        ip,
		IsBlocked: blocked,
		Reasons:   reasons,
		Location:  payload.Location,
		Timestamp: requestcontext.Now(ctx).UTC(),
	}

	data, err := json.Marshal(v)
	if err != nil {
		return v, nil
	}
	if err := g.store.Set(ctx, models.CacheKey(ip), string(data), g.config.CacheTTL); err != nil {
		g.metrics.IncrementCacheError("set")
		g.logger.WarnContext(ctx, "reputation cache write failed", "ip_prefix", privacy.AnonymizeIP(ip), "error", err)
	}
	return v, nil
}

// Invalidate drops the cached verdict for ip.
func (g *Gate) Invalidate(ctx context.Context, ip string) error {
	if addr, err := netip.ParseAddr(ip); err == nil {
		ip = addr.Unmap().String()
	}
	_, err := g.store.Del(ctx, models.CacheKey(ip))
	g.metrics.ObserveInvalidation(err == nil)
	if err != nil {
		return err
	}
	observability.LogAudit(ctx, g.logger, g.auditPublisher, component, audit.EventReputationInvalidated, audit.DecisionCleared,
		"ip", ip,
	)
	return nil
}

// InvalidateAsync invalidates in the background. Errors are logged. After
// Close it is a no-op.
func (g *Gate) InvalidateAsync(ip string) {
	g.closeMu.RLock()
	defer g.closeMu.RUnlock()
	if g.closed {
		return
	}
	g.inflight.Add(1)
	go func() {
		defer g.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
		defer cancel()
		if err := g.Invalidate(ctx, ip); err != nil {
			g.logger.Warn("background reputation invalidation failed",
				"ip_prefix", privacy.AnonymizeIP(ip),
				"error", err,
			)
		}
	}()
}

// Close waits for in-flight background invalidations.
func (g *Gate) Close() {
	g.closeMu.Lock()
	g.closed = true
	g.closeMu.Unlock()
	g.inflight.Wait()
}

func firstReason(reasons []string) string {
	if len(reasons) == 0 {
		return ""
	}
	return reasons[0]
}
