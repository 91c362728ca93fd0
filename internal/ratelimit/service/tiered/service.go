// Package tiered enforces per-actor limits over fixed time windows.
//
// A window is anchored to its first event: the counter is created by INCR and
// its expiry is armed only when the increment returned 1. Once the counter
// expires the next event starts a fresh window. A count equal to the limit is
// still allowed; denial starts at limit+1.
//
// Usage:
//
//	svc, _ := tiered.New(store, tiered.WithConfig(cfg))
//	res := svc.CheckNotificationRateLimit(ctx, userID, deviceID)
//	if !res.Allowed {
//	    // 429 with res.RetryAfterSeconds()
//	}
//
// Store failures never surface to callers: every check fails open and marks
// the result Degraded.
package tiered

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"bulwark/internal/counter"
	"bulwark/internal/platform/observability"
	"bulwark/internal/ratelimit/config"
	"bulwark/internal/ratelimit/metrics"
	"bulwark/internal/ratelimit/models"
	"bulwark/pkg/platform/audit"
)

const component = "ratelimit"

// Check names used in metrics.
const (
	checkNotification = "notification"
	checkHourly       = "hourly"
	checkDaily        = "daily"
)

// Service is safe for concurrent use; all state lives in the store.
type Service struct {
	store          counter.Store
	config         *config.Config
	logger         *slog.Logger
	auditPublisher observability.AuditPublisher
	metrics        *metrics.Metrics
}

// Option configures a Service instance.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher observability.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithConfig overrides the default limits.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates the service. The store is required.
func New(store counter.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("counter store is required")
	}
	svc := &Service{
		store:  store,
		config: config.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

type scope struct {
	name  string
	key   models.CounterKey
	limit int
}

// CheckNotificationRateLimit counts one notification against the user's
// minute window, then the device's minute window when deviceID is set, then
// the global per-second window. Evaluation stops at the first scope over its
// limit, so later scopes are not consumed by a denied request.
//
// Remaining always refers to the user scope. RetryAfter is the remaining
// lifetime of the counter that denied the request.
func (s *Service) CheckNotificationRateLimit(ctx context.Context, userID, deviceID string) *models.NotificationResult {
	start := time.Now()
	defer func() { s.metrics.ObserveCheckDuration(checkNotification, time.Since(start).Seconds()) }()

	limits := s.config.Notification
	scopes := make([]scope, 0, 3)
	scopes = append(scopes, scope{"user", models.UserKey(models.ScopeNotification, models.WindowMinute, userID), limits.UserPerMinute})
	if deviceID != "" {
		scopes = append(scopes, scope{"device", models.DeviceKey(models.ScopeNotification, models.WindowMinute, deviceID), limits.DevicePerMinute})
	}
	scopes = append(scopes, scope{"global", models.GlobalKey(models.ScopeNotification, models.WindowSecond), limits.GlobalPerSecond})

	result := &models.NotificationResult{
		Allowed:   true,
		Limit:     limits.UserPerMinute,
		Remaining: limits.UserPerMinute,
	}

	for i, sc := range scopes {
		count, err := s.increment(ctx, sc.key)
		if err != nil {
			s.failOpen(ctx, checkNotification, sc.key, err)
			result.Degraded = true
			return result
		}
		if i == 0 {
			result.Remaining = models.Remaining(sc.limit, count)
		}
		if count > int64(sc.limit) {
			result.Allowed = false
			result.DeniedBy = sc.name
			result.RetryAfter = s.retryAfter(ctx, sc.key)
			break
		}
	}

	s.metrics.ObserveDecision(checkNotification, result.Allowed)
	if !result.Allowed {
		observability.LogAudit(ctx, s.logger, s.auditPublisher, component, audit.EventNotificationRateLimited, audit.DecisionDenied,
			"user_id", userID,
			"device_id", deviceID,
			"reason", result.DeniedBy+"_limit_exceeded",
			"retry_after_seconds", result.RetryAfterSeconds(),
		)
	}
	return result
}

// CheckHourlyRateLimit reports whether the user is within the hourly cap.
func (s *Service) CheckHourlyRateLimit(ctx context.Context, userID string) bool {
	return s.checkWindow(ctx, checkHourly, audit.EventHourlyRateLimited, userID, models.WindowHour, s.config.Hourly).Allowed
}

// CheckDailyRateLimit reports whether the user is within the daily cap.
func (s *Service) CheckDailyRateLimit(ctx context.Context, userID string) bool {
	return s.checkWindow(ctx, checkDaily, audit.EventDailyRateLimited, userID, models.WindowDay, s.config.Daily).Allowed
}

// CheckWindow is the detailed form of the hourly and daily checks, used by
// the HTTP middleware to populate rate limit headers.
func (s *Service) CheckWindow(ctx context.Context, userID string, w models.Window) *models.WindowResult {
	switch w {
	case models.WindowHour:
		return s.checkWindow(ctx, checkHourly, audit.EventHourlyRateLimited, userID, w, s.config.Hourly)
	case models.WindowDay:
		return s.checkWindow(ctx, checkDaily, audit.EventDailyRateLimited, userID, w, s.config.Daily)
	default:
		return s.checkWindow(ctx, checkNotification, audit.EventNotificationRateLimited, userID, models.WindowMinute,
			config.WindowLimit{Limit: s.config.Notification.UserPerMinute, Window: time.Minute})
	}
}

func (s *Service) checkWindow(ctx context.Context, check string, event audit.AuditEvent, userID string, w models.Window, limit config.WindowLimit) *models.WindowResult {
	start := time.Now()
	defer func() { s.metrics.ObserveCheckDuration(check, time.Since(start).Seconds()) }()

	key := models.UserKey(models.ScopeNotification, w, userID)
	res := &models.WindowResult{Allowed: true, Limit: limit.Limit, Remaining: limit.Limit}

	count, err := s.incrementFor(ctx, key, limit.Window)
	if err != nil {
		s.failOpen(ctx, check, key, err)
		res.Degraded = true
		return res
	}

	res.Count = count
	res.Remaining = models.Remaining(limit.Limit, count)
	res.Allowed = count <= int64(limit.Limit)
	s.metrics.ObserveDecision(check, res.Allowed)

	if !res.Allowed {
		res.RetryAfter = s.retryAfterFor(ctx, key, limit.Window)
		observability.LogAudit(ctx, s.logger, s.auditPublisher, component, event, audit.DecisionDenied,
			"user_id", userID,
			"count", count,
			"limit", limit.Limit,
		)
	}
	return res
}

// GetUserRateLimitStatus reads the minute, hour and day counters without
// modifying them. A missing counter counts as zero.
func (s *Service) GetUserRateLimitStatus(ctx context.Context, userID string) (*models.UserRateLimitStatus, error) {
	minute, err := s.usage(ctx, models.UserKey(models.ScopeNotification, models.WindowMinute, userID), s.config.Notification.UserPerMinute)
	if err != nil {
		return nil, err
	}
	hour, err := s.usage(ctx, models.UserKey(models.ScopeNotification, models.WindowHour, userID), s.config.Hourly.Limit)
	if err != nil {
		return nil, err
	}
	day, err := s.usage(ctx, models.UserKey(models.ScopeNotification, models.WindowDay, userID), s.config.Daily.Limit)
	if err != nil {
		return nil, err
	}
	return &models.UserRateLimitStatus{UserID: userID, Minute: minute, Hour: hour, Day: day}, nil
}

func (s *Service) usage(ctx context.Context, key models.CounterKey, limit int) (models.WindowUsage, error) {
	raw, found, err := s.store.Get(ctx, key.String())
	if err != nil {
		return models.WindowUsage{}, err
	}
	if !found {
		return models.NewWindowUsage(0, limit, 0), nil
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.WarnContext(ctx, "non-numeric rate counter treated as zero", "key", key.String(), "error", err)
		count = 0
	}
	ttl, err := s.store.TTL(ctx, key.String())
	if err != nil {
		return models.WindowUsage{}, err
	}
	return models.NewWindowUsage(count, limit, ttl), nil
}

// ResetUserRateLimits deletes the user's minute, hour and day counters.
// Store errors are logged and swallowed.
func (s *Service) ResetUserRateLimits(ctx context.Context, userID string) {
	keys := []string{
		models.UserKey(models.ScopeNotification, models.WindowMinute, userID).String(),
		models.UserKey(models.ScopeNotification, models.WindowHour, userID).String(),
		models.UserKey(models.ScopeNotification, models.WindowDay, userID).String(),
	}
	if _, err := s.store.Del(ctx, keys...); err != nil {
		s.logger.WarnContext(ctx, "failed to reset user rate limits", "user_id", userID, "error", err)
		return
	}
	s.metrics.IncrementUserReset()
	observability.LogAudit(ctx, s.logger, s.auditPublisher, component, audit.EventUserLimitsReset, audit.DecisionReset,
		"user_id", userID,
	)
}

func (s *Service) increment(ctx context.Context, key models.CounterKey) (int64, error) {
	return s.incrementFor(ctx, key, key.Window().Duration())
}

func (s *Service) incrementFor(ctx context.Context, key models.CounterKey, ttl time.Duration) (int64, error) {
	return counter.IncrWindow(ctx, s.store, key.String(), ttl, s.config.AtomicIncrement)
}

func (s *Service) retryAfter(ctx context.Context, key models.CounterKey) time.Duration {
	return s.retryAfterFor(ctx, key, key.Window().Duration())
}

// retryAfterFor reads the counter's remaining lifetime. IncrWindow deletes a
// fresh counter whose expiry could not be armed, but that delete is best
// effort; a counter still found without expiry is re-armed here.
func (s *Service) retryAfterFor(ctx context.Context, key models.CounterKey, window time.Duration) time.Duration {
	ttl, err := s.store.TTL(ctx, key.String())
	if err != nil {
		return window
	}
	if ttl > 0 {
		return ttl
	}
	if ttl == counter.NoExpiry {
		if _, err := s.store.Expire(ctx, key.String(), window); err != nil {
			s.logger.WarnContext(ctx, "failed to re-arm counter expiry", "key", key.String(), "error", err)
		}
	}
	return window
}

func (s *Service) failOpen(ctx context.Context, check string, key models.CounterKey, err error) {
	s.metrics.IncrementFailOpen(check)
	s.logger.WarnContext(ctx, "rate limit check failed open",
		"check", check,
		"key", key.String(),
		"error", err,
	)
}
