// Package tokenbucket implements continuous-refill admission for named
// resources such as uploads and exports.
//
// Refill is applied in whole intervals: after k full intervals since the last
// refill, k*rate tokens are added (capped at capacity) and the refill point
// advances by k intervals, so partial progress toward the next interval is
// never lost. The bucket is stored as JSON under the caller's key.
//
// The read-compute-write cycle is not atomic. Two concurrent requests for the
// same key may both consume the last token; this is accepted.
package tokenbucket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	"bulwark/internal/counter"
	"bulwark/internal/platform/observability"
	"bulwark/internal/ratelimit/config"
	"bulwark/internal/ratelimit/metrics"
	"bulwark/internal/ratelimit/models"
	"bulwark/pkg/platform/audit"
	"bulwark/pkg/requestcontext"
)

const (
	component   = "ratelimit"
	checkBucket = "token_bucket"
)

type Service struct {
	store          counter.Store
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store counter.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("counter store is required")
	}
	svc := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CheckTokenBucket consumes one token from the bucket at key, creating a full
// bucket on first use. refillRate tokens are added per interval.
//
// Invalid parameters, store failures and undecodable records all allow the
// request; a corrupt record is replaced by a fresh bucket.
func (s *Service) CheckTokenBucket(ctx context.Context, key string, capacity int, refillRate float64, interval time.Duration) *models.BucketResult {
	start := time.Now()
	defer func() { s.metrics.ObserveCheckDuration(checkBucket, time.Since(start).Seconds()) }()

	if capacity < 1 || refillRate <= 0 || interval <= 0 {
		s.metrics.IncrementInvalidBucket()
		s.logger.ErrorContext(ctx, "invalid token bucket parameters, allowing request",
			"key", key,
			"capacity", capacity,
			"refill_rate", refillRate,
			"interval", interval,
		)
		return &models.BucketResult{Allowed: true, Capacity: capacity, Degraded: true}
	}

	now := requestcontext.Now(ctx)
	state, err := s.load(ctx, key, capacity, now)
	if err != nil {
		s.metrics.IncrementFailOpen(checkBucket)
		s.logger.WarnContext(ctx, "token bucket check failed open", "key", key, "error", err)
		return &models.BucketResult{Allowed: true, Remaining: capacity - 1, Capacity: capacity, Degraded: true}
	}

	refill(state, capacity, refillRate, interval, now)

	result := &models.BucketResult{Capacity: capacity}
	if state.Tokens >= 1 {
		state.Tokens--
		result.Allowed = true
	} else {
		result.RetryAfter = untilNextRefill(state, interval, now)
	}
	result.Remaining = int(math.Floor(state.Tokens))

	if err := s.save(ctx, key, state, capacity, refillRate, interval); err != nil {
		s.metrics.IncrementFailOpen(checkBucket)
		s.logger.WarnContext(ctx, "failed to persist token bucket", "key", key, "error", err)
		if !result.Allowed {
			// The denial was computed from state we could not persist; the
			// request is allowed like any other store failure.
			return &models.BucketResult{Allowed: true, Capacity: capacity, Degraded: true}
		}
		result.Degraded = true
	}

	s.metrics.ObserveDecision(checkBucket, result.Allowed)
	if !result.Allowed {
		observability.LogAudit(ctx, s.logger, s.auditPublisher, component, audit.EventTokenBucketExhausted, audit.DecisionDenied,
			"key", key,
			"capacity", capacity,
			"retry_after_seconds", result.RetryAfterSeconds(),
		)
	}
	return result
}

// CheckPreset runs CheckTokenBucket with a named preset's parameters.
func (s *Service) CheckPreset(ctx context.Context, key string, preset config.BucketPreset) *models.BucketResult {
	return s.CheckTokenBucket(ctx, key, preset.Capacity, preset.RefillRate, preset.Interval)
}

// Peek returns the bucket's current state with refill applied, without
// consuming or persisting anything. found is false for an untouched bucket.
func (s *Service) Peek(ctx context.Context, key string, preset config.BucketPreset) (tokens float64, found bool, err error) {
	raw, found, err := s.store.Get(ctx, key)
	if err != nil || !found {
		return float64(preset.Capacity), found, err
	}
	var state models.BucketState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return float64(preset.Capacity), false, nil
	}
	refill(&state, preset.Capacity, preset.RefillRate, preset.Interval, requestcontext.Now(ctx))
	return state.Tokens, true, nil
}

// Reset deletes the bucket so the next request starts full.
func (s *Service) Reset(ctx context.Context, key string) error {
	_, err := s.store.Del(ctx, key)
	return err
}

func (s *Service) load(ctx context.Context, key string, capacity int, now time.Time) (*models.BucketState, error) {
	raw, found, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	fresh := &models.BucketState{Tokens: float64(capacity), LastRefill: now.UnixMilli()}
	if !found {
		return fresh, nil
	}

	var state models.BucketState
	if err := json.Unmarshal([]byte(raw), &state); err != nil || !validState(state) {
		s.metrics.IncrementCorruptBucket()
		s.logger.WarnContext(ctx, "corrupt token bucket record reset", "key", key)
		return fresh, nil
	}
	if state.Tokens > float64(capacity) {
		state.Tokens = float64(capacity)
	}
	return &state, nil
}

func validState(st models.BucketState) bool {
	return st.Tokens >= 0 && !math.IsNaN(st.Tokens) && !math.IsInf(st.Tokens, 0) && st.LastRefill > 0
}

func (s *Service) save(ctx context.Context, key string, state *models.BucketState, capacity int, refillRate float64, interval time.Duration) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, key, string(raw), bucketTTL(capacity, refillRate, interval))
}

// refill applies whole elapsed intervals. A clock that moved backwards
// yields zero intervals.
func refill(state *models.BucketState, capacity int, refillRate float64, interval time.Duration, now time.Time) {
	elapsedMs := now.UnixMilli() - state.LastRefill
	intervalMs := interval.Milliseconds()
	if intervalMs <= 0 {
		intervalMs = 1
	}
	elapsed := elapsedMs / intervalMs
	if elapsed <= 0 {
		return
	}
	state.Tokens = math.Min(float64(capacity), state.Tokens+float64(elapsed)*refillRate)
	state.LastRefill += elapsed * intervalMs
}

func untilNextRefill(state *models.BucketState, interval time.Duration, now time.Time) time.Duration {
	next := time.UnixMilli(state.LastRefill).Add(interval)
	if d := next.Sub(now); d > 0 {
		return d
	}
	return interval
}

// bucketTTL outlives a full refill from empty by one interval, so an idle
// bucket is only dropped once it would be full anyway.
func bucketTTL(capacity int, refillRate float64, interval time.Duration) time.Duration {
	intervals := math.Ceil(float64(capacity) / refillRate)
	ttl := time.Duration(intervals+1) * interval
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}
