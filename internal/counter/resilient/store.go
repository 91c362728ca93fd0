// Package resilient wraps a counter.Store in a circuit breaker so an
// unreachable store costs callers one fast error instead of a timeout per
// request.
package resilient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"

	"bulwark/internal/counter"
)

// Settings tune the breaker.
type Settings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenFor is how long the breaker rejects calls before a half-open probe.
	OpenFor time.Duration
}

// Store decorates a counter.Store. Open-breaker rejections are reported as
// counter.ErrUnavailable; driver errors pass through wrapped with it.
type Store struct {
	next   counter.Store
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
	state  prometheus.Gauge
}

// New wraps next. reg may be nil to skip metrics.
func New(next counter.Store, settings Settings, logger *slog.Logger, reg prometheus.Registerer) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	if settings.OpenFor <= 0 {
		settings.OpenFor = 10 * time.Second
	}

	s := &Store{next: next, logger: logger}
	if reg != nil {
		s.state = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "bulwark_counter_store_breaker_state",
			Help: "Counter store circuit breaker state (0=closed, 1=half-open, 2=open)",
		})
	}

	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "counter-store",
		MaxRequests: 1,
		Timeout:     settings.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		// A caller abandoning its request says nothing about store health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			if s.state != nil {
				s.state.Set(float64(to))
			}
		},
	})
	return s
}

var _ counter.Store = (*Store)(nil)

// State exposes the breaker state for health reporting.
func (s *Store) State() gobreaker.State {
	return s.cb.State()
}

func call[T any](s *Store, fn func() (T, error)) (T, error) {
	out, err := s.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, context.Canceled) {
			return zero, err
		}
		return zero, fmt.Errorf("%w: %w", counter.ErrUnavailable, err)
	}
	return out.(T), nil
}

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	return call(s, func() (int64, error) { return s.next.Incr(ctx, key) })
}

// IncrWithExpiry delegates when the wrapped store supports it and otherwise
// runs the two-step sequence through the breaker.
func (s *Store) IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return call(s, func() (int64, error) {
		return counter.IncrWindow(ctx, s.next, key, ttl, true)
	})
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return call(s, func() (bool, error) { return s.next.Expire(ctx, key, ttl) })
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	return call(s, func() (time.Duration, error) { return s.next.TTL(ctx, key) })
}

type getResult struct {
	value string
	found bool
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	r, err := call(s, func() (getResult, error) {
		v, found, err := s.next.Get(ctx, key)
		return getResult{value: v, found: found}, err
	})
	return r.value, r.found, err
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := call(s, func() (struct{}, error) {
		return struct{}{}, s.next.Set(ctx, key, value, ttl)
	})
	return err
}

func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return call(s, func() (bool, error) { return s.next.SetNX(ctx, key, value, ttl) })
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	return call(s, func() (int64, error) { return s.next.Del(ctx, keys...) })
}

func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	return call(s, func() ([]string, error) { return s.next.Keys(ctx, pattern) })
}

func (s *Store) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	return call(s, func() (int64, error) { return s.next.SAdd(ctx, key, members...) })
}

func (s *Store) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	return call(s, func() (int64, error) { return s.next.SRem(ctx, key, members...) })
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	return call(s, func() ([]string, error) { return s.next.SMembers(ctx, key) })
}

// Ping bypasses the breaker so readiness reflects the store itself.
func (s *Store) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}
