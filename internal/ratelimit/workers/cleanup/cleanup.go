// Package cleanup runs the periodic sweep of the in-memory counter store.
// Redis expires keys itself; the memory backend only drops expired entries
// lazily on access, so idle keys would otherwise accumulate.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"bulwark/internal/ratelimit/metrics"
)

// CleanupResult contains the results of a sweep run.
type CleanupResult struct {
	Removed   int           // Expired keys dropped
	Remaining int           // Keys left after the sweep
	Duration  time.Duration // Time taken for the run
}

// Sweeper is implemented by counter stores that need explicit expiry.
type Sweeper interface {
	Sweep() int
	Len() int
}

type Option func(*CounterSweepService)

func WithLogger(logger *slog.Logger) Option {
	return func(s *CounterSweepService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(s *CounterSweepService) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *CounterSweepService) {
		s.metrics = m
	}
}

type CounterSweepService struct {
	store    Sweeper
	logger   *slog.Logger
	interval time.Duration
	metrics  *metrics.Metrics
}

func New(store Sweeper, opts ...Option) *CounterSweepService {
	service := &CounterSweepService{
		store:    store,
		logger:   slog.Default(),
		interval: time.Minute,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Start sweeps on every tick until ctx is cancelled.
func (s *CounterSweepService) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.Error("counter_sweep_failed", "error", err)
				s.metrics.ObserveSweep("error", 0, 0)
				continue
			}
			if res.Removed > 0 {
				s.logger.Debug("counter_sweep_completed",
					"removed", res.Removed,
					"remaining", res.Remaining,
					"duration_ms", res.Duration.Milliseconds(),
				)
			}
			s.metrics.ObserveSweep("success", res.Removed, res.Duration.Seconds())

		case <-ctx.Done():
			s.logger.Info("counter sweep worker stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// RunOnce executes a single sweep. Logging is handled by the caller (Start).
func (s *CounterSweepService) RunOnce(ctx context.Context) (*CleanupResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	removed := s.store.Sweep()
	return &CleanupResult{
		Removed:   removed,
		Remaining: s.store.Len(),
		Duration:  time.Since(start),
	}, nil
}
