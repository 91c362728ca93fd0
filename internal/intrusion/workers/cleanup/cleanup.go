// Package cleanup prunes the blocked-ip index. Block records expire by TTL
// but their index members do not, so listings would grow without it.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"bulwark/internal/intrusion/metrics"
)

// Pruner drops index members whose block has expired.
type Pruner interface {
	PruneIndex(ctx context.Context) (removed, remaining int, err error)
}

type Option func(*IndexPruneService)

func WithLogger(logger *slog.Logger) Option {
	return func(s *IndexPruneService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(s *IndexPruneService) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *IndexPruneService) {
		s.metrics = m
	}
}

type IndexPruneService struct {
	pruner   Pruner
	logger   *slog.Logger
	interval time.Duration
	metrics  *metrics.Metrics
}

func New(pruner Pruner, opts ...Option) *IndexPruneService {
	service := &IndexPruneService{
		pruner:   pruner,
		logger:   slog.Default(),
		interval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Start prunes on every tick until ctx is cancelled. A failed run is logged
// and retried on the next tick.
func (s *IndexPruneService) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("blocked_index_prune_failed", "error", err)
			}
		case <-ctx.Done():
			s.logger.Info("blocked index worker stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

func (s *IndexPruneService) RunOnce(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	removed, remaining, err := s.pruner.PruneIndex(ctx)
	if err != nil {
		s.metrics.IncrementCleanupRun("error")
		return err
	}
	s.metrics.IncrementCleanupRun("success")
	if removed > 0 {
		s.logger.Debug("blocked_index_pruned", "removed", removed, "remaining", remaining)
	}
	return nil
}
