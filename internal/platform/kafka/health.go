package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Pinger is satisfied by the producer.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports whether the audit sink can reach a broker.
type HealthChecker struct {
	pinger  Pinger
	timeout time.Duration
}

func NewHealthChecker(pinger Pinger) *HealthChecker {
	return &HealthChecker{
		pinger:  pinger,
		timeout: 2 * time.Second,
	}
}

// Check pings the cluster. The audit path never blocks requests, so callers
// usually register this as a non-critical readiness check.
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.pinger == nil {
		return errors.New("kafka audit sink not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if err := h.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("no kafka brokers reachable: %w", err)
	}
	return nil
}

// Name returns the check name for health reporting.
func (h *HealthChecker) Name() string {
	return "kafka"
}
