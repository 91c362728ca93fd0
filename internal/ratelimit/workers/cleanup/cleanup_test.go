package cleanup

// Justification: Expiry in the memory backend is lazy. These tests pin that
// a sweep drops keys whose window has passed without anyone reading them,
// which no HTTP-level scenario can observe.

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"bulwark/internal/counter/memory"
	"bulwark/internal/ratelimit/metrics"
	clock "bulwark/pkg/testutil"
)

type CounterSweepSuite struct {
	suite.Suite
	clock   *clock.FakeClock
	store   *memory.Store
	metrics *metrics.Metrics
	service *CounterSweepService
}

func TestCounterSweepSuite(t *testing.T) {
	suite.Run(t, new(CounterSweepSuite))
}

func (s *CounterSweepSuite) SetupTest() {
	s.clock = clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s.store = memory.New(memory.WithClock(s.clock.Now))
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = New(s.store, WithMetrics(s.metrics), WithInterval(10*time.Millisecond))
}

func (s *CounterSweepSuite) TestRunOnceDropsExpiredKeys() {
	ctx := context.Background()
	_, err := s.store.IncrWithExpiry(ctx, "notif:minute:user_a", time.Minute)
	s.Require().NoError(err)
	_, err = s.store.IncrWithExpiry(ctx, "notif:day:user_a", 24*time.Hour)
	s.Require().NoError(err)

	s.clock.Advance(2 * time.Minute)

	res, err := s.service.RunOnce(ctx)
	s.Require().NoError(err)
	s.Equal(1, res.Removed)
	s.Equal(1, res.Remaining)
}

func (s *CounterSweepSuite) TestRunOnceRespectsCancellation() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.service.RunOnce(ctx)
	s.ErrorIs(err, context.Canceled)
}

func (s *CounterSweepSuite) TestStartStopsOnCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.service.Start(ctx) }()

	s.Eventually(func() bool {
		return testutil.ToFloat64(s.metrics.SweepRuns.WithLabelValues("success")) > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		s.Fail("worker did not stop")
	}
}
