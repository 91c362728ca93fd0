package counter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bulwark/internal/counter"
	"bulwark/internal/counter/memory"
	"bulwark/pkg/testutil"
)

// =============================================================================
// Window Increment Test Suite
// =============================================================================
// Justification: Every fixed window and violation counter goes through
// IncrWindow. A counter left without expiry keeps counting across windows and
// eventually denies a client that never exceeded any single window.

// expireFailingStore fails the next `failures` Expire calls.
type expireFailingStore struct {
	counter.Store
	failures int
}

func (f *expireFailingStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if f.failures > 0 {
		f.failures--
		return false, errors.New("i/o timeout")
	}
	return f.Store.Expire(ctx, key, ttl)
}

type IncrWindowSuite struct {
	suite.Suite
	ctx   context.Context
	clock *testutil.FakeClock
	mem   *memory.Store
	store *expireFailingStore
}

func TestIncrWindowSuite(t *testing.T) {
	suite.Run(t, new(IncrWindowSuite))
}

func (s *IncrWindowSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = testutil.NewFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	s.mem = memory.New(memory.WithClock(s.clock.Now))
	s.store = &expireFailingStore{Store: s.mem}
}

func (s *IncrWindowSuite) TestArmsExpiryOnFirstIncrement() {
	for want := int64(1); want <= 2; want++ {
		count, err := counter.IncrWindow(s.ctx, s.store, "viol:sqli:203.0.113.5", time.Hour, false)
		s.Require().NoError(err)
		s.Equal(want, count)
	}

	ttl, err := s.mem.TTL(s.ctx, "viol:sqli:203.0.113.5")
	s.Require().NoError(err)
	s.Equal(time.Hour, ttl)
}

func (s *IncrWindowSuite) TestFailedExpiryDropsTheFreshKey() {
	s.store.failures = 1
	key := "notif:day:user_u"

	_, err := counter.IncrWindow(s.ctx, s.store, key, 24*time.Hour, false)
	s.Require().Error(err)

	_, found, err := s.mem.Get(s.ctx, key)
	s.Require().NoError(err)
	s.False(found, "key without expiry must not survive")

	count, err := counter.IncrWindow(s.ctx, s.store, key, 24*time.Hour, false)
	s.Require().NoError(err)
	s.Equal(int64(1), count, "next increment opens a new window")

	ttl, err := s.mem.TTL(s.ctx, key)
	s.Require().NoError(err)
	s.Equal(24*time.Hour, ttl)
}

func (s *IncrWindowSuite) TestCountsDoNotAccumulateAcrossWindows() {
	s.store.failures = 1
	key := "notif:day:user_u"

	var last int64
	for day := 0; day < 5; day++ {
		for i := 0; i < 200; i++ {
			count, err := counter.IncrWindow(s.ctx, s.store, key, 24*time.Hour, false)
			if err == nil {
				last = count
			}
		}
		s.LessOrEqual(last, int64(200), "day %d", day)
		s.clock.Advance(24*time.Hour + time.Second)
	}
}
