package tokenbucket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"bulwark/internal/counter/memory"
	"bulwark/internal/counter/mocks"
	"bulwark/internal/ratelimit/config"
	"bulwark/internal/ratelimit/metrics"
	"bulwark/internal/ratelimit/models"
	"bulwark/pkg/requestcontext"
	clock "bulwark/pkg/testutil"
)

// =============================================================================
// Token Bucket Test Suite
// =============================================================================
// Justification: Refill arithmetic is easy to get subtly wrong (lost partial
// intervals, overflow past capacity, clock skew). Tests drive time through the
// request context to pin each rule exactly.

type BucketSuite struct {
	suite.Suite
	clock *clock.FakeClock
	store *memory.Store
	svc   *Service
}

func TestBucketSuite(t *testing.T) {
	suite.Run(t, new(BucketSuite))
}

func (s *BucketSuite) SetupTest() {
	s.clock = clock.NewFakeClock(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	s.store = memory.New(memory.WithClock(s.clock.Now))
	svc, err := New(s.store,
		WithMetrics(metrics.New(prometheus.NewRegistry())),
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	)
	s.Require().NoError(err)
	s.svc = svc
}

func (s *BucketSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.clock.Now())
}

func (s *BucketSuite) check(key string) *models.BucketResult {
	return s.svc.CheckTokenBucket(s.ctx(), key, 3, 1, 10*time.Second)
}

func (s *BucketSuite) stored(key string) models.BucketState {
	raw, found, err := s.store.Get(context.Background(), key)
	s.Require().NoError(err)
	s.Require().True(found)
	var st models.BucketState
	s.Require().NoError(json.Unmarshal([]byte(raw), &st))
	return st
}

func (s *BucketSuite) TestFreshBucketAllowsCapacityThenDenies() {
	for i := range 3 {
		res := s.check("bucket:export:user_a")
		s.Require().True(res.Allowed, "request %d", i+1)
		s.Equal(2-i, res.Remaining)
	}
	denied := s.check("bucket:export:user_a")
	s.False(denied.Allowed)
	s.Equal(10*time.Second, denied.RetryAfter)
	s.Equal(0, denied.Remaining)
}

func (s *BucketSuite) TestRefillGrantsExactlyAccruedTokens() {
	for range 3 {
		s.check("k")
	}
	s.Require().False(s.check("k").Allowed)

	s.clock.Advance(10 * time.Second)
	s.True(s.check("k").Allowed, "one interval accrues one token")
	s.False(s.check("k").Allowed)
}

func (s *BucketSuite) TestPartialIntervalIsKept() {
	for range 3 {
		s.check("k")
	}
	start := s.stored("k").LastRefill

	s.clock.Advance(15 * time.Second)
	s.True(s.check("k").Allowed)

	st := s.stored("k")
	s.Equal(start+10_000, st.LastRefill, "refill point advances by whole intervals only")

	s.clock.Advance(5 * time.Second)
	s.True(s.check("k").Allowed, "the carried-over 5s completes the next interval")
}

func (s *BucketSuite) TestRetryAfterCountsToNextBoundary() {
	for range 3 {
		s.check("k")
	}
	s.clock.Advance(4 * time.Second)
	res := s.check("k")
	s.False(res.Allowed)
	s.Equal(6*time.Second, res.RetryAfter)
	s.Equal(6, res.RetryAfterSeconds())
}

func (s *BucketSuite) TestRefillCapsAtCapacity() {
	s.check("k")
	s.clock.Advance(time.Hour)
	res := s.check("k")
	s.True(res.Allowed)
	s.Equal(2, res.Remaining)
	s.LessOrEqual(s.stored("k").Tokens, 3.0)
}

func (s *BucketSuite) TestClockSkewBackwardsAddsNothing() {
	for range 3 {
		s.check("k")
	}
	s.clock.Advance(-time.Minute)
	s.False(s.check("k").Allowed)
}

func (s *BucketSuite) TestTTLOutlivesFullRefill() {
	s.check("k")
	ttl, err := s.store.TTL(context.Background(), "k")
	s.Require().NoError(err)
	s.Equal(40*time.Second, ttl, "three intervals to refill plus one")

	s.Equal(time.Second, bucketTTL(1, 100, time.Millisecond), "never below one second")
}

func (s *BucketSuite) TestCorruptRecordIsReset() {
	s.Require().NoError(s.store.Set(context.Background(), "k", "{not json", time.Minute))

	res := s.check("k")
	s.True(res.Allowed)
	s.Equal(2, res.Remaining)
	s.Equal(1.0, testutil.ToFloat64(s.svc.metrics.BucketsCorrupt))

	s.Require().NoError(s.store.Set(context.Background(), "n", `{"tokens":-4,"lastRefill":1}`, time.Minute))
	s.True(s.check("n").Allowed, "out-of-range values are corrupt too")
}

func (s *BucketSuite) TestInvalidParametersAllow() {
	for _, tc := range []struct {
		capacity int
		rate     float64
		interval time.Duration
	}{
		{0, 1, time.Second},
		{1, 0, time.Second},
		{1, 1, 0},
	} {
		res := s.svc.CheckTokenBucket(s.ctx(), "k", tc.capacity, tc.rate, tc.interval)
		s.True(res.Allowed)
		s.True(res.Degraded)
	}
	s.Equal(0, s.store.Len(), "invalid checks never touch the store")
}

func (s *BucketSuite) TestPresetPeekAndReset() {
	preset := config.BucketPreset{Capacity: 2, RefillRate: 1, Interval: time.Minute}

	tokens, found, err := s.svc.Peek(s.ctx(), "p", preset)
	s.Require().NoError(err)
	s.False(found)
	s.Equal(2.0, tokens)

	s.True(s.svc.CheckPreset(s.ctx(), "p", preset).Allowed)
	tokens, found, err = s.svc.Peek(s.ctx(), "p", preset)
	s.Require().NoError(err)
	s.True(found)
	s.Equal(1.0, tokens)

	s.Require().NoError(s.svc.Reset(s.ctx(), "p"))
	want := &models.BucketResult{Allowed: true, Remaining: 1, Capacity: 2}
	if diff := cmp.Diff(want, s.svc.CheckPreset(s.ctx(), "p", preset)); diff != "" {
		s.Failf("unexpected result after reset", "(-want +got):\n%s", diff)
	}
}

func TestStoreFailuresAllow(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	svc, err := New(store, WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	t.Run("read failure", func(t *testing.T) {
		store.EXPECT().Get(gomock.Any(), "k").Return("", false, errors.New("timeout"))
		res := svc.CheckTokenBucket(ctx, "k", 1, 1, time.Second)
		if !res.Allowed || !res.Degraded {
			t.Fatalf("want degraded allow, got %+v", res)
		}
	})

	t.Run("write failure on a denial", func(t *testing.T) {
		empty := `{"tokens":0,"lastRefill":` + jsonInt(time.Now().UnixMilli()) + `}`
		store.EXPECT().Get(gomock.Any(), "k").Return(empty, true, nil)
		store.EXPECT().Set(gomock.Any(), "k", gomock.Any(), gomock.Any()).Return(errors.New("timeout"))
		res := svc.CheckTokenBucket(ctx, "k", 1, 1, time.Hour)
		if !res.Allowed || !res.Degraded {
			t.Fatalf("want degraded allow, got %+v", res)
		}
	})
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
