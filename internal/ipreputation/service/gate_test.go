package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"bulwark/internal/counter/memory"
	"bulwark/internal/counter/mocks"
	"bulwark/internal/ipreputation/config"
	"bulwark/internal/ipreputation/metrics"
	"bulwark/internal/ipreputation/models"
	"bulwark/pkg/platform/audit"
	"bulwark/pkg/platform/audit/publisher"
	clock "bulwark/pkg/testutil"
)

type fakeLookup struct {
	calls   atomic.Int32
	payload *models.Payload
	err     error
	release chan struct{}
}

func (f *fakeLookup) Lookup(_ context.Context, ip string) (*models.Payload, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	p := *f.payload
	p.IP = ip
	return &p, nil
}

// =============================================================================
// Reputation Gate Test Suite
// =============================================================================
// Justification: The gate's state machine (allowlist, cache, lookup, fail-open)
// decides whether third-party quota is spent and whether outages leak into
// user-facing denials.

type GateSuite struct {
	suite.Suite
	clock   *clock.FakeClock
	store   *memory.Store
	lookup  *fakeLookup
	cfg     *config.Config
	sink    *audit.MemorySink
	pub     *publisher.Publisher
	metrics *metrics.Metrics
	gate    *Gate
	ctx     context.Context
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupTest() {
	s.clock = clock.NewFakeClock(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))
	s.store = memory.New(memory.WithClock(s.clock.Now))
	s.lookup = &fakeLookup{payload: &models.Payload{IsVPN: true, Location: models.Location{CountryCode: "DE"}}}
	s.cfg = config.DefaultConfig()
	s.sink = audit.NewMemorySink()
	s.pub = publisher.NewPublisher(s.sink)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.ctx = context.Background()
	s.gate = s.newGate(false)
}

func (s *GateSuite) TearDownTest() {
	s.gate.Close()
	s.pub.Close()
}

func (s *GateSuite) newGate(devMode bool) *Gate {
	g, err := NewGate(s.store, s.lookup, s.cfg, devMode,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithAuditPublisher(s.pub),
	)
	s.Require().NoError(err)
	return g
}

func (s *GateSuite) TestLookupBlocksAndCaches() {
	d := s.gate.Evaluate(s.ctx, "198.51.100.7")
	s.False(d.Allowed)
	s.Equal(models.SourceLookup, d.Source)
	s.Equal([]string{models.ReasonVPN}, d.Reasons)

	ttl, err := s.store.TTL(s.ctx, models.CacheKey("198.51.100.7"))
	s.Require().NoError(err)
	s.Equal(24*time.Hour, ttl)

	again := s.gate.Evaluate(s.ctx, "198.51.100.7")
	s.False(again.Allowed)
	s.Equal(models.SourceCache, again.Source)
	s.Equal("DE", again.Verdict.Location.CountryCode)
	s.Equal(int32(1), s.lookup.calls.Load())
	s.Contains(s.sink.Actions(), string(audit.EventReputationBlocked))
}

func (s *GateSuite) TestCacheExpiryTriggersFreshLookup() {
	s.gate.Evaluate(s.ctx, "198.51.100.7")
	s.clock.Advance(24*time.Hour + time.Second)
	s.gate.Evaluate(s.ctx, "198.51.100.7")
	s.Equal(int32(2), s.lookup.calls.Load())
}

func (s *GateSuite) TestLookupFailureAllowsWithoutCaching() {
	s.lookup.err = errors.New("ip reputation lookup failed: timeout")

	d := s.gate.Evaluate(s.ctx, "198.51.100.7")
	s.True(d.Allowed)
	s.True(d.Degraded)
	s.Equal(models.SourceFailOpen, d.Source)

	_, found, err := s.store.Get(s.ctx, models.CacheKey("198.51.100.7"))
	s.Require().NoError(err)
	s.False(found)
}

func (s *GateSuite) TestAllowlist() {
	s.Run("dev mode bypasses loopback", func() {
		g := s.newGate(true)
		defer g.Close()
		d := g.Evaluate(s.ctx, "127.0.0.1")
		s.True(d.Allowed)
		s.Equal(models.SourceAllowlist, d.Source)
	})

	s.Run("loopback is looked up outside dev mode", func() {
		before := s.lookup.calls.Load()
		s.gate.Evaluate(s.ctx, "::1")
		s.Equal(before+1, s.lookup.calls.Load())
	})

	s.Run("configured cidr", func() {
		s.cfg.Allowlist = []string{"10.0.0.0/8"}
		g := s.newGate(false)
		defer g.Close()
		d := g.Evaluate(s.ctx, "10.1.2.3")
		s.Equal(models.SourceAllowlist, d.Source)
	})
}

func (s *GateSuite) TestDisabledAllowsEverything() {
	s.cfg.Enabled = false
	g := s.newGate(false)
	defer g.Close()

	d := g.Evaluate(s.ctx, "198.51.100.7")
	s.True(d.Allowed)
	s.Equal(models.SourceDisabled, d.Source)
	s.Zero(s.lookup.calls.Load())
}

func (s *GateSuite) TestCorruptCacheEntryIsReplaced() {
	s.Require().NoError(s.store.Set(s.ctx, models.CacheKey("198.51.100.7"), "{not json", time.Hour))

	d := s.gate.Evaluate(s.ctx, "198.51.100.7")
	s.Equal(models.SourceLookup, d.Source)
	s.Equal(int32(1), s.lookup.calls.Load())
}

func (s *GateSuite) TestConcurrentMissesShareOneLookup() {
	s.lookup.release = make(chan struct{})

	var wg sync.WaitGroup
	results := make([]*models.Decision, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.gate.Evaluate(s.ctx, "198.51.100.9")
		}()
	}
	s.Eventually(func() bool { return s.lookup.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(s.lookup.release)
	wg.Wait()

	s.Equal(int32(1), s.lookup.calls.Load())
	for _, d := range results {
		s.False(d.Allowed)
	}
}

func (s *GateSuite) TestInvalidate() {
	s.gate.Evaluate(s.ctx, "198.51.100.7")
	s.Require().NoError(s.gate.Invalidate(s.ctx, "198.51.100.7"))

	_, found, _ := s.store.Get(s.ctx, models.CacheKey("198.51.100.7"))
	s.False(found)
}

func (s *GateSuite) TestInvalidateAsyncCompletesBeforeClose() {
	s.gate.Evaluate(s.ctx, "198.51.100.7")
	s.gate.InvalidateAsync("198.51.100.7")
	s.gate.Close()

	_, found, _ := s.store.Get(s.ctx, models.CacheKey("198.51.100.7"))
	s.False(found)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Invalidations.WithLabelValues("success")))

	s.gate.InvalidateAsync("198.51.100.8")
}

func TestGateStoreFailuresFailOpen(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	lookup := &fakeLookup{payload: &models.Payload{}}

	store.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", false, errors.New("connection refused"))
	store.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))
	store.EXPECT().Del(gomock.Any(), gomock.Any()).Return(int64(0), errors.New("connection refused"))

	g, err := NewGate(store, lookup, config.DefaultConfig(), false,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatal(err)
	}

	d := g.Evaluate(context.Background(), "198.51.100.7")
	if !d.Allowed || d.Source != models.SourceLookup {
		t.Fatalf("expected clean lookup despite store errors, got %+v", d)
	}

	g.InvalidateAsync("198.51.100.7")
	g.Close()
}
