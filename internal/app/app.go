// Package app is the composition root. It turns a loaded Config into the
// HTTP handler plus the background workers, so the server binary and the
// feature suite run the same wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"bulwark/internal/counter"
	"bulwark/internal/counter/memory"
	counterredis "bulwark/internal/counter/redis"
	"bulwark/internal/counter/resilient"
	intrusiondetector "bulwark/internal/intrusion/detector"
	intrusionhandler "bulwark/internal/intrusion/handler"
	intrusionmetrics "bulwark/internal/intrusion/metrics"
	intrusionmw "bulwark/internal/intrusion/middleware"
	intrusionservice "bulwark/internal/intrusion/service"
	intrusioncleanup "bulwark/internal/intrusion/workers/cleanup"
	reputationclient "bulwark/internal/ipreputation/client"
	reputationhandler "bulwark/internal/ipreputation/handler"
	reputationmetrics "bulwark/internal/ipreputation/metrics"
	reputationmw "bulwark/internal/ipreputation/middleware"
	reputationservice "bulwark/internal/ipreputation/service"
	"bulwark/internal/platform/config"
	"bulwark/internal/platform/health"
	"bulwark/internal/platform/kafka"
	"bulwark/internal/platform/kafka/producer"
	"bulwark/internal/platform/observability"
	platformredis "bulwark/internal/platform/redis"
	"bulwark/internal/platform/tracing"
	ratelimithandler "bulwark/internal/ratelimit/handler"
	ratelimitmetrics "bulwark/internal/ratelimit/metrics"
	ratelimitmw "bulwark/internal/ratelimit/middleware"
	"bulwark/internal/ratelimit/service/tiered"
	"bulwark/internal/ratelimit/service/tokenbucket"
	countersweep "bulwark/internal/ratelimit/workers/cleanup"
	httptransport "bulwark/internal/transport/http"
	"bulwark/pkg/platform/audit"
	"bulwark/pkg/platform/audit/publisher"
	"bulwark/pkg/platform/middleware/auth"
	"bulwark/pkg/platform/middleware/metadata"
	"bulwark/pkg/platform/middleware/request"
)

// Options override pieces of the wiring. The zero value builds from config
// alone.
type Options struct {
	// Store replaces the configured counter store.
	Store counter.Store
	// Clock drives request time and the in-process store.
	Clock func() time.Time
	// AuditSink replaces the configured sink.
	AuditSink audit.Sink
	// HTTPClient is used for reputation lookups.
	HTTPClient reputationclient.HTTPDoer
	// App replaces the upstream proxy.
	App http.Handler
	// Registry collects metrics. A fresh one is created when nil.
	Registry *prometheus.Registry
}

// App holds the assembled server.
type App struct {
	Handler  http.Handler
	Store    counter.Store
	Registry *prometheus.Registry

	workers []func(ctx context.Context) error
	closers []func()
	logger  *slog.Logger
}

// Build wires every component from cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	a := &App{Registry: reg, logger: logger}
	healthHandler := health.New(cfg.Environment)

	store, err := a.buildStore(ctx, cfg, opts, healthHandler)
	if err != nil {
		return nil, err
	}
	a.Store = store

	pub, err := a.buildAuditPublisher(cfg, opts, healthHandler)
	if err != nil {
		a.Close()
		return nil, err
	}

	tracer := tracing.Tracer(tracing.NewNoop())
	if cfg.Tracing.Enabled {
		tracer = tracing.NewOTel()
	}

	// Rate limiting.
	rlMetrics := ratelimitmetrics.New(reg)
	windows, err := tiered.New(store,
		tiered.WithConfig(&cfg.RateLimit),
		tiered.WithLogger(logger),
		tiered.WithMetrics(rlMetrics),
		tiered.WithAuditPublisher(pub),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build tiered limiter: %w", err)
	}
	buckets, err := tokenbucket.New(store,
		tokenbucket.WithLogger(logger),
		tokenbucket.WithMetrics(rlMetrics),
		tokenbucket.WithAuditPublisher(pub),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build token bucket limiter: %w", err)
	}
	if sweeper, ok := store.(countersweep.Sweeper); ok {
		sweep := countersweep.New(sweeper, countersweep.WithLogger(logger), countersweep.WithMetrics(rlMetrics))
		a.workers = append(a.workers, sweep.Start)
	}

	// Reputation.
	repMetrics := reputationmetrics.New(reg)
	clientOpts := []reputationclient.Option{
		reputationclient.WithLogger(logger),
		reputationclient.WithMetrics(repMetrics),
		reputationclient.WithTracer(tracer),
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, reputationclient.WithHTTPClient(opts.HTTPClient))
	}
	repCfg := cfg.IPReputation
	if repCfg.Enabled && repCfg.APIURL == "" {
		logger.Warn("ip reputation enabled without api_url, disabling")
		repCfg.Enabled = false
	}
	gate, err := reputationservice.NewGate(store, reputationclient.New(&repCfg, clientOpts...), &repCfg, cfg.DevMode,
		reputationservice.WithLogger(logger),
		reputationservice.WithMetrics(repMetrics),
		reputationservice.WithTracer(tracer),
		reputationservice.WithAuditPublisher(pub),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build reputation gate: %w", err)
	}
	a.closers = append(a.closers, gate.Close)

	// Intrusion detection.
	intMetrics := intrusionmetrics.New(reg)
	intrusion, err := intrusionservice.New(store, &cfg.Intrusion, cfg.DevMode,
		intrusionservice.WithLogger(logger),
		intrusionservice.WithMetrics(intMetrics),
		intrusionservice.WithAuditPublisher(pub),
		intrusionservice.WithReputationInvalidator(gate),
		intrusionservice.WithAtomicIncrement(cfg.RateLimit.AtomicIncrement),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build intrusion service: %w", err)
	}
	detector, err := intrusiondetector.New(&cfg.Intrusion)
	if err != nil {
		a.Close()
		return nil, err
	}
	prune := intrusioncleanup.New(intrusion,
		intrusioncleanup.WithLogger(logger),
		intrusioncleanup.WithMetrics(intMetrics),
		intrusioncleanup.WithInterval(cfg.Intrusion.CleanupInterval),
	)
	a.workers = append(a.workers, prune.Start)

	// Transport.
	proxies, err := metadata.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		a.Close()
		return nil, err
	}
	appHandler := opts.App
	if appHandler == nil && cfg.Server.UpstreamURL != "" {
		appHandler, err = httptransport.NewUpstream(cfg.Server.UpstreamURL, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	guard := intrusionmw.New(intrusion, detector, intMetrics, logger)
	deps := httptransport.Deps{
		Logger:         logger,
		Metadata:       metadata.NewMiddleware(&metadata.Config{TrustedProxies: proxies}),
		Metrics:        request.NewMetrics(reg),
		Gatherer:       reg,
		Health:         healthHandler,
		Clock:          opts.Clock,
		Guard:          guard.Guard,
		AuthFailure:    guard.AuthFailureObserver,
		DeviceHeader:   cfg.Server.DeviceHeader,
		RateLimit:      ratelimitmw.New(windows, buckets, &cfg.RateLimit, logger),
		AdminTokenHash: cfg.Admin.TokenHash,
		Admin: []httptransport.AdminRoutes{
			ratelimithandler.New(windows, buckets, &cfg.RateLimit, logger),
			reputationhandler.New(gate, logger),
			intrusionhandler.New(intrusion, cfg.Intrusion.TemporaryBlockDuration, logger),
		},
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		App:            appHandler,
	}
	if repCfg.Enabled {
		deps.Reputation = reputationmw.New(gate, &repCfg, logger).Gate
	}
	if cfg.Auth.SigningKey != "" {
		deps.TokenValidator = auth.NewHMACVerifier(cfg.Auth.SigningKey, cfg.Auth.Issuer)
	}
	a.Handler = httptransport.NewRouter(deps)
	return a, nil
}

func (a *App) buildStore(ctx context.Context, cfg *config.Config, opts Options, h *health.Handler) (counter.Store, error) {
	if opts.Store != nil {
		return opts.Store, nil
	}
	if cfg.Redis.URL == "" {
		a.logger.Warn("redis not configured, using in-process counter store")
		var memOpts []memory.Option
		if opts.Clock != nil {
			memOpts = append(memOpts, memory.WithClock(opts.Clock))
		}
		return memory.New(memOpts...), nil
	}

	client, err := platformredis.New(ctx, cfg.Redis, platformredis.NewPoolMetrics(a.Registry))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.workers = append(a.workers, func(ctx context.Context) error {
		return client.RunPoolStatsRecorder(ctx, 15*time.Second)
	})
	h.RegisterCheck("redis", client.Health)

	return resilient.New(counterredis.New(client.Client), resilient.Settings{
		ConsecutiveFailures: cfg.Redis.BreakerFailures,
		OpenFor:             cfg.Redis.BreakerOpenFor,
	}, a.logger, a.Registry), nil
}

func (a *App) buildAuditPublisher(cfg *config.Config, opts Options, h *health.Handler) (observability.AuditPublisher, error) {
	sink := opts.AuditSink
	if sink == nil && cfg.Kafka.Brokers != "" {
		prod, err := producer.New(producer.Config{
			Brokers:         cfg.Kafka.Brokers,
			Acks:            cfg.Kafka.Acks,
			DeliveryTimeout: 10 * time.Second,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { prod.Close(5 * time.Second) })
		checker := kafka.NewHealthChecker(prod)
		// Audit delivery never gates traffic; report but do not fail readiness.
		h.RegisterCheck(checker.Name(), func(ctx context.Context) error {
			if err := checker.Check(ctx); err != nil {
				a.logger.WarnContext(ctx, "audit sink degraded", "error", err)
			}
			return nil
		})
		sink = producer.NewAuditSink(prod, cfg.Kafka.Topic)
	}
	if sink == nil {
		sink = audit.NewLogSink(a.logger)
	}
	pub := publisher.NewPublisher(sink,
		publisher.WithAsyncBuffer(1024),
		publisher.WithPublisherLogger(a.logger),
	)
	a.closers = append(a.closers, pub.Close)
	return pub, nil
}

// Run starts the workers and blocks until ctx is cancelled or one fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range a.workers {
		g.Go(func() error {
			if err := w(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
