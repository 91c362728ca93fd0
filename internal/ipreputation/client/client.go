// Package client looks up address reputation from an ipapi.is-compatible API.
//
// A lookup makes at most one HTTP call: no retries, bounded by the configured
// timeout. Every failure mode is reported as ErrLookupFailed so callers take
// a single fail-open path.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"bulwark/internal/ipreputation/config"
	"bulwark/internal/ipreputation/metrics"
	"bulwark/internal/ipreputation/models"
	"bulwark/internal/platform/tracing"
	"bulwark/pkg/platform/privacy"
)

// ErrLookupFailed covers budget exhaustion, an open breaker, timeouts,
// transport errors, non-200 statuses and undecodable bodies.
var ErrLookupFailed = errors.New("ip reputation lookup failed")

// maxResponseBytes bounds the body read from the provider.
const maxResponseBytes = 256 * 1024

// Failure reasons reported to metrics.
const (
	reasonBudget    = "budget"
	reasonBreaker   = "breaker_open"
	reasonTimeout   = "timeout"
	reasonTransport = "transport"
	reasonStatus    = "status"
	reasonDecode    = "decode"
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    HTTPDoer
	budget  *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	tracer  tracing.Tracer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Client)

func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

func WithTracer(t tracing.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New builds a client from cfg. The breaker trips after five consecutive
// failures and probes again after thirty seconds.
func New(cfg *config.Config, opts ...Option) *Client {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		budget:  rate.NewLimiter(rate.Limit(cfg.LookupsPerSecond), cfg.LookupBurst),
		tracer:  tracing.NewNoop(),
		logger:  slog.Default(),
	}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ip-reputation",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			c.metrics.SetBreakerState(float64(to))
		},
	})
	return c
}

// Lookup fetches the reputation payload for ip.
func (c *Client) Lookup(ctx context.Context, ip string) (payload *models.Payload, err error) {
	ctx, span := c.tracer.Start(ctx, tracing.SpanReputationLookup,
		tracing.String(tracing.AttrIPPrefix, privacy.AnonymizeIP(ip)),
	)
	defer func() { span.End(err) }()

	if !c.budget.Allow() {
		return nil, c.fail(reasonBudget, errors.New("lookup budget exhausted"))
	}

	start := time.Now()
	out, err := c.breaker.Execute(func() (any, error) {
		return c.do(ctx, ip)
	})
	c.metrics.ObserveLookupDuration(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, c.fail(reasonBreaker, err)
		}
		var le *lookupError
		if errors.As(err, &le) {
			span.SetAttributes(tracing.Int(tracing.AttrHTTPStatus, le.status))
			return nil, c.fail(le.reason, le.err)
		}
		return nil, c.fail(reasonTransport, err)
	}
	return out.(*models.Payload), nil
}

// lookupError carries the metrics reason through the breaker.
type lookupError struct {
	reason string
	status int
	err    error
}

func (e *lookupError) Error() string { return e.reason + ": " + e.err.Error() }
func (e *lookupError) Unwrap() error { return e.err }

func (c *Client) do(ctx context.Context, ip string) (*models.Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("q", ip)
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+q.Encode(), nil)
	if err != nil {
		return nil, &lookupError{reason: reasonTransport, err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, &lookupError{reason: reasonTimeout, err: err}
		}
		return nil, &lookupError{reason: reasonTransport, err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &lookupError{
			reason: reasonStatus,
			status: resp.StatusCode,
			err:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var payload models.Payload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return nil, &lookupError{reason: reasonDecode, status: resp.StatusCode, err: err}
	}
	return &payload, nil
}

func (c *Client) fail(reason string, err error) error {
	c.metrics.IncrementLookupFailure(reason)
	return fmt.Errorf("%w: %s: %w", ErrLookupFailed, reason, err)
}

// State exposes the breaker state for health reporting.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}
