// Package tracing provides a small tracing abstraction over OpenTelemetry.
//
// Components depend on the Tracer interface rather than the OpenTelemetry API
// so tests can run with NoopTracer and production wiring can swap exporters
// without touching call sites.
//
// Implementations:
//   - NoopTracer: for tests and when tracing is disabled
//   - OTelTracer: OpenTelemetry adapter for production
package tracing

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks the span as failed.
	// End must be called exactly once, typically via defer.
	End(err error)

	SetAttributes(attrs ...Attribute)

	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a new span. The returned context carries the span and
	// should be passed to child operations.
	//
	// Example:
	//   ctx, span := tr.Start(ctx, tracing.SpanReputationLookup,
	//       tracing.String(tracing.AttrIPPrefix, privacy.AnonymizeIP(ip)),
	//   )
	//   defer span.End(err)
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanReputationEvaluate = "ipreputation.evaluate"
	SpanReputationLookup   = "ipreputation.lookup"
	SpanIntrusionScan      = "intrusion.scan"
)

// Attribute keys.
const (
	AttrIPPrefix   = "client.ip_prefix"
	AttrCacheHit   = "cache.hit"
	AttrBlocked    = "decision.blocked"
	AttrSource     = "decision.source"
	AttrReasons    = "decision.reasons"
	AttrHTTPStatus = "http.status_code"
	AttrCategory   = "intrusion.category"
	AttrShared     = "singleflight.shared"
)
