// Package requestcontext carries request-scoped values through context.Context.
//
// Middleware populates the context once per request; services and stores read
// from it without depending on net/http. Every accessor degrades to a zero
// value when the key was never set, so the same code paths work in workers,
// the admin CLI and unit tests.
package requestcontext

import (
	"context"
	"time"
)

type (
	contextKeyRequestTime struct{}
	contextKeyRequestID   struct{}
	contextKeyClientIP    struct{}
	contextKeyUserAgent   struct{}
	contextKeyUserID      struct{}
	contextKeyDeviceID    struct{}
)

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(contextKeyRequestTime{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Limiter services read "now" exclusively through Now, so tests drive window
// and refill arithmetic by re-deriving the context with a later time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, contextKeyRequestTime{}, t)
}

// WithRequestID stores the correlation ID for the request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID{}, requestID)
}

// RequestID returns the correlation ID, or "" outside a request.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyRequestID{}).(string); ok {
		return v
	}
	return ""
}

// WithClientMetadata stores the resolved client IP and User-Agent.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, contextKeyClientIP{}, clientIP)
	return context.WithValue(ctx, contextKeyUserAgent{}, userAgent)
}

// ClientIP returns the client IP resolved by the metadata middleware.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyClientIP{}).(string); ok {
		return v
	}
	return ""
}

// UserAgent returns the raw User-Agent header captured for the request.
func UserAgent(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyUserAgent{}).(string); ok {
		return v
	}
	return ""
}

// WithUserID stores the authenticated actor.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeyUserID{}, userID)
}

// UserID returns the authenticated actor, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyUserID{}).(string); ok {
		return v
	}
	return ""
}

// WithDeviceID stores the caller's device identifier.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, contextKeyDeviceID{}, deviceID)
}

// DeviceID returns the device identifier, or "" when the caller sent none.
func DeviceID(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyDeviceID{}).(string); ok {
		return v
	}
	return ""
}
