// Package requesttime pins a single "now" for every stage of a request.
// Window arithmetic in the limiters, block expiry stamps and audit events all
// read the same instant, so a request that straddles a second boundary is
// still evaluated against one consistent clock.
package requesttime

import (
	"net/http"
	"time"

	"bulwark/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return MiddlewareWithClock(time.Now)(next)
}

// MiddlewareWithClock is Middleware with an injectable clock, used by the
// feature tests to move time forward between requests.
func MiddlewareWithClock(clock func() time.Time) func(http.Handler) http.Handler {
	if clock == nil {
		clock = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clock())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
