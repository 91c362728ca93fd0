package httptransport

import (
	"fmt"
	"log/slog"
	"net/http"
	proxy "net/http/httputil"
	"net/url"

	dErrors "bulwark/pkg/domain-errors"
	"bulwark/pkg/platform/httputil"
	"bulwark/pkg/requestcontext"
)

// NewUpstream forwards admitted requests to the protected application.
func NewUpstream(rawURL string, logger *slog.Logger) (http.Handler, error) {
	target, err := url.Parse(rawURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q", rawURL)
	}
	rp := proxy.NewSingleHostReverseProxy(target)
	base := rp.Director
	rp.Director = func(r *http.Request) {
		base(r)
		if id := requestcontext.RequestID(r.Context()); id != "" {
			r.Header.Set("X-Request-ID", id)
		}
		if user := requestcontext.UserID(r.Context()); user != "" {
			r.Header.Set("X-Bulwark-User", user)
		}
	}
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.ErrorContext(r.Context(), "upstream request failed",
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "upstream unavailable"))
	}
	return rp, nil
}
