// Package httptransport assembles the admission pipeline in front of the
// protected application and mounts the operational endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dErrors "bulwark/pkg/domain-errors"
	"bulwark/pkg/platform/httputil"
	"bulwark/pkg/platform/middleware/admin"
	"bulwark/pkg/platform/middleware/auth"
	"bulwark/pkg/platform/middleware/device"
	"bulwark/pkg/platform/middleware/metadata"
	"bulwark/pkg/platform/middleware/request"
	"bulwark/pkg/platform/middleware/requesttime"

	"bulwark/internal/platform/health"
	ratelimitconfig "bulwark/internal/ratelimit/config"
	ratelimitmw "bulwark/internal/ratelimit/middleware"
	"bulwark/internal/ratelimit/models"
)

// Stage is one admission middleware.
type Stage func(http.Handler) http.Handler

// AdminRoutes mounts admin endpoints on a router.
type AdminRoutes interface {
	RegisterAdmin(r chi.Router)
}

// Deps collects everything the router wires. Nil stages are skipped so tests
// can build a partial pipeline.
type Deps struct {
	Logger   *slog.Logger
	Metadata *metadata.Middleware
	Metrics  *request.Metrics
	Gatherer prometheus.Gatherer
	Health   *health.Handler

	// Clock overrides the request time source.
	Clock func() time.Time

	Reputation  Stage
	Guard       Stage
	AuthFailure Stage

	TokenValidator auth.TokenValidator
	DeviceHeader   string

	RateLimit *ratelimitmw.Middleware

	AdminTokenHash string
	Admin          []AdminRoutes

	RequestTimeout time.Duration
	MaxBodyBytes   int64

	// App serves admitted traffic. Defaults to an acknowledgement handler.
	App http.Handler
}

// NewRouter builds the full pipeline:
//
//	request-id, recovery, client metadata, request time, request log,
//	reputation gate, intrusion guard, auth-failure observer, actor
//	extraction, then per-route limits in front of the application.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := d.App
	if app == nil {
		app = http.HandlerFunc(Accepted)
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(logger))
	if d.Metadata != nil {
		r.Use(d.Metadata.Handler)
	}
	r.Use(requesttime.MiddlewareWithClock(d.Clock))
	r.Use(request.Logger(logger))
	r.Use(request.Latency(d.Metrics, routePattern))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "not found"))
	})

	if d.Health != nil {
		d.Health.Register(r)
	}
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(ar chi.Router) {
		ar.Use(admin.RequireAdminToken(d.AdminTokenHash, logger))
		if d.MaxBodyBytes > 0 {
			ar.Use(request.BodyLimit(d.MaxBodyBytes))
		}
		for _, h := range d.Admin {
			h.RegisterAdmin(ar)
		}
		ar.HandleFunc("/admin/*", func(w http.ResponseWriter, _ *http.Request) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "not found"))
		})
	})

	r.Group(func(pr chi.Router) {
		if d.MaxBodyBytes > 0 {
			pr.Use(request.BodyLimit(d.MaxBodyBytes))
		}
		if d.RequestTimeout > 0 {
			pr.Use(request.Timeout(d.RequestTimeout))
		}
		for _, s := range []Stage{d.Reputation, d.Guard, d.AuthFailure} {
			if s != nil {
				pr.Use(s)
			}
		}
		pr.Use(device.Device(&device.DeviceConfig{HeaderName: d.DeviceHeader}))
		if d.TokenValidator != nil {
			pr.Use(auth.Authenticate(d.TokenValidator, logger))
		}

		if rl := d.RateLimit; rl != nil {
			pr.With(auth.RequireUser(logger), rl.Notification()).Post("/v1/notifications", app.ServeHTTP)
			pr.With(rl.TokenBucket(ratelimitconfig.BucketUpload, ratelimitmw.ByUser)).Post("/v1/uploads", app.ServeHTTP)
			pr.With(rl.Window(models.WindowHour), rl.TokenBucket(ratelimitconfig.BucketExport, ratelimitmw.ByUser)).Get("/v1/exports", app.ServeHTTP)
			pr.With(auth.RequireUser(logger), rl.Window(models.WindowDay), rl.TokenBucket(ratelimitconfig.BucketAI, ratelimitmw.ByUser)).Post("/v1/ai/completions", app.ServeHTTP)
		}
		pr.Handle("/*", app)
	})

	return r
}

// Accepted acknowledges admitted requests when no upstream is configured.
func Accepted(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
