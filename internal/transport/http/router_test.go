package httptransport

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"bulwark/internal/platform/health"
	"bulwark/pkg/platform/middleware/admin"
	"bulwark/pkg/platform/middleware/request"
)

// =============================================================================
// Router Test Suite
// =============================================================================
// Justification: the order of stages is part of the gateway contract. A
// blocked IP must never reach the intrusion scan and admin calls must never
// pass through the public gates.

type RouterSuite struct {
	suite.Suite
	mu    sync.Mutex
	trace []string
	token string
	hash  string
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupSuite() {
	s.token = "router-admin"
	hash, err := admin.HashToken(s.token)
	s.Require().NoError(err)
	s.hash = hash
}

func (s *RouterSuite) SetupTest() {
	s.trace = nil
}

func (s *RouterSuite) stage(name string, deny bool) Stage {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.mu.Lock()
			s.trace = append(s.trace, name)
			s.mu.Unlock()
			if deny {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type adminStub struct{}

func (adminStub) RegisterAdmin(r chi.Router) {
	r.Get("/admin/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *RouterSuite) router(denyReputation bool) http.Handler {
	reg := prometheus.NewRegistry()
	return NewRouter(Deps{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:        request.NewMetrics(reg),
		Gatherer:       reg,
		Health:         health.New("production"),
		Reputation:     s.stage("reputation", denyReputation),
		Guard:          s.stage("guard", false),
		AuthFailure:    s.stage("auth_failure", false),
		AdminTokenHash: s.hash,
		Admin:          []AdminRoutes{adminStub{}},
	})
}

func serve(h http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) TestStagesRunInOrder() {
	rec := serve(s.router(false), http.MethodGet, "/anything", nil)
	s.Equal(http.StatusAccepted, rec.Code)
	s.Equal([]string{"reputation", "guard", "auth_failure"}, s.trace)
}

func (s *RouterSuite) TestReputationDenialShortCircuits() {
	rec := serve(s.router(true), http.MethodGet, "/anything", nil)
	s.Equal(http.StatusForbidden, rec.Code)
	s.Equal([]string{"reputation"}, s.trace)
}

func (s *RouterSuite) TestAdminBypassesPublicStages() {
	h := s.router(true)

	rec := serve(h, http.MethodGet, "/admin/ping", map[string]string{"X-Admin-Token": s.token})
	s.Equal(http.StatusNoContent, rec.Code)
	s.Empty(s.trace)

	rec = serve(h, http.MethodGet, "/admin/ping", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = serve(h, http.MethodGet, "/admin/unknown", map[string]string{"X-Admin-Token": s.token})
	s.Equal(http.StatusNotFound, rec.Code)
	s.Contains(rec.Body.String(), "not_found")
}

func (s *RouterSuite) TestOperationalRoutesSkipGates() {
	h := s.router(true)
	s.Equal(http.StatusOK, serve(h, http.MethodGet, "/health/live", nil).Code)
	s.Equal(http.StatusOK, serve(h, http.MethodGet, "/metrics", nil).Code)
	s.Empty(s.trace)
}

func (s *RouterSuite) TestRequestIDIsEchoed() {
	rec := serve(s.router(false), http.MethodGet, "/anything", map[string]string{"X-Request-ID": "abc-123"})
	s.Equal("abc-123", rec.Header().Get("X-Request-ID"))
}
