package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"bulwark/internal/ipreputation/models"
)

type stubService struct {
	decision      *models.Decision
	invalidateErr error
	invalidated   []string
}

func (s *stubService) Evaluate(_ context.Context, ip string) *models.Decision {
	d := *s.decision
	d.IP = ip
	return &d
}

func (s *stubService) Invalidate(_ context.Context, ip string) error {
	s.invalidated = append(s.invalidated, ip)
	return s.invalidateErr
}

type HandlerSuite struct {
	suite.Suite
	service *stubService
	router  http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.service = &stubService{decision: &models.Decision{
		Allowed: false,
		Source:  models.SourceCache,
		Reasons: []string{models.ReasonProxy},
		Verdict: &models.Verdict{IsBlocked: true, Location: models.Location{CountryCode: "FR"}},
	}}
	r := chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))).RegisterAdmin(r)
	s.router = r
}

func (s *HandlerSuite) do(method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func (s *HandlerSuite) TestGet() {
	rec := s.do(http.MethodGet, "/admin/ip-reputation/198.51.100.7")
	s.Equal(http.StatusOK, rec.Code)

	var body models.ReputationResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.False(body.Allowed)
	s.Equal(models.SourceCache, body.Source)
	s.Equal("FR", body.Location.CountryCode)
}

func (s *HandlerSuite) TestInvalidIP() {
	rec := s.do(http.MethodGet, "/admin/ip-reputation/not-an-ip")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestInvalidate() {
	s.Run("success", func() {
		rec := s.do(http.MethodDelete, "/admin/ip-reputation/198.51.100.7")
		s.Equal(http.StatusOK, rec.Code)
		s.JSONEq(`{"ip":"198.51.100.7","invalidated":true}`, rec.Body.String())
	})

	s.Run("store error", func() {
		s.service.invalidateErr = errors.New("timeout")
		rec := s.do(http.MethodDelete, "/admin/ip-reputation/198.51.100.7")
		s.Equal(http.StatusServiceUnavailable, rec.Code)
	})
}
