package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"bulwark/internal/ratelimit/config"
	"bulwark/internal/ratelimit/handler/mocks"
	"bulwark/internal/ratelimit/models"
)

type HandlerSuite struct {
	suite.Suite
	router  http.Handler
	ctrl    *gomock.Controller
	windows *mocks.MockWindowService
	buckets *mocks.MockBucketService
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.windows = mocks.NewMockWindowService(s.ctrl)
	s.buckets = mocks.NewMockBucketService(s.ctrl)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := New(s.windows, s.buckets, config.DefaultConfig(), logger)

	r := chi.NewRouter()
	h.RegisterAdmin(r)
	s.router = r
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestGetUserStatus() {
	s.Run("returns window usage", func() {
		s.windows.EXPECT().GetUserRateLimitStatus(gomock.Any(), "u1").Return(&models.UserRateLimitStatus{
			UserID: "u1",
			Minute: models.WindowUsage{Count: 3, Limit: 10, Remaining: 7},
		}, nil)

		rec := s.do(http.MethodGet, "/admin/rate-limit/users/u1", nil)
		s.Equal(http.StatusOK, rec.Code)

		var got models.UserRateLimitStatus
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
		s.Equal(int64(3), got.Minute.Count)
		s.Equal(7, got.Minute.Remaining)
	})

	s.Run("store failure is 503", func() {
		s.windows.EXPECT().GetUserRateLimitStatus(gomock.Any(), "u1").Return(nil, errors.New("dial tcp"))

		rec := s.do(http.MethodGet, "/admin/rate-limit/users/u1", nil)
		s.Equal(http.StatusServiceUnavailable, rec.Code)
		s.NotContains(rec.Body.String(), "dial tcp")
	})
}

func (s *HandlerSuite) TestResetUser() {
	s.windows.EXPECT().ResetUserRateLimits(gomock.Any(), "u1")

	rec := s.do(http.MethodDelete, "/admin/rate-limit/users/u1", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"user_id":"u1","reset":true}`, rec.Body.String())
}

func (s *HandlerSuite) TestGetBucket() {
	s.Run("unknown preset is 404", func() {
		rec := s.do(http.MethodGet, "/admin/rate-limit/buckets/nope/user_1", nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("reports tokens", func() {
		s.buckets.EXPECT().Peek(gomock.Any(), "bucket:upload:user__1", gomock.Any()).Return(4.0, true, nil)

		rec := s.do(http.MethodGet, "/admin/rate-limit/buckets/upload/user_1", nil)
		s.Equal(http.StatusOK, rec.Code)

		var got models.BucketStatusResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
		s.Equal(4.0, got.Tokens)
		s.Equal(10, got.Capacity)
		s.True(got.Found)
	})
}

func (s *HandlerSuite) TestResetBucket() {
	s.Run("invalid json", func() {
		rec := s.do(http.MethodPost, "/admin/rate-limit/buckets/reset", []byte("not valid json"))
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("missing actor fails validation", func() {
		rec := s.do(http.MethodPost, "/admin/rate-limit/buckets/reset", []byte(`{"preset":"upload"}`))
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("normalizes preset and resets", func() {
		s.buckets.EXPECT().Reset(gomock.Any(), "bucket:export:ip__10.0.0.1").Return(nil)

		rec := s.do(http.MethodPost, "/admin/rate-limit/buckets/reset", []byte(`{"preset":" EXPORT ","actor":"ip_10.0.0.1"}`))
		s.Equal(http.StatusOK, rec.Code)
		s.JSONEq(`{"key":"bucket:export:ip__10.0.0.1","reset":true}`, rec.Body.String())
	})

	s.Run("store failure is 503", func() {
		s.buckets.EXPECT().Reset(gomock.Any(), gomock.Any()).Return(errors.New("timeout"))

		rec := s.do(http.MethodPost, "/admin/rate-limit/buckets/reset", []byte(`{"preset":"ai","actor":"user_9"}`))
		s.Equal(http.StatusServiceUnavailable, rec.Code)
	})
}
