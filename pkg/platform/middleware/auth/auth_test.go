package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bulwark/pkg/requestcontext"
)

// AuthMiddlewareSuite tests bearer token resolution.
//
// Justification: actor resolution decides which per-user counters are charged;
// an invalid token must never reach the handler and must surface as a 401 so
// the auth-failure observer can count it.
type AuthMiddlewareSuite struct {
	suite.Suite
	verifier *HMACVerifier
	logger   *slog.Logger
}

func TestAuthMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareSuite))
}

func (s *AuthMiddlewareSuite) SetupTest() {
	s.verifier = NewHMACVerifier("test-signing-key", "bulwark-test")
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *AuthMiddlewareSuite) serve(header string) (int, string, string) {
	var userID, deviceID string
	handler := Authenticate(s.verifier, s.logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID = requestcontext.UserID(r.Context())
		deviceID = requestcontext.DeviceID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/notify", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w.Code, userID, deviceID
}

func (s *AuthMiddlewareSuite) TestAuthenticate() {
	s.Run("anonymous request passes through", func() {
		code, userID, _ := s.serve("")
		s.Equal(http.StatusNoContent, code)
		s.Empty(userID)
	})

	s.Run("valid token populates user and device", func() {
		token, err := s.verifier.Issue("user_42", "device-9", time.Now(), time.Hour)
		s.Require().NoError(err)

		code, userID, deviceID := s.serve("Bearer " + token)
		s.Equal(http.StatusNoContent, code)
		s.Equal("user_42", userID)
		s.Equal("device-9", deviceID)
	})

	s.Run("expired token is rejected", func() {
		token, err := s.verifier.Issue("user_42", "", time.Now().Add(-2*time.Hour), time.Hour)
		s.Require().NoError(err)

		code, userID, _ := s.serve("Bearer " + token)
		s.Equal(http.StatusUnauthorized, code)
		s.Empty(userID)
	})

	s.Run("token signed with another key is rejected", func() {
		other := NewHMACVerifier("other-key", "bulwark-test")
		token, err := other.Issue("user_42", "", time.Now(), time.Hour)
		s.Require().NoError(err)

		code, _, _ := s.serve("Bearer " + token)
		s.Equal(http.StatusUnauthorized, code)
	})

	s.Run("wrong issuer is rejected", func() {
		other := NewHMACVerifier("test-signing-key", "someone-else")
		token, err := other.Issue("user_42", "", time.Now(), time.Hour)
		s.Require().NoError(err)

		code, _, _ := s.serve("Bearer " + token)
		s.Equal(http.StatusUnauthorized, code)
	})

	s.Run("non-bearer scheme is rejected", func() {
		code, _, _ := s.serve("Basic dXNlcjpwYXNz")
		s.Equal(http.StatusUnauthorized, code)
	})
}

func (s *AuthMiddlewareSuite) TestRequireUser() {
	called := false
	handler := RequireUser(s.logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	s.Equal(http.StatusUnauthorized, w.Code)
	s.False(called)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(requestcontext.WithUserID(req.Context(), "user_1"))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	s.True(called)
}
