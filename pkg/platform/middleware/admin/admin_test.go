package admin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

// AdminMiddlewareSuite tests the admin authentication middleware.
//
// Justification: Security-critical authentication middleware.
// The invariant "wrong token never reaches handler" must be preserved.
type AdminMiddlewareSuite struct {
	suite.Suite
	logger *slog.Logger
	hash   string
}

func TestAdminMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AdminMiddlewareSuite))
}

func (s *AdminMiddlewareSuite) SetupSuite() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := bcrypt.GenerateFromPassword([]byte("secret-admin-token"), bcrypt.MinCost)
	s.Require().NoError(err)
	s.hash = string(h)
}

func (s *AdminMiddlewareSuite) serve(hash, token, actor string) (int, bool, string) {
	called := false
	var gotActor string
	handler := RequireAdminToken(hash, s.logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		gotActor = GetAdminActorID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/admin/test", nil)
	if token != "" {
		req.Header.Set("X-Admin-Token", token)
	}
	if actor != "" {
		req.Header.Set("X-Admin-Actor-ID", actor)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w.Code, called, gotActor
}

func (s *AdminMiddlewareSuite) TestTokenValidation() {
	s.Run("correct token passes and captures actor", func() {
		code, called, actor := s.serve(s.hash, "secret-admin-token", "ops-alice")
		s.Equal(http.StatusOK, code)
		s.True(called)
		s.Equal("ops-alice", actor)
	})

	s.Run("wrong token returns 401 and blocks handler", func() {
		code, called, _ := s.serve(s.hash, "guess", "")
		s.Equal(http.StatusUnauthorized, code)
		s.False(called)
	})

	s.Run("missing token returns 401", func() {
		code, called, _ := s.serve(s.hash, "", "")
		s.Equal(http.StatusUnauthorized, code)
		s.False(called)
	})

	s.Run("empty configured hash disables admin", func() {
		code, called, _ := s.serve("", "anything", "")
		s.Equal(http.StatusUnauthorized, code)
		s.False(called)
	})
}

func (s *AdminMiddlewareSuite) TestHashToken() {
	h, err := HashToken("t0ken")
	s.Require().NoError(err)
	s.NoError(bcrypt.CompareHashAndPassword([]byte(h), []byte("t0ken")))
}
