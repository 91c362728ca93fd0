package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"bulwark/internal/counter"
	"bulwark/internal/counter/memory"
	"bulwark/internal/intrusion/models"
	"bulwark/internal/platform/config"
	ratelimitmodels "bulwark/internal/ratelimit/models"
	"bulwark/pkg/platform/middleware/auth"
)

// =============================================================================
// CLI Test Suite
// =============================================================================
// Justification: operators rely on these commands during incidents. Tests
// run each command against an in-process store and check both the output
// and the state it leaves behind.

type CLISuite struct {
	suite.Suite
	store *memory.Store
	saved func(ctx context.Context, cfg *config.Config) (counter.Store, func(), error)
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLISuite))
}

func (s *CLISuite) SetupTest() {
	s.store = memory.New()
	s.saved = storeOpener
	storeOpener = func(context.Context, *config.Config) (counter.Store, func(), error) {
		return s.store, func() {}, nil
	}
	envFile = ""
	cfgFile = s.T().TempDir() + "/absent.yaml"
	blockDuration = 0
	blockReason = "manual block"
	blocksJSON = false
}

func (s *CLISuite) TearDownTest() {
	storeOpener = s.saved
}

func (s *CLISuite) run(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (s *CLISuite) TestBlockLifecycle() {
	out, err := s.run("blocks", "block", "203.0.113.50", "--duration", "10m", "--reason", "incident 42")
	s.Require().NoError(err)
	s.Contains(out, "blocked 203.0.113.50 for 10m0s")

	out, err = s.run("blocks", "get", "203.0.113.50")
	s.Require().NoError(err)
	var rec models.BlockRecord
	s.Require().NoError(json.Unmarshal([]byte(out), &rec))
	s.Equal(models.CategoryManual, rec.Category)
	s.Equal("incident 42", rec.Reason)

	out, err = s.run("blocks", "list")
	s.Require().NoError(err)
	s.Contains(out, "203.0.113.50")
	s.Contains(out, "manual")

	_, err = s.run("blocks", "unblock", "203.0.113.50")
	s.Require().NoError(err)

	_, err = s.run("blocks", "get", "203.0.113.50")
	s.Error(err)
}

func (s *CLISuite) TestInvalidIP() {
	_, err := s.run("blocks", "get", "not-an-ip")
	s.ErrorContains(err, "invalid ip")
}

func (s *CLISuite) TestRateLimitStatusAndReset() {
	key := ratelimitmodels.UserKey(ratelimitmodels.ScopeNotification, ratelimitmodels.WindowMinute, "u1").String()
	_, err := s.store.Incr(context.Background(), key)
	s.Require().NoError(err)

	out, err := s.run("ratelimit", "status", "u1")
	s.Require().NoError(err)
	s.Contains(out, `"user_id": "u1"`)
	s.Contains(out, `"count": 1`)

	out, err = s.run("ratelimit", "reset", "u1")
	s.Require().NoError(err)
	s.Contains(out, "reset rate limits for u1")
	_, found, err := s.store.Get(context.Background(), key)
	s.Require().NoError(err)
	s.False(found)
}

func (s *CLISuite) TestBucketPeek() {
	out, err := s.run("bucket", "peek", "upload", "user-1")
	s.Require().NoError(err)
	s.Contains(out, `"found": false`)

	_, err = s.run("bucket", "peek", "nope", "user-1")
	s.ErrorContains(err, "unknown bucket preset")
}

func (s *CLISuite) TestReputationInvalidate() {
	out, err := s.run("reputation", "invalidate", "198.51.100.1")
	s.Require().NoError(err)
	s.Contains(out, "invalidated 198.51.100.1")
}

func (s *CLISuite) TestHashToken() {
	out, err := s.run("hash-token", "s3cret")
	s.Require().NoError(err)
	s.NoError(bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("s3cret")))
}

func (s *CLISuite) TestTokenIssue() {
	s.T().Setenv("BULWARK_AUTH_SIGNING_KEY", "test-signing-key")
	s.T().Setenv("BULWARK_AUTH_ISSUER", "bulwark-test")

	out, err := s.run("token", "issue", "user-9", "--device", "dev-1", "--ttl", "5m")
	s.Require().NoError(err)

	claims, err := auth.NewHMACVerifier("test-signing-key", "bulwark-test").ValidateToken(strings.TrimSpace(out))
	s.Require().NoError(err)
	s.Equal("user-9", claims.Subject)
	s.Equal("dev-1", claims.DeviceID)
	s.WithinDuration(time.Now().Add(5*time.Minute), claims.ExpiresAt.Time, 10*time.Second)
}
