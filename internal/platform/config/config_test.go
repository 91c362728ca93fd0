package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	ratelimitconfig "bulwark/internal/ratelimit/config"
)

// =============================================================================
// Config Loader Test Suite
// =============================================================================
// Justification: Configuration must never block startup. These tests pin the
// precedence order (defaults < file < env) and the per-field fallback that
// replaces invalid values with defaults instead of failing.

type LoaderSuite struct {
	suite.Suite
	dir    string
	logBuf *bytes.Buffer
	logger *slog.Logger
}

func TestLoaderSuite(t *testing.T) {
	suite.Run(t, new(LoaderSuite))
}

func (s *LoaderSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.logBuf = &bytes.Buffer{}
	s.logger = slog.New(slog.NewTextHandler(s.logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (s *LoaderSuite) writeFile(name, body string) string {
	path := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(path, []byte(body), 0o600))
	return path
}

func (s *LoaderSuite) load(configFile string) *Config {
	cfg, err := NewLoader(configFile, s.logger).WithEnvFile("").Load()
	s.Require().NoError(err)
	return cfg
}

func (s *LoaderSuite) TestDefaultsWithoutFile() {
	cfg := s.load(filepath.Join(s.dir, "missing.yaml"))

	s.Equal(10, cfg.RateLimit.Notification.UserPerMinute)
	s.Equal(5, cfg.RateLimit.Notification.DevicePerMinute)
	s.Equal(1000, cfg.RateLimit.Notification.GlobalPerSecond)
	s.Equal(100, cfg.RateLimit.Hourly.Limit)
	s.Equal(500, cfg.RateLimit.Daily.Limit)
	s.Equal(24*time.Hour, cfg.IPReputation.CacheTTL)
	s.Equal(5, cfg.Intrusion.Thresholds.SQLInjection)
	s.Empty(s.logBuf.String())
}

func (s *LoaderSuite) TestFileOverridesDefaults() {
	path := s.writeFile("bulwark.yaml", `
environment: development
ratelimit:
  notification:
    user_per_minute: 20
  buckets:
    upload:
      capacity: 4
      refill_rate: 2
      interval: 10s
intrusion:
  thresholds:
    sql_injection: 2
`)
	cfg := s.load(path)

	s.Equal("development", cfg.Environment)
	s.Equal(20, cfg.RateLimit.Notification.UserPerMinute)
	s.Equal(5, cfg.RateLimit.Notification.DevicePerMinute, "untouched siblings keep defaults")
	s.Equal(ratelimitconfig.BucketPreset{Capacity: 4, RefillRate: 2, Interval: 10 * time.Second},
		cfg.RateLimit.Buckets[ratelimitconfig.BucketUpload])
	s.Equal(2, cfg.Intrusion.Thresholds.SQLInjection)
}

func (s *LoaderSuite) TestEnvOverridesFile() {
	path := s.writeFile("bulwark.yaml", "redis:\n  url: redis://file:6379/0\n")
	s.T().Setenv("BULWARK_REDIS_URL", "redis://env:6379/0")
	s.T().Setenv("BULWARK_RATELIMIT_HOURLY_LIMIT", "42")

	cfg := s.load(path)

	s.Equal("redis://env:6379/0", cfg.Redis.URL)
	s.Equal(42, cfg.RateLimit.Hourly.Limit)
}

func (s *LoaderSuite) TestInvalidValuesFallBackToDefaults() {
	path := s.writeFile("bulwark.yaml", `
log:
  level: chatty
ratelimit:
  notification:
    user_per_minute: -1
  daily:
    limit: 0
ipreputation:
  timeout: 0s
`)
	cfg := s.load(path)

	s.Equal("info", cfg.Log.Level)
	s.Equal(10, cfg.RateLimit.Notification.UserPerMinute)
	s.Equal(500, cfg.RateLimit.Daily.Limit)
	s.Equal(5*time.Second, cfg.IPReputation.Timeout)

	logs := s.logBuf.String()
	s.Contains(logs, "invalid config value replaced with default")
	s.Contains(logs, "UserPerMinute")
}

func (s *LoaderSuite) TestUnreadableFileIsAnError() {
	path := s.writeFile("bulwark.yaml", "ratelimit: [unterminated")

	_, err := NewLoader(path, s.logger).WithEnvFile("").Load()
	s.Error(err)
}

func (s *LoaderSuite) TestDotenvFeedsEnvironment() {
	envPath := s.writeFile(".env", "BULWARK_KAFKA_TOPIC=from-dotenv\n")
	s.T().Cleanup(func() { _ = os.Unsetenv("BULWARK_KAFKA_TOPIC") })

	cfg, err := NewLoader(filepath.Join(s.dir, "missing.yaml"), s.logger).WithEnvFile(envPath).Load()
	s.Require().NoError(err)
	s.Equal("from-dotenv", cfg.Kafka.Topic)
}

func TestSanitizeResetsInvalidBucketEntry(t *testing.T) {
	cfg := Default()
	cfg.RateLimit.Buckets[ratelimitconfig.BucketUpload] = ratelimitconfig.BucketPreset{Capacity: 0, RefillRate: 1, Interval: time.Second}
	cfg.RateLimit.Buckets["custom"] = ratelimitconfig.BucketPreset{Capacity: 1, RefillRate: 0, Interval: time.Second}

	reset := Sanitize(cfg, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	require.Len(t, reset, 2)
	assert.Equal(t, Default().RateLimit.Buckets[ratelimitconfig.BucketUpload], cfg.RateLimit.Buckets[ratelimitconfig.BucketUpload])
	_, ok := cfg.RateLimit.Buckets["custom"]
	assert.False(t, ok, "invalid entries without a default are dropped")
}

func TestSanitizeValidConfigIsUntouched(t *testing.T) {
	cfg := Default()
	assert.Empty(t, Sanitize(cfg, slog.Default()))
	assert.Equal(t, Default(), cfg)
}
