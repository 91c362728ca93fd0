// Package config loads process configuration from .env, an optional YAML
// file and BULWARK_* environment variables, in increasing precedence.
//
// Configuration never prevents startup: values that fail validation are
// logged and replaced with the documented default for that field.
package config

import (
	"time"

	intrusionconfig "bulwark/internal/intrusion/config"
	reputationconfig "bulwark/internal/ipreputation/config"
	ratelimitconfig "bulwark/internal/ratelimit/config"
)

// Config is the root configuration object.
type Config struct {
	Environment string `mapstructure:"environment" validate:"oneof=development staging production"`
	// DevMode enables the loopback allowlist on every gate.
	DevMode bool `mapstructure:"dev_mode"`

	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Admin   AdminConfig   `mapstructure:"admin"`

	RateLimit    ratelimitconfig.Config  `mapstructure:"ratelimit"`
	IPReputation reputationconfig.Config `mapstructure:"ipreputation"`
	Intrusion    intrusionconfig.Config  `mapstructure:"intrusion"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"min=1s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"min=1s"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" validate:"min=1024"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies" validate:"dive,cidr"`
	// UpstreamURL receives admitted traffic. Empty acknowledges requests
	// with 202 instead, which is only useful for trials.
	UpstreamURL string `mapstructure:"upstream_url" validate:"omitempty,url"`
	// DeviceHeader carries the device identifier for the device scope.
	DeviceHeader string `mapstructure:"device_header"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// RedisConfig configures the shared counter store. An empty URL selects the
// in-process store, which is only suitable for a single instance.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size" validate:"min=1"`
	MinIdleConns int           `mapstructure:"min_idle_conns" validate:"min=0"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" validate:"min=10ms"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"min=10ms"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=10ms"`

	// Breaker trips after this many consecutive store failures and stays
	// open for BreakerOpenFor before probing again.
	BreakerFailures uint32        `mapstructure:"breaker_failures" validate:"min=1"`
	BreakerOpenFor  time.Duration `mapstructure:"breaker_open_for" validate:"min=100ms"`
}

// KafkaConfig configures the audit event sink. Empty Brokers logs events instead.
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic" validate:"required"`
	Acks    string `mapstructure:"acks" validate:"oneof=0 1 all"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name" validate:"required"`
}

// AuthConfig verifies upstream access tokens to resolve the acting user.
type AuthConfig struct {
	SigningKey string `mapstructure:"signing_key"`
	Issuer     string `mapstructure:"issuer"`
}

// AdminConfig guards the admin API. TokenHash is a bcrypt hash; empty
// disables the admin routes.
type AdminConfig struct {
	TokenHash string `mapstructure:"token_hash"`
}

// Default returns the full default configuration.
func Default() *Config {
	return &Config{
		Environment: "production",
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    2 << 20,
			DeviceHeader:    "X-Device-ID",
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Redis: RedisConfig{
			PoolSize:        20,
			MinIdleConns:    2,
			DialTimeout:     2 * time.Second,
			ReadTimeout:     500 * time.Millisecond,
			WriteTimeout:    500 * time.Millisecond,
			BreakerFailures: 5,
			BreakerOpenFor:  10 * time.Second,
		},
		Kafka:        KafkaConfig{Topic: "bulwark.security-events", Acks: "1"},
		Tracing:      TracingConfig{ServiceName: "bulwark"},
		RateLimit:    *ratelimitconfig.DefaultConfig(),
		IPReputation: *reputationconfig.DefaultConfig(),
		Intrusion:    *intrusionconfig.DefaultConfig(),
	}
}
