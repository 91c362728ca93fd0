package config

import "time"

// Config holds intrusion detection configuration.
type Config struct {
	Enabled bool `mapstructure:"enabled"`

	Thresholds Thresholds `mapstructure:"thresholds"`

	// ViolationWindow is the TTL of a violation counter, anchored to the
	// first violation.
	ViolationWindow time.Duration `mapstructure:"violation_window" validate:"min=1s"`

	// TemporaryBlockDuration applies when a category reaches its threshold.
	TemporaryBlockDuration time.Duration `mapstructure:"temporary_block_duration" validate:"min=1s"`
	// ExtendedBlockDuration applies on a honeypot hit.
	ExtendedBlockDuration time.Duration `mapstructure:"extended_block_duration" validate:"min=1s"`

	// HoneypotPaths match exactly, as a path prefix, or as a path.Match glob.
	HoneypotPaths []string `mapstructure:"honeypot_paths"`
	// ExcludedPaths (prefix match) skip the content scan.
	ExcludedPaths []string `mapstructure:"excluded_paths"`

	// MaxScanBytes caps how much of a body is read for scanning.
	MaxScanBytes int64 `mapstructure:"max_scan_bytes" validate:"min=1024"`

	// ScanUserAgent flags known attack tooling by User-Agent.
	ScanUserAgent bool `mapstructure:"scan_user_agent"`

	// RulesFile optionally adds signatures from YAML.
	RulesFile string `mapstructure:"rules_file"`

	// CleanupInterval is how often the blocked index is pruned.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"min=1s"`

	// Allowlist bypasses detection for these CIDRs. In dev mode loopback
	// addresses are always bypassed.
	Allowlist []string `mapstructure:"allowlist" validate:"dive,cidr|ip"`
}

// Thresholds are violations per window before a temporary block.
type Thresholds struct {
	SQLInjection     int `mapstructure:"sql_injection" validate:"min=1"`
	XSS              int `mapstructure:"xss" validate:"min=1"`
	PathTraversal    int `mapstructure:"path_traversal" validate:"min=1"`
	CommandInjection int `mapstructure:"command_injection" validate:"min=1"`
	AuthFailure      int `mapstructure:"auth_failure" validate:"min=1"`
	Scanner          int `mapstructure:"scanner" validate:"min=1"`
}

// For returns the threshold of a violation category. Categories without a
// dedicated threshold use the SQL injection one.
func (t Thresholds) For(category string) int {
	switch category {
	case "xss":
		return t.XSS
	case "path_traversal":
		return t.PathTraversal
	case "command_injection":
		return t.CommandInjection
	case "auth_failure":
		return t.AuthFailure
	case "scanner":
		return t.Scanner
	default:
		return t.SQLInjection
	}
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Thresholds: Thresholds{
			SQLInjection:     5,
			XSS:              5,
			PathTraversal:    5,
			CommandInjection: 3,
			AuthFailure:      10,
			Scanner:          3,
		},
		ViolationWindow:        time.Hour,
		TemporaryBlockDuration: time.Hour,
		ExtendedBlockDuration:  24 * time.Hour,
		HoneypotPaths: []string{
			"/wp-admin", "/wp-login.php", "/xmlrpc.php", "/.env", "/.git",
			"/phpmyadmin", "/admin.php", "/config.php", "/cgi-bin/*",
		},
		ExcludedPaths:   []string{"/health", "/metrics"},
		MaxScanBytes:    1 << 20,
		ScanUserAgent:   true,
		CleanupInterval: 5 * time.Minute,
	}
}
