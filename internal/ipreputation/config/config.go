package config

import "time"

// Config holds IP reputation gate configuration.
type Config struct {
	Enabled bool `mapstructure:"enabled"`

	// APIURL is an ipapi.is-compatible lookup endpoint.
	APIURL string `mapstructure:"api_url" validate:"omitempty,url"`
	APIKey string `mapstructure:"api_key"`

	// Timeout bounds a single lookup. Timeouts fail open.
	Timeout time.Duration `mapstructure:"timeout" validate:"min=100ms,max=30s"`

	// CacheTTL is how long a verdict is reused before a fresh lookup.
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"min=1m"`

	// LookupsPerSecond and LookupBurst budget calls to the third party.
	// Lookups beyond the budget fail open without a network call.
	LookupsPerSecond float64 `mapstructure:"lookups_per_second" validate:"gt=0"`
	LookupBurst      int     `mapstructure:"lookup_burst" validate:"min=1"`

	Checks Checks `mapstructure:"checks"`

	// BlockedCloudProviders are matched case-insensitively against the
	// company, datacenter and ASN organisation names when Checks.CloudProvider is on.
	BlockedCloudProviders []string `mapstructure:"blocked_cloud_providers"`

	// ResponseFormat selects the block page rendering: auto, html or json.
	ResponseFormat string `mapstructure:"response_format" validate:"oneof=auto html json"`

	// Allowlist bypasses the gate for these CIDRs. In dev mode loopback
	// addresses are always bypassed.
	Allowlist []string `mapstructure:"allowlist" validate:"dive,cidr|ip"`

	SupportContact string `mapstructure:"support_contact"`
}

// Checks toggles each reputation signal independently.
type Checks struct {
	Proxy         bool `mapstructure:"proxy"`
	Tor           bool `mapstructure:"tor"`
	VPN           bool `mapstructure:"vpn"`
	Crawler       bool `mapstructure:"crawler"`
	Threat        bool `mapstructure:"threat"`
	Relay         bool `mapstructure:"relay"`
	Bogon         bool `mapstructure:"bogon"`
	Datacenter    bool `mapstructure:"datacenter"`
	Automation    bool `mapstructure:"automation"`
	Hosting       bool `mapstructure:"hosting"`
	CloudProvider bool `mapstructure:"cloud_provider"`
}

// Response formats.
const (
	FormatAuto = "auto"
	FormatHTML = "html"
	FormatJSON = "json"
)

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:          true,
		APIURL:           "https://api.ipapi.is",
		Timeout:          5 * time.Second,
		CacheTTL:         24 * time.Hour,
		LookupsPerSecond: 10,
		LookupBurst:      20,
		Checks: Checks{
			Proxy:  true,
			Tor:    true,
			VPN:    true,
			Threat: true,
			Bogon:  true,
		},
		BlockedCloudProviders: []string{
			"Amazon", "Google Cloud", "Microsoft Azure", "DigitalOcean",
			"Linode", "Vultr", "OVH", "Hetzner", "Oracle Cloud", "Alibaba",
		},
		ResponseFormat: FormatAuto,
		SupportContact: "support@example.com",
	}
}
