package models

import (
	"time"
)

// CachePrefix namespaces cached verdicts in the counter store.
const CachePrefix = "ipreputation:"

// CacheKey is the store key of the verdict for ip.
func CacheKey(ip string) string {
	return CachePrefix + ip
}

// Payload is the subset of an ipapi.is response the gate reads.
type Payload struct {
	IP           string     `json:"ip"`
	IsBogon      bool       `json:"is_bogon"`
	IsDatacenter bool       `json:"is_datacenter"`
	IsTor        bool       `json:"is_tor"`
	IsProxy      bool       `json:"is_proxy"`
	IsVPN        bool       `json:"is_vpn"`
	IsAbuser     bool       `json:"is_abuser"`
	IsCrawler    bool       `json:"is_crawler"`
	IsRelay      bool       `json:"is_relay"`
	IsAutomation bool       `json:"is_automation"`
	Company      Company    `json:"company"`
	Datacenter   Datacenter `json:"datacenter"`
	ASN          ASN        `json:"asn"`
	Location     Location   `json:"location"`
}

type Company struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Datacenter struct {
	Datacenter string `json:"datacenter"`
}

type ASN struct {
	Org string `json:"org"`
}

// Location is coarse geolocation. It is kept on cached verdicts for
// operators and never used in the block decision.
type Location struct {
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	City        string `json:"city,omitempty"`
}

// Human-readable block reasons shown on the block page.
const (
	ReasonProxy       = "Proxy server detected"
	ReasonTor         = "Tor exit node detected"
	ReasonVPN         = "VPN connection detected"
	ReasonCrawler     = "Automated crawler detected"
	ReasonThreat      = "Address is associated with abusive activity"
	ReasonRelay       = "Anonymizing relay detected"
	ReasonBogon       = "Bogon (unassigned or reserved) address"
	ReasonDatacenter  = "Datacenter address"
	ReasonAutomation  = "Automation tooling detected"
	ReasonHosting     = "Hosting provider address"
	ReasonCloudPrefix = "Cloud provider: "
)

// CompanyTypeHosting is the ipapi.is company type of hosting providers.
const CompanyTypeHosting = "hosting"

// Verdict is the cached outcome of analyzing a Payload.
type Verdict struct {
	IP        string    `json:"ip"`
	IsBlocked bool      `json:"isBlocked"`
	Reasons   []string  `json:"reasons"`
	Location  Location  `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// Source says how a Decision was reached.
type Source string

const (
	SourceDisabled  Source = "disabled"
	SourceAllowlist Source = "allowlist"
	SourceCache     Source = "cache"
	SourceLookup    Source = "lookup"
	// SourceFailOpen means the lookup failed and the request was let through
	// without caching anything.
	SourceFailOpen Source = "fail_open"
)

// Decision is the gate's answer for one address.
type Decision struct {
	IP       string
	Allowed  bool
	Reasons  []string
	Source   Source
	Verdict  *Verdict
	Degraded bool
}

// Allow builds an allowing decision without a verdict.
func Allow(ip string, source Source) *Decision {
	return &Decision{IP: ip, Allowed: true, Source: source, Degraded: source == SourceFailOpen}
}

// FromVerdict builds a decision from a fresh or cached verdict.
func FromVerdict(v *Verdict, source Source) *Decision {
	return &Decision{
		IP:      v.IP,
		Allowed: !v.IsBlocked,
		Reasons: v.Reasons,
		Source:  source,
		Verdict: v,
	}
}
