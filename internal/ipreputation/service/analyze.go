package service

import (
	"strings"

	"bulwark/internal/ipreputation/config"
	"bulwark/internal/ipreputation/models"
)

// Analyze maps a reputation payload to a block decision. Each enabled check
// that matches contributes one reason; any reason blocks. Cloud vendors are
// matched case-insensitively as substrings of the company, datacenter and
// ASN organisation names, and each vendor is reported at most once.
func Analyze(p *models.Payload, checks config.Checks, cloudProviders []string) (isBlocked bool, reasons []string) {
	if p == nil {
		return false, nil
	}
	flags := []struct {
		enabled bool
		hit     bool
		reason  string
	}{
		{checks.Proxy, p.IsProxy, models.ReasonProxy},
		{checks.Tor, p.IsTor, models.ReasonTor},
		{checks.VPN, p.IsVPN, models.ReasonVPN},
		{checks.Crawler, p.IsCrawler, models.ReasonCrawler},
		{checks.Threat, p.IsAbuser, models.ReasonThreat},
		{checks.Relay, p.IsRelay, models.ReasonRelay},
		{checks.Bogon, p.IsBogon, models.ReasonBogon},
		{checks.Datacenter, p.IsDatacenter, models.ReasonDatacenter},
		{checks.Automation, p.IsAutomation, models.ReasonAutomation},
		{checks.Hosting, strings.EqualFold(p.Company.Type, models.CompanyTypeHosting), models.ReasonHosting},
	}
	for _, f := range flags {
		if f.enabled && f.hit {
			reasons = append(reasons, f.reason)
		}
	}

	if checks.CloudProvider {
		if vendor := matchCloudProvider(p, cloudProviders); vendor != "" {
			reasons = append(reasons, models.ReasonCloudPrefix+vendor)
		}
	}
	return len(reasons) > 0, reasons
}

func matchCloudProvider(p *models.Payload, vendors []string) string {
	orgs := []string{
		strings.ToLower(p.Company.Name),
		strings.ToLower(p.Datacenter.Datacenter),
		strings.ToLower(p.ASN.Org),
	}
	for _, vendor := range vendors {
		needle := strings.ToLower(strings.TrimSpace(vendor))
		if needle == "" {
			continue
		}
		for _, org := range orgs {
			if org != "" && strings.Contains(org, needle) {
				return vendor
			}
		}
	}
	return ""
}
