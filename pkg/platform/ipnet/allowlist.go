// Package ipnet holds address-matching helpers shared by the admission gates.
package ipnet

import (
	"fmt"
	"net/netip"
	"strings"
)

// Allowlist matches client addresses against a fixed set of prefixes.
// The zero value matches nothing.
type Allowlist struct {
	prefixes []netip.Prefix
	loopback bool
}

// NewAllowlist parses CIDRs or bare addresses. When includeLoopback is set,
// 127.0.0.0/8 and ::1 always match; this is the development bypass.
func NewAllowlist(entries []string, includeLoopback bool) (*Allowlist, error) {
	a := &Allowlist{loopback: includeLoopback}
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("parse allowlist prefix %q: %w", raw, err)
			}
			a.prefixes = append(a.prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("parse allowlist address %q: %w", raw, err)
		}
		a.prefixes = append(a.prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return a, nil
}

// Contains reports whether ip is allowlisted. Unparseable input never matches.
func (a *Allowlist) Contains(ip string) bool {
	if a == nil {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	if a.loopback && addr.IsLoopback() {
		return true
	}
	for _, p := range a.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Empty reports whether the allowlist can never match.
func (a *Allowlist) Empty() bool {
	return a == nil || (!a.loopback && len(a.prefixes) == 0)
}
