// Package privacy reduces client addresses to network prefixes before they
// reach logs, metrics labels or audit sinks.
package privacy

import "net/netip"

// AnonymizeIP truncates an address to its /24 (IPv4) or /48 (IPv6) network
// and returns it in prefix notation, e.g. "192.168.1.47" -> "192.168.1.0/24".
// IPv4-mapped IPv6 addresses are treated as IPv4.
//
// Returns "unknown" for empty input and "invalid" for unparseable input.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap()

	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.String()
}
