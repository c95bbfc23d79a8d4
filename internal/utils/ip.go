package utils

import (
	"net"
	"strings"
)

// NormalizeIP returns the canonical text form of raw, or nil when raw is
// empty or not an IP address. IPv4-mapped IPv6 addresses collapse to IPv4.
func NormalizeIP(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parsed := net.ParseIP(raw)
	if parsed == nil {
		return nil
	}

	normalized := parsed.String()
	return &normalized
}
