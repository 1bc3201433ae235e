package networks

import (
	"net/netip"
	"strconv"
	"strings"
)

// NormalizeIPv4 rewrites an IPv4 literal into canonical dotted-quad form:
// per-octet leading zeros are stripped and blank octets become 0. Octet
// values outside [0,255] make the input unusable and it is returned as-is
// (the subsequent parse rejects it).
func NormalizeIPv4(raw string) string {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ".")
	cleaned := make([]string, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			cleaned = append(cleaned, "0")
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return raw
		}
		cleaned = append(cleaned, strconv.Itoa(n))
	}

	return strings.Join(cleaned, ".")
}

// NormalizeIPv6 expands shorthand IPv6 notation. A trailing "::" is treated
// as "::0". If the result still does not parse, the original string is
// returned unchanged; normalization never fails hard.
func NormalizeIPv6(raw string) string {
	raw = strings.TrimSpace(raw)

	candidate := raw
	if strings.HasSuffix(candidate, "::") {
		candidate += "0"
	}

	addr, err := netip.ParseAddr(candidate)
	if err != nil || !addr.Is6() {
		return raw
	}
	return addr.String()
}

// parseAddr normalizes raw by family and parses it. IPv4-mapped IPv6
// addresses are unmapped so they land in the IPv4 range list.
func parseAddr(raw string) (netip.Addr, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return netip.Addr{}, false
	}

	if strings.Contains(raw, ":") {
		raw = NormalizeIPv6(raw)
	} else {
		raw = NormalizeIPv4(raw)
	}

	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// IsAddress reports whether raw parses as an IPv4 or IPv6 literal. Named
// editors fail this check and are out of scope for classification.
func IsAddress(raw string) bool {
	_, ok := parseAddr(raw)
	return ok
}
