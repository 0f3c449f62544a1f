// File: internal/netutil/addr.go (complete file)

package netutil

import (
	"net"
	"net/netip"
	"regexp"
	"strings"
)

var privateV4 = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
}

// IsPrivateIPv4 reports whether s is an RFC 1918 address. Anything unparsable is not private.
func IsPrivateIPv4(s string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return false
	}
	for _, p := range privateV4 {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// HasGlobalIPv6 reports whether an up, non-loopback interface carries a global unicast IPv6 address.
// Link-local, ULA (fc00::/7) and IPv4-mapped addresses do not count.
func HasGlobalIPv6() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			addr, ok := netip.AddrFromSlice(ipnet.IP)
			if !ok || addr.Is4In6() || addr.Is4() {
				continue
			}
			if addr.IsGlobalUnicast() && !addr.IsPrivate() {
				return true
			}
		}
	}
	return false
}

var restrictedUA = regexp.MustCompile(`(?i)iPhone|iPad|iPod|Android`)

// IsRestrictedUserAgent reports whether the client looks like a mobile device.
// Carrier networks behind such clients are treated as relay-only environments.
func IsRestrictedUserAgent(ua string) bool {
	return restrictedUA.MatchString(ua)
}
