// File: internal/checks/resolve.go (complete file)

package checks

import (
	"context"
	"fmt"
	"net"
	"strings"
)

type Resolution struct {
	Host  string   `json:"host"`
	Addrs []string `json:"addrs,omitempty"`
	Error string   `json:"error,omitempty"`
}

// ResolveHosts looks up each host through the system resolver. Ports in
// "host:port" form are stripped; literal addresses resolve to themselves.
func ResolveHosts(ctx context.Context, resolver *net.Resolver, hosts []string) []Resolution {
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	out := make([]Resolution, 0, len(hosts))
	seen := map[string]bool{}
	for _, h := range hosts {
		host := hostOnly(h)
		if host == "" || seen[host] {
			continue
		}
		seen[host] = true

		r := Resolution{Host: host}
		if net.ParseIP(host) != nil {
			r.Addrs = []string{host}
			out = append(out, r)
			continue
		}
		addrs, err := resolver.LookupHost(ctx, host)
		if err != nil {
			r.Error = err.Error()
		} else if len(addrs) == 0 {
			r.Error = fmt.Sprintf("no addresses for %s", host)
		} else {
			r.Addrs = addrs
		}
		out = append(out, r)
	}
	return out
}

func hostOnly(s string) string {
	s = strings.TrimSpace(s)
	for _, p := range []string{"stun:", "turn:", "turns:", "https://", "http://"} {
		s = strings.TrimPrefix(s, p)
	}
	if i := strings.IndexAny(s, "/?"); i >= 0 {
		s = s[:i]
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		return h
	}
	return strings.Trim(s, "[]")
}
