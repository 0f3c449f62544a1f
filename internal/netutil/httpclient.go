// File: internal/netutil/httpclient.go (complete file)

package netutil

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strings"
	"time"
)

// HTTPClientForFamily returns a client pinned to "ipv4", "ipv6" or any family.
// timeout <= 0 keeps the 10s default; callers usually bound requests with a context too.
func HTTPClientForFamily(family string, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   6 * time.Second,
		KeepAlive: 15 * time.Second,
	}

	network := ""
	switch strings.ToLower(family) {
	case "ipv4":
		network = "tcp4"
	case "ipv6":
		network = "tcp6"
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, n, addr string) (net.Conn, error) {
			if network != "" {
				n = network
			}
			return dialer.DialContext(ctx, n, addr)
		},
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        4,
		IdleConnTimeout:     30 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
