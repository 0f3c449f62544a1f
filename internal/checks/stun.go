// File: internal/checks/stun.go (complete file)

package checks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/pion/stun"
)

var DefaultSTUNServers = []string{
	"stun.l.google.com:19302",
	"stun1.l.google.com:19302",
}

const stunReadTimeout = 3 * time.Second

// StunObservedIPs returns the distinct public addresses reported by the given
// STUN servers over UDP, in server order.
func StunObservedIPs(ctx context.Context, stunServers []string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	var lastErr error

	for _, server := range stunServers {
		if server == "" {
			continue
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		addr, err := stunMappedAddress(ctx, server)
		if err != nil {
			slog.Debug("stun binding failed", "server", server, "err", err)
			lastErr = err
			continue
		}

		ip := addr.IP.String()
		if !seen[ip] {
			seen[ip] = true
			out = append(out, ip)
		}
	}

	if len(out) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("no STUN responses: %w", lastErr)
		}
		return nil, errors.New("no STUN responses")
	}
	return out, nil
}

func stunMappedAddress(ctx context.Context, server string) (stun.XORMappedAddress, error) {
	var xorAddr stun.XORMappedAddress

	dialer := net.Dialer{Timeout: stunReadTimeout}
	conn, err := dialer.DialContext(ctx, "udp4", server)
	if err != nil {
		return xorAddr, fmt.Errorf("dial %s: %w", server, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(stunReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return xorAddr, err
	}

	request := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	if _, err := conn.Write(request.Raw); err != nil {
		return xorAddr, fmt.Errorf("send binding request: %w", err)
	}

	buf := make([]byte, 1500)
	n, err := conn.Read(buf)
	if err != nil {
		return xorAddr, fmt.Errorf("read binding response: %w", err)
	}

	response := &stun.Message{Raw: buf[:n]}
	if err := response.Decode(); err != nil {
		return xorAddr, fmt.Errorf("decode binding response: %w", err)
	}
	if response.TransactionID != request.TransactionID {
		return xorAddr, errors.New("transaction id mismatch")
	}
	if err := xorAddr.GetFrom(response); err != nil {
		return xorAddr, fmt.Errorf("xor-mapped-address: %w", err)
	}
	return xorAddr, nil
}
