// File: internal/netutil/addr_test.go (complete file)

package netutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPrivateIPv4(t *testing.T) {
	tests := []struct {
		addr     string
		expected bool
	}{
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"172.32.0.1", false},
		{"192.168.10.20", true},
		{"203.0.113.10", false},
		{"::ffff:192.168.1.1", true},
		{"fd00::1", false},
		{"not-an-ip", false},
		{"", false},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, IsPrivateIPv4(test.addr), "IsPrivateIPv4(%q)", test.addr)
	}
}

func TestIsRestrictedUserAgent(t *testing.T) {
	assert.True(t, IsRestrictedUserAgent("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)"))
	assert.True(t, IsRestrictedUserAgent("Mozilla/5.0 (Linux; android 14; Pixel 8)"))
	assert.False(t, IsRestrictedUserAgent("Mozilla/5.0 (X11; Linux x86_64) Chrome/126.0"))
	assert.False(t, IsRestrictedUserAgent(""))
}
