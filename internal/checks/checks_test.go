// File: internal/checks/checks_test.go (complete file)

package checks

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchIPFromJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ip":" 198.51.100.5 "}`)
	}))
	defer srv.Close()

	ip, err := FetchIPFromJSON(context.Background(), srv.Client(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, "198.51.100.5", ip)
}

func TestFetchIPFromJSON_Errors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
		"empty":  func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `{"ip":""}`) },
		"html":   func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `<html>`) },
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			_, err := FetchIPFromJSON(context.Background(), srv.Client(), srv.URL)
			assert.Error(t, err)
		})
	}
}

func TestLookupExternalIP_NoFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	got := LookupExternalIP(context.Background(), srv.Client(), srv.URL, nil)

	assert.False(t, got.OK())
	assert.Equal(t, "ipify", got.Source)
	assert.Contains(t, got.Error, "403")
}

func TestLookupExternalIP_FallsBackToSTUN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	stunAddr := startSTUNServer(t, "203.0.113.77", 40000)

	got := LookupExternalIP(context.Background(), srv.Client(), srv.URL, []string{stunAddr})

	assert.True(t, got.OK())
	assert.Equal(t, "stun", got.Source)
	assert.Equal(t, "203.0.113.77", got.IP)
}

func TestFetchNetworkInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ip":"198.51.100.5","cc":"JP","city":"Tokyo","aso":"Example Carrier","asn":64500}`)
	}))
	defer srv.Close()

	info, err := FetchNetworkInfo(context.Background(), srv.Client(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, "198.51.100.5", info.IP)
	assert.Equal(t, "64500", info.ASN)
	assert.Equal(t, "JP, Tokyo, Example Carrier", info.Summary())
}

func TestCheckService(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte{0, 0, 1, 0})
	}))
	defer ok.Close()
	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()

	t.Run("any 200 is OK", func(t *testing.T) {
		res := CheckService(context.Background(), http.DefaultClient, []string{missing.URL + "/favicon.ico", ok.URL + "/favicon.ico"})

		assert.True(t, res.OK())
		require.Len(t, res.Details, 2)
		assert.Contains(t, res.Details[0], "NG (404)")
		assert.Contains(t, res.Details[1], "OK (200)")
	})

	t.Run("all failing is NG", func(t *testing.T) {
		res := CheckService(context.Background(), http.DefaultClient, []string{missing.URL, "http://127.0.0.1:1/favicon.ico"})

		assert.False(t, res.OK())
		assert.Contains(t, res.Details[1], "error:")
	})

	t.Run("no targets", func(t *testing.T) {
		res := CheckService(context.Background(), http.DefaultClient, nil)
		assert.Equal(t, "NG", res.Status)
	})
}

const portCheckJSON = `{
  "status": "NG",
  "timestamp": "2025-01-01T00:00:00Z",
  "tcp": {"8443": "success", "443": "success"},
  "udp": {"3478": "timeout"},
  "failed_ports": ["UDP 3478"]
}`

func TestFetchPortCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, portCheckJSON)
	}))
	defer srv.Close()

	pc, err := FetchPortCheck(context.Background(), srv.Client(), srv.URL)

	require.NoError(t, err)
	assert.False(t, pc.OK())
	assert.Equal(t, []PortResult{
		{Proto: "TCP", Port: "443", OK: true, Raw: "success"},
		{Proto: "TCP", Port: "8443", OK: true, Raw: "success"},
		{Proto: "UDP", Port: "3478", OK: false, Raw: "timeout"},
	}, pc.Results())
	assert.Equal(t, []string{
		"TCP ports:",
		"port check: TCP 443 -> OK",
		"port check: TCP 8443 -> OK",
		"UDP ports:",
		"port check: UDP 3478 -> NG",
		"failed ports:",
		" - UDP 3478",
	}, pc.Lines())
}

func TestPortCheck_OK(t *testing.T) {
	assert.True(t, PortCheck{TCP: map[string]string{"443": "success"}}.OK())
	assert.False(t, PortCheck{}.OK())
	assert.False(t, PortCheck{TCP: map[string]string{"443": "success"}, FailedPorts: []string{"TCP 80"}}.OK())
}

func TestFetchPortCheckText(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/check", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "TCP 443: open\nUDP 3478: open\n")
	})
	mux.HandleFunc("/external-ip", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "198.51.100.5\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	lines, err := FetchPortCheckText(context.Background(), srv.Client(), srv.URL+"/")

	require.NoError(t, err)
	assert.Equal(t, []string{
		"TCP 443: open",
		"UDP 3478: open",
		"external IP (port checker): 198.51.100.5",
	}, lines)
}

func TestFetchPortCheckText_Failure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := FetchPortCheckText(context.Background(), srv.Client(), srv.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "check:")
}
