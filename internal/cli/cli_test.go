// File: internal/cli/cli_test.go (complete file)

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baptistax/camlinkcheck/internal/app"
	"github.com/baptistax/camlinkcheck/internal/config"
	"github.com/baptistax/camlinkcheck/internal/probe"
	"github.com/baptistax/camlinkcheck/internal/report"
)

func runArgs(args ...string) (int, string, string) {
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

// isolate keeps the developer's own .env and CAMLINK_* variables out of the test.
func isolate(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		k, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(k, "CAMLINK_") {
			t.Setenv(k, "")
			os.Unsetenv(k)
		}
	}
}

func TestRun_Version(t *testing.T) {
	code, out, _ := runArgs("version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "camlinkcheck dev")
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, errOut := runArgs("frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unknown command: frobnicate")
	assert.Contains(t, errOut, "Usage:")
}

func TestRun_BadFlag(t *testing.T) {
	isolate(t)
	code, _, errOut := runArgs("webrtc", "--no-such-flag")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "webrtc:")
}

func TestDiagnose_RequiresSignalingURL(t *testing.T) {
	isolate(t)
	code, _, errOut := runArgs("diagnose")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "signaling URL is not set")
}

func TestIceConfig_MasksCredential(t *testing.T) {
	isolate(t)
	t.Setenv("CAMLINK_TURN_ADDR", "relay.example.test:3478")
	t.Setenv("CAMLINK_TURN_USERNAME", "user")
	t.Setenv("CAMLINK_TURN_CREDENTIAL", "secret")

	code, out, _ := runArgs("ice-config", "--restricted")
	require.Equal(t, 0, code)
	assert.NotContains(t, out, "secret")

	var cfg probe.Configuration
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, probe.TransportPolicyRelay, cfg.TransportPolicy)
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, "turn:relay.example.test:3478?transport=tcp", cfg.ICEServers[0].URL)
	assert.Equal(t, "user", cfg.ICEServers[0].Username)
	assert.Equal(t, "******", cfg.ICEServers[0].Credential)
}

func TestIceConfig_EnvFileFlag(t *testing.T) {
	isolate(t)
	env := filepath.Join(t.TempDir(), "probe.env")
	require.NoError(t, os.WriteFile(env, []byte("CAMLINK_STUN_ADDR=stun.example.test:3478\n"), 0o600))

	code, out, _ := runArgs("ice-config", "--env", env)
	require.Equal(t, 0, code)

	var cfg probe.Configuration
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, probe.TransportPolicyAll, cfg.TransportPolicy)
	require.Len(t, cfg.ICEServers, 3)
	assert.Equal(t, "stun:stun.example.test:3478", cfg.ICEServers[0].URL)
}

func TestDiagnose_WithoutWebRTC(t *testing.T) {
	isolate(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/ip", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ip":"198.51.100.5"}`)
	})
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/ports", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"OK","tcp":{"443":"success"},"udp":{},"failed_ports":[]}`)
	})
	up := httptest.NewServer(mux)
	defer up.Close()

	t.Setenv("CAMLINK_IP_LOOKUP_URL", up.URL+"/ip")
	t.Setenv("CAMLINK_NETWORK_INFO_URL", "")
	t.Setenv("CAMLINK_STUN_SERVERS", "")
	t.Setenv("CAMLINK_SERVICE_TARGETS", up.URL+"/favicon.ico")
	t.Setenv("CAMLINK_PORT_CHECK_URL", up.URL+"/ports")

	exports := t.TempDir()
	code, out, _ := runArgs("diagnose", "--no-webrtc", "--format", "json", "--exports", exports)
	require.Equal(t, 0, code, out)

	var d report.Diagnosis
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, "OK", d.Overall)
	assert.Empty(t, d.Passes)
	assert.Equal(t, "198.51.100.5", d.ExternalIP.IP)

	_, err := os.Stat(filepath.Join(exports, "run_"+d.RunID, "report.txt"))
	assert.NoError(t, err)
}

func TestRun_Help(t *testing.T) {
	for _, arg := range []string{"help", "-h", "--help"} {
		code, out, _ := runArgs(arg)
		assert.Equal(t, 0, code, arg)
		assert.Contains(t, out, "camlinkcheck [diagnose] [flags]", arg)
	}
}

func TestResolveMyIP(t *testing.T) {
	var hits int
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, `{"ip":"198.51.100.5"}`)
	}))
	defer up.Close()

	cfg := config.Defaults()
	cfg.IPLookupURL = up.URL
	cfg.STUNServers = nil
	d := app.New(app.Options{Config: cfg, HTTPClient: up.Client()})

	var errOut bytes.Buffer
	c := &command{stdout: io.Discard, stderr: &errOut}

	assert.Equal(t, "203.0.113.10", c.resolveMyIP(context.Background(), d, "203.0.113.10"))
	assert.Equal(t, 0, hits)

	assert.Equal(t, "198.51.100.5", c.resolveMyIP(context.Background(), d, ""))
	assert.Equal(t, 1, hits)
	assert.Contains(t, errOut.String(), "external IP: 198.51.100.5 (via ipify)")
}

func TestResolveMyIP_LookupFailure(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer up.Close()

	cfg := config.Defaults()
	cfg.IPLookupURL = up.URL
	cfg.STUNServers = nil
	d := app.New(app.Options{Config: cfg, HTTPClient: up.Client()})

	var errOut bytes.Buffer
	c := &command{stdout: io.Discard, stderr: &errOut}

	assert.Empty(t, c.resolveMyIP(context.Background(), d, ""))
	assert.Contains(t, errOut.String(), "vpn-loopback check skipped")
}
