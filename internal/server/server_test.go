// File: internal/server/server_test.go (complete file)

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baptistax/camlinkcheck/internal/config"
	"github.com/baptistax/camlinkcheck/internal/probe"
	"github.com/baptistax/camlinkcheck/internal/report"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeRunner struct {
	lines   []string
	entered chan struct{}
	release chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, onLog func(string)) report.Diagnosis {
	if f.entered != nil {
		close(f.entered)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
		}
	}
	for _, l := range f.lines {
		if onLog != nil {
			onLog(l)
		}
	}
	return report.Diagnosis{RunID: "x", Overall: "OK", Logs: f.lines}
}

func testConfig() config.Config {
	c := config.Defaults()
	c.Relay = probe.RelaySettings{STUNAddr: "relay.example.test:3478", Username: "user", Credential: "secret"}
	c.ExportsDir = ""
	return c
}

func do(t *testing.T, h http.Handler, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServiceCheck(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()

	c := testConfig()
	c.ServiceTargets = []string{up.URL + "/favicon.ico"}
	s := New(Options{Config: c, Runner: &fakeRunner{}})

	rec := do(t, s.Handler(), http.MethodGet, "/api/fqdncheck", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status  string   `json:"status"`
		Details []string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body.Status)
	assert.Equal(t, []string{up.URL + "/favicon.ico -> OK (200)"}, body.Details)
}

func TestPortCheck(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/check", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "TCP 443: OK\nUDP 3478: OK\n")
	})
	mux.HandleFunc("/external-ip", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "198.51.100.5\n")
	})
	up := httptest.NewServer(mux)
	defer up.Close()

	c := testConfig()
	c.PortCheckBaseURL = up.URL
	s := New(Options{Config: c, Runner: &fakeRunner{}})

	rec := do(t, s.Handler(), http.MethodGet, "/api/check", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Lines []string `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"TCP 443: OK", "UDP 3478: OK", "external IP (port checker): 198.51.100.5"}, body.Lines)
}

func TestPortCheck_UpstreamFailure(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer up.Close()

	c := testConfig()
	c.PortCheckBaseURL = up.URL
	s := New(Options{Config: c, Runner: &fakeRunner{}})

	rec := do(t, s.Handler(), http.MethodGet, "/api/check", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "502")
}

func TestPortCheck_NotConfigured(t *testing.T) {
	s := New(Options{Config: testConfig(), Runner: &fakeRunner{}})

	rec := do(t, s.Handler(), http.MethodGet, "/api/check", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type iceConfigBody struct {
	Restricted bool                `json:"restricted"`
	Config     probe.Configuration `json:"config"`
}

func TestIceConfig_MobileUserAgentIsRestricted(t *testing.T) {
	s := New(Options{Config: testConfig(), Runner: &fakeRunner{}})

	rec := do(t, s.Handler(), http.MethodGet, "/api/ice-config", map[string]string{
		"User-Agent": "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body iceConfigBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Restricted)
	assert.Equal(t, probe.TransportPolicyRelay, body.Config.TransportPolicy)
	require.Len(t, body.Config.ICEServers, 1)
	assert.Equal(t, "turn:relay.example.test:3478?transport=tcp", body.Config.ICEServers[0].URL)
	assert.Equal(t, "******", body.Config.ICEServers[0].Credential)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestIceConfig_QueryOverride(t *testing.T) {
	s := New(Options{Config: testConfig(), Runner: &fakeRunner{}})

	rec := do(t, s.Handler(), http.MethodGet, "/api/ice-config?restricted=false", map[string]string{
		"User-Agent": "Mozilla/5.0 (Linux; Android 14)",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body iceConfigBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Restricted)
	assert.Equal(t, probe.TransportPolicyAll, body.Config.TransportPolicy)
	assert.Len(t, body.Config.ICEServers, 3)

	rec = do(t, s.Handler(), http.MethodGet, "/api/ice-config?restricted=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDiagnose_ExportsReport(t *testing.T) {
	c := testConfig()
	c.ExportsDir = t.TempDir()
	s := New(Options{Config: c, Runner: &fakeRunner{lines: []string{"one"}}})

	rec := do(t, s.Handler(), http.MethodPost, "/api/diagnose", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var d report.Diagnosis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, "OK", d.Overall)
	assert.NotEqual(t, "x", d.RunID)

	_, err := os.Stat(filepath.Join(c.ExportsDir, "run_"+d.RunID, "report.json"))
	assert.NoError(t, err)
}

func TestDiagnose_RejectsConcurrentRun(t *testing.T) {
	r := &fakeRunner{entered: make(chan struct{}), release: make(chan struct{})}
	s := New(Options{Config: testConfig(), Runner: r})

	first := make(chan int, 1)
	go func() {
		first <- do(t, s.Handler(), http.MethodPost, "/api/diagnose", nil).Code
	}()

	select {
	case <-r.entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("first diagnosis did not start")
	}

	rec := do(t, s.Handler(), http.MethodPost, "/api/diagnose", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(r.release)
	assert.Equal(t, http.StatusOK, <-first)
}

func TestDiagnoseWS_StreamsLogsThenReport(t *testing.T) {
	s := New(Options{Config: testConfig(), Runner: &fakeRunner{lines: []string{"first", "second"}}})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/diagnose/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	var got []wsMessage
	for {
		_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
		var m wsMessage
		if err := ws.ReadJSON(&m); err != nil {
			break
		}
		got = append(got, m)
	}

	require.Len(t, got, 3)
	assert.Equal(t, wsMessage{Type: "log", Line: "first"}, got[0])
	assert.Equal(t, wsMessage{Type: "log", Line: "second"}, got[1])
	assert.Equal(t, "result", got[2].Type)
	require.NotNil(t, got[2].Report)
	assert.Equal(t, "OK", got[2].Report.Overall)
}

func TestServe_StopsOnCancel(t *testing.T) {
	s := New(Options{Config: testConfig(), Runner: &fakeRunner{}})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestOrigin_CrossSiteRejected(t *testing.T) {
	s := New(Options{Config: testConfig(), Runner: &fakeRunner{}})

	rec := do(t, s.Handler(), http.MethodPost, "/api/diagnose", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, s.Handler(), http.MethodGet, "/api/ice-config", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "relay.example.test")
}

func TestOrigin_Allowed(t *testing.T) {
	c := testConfig()
	c.AllowedOrigins = []string{"https://support.example.test/"}
	s := New(Options{Config: c, Runner: &fakeRunner{}})

	for _, origin := range []string{
		"",
		"http://localhost:3000",
		"http://127.0.0.1:8787",
		"http://[::1]:8080",
		"http://example.com", // httptest.NewRequest uses Host example.com
		"https://support.example.test",
	} {
		hdr := map[string]string{}
		if origin != "" {
			hdr["Origin"] = origin
		}
		rec := do(t, s.Handler(), http.MethodGet, "/api/ice-config", hdr)
		assert.Equal(t, http.StatusOK, rec.Code, origin)
	}
}

func TestDiagnoseWS_CrossSiteRejected(t *testing.T) {
	r := &fakeRunner{entered: make(chan struct{})}
	s := New(Options{Config: testConfig(), Runner: r})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/diagnose/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	if ws != nil {
		ws.Close()
	}
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	select {
	case <-r.entered:
		t.Fatalf("diagnosis ran for a rejected origin")
	default:
	}
}
