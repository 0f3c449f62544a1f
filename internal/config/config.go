// File: internal/config/config.go (complete file)

// Package config resolves runtime settings from built-in defaults, an optional
// .env file and CAMLINK_* environment variables, in that order. CLI flags are
// applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/baptistax/camlinkcheck/internal/checks"
	"github.com/baptistax/camlinkcheck/internal/probe"
)

const (
	EnvPrefix      = "CAMLINK_"
	DefaultEnvFile = ".env"
)

type Config struct {
	SignalingURL string
	Relay        probe.RelaySettings

	// PortCheckURL returns the JSON port report; PortCheckBaseURL serves the
	// plain-text /check and /external-ip endpoints proxied by the HTTP agent.
	PortCheckURL     string
	PortCheckBaseURL string

	ServiceTargets []string
	IPLookupURL    string
	NetworkInfoURL string
	STUNServers    []string

	Restricted     bool
	EnableWebRTC   bool
	AcceptAnyReply bool

	HoldPeriod         time.Duration
	DataChannelTimeout time.Duration
	SignalingTimeout   time.Duration
	HTTPTimeout        time.Duration

	ExportsDir string
	ListenAddr string
	LogLevel   string

	// AllowedOrigins extends the agent's browser origin policy beyond the
	// loopback and same-host origins, e.g. "https://support.example.com".
	AllowedOrigins []string
}

func Defaults() Config {
	pc := probe.DefaultConfiguration()
	return Config{
		ServiceTargets:     []string{"https://www.alarm.com/favicon.ico"},
		IPLookupURL:        checks.DefaultIPLookupURL,
		NetworkInfoURL:     checks.DefaultNetworkInfoURL,
		STUNServers:        append([]string(nil), checks.DefaultSTUNServers...),
		EnableWebRTC:       true,
		HoldPeriod:         pc.HoldPeriod,
		DataChannelTimeout: pc.DataChannelTimeout,
		SignalingTimeout:   pc.SignalingTimeout,
		HTTPTimeout:        10 * time.Second,
		ExportsDir:         "exports",
		ListenAddr:         "127.0.0.1:8787",
		LogLevel:           "info",
	}
}

// Load reads envFile (missing files are ignored unless the path was given
// explicitly through CAMLINK_ENV_FILE) and overlays the process environment.
func Load(envFile string) (Config, error) {
	explicit := false
	if p, ok := os.LookupEnv(EnvPrefix + "ENV_FILE"); ok && p != "" {
		envFile, explicit = p, true
	}
	if envFile == "" {
		envFile = DefaultEnvFile
	}

	values := map[string]string{}
	fileValues, err := godotenv.Read(envFile)
	switch {
	case err == nil:
		for k, v := range fileValues {
			values[k] = v
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read %s: %w", envFile, err)
	}

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			values[k] = v
		}
	}

	return FromMap(values)
}

// FromMap applies CAMLINK_* keys from m over Defaults.
func FromMap(m map[string]string) (Config, error) {
	c := Defaults()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := m[EnvPrefix+key]; ok {
			*dst = strings.TrimSpace(v)
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := m[EnvPrefix+key]; ok {
			*dst = SplitCSV(v)
		}
	}
	boolean := func(key string, dst *bool) {
		v, ok := m[EnvPrefix+key]
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
			return
		}
		*dst = b
	}
	duration := func(key string, dst *time.Duration) {
		v, ok := m[EnvPrefix+key]
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
			return
		}
		*dst = d
	}

	str("SIGNALING_URL", &c.SignalingURL)
	str("STUN_ADDR", &c.Relay.STUNAddr)
	str("TURN_ADDR", &c.Relay.TURNAddr)
	str("TURN_USERNAME", &c.Relay.Username)
	str("TURN_CREDENTIAL", &c.Relay.Credential)
	str("PORT_CHECK_URL", &c.PortCheckURL)
	str("PORT_CHECK_BASE_URL", &c.PortCheckBaseURL)
	list("SERVICE_TARGETS", &c.ServiceTargets)
	str("IP_LOOKUP_URL", &c.IPLookupURL)
	str("NETWORK_INFO_URL", &c.NetworkInfoURL)
	list("STUN_SERVERS", &c.STUNServers)
	boolean("RESTRICTED", &c.Restricted)
	boolean("ENABLE_WEBRTC", &c.EnableWebRTC)
	boolean("ACCEPT_ANY_REPLY", &c.AcceptAnyReply)
	duration("HOLD_PERIOD", &c.HoldPeriod)
	duration("DATA_CHANNEL_TIMEOUT", &c.DataChannelTimeout)
	duration("SIGNALING_TIMEOUT", &c.SignalingTimeout)
	duration("HTTP_TIMEOUT", &c.HTTPTimeout)
	str("EXPORTS_DIR", &c.ExportsDir)
	str("LISTEN_ADDR", &c.ListenAddr)
	list("ALLOWED_ORIGINS", &c.AllowedOrigins)
	str("LOG_LEVEL", &c.LogLevel)

	return c, errors.Join(errs...)
}

// Validate reports settings the WebRTC probe cannot run without.
func (c Config) Validate() error {
	if !c.EnableWebRTC {
		return nil
	}
	var errs []error
	if c.SignalingURL == "" {
		errs = append(errs, errors.New("signaling URL is not set ("+EnvPrefix+"SIGNALING_URL)"))
	}
	if c.Relay.STUNAddr == "" && c.Relay.TURNAddr == "" {
		errs = append(errs, errors.New("relay address is not set ("+EnvPrefix+"TURN_ADDR or "+EnvPrefix+"STUN_ADDR)"))
	}
	return errors.Join(errs...)
}

// ProbeConfig builds the probe configuration for one pass.
func (c Config) ProbeConfig(restricted bool) probe.Configuration {
	pc := probe.IceConfig(restricted, c.Relay)
	if c.HoldPeriod > 0 {
		pc.HoldPeriod = c.HoldPeriod
	}
	if c.DataChannelTimeout > 0 {
		pc.DataChannelTimeout = c.DataChannelTimeout
	}
	if c.SignalingTimeout > 0 {
		pc.SignalingTimeout = c.SignalingTimeout
	}
	pc.Liveness.AcceptAny = c.AcceptAnyReply
	return pc
}

func SplitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
