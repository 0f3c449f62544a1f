// File: internal/probe/config.go (complete file)

package probe

import (
	"strings"
	"time"
)

type TransportPolicy string

const (
	TransportPolicyAll   TransportPolicy = "all"
	TransportPolicyRelay TransportPolicy = "relay"
)

type ICEServer struct {
	URL        string `json:"url"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

func (s ICEServer) IsTURN() bool {
	return strings.HasPrefix(s.URL, "turn:") || strings.HasPrefix(s.URL, "turns:")
}

// LivenessPolicy decides which data channel replies count as proof the remote end is alive.
type LivenessPolicy struct {
	Probe     string `json:"probe"`
	Reply     string `json:"reply"`
	AcceptAny bool   `json:"accept_any"`
}

func (l LivenessPolicy) Accepts(msg string) bool {
	if l.AcceptAny {
		return strings.TrimSpace(msg) != ""
	}
	return msg == l.Reply
}

// Configuration is copied into a Session when it is created and never changed afterwards.
type Configuration struct {
	TransportPolicy TransportPolicy `json:"transport_policy"`
	ICEServers      []ICEServer     `json:"ice_servers"`

	DataChannelTimeout time.Duration `json:"data_channel_timeout"`
	KeepaliveInterval  time.Duration `json:"keepalive_interval"`
	SignalingTimeout   time.Duration `json:"signaling_timeout"`
	LivenessTimeout    time.Duration `json:"liveness_timeout"`
	HoldPeriod         time.Duration `json:"hold_period"`
	StatsPollInterval  time.Duration `json:"stats_poll_interval"`

	ChannelLabel string `json:"channel_label"`
	// NegotiatedChannelID pre-negotiates the data channel with this SCTP stream id.
	// nil lets the engine announce the channel in-band.
	NegotiatedChannelID *uint16        `json:"negotiated_channel_id,omitempty"`
	Liveness            LivenessPolicy `json:"liveness"`
}

// RelaySettings are the static relay coordinates plus the TURN credential pair.
// TURNAddr falls back to STUNAddr when empty.
type RelaySettings struct {
	STUNAddr   string
	TURNAddr   string
	Username   string
	Credential string
}

func DefaultConfiguration() Configuration {
	id := uint16(0)
	return Configuration{
		TransportPolicy:     TransportPolicyAll,
		DataChannelTimeout:  30 * time.Second,
		KeepaliveInterval:   5 * time.Second,
		SignalingTimeout:    5 * time.Second,
		LivenessTimeout:     10 * time.Second,
		HoldPeriod:          10 * time.Second,
		StatsPollInterval:   1 * time.Second,
		ChannelLabel:        "check",
		NegotiatedChannelID: &id,
		Liveness: LivenessPolicy{
			Probe: "ping",
			Reply: "pong",
		},
	}
}

// IceConfig builds the probe configuration for the execution environment.
// Restricted networks (mobile carriers, hosted sandboxes) get relay-only TURN over TCP,
// since they commonly drop UDP in one direction or both.
func IceConfig(restricted bool, relay RelaySettings) Configuration {
	cfg := DefaultConfiguration()

	turnAddr := relay.TURNAddr
	if turnAddr == "" {
		turnAddr = relay.STUNAddr
	}
	turnTCP := ICEServer{
		URL:        "turn:" + turnAddr + "?transport=tcp",
		Username:   relay.Username,
		Credential: relay.Credential,
	}

	if restricted {
		cfg.TransportPolicy = TransportPolicyRelay
		cfg.ICEServers = []ICEServer{turnTCP}
		return cfg
	}

	stunAddr := relay.STUNAddr
	if stunAddr == "" {
		stunAddr = turnAddr
	}
	cfg.TransportPolicy = TransportPolicyAll
	cfg.ICEServers = []ICEServer{
		{URL: "stun:" + stunAddr},
		{
			URL:        "turn:" + turnAddr + "?transport=udp",
			Username:   relay.Username,
			Credential: relay.Credential,
		},
		turnTCP,
	}
	return cfg
}

// Redacted returns a copy whose TURN credentials are masked, for logs and API output.
func (c Configuration) Redacted() Configuration {
	out := c
	out.ICEServers = make([]ICEServer, len(c.ICEServers))
	for i, s := range c.ICEServers {
		if s.Credential != "" {
			s.Credential = strings.Repeat("*", len(s.Credential))
		}
		out.ICEServers[i] = s
	}
	return out
}

func (c Configuration) serverURLs() string {
	urls := make([]string, 0, len(c.ICEServers))
	for _, s := range c.ICEServers {
		urls = append(urls, s.URL)
	}
	return strings.Join(urls, ", ")
}

// withDefaults fills zero durations and an empty liveness policy from DefaultConfiguration.
func (c Configuration) withDefaults() Configuration {
	d := DefaultConfiguration()
	if c.TransportPolicy == "" {
		c.TransportPolicy = d.TransportPolicy
	}
	if c.DataChannelTimeout <= 0 {
		c.DataChannelTimeout = d.DataChannelTimeout
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = d.KeepaliveInterval
	}
	if c.SignalingTimeout <= 0 {
		c.SignalingTimeout = d.SignalingTimeout
	}
	if c.LivenessTimeout <= 0 {
		c.LivenessTimeout = d.LivenessTimeout
	}
	if c.HoldPeriod < 0 {
		c.HoldPeriod = 0
	}
	if c.StatsPollInterval <= 0 {
		c.StatsPollInterval = d.StatsPollInterval
	}
	if c.ChannelLabel == "" {
		c.ChannelLabel = d.ChannelLabel
	}
	if c.Liveness.Probe == "" {
		c.Liveness.Probe = d.Liveness.Probe
	}
	if c.Liveness.Reply == "" && !c.Liveness.AcceptAny {
		c.Liveness.Reply = d.Liveness.Reply
	}
	c.ICEServers = append([]ICEServer(nil), c.ICEServers...)
	return c
}
