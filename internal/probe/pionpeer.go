// File: internal/probe/pionpeer.go (complete file)

package probe

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"
)

// NewPionPeerFactory returns a PeerFactory backed by pion/webrtc.
func NewPionPeerFactory(log *slog.Logger) PeerFactory {
	return func(cfg Configuration, events chan<- Event) (Peer, error) {
		return newPionPeer(cfg, log, events)
	}
}

type pionPeer struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	events    chan<- Event
	done      chan struct{}
	closeOnce sync.Once
}

func newPionPeer(cfg Configuration, log *slog.Logger, events chan<- Event) (*pionPeer, error) {
	settings := webrtc.SettingEngine{
		LoggerFactory: newPionLoggerFactory(log),
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settings))

	policy := webrtc.ICETransportPolicyAll
	if cfg.TransportPolicy == TransportPolicyRelay {
		policy = webrtc.ICETransportPolicyRelay
	}

	servers := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
	for _, s := range cfg.ICEServers {
		srv := webrtc.ICEServer{URLs: []string{s.URL}}
		if s.IsTURN() {
			srv.Username = s.Username
			srv.Credential = s.Credential
		}
		servers = append(servers, srv)
	}

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers:         servers,
		ICETransportPolicy: policy,
		BundlePolicy:       webrtc.BundlePolicyMaxBundle,
		RTCPMuxPolicy:      webrtc.RTCPMuxPolicyRequire,
	})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	ordered := true
	init := &webrtc.DataChannelInit{Ordered: &ordered}
	if cfg.NegotiatedChannelID != nil {
		negotiated := true
		id := *cfg.NegotiatedChannelID
		init.Negotiated = &negotiated
		init.ID = &id
	}

	dc, err := pc.CreateDataChannel(cfg.ChannelLabel, init)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("create data channel: %w", err)
	}

	p := &pionPeer{
		pc:     pc,
		dc:     dc,
		events: events,
		done:   make(chan struct{}),
	}
	p.wire()
	return p, nil
}

func (p *pionPeer) wire() {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			p.emit(Event{Kind: EventICEGatheringDone})
			return
		}
		p.emit(Event{
			Kind:          EventICECandidate,
			Value:         c.ToJSON().Candidate,
			CandidateType: CandidateType(c.Typ.String()),
		})
	})
	p.pc.OnICEGatheringStateChange(func(s webrtc.ICEGatheringState) {
		p.emit(Event{Kind: EventICEGatheringState, Value: s.String()})
	})
	p.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		p.emit(Event{Kind: EventICEConnectionState, Value: s.String()})
	})
	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		p.emit(Event{Kind: EventConnectionState, Value: s.String()})
	})
	p.pc.OnSignalingStateChange(func(s webrtc.SignalingState) {
		p.emit(Event{Kind: EventSignalingState, Value: s.String()})
	})

	p.dc.OnOpen(func() {
		p.emit(Event{Kind: EventChannelOpen})
	})
	p.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		p.emit(Event{Kind: EventChannelMessage, Value: string(msg.Data)})
	})
	p.dc.OnClose(func() {
		p.emit(Event{Kind: EventChannelClose})
	})
	p.dc.OnError(func(err error) {
		p.emit(Event{Kind: EventChannelError, Err: err})
	})
}

// emit blocks until the session takes the event or the peer is closed,
// so engine callbacks never outlive the session.
func (p *pionPeer) emit(ev Event) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.events <- ev:
	case <-p.done:
	}
}

func (p *pionPeer) CreateOffer() (SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return SessionDescription{}, err
	}
	local := p.pc.LocalDescription()
	if local == nil {
		return SessionDescription{}, fmt.Errorf("local description not set")
	}
	return SessionDescription{SDP: local.SDP, Type: local.Type.String()}, nil
}

func (p *pionPeer) SetAnswer(answer SessionDescription) error {
	return p.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer.SDP,
	})
}

func (p *pionPeer) SendText(msg string) error {
	if p.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return fmt.Errorf("data channel not open (state: %s)", p.dc.ReadyState())
	}
	return p.dc.SendText(msg)
}

func (p *pionPeer) Stats() Stats {
	return DecodeStats(p.pc.GetStats())
}

func (p *pionPeer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.pc.Close()
	})
	return err
}
