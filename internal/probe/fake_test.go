// File: internal/probe/fake_test.go (complete file)

package probe

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

const answerSDP = "v=0\r\n" +
	"o=- 4611731400430051336 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=application 9 UDP/DTLS/SCTP webrtc-datachannel\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:0\r\n" +
	"a=candidate:1 1 udp 2130706431 192.0.2.10 50000 typ host\r\n" +
	"a=candidate:2 1 udp 16777215 203.0.113.50 3478 typ relay raddr 0.0.0.0 rport 0\r\n"

func validAnswer() SessionDescription {
	return SessionDescription{Type: "answer", SDP: answerSDP}
}

// fakePeer scripts engine behaviour for session tests.
type fakePeer struct {
	events chan<- Event

	offerErr  error
	answerErr error
	sendErr   error

	// onAnswer is emitted after SetAnswer succeeds.
	onAnswer []Event
	// onOffer is emitted from CreateOffer.
	onOffer []Event
	// reply is the message emitted for every probe sent; empty sends nothing.
	reply string
	// afterReply is emitted once, after the first reply.
	afterReply []Event

	stats Stats
	// statsFn, when set, replaces stats and is given the call number (from 1).
	statsFn func(call int) Stats

	mu       sync.Mutex
	sent     []string
	answered bool
	closed   int
	replied  bool
	polls    int
}

func (p *fakePeer) push(evs ...Event) {
	for _, ev := range evs {
		p.events <- ev
	}
}

func (p *fakePeer) CreateOffer() (SessionDescription, error) {
	if p.offerErr != nil {
		return SessionDescription{}, p.offerErr
	}
	p.push(p.onOffer...)
	return SessionDescription{Type: "offer", SDP: "v=0\r\n"}, nil
}

func (p *fakePeer) SetAnswer(answer SessionDescription) error {
	if p.answerErr != nil {
		return p.answerErr
	}
	p.mu.Lock()
	p.answered = true
	p.mu.Unlock()
	p.push(p.onAnswer...)
	return nil
}

func (p *fakePeer) SendText(msg string) error {
	if p.sendErr != nil {
		return p.sendErr
	}
	p.mu.Lock()
	p.sent = append(p.sent, msg)
	first := !p.replied
	p.replied = true
	p.mu.Unlock()

	if p.reply != "" {
		p.push(Event{Kind: EventChannelMessage, Value: p.reply})
	}
	if first {
		p.push(p.afterReply...)
	}
	return nil
}

func (p *fakePeer) Stats() Stats {
	p.mu.Lock()
	p.polls++
	n := p.polls
	p.mu.Unlock()
	if p.statsFn != nil {
		return p.statsFn(n)
	}
	return p.stats
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func (p *fakePeer) sentCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func (p *fakePeer) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// fakeFactory hands out peer and remembers the events channel it was wired to.
type fakeFactory struct {
	peer  *fakePeer
	err   error
	calls int
}

func (f *fakeFactory) New(cfg Configuration, events chan<- Event) (Peer, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.peer.events = events
	return f.peer, nil
}

type signalerFunc func(ctx context.Context, offer SessionDescription) (SessionDescription, error)

func (f signalerFunc) ExchangeOffer(ctx context.Context, offer SessionDescription) (SessionDescription, error) {
	return f(ctx, offer)
}

func answerWith(answer SessionDescription) Signaler {
	return signalerFunc(func(context.Context, SessionDescription) (SessionDescription, error) {
		return answer, nil
	})
}

// blockingSignaler waits for ctx, like an endpoint that never answers.
func blockingSignaler() Signaler {
	return signalerFunc(func(ctx context.Context, _ SessionDescription) (SessionDescription, error) {
		<-ctx.Done()
		return SessionDescription{}, &SignalingError{Reason: abortReason(ctx, ctx.Err())}
	})
}

func testConfig() Configuration {
	cfg := DefaultConfiguration()
	cfg.TransportPolicy = TransportPolicyRelay
	cfg.ICEServers = []ICEServer{{URL: "turn:turn.example.test:443?transport=tcp", Username: "u", Credential: "secret"}}
	cfg.DataChannelTimeout = 300 * time.Millisecond
	cfg.LivenessTimeout = 300 * time.Millisecond
	cfg.SignalingTimeout = 300 * time.Millisecond
	cfg.KeepaliveInterval = time.Hour
	cfg.HoldPeriod = 20 * time.Millisecond
	cfg.StatsPollInterval = 10 * time.Millisecond
	return cfg
}

func relayStats() Stats {
	return NewStats(
		CandidatePair{ID: "CP1", LocalCandidateID: "L1", RemoteCandidateID: "R1", State: PairSucceeded, Nominated: true},
		Candidate{ID: "L1", Direction: DirectionLocal, Type: CandidateRelay, Address: "203.0.113.50", Port: 50001, Protocol: "udp"},
		Candidate{ID: "R1", Direction: DirectionRemote, Type: CandidateHost, Address: "192.0.2.10", Port: 50000, Protocol: "udp"},
	)
}

func hasLog(logs []string, substr string) bool {
	for _, l := range logs {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

var errBoom = errors.New("boom")
