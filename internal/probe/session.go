// File: internal/probe/session.go (complete file)

// Package probe runs one WebRTC connectivity probe against a TURN/STUN relay
// and classifies the path the connection ended up using.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a Session:
//
//	IDLE -> OFFER_CREATED -> SIGNALING_SENT -> REMOTE_SET -> CHANNEL_OPENING
//	     -> CHANNEL_OPEN -> VERIFIED -> CLOSED
//
// ERROR is reachable from every state before CLOSED and always ends in CLOSED.
type State string

const (
	StateIdle           State = "IDLE"
	StateOfferCreated   State = "OFFER_CREATED"
	StateSignalingSent  State = "SIGNALING_SENT"
	StateRemoteSet      State = "REMOTE_SET"
	StateChannelOpening State = "CHANNEL_OPENING"
	StateChannelOpen    State = "CHANNEL_OPEN"
	StateVerified       State = "VERIFIED"
	StateError          State = "ERROR"
	StateClosed         State = "CLOSED"
)

var nextStates = map[State][]State{
	StateIdle:           {StateOfferCreated},
	StateOfferCreated:   {StateSignalingSent},
	StateSignalingSent:  {StateRemoteSet},
	StateRemoteSet:      {StateChannelOpening},
	StateChannelOpening: {StateChannelOpen},
	StateChannelOpen:    {StateVerified},
	StateVerified:       {},
	StateError:          {},
}

func canTransition(from, to State) bool {
	if from == StateClosed {
		return false
	}
	if to == StateClosed {
		return true
	}
	if to == StateError {
		return from != StateError
	}
	for _, s := range nextStates[from] {
		if s == to {
			return true
		}
	}
	return false
}

// reached reports whether s is at or past target on the happy path.
func (s State) reached(target State) bool {
	order := []State{StateIdle, StateOfferCreated, StateSignalingSent, StateRemoteSet,
		StateChannelOpening, StateChannelOpen, StateVerified}
	si, ti := -1, -1
	for i, o := range order {
		if o == s {
			si = i
		}
		if o == target {
			ti = i
		}
	}
	return si >= 0 && ti >= 0 && si >= ti
}

type LogEntry struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

func (e LogEntry) String() string {
	return e.At.Format("15:04:05.000") + " " + e.Text
}

// Verdict is the outcome of one probe.
type Verdict struct {
	SessionID  string          `json:"session_id"`
	Policy     TransportPolicy `json:"transport_policy"`
	Connected  bool            `json:"connected"`
	PathType   PathType        `json:"path_type"`
	Suspicion  Suspicion       `json:"suspicion"`
	Suspicions []Suspicion     `json:"suspicions,omitempty"`
	Local      *Candidate      `json:"local,omitempty"`
	Remote     *Candidate      `json:"remote,omitempty"`
	Failure    Failure         `json:"failure,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	Duration   time.Duration   `json:"duration"`
	Logs       []string        `json:"logs"`

	Err error `json:"-"`
}

type SessionOptions struct {
	Config   Configuration
	Signaler Signaler
	NewPeer  PeerFactory
	// MyGlobalIP is the client's externally observed address, used by the loopback check.
	MyGlobalIP string
	Logger     *slog.Logger
	// OnLog is called synchronously from the session goroutine for every log line.
	// It must not call Close.
	OnLog func(LogEntry)
}

// Session owns one peer connection and drives it from offer to teardown.
// A Session is single use.
type Session struct {
	id       string
	cfg      Configuration
	signaler Signaler
	newPeer  PeerFactory
	myIP     string
	log      *slog.Logger
	onLog    func(LogEntry)
	events   chan Event

	mu        sync.Mutex
	state     State
	startedAt time.Time
	logs      []LogEntry
	verdict   *Verdict
	running   bool

	closeOnce sync.Once
	closeCh   chan struct{}
	done      chan struct{}
}

func NewSession(opts SessionOptions) *Session {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		id:       id,
		cfg:      opts.Config.withDefaults(),
		signaler: opts.Signaler,
		newPeer:  opts.NewPeer,
		myIP:     opts.MyGlobalIP,
		log:      log.With("session", id),
		onLog:    opts.OnLog,
		events:   make(chan Event, 64),
		state:    StateIdle,
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Config() Configuration { return s.cfg }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Logs() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogEntry(nil), s.logs...)
}

// Verdict returns the recorded verdict once the session is closed.
func (s *Session) Verdict() (Verdict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verdict == nil {
		return Verdict{}, false
	}
	return *s.verdict, true
}

// Done is closed when the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close aborts the session. It is idempotent and does not wait for teardown; use Done for that.
// Closing a finished session leaves its verdict untouched.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closeCh)

		s.mu.Lock()
		idle := !s.running && s.verdict == nil
		if idle {
			s.running = true
		}
		s.mu.Unlock()

		if idle {
			s.logf("probe closed before it started")
			s.transition(StateClosed, "session closed")
			s.record(Verdict{
				Connected: false,
				PathType:  PathUnknown,
				Suspicion: SuspicionNone,
				Failure:   FailureAborted,
				Error:     ErrAborted.Error(),
				Err:       ErrAborted,
			})
			close(s.done)
		}
	})
}

// Run drives the probe to completion and returns its verdict. Failures are
// reported inside the verdict; Run never returns an error.
func (s *Session) Run(ctx context.Context) Verdict {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		<-s.done
		v, _ := s.Verdict()
		return v
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()
	defer close(s.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.closeCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	r := &run{s: s, signaled: make(chan signalResult, 1)}
	r.execute(ctx)

	v, _ := s.Verdict()
	return v
}

func (s *Session) logf(format string, args ...any) {
	e := LogEntry{At: time.Now(), Text: fmt.Sprintf(format, args...)}
	s.mu.Lock()
	s.logs = append(s.logs, e)
	s.mu.Unlock()

	s.log.Debug(e.Text)
	if s.onLog != nil {
		s.onLog(e)
	}
}

func (s *Session) transition(to State, format string, args ...any) bool {
	s.mu.Lock()
	from := s.state
	ok := canTransition(from, to)
	if ok {
		s.state = to
	}
	s.mu.Unlock()

	if !ok {
		s.log.Warn("rejected state transition", "from", from, "to", to)
		return false
	}
	s.logf("[%s -> %s] "+format, append([]any{from, to}, args...)...)
	return true
}

func (s *Session) record(v Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verdict != nil {
		return
	}
	v.SessionID = s.id
	v.Policy = s.cfg.TransportPolicy
	v.StartedAt = s.startedAt
	if !s.startedAt.IsZero() {
		v.Duration = time.Since(s.startedAt)
	}
	v.Logs = make([]string, 0, len(s.logs))
	for _, e := range s.logs {
		v.Logs = append(v.Logs, e.String())
	}
	s.verdict = &v
}

type signalResult struct {
	answer SessionDescription
	err    error
}

// run holds the per-execution state the event loop owns. Only the session goroutine touches it.
type run struct {
	s    *Session
	peer Peer

	signaled chan signalResult

	channelTimer  *time.Timer
	livenessTimer *time.Timer
	holdTimer     *time.Timer
	keepalive     *time.Ticker
	statsTicker   *time.Ticker

	pendingOpen bool
	opening     bool
	verified    bool
	pairLogged  bool
	lastStats   Stats
}

func (r *run) execute(ctx context.Context) {
	s := r.s
	cfg := s.cfg
	s.logf("probe started: policy=%s servers=[%s] channel_timeout=%s hold=%s",
		cfg.TransportPolicy, cfg.Redacted().serverURLs(), cfg.DataChannelTimeout, cfg.HoldPeriod)

	if s.newPeer == nil || s.signaler == nil {
		r.fail(fmt.Errorf("%w: probe not wired (peer factory or signaler missing)", ErrOfferCreation))
		return
	}
	if ctx.Err() != nil {
		r.finish(ErrAborted)
		return
	}

	peer, err := s.newPeer(cfg, s.events)
	if err != nil {
		r.fail(fmt.Errorf("%w: %v", ErrOfferCreation, err))
		return
	}
	r.peer = peer
	s.logf("peer connection created, data channel %q", cfg.ChannelLabel)

	offer, err := peer.CreateOffer()
	if err != nil {
		r.fail(fmt.Errorf("%w: %v", ErrOfferCreation, err))
		return
	}
	s.transition(StateOfferCreated, "SDP offer created and set as local description (%d bytes)", len(offer.SDP))

	sigCtx, sigCancel := context.WithTimeout(ctx, cfg.SignalingTimeout)
	defer sigCancel()
	go func() {
		answer, err := s.signaler.ExchangeOffer(sigCtx, offer)
		r.signaled <- signalResult{answer: answer, err: err}
	}()
	s.transition(StateSignalingSent, "offer submitted to signaling endpoint (timeout %s)", cfg.SignalingTimeout)

	for {
		select {
		case <-ctx.Done():
			r.finish(ErrAborted)
			return

		case res := <-r.signaled:
			if ctx.Err() != nil {
				r.finish(ErrAborted)
				return
			}
			if !r.applyAnswer(res) {
				return
			}

		case ev := <-s.events:
			if r.handle(ev) {
				return
			}

		case <-timerC(r.channelTimer):
			r.channelTimer = nil
			r.fail(fmt.Errorf("%w: no open event within %s", ErrChannelTimeout, cfg.DataChannelTimeout))
			return

		case <-timerC(r.livenessTimer):
			r.livenessTimer = nil
			r.fail(fmt.Errorf("%w: no %q reply within %s", ErrLivenessTimeout, cfg.Liveness.Reply, cfg.LivenessTimeout))
			return

		case <-tickerC(r.keepalive):
			r.sendProbe("keepalive")

		case <-tickerC(r.statsTicker):
			r.pollStats()

		case <-timerC(r.holdTimer):
			r.holdTimer = nil
			s.logf("hold period of %s elapsed, closing", cfg.HoldPeriod)
			r.finish(nil)
			return
		}
	}
}

func (r *run) applyAnswer(res signalResult) bool {
	s := r.s
	if res.err != nil {
		err := res.err
		if !errors.Is(err, ErrSignaling) {
			err = fmt.Errorf("%w: %v", ErrSignaling, err)
		}
		r.fail(err)
		return false
	}
	s.logf("SDP answer received from signaling endpoint")

	lines, err := inspectAnswer(res.answer)
	if err != nil {
		r.fail(fmt.Errorf("%w: %v", ErrRemoteDescription, err))
		return false
	}
	if err := r.peer.SetAnswer(res.answer); err != nil {
		r.fail(fmt.Errorf("%w: %v", ErrRemoteDescription, err))
		return false
	}
	s.transition(StateRemoteSet, "remote description applied")
	for _, l := range lines {
		s.logf("%s", l)
	}

	s.transition(StateChannelOpening, "waiting for data channel open (timeout %s)", s.cfg.DataChannelTimeout)
	r.opening = true
	r.channelTimer = time.NewTimer(s.cfg.DataChannelTimeout)
	r.statsTicker = time.NewTicker(s.cfg.StatsPollInterval)

	if r.pendingOpen {
		r.pendingOpen = false
		r.onOpen()
	}
	return true
}

// handle processes one engine event and reports whether the session ended.
func (r *run) handle(ev Event) bool {
	s := r.s
	state := s.State()

	switch ev.Kind {
	case EventICECandidate:
		s.logf("[ICE] candidate: %s", ev.Value)
		if ev.CandidateType == CandidateRelay {
			s.logf("[ICE] relay candidate gathered")
		}

	case EventICEGatheringDone:
		s.logf("[ICE] candidate gathering complete")

	case EventICEGatheringState:
		s.logf("[ICE] gathering state: %s", ev.Value)

	case EventICEConnectionState:
		s.logf("[ICE] connection state: %s", ev.Value)

	case EventSignalingState:
		s.logf("[WebRTC] signaling state: %s", ev.Value)

	case EventConnectionState:
		s.logf("[WebRTC] connection state: %s", ev.Value)
		if ev.Value == "failed" && state.reached(StateRemoteSet) {
			if r.verified {
				r.fail(fmt.Errorf("%w: connection failed during hold period", ErrICEFailed))
			} else {
				r.fail(fmt.Errorf("%w: all candidate pairs failed", ErrICEFailed))
			}
			return true
		}

	case EventChannelOpen:
		switch {
		case state == StateChannelOpening:
			r.onOpen()
		case !state.reached(StateRemoteSet):
			r.pendingOpen = true
			s.logf("data channel open reported before the answer was applied, deferring")
		default:
			s.logf("data channel open reported again in %s, ignored", state)
		}

	case EventChannelMessage:
		s.logf("received: %q", ev.Value)
		if state == StateChannelOpen {
			if s.cfg.Liveness.Accepts(ev.Value) {
				r.onVerified()
			} else {
				s.logf("reply does not match liveness policy, still waiting")
			}
		}

	case EventChannelClose:
		s.logf("data channel closed by remote")
		if state.reached(StateChannelOpening) {
			if r.verified {
				r.fail(fmt.Errorf("%w: closed during hold period", ErrChannelClosed))
			} else {
				r.fail(ErrChannelClosed)
			}
			return true
		}

	case EventChannelError:
		s.logf("data channel error: %v", ev.Err)
	}
	return false
}

func (r *run) onOpen() {
	s := r.s
	stopTimer(&r.channelTimer)
	s.transition(StateChannelOpen, "data channel open")
	r.sendProbe("liveness")
	r.keepalive = time.NewTicker(s.cfg.KeepaliveInterval)
	r.livenessTimer = time.NewTimer(s.cfg.LivenessTimeout)
}

func (r *run) onVerified() {
	s := r.s
	stopTimer(&r.livenessTimer)
	r.verified = true
	s.transition(StateVerified, "liveness confirmed, holding connection for %s", s.cfg.HoldPeriod)
	r.holdTimer = time.NewTimer(s.cfg.HoldPeriod)
}

func (r *run) sendProbe(why string) {
	s := r.s
	if err := r.peer.SendText(s.cfg.Liveness.Probe); err != nil {
		s.logf("%s: send %q failed: %v", why, s.cfg.Liveness.Probe, err)
		return
	}
	s.logf("%s: sent %q", why, s.cfg.Liveness.Probe)
}

func (r *run) pollStats() {
	st := r.peer.Stats()
	if len(st.Pairs) > 0 {
		r.lastStats = st
	}
	if r.pairLogged {
		return
	}
	if p, _, ok := selectPair(st.Pairs); ok {
		r.pairLogged = true
		r.s.logf("candidate pair %s reached succeeded (nominated=%t)", p.ID, p.Nominated)
	}
}

func (r *run) fail(err error) {
	r.s.transition(StateError, "%v", err)
	r.finish(err)
}

// finish stops every timer, takes the final statistics, records the verdict and releases the peer.
func (r *run) finish(err error) {
	s := r.s
	stopTimer(&r.channelTimer)
	stopTimer(&r.livenessTimer)
	stopTimer(&r.holdTimer)
	stopTicker(&r.keepalive)
	stopTicker(&r.statsTicker)

	if errors.Is(err, ErrAborted) {
		s.logf("probe aborted by caller")
	}

	v := Verdict{
		PathType:  PathUnknown,
		Suspicion: SuspicionNone,
		Failure:   ClassifyError(err),
		Err:       err,
	}
	if err != nil {
		v.Error = err.Error()
	}

	if r.peer != nil && r.opening {
		st := r.peer.Stats()
		if len(st.Pairs) == 0 && !r.lastStats.Empty() {
			st = r.lastStats
		}
		c := Classify(st, s.myIP)
		for _, l := range c.Lines {
			s.logf("%s", l)
		}
		v.PathType = c.PathType
		v.Suspicion = c.Suspicion
		v.Suspicions = c.Suspicions
		v.Local = c.Local
		v.Remote = c.Remote
		if r.verified && !c.Connected {
			s.logf("classification ambiguous: data channel verified but no succeeded candidate pair")
		}
	}

	v.Connected = r.verified && err == nil
	if v.Connected {
		s.logf("result: connected via %s", v.PathType)
	} else {
		s.logf("result: not connected (%s)", failureText(v.Failure))
	}

	if r.peer != nil {
		if cerr := r.peer.Close(); cerr != nil {
			s.logf("peer close: %v", cerr)
		}
	}
	s.transition(StateClosed, "session closed")
	s.record(v)
}

func failureText(f Failure) string {
	switch f {
	case FailureBlocked:
		return "network appears to block the negotiated paths"
	case FailureSetup:
		return "probe setup failed"
	case FailureAborted:
		return "aborted"
	default:
		return "liveness not confirmed"
	}
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func tickerC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func stopTicker(t **time.Ticker) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
