// File: internal/app/diagnose.go (complete file)

package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/baptistax/camlinkcheck/internal/checks"
	"github.com/baptistax/camlinkcheck/internal/config"
	"github.com/baptistax/camlinkcheck/internal/netutil"
	"github.com/baptistax/camlinkcheck/internal/probe"
	"github.com/baptistax/camlinkcheck/internal/report"
)

type Options struct {
	Config config.Config

	// Overrides for tests and embedding. nil values use the real implementations.
	HTTPClient *http.Client
	Resolver   *net.Resolver
	Signaler   probe.Signaler
	NewPeer    probe.PeerFactory
	Logger     *slog.Logger
}

// Diagnoser runs the full check sequence: external IP and service reachability,
// then the port check, then the WebRTC passes. A failed port check stops the run.
type Diagnoser struct {
	cfg      config.Config
	client   *http.Client
	resolver *net.Resolver
	signaler probe.Signaler
	newPeer  probe.PeerFactory
	log      *slog.Logger
}

func New(opt Options) *Diagnoser {
	d := &Diagnoser{
		cfg:      opt.Config,
		client:   opt.HTTPClient,
		resolver: opt.Resolver,
		signaler: opt.Signaler,
		newPeer:  opt.NewPeer,
		log:      opt.Logger,
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	if d.client == nil {
		d.client = netutil.HTTPClientForFamily("any", d.cfg.HTTPTimeout)
	}
	if d.signaler == nil {
		d.signaler = probe.NewSignalingClient(d.cfg.SignalingURL, netutil.HTTPClientForFamily("any", d.cfg.SignalingTimeout))
	}
	if d.newPeer == nil {
		d.newPeer = probe.NewPionPeerFactory(d.log)
	}
	return d
}

func (d *Diagnoser) Config() config.Config { return d.cfg }

// Run executes every phase. onLog, when set, receives each log line as it is produced.
func (d *Diagnoser) Run(ctx context.Context, onLog func(string)) report.Diagnosis {
	start := time.Now()
	out := report.Diagnosis{
		RunID:      start.UTC().Format("20060102_150405"),
		StartedUTC: start.UTC(),
	}
	lg := newLineLog(onLog)

	d.log.Info("diagnosis started", "run", out.RunID)
	lg.printf("run started: %s", start.Format("2006-01-02 15:04:05"))

	d.phaseNetwork(ctx, &out, lg)

	if !d.phasePorts(ctx, &out, lg) {
		out.Aborted = "port check failed"
		lg.printf("port check failed, remaining checks skipped")
		return d.finish(out, lg, start)
	}

	if !d.cfg.EnableWebRTC {
		lg.printf("WebRTC check disabled")
		return d.finish(out, lg, start)
	}
	if ctx.Err() != nil {
		out.Aborted = "canceled"
		return d.finish(out, lg, start)
	}

	lg.printf("--- WebRTC check (relay only) ---")
	turn := d.RunWebRTC(ctx, true, out.ExternalIP.IP, lg.emit)
	out.Passes = append(out.Passes, report.Pass{Item: report.ItemTURN, Verdict: turn})

	if d.cfg.Restricted {
		lg.printf("restricted network: P2P check skipped")
	} else if ctx.Err() == nil {
		lg.printf("--- WebRTC check (all candidates) ---")
		p2p := d.RunWebRTC(ctx, false, out.ExternalIP.IP, lg.emit)
		out.Passes = append(out.Passes, report.Pass{Item: report.ItemP2P, Verdict: p2p})
	}

	return d.finish(out, lg, start)
}

// RunWebRTC runs one probe pass. restricted selects relay-only TURN over TCP.
func (d *Diagnoser) RunWebRTC(ctx context.Context, restricted bool, myIP string, onLog func(string)) probe.Verdict {
	sess := d.NewSession(restricted, myIP, onLog)
	return sess.Run(ctx)
}

// NewSession prepares a probe session without starting it, for callers that need to Close it.
func (d *Diagnoser) NewSession(restricted bool, myIP string, onLog func(string)) *probe.Session {
	opts := probe.SessionOptions{
		Config:     d.cfg.ProbeConfig(restricted),
		Signaler:   d.signaler,
		NewPeer:    d.newPeer,
		MyGlobalIP: myIP,
		Logger:     d.log,
	}
	if onLog != nil {
		opts.OnLog = func(e probe.LogEntry) { onLog(e.String()) }
	}
	return probe.NewSession(opts)
}

// ExternalIP looks up this client's global address the way a full run does.
func (d *Diagnoser) ExternalIP(ctx context.Context) checks.ExternalIP {
	return checks.LookupExternalIP(ctx, d.client, d.cfg.IPLookupURL, d.cfg.STUNServers)
}

func (d *Diagnoser) phaseNetwork(ctx context.Context, out *report.Diagnosis, lg *lineLog) {
	pctx, cancel := context.WithTimeout(ctx, d.phaseTimeout())
	defer cancel()

	out.ExternalIP = d.ExternalIP(pctx)
	if out.ExternalIP.OK() {
		lg.printf("external IP: %s (via %s)", out.ExternalIP.IP, out.ExternalIP.Source)
	} else {
		lg.printf("external IP: unavailable (%s)", out.ExternalIP.Error)
	}

	if d.cfg.NetworkInfoURL != "" {
		info, err := checks.FetchNetworkInfo(pctx, d.client, d.cfg.NetworkInfoURL)
		if err != nil {
			out.Notes = append(out.Notes, "network info lookup failed: "+err.Error())
		} else {
			out.Network = &info
			if s := info.Summary(); s != "" {
				lg.printf("network: %s", s)
			}
		}
	}
	if !netutil.HasGlobalIPv6() {
		out.Notes = append(out.Notes, "no global IPv6 address on this host")
	}

	svc := checks.CheckService(pctx, d.client, d.cfg.ServiceTargets)
	out.Service = &svc
	lg.printf("service access: %s", svc.Status)
	for _, l := range svc.Details {
		lg.printf("  %s", l)
	}

	hosts := append([]string{d.cfg.SignalingURL}, d.cfg.Relay.STUNAddr, d.cfg.Relay.TURNAddr)
	out.Resolutions = checks.ResolveHosts(pctx, d.resolver, hosts)
	for _, r := range out.Resolutions {
		if r.Error != "" {
			lg.printf("dns %s: error: %s", r.Host, r.Error)
		} else {
			lg.printf("dns %s: %v", r.Host, r.Addrs)
		}
	}
}

// phasePorts reports whether the run may continue.
func (d *Diagnoser) phasePorts(ctx context.Context, out *report.Diagnosis, lg *lineLog) bool {
	if d.cfg.PortCheckURL == "" {
		out.Notes = append(out.Notes, "port check skipped (no port check URL configured)")
		return true
	}

	pctx, cancel := context.WithTimeout(ctx, d.phaseTimeout())
	defer cancel()

	pc, err := checks.FetchPortCheck(pctx, d.client, d.cfg.PortCheckURL)
	if err != nil {
		out.PortsError = err.Error()
		lg.printf("port check unavailable: %v", err)
		return false
	}
	out.Ports = &pc
	for _, l := range pc.Lines() {
		lg.printf("%s", l)
	}
	return true
}

func (d *Diagnoser) finish(out report.Diagnosis, lg *lineLog, start time.Time) report.Diagnosis {
	out.Duration = time.Since(start)
	out.Evaluate()
	lg.printf("result: %s", out.Overall)
	out.Logs = lg.lines()

	d.log.Info("diagnosis finished", "run", out.RunID, "overall", out.Overall, "duration", out.Duration)
	return out
}

func (d *Diagnoser) phaseTimeout() time.Duration {
	if d.cfg.HTTPTimeout > 0 {
		return 2 * d.cfg.HTTPTimeout
	}
	return 20 * time.Second
}

// lineLog collects the run's log lines and forwards them as they arrive.
type lineLog struct {
	mu    sync.Mutex
	out   []string
	onLog func(string)
}

func newLineLog(onLog func(string)) *lineLog {
	return &lineLog{onLog: onLog}
}

func (l *lineLog) printf(format string, args ...any) {
	l.emit(time.Now().Format("15:04:05.000") + " " + fmt.Sprintf(format, args...))
}

func (l *lineLog) emit(line string) {
	l.mu.Lock()
	l.out = append(l.out, line)
	l.mu.Unlock()
	if l.onLog != nil {
		l.onLog(line)
	}
}

func (l *lineLog) lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.out...)
}
