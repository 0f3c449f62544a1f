// File: internal/cli/cli.go (complete file)

package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/baptistax/camlinkcheck/internal/app"
	"github.com/baptistax/camlinkcheck/internal/config"
	"github.com/baptistax/camlinkcheck/internal/logging"
	"github.com/baptistax/camlinkcheck/internal/monitor"
	"github.com/baptistax/camlinkcheck/internal/probe"
	"github.com/baptistax/camlinkcheck/internal/report"
	"github.com/baptistax/camlinkcheck/internal/server"
	"github.com/baptistax/camlinkcheck/internal/version"
)

// Exit codes.
const (
	exitOK    = 0
	exitNG    = 1 // diagnosis finished with an NG result, or a runtime failure
	exitUsage = 2
)

func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || (strings.HasPrefix(args[0], "-") && args[0] != "-h" && args[0] != "--help") {
		// Default flow: full diagnosis.
		args = append([]string{"diagnose"}, args...)
	}

	c := &command{stdout: stdout, stderr: stderr}

	switch args[0] {
	case "diagnose":
		return c.runDiagnose(args[1:])
	case "webrtc":
		return c.runWebRTC(args[1:])
	case "ice-config":
		return c.runIceConfig(args[1:])
	case "monitor":
		return c.runMonitor(args[1:])
	case "serve":
		return c.runServe(args[1:])
	case "version":
		fmt.Fprintln(stdout, version.String())
		return exitOK
	case "help", "-h", "--help":
		printHelp(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n\n", args[0])
		printHelp(stderr)
		return exitUsage
	}
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, `camlinkcheck

Usage:
  camlinkcheck [diagnose] [flags]
  camlinkcheck webrtc     [flags]
  camlinkcheck ice-config [flags]
  camlinkcheck monitor    [flags]
  camlinkcheck serve      [flags]
  camlinkcheck version

Default command:
  diagnose  External IP, service access, port check, then the WebRTC relay and P2P checks

Commands:
  diagnose    Run the full diagnosis and write outputs to ./exports/run_<id>/
  webrtc      Run a single WebRTC connectivity probe and print its verdict
  ice-config  Print the ICE configuration a probe would use (credentials masked)
  monitor     Re-run the diagnosis every interval and print an event when results change
  serve       Start the local HTTP agent

Settings are read from .env and CAMLINK_* environment variables; flags override them.

Examples:
  camlinkcheck
  camlinkcheck diagnose --format json
  camlinkcheck webrtc --restricted
  camlinkcheck monitor --interval 5m
  camlinkcheck serve --listen 127.0.0.1:8787`)
}

type command struct {
	stdout io.Writer
	stderr io.Writer
}

type commonFlags struct {
	EnvFile   string
	LogLevel  string
	LogFormat string
	Format    string // json|text
	Exports   string
	Timeout   time.Duration
}

func bindCommon(fs *flag.FlagSet, defTimeout time.Duration) *commonFlags {
	c := &commonFlags{}

	fs.StringVar(&c.EnvFile, "env", config.DefaultEnvFile, "Path to the .env file")
	fs.StringVar(&c.LogLevel, "log-level", "", "Log level: trace|debug|info|warn|error")
	fs.StringVar(&c.LogFormat, "log-format", "text", "Log format: text|json")
	fs.StringVar(&c.Format, "format", "text", "Output format: json|text")
	fs.StringVar(&c.Exports, "exports", "", "Base exports directory")
	fs.DurationVar(&c.Timeout, "timeout", defTimeout, "Overall timeout (0 = none)")

	return c
}

// probeFlags override the relay and probe settings loaded from the environment.
type probeFlags struct {
	SignalingURL string
	STUNAddr     string
	TURNAddr     string
	PortCheckURL string
	Restricted   bool
	AcceptAny    bool
	NoWebRTC     bool
	Hold         time.Duration
}

func bindProbe(fs *flag.FlagSet) *probeFlags {
	p := &probeFlags{}

	fs.StringVar(&p.SignalingURL, "signaling-url", "", "Signaling endpoint (POST /offer)")
	fs.StringVar(&p.STUNAddr, "stun-addr", "", "STUN server host:port")
	fs.StringVar(&p.TURNAddr, "turn-addr", "", "TURN server host:port")
	fs.StringVar(&p.PortCheckURL, "port-check-url", "", "Port checker JSON endpoint")
	fs.BoolVar(&p.Restricted, "restricted", false, "Relay-only TURN over TCP; skips the P2P check")
	fs.BoolVar(&p.AcceptAny, "accept-any", false, "Accept any non-empty data channel reply as liveness")
	fs.BoolVar(&p.NoWebRTC, "no-webrtc", false, "Skip the WebRTC checks")
	fs.DurationVar(&p.Hold, "hold", 0, "How long to hold a verified connection")

	return p
}

// load resolves defaults, .env and environment, then applies the flags that were set.
func (c *command) load(fs *flag.FlagSet, cf *commonFlags, pf *probeFlags) (config.Config, bool) {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	envFile := ""
	if set["env"] {
		envFile = cf.EnvFile
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintln(c.stderr, "config:", err)
		return cfg, false
	}

	if cf.LogLevel != "" {
		cfg.LogLevel = cf.LogLevel
	}
	if cf.Exports != "" {
		cfg.ExportsDir = cf.Exports
	}

	if pf != nil {
		if pf.SignalingURL != "" {
			cfg.SignalingURL = pf.SignalingURL
		}
		if pf.STUNAddr != "" {
			cfg.Relay.STUNAddr = pf.STUNAddr
		}
		if pf.TURNAddr != "" {
			cfg.Relay.TURNAddr = pf.TURNAddr
		}
		if pf.PortCheckURL != "" {
			cfg.PortCheckURL = pf.PortCheckURL
		}
		if set["restricted"] {
			cfg.Restricted = pf.Restricted
		}
		if set["accept-any"] {
			cfg.AcceptAnyReply = pf.AcceptAny
		}
		if set["no-webrtc"] {
			cfg.EnableWebRTC = !pf.NoWebRTC
		}
		if pf.Hold > 0 {
			cfg.HoldPeriod = pf.Hold
		}
	}

	logging.Setup(cfg.LogLevel, cf.LogFormat)
	return cfg, true
}

func (c *command) parse(fs *flag.FlagSet, args []string) bool {
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(c.stderr, "%s: %v\n", fs.Name(), err)
		return false
	}
	return true
}

// signalContext is canceled on Ctrl+C, SIGTERM or after timeout (when > 0).
func signalContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(stop)
	}()
	return ctx, cancel
}

func (c *command) encodeJSON(v any) {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func (c *command) runDiagnose(args []string) int {
	fs := flag.NewFlagSet("diagnose", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cf := bindCommon(fs, 3*time.Minute)
	pf := bindProbe(fs)

	if !c.parse(fs, args) {
		return exitUsage
	}
	cfg, ok := c.load(fs, cf, pf)
	if !ok {
		return exitUsage
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(c.stderr, "config:", err)
		return exitUsage
	}

	ctx, cancel := signalContext(cf.Timeout)
	defer cancel()

	asJSON := strings.ToLower(cf.Format) == "json"
	var onLog func(string)
	if !asJSON {
		onLog = func(line string) { fmt.Fprintln(c.stdout, line) }
	}

	d := app.New(app.Options{Config: cfg}).Run(ctx, onLog)

	dir, err := app.Export(cfg.ExportsDir, &d)
	if err != nil {
		fmt.Fprintln(c.stderr, "failed to write outputs:", err)
	}

	if asJSON {
		c.encodeJSON(d)
	} else {
		fmt.Fprintln(c.stdout)
		fmt.Fprint(c.stdout, report.RenderText(d))
		if dir != "" {
			fmt.Fprintf(c.stdout, "\nOutputs written to: %s\n", dir)
		}
	}

	if d.Overall != "OK" {
		return exitNG
	}
	return exitOK
}

func (c *command) runWebRTC(args []string) int {
	fs := flag.NewFlagSet("webrtc", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cf := bindCommon(fs, time.Minute)
	pf := bindProbe(fs)

	var myIP string
	fs.StringVar(&myIP, "my-ip", "", "This client's global IP, used to spot VPN loopback (default: looked up)")

	if !c.parse(fs, args) {
		return exitUsage
	}
	cfg, ok := c.load(fs, cf, pf)
	if !ok {
		return exitUsage
	}
	cfg.EnableWebRTC = true
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(c.stderr, "config:", err)
		return exitUsage
	}

	ctx, cancel := signalContext(cf.Timeout)
	defer cancel()

	asJSON := strings.ToLower(cf.Format) == "json"
	var onLog func(string)
	if !asJSON {
		onLog = func(line string) { fmt.Fprintln(c.stdout, line) }
	}

	d := app.New(app.Options{Config: cfg})
	myIP = c.resolveMyIP(ctx, d, myIP)
	sess := d.NewSession(cfg.Restricted, myIP, onLog)
	go func() {
		<-ctx.Done()
		sess.Close()
	}()
	v := sess.Run(ctx)

	if asJSON {
		c.encodeJSON(v)
	} else {
		printVerdict(c.stdout, v)
	}

	if !v.Connected {
		return exitNG
	}
	return exitOK
}

// resolveMyIP returns the --my-ip value, or the looked-up external address when
// the flag is unset. Without an address the vpn-loopback check cannot run.
func (c *command) resolveMyIP(ctx context.Context, d *app.Diagnoser, flagIP string) string {
	if flagIP != "" {
		return flagIP
	}
	ip := d.ExternalIP(ctx)
	if !ip.OK() {
		fmt.Fprintf(c.stderr, "external IP lookup failed (%s); vpn-loopback check skipped\n", ip.Error)
		return ""
	}
	fmt.Fprintf(c.stderr, "external IP: %s (via %s)\n", ip.IP, ip.Source)
	return ip.IP
}

func printVerdict(w io.Writer, v probe.Verdict) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Session:    %s (%s)\n", v.SessionID, v.Policy)
	fmt.Fprintf(w, "Connected:  %t\n", v.Connected)
	fmt.Fprintf(w, "Path:       %s\n", v.PathType)
	fmt.Fprintf(w, "Suspicion:  %s\n", v.Suspicion)
	if v.Local != nil {
		fmt.Fprintf(w, "Local:      %s\n", v.Local)
	}
	if v.Remote != nil {
		fmt.Fprintf(w, "Remote:     %s\n", v.Remote)
	}
	if v.Error != "" {
		fmt.Fprintf(w, "Error:      %s (%s)\n", v.Error, v.Failure)
	}
}

func (c *command) runIceConfig(args []string) int {
	fs := flag.NewFlagSet("ice-config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cf := bindCommon(fs, 0)
	pf := bindProbe(fs)

	if !c.parse(fs, args) {
		return exitUsage
	}
	cfg, ok := c.load(fs, cf, pf)
	if !ok {
		return exitUsage
	}

	c.encodeJSON(cfg.ProbeConfig(cfg.Restricted).Redacted())
	return exitOK
}

func (c *command) runMonitor(args []string) int {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cf := bindCommon(fs, 0)
	pf := bindProbe(fs)

	var interval time.Duration
	fs.DurationVar(&interval, "interval", 5*time.Minute, "Diagnosis interval (e.g. 5m)")

	if !c.parse(fs, args) {
		return exitUsage
	}
	cfg, ok := c.load(fs, cf, pf)
	if !ok {
		return exitUsage
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(c.stderr, "config:", err)
		return exitUsage
	}

	ctx, cancel := signalContext(cf.Timeout)
	defer cancel()

	opt := monitor.Options{
		Interval: interval,
		Timeout:  3 * time.Minute,
	}

	format := strings.ToLower(cf.Format)
	monitor.Run(ctx, app.New(app.Options{Config: cfg}), opt, func(ev monitor.Event) {
		if format == "json" {
			c.encodeJSON(ev)
			return
		}

		fmt.Fprintf(c.stdout, "[%s] %s\n", ev.AtUTC.Format("2006-01-02T15:04:05Z"), ev.Message)
		for _, ch := range ev.Changes {
			fmt.Fprintf(c.stdout, "  %s\n", ch)
		}
		fmt.Fprintln(c.stdout)
	})

	return exitOK
}

func (c *command) runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cf := bindCommon(fs, 0)
	pf := bindProbe(fs)

	var listen string
	fs.StringVar(&listen, "listen", "", "Listen address (default from CAMLINK_LISTEN_ADDR)")

	if !c.parse(fs, args) {
		return exitUsage
	}
	cfg, ok := c.load(fs, cf, pf)
	if !ok {
		return exitUsage
	}
	if listen != "" {
		cfg.ListenAddr = listen
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(c.stderr, "config:", err)
		return exitUsage
	}

	ctx, cancel := signalContext(cf.Timeout)
	defer cancel()

	srv := server.New(server.Options{
		Config: cfg,
		Runner: app.New(app.Options{Config: cfg}),
	})
	fmt.Fprintf(c.stdout, "agent listening on http://%s\n", cfg.ListenAddr)
	if err := srv.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
		fmt.Fprintln(c.stderr, "serve:", err)
		return exitNG
	}
	return exitOK
}
