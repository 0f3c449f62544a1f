// File: internal/monitor/monitor.go (complete file)

package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/baptistax/camlinkcheck/internal/report"
)

type Event struct {
	AtUTC    time.Time         `json:"at_utc"`
	Kind     string            `json:"kind"` // "baseline" | "changed"
	Message  string            `json:"message"`
	Changes  []string          `json:"changes,omitempty"`
	Previous *report.Diagnosis `json:"-"`
	Current  *report.Diagnosis `json:"current"`
}

// Runner produces one diagnosis. *app.Diagnoser satisfies it.
type Runner interface {
	Run(ctx context.Context, onLog func(string)) report.Diagnosis
}

type Options struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Run diagnoses immediately and then every Interval until ctx is done.
// The first result is reported as a baseline; later ones only when they differ.
func Run(ctx context.Context, r Runner, opt Options, onEvent func(Event)) {
	if opt.Interval <= 0 {
		opt.Interval = time.Minute
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 2 * time.Minute
	}

	var prev *report.Diagnosis

	ticker := time.NewTicker(opt.Interval)
	defer ticker.Stop()

	take := func() {
		runCtx, cancel := context.WithTimeout(ctx, opt.Timeout)
		d := r.Run(runCtx, nil)
		cancel()
		if ctx.Err() != nil {
			return
		}

		if prev == nil {
			onEvent(Event{
				AtUTC:   time.Now().UTC(),
				Kind:    "baseline",
				Message: "baseline: " + summary(&d),
				Current: &d,
			})
		} else if diffs := changes(prev, &d); len(diffs) > 0 {
			onEvent(Event{
				AtUTC:    time.Now().UTC(),
				Kind:     "changed",
				Message:  "diagnosis changed: " + summary(&d),
				Changes:  diffs,
				Previous: prev,
				Current:  &d,
			})
		}
		prev = &d
	}

	take()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			take()
		}
	}
}

func summary(d *report.Diagnosis) string {
	parts := []string{"overall " + d.Overall}
	for _, p := range d.Passes {
		state := "down"
		if p.Verdict.Connected {
			state = string(p.Verdict.PathType)
		}
		parts = append(parts, fmt.Sprintf("%s %s", p.Item, state))
	}
	return strings.Join(parts, ", ")
}

// changes lists what the operator cares about: exit address, item results and the
// WebRTC path. Timings and raw log lines are ignored.
func changes(a, b *report.Diagnosis) []string {
	var out []string

	if a.ExternalIP.IP != b.ExternalIP.IP {
		out = append(out, fmt.Sprintf("external IP: %s -> %s", printable(a.ExternalIP.IP), printable(b.ExternalIP.IP)))
	}
	if a.Overall != b.Overall {
		out = append(out, fmt.Sprintf("overall: %s -> %s", a.Overall, b.Overall))
	}

	prevItems := map[report.ItemLabel]string{}
	for _, r := range a.Items {
		prevItems[r.Label] = r.Status()
	}
	for _, r := range b.Items {
		if was, ok := prevItems[r.Label]; ok && was != r.Status() {
			out = append(out, fmt.Sprintf("%s: %s -> %s", r.Label, was, r.Status()))
		}
	}

	for _, p := range b.Passes {
		old, ok := a.Pass(p.Item)
		if !ok {
			continue
		}
		if old.PathType != p.Verdict.PathType {
			out = append(out, fmt.Sprintf("%s path: %s -> %s", p.Item, old.PathType, p.Verdict.PathType))
		}
		if old.Suspicion != p.Verdict.Suspicion {
			out = append(out, fmt.Sprintf("%s suspicion: %s -> %s", p.Item, old.Suspicion, p.Verdict.Suspicion))
		}
	}
	return out
}

func printable(ip string) string {
	if strings.TrimSpace(ip) == "" {
		return "(none)"
	}
	return ip
}
