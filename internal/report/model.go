// File: internal/report/model.go (complete file)

package report

import (
	"time"

	"github.com/baptistax/camlinkcheck/internal/checks"
	"github.com/baptistax/camlinkcheck/internal/probe"
)

// Pass is one WebRTC probe run under a given transport policy.
type Pass struct {
	Item    ItemLabel     `json:"item"`
	Verdict probe.Verdict `json:"verdict"`
}

type ItemResult struct {
	CheckItem
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped,omitempty"`
	Value   string `json:"value,omitempty"`
}

// Status renders the result column of the summary.
func (r ItemResult) Status() string {
	switch {
	case r.Skipped:
		return "NOT RUN"
	case r.OK:
		return "OK"
	default:
		return "NG"
	}
}

type Diagnosis struct {
	RunID      string        `json:"run_id"`
	StartedUTC time.Time     `json:"started_utc"`
	Duration   time.Duration `json:"duration"`

	ExternalIP  checks.ExternalIP     `json:"external_ip"`
	Network     *checks.NetworkInfo   `json:"network,omitempty"`
	Service     *checks.ServiceResult `json:"service,omitempty"`
	Resolutions []checks.Resolution   `json:"resolutions,omitempty"`
	Ports       *checks.PortCheck     `json:"ports,omitempty"`
	PortsError  string                `json:"ports_error,omitempty"`
	Passes      []Pass                `json:"webrtc,omitempty"`

	// Aborted names the phase that stopped the run early.
	Aborted string   `json:"aborted,omitempty"`
	Notes   []string `json:"notes,omitempty"`
	Logs    []string `json:"logs"`

	Items   []ItemResult `json:"items"`
	Overall string       `json:"overall"` // OK|NG
}

func (d *Diagnosis) Pass(item ItemLabel) (probe.Verdict, bool) {
	for _, p := range d.Passes {
		if p.Item == item {
			return p.Verdict, true
		}
	}
	return probe.Verdict{}, false
}

// Evaluate derives the per-item results and the overall status from the raw results.
func (d *Diagnosis) Evaluate() {
	d.Items = d.Items[:0]
	overall := "OK"

	for _, it := range CheckItems {
		r := ItemResult{CheckItem: it}

		switch it.Label {
		case ItemIP:
			r.OK = d.ExternalIP.OK()
			r.Value = d.ExternalIP.IP
			if d.Network != nil && d.Network.Summary() != "" {
				r.Value += " (" + d.Network.Summary() + ")"
			}
		case ItemService:
			r.Skipped = d.Service == nil
			r.OK = d.Service != nil && d.Service.OK()
		case ItemPorts:
			switch {
			case d.Ports != nil:
				r.OK = d.Ports.OK()
			case d.PortsError != "":
				r.Value = d.PortsError
			default:
				r.Skipped = true
			}
		case ItemTURN:
			v, ok := d.Pass(ItemTURN)
			r.Skipped = !ok
			r.OK = ok && v.Connected && v.PathType != probe.PathP2P
			r.Value = passValue(v, ok)
		case ItemP2P:
			v, ok := d.Pass(ItemP2P)
			r.Skipped = !ok
			r.OK = ok && v.Connected && v.PathType == probe.PathP2P
			r.Value = passValue(v, ok)
		}

		// a skipped item only counts against the run when an earlier phase aborted it
		if !it.Reference && !r.OK && (!r.Skipped || d.Aborted != "") {
			overall = "NG"
		}
		d.Items = append(d.Items, r)
	}
	d.Overall = overall
}

func passValue(v probe.Verdict, ok bool) string {
	if !ok {
		return ""
	}
	if v.Connected {
		s := string(v.PathType)
		if v.Suspicion != probe.SuspicionNone {
			s += ", suspicion " + string(v.Suspicion)
		}
		return s
	}
	if v.Failure != probe.FailureNone {
		return "not connected (" + string(v.Failure) + ")"
	}
	return "not connected"
}

// NGItems returns the failed items that need operator action.
func (d *Diagnosis) NGItems() []ItemResult {
	var out []ItemResult
	for _, r := range d.Items {
		if !r.OK && !r.Skipped {
			out = append(out, r)
		}
	}
	return out
}
