// File: internal/checks/ports.go (complete file)

package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// PortCheck is the result published by the remote port checker, which probes
// back to the client on each TCP and UDP port it cares about.
type PortCheck struct {
	Status      string            `json:"status"`
	Timestamp   string            `json:"timestamp"`
	TCP         map[string]string `json:"tcp"`
	UDP         map[string]string `json:"udp"`
	FailedPorts []string          `json:"failed_ports"`
}

type PortResult struct {
	Proto string `json:"proto"`
	Port  string `json:"port"`
	OK    bool   `json:"ok"`
	Raw   string `json:"raw"`
}

// Results lists TCP then UDP ports, each in numeric order.
func (p PortCheck) Results() []PortResult {
	var out []PortResult
	out = append(out, portResults("TCP", p.TCP)...)
	out = append(out, portResults("UDP", p.UDP)...)
	return out
}

func (p PortCheck) OK() bool {
	if len(p.FailedPorts) > 0 {
		return false
	}
	for _, r := range p.Results() {
		if !r.OK {
			return false
		}
	}
	return len(p.TCP)+len(p.UDP) > 0
}

// Lines renders the check the way operators read it in the report.
func (p PortCheck) Lines() []string {
	var lines []string
	for _, proto := range []string{"TCP", "UDP"} {
		lines = append(lines, fmt.Sprintf("%s ports:", proto))
		for _, r := range p.Results() {
			if r.Proto != proto {
				continue
			}
			verdict := "NG"
			if r.OK {
				verdict = "OK"
			}
			lines = append(lines, fmt.Sprintf("port check: %s %s -> %s", r.Proto, r.Port, verdict))
		}
	}
	if len(p.FailedPorts) > 0 {
		lines = append(lines, "failed ports:")
		for _, fp := range p.FailedPorts {
			lines = append(lines, " - "+fp)
		}
	}
	return lines
}

func portResults(proto string, m map[string]string) []PortResult {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})

	out := make([]PortResult, 0, len(keys))
	for _, k := range keys {
		out = append(out, PortResult{Proto: proto, Port: k, OK: m[k] == "success", Raw: m[k]})
	}
	return out
}

func FetchPortCheck(ctx context.Context, client *http.Client, url string) (PortCheck, error) {
	body, err := get(ctx, client, url)
	if err != nil {
		return PortCheck{}, err
	}
	var pc PortCheck
	if err := json.Unmarshal(body, &pc); err != nil {
		return PortCheck{}, fmt.Errorf("decode port check: %w", err)
	}
	return pc, nil
}

// FetchPortCheckText reads the plain-text /check and /external-ip endpoints of
// the port checker and joins them into report lines.
func FetchPortCheckText(ctx context.Context, client *http.Client, baseURL string) ([]string, error) {
	base := strings.TrimRight(baseURL, "/")

	check, err := get(ctx, client, base+"/check")
	if err != nil {
		return nil, fmt.Errorf("check: %w", err)
	}
	ip, err := get(ctx, client, base+"/external-ip")
	if err != nil {
		return nil, fmt.Errorf("external-ip: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(check), "\n"), "\n")
	lines = append(lines, "external IP (port checker): "+strings.TrimSpace(string(ip)))
	return lines, nil
}

func get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}
	return body, nil
}
