// File: internal/report/write.go (complete file)

package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func WriteJSON(path string, d Diagnosis) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

func WriteText(path string, d Diagnosis) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(RenderText(d)), 0o644)
}

// WriteLog writes the raw log lines, one per line, the way they were streamed.
func WriteLog(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}

func RenderText(d Diagnosis) string {
	var b strings.Builder

	writeBanner(&b)
	b.WriteString(fmt.Sprintf("Run: %s  |  Started: %s  |  Duration: %s\n",
		d.RunID, d.StartedUTC.Format("2006-01-02T15:04:05Z"), durShort(d.Duration)))
	b.WriteString("\n")

	for _, r := range d.Items {
		line := fmt.Sprintf("%-28s %s", r.DisplayName+":", r.Status())
		if r.Label == ItemIP {
			line = fmt.Sprintf("%-28s %s", r.DisplayName+":", printable(r.Value))
		} else if r.Value != "" {
			line += "  (" + r.Value + ")"
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(fmt.Sprintf("%-28s %s\n", "Overall:", d.Overall))
	if d.Aborted != "" {
		b.WriteString("Stopped early: " + d.Aborted + "\n")
	}

	if ng := d.NGItems(); len(ng) > 0 {
		b.WriteString("\nNG items\n")
		for _, r := range ng {
			b.WriteString("- " + r.DisplayName + "\n")
			b.WriteString("  Reason: " + r.NGReason + "\n")
			b.WriteString("  Action: " + r.Action + "\n")
		}
	}

	if d.Service != nil && len(d.Service.Details) > 0 {
		b.WriteString("\nService access\n")
		for _, l := range d.Service.Details {
			b.WriteString("  " + l + "\n")
		}
	}
	for _, r := range d.Resolutions {
		if r.Error != "" {
			b.WriteString(fmt.Sprintf("  dns %s: error: %s\n", r.Host, r.Error))
			continue
		}
		b.WriteString(fmt.Sprintf("  dns %s: %s\n", r.Host, strings.Join(r.Addrs, ", ")))
	}

	if d.Ports != nil || d.PortsError != "" {
		b.WriteString("\nPorts\n")
		if d.PortsError != "" {
			b.WriteString("  port check unavailable: " + d.PortsError + "\n")
		} else {
			for _, l := range d.Ports.Lines() {
				b.WriteString("  " + l + "\n")
			}
		}
	}

	for _, p := range d.Passes {
		it, _ := LookupItem(p.Item)
		b.WriteString(fmt.Sprintf("\nWebRTC: %s [policy=%s]\n", it.DisplayName, p.Verdict.Policy))
		for _, l := range p.Verdict.Logs {
			b.WriteString("  " + l + "\n")
		}
	}

	if notes := uniqStrings(d.Notes); len(notes) > 0 {
		b.WriteString("\n")
		for _, n := range notes {
			b.WriteString("- " + n + "\n")
		}
	}

	return b.String()
}

func writeBanner(b *strings.Builder) {
	b.WriteString("========================\n")
	b.WriteString("      camlinkcheck\n")
	b.WriteString("========================\n")
}

func durShort(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return d.Round(100 * time.Millisecond).String()
}

func printable(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(unavailable)"
	}
	return s
}

func uniqStrings(in []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
