// File: internal/checks/publicip.go (complete file)

package checks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const DefaultIPLookupURL = "https://api.ipify.org?format=json"

type ipifyResponse struct {
	IP string `json:"ip"`
}

// ExternalIP is the client's address as seen from the internet.
type ExternalIP struct {
	IP     string `json:"ip,omitempty"`
	Source string `json:"source"`
	Error  string `json:"error,omitempty"`
}

func (e ExternalIP) OK() bool {
	return e.IP != "" && e.Error == ""
}

func FetchIPFromJSON(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("http status %d", resp.StatusCode)
	}

	var parsed ipifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if strings.TrimSpace(parsed.IP) == "" {
		return "", errors.New("empty ip field")
	}
	return strings.TrimSpace(parsed.IP), nil
}

// LookupExternalIP asks the JSON lookup service first and falls back to STUN
// binding requests, which still work on networks that intercept HTTPS.
func LookupExternalIP(ctx context.Context, client *http.Client, url string, stunServers []string) ExternalIP {
	if url == "" {
		url = DefaultIPLookupURL
	}
	ip, err := FetchIPFromJSON(ctx, client, url)
	if err == nil {
		return ExternalIP{IP: ip, Source: "ipify"}
	}
	httpErr := err

	if len(stunServers) > 0 {
		ips, err := StunObservedIPs(ctx, stunServers)
		if err == nil {
			return ExternalIP{IP: ips[0], Source: "stun"}
		}
		return ExternalIP{Source: "stun", Error: fmt.Sprintf("ipify: %v; stun: %v", httpErr, err)}
	}
	return ExternalIP{Source: "ipify", Error: httpErr.Error()}
}
