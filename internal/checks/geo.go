// File: internal/checks/geo.go (complete file)

package checks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/baptistax/camlinkcheck/internal/version"
)

const DefaultNetworkInfoURL = "https://ident.me/json"

// NetworkInfo describes who operates the client's external address.
// Operators use it to tell a carrier network, a VPN exit and an office line apart.
type NetworkInfo struct {
	IP          string `json:"ip"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	City        string `json:"city,omitempty"`
	ISP         string `json:"isp,omitempty"`
	ASN         string `json:"asn,omitempty"`
}

// Summary renders "CC, City, ISP" with empty parts left out.
func (n NetworkInfo) Summary() string {
	parts := []string{}
	if n.CountryCode != "" {
		parts = append(parts, n.CountryCode)
	} else if n.Country != "" {
		parts = append(parts, n.Country)
	}
	if n.City != "" {
		parts = append(parts, n.City)
	}
	if n.ISP != "" {
		parts = append(parts, n.ISP)
	}
	return strings.Join(parts, ", ")
}

func FetchNetworkInfo(ctx context.Context, client *http.Client, url string) (NetworkInfo, error) {
	if url == "" {
		url = DefaultNetworkInfoURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return NetworkInfo{}, err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := client.Do(req)
	if err != nil {
		return NetworkInfo{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return NetworkInfo{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NetworkInfo{}, fmt.Errorf("http status %d", resp.StatusCode)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return NetworkInfo{}, err
	}

	// field names differ between providers
	info := NetworkInfo{
		IP:          pickString(raw, "ip", "ip_address", "address", "query"),
		Country:     pickString(raw, "country", "country_name"),
		CountryCode: pickString(raw, "cc", "country_code", "countryCode"),
		City:        pickString(raw, "city", "town"),
		ISP:         pickString(raw, "aso", "isp", "org", "organization", "as_org"),
		ASN:         pickString(raw, "asn", "as", "as_number"),
	}
	if info.IP == "" {
		return NetworkInfo{}, errors.New("missing ip field")
	}
	return info, nil
}

func pickString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch t := m[k].(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%.0f", t)
		}
	}
	return ""
}
