// File: internal/checks/service.go (complete file)

package checks

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// ServiceResult is the outcome of the HTTPS reachability check. Status is
// "OK" when at least one target answered 200.
type ServiceResult struct {
	Status  string   `json:"status"`
	Details []string `json:"details"`
}

func (r ServiceResult) OK() bool {
	return r.Status == "OK"
}

// CheckService fetches every target once, in order.
func CheckService(ctx context.Context, client *http.Client, targets []string) ServiceResult {
	res := ServiceResult{Status: "NG"}
	if len(targets) == 0 {
		res.Details = append(res.Details, "no service targets configured")
		return res
	}

	for _, url := range targets {
		code, err := getStatus(ctx, client, url)
		switch {
		case err != nil:
			res.Details = append(res.Details, fmt.Sprintf("%s -> error: %v", url, err))
		case code == http.StatusOK:
			res.Details = append(res.Details, fmt.Sprintf("%s -> OK (200)", url))
			res.Status = "OK"
		default:
			res.Details = append(res.Details, fmt.Sprintf("%s -> NG (%d)", url, code))
		}
	}
	return res
}

func getStatus(ctx context.Context, client *http.Client, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; camlinkcheck)")

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, nil
}
