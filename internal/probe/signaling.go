// File: internal/probe/signaling.go (complete file)

package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/baptistax/camlinkcheck/internal/version"
)

// Signaler exchanges our offer for the remote answer.
type Signaler interface {
	ExchangeOffer(ctx context.Context, offer SessionDescription) (SessionDescription, error)
}

// SignalingClient posts the offer to a fixed HTTPS endpoint.
// It never retries; the timeout comes from the caller's context.
type SignalingClient struct {
	url    string
	client *http.Client
}

func NewSignalingClient(url string, client *http.Client) *SignalingClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &SignalingClient{url: url, client: client}
}

func (c *SignalingClient) URL() string {
	return c.url
}

func (c *SignalingClient) ExchangeOffer(ctx context.Context, offer SessionDescription) (SessionDescription, error) {
	payload, err := json.Marshal(offer)
	if err != nil {
		return SessionDescription{}, &SignalingError{Reason: "encode offer: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return SessionDescription{}, &SignalingError{Reason: "build request: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		return SessionDescription{}, &SignalingError{Reason: abortReason(ctx, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return SessionDescription{}, &SignalingError{Reason: abortReason(ctx, err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SessionDescription{}, &SignalingError{Status: resp.StatusCode}
	}

	var answer SessionDescription
	if err := json.Unmarshal(body, &answer); err != nil {
		return SessionDescription{}, &SignalingError{Reason: "decode answer: " + err.Error()}
	}
	return answer, nil
}

func abortReason(ctx context.Context, err error) string {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timeout"
	case errors.Is(ctx.Err(), context.Canceled):
		return "canceled"
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	return strings.TrimSpace(err.Error())
}
