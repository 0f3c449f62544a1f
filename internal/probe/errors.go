// File: internal/probe/errors.go (complete file)

package probe

import (
	"errors"
	"fmt"
)

var (
	ErrOfferCreation     = errors.New("offer creation failed")
	ErrSignaling         = errors.New("signaling failed")
	ErrRemoteDescription = errors.New("remote description rejected")
	ErrChannelTimeout    = errors.New("data channel did not open in time")
	ErrLivenessTimeout   = errors.New("no liveness reply in time")
	ErrICEFailed         = errors.New("ice connection failed")
	ErrChannelClosed     = errors.New("data channel closed before the probe completed")
	ErrAborted           = errors.New("probe aborted")
)

// Failure separates "the tool could not run" from "the network blocked us".
type Failure string

const (
	FailureNone    Failure = ""
	FailureSetup   Failure = "setup"
	FailureBlocked Failure = "blocked"
	FailureAborted Failure = "aborted"
)

func ClassifyError(err error) Failure {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrAborted):
		return FailureAborted
	case errors.Is(err, ErrChannelTimeout),
		errors.Is(err, ErrLivenessTimeout),
		errors.Is(err, ErrICEFailed),
		errors.Is(err, ErrChannelClosed):
		return FailureBlocked
	default:
		return FailureSetup
	}
}

// SignalingError carries the HTTP status (0 when no response arrived) or the abort reason.
type SignalingError struct {
	Status int
	Reason string
}

func (e *SignalingError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("signaling: http status %d", e.Status)
	}
	return "signaling: " + e.Reason
}

func (e *SignalingError) Unwrap() error {
	return ErrSignaling
}
