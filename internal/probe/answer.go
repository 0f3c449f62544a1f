// File: internal/probe/answer.go (complete file)

package probe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pion/ice/v4"
	"github.com/pion/sdp/v3"
)

// inspectAnswer checks the answer is usable for a data-channel probe and
// returns one line per remote candidate announced in it.
func inspectAnswer(answer SessionDescription) ([]string, error) {
	if !strings.EqualFold(answer.Type, "answer") {
		return nil, fmt.Errorf("unexpected description type %q", answer.Type)
	}
	if strings.TrimSpace(answer.SDP) == "" {
		return nil, errors.New("empty sdp")
	}

	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(answer.SDP)); err != nil {
		return nil, fmt.Errorf("parse sdp: %w", err)
	}

	application := false
	var lines []string
	seen := map[string]bool{}
	for _, md := range desc.MediaDescriptions {
		if md.MediaName.Media == "application" {
			application = true
		}
		for _, a := range md.Attributes {
			if a.Key != "candidate" {
				continue
			}
			c, err := ice.UnmarshalCandidate(a.Value)
			if err != nil {
				lines = append(lines, "remote candidate (unparsed): "+a.Value)
				continue
			}
			// the same candidate can be announced once per bundled section
			key := fmt.Sprintf("%s|%s|%d", c.Foundation(), c.Address(), c.Port())
			if seen[key] {
				continue
			}
			seen[key] = true
			lines = append(lines, fmt.Sprintf("remote candidate: %s %s %s:%d",
				c.Type(), c.NetworkType().NetworkShort(), c.Address(), c.Port()))
		}
	}
	if !application {
		return nil, errors.New("answer has no data channel (application) section")
	}
	if len(lines) == 0 {
		lines = append(lines, "remote candidates: none in answer (expecting peer-reflexive discovery)")
	}
	return lines, nil
}
