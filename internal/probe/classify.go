// File: internal/probe/classify.go (complete file)

package probe

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/baptistax/camlinkcheck/internal/netutil"
)

type PathType string

const (
	PathP2P       PathType = "P2P"
	PathTURNRelay PathType = "TURN_RELAY"
	PathUnknown   PathType = "UNKNOWN"
)

type Suspicion string

const (
	SuspicionNone             Suspicion = "NONE"
	SuspicionVPNLoopback      Suspicion = "VPN_LOOPBACK"
	SuspicionHostToHost       Suspicion = "HOST_TO_HOST"
	SuspicionPrivateIPInSrflx Suspicion = "PRIVATE_IP_IN_SRFLX"
)

type Classification struct {
	Connected  bool           `json:"connected"`
	PathType   PathType       `json:"path_type"`
	Suspicion  Suspicion      `json:"suspicion"`
	Suspicions []Suspicion    `json:"suspicions,omitempty"`
	Pair       *CandidatePair `json:"pair,omitempty"`
	Local      *Candidate     `json:"local,omitempty"`
	Remote     *Candidate     `json:"remote,omitempty"`
	Lines      []string       `json:"lines"`
}

// Classify inspects the final statistics of a session and describes the selected path.
// myGlobalIP is the externally observed address of this client; empty skips the loopback check.
func Classify(stats Stats, myGlobalIP string) Classification {
	out := Classification{PathType: PathUnknown, Suspicion: SuspicionNone}

	pair, candidates, ok := selectPair(stats.Pairs)
	if !ok {
		out.Lines = append(out.Lines,
			fmt.Sprintf("candidate pairs: no succeeded candidate pair found (%d pairs inspected)", len(stats.Pairs)),
			"connected: NO",
		)
		return out
	}
	if candidates > 1 {
		out.Lines = append(out.Lines, fmt.Sprintf("candidate pairs: %d succeeded pairs, using %s", candidates, pair.ID))
	}
	out.Pair = &pair

	local, lok := stats.Candidate(pair.LocalCandidateID)
	remote, rok := stats.Candidate(pair.RemoteCandidateID)
	if !lok || !rok {
		out.Connected = true
		out.Lines = append(out.Lines,
			fmt.Sprintf("candidate pair %s succeeded but its candidates are missing from stats (local=%t remote=%t)", pair.ID, lok, rok),
			"path: unknown",
			"connected: YES",
		)
		return out
	}
	out.Local = &local
	out.Remote = &remote
	out.Connected = true

	out.Lines = append(out.Lines, fmt.Sprintf("candidate pair succeeded: local=%s remote=%s nominated=%t", local, remote, pair.Nominated))

	if local.Type == CandidateRelay || remote.Type == CandidateRelay {
		out.PathType = PathTURNRelay
		out.Lines = append(out.Lines, "path: TURN relay")
	} else {
		out.PathType = PathP2P
		out.Lines = append(out.Lines, "path: P2P (direct)")
	}

	flag := func(s Suspicion, line string) {
		out.Suspicions = append(out.Suspicions, s)
		if out.Suspicion == SuspicionNone {
			out.Suspicion = s
		}
		out.Lines = append(out.Lines, line)
	}

	if local.Type == CandidateHost && remote.Type == CandidateHost {
		flag(SuspicionHostToHost, "check host-to-host: SUSPICIOUS (both ends are host candidates, likely the same machine or LAN)")
	} else {
		out.Lines = append(out.Lines, "check host-to-host: ok")
	}

	switch {
	case strings.TrimSpace(myGlobalIP) == "":
		out.Lines = append(out.Lines, "check vpn-loopback: skipped (external IP unknown)")
	case remote.Type == CandidateSrflx && sameIP(remote.Address, myGlobalIP):
		flag(SuspicionVPNLoopback, fmt.Sprintf("check vpn-loopback: SUSPICIOUS (remote srflx %s equals our external IP)", remote.Address))
	default:
		out.Lines = append(out.Lines, "check vpn-loopback: ok")
	}

	var private []string
	for _, c := range []Candidate{local, remote} {
		if c.Type == CandidateSrflx && netutil.IsPrivateIPv4(c.Address) {
			private = append(private, fmt.Sprintf("%s %s", c.Direction, c.Address))
		}
	}
	if len(private) > 0 {
		flag(SuspicionPrivateIPInSrflx, fmt.Sprintf("check srflx address: SUSPICIOUS (private address in srflx: %s)", strings.Join(private, ", ")))
	} else {
		out.Lines = append(out.Lines, "check srflx address: ok")
	}

	out.Lines = append(out.Lines, "connected: YES")
	return out
}

// selectPair returns the succeeded pair to classify, preferring a nominated one,
// and how many succeeded pairs were seen.
func selectPair(pairs []CandidatePair) (CandidatePair, int, bool) {
	var first *CandidatePair
	var nominated *CandidatePair
	count := 0
	for i := range pairs {
		p := &pairs[i]
		if p.State != PairSucceeded {
			continue
		}
		count++
		if first == nil {
			first = p
		}
		if p.Nominated && nominated == nil {
			nominated = p
		}
	}
	switch {
	case nominated != nil:
		return *nominated, count, true
	case first != nil:
		return *first, count, true
	default:
		return CandidatePair{}, 0, false
	}
}

func sameIP(a, b string) bool {
	pa, errA := netip.ParseAddr(strings.TrimSpace(a))
	pb, errB := netip.ParseAddr(strings.TrimSpace(b))
	if errA != nil || errB != nil {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	return pa.Unmap() == pb.Unmap()
}
