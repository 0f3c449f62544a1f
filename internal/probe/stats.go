// File: internal/probe/stats.go (complete file)

package probe

import (
	"fmt"
	"sort"

	"github.com/pion/webrtc/v4"
)

type CandidateType string

const (
	CandidateHost  CandidateType = "host"
	CandidateSrflx CandidateType = "srflx"
	CandidatePrflx CandidateType = "prflx"
	CandidateRelay CandidateType = "relay"
)

type Direction string

const (
	DirectionLocal  Direction = "local"
	DirectionRemote Direction = "remote"
)

type PairState string

const (
	PairFrozen     PairState = "frozen"
	PairWaiting    PairState = "waiting"
	PairInProgress PairState = "in-progress"
	PairFailed     PairState = "failed"
	PairSucceeded  PairState = "succeeded"
)

// Report is one decoded statistics entry: a CandidatePair, a Candidate
// (local or remote, see Direction) or an OtherReport.
type Report interface {
	ReportID() string
}

type Candidate struct {
	ID        string        `json:"id"`
	Direction Direction     `json:"direction"`
	Type      CandidateType `json:"candidate_type"`
	Address   string        `json:"address"`
	Port      int           `json:"port"`
	Protocol  string        `json:"protocol"`
}

func (c Candidate) ReportID() string { return c.ID }

func (c Candidate) String() string {
	return fmt.Sprintf("%s %s %s:%d", c.Type, c.Protocol, c.Address, c.Port)
}

type CandidatePair struct {
	ID                string    `json:"id"`
	LocalCandidateID  string    `json:"local_candidate_id"`
	RemoteCandidateID string    `json:"remote_candidate_id"`
	State             PairState `json:"state"`
	Nominated         bool      `json:"nominated"`
}

func (p CandidatePair) ReportID() string { return p.ID }

type OtherReport struct {
	ID   string
	Type string
}

func (o OtherReport) ReportID() string { return o.ID }

// Stats is a read-only snapshot of the candidate data of one connection.
// Pairs are ordered by ID so selection does not depend on map iteration.
type Stats struct {
	Pairs      []CandidatePair      `json:"pairs,omitempty"`
	Candidates map[string]Candidate `json:"candidates,omitempty"`
}

func (s Stats) Candidate(id string) (Candidate, bool) {
	c, ok := s.Candidates[id]
	return c, ok
}

func (s Stats) Empty() bool {
	return len(s.Pairs) == 0 && len(s.Candidates) == 0
}

// NewStats assembles a snapshot from already decoded reports.
func NewStats(reports ...Report) Stats {
	st := Stats{Candidates: map[string]Candidate{}}
	for _, r := range reports {
		switch v := r.(type) {
		case CandidatePair:
			st.Pairs = append(st.Pairs, v)
		case Candidate:
			st.Candidates[v.ID] = v
		}
	}
	sort.Slice(st.Pairs, func(i, j int) bool { return st.Pairs[i].ID < st.Pairs[j].ID })
	return st
}

// DecodeStats converts an engine stats report into the typed snapshot.
func DecodeStats(report webrtc.StatsReport) Stats {
	reports := make([]Report, 0, len(report))
	for _, s := range report {
		reports = append(reports, DecodeReport(s))
	}
	return NewStats(reports...)
}

func DecodeReport(s webrtc.Stats) Report {
	switch v := s.(type) {
	case webrtc.ICECandidatePairStats:
		return decodePair(v)
	case *webrtc.ICECandidatePairStats:
		return decodePair(*v)
	case webrtc.ICECandidateStats:
		return decodeCandidate(v)
	case *webrtc.ICECandidateStats:
		return decodeCandidate(*v)
	default:
		return OtherReport{Type: fmt.Sprintf("%T", s)}
	}
}

func decodePair(v webrtc.ICECandidatePairStats) CandidatePair {
	return CandidatePair{
		ID:                v.ID,
		LocalCandidateID:  v.LocalCandidateID,
		RemoteCandidateID: v.RemoteCandidateID,
		State:             PairState(v.State),
		Nominated:         v.Nominated,
	}
}

func decodeCandidate(v webrtc.ICECandidateStats) Candidate {
	dir := DirectionLocal
	if v.Type == webrtc.StatsTypeRemoteCandidate {
		dir = DirectionRemote
	}
	return Candidate{
		ID:        v.ID,
		Direction: dir,
		Type:      CandidateType(v.CandidateType.String()),
		Address:   v.IP,
		Port:      int(v.Port),
		Protocol:  v.Protocol,
	}
}
