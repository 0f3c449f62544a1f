// File: internal/probe/peer.go (complete file)

package probe

// SessionDescription is the wire form used by the signaling endpoint.
type SessionDescription struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

type EventKind string

const (
	EventICECandidate       EventKind = "ice-candidate"
	EventICEGatheringDone   EventKind = "ice-gathering-done"
	EventICEGatheringState  EventKind = "ice-gathering-state"
	EventICEConnectionState EventKind = "ice-connection-state"
	EventConnectionState    EventKind = "connection-state"
	EventSignalingState     EventKind = "signaling-state"
	EventChannelOpen        EventKind = "channel-open"
	EventChannelMessage     EventKind = "channel-message"
	EventChannelClose       EventKind = "channel-close"
	EventChannelError       EventKind = "channel-error"
)

// Event is something the connection engine reports asynchronously.
// Value holds the candidate line, state name or message payload depending on Kind.
type Event struct {
	Kind          EventKind
	Value         string
	CandidateType CandidateType
	Err           error
}

// Peer is one peer connection with its single data channel, exclusively owned by a Session.
// Implementations deliver engine callbacks as Events on the channel they were created with
// and must stop delivering once Close returns.
type Peer interface {
	// CreateOffer builds a data-channel-only offer and applies it as the local description.
	CreateOffer() (SessionDescription, error)
	SetAnswer(answer SessionDescription) error
	SendText(msg string) error
	Stats() Stats
	Close() error
}

// PeerFactory allocates a Peer for one session.
type PeerFactory func(cfg Configuration, events chan<- Event) (Peer, error)
