package domain

// EventKind names a point-to-point event forwarded by the relay.
type EventKind string

const (
	EventOffer        EventKind = "offer"
	EventAnswer       EventKind = "answer"
	EventICECandidate EventKind = "ice-candidate"
	EventChatMessage  EventKind = "message"
	EventCallInvite   EventKind = "call-invite"
	EventCallAccept   EventKind = "call-accept"
	EventCallReject   EventKind = "call-reject"
	EventCallEnd      EventKind = "call-end"
	EventMarkRead     EventKind = "mark-messages-as-read"
)

// RelayKinds lists every kind accepted from peers, in wire order.
var RelayKinds = []EventKind{
	EventOffer,
	EventAnswer,
	EventICECandidate,
	EventChatMessage,
	EventCallInvite,
	EventCallAccept,
	EventCallReject,
	EventCallEnd,
	EventMarkRead,
}

// Outbound returns the frame type the target receives for k.
// Most kinds pass through unchanged.
func (k EventKind) Outbound() string {
	switch k {
	case EventCallEnd:
		return "call-ended"
	case EventMarkRead:
		return "messages-marked-as-read"
	default:
		return string(k)
	}
}

// IsRelayKind reports whether k is forwarded peer to peer.
func IsRelayKind(k EventKind) bool {
	for _, rk := range RelayKinds {
		if rk == k {
			return true
		}
	}
	return false
}
