package domain

import "encoding/json"

// Payload is negotiation data (SDP or ICE candidate) relayed without
// interpretation.
type Payload = json.RawMessage

type SignalType string

// Server -> client events.
const (
	SignalOnlineUsers     SignalType = "online-users-update"
	SignalIncomingCall    SignalType = "incoming-call"
	SignalCallAccepted    SignalType = "call-accepted"
	SignalCallRejected    SignalType = "call-rejected"
	SignalCallFailed      SignalType = "call-failed"
	SignalOffer           SignalType = "offer"
	SignalAnswer          SignalType = "answer"
	SignalCandidate       SignalType = "ice-candidate"
	SignalEndCall         SignalType = "end-call"
	SignalIncomingMessage SignalType = "incoming-message"
	SignalError           SignalType = "error"
)

const (
	ReasonOffline  = "User is offline"
	ReasonNoAnswer = "No answer"
)

// Signal is one event addressed to a client. Which fields are meaningful
// depends on Type.
type Signal struct {
	Type    SignalType
	From    UserID
	Payload Payload
	Text    string
	Users   []PresenceEntry
}

func NewSignal(t SignalType, from UserID) Signal {
	return Signal{
		Type: t,
		From: from,
	}
}

func NewPayloadSignal(t SignalType, from UserID, payload Payload) Signal {
	return Signal{
		Type:    t,
		From:    from,
		Payload: payload,
	}
}

func NewFailure(t SignalType, reason string) Signal {
	return Signal{
		Type: t,
		Text: reason,
	}
}

func NewPresenceSignal(users []PresenceEntry) Signal {
	return Signal{
		Type:  SignalOnlineUsers,
		Users: users,
	}
}
