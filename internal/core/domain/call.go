package domain

import "fmt"

type CallState int

const (
	CallIdle CallState = iota
	CallRinging
	CallConnecting
	CallActive
	CallRejected
	CallFailed
	CallEnded
)

func (s CallState) String() string {
	switch s {
	case CallIdle:
		return "idle"
	case CallRinging:
		return "ringing"
	case CallConnecting:
		return "connecting"
	case CallActive:
		return "active"
	case CallRejected:
		return "rejected"
	case CallFailed:
		return "failed"
	case CallEnded:
		return "ended"
	default:
		return fmt.Sprintf("CallState(%d)", int(s))
	}
}

// Terminal states close the attempt; the pair is back to idle afterwards.
func (s CallState) Terminal() bool {
	return s == CallRejected || s == CallFailed || s == CallEnded
}

type CallIntent string

const (
	IntentRing      CallIntent = "call-user"
	IntentFail      CallIntent = "call-failed"
	IntentAccept    CallIntent = "accept-call"
	IntentReject    CallIntent = "reject-call"
	IntentOffer     CallIntent = "offer"
	IntentAnswer    CallIntent = "answer"
	IntentCandidate CallIntent = "ice-candidate"
	IntentEnd       CallIntent = "end-call"
	IntentExpire    CallIntent = "ring-timeout"
)

type transition struct {
	from []CallState
	to   CallState
	keep bool // stay in the current state
}

var settled = []CallState{CallIdle, CallRejected, CallFailed, CallEnded}

var transitions = map[CallIntent]transition{
	IntentRing:      {from: append([]CallState{CallRinging}, settled...), to: CallRinging},
	IntentFail:      {from: append([]CallState{CallRinging}, settled...), to: CallFailed},
	IntentAccept:    {from: []CallState{CallRinging}, to: CallConnecting},
	IntentReject:    {from: []CallState{CallRinging}, to: CallRejected},
	IntentOffer:     {from: []CallState{CallConnecting, CallActive}, to: CallConnecting},
	IntentAnswer:    {from: []CallState{CallConnecting}, to: CallActive},
	IntentCandidate: {from: []CallState{CallConnecting, CallActive}, keep: true},
	IntentEnd: {from: []CallState{
		CallIdle, CallRinging, CallConnecting, CallActive, CallRejected, CallFailed, CallEnded,
	}, to: CallEnded},
	IntentExpire: {from: []CallState{CallRinging}, to: CallFailed},
}

// NextCallState returns the state a call attempt moves to when intent is
// observed in state cur.
func NextCallState(cur CallState, intent CallIntent) (CallState, error) {
	t, ok := transitions[intent]
	if !ok {
		return cur, fmt.Errorf("%w: unknown intent %q", ErrInvalidTransition, intent)
	}
	for _, s := range t.from {
		if s != cur {
			continue
		}
		if t.keep {
			return cur, nil
		}
		return t.to, nil
	}
	return cur, fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, intent, cur)
}

// CallAttempt is one ringing-to-resolution cycle between two users.
type CallAttempt struct {
	Caller UserID
	Callee UserID
	State  CallState
}

// Involves reports whether id is one of the two parties.
func (a CallAttempt) Involves(id UserID) bool {
	return a.Caller == id || a.Callee == id
}

// Peer returns the other party of the attempt.
func (a CallAttempt) Peer(id UserID) UserID {
	if a.Caller == id {
		return a.Callee
	}
	return a.Caller
}
