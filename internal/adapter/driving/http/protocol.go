package http

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Wyydra/yacall/internal/core/domain"
)

// Client -> server events.
const (
	eventRegisterUser = "register-user"
	eventCallUser     = "call-user"
	eventAcceptCall   = "accept-call"
	eventRejectCall   = "reject-call"
	eventOffer        = "offer"
	eventAnswer       = "answer"
	eventCandidate    = "ice-candidate"
	eventEndCall      = "end-call"
	eventSendMessage  = "send-message"
)

var routedEvents = map[string]bool{
	eventCallUser:    true,
	eventAcceptCall:  true,
	eventRejectCall:  true,
	eventOffer:       true,
	eventAnswer:      true,
	eventCandidate:   true,
	eventEndCall:     true,
	eventSendMessage: true,
}

var (
	errUnknownEvent = errors.New("unknown event")
	errBadPayload   = errors.New("malformed event payload")
)

// Every frame in either direction is {"event": ..., "data": ...}.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type routeDTO struct {
	ToRollNo   string          `json:"toRollNo"`
	FromRollNo string          `json:"fromRollNo"`
	Offer      json.RawMessage `json:"offer"`
	Answer     json.RawMessage `json:"answer"`
	Candidate  json.RawMessage `json:"candidate"`
	Message    string          `json:"message"`
}

type presenceDTO struct {
	RollNo string `json:"rollno"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Online bool   `json:"online"`
}

type fromDTO struct {
	FromRollNo string `json:"fromRollNo"`
}

type failureDTO struct {
	Message string `json:"message"`
}

type offerDTO struct {
	Offer      json.RawMessage `json:"offer"`
	FromRollNo string          `json:"fromRollNo"`
}

type answerDTO struct {
	Answer     json.RawMessage `json:"answer"`
	FromRollNo string          `json:"fromRollNo"`
}

type candidateDTO struct {
	Candidate json.RawMessage `json:"candidate"`
}

type chatDTO struct {
	FromRollNo string `json:"fromRollNo"`
	Message    string `json:"message"`
}

func encodeSignal(sig domain.Signal) (outboundFrame, error) {
	frame := outboundFrame{Event: string(sig.Type)}
	switch sig.Type {
	case domain.SignalOnlineUsers:
		users := make([]presenceDTO, 0, len(sig.Users))
		for _, u := range sig.Users {
			users = append(users, presenceDTO{
				RollNo: u.ID.String(),
				Name:   u.Name,
				Email:  u.Email,
				Online: u.Online,
			})
		}
		frame.Data = users
	case domain.SignalIncomingCall, domain.SignalCallAccepted, domain.SignalCallRejected:
		frame.Data = fromDTO{FromRollNo: sig.From.String()}
	case domain.SignalCallFailed, domain.SignalError:
		frame.Data = failureDTO{Message: sig.Text}
	case domain.SignalOffer:
		frame.Data = offerDTO{Offer: sig.Payload, FromRollNo: sig.From.String()}
	case domain.SignalAnswer:
		frame.Data = answerDTO{Answer: sig.Payload, FromRollNo: sig.From.String()}
	case domain.SignalCandidate:
		frame.Data = candidateDTO{Candidate: sig.Payload}
	case domain.SignalEndCall:
	case domain.SignalIncomingMessage:
		frame.Data = chatDTO{FromRollNo: sig.From.String(), Message: sig.Text}
	default:
		return frame, fmt.Errorf("encode signal: unknown type %q", sig.Type)
	}
	return frame, nil
}

func decodeRoute(data json.RawMessage) (routeDTO, domain.UserID, error) {
	var req routeDTO
	if len(data) == 0 {
		return req, "", errBadPayload
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, "", fmt.Errorf("%w: %v", errBadPayload, err)
	}
	to, err := domain.ParseUserID(req.ToRollNo)
	if err != nil {
		return req, "", err
	}
	return req, to, nil
}

func decodeRegister(data json.RawMessage) (domain.UserID, error) {
	var rollno string
	if err := json.Unmarshal(data, &rollno); err != nil {
		return "", fmt.Errorf("%w: %v", errBadPayload, err)
	}
	return domain.ParseUserID(rollno)
}
