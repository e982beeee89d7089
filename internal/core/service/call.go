package service

import (
	"context"
	"errors"
	"time"

	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/Wyydra/yacall/internal/core/port"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	reasonUnavailable = "Service unavailable"
	expireTimeout     = 5 * time.Second
)

// CallService routes call signaling between two users. Each event is a
// single lookup-and-forward: nothing is buffered or retried, and events
// for a target that is not online are dropped.
type CallService struct {
	registry *SessionRegistry
	gateway  port.Gateway
	ledger   port.CallLedger
	strict   bool
}

type CallOption func(*CallService)

// WithStrictTransitions drops events the call ledger considers out of
// order instead of relaying them anyway.
func WithStrictTransitions(strict bool) CallOption {
	return func(s *CallService) {
		s.strict = strict
	}
}

func NewCallService(registry *SessionRegistry, gateway port.Gateway, ledger port.CallLedger, opts ...CallOption) *CallService {
	s := &CallService{
		registry: registry,
		gateway:  gateway,
		ledger:   ledger,
	}
	for _, opt := range opts {
		opt(s)
	}
	ledger.OnExpire(s.expire)
	return s
}

// CallUser rings to on behalf of from. If to is not online the reply goes
// back to the calling connection only.
func (s *CallService) CallUser(ctx context.Context, caller domain.Handle, from, to domain.UserID) error {
	l := eventLogger(from, to, domain.IntentRing)
	l.Info().Msg("Call request")

	handle, ok, err := s.registry.Resolve(ctx, to)
	if err != nil {
		l.Error().Err(err).Msg("Error resolving callee")
		return s.gateway.Send(ctx, caller, domain.NewFailure(domain.SignalCallFailed, reasonUnavailable))
	}
	if !ok {
		if _, err := s.ledger.Apply(from, to, domain.IntentFail); err != nil {
			l.Debug().Err(err).Msg("Ledger rejected failure")
		}
		return s.gateway.Send(ctx, caller, domain.NewFailure(domain.SignalCallFailed, domain.ReasonOffline))
	}
	if !s.track(from, to, domain.IntentRing, l) {
		return nil
	}
	s.deliver(ctx, handle, domain.NewSignal(domain.SignalIncomingCall, from), l)
	return nil
}

func (s *CallService) AcceptCall(ctx context.Context, from, to domain.UserID) error {
	return s.relay(ctx, from, to, domain.IntentAccept, domain.NewSignal(domain.SignalCallAccepted, from))
}

func (s *CallService) RejectCall(ctx context.Context, from, to domain.UserID) error {
	return s.relay(ctx, from, to, domain.IntentReject, domain.NewSignal(domain.SignalCallRejected, from))
}

func (s *CallService) RelayOffer(ctx context.Context, from, to domain.UserID, offer domain.Payload) error {
	return s.relay(ctx, from, to, domain.IntentOffer, domain.NewPayloadSignal(domain.SignalOffer, from, offer))
}

func (s *CallService) RelayAnswer(ctx context.Context, from, to domain.UserID, answer domain.Payload) error {
	return s.relay(ctx, from, to, domain.IntentAnswer, domain.NewPayloadSignal(domain.SignalAnswer, from, answer))
}

// RelayCandidate forwards an ICE candidate. The sender is not disclosed.
func (s *CallService) RelayCandidate(ctx context.Context, from, to domain.UserID, candidate domain.Payload) error {
	return s.relay(ctx, from, to, domain.IntentCandidate, domain.NewPayloadSignal(domain.SignalCandidate, "", candidate))
}

func (s *CallService) EndCall(ctx context.Context, from, to domain.UserID) error {
	return s.relay(ctx, from, to, domain.IntentEnd, domain.NewSignal(domain.SignalEndCall, ""))
}

func (s *CallService) SendMessage(ctx context.Context, from, to domain.UserID, text string) error {
	msg, err := domain.NewMessage(from, to, text)
	if err != nil {
		return err
	}
	l := log.With().Str("from", from.String()).Str("to", to.String()).Logger()
	handle, ok, err := s.registry.Resolve(ctx, msg.To)
	if err != nil {
		return err
	}
	if !ok {
		l.Debug().Msg("Message target offline, dropping")
		return nil
	}
	sig := domain.NewSignal(domain.SignalIncomingMessage, msg.From)
	sig.Text = msg.Text
	s.deliver(ctx, handle, sig, l)
	return nil
}

// Disconnect releases the identity bound to handle and forgets its call
// attempts. A stale disconnect of an identity that already reconnected
// leaves its calls alone.
func (s *CallService) Disconnect(ctx context.Context, handle domain.Handle) error {
	id, cleared, err := s.registry.Unbind(ctx, handle)
	if err != nil {
		return err
	}
	if !cleared {
		return nil
	}
	for _, a := range s.ledger.Forget(id) {
		log.Debug().Str("rollno", id.String()).Str("peer", a.Peer(id).String()).Str("state", a.State.String()).Msg("Dropped call attempt on disconnect")
	}
	return nil
}

func (s *CallService) relay(ctx context.Context, from, to domain.UserID, intent domain.CallIntent, sig domain.Signal) error {
	l := eventLogger(from, to, intent)

	if intent == domain.IntentEnd {
		s.track(from, to, intent, l)
	}

	handle, ok, err := s.registry.Resolve(ctx, to)
	if err != nil {
		return err
	}
	if !ok {
		l.Debug().Msg("Target offline, dropping")
		return nil
	}
	if intent != domain.IntentEnd && !s.track(from, to, intent, l) {
		return nil
	}
	s.deliver(ctx, handle, sig, l)
	return nil
}

// track records intent in the ledger and reports whether the event should
// still be relayed.
func (s *CallService) track(from, to domain.UserID, intent domain.CallIntent, l zerolog.Logger) bool {
	state, err := s.ledger.Apply(from, to, intent)
	if err == nil {
		l.Debug().Str("state", state.String()).Msg("Call state")
		return true
	}
	if s.strict {
		l.Warn().Err(err).Msg("Out of order call event dropped")
		return false
	}
	l.Debug().Err(err).Msg("Out of order call event relayed")
	return true
}

func (s *CallService) deliver(ctx context.Context, handle domain.Handle, sig domain.Signal, l zerolog.Logger) {
	if err := s.gateway.Send(ctx, handle, sig); err != nil {
		l.Debug().Err(err).Msg("Relay failed, dropping")
	}
}

func (s *CallService) expire(a domain.CallAttempt) {
	ctx, cancel := context.WithTimeout(context.Background(), expireTimeout)
	defer cancel()

	l := eventLogger(a.Caller, a.Callee, domain.IntentExpire)
	if h, ok, err := s.registry.Resolve(ctx, a.Caller); err == nil && ok {
		s.deliver(ctx, h, domain.NewFailure(domain.SignalCallFailed, domain.ReasonNoAnswer), l)
	}
	if h, ok, err := s.registry.Resolve(ctx, a.Callee); err == nil && ok {
		s.deliver(ctx, h, domain.NewSignal(domain.SignalEndCall, ""), l)
	}
}

func eventLogger(from, to domain.UserID, intent domain.CallIntent) zerolog.Logger {
	return log.With().Str("from", from.String()).Str("to", to.String()).Str("event", string(intent)).Logger()
}

// IsClientError reports whether err should be shown to the client that
// caused it.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrInvalidUserID) ||
		errors.Is(err, domain.ErrNotRegistered) ||
		errors.Is(err, domain.ErrEmptyMessage) ||
		errors.Is(err, domain.ErrUserNotFound)
}
