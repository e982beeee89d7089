package domain_test

import (
	"errors"
	"testing"

	"github.com/Wyydra/yacall/internal/core/domain"
)

func TestNextCallState(t *testing.T) {
	t.Parallel()

	type tcase struct {
		from      domain.CallState
		intent    domain.CallIntent
		want      domain.CallState
		expectErr bool
	}

	tcases := map[string]tcase{
		"ring_from_idle":           {from: domain.CallIdle, intent: domain.IntentRing, want: domain.CallRinging},
		"ring_again_while_ringing": {from: domain.CallRinging, intent: domain.IntentRing, want: domain.CallRinging},
		"ring_during_call":         {from: domain.CallActive, intent: domain.IntentRing, expectErr: true},
		"accept_ringing":           {from: domain.CallRinging, intent: domain.IntentAccept, want: domain.CallConnecting},
		"accept_idle":              {from: domain.CallIdle, intent: domain.IntentAccept, expectErr: true},
		"reject_ringing":           {from: domain.CallRinging, intent: domain.IntentReject, want: domain.CallRejected},
		"reject_connecting":        {from: domain.CallConnecting, intent: domain.IntentReject, expectErr: true},
		"offer_connecting":         {from: domain.CallConnecting, intent: domain.IntentOffer, want: domain.CallConnecting},
		"offer_renegotiate":        {from: domain.CallActive, intent: domain.IntentOffer, want: domain.CallConnecting},
		"offer_ringing":            {from: domain.CallRinging, intent: domain.IntentOffer, expectErr: true},
		"answer_connecting":        {from: domain.CallConnecting, intent: domain.IntentAnswer, want: domain.CallActive},
		"answer_without_offer":     {from: domain.CallIdle, intent: domain.IntentAnswer, expectErr: true},
		"candidate_active":         {from: domain.CallActive, intent: domain.IntentCandidate, want: domain.CallActive},
		"candidate_connecting":     {from: domain.CallConnecting, intent: domain.IntentCandidate, want: domain.CallConnecting},
		"candidate_idle":           {from: domain.CallIdle, intent: domain.IntentCandidate, expectErr: true},
		"end_active":               {from: domain.CallActive, intent: domain.IntentEnd, want: domain.CallEnded},
		"end_idle":                 {from: domain.CallIdle, intent: domain.IntentEnd, want: domain.CallEnded},
		"fail_idle":                {from: domain.CallIdle, intent: domain.IntentFail, want: domain.CallFailed},
		"expire_ringing":           {from: domain.CallRinging, intent: domain.IntentExpire, want: domain.CallFailed},
		"expire_active":            {from: domain.CallActive, intent: domain.IntentExpire, expectErr: true},
		"unknown_intent":           {from: domain.CallIdle, intent: "dance", expectErr: true},
	}

	for name, tc := range tcases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := domain.NextCallState(tc.from, tc.intent)
			if tc.expectErr {
				if !errors.Is(err, domain.ErrInvalidTransition) {
					t.Fatalf("NextCallState(%s, %s) error = %v, want ErrInvalidTransition", tc.from, tc.intent, err)
				}
				if got != tc.from {
					t.Errorf("state changed on invalid transition: %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NextCallState(%s, %s): %v", tc.from, tc.intent, err)
			}
			if got != tc.want {
				t.Errorf("NextCallState(%s, %s) = %s, want %s", tc.from, tc.intent, got, tc.want)
			}
		})
	}
}

func TestCallStateTerminal(t *testing.T) {
	for _, s := range []domain.CallState{domain.CallRejected, domain.CallFailed, domain.CallEnded} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []domain.CallState{domain.CallIdle, domain.CallRinging, domain.CallConnecting, domain.CallActive} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestCallAttemptPeer(t *testing.T) {
	a := domain.CallAttempt{Caller: "A", Callee: "B"}
	if a.Peer("A") != "B" || a.Peer("B") != "A" {
		t.Errorf("Peer mismatch: %+v", a)
	}
	if !a.Involves("A") || a.Involves("C") {
		t.Errorf("Involves mismatch: %+v", a)
	}
}

func TestNewMessage(t *testing.T) {
	if _, err := domain.NewMessage("A", "B", "   "); !errors.Is(err, domain.ErrEmptyMessage) {
		t.Errorf("blank message error = %v", err)
	}
	m, err := domain.NewMessage("A", "B", "hi")
	if err != nil || m.Text != "hi" {
		t.Errorf("NewMessage = %+v, %v", m, err)
	}
}
