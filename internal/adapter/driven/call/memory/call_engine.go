package memory

import (
	"sync"
	"time"

	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/rs/zerolog/log"
)

type pairKey struct {
	lo, hi domain.UserID
}

func keyOf(a, b domain.UserID) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

type attempt struct {
	domain.CallAttempt
	timer *time.Timer
	gen   uint64
}

// implements port.CallLedger
type CallEngine struct {
	mu          sync.Mutex
	attempts    map[pairKey]*attempt
	ringTimeout time.Duration
	gen         uint64
	onExpire    func(domain.CallAttempt)
}

// NewCallEngine returns an empty ledger. A positive ringTimeout fails
// attempts that are still ringing once it elapses.
func NewCallEngine(ringTimeout time.Duration) *CallEngine {
	return &CallEngine{
		attempts:    make(map[pairKey]*attempt),
		ringTimeout: ringTimeout,
	}
}

func (e *CallEngine) OnExpire(fn func(domain.CallAttempt)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onExpire = fn
}

func (e *CallEngine) Apply(from, to domain.UserID, intent domain.CallIntent) (domain.CallState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	k := keyOf(from, to)
	cur := domain.CallIdle
	a := e.attempts[k]
	if a != nil {
		cur = a.State
	}

	next, err := domain.NextCallState(cur, intent)
	if err != nil {
		return cur, err
	}

	if next.Terminal() {
		if a != nil {
			e.dropLocked(k, a)
		}
		return next, nil
	}

	if intent == domain.IntentRing {
		for other, o := range e.attempts {
			if other != k && o.Caller == from && o.State == domain.CallRinging {
				log.Debug().Str("caller", from.String()).Str("callee", o.Callee.String()).Msg("Replacing previous ringing attempt")
				e.dropLocked(other, o)
			}
		}
		if a != nil {
			stopTimer(a)
		}
		a = &attempt{CallAttempt: domain.CallAttempt{Caller: from, Callee: to}}
		e.attempts[k] = a
		a.State = next
		e.armLocked(k, a)
		return next, nil
	}

	if a == nil {
		// only ringing creates an attempt
		return cur, domain.ErrInvalidTransition
	}
	if next != domain.CallRinging {
		stopTimer(a)
	}
	a.State = next
	return next, nil
}

func (e *CallEngine) State(a, b domain.UserID) domain.CallState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if at, ok := e.attempts[keyOf(a, b)]; ok {
		return at.State
	}
	return domain.CallIdle
}

// Forget drops every attempt id takes part in and returns them.
func (e *CallEngine) Forget(id domain.UserID) []domain.CallAttempt {
	e.mu.Lock()
	defer e.mu.Unlock()

	var dropped []domain.CallAttempt
	for k, a := range e.attempts {
		if a.Involves(id) {
			dropped = append(dropped, a.CallAttempt)
			e.dropLocked(k, a)
		}
	}
	return dropped
}

// Stop cancels all pending ring timers and clears the ledger.
func (e *CallEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, a := range e.attempts {
		e.dropLocked(k, a)
	}
}

func (e *CallEngine) armLocked(k pairKey, a *attempt) {
	if e.ringTimeout <= 0 {
		return
	}
	e.gen++
	gen := e.gen
	a.gen = gen
	a.timer = time.AfterFunc(e.ringTimeout, func() {
		e.expire(k, gen)
	})
}

func (e *CallEngine) expire(k pairKey, gen uint64) {
	e.mu.Lock()
	a, ok := e.attempts[k]
	if !ok || a.gen != gen || a.State != domain.CallRinging {
		e.mu.Unlock()
		return
	}
	delete(e.attempts, k)
	expired := a.CallAttempt
	expired.State = domain.CallFailed
	cb := e.onExpire
	e.mu.Unlock()

	log.Info().Str("caller", expired.Caller.String()).Str("callee", expired.Callee.String()).Msg("Ringing attempt timed out")
	if cb != nil {
		cb(expired)
	}
}

func (e *CallEngine) dropLocked(k pairKey, a *attempt) {
	stopTimer(a)
	delete(e.attempts, k)
}

func stopTimer(a *attempt) {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
