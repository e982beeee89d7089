package port

import "github.com/Wyydra/yacall/internal/core/domain"

// CallLedger tracks one attempt per pair of users. Apply returns
// ErrInvalidTransition and leaves the attempt untouched when the intent
// arrives out of order.
type CallLedger interface {
	Apply(from, to domain.UserID, intent domain.CallIntent) (domain.CallState, error)
	State(a, b domain.UserID) domain.CallState
	Forget(id domain.UserID) []domain.CallAttempt
	OnExpire(fn func(attempt domain.CallAttempt))
}
