package port

import (
	"context"

	"github.com/Wyydra/yacall/internal/core/domain"
)

// UserDirectory is the persistent store of registered users and their
// presence. SetPresence with a nil handle clears the stored handle.
type UserDirectory interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	FindByID(ctx context.Context, id domain.UserID) (domain.User, error)
	SetPresence(ctx context.Context, id domain.UserID, handle *domain.Handle, online bool) error
	ListOnline(ctx context.Context) ([]domain.User, error)
	ResetPresence(ctx context.Context) error
}
