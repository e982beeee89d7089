package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Wyydra/yacall/internal/core/domain"
)

// UserRepository keeps users in insertion order. Lost on restart.
type UserRepository struct {
	mu    sync.RWMutex
	users map[domain.UserID]*domain.User
	order []domain.UserID
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[domain.UserID]*domain.User),
		order: make([]domain.UserID, 0),
	}
}

func (r *UserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return domain.User{}, domain.ErrDuplicateUser
	}
	user.Online = false
	user.Handle = nil
	user.CreatedAt = time.Now().UTC()

	r.users[user.ID] = &user
	r.order = append(r.order, user.ID)
	return copyUser(user), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return copyUser(*u), nil
}

func (r *UserRepository) SetPresence(ctx context.Context, id domain.UserID, handle *domain.Handle, online bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Online = online
	u.Handle = nil
	if handle != nil {
		h := *handle
		u.Handle = &h
	}
	return nil
}

func (r *UserRepository) ListOnline(ctx context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	online := make([]domain.User, 0)
	for _, id := range r.order {
		if u := r.users[id]; u.Online {
			online = append(online, copyUser(*u))
		}
	}
	return online, nil
}

func (r *UserRepository) ResetPresence(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		u.Online = false
		u.Handle = nil
	}
	return nil
}

func copyUser(u domain.User) domain.User {
	if u.Handle != nil {
		h := *u.Handle
		u.Handle = &h
	}
	return u
}
