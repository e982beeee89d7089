package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/Wyydra/yacall/internal/core/port"
	"github.com/rs/zerolog/log"
)

// keyedMutex serializes work per identity without blocking unrelated
// identities.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[domain.UserID]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(id domain.UserID) func() {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}

// SessionRegistry maps identities to the handle of their live connection.
// The directory's online flag stays authoritative; the registry only
// remembers which identity each handle registered as.
type SessionRegistry struct {
	directory port.UserDirectory
	presence  *PresenceBroadcaster

	locks keyedMutex

	mu       sync.RWMutex
	sessions map[domain.Handle]domain.UserID
}

func NewSessionRegistry(directory port.UserDirectory, presence *PresenceBroadcaster) *SessionRegistry {
	return &SessionRegistry{
		directory: directory,
		presence:  presence,
		locks:     keyedMutex{locks: make(map[domain.UserID]*refMutex)},
		sessions:  make(map[domain.Handle]domain.UserID),
	}
}

// Bind attaches id to handle and marks the user online. A newer bind for
// the same identity replaces the older handle. If handle was already bound
// to a different identity, that identity is released first.
func (r *SessionRegistry) Bind(ctx context.Context, id domain.UserID, handle domain.Handle) error {
	r.mu.RLock()
	prev, had := r.sessions[handle]
	r.mu.RUnlock()
	if had && prev != id {
		if _, err := r.release(ctx, prev, handle); err != nil {
			return err
		}
	}

	unlock := r.locks.Lock(id)
	err := r.directory.SetPresence(ctx, id, &handle, true)
	if err == nil {
		r.mu.Lock()
		r.sessions[handle] = id
		r.mu.Unlock()
	}
	unlock()

	if err != nil {
		return fmt.Errorf("bind %s: %w", id, err)
	}

	log.Info().Str("rollno", id.String()).Str("handle", handle.String()).Msg("User registered")
	r.presence.Refresh(ctx)
	return nil
}

// Unbind forgets handle. The user goes offline only if the directory still
// points at this handle, so a late disconnect cannot undo a reconnect.
// Unbinding an unknown handle is a no-op.
func (r *SessionRegistry) Unbind(ctx context.Context, handle domain.Handle) (domain.UserID, bool, error) {
	r.mu.Lock()
	id, ok := r.sessions[handle]
	delete(r.sessions, handle)
	r.mu.Unlock()
	if !ok {
		return "", false, nil
	}

	cleared, err := r.release(ctx, id, handle)
	if err != nil {
		return id, false, err
	}
	if cleared {
		r.presence.Refresh(ctx)
	}
	return id, cleared, nil
}

func (r *SessionRegistry) release(ctx context.Context, id domain.UserID, handle domain.Handle) (bool, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	r.mu.Lock()
	if cur, ok := r.sessions[handle]; ok && cur == id {
		delete(r.sessions, handle)
	}
	r.mu.Unlock()

	u, err := r.directory.FindByID(ctx, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("unbind %s: %w", id, err)
	}
	if u.Handle == nil || *u.Handle != handle {
		log.Debug().Str("rollno", id.String()).Str("handle", handle.String()).Msg("Stale disconnect ignored, identity rebound")
		return false, nil
	}
	if err := r.directory.SetPresence(ctx, id, nil, false); err != nil {
		return false, fmt.Errorf("unbind %s: %w", id, err)
	}
	log.Info().Str("rollno", id.String()).Str("handle", handle.String()).Msg("User went offline")
	return true, nil
}

// Resolve returns the live handle for id. A user the directory marks
// offline never resolves, whatever handle is still stored.
func (r *SessionRegistry) Resolve(ctx context.Context, id domain.UserID) (domain.Handle, bool, error) {
	u, err := r.directory.FindByID(ctx, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.Handle{}, false, nil
	}
	if err != nil {
		return domain.Handle{}, false, fmt.Errorf("resolve %s: %w", id, err)
	}
	if !u.Online || u.Handle == nil {
		return domain.Handle{}, false, nil
	}
	return *u.Handle, true, nil
}

// IdentityOf returns the identity handle registered as, if any.
func (r *SessionRegistry) IdentityOf(handle domain.Handle) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.sessions[handle]
	return id, ok
}

// Len returns the number of identities with a session. Connections an
// identity has since replaced are not counted twice.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make(map[domain.UserID]struct{}, len(r.sessions))
	for _, id := range r.sessions {
		ids[id] = struct{}{}
	}
	return len(ids)
}

// Close takes every bound session offline.
func (r *SessionRegistry) Close(ctx context.Context) error {
	r.mu.RLock()
	handles := make([]domain.Handle, 0, len(r.sessions))
	for h := range r.sessions {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	var errs []error
	for _, h := range handles {
		r.mu.Lock()
		id, ok := r.sessions[h]
		delete(r.sessions, h)
		r.mu.Unlock()
		if !ok {
			continue
		}
		if _, err := r.release(ctx, id, h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
