package service

import (
	"context"
	"sync"

	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/Wyydra/yacall/internal/core/port"
	"github.com/rs/zerolog/log"
)

// PresenceBroadcaster pushes the full list of online users to every
// connected client. There is no diffing; clients replace their list.
type PresenceBroadcaster struct {
	directory port.UserDirectory
	gateway   port.Gateway

	// held from listing to enqueue so snapshots go out in read order
	mu sync.Mutex
}

func NewPresenceBroadcaster(directory port.UserDirectory, gateway port.Gateway) *PresenceBroadcaster {
	return &PresenceBroadcaster{
		directory: directory,
		gateway:   gateway,
	}
}

// Snapshot returns the current online users in directory order.
func (p *PresenceBroadcaster) Snapshot(ctx context.Context) ([]domain.PresenceEntry, error) {
	users, err := p.directory.ListOnline(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.PresenceEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, u.Presence())
	}
	return entries, nil
}

// Refresh broadcasts a snapshot. A directory failure skips this cycle.
func (p *PresenceBroadcaster) Refresh(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries, err := p.Snapshot(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Error listing online users, skipping presence update")
		return
	}
	if err := p.gateway.Broadcast(ctx, domain.NewPresenceSignal(entries)); err != nil {
		log.Error().Err(err).Msg("Error broadcasting online users")
		return
	}
	log.Debug().Int("online", len(entries)).Msg("Presence broadcast")
}
