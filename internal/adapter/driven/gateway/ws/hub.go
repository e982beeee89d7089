package ws

import (
	"context"
	"errors"
	"sync"

	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/rs/zerolog/log"
)

var ErrClientNotFound = errors.New("ws: no client for handle")

const broadcastBuffer = 64

// implements port.Gateway
type Hub struct {
	mu      sync.RWMutex
	clients map[domain.Handle]Client

	broadcast  chan domain.Signal
	register   chan Client
	unregister chan Client
	quit       chan struct{}
	stopOnce   sync.Once

	// presence snapshots replace each other; only the newest is sent
	presenceMu      sync.Mutex
	presence        *domain.Signal
	presencePending chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[domain.Handle]Client),
		broadcast:  make(chan domain.Signal, broadcastBuffer),
		register:   make(chan Client),
		unregister: make(chan Client),
		quit:       make(chan struct{}),

		presencePending: make(chan struct{}, 1),
	}
}

func (h *Hub) Broadcast(ctx context.Context, signal domain.Signal) error {
	if signal.Type == domain.SignalOnlineUsers {
		h.presenceMu.Lock()
		h.presence = &signal
		h.presenceMu.Unlock()
		select {
		case h.presencePending <- struct{}{}:
		default:
		}
		return nil
	}

	select {
	case h.broadcast <- signal:
	default:
		log.Warn().Str("type", string(signal.Type)).Msg("Broadcast channel full, dropping message")
	}
	return nil
}

func (h *Hub) Send(ctx context.Context, handle domain.Handle, signal domain.Signal) error {
	h.mu.RLock()
	client, ok := h.clients[handle]
	h.mu.RUnlock()
	if !ok {
		return ErrClientNotFound
	}
	return client.Send(signal)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for handle, client := range h.clients {
				client.Close()
				delete(h.clients, handle)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.Handle()] = client
			h.mu.Unlock()
			log.Info().Str("handle", client.Handle().String()).Msg("Client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.Handle()]; ok {
				delete(h.clients, client.Handle())
				client.Close()
				log.Info().Str("handle", client.Handle().String()).Msg("Client unregistered")
			}
			h.mu.Unlock()

		case <-h.presencePending:
			h.presenceMu.Lock()
			signal := h.presence
			h.presence = nil
			h.presenceMu.Unlock()
			if signal != nil {
				h.sendAll(*signal)
			}

		case signal := <-h.broadcast:
			h.sendAll(signal)
		}
	}
}

func (h *Hub) sendAll(signal domain.Signal) {
	h.mu.RLock()
	targets := make([]Client, 0, len(h.clients))
	for _, client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if err := client.Send(signal); err != nil {
			log.Error().Err(err).Str("handle", client.Handle().String()).Msg("Error sending message")
			h.mu.Lock()
			delete(h.clients, client.Handle())
			h.mu.Unlock()
			client.Close()
		}
	}
}

func (h *Hub) Register(c Client) {
	select {
	case h.register <- c:
	case <-h.quit:
		c.Close()
	}
}

func (h *Hub) Unregister(c Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})
}
