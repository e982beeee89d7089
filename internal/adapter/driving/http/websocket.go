package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/Wyydra/yacall/internal/core/service"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const cleanupTimeout = 5 * time.Second

type WSClient struct {
	handle       domain.Handle
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu sync.Mutex
}

func (c *WSClient) Handle() domain.Handle {
	return c.handle
}

func (c *WSClient) Send(sig domain.Signal) error {
	frame, err := encodeSignal(sig)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteJSON(frame)
}

func (c *WSClient) ping() error {
	timeout := c.writeTimeout
	if timeout <= 0 {
		timeout = cleanupTimeout
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout))
}

func (c *WSClient) Close() error {
	return c.conn.Close()
}

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.Options.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// HTTP handler
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	h.conns.Add(1)
	defer h.conns.Done()

	client := &WSClient{
		handle:       domain.NewHandle(),
		conn:         conn,
		writeTimeout: h.Options.WriteTimeout,
	}

	l := log.With().Str("handle", client.handle.String()).Logger()
	l.Info().Msg("New client connected")

	h.Hub.Register(client)

	done := make(chan struct{})
	defer func() {
		close(done)
		l.Info().Msg("Client disconnected")
		h.Hub.Unregister(client)

		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := h.CallService.Disconnect(ctx, client.handle); err != nil {
			l.Error().Err(err).Msg("Error releasing session")
		}
		conn.Close()
	}()

	if h.Options.ReadLimit > 0 {
		conn.SetReadLimit(h.Options.ReadLimit)
	}
	if h.Options.PongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(h.Options.PongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(h.Options.PongWait))
		})
		go h.keepalive(client, done, l)
	}

	limit := rate.Inf
	if h.Options.Rate > 0 {
		limit = rate.Limit(h.Options.Rate)
	}
	limiter := rate.NewLimiter(limit, h.Options.Burst)

	// listening for browser
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			break
		}

		if !limiter.Allow() {
			l.Warn().Msg("Rate limit exceeded, dropping frame")
			continue
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			l.Debug().Err(err).Msg("Invalid frame")
			h.replyError(client, fmt.Errorf("%w: %v", errBadPayload, err), l)
			continue
		}

		if err := h.dispatch(r.Context(), client, frame); err != nil {
			h.replyError(client, err, l.With().Str("event", frame.Event).Logger())
		}
	}
}

func (h *Handler) keepalive(client *WSClient, done <-chan struct{}, l zerolog.Logger) {
	ticker := time.NewTicker(h.Options.PongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := client.ping(); err != nil {
				l.Debug().Err(err).Msg("Ping failed")
				return
			}
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, client *WSClient, frame inboundFrame) error {
	if frame.Event == eventRegisterUser {
		id, err := decodeRegister(frame.Data)
		if err != nil {
			return err
		}
		return h.Registry.Bind(ctx, id, client.handle)
	}

	if !routedEvents[frame.Event] {
		return fmt.Errorf("%w: %q", errUnknownEvent, frame.Event)
	}
	req, to, err := decodeRoute(frame.Data)
	if err != nil {
		return err
	}

	if frame.Event == eventCallUser {
		from, err := h.caller(client, req.FromRollNo)
		if err != nil {
			return err
		}
		return h.CallService.CallUser(ctx, client.handle, from, to)
	}

	from, ok := h.Registry.IdentityOf(client.handle)
	if !ok {
		return domain.ErrNotRegistered
	}

	switch frame.Event {
	case eventAcceptCall:
		return h.CallService.AcceptCall(ctx, from, to)
	case eventRejectCall:
		return h.CallService.RejectCall(ctx, from, to)
	case eventOffer:
		return h.CallService.RelayOffer(ctx, from, to, req.Offer)
	case eventAnswer:
		return h.CallService.RelayAnswer(ctx, from, to, req.Answer)
	case eventCandidate:
		return h.CallService.RelayCandidate(ctx, from, to, req.Candidate)
	case eventEndCall:
		return h.CallService.EndCall(ctx, from, to)
	case eventSendMessage:
		return h.CallService.SendMessage(ctx, from, to, req.Message)
	default:
		return fmt.Errorf("%w: %q", errUnknownEvent, frame.Event)
	}
}

// caller picks the identity a call is placed as: the declared fromRollNo
// if any, otherwise the identity this connection registered.
func (h *Handler) caller(client *WSClient, declared string) (domain.UserID, error) {
	if declared != "" {
		return domain.ParseUserID(declared)
	}
	if id, ok := h.Registry.IdentityOf(client.handle); ok {
		return id, nil
	}
	return "", domain.ErrNotRegistered
}

func (h *Handler) replyError(client *WSClient, err error, l zerolog.Logger) {
	var msg string
	switch {
	case service.IsClientError(err), errors.Is(err, errUnknownEvent), errors.Is(err, errBadPayload):
		l.Debug().Err(err).Msg("Rejected client event")
		msg = err.Error()
	case errors.Is(err, domain.ErrDirectoryUnavailable):
		l.Error().Err(err).Msg("Directory failure while handling event")
		msg = "Service unavailable"
	default:
		l.Error().Err(err).Msg("Failed to handle event")
		return
	}
	if err := client.Send(domain.NewFailure(domain.SignalError, msg)); err != nil {
		l.Debug().Err(err).Msg("Error replying to client")
	}
}
