package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Wyydra/yacall/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/yacall/internal/core/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type Options struct {
	StaticDir      string
	AllowedOrigins []string
	ICEServers     []webrtc.ICEServer

	ReadLimit    int64
	WriteTimeout time.Duration
	PongWait     time.Duration
	Rate         float64
	Burst        int
}

type Handler struct {
	UserService *service.UserService
	CallService *service.CallService
	Registry    *service.SessionRegistry
	Hub         *ws.Hub
	Options     Options

	conns sync.WaitGroup
}

func NewHandler(userService *service.UserService, callService *service.CallService, registry *service.SessionRegistry, hub *ws.Hub, opts Options) *Handler {
	return &Handler{
		UserService: userService,
		CallService: callService,
		Registry:    registry,
		Hub:         hub,
		Options:     opts,
	}
}

// WaitConnections blocks until every websocket handler has finished its
// cleanup or ctx is done. Call it after the server stops accepting
// connections and the hub has closed the live ones.
func (h *Handler) WaitConnections(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.Options.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Get("/user/{rollno}", h.GetUser)
	r.Get("/ice-servers", h.ICEServers)
	r.Get("/healthz", h.Health)

	r.Get("/ws", h.ServeWS)

	if h.Options.StaticDir != "" {
		fs := http.FileServer(http.Dir(h.Options.StaticDir))
		r.Handle("/*", fs)
	}

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		}()
		next.ServeHTTP(ww, r)
	})
}
