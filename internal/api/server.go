package api

import (
	"context"
	"log"
	"net/http"

	"cryptopolis/internal/commands"
	"cryptopolis/internal/game"
	"cryptopolis/internal/thumb"

	"github.com/go-chi/chi/v5"
)

// Server ties the HTTP router to the WebSocket hub and owns their
// shared lifecycle. Construction opens no listeners and spawns no
// goroutines; everything live starts in Start.
type Server struct {
	engine      *game.Engine
	streamer    StreamerInterface
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// ServerOptions carries the optional pieces of the API server.
type ServerOptions struct {
	// Queue receives commands parsed from WebSocket clients.
	// Nil makes WebSocket connections spectate-only.
	Queue *commands.Queue

	// Thumbs caches rendered overview PNGs
	Thumbs *thumb.Cache

	// AdminToken guards mutating endpoints; empty leaves them open
	AdminToken string

	// StaticFilesDir overrides where the browser client is served from
	StaticFilesDir string

	// RateLimit overrides the per-IP request limits; nil keeps defaults
	RateLimit *RateLimitConfig
}

// NewServer builds a server with default options. Tests that only need
// HTTP endpoints can construct one and mount Router() without the hub
// workers running.
func NewServer(engine *game.Engine, streamer StreamerInterface) *Server {
	return NewServerWithOptions(engine, streamer, ServerOptions{})
}

// NewServerWithOptions builds a server with command intake, thumbnail
// caching and admin auth wired in.
func NewServerWithOptions(engine *game.Engine, streamer StreamerInterface, opts ServerOptions) *Server {
	s := &Server{
		engine:   engine,
		streamer: streamer,
		wsHub:    NewWebSocketHub(opts.Queue),
	}

	// The limiter lives on the struct so Shutdown can stop its sweeper.
	rateLimitCfg := DefaultRateLimitConfig
	if opts.RateLimit != nil {
		rateLimitCfg = *opts.RateLimit
	}
	s.rateLimiter = NewIPRateLimiter(rateLimitCfg)

	s.router = NewRouter(RouterConfig{
		Engine:         engine,
		Streamer:       streamer,
		Commands:       opts.Queue,
		Thumbs:         opts.Thumbs,
		AdminToken:     opts.AdminToken,
		RateLimiter:    s.rateLimiter,
		StaticFilesDir: opts.StaticFilesDir,
	})

	// The /ws route closes over the hub, so it cannot come out of the
	// NewRouter factory like the REST routes do.
	s.router.Get("/ws", s.handleWS)

	return s
}

// Start launches the hub and broadcast workers, then serves HTTP on
// addr. Call it once; stop with Shutdown.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.engine, s.streamer)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🏙️ Viewer: http://localhost%s/app/", addr)

	return s.httpServer.ListenAndServe()
}

// Router exposes the handler so integration tests can mount it on an
// httptest.Server instead of binding a real port.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub for event-driven broadcasts
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown performs graceful shutdown: in-flight requests get to finish,
// then background workers are stopped. WebSocket connections close with
// the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}
