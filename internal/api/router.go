package api

import (
	"net/http"
	"time"

	"cryptopolis/internal/commands"
	"cryptopolis/internal/game"
	"cryptopolis/internal/render"
	"cryptopolis/internal/thumb"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"
)

// EngineInterface is the slice of the city engine the API touches.
// Handlers depend on it instead of the concrete engine so tests can
// swap in a mock without spinning up the tick loop.
type EngineInterface interface {
	// GetSnapshot returns the latest lock-free immutable snapshot
	GetSnapshot() *game.CitySnapshot
	// GetCatalog returns the building catalogue
	GetCatalog() *game.Catalog
	// GetEventLog returns the bounded event log for since-queries
	GetEventLog() *game.EventLog
	// GetTickCount returns the simulation tick counter
	GetTickCount() uint64
	// PlaceBuilding buys and places a building
	PlaceBuilding(buildingID string, x, y int) (*game.PlacedBuilding, error)
	// RemoveBuilding demolishes a building and refunds part of its cost
	RemoveBuilding(id string) (*game.PlacedBuilding, error)
	// CollectYield sweeps one building's pending yield
	CollectYield(id string) (decimal.Decimal, error)
	// CollectAllYield sweeps every building
	CollectAllYield() decimal.Decimal
	// PreviewPlacement evaluates a hypothetical placement
	PreviewPlacement(buildingID string, x, y int) (*game.PlacementQuote, error)
}

// StreamerInterface is the slice of the render pipeline the API
// touches. Tests that never render substitute a mock.
type StreamerInterface interface {
	// Start begins the render pipeline
	Start() error
	// Stop ends it
	Stop()
	// IsStreaming returns whether the pipeline is currently active
	IsStreaming() bool
	// GetStats returns current pipeline statistics
	GetStats() map[string]interface{}
	// RenderMetrics returns the rolling per-frame metrics
	RenderMetrics() render.RenderMetrics
	// Camera returns the current camera state
	Camera() render.CameraState
	// EncodeFrontPNG encodes the last composed frame
	EncodeFrontPNG() ([]byte, error)
	// OverviewPNG renders the whole grid to a small PNG
	OverviewPNG(width, height int) ([]byte, error)
}

// RouterConfig carries everything NewRouter needs. Tests fill it with
// mocks and mount the result on an httptest server:
//
//	router := api.NewRouter(api.RouterConfig{
//	    Engine:          mockEngine,
//	    Streamer:        mockStreamer,
//	    RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the city engine (required)
	Engine EngineInterface

	// Streamer is the render pipeline (required)
	Streamer StreamerInterface

	// Commands is the intake queue; its stats surface on /api/stats.
	// Optional: the REST mutations call the engine directly.
	Commands *commands.Queue

	// Thumbs is the optional overview PNG cache
	Thumbs *thumb.Cache

	// AdminToken guards mutating endpoints. Empty leaves them open
	// (local development).
	AdminToken string

	// RateLimiter, when set, is used as-is. Otherwise one is built
	// from RateLimitConfig, falling back to DefaultRateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig sizes the limiter built when RateLimiter is nil.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins overrides the local-development origin allowlist.
	CORSOrigins []string

	// StaticFilesDir is the directory to serve the browser client from.
	// If empty, defaults to "./webclient".
	StaticFilesDir string

	// DisableLogging drops the request logger, which otherwise drowns
	// benchmark output.
	DisableLogging bool
}

// routerHandlers bundles the dependencies the request handlers close over.
type routerHandlers struct {
	engine   EngineInterface
	streamer StreamerInterface
	queue    *commands.Queue
	thumbs   *thumb.Cache
}

// NewRouter builds the HTTP router with all middleware and routes
// attached. It opens no listeners; the only goroutine it can start is
// the sweeper of a rate limiter built here when cfg supplies none.
// Tests hand the result straight to an httptest server.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware order: logging, recovery, metrics, rate limiting, CORS.
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(httpMetrics)

	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{
		engine:   cfg.Engine,
		streamer: cfg.Streamer,
		queue:    cfg.Commands,
		thumbs:   cfg.Thumbs,
	}

	guard := NewTokenGuard(cfg.AdminToken)

	r.Route("/api", func(r chi.Router) {
		// City state
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/catalog", h.handleGetCatalog)
		r.Get("/metrics", h.handleGetMetrics)
		r.Get("/synergy", h.handleGetSynergy)
		r.Get("/events", h.handleGetEvents)
		r.Get("/preview", h.handlePreview)

		// Imagery
		r.Get("/thumbnail.png", h.handleThumbnail)
		r.Get("/frame.png", h.handleFramePNG)

		// Stream status is public, control is guarded below
		r.Get("/stream/status", h.handleStreamStatus)

		// Mutations (admin token guarded)
		r.Group(func(r chi.Router) {
			r.Use(guard.Middleware)
			r.Post("/buildings", h.handlePlaceBuilding)
			r.Delete("/buildings/{id}", h.handleRemoveBuilding)
			r.Post("/buildings/{id}/collect", h.handleCollectYield)
			r.Post("/buildings/collect-all", h.handleCollectAll)
			r.Post("/stream/start", h.handleStreamStart)
			r.Post("/stream/stop", h.handleStreamStop)
		})
	})

	// Health check for load balancers and the recorder sidecar
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Serve the browser client
	staticDir := cfg.StaticFilesDir
	if staticDir == "" {
		staticDir = "./webclient"
	}
	r.Handle("/app/*", http.StripPrefix("/app/", http.FileServer(http.Dir(staticDir))))
	r.Get("/app", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/app/", http.StatusMovedPermanently)
	})

	// Root lands on the client
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/app/", http.StatusFound)
	})

	return r
}

// httpMetrics feeds the request histograms. It labels by the matched
// chi route pattern, not the raw path, so the label set stays bounded.
func httpMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		// The pattern is only known once routing has run.
		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, pattern, status, time.Since(start))
	})
}
