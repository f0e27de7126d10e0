package api

import (
	"crypto/hmac"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Every label value below comes from a small fixed set. Nothing
// client-controlled (building IDs, IPs, raw URLs) becomes a label.
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "city_tick_duration_seconds",
		Help:    "Time spent in one simulation tick",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
	})

	buildingCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "city_building_count",
		Help: "Current number of placed buildings",
	})

	particleCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "city_particle_count",
		Help: "Current number of live particles",
	})

	synergyConnectionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "city_synergy_connections",
		Help: "Current number of synergy connections",
	})

	// 16.7ms and 33ms buckets line up with the 60/30fps frame budgets.
	frameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "render_frame_duration_seconds",
		Help:    "Time spent composing one frame",
		Buckets: []float64{0.002, 0.005, 0.01, 0.0167, 0.033, 0.066, 0.1},
	})

	tilesRendered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "render_tiles_rendered",
		Help: "Tiles repainted in the last frame",
	})

	drawCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "render_draw_calls",
		Help: "Draw calls issued for the last frame",
	})

	commandQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "command_queue_depth",
		Help: "Commands waiting for the next tick drain",
	})

	wsCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_commands_total",
		Help: "Inbound WebSocket commands by outcome",
	}, []string{"result"}) // "queued", "rejected" or "invalid"

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // "rate_limit", "origin", "invalid", "ws_total_limit", "ws_ip_limit"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the chi route pattern

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})

	wsClientsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_clients_dropped_total",
		Help: "Viewers dropped for not keeping up with the broadcast",
	})
)

// ObservabilityConfig controls the private debug listener that serves
// pprof handlers and Prometheus scrapes.
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // loopback unless ALLOW_DEBUG_EXTERNAL=true
	BasicAuthUser string // empty disables auth
	BasicAuthPass string
}

// DefaultObservabilityConfig keeps the debug listener on loopback.
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// StartDebugServer launches the pprof/metrics listener in the
// background. Non-loopback addresses are pinned back to loopback unless
// ALLOW_DEBUG_EXTERNAL=true is set.
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	addr := debugListenAddr(cfg.ListenAddr)

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	if cfg.BasicAuthUser != "" {
		handler = requireBasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}

	go func() {
		log.Printf("📊 Debug server on %s (pprof at /debug/pprof/, metrics at /metrics)", addr)
		if err := http.ListenAndServe(addr, handler); err != nil {
			log.Printf("⚠️ Debug server: %v", err)
		}
	}()

	return nil
}

// debugListenAddr forces addr onto loopback unless external binding was
// explicitly requested through the environment.
func debugListenAddr(addr string) string {
	if addr == "127.0.0.1:6060" || addr == "localhost:6060" {
		return addr
	}
	if os.Getenv("ALLOW_DEBUG_EXTERNAL") == "true" {
		return addr
	}
	log.Printf("⚠️ Debug server pinned to 127.0.0.1:6060 (requested %s; set ALLOW_DEBUG_EXTERNAL=true to override)", addr)
	return "127.0.0.1:6060"
}

// requireBasicAuth rejects requests whose credentials do not match
// user/pass. Comparisons are constant time, as in the admin token guard.
func requireBasicAuth(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !hmac.Equal([]byte(u), []byte(user)) || !hmac.Equal([]byte(p), []byte(pass)) {
			w.Header().Set("WWW-Authenticate", `Basic realm="cryptopolis-debug"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecordTick records simulation tick timing
func RecordTick(duration time.Duration) {
	tickDuration.Observe(duration.Seconds())
}

// RecordFrame records frame composition timing
func RecordFrame(duration time.Duration) {
	frameDuration.Observe(duration.Seconds())
}

// UpdateRenderStats updates the per-frame render gauges
func UpdateRenderStats(tiles, calls int) {
	tilesRendered.Set(float64(tiles))
	drawCalls.Set(float64(calls))
}

// UpdateCityStats updates the simulation gauges
func UpdateCityStats(buildings, particles, connections int) {
	buildingCount.Set(float64(buildings))
	particleCount.Set(float64(particles))
	synergyConnectionCount.Set(float64(connections))
}

// UpdateCommandQueueDepth updates the pending-commands gauge
func UpdateCommandQueueDepth(pending int) {
	commandQueueDepth.Set(float64(pending))
}

// RecordWSCommand counts an inbound command by outcome.
// result must be one of: "queued", "rejected", "invalid"
func RecordWSCommand(result string) {
	wsCommandsTotal.WithLabelValues(result).Inc()
}

// RecordConnectionRejected counts a refused connection attempt.
// reason must be one of: "rate_limit", "origin", "invalid", "ws_total_limit", "ws_ip_limit"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest feeds the HTTP histograms. endpoint must be a route
// pattern such as "/api/buildings/{id}", never a raw request path.
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
}

// UpdateWSConnections sets the live-viewer gauge
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages counts one payload broadcast to the viewer set
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}

// RecordWSClientDropped counts a slow viewer disconnect
func RecordWSClientDropped() {
	wsClientsDropped.Inc()
}
