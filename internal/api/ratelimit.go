package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-IP request limiter
type RateLimitConfig struct {
	RequestsPerSecond float64       // Sustained rate per client IP
	Burst             int           // Token bucket depth
	CleanupInterval   time.Duration // Sweep cadence for idle buckets
}

// DefaultRateLimitConfig returns production-safe defaults.
// The burst is sized for a browser client that polls state and
// thumbnails together on page load.
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 10,
	Burst:             20,
	CleanupInterval:   5 * time.Minute,
}

// ipBucket pairs a token bucket with the last time its IP was seen,
// so the sweeper can drop buckets for clients that went away.
type ipBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands every client IP its own token bucket. Buckets
// idle for two sweep intervals are dropped, so a scanner hitting the
// server from thousands of addresses cannot grow the map forever.
type IPRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*ipBucket
	cfg     RateLimitConfig

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter creates the limiter and starts its sweeper.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	rl := &IPRateLimiter{
		buckets:  make(map[string]*ipBucket),
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Stop halts the sweeper goroutine.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

// Allow reports whether a request from ip fits its bucket.
func (rl *IPRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &ipBucket{lim: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = time.Now()
	rl.mu.Unlock()

	return b.lim.Allow()
}

func (rl *IPRateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.sweep(time.Now().Add(-2 * rl.cfg.CleanupInterval))
		}
	}
}

// sweep drops buckets not seen since the cutoff.
func (rl *IPRateLimiter) sweep(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
}

// Middleware answers 429 with a Retry-After hint once an IP empties
// its bucket.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(GetClientIP(r)) {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClientIP extracts the client IP from an HTTP request.
// X-Forwarded-For wins when present; it is only trustworthy behind a
// proxy that strips the inbound header.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First hop is the original client
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// WebSocketRateLimiter caps concurrent socket connections per IP.
type WebSocketRateLimiter struct {
	mu       sync.Mutex
	open     map[string]int
	maxPerIP int
}

// NewWebSocketRateLimiter creates a connection cap of maxPerIP.
func NewWebSocketRateLimiter(maxPerIP int) *WebSocketRateLimiter {
	return &WebSocketRateLimiter{
		open:     make(map[string]int),
		maxPerIP: maxPerIP,
	}
}

// Allow reserves a connection slot for ip; the caller must Release it
// when the connection ends or the upgrade fails.
func (wrl *WebSocketRateLimiter) Allow(ip string) bool {
	wrl.mu.Lock()
	defer wrl.mu.Unlock()

	if wrl.open[ip] >= wrl.maxPerIP {
		return false
	}
	wrl.open[ip]++
	return true
}

// Release returns a slot taken by Allow. Entries at zero are removed
// so the map only holds IPs with live connections.
func (wrl *WebSocketRateLimiter) Release(ip string) {
	wrl.mu.Lock()
	defer wrl.mu.Unlock()

	if n, ok := wrl.open[ip]; ok {
		if n <= 1 {
			delete(wrl.open, ip)
		} else {
			wrl.open[ip] = n - 1
		}
	}
}

// AllowedOrigins defines the allowed origins for CORS and WebSocket.
// The viewer client is served by this same process, so everything here
// is local by default.
var AllowedOrigins = []string{
	"http://localhost",
	"http://localhost:3000",
	"http://localhost:8080",
	"http://127.0.0.1",
	"http://127.0.0.1:8080",
}

// IsAllowedOrigin checks if an origin may open a socket or cross-site
// request. Loopback origins pass with any port; anything else must be
// listed exactly.
func IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}

	if strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "http://127.0.0.1") {
		return true
	}

	for _, allowed := range AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
