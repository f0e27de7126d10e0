package commands

import (
	"sync"
	"time"
)

// RateLimiter throttles command intake per client, combining a fixed
// window cap with a short cooldown between consecutive commands.
type RateLimiter struct {
	mu           sync.RWMutex
	clientCounts map[string]*clientLimit
	config       RateLimitConfig
}

type clientLimit struct {
	count     int
	windowEnd time.Time
	lastCmd   time.Time
}

// RateLimitConfig tunes the per-client throttle.
type RateLimitConfig struct {
	MaxPerWindow     int           // Commands allowed inside one window
	WindowDuration   time.Duration // Window length
	CooldownDuration time.Duration // Floor between two commands
}

// DefaultRateLimitConfig for interactive clients. Looser than a chat
// bot would get: pan and zoom arrive in short bursts while dragging.
var DefaultRateLimitConfig = RateLimitConfig{
	MaxPerWindow:     25,                    // 25 commands
	WindowDuration:   5 * time.Second,       // per 5 seconds
	CooldownDuration: 50 * time.Millisecond, // 50ms between commands
}

// NewRateLimiter builds the limiter and launches its sweeper.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		clientCounts: make(map[string]*clientLimit),
		config:       cfg,
	}
	go rl.cleanup()
	return rl
}

// Allow records one attempt by clientID and reports whether it fits
// both the cooldown and the window cap.
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	limit, exists := rl.clientCounts[clientID]
	if !exists {
		rl.clientCounts[clientID] = &clientLimit{
			count:     1,
			windowEnd: now.Add(rl.config.WindowDuration),
			lastCmd:   now,
		}
		return true
	}

	if now.Sub(limit.lastCmd) < rl.config.CooldownDuration {
		return false
	}

	// Window expired, start a fresh one
	if now.After(limit.windowEnd) {
		limit.count = 1
		limit.windowEnd = now.Add(rl.config.WindowDuration)
		limit.lastCmd = now
		return true
	}

	if limit.count >= rl.config.MaxPerWindow {
		return false
	}

	limit.count++
	limit.lastCmd = now
	return true
}

// cleanup drops clients idle past five minutes so the map tracks only
// active connections.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-5 * time.Minute)

		for key, limit := range rl.clientCounts {
			if limit.lastCmd.Before(cutoff) {
				delete(rl.clientCounts, key)
			}
		}
		rl.mu.Unlock()
	}
}
