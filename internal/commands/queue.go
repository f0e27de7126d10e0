package commands

import (
	"errors"
	"log"
	"sync/atomic"
	"time"
)

// Sentinel errors so the transport can answer 429 vs 503
var (
	ErrRateLimited = errors.New("rate limited")
	ErrQueueFull   = errors.New("command queue full")
)

// MaxPerDrain caps how many commands a single tick will apply
const MaxPerDrain = 64

// Queue buffers validated commands between the transport goroutines and
// the simulation tick. Submissions never block a handler; the tick
// drains before dirty marking so every mutation lands in the same frame
// it repaints.
type Queue struct {
	commands chan Command
	limiter  *RateLimiter

	// Counters surfaced by Stats
	enqueued    atomic.Uint64
	applied     atomic.Uint64
	dropped     atomic.Uint64
	rejected    atomic.Uint64
	avgWaitTime atomic.Int64 // nanoseconds, exponential moving average
}

// QueueConfig sizes the queue and its per-client limits.
type QueueConfig struct {
	BufferSize int             // Number of commands to buffer (default: 256)
	RateLimit  RateLimitConfig // Per-client submission limits
}

// DefaultQueueConfig returns the production sizing.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		BufferSize: 256, // 4 ticks of headroom at the per-drain cap
		RateLimit:  DefaultRateLimitConfig,
	}
}

// NewQueue creates a command queue with per-client rate limiting
func NewQueue(config QueueConfig) *Queue {
	if config.BufferSize <= 0 {
		config.BufferSize = 256
	}
	if config.RateLimit.MaxPerWindow <= 0 {
		config.RateLimit = DefaultRateLimitConfig
	}

	return &Queue{
		commands: make(chan Command, config.BufferSize),
		limiter:  NewRateLimiter(config.RateLimit),
	}
}

// Submit enqueues a command (non-blocking)
// Returns ErrRateLimited or ErrQueueFull when the command was refused
func (q *Queue) Submit(cmd Command) error {
	if !q.limiter.Allow(cmd.ClientID) {
		q.rejected.Add(1)
		return ErrRateLimited
	}

	if cmd.ReceivedAt.IsZero() {
		cmd.ReceivedAt = time.Now()
	}

	select {
	case q.commands <- cmd:
		q.enqueued.Add(1)
		return nil
	default:
		// A full buffer sheds load here; the transport must never
		// block waiting on the tick.
		q.dropped.Add(1)
		if q.dropped.Load()%100 == 1 {
			log.Printf("⚠️ Command queue full, dropped %s from %s (total dropped: %d)",
				cmd.Action, cmd.ClientID, q.dropped.Load())
		}
		return ErrQueueFull
	}
}

// Drain applies pending commands through fn, up to MaxPerDrain per
// call, and returns how many ran. Called on the tick goroutine; fn runs
// there too, so it may touch the engine without extra locking.
func (q *Queue) Drain(fn func(Command)) int {
	n := 0
	for n < MaxPerDrain {
		select {
		case cmd := <-q.commands:
			wait := time.Since(cmd.ReceivedAt)
			q.observeWait(wait)

			// A command aging past 100ms means ticks are falling behind
			// the intake rate.
			if wait > 100*time.Millisecond {
				log.Printf("⚠️ Command from %s waited %.1fms in queue",
					cmd.ClientID, float64(wait.Microseconds())/1000)
			}

			fn(cmd)
			q.applied.Add(1)
			n++
		default:
			return n
		}
	}
	return n
}

// Close logs final queue statistics
func (q *Queue) Close() {
	log.Printf("📊 Command queue closed - enqueued: %d, applied: %d, dropped: %d, rate limited: %d",
		q.enqueued.Load(), q.applied.Load(), q.dropped.Load(), q.rejected.Load())
}

// observeWait folds one sample into the moving average, weighting the
// new sample at one tenth.
func (q *Queue) observeWait(wait time.Duration) {
	avg := q.avgWaitTime.Load()
	q.avgWaitTime.Store((avg*9 + wait.Nanoseconds()) / 10)
}

// Stats snapshots the queue counters for the stats endpoint.
func (q *Queue) Stats() QueueStats {
	pending := len(q.commands)
	size := cap(q.commands)
	return QueueStats{
		Enqueued:       q.enqueued.Load(),
		Applied:        q.applied.Load(),
		Dropped:        q.dropped.Load(),
		RateLimited:    q.rejected.Load(),
		Pending:        uint64(pending),
		BufferSize:     uint64(size),
		AvgWaitTimeMs:  float64(q.avgWaitTime.Load()) / 1e6,
		BufferUsagePct: float64(pending) / float64(size) * 100,
	}
}

// QueueStats is the JSON shape of the queue counters.
type QueueStats struct {
	Enqueued       uint64  `json:"enqueued"`
	Applied        uint64  `json:"applied"`
	Dropped        uint64  `json:"dropped"`
	RateLimited    uint64  `json:"rate_limited"`
	Pending        uint64  `json:"pending"`
	BufferSize     uint64  `json:"buffer_size"`
	AvgWaitTimeMs  float64 `json:"avg_wait_time_ms"`
	BufferUsagePct float64 `json:"buffer_usage_pct"`
}
