package game

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	EventBufferSize     = 1024                   // Circular buffer size, also the query window
	MaxEventsPerSec     = 512                    // Global rate limit
	MaxEventsPerSource  = 32                     // Per-building rate limit per second
	BatchFlushSize      = 64                     // Events per batch write
	BatchFlushInterval  = 250 * time.Millisecond // How often to flush
	SourceLimiterExpiry = 5 * time.Minute        // Cleanup interval for source limiters
)

// EventLog provides bounded, rate-limited event logging with an
// in-memory window for since-sequence queries and async file output
type EventLog struct {
	// Circular buffer doubles as the retained query window: the last
	// EventBufferSize events stay readable after the writer flushed them
	mu     sync.RWMutex
	buffer [EventBufferSize]Event
	head   uint64 // sequence of the newest event, 1-based

	flushCursor uint64 // last sequence written to disk, flush goroutine only

	// Rate limiting so a runaway accrual loop cannot flood the log
	globalLimiter  *rate.Limiter
	sourceLimiters sync.Map // map[string]*sourceLimiterEntry

	// Background loops
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	// File sink
	filePath string
	file     *os.File
	fileMu   sync.Mutex

	// Intake counters
	emitted atomic.Uint64
	dropped atomic.Uint64
}

// sourceLimiterEntry tracks per-building rate limiting
type sourceLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// NewEventLog builds a stopped log. Events flow only between Start and
// Stop; Emit on a stopped log reports false.
func NewEventLog() *EventLog {
	return &EventLog{
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/8),
		stopChan:      make(chan struct{}),
	}
}

// Start opens the sink and launches the flush and sweep loops. An
// empty path keeps the log memory-only; the query window still works.
func (l *EventLog) Start(filePath string) error {
	if l.running.Load() {
		return nil
	}

	l.filePath = filePath

	if filePath != "" {
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		l.file = f
	}

	l.running.Store(true)
	l.wg.Add(2)
	go l.flushLoop()
	go l.sweepLoop()

	return nil
}

// Stop flushes whatever remains and closes the sink. Idempotent.
func (l *EventLog) Stop() {
	l.stopOnce.Do(func() {
		l.running.Store(false)
		close(l.stopChan)
		l.wg.Wait()

		l.fileMu.Lock()
		if l.file != nil {
			l.file.Close()
		}
		l.fileMu.Unlock()
	})
}

// Emit stamps the event's sequence and appends it to the window. It
// reports false when the log is stopped or a rate limit sheds the
// event.
func (l *EventLog) Emit(ev Event) bool {
	if !l.running.Load() {
		return false
	}

	if !l.globalLimiter.Allow() {
		l.dropped.Add(1)
		return false
	}

	// Per-building rate limit (one noisy yield source cannot drown the rest)
	if ev.SourceID != "" {
		if !l.sourceLimiter(ev.SourceID).Allow() {
			l.dropped.Add(1)
			return false
		}
	}

	l.mu.Lock()
	l.head++
	ev.Sequence = l.head
	l.buffer[(l.head-1)%EventBufferSize] = ev
	l.mu.Unlock()

	l.emitted.Add(1)
	return true
}

// EmitSimple builds the Event in place and emits it.
func (l *EventLog) EmitSimple(eventType EventType, tickNum uint64, sourceID string, payload interface{}) bool {
	return l.Emit(NewEvent(eventType, tickNum, sourceID, payload))
}

// Head returns the sequence of the newest event, 0 when empty
func (l *EventLog) Head() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.head
}

// EventsSince returns events with a sequence greater than since, oldest
// first. Events evicted from the window are gone; callers polling
// faster than the window rolls over see a gapless stream. A limit of 0
// means no cap beyond the window itself.
func (l *EventLog) EventsSince(since uint64, limit int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	head := l.head
	if since >= head {
		return nil
	}
	start := since + 1
	if head > EventBufferSize && start <= head-EventBufferSize {
		start = head - EventBufferSize + 1
	}
	if limit > 0 && head-start+1 > uint64(limit) {
		start = head - uint64(limit) + 1
	}

	out := make([]Event, 0, head-start+1)
	for seq := start; seq <= head; seq++ {
		out = append(out, l.buffer[(seq-1)%EventBufferSize])
	}
	return out
}

// sourceLimiter fetches or creates the limiter for one building.
func (l *EventLog) sourceLimiter(sourceID string) *rate.Limiter {
	if entry, ok := l.sourceLimiters.Load(sourceID); ok {
		e := entry.(*sourceLimiterEntry)
		e.lastUsed = time.Now()
		return e.limiter
	}

	fresh := &sourceLimiterEntry{
		limiter:  rate.NewLimiter(MaxEventsPerSource, MaxEventsPerSource/4),
		lastUsed: time.Now(),
	}
	actual, _ := l.sourceLimiters.LoadOrStore(sourceID, fresh)
	return actual.(*sourceLimiterEntry).limiter
}

// flushLoop drains the window to disk in batches on a fixed cadence.
func (l *EventLog) flushLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)

	for {
		select {
		case <-l.stopChan:
			// Drain whatever is left, then exit.
			for {
				batch = l.unflushed(batch[:0])
				if len(batch) == 0 {
					return
				}
				l.writeBatch(batch)
			}

		case <-ticker.C:
			batch = l.unflushed(batch[:0])
			if len(batch) > 0 {
				l.writeBatch(batch)
			}
		}
	}
}

// sweepLoop evicts idle per-source limiters on the expiry interval.
func (l *EventLog) sweepLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(SourceLimiterExpiry)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.sweepSourceLimiters()
		}
	}
}

func (l *EventLog) sweepSourceLimiters() {
	cutoff := time.Now().Add(-SourceLimiterExpiry)
	l.sourceLimiters.Range(func(key, value interface{}) bool {
		if value.(*sourceLimiterEntry).lastUsed.Before(cutoff) {
			l.sourceLimiters.Delete(key)
		}
		return true
	})
}

// unflushed collects events past the flush cursor, at most one batch
// worth, and advances the cursor.
func (l *EventLog) unflushed(batch []Event) []Event {
	l.mu.RLock()
	head := l.head
	start := l.flushCursor + 1
	if head > EventBufferSize && start <= head-EventBufferSize {
		// Window rolled past the cursor, those events are lost to disk
		start = head - EventBufferSize + 1
	}
	for seq := start; seq <= head && len(batch) < BatchFlushSize; seq++ {
		batch = append(batch, l.buffer[(seq-1)%EventBufferSize])
	}
	l.mu.RUnlock()

	if len(batch) > 0 {
		l.flushCursor = batch[len(batch)-1].Sequence
	}
	return batch
}

// writeBatch appends events to the sink, one JSON document per line.
func (l *EventLog) writeBatch(batch []Event) {
	l.fileMu.Lock()
	defer l.fileMu.Unlock()

	if l.file == nil {
		return
	}

	for _, ev := range batch {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		l.file.Write(data)
		l.file.Write([]byte("\n"))
	}
}

// GetStats snapshots the log counters for the stats endpoint.
func (l *EventLog) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"total":   l.emitted.Load(),
		"dropped": l.dropped.Load(),
		"head":    l.Head(),
		"running": l.running.Load(),
	}
}
