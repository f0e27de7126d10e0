package render

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// maxConsecutiveWriteErrors is how many back-to-back sink failures the
// writer tolerates before declaring the sink lost.
const maxConsecutiveWriteErrors = 10

// writeWarnThrottle spaces out backpressure log lines.
const writeWarnThrottle = 5 * time.Second

// FrameSink consumes sequenced raw RGBA frames. The IPC publisher is
// the production sink; tests substitute in-memory ones.
type FrameSink interface {
	WriteFrame(pix []byte, seq uint64) error
	Close() error
}

// WriterStats is a point-in-time view of the async writer.
type WriterStats struct {
	FramesSent  uint64  `json:"framesSent"`
	WriteErrors uint64  `json:"writeErrors"`
	AvgWriteMs  float64 `json:"avgWriteMs"`
	RingDepth   int     `json:"ringDepth"`
}

// AsyncFrameWriter drains the frame ring into a sink on its own
// goroutine, paced at the frame interval, so a slow consumer stalls
// the ring instead of the render loop. A run of consecutive write
// failures fires the sink-lost callback once and stops the loop.
type AsyncFrameWriter struct {
	ring     *FrameRing
	sink     FrameSink
	interval time.Duration

	onSinkLost func(error)

	stopChan chan struct{}
	wg       sync.WaitGroup
	running  atomic.Bool

	mu          sync.Mutex
	framesSent  uint64
	writeErrors uint64
	avgWriteMs  float64
	lastWarn    time.Time
}

// NewAsyncFrameWriter pairs a ring with a sink at the given frame
// rate. onSinkLost may be nil.
func NewAsyncFrameWriter(ring *FrameRing, sink FrameSink, fps int, onSinkLost func(error)) *AsyncFrameWriter {
	if fps <= 0 {
		fps = 30
	}
	return &AsyncFrameWriter{
		ring:       ring,
		sink:       sink,
		interval:   time.Second / time.Duration(fps),
		onSinkLost: onSinkLost,
	}
}

// Start launches the drain loop. Idempotent.
func (w *AsyncFrameWriter) Start() {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	w.stopChan = make(chan struct{})
	w.wg.Add(1)
	go w.loop()
}

// Stop halts the loop and closes the sink.
func (w *AsyncFrameWriter) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	close(w.stopChan)
	w.wg.Wait()
	if err := w.sink.Close(); err != nil {
		log.Printf("⚠️ Frame sink close: %v", err)
	}
}

// IsRunning reports whether the drain loop is active.
func (w *AsyncFrameWriter) IsRunning() bool {
	return w.running.Load()
}

// GetStats returns a snapshot of writer counters.
func (w *AsyncFrameWriter) GetStats() WriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WriterStats{
		FramesSent:  w.framesSent,
		WriteErrors: w.writeErrors,
		AvgWriteMs:  w.avgWriteMs,
		RingDepth:   w.ring.Available(),
	}
}

func (w *AsyncFrameWriter) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	consecutiveErrors := 0

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			frame, seq := w.ring.TryRead()
			if frame == nil {
				continue
			}

			start := time.Now()
			err := w.sink.WriteFrame(frame, seq)
			writeMs := float64(time.Since(start)) / float64(time.Millisecond)

			if err != nil {
				consecutiveErrors++
				w.recordError()
				if consecutiveErrors >= maxConsecutiveWriteErrors {
					log.Printf("🛑 Frame sink lost after %d consecutive errors: %v", consecutiveErrors, err)
					w.running.Store(false)
					if w.onSinkLost != nil {
						w.onSinkLost(err)
					}
					return
				}
				continue
			}

			consecutiveErrors = 0
			w.recordWrite(writeMs)
		}
	}
}

func (w *AsyncFrameWriter) recordWrite(writeMs float64) {
	w.mu.Lock()
	w.framesSent++
	// EMA keeps the average responsive without per-frame history.
	if w.avgWriteMs == 0 {
		w.avgWriteMs = writeMs
	} else {
		w.avgWriteMs = w.avgWriteMs*0.9 + writeMs*0.1
	}

	intervalMs := float64(w.interval) / float64(time.Millisecond)
	if writeMs > intervalMs*2 && time.Since(w.lastWarn) > writeWarnThrottle {
		w.lastWarn = time.Now()
		log.Printf("⚠️ Slow frame sink: write took %.1fms (frame interval %.1fms, ring depth %d)",
			writeMs, intervalMs, w.ring.Available())
	}
	w.mu.Unlock()
}

func (w *AsyncFrameWriter) recordError() {
	w.mu.Lock()
	w.writeErrors++
	w.mu.Unlock()
}
