package render

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultNativeTick is the fine-grained cadence the scheduler
	// checks its frame threshold at. It only bounds scheduling jitter;
	// the callback still fires at the configured frame rate.
	DefaultNativeTick = 4 * time.Millisecond

	// maxFrameDelta caps the delta passed to the callback so a stalled
	// process does not produce a huge simulation jump on resume.
	maxFrameDelta = 0.1
)

// FrameCallback receives the tick timestamp in milliseconds and the
// elapsed delta in seconds (capped at maxFrameDelta).
type FrameCallback func(timestamp float64, delta float64)

// FrameScheduler throttles a render callback to a target frame rate.
// A fine native ticker re-checks the threshold every few milliseconds,
// so lowering the target rate never stalls the loop and raising it
// takes effect on the next tick.
type FrameScheduler struct {
	mu              sync.Mutex
	targetFrameTime float64 // ms between frames
	lastFrameTime   float64 // ms timestamp of the last fired frame
	callback        FrameCallback
	epoch           time.Time

	nativeTick time.Duration
	running    int32
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

// NewFrameScheduler creates a stopped scheduler targeting the given
// frame rate. Non-positive rates fall back to 60.
func NewFrameScheduler(targetFPS float64) *FrameScheduler {
	if targetFPS <= 0 {
		targetFPS = 60
	}
	return &FrameScheduler{
		targetFrameTime: 1000 / targetFPS,
		nativeTick:      DefaultNativeTick,
	}
}

// Start begins driving the callback. Calling Start while running is a
// no-op.
func (s *FrameScheduler) Start(cb FrameCallback) {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return
	}

	s.mu.Lock()
	s.callback = cb
	s.lastFrameTime = 0
	s.epoch = time.Now()
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()
}

// Stop halts the loop and waits for the tick goroutine to exit.
// Calling Stop while stopped is a no-op.
func (s *FrameScheduler) Stop() {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return
	}
	close(s.stopChan)
	s.wg.Wait()
}

// IsRunning reports whether the loop is active.
func (s *FrameScheduler) IsRunning() bool {
	return atomic.LoadInt32(&s.running) == 1
}

// SetTargetFPS retargets the frame rate without restarting the loop.
// Non-positive values are ignored.
func (s *FrameScheduler) SetTargetFPS(fps float64) {
	if fps <= 0 {
		return
	}
	s.mu.Lock()
	s.targetFrameTime = 1000 / fps
	s.mu.Unlock()
}

// TargetFrameTime returns the current frame interval in milliseconds.
func (s *FrameScheduler) TargetFrameTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetFrameTime
}

func (s *FrameScheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.nativeTick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.step(s.now())
		}
	}
}

// now returns milliseconds since Start on the monotonic clock.
func (s *FrameScheduler) now() float64 {
	return float64(time.Since(s.epoch)) / float64(time.Millisecond)
}

// step runs one native tick at the given millisecond timestamp. The
// callback fires only when a full frame interval has elapsed;
// lastFrameTime then advances in whole frame steps rather than
// snapping to the timestamp, so long-run pacing does not drift.
func (s *FrameScheduler) step(timestamp float64) {
	s.mu.Lock()
	elapsed := timestamp - s.lastFrameTime
	if elapsed < s.targetFrameTime {
		s.mu.Unlock()
		return
	}
	s.lastFrameTime = timestamp - math.Mod(elapsed, s.targetFrameTime)
	cb := s.callback
	s.mu.Unlock()

	delta := elapsed / 1000
	if delta > maxFrameDelta {
		delta = maxFrameDelta
	}
	if cb != nil {
		cb(timestamp, delta)
	}
}
