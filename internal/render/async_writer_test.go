package render

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// memorySink collects written frames for inspection.
type memorySink struct {
	mu     sync.Mutex
	frames [][]byte
	seqs   []uint64
	closed bool
}

func (s *memorySink) WriteFrame(pix []byte, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(pix))
	copy(cp, pix)
	s.frames = append(s.frames, cp)
	s.seqs = append(s.seqs, seq)
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// failingSink rejects every write.
type failingSink struct{}

func (s *failingSink) WriteFrame(pix []byte, seq uint64) error {
	return errors.New("pipe broken")
}

func (s *failingSink) Close() error { return nil }

func TestWriterDrainsRingInOrder(t *testing.T) {
	ring := NewFrameRing(4)
	for i := 1; i <= 3; i++ {
		if !ring.TryWrite(makeFrame(4, byte(i)), uint64(i*10)) {
			t.Fatalf("seed write %d failed", i)
		}
	}

	sink := &memorySink{}
	w := NewAsyncFrameWriter(ring, sink, 250, nil)
	w.Start()

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("sink received %d frames, want 3", sink.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for i := 0; i < 3; i++ {
		if sink.seqs[i] != uint64((i+1)*10) {
			t.Errorf("seq[%d] = %d, want %d", i, sink.seqs[i], (i+1)*10)
		}
		if sink.frames[i][0] != byte(i+1) {
			t.Errorf("frame[%d] payload = %d, want %d", i, sink.frames[i][0], i+1)
		}
	}
	if !sink.closed {
		t.Error("Stop should close the sink")
	}

	stats := w.GetStats()
	if stats.FramesSent != 3 {
		t.Errorf("FramesSent = %d, want 3", stats.FramesSent)
	}
	if stats.WriteErrors != 0 {
		t.Errorf("WriteErrors = %d, want 0", stats.WriteErrors)
	}
}

func TestWriterStopsAfterSinkLoss(t *testing.T) {
	ring := NewFrameRing(4)
	for i := 0; i < FrameRingSize-1; i++ {
		ring.TryWrite(makeFrame(4, 1), uint64(i))
	}

	lost := make(chan error, 1)
	w := NewAsyncFrameWriter(ring, &failingSink{}, 500, func(err error) {
		lost <- err
	})
	w.Start()

	select {
	case err := <-lost:
		if err == nil {
			t.Error("sink-lost callback received nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sink-lost callback never fired")
	}

	if w.IsRunning() {
		t.Error("writer should stop itself after losing the sink")
	}
	if stats := w.GetStats(); stats.WriteErrors < maxConsecutiveWriteErrors {
		t.Errorf("WriteErrors = %d, want >= %d", stats.WriteErrors, maxConsecutiveWriteErrors)
	}
}

func TestWriterStartStopIdempotent(t *testing.T) {
	ring := NewFrameRing(4)
	w := NewAsyncFrameWriter(ring, &memorySink{}, 0, nil)

	w.Start()
	w.Start()
	if !w.IsRunning() {
		t.Fatal("writer should be running")
	}
	w.Stop()
	w.Stop()
	if w.IsRunning() {
		t.Error("writer should be stopped")
	}
}
