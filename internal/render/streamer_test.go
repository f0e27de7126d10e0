package render

import (
	"errors"
	"testing"
	"time"

	"cryptopolis/internal/game"
)

func pollUntil(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestNoopStreamerAdvancesSimulation checks headless mode still drives
// the engine clock while refusing pixel work.
func TestNoopStreamerAdvancesSimulation(t *testing.T) {
	engine := game.NewEngine(game.DefaultEngineConfig())
	ns := NewNoopStreamer(engine, 120)
	if err := ns.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ns.Stop()

	pollUntil(t, 2*time.Second, "simulation ticks", func() bool {
		return engine.GetTickCount() > 0
	})

	if ns.IsStreaming() {
		t.Error("headless streamer should report not streaming")
	}
	if _, err := ns.EncodeFrontPNG(); !errors.Is(err, ErrHeadless) {
		t.Errorf("EncodeFrontPNG error = %v, want ErrHeadless", err)
	}
	if _, err := ns.OverviewPNG(100, 80); !errors.Is(err, ErrHeadless) {
		t.Errorf("OverviewPNG error = %v, want ErrHeadless", err)
	}
	if mode := ns.GetStats()["mode"]; mode != "headless" {
		t.Errorf("stats mode = %v, want headless", mode)
	}
}

func TestStreamerRendersAndEncodes(t *testing.T) {
	engine := game.NewEngine(game.DefaultEngineConfig())
	s, err := NewStreamer(engine, StreamerConfig{Width: 320, Height: 240, FPS: 60})
	if err != nil {
		t.Fatalf("NewStreamer: %v", err)
	}
	defer s.Close()

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.IsStreaming() {
		t.Fatal("streamer should report streaming after Start")
	}

	pollUntil(t, 3*time.Second, "rendered frames", func() bool {
		return s.frameSeq.Load() >= 2
	})

	png, err := s.EncodeFrontPNG()
	if err != nil {
		t.Fatalf("EncodeFrontPNG: %v", err)
	}
	if len(png) < 8 || png[0] != 0x89 || string(png[1:4]) != "PNG" {
		t.Errorf("encoded frame is not a PNG, got prefix %v", png[:min(8, len(png))])
	}

	stats := s.GetStats()
	if stats["mode"] != "pipeline" {
		t.Errorf("stats mode = %v, want pipeline", stats["mode"])
	}
	if stats["running"] != true {
		t.Errorf("stats running = %v, want true", stats["running"])
	}

	s.Stop()
	if s.IsStreaming() {
		t.Error("streamer should stop")
	}
}

func TestStreamerDeliversFramesToSink(t *testing.T) {
	engine := game.NewEngine(game.DefaultEngineConfig())
	s, err := NewStreamer(engine, StreamerConfig{Width: 160, Height: 120, FPS: 60})
	if err != nil {
		t.Fatalf("NewStreamer: %v", err)
	}
	defer s.Close()

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sink := &memorySink{}
	s.AttachSink(sink)

	pollUntil(t, 3*time.Second, "frames at the sink", func() bool {
		return sink.count() > 0
	})

	sink.mu.Lock()
	frameLen := len(sink.frames[0])
	firstSeq := sink.seqs[0]
	sink.mu.Unlock()
	if frameLen != 160*120*4 {
		t.Errorf("sink frame is %d bytes, want %d", frameLen, 160*120*4)
	}
	if firstSeq == 0 {
		t.Error("sink frame carries no sequence")
	}

	s.DetachSink()
	sink.mu.Lock()
	closed := sink.closed
	sink.mu.Unlock()
	if !closed {
		t.Error("detaching should close the sink")
	}

	s.Stop()
}

func TestOverviewPNGWithoutStreaming(t *testing.T) {
	engine := game.NewEngine(game.DefaultEngineConfig())
	engine.Advance(0.05)

	s, err := NewStreamer(engine, DefaultStreamerConfig())
	if err != nil {
		t.Fatalf("NewStreamer: %v", err)
	}
	defer s.Close()

	png, err := s.OverviewPNG(120, 90)
	if err != nil {
		t.Fatalf("OverviewPNG: %v", err)
	}
	if len(png) < 8 || png[0] != 0x89 || string(png[1:4]) != "PNG" {
		t.Error("overview is not a PNG")
	}
}
