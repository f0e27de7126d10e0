package ipc

import (
	"bytes"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestPublisherSubscriberFrameFlow(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "ipc.sock")

	pub := NewPublisher(socketPath)
	pub.SetConfig(64, 48, 30)
	if err := pub.Start(); err != nil {
		t.Fatalf("publisher start: %v", err)
	}
	defer pub.Stop()

	sub := NewSubscriber(socketPath)
	var frames atomic.Int64
	sub.OnFrame(func(*FrameMessage) { frames.Add(1) })
	if err := sub.Start(); err != nil {
		t.Fatalf("subscriber start: %v", err)
	}
	defer sub.Stop()

	cfg := sub.WaitForConfig(3 * time.Second)
	if cfg == nil {
		t.Fatal("no config before deadline")
	}
	if cfg.Width != 64 || cfg.Height != 48 || cfg.FPS != 30 {
		t.Fatalf("config = %+v, want 64x48 @ 30", cfg)
	}

	waitFor(t, 3*time.Second, "publisher to register the client", func() bool {
		clients, _, _ := pub.GetStats()
		return clients == 1
	})

	pixels := make([]byte, 64*48*4)
	for i := range pixels {
		pixels[i] = byte(i % 253)
	}

	// Keep publishing until one lands; the first write can race the
	// client registration
	waitFor(t, 3*time.Second, "a frame at the subscriber", func() bool {
		pub.WriteFrame(pixels, 7)
		return frames.Load() > 0
	})

	got := sub.GetLatestFrame()
	if got == nil {
		t.Fatal("GetLatestFrame returned nil after receive")
	}
	if got.Width != 64 || got.Height != 48 {
		t.Errorf("frame geometry = %dx%d, want 64x48", got.Width, got.Height)
	}
	if got.Sequence != 7 {
		t.Errorf("frame sequence = %d, want 7", got.Sequence)
	}
	if !bytes.Equal(got.Pixels, pixels) {
		t.Error("frame pixels do not match what was published")
	}

	if _, sent, _ := pub.GetStats(); sent == 0 {
		t.Error("publisher reports no frames sent")
	}
	if received, _, _ := sub.GetStats(); received == 0 {
		t.Error("subscriber reports no frames received")
	}
}

func TestSubscriberRetriesUntilPublisherAppears(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "late.sock")

	sub := NewSubscriber(socketPath)
	if err := sub.Start(); err != nil {
		t.Fatalf("subscriber start: %v", err)
	}
	defer sub.Stop()

	time.Sleep(50 * time.Millisecond)
	if sub.IsConnected() {
		t.Fatal("subscriber should not be connected before the publisher exists")
	}

	pub := NewPublisher(socketPath)
	pub.SetConfig(32, 32, 15)
	if err := pub.Start(); err != nil {
		t.Fatalf("publisher start: %v", err)
	}
	defer pub.Stop()

	waitFor(t, 5*time.Second, "subscriber to connect", sub.IsConnected)
}

func TestSubscriberSurvivesPublisherRestart(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "restart.sock")

	pub := NewPublisher(socketPath)
	pub.SetConfig(16, 16, 10)
	if err := pub.Start(); err != nil {
		t.Fatalf("publisher start: %v", err)
	}

	sub := NewSubscriber(socketPath)
	var disconnects atomic.Int64
	sub.OnDisconnect(func() { disconnects.Add(1) })
	if err := sub.Start(); err != nil {
		t.Fatalf("subscriber start: %v", err)
	}
	defer sub.Stop()

	waitFor(t, 3*time.Second, "initial connection", sub.IsConnected)

	pub.Stop()
	waitFor(t, 3*time.Second, "disconnect callback", func() bool {
		return disconnects.Load() > 0
	})

	pub2 := NewPublisher(socketPath)
	pub2.SetConfig(16, 16, 10)
	if err := pub2.Start(); err != nil {
		t.Fatalf("second publisher start: %v", err)
	}
	defer pub2.Stop()

	waitFor(t, 5*time.Second, "reconnection", sub.IsConnected)

	if _, reconnects, _ := sub.GetStats(); reconnects == 0 {
		t.Error("reconnect counter should have advanced")
	}
}

func TestPublisherStopRemovesSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "gone.sock")

	pub := NewPublisher(socketPath)
	if err := pub.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := os.Stat(socketPath); err != nil {
		t.Fatalf("socket file missing while running: %v", err)
	}

	pub.Stop()
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("socket file should be removed on stop")
	}
}
