// =============================================================================
// CRYPTOPOLIS - RECORDER
// =============================================================================
// This standalone process handles ONLY frame capture:
// - Receives rendered frames via IPC from the city server
// - Writes raw RGBA to stdout for an encoder to consume
//
// This separation keeps encoder stalls away from the simulation tick;
// the server just drops frames when the recorder falls behind.
//
// USAGE:
//   1. Start the city server first: go run ./cmd/server
//   2. Pipe this recorder into ffmpeg:
//      go run ./cmd/recorder | ffmpeg -f rawvideo -pix_fmt rgba \
//        -s 1280x720 -r 30 -i - -c:v libx264 -pix_fmt yuv420p city.mp4
// =============================================================================
package main

import (
	"bufio"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"cryptopolis/internal/ipc"

	"github.com/joho/godotenv"
)

func main() {
	// Optional .env, repo root then working directory
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("No .env file found, using environment variables")
		}
	}

	log.Println("================================")
	log.Println("  CRYPTOPOLIS - RECORDER")
	log.Println("  Raw RGBA to stdout")
	log.Println("================================")

	socketPath := getEnvWithDefault("IPC_SOCKET", ipc.DefaultSocketPath)
	maxFrames := getEnvInt("RECORD_MAX_FRAMES", 0) // 0 = until interrupted

	// Refuse to dump pixels into a terminal
	if fi, err := os.Stdout.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		log.Println("ERROR: stdout is a terminal")
		log.Println("Pipe the recorder into an encoder, for example:")
		log.Println("  recorder | ffmpeg -f rawvideo -pix_fmt rgba -s 1280x720 -r 30 -i - city.mp4")
		os.Exit(1)
	}

	log.Printf("IPC Socket: %s", socketPath)

	out := bufio.NewWriterSize(os.Stdout, 1<<20)
	subscriber := ipc.NewSubscriber(socketPath)

	var (
		written  atomic.Uint64
		gaps     atomic.Uint64
		lastSeq  atomic.Uint64
		geomW    atomic.Int64
		geomH    atomic.Int64
		warned   atomic.Bool
		done     = make(chan struct{})
		doneOnce sync.Once
	)
	finish := func() { doneOnce.Do(func() { close(done) }) }

	subscriber.OnConnect(func() {
		log.Println("Connected to city server")
	})
	subscriber.OnDisconnect(func() {
		log.Println("Disconnected from city server, retrying...")
	})
	subscriber.OnConfig(func(cfg *ipc.ConfigMessage) {
		log.Printf("Stream config: %dx%d @ %d FPS", cfg.Width, cfg.Height, cfg.FPS)
	})

	// Frames arrive on the subscriber's read goroutine; it is the only
	// writer to stdout, so the buffered writer needs no lock.
	subscriber.OnFrame(func(f *ipc.FrameMessage) {
		w := geomW.Load()
		if w == 0 {
			geomW.Store(int64(f.Width))
			geomH.Store(int64(f.Height))
			log.Printf("First frame: %dx%d, seq=%d", f.Width, f.Height, f.Sequence)
		} else if int64(f.Width) != w || int64(f.Height) != geomH.Load() {
			// Raw video cannot change geometry mid-pipe
			if warned.CompareAndSwap(false, true) {
				log.Printf("WARNING: frame geometry changed to %dx%d, restart the recorder to pick it up",
					f.Width, f.Height)
			}
			return
		}

		if prev := lastSeq.Swap(f.Sequence); prev != 0 && f.Sequence > prev+1 {
			gaps.Add(f.Sequence - prev - 1)
		}

		if _, err := out.Write(f.Pixels); err != nil {
			log.Printf("ERROR: stdout write failed: %v", err)
			finish()
			return
		}

		n := written.Add(1)
		if maxFrames > 0 && n >= uint64(maxFrames) {
			log.Printf("Reached %d frames, stopping", maxFrames)
			finish()
		}
	})

	log.Println("Connecting to city server...")
	if err := subscriber.Start(); err != nil {
		log.Fatalf("Failed to start IPC subscriber: %v", err)
	}

	// Wait for the geometry handshake
	log.Println("Waiting for stream config...")
	if cfg := subscriber.WaitForConfig(30 * time.Second); cfg != nil {
		log.Printf("Recording %dx%d @ %d FPS", cfg.Width, cfg.Height, cfg.FPS)
	} else {
		log.Println("WARNING: No config received from server yet")
		log.Println("Make sure the city server is running: go run ./cmd/server")
		log.Println("Continuing anyway (will retry connection)...")
	}

	// Progress line every 30s so a long recording shows signs of life
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			received, reconnects, errs := subscriber.GetStats()
			log.Printf("IPC: frames=%d, reconnects=%d, errors=%d, connected=%v",
				received, reconnects, errs, subscriber.IsConnected())
			log.Printf("Recorder: written=%d, gaps=%d", written.Load(), gaps.Load())
		}
	}()

	// Wait for shutdown signal or a terminal write error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("")
	log.Println("Recorder ready! Press Ctrl+C to stop.")
	log.Println("")

	select {
	case <-quit:
	case <-done:
	}

	log.Println("Shutting down recorder...")

	// Stop the subscriber first so its read goroutine cannot race the
	// final flush.
	subscriber.Stop()
	if err := out.Flush(); err != nil {
		log.Printf("Flush failed: %v", err)
	}

	log.Printf("Recorder stopped after %d frames (%d gaps)", written.Load(), gaps.Load())
}

func getEnvWithDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
