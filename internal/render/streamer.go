package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fogleman/gg"

	"cryptopolis/internal/game"
)

// ErrHeadless is returned by pixel endpoints when the process runs
// without a frame pipeline.
var ErrHeadless = errors.New("render: headless streamer has no frames")

// StreamerConfig sizes the frame pipeline.
type StreamerConfig struct {
	Width  int
	Height int
	FPS    float64
}

// DefaultStreamerConfig is 720p at 30fps.
func DefaultStreamerConfig() StreamerConfig {
	return StreamerConfig{Width: 1280, Height: 720, FPS: 30}
}

// doubleBuffer holds two render targets so the frame being encoded or
// shipped is never the one being painted.
type doubleBuffer struct {
	contexts [2]*gg.Context
	active   int
}

func newDoubleBuffer(width, height int) *doubleBuffer {
	db := &doubleBuffer{}
	for i := range db.contexts {
		db.contexts[i] = gg.NewContext(width, height)
	}
	return db
}

// back is the context the current frame paints into.
func (db *doubleBuffer) back() *gg.Context { return db.contexts[db.active] }

// front is the last completed frame.
func (db *doubleBuffer) front() *gg.Context { return db.contexts[1-db.active] }

func (db *doubleBuffer) swap() { db.active = 1 - db.active }

// Streamer drives the whole frame pipeline: the scheduler fires at the
// target rate, each tick drains queued commands, advances the engine,
// renders the snapshot into the back buffer, and pushes raw RGBA into
// the frame ring for whatever sink is attached. The scheduler is the
// simulation's only clock; nothing else calls Advance.
type Streamer struct {
	cfg      StreamerConfig
	engine   *game.Engine
	renderer *CityRenderer
	sched    *FrameScheduler
	ring     *FrameRing

	// preTick runs before each Advance on the tick goroutine; the
	// server wires the command queue drain here.
	preTick func(delta float64)
	// onFrame runs after each completed frame; the server wires state
	// broadcasting here.
	onFrame func(snap *game.CitySnapshot, seq uint64)

	writerMu sync.Mutex
	writer   *AsyncFrameWriter

	bufMu   sync.Mutex
	buffers *doubleBuffer

	frameSeq  atomic.Uint64
	startedAt time.Time
	running   atomic.Bool
}

// NewStreamer builds the pipeline against an engine. The renderer's
// camera starts fitted to the engine's grid.
func NewStreamer(engine *game.Engine, cfg StreamerConfig) (*Streamer, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("streamer canvas must be positive, got %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}

	renderer, err := NewCityRenderer(cfg.Width, cfg.Height, engine.GetGrid().Size(), DefaultProjection)
	if err != nil {
		return nil, err
	}

	return &Streamer{
		cfg:      cfg,
		engine:   engine,
		renderer: renderer,
		sched:    NewFrameScheduler(cfg.FPS),
		ring:     NewFrameRing(cfg.Width * cfg.Height * 4),
		buffers:  newDoubleBuffer(cfg.Width, cfg.Height),
	}, nil
}

// SetPreTick installs the per-tick hook. Call before Start.
func (s *Streamer) SetPreTick(fn func(delta float64)) { s.preTick = fn }

// SetOnFrame installs the per-frame hook. Call before Start.
func (s *Streamer) SetOnFrame(fn func(snap *game.CitySnapshot, seq uint64)) { s.onFrame = fn }

// Renderer exposes the renderer for camera commands and thumbnails.
func (s *Streamer) Renderer() *CityRenderer { return s.renderer }

// Start begins the frame loop. Idempotent.
func (s *Streamer) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	s.startedAt = time.Now()
	s.renderer.ResetSession()
	s.sched.Start(s.tick)
	log.Printf("🎥 Streamer started: %dx%d @ %.0f fps", s.cfg.Width, s.cfg.Height, s.cfg.FPS)
	return nil
}

// Stop halts the frame loop. An attached sink writer stays attached so
// a later Start resumes feeding it.
func (s *Streamer) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.sched.Stop()
	log.Printf("🛑 Streamer stopped after %s", time.Since(s.startedAt).Round(time.Second))
}

// Close tears the pipeline down for good.
func (s *Streamer) Close() {
	s.Stop()
	s.DetachSink()
	s.renderer.Close()
}

// IsStreaming reports whether the frame loop is running.
func (s *Streamer) IsStreaming() bool {
	return s.running.Load()
}

// SetTargetFPS retargets the scheduler without restarting.
func (s *Streamer) SetTargetFPS(fps float64) {
	s.sched.SetTargetFPS(fps)
}

// AttachSink starts draining the frame ring into the sink. Any
// previous sink is stopped first. Safe while streaming.
func (s *Streamer) AttachSink(sink FrameSink) {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	if s.writer != nil {
		s.writer.Stop()
	}
	s.ring.Reset()
	s.writer = NewAsyncFrameWriter(s.ring, sink, int(s.cfg.FPS), func(err error) {
		log.Printf("⚠️ Frame sink detached: %v", err)
		s.writerMu.Lock()
		s.writer = nil
		s.writerMu.Unlock()
	})
	s.writer.Start()
}

// DetachSink stops the sink writer if one is attached.
func (s *Streamer) DetachSink() {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()
	if s.writer != nil {
		s.writer.Stop()
		s.writer = nil
	}
}

func (s *Streamer) hasSink() bool {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()
	return s.writer != nil
}

// tick is the frame callback: commands, simulation, render, publish.
func (s *Streamer) tick(timestamp, delta float64) {
	if s.preTick != nil {
		s.preTick(delta)
	}

	s.engine.Advance(delta)
	snap := s.engine.GetSnapshot()

	back := s.buffers.back()
	s.renderer.RenderFrame(back, snap)
	seq := s.frameSeq.Add(1)

	// Ship pixels only when someone is listening; the ring copies, so
	// skipping saves the memcpy per frame.
	if s.hasSink() {
		if img, ok := back.Image().(*image.RGBA); ok {
			s.ring.TryWrite(img.Pix, seq)
		}
	}

	s.bufMu.Lock()
	s.buffers.swap()
	s.bufMu.Unlock()

	if s.onFrame != nil {
		s.onFrame(snap, seq)
	}
}

// EncodeFrontPNG encodes the last completed frame as PNG. Safe from
// any goroutine.
func (s *Streamer) EncodeFrontPNG() ([]byte, error) {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()

	var buf bytes.Buffer
	if err := png.Encode(&buf, s.buffers.front().Image()); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// OverviewPNG renders the whole grid to a PNG at the given size
// through the direct path.
func (s *Streamer) OverviewPNG(width, height int) ([]byte, error) {
	snap := s.engine.GetSnapshot()
	img := s.renderer.RenderOverview(snap, width, height)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode overview: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderMetrics returns the renderer's published metrics.
func (s *Streamer) RenderMetrics() RenderMetrics {
	return s.renderer.Metrics()
}

// Camera returns the renderer's published camera state.
func (s *Streamer) Camera() CameraState {
	return s.renderer.Camera()
}

// GetStats returns pipeline statistics.
func (s *Streamer) GetStats() map[string]interface{} {
	written, dropped, read := s.ring.GetStats()
	stats := map[string]interface{}{
		"running":        s.running.Load(),
		"mode":           "pipeline",
		"resolution":     fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height),
		"targetFps":      1000 / s.sched.TargetFrameTime(),
		"framesRendered": s.frameSeq.Load(),
		"ringWritten":    written,
		"ringDropped":    dropped,
		"ringRead":       read,
		"sinkAttached":   s.hasSink(),
	}
	if s.running.Load() {
		stats["uptime"] = time.Since(s.startedAt).Round(time.Second).String()
	}

	s.writerMu.Lock()
	if s.writer != nil {
		ws := s.writer.GetStats()
		stats["sinkFramesSent"] = ws.FramesSent
		stats["sinkWriteErrors"] = ws.WriteErrors
		stats["sinkAvgWriteMs"] = ws.AvgWriteMs
	}
	s.writerMu.Unlock()

	return stats
}

// NoopStreamer keeps the simulation ticking without any frame
// pipeline, for headless servers and tests. The scheduler still runs
// the tick contract; only the pixel work is skipped.
type NoopStreamer struct {
	engine *game.Engine
	sched  *FrameScheduler

	preTick func(delta float64)
	onFrame func(snap *game.CitySnapshot, seq uint64)

	frameSeq  atomic.Uint64
	startedAt time.Time
	running   atomic.Bool
}

// NewNoopStreamer builds the headless pipeline at the given tick rate.
func NewNoopStreamer(engine *game.Engine, fps float64) *NoopStreamer {
	return &NoopStreamer{
		engine: engine,
		sched:  NewFrameScheduler(fps),
	}
}

// SetPreTick installs the per-tick hook. Call before Start.
func (n *NoopStreamer) SetPreTick(fn func(delta float64)) { n.preTick = fn }

// SetOnFrame installs the per-frame hook. Call before Start.
func (n *NoopStreamer) SetOnFrame(fn func(snap *game.CitySnapshot, seq uint64)) { n.onFrame = fn }

// Start begins the headless tick loop.
func (n *NoopStreamer) Start() error {
	if !n.running.CompareAndSwap(false, true) {
		return nil
	}
	n.startedAt = time.Now()
	n.sched.Start(func(timestamp, delta float64) {
		if n.preTick != nil {
			n.preTick(delta)
		}
		n.engine.Advance(delta)
		if n.onFrame != nil {
			n.onFrame(n.engine.GetSnapshot(), n.frameSeq.Add(1))
		}
	})
	log.Printf("🎛️ Headless streamer started")
	return nil
}

// Stop halts the tick loop.
func (n *NoopStreamer) Stop() {
	if !n.running.CompareAndSwap(true, false) {
		return
	}
	n.sched.Stop()
}

// IsStreaming always reports false; no frames are produced.
func (n *NoopStreamer) IsStreaming() bool { return false }

// SetTargetFPS retargets the tick rate.
func (n *NoopStreamer) SetTargetFPS(fps float64) { n.sched.SetTargetFPS(fps) }

// EncodeFrontPNG always fails; there is no frame.
func (n *NoopStreamer) EncodeFrontPNG() ([]byte, error) { return nil, ErrHeadless }

// OverviewPNG always fails; there is no renderer.
func (n *NoopStreamer) OverviewPNG(width, height int) ([]byte, error) { return nil, ErrHeadless }

// RenderMetrics returns zeroes.
func (n *NoopStreamer) RenderMetrics() RenderMetrics { return RenderMetrics{} }

// Camera returns a zero camera.
func (n *NoopStreamer) Camera() CameraState { return CameraState{} }

// GetStats reports headless mode.
func (n *NoopStreamer) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"running":        n.running.Load(),
		"mode":           "headless",
		"framesRendered": n.frameSeq.Load(),
	}
	if n.running.Load() {
		stats["uptime"] = time.Since(n.startedAt).Round(time.Second).String()
	}
	return stats
}
