package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"cryptopolis/internal/api"
	"cryptopolis/internal/audio"
	"cryptopolis/internal/commands"
	"cryptopolis/internal/config"
	"cryptopolis/internal/game"
	"cryptopolis/internal/ipc"
	"cryptopolis/internal/render"
	"cryptopolis/internal/thumb"
)

func main() {
	// A .env in the repo root covers running from cmd/server; one in
	// the working directory covers a deployed binary.
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🏙️ ================================")
	log.Println("🏙️  CRYPTOPOLIS - CITY ENGINE")
	log.Println("🏙️ ================================")

	cfg := config.Load()
	log.Printf("🎮 Canvas: %dx%d @ %d fps | grid: %dx%d",
		cfg.Video.Width, cfg.Video.Height, cfg.Video.FPS,
		cfg.City.GridSize, cfg.City.GridSize)

	// Simulation engine. Anything the config does not carry keeps the
	// engine's own defaults.
	engineCfg := game.DefaultEngineConfig()
	engineCfg.GridSize = cfg.City.GridSize
	engineCfg.StartingTreasury = decimal.NewFromFloat(cfg.City.StartingTreasury)
	engineCfg.ParticleCapacity = cfg.City.MaxParticles
	engineCfg.Seed = cfg.City.Seed
	engine := game.NewEngine(engineCfg)

	limits := engine.GetLimits()
	log.Printf("🛡️ Limits: %d buildings, %d particles, %d synergy links",
		limits.MaxBuildings, limits.MaxParticles, limits.MaxConnections)
	log.Printf("🏗️ Catalog: %d building types", engine.GetCatalog().Len())

	// Event logging (empty path keeps the log memory-only)
	if err := engine.StartEventLog(cfg.City.EventLogPath); err != nil {
		log.Printf("⚠️ Event log disabled: %v", err)
	} else if cfg.City.EventLogPath != "" {
		log.Printf("📝 Event log: %s", cfg.City.EventLogPath)
	}

	// Internal observability server (pprof + prometheus, localhost only)
	debugCfg := api.DefaultObservabilityConfig()
	debugCfg.Enabled = cfg.Debug.Enabled
	if cfg.Debug.Addr != "" {
		debugCfg.ListenAddr = cfg.Debug.Addr
	}
	debugCfg.BasicAuthUser = cfg.Debug.AuthUser
	debugCfg.BasicAuthPass = cfg.Debug.AuthPass
	if err := api.StartDebugServer(debugCfg); err != nil {
		log.Printf("⚠️ Debug server failed to start: %v", err)
	}

	// Command intake queue between the WebSocket handlers and the tick
	rateCfg := commands.DefaultRateLimitConfig
	if cfg.Commands.MaxPerWindow > 0 {
		rateCfg.MaxPerWindow = cfg.Commands.MaxPerWindow
	}
	if cfg.Commands.Window > 0 {
		rateCfg.WindowDuration = cfg.Commands.Window
	}
	queue := commands.NewQueue(commands.QueueConfig{
		BufferSize: cfg.Commands.QueueSize,
		RateLimit:  rateCfg,
	})

	// Frame pipeline. The scheduler is the simulation's only clock, so
	// the headless variant still ticks the engine at the same rate.
	var (
		pipeline *render.Streamer
		headless *render.NoopStreamer
		streamer api.StreamerInterface
		camera   commands.CameraController
	)
	if cfg.Video.Headless {
		headless = render.NewNoopStreamer(engine, float64(cfg.Video.FPS))
		streamer = headless
		log.Println("🎛️ Headless mode: simulation only, no frames")
	} else {
		p, err := render.NewStreamer(engine, render.StreamerConfig{
			Width:  cfg.Video.Width,
			Height: cfg.Video.Height,
			FPS:    float64(cfg.Video.FPS),
		})
		if err != nil {
			log.Fatalf("❌ Failed to create streamer: %v", err)
		}
		pipeline = p
		streamer = p
		camera = p.Renderer()
	}

	executor := commands.NewExecutor(engine, camera)

	// Tick hooks: drain commands before Advance, publish gauges after
	// the frame. Both run on the tick goroutine, so tickStart needs no
	// locking.
	var tickStart time.Time
	preTick := func(delta float64) {
		tickStart = time.Now()
		queue.Drain(executor.Apply)
		api.UpdateCommandQueueDepth(int(queue.Stats().Pending))
	}
	onFrame := func(snap *game.CitySnapshot, seq uint64) {
		api.RecordTick(time.Since(tickStart))
		api.UpdateCityStats(snap.BuildingCount, len(snap.Particles), len(snap.Connections))
		if pipeline != nil {
			rm := pipeline.RenderMetrics()
			api.UpdateRenderStats(rm.TilesRendered, rm.DrawCalls)
			api.RecordFrame(time.Duration(rm.FrameTime * float64(time.Millisecond)))
		}
	}
	if pipeline != nil {
		pipeline.SetPreTick(preTick)
		pipeline.SetOnFrame(onFrame)
	} else {
		headless.SetPreTick(preTick)
		headless.SetOnFrame(onFrame)
	}

	// IPC publisher feeds raw frames to the recorder sidecar
	var publisher *ipc.Publisher
	if cfg.IPC.Enabled && pipeline != nil {
		publisher = ipc.NewPublisher(cfg.IPC.SocketPath)
		publisher.SetConfig(cfg.Video.Width, cfg.Video.Height, cfg.Video.FPS)
		if err := publisher.Start(); err != nil {
			log.Printf("⚠️ IPC publisher failed, recorder feed disabled: %v", err)
			publisher = nil
		} else {
			pipeline.AttachSink(publisher)
		}
	}

	// Local audio cues for city events (off unless configured)
	cues := audio.NewCuePlayer(audio.CueConfig{
		Enabled: cfg.Audio.Enabled,
		Dir:     cfg.Audio.CueDir,
		Volume:  cfg.Audio.Volume,
	})
	cues.Attach(engine.GetParticles())

	thumbs := thumb.NewCache(cfg.Server.ThumbCacheSize, cfg.Server.ThumbCacheDir)

	opts := api.ServerOptions{
		Queue:          queue,
		Thumbs:         thumbs,
		AdminToken:     cfg.Server.AdminToken,
		StaticFilesDir: cfg.Server.StaticDir,
	}
	if cfg.Server.RateRPS > 0 {
		rl := api.DefaultRateLimitConfig
		rl.RequestsPerSecond = cfg.Server.RateRPS
		if cfg.Server.RateBurst > 0 {
			rl.Burst = cfg.Server.RateBurst
		}
		opts.RateLimit = &rl
	}
	server := api.NewServerWithOptions(engine, streamer, opts)

	if err := streamer.Start(); err != nil {
		log.Fatalf("❌ Failed to start frame pipeline: %v", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ API server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ City running! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")

	// Stop intake first so nothing mutates the city mid-teardown, then
	// the pipeline, then everything downstream of it.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}

	if pipeline != nil {
		pipeline.Close()
	} else {
		headless.Stop()
	}
	if publisher != nil {
		publisher.Stop()
	}
	queue.Close()
	cues.Close()
	engine.StopEventLog()

	log.Println("👋 Goodbye!")
}
