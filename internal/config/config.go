// Package config gathers every tunable in one place: defaults declared
// in code, each overridable through an environment variable. Nothing
// outside this package reads os.Getenv.
package config

import (
	"os"
	"strconv"
	"time"
)

// =============================================================================
// VIDEO & CANVAS
// =============================================================================

// VideoConfig sizes the canvas and paces the stream. The renderer and
// the IPC publisher read the same values.
type VideoConfig struct {
	Width    int  // Canvas/stream width in pixels
	Height   int  // Canvas/stream height in pixels
	FPS      int  // Frames per second (also the simulation tick rate)
	Headless bool // Run without a frame pipeline (API only)
}

// DefaultVideo is 720p at 30fps, what a small VPS encoder keeps up with.
func DefaultVideo() VideoConfig {
	return VideoConfig{
		Width:  1280,
		Height: 720,
		FPS:    30,
	}
}

// VideoFromEnv applies the STREAM_* environment overrides.
func VideoFromEnv() VideoConfig {
	cfg := DefaultVideo()

	if w := getEnvInt("STREAM_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvInt("STREAM_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}
	if fps := getEnvInt("STREAM_FPS", 0); fps > 0 {
		cfg.FPS = fps
	}
	cfg.Headless = getEnvBool("HEADLESS", false)

	return cfg
}

// =============================================================================
// CITY SIMULATION
// =============================================================================

// CityConfig holds the operator-tunable simulation settings. Anything
// not listed here keeps the engine's own defaults.
type CityConfig struct {
	GridSize         int     // Tiles per side
	StartingTreasury float64 // Coins at city founding
	MaxParticles     int     // Particle pool capacity
	Seed             int64   // 0 means time-based
	EventLogPath     string  // Empty keeps the event log memory-only
}

// DefaultCity is the standard city sizing.
func DefaultCity() CityConfig {
	return CityConfig{
		GridSize:         32,
		StartingTreasury: 1000,
		MaxParticles:     500,
	}
}

// CityFromEnv applies the simulation environment overrides.
func CityFromEnv() CityConfig {
	cfg := DefaultCity()

	if g := getEnvInt("GRID_SIZE", 0); g > 0 {
		cfg.GridSize = g
	}
	if tr := getEnvFloat("STARTING_TREASURY", -1); tr >= 0 {
		cfg.StartingTreasury = tr
	}
	if mp := getEnvInt("MAX_PARTICLES", 0); mp > 0 {
		cfg.MaxParticles = mp
	}
	if seed := getEnvInt64("WORLD_SEED", 0); seed != 0 {
		cfg.Seed = seed
	}
	cfg.EventLogPath = getEnvStr("EVENT_LOG_PATH", cfg.EventLogPath)

	return cfg
}

// =============================================================================
// COMMAND QUEUE
// =============================================================================

// CommandConfig bounds viewer command intake.
type CommandConfig struct {
	QueueSize    int           // Buffered commands between ws intake and tick drain
	MaxPerWindow int           // Per-client commands per window
	Window       time.Duration // Sliding window size
}

// DefaultCommands is the production intake sizing.
func DefaultCommands() CommandConfig {
	return CommandConfig{
		QueueSize:    256,
		MaxPerWindow: 25,
		Window:       30 * time.Second,
	}
}

// CommandsFromEnv applies the CMD_* environment overrides.
func CommandsFromEnv() CommandConfig {
	cfg := DefaultCommands()

	if qs := getEnvInt("CMD_QUEUE_SIZE", 0); qs > 0 {
		cfg.QueueSize = qs
	}
	if mw := getEnvInt("CMD_MAX_PER_WINDOW", 0); mw > 0 {
		cfg.MaxPerWindow = mw
	}
	if ws := getEnvInt("CMD_WINDOW_SECONDS", 0); ws > 0 {
		cfg.Window = time.Duration(ws) * time.Second
	}

	return cfg
}

// =============================================================================
// HTTP SERVER
// =============================================================================

// ServerConfig covers the public HTTP listener and its guards.
type ServerConfig struct {
	Port       int
	AdminToken string // Empty leaves mutations open (dev mode)
	StaticDir  string

	// Request rate limiting, zero keeps the API package defaults
	RateRPS   float64
	RateBurst int

	// Thumbnail cache
	ThumbCacheSize int
	ThumbCacheDir  string // Empty disables the disk tier
}

// DefaultServer is the local-development server setup.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:           3000,
		StaticDir:      "./webclient",
		ThumbCacheSize: 64,
	}
}

// ServerFromEnv applies PORT, ADMIN_TOKEN and the other server overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	cfg.AdminToken = getEnvStr("ADMIN_TOKEN", cfg.AdminToken)
	cfg.StaticDir = getEnvStr("STATIC_DIR", cfg.StaticDir)
	if rps := getEnvFloat("RATE_LIMIT_RPS", 0); rps > 0 {
		cfg.RateRPS = rps
	}
	if b := getEnvInt("RATE_LIMIT_BURST", 0); b > 0 {
		cfg.RateBurst = b
	}
	if ts := getEnvInt("THUMB_CACHE_SIZE", 0); ts > 0 {
		cfg.ThumbCacheSize = ts
	}
	cfg.ThumbCacheDir = getEnvStr("THUMB_CACHE_DIR", cfg.ThumbCacheDir)

	return cfg
}

// =============================================================================
// IPC CONFIGURATION
// =============================================================================

// IPCConfig holds the frame publisher settings.
type IPCConfig struct {
	Enabled    bool
	SocketPath string // Empty uses the package default
}

// DefaultIPC enables the publisher on the package's default socket.
func DefaultIPC() IPCConfig {
	return IPCConfig{
		Enabled: true,
	}
}

// IPCFromEnv applies the IPC_* environment overrides.
func IPCFromEnv() IPCConfig {
	cfg := DefaultIPC()

	if os.Getenv("IPC_ENABLED") == "false" {
		cfg.Enabled = false
	}
	cfg.SocketPath = getEnvStr("IPC_SOCKET", cfg.SocketPath)

	return cfg
}

// =============================================================================
// AUDIO CUES
// =============================================================================

// AudioConfig holds local cue playback settings.
type AudioConfig struct {
	Enabled bool    // Whether event cues play on the server machine
	CueDir  string  // Directory with <trigger>.ogg files
	Volume  float64 // Cue volume (0.0 to 1.0)
}

// DefaultAudio keeps cues off until an operator opts in.
func DefaultAudio() AudioConfig {
	return AudioConfig{
		Enabled: false,
		CueDir:  "assets/cues",
		Volume:  0.5,
	}
}

// AudioFromEnv applies the AUDIO_* environment overrides.
func AudioFromEnv() AudioConfig {
	cfg := DefaultAudio()

	cfg.Enabled = getEnvBool("AUDIO_CUES", cfg.Enabled)
	cfg.CueDir = getEnvStr("AUDIO_CUE_DIR", cfg.CueDir)
	if v := getEnvFloat("AUDIO_VOLUME", -1); v >= 0 {
		cfg.Volume = v
	}

	return cfg
}

// =============================================================================
// DEBUG & OBSERVABILITY
// =============================================================================

// DebugConfig holds the internal metrics/pprof server settings.
type DebugConfig struct {
	Enabled  bool
	Addr     string
	AuthUser string // Optional basic auth
	AuthPass string
}

// DefaultDebug pins the debug server to localhost.
func DefaultDebug() DebugConfig {
	return DebugConfig{
		Enabled: true,
		Addr:    "127.0.0.1:6060", // Localhost only
	}
}

// DebugFromEnv applies the DEBUG_* environment overrides.
func DebugFromEnv() DebugConfig {
	cfg := DefaultDebug()

	if os.Getenv("DEBUG_ENABLED") == "false" {
		cfg.Enabled = false
	}
	cfg.Addr = getEnvStr("DEBUG_ADDR", cfg.Addr)
	cfg.AuthUser = getEnvStr("DEBUG_AUTH_USER", cfg.AuthUser)
	cfg.AuthPass = getEnvStr("DEBUG_AUTH_PASS", cfg.AuthPass)

	return cfg
}

// =============================================================================
// COMPOSED CONFIGURATION
// =============================================================================

// AppConfig is every section composed. The cmd binaries load one of
// these at startup and pass pieces down.
type AppConfig struct {
	Video    VideoConfig
	City     CityConfig
	Commands CommandConfig
	Server   ServerConfig
	IPC      IPCConfig
	Audio    AudioConfig
	Debug    DebugConfig
}

// Load builds the full configuration, defaults plus environment.
func Load() AppConfig {
	return AppConfig{
		Video:    VideoFromEnv(),
		City:     CityFromEnv(),
		Commands: CommandsFromEnv(),
		Server:   ServerFromEnv(),
		IPC:      IPCFromEnv(),
		Audio:    AudioFromEnv(),
		Debug:    DebugFromEnv(),
	}
}

// =============================================================================
// ENV HELPERS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvStr(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
