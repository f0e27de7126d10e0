package config

import (
	"testing"
	"time"
)

func TestDefaultsWithoutEnv(t *testing.T) {
	// Clear anything the host environment might inject
	for _, key := range []string{
		"STREAM_WIDTH", "STREAM_HEIGHT", "STREAM_FPS", "HEADLESS",
		"GRID_SIZE", "STARTING_TREASURY", "PORT", "ADMIN_TOKEN",
		"IPC_ENABLED", "AUDIO_CUES", "DEBUG_ADDR",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Video.Width != 1280 || cfg.Video.Height != 720 {
		t.Errorf("video = %dx%d, want 1280x720", cfg.Video.Width, cfg.Video.Height)
	}
	if cfg.Video.Headless {
		t.Error("headless should default to false")
	}
	if cfg.City.GridSize != 32 {
		t.Errorf("grid size = %d, want 32", cfg.City.GridSize)
	}
	if cfg.City.StartingTreasury != 1000 {
		t.Errorf("starting treasury = %v, want 1000", cfg.City.StartingTreasury)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Audio.Enabled {
		t.Error("audio cues should default to off")
	}
	if !cfg.IPC.Enabled {
		t.Error("IPC should default to on")
	}
	if cfg.Debug.Addr != "127.0.0.1:6060" {
		t.Errorf("debug addr = %q, want localhost", cfg.Debug.Addr)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STREAM_WIDTH", "640")
	t.Setenv("STREAM_FPS", "24")
	t.Setenv("HEADLESS", "true")
	t.Setenv("GRID_SIZE", "16")
	t.Setenv("STARTING_TREASURY", "2500.5")
	t.Setenv("WORLD_SEED", "42")
	t.Setenv("CMD_WINDOW_SECONDS", "10")
	t.Setenv("PORT", "8080")
	t.Setenv("ADMIN_TOKEN", "hunter2")
	t.Setenv("IPC_ENABLED", "false")
	t.Setenv("AUDIO_CUES", "true")
	t.Setenv("AUDIO_VOLUME", "0.2")

	cfg := Load()

	if cfg.Video.Width != 640 {
		t.Errorf("width = %d, want 640", cfg.Video.Width)
	}
	if cfg.Video.FPS != 24 {
		t.Errorf("fps = %d, want 24", cfg.Video.FPS)
	}
	if !cfg.Video.Headless {
		t.Error("HEADLESS=true not honored")
	}
	if cfg.City.GridSize != 16 {
		t.Errorf("grid size = %d, want 16", cfg.City.GridSize)
	}
	if cfg.City.StartingTreasury != 2500.5 {
		t.Errorf("treasury = %v, want 2500.5", cfg.City.StartingTreasury)
	}
	if cfg.City.Seed != 42 {
		t.Errorf("seed = %d, want 42", cfg.City.Seed)
	}
	if cfg.Commands.Window != 10*time.Second {
		t.Errorf("command window = %v, want 10s", cfg.Commands.Window)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.AdminToken != "hunter2" {
		t.Errorf("admin token = %q, want hunter2", cfg.Server.AdminToken)
	}
	if cfg.IPC.Enabled {
		t.Error("IPC_ENABLED=false not honored")
	}
	if !cfg.Audio.Enabled {
		t.Error("AUDIO_CUES=true not honored")
	}
	if cfg.Audio.Volume != 0.2 {
		t.Errorf("audio volume = %v, want 0.2", cfg.Audio.Volume)
	}
}

func TestMalformedEnvFallsBack(t *testing.T) {
	t.Setenv("STREAM_WIDTH", "not-a-number")
	t.Setenv("GRID_SIZE", "-5")
	t.Setenv("AUDIO_VOLUME", "loud")

	cfg := Load()

	if cfg.Video.Width != 1280 {
		t.Errorf("width = %d, want default 1280", cfg.Video.Width)
	}
	if cfg.City.GridSize != 32 {
		t.Errorf("grid size = %d, want default 32 for a negative override", cfg.City.GridSize)
	}
	if cfg.Audio.Volume != 0.5 {
		t.Errorf("audio volume = %v, want default 0.5", cfg.Audio.Volume)
	}
}
