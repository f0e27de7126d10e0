// Package audio plays short local cues for city events through the
// machine's speaker. Streams get their audio mixed downstream, so this
// stays disabled unless an operator turns it on.
package audio

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/vorbis"

	"cryptopolis/internal/game"
)

// CueConfig controls local cue playback.
type CueConfig struct {
	Enabled bool
	Dir     string  // cue files named <trigger>.ogg; synthesized tones fill gaps
	Volume  float64 // 0.0-1.0
}

// DefaultCueConfig is silent: cues are an operator opt-in.
func DefaultCueConfig() CueConfig {
	return CueConfig{Enabled: false, Dir: "assets/cues", Volume: 0.5}
}

// cueTriggers lists every trigger that gets a cue.
var cueTriggers = []game.TriggerType{
	game.TriggerYieldCollect,
	game.TriggerAchievement,
	game.TriggerRugPull,
	game.TriggerAirdrop,
}

// CuePlayer holds one decoded buffer per trigger type and fires them
// through the speaker. A player that failed to initialize stays usable,
// every call just no-ops.
type CuePlayer struct {
	mu      sync.Mutex
	buffers map[game.TriggerType]*beep.Buffer
	volume  float64
	ready   bool

	sampleRate beep.SampleRate
}

// NewCuePlayer builds the cue bank and opens the speaker. Failure to
// open the audio device disables cues without failing startup.
func NewCuePlayer(cfg CueConfig) *CuePlayer {
	c := &CuePlayer{}
	if !cfg.Enabled {
		return c
	}

	c.volume = cfg.Volume
	if c.volume <= 0 || c.volume > 1 {
		c.volume = 0.5
	}
	c.sampleRate = beep.SampleRate(44100)

	if err := speaker.Init(c.sampleRate, c.sampleRate.N(time.Second/10)); err != nil {
		log.Printf("⚠️ Audio cues disabled: %v", err)
		return c
	}

	c.buffers = make(map[game.TriggerType]*beep.Buffer, len(cueTriggers))
	for _, t := range cueTriggers {
		c.buffers[t] = loadCue(cfg.Dir, t, c.sampleRate)
	}
	c.ready = true

	log.Printf("🔊 Audio cues ready (%d triggers)", len(c.buffers))
	return c
}

// Attach registers the player on every trigger type of a pool.
func (c *CuePlayer) Attach(pool *game.ParticlePool) {
	if c == nil || !c.ready {
		return
	}
	for _, t := range cueTriggers {
		trigger := t
		pool.OnTrigger(trigger, func(game.TriggerEvent) {
			c.Play(trigger)
		})
	}
}

// Play fires the cue for a trigger. Non-blocking; overlapping cues mix
// in the speaker.
func (c *CuePlayer) Play(t game.TriggerType) {
	if c == nil || !c.ready {
		return
	}

	c.mu.Lock()
	buf := c.buffers[t]
	vol := c.volume
	c.mu.Unlock()

	if buf == nil || buf.Len() == 0 {
		return
	}

	speaker.Play(&effects.Volume{
		Streamer: buf.Streamer(0, buf.Len()),
		Base:     2,
		Volume:   volumeExponent(vol),
		Silent:   vol <= 0,
	})
}

// SetVolume adjusts cue volume (0.0 to 1.0).
func (c *CuePlayer) SetVolume(v float64) {
	if c == nil {
		return
	}
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	c.mu.Lock()
	c.volume = v
	c.mu.Unlock()
}

// IsReady reports whether the speaker opened and cues are loaded.
func (c *CuePlayer) IsReady() bool {
	return c != nil && c.ready
}

// Close releases the audio device.
func (c *CuePlayer) Close() {
	if c == nil || !c.ready {
		return
	}
	speaker.Close()
	c.ready = false
}

// loadCue prefers an OGG file named after the trigger, falling back to
// a synthesized tone so cues work without asset files.
func loadCue(dir string, t game.TriggerType, target beep.SampleRate) *beep.Buffer {
	if dir != "" {
		path := filepath.Join(dir, t.String()+".ogg")
		if buf, err := loadOGG(path, target); err == nil {
			log.Printf("✅ Audio cue loaded: %s", path)
			return buf
		}
	}
	return synthCue(t, target)
}

// loadOGG decodes a whole cue into memory. Cues run well under a
// second, so buffering beats the streaming decode used for long tracks.
func loadOGG(path string, target beep.SampleRate) (*beep.Buffer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	streamer, format, err := vorbis.Decode(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	defer streamer.Close()

	buf := beep.NewBuffer(beep.Format{SampleRate: target, NumChannels: 2, Precision: 2})
	if format.SampleRate != target {
		buf.Append(beep.Resample(4, format.SampleRate, target, streamer))
	} else {
		buf.Append(streamer)
	}
	return buf, nil
}

// synthCue builds a 120ms tone, one pitch per trigger.
func synthCue(t game.TriggerType, target beep.SampleRate) *beep.Buffer {
	freq := 660
	switch t {
	case game.TriggerYieldCollect:
		freq = 880
	case game.TriggerAchievement:
		freq = 1320
	case game.TriggerRugPull:
		freq = 220
	case game.TriggerAirdrop:
		freq = 660
	}

	tone, err := generators.SineTone(target, float64(freq))
	if err != nil {
		return nil
	}

	buf := beep.NewBuffer(beep.Format{SampleRate: target, NumChannels: 2, Precision: 2})
	buf.Append(beep.Take(target.N(120*time.Millisecond), tone))
	return buf
}

// volumeExponent maps linear volume onto beep's Base^Volume gain, so
// unity sits at 0.
func volumeExponent(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Log2(v)
}
