package game

import (
	"math"
	"math/rand"
)

// DefaultMaxParticles is the global particle ceiling. Spawns beyond it
// are dropped silently; visual degradation under load beats stalls.
const DefaultMaxParticles = 500

// particleGravity is applied to falling particle types, px/s^2.
const particleGravity = 50.0

// fadeStart is the lifetime fraction where opacity begins its linear
// fade to zero.
const fadeStart = 0.7

// ParticleType selects the physics and draw style of a particle.
type ParticleType uint8

const (
	ParticleCoin ParticleType = iota
	ParticleSparkle
	ParticleWarning
	ParticleConfetti
)

func (t ParticleType) String() string {
	switch t {
	case ParticleCoin:
		return "coin"
	case ParticleSparkle:
		return "sparkle"
	case ParticleWarning:
		return "warning"
	case ParticleConfetti:
		return "confetti"
	default:
		return "unknown"
	}
}

// Particle is one pooled visual effect in screen-space pixels.
// Instances live in the pool's slot array and are recycled in place.
type Particle struct {
	X, Y          float64
	VX, VY        float64
	Size          float64
	Color         string
	Type          ParticleType
	Lifetime      float64 // seconds lived so far
	MaxLifetime   float64
	Opacity       float64
	Rotation      float64
	RotationSpeed float64

	active bool
	slot   int
}

// ParticleConfig describes one spawn request.
type ParticleConfig struct {
	Type     ParticleType
	Color    string
	Size     float64
	Speed    float64 // nominal px/s; actual speed randomizes to 50-100%
	Lifetime float64 // seconds
}

// TriggerType names the game events that produce particle bursts.
type TriggerType uint8

const (
	TriggerYieldCollect TriggerType = iota
	TriggerAchievement
	TriggerRugPull
	TriggerAirdrop
)

func (t TriggerType) String() string {
	switch t {
	case TriggerYieldCollect:
		return "yield-collect"
	case TriggerAchievement:
		return "achievement"
	case TriggerRugPull:
		return "rug-pull"
	case TriggerAirdrop:
		return "airdrop"
	default:
		return "unknown"
	}
}

// TriggerEvent carries one game event into the pool's observers.
type TriggerEvent struct {
	Type       TriggerType
	X, Y       float64 // screen-space burst origin
	BuildingID string
	Amount     float64
}

// TriggerHandler observes trigger events of one type.
type TriggerHandler func(TriggerEvent)

// ParticlePool is a fixed-capacity pool of recycled particles. All
// slots are allocated once at construction; Spawn never allocates.
// Single-writer: the engine tick owns all mutation.
type ParticlePool struct {
	slots       []Particle
	free        []int
	activeCount int
	scratch     []*Particle

	rng      *rand.Rand
	handlers map[TriggerType][]TriggerHandler
}

// NewParticlePool creates a pool with the given capacity. Non-positive
// capacities fall back to DefaultMaxParticles.
func NewParticlePool(capacity int, rng *rand.Rand) *ParticlePool {
	if capacity <= 0 {
		capacity = DefaultMaxParticles
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	p := &ParticlePool{
		slots:    make([]Particle, capacity),
		free:     make([]int, capacity),
		scratch:  make([]*Particle, 0, capacity),
		rng:      rng,
		handlers: make(map[TriggerType][]TriggerHandler),
	}
	for i := range p.slots {
		p.slots[i].slot = i
		p.free[i] = capacity - 1 - i // pop from the tail
	}
	return p
}

// Capacity returns the fixed slot count.
func (p *ParticlePool) Capacity() int { return len(p.slots) }

// ActiveCount returns the number of live particles.
func (p *ParticlePool) ActiveCount() int { return p.activeCount }

// Spawn activates one particle at (x, y). Returns nil when the pool is
// exhausted; callers must treat that as normal, not as an error.
func (p *ParticlePool) Spawn(x, y float64, cfg ParticleConfig) *Particle {
	if len(p.free) == 0 {
		return nil
	}

	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]

	angle := p.rng.Float64() * 2 * math.Pi
	speed := cfg.Speed * (0.5 + p.rng.Float64()*0.5)

	pt := &p.slots[idx]
	pt.X = x
	pt.Y = y
	pt.VX = math.Cos(angle) * speed
	// Upward bias so bursts arc before falling.
	pt.VY = math.Sin(angle)*speed - speed*0.5
	pt.Size = cfg.Size
	pt.Color = cfg.Color
	pt.Type = cfg.Type
	pt.Lifetime = 0
	pt.MaxLifetime = cfg.Lifetime
	pt.Opacity = 1.0
	pt.Rotation = 0
	pt.RotationSpeed = (p.rng.Float64() - 0.5) * 10
	pt.active = true

	p.activeCount++
	return pt
}

// Update advances all active particles by dt seconds and recycles the
// expired ones.
func (p *ParticlePool) Update(dt float64) {
	if dt <= 0 {
		return
	}
	for i := range p.slots {
		pt := &p.slots[i]
		if !pt.active {
			continue
		}

		pt.Lifetime += dt
		if pt.MaxLifetime <= 0 || pt.Lifetime >= pt.MaxLifetime {
			p.recycle(pt)
			continue
		}

		// Coins and warnings fall; sparkle and confetti drift.
		if pt.Type == ParticleCoin || pt.Type == ParticleWarning {
			pt.VY += particleGravity * dt
		}
		pt.X += pt.VX * dt
		pt.Y += pt.VY * dt
		pt.Rotation += pt.RotationSpeed * dt

		frac := pt.Lifetime / pt.MaxLifetime
		if frac < fadeStart {
			pt.Opacity = 1.0
		} else {
			pt.Opacity = 1.0 - (frac-fadeStart)/(1.0-fadeStart)
			if pt.Opacity < 0 {
				pt.Opacity = 0
			}
		}
	}
}

// Active returns pointers to all live particles. The returned slice is
// reused across calls; consume it before the next pool mutation.
func (p *ParticlePool) Active() []*Particle {
	p.scratch = p.scratch[:0]
	for i := range p.slots {
		if p.slots[i].active {
			p.scratch = append(p.scratch, &p.slots[i])
		}
	}
	return p.scratch
}

// Clear returns every active particle to the pool.
func (p *ParticlePool) Clear() {
	for i := range p.slots {
		if p.slots[i].active {
			p.recycle(&p.slots[i])
		}
	}
}

func (p *ParticlePool) recycle(pt *Particle) {
	pt.active = false
	pt.Opacity = 0
	p.free = append(p.free, pt.slot)
	p.activeCount--
}

// OnTrigger registers a handler for one trigger type. Handlers run
// synchronously, in registration order, on the goroutine that calls
// Trigger. Register during setup, before the tick loop starts.
func (p *ParticlePool) OnTrigger(t TriggerType, h TriggerHandler) {
	p.handlers[t] = append(p.handlers[t], h)
}

// Trigger dispatches a game event to its registered handlers. Events
// with no handler are dropped.
func (p *ParticlePool) Trigger(ev TriggerEvent) {
	for _, h := range p.handlers[ev.Type] {
		h(ev)
	}
}
