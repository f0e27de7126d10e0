package game

import (
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// ResourceLimits caps what a single snapshot can carry.
type ResourceLimits struct {
	MaxBuildings   int // Hard cap on buildings per snapshot
	MaxParticles   int // Per frame particle limit
	MaxConnections int // Synergy connection limit
}

// DefaultLimits sizes snapshots for the standard 32x32 city.
var DefaultLimits = ResourceLimits{
	MaxBuildings:   1024, // A full 32x32 grid
	MaxParticles:   500,
	MaxConnections: 2048,
}

// BuildingSnapshot is an immutable copy of one placed building for
// rendering. Value fields only; nothing aliases live engine state.
type BuildingSnapshot struct {
	ID           string
	BuildingID   string
	Name         string
	Category     BuildingCategory
	Chain        string
	Color        string
	SpriteHeight int
	GridX, GridY int

	// Projected world position at zoom 1, viewport applied at draw time
	ScreenX, ScreenY float64

	Bonus   float64 // Synergy bonus in percent
	Pending decimal.Decimal
}

// ToJSON returns a JSON-friendly representation for API responses
func (b *BuildingSnapshot) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"id":         b.ID,
		"buildingId": b.BuildingID,
		"name":       b.Name,
		"category":   b.Category,
		"chain":      b.Chain,
		"color":      b.Color,
		"gridX":      b.GridX,
		"gridY":      b.GridY,
		"bonus":      b.Bonus,
		"pending":    b.Pending,
	}
}

// ParticleSnapshot is one particle frozen at snapshot time.
type ParticleSnapshot struct {
	X, Y     float64
	Size     float64
	Rotation float64
	Opacity  float64
	Color    string
	Type     ParticleType
}

// CitySnapshot is a complete immutable city state for rendering.
// All slices are pre-allocated and capped.
type CitySnapshot struct {
	Sequence   uint64    // Monotonic sequence for ordering
	Timestamp  time.Time // When snapshot was created
	TickNumber uint64    // Simulation tick this represents

	GridSize    int
	GridVersion uint64

	Treasury       decimal.Decimal
	PendingYield   decimal.Decimal
	LifetimeEarned decimal.Decimal

	// Pre-allocated capped slices (never grow beyond limits)
	Buildings   []BuildingSnapshot
	Particles   []ParticleSnapshot
	Connections []SynergyConnection

	// Derived counters
	BuildingCount int
	EventHead     uint64
}

// SnapshotPool rotates the tick loop and the renderer over a fixed
// triple buffer. The producer fills one slot while the consumer reads
// the last published one; neither side blocks or allocates.
type SnapshotPool struct {
	snapshots [3]CitySnapshot
	limits    ResourceLimits
	writeIdx  atomic.Uint32
	readIdx   atomic.Uint32
	sequence  atomic.Uint64
}

// NewSnapshotPool reserves every slot's slice capacity up front. The
// limits are all the capacity those slices ever get.
func NewSnapshotPool(limits ResourceLimits) *SnapshotPool {
	pool := &SnapshotPool{limits: limits}

	for i := 0; i < 3; i++ {
		pool.snapshots[i] = CitySnapshot{
			Buildings:   make([]BuildingSnapshot, 0, limits.MaxBuildings),
			Particles:   make([]ParticleSnapshot, 0, limits.MaxParticles),
			Connections: make([]SynergyConnection, 0, limits.MaxConnections),
		}
	}

	return pool
}

// AcquireWrite hands out the next slot with slices emptied but their
// capacity kept. Producer side only, called from the tick.
func (p *SnapshotPool) AcquireWrite() *CitySnapshot {
	idx := p.writeIdx.Add(1) % 3
	snap := &p.snapshots[idx]

	snap.Buildings = snap.Buildings[:0]
	snap.Particles = snap.Particles[:0]
	snap.Connections = snap.Connections[:0]

	snap.Sequence = p.sequence.Add(1)
	snap.Timestamp = time.Now()

	return snap
}

// PublishWrite makes the just-filled slot the one readers see. Call it
// only once the snapshot is complete.
func (p *SnapshotPool) PublishWrite() {
	p.readIdx.Store(p.writeIdx.Load())
}

// AcquireRead gets the latest complete snapshot (consumer only)
// The first read before any publish returns the zero snapshot
func (p *SnapshotPool) AcquireRead() *CitySnapshot {
	return &p.snapshots[p.readIdx.Load()%3]
}

// GetLimits reports the caps this pool was built with.
func (p *SnapshotPool) GetLimits() ResourceLimits {
	return p.limits
}
