package game

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultGridSize is the side length of a new city grid in tiles
const DefaultGridSize = 32

// defaultSynergyBucketThreshold is the building count above which the
// synergy engine switches to its bucketed broad phase
const defaultSynergyBucketThreshold = 64

// buildMilestones are the city sizes that earn an achievement
var buildMilestones = []struct {
	Count int
	Name  string
}{
	{1, "Genesis Block"},
	{10, "Testnet Town"},
	{25, "Mainnet Metropolis"},
	{50, "Whale Territory"},
}

// EngineConfig carries the knobs for a new engine
type EngineConfig struct {
	GridSize         int
	Catalog          *Catalog
	Limits           ResourceLimits
	StartingTreasury decimal.Decimal
	ParticleCapacity int
	BucketThreshold  int         // Synergy broad-phase cutoff, 0 keeps the full scan
	Seed             int64       // 0 means time-based
	Project          ProjectFunc // Grid to world projection for effects
}

// DefaultEngineConfig returns production defaults
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		GridSize:         DefaultGridSize,
		Limits:           DefaultLimits,
		StartingTreasury: decimal.NewFromInt(DefaultStartingTreasury),
		ParticleCapacity: DefaultMaxParticles,
		BucketThreshold:  defaultSynergyBucketThreshold,
	}
}

// Engine is the simulation core. It owns the grid, the economy, the
// synergy engine and the particle pool, and serializes all mutation
// behind one lock. It has no clock of its own, the render scheduler
// calls Advance once per frame.
type Engine struct {
	mu        sync.RWMutex
	grid      *CityGrid
	catalog   *Catalog
	synergy   *SynergyEngine
	economy   *Economy
	particles *ParticlePool

	project ProjectFunc

	// Synergy results cached per grid version so the accrual loop does
	// not rescan an unchanged city every frame
	bonusCache   map[string]float64
	connCache    []SynergyConnection
	bonusVersion uint64
	bonusValid   bool

	tickCount uint64

	achieved map[int]bool

	// Hard caps carried into every snapshot
	limits ResourceLimits

	// Triple-buffered snapshots decouple the renderer from the tick
	snapshotPool *SnapshotPool

	// Event log for the activity feed and audit trail
	eventLog *EventLog

	// Deterministic RNG shared by economy and particles
	rng *rand.Rand
}

// NewEngine creates a new city engine
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.GridSize <= 0 {
		cfg.GridSize = DefaultGridSize
	}
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog()
	}
	if cfg.Limits == (ResourceLimits{}) {
		cfg.Limits = DefaultLimits
	}
	if cfg.StartingTreasury.IsZero() {
		cfg.StartingTreasury = decimal.NewFromInt(DefaultStartingTreasury)
	}
	if cfg.ParticleCapacity <= 0 {
		cfg.ParticleCapacity = DefaultMaxParticles
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Project == nil {
		// Standard isometric diamond, kept in sync with the renderer
		// through the config wiring in cmd/server
		cfg.Project = func(gx, gy int) (float64, float64) {
			return float64(gx-gy) * 32, float64(gx+gy) * 16
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	pool := NewParticlePool(cfg.ParticleCapacity, rng)
	RegisterDefaultBursts(pool, DefaultBurstConfigs())

	return &Engine{
		grid:         NewCityGrid(cfg.GridSize, cfg.Catalog),
		catalog:      cfg.Catalog,
		synergy:      NewSynergyEngine(cfg.Catalog, cfg.GridSize, cfg.BucketThreshold),
		economy:      NewEconomy(cfg.StartingTreasury, rng),
		particles:    pool,
		project:      cfg.Project,
		bonusCache:   make(map[string]float64),
		achieved:     make(map[int]bool),
		limits:       cfg.Limits,
		snapshotPool: NewSnapshotPool(cfg.Limits),
		eventLog:     NewEventLog(),
		rng:          rng,
	}
}

// Advance runs one simulation step: yield accrual, market events,
// particle motion, then a fresh snapshot. Called from the frame loop.
func (e *Engine) Advance(dt float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tickCount++

	e.refreshSynergy()

	placed := e.grid.Placed()
	e.economy.Accrue(placed, e.catalog, e.cachedBonus, dt)

	if ev := e.economy.RollMarket(dt, placed, e.catalog); ev != nil {
		e.applyMarketEvent(ev)
	}

	e.particles.Update(dt)

	e.produceSnapshot()
}

// PlaceBuilding buys and places a building, returning the new instance
func (e *Engine) PlaceBuilding(buildingID string, x, y int) (*PlacedBuilding, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	def, ok := e.catalog.Get(buildingID)
	if !ok {
		return nil, ErrUnknownBuilding
	}
	if !e.economy.CanAfford(def.BaseCost) {
		return nil, ErrInsufficientFunds
	}

	pb, err := e.grid.Place(buildingID, x, y)
	if err != nil {
		return nil, err
	}
	e.economy.Debit(def.BaseCost)

	e.eventLog.EmitSimple(EventTypePlace, e.tickCount, pb.ID, PlacePayload{
		InstanceID: pb.ID,
		BuildingID: pb.BuildingID,
		GridX:      pb.GridX,
		GridY:      pb.GridY,
		Cost:       def.BaseCost,
		Treasury:   e.economy.Treasury(),
	})

	log.Printf("🏗️ Placed %s at (%d,%d) for %s", def.Name, x, y, def.BaseCost)

	e.checkMilestones()
	return pb, nil
}

// RemoveBuilding demolishes a building and refunds part of its cost
func (e *Engine) RemoveBuilding(id string) (*PlacedBuilding, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pb, err := e.grid.Remove(id)
	if err != nil {
		return nil, err
	}

	refund := decimal.Zero
	if def, ok := e.catalog.Get(pb.BuildingID); ok {
		refund = RemovalRefund(def)
		e.economy.Credit(refund)
	}
	e.economy.Forget(pb.ID)

	e.eventLog.EmitSimple(EventTypeRemove, e.tickCount, pb.ID, RemovePayload{
		InstanceID: pb.ID,
		BuildingID: pb.BuildingID,
		GridX:      pb.GridX,
		GridY:      pb.GridY,
		Refund:     refund,
	})

	log.Printf("🧨 Demolished %s at (%d,%d), refunded %s", pb.BuildingID, pb.GridX, pb.GridY, refund)
	return pb, nil
}

// CollectYield sweeps one building's pending yield into the treasury
func (e *Engine) CollectYield(id string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collectYield(id)
}

// CollectAllYield sweeps every building and returns the total collected
func (e *Engine) CollectAllYield() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := decimal.Zero
	for _, pb := range e.grid.Placed() {
		amount, err := e.collectYield(pb.ID)
		if err == nil {
			total = total.Add(amount)
		}
	}
	return total
}

// collectYield is the lock-free core of CollectYield
func (e *Engine) collectYield(id string) (decimal.Decimal, error) {
	pb := e.grid.Get(id)
	if pb == nil {
		return decimal.Zero, ErrNotFound
	}

	amount := e.economy.Collect(id)
	if !amount.IsPositive() {
		return decimal.Zero, nil
	}

	e.eventLog.EmitSimple(EventTypeCollect, e.tickCount, pb.ID, CollectPayload{
		InstanceID: pb.ID,
		BuildingID: pb.BuildingID,
		Amount:     amount,
		Treasury:   e.economy.Treasury(),
	})

	x, y := e.project(pb.GridX, pb.GridY)
	e.particles.Trigger(TriggerEvent{
		Type:       TriggerYieldCollect,
		X:          x,
		Y:          y,
		BuildingID: pb.ID,
		Amount:     amount.InexactFloat64(),
	})

	return amount, nil
}

// PlacementQuote is the answer to "what happens if I build here"
type PlacementQuote struct {
	BuildingID  string              `json:"buildingId"`
	GridX       int                 `json:"gridX"`
	GridY       int                 `json:"gridY"`
	Cost        decimal.Decimal     `json:"cost"`
	CanAfford   bool                `json:"canAfford"`
	Valid       bool                `json:"valid"`
	Connections []SynergyConnection `json:"connections"`
	Bonus       float64             `json:"bonus"`
}

// PreviewPlacement evaluates a hypothetical placement without mutating
// anything. Valid is false when the tile is out of bounds or occupied.
func (e *Engine) PreviewPlacement(buildingID string, x, y int) (*PlacementQuote, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	def, ok := e.catalog.Get(buildingID)
	if !ok {
		return nil, ErrUnknownBuilding
	}

	quote := &PlacementQuote{
		BuildingID: buildingID,
		GridX:      x,
		GridY:      y,
		Cost:       def.BaseCost,
		CanAfford:  e.economy.CanAfford(def.BaseCost),
		Valid:      e.grid.InBounds(x, y) && e.grid.BuildingAt(x, y) == nil,
	}
	if !quote.Valid {
		return quote, nil
	}

	preview := e.synergy.Preview(buildingID, x, y, e.grid.Placed(), e.project)
	quote.Connections = preview.Connections
	quote.Bonus = preview.Bonus
	return quote, nil
}

// refreshSynergy rebuilds the bonus cache when the grid changed
func (e *Engine) refreshSynergy() {
	version := e.grid.Version()
	if e.bonusValid && version == e.bonusVersion {
		return
	}

	placed := e.grid.Placed()
	e.connCache = e.synergy.Connections(placed, e.project)

	clear(e.bonusCache)
	for _, st := range e.synergy.BuildingsWithStatus(placed) {
		e.bonusCache[st.ID] = st.Bonus
	}

	e.bonusVersion = version
	e.bonusValid = true
}

// cachedBonus returns the synergy bonus percent for one building
func (e *Engine) cachedBonus(pb *PlacedBuilding) float64 {
	return e.bonusCache[pb.ID]
}

// applyMarketEvent turns a resolved market swing into events and effects
func (e *Engine) applyMarketEvent(ev *MarketEvent) {
	switch ev.Kind {
	case MarketRugPull:
		victim := ev.Target
		e.eventLog.EmitSimple(EventTypeRugPull, e.tickCount, victim.ID, RugPullPayload{
			InstanceID: victim.ID,
			BuildingID: victim.BuildingID,
			GridX:      victim.GridX,
			GridY:      victim.GridY,
			Loss:       ev.Amount,
		})
		x, y := e.project(victim.GridX, victim.GridY)
		e.particles.Trigger(TriggerEvent{
			Type:       TriggerRugPull,
			X:          x,
			Y:          y,
			BuildingID: victim.ID,
			Amount:     ev.Amount.InexactFloat64(),
		})
		log.Printf("💥 Rug pull at (%d,%d), treasury down %s", victim.GridX, victim.GridY, ev.Amount)

	case MarketAirdrop:
		gx, gy := e.grid.Size()/2, e.grid.Size()/2
		sourceID := ""
		if ev.Target != nil {
			gx, gy = ev.Target.GridX, ev.Target.GridY
			sourceID = ev.Target.ID
		}
		e.eventLog.EmitSimple(EventTypeAirdrop, e.tickCount, sourceID, AirdropPayload{
			Amount:   ev.Amount,
			Treasury: e.economy.Treasury(),
			GridX:    gx,
			GridY:    gy,
		})
		x, y := e.project(gx, gy)
		e.particles.Trigger(TriggerEvent{
			Type:   TriggerAirdrop,
			X:      x,
			Y:      y,
			Amount: ev.Amount.InexactFloat64(),
		})
		log.Printf("🪂 Airdrop of %s landed at (%d,%d)", ev.Amount, gx, gy)
	}
}

// checkMilestones fires achievements when the city crosses a size mark
func (e *Engine) checkMilestones() {
	count := e.grid.Count()
	for _, m := range buildMilestones {
		if count < m.Count || e.achieved[m.Count] {
			continue
		}
		e.achieved[m.Count] = true

		e.eventLog.EmitSimple(EventTypeAchievement, e.tickCount, "", AchievementPayload{
			Name:      m.Name,
			Buildings: count,
		})

		center := e.grid.Size() / 2
		x, y := e.project(center, center)
		e.particles.Trigger(TriggerEvent{Type: TriggerAchievement, X: x, Y: y})

		log.Printf("🏆 Achievement unlocked: %s (%d buildings)", m.Name, count)
	}
}

// produceSnapshot publishes an immutable snapshot of the current state.
// Caller holds the write lock.
func (e *Engine) produceSnapshot() {
	snap := e.snapshotPool.AcquireWrite()
	snap.TickNumber = e.tickCount
	snap.GridSize = e.grid.Size()
	snap.GridVersion = e.grid.Version()
	snap.Treasury = e.economy.Treasury()
	snap.PendingYield = e.economy.PendingTotal()
	snap.LifetimeEarned = e.economy.LifetimeEarned()
	snap.EventHead = e.eventLog.Head()

	// Copy buildings to snapshot (value types, immutable)
	for _, pb := range e.grid.Placed() {
		if len(snap.Buildings) >= e.limits.MaxBuildings {
			break
		}
		def, ok := e.catalog.Get(pb.BuildingID)
		if !ok {
			continue
		}
		sx, sy := e.project(pb.GridX, pb.GridY)
		chain := ""
		if def.Crypto != nil {
			chain = def.Crypto.Chain
		}
		snap.Buildings = append(snap.Buildings, BuildingSnapshot{
			ID:           pb.ID,
			BuildingID:   pb.BuildingID,
			Name:         def.Name,
			Category:     def.Category,
			Chain:        chain,
			Color:        def.Color,
			SpriteHeight: def.SpriteHeight,
			GridX:        pb.GridX,
			GridY:        pb.GridY,
			ScreenX:      sx,
			ScreenY:      sy,
			Bonus:        e.bonusCache[pb.ID],
			Pending:      e.economy.Pending(pb.ID),
		})
	}

	for _, p := range e.particles.Active() {
		if len(snap.Particles) >= e.limits.MaxParticles {
			break
		}
		snap.Particles = append(snap.Particles, ParticleSnapshot{
			X:        p.X,
			Y:        p.Y,
			Size:     p.Size,
			Rotation: p.Rotation,
			Opacity:  p.Opacity,
			Color:    p.Color,
			Type:     p.Type,
		})
	}

	for _, c := range e.connCache {
		if len(snap.Connections) >= e.limits.MaxConnections {
			break
		}
		snap.Connections = append(snap.Connections, c)
	}

	snap.BuildingCount = len(snap.Buildings)

	e.snapshotPool.PublishWrite()
}

// GetSnapshot returns the latest immutable snapshot for lock-free reads.
// This is the preferred method for the render loop and the API.
func (e *Engine) GetSnapshot() *CitySnapshot {
	return e.snapshotPool.AcquireRead()
}

// GetTreasury returns the current balance
func (e *Engine) GetTreasury() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.economy.Treasury()
}

// GetTickCount returns the number of completed simulation steps
func (e *Engine) GetTickCount() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tickCount
}

// GetGrid returns the city grid for hook registration and queries
func (e *Engine) GetGrid() *CityGrid {
	return e.grid
}

// GetCatalog returns the building catalog
func (e *Engine) GetCatalog() *Catalog {
	return e.catalog
}

// GetParticles returns the particle pool for trigger registration
func (e *Engine) GetParticles() *ParticlePool {
	return e.particles
}

// GetSynergy returns the synergy engine
func (e *Engine) GetSynergy() *SynergyEngine {
	return e.synergy
}

// GetEventLog returns the event log
func (e *Engine) GetEventLog() *EventLog {
	return e.eventLog
}

// StartEventLog opens the log's sink and starts its writer. An empty
// path keeps it memory-only.
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog flushes and closes the event log.
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// GetEventLogStats surfaces the log counters on the stats endpoint.
func (e *Engine) GetEventLogStats() map[string]interface{} {
	return e.eventLog.GetStats()
}

// GetLimits reports the snapshot resource caps.
func (e *Engine) GetLimits() ResourceLimits {
	return e.limits
}
