package game

import (
	"errors"
	"math/rand"

	"github.com/shopspring/decimal"
)

// ErrInsufficientFunds is returned when the treasury cannot cover a cost
var ErrInsufficientFunds = errors.New("insufficient funds")

const (
	// DefaultStartingTreasury seeds a new city's balance
	DefaultStartingTreasury = 1000

	// RemovalRefundRate is the fraction of base cost returned on demolish
	RemovalRefundRate = 0.5

	marketRollInterval  = 10.0 // Seconds between market event rolls
	marketEventCooldown = 45.0 // Quiet period after an event fires
	rugPullChance       = 0.10
	airdropChance       = 0.20
	rugPullRate         = 0.15 // Fraction of treasury lost to a rug pull
	airdropRate         = 0.08 // Fraction of treasury gained from an airdrop
	airdropFloor        = 25   // Minimum airdrop payout
)

// MarketEventKind classifies random market events
type MarketEventKind uint8

const (
	MarketNone MarketEventKind = iota
	MarketRugPull
	MarketAirdrop
)

// MarketEvent describes a random market swing resolved by the economy
type MarketEvent struct {
	Kind   MarketEventKind
	Target *PlacedBuilding // Rug pull victim, or the airdrop landing tile
	Amount decimal.Decimal // Positive magnitude, sign implied by Kind
}

// Economy tracks the city treasury and per-building uncollected yield.
// Not safe for concurrent use, the engine serializes access.
type Economy struct {
	treasury decimal.Decimal
	pending  map[string]decimal.Decimal // instance ID -> accrued yield
	earned   decimal.Decimal            // lifetime collected, for stats

	rng       *rand.Rand
	rollTimer float64 // Seconds until the next market roll
}

// NewEconomy creates an economy with the given starting treasury
func NewEconomy(starting decimal.Decimal, rng *rand.Rand) *Economy {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Economy{
		treasury:  starting,
		pending:   make(map[string]decimal.Decimal),
		rng:       rng,
		rollTimer: marketRollInterval,
	}
}

// Treasury returns the current balance
func (e *Economy) Treasury() decimal.Decimal {
	return e.treasury
}

// LifetimeEarned returns the total yield ever collected
func (e *Economy) LifetimeEarned() decimal.Decimal {
	return e.earned
}

// CanAfford reports whether the treasury covers cost
func (e *Economy) CanAfford(cost decimal.Decimal) bool {
	return e.treasury.GreaterThanOrEqual(cost)
}

// Debit removes cost from the treasury
func (e *Economy) Debit(cost decimal.Decimal) error {
	if !e.CanAfford(cost) {
		return ErrInsufficientFunds
	}
	e.treasury = e.treasury.Sub(cost)
	return nil
}

// Credit adds amount to the treasury
func (e *Economy) Credit(amount decimal.Decimal) {
	e.treasury = e.treasury.Add(amount)
}

// RemovalRefund returns the payout for demolishing a building
func RemovalRefund(def *BuildingDefinition) decimal.Decimal {
	return def.BaseCost.Mul(decimal.NewFromFloat(RemovalRefundRate))
}

// Accrue advances uncollected yield for every placed building.
// bonusPct returns the synergy bonus in percent for one building.
func (e *Economy) Accrue(placed []*PlacedBuilding, catalog *Catalog, bonusPct func(*PlacedBuilding) float64, dt float64) {
	if dt <= 0 {
		return
	}
	step := decimal.NewFromFloat(dt)
	for _, pb := range placed {
		def, ok := catalog.Get(pb.BuildingID)
		if !ok || !def.BaseYield.IsPositive() {
			continue
		}
		mult := decimal.NewFromFloat(1 + bonusPct(pb)/100)
		e.pending[pb.ID] = e.pending[pb.ID].Add(def.BaseYield.Mul(step).Mul(mult))
	}
}

// Pending returns the uncollected yield for one building
func (e *Economy) Pending(id string) decimal.Decimal {
	return e.pending[id]
}

// Collect moves one building's pending yield into the treasury and
// returns the amount, rounded to 2 places
func (e *Economy) Collect(id string) decimal.Decimal {
	amount := e.pending[id].Round(2)
	if !amount.IsPositive() {
		return decimal.Zero
	}
	delete(e.pending, id)
	e.treasury = e.treasury.Add(amount)
	e.earned = e.earned.Add(amount)
	return amount
}

// CollectAll sweeps every building's pending yield and returns the total
func (e *Economy) CollectAll() decimal.Decimal {
	total := decimal.Zero
	for id := range e.pending {
		total = total.Add(e.Collect(id))
	}
	return total
}

// Forget drops the pending yield of a removed building
func (e *Economy) Forget(id string) {
	delete(e.pending, id)
}

// PendingTotal returns the sum of all uncollected yield
func (e *Economy) PendingTotal() decimal.Decimal {
	total := decimal.Zero
	for _, amt := range e.pending {
		total = total.Add(amt)
	}
	return total
}

// RollMarket advances the market timer and occasionally resolves a
// rug pull or airdrop against the treasury. Returns nil most ticks.
func (e *Economy) RollMarket(dt float64, placed []*PlacedBuilding, catalog *Catalog) *MarketEvent {
	e.rollTimer -= dt
	if e.rollTimer > 0 {
		return nil
	}
	e.rollTimer = marketRollInterval

	p := e.rng.Float64()
	switch {
	case p < rugPullChance:
		ev := e.resolveRugPull(placed, catalog)
		if ev != nil {
			e.rollTimer = marketEventCooldown
		}
		return ev
	case p < rugPullChance+airdropChance:
		ev := e.resolveAirdrop(placed)
		if ev != nil {
			e.rollTimer = marketEventCooldown
		}
		return ev
	default:
		return nil
	}
}

// resolveRugPull drains part of the treasury and wipes the victim's
// pending yield. Only buildings carrying crypto traits can be rugged.
func (e *Economy) resolveRugPull(placed []*PlacedBuilding, catalog *Catalog) *MarketEvent {
	candidates := make([]*PlacedBuilding, 0, len(placed))
	for _, pb := range placed {
		if def, ok := catalog.Get(pb.BuildingID); ok && def.Crypto != nil {
			candidates = append(candidates, pb)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	victim := candidates[e.rng.Intn(len(candidates))]

	loss := e.treasury.Mul(decimal.NewFromFloat(rugPullRate)).Round(2)
	if !loss.IsPositive() {
		return nil
	}
	e.treasury = e.treasury.Sub(loss)
	delete(e.pending, victim.ID)

	return &MarketEvent{Kind: MarketRugPull, Target: victim, Amount: loss}
}

// resolveAirdrop credits a windfall, landing on a random tile for effect
func (e *Economy) resolveAirdrop(placed []*PlacedBuilding) *MarketEvent {
	amount := e.treasury.Mul(decimal.NewFromFloat(airdropRate)).Round(2)
	floor := decimal.NewFromInt(airdropFloor)
	if amount.LessThan(floor) {
		amount = floor
	}
	e.treasury = e.treasury.Add(amount)

	var target *PlacedBuilding
	if len(placed) > 0 {
		target = placed[e.rng.Intn(len(placed))]
	}
	return &MarketEvent{Kind: MarketAirdrop, Target: target, Amount: amount}
}
