package game

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := DefaultEngineConfig()
	cfg.Seed = 42
	e := NewEngine(cfg)
	if err := e.StartEventLog(""); err != nil {
		t.Fatalf("start event log: %v", err)
	}
	t.Cleanup(e.StopEventLog)
	return e
}

// TestPlaceBuildingDebitsTreasury verifies cost handling and the audit trail
func TestPlaceBuildingDebitsTreasury(t *testing.T) {
	e := newTestEngine(t)

	pb, err := e.PlaceBuilding("btc-mine", 5, 5)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if pb.GridX != 5 || pb.GridY != 5 {
		t.Errorf("expected placement at (5,5), got (%d,%d)", pb.GridX, pb.GridY)
	}

	want := decimal.NewFromInt(880) // 1000 - 120
	if got := e.GetTreasury(); !got.Equal(want) {
		t.Errorf("expected treasury %s, got %s", want, got)
	}

	// First building also unlocks the first milestone
	events := e.GetEventLog().EventsSince(0, 0)
	if len(events) != 2 {
		t.Fatalf("expected 2 events (place + achievement), got %d", len(events))
	}
	if events[0].Type != EventTypePlace || events[1].Type != EventTypeAchievement {
		t.Errorf("unexpected event types: %v, %v", events[0].Type, events[1].Type)
	}
}

// TestPlaceBuildingInsufficientFunds verifies the treasury gate
func TestPlaceBuildingInsufficientFunds(t *testing.T) {
	e := newTestEngine(t)

	// Two bridges fit the starting 1000, the third does not
	if _, err := e.PlaceBuilding("bridge-hub", 0, 0); err != nil {
		t.Fatalf("first place: %v", err)
	}
	if _, err := e.PlaceBuilding("bridge-hub", 10, 10); err != nil {
		t.Fatalf("second place: %v", err)
	}
	_, err := e.PlaceBuilding("bridge-hub", 20, 20)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := e.GetGrid().Count(); got != 2 {
		t.Errorf("expected 2 buildings after failed place, got %d", got)
	}
}

// TestRemoveBuildingRefundsHalf verifies the demolish refund
func TestRemoveBuildingRefundsHalf(t *testing.T) {
	e := newTestEngine(t)

	pb, err := e.PlaceBuilding("btc-mine", 5, 5)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, err := e.RemoveBuilding(pb.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	want := decimal.NewFromInt(940) // 1000 - 120 + 60
	if got := e.GetTreasury(); !got.Equal(want) {
		t.Errorf("expected treasury %s, got %s", want, got)
	}
	if got := e.GetGrid().Count(); got != 0 {
		t.Errorf("expected empty grid, got %d buildings", got)
	}

	if _, err := e.RemoveBuilding(pb.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on double remove, got %v", err)
	}
}

// TestAccrualAndCollect verifies yield flows from buildings to the treasury
func TestAccrualAndCollect(t *testing.T) {
	e := newTestEngine(t)

	pb, err := e.PlaceBuilding("btc-mine", 10, 10) // 0.8 per second
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	for i := 0; i < 5; i++ {
		e.Advance(1.0)
	}

	amount, err := e.CollectYield(pb.ID)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if want := decimal.NewFromInt(4); !amount.Equal(want) {
		t.Errorf("expected collected %s, got %s", want, amount)
	}
	if want := decimal.NewFromInt(884); !e.GetTreasury().Equal(want) {
		t.Errorf("expected treasury %s, got %s", want, e.GetTreasury())
	}

	// Collecting fires a coin burst at the building's tile
	if got := e.GetParticles().ActiveCount(); got == 0 {
		t.Error("expected coin particles after collect")
	}

	// A second collect with nothing pending is a no-op
	amount, err = e.CollectYield(pb.ID)
	if err != nil || !amount.IsZero() {
		t.Errorf("expected zero second collect, got %s, %v", amount, err)
	}
}

// TestSynergyBoostsAccrual verifies the bonus multiplier reaches the economy
func TestSynergyBoostsAccrual(t *testing.T) {
	e := newTestEngine(t)

	a, err := e.PlaceBuilding("btc-mine", 5, 5)
	if err != nil {
		t.Fatalf("place a: %v", err)
	}
	if _, err := e.PlaceBuilding("btc-mine", 6, 5); err != nil {
		t.Fatalf("place b: %v", err)
	}

	e.Advance(1.0)

	// Adjacent bitcoin pair: chain strength 0.8, 4% bonus each, so one
	// second accrues 0.8 * 1.04 = 0.832
	snap := e.GetSnapshot()
	var pending float64
	for _, b := range snap.Buildings {
		if b.ID == a.ID {
			pending = b.Pending.InexactFloat64()
		}
	}
	if math.Abs(pending-0.832) > 1e-9 {
		t.Errorf("expected pending 0.832, got %v", pending)
	}
	if len(snap.Connections) != 1 {
		t.Errorf("expected 1 synergy connection in snapshot, got %d", len(snap.Connections))
	}
}

// TestMilestonesUnlockOnce verifies achievement events fire at size marks
func TestMilestonesUnlockOnce(t *testing.T) {
	e := newTestEngine(t)

	for i := 0; i < 10; i++ {
		if _, err := e.PlaceBuilding("satoshi-park", i, 0); err != nil {
			t.Fatalf("place %d: %v", i, err)
		}
	}

	achievements := 0
	for _, ev := range e.GetEventLog().EventsSince(0, 0) {
		if ev.Type == EventTypeAchievement {
			achievements++
		}
	}
	if achievements != 2 {
		t.Errorf("expected 2 achievements (1 and 10 buildings), got %d", achievements)
	}
}

// TestPreviewPlacement verifies the hypothetical quote without mutation
func TestPreviewPlacement(t *testing.T) {
	e := newTestEngine(t)

	if _, err := e.PlaceBuilding("btc-mine", 5, 5); err != nil {
		t.Fatalf("place: %v", err)
	}
	version := e.GetGrid().Version()

	quote, err := e.PreviewPlacement("btc-mine", 6, 5)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !quote.Valid || !quote.CanAfford {
		t.Fatalf("expected valid affordable quote, got %+v", quote)
	}
	if len(quote.Connections) != 1 {
		t.Errorf("expected 1 previewed connection, got %d", len(quote.Connections))
	}
	if math.Abs(quote.Bonus-4.0) > 1e-9 {
		t.Errorf("expected previewed bonus 4%%, got %v", quote.Bonus)
	}

	// Occupied tile is invalid but not an error
	quote, err = e.PreviewPlacement("btc-mine", 5, 5)
	if err != nil || quote.Valid {
		t.Errorf("expected invalid quote on occupied tile, got %+v, %v", quote, err)
	}

	if _, err := e.PreviewPlacement("no-such-building", 0, 0); !errors.Is(err, ErrUnknownBuilding) {
		t.Errorf("expected ErrUnknownBuilding, got %v", err)
	}

	if e.GetGrid().Version() != version {
		t.Error("preview must not bump the grid version")
	}
}

// TestSnapshotPublishes verifies the triple buffer carries fresh state
func TestSnapshotPublishes(t *testing.T) {
	e := newTestEngine(t)

	if _, err := e.PlaceBuilding("btc-mine", 3, 1); err != nil {
		t.Fatalf("place: %v", err)
	}
	e.Advance(0.5)

	snap := e.GetSnapshot()
	if snap.TickNumber != 1 {
		t.Errorf("expected tick 1, got %d", snap.TickNumber)
	}
	if snap.BuildingCount != 1 || len(snap.Buildings) != 1 {
		t.Fatalf("expected 1 building in snapshot, got %d", snap.BuildingCount)
	}

	b := snap.Buildings[0]
	if b.ScreenX != 64 || b.ScreenY != 64 {
		t.Errorf("expected projected (64,64), got (%v,%v)", b.ScreenX, b.ScreenY)
	}
	if b.Name != "BTC Mining Rig" || b.Chain != "bitcoin" {
		t.Errorf("snapshot lost catalogue data: %+v", b)
	}
	if want := decimal.NewFromInt(880); !snap.Treasury.Equal(want) {
		t.Errorf("expected snapshot treasury %s, got %s", want, snap.Treasury)
	}

	// Achievement confetti from the first placement shows up too
	if len(snap.Particles) == 0 {
		t.Error("expected particles in snapshot after first milestone")
	}
}
