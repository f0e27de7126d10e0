package game

import (
	"math/rand"
	"testing"
)

func newTestPool(capacity int) *ParticlePool {
	return NewParticlePool(capacity, rand.New(rand.NewSource(1)))
}

// TestParticleOpacityCurve verifies opacity holds at 1.0 through 70% of
// lifetime, then fades strictly to zero
func TestParticleOpacityCurve(t *testing.T) {
	pool := newTestPool(10)

	// Power-of-two steps keep the lifetime sums exact.
	const dt = 0.125
	pt := pool.Spawn(0, 0, ParticleConfig{Type: ParticleSparkle, Lifetime: 2.0})
	if pt == nil {
		t.Fatal("Spawn returned nil with free capacity")
	}

	prev := 1.0
	for step := 1; step <= 16; step++ {
		pool.Update(dt)
		lifetime := dt * float64(step)

		if lifetime < 1.4 { // 70% of 2.0
			if pt.Opacity != 1.0 {
				t.Fatalf("opacity should be exactly 1.0 at lifetime %v, got %v", lifetime, pt.Opacity)
			}
			continue
		}
		if lifetime < 2.0 {
			if pt.Opacity >= prev {
				t.Fatalf("opacity should strictly decrease at lifetime %v: %v >= %v", lifetime, pt.Opacity, prev)
			}
			if pt.Opacity < 0 {
				t.Fatalf("opacity should not go negative, got %v", pt.Opacity)
			}
			prev = pt.Opacity
		}
	}

	if pt.Opacity > 0 {
		t.Errorf("expected opacity <= 0 at end of lifetime, got %v", pt.Opacity)
	}
	if pool.ActiveCount() != 0 {
		t.Errorf("expired particle should be recycled, active count %d", pool.ActiveCount())
	}
}

// TestSpawnBeyondCap verifies exhausted pools return nil without
// disturbing the active count
func TestSpawnBeyondCap(t *testing.T) {
	pool := newTestPool(3)
	cfg := ParticleConfig{Type: ParticleCoin, Lifetime: 5}

	for i := 0; i < 3; i++ {
		if pool.Spawn(0, 0, cfg) == nil {
			t.Fatalf("spawn %d should succeed within capacity", i)
		}
	}
	if pool.Spawn(0, 0, cfg) != nil {
		t.Error("spawn beyond capacity should return nil")
	}
	if pool.ActiveCount() != 3 {
		t.Errorf("active count should stay 3, got %d", pool.ActiveCount())
	}
}

// TestParticleRecycling verifies expired slots become spawnable again
func TestParticleRecycling(t *testing.T) {
	pool := newTestPool(2)
	cfg := ParticleConfig{Type: ParticleSparkle, Lifetime: 0.5}

	pool.Spawn(0, 0, cfg)
	pool.Spawn(0, 0, cfg)
	if pool.Spawn(0, 0, cfg) != nil {
		t.Fatal("pool should be exhausted")
	}

	pool.Update(1.0) // expire everything

	if pool.ActiveCount() != 0 {
		t.Fatalf("expected empty pool after expiry, got %d", pool.ActiveCount())
	}
	if pool.Spawn(0, 0, cfg) == nil {
		t.Error("recycled slot should be spawnable")
	}
}

// TestParticleClear verifies Clear returns everything to the pool
func TestParticleClear(t *testing.T) {
	pool := newTestPool(8)
	for i := 0; i < 5; i++ {
		pool.Spawn(0, 0, ParticleConfig{Type: ParticleConfetti, Lifetime: 10})
	}

	pool.Clear()
	if pool.ActiveCount() != 0 {
		t.Errorf("expected 0 active after clear, got %d", pool.ActiveCount())
	}
	if len(pool.Active()) != 0 {
		t.Error("Active should be empty after clear")
	}
	if pool.Spawn(0, 0, ParticleConfig{Lifetime: 1}) == nil {
		t.Error("pool should be spawnable after clear")
	}
}

// TestSpawnUpwardBias verifies bursts arc upward on average
func TestSpawnUpwardBias(t *testing.T) {
	pool := newTestPool(100)

	sum := 0.0
	for i := 0; i < 100; i++ {
		pt := pool.Spawn(0, 0, ParticleConfig{Type: ParticleCoin, Speed: 100, Lifetime: 1})
		sum += pt.VY
	}
	if sum >= 0 {
		t.Errorf("mean initial vy should be negative (upward), got %v", sum/100)
	}
}

// TestGravityByType verifies coins and warnings fall while sparkles drift
func TestGravityByType(t *testing.T) {
	pool := newTestPool(10)

	coin := pool.Spawn(0, 0, ParticleConfig{Type: ParticleCoin, Speed: 10, Lifetime: 10})
	warning := pool.Spawn(0, 0, ParticleConfig{Type: ParticleWarning, Speed: 10, Lifetime: 10})
	sparkle := pool.Spawn(0, 0, ParticleConfig{Type: ParticleSparkle, Speed: 10, Lifetime: 10})
	confetti := pool.Spawn(0, 0, ParticleConfig{Type: ParticleConfetti, Speed: 10, Lifetime: 10})

	coinVY := coin.VY
	warningVY := warning.VY
	sparkleVY := sparkle.VY
	confettiVY := confetti.VY

	pool.Update(0.1)

	if coin.VY <= coinVY {
		t.Error("coin should accelerate downward")
	}
	if warning.VY <= warningVY {
		t.Error("warning should accelerate downward")
	}
	if sparkle.VY != sparkleVY {
		t.Error("sparkle should not feel gravity")
	}
	if confetti.VY != confettiVY {
		t.Error("confetti should not feel gravity")
	}
}

// TestSpawnBurstTruncatedByCap verifies oversized bursts stop at the
// pool ceiling
func TestSpawnBurstTruncatedByCap(t *testing.T) {
	pool := newTestPool(10)

	spawned := pool.SpawnBurst(50, 50, BurstConfig{
		Count:    25,
		Type:     ParticleConfetti,
		Colors:   []string{"#ffffff"},
		SizeMin:  2,
		SizeMax:  4,
		Speed:    100,
		Lifetime: 1,
	})

	if spawned != 10 {
		t.Errorf("expected 10 spawned from a 25 burst into capacity 10, got %d", spawned)
	}
	if pool.ActiveCount() != 10 {
		t.Errorf("expected 10 active, got %d", pool.ActiveCount())
	}
}

// TestTriggerDispatch verifies handlers fire for their type only, in
// registration order
func TestTriggerDispatch(t *testing.T) {
	pool := newTestPool(10)

	var order []string
	pool.OnTrigger(TriggerYieldCollect, func(ev TriggerEvent) {
		order = append(order, "first")
	})
	pool.OnTrigger(TriggerYieldCollect, func(ev TriggerEvent) {
		order = append(order, "second")
	})
	pool.OnTrigger(TriggerRugPull, func(ev TriggerEvent) {
		order = append(order, "rug")
	})

	pool.Trigger(TriggerEvent{Type: TriggerYieldCollect, X: 1, Y: 2})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("expected [first second], got %v", order)
	}

	// Unhandled types are dropped silently.
	pool.Trigger(TriggerEvent{Type: TriggerAirdrop})
	if len(order) != 2 {
		t.Error("unrelated trigger should not invoke handlers")
	}
}

// TestDefaultBurstsSpawn verifies the default wiring turns triggers
// into particles of the mapped type
func TestDefaultBurstsSpawn(t *testing.T) {
	pool := newTestPool(200)
	RegisterDefaultBursts(pool, DefaultBurstConfigs())

	pool.Trigger(TriggerEvent{Type: TriggerYieldCollect, X: 100, Y: 100, Amount: 42})

	active := pool.Active()
	if len(active) == 0 {
		t.Fatal("yield-collect trigger should spawn particles")
	}
	for _, pt := range active {
		if pt.Type != ParticleCoin {
			t.Errorf("yield burst should spawn coins, got %v", pt.Type)
		}
	}

	pool.Clear()
	pool.Trigger(TriggerEvent{Type: TriggerRugPull, X: 0, Y: 0})
	for _, pt := range pool.Active() {
		if pt.Type != ParticleWarning {
			t.Errorf("rug-pull burst should spawn warnings, got %v", pt.Type)
		}
	}
}
