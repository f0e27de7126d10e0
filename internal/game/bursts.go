package game

// BurstConfig describes one particle burst shape: how many particles,
// their type, palette, and motion envelope.
type BurstConfig struct {
	Count    int
	Type     ParticleType
	Colors   []string
	SizeMin  float64
	SizeMax  float64
	Speed    float64 // nominal px/s per particle
	Lifetime float64 // seconds per particle
	Spread   float64 // origin jitter radius in px
}

// SpawnBurst spawns one burst at (x, y) and returns how many particles
// actually activated; the pool cap may truncate large bursts.
func (p *ParticlePool) SpawnBurst(x, y float64, cfg BurstConfig) int {
	spawned := 0
	for i := 0; i < cfg.Count; i++ {
		px := x + (p.rng.Float64()-0.5)*2*cfg.Spread
		py := y + (p.rng.Float64()-0.5)*2*cfg.Spread
		size := cfg.SizeMin + p.rng.Float64()*(cfg.SizeMax-cfg.SizeMin)
		color := cfg.Colors[p.rng.Intn(len(cfg.Colors))]

		if p.Spawn(px, py, ParticleConfig{
			Type:     cfg.Type,
			Color:    color,
			Size:     size,
			Speed:    cfg.Speed,
			Lifetime: cfg.Lifetime,
		}) != nil {
			spawned++
		}
	}
	return spawned
}

// DefaultBurstConfigs maps each trigger type to its burst shape. The
// table is configuration, not engine logic; callers may swap it out.
func DefaultBurstConfigs() map[TriggerType]BurstConfig {
	return map[TriggerType]BurstConfig{
		TriggerYieldCollect: {
			Count:    12,
			Type:     ParticleCoin,
			Colors:   []string{"#fcd34d", "#fbbf24", "#f59e0b"},
			SizeMin:  3,
			SizeMax:  6,
			Speed:    90,
			Lifetime: 1.2,
			Spread:   8,
		},
		TriggerAchievement: {
			Count:    36,
			Type:     ParticleConfetti,
			Colors:   []string{"#f472b6", "#60a5fa", "#4ade80", "#facc15", "#c084fc"},
			SizeMin:  2,
			SizeMax:  5,
			Speed:    140,
			Lifetime: 1.8,
			Spread:   16,
		},
		TriggerRugPull: {
			Count:    24,
			Type:     ParticleWarning,
			Colors:   []string{"#ef4444", "#b91c1c", "#7f1d1d"},
			SizeMin:  3,
			SizeMax:  7,
			Speed:    120,
			Lifetime: 1.5,
			Spread:   20,
		},
		TriggerAirdrop: {
			Count:    18,
			Type:     ParticleSparkle,
			Colors:   []string{"#67e8f9", "#22d3ee", "#a5f3fc"},
			SizeMin:  2,
			SizeMax:  4,
			Speed:    70,
			Lifetime: 1.6,
			Spread:   12,
		},
	}
}

// RegisterDefaultBursts wires a burst handler for every trigger type in
// the table. Yield bursts scale slightly with the collected amount so
// big payouts read bigger on screen.
func RegisterDefaultBursts(pool *ParticlePool, configs map[TriggerType]BurstConfig) {
	for t, cfg := range configs {
		t, cfg := t, cfg
		pool.OnTrigger(t, func(ev TriggerEvent) {
			burst := cfg
			if t == TriggerYieldCollect && ev.Amount > 0 {
				extra := int(ev.Amount / 10)
				if extra > 12 {
					extra = 12
				}
				burst.Count += extra
			}
			pool.SpawnBurst(ev.X, ev.Y, burst)
		})
	}
}
