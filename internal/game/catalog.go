package game

import (
	"github.com/shopspring/decimal"
)

// BuildingCategory groups catalogue entries for category synergy.
type BuildingCategory string

const (
	CategoryMining      BuildingCategory = "mining"
	CategoryDeFi        BuildingCategory = "defi"
	CategoryExchange    BuildingCategory = "exchange"
	CategoryInfra       BuildingCategory = "infrastructure"
	CategoryResidential BuildingCategory = "residential"
	CategoryDecor       BuildingCategory = "decor"
)

// CryptoEffects defines how a building projects synergy onto its
// neighbors. ZoneRadius is in grid cells (Chebyshev); zero means the
// engine default applies.
type CryptoEffects struct {
	ZoneRadius      int                `json:"zoneRadius"`
	ChainSynergy    []string           `json:"chainSynergy,omitempty"`
	CategorySynergy []BuildingCategory `json:"categorySynergy,omitempty"`
}

// CryptoTraits is the crypto identity of a catalogue entry. Effects is
// nil for buildings that receive synergy but never project it.
type CryptoTraits struct {
	Chain   string         `json:"chain,omitempty"`
	Effects *CryptoEffects `json:"effects,omitempty"`
}

// BuildingDefinition is one catalogue entry. Crypto is nil for purely
// decorative buildings, which take no part in synergy at all.
type BuildingDefinition struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Category  BuildingCategory `json:"category"`
	BaseCost  decimal.Decimal  `json:"baseCost"`
	BaseYield decimal.Decimal  `json:"baseYield"` // coins per second before bonuses
	Crypto    *CryptoTraits    `json:"crypto,omitempty"`

	// Sprite parameters for the painter.
	Color        string `json:"color"`
	SpriteHeight int    `json:"spriteHeight"` // pixels above the tile at zoom 1
}

// Catalog resolves building definitions by id. Read-only after
// construction, so it is safe to share across goroutines.
type Catalog struct {
	defs  map[string]*BuildingDefinition
	order []string
}

// NewCatalog builds a catalog from a definition list. Later duplicates
// of an id replace earlier ones.
func NewCatalog(defs []BuildingDefinition) *Catalog {
	c := &Catalog{
		defs:  make(map[string]*BuildingDefinition, len(defs)),
		order: make([]string, 0, len(defs)),
	}
	for i := range defs {
		def := defs[i]
		if _, exists := c.defs[def.ID]; !exists {
			c.order = append(c.order, def.ID)
		}
		c.defs[def.ID] = &def
	}
	return c
}

// Get returns the definition for an id.
func (c *Catalog) Get(id string) (*BuildingDefinition, bool) {
	def, ok := c.defs[id]
	return def, ok
}

// All returns definitions in catalogue order.
func (c *Catalog) All() []*BuildingDefinition {
	out := make([]*BuildingDefinition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.defs[id])
	}
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.defs)
}

// MaxZoneRadius returns the largest zone radius any entry projects,
// used to size spatial buckets. Entries without effects contribute the
// engine default so previews of future catalogue entries stay covered.
func (c *Catalog) MaxZoneRadius(fallback int) int {
	maxRadius := fallback
	for _, def := range c.defs {
		if def.Crypto == nil || def.Crypto.Effects == nil {
			continue
		}
		if r := def.Crypto.Effects.ZoneRadius; r > maxRadius {
			maxRadius = r
		}
	}
	if maxRadius < 1 {
		maxRadius = 1
	}
	return maxRadius
}

// DefaultCatalog is the built-in building set. Balance numbers live
// here, not in the engine; the engine only reads them.
func DefaultCatalog() *Catalog {
	return NewCatalog([]BuildingDefinition{
		{
			ID:        "btc-mine",
			Name:      "BTC Mining Rig",
			Category:  CategoryMining,
			BaseCost:  decimal.NewFromInt(120),
			BaseYield: decimal.RequireFromString("0.8"),
			Crypto: &CryptoTraits{
				Chain: "bitcoin",
				Effects: &CryptoEffects{
					ZoneRadius:      5,
					ChainSynergy:    []string{"bitcoin"},
					CategorySynergy: []BuildingCategory{CategoryMining},
				},
			},
			Color:        "#f7931a",
			SpriteHeight: 40,
		},
		{
			ID:        "mining-pool",
			Name:      "Mining Pool Hub",
			Category:  CategoryMining,
			BaseCost:  decimal.NewFromInt(210),
			BaseYield: decimal.RequireFromString("1.3"),
			Crypto: &CryptoTraits{
				Chain: "bitcoin",
				Effects: &CryptoEffects{
					ZoneRadius:      5,
					ChainSynergy:    []string{"bitcoin"},
					CategorySynergy: []BuildingCategory{CategoryMining},
				},
			},
			Color:        "#f59e0b",
			SpriteHeight: 48,
		},
		{
			ID:        "eth-validator",
			Name:      "ETH Validator Node",
			Category:  CategoryInfra,
			BaseCost:  decimal.NewFromInt(150),
			BaseYield: decimal.RequireFromString("1.0"),
			Crypto: &CryptoTraits{
				Chain: "ethereum",
				Effects: &CryptoEffects{
					ZoneRadius:      5,
					ChainSynergy:    []string{"ethereum"},
					CategorySynergy: []BuildingCategory{CategoryInfra, CategoryDeFi},
				},
			},
			Color:        "#627eea",
			SpriteHeight: 52,
		},
		{
			ID:        "dex-pavilion",
			Name:      "DEX Pavilion",
			Category:  CategoryDeFi,
			BaseCost:  decimal.NewFromInt(200),
			BaseYield: decimal.RequireFromString("1.5"),
			Crypto: &CryptoTraits{
				Chain: "ethereum",
				Effects: &CryptoEffects{
					ZoneRadius:      4,
					ChainSynergy:    []string{"ethereum"},
					CategorySynergy: []BuildingCategory{CategoryDeFi},
				},
			},
			Color:        "#ff007a",
			SpriteHeight: 64,
		},
		{
			ID:        "yield-farm",
			Name:      "Yield Farm",
			Category:  CategoryDeFi,
			BaseCost:  decimal.NewFromInt(90),
			BaseYield: decimal.RequireFromString("0.6"),
			Crypto: &CryptoTraits{
				Chain: "ethereum",
				Effects: &CryptoEffects{
					ZoneRadius:      4,
					CategorySynergy: []BuildingCategory{CategoryDeFi},
				},
			},
			Color:        "#34d399",
			SpriteHeight: 28,
		},
		{
			ID:        "stable-reserve",
			Name:      "Stablecoin Reserve",
			Category:  CategoryExchange,
			BaseCost:  decimal.NewFromInt(260),
			BaseYield: decimal.RequireFromString("1.2"),
			Crypto: &CryptoTraits{
				Chain: "ethereum",
				Effects: &CryptoEffects{
					ZoneRadius:      6,
					CategorySynergy: []BuildingCategory{CategoryExchange, CategoryDeFi},
				},
			},
			Color:        "#2775ca",
			SpriteHeight: 56,
		},
		{
			ID:        "sol-beacon",
			Name:      "SOL Beacon",
			Category:  CategoryInfra,
			BaseCost:  decimal.NewFromInt(180),
			BaseYield: decimal.RequireFromString("1.1"),
			Crypto: &CryptoTraits{
				Chain: "solana",
				Effects: &CryptoEffects{
					ZoneRadius:      5,
					ChainSynergy:    []string{"solana"},
					CategorySynergy: []BuildingCategory{CategoryInfra},
				},
			},
			Color:        "#9945ff",
			SpriteHeight: 60,
		},
		{
			ID:        "meme-casino",
			Name:      "Meme Casino",
			Category:  CategoryExchange,
			BaseCost:  decimal.NewFromInt(170),
			BaseYield: decimal.RequireFromString("1.8"),
			Crypto: &CryptoTraits{
				Chain: "solana",
				Effects: &CryptoEffects{
					ZoneRadius:      3,
					CategorySynergy: []BuildingCategory{CategoryExchange},
				},
			},
			Color:        "#fb7185",
			SpriteHeight: 50,
		},
		{
			ID:        "bridge-hub",
			Name:      "Cross-Chain Bridge",
			Category:  CategoryInfra,
			BaseCost:  decimal.NewFromInt(400),
			BaseYield: decimal.RequireFromString("0.9"),
			Crypto: &CryptoTraits{
				Effects: &CryptoEffects{
					ZoneRadius:   6,
					ChainSynergy: []string{"bitcoin", "ethereum", "solana"},
				},
			},
			Color:        "#38bdf8",
			SpriteHeight: 44,
		},
		{
			ID:        "hodl-tower",
			Name:      "HODL Tower",
			Category:  CategoryResidential,
			BaseCost:  decimal.NewFromInt(320),
			BaseYield: decimal.RequireFromString("1.6"),
			// Receives bitcoin chain synergy but projects nothing.
			Crypto:       &CryptoTraits{Chain: "bitcoin"},
			Color:        "#fbbf24",
			SpriteHeight: 96,
		},
		{
			ID:           "nft-gallery",
			Name:         "NFT Gallery",
			Category:     CategoryDecor,
			BaseCost:     decimal.NewFromInt(140),
			BaseYield:    decimal.RequireFromString("0.4"),
			Crypto:       &CryptoTraits{Chain: "ethereum"},
			Color:        "#a78bfa",
			SpriteHeight: 36,
		},
		{
			ID:           "satoshi-park",
			Name:         "Satoshi Park",
			Category:     CategoryDecor,
			BaseCost:     decimal.NewFromInt(40),
			BaseYield:    decimal.Zero,
			Color:        "#4ade80",
			SpriteHeight: 12,
		},
	})
}
