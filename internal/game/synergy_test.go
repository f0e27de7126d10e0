package game

import (
	"fmt"
	"math"
	"sort"
	"testing"
)

// synergyTestCatalog is a minimal catalog exercising every affinity
// shape: chain projector, category projector, receive-only buildings,
// and a building with no crypto block at all.
func synergyTestCatalog() *Catalog {
	return NewCatalog([]BuildingDefinition{
		{
			ID:       "alpha",
			Category: CategoryMining,
			Crypto: &CryptoTraits{
				Chain: "alphachain",
				Effects: &CryptoEffects{
					ZoneRadius:   5,
					ChainSynergy: []string{"betachain"},
				},
			},
		},
		{
			ID:       "beta",
			Category: CategoryMining,
			Crypto:   &CryptoTraits{Chain: "betachain"},
		},
		{
			ID:       "omega",
			Category: CategoryInfra,
			Crypto: &CryptoTraits{
				Chain: "omegachain",
				Effects: &CryptoEffects{
					ZoneRadius:   5,
					ChainSynergy: []string{"omegachain"},
				},
			},
		},
		{
			ID:       "defi-hall",
			Category: CategoryDeFi,
			Crypto: &CryptoTraits{
				Chain: "gammachain",
				Effects: &CryptoEffects{
					ZoneRadius:      4,
					CategorySynergy: []BuildingCategory{CategoryDeFi},
				},
			},
		},
		{
			ID:       "defi-annex",
			Category: CategoryDeFi,
			Crypto:   &CryptoTraits{Chain: "deltachain"},
		},
		{
			ID:       "plain-park",
			Category: CategoryDecor,
		},
	})
}

func newTestSynergyEngine() *SynergyEngine {
	// Threshold 0 keeps the direct O(n^2) path.
	return NewSynergyEngine(synergyTestCatalog(), 32, 0)
}

func placedAt(id, buildingID string, x, y int) *PlacedBuilding {
	return &PlacedBuilding{ID: id, BuildingID: buildingID, GridX: x, GridY: y}
}

// TestChainConnection verifies the single-connection chain case:
// radius 5, distance 3, strength 0.4
func TestChainConnection(t *testing.T) {
	e := newTestSynergyEngine()
	placed := []*PlacedBuilding{
		placedAt("a", "alpha", 0, 0),
		placedAt("b", "beta", 3, 0),
	}

	conns := e.Connections(placed, nil)
	if len(conns) != 1 {
		t.Fatalf("expected exactly 1 connection, got %d", len(conns))
	}

	c := conns[0]
	if c.Type != SynergyChain {
		t.Errorf("expected chain connection, got %q", c.Type)
	}
	if math.Abs(c.Strength-0.4) > 1e-12 {
		t.Errorf("expected strength 0.4, got %v", c.Strength)
	}
	if c.FromID != "a" || c.ToID != "b" {
		t.Errorf("expected connection a->b, got %s->%s", c.FromID, c.ToID)
	}
}

// TestPairDeduplication verifies mutually synergizing buildings yield
// one connection, not two
func TestPairDeduplication(t *testing.T) {
	e := newTestSynergyEngine()
	placed := []*PlacedBuilding{
		placedAt("o1", "omega", 0, 0),
		placedAt("o2", "omega", 2, 0),
	}

	conns := e.Connections(placed, nil)
	if len(conns) != 1 {
		t.Fatalf("expected 1 deduplicated connection, got %d", len(conns))
	}
	if math.Abs(conns[0].Strength-0.6) > 1e-12 {
		t.Errorf("expected strength 0.6, got %v", conns[0].Strength)
	}
}

// TestReverseDirectionStillMatches verifies a no-match in the first
// scan direction does not seal the pair before the reverse direction
// is evaluated
func TestReverseDirectionStillMatches(t *testing.T) {
	e := newTestSynergyEngine()
	// beta projects nothing, so the first visited direction (beta ->
	// alpha) finds no relationship; alpha -> beta must still connect.
	placed := []*PlacedBuilding{
		placedAt("b", "beta", 0, 0),
		placedAt("a", "alpha", 3, 0),
	}

	conns := e.Connections(placed, nil)
	if len(conns) != 1 {
		t.Fatalf("expected 1 connection from the reverse direction, got %d", len(conns))
	}
	if conns[0].FromID != "a" || conns[0].ToID != "b" {
		t.Errorf("expected connection a->b, got %s->%s", conns[0].FromID, conns[0].ToID)
	}
}

// TestZoneEdgeExcluded verifies distance == radius contributes nothing
func TestZoneEdgeExcluded(t *testing.T) {
	e := newTestSynergyEngine()

	tests := []struct {
		name string
		dist int
		want int
	}{
		{"inside zone", 4, 1},
		{"at zone edge", 5, 0},
		{"outside zone", 6, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			placed := []*PlacedBuilding{
				placedAt("a", "alpha", 0, 0),
				placedAt("b", "beta", tt.dist, 0),
			}
			if got := len(e.Connections(placed, nil)); got != tt.want {
				t.Errorf("distance %d: expected %d connections, got %d", tt.dist, tt.want, got)
			}
		})
	}
}

// TestChebyshevDistance verifies diagonal neighbors measure by the
// larger axis delta
func TestChebyshevDistance(t *testing.T) {
	e := newTestSynergyEngine()
	// (3,3) offset: Chebyshev 3, strength 0.4 against radius 5.
	placed := []*PlacedBuilding{
		placedAt("a", "alpha", 10, 10),
		placedAt("b", "beta", 13, 13),
	}

	conns := e.Connections(placed, nil)
	if len(conns) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(conns))
	}
	if math.Abs(conns[0].Strength-0.4) > 1e-12 {
		t.Errorf("expected strength 0.4 at Chebyshev distance 3, got %v", conns[0].Strength)
	}
}

// TestMissingMetadataSkipped verifies buildings without crypto effects
// or without a crypto block contribute nothing and nothing panics
func TestMissingMetadataSkipped(t *testing.T) {
	e := newTestSynergyEngine()
	placed := []*PlacedBuilding{
		placedAt("p1", "plain-park", 0, 0),
		placedAt("p2", "plain-park", 1, 0),
		placedAt("ghost", "no-such-id", 2, 0),
		placedAt("a", "alpha", 3, 0),
	}

	if conns := e.Connections(placed, nil); len(conns) != 0 {
		t.Errorf("expected no connections, got %d", len(conns))
	}
	if bonus := e.TotalBonus("plain-park", 0, 0, placed); bonus != 0 {
		t.Errorf("expected zero bonus for decorative building, got %v", bonus)
	}
	if bonus := e.TotalBonus("no-such-id", 5, 5, placed); bonus != 0 {
		t.Errorf("expected zero bonus for unknown building, got %v", bonus)
	}
}

// TestCategoryScenario runs the end-to-end category case: radius 4,
// distance 2, one category connection at strength 0.5 worth 1.5% to
// each endpoint
func TestCategoryScenario(t *testing.T) {
	e := newTestSynergyEngine()
	placed := []*PlacedBuilding{
		placedAt("x", "defi-hall", 10, 10),
		placedAt("y", "defi-annex", 12, 10),
	}

	conns := e.Connections(placed, nil)
	if len(conns) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(conns))
	}
	if conns[0].Type != SynergyCategory {
		t.Errorf("expected category connection, got %q", conns[0].Type)
	}
	if math.Abs(conns[0].Strength-0.5) > 1e-12 {
		t.Errorf("expected strength 0.5, got %v", conns[0].Strength)
	}

	if bonus := e.TotalBonus("defi-hall", 10, 10, placed); math.Abs(bonus-1.5) > 1e-9 {
		t.Errorf("expected 1.5%% for the projecting building, got %v", bonus)
	}
	if bonus := e.TotalBonus("defi-annex", 12, 10, placed); math.Abs(bonus-1.5) > 1e-9 {
		t.Errorf("expected 1.5%% for the receiving building, got %v", bonus)
	}
}

// TestChainPriorityOverCategory verifies a pair matching both
// affinities yields a single chain connection
func TestChainPriorityOverCategory(t *testing.T) {
	catalog := NewCatalog([]BuildingDefinition{
		{
			ID:       "dual",
			Category: CategoryDeFi,
			Crypto: &CryptoTraits{
				Chain: "dualchain",
				Effects: &CryptoEffects{
					ZoneRadius:      5,
					ChainSynergy:    []string{"dualchain"},
					CategorySynergy: []BuildingCategory{CategoryDeFi},
				},
			},
		},
	})
	e := NewSynergyEngine(catalog, 32, 0)
	placed := []*PlacedBuilding{
		placedAt("d1", "dual", 0, 0),
		placedAt("d2", "dual", 2, 0),
	}

	conns := e.Connections(placed, nil)
	if len(conns) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(conns))
	}
	if conns[0].Type != SynergyChain {
		t.Errorf("chain must win over category, got %q", conns[0].Type)
	}
}

// TestBonusCap verifies a dense mutually synergizing cluster caps at
// exactly 50
func TestBonusCap(t *testing.T) {
	e := newTestSynergyEngine()

	var placed []*PlacedBuilding
	for x := 3; x <= 7; x++ {
		for y := 3; y <= 7; y++ {
			placed = append(placed, placedAt(fmt.Sprintf("o-%d-%d", x, y), "omega", x, y))
		}
	}

	bonus := e.TotalBonus("omega", 5, 5, placed)
	if bonus != 50 {
		t.Errorf("expected bonus capped at exactly 50, got %v", bonus)
	}
}

// TestPreviewMatchesCommit verifies the placement preview computes the
// same bonus the committed placement reports
func TestPreviewMatchesCommit(t *testing.T) {
	e := newTestSynergyEngine()
	placed := []*PlacedBuilding{
		placedAt("x", "defi-hall", 10, 10),
	}

	preview := e.Preview("defi-annex", 11, 10, placed, nil)
	if len(preview.Connections) != 1 {
		t.Fatalf("expected 1 preview connection, got %d", len(preview.Connections))
	}
	if preview.Connections[0].Type != SynergyCategory {
		t.Errorf("expected category preview connection, got %q", preview.Connections[0].Type)
	}

	committed := append(placed, placedAt("y", "defi-annex", 11, 10))
	got := e.TotalBonus("defi-annex", 11, 10, committed)
	if math.Abs(preview.Bonus-got) > 1e-9 {
		t.Errorf("preview bonus %v should match committed bonus %v", preview.Bonus, got)
	}
}

// TestBuildingsWithStatus verifies the per-building summary flags
// synergized buildings and leaves isolated ones alone
func TestBuildingsWithStatus(t *testing.T) {
	e := newTestSynergyEngine()
	placed := []*PlacedBuilding{
		placedAt("a", "alpha", 0, 0),
		placedAt("b", "beta", 3, 0),
		placedAt("far", "omega", 30, 30),
	}

	statuses := e.BuildingsWithStatus(placed)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}

	byID := make(map[string]BuildingSynergyStatus, len(statuses))
	for _, s := range statuses {
		byID[s.ID] = s
	}
	if !byID["a"].HasSynergy || !byID["b"].HasSynergy {
		t.Error("connected pair should both report synergy")
	}
	if byID["far"].HasSynergy || byID["far"].Bonus != 0 {
		t.Error("isolated building should report no synergy")
	}
}

// TestConnectionProjection verifies screen coordinates come from the
// supplied projection
func TestConnectionProjection(t *testing.T) {
	e := newTestSynergyEngine()
	placed := []*PlacedBuilding{
		placedAt("a", "alpha", 1, 0),
		placedAt("b", "beta", 2, 0),
	}

	project := func(gx, gy int) (float64, float64) {
		return float64(gx * 10), float64(gy * 10)
	}
	conns := e.Connections(placed, project)
	if len(conns) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(conns))
	}
	if conns[0].FromX != 10 || conns[0].ToX != 20 {
		t.Errorf("expected projected xs 10 and 20, got %v and %v", conns[0].FromX, conns[0].ToX)
	}
}

// TestBucketedPathEquivalence verifies the spatial-bucket broad phase
// produces identical connections and bonuses to the direct scan
func TestBucketedPathEquivalence(t *testing.T) {
	catalog := synergyTestCatalog()
	direct := NewSynergyEngine(catalog, 32, 0)
	bucketed := NewSynergyEngine(catalog, 32, 1) // always bucket

	defIDs := []string{"alpha", "beta", "omega", "defi-hall", "defi-annex", "plain-park"}
	var placed []*PlacedBuilding
	i := 0
	for x := 0; x < 8; x++ {
		for y := 0; y < 5; y++ {
			placed = append(placed, placedAt(fmt.Sprintf("b%d", i), defIDs[i%len(defIDs)], x*3, y*4))
			i++
		}
	}

	key := func(c SynergyConnection) string {
		a, b := c.FromID, c.ToID
		if a > b {
			a, b = b, a
		}
		return fmt.Sprintf("%s|%s|%s|%.9f", a, b, c.Type, c.Strength)
	}

	directKeys := []string{}
	for _, c := range direct.Connections(placed, nil) {
		directKeys = append(directKeys, key(c))
	}
	bucketedKeys := []string{}
	for _, c := range bucketed.Connections(placed, nil) {
		bucketedKeys = append(bucketedKeys, key(c))
	}
	sort.Strings(directKeys)
	sort.Strings(bucketedKeys)

	if len(directKeys) != len(bucketedKeys) {
		t.Fatalf("connection count mismatch: direct %d, bucketed %d", len(directKeys), len(bucketedKeys))
	}
	for i := range directKeys {
		if directKeys[i] != bucketedKeys[i] {
			t.Errorf("connection %d differs: direct %s, bucketed %s", i, directKeys[i], bucketedKeys[i])
		}
	}

	for _, b := range placed {
		d := direct.TotalBonus(b.BuildingID, b.GridX, b.GridY, placed)
		g := bucketed.TotalBonus(b.BuildingID, b.GridX, b.GridY, placed)
		if math.Abs(d-g) > 1e-9 {
			t.Errorf("bonus mismatch for %s: direct %v, bucketed %v", b.ID, d, g)
		}
	}
}
