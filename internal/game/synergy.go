package game

import (
	"cryptopolis/internal/game/spatial"
)

const (
	// DefaultZoneRadius applies when a building's effects omit one.
	DefaultZoneRadius = 5

	// chainSynergyWeight and categorySynergyWeight are the bonus
	// fractions per unit strength. Chain affinity pays more than
	// category affinity.
	chainSynergyWeight    = 0.05
	categorySynergyWeight = 0.03

	// maxSynergyBonus is the hard per-building ceiling, as a fraction.
	maxSynergyBonus = 0.5
)

// SynergyType classifies a connection.
type SynergyType string

const (
	SynergyChain    SynergyType = "chain"
	SynergyCategory SynergyType = "category"
)

// SynergyConnection links two placed buildings that boost each other.
// Ephemeral: recomputed on every query, never persisted. The world
// screen coordinates come from the projection passed to Connections so
// the overlay renderer can draw without re-projecting.
type SynergyConnection struct {
	FromID   string      `json:"fromId"`
	ToID     string      `json:"toId"`
	FromGX   int         `json:"fromGx"`
	FromGY   int         `json:"fromGy"`
	ToGX     int         `json:"toGx"`
	ToGY     int         `json:"toGy"`
	FromX    float64     `json:"fromX"`
	FromY    float64     `json:"fromY"`
	ToX      float64     `json:"toX"`
	ToY      float64     `json:"toY"`
	Type     SynergyType `json:"type"`
	Strength float64     `json:"strength"`
}

// BuildingSynergyStatus is the per-building synergy summary consumed
// by glow rendering and tooltips.
type BuildingSynergyStatus struct {
	ID         string  `json:"id"`
	BuildingID string  `json:"buildingId"`
	GridX      int     `json:"gridX"`
	GridY      int     `json:"gridY"`
	Bonus      float64 `json:"bonus"` // percent, 0-50
	HasSynergy bool    `json:"hasSynergy"`
}

// PlacementPreview is the synergy outcome of a hypothetical placement,
// computed with the same logic as the committed calculation.
type PlacementPreview struct {
	Connections []SynergyConnection `json:"connections"`
	Bonus       float64             `json:"bonus"` // percent, 0-50
}

// ProjectFunc converts grid coordinates to world screen coordinates.
// The synergy engine treats it as a pure function dependency.
type ProjectFunc func(gx, gy int) (float64, float64)

// SynergyEngine computes pairwise bonus relationships between placed
// buildings from chain/category affinity and Chebyshev distance.
//
// The scan is O(n^2) over placed buildings, which is fine at city
// scale. Above bucketThreshold buildings it switches to a spatial
// bucket index with identical results.
type SynergyEngine struct {
	catalog         *Catalog
	gridSize        int
	bucketThreshold int

	buckets    *spatial.BucketGrid
	bucketCell int
}

// NewSynergyEngine creates an engine over the given catalog. A
// bucketThreshold of 0 disables the bucket path entirely.
func NewSynergyEngine(catalog *Catalog, gridSize, bucketThreshold int) *SynergyEngine {
	return &SynergyEngine{
		catalog:         catalog,
		gridSize:        gridSize,
		bucketThreshold: bucketThreshold,
		bucketCell:      catalog.MaxZoneRadius(DefaultZoneRadius),
	}
}

// pairKey identifies an unordered building pair.
type pairKey struct {
	a, b string
}

func makePairKey(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

func chebyshev(dx, dy int) int {
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

func contribution(typ SynergyType, strength float64) float64 {
	if typ == SynergyChain {
		return chainSynergyWeight * strength
	}
	return categorySynergyWeight * strength
}

// sourceRadius returns the zone radius src projects, or 0 if src
// projects no synergy at all.
func (e *SynergyEngine) sourceRadius(src *PlacedBuilding) int {
	def, ok := e.catalog.Get(src.BuildingID)
	if !ok || def.Crypto == nil || def.Crypto.Effects == nil {
		return 0
	}
	radius := def.Crypto.Effects.ZoneRadius
	if radius <= 0 {
		radius = DefaultZoneRadius
	}
	return radius
}

// evaluatePair classifies the relationship src projects onto dst.
// Chain affinity is checked before category affinity and wins; a pair
// yields at most one relationship per direction. Buildings without
// effects never act as source; buildings without a crypto block never
// act as target.
func (e *SynergyEngine) evaluatePair(src, dst *PlacedBuilding) (SynergyType, float64, bool) {
	srcDef, ok := e.catalog.Get(src.BuildingID)
	if !ok || srcDef.Crypto == nil || srcDef.Crypto.Effects == nil {
		return "", 0, false
	}
	dstDef, ok := e.catalog.Get(dst.BuildingID)
	if !ok || dstDef.Crypto == nil {
		return "", 0, false
	}

	eff := srcDef.Crypto.Effects
	radius := eff.ZoneRadius
	if radius <= 0 {
		radius = DefaultZoneRadius
	}

	dist := chebyshev(src.GridX-dst.GridX, src.GridY-dst.GridY)
	if dist > radius {
		return "", 0, false
	}
	strength := 1 - float64(dist)/float64(radius)
	if strength <= 0 {
		// Exactly at the zone edge: in range but contributing nothing.
		return "", 0, false
	}

	if dstDef.Crypto.Chain != "" {
		for _, chain := range eff.ChainSynergy {
			if chain == dstDef.Crypto.Chain {
				return SynergyChain, strength, true
			}
		}
	}
	for _, cat := range eff.CategorySynergy {
		if cat == dstDef.Category {
			return SynergyCategory, strength, true
		}
	}
	return "", 0, false
}

// Connections computes the deduplicated connection list for the placed
// set. Each unordered pair appears at most once: the scan visits both
// directions, but a pair is sealed only once a connection lands, so a
// no-match in one direction still lets the reverse direction match.
func (e *SynergyEngine) Connections(placed []*PlacedBuilding, project ProjectFunc) []SynergyConnection {
	if len(placed) < 2 {
		return nil
	}
	if e.bucketThreshold > 0 && len(placed) >= e.bucketThreshold {
		return e.connectionsBucketed(placed, project)
	}

	conns := make([]SynergyConnection, 0, len(placed))
	seen := make(map[pairKey]struct{}, len(placed))
	for i, src := range placed {
		for j, dst := range placed {
			if i == j {
				continue
			}
			key := makePairKey(src.ID, dst.ID)
			if _, done := seen[key]; done {
				continue
			}
			typ, strength, ok := e.evaluatePair(src, dst)
			if !ok {
				continue
			}
			seen[key] = struct{}{}
			conns = append(conns, e.newConnection(src, dst, typ, strength, project))
		}
	}
	return conns
}

// connectionsBucketed is the broad-phase variant: identical outcomes,
// sources only scan candidates near them.
func (e *SynergyEngine) connectionsBucketed(placed []*PlacedBuilding, project ProjectFunc) []SynergyConnection {
	e.rebuildBuckets(placed)

	conns := make([]SynergyConnection, 0, len(placed))
	seen := make(map[pairKey]struct{}, len(placed))
	for i, src := range placed {
		radius := e.sourceRadius(src)
		if radius == 0 {
			continue
		}
		for _, idx := range e.buckets.QueryRadius(src.GridX, src.GridY, radius) {
			j := int(idx)
			if j == i {
				continue
			}
			dst := placed[j]
			key := makePairKey(src.ID, dst.ID)
			if _, done := seen[key]; done {
				continue
			}
			typ, strength, ok := e.evaluatePair(src, dst)
			if !ok {
				continue
			}
			seen[key] = struct{}{}
			conns = append(conns, e.newConnection(src, dst, typ, strength, project))
		}
	}
	return conns
}

func (e *SynergyEngine) newConnection(src, dst *PlacedBuilding, typ SynergyType, strength float64, project ProjectFunc) SynergyConnection {
	conn := SynergyConnection{
		FromID:   src.ID,
		ToID:     dst.ID,
		FromGX:   src.GridX,
		FromGY:   src.GridY,
		ToGX:     dst.GridX,
		ToGY:     dst.GridY,
		Type:     typ,
		Strength: strength,
	}
	if project != nil {
		conn.FromX, conn.FromY = project(src.GridX, src.GridY)
		conn.ToX, conn.ToY = project(dst.GridX, dst.GridY)
	}
	return conn
}

func (e *SynergyEngine) rebuildBuckets(placed []*PlacedBuilding) {
	if e.buckets == nil {
		e.buckets = spatial.NewBucketGrid(e.gridSize, e.bucketCell, len(placed))
	} else {
		e.buckets.Clear()
	}
	for i, b := range placed {
		e.buckets.Insert(uint32(i), b.GridX, b.GridY)
	}
}

// TotalBonus accumulates the subject building's connection
// contributions, capped at the balance ceiling, and returns a percent
// in [0, 50]. The subject is identified by catalogue id and position so
// the same call serves both placed buildings and placement previews; a
// placed building at (gx, gy) is excluded from its own total.
func (e *SynergyEngine) TotalBonus(buildingID string, gx, gy int, placed []*PlacedBuilding) float64 {
	subject := &PlacedBuilding{BuildingID: buildingID, GridX: gx, GridY: gy}
	return e.totalBonus(subject, placed)
}

func (e *SynergyEngine) totalBonus(subject *PlacedBuilding, placed []*PlacedBuilding) float64 {
	total := 0.0
	for _, other := range placed {
		if other.GridX == subject.GridX && other.GridY == subject.GridY {
			continue
		}
		// The subject direction gets first claim on the pair; the
		// reverse direction only counts when the subject projects
		// nothing onto the neighbor.
		if typ, strength, ok := e.evaluatePair(subject, other); ok {
			total += contribution(typ, strength)
			continue
		}
		if typ, strength, ok := e.evaluatePair(other, subject); ok {
			total += contribution(typ, strength)
		}
	}
	if total > maxSynergyBonus {
		total = maxSynergyBonus
	}
	return total * 100
}

// BuildingsWithStatus returns the synergy summary for every placed
// building.
func (e *SynergyEngine) BuildingsWithStatus(placed []*PlacedBuilding) []BuildingSynergyStatus {
	out := make([]BuildingSynergyStatus, 0, len(placed))
	for _, b := range placed {
		bonus := e.totalBonus(b, placed)
		out = append(out, BuildingSynergyStatus{
			ID:         b.ID,
			BuildingID: b.BuildingID,
			GridX:      b.GridX,
			GridY:      b.GridY,
			Bonus:      bonus,
			HasSynergy: bonus > 0,
		})
	}
	return out
}

// Preview computes connections and bonus for a hypothetical building
// before it is committed to the grid. Identical distance and
// classification logic as the placed-set calculation.
func (e *SynergyEngine) Preview(buildingID string, gx, gy int, placed []*PlacedBuilding, project ProjectFunc) PlacementPreview {
	subject := &PlacedBuilding{ID: "preview", BuildingID: buildingID, GridX: gx, GridY: gy}

	conns := make([]SynergyConnection, 0, 8)
	for _, other := range placed {
		if other.GridX == gx && other.GridY == gy {
			continue
		}
		if typ, strength, ok := e.evaluatePair(subject, other); ok {
			conns = append(conns, e.newConnection(subject, other, typ, strength, project))
			continue
		}
		if typ, strength, ok := e.evaluatePair(other, subject); ok {
			conns = append(conns, e.newConnection(other, subject, typ, strength, project))
		}
	}

	return PlacementPreview{
		Connections: conns,
		Bonus:       e.totalBonus(subject, placed),
	}
}
