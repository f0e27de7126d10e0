package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Grid placement errors. The API layer maps these to 4xx responses.
var (
	ErrOutOfBounds     = fmt.Errorf("grid position out of bounds")
	ErrTileOccupied    = fmt.Errorf("tile already occupied")
	ErrUnknownBuilding = fmt.Errorf("unknown building id")
	ErrNotFound        = fmt.Errorf("building instance not found")
)

// PlacedBuilding is one building instance on the grid.
type PlacedBuilding struct {
	ID         string    `json:"id"`         // instance id
	BuildingID string    `json:"buildingId"` // catalogue id
	GridX      int       `json:"gridX"`
	GridY      int       `json:"gridY"`
	PlacedAt   time.Time `json:"placedAt"`
}

// TileChangedFunc observes tile content mutations. The renderer hooks
// in here to mark dirty tiles and invalidate layer caches.
type TileChangedFunc func(x, y int)

// CityGrid holds the placed buildings on a square isometric grid.
// Single-writer: all mutations happen on the engine tick goroutine;
// readers elsewhere consume snapshots instead of touching the grid.
type CityGrid struct {
	size    int
	catalog *Catalog

	cells  []*PlacedBuilding // row-major, nil = empty
	placed []*PlacedBuilding // in placement order
	byID   map[string]*PlacedBuilding

	version       uint64
	onTileChanged []TileChangedFunc
}

// NewCityGrid creates an empty size x size grid backed by the given
// catalog.
func NewCityGrid(size int, catalog *Catalog) *CityGrid {
	if size < 1 {
		size = 1
	}
	return &CityGrid{
		size:    size,
		catalog: catalog,
		cells:   make([]*PlacedBuilding, size*size),
		placed:  make([]*PlacedBuilding, 0, 64),
		byID:    make(map[string]*PlacedBuilding, 64),
	}
}

// Size returns the grid edge length in tiles.
func (g *CityGrid) Size() int { return g.size }

// Version increments on every content mutation. Layer caches key their
// freshness on it.
func (g *CityGrid) Version() uint64 { return g.version }

// Count returns the number of placed buildings.
func (g *CityGrid) Count() int { return len(g.placed) }

// InBounds reports whether the coordinates lie on the grid.
func (g *CityGrid) InBounds(x, y int) bool {
	return x >= 0 && x < g.size && y >= 0 && y < g.size
}

// BuildingAt returns the building occupying a tile, or nil.
func (g *CityGrid) BuildingAt(x, y int) *PlacedBuilding {
	if !g.InBounds(x, y) {
		return nil
	}
	return g.cells[y*g.size+x]
}

// Get returns a placed building by instance id, or nil.
func (g *CityGrid) Get(id string) *PlacedBuilding {
	return g.byID[id]
}

// Placed returns the placement-ordered building list. The slice is
// owned by the grid; callers must not mutate it or hold it across
// mutations.
func (g *CityGrid) Placed() []*PlacedBuilding {
	return g.placed
}

// OnTileChanged registers a mutation observer. Registration is not
// synchronized; do it during setup, before the tick loop starts.
func (g *CityGrid) OnTileChanged(fn TileChangedFunc) {
	g.onTileChanged = append(g.onTileChanged, fn)
}

// Place puts a new building instance on the grid. The caller settles
// cost and emits events; the grid only validates geometry and the
// catalogue id.
func (g *CityGrid) Place(buildingID string, x, y int) (*PlacedBuilding, error) {
	if _, ok := g.catalog.Get(buildingID); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBuilding, buildingID)
	}
	if !g.InBounds(x, y) {
		return nil, fmt.Errorf("%w: (%d,%d) on %dx%d grid", ErrOutOfBounds, x, y, g.size, g.size)
	}
	if g.cells[y*g.size+x] != nil {
		return nil, fmt.Errorf("%w: (%d,%d)", ErrTileOccupied, x, y)
	}

	b := &PlacedBuilding{
		ID:         uuid.NewString(),
		BuildingID: buildingID,
		GridX:      x,
		GridY:      y,
		PlacedAt:   time.Now(),
	}
	g.cells[y*g.size+x] = b
	g.placed = append(g.placed, b)
	g.byID[b.ID] = b
	g.version++
	g.notifyTileChanged(x, y)
	return b, nil
}

// Remove deletes a building instance and returns it.
func (g *CityGrid) Remove(id string) (*PlacedBuilding, error) {
	b, ok := g.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	g.cells[b.GridY*g.size+b.GridX] = nil
	delete(g.byID, id)
	for i, p := range g.placed {
		if p.ID == id {
			g.placed = append(g.placed[:i], g.placed[i+1:]...)
			break
		}
	}
	g.version++
	g.notifyTileChanged(b.GridX, b.GridY)
	return b, nil
}

func (g *CityGrid) notifyTileChanged(x, y int) {
	for _, fn := range g.onTileChanged {
		fn(x, y)
	}
}
