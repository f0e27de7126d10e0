package render

import (
	"time"
)

// TileKey identifies one grid cell in the dirty set.
type TileKey struct {
	X int
	Y int
}

// DirtyRegion records which tiles changed since the last render pass.
// A full-redraw flag overrides the per-tile set; it starts raised so
// the very first pass paints everything. Single-writer: mutated only
// from the renderer tick.
type DirtyRegion struct {
	tiles           map[TileKey]struct{}
	needsFullRedraw bool
	lastModified    time.Time
}

// NewDirtyRegion creates a tracker with the full-redraw flag raised.
func NewDirtyRegion() *DirtyRegion {
	return &DirtyRegion{
		tiles:           make(map[TileKey]struct{}, 64),
		needsFullRedraw: true,
		lastModified:    time.Now(),
	}
}

// MarkTile flags a single tile as needing repaint.
func (d *DirtyRegion) MarkTile(x, y int) {
	d.tiles[TileKey{X: x, Y: y}] = struct{}{}
	d.lastModified = time.Now()
}

// MarkTiles flags a batch of tiles in one call.
func (d *DirtyRegion) MarkTiles(keys []TileKey) {
	for _, k := range keys {
		d.tiles[k] = struct{}{}
	}
	d.lastModified = time.Now()
}

// MarkRegion flags a w x h rectangle of tiles anchored at (x, y).
func (d *DirtyRegion) MarkRegion(x, y, w, h int) {
	for ty := y; ty < y+h; ty++ {
		for tx := x; tx < x+w; tx++ {
			d.tiles[TileKey{X: tx, Y: ty}] = struct{}{}
		}
	}
	d.lastModified = time.Now()
}

// RequestFullRedraw forces every tile to be treated as dirty until the
// next Clear.
func (d *DirtyRegion) RequestFullRedraw() {
	d.needsFullRedraw = true
	d.lastModified = time.Now()
}

// IsTileDirty reports whether a tile must be repainted.
func (d *DirtyRegion) IsTileDirty(x, y int) bool {
	if d.needsFullRedraw {
		return true
	}
	_, ok := d.tiles[TileKey{X: x, Y: y}]
	return ok
}

// HasDirtyTiles reports whether anything needs repainting at all.
func (d *DirtyRegion) HasDirtyTiles() bool {
	return d.needsFullRedraw || len(d.tiles) > 0
}

// Keys appends the marked tile keys to buf and returns it. Iteration
// order is not defined; painters re-sort into paint order themselves.
func (d *DirtyRegion) Keys(buf []TileKey) []TileKey {
	for k := range d.tiles {
		buf = append(buf, k)
	}
	return buf
}

// NeedsFullRedraw reports whether the full-redraw flag is raised.
func (d *DirtyRegion) NeedsFullRedraw() bool {
	return d.needsFullRedraw
}

// Count returns the number of individually marked tiles. The count is
// not meaningful while a full redraw is pending.
func (d *DirtyRegion) Count() int {
	return len(d.tiles)
}

// LastModified returns when the region last changed. Audit aid only;
// no render logic gates on it.
func (d *DirtyRegion) LastModified() time.Time {
	return d.lastModified
}

// Clear resets the tracker after a render pass has consumed it.
func (d *DirtyRegion) Clear() {
	clear(d.tiles)
	d.needsFullRedraw = false
	d.lastModified = time.Now()
}
