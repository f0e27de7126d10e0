package render

import (
	"testing"
)

// TestDirtyRegionStartsFull verifies the first render pass sees everything dirty
func TestDirtyRegionStartsFull(t *testing.T) {
	d := NewDirtyRegion()

	if !d.NeedsFullRedraw() {
		t.Error("new region should start with full redraw pending")
	}
	if !d.IsTileDirty(17, 3) {
		t.Error("any tile should read dirty before the first clear")
	}
	if !d.HasDirtyTiles() {
		t.Error("HasDirtyTiles should be true before the first clear")
	}
}

// TestMarkTileAndClear verifies per-tile marking and the post-render clear
func TestMarkTileAndClear(t *testing.T) {
	d := NewDirtyRegion()
	d.Clear() // consume the initial full redraw

	d.MarkTile(3, 4)
	if !d.IsTileDirty(3, 4) {
		t.Error("marked tile should be dirty")
	}
	if d.IsTileDirty(4, 3) {
		t.Error("unmarked tile should be clean")
	}
	if !d.HasDirtyTiles() {
		t.Error("HasDirtyTiles should be true after marking")
	}

	d.Clear()
	if d.IsTileDirty(3, 4) {
		t.Error("tile should be clean after clear")
	}
	if d.HasDirtyTiles() {
		t.Error("HasDirtyTiles should be false after clear")
	}
}

// TestRequestFullRedraw verifies the full-redraw flag overrides the set
func TestRequestFullRedraw(t *testing.T) {
	d := NewDirtyRegion()
	d.Clear()

	d.RequestFullRedraw()
	if !d.IsTileDirty(99, -5) {
		t.Error("every tile should be dirty while full redraw is pending")
	}
	if !d.HasDirtyTiles() {
		t.Error("HasDirtyTiles should be true while full redraw is pending")
	}

	d.Clear()
	if d.IsTileDirty(99, -5) {
		t.Error("clear should drop the full-redraw flag")
	}
}

// TestMarkTiles verifies batch marking
func TestMarkTiles(t *testing.T) {
	d := NewDirtyRegion()
	d.Clear()

	keys := []TileKey{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}
	d.MarkTiles(keys)

	for _, k := range keys {
		if !d.IsTileDirty(k.X, k.Y) {
			t.Errorf("tile (%d,%d) should be dirty", k.X, k.Y)
		}
	}
	if d.Count() != 3 {
		t.Errorf("expected 3 marked tiles, got %d", d.Count())
	}
}

// TestMarkRegion verifies rectangle marking covers exactly the rectangle
func TestMarkRegion(t *testing.T) {
	d := NewDirtyRegion()
	d.Clear()

	d.MarkRegion(2, 3, 3, 2)

	for ty := 3; ty < 5; ty++ {
		for tx := 2; tx < 5; tx++ {
			if !d.IsTileDirty(tx, ty) {
				t.Errorf("tile (%d,%d) inside region should be dirty", tx, ty)
			}
		}
	}
	if d.IsTileDirty(1, 3) || d.IsTileDirty(5, 3) || d.IsTileDirty(2, 5) {
		t.Error("tiles outside the region should be clean")
	}
	if d.Count() != 6 {
		t.Errorf("expected 6 marked tiles, got %d", d.Count())
	}
}

// TestMarkTileIdempotent verifies re-marking the same tile does not grow the set
func TestMarkTileIdempotent(t *testing.T) {
	d := NewDirtyRegion()
	d.Clear()

	d.MarkTile(7, 7)
	d.MarkTile(7, 7)
	d.MarkTile(7, 7)

	if d.Count() != 1 {
		t.Errorf("expected 1 marked tile, got %d", d.Count())
	}
}

// TestLastModifiedAdvances verifies mutations touch the audit timestamp
func TestLastModifiedAdvances(t *testing.T) {
	d := NewDirtyRegion()
	before := d.LastModified()

	d.MarkTile(0, 0)
	if d.LastModified().Before(before) {
		t.Error("LastModified should not move backwards")
	}
}
