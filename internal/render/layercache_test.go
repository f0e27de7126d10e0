package render

import (
	"testing"
)

// TestNewLayerCache verifies construction and surface allocation
func TestNewLayerCache(t *testing.T) {
	c, err := NewLayerCache("terrain", 320, 240, SurfaceVector)
	if err != nil {
		t.Fatalf("NewLayerCache failed: %v", err)
	}
	if c.Valid() {
		t.Error("fresh cache should not be valid")
	}

	w, h := c.Surface().Bounds()
	if w != 320 || h != 240 {
		t.Errorf("expected 320x240 surface, got %dx%d", w, h)
	}
	if c.Surface().Context() == nil {
		t.Error("vector surface should expose a draw context")
	}
	if c.Surface().Image() == nil {
		t.Error("surface should expose its backing image")
	}
}

// TestNewLayerCacheRaw verifies the raw surface kind shares its pixels
// with the lazily attached draw context
func TestNewLayerCacheRaw(t *testing.T) {
	c, err := NewLayerCache("particles", 64, 64, SurfaceRaw)
	if err != nil {
		t.Fatalf("NewLayerCache failed: %v", err)
	}
	img := c.Surface().Image()
	if img == nil {
		t.Fatal("raw surface should expose its backing image")
	}

	ctx := c.Surface().Context()
	if ctx == nil {
		t.Fatal("raw surface should attach a draw context on demand")
	}
	ctx.SetRGB(1, 0, 0)
	ctx.SetPixel(3, 5)

	if r, _, _, _ := img.At(3, 5).RGBA(); r == 0 {
		t.Error("context writes should land in the surface's backing image")
	}
}

// TestNewLayerCacheErrors verifies bad dimensions and kinds fail at creation
func TestNewLayerCacheErrors(t *testing.T) {
	if _, err := NewLayerCache("bad", 0, 100, SurfaceVector); err == nil {
		t.Error("zero width should fail")
	}
	if _, err := NewLayerCache("bad", 100, -1, SurfaceVector); err == nil {
		t.Error("negative height should fail")
	}
	if _, err := NewLayerCache("bad", 100, 100, SurfaceKind(42)); err == nil {
		t.Error("unknown surface kind should fail")
	}
}

// TestNeedsUpdateInvalidation walks every invalidation trigger
func TestNeedsUpdateInvalidation(t *testing.T) {
	c, err := NewLayerCache("buildings", 100, 80, SurfaceVector)
	if err != nil {
		t.Fatalf("NewLayerCache failed: %v", err)
	}

	vp := Viewport{X: 10, Y: 20, Width: 800, Height: 600}

	if !c.NeedsUpdate(1, vp, 1.0) {
		t.Error("fresh cache should need an update")
	}

	c.MarkUpdated(1, vp, 1.0)
	if !c.Valid() {
		t.Error("cache should be valid after MarkUpdated")
	}
	if c.NeedsUpdate(1, vp, 1.0) {
		t.Error("cache should be fresh when nothing changed")
	}

	tests := []struct {
		name        string
		gridVersion uint64
		vp          Viewport
		zoom        float64
	}{
		{"grid version change", 2, vp, 1.0},
		{"zoom change", 1, vp, 1.5},
		{"viewport x change", 1, Viewport{X: 11, Y: 20, Width: 800, Height: 600}, 1.0},
		{"viewport y change", 1, Viewport{X: 10, Y: 21, Width: 800, Height: 600}, 1.0},
		{"viewport width change", 1, Viewport{X: 10, Y: 20, Width: 801, Height: 600}, 1.0},
		{"viewport height change", 1, Viewport{X: 10, Y: 20, Width: 800, Height: 601}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !c.NeedsUpdate(tt.gridVersion, tt.vp, tt.zoom) {
				t.Error("expected cache to need an update")
			}
		})
	}
}

// TestInvalidate verifies explicit invalidation forces a repaint
func TestInvalidate(t *testing.T) {
	c, err := NewLayerCache("terrain", 100, 80, SurfaceVector)
	if err != nil {
		t.Fatalf("NewLayerCache failed: %v", err)
	}

	vp := Viewport{Width: 800, Height: 600}
	c.MarkUpdated(5, vp, 1.0)

	c.Invalidate()
	if c.Valid() {
		t.Error("cache should be invalid after Invalidate")
	}
	if !c.NeedsUpdate(5, vp, 1.0) {
		t.Error("invalidated cache should need an update even with matching state")
	}
}

// TestResizeInvalidates verifies resizing swaps the surface and drops the pixels
func TestResizeInvalidates(t *testing.T) {
	c, err := NewLayerCache("terrain", 100, 80, SurfaceVector)
	if err != nil {
		t.Fatalf("NewLayerCache failed: %v", err)
	}

	vp := Viewport{Width: 800, Height: 600}
	c.MarkUpdated(1, vp, 1.0)

	if err := c.Resize(200, 160); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if c.Valid() {
		t.Error("cache should be invalid after resize")
	}
	if !c.NeedsUpdate(1, vp, 1.0) {
		t.Error("resized cache should need an update")
	}

	w, h := c.Surface().Bounds()
	if w != 200 || h != 160 {
		t.Errorf("expected 200x160 surface after resize, got %dx%d", w, h)
	}

	if err := c.Resize(0, 160); err == nil {
		t.Error("resize to zero width should fail")
	}
}

// TestMarkUpdatedCopiesViewport verifies the stored viewport is a copy,
// not a reference the caller can mutate afterwards
func TestMarkUpdatedCopiesViewport(t *testing.T) {
	c, err := NewLayerCache("terrain", 100, 80, SurfaceVector)
	if err != nil {
		t.Fatalf("NewLayerCache failed: %v", err)
	}

	vp := Viewport{X: 1, Y: 2, Width: 800, Height: 600}
	c.MarkUpdated(1, vp, 1.0)

	vp.X = 999
	if c.NeedsUpdate(1, Viewport{X: 1, Y: 2, Width: 800, Height: 600}, 1.0) {
		t.Error("mutating the caller's viewport must not disturb the stored copy")
	}
}

// TestVersionIncrements verifies the repaint counter advances
func TestVersionIncrements(t *testing.T) {
	c, err := NewLayerCache("terrain", 100, 80, SurfaceVector)
	if err != nil {
		t.Fatalf("NewLayerCache failed: %v", err)
	}

	vp := Viewport{Width: 800, Height: 600}
	if c.Version() != 0 {
		t.Errorf("expected version 0, got %d", c.Version())
	}
	c.MarkUpdated(1, vp, 1.0)
	c.MarkUpdated(2, vp, 1.0)
	if c.Version() != 2 {
		t.Errorf("expected version 2 after two repaints, got %d", c.Version())
	}
}
