package render

import (
	"fmt"
)

// LayerCache owns one offscreen surface holding the last repaint of a
// rendering layer (terrain, buildings). The cached pixels are usable
// only while the grid version, zoom, and every viewport field still
// match what they were painted for.
type LayerCache struct {
	name    string
	surface Surface
	kind    SurfaceKind

	valid       bool
	version     uint64
	gridVersion uint64
	zoom        float64
	// Copy of the viewport at the last repaint. Viewports are rebuilt
	// from camera state every frame, so equality is by field, never by
	// identity. Nil until the first MarkUpdated.
	viewport *Viewport
}

// NewLayerCache allocates a cache with a fresh surface. Fails
// immediately if the surface cannot be created; a cache without a
// drawable surface cannot satisfy its contract.
func NewLayerCache(name string, w, h int, kind SurfaceKind) (*LayerCache, error) {
	surface, err := NewSurface(w, h, kind)
	if err != nil {
		return nil, fmt.Errorf("layer cache %q: %w", name, err)
	}
	return &LayerCache{
		name:    name,
		surface: surface,
		kind:    kind,
	}, nil
}

// Name returns the layer label, used in logs and stats.
func (c *LayerCache) Name() string { return c.name }

// Surface returns the cache's drawing target.
func (c *LayerCache) Surface() Surface { return c.surface }

// Valid reports whether the cached pixels are current.
func (c *LayerCache) Valid() bool { return c.valid }

// Version returns a counter that increments on every successful
// repaint, for stats and debugging.
func (c *LayerCache) Version() uint64 { return c.version }

// NeedsUpdate reports whether the layer must be repainted before its
// surface can be composited for the given state.
func (c *LayerCache) NeedsUpdate(gridVersion uint64, vp Viewport, zoom float64) bool {
	if !c.valid {
		return true
	}
	if c.gridVersion != gridVersion {
		return true
	}
	if c.zoom != zoom {
		return true
	}
	if c.viewport == nil {
		return true
	}
	return c.viewport.X != vp.X ||
		c.viewport.Y != vp.Y ||
		c.viewport.Width != vp.Width ||
		c.viewport.Height != vp.Height
}

// CanPatch reports whether the cached pixels can be brought current by
// repainting dirty tiles alone: the camera state still matches and only
// the grid contents moved on. A zoom or viewport change always forces a
// full repaint instead.
func (c *LayerCache) CanPatch(gridVersion uint64, vp Viewport, zoom float64) bool {
	if !c.valid || c.viewport == nil {
		return false
	}
	if c.zoom != zoom {
		return false
	}
	if c.viewport.X != vp.X || c.viewport.Y != vp.Y ||
		c.viewport.Width != vp.Width || c.viewport.Height != vp.Height {
		return false
	}
	return c.gridVersion != gridVersion
}

// MarkUpdated records the state a successful repaint was rendered for
// and makes the cache valid.
func (c *LayerCache) MarkUpdated(gridVersion uint64, vp Viewport, zoom float64) {
	vpCopy := vp
	c.gridVersion = gridVersion
	c.viewport = &vpCopy
	c.zoom = zoom
	c.valid = true
	c.version++
}

// Invalidate drops the cached pixels. Any content mutation that the
// layer depends on must call this.
func (c *LayerCache) Invalidate() {
	c.valid = false
}

// Resize reallocates the surface at new dimensions. Cached pixels are
// tied to surface dimensions, so resizing always invalidates.
func (c *LayerCache) Resize(w, h int) error {
	surface, err := NewSurface(w, h, c.kind)
	if err != nil {
		return fmt.Errorf("resize layer cache %q: %w", c.name, err)
	}
	c.surface = surface
	c.valid = false
	return nil
}
