package render

import (
	"image"
	"math"
	"testing"

	"github.com/fogleman/gg"

	"cryptopolis/internal/game"
)

func newTestRenderer(t *testing.T) *CityRenderer {
	t.Helper()
	r, err := NewCityRenderer(320, 240, 8, DefaultProjection)
	if err != nil {
		t.Fatalf("NewCityRenderer: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func keySet(keys []TileKey) map[TileKey]bool {
	set := make(map[TileKey]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

func TestMarkChangedTilesDiffsLayout(t *testing.T) {
	r := newTestRenderer(t)

	if !r.dirty.NeedsFullRedraw() {
		t.Fatal("fresh renderer should start with a full redraw pending")
	}
	r.dirty.Clear()

	snap := citySnap(1, 8, placedBuilding("a", 1, 1), placedBuilding("b", 2, 2))
	r.markChangedTiles(snap)
	got := keySet(r.dirty.Keys(nil))
	if len(got) != 2 || !got[TileKey{X: 1, Y: 1}] || !got[TileKey{X: 2, Y: 2}] {
		t.Fatalf("after first layout, dirty keys = %v", got)
	}

	// Same grid version again: the scan short-circuits.
	r.markChangedTiles(snap)
	if n := r.dirty.Count(); n != 2 {
		t.Errorf("re-marking same version changed count to %d", n)
	}
	r.dirty.Clear()

	// Removing a building dirties only the vacated tile.
	r.markChangedTiles(citySnap(2, 8, placedBuilding("a", 1, 1)))
	got = keySet(r.dirty.Keys(nil))
	if len(got) != 1 || !got[TileKey{X: 2, Y: 2}] {
		t.Errorf("after removal, dirty keys = %v", got)
	}
	r.dirty.Clear()

	// Replacing a building in place dirties its tile.
	r.markChangedTiles(citySnap(3, 8, placedBuilding("c", 1, 1)))
	got = keySet(r.dirty.Keys(nil))
	if len(got) != 1 || !got[TileKey{X: 1, Y: 1}] {
		t.Errorf("after replacement, dirty keys = %v", got)
	}
}

func TestZoomClampsAndAnchorsCenter(t *testing.T) {
	r := newTestRenderer(t)

	r.SetZoom(99)
	if r.Zoom() != maxZoom {
		t.Errorf("zoom = %v after overshoot, want %v", r.Zoom(), maxZoom)
	}
	r.SetZoom(0.01)
	if r.Zoom() != minZoom {
		t.Errorf("zoom = %v after undershoot, want %v", r.Zoom(), minZoom)
	}

	r.SetZoom(1.0)
	wx := (160 - r.panX) / r.zoom
	wy := (120 - r.panY) / r.zoom
	r.SetZoom(2.0)
	wx2 := (160 - r.panX) / r.zoom
	wy2 := (120 - r.panY) / r.zoom
	if math.Abs(wx-wx2) > 1e-9 || math.Abs(wy-wy2) > 1e-9 {
		t.Errorf("world point under canvas center moved: (%v,%v) -> (%v,%v)", wx, wy, wx2, wy2)
	}

	r.ZoomBy(0)
	if r.Zoom() != 2.0 {
		t.Errorf("ZoomBy(0) changed zoom to %v", r.Zoom())
	}
	r.ZoomBy(0.5)
	if r.Zoom() != 1.0 {
		t.Errorf("ZoomBy(0.5) gave %v, want 1.0", r.Zoom())
	}
}

func TestFitCameraCentersGrid(t *testing.T) {
	zoom, panX, panY := fitCamera(200, 150, 8, DefaultProjection)

	// World is 512x384 with overflow margin; 200x150 fits both axes at
	// the same ratio.
	if math.Abs(zoom-0.390625) > 1e-12 {
		t.Errorf("zoom = %v, want 0.390625", zoom)
	}
	if panX != 100 {
		t.Errorf("panX = %v, want 100", panX)
	}
	if math.Abs(panY-50) > 1e-9 {
		t.Errorf("panY = %v, want 50", panY)
	}
}

func TestRenderFrameCachesSteadyState(t *testing.T) {
	r := newTestRenderer(t)
	ctx := gg.NewContext(320, 240)

	snap := citySnap(1, 8, placedBuilding("a", 3, 3))
	snap.Particles = []game.ParticleSnapshot{
		{X: 0, Y: 100, Size: 6, Opacity: 1, Color: "#ffd700", Type: game.ParticleCoin},
	}

	r.RenderFrame(ctx, snap)
	first := r.Metrics()
	if first.TilesRendered == 0 {
		t.Error("first frame should paint tiles")
	}
	if first.DrawCalls == 0 {
		t.Error("first frame should issue draw calls")
	}

	// Same snapshot, same camera: both layers serve from cache.
	r.RenderFrame(ctx, snap)
	second := r.Metrics()
	if second.TilesRendered != 0 {
		t.Errorf("steady frame painted %d tiles, want 0", second.TilesRendered)
	}

	// Camera movement invalidates the cached layers.
	r.Pan(10, 0)
	r.RenderFrame(ctx, snap)
	third := r.Metrics()
	if third.TilesRendered == 0 {
		t.Error("post-pan frame should repaint tiles")
	}
}

func TestRenderFramePatchesOnGridChange(t *testing.T) {
	r := newTestRenderer(t)
	ctx := gg.NewContext(320, 240)

	base := citySnap(1, 8, placedBuilding("a", 3, 3))
	r.RenderFrame(ctx, base)
	fullTiles := r.Metrics().TilesRendered

	// One new building: the next frame should patch a handful of tiles,
	// not repaint the whole grid.
	grown := citySnap(2, 8, placedBuilding("a", 3, 3), placedBuilding("b", 4, 3))
	r.RenderFrame(ctx, grown)
	patchTiles := r.Metrics().TilesRendered

	if patchTiles == 0 {
		t.Fatal("grid change should repaint at least the changed tile")
	}
	if patchTiles >= fullTiles {
		t.Errorf("patch repainted %d tiles, full paint was %d", patchTiles, fullTiles)
	}
}

func TestRenderFrameBackground(t *testing.T) {
	r := newTestRenderer(t)
	ctx := gg.NewContext(320, 240)

	r.RenderFrame(ctx, citySnap(1, 8))

	img, ok := ctx.Image().(*image.RGBA)
	if !ok {
		t.Fatal("gg context is not RGBA backed")
	}
	if got := img.RGBAAt(0, 0); got != backgroundColor {
		t.Errorf("corner pixel = %v, want background %v", got, backgroundColor)
	}
}

func TestSetViewportSizeInvalidatesLayers(t *testing.T) {
	r := newTestRenderer(t)
	ctx := gg.NewContext(320, 240)
	r.RenderFrame(ctx, citySnap(1, 8))

	if err := r.SetViewportSize(400, 300); err != nil {
		t.Fatalf("SetViewportSize: %v", err)
	}
	if r.width != 400 || r.height != 300 {
		t.Errorf("canvas = %dx%d, want 400x300", r.width, r.height)
	}
	if !r.dirty.NeedsFullRedraw() {
		t.Error("resize should request a full redraw")
	}
	if b := r.terrain.Surface().Image().Bounds(); b.Dx() != 400 || b.Dy() != 300 {
		t.Errorf("terrain surface = %dx%d, want 400x300", b.Dx(), b.Dy())
	}
}

func TestRenderOverviewIsSelfContained(t *testing.T) {
	r := newTestRenderer(t)

	snap := citySnap(1, 8, placedBuilding("a", 4, 4))
	img := r.RenderOverview(snap, 200, 150)

	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 150 {
		t.Fatalf("overview = %dx%d, want 200x150", b.Dx(), b.Dy())
	}
	if got := img.RGBAAt(0, 0); got != backgroundColor {
		t.Errorf("corner = %v, want background %v", got, backgroundColor)
	}

	// Tile (4,4) lands its anchor at (100,100) under the fitted camera;
	// sample a right-face pixel of the sprite.
	base := categoryTint(parseHexColorFast("#f7931a"), game.CategoryMining)
	if got := img.RGBAAt(108, 104); !colorNear(got, base, 2) {
		t.Errorf("building face pixel = %v, want ~%v", got, base)
	}

	// The cached layers of the live renderer stay untouched.
	if r.terrain.Surface().Image().Bounds().Dx() != 320 {
		t.Error("overview render touched the live terrain layer")
	}
}
