package render

import (
	"image/color"
	"testing"

	"cryptopolis/internal/game"
)

func minerSnapshot() *game.BuildingSnapshot {
	return &game.BuildingSnapshot{
		ID:           "b-1",
		BuildingID:   "btc-mine",
		Name:         "BTC Mining Rig",
		Category:     game.CategoryMining,
		Chain:        "bitcoin",
		Color:        "#f7931a",
		SpriteHeight: 48,
	}
}

func TestZoomBucketQuantizes(t *testing.T) {
	cases := []struct{ zoom, want float64 }{
		{0.1, 0.25},
		{0.25, 0.25},
		{0.3, 0.25},
		{0.5, 0.5},
		{1.0, 1.0},
		{1.1, 1.0},
		{1.13, 1.25},
		{2.9, 3.0},
	}
	for _, c := range cases {
		if got := zoomBucket(c.zoom); got != c.want {
			t.Errorf("zoomBucket(%v) = %v, want %v", c.zoom, got, c.want)
		}
	}
}

func TestSpriteDimensionsAndAnchor(t *testing.T) {
	sp := drawBuildingSprite(minerSnapshot(), DefaultProjection, 1.0)

	bounds := sp.Img.Bounds()
	if bounds.Dx() != 68 || bounds.Dy() != 84 {
		t.Errorf("sprite size = %dx%d, want 68x84", bounds.Dx(), bounds.Dy())
	}
	if sp.AnchorX != 34 || sp.AnchorY != 50 {
		t.Errorf("anchor = (%d,%d), want (34,50)", sp.AnchorX, sp.AnchorY)
	}

	half := drawBuildingSprite(minerSnapshot(), DefaultProjection, 0.5)
	hb := half.Img.Bounds()
	if hb.Dx() != 36 || hb.Dy() != 44 {
		t.Errorf("half-zoom size = %dx%d, want 36x44", hb.Dx(), hb.Dy())
	}
	if half.AnchorX != 18 || half.AnchorY != 26 {
		t.Errorf("half-zoom anchor = (%d,%d), want (18,26)", half.AnchorX, half.AnchorY)
	}
}

func colorNear(got, want color.RGBA, tol int) bool {
	diff := func(a, b uint8) int {
		d := int(a) - int(b)
		if d < 0 {
			d = -d
		}
		return d
	}
	return diff(got.R, want.R) <= tol && diff(got.G, want.G) <= tol && diff(got.B, want.B) <= tol
}

// TestSpriteFaceShading samples interior pixels of each face, away from
// strokes, floor lines, and the badge, and checks the shading ratios.
func TestSpriteFaceShading(t *testing.T) {
	sp := drawBuildingSprite(minerSnapshot(), DefaultProjection, 1.0)

	base := categoryTint(parseHexColorFast("#f7931a"), game.CategoryMining)

	checks := []struct {
		name string
		x, y int
		want color.RGBA
	}{
		{"top face", 54, 18, shade(base, 1.25)},
		{"right face", 50, 44, base},
		{"left face", 18, 44, shade(base, 0.68)},
		{"chain badge", 34, 18, chainBadgeColors["bitcoin"]},
	}
	for _, c := range checks {
		got := sp.Img.RGBAAt(c.x, c.y)
		if !colorNear(got, c.want, 2) {
			t.Errorf("%s at (%d,%d) = %v, want ~%v", c.name, c.x, c.y, got, c.want)
		}
	}
}

func TestSpriteWithoutKnownChainSkipsBadge(t *testing.T) {
	b := minerSnapshot()
	b.Chain = "dogecoin"
	sp := drawBuildingSprite(b, DefaultProjection, 1.0)

	base := categoryTint(parseHexColorFast("#f7931a"), game.CategoryMining)
	got := sp.Img.RGBAAt(34, 18)
	if !colorNear(got, shade(base, 1.25), 2) {
		t.Errorf("roof center = %v, want plain top face color", got)
	}
}

func TestSpriteCacheReturnsStoredSprite(t *testing.T) {
	sc, err := NewSpriteCache(DefaultProjection)
	if err != nil {
		t.Fatalf("NewSpriteCache: %v", err)
	}
	defer sc.Close()

	b := minerSnapshot()
	first := sc.Get(b, 1.0)
	sc.cache.Wait()
	second := sc.Get(b, 1.0)
	if first != second {
		t.Error("second lookup should hit the cache")
	}

	if a, b2 := spriteKey("x", zoomBucket(1.02)), spriteKey("x", zoomBucket(0.98)); a != b2 {
		t.Errorf("zoom 1.02 and 0.98 should share a key: %s vs %s", a, b2)
	}
	if a, b2 := spriteKey("x", zoomBucket(1.0)), spriteKey("x", zoomBucket(2.0)); a == b2 {
		t.Errorf("zoom 1.0 and 2.0 should not share a key: %s", a)
	}
}
