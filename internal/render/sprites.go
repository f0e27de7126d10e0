package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/fogleman/gg"

	"cryptopolis/internal/game"
)

const (
	// spriteCacheMaxBytes bounds sprite memory; cost is pixel bytes, so
	// the cache caps RAM rather than sprite count.
	spriteCacheMaxBytes = 32 << 20
	spriteCacheCounters = 10_000
)

// Sprite is one cached building rendering plus the anchor pixel that
// aligns it to the tile's projected top vertex.
type Sprite struct {
	Img     *image.RGBA
	AnchorX int
	AnchorY int
}

// SpriteCache holds procedurally drawn building sprites keyed by
// building ID and zoom bucket. Drawing a sprite walks gg's path
// machinery, so hits here are what keep the building layer repaint
// cheap.
type SpriteCache struct {
	cache *ristretto.Cache[string, *Sprite]
	proj  Projection
}

// NewSpriteCache creates an empty cache for the given projection.
func NewSpriteCache(proj Projection) (*SpriteCache, error) {
	cache, err := ristretto.NewCache[string, *Sprite](&ristretto.Config[string, *Sprite]{
		NumCounters: spriteCacheCounters,
		MaxCost:     spriteCacheMaxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("sprite cache: %w", err)
	}
	return &SpriteCache{cache: cache, proj: proj}, nil
}

// Get returns the sprite for a building at the given zoom, drawing and
// caching it on a miss. Snapshots carry everything the sprite needs, so
// the render path never touches the catalog. ristretto admission is
// async; a rejected Set just means the sprite is drawn again next frame.
func (s *SpriteCache) Get(b *game.BuildingSnapshot, zoom float64) *Sprite {
	bucket := zoomBucket(zoom)
	key := spriteKey(b.BuildingID, bucket)
	if sp, ok := s.cache.Get(key); ok {
		return sp
	}
	sp := drawBuildingSprite(b, s.proj, bucket)
	s.cache.Set(key, sp, int64(len(sp.Img.Pix)))
	return sp
}

// Close releases the cache's internal goroutines.
func (s *SpriteCache) Close() {
	s.cache.Close()
}

// zoomBucket quantizes zoom to quarter steps so nearby zoom levels
// share sprites instead of exploding the key space.
func zoomBucket(zoom float64) float64 {
	b := math.Round(zoom*4) / 4
	if b < 0.25 {
		b = 0.25
	}
	return b
}

func spriteKey(buildingID string, bucket float64) string {
	return fmt.Sprintf("%s@%.2f", buildingID, bucket)
}

// chainBadgeColors are the brand colors drawn on the roof badge.
var chainBadgeColors = map[string]color.RGBA{
	"bitcoin":  {R: 0xf7, G: 0x93, B: 0x1a, A: 255},
	"ethereum": {R: 0x62, G: 0x7e, B: 0xea, A: 255},
	"solana":   {R: 0x14, G: 0xf1, B: 0x95, A: 255},
}

// drawBuildingSprite renders one building as an extruded isometric
// block: shaded left/right faces, a lit top face, floor lines on tall
// bodies, and a chain badge on the roof. The anchor is the ground
// tile's top vertex inside the sprite canvas.
func drawBuildingSprite(b *game.BuildingSnapshot, proj Projection, zoom float64) *Sprite {
	tw := float64(proj.TileWidth) * zoom
	th := float64(proj.TileHeight) * zoom
	bh := float64(b.SpriteHeight) * zoom
	if bh < 2 {
		bh = 2
	}

	const pad = 2.0
	w := int(math.Ceil(tw + pad*2))
	h := int(math.Ceil(th + bh + pad*2))

	ctx := gg.NewContext(w, h)

	ax := float64(w) / 2
	ay := pad + bh
	halfW := tw / 2
	halfH := th / 2

	base := categoryTint(parseHexColorFast(b.Color), b.Category)
	topC := shade(base, 1.25)
	rightC := base
	leftC := shade(base, 0.68)
	lineC := shade(base, 0.45)

	// Left face
	ctx.MoveTo(ax-halfW, ay+halfH)
	ctx.LineTo(ax, ay+th)
	ctx.LineTo(ax, ay+th-bh)
	ctx.LineTo(ax-halfW, ay+halfH-bh)
	ctx.ClosePath()
	ctx.SetRGBA255(int(leftC.R), int(leftC.G), int(leftC.B), 255)
	ctx.Fill()

	// Right face
	ctx.MoveTo(ax+halfW, ay+halfH)
	ctx.LineTo(ax, ay+th)
	ctx.LineTo(ax, ay+th-bh)
	ctx.LineTo(ax+halfW, ay+halfH-bh)
	ctx.ClosePath()
	ctx.SetRGBA255(int(rightC.R), int(rightC.G), int(rightC.B), 255)
	ctx.Fill()

	// Top face
	ctx.MoveTo(ax, ay-bh)
	ctx.LineTo(ax+halfW, ay-bh+halfH)
	ctx.LineTo(ax, ay-bh+th)
	ctx.LineTo(ax-halfW, ay-bh+halfH)
	ctx.ClosePath()
	ctx.SetRGBA255(int(topC.R), int(topC.G), int(topC.B), 255)
	ctx.Fill()

	// Floor lines across both faces, one per 12 world pixels of height
	floorStep := 12 * zoom
	ctx.SetRGBA255(int(lineC.R), int(lineC.G), int(lineC.B), 160)
	ctx.SetLineWidth(1)
	for d := floorStep; d < bh-2; d += floorStep {
		ctx.MoveTo(ax-halfW, ay+halfH-d)
		ctx.LineTo(ax, ay+th-d)
		ctx.LineTo(ax+halfW, ay+halfH-d)
		ctx.Stroke()
	}

	// Silhouette and the center seam between the faces
	ctx.SetRGBA255(int(lineC.R), int(lineC.G), int(lineC.B), 255)
	ctx.MoveTo(ax, ay-bh)
	ctx.LineTo(ax+halfW, ay-bh+halfH)
	ctx.LineTo(ax+halfW, ay+halfH)
	ctx.LineTo(ax, ay+th)
	ctx.LineTo(ax-halfW, ay+halfH)
	ctx.LineTo(ax-halfW, ay-bh+halfH)
	ctx.ClosePath()
	ctx.Stroke()
	ctx.MoveTo(ax, ay+th)
	ctx.LineTo(ax, ay+th-bh)
	ctx.Stroke()

	// Roof badge carries the chain identity
	if badge, ok := chainBadgeColors[b.Chain]; ok {
		bx := ax
		by := ay - bh + halfH
		radius := math.Max(3, th*0.18)
		ctx.DrawCircle(bx, by, radius)
		ctx.SetRGBA255(int(badge.R), int(badge.G), int(badge.B), 255)
		ctx.Fill()
		ctx.DrawCircle(bx, by, radius)
		ctx.SetRGBA255(255, 255, 255, 220)
		ctx.SetLineWidth(1.5)
		ctx.Stroke()
	}

	img, _ := ctx.Image().(*image.RGBA)
	return &Sprite{
		Img:     img,
		AnchorX: int(ax),
		AnchorY: int(ay),
	}
}

// categoryTint nudges the base palette per category so same-chain
// buildings stay distinguishable at a glance.
func categoryTint(c color.RGBA, cat game.BuildingCategory) color.RGBA {
	switch cat {
	case game.CategoryMining:
		return shade(c, 0.94)
	case game.CategoryDeFi:
		return shade(c, 1.06)
	case game.CategoryInfra:
		return shade(c, 0.9)
	case game.CategoryResidential:
		return shade(c, 1.12)
	default:
		return c
	}
}

// shade multiplies RGB by f, clamping to byte range.
func shade(c color.RGBA, f float64) color.RGBA {
	return color.RGBA{
		R: clampByte(float64(c.R) * f),
		G: clampByte(float64(c.G) * f),
		B: clampByte(float64(c.B) * f),
		A: c.A,
	}
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
