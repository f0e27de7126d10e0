package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"
	"os"
	"runtime"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"cryptopolis/internal/game"
)

// maxSpriteOverflow is the headroom above a tile anchor that the
// tallest catalogue sprite can reach at zoom 1, used to size patch
// rectangles on the building layer.
const maxSpriteOverflow = 128

// Ground palette. Dark slate checkerboard so building colors and
// particle bursts carry the frame.
var (
	backgroundColor = color.RGBA{R: 0x10, G: 0x17, B: 0x20, A: 255}
	groundEven      = color.RGBA{R: 0x2d, G: 0x3f, B: 0x50, A: 255}
	groundOdd       = color.RGBA{R: 0x29, G: 0x3a, B: 0x4a, A: 255}
	groundLine      = color.RGBA{R: 0x1f, G: 0x2d, B: 0x3a, A: 255}

	chainLinkColor    = color.RGBA{R: 0xff, G: 0xd7, B: 0x00, A: 255}
	categoryLinkColor = color.RGBA{R: 0x22, G: 0xd3, B: 0xee, A: 255}
	glowColor         = color.RGBA{R: 0xff, G: 0xd7, B: 0x00, A: 255}
)

// Painter owns pixel-level drawing for one renderer: terrain diamonds,
// building sprites, synergy overlays, and the HUD cards. It is
// stateless between calls apart from the sprite cache and loaded fonts,
// so the overview path reuses it outside the cached-layer flow.
type Painter struct {
	proj    Projection
	sprites *SpriteCache

	fontSmall  font.Face
	fontMedium font.Face
	fontLarge  font.Face
}

// NewPainter creates a painter and loads HUD fonts. Font loading
// degrades to the embedded Go font, then to the fixed 7x13 face; it
// never fails the constructor.
func NewPainter(proj Projection, sprites *SpriteCache) *Painter {
	p := &Painter{proj: proj, sprites: sprites}
	p.loadFonts()
	return p
}

// loadFonts prefers a system font, falls back to the embedded Go
// regular face, and finally to basicfont so HUD text always renders.
func (p *Painter) loadFonts() {
	data, err := os.ReadFile(getFontPath())
	if err != nil {
		data = goregular.TTF
	}

	ft, err := opentype.Parse(data)
	if err != nil {
		log.Printf("⚠️ HUD font parse failed, using bitmap face: %v", err)
		p.fontSmall = basicfont.Face7x13
		p.fontMedium = basicfont.Face7x13
		p.fontLarge = basicfont.Face7x13
		return
	}

	p.fontSmall = newFace(ft, 12)
	p.fontMedium = newFace(ft, 16)
	p.fontLarge = newFace(ft, 22)
}

func newFace(ft *opentype.Font, size float64) font.Face {
	face, err := opentype.NewFace(ft, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

// getFontPath returns the preferred system font per OS
func getFontPath() string {
	switch runtime.GOOS {
	case "windows":
		return "C:\\Windows\\Fonts\\arial.ttf"
	case "darwin":
		return "/System/Library/Fonts/Supplemental/Arial.ttf"
	default:
		return "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf"
	}
}

// forEachTileBackToFront visits tiles along anti-diagonals with x+y
// ascending, the paint order that keeps southern tiles over northern
// ones.
func forEachTileBackToFront(vr VisibleRange, fn func(x, y int)) {
	for s := vr.MinSum; s <= vr.MaxSum; s++ {
		xStart := max(vr.MinX, s-vr.MaxY)
		xEnd := min(vr.MaxX, s-vr.MinY)
		for x := xStart; x <= xEnd; x++ {
			fn(x, s-x)
		}
	}
}

// tileIndex maps occupied tiles to their index in snap.Buildings.
func tileIndex(snap *game.CitySnapshot) map[TileKey]int {
	idx := make(map[TileKey]int, len(snap.Buildings))
	for i := range snap.Buildings {
		b := &snap.Buildings[i]
		idx[TileKey{X: b.GridX, Y: b.GridY}] = i
	}
	return idx
}

// PaintTerrain repaints the whole terrain layer: background fill, then
// one checkered diamond per visible tile, with a darker foundation pad
// under occupied tiles. Returns tiles painted and draw calls issued.
func (p *Painter) PaintTerrain(dst *image.RGBA, snap *game.CitySnapshot, vp Viewport, zoom float64, vr VisibleRange) (int, int) {
	b := dst.Bounds()
	fr := NewFastRenderer(b.Dx(), b.Dy(), dst.Pix)
	fr.Clear(backgroundColor)

	occupied := tileIndex(snap)
	tiles, draws := 0, 1

	forEachTileBackToFront(vr, func(x, y int) {
		wx, wy := p.proj.GridToScreen(x, y)
		if !p.proj.IsTileVisible(wx, wy, vp, zoom) {
			return
		}
		t, d := p.paintGroundTile(fr, x, y, wx, wy, vp, zoom, occupied)
		tiles += t
		draws += d
	})
	return tiles, draws
}

// PatchTerrain repaints only the given tiles. Diamonds tessellate, so
// repainting one touches no neighbor pixels beyond the shared edge.
func (p *Painter) PatchTerrain(dst *image.RGBA, snap *game.CitySnapshot, vp Viewport, zoom float64, vr VisibleRange, keys []TileKey) (int, int) {
	b := dst.Bounds()
	fr := NewFastRenderer(b.Dx(), b.Dy(), dst.Pix)

	occupied := tileIndex(snap)
	tiles, draws := 0, 0

	for _, k := range keys {
		if k.X < vr.MinX || k.X > vr.MaxX || k.Y < vr.MinY || k.Y > vr.MaxY {
			continue
		}
		wx, wy := p.proj.GridToScreen(k.X, k.Y)
		if !p.proj.IsTileVisible(wx, wy, vp, zoom) {
			continue
		}
		t, d := p.paintGroundTile(fr, k.X, k.Y, wx, wy, vp, zoom, occupied)
		tiles += t
		draws += d
	}
	return tiles, draws
}

func (p *Painter) paintGroundTile(fr *FastRenderer, x, y int, wx, wy float64, vp Viewport, zoom float64, occupied map[TileKey]int) (int, int) {
	sx := int(wx*zoom + vp.X + 0.5)
	sy := int(wy*zoom + vp.Y + 0.5)
	tw := int(float64(p.proj.TileWidth)*zoom + 0.5)
	th := int(float64(p.proj.TileHeight)*zoom + 0.5)

	c := groundEven
	if (x+y)%2 == 1 {
		c = groundOdd
	}
	if _, ok := occupied[TileKey{X: x, Y: y}]; ok {
		c = shade(c, 0.8)
	}

	fr.FillDiamond(sx, sy, tw, th, c)
	fr.DrawDiamondOutline(sx, sy, tw, th, groundLine)
	return 1, 2
}

// PaintBuildings repaints the whole building layer back to front. The
// layer is transparent where no sprite lands, so terrain shows through
// when the layers composite.
func (p *Painter) PaintBuildings(dst *image.RGBA, snap *game.CitySnapshot, vp Viewport, zoom float64, vr VisibleRange) (int, int) {
	draw.Draw(dst, dst.Bounds(), image.Transparent, image.Point{}, draw.Src)

	idx := tileIndex(snap)
	tiles, draws := 0, 1

	forEachTileBackToFront(vr, func(x, y int) {
		i, ok := idx[TileKey{X: x, Y: y}]
		if !ok {
			return
		}
		b := &snap.Buildings[i]
		if !p.proj.IsTileVisible(b.ScreenX, b.ScreenY, vp, zoom) {
			return
		}
		p.blitSprite(dst, b, vp, zoom)
		tiles++
		draws++
	})
	return tiles, draws
}

// PatchBuildings clears the union rectangle covering the dirty tiles
// and repaints every sprite that intersects it, back to front. Tall
// sprites overlap their southern neighbors, so patching by tile alone
// would slice them.
func (p *Painter) PatchBuildings(dst *image.RGBA, snap *game.CitySnapshot, vp Viewport, zoom float64, vr VisibleRange, keys []TileKey) (int, int) {
	if len(keys) == 0 {
		return 0, 0
	}

	halfW := float64(p.proj.TileWidth) * zoom / 2
	th := float64(p.proj.TileHeight) * zoom
	overflow := maxSpriteOverflow * zoom

	var union image.Rectangle
	for _, k := range keys {
		wx, wy := p.proj.GridToScreen(k.X, k.Y)
		sx := wx*zoom + vp.X
		sy := wy*zoom + vp.Y
		r := image.Rect(
			int(sx-halfW)-4, int(sy-overflow)-4,
			int(sx+halfW)+4, int(sy+th)+4,
		)
		if union.Empty() {
			union = r
		} else {
			union = union.Union(r)
		}
	}
	union = union.Intersect(dst.Bounds())
	if union.Empty() {
		return 0, 0
	}

	draw.Draw(dst, union, image.Transparent, image.Point{}, draw.Src)

	idx := tileIndex(snap)
	tiles, draws := 0, 1

	forEachTileBackToFront(vr, func(x, y int) {
		i, ok := idx[TileKey{X: x, Y: y}]
		if !ok {
			return
		}
		b := &snap.Buildings[i]
		if !p.proj.IsTileVisible(b.ScreenX, b.ScreenY, vp, zoom) {
			return
		}
		sp := p.sprites.Get(b, zoom)
		sb := sp.Img.Bounds()
		dx := int(b.ScreenX*zoom+vp.X+0.5) - sp.AnchorX
		dy := int(b.ScreenY*zoom+vp.Y+0.5) - sp.AnchorY
		r := image.Rect(dx, dy, dx+sb.Dx(), dy+sb.Dy())
		if !r.Overlaps(union) {
			return
		}
		// Clip each blit to the union. Pixels outside it are still
		// valid, and blending an antialiased edge over itself darkens it.
		clipped := r.Intersect(union)
		draw.Draw(dst, clipped, sp.Img, sb.Min.Add(clipped.Min.Sub(r.Min)), draw.Over)
		tiles++
		draws++
	})
	return tiles, draws
}

// spriteRect is the destination rectangle a building's sprite covers.
func (p *Painter) spriteRect(b *game.BuildingSnapshot, vp Viewport, zoom float64) image.Rectangle {
	sp := p.sprites.Get(b, zoom)
	sb := sp.Img.Bounds()
	dx := int(b.ScreenX*zoom+vp.X+0.5) - sp.AnchorX
	dy := int(b.ScreenY*zoom+vp.Y+0.5) - sp.AnchorY
	return image.Rect(dx, dy, dx+sb.Dx(), dy+sb.Dy())
}

func (p *Painter) blitSprite(dst *image.RGBA, b *game.BuildingSnapshot, vp Viewport, zoom float64) {
	sp := p.sprites.Get(b, zoom)
	r := p.spriteRect(b, vp, zoom)
	draw.Draw(dst, r, sp.Img, sp.Img.Bounds().Min, draw.Over)
}

// DrawConnections draws synergy links between tile centers. Chain links
// are gold, category links cyan; opacity and thickness follow strength.
func (p *Painter) DrawConnections(fr *FastRenderer, snap *game.CitySnapshot, vp Viewport, zoom float64) int {
	halfTh := float64(p.proj.TileHeight) / 2
	draws := 0

	for i := range snap.Connections {
		conn := &snap.Connections[i]

		fx := int(conn.FromX*zoom + vp.X + 0.5)
		fy := int((conn.FromY+halfTh)*zoom + vp.Y + 0.5)
		tx := int(conn.ToX*zoom + vp.X + 0.5)
		ty := int((conn.ToY+halfTh)*zoom + vp.Y + 0.5)

		c := categoryLinkColor
		if conn.Type == game.SynergyChain {
			c = chainLinkColor
		}
		c.A = uint8(60 + 140*conn.Strength)

		if conn.Strength > 0.66 {
			fr.DrawThickLine(fx, fy, tx, ty, 2, c)
		} else {
			fr.DrawLineBlend(fx, fy, tx, ty, c)
		}
		draws++
	}
	return draws
}

// DrawGlowMarkers rings buildings that currently receive a synergy
// bonus. Ring opacity scales with the bonus up to the cap.
func (p *Painter) DrawGlowMarkers(fr *FastRenderer, snap *game.CitySnapshot, vp Viewport, zoom float64) int {
	halfTh := float64(p.proj.TileHeight) / 2
	draws := 0

	for i := range snap.Buildings {
		b := &snap.Buildings[i]
		if b.Bonus <= 0 {
			continue
		}
		if !p.proj.IsTileVisible(b.ScreenX, b.ScreenY, vp, zoom) {
			continue
		}

		cx := int(b.ScreenX*zoom + vp.X + 0.5)
		cy := int((b.ScreenY+halfTh)*zoom + vp.Y + 0.5)
		radius := float64(p.proj.TileHeight) * 0.7 * zoom

		c := glowColor
		frac := b.Bonus / 50
		if frac > 1 {
			frac = 1
		}
		c.A = uint8(70 + 130*frac)
		fr.DrawCircleOutline(cx, cy, radius, 2, c)
		draws++
	}
	return draws
}

// DrawHUD paints the treasury and metrics cards over the finished
// frame.
func (p *Painter) DrawHUD(ctx *gg.Context, snap *game.CitySnapshot, m RenderMetrics) {
	w := float64(ctx.Width())

	// Treasury card, top left
	drawCard(ctx, 16, 16, 252, 100)
	ctx.SetFontFace(p.fontLarge)
	ctx.SetRGBA(1, 1, 1, 0.95)
	ctx.DrawString("CRYPTOPOLIS", 34, 46)
	ctx.SetFontFace(p.fontMedium)
	ctx.SetRGBA(1, 0.84, 0.25, 1)
	ctx.DrawString(fmt.Sprintf("$ %s", snap.Treasury.StringFixed(2)), 34, 72)
	ctx.SetFontFace(p.fontSmall)
	ctx.SetRGBA(0.55, 0.92, 0.55, 0.95)
	ctx.DrawString(fmt.Sprintf("+%s pending", snap.PendingYield.StringFixed(2)), 34, 91)
	ctx.SetRGBA(1, 1, 1, 0.6)
	ctx.DrawString(fmt.Sprintf("%d buildings  tick %d", snap.BuildingCount, snap.TickNumber), 34, 108)

	// Metrics card, top right
	cw := 236.0
	cx := w - cw - 16
	drawCard(ctx, cx, 16, cw, 100)
	ctx.SetFontFace(p.fontMedium)
	ctx.SetRGBA(0.13, 0.83, 0.93, 1)
	ctx.DrawString(fmt.Sprintf("%d FPS", m.FPS), cx+18, 46)
	ctx.SetFontFace(p.fontSmall)
	ctx.SetRGBA(1, 1, 1, 0.75)
	ctx.DrawString(fmt.Sprintf("frame %.1fms  avg %.1f  peak %.1f", m.FrameTime, m.AvgFrameTime, m.PeakFrameTime), cx+18, 68)
	ctx.DrawString(fmt.Sprintf("%d tiles  %d draws", m.TilesRendered, m.DrawCalls), cx+18, 87)
	ctx.DrawString(fmt.Sprintf("%d particles  %d links", len(snap.Particles), len(snap.Connections)), cx+18, 106)
}

// drawCard draws a drop-shadowed rounded card with a cyan accent strip.
func drawCard(ctx *gg.Context, x, y, w, h float64) {
	ctx.SetRGBA(0, 0, 0, 0.35)
	ctx.DrawRoundedRectangle(x+3, y+4, w, h, 10)
	ctx.Fill()
	ctx.SetRGBA(0.06, 0.10, 0.15, 0.88)
	ctx.DrawRoundedRectangle(x, y, w, h, 10)
	ctx.Fill()
	ctx.SetRGBA(0.13, 0.83, 0.93, 0.9)
	ctx.DrawRoundedRectangle(x, y, 4, h, 2)
	ctx.Fill()
}
