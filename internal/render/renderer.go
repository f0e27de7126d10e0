package render

import (
	"fmt"
	"image"
	"image/draw"
	"math"
	"sync"
	"time"

	"github.com/fogleman/gg"

	"cryptopolis/internal/game"
)

const (
	minZoom = 0.25
	maxZoom = 3.0
)

// CameraState is the published camera for state payloads.
type CameraState struct {
	PanX   float64 `json:"panX"`
	PanY   float64 `json:"panY"`
	Zoom   float64 `json:"zoom"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// CityRenderer composites city snapshots into frames. It owns the
// camera, the dirty-tile tracker, and the cached terrain and building
// layers. Everything except the published state copy is mutated only
// from the streamer tick goroutine; RenderOverview is the one
// concurrent entry point and touches none of the cached state.
type CityRenderer struct {
	proj    Projection
	painter *Painter
	sprites *SpriteCache
	pool    *RenderWorkerPool

	width  int
	height int
	panX   float64
	panY   float64
	zoom   float64

	dirty     *DirtyRegion
	terrain   *LayerCache
	buildings *LayerCache

	// Building layout of the last rendered frame, for diffing changed
	// tiles when the grid version moves.
	lastTiles       map[TileKey]string
	lastGridVersion uint64

	acc     *MetricsAccumulator
	metrics RenderMetrics

	// Copies served to other goroutines.
	stateMu         sync.Mutex
	publishedOutput RenderMetrics
	publishedCamera CameraState

	particleScratch []game.ParticleSnapshot
	keyScratch      []TileKey
}

// NewCityRenderer creates a renderer for the given canvas size with
// the camera fitted so the whole grid is in view.
func NewCityRenderer(width, height, gridSize int, proj Projection) (*CityRenderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("renderer canvas must be positive, got %dx%d", width, height)
	}

	sprites, err := NewSpriteCache(proj)
	if err != nil {
		return nil, err
	}

	terrain, err := NewLayerCache("terrain", width, height, SurfaceRaw)
	if err != nil {
		return nil, err
	}
	buildings, err := NewLayerCache("buildings", width, height, SurfaceRaw)
	if err != nil {
		return nil, err
	}

	pool := NewRenderWorkerPool(0)
	pool.Start()

	zoom, panX, panY := fitCamera(width, height, gridSize, proj)

	r := &CityRenderer{
		proj:      proj,
		painter:   NewPainter(proj, sprites),
		sprites:   sprites,
		pool:      pool,
		width:     width,
		height:    height,
		panX:      panX,
		panY:      panY,
		zoom:      zoom,
		dirty:     NewDirtyRegion(),
		terrain:   terrain,
		buildings: buildings,
		lastTiles: make(map[TileKey]string),
		acc:       NewMetricsAccumulator(),
	}
	r.publishState()
	return r, nil
}

// Close releases the worker pool and sprite cache.
func (r *CityRenderer) Close() {
	r.pool.Stop()
	r.sprites.Close()
}

// fitCamera returns the zoom and pan that center the whole grid in the
// canvas with margin for sprite overflow above the back row.
func fitCamera(width, height, gridSize int, proj Projection) (zoom, panX, panY float64) {
	worldW := float64(gridSize) * float64(proj.TileWidth)
	worldH := float64(gridSize)*float64(proj.TileHeight) + maxSpriteOverflow
	zoom = math.Min(float64(width)/worldW, float64(height)/worldH)
	if zoom < minZoom {
		zoom = minZoom
	}
	panX = float64(width) / 2
	panY = maxSpriteOverflow*zoom + (float64(height)-worldH*zoom)/2
	return zoom, panX, panY
}

func (r *CityRenderer) viewport() Viewport {
	return Viewport{X: r.panX, Y: r.panY, Width: float64(r.width), Height: float64(r.height)}
}

// Pan shifts the camera by screen pixels.
func (r *CityRenderer) Pan(dx, dy float64) {
	r.panX += dx
	r.panY += dy
}

// SetZoom zooms about the canvas center so the view does not jump.
// Values clamp to [minZoom, maxZoom].
func (r *CityRenderer) SetZoom(z float64) {
	if z < minZoom {
		z = minZoom
	}
	if z > maxZoom {
		z = maxZoom
	}
	cx := float64(r.width) / 2
	cy := float64(r.height) / 2
	wx := (cx - r.panX) / r.zoom
	wy := (cy - r.panY) / r.zoom
	r.zoom = z
	r.panX = cx - wx*z
	r.panY = cy - wy*z
}

// ZoomBy scales the current zoom by factor, anchored at center.
func (r *CityRenderer) ZoomBy(factor float64) {
	if factor <= 0 {
		return
	}
	r.SetZoom(r.zoom * factor)
}

// Zoom returns the current zoom level.
func (r *CityRenderer) Zoom() float64 { return r.zoom }

// SetViewportSize reallocates the layer surfaces for a new canvas
// size. Cached pixels are dimension-bound, so both layers invalidate.
func (r *CityRenderer) SetViewportSize(width, height int) error {
	if err := r.terrain.Resize(width, height); err != nil {
		return err
	}
	if err := r.buildings.Resize(width, height); err != nil {
		return err
	}
	r.width = width
	r.height = height
	r.dirty.RequestFullRedraw()
	return nil
}

// Metrics returns the last published render metrics.
func (r *CityRenderer) Metrics() RenderMetrics {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.publishedOutput
}

// Camera returns the last published camera state.
func (r *CityRenderer) Camera() CameraState {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.publishedCamera
}

func (r *CityRenderer) publishState() {
	r.stateMu.Lock()
	r.publishedOutput = r.metrics
	r.publishedCamera = CameraState{
		PanX:   r.panX,
		PanY:   r.panY,
		Zoom:   r.zoom,
		Width:  r.width,
		Height: r.height,
	}
	r.stateMu.Unlock()
}

// markChangedTiles diffs the snapshot's building layout against the
// last rendered frame and marks changed tiles dirty. Runs only when
// the grid version moved, so steady frames skip the scan.
func (r *CityRenderer) markChangedTiles(snap *game.CitySnapshot) {
	if snap.GridVersion == r.lastGridVersion {
		return
	}

	cur := make(map[TileKey]string, len(snap.Buildings))
	for i := range snap.Buildings {
		b := &snap.Buildings[i]
		cur[TileKey{X: b.GridX, Y: b.GridY}] = b.ID
	}

	for k, id := range cur {
		if prev, ok := r.lastTiles[k]; !ok || prev != id {
			r.dirty.MarkTile(k.X, k.Y)
		}
	}
	for k := range r.lastTiles {
		if _, ok := cur[k]; !ok {
			r.dirty.MarkTile(k.X, k.Y)
		}
	}

	r.lastTiles = cur
	r.lastGridVersion = snap.GridVersion
}

// RenderFrame composites one frame for the snapshot into the back
// buffer context and folds the frame time into the metrics.
func (r *CityRenderer) RenderFrame(ctx *gg.Context, snap *game.CitySnapshot) {
	start := time.Now()

	frame, ok := ctx.Image().(*image.RGBA)
	if !ok {
		return
	}

	vp := r.viewport()
	vr := r.proj.ComputeVisibleRange(vp, r.zoom, snap.GridSize)

	r.markChangedTiles(snap)

	keys := r.dirty.Keys(r.keyScratch[:0])
	r.keyScratch = keys

	tiles, draws := 0, 0
	tSurf := r.terrain.Surface().Image()
	bSurf := r.buildings.Surface().Image()

	if r.terrain.CanPatch(snap.GridVersion, vp, r.zoom) && !r.dirty.NeedsFullRedraw() {
		t, d := r.painter.PatchTerrain(tSurf, snap, vp, r.zoom, vr, keys)
		tiles += t
		draws += d
		r.terrain.MarkUpdated(snap.GridVersion, vp, r.zoom)
	} else if r.terrain.NeedsUpdate(snap.GridVersion, vp, r.zoom) {
		t, d := r.painter.PaintTerrain(tSurf, snap, vp, r.zoom, vr)
		tiles += t
		draws += d
		r.terrain.MarkUpdated(snap.GridVersion, vp, r.zoom)
	}

	if r.buildings.CanPatch(snap.GridVersion, vp, r.zoom) && !r.dirty.NeedsFullRedraw() {
		t, d := r.painter.PatchBuildings(bSurf, snap, vp, r.zoom, vr, keys)
		tiles += t
		draws += d
		r.buildings.MarkUpdated(snap.GridVersion, vp, r.zoom)
	} else if r.buildings.NeedsUpdate(snap.GridVersion, vp, r.zoom) {
		t, d := r.painter.PaintBuildings(bSurf, snap, vp, r.zoom, vr)
		tiles += t
		draws += d
		r.buildings.MarkUpdated(snap.GridVersion, vp, r.zoom)
	}

	r.dirty.Clear()

	// Composite both cached layers into the frame.
	draw.Draw(frame, frame.Bounds(), tSurf, image.Point{}, draw.Src)
	draw.Draw(frame, frame.Bounds(), bSurf, image.Point{}, draw.Over)
	draws += 2

	// Overlays draw every frame; they are cheap and animate.
	fr := NewFastRenderer(r.width, r.height, frame.Pix)
	draws += r.painter.DrawConnections(fr, snap, vp, r.zoom)
	draws += r.painter.DrawGlowMarkers(fr, snap, vp, r.zoom)

	// Particles, transformed from world space into canvas space.
	scratch := r.particleScratch[:0]
	for _, pt := range snap.Particles {
		pt.X = pt.X*r.zoom + vp.X
		pt.Y = pt.Y*r.zoom + vp.Y
		pt.Size *= r.zoom
		scratch = append(scratch, pt)
	}
	r.particleScratch = scratch
	r.pool.RenderParticles(scratch, frame.Pix, r.width, r.height)
	draws += len(scratch)

	r.painter.DrawHUD(ctx, snap, r.metrics)
	draws += 6

	frameMs := float64(time.Since(start)) / float64(time.Millisecond)
	UpdateRenderMetrics(r.acc, &r.metrics, frameMs, tiles, draws)
	r.publishState()
}

// ResetSession clears rolling metrics and forces a full repaint, for
// stream restarts.
func (r *CityRenderer) ResetSession() {
	ResetRenderMetrics(r.acc, &r.metrics)
	r.dirty.RequestFullRedraw()
	r.terrain.Invalidate()
	r.buildings.Invalidate()
	r.publishState()
}

// RenderOverview paints the whole grid into a fresh image through the
// direct path: no layer caches, no HUD, no particles. Safe to call
// from any goroutine; the thumbnail endpoint uses it.
func (r *CityRenderer) RenderOverview(snap *game.CitySnapshot, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	zoom, panX, panY := fitCamera(width, height, snap.GridSize, r.proj)
	vp := Viewport{X: panX, Y: panY, Width: float64(width), Height: float64(height)}
	vr := r.proj.ComputeVisibleRange(vp, zoom, snap.GridSize)

	r.painter.PaintTerrain(img, snap, vp, zoom, vr)

	idx := tileIndex(snap)
	forEachTileBackToFront(vr, func(x, y int) {
		if i, ok := idx[TileKey{X: x, Y: y}]; ok {
			r.painter.blitSprite(img, &snap.Buildings[i], vp, zoom)
		}
	})

	fr := NewFastRenderer(width, height, img.Pix)
	r.painter.DrawConnections(fr, snap, vp, zoom)
	return img
}
