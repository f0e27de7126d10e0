// Package render implements the isometric rendering core: viewport
// culling, dirty-region tracking, cached layer surfaces, frame
// scheduling, and the tile painter that composites city frames.
//
// All per-frame state (dirty sets, layer caches, metrics) is owned by a
// single renderer instance and mutated only from the scheduler tick, so
// none of it is guarded by locks.
package render

import (
	"math"
)

// Viewport is the camera state for one frame: pan offset and canvas
// dimensions in screen pixels. It is rebuilt from live camera state
// every frame and has no persistent identity.
type Viewport struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Projection holds the isometric tile dimensions used to map grid
// coordinates to world screen coordinates.
type Projection struct {
	TileWidth  int
	TileHeight int
}

// DefaultProjection is the standard 2:1 isometric diamond.
var DefaultProjection = Projection{TileWidth: 64, TileHeight: 32}

// GridToScreen projects a grid cell to world screen coordinates using
// the isometric relationship. The returned point is the top vertex of
// the tile diamond, before zoom and pan are applied.
func (p Projection) GridToScreen(gx, gy int) (float64, float64) {
	sx := float64(gx-gy) * float64(p.TileWidth) / 2
	sy := float64(gx+gy) * float64(p.TileHeight) / 2
	return sx, sy
}

// ScreenToGrid inverts GridToScreen, returning fractional grid
// coordinates for a world screen point.
func (p Projection) ScreenToGrid(sx, sy float64) (float64, float64) {
	w := float64(p.TileWidth) / 2
	h := float64(p.TileHeight) / 2
	gx := (sx/w + sy/h) / 2
	gy := (sy/h - sx/w) / 2
	return gx, gy
}

// VisibleRange bounds the tile indices that can appear inside a
// viewport. MinSum/MaxSum bound the diagonal index (x+y) so callers can
// iterate anti-diagonals in back-to-front paint order. The axis bounds
// are a coarse AABB: conservative, so per-tile visibility is re-checked
// with IsTileVisible.
type VisibleRange struct {
	MinX, MaxX     int
	MinY, MaxY     int
	MinSum, MaxSum int
}

// Empty reports whether the range contains no tiles.
func (r VisibleRange) Empty() bool {
	return r.MaxSum < r.MinSum || r.MaxX < r.MinX || r.MaxY < r.MinY
}

// emptyRange is the canonical degenerate result.
var emptyRange = VisibleRange{MinX: 0, MaxX: -1, MinY: 0, MaxY: -1, MinSum: 0, MaxSum: -1}

// ComputeVisibleRange converts the viewport rectangle into the tile
// index range that can intersect it at the given zoom. Bounds are
// expanded by one tile on every side so sprites that overflow their
// logical tile stay in range.
func (p Projection) ComputeVisibleRange(vp Viewport, zoom float64, gridSize int) VisibleRange {
	if gridSize <= 0 || zoom <= 0 || vp.Width <= 0 || vp.Height <= 0 {
		return emptyRange
	}

	tileW := float64(p.TileWidth)
	tileH := float64(p.TileHeight)

	// Viewport corners back into world space.
	worldLeft := (0 - vp.X) / zoom
	worldRight := (vp.Width - vp.X) / zoom
	worldTop := (0 - vp.Y) / zoom
	worldBottom := (vp.Height - vp.Y) / zoom

	// One tile of slack left/right/top; two tile heights below, because
	// a tile whose anchor sits under the viewport can still poke a tall
	// sprite into view.
	worldLeft -= tileW
	worldRight += tileW
	worldTop -= tileH
	worldBottom += 2 * tileH

	maxIdx := gridSize - 1
	maxDiag := 2*gridSize - 2

	// screenY = (x+y)*tileH/2 bounds the diagonal index s = x+y.
	minSum := clampInt(int(math.Floor(2*worldTop/tileH)), 0, maxDiag)
	maxSum := clampInt(int(math.Ceil(2*worldBottom/tileH)), 0, maxDiag)

	// screenX = (x-y)*tileW/2 bounds the anti-diagonal index d = x-y.
	minD := math.Floor(2 * worldLeft / tileW)
	maxD := math.Ceil(2 * worldRight / tileW)

	// x = (s+d)/2 and y = (s-d)/2 recover coarse axis bounds.
	minX := clampInt(int(math.Floor((float64(minSum)+minD)/2)), 0, maxIdx)
	maxX := clampInt(int(math.Ceil((float64(maxSum)+maxD)/2)), 0, maxIdx)
	minY := clampInt(int(math.Floor((float64(minSum)-maxD)/2)), 0, maxIdx)
	maxY := clampInt(int(math.Ceil((float64(maxSum)-minD)/2)), 0, maxIdx)

	return VisibleRange{
		MinX: minX, MaxX: maxX,
		MinY: minY, MaxY: maxY,
		MinSum: minSum, MaxSum: maxSum,
	}
}

// IsTileVisible is the exact per-tile check: it tests whether the
// tile's screen-space footprint overlaps the viewport rectangle. The
// footprint extends two tile heights above the diamond anchor because
// tall building sprites overflow their tile upward.
func (p Projection) IsTileVisible(screenX, screenY float64, vp Viewport, zoom float64) bool {
	if vp.Width <= 0 || vp.Height <= 0 || zoom <= 0 {
		return false
	}

	x := screenX*zoom + vp.X
	y := screenY*zoom + vp.Y
	halfW := float64(p.TileWidth) * zoom / 2
	tileH := float64(p.TileHeight) * zoom

	// Footprint: [x-halfW, x+halfW] x [y-2*tileH, y+tileH].
	return x+halfW >= 0 && x-halfW <= vp.Width &&
		y+tileH >= 0 && y-2*tileH <= vp.Height
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
