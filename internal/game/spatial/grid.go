// Package spatial provides a cache-efficient bucket index over grid
// tile coordinates for broad-phase neighbor queries.
//
// Buckets hold entity indices (not pointers) in preallocated slices to
// minimize GC pressure. Queries return a candidate superset; callers
// perform the precise distance check.
package spatial

// BucketGrid buckets tile coordinates into fixed-size square cells.
// Cells are stored in row-major order (cells[row*cols+col]). Optimal
// cell size equals the largest query radius.
type BucketGrid struct {
	cellSize int
	cols     int
	rows     int
	cells    [][]uint32
	scratch  []uint32
}

// NewBucketGrid creates an index covering a gridSize x gridSize tile
// grid. maxEntities preallocates per-cell capacity.
func NewBucketGrid(gridSize, cellSize, maxEntities int) *BucketGrid {
	if cellSize < 1 {
		cellSize = 1
	}
	cols := (gridSize + cellSize - 1) / cellSize
	if cols < 1 {
		cols = 1
	}

	cells := make([][]uint32, cols*cols)
	avgPerCell := maxEntities / len(cells)
	if avgPerCell < 4 {
		avgPerCell = 4
	}
	for i := range cells {
		cells[i] = make([]uint32, 0, avgPerCell)
	}

	return &BucketGrid{
		cellSize: cellSize,
		cols:     cols,
		rows:     cols,
		cells:    cells,
		scratch:  make([]uint32, 0, 64),
	}
}

// Clear resets all buckets without deallocating. O(number of cells).
func (g *BucketGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds an entity index at tile (x, y). Out-of-range coordinates
// clamp to the edge cells.
func (g *BucketGrid) Insert(entityID uint32, x, y int) {
	idx := g.cellIndex(x, y)
	g.cells[idx] = append(g.cells[idx], entityID)
}

func (g *BucketGrid) cellIndex(x, y int) int {
	col := clamp(x/g.cellSize, 0, g.cols-1)
	row := clamp(y/g.cellSize, 0, g.rows-1)
	return row*g.cols + col
}

// QueryRadius returns all entity indices whose tile could lie within
// Chebyshev distance radius of (cx, cy).
//
// The returned slice is reused on subsequent calls; copy it if you
// need to keep it. Candidates outside the radius are included, never
// excluded, so the narrow phase stays correct.
func (g *BucketGrid) QueryRadius(cx, cy, radius int) []uint32 {
	g.scratch = g.scratch[:0]

	minCol := clamp((cx-radius)/g.cellSize, 0, g.cols-1)
	maxCol := clamp((cx+radius)/g.cellSize, 0, g.cols-1)
	minRow := clamp((cy-radius)/g.cellSize, 0, g.rows-1)
	maxRow := clamp((cy+radius)/g.cellSize, 0, g.rows-1)

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			g.scratch = append(g.scratch, g.cells[row*g.cols+col]...)
		}
	}
	return g.scratch
}

// Stats returns bucket occupancy statistics for debugging.
func (g *BucketGrid) Stats() GridStats {
	var total, maxInCell, nonEmpty int
	for _, cell := range g.cells {
		n := len(cell)
		total += n
		if n > maxInCell {
			maxInCell = n
		}
		if n > 0 {
			nonEmpty++
		}
	}

	avg := 0.0
	if nonEmpty > 0 {
		avg = float64(total) / float64(nonEmpty)
	}
	return GridStats{
		TotalCells:     len(g.cells),
		NonEmptyCells:  nonEmpty,
		TotalEntities:  total,
		MaxInCell:      maxInCell,
		AvgPerNonEmpty: avg,
	}
}

// GridStats contains bucket occupancy statistics.
type GridStats struct {
	TotalCells     int
	NonEmptyCells  int
	TotalEntities  int
	MaxInCell      int
	AvgPerNonEmpty float64
}

// Dimensions returns the bucket layout.
func (g *BucketGrid) Dimensions() (cols, rows, cellSize int) {
	return g.cols, g.rows, g.cellSize
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
