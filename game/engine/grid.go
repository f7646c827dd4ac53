package engine

import "math"

// Board converts continuous coordinates into canonical grid cells.
// The memo table only grows; see DESIGN.md for why it is not evicted.
type Board struct {
	tileWidth  float64
	radius     int
	knownCells map[Cell]*Cell
}

// NewBoard creates a board with the given tile width and neighborhood radius (in tiles)
func NewBoard(tileWidth float64, radius int) *Board {
	return &Board{
		tileWidth:  tileWidth,
		radius:     radius,
		knownCells: make(map[Cell]*Cell),
	}
}

// TileWidth returns the side length of one cell
func (b *Board) TileWidth() float64 {
	return b.tileWidth
}

// Radius returns the neighborhood radius in tiles
func (b *Board) Radius() int {
	return b.radius
}

func (b *Board) canonical(i, j int) *Cell {
	key := Cell{I: i, J: j}
	if cell, ok := b.knownCells[key]; ok {
		return cell
	}
	cell := &Cell{I: i, J: j}
	b.knownCells[key] = cell
	return cell
}

// CellForPoint returns the canonical cell containing p, truncating toward zero
func (b *Board) CellForPoint(p LatLng) *Cell {
	return b.canonical(
		int(math.Trunc(p.Lat/b.tileWidth)),
		int(math.Trunc(p.Lng/b.tileWidth)),
	)
}

// CellAt returns the canonical cell for integer coordinates
func (b *Board) CellAt(i, j int) *Cell {
	return b.canonical(i, j)
}

// CellBounds returns the rectangle [i*w, (i+1)*w) x [j*w, (j+1)*w)
func (b *Board) CellBounds(c *Cell) Bounds {
	w := b.tileWidth
	return Bounds{
		Min: LatLng{Lat: float64(c.I) * w, Lng: float64(c.J) * w},
		Max: LatLng{Lat: float64(c.I+1) * w, Lng: float64(c.J+1) * w},
	}
}

// Neighborhood returns the cells of the 2r x 2r window around p in row-major order.
// Each cell is found from the representative point p offset by whole tiles.
// Truncation folds the tiles on either side of zero together, so a cell is
// listed only at its first occurrence.
func (b *Board) Neighborhood(p LatLng) []*Cell {
	r := b.radius
	cells := make([]*Cell, 0, 4*r*r)
	seen := make(map[*Cell]bool, 4*r*r)
	for di := -r; di < r; di++ {
		for dj := -r; dj < r; dj++ {
			cell := b.CellForPoint(LatLng{
				Lat: p.Lat + float64(di)*b.tileWidth,
				Lng: p.Lng + float64(dj)*b.tileWidth,
			})
			if seen[cell] {
				continue
			}
			seen[cell] = true
			cells = append(cells, cell)
		}
	}
	return cells
}

// KnownCells returns how many cells have been canonicalized so far
func (b *Board) KnownCells() int {
	return len(b.knownCells)
}
