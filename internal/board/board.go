package board

import (
	"fmt"

	"tilechain/internal/tile"
)

// StepCap bounds a walk that keeps cycling through already placed tiles.
const StepCap = 50

type Size struct {
	W int `json:"w"`
	H int `json:"h"`
}

func (s Size) Contains(p Point) bool {
	return p.X >= 0 && p.X < s.W && p.Y >= 0 && p.Y < s.H
}

func (s Size) Cells() int {
	return s.W * s.H
}

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) Step(h tile.Heading) Point {
	dx, dy := h.Delta()
	return Point{X: p.X + dx, Y: p.Y + dy}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Grid owns the tiles placed during one walk. Cells stay nil until visited.
type Grid struct {
	size  Size
	cells []*tile.Tile
}

func NewGrid(size Size) *Grid {
	return &Grid{size: size, cells: make([]*tile.Tile, size.Cells())}
}

func (g *Grid) Size() Size {
	return g.size
}

// At returns the tile at p, or nil when p is empty or outside the grid.
func (g *Grid) At(p Point) *tile.Tile {
	if !g.size.Contains(p) {
		return nil
	}
	return g.cells[p.Y*g.size.W+p.X]
}

func (g *Grid) place(p Point, t *tile.Tile) {
	g.cells[p.Y*g.size.W+p.X] = t
}

// Placed counts occupied cells.
func (g *Grid) Placed() int {
	n := 0
	for _, c := range g.cells {
		if c != nil {
			n++
		}
	}
	return n
}
