package tactics

import "math"

// Point is an integer grid coordinate.
type Point struct {
	X, Y int
}

// cell holds the occupant of a board square, if any.
type cell struct {
	occupied bool
	unit     Unit
	team     Team
}

// Board is an immutable square grid of side Size, with Scale inches per
// cell. Each cell is either empty or holds exactly one (unit, team).
// Every mutating helper returns a new Board; the receiver is untouched.
type Board struct {
	Size  int
	Scale float64
	cells []cell // row-major, len == Size*Size
}

// NewBoard returns an empty board of the given size and scale.
func NewBoard(size int, scale float64) Board {
	return Board{Size: size, Scale: scale, cells: make([]cell, size*size)}
}

func (b Board) idx(p Point) int { return p.Y*b.Size + p.X }

// InBounds reports whether p lies on the board.
func (b Board) InBounds(p Point) bool {
	return p.X >= 0 && p.X < b.Size && p.Y >= 0 && p.Y < b.Size
}

// IsOccupied reports whether p holds a unit.
func (b Board) IsOccupied(p Point) bool {
	if !b.InBounds(p) {
		return false
	}
	return b.cells[b.idx(p)].occupied
}

// UnitOn returns the unit at p and whether one is present.
func (b Board) UnitOn(p Point) (Unit, bool) {
	if !b.InBounds(p) {
		return Unit{}, false
	}
	c := b.cells[b.idx(p)]
	return c.unit, c.occupied
}

// TeamOn returns the team occupying p and whether a unit is present.
func (b Board) TeamOn(p Point) (Team, bool) {
	if !b.InBounds(p) {
		return 0, false
	}
	c := b.cells[b.idx(p)]
	return c.team, c.occupied
}

// Set returns a new board with u placed at p for team.
func (b Board) Set(p Point, u Unit, team Team) Board {
	nb := b.clone()
	nb.cells[nb.idx(p)] = cell{occupied: true, unit: u, team: team}
	return nb
}

// Clear returns a new board with p emptied.
func (b Board) Clear(p Point) Board {
	nb := b.clone()
	nb.cells[nb.idx(p)] = cell{}
	return nb
}

func (b Board) clone() Board {
	cells := make([]cell, len(b.cells))
	copy(cells, b.cells)
	return Board{Size: b.Size, Scale: b.Scale, cells: cells}
}

// Distance returns the Euclidean distance between p and q in inches.
func (b Board) Distance(p, q Point) float64 {
	dx := float64(p.X - q.X)
	dy := float64(p.Y - q.Y)
	return b.Scale * math.Sqrt(dx*dx+dy*dy)
}

// SquaresWithin returns every in-bounds cell q with Distance(p, q) <= r,
// enumerated in row-major order.
func (b Board) SquaresWithin(p Point, r float64) []Point {
	if b.Scale <= 0 {
		return nil
	}
	cellRadius := r / b.Scale
	var out []Point
	lo := int(math.Floor(float64(p.X) - cellRadius))
	hi := int(math.Ceil(float64(p.X) + cellRadius))
	loY := int(math.Floor(float64(p.Y) - cellRadius))
	hiY := int(math.Ceil(float64(p.Y) + cellRadius))
	for y := loY; y <= hiY; y++ {
		for x := lo; x <= hi; x++ {
			q := Point{X: x, Y: y}
			if !b.InBounds(q) {
				continue
			}
			if b.Distance(p, q) <= r+1e-9 {
				out = append(out, q)
			}
		}
	}
	return out
}

// HasAdjacentEnemy reports whether any of the up to 8 Chebyshev-1
// neighbors of p (excluding p itself) is occupied by the opposing team.
func (b Board) HasAdjacentEnemy(p Point, team Team) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			q := Point{X: p.X + dx, Y: p.Y + dy}
			if t, ok := b.TeamOn(q); ok && t != team {
				return true
			}
		}
	}
	return false
}

// AllUnits returns every (position, unit) occupied by team, in row-major order.
func (b Board) AllUnits(team Team) []struct {
	Pos  Point
	Unit Unit
} {
	var out []struct {
		Pos  Point
		Unit Unit
	}
	for y := 0; y < b.Size; y++ {
		for x := 0; x < b.Size; x++ {
			p := Point{X: x, Y: y}
			c := b.cells[b.idx(p)]
			if c.occupied && c.team == team {
				out = append(out, struct {
					Pos  Point
					Unit Unit
				}{Pos: p, Unit: c.unit})
			}
		}
	}
	return out
}

// AnyUnits reports whether team has at least one unit on the board.
func (b Board) AnyUnits(team Team) bool {
	for _, c := range b.cells {
		if c.occupied && c.team == team {
			return true
		}
	}
	return false
}

// RemoveDead returns a new board with every unit whose TotalW <= 0 cleared,
// enforcing the invariant that dead units never appear in an externally
// observable state.
func (b Board) RemoveDead() Board {
	nb := b.clone()
	changed := false
	for i, c := range nb.cells {
		if c.occupied && !c.unit.Alive() {
			nb.cells[i] = cell{}
			changed = true
		}
	}
	if !changed {
		return b
	}
	return nb
}

// UpdateUnit returns a new board with the unit at p replaced by u,
// keeping the same team. No-op if p is not occupied.
func (b Board) UpdateUnit(p Point, u Unit) Board {
	if !b.IsOccupied(p) {
		return b
	}
	nb := b.clone()
	c := nb.cells[nb.idx(p)]
	c.unit = u
	nb.cells[nb.idx(p)] = c
	return nb
}

// Move returns a new board with the occupant of from relocated to to.
// No-op if from is empty or to is occupied.
func (b Board) Move(from, to Point) Board {
	c, ok := b.UnitOn(from)
	if !ok || b.IsOccupied(to) {
		return b
	}
	team, _ := b.TeamOn(from)
	nb := b.Clear(from)
	return nb.Set(to, c, team)
}
