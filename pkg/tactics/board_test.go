package tactics

import "testing"

func testUnit(name string) Unit {
	return UnitTemplate{
		Name: name, Count: 5, Movement: 6, WS: 3, BS: 3, T: 4,
		Wounds: 1, TotalW: 5, Attacks: 2, Ld: 7, Sv: 3, Inv: 7,
		Ranged: RangedWeapon{Range: 18, Strength: 4, AP: 0, Damage: 1, Shots: 1},
		Melee:  MeleeWeapon{Strength: 4, AP: 0, Damage: 1},
	}.Instantiate()
}

func TestBoardSetGetImmutable(t *testing.T) {
	b := NewBoard(8, 1.0)
	p := Point{X: 1, Y: 1}
	u := testUnit("a")

	nb := b.Set(p, u, TeamA)
	if b.IsOccupied(p) {
		t.Error("original board should be unaffected by Set")
	}
	if !nb.IsOccupied(p) {
		t.Error("new board should have the unit placed")
	}

	got, ok := nb.UnitOn(p)
	if !ok || got.Name != "a" {
		t.Errorf("UnitOn returned %+v, ok=%v", got, ok)
	}
}

func TestBoardClearAndMove(t *testing.T) {
	b := NewBoard(8, 1.0)
	from, to := Point{X: 0, Y: 0}, Point{X: 3, Y: 0}
	b = b.Set(from, testUnit("a"), TeamA)

	moved := b.Move(from, to)
	if moved.IsOccupied(from) {
		t.Error("source cell should be empty after move")
	}
	if !moved.IsOccupied(to) {
		t.Error("destination cell should be occupied after move")
	}

	// Moving onto an occupied cell is a no-op.
	occupied := moved.Set(from, testUnit("b"), TeamB)
	blocked := occupied.Move(from, to)
	if !blocked.IsOccupied(from) {
		t.Error("move onto an occupied cell should be a no-op")
	}
}

func TestBoardDistanceAndSquaresWithin(t *testing.T) {
	b := NewBoard(10, 2.0)
	p := Point{X: 5, Y: 5}
	q := Point{X: 5, Y: 8}
	if got := b.Distance(p, q); !approxEqual(got, 6.0, 1e-9) {
		t.Errorf("Distance = %v, want 6.0 (scale 2 * 3 cells)", got)
	}

	within := b.SquaresWithin(p, 2.0)
	for _, sq := range within {
		if b.Distance(p, sq) > 2.0+1e-9 {
			t.Errorf("square %+v at distance %v exceeds radius", sq, b.Distance(p, sq))
		}
	}
	found := false
	for _, sq := range within {
		if sq == p {
			found = true
		}
	}
	if !found {
		t.Error("SquaresWithin should include the origin cell itself")
	}
}

func TestHasAdjacentEnemy(t *testing.T) {
	b := NewBoard(8, 1.0)
	p := Point{X: 2, Y: 2}
	b = b.Set(p, testUnit("a"), TeamA)

	if b.HasAdjacentEnemy(p, TeamA) {
		t.Error("no enemy placed yet")
	}

	b = b.Set(Point{X: 3, Y: 2}, testUnit("b"), TeamB)
	if !b.HasAdjacentEnemy(p, TeamA) {
		t.Error("expected adjacent enemy")
	}
	if b.HasAdjacentEnemy(Point{X: 3, Y: 2}, TeamA) {
		t.Error("adjacency check from the wrong team's perspective should not flip")
	}
}

func TestRemoveDeadClearsZeroWoundUnits(t *testing.T) {
	b := NewBoard(8, 1.0)
	p := Point{X: 0, Y: 0}
	u := testUnit("a")
	u.TotalW = 0
	b = b.Set(p, u, TeamA)

	cleaned := b.RemoveDead()
	if cleaned.IsOccupied(p) {
		t.Error("a unit with zero total wounds should be removed")
	}
}

func TestAnyUnitsAndAllUnits(t *testing.T) {
	b := NewBoard(8, 1.0)
	if b.AnyUnits(TeamA) {
		t.Error("empty board should report no units for either team")
	}
	b = b.Set(Point{X: 0, Y: 0}, testUnit("a"), TeamA)
	b = b.Set(Point{X: 1, Y: 1}, testUnit("b"), TeamB)

	if !b.AnyUnits(TeamA) || !b.AnyUnits(TeamB) {
		t.Error("expected both teams to have units")
	}
	if got := b.AllUnits(TeamA); len(got) != 1 || got[0].Unit.Name != "a" {
		t.Errorf("AllUnits(TeamA) = %+v", got)
	}
}
