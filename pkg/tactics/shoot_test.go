package tactics

import "testing"

func TestLegalShootsRangeAndTeam(t *testing.T) {
	b := NewBoard(20, 1.0)
	shooter := Point{X: 0, Y: 0}
	inRange := Point{X: 0, Y: 10}
	outOfRange := Point{X: 0, Y: 19}
	ally := Point{X: 1, Y: 0}

	u := testUnit("a")
	u.Ranged.Range = 12
	b = b.Set(shooter, u, TeamA)
	b = b.Set(inRange, testUnit("e"), TeamB)
	b = b.Set(outOfRange, testUnit("e2"), TeamB)
	b = b.Set(ally, testUnit("ally"), TeamA)

	cmds := LegalShoots(b, shooter)
	var sawInRange bool
	for _, c := range cmds {
		if c.Target == outOfRange {
			t.Error("should not be able to shoot a target outside range")
		}
		if c.Target == ally {
			t.Error("should not be able to shoot an ally")
		}
		if c.Target == inRange {
			sawInRange = true
		}
	}
	if !sawInRange {
		t.Error("expected the in-range enemy to be a legal target")
	}
}

func TestLegalShootsBlockedWhenShooterInMelee(t *testing.T) {
	b := NewBoard(20, 1.0)
	shooter := Point{X: 5, Y: 5}
	b = b.Set(shooter, testUnit("a"), TeamA)
	b = b.Set(Point{X: 6, Y: 5}, testUnit("e"), TeamB)

	if cmds := LegalShoots(b, shooter); len(cmds) != 0 {
		t.Errorf("a unit in melee should have no legal shots, got %d", len(cmds))
	}
}

func TestShotsTotalRapidFireDoubles(t *testing.T) {
	u := testUnit("a")
	u.Count = 1
	u.Ranged = RangedWeapon{Range: 24, Shots: 2, IsRapid: true}

	if got := shotsTotal(u, 20); got != 2 {
		t.Errorf("beyond half range rapid fire should not double, got %d", got)
	}
	if got := shotsTotal(u, 10); got != 4 {
		t.Errorf("within half range rapid fire should double, got %d", got)
	}
}

func TestApplyShootDistributionSumsToOne(t *testing.T) {
	b := NewBoard(20, 1.0)
	shooter := Point{X: 0, Y: 0}
	target := Point{X: 0, Y: 5}
	su := testUnit("a")
	su.Ranged = RangedWeapon{Range: 18, Strength: 5, AP: 1, Damage: 1, Shots: 3}
	su.Count = 2
	b = b.Set(shooter, su, TeamA)
	b = b.Set(target, testUnit("e"), TeamB)

	dist := ApplyShoot(b, NewShoot(shooter, target))
	sum := 0.0
	for _, p := range dist.Probs {
		sum += p
	}
	if !approxEqual(sum, 1.0, 1e-6) {
		t.Errorf("shoot outcome distribution should sum to 1, got %v", sum)
	}

	su2, ok := dist.Boards[0].UnitOn(shooter)
	if !ok || !su2.Fired {
		t.Error("expected the shooter's Fired flag to be set")
	}
}

func TestApplyShootOverwatchDoesNotSetFired(t *testing.T) {
	b := NewBoard(20, 1.0)
	shooter := Point{X: 0, Y: 0}
	target := Point{X: 0, Y: 5}
	b = b.Set(shooter, testUnit("a"), TeamA)
	b = b.Set(target, testUnit("e"), TeamB)

	dist := ApplyShoot(b, NewOverwatch(shooter, target))
	su, ok := dist.Boards[0].UnitOn(shooter)
	if !ok || su.Fired {
		t.Error("overwatch fire should never set the shooter's own Fired flag")
	}
}

func TestApplyShootOverwatchAgainstDeadTargetIsNoOp(t *testing.T) {
	b := NewBoard(20, 1.0)
	shooter := Point{X: 0, Y: 0}
	target := Point{X: 0, Y: 5}
	b = b.Set(shooter, testUnit("a"), TeamA)
	// target cell left empty, simulating an already-eliminated charger.

	dist := ApplyShoot(b, NewOverwatch(shooter, target))
	if len(dist.Boards) != 1 {
		t.Fatalf("expected a single no-op outcome, got %d", len(dist.Boards))
	}
}
