package tactics

// LegalShoots enumerates Shoot commands for the unit at p against every
// in-range enemy unit, per spec §4.B: shooter has a ranged weapon and is
// not itself in melee, target is not in melee, shooter didn't move out
// of combat this turn, and target is on the opposing team.
func LegalShoots(b Board, p Point) []Command {
	u, ok := b.UnitOn(p)
	if !ok || !u.Ranged.HasWeapon() {
		return nil
	}
	team, _ := b.TeamOn(p)
	if b.HasAdjacentEnemy(p, team) {
		return nil
	}
	if u.MovedOutOfCombat {
		return nil
	}

	var cmds []Command
	for _, q := range b.SquaresWithin(p, float64(u.Ranged.Range)) {
		if q == p {
			continue
		}
		tTeam, occ := b.TeamOn(q)
		if !occ || tTeam == team {
			continue
		}
		if b.HasAdjacentEnemy(q, tTeam) {
			continue // target is itself in melee
		}
		cmds = append(cmds, NewShoot(p, q))
	}
	return cmds
}

// shotsTotal computes the number of shots fired, doubling for rapid-fire
// weapons used at half range or less.
func shotsTotal(u Unit, distance float64) int {
	n := u.Ranged.Shots * u.Count
	if u.Ranged.IsRapid && u.Ranged.Range > 0 && distance <= float64(u.Ranged.Range)/2 {
		n *= 2
	}
	return n
}

// effectiveHitSkill resolves the hit skill used for a shot: an explicit
// override (overwatch forces 6) takes precedence, then heavy weapons
// fired after moving clamp to 6, otherwise the shooter's own BS.
func effectiveHitSkill(u Unit, override int) int {
	if override != 0 {
		return override
	}
	if u.Ranged.IsHeavy && u.Moved {
		return 6
	}
	return u.BS
}

// ApplyShoot resolves a Shoot command (including overwatch, via
// cmd.OverrideHitSkill/cmd.SafeTarget) into a damage distribution over
// the target's remaining wounds. Overwatch against an already-eliminated
// target (SafeTarget and the cell now empty) is a no-op, and overwatch
// never mutates the shooter's own flags (invariant: no firedThisTurn
// side effect from out-of-turn fire).
func ApplyShoot(b Board, cmd Command) BoardDist {
	shooter, ok := b.UnitOn(cmd.From)
	if !ok {
		return singleton(b)
	}
	target, ok := b.UnitOn(cmd.Target)
	if !ok {
		if cmd.SafeTarget {
			return singleton(b)
		}
		return singleton(b)
	}

	distance := b.Distance(cmd.From, cmd.Target)
	n := shotsTotal(shooter, distance)
	skill := effectiveHitSkill(shooter, cmd.OverrideHitSkill)
	p := PenetratingHitProbability(skill, shooter.Ranged.Strength, target.T, target.Sv, shooter.Ranged.AP, target.Inv)

	base := b
	if !cmd.SafeTarget {
		shooter.Fired = true
		base = base.UpdateUnit(cmd.From, shooter)
	}

	dmg := shooter.Ranged.Damage
	oldCount := target.Count

	var dist BoardDist
	for k := 0; k <= n; k++ {
		prob := BinomialPMF(n, p, k)
		if prob == 0 {
			continue
		}
		newTarget := target.ApplyDamage(k * dmg)
		lost := oldCount - newTarget.Count
		if lost > 0 {
			newTarget.ModelsLostThisPhase += lost
		}
		outcome := base.UpdateUnit(cmd.Target, newTarget).RemoveDead()
		dist.Boards = append(dist.Boards, outcome)
		dist.Probs = append(dist.Probs, prob)
	}
	if len(dist.Boards) == 0 {
		return singleton(base)
	}
	return dist.Normalize()
}
