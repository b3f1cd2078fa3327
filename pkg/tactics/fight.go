package tactics

// LegalFights enumerates Fight commands for the unit at p against every
// occupied adjacent enemy cell, provided the unit has a melee weapon and
// at least one attack, per spec §4.B.
func LegalFights(b Board, p Point) []Command {
	u, ok := b.UnitOn(p)
	if !ok || !u.Melee.HasWeapon() || u.Attacks <= 0 {
		return nil
	}
	team, _ := b.TeamOn(p)

	var cmds []Command
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			q := Point{X: p.X + dx, Y: p.Y + dy}
			if tTeam, occ := b.TeamOn(q); occ && tTeam != team {
				cmds = append(cmds, NewFight(p, q))
			}
		}
	}
	return cmds
}

// ApplyFight resolves a Fight command into a damage distribution over the
// target's remaining wounds, binomial in the attacker's total attacks.
func ApplyFight(b Board, cmd Command) BoardDist {
	attacker, ok := b.UnitOn(cmd.From)
	if !ok {
		return singleton(b)
	}
	target, ok := b.UnitOn(cmd.Target)
	if !ok {
		return singleton(b)
	}

	n := attacker.Attacks * attacker.Count
	p := PenetratingHitProbability(attacker.WS, attacker.Melee.Strength, target.T, target.Sv, attacker.Melee.AP, target.Inv)

	attacker.Fought = true
	base := b.UpdateUnit(cmd.From, attacker)

	dmg := attacker.Melee.Damage
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
