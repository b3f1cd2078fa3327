package tactics

// LegalCharges enumerates Charge commands for the unit at p: empty
// destinations within 12" that are adjacent to an enemy, provided the
// charger is not already in melee and didn't move out of combat, per
// spec §4.B.
func LegalCharges(b Board, p Point) []Command {
	u, ok := b.UnitOn(p)
	if !ok {
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
	for _, q := range b.SquaresWithin(p, 12) {
		if q == p || b.IsOccupied(q) {
			continue
		}
		if !b.HasAdjacentEnemy(q, team) {
			continue
		}
		cmds = append(cmds, NewCharge(p, q))
	}
	return cmds
}

// overwatchers returns enemy units able to fire overwatch against a
// charger at p: opposing team, in range, not themselves in melee, with a
// usable ranged weapon. Returned in board row-major order for
// determinism.
func overwatchers(b Board, p Point, chargerTeam Team) []Point {
	enemyTeam := chargerTeam.Other()
	var out []Point
	for _, e := range b.AllUnits(enemyTeam) {
		if !e.Unit.Ranged.HasWeapon() {
			continue
		}
		if b.HasAdjacentEnemy(e.Pos, enemyTeam) {
			continue
		}
		if b.Distance(e.Pos, p) > float64(e.Unit.Ranged.Range) {
			continue
		}
		out = append(out, e.Pos)
	}
	return out
}

// ApplyCharge resolves a Charge command: every eligible enemy fires
// overwatch at the charger first (composing probabilities across
// shooters), then a 2d6 distance check determines whether the charge
// succeeds. A charger eliminated by overwatch never rolls.
func ApplyCharge(b Board, cmd Command) BoardDist {
	charger, ok := b.UnitOn(cmd.From)
	if !ok {
		return singleton(b)
	}
	chargerTeam, _ := b.TeamOn(cmd.From)
	distance := b.Distance(cmd.From, cmd.To)

	dist := singleton(b)
	for _, owPos := range overwatchers(b, cmd.From, chargerTeam) {
		dist = dist.Then(func(board Board) BoardDist {
			return ApplyShoot(board, NewOverwatch(owPos, cmd.From))
		})
	}
	_ = charger

	dist = dist.Then(func(board Board) BoardDist {
		current, alive := board.UnitOn(cmd.From)
		if !alive {
			return singleton(board)
		}
		current.AttemptedCharge = true
		withAttempt := board.UpdateUnit(cmd.From, current)

		passP := ChargePassProbability(distance)
		failP := 1 - passP

		var out BoardDist
		if passP > 0 {
			success := current
			success.SuccessfulCharge = true
			successBoard := withAttempt.Move(cmd.From, cmd.To)
			successBoard = successBoard.UpdateUnit(cmd.To, success)
			out.Boards = append(out.Boards, successBoard)
			out.Probs = append(out.Probs, passP)
		}
		if failP > 0 {
			out.Boards = append(out.Boards, withAttempt)
			out.Probs = append(out.Probs, failP)
		}
		return out
	})

	return dist.Normalize()
}
