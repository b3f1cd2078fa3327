package tactics

// LegalMoves enumerates Move commands for the unit at p: destinations
// within its movement range that are unoccupied and not adjacent to an
// enemy, per spec §4.B.
func LegalMoves(b Board, p Point) []Command {
	u, ok := b.UnitOn(p)
	if !ok {
		return nil
	}
	team, _ := b.TeamOn(p)
	var cmds []Command
	for _, q := range b.SquaresWithin(p, float64(u.Movement)) {
		if q == p {
			continue
		}
		if b.IsOccupied(q) {
			continue
		}
		if b.HasAdjacentEnemy(q, team) {
			continue
		}
		cmds = append(cmds, NewMove(p, q))
	}
	return cmds
}

// ApplyMove resolves a Move command deterministically: the unit relocates,
// its Moved flag is set, and MovedOutOfCombat is set iff it was in melee
// before the move (every legal destination is melee-free afterward).
func ApplyMove(b Board, cmd Command) BoardDist {
	u, ok := b.UnitOn(cmd.From)
	if !ok {
		return singleton(b)
	}
	team, _ := b.TeamOn(cmd.From)
	wasInMelee := b.HasAdjacentEnemy(cmd.From, team)

	u.Moved = true
	if wasInMelee {
		u.MovedOutOfCombat = true
	}

	nb := b.Move(cmd.From, cmd.To)
	nb = nb.UpdateUnit(cmd.To, u)
	return singleton(nb)
}
