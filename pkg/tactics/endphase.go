package tactics

// ApplyMoraleAll runs the morale test described in spec §4.B over every
// unit of both teams that lost models this phase, composing each unit's
// independent test into a single joint distribution.
func ApplyMoraleAll(b Board) BoardDist {
	dist := singleton(b)
	for _, team := range [2]Team{TeamA, TeamB} {
		for _, entry := range b.AllUnits(team) {
			pos := entry.Pos
			dist = dist.Then(func(board Board) BoardDist {
				return applyMoraleUnit(board, pos)
			})
		}
	}
	return dist.Normalize()
}

func applyMoraleUnit(b Board, pos Point) BoardDist {
	u, ok := b.UnitOn(pos)
	if !ok || u.ModelsLostThisPhase <= 0 {
		return singleton(b)
	}
	loss := u.ModelsLostThisPhase
	minRoll := MoraleMinRollForLoss(u.Ld, loss)
	if minRoll >= 7 {
		return singleton(b)
	}

	var dist BoardDist
	if minRoll > 1 {
		remainder := float64(minRoll-1) / 6.0
		dist.Boards = append(dist.Boards, b)
		dist.Probs = append(dist.Probs, remainder)
	}

	start := minRoll
	if start < 1 {
		start = 1
	}
	for r := start; r <= 6; r++ {
		removed := loss + r - u.Ld
		if removed < 0 {
			removed = 0
		}
		nu := u.RemoveModels(removed)
		nb := b.UpdateUnit(pos, nu).RemoveDead()
		dist.Boards = append(dist.Boards, nb)
		dist.Probs = append(dist.Probs, 1.0/6.0)
	}
	if len(dist.Boards) == 0 {
		return singleton(b)
	}
	return dist
}

// ClearAllPhaseFlags returns a board with every unit's per-phase/turn
// flags reset, as performed at the end of EndPhase resolution.
func ClearAllPhaseFlags(b Board) Board {
	nb := b
	for _, team := range [2]Team{TeamA, TeamB} {
		for _, entry := range nb.AllUnits(team) {
			nb = nb.UpdateUnit(entry.Pos, entry.Unit.ClearPhaseFlags())
		}
	}
	return nb
}
