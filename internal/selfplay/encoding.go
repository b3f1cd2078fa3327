package selfplay

import (
	"github.com/kharnhold/tacticsrl/pkg/tactics"
)

// FeaturesPerTeam is the width of one team's per-cell feature block.
const FeaturesPerTeam = 19

// BoardChannels is the total channel depth of an encoded board: one
// FeaturesPerTeam block per team, stacked.
const BoardChannels = 2 * FeaturesPerTeam

// EncodeBoard flattens b into a row-major [size*size*BoardChannels]
// float32 tensor: for each cell, the occupying team's 19-wide feature
// block is populated and the other team's block is left zero, matching
// the two-plane-per-side convention used by the predictor's ONNX graph.
func EncodeBoard(b tactics.Board) []float32 {
	size := b.Size
	tensor := make([]float32, size*size*BoardChannels)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			p := tactics.Point{X: x, Y: y}
			u, ok := b.UnitOn(p)
			if !ok {
				continue
			}
			team, _ := b.TeamOn(p)
			cellBase := (y*size + x) * BoardChannels
			teamBase := cellBase
			if team == tactics.TeamB {
				teamBase += FeaturesPerTeam
			}
			writeUnitFeatures(tensor[teamBase:teamBase+FeaturesPerTeam], u)
		}
	}
	return tensor
}

// writeUnitFeatures packs a unit's stat block into a 19-wide feature
// slice. Values the predictor's network learned its scale from during
// training are left unnormalized here and normalized downstream by the
// predictor's own input pipeline, matching how the teacher's encoder
// leaves raw counts for the network to scale.
func writeUnitFeatures(f []float32, u tactics.Unit) {
	f[0] = 1 // occupied
	f[1] = float32(u.Count)
	f[2] = float32(u.Movement)
	f[3] = float32(u.WS)
	f[4] = float32(u.BS)
	f[5] = float32(u.T)
	f[6] = float32(u.Wounds)
	f[7] = float32(u.TotalW)
	f[8] = float32(u.Attacks)
	f[9] = float32(u.Ld)
	f[10] = float32(u.Sv)
	f[11] = float32(u.Inv)
	if u.Ranged.HasWeapon() {
		f[12] = float32(u.Ranged.Range)
		f[13] = float32(u.Ranged.Strength)
		f[14] = float32(u.Ranged.AP)
		f[15] = float32(u.Ranged.Damage) * float32(u.Ranged.Shots)
	}
	if u.Melee.HasWeapon() {
		f[16] = float32(u.Melee.Strength)
		f[17] = float32(u.Melee.AP)
		f[18] = float32(u.Melee.Damage)
	}
}

// PolicyArrayLen returns the fixed output width of the policy array for
// a board of the given size: one S^2 source-cell block, one S^2
// target-cell block, plus one trailing slot shared by EndPhase and NoOp.
func PolicyArrayLen(size int) int { return 2*size*size + 1 }

// passWeight applies the phase-dependent de-weighting the teacher's
// training pipeline uses for the "do nothing" branch of the policy: a
// near-zero but nonzero weight during Move/Charge (skipping is often a
// legitimate, if rare, choice) and a hard zero during Shoot/Fight
// (passing up a free attack should never be reinforced).
const passWeightMoveCharge = 1e-3

func passWeight(phase tactics.Phase) float64 {
	switch phase {
	case tactics.PhaseMove, tactics.PhaseCharge:
		return passWeightMoveCharge
	default:
		return 0
	}
}

// targetCell returns the destination/target cell a unit-order command
// acts on: Move/Charge's To, Shoot/Fight's Target.
func targetCell(c tactics.Command) tactics.Point {
	if c.Kind == tactics.CmdShoot || c.Kind == tactics.CmdFight {
		return c.Target
	}
	return c.To
}

// PolicyToArray converts an MCTS visit-count policy (aligned with cmds)
// into the fixed-size array format consumed by training. Every
// Move/Shoot/Charge/Fight unit-order distributes its probability into
// both the source block (its From cell) and the target block (its
// To/Target cell), additively; EndPhase writes the pass slot directly
// and NoOp aliases onto the same slot, down-weighted or zeroed per
// passWeight. The source/target split is lossy by construction: two
// unit-orders sharing a source or target cell interfere, and the array
// alone cannot recover which of EndPhase or NoOp produced the trailing
// mass.
func PolicyToArray(phase tactics.Phase, size int, cmds []tactics.Command, probs []float64) []float64 {
	arr := make([]float64, PolicyArrayLen(size))
	sourceBlock := 0
	targetBlock := size * size
	passSlot := len(arr) - 1

	for i, c := range cmds {
		p := probs[i]
		switch c.Kind {
		case tactics.CmdMove, tactics.CmdShoot, tactics.CmdCharge, tactics.CmdFight:
			to := targetCell(c)
			arr[sourceBlock+c.From.Y*size+c.From.X] += p
			arr[targetBlock+to.Y*size+to.X] += p
		case tactics.CmdEndPhase:
			arr[passSlot] += p
		case tactics.CmdNoOp:
			arr[passSlot] += p * passWeight(phase)
		}
	}
	return normalize(arr)
}

// ArrayToPolicy reprojects a predictor-emitted policy array back onto a
// concrete legal command list: a unit-order's weight is the product of
// its source-cell and target-cell mass, EndPhase and NoOp keep the pass
// slot directly, and the result is renormalized over only the commands
// actually legal in this state.
func ArrayToPolicy(size int, arr []float64, legal []tactics.Command) []float64 {
	sourceBlock := 0
	targetBlock := size * size
	passSlot := len(arr) - 1

	out := make([]float64, len(legal))
	for i, c := range legal {
		switch c.Kind {
		case tactics.CmdMove, tactics.CmdShoot, tactics.CmdCharge, tactics.CmdFight:
			to := targetCell(c)
			out[i] = arr[sourceBlock+c.From.Y*size+c.From.X] * arr[targetBlock+to.Y*size+to.X]
		case tactics.CmdEndPhase, tactics.CmdNoOp:
			out[i] = arr[passSlot]
		}
	}
	return normalizeSlice(out)
}

func normalize(arr []float64) []float64 {
	sum := 0.0
	for _, v := range arr {
		sum += v
	}
	if sum <= 0 {
		return arr
	}
	for i := range arr {
		arr[i] /= sum
	}
	return arr
}

func normalizeSlice(arr []float64) []float64 {
	sum := 0.0
	for _, v := range arr {
		sum += v
	}
	if sum <= 0 {
		if len(arr) == 0 {
			return arr
		}
		u := 1.0 / float64(len(arr))
		for i := range arr {
			arr[i] = u
		}
		return arr
	}
	for i := range arr {
		arr[i] /= sum
	}
	return arr
}
