package tactics

import (
	"fmt"
	"sort"
	"strings"
)

// Phase is one of the four phases a turn cycles through.
type Phase int

const (
	PhaseMove Phase = iota
	PhaseShoot
	PhaseCharge
	PhaseFight
)

func (p Phase) String() string {
	switch p {
	case PhaseMove:
		return "Move"
	case PhaseShoot:
		return "Shoot"
	case PhaseCharge:
		return "Charge"
	case PhaseFight:
		return "Fight"
	default:
		return "Unknown"
	}
}

// GameState composes the board with whose turn it is, what phase is
// active, and which units of the acting team still owe a decision this
// phase. GameState is a value type: apply never mutates, it returns new
// states, and two states are equal iff every field compares equal.
type GameState struct {
	Board       Board
	ActingTeam  Team
	Phase       Phase
	TurnNumber  int
	TurnLimit   int
	ActiveQueue []Point
}

// InitialState builds the starting GameState from a roster, a set of
// placements, and board dimensions. It returns an error for a
// non-positive turn limit, a placement naming a unit not in the roster,
// an out-of-bounds placement, or two placements on the same cell;
// rosterio does not perform these checks.
func InitialState(roster []UnitTemplate, placements []Placement, size int, scale float64, turnLimit int) (GameState, error) {
	if turnLimit <= 0 {
		return GameState{}, fmt.Errorf("tactics: turn_limit must be positive, got %d", turnLimit)
	}
	byName := make(map[string]UnitTemplate, len(roster))
	for _, t := range roster {
		byName[t.Name] = t
	}

	b := NewBoard(size, scale)
	for _, pl := range placements {
		tmpl, ok := byName[pl.UnitName]
		if !ok {
			return GameState{}, fmt.Errorf("tactics: placement references unknown unit %q", pl.UnitName)
		}
		p := Point{X: pl.X, Y: pl.Y}
		if !b.InBounds(p) {
			return GameState{}, fmt.Errorf("tactics: placement for %q at (%d,%d) is out of bounds", pl.UnitName, pl.X, pl.Y)
		}
		if b.IsOccupied(p) {
			return GameState{}, fmt.Errorf("tactics: placement for %q at (%d,%d) collides with an existing unit", pl.UnitName, pl.X, pl.Y)
		}
		b = b.Set(p, tmpl.Instantiate(), pl.Team)
	}

	s := GameState{
		Board:      b,
		ActingTeam: TeamA,
		Phase:      PhaseMove,
		TurnNumber: 1,
		TurnLimit:  turnLimit,
	}
	s.ActiveQueue = queuePositions(b, TeamA)
	return s.autoForwardSingle(), nil
}

// queuePositions returns team's occupied positions in deterministic
// (row-major) board order.
func queuePositions(b Board, team Team) []Point {
	entries := b.AllUnits(team)
	out := make([]Point, len(entries))
	for i, e := range entries {
		out[i] = e.Pos
	}
	return out
}

// legalPhaseCommands dispatches to the phase-specific legality generator
// for the unit at p.
func legalPhaseCommands(b Board, p Point, phase Phase) []Command {
	switch phase {
	case PhaseMove:
		return LegalMoves(b, p)
	case PhaseShoot:
		return LegalShoots(b, p)
	case PhaseCharge:
		return LegalCharges(b, p)
	case PhaseFight:
		return LegalFights(b, p)
	default:
		return nil
	}
}

// applyPhaseCommand dispatches a phase-specific command to its resolver.
func applyPhaseCommand(b Board, cmd Command) BoardDist {
	switch cmd.Kind {
	case CmdMove:
		return ApplyMove(b, cmd)
	case CmdShoot:
		return ApplyShoot(b, cmd)
	case CmdCharge:
		return ApplyCharge(b, cmd)
	case CmdFight:
		return ApplyFight(b, cmd)
	default:
		return singleton(b)
	}
}

// LegalCommands returns the head unit's legal commands for the union
// interface exposed to the search: the phase-specific moves for the head
// of the active queue plus an explicit NoOp (skip), or just EndPhase if
// the queue is empty. Per the invariant in spec §3, a head unit only
// ever appears here with at least one non-trivial (non-NoOp) option.
func (s GameState) LegalCommands() []Command {
	if len(s.ActiveQueue) == 0 {
		return []Command{EndPhaseCommand}
	}
	head := s.ActiveQueue[0]
	cmds := legalPhaseCommands(s.Board, head, s.Phase)
	cmds = append(append([]Command(nil), cmds...), NoOpCommand)
	SortCommands(cmds)
	return cmds
}

// StateProb pairs a successor GameState with its realization probability.
type StateProb struct {
	State GameState
	Prob  float64
}

// Apply resolves cmd against s and returns the resulting discrete
// distribution over successor states, each already auto-forwarded so it
// is externally valid (spec §4.C).
func (s GameState) Apply(cmd Command) []StateProb {
	if cmd.Kind == CmdEndPhase {
		return s.applyEndPhase()
	}

	var boardDist BoardDist
	if cmd.Kind == CmdNoOp {
		boardDist = singleton(s.Board)
	} else {
		boardDist = applyPhaseCommand(s.Board, cmd)
	}

	var out []StateProb
	for i, b := range boardDist.Boards {
		next := s
		next.Board = b
		if len(next.ActiveQueue) > 0 {
			next.ActiveQueue = next.ActiveQueue[1:]
		}
		out = append(out, autoForwardDist(next, boardDist.Probs[i])...)
	}
	return mergeStateProbs(out)
}

// applyEndPhase runs morale, clears flags, and advances phase/team/turn,
// then auto-forwards every resulting branch.
func (s GameState) applyEndPhase() []StateProb {
	moraleDist := ApplyMoraleAll(s.Board)

	var out []StateProb
	for i, b := range moraleDist.Boards {
		b = ClearAllPhaseFlags(b)
		next := s
		next.Board = b

		if next.Phase == PhaseFight {
			next.Phase = PhaseMove
			next.ActingTeam = next.ActingTeam.Other()
			next.TurnNumber++
		} else {
			next.Phase++
		}

		if next.finishedOnBoard() {
			next.ActiveQueue = nil
			out = append(out, StateProb{State: next, Prob: moraleDist.Probs[i]})
			continue
		}

		next.ActiveQueue = queuePositions(next.Board, next.ActingTeam)
		out = append(out, autoForwardDist(next, moraleDist.Probs[i])...)
	}
	return mergeStateProbs(out)
}

// autoForwardSingle runs auto-forward once, keeping only the first
// (deterministic) pop of no-option heads, used for InitialState where no
// probability composition is needed yet (the EndPhase cascade, if any,
// is still resolved through the general path).
func (s GameState) autoForwardSingle() GameState {
	s = popNoOptionHeads(s)
	return s
}

// popNoOptionHeads pops leading active-queue entries whose unit has no
// phase-specific legal command (only NoOp would apply), per spec §4.C's
// "units whose only option is no-op are popped without action".
func popNoOptionHeads(s GameState) GameState {
	for len(s.ActiveQueue) > 0 {
		head := s.ActiveQueue[0]
		if len(legalPhaseCommands(s.Board, head, s.Phase)) > 0 {
			break
		}
		s.ActiveQueue = s.ActiveQueue[1:]
	}
	return s
}

// autoForwardDist pops no-option heads off s's queue and, if the queue
// empties out entirely as a result, recurses through EndPhase (spec
// §4.B) until either a head with a real choice appears or the game
// terminates. The incoming probability weight is folded into every
// branch produced.
func autoForwardDist(s GameState, weight float64) []StateProb {
	s = popNoOptionHeads(s)
	if len(s.ActiveQueue) > 0 || s.finishedOnBoard() {
		return []StateProb{{State: s, Prob: weight}}
	}

	var out []StateProb
	for _, sp := range s.applyEndPhase() {
		out = append(out, StateProb{State: sp.State, Prob: weight * sp.Prob})
	}
	return out
}

// mergeStateProbs combines duplicate successor states (which can arise
// when independent sub-resolutions collapse to the same board) and
// renormalizes so probabilities sum to 1 within spec §8's tolerance.
func mergeStateProbs(in []StateProb) []StateProb {
	type bucket struct {
		state GameState
		prob  float64
	}
	var buckets []bucket
	for _, sp := range in {
		merged := false
		for i := range buckets {
			if buckets[i].state.Equal(sp.State) {
				buckets[i].prob += sp.Prob
				merged = true
				break
			}
		}
		if !merged {
			buckets = append(buckets, bucket{state: sp.State, prob: sp.Prob})
		}
	}
	sum := 0.0
	for _, b := range buckets {
		sum += b.prob
	}
	out := make([]StateProb, len(buckets))
	for i, b := range buckets {
		p := b.prob
		if sum > 0 {
			p /= sum
		}
		out[i] = StateProb{State: b.state, Prob: p}
	}
	return out
}

// finishedOnBoard reports termination purely from board occupancy and
// turn limit, ignoring the active queue (used mid-construction before
// the queue for a new phase has been built).
func (s GameState) finishedOnBoard() bool {
	if !s.Board.AnyUnits(TeamA) || !s.Board.AnyUnits(TeamB) {
		return true
	}
	if s.TurnLimit > 0 && s.TurnNumber > s.TurnLimit {
		return true
	}
	return false
}

// IsFinished reports whether the game has reached a terminal state.
func (s GameState) IsFinished() bool { return s.finishedOnBoard() }

// GameValue returns the terminal value with respect to team: +1 if only
// team has units, -1 if only the opponent has units, 0 otherwise (draw
// or turn-limit tie). Only meaningful once IsFinished() is true.
func (s GameState) GameValue(team Team) float64 {
	aAlive := s.Board.AnyUnits(TeamA)
	bAlive := s.Board.AnyUnits(TeamB)
	switch {
	case aAlive && !bAlive:
		if team == TeamA {
			return 1
		}
		return -1
	case bAlive && !aAlive:
		if team == TeamB {
			return 1
		}
		return -1
	default:
		return 0
	}
}

// Equal reports structural equality: same board contents, phase, acting
// team, turn number, and active queue.
func (s GameState) Equal(o GameState) bool {
	return s.Hash() == o.Hash()
}

// Hash returns a total, deterministic string encoding of the state,
// suitable as a map key for the MCTS tree's commit lookup (spec §4.C).
func (s GameState) Hash() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "t=%d|p=%d|team=%d|turn=%d|", s.TurnLimit, s.Phase, s.ActingTeam, s.TurnNumber)
	sb.WriteString("q=")
	for _, p := range s.ActiveQueue {
		fmt.Fprintf(&sb, "(%d,%d)", p.X, p.Y)
	}
	sb.WriteString("|b=")
	sb.WriteString(boardHash(s.Board))
	return sb.String()
}

// boardHash encodes every occupied cell deterministically.
func boardHash(b Board) string {
	type occ struct {
		p    Point
		team Team
		u    Unit
	}
	var occs []occ
	for _, team := range [2]Team{TeamA, TeamB} {
		for _, e := range b.AllUnits(team) {
			occs = append(occs, occ{p: e.Pos, team: team, u: e.Unit})
		}
	}
	sort.Slice(occs, func(i, j int) bool { return pointLess(occs[i].p, occs[j].p) })
	var sb strings.Builder
	fmt.Fprintf(&sb, "sz=%d,sc=%g;", b.Size, b.Scale)
	for _, o := range occs {
		fmt.Fprintf(&sb, "[%d,%d:team=%d:%+v]", o.p.X, o.p.Y, o.team, o.u)
	}
	return sb.String()
}
