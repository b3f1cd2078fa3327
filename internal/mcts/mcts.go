// Package mcts implements the stochastic Monte Carlo tree search used to
// pick commands during self-play: an alternating stack of state nodes
// (board positions) and action nodes (committed-but-unresolved commands),
// a team-aware UCB1 tree policy, and a visit-count final policy.
package mcts

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/kharnhold/tacticsrl/pkg/tactics"
)

// Evaluator scores a leaf state from the acting team's own perspective,
// returning a value in [-1, 1] and a prior probability per legal command
// (same order as tactics.GameState.LegalCommands). It is the sole contact
// point between the tree and the external predictor: batching across many
// concurrent trees happens behind this call, not inside the tree.
type Evaluator func(s tactics.GameState) (value float64, priors []float64, err error)

// ExplorationConstant is the default UCB1 exploration weight, c = 2*sqrt(2),
// the classic bandit-optimal choice for rewards in [0, 1]; values here live
// in [-1, 1] so it is halved when applied (see ucb1).
const ExplorationConstant = 2 * math.Sqrt2

// ActionEdge is one outgoing branch of an ActionNode's eager state-child
// expansion: the probability that resolving the command lands on Child.
type ActionEdge struct {
	Prob  float64
	Child *StateNode
}

// ActionNode represents a single committed-but-unresolved Command hanging
// off a StateNode. Its children are expanded eagerly, all at once, the
// first time it is selected or primed at leaf expansion (see expand),
// because tactics.GameState.Apply already
// computes the full outcome distribution in one call.
//
// Estimate and VisitCount are not accumulated directly; they are recomputed
// from Edges' child state nodes every time one of those children changes,
// as Σ n_i·p_i·μ_i / Σ n_i·p_i and Σ n_i respectively.
type ActionNode struct {
	Command    tactics.Command
	Parent     *StateNode
	Prior      float64
	Estimate   float64
	VisitCount int
	Edges      []ActionEdge // nil until first selection or priming
}

func (a *ActionNode) expanded() bool { return a.Edges != nil }

// recompute refreshes Estimate and VisitCount from the current state of
// Edges' children. Called after any backup that touched one of them.
func (a *ActionNode) recompute() {
	var numer, denom float64
	var visits int
	for _, e := range a.Edges {
		n := float64(e.Child.SampleCount)
		numer += n * e.Prob * e.Child.MeanValue
		denom += n * e.Prob
		visits += e.Child.SampleCount
	}
	if denom > 0 {
		a.Estimate = numer / denom
	} else {
		a.Estimate = 0
	}
	a.VisitCount = visits
}

// StateNode represents one externally-valid GameState. Its action list is
// expanded lazily: the node gains one ActionNode per legal command the
// first time it is visited, but nothing below those actions exists yet.
//
// SampleCount, WeightSum, and MeanValue hold the incremental weighted-mean
// backup statistics: MeanValue is always a WeightSum-weighted mean of every
// (value, weight) sample added via addSample, and every such value is
// expressed relative to the tree's fixed SearchTeam.
type StateNode struct {
	State       tactics.GameState
	Parent      *ActionNode
	SampleCount int
	WeightSum   float64
	MeanValue   float64
	Actions     []*ActionNode // nil until first visit
}

func (s *StateNode) expanded() bool { return s.Actions != nil }

// addSample folds one (v, w) observation into the node's running weighted
// mean: μ ← (Σw·μ + w·v) / (Σw + w); Σw ← Σw + w; n ← n + 1.
func (s *StateNode) addSample(v, w float64) {
	newWeightSum := s.WeightSum + w
	if newWeightSum > 0 {
		s.MeanValue = (s.WeightSum*s.MeanValue + w*v) / newWeightSum
	}
	s.WeightSum = newWeightSum
	s.SampleCount++
}

// Tree owns a search rooted at a single StateNode and the random source
// used to sample among an ActionNode's probabilistic outcomes and to pick
// the action primed at leaf expansion. Every value ever stored in the tree is
// relative to SearchTeam, fixed at construction; the tree is never reused
// across a turn transition (see NewTree).
type Tree struct {
	Root       *StateNode
	SearchTeam tactics.Team
	rng        *rand.Rand
}

// NewTree starts a fresh search tree rooted at the given state, searching
// on behalf of root's acting team. A turn transition (the acting team
// changing between decisions) requires building a new Tree rather than
// committing into the old one, since the search team would no longer match.
func NewTree(root tactics.GameState, rng *rand.Rand) *Tree {
	return &Tree{
		Root:       &StateNode{State: root},
		SearchTeam: root.ActingTeam,
		rng:        rng,
	}
}

// RunIterations performs n independent select/expand/evaluate/backpropagate
// passes from the root, calling eval once per newly discovered leaf.
func (t *Tree) RunIterations(n int, eval Evaluator) error {
	for i := 0; i < n; i++ {
		if err := t.iterate(eval); err != nil {
			return fmt.Errorf("mcts: iteration %d: %w", i, err)
		}
	}
	return nil
}

// pathStep records one action crossed while descending to a leaf, and the
// transition probability of the edge taken out of it, so backup can replay
// the path in reverse and accumulate the realization-probability weight.
type pathStep struct {
	action *ActionNode
	prob   float64
}

// iterate selects a path from the root to an unexpanded or terminal leaf,
// evaluates it, and backs the resulting value up the path it took.
func (t *Tree) iterate(eval Evaluator) error {
	s := t.Root
	var path []pathStep

	for {
		if s.State.IsFinished() {
			v := s.State.GameValue(t.SearchTeam)
			t.backup(s, path, v)
			return nil
		}

		if !s.expanded() {
			v, err := t.expand(s, eval)
			if err != nil {
				return err
			}
			t.backup(s, path, v)
			return nil
		}

		action := t.selectAction(s)
		if !action.expanded() {
			t.expandAction(action)
		}
		edge := sampleEdge(action.Edges, t.rng)
		path = append(path, pathStep{action: action, prob: edge.Prob})
		s = edge.Child
	}
}

// backup folds v into leaf and every ancestor on path, walking upward from
// the leaf: the weight starts at 1 and, crossing from a child state node to
// its parent action, is multiplied by that edge's transition probability
// before being applied to the action's parent state node. Each action
// crossed has its cached estimate recomputed from its (now-updated)
// children.
func (t *Tree) backup(leaf *StateNode, path []pathStep, v float64) {
	leaf.addSample(v, 1)

	w := 1.0
	for i := len(path) - 1; i >= 0; i-- {
		step := path[i]
		w *= step.prob
		step.action.Parent.addSample(v, w)
		step.action.recompute()
	}
}

// expand turns an unvisited StateNode into a leaf with priors: it asks eval
// for a value estimate and a prior over legal commands, sign-adjusts the
// value to be relative to the tree's search team, creates one (unexpanded)
// ActionNode per legal command, and primes one of them (sampled from the
// prior) by eagerly expanding its state children, per the "simulation at
// leaf" step — that primed action is not itself visited or backed up into.
func (t *Tree) expand(s *StateNode, eval Evaluator) (float64, error) {
	cmds := s.State.LegalCommands()
	value, priors, err := eval(s.State)
	if err != nil {
		return 0, err
	}
	if len(priors) != len(cmds) {
		// Predictor priors are aliased per the board/policy layout and may
		// not land one-to-one with legal commands; fall back to a uniform
		// prior rather than fail the search.
		priors = uniform(len(cmds))
	}
	if s.State.ActingTeam != t.SearchTeam {
		value = -value
	}

	s.Actions = make([]*ActionNode, len(cmds))
	for i, c := range cmds {
		s.Actions[i] = &ActionNode{Command: c, Parent: s, Prior: priors[i]}
	}

	if primed := samplePrior(s.Actions, priors, t.rng); primed != nil {
		t.expandAction(primed)
	}

	return value, nil
}

// expandAction performs the eager state-child expansion: resolving the
// command once yields every possible outcome and its probability, so all
// of an action's children are created together.
func (t *Tree) expandAction(a *ActionNode) {
	outcomes := a.Parent.State.Apply(a.Command)
	a.Edges = make([]ActionEdge, len(outcomes))
	for i, sp := range outcomes {
		a.Edges[i] = ActionEdge{Prob: sp.Prob, Child: &StateNode{State: sp.State, Parent: a}}
	}
}

// samplePrior draws one action in proportion to its prior probability, for
// the leaf-expansion priming step. Returns nil if there are no actions.
func samplePrior(actions []*ActionNode, priors []float64, rng *rand.Rand) *ActionNode {
	if len(actions) == 0 {
		return nil
	}
	if len(actions) == 1 {
		return actions[0]
	}
	r := rng.Float64()
	cum := 0.0
	for i, p := range priors {
		cum += p
		if r < cum {
			return actions[i]
		}
	}
	return actions[len(actions)-1]
}

// selectAction applies team-aware UCB1 (see ucb1): argmax over the state's
// actions, ties broken by first maximum.
func (t *Tree) selectAction(s *StateNode) *ActionNode {
	sign := 1.0
	if s.State.ActingTeam != t.SearchTeam {
		sign = -1.0
	}

	var best *ActionNode
	bestScore := math.Inf(-1)
	for _, a := range s.Actions {
		score := ucb1(a, s.SampleCount, sign)
		if score > bestScore {
			bestScore = score
			best = a
		}
	}
	return best
}

// ucb1 scores action a with the team-aware formula
// U = sign·q + c·p·sqrt(log N / (1+n)), where sign flips the exploitation
// term for an adversary (minimizing the search team's value) and q, n are
// the action's recomputed Estimate and VisitCount. An action with no
// visited children scores +Inf so it is always explored first.
func ucb1(a *ActionNode, parentSamples int, sign float64) float64 {
	if a.VisitCount == 0 {
		return math.Inf(1)
	}
	exploit := sign * a.Estimate
	explore := (ExplorationConstant / 2) * a.Prior * math.Sqrt(math.Log(float64(parentSamples))/float64(1+a.VisitCount))
	return exploit + explore
}

// sampleEdge draws an edge (and so a child) in proportion to its
// realization probability. Repeated sampling across many visits makes a
// StateNode's mean value converge to the probability-weighted expectation
// over its outcomes without ever computing that expectation directly.
func sampleEdge(edges []ActionEdge, rng *rand.Rand) ActionEdge {
	if len(edges) == 1 {
		return edges[0]
	}
	r := rng.Float64()
	cum := 0.0
	for _, e := range edges {
		cum += e.Prob
		if r < cum {
			return e
		}
	}
	return edges[len(edges)-1]
}

func uniform(n int) []float64 {
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	p := 1.0 / float64(n)
	for i := range out {
		out[i] = p
	}
	return out
}

// FinalPolicy returns a visit-count policy over the root's actions,
// sharpened or flattened by temperature: tau=1 is proportional to visit
// counts, tau->0 approaches argmax, tau>1 flattens toward uniform.
func (t *Tree) FinalPolicy(tau float64) ([]tactics.Command, []float64) {
	root := t.Root
	cmds := make([]tactics.Command, len(root.Actions))
	weights := make([]float64, len(root.Actions))
	sum := 0.0
	for i, a := range root.Actions {
		cmds[i] = a.Command
		var w float64
		if tau <= 1e-9 {
			w = float64(a.VisitCount)
		} else {
			w = math.Pow(float64(a.VisitCount), 1/tau)
		}
		weights[i] = w
		sum += w
	}
	if tau <= 1e-9 {
		maxW := 0.0
		for _, w := range weights {
			if w > maxW {
				maxW = w
			}
		}
		for i, w := range weights {
			if w == maxW {
				weights[i] = 1
			} else {
				weights[i] = 0
			}
		}
		sum = 0
		for _, w := range weights {
			sum += w
		}
	}
	if sum > 0 {
		for i := range weights {
			weights[i] /= sum
		}
	} else if len(weights) > 0 {
		u := 1.0 / float64(len(weights))
		for i := range weights {
			weights[i] = u
		}
	}
	return cmds, weights
}

// Commit re-roots the tree at the child reached by playing cmd and
// realizing outcome (identified by the state it lands on), discarding
// every sibling subtree so statistics accumulated for the surviving
// branch are preserved across moves. Valid only within the same acting
// team's turn: a turn transition must build a new Tree instead (see
// NewTree), since the search team would otherwise no longer match. A
// failure here means the caller committed to a state the tree never
// produced — an invariant violation, not a recoverable condition.
func (t *Tree) Commit(cmd tactics.Command, outcome tactics.GameState) error {
	for _, a := range t.Root.Actions {
		if !commandEqual(a.Command, cmd) {
			continue
		}
		if !a.expanded() {
			t.expandAction(a)
		}
		for _, e := range a.Edges {
			if e.Child.State.Equal(outcome) {
				e.Child.Parent = nil
				t.Root = e.Child
				return nil
			}
		}
		return fmt.Errorf("mcts: commit: outcome state not among %q's resolved edges", cmd.Kind)
	}
	return fmt.Errorf("mcts: commit: command %q not found among root actions", cmd.Kind)
}

func commandEqual(a, b tactics.Command) bool {
	return a.Kind == b.Kind && a.From == b.From && a.To == b.To && a.Target == b.Target &&
		a.OverrideHitSkill == b.OverrideHitSkill && a.SafeTarget == b.SafeTarget
}
