// Package selfplay drives many games of self-play in parallel, guiding
// each one with a stochastic MCTS search backed by a batched predictor,
// and commits finished games into the experience dataset.
package selfplay

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kharnhold/tacticsrl/internal/dataset"
	"github.com/kharnhold/tacticsrl/internal/logger"
	"github.com/kharnhold/tacticsrl/internal/mcts"
	"github.com/kharnhold/tacticsrl/internal/predictor"
	"github.com/kharnhold/tacticsrl/pkg/tactics"
)

// Config controls one self-play run.
type Config struct {
	Roster      []tactics.UnitTemplate
	Placements  []tactics.Placement
	BoardSize   int
	BoardScale  float64
	TurnLimit   int
	NumGames    int
	SimsPerMove int
	Temperature float64
	Seed        int64
}

// GameOutcome summarizes one finished game, reported for archival and
// live stats.
type GameOutcome struct {
	GameIndex int
	Winner    *tactics.Team
	TurnCount int
	Seed      int64
}

// Manager orchestrates Config.NumGames games across a fixed goroutine
// pool, batching leaf evaluations for the predictor through a Batcher and
// writing finished games to a dataset.Store.
type Manager struct {
	cfg     Config
	batcher *Batcher
	store   *dataset.Store

	stop       atomic.Bool
	onOutcome  func(GameOutcome)
	nextGameID atomic.Int64
}

// NewManager builds a manager for cfg, evaluating leaves through pred and
// committing finished games to store.
func NewManager(cfg Config, pred predictor.BatchPredictor, store *dataset.Store) *Manager {
	return &Manager{
		cfg:     cfg,
		batcher: NewBatcher(pred, cfg.NumGames),
		store:   store,
	}
}

// OnOutcome registers a callback invoked once per finished game, from
// whichever worker goroutine finished it. Used to wire live stats
// publication and Postgres archival without selfplay depending on either.
func (m *Manager) OnOutcome(f func(GameOutcome)) { m.onOutcome = f }

// Stop requests cooperative shutdown: in-flight simulations complete and
// the current batch flushes, but no new games start.
func (m *Manager) Stop() { m.stop.Store(true) }

// Run plays cfg.NumGames games across a fixed pool of worker goroutines,
// one per game slot, and returns once every game has either finished or
// been abandoned by Stop.
func (m *Manager) Run(ctx context.Context) error {
	log := logger.Get()
	start := time.Now()

	var wg sync.WaitGroup
	errCh := make(chan error, m.cfg.NumGames)

	for slot := 0; slot < m.cfg.NumGames; slot++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			for {
				if m.stop.Load() {
					m.batcher.SetActiveGames(m.activeGameCount())
					return
				}
				gameIdx := int(m.nextGameID.Add(1)) - 1
				if gameIdx >= m.cfg.NumGames {
					m.batcher.SetActiveGames(m.activeGameCount())
					return
				}

				seed := m.cfg.Seed + int64(gameIdx)
				rng := rand.New(rand.NewSource(seed))
				outcome, err := m.playGame(ctx, gameIdx, seed, rng)
				if err != nil {
					m.batcher.SetActiveGames(m.activeGameCount())
					errCh <- fmt.Errorf("selfplay: game %d: %w", gameIdx, err)
					return
				}

				log.Info().
					Int("game", gameIdx).
					Int("turns", outcome.TurnCount).
					Msg("self-play game finished")
				if m.onOutcome != nil {
					m.onOutcome(outcome)
				}
			}
		}(slot)
	}

	wg.Wait()
	close(errCh)

	log.Info().
		Int("games", m.cfg.NumGames).
		Int("sims_per_move", m.cfg.SimsPerMove).
		Dur("elapsed", time.Since(start)).
		Msg("self-play run complete")

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// activeGameCount is a coarse estimate of how many game slots are still
// in flight, used to keep the batch barrier's threshold correct as
// workers finish their assigned games ahead of others.
func (m *Manager) activeGameCount() int {
	remaining := m.cfg.NumGames - int(m.nextGameID.Load())
	if remaining < 0 {
		remaining = 0
	}
	if remaining > m.cfg.NumGames {
		remaining = m.cfg.NumGames
	}
	if remaining == 0 {
		return 1 // avoid a zero threshold wedging a final in-flight Evaluate
	}
	return remaining
}

// playGame runs one game to completion. The MCTS tree is re-rooted after
// each committed move within a team's turn, and replaced by a fresh tree
// when the acting team changes.
func (m *Manager) playGame(ctx context.Context, gameIdx int, seed int64, rng *rand.Rand) (GameOutcome, error) {
	state, err := tactics.InitialState(m.cfg.Roster, m.cfg.Placements, m.cfg.BoardSize, m.cfg.BoardScale, m.cfg.TurnLimit)
	if err != nil {
		return GameOutcome{}, fmt.Errorf("build initial state: %w", err)
	}

	tree := mcts.NewTree(state, rng)
	buf := dataset.NewGameBuffer()

	eval := func(s tactics.GameState) (float64, []float64, error) {
		value, arr, err := m.batcher.Evaluate(ctx, s.Board, s.Phase)
		if err != nil {
			return 0, nil, err
		}
		legal := s.LegalCommands()
		return value, ArrayToPolicy(m.cfg.BoardSize, arr, legal), nil
	}

	for !tree.Root.State.IsFinished() {
		if m.stop.Load() {
			break
		}
		if err := tree.RunIterations(m.cfg.SimsPerMove, eval); err != nil {
			return GameOutcome{}, fmt.Errorf("search: %w", err)
		}

		cur := tree.Root.State
		cmds, probs := tree.FinalPolicy(m.cfg.Temperature)
		arr := PolicyToArray(cur.Phase, m.cfg.BoardSize, cmds, probs)
		buf.Add(EncodeBoard(cur.Board), cur.Phase, arr, cur.ActingTeam)

		chosen := sampleCommand(cmds, probs, rng)
		outcomes := cur.Apply(chosen)
		next := sampleOutcome(outcomes, rng)

		if next.State.ActingTeam != cur.ActingTeam {
			// A turn transition invalidates the search team the tree was
			// built for; start a fresh tree rather than re-rooting.
			tree = mcts.NewTree(next.State, rng)
		} else if err := tree.Commit(chosen, next.State); err != nil {
			return GameOutcome{}, fmt.Errorf("commit: %w", err)
		}
	}

	final := tree.Root.State
	winner := winningTeam(final)
	experiences := buf.Commit(winner)
	if err := m.store.Append(experiences); err != nil {
		return GameOutcome{}, fmt.Errorf("commit experiences: %w", err)
	}

	return GameOutcome{GameIndex: gameIdx, Winner: winner, TurnCount: final.TurnNumber, Seed: seed}, nil
}

func winningTeam(s tactics.GameState) *tactics.Team {
	aAlive := s.Board.AnyUnits(tactics.TeamA)
	bAlive := s.Board.AnyUnits(tactics.TeamB)
	switch {
	case aAlive && !bAlive:
		t := tactics.TeamA
		return &t
	case bAlive && !aAlive:
		t := tactics.TeamB
		return &t
	default:
		return nil
	}
}

func sampleCommand(cmds []tactics.Command, probs []float64, rng *rand.Rand) tactics.Command {
	if len(cmds) == 1 {
		return cmds[0]
	}
	r := rng.Float64()
	cum := 0.0
	for i, p := range probs {
		cum += p
		if r < cum {
			return cmds[i]
		}
	}
	return cmds[len(cmds)-1]
}

func sampleOutcome(outcomes []tactics.StateProb, rng *rand.Rand) tactics.StateProb {
	if len(outcomes) == 1 {
		return outcomes[0]
	}
	r := rng.Float64()
	cum := 0.0
	for _, sp := range outcomes {
		cum += sp.Prob
		if r < cum {
			return sp
		}
	}
	return outcomes[len(outcomes)-1]
}
