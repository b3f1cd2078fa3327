package selfplay

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/kharnhold/tacticsrl/internal/dataset"
	"github.com/kharnhold/tacticsrl/internal/predictor"
	"github.com/kharnhold/tacticsrl/pkg/tactics"
)

func managerTestUnit() tactics.Unit {
	return tactics.UnitTemplate{
		Name: "scout", Count: 1, Movement: 6, WS: 4, BS: 3, T: 4,
		Wounds: 3, TotalW: 3, Attacks: 2, Ld: 6, Sv: 5, Inv: 7,
		Ranged: tactics.RangedWeapon{Range: 18, Strength: 4, AP: 0, Damage: 1, Shots: 1},
		Melee:  tactics.MeleeWeapon{Strength: 6, AP: 2, Damage: 2},
	}.Instantiate()
}

func TestWinningTeamDetectsElimination(t *testing.T) {
	b := tactics.NewBoard(4, 1.0)
	b = b.Set(tactics.Point{X: 0, Y: 0}, managerTestUnit(), tactics.TeamA)
	s := tactics.GameState{Board: b}

	winner := winningTeam(s)
	if winner == nil || *winner != tactics.TeamA {
		t.Errorf("expected team A to be the winner, got %v", winner)
	}
}

func TestWinningTeamNilWhenBothAlive(t *testing.T) {
	b := tactics.NewBoard(4, 1.0)
	b = b.Set(tactics.Point{X: 0, Y: 0}, managerTestUnit(), tactics.TeamA)
	b = b.Set(tactics.Point{X: 3, Y: 3}, managerTestUnit(), tactics.TeamB)
	s := tactics.GameState{Board: b}

	if winningTeam(s) != nil {
		t.Error("expected no winner while both teams still have units")
	}
}

func TestWinningTeamNilWhenNeitherAlive(t *testing.T) {
	s := tactics.GameState{Board: tactics.NewBoard(4, 1.0)}
	if winningTeam(s) != nil {
		t.Error("expected no winner on an empty board")
	}
}

func TestSampleCommandSingleCommandShortCircuits(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cmds := []tactics.Command{tactics.EndPhaseCommand}
	got := sampleCommand(cmds, []float64{1.0}, rng)
	if got.Kind != tactics.CmdEndPhase {
		t.Errorf("expected the only command to be returned, got %+v", got)
	}
}

func TestSampleCommandFallsInCorrectBucket(t *testing.T) {
	cmds := []tactics.Command{tactics.NoOpCommand, tactics.EndPhaseCommand}
	probs := []float64{0.0, 1.0}
	// With all mass on the second bucket, every draw should land there
	// regardless of the underlying random stream.
	for seed := int64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		got := sampleCommand(cmds, probs, rng)
		if got.Kind != tactics.CmdEndPhase {
			t.Fatalf("seed %d: expected EndPhase with all probability mass on it, got %+v", seed, got)
		}
	}
}

func TestSampleOutcomeSingleOutcomeShortCircuits(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := tactics.GameState{TurnNumber: 7}
	outcomes := []tactics.StateProb{{State: s, Prob: 1.0}}
	got := sampleOutcome(outcomes, rng)
	if got.State.TurnNumber != 7 {
		t.Errorf("expected the only outcome to be returned, got %+v", got)
	}
}

func TestSampleOutcomeFallsInCorrectBucket(t *testing.T) {
	low := tactics.GameState{TurnNumber: 1}
	high := tactics.GameState{TurnNumber: 2}
	outcomes := []tactics.StateProb{{State: low, Prob: 0.0}, {State: high, Prob: 1.0}}
	for seed := int64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		got := sampleOutcome(outcomes, rng)
		if got.State.TurnNumber != 2 {
			t.Fatalf("seed %d: expected the all-probability-mass outcome, got turn %d", seed, got.State.TurnNumber)
		}
	}
}

// TestManagerRunEndToEnd plays a tiny single game through the full
// manager loop and checks the dataset store and outcome callback both
// observe the finished game.
func TestManagerRunEndToEnd(t *testing.T) {
	roster := []tactics.UnitTemplate{
		{
			Name: "scout", Count: 1, Movement: 6, WS: 4, BS: 3, T: 4,
			Wounds: 1, TotalW: 1, Attacks: 3, Ld: 6, Sv: 5, Inv: 7,
			Ranged: tactics.RangedWeapon{Range: 18, Strength: 8, AP: 3, Damage: 3, Shots: 3},
			Melee:  tactics.MeleeWeapon{Strength: 8, AP: 3, Damage: 3},
		},
	}
	placements := []tactics.Placement{
		{UnitName: "scout", Team: tactics.TeamA, X: 0, Y: 0},
		{UnitName: "scout", Team: tactics.TeamB, X: 1, Y: 0},
	}

	dir := t.TempDir()
	store, err := dataset.NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	cfg := Config{
		Roster:      roster,
		Placements:  placements,
		BoardSize:   4,
		BoardScale:  1.0,
		TurnLimit:   3,
		NumGames:    1,
		SimsPerMove: 4,
		Temperature: 1.0,
		Seed:        42,
	}
	mgr := NewManager(cfg, predictor.Uniform{}, store)

	var outcomes []GameOutcome
	mgr.OnOutcome(func(o GameOutcome) { outcomes = append(outcomes, o) })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mgr.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(outcomes) != 1 {
		t.Fatalf("expected exactly one outcome, got %d", len(outcomes))
	}
	if outcomes[0].GameIndex != 0 {
		t.Errorf("expected game index 0, got %d", outcomes[0].GameIndex)
	}

	sample, err := store.Sample(1000, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(sample) == 0 {
		t.Error("expected the finished game to have committed experiences to the store")
	}
}
