package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kharnhold/tacticsrl/internal/selfplay"
)

// GameRepo archives finished self-play games. A nil *GameRepo is valid
// and every method becomes a no-op, so archival stays optional when no
// database is configured (see internal/config).
type GameRepo struct {
	db *sql.DB
}

// NewGameRepo wraps an open connection pool. Pass a nil db to disable
// archival entirely.
func NewGameRepo(db *sql.DB) *GameRepo {
	if db == nil {
		return nil
	}
	return &GameRepo{db: db}
}

// Record inserts one finished game. Safe to call on a nil receiver.
func (r *GameRepo) Record(ctx context.Context, runID string, outcome selfplay.GameOutcome) error {
	if r == nil {
		return nil
	}
	var winner sql.NullString
	if outcome.Winner != nil {
		label := "A"
		if *outcome.Winner == 1 {
			label = "B"
		}
		winner = sql.NullString{String: label, Valid: true}
	}

	const q = `
		INSERT INTO selfplay_games (run_id, game_index, winner_team, turn_count, seed, finished_at)
		VALUES ($1, $2, $3, $4, $5, now())`
	if _, err := r.db.ExecContext(ctx, q, runID, outcome.GameIndex, winner, outcome.TurnCount, outcome.Seed); err != nil {
		return fmt.Errorf("postgres: record game: %w", err)
	}
	return nil
}

// RunSummary aggregates a run's archived games for reporting.
type RunSummary struct {
	GamesRecorded int
	AWins         int
	BWins         int
	Draws         int
	AvgTurns      float64
}

// Summarize reports aggregate stats for runID. Safe to call on a nil
// receiver, returning a zero-value summary.
func (r *GameRepo) Summarize(ctx context.Context, runID string) (RunSummary, error) {
	if r == nil {
		return RunSummary{}, nil
	}
	const q = `
		SELECT
			count(*),
			count(*) FILTER (WHERE winner_team = 'A'),
			count(*) FILTER (WHERE winner_team = 'B'),
			count(*) FILTER (WHERE winner_team IS NULL),
			coalesce(avg(turn_count), 0)
		FROM selfplay_games WHERE run_id = $1`
	var s RunSummary
	row := r.db.QueryRowContext(ctx, q, runID)
	if err := row.Scan(&s.GamesRecorded, &s.AWins, &s.BWins, &s.Draws, &s.AvgTurns); err != nil {
		return RunSummary{}, fmt.Errorf("postgres: summarize run: %w", err)
	}
	return s, nil
}
