package redis

import (
	"context"
	"fmt"
)

// shardSeqKey returns the key backing the shared, cross-process shard
// index counter for a run.
func shardSeqKey(runID string) string { return fmt.Sprintf("selfplay:%s:shard-seq", runID) }

// statsKey returns the key backing a run's live stats hash.
func statsKey(runID string) string { return fmt.Sprintf("selfplay:%s:stats", runID) }

// NextShardIndex atomically allocates the next shard index for runID,
// letting multiple self-play processes share one dataset.Store's shard
// numbering without colliding.
func (c *Client) NextShardIndex(ctx context.Context, runID string) (int, error) {
	n, err := c.rdb.Incr(ctx, shardSeqKey(runID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: incr shard index: %w", err)
	}
	return int(n - 1), nil // INCR returns the post-increment value; shard indices start at 0
}

// RecordGameFinished increments the run's live game/turn counters, read
// by the monitor to report progress without querying Postgres.
func (c *Client) RecordGameFinished(ctx context.Context, runID string, turns int, winnerLabel string) error {
	key := statsKey(runID)
	pipe := c.rdb.TxPipeline()
	pipe.HIncrBy(ctx, key, "games_finished", 1)
	pipe.HIncrBy(ctx, key, "total_turns", int64(turns))
	if winnerLabel != "" {
		pipe.HIncrBy(ctx, key, "wins:"+winnerLabel, 1)
	} else {
		pipe.HIncrBy(ctx, key, "draws", 1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: record game finished: %w", err)
	}
	return nil
}

// Stats reads back a run's live stats hash as strings, for the monitor
// dashboard to render directly.
func (c *Client) Stats(ctx context.Context, runID string) (map[string]string, error) {
	m, err := c.rdb.HGetAll(ctx, statsKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read stats: %w", err)
	}
	return m, nil
}
