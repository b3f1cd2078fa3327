// Package dataset implements the experience store self-play writes to and
// training reads from: per-game buffers that accumulate board/policy
// snapshots during play, and a sharded on-disk store that commits them
// with the game's final, sign-flipped outcome.
package dataset

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/kharnhold/tacticsrl/pkg/tactics"
)

// Experience is one training tuple: the board a unit acted from, the
// phase it acted in, the policy the search produced for it, and the
// eventual game outcome from the acting team's perspective.
type Experience struct {
	Board  []float32
	Phase  tactics.Phase
	Policy []float64
	Value  float64
}

// record is an Experience before the game's outcome is known.
type record struct {
	board      []float32
	phase      tactics.Phase
	policy     []float64
	actingTeam tactics.Team
}

// GameBuffer accumulates one game's decisions in memory until the game
// ends and its outcome can be stamped onto every tuple.
type GameBuffer struct {
	records []record
}

// NewGameBuffer returns an empty buffer.
func NewGameBuffer() *GameBuffer { return &GameBuffer{} }

// Add appends one decision point to the buffer.
func (g *GameBuffer) Add(board []float32, phase tactics.Phase, policy []float64, actingTeam tactics.Team) {
	g.records = append(g.records, record{board: board, phase: phase, policy: policy, actingTeam: actingTeam})
}

// Len reports the number of recorded decisions.
func (g *GameBuffer) Len() int { return len(g.records) }

// Commit finalizes the buffer into Experience tuples, sign-flipping the
// outcome per tuple: +1 if the tuple's acting team matches winner, -1 if
// it matches the loser, 0 for a draw (winner == nil).
func (g *GameBuffer) Commit(winner *tactics.Team) []Experience {
	out := make([]Experience, len(g.records))
	for i, r := range g.records {
		var value float64
		switch {
		case winner == nil:
			value = 0
		case *winner == r.actingTeam:
			value = 1
		default:
			value = -1
		}
		out[i] = Experience{Board: r.board, Phase: r.phase, Policy: r.policy, Value: value}
	}
	return out
}

// Store is an append-only, shard-file experience dataset. Each shard is a
// gob-encoded slice of Experience, written atomically via a temp file
// followed by rename so concurrent readers never observe a partial shard.
type Store struct {
	dir string
	mu  sync.Mutex

	// nextShard assigns shard indices. Defaults to an in-process counter;
	// overridden by self-play runs coordinating shard numbering across
	// multiple OS processes through Redis (see internal/coordinate/redis).
	nextShard func() (int, error)
	counter   int
}

// NewStore opens (creating if necessary) a shard directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dataset: create shard dir: %w", err)
	}
	s := &Store{dir: dir}
	s.nextShard = s.localNextShard
	return s, nil
}

// SetShardIndexer overrides shard-number assignment, used to coordinate a
// single shared shard sequence across multiple self-play processes.
func (s *Store) SetShardIndexer(f func() (int, error)) { s.nextShard = f }

func (s *Store) localNextShard() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.counter
	s.counter++
	return n, nil
}

// Append writes experiences as a new shard. Empty slices are a no-op.
func (s *Store) Append(experiences []Experience) error {
	if len(experiences) == 0 {
		return nil
	}
	idx, err := s.nextShard()
	if err != nil {
		return fmt.Errorf("dataset: assign shard index: %w", err)
	}

	final := filepath.Join(s.dir, fmt.Sprintf("shard-%08d.gob", idx))
	tmp := final + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("dataset: create shard temp file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := gob.NewEncoder(w).Encode(experiences); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("dataset: encode shard: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("dataset: flush shard: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("dataset: close shard: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("dataset: publish shard: %w", err)
	}
	return nil
}

// shards lists shard files currently on disk, sorted by name (and so by
// shard index).
func (s *Store) shards() ([]string, error) {
	entries, err := filepath.Glob(filepath.Join(s.dir, "shard-*.gob"))
	if err != nil {
		return nil, fmt.Errorf("dataset: list shards: %w", err)
	}
	return entries, nil
}

func readShard(path string) ([]Experience, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []Experience
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&out); err != nil {
		return nil, fmt.Errorf("dataset: decode shard %s: %w", path, err)
	}
	return out, nil
}

// LoadExperiences reads every shard matching pattern (a filepath.Glob
// pattern, e.g. "./shards/shard-*.gob") and concatenates their contents.
// Used by offline tooling that samples across shard directories the
// writing Store never saw.
func LoadExperiences(pattern string) ([]Experience, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("dataset: glob shards: %w", err)
	}
	var out []Experience
	for _, p := range paths {
		exps, err := readShard(p)
		if err != nil {
			return nil, err
		}
		out = append(out, exps...)
	}
	return out, nil
}

// Sample draws n experiences uniformly across all committed shards. A
// shard being written concurrently (still under its .tmp name) is never
// visible to Glob, so readers never race a writer within one shard.
func (s *Store) Sample(n int, rng *rand.Rand) ([]Experience, error) {
	paths, err := s.shards()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}

	var pool []Experience
	for _, p := range paths {
		exps, err := readShard(p)
		if err != nil {
			return nil, err
		}
		pool = append(pool, exps...)
	}
	if len(pool) == 0 {
		return nil, nil
	}
	if n >= len(pool) {
		out := make([]Experience, len(pool))
		copy(out, pool)
		rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out, nil
	}

	out := make([]Experience, n)
	for i := range out {
		out[i] = pool[rng.Intn(len(pool))]
	}
	return out, nil
}
