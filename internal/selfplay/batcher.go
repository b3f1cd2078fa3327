package selfplay

import (
	"context"
	"sync"

	"github.com/kharnhold/tacticsrl/internal/predictor"
	"github.com/kharnhold/tacticsrl/pkg/tactics"
)

// Batcher is the cooperative serialization point described for the
// self-play manager: worker goroutines (one per active game) each place
// their leaf state into a shared buffer guarded by a mutex and condition
// variable; once every active worker has a request pending, whichever
// goroutine completes the buffer runs the single vectorized predict call
// with no lock held, then broadcasts the results back to every waiter.
type Batcher struct {
	mu         sync.Mutex
	cond       *sync.Cond
	pred       predictor.BatchPredictor
	active     int
	pend       []pendingEval
	generation int
	lastValues []float64
	lastPolicy [][]float64
	lastErr    error
}

type pendingEval struct {
	board tactics.Board
	phase tactics.Phase
}

// NewBatcher builds a batcher that flushes once activeGames requests have
// accumulated.
func NewBatcher(pred predictor.BatchPredictor, activeGames int) *Batcher {
	b := &Batcher{pred: pred, active: activeGames}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// SetActiveGames adjusts the flush threshold as games finish and drop out
// of rotation, waking anyone who is now unblocked by the lower count.
func (b *Batcher) SetActiveGames(n int) {
	b.mu.Lock()
	b.active = n
	ready := b.active > 0 && len(b.pend) >= b.active
	b.mu.Unlock()
	if ready {
		b.mu.Lock()
		if len(b.pend) >= b.active {
			b.flushAndBroadcastLocked()
		}
		b.mu.Unlock()
	}
}

// Evaluate submits one leaf position and blocks until its batch has been
// evaluated, returning this position's own value and policy.
func (b *Batcher) Evaluate(ctx context.Context, board tactics.Board, phase tactics.Phase) (float64, []float64, error) {
	b.mu.Lock()
	gen := b.generation
	idx := len(b.pend)
	b.pend = append(b.pend, pendingEval{board: board, phase: phase})

	if len(b.pend) >= b.active {
		b.flushAndBroadcastLocked()
	} else {
		for b.generation == gen {
			b.cond.Wait()
			select {
			case <-ctx.Done():
				b.mu.Unlock()
				return 0, nil, ctx.Err()
			default:
			}
		}
	}

	value, policy, err := b.lastValues[idx], b.lastPolicy[idx], b.lastErr
	b.mu.Unlock()
	return value, policy, err
}

// flushAndBroadcastLocked runs the predictor over the pending batch and
// wakes every waiter. The mutex is released for the duration of the
// predict call itself, per spec: no lock is held across the predict call.
func (b *Batcher) flushAndBroadcastLocked() {
	batch := b.pend
	b.pend = nil

	boards := make([]tactics.Board, len(batch))
	phases := make([]tactics.Phase, len(batch))
	for i, r := range batch {
		boards[i] = r.board
		phases[i] = r.phase
	}

	b.mu.Unlock()
	values, policies, err := b.pred.Predict(context.Background(), boards, phases)
	b.mu.Lock()

	b.lastValues, b.lastPolicy, b.lastErr = values, policies, err
	b.generation++
	b.cond.Broadcast()
}
