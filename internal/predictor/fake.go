package predictor

import (
	"context"
	"math/rand"

	"github.com/kharnhold/tacticsrl/pkg/tactics"
)

// Uniform is a BatchPredictor that returns a value of 0 and a uniform
// policy for every position. Useful as the evaluator in tests that only
// care about search mechanics, not learned behavior.
type Uniform struct {
	PolicyWidth func(boardSize int) int
}

// Predict implements BatchPredictor.
func (u Uniform) Predict(ctx context.Context, boards []tactics.Board, phases []tactics.Phase) ([]float64, [][]float64, error) {
	values := make([]float64, len(boards))
	policies := make([][]float64, len(boards))
	for i, b := range boards {
		width := 2*b.Size*b.Size + 1
		if u.PolicyWidth != nil {
			width = u.PolicyWidth(b.Size)
		}
		p := make([]float64, width)
		share := 1.0 / float64(width)
		for j := range p {
			p[j] = share
		}
		policies[i] = p
	}
	return values, policies, nil
}

// Random is a BatchPredictor returning a random value in [-1, 1] and a
// Dirichlet-ish random policy, for exercising search robustness to noisy
// priors without a real model file. Unlike Uniform it is stateful: Predict
// draws from the shared Rng, so it is not safe for concurrent calls.
type Random struct {
	Rng         *rand.Rand
	PolicyWidth func(boardSize int) int
}

// Predict implements BatchPredictor.
func (r Random) Predict(ctx context.Context, boards []tactics.Board, phases []tactics.Phase) ([]float64, [][]float64, error) {
	values := make([]float64, len(boards))
	policies := make([][]float64, len(boards))
	for i, b := range boards {
		values[i] = r.Rng.Float64()*2 - 1
		width := 2*b.Size*b.Size + 1
		if r.PolicyWidth != nil {
			width = r.PolicyWidth(b.Size)
		}
		p := make([]float64, width)
		sum := 0.0
		for j := range p {
			p[j] = r.Rng.Float64()
			sum += p[j]
		}
		if sum > 0 {
			for j := range p {
				p[j] /= sum
			}
		}
		policies[i] = p
	}
	return values, policies, nil
}
