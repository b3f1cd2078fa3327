// Package predictor defines the boundary between the search/self-play
// machinery and whatever produces position evaluations. Uniform is a pure
// function of (boards, phases); Random draws from its own random source.
package predictor

import (
	"context"

	"github.com/kharnhold/tacticsrl/pkg/tactics"
)

// BatchPredictor evaluates a batch of positions in one call. boards and
// phases must be the same length; the returned values and policies slices
// are aligned with the input order. policies[i] has length
// 2*boards[i].Size*boards[i].Size + 1 (see selfplay.PolicyArrayLen).
type BatchPredictor interface {
	Predict(ctx context.Context, boards []tactics.Board, phases []tactics.Phase) (values []float64, policies [][]float64, err error)
}
