// Package onnx implements predictor.BatchPredictor using gonnx, a pure-Go
// ONNX runtime, grounded on the same policy/value model-pair pattern used
// elsewhere in this codebase's neural inference code.
package onnx

import (
	"context"
	"fmt"
	"sync"

	gonnx "github.com/advancedclimatesystems/gonnx"
	"gorgonia.org/tensor"

	"github.com/kharnhold/tacticsrl/internal/selfplay"
	"github.com/kharnhold/tacticsrl/pkg/tactics"
)

// Predictor loads a combined policy+value ONNX model pair from a
// directory and serves predictor.BatchPredictor by running both models
// once per batch.
type Predictor struct {
	policy *gonnx.Model
	value  *gonnx.Model
	size   int
	mu     sync.Mutex
}

// Load reads policy.onnx and value.onnx from dir, sized for boards of
// side boardSize.
func Load(dir string, boardSize int) (*Predictor, error) {
	policy, err := gonnx.NewModelFromFile(dir + "/policy.onnx")
	if err != nil {
		return nil, fmt.Errorf("onnx: load policy model: %w", err)
	}
	value, err := gonnx.NewModelFromFile(dir + "/value.onnx")
	if err != nil {
		return nil, fmt.Errorf("onnx: load value model: %w", err)
	}
	return &Predictor{policy: policy, value: value, size: boardSize}, nil
}

// Predict implements predictor.BatchPredictor.
func (p *Predictor) Predict(ctx context.Context, boards []tactics.Board, phases []tactics.Phase) ([]float64, [][]float64, error) {
	if len(boards) != len(phases) {
		return nil, nil, fmt.Errorf("onnx: boards/phases length mismatch: %d vs %d", len(boards), len(phases))
	}
	if len(boards) == 0 {
		return nil, nil, nil
	}

	n := len(boards)
	boardData := make([]float32, 0, n*p.size*p.size*selfplay.BoardChannels)
	phaseData := make([]int64, n)
	for i, b := range boards {
		boardData = append(boardData, selfplay.EncodeBoard(b)...)
		phaseData[i] = int64(phases[i])
	}

	boardTensor := tensor.New(
		tensor.WithShape(n, p.size, p.size, selfplay.BoardChannels),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(boardData),
	)
	phaseTensor := tensor.New(
		tensor.WithShape(n),
		tensor.Of(tensor.Int64),
		tensor.WithBacking(phaseData),
	)
	inputs := gonnx.Tensors{"board": boardTensor, "phase": phaseTensor}

	p.mu.Lock()
	policyOut, policyErr := p.policy.Run(inputs)
	valueOut, valueErr := p.value.Run(inputs)
	p.mu.Unlock()
	if policyErr != nil {
		return nil, nil, fmt.Errorf("onnx: policy inference: %w", policyErr)
	}
	if valueErr != nil {
		return nil, nil, fmt.Errorf("onnx: value inference: %w", valueErr)
	}

	policyTensor, ok := policyOut["policy_logits"]
	if !ok {
		return nil, nil, fmt.Errorf("onnx: policy model missing output 'policy_logits'")
	}
	valueTensor, ok := valueOut["value"]
	if !ok {
		return nil, nil, fmt.Errorf("onnx: value model missing output 'value'")
	}

	flatPolicy, err := asFloat64(policyTensor.Data())
	if err != nil {
		return nil, nil, fmt.Errorf("onnx: policy output: %w", err)
	}
	flatValue, err := asFloat64(valueTensor.Data())
	if err != nil {
		return nil, nil, fmt.Errorf("onnx: value output: %w", err)
	}
	if len(flatValue) != n {
		return nil, nil, fmt.Errorf("onnx: value output length %d, want %d", len(flatValue), n)
	}

	policyWidth := selfplay.PolicyArrayLen(p.size)
	if len(flatPolicy) != n*policyWidth {
		return nil, nil, fmt.Errorf("onnx: policy output length %d, want %d", len(flatPolicy), n*policyWidth)
	}
	policies := make([][]float64, n)
	for i := 0; i < n; i++ {
		policies[i] = flatPolicy[i*policyWidth : (i+1)*policyWidth]
	}
	return flatValue, policies, nil
}

func asFloat64(data interface{}) ([]float64, error) {
	switch d := data.(type) {
	case []float64:
		return d, nil
	case []float32:
		out := make([]float64, len(d))
		for i, v := range d {
			out[i] = float64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected tensor data type %T", data)
	}
}
