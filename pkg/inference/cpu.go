// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package inference

import (
	"context"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/campaignexpress/rtb/pkg/types"
)

const hiddenDim = 64

// weights holds a deterministic two-layer synthetic network, used whenever
// no real model artifact is configured. The formula is reproducible across
// runs so scores are stable in tests and demos alike.
type weights struct {
	layer1 *mat.Dense // FeatureDim x hiddenDim
	bias1  float32
	layer2 *mat.Dense // hiddenDim x 1
	bias2  float32
}

func syntheticWeights(inputDim, outputDim int) *weights {
	l1 := mat.NewDense(inputDim, hiddenDim, nil)
	for i := 0; i < inputDim; i++ {
		for j := 0; j < hiddenDim; j++ {
			l1.Set(i, j, float64((i*7+j*13)%100-50)/500.0)
		}
	}
	l2 := mat.NewDense(hiddenDim, outputDim, nil)
	for i := 0; i < hiddenDim; i++ {
		for j := 0; j < outputDim; j++ {
			l2.Set(i, j, float64((i*11+j*3)%100-50)/500.0)
		}
	}
	return &weights{layer1: l1, bias1: 0.01, layer2: l2, bias2: 0.01}
}

func (w *weights) forward(row []float32) float32 {
	in := mat.NewDense(1, len(row), toFloat64(row))

	var hidden mat.Dense
	hidden.Mul(in, w.layer1)
	h := hidden.RawRowView(0)
	for i := range h {
		v := h[i] + float64(w.bias1)
		if v > 0 {
			v = math.Tanh(v)
		} else {
			v = 0
		}
		h[i] = v
	}
	hiddenM := mat.NewDense(1, hiddenDim, h)

	var out mat.Dense
	out.Mul(hiddenM, w.layer2)
	score := out.At(0, 0) + float64(w.bias2)
	return float32(math.Tanh(score))
}

func toFloat64(row []float32) []float64 {
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = float64(v)
	}
	return out
}

func sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}

// CPUBackend is the always-available fallback provider: a deterministic
// two-layer net run sequentially, no batching optimization.
type CPUBackend struct {
	mu      sync.RWMutex
	w       *weights
	loaded  bool
	maxBatch int
}

// NewCPUBackend constructs a CPU backend with synthetic weights sized for
// the shared FeatureDim input.
func NewCPUBackend() *CPUBackend {
	return &CPUBackend{w: syntheticWeights(FeatureDim, 1), loaded: true, maxBatch: 1}
}

func (b *CPUBackend) ProviderName() string { return "cpu_synthetic" }
func (b *CPUBackend) SupportsBatching() bool { return false }
func (b *CPUBackend) MaxBatchSize() int { return b.maxBatch }

func (b *CPUBackend) WarmUp(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.loaded {
		return ErrModelNotLoaded
	}
	return nil
}

// Reload swaps the model weights under a write lock so in-flight readers
// drain against the prior weights before the swap completes.
func (b *CPUBackend) Reload(ctx context.Context, modelPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	// No real model artifact format is defined for the CPU path; reload
	// re-derives the same deterministic synthetic weights, matching the
	// original engine's "fall back to synthetic weights" behavior when no
	// on-disk model is present.
	b.w = syntheticWeights(FeatureDim, 1)
	return nil
}

func (b *CPUBackend) Predict(ctx context.Context, offerIDs []string, rows [][]float32) ([]types.InferenceResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.loaded {
		return nil, ErrModelNotLoaded
	}
	if len(rows) > b.maxBatch && b.maxBatch > 0 {
		// CPU backend treats a single Predict call as one "batch" of size 1;
		// anything larger is a caller bug, not a runtime condition.
		return nil, &BatchTooLargeError{Max: b.maxBatch, Got: len(rows)}
	}
	results := make([]types.InferenceResult, len(rows))
	for i, row := range rows {
		score := b.w.forward(row)
		ctr := sigmoid(score)
		results[i] = types.InferenceResult{
			OfferID:        offerIDs[i],
			Score:          score,
			PredictedCTR:   ctr,
			RecommendedBid: float64(ctr) * 10.0,
		}
	}
	return results, nil
}

func (b *CPUBackend) PredictBatch(ctx context.Context, batches [][]string, rows [][][]float32) ([][]types.InferenceResult, error) {
	// CPU backend has no batching optimization: sequential iteration.
	out := make([][]types.InferenceResult, len(batches))
	for i := range batches {
		r, err := b.predictOne(ctx, batches[i], rows[i])
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (b *CPUBackend) predictOne(ctx context.Context, offerIDs []string, rows [][]float32) ([]types.InferenceResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.loaded {
		return nil, ErrModelNotLoaded
	}
	results := make([]types.InferenceResult, len(rows))
	for i, row := range rows {
		score := b.w.forward(row)
		ctr := sigmoid(score)
		results[i] = types.InferenceResult{
			OfferID:        offerIDs[i],
			Score:          score,
			PredictedCTR:   ctr,
			RecommendedBid: float64(ctr) * 10.0,
		}
	}
	return results, nil
}

// PredictVariants scores numVariants creative variants per offer by
// perturbing the positional-encoding slot, giving each variant a distinct
// row without changing the rest of the feature layout.
func (b *CPUBackend) PredictVariants(ctx context.Context, offerIDs []string, rows [][]float32, numVariants int) ([][]types.InferenceResult, error) {
	out := make([][]types.InferenceResult, len(rows))
	for i, row := range rows {
		variants := make([]types.InferenceResult, numVariants)
		for v := 0; v < numVariants; v++ {
			perturbed := make([]float32, len(row))
			copy(perturbed, row)
			perturbed[139] = float32(v) / float32(numVariants)
			res, err := b.Predict(ctx, []string{offerIDs[i]}, [][]float32{perturbed})
			if err != nil {
				return nil, err
			}
			variants[v] = res[0]
		}
		out[i] = variants
	}
	return out, nil
}
