// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package inference

import (
	"context"
	"sync"

	"github.com/campaignexpress/rtb/pkg/types"
)

// acceleratorBackend is shared scaffolding for every batching-capable
// hardware backend. Each one differs only in name and batch size (every
// constructor marks the simulated hardware reachable and the model
// loaded); the forward pass is identical to
// the CPU synthetic network until real device bindings are wired in.
type acceleratorBackend struct {
	mu       sync.RWMutex
	w        *weights
	name     string
	maxBatch int
	loaded   bool
	available bool
}

func newAccelerator(name string, maxBatch int) *acceleratorBackend {
	return &acceleratorBackend{
		w:         syntheticWeights(FeatureDim, 1),
		name:      name,
		maxBatch:  maxBatch,
		loaded:    true,
		available: true,
	}
}

func (b *acceleratorBackend) ProviderName() string   { return b.name }
func (b *acceleratorBackend) SupportsBatching() bool { return true }
func (b *acceleratorBackend) MaxBatchSize() int      { return b.maxBatch }

func (b *acceleratorBackend) WarmUp(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.available {
		return ErrHardwareUnavailable
	}
	if !b.loaded {
		return ErrModelNotLoaded
	}
	return nil
}

func (b *acceleratorBackend) Reload(ctx context.Context, modelPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.w = syntheticWeights(FeatureDim, 1)
	return nil
}

func (b *acceleratorBackend) Predict(ctx context.Context, offerIDs []string, rows [][]float32) ([]types.InferenceResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.available {
		return nil, ErrHardwareUnavailable
	}
	if !b.loaded {
		return nil, ErrModelNotLoaded
	}
	if len(rows) > b.maxBatch {
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

func (b *acceleratorBackend) PredictBatch(ctx context.Context, batches [][]string, rows [][][]float32) ([][]types.InferenceResult, error) {
	out := make([][]types.InferenceResult, len(batches))
	for i := range batches {
		r, err := b.Predict(ctx, batches[i], rows[i])
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// NewNPUBackend models an on-prem NPU accelerator (AMD XDNA-class).
func NewNPUBackend() Provider { return newAccelerator("npu", 32) }

// InferentiaGeneration distinguishes AWS Inferentia hardware revisions,
// which differ in batch throughput but not in the scoring contract.
type InferentiaGeneration int

const (
	Inferentia2 InferentiaGeneration = iota
	Inferentia3
)

// NewInferentiaBackend models an AWS Inferentia accelerator of the given
// generation.
func NewInferentiaBackend(gen InferentiaGeneration) Provider {
	switch gen {
	case Inferentia3:
		return newAccelerator("aws_inferentia3", 128)
	default:
		return newAccelerator("aws_inferentia2", 64)
	}
}

// NewGroqBackend models a Groq LPU, characterized by large fixed batch
// throughput and deterministic latency.
func NewGroqBackend() Provider { return newAccelerator("groq_lpu", 256) }

// NewARMBackend models an ARM many-core accelerator (Oracle Ampere-class).
func NewARMBackend() Provider { return newAccelerator("arm_manycore", 48) }

// NewRISCVBackend models a RISC-V mesh accelerator (Tenstorrent-class).
func NewRISCVBackend() Provider { return newAccelerator("riscv_mesh", 48) }
