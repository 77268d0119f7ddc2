// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package inference abstracts neural ranking inference behind a pluggable
// accelerator provider, so the bid processor never knows whether scoring
// ran on a CPU fallback or a NPU/Inferentia/Groq/ARM/RISC-V backend.
package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/campaignexpress/rtb/pkg/types"
)

// FeatureDim is the width of the flattened feature row every provider
// consumes, per offer candidate.
const FeatureDim = 256

var (
	ErrModelNotLoaded      = errors.New("inference: model not loaded")
	ErrHardwareUnavailable = errors.New("inference: hardware unavailable")
	ErrInferenceFailure    = errors.New("inference: prediction failed")
	ErrTimeout             = errors.New("inference: timed out")
)

// BatchTooLargeError signals an internal bug: a caller submitted more rows
// than the provider's MaxBatchSize. It is never produced by user input.
type BatchTooLargeError struct {
	Max int
	Got int
}

func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("inference: batch too large: got %d, max %d", e.Got, e.Max)
}

// Provider is implemented by every accelerator backend. Rows passed to
// Predict/PredictBatch are flattened feature vectors of width FeatureDim.
type Provider interface {
	Predict(ctx context.Context, offerIDs []string, rows [][]float32) ([]types.InferenceResult, error)
	PredictBatch(ctx context.Context, batches [][]string, rows [][][]float32) ([][]types.InferenceResult, error)
	ProviderName() string
	SupportsBatching() bool
	MaxBatchSize() int
	WarmUp(ctx context.Context) error
}

// VariantScorer is an optional capability: a provider that can additionally
// score multiple creative variants per offer for downstream dynamic
// creative selection. Not exercised by the default bid path.
type VariantScorer interface {
	PredictVariants(ctx context.Context, offerIDs []string, rows [][]float32, numVariants int) ([][]types.InferenceResult, error)
}

// ReloadableProvider is implemented by providers that support swapping the
// underlying model weights without a restart.
type ReloadableProvider interface {
	Reload(ctx context.Context, modelPath string) error
}
