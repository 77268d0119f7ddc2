// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package inference

import (
	"context"
	"testing"
)

func TestCPUBackend_PredictDeterministic(t *testing.T) {
	b := NewCPUBackend()
	row := make([]float32, FeatureDim)
	row[0] = 0.5

	r1, err := b.Predict(context.Background(), []string{"offer-0000"}, [][]float32{row})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r2, err := b.Predict(context.Background(), []string{"offer-0000"}, [][]float32{row})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r1[0].Score != r2[0].Score {
		t.Errorf("expected deterministic score, got %f vs %f", r1[0].Score, r2[0].Score)
	}
	if r1[0].RecommendedBid != float64(r1[0].PredictedCTR)*10.0 {
		t.Errorf("expected recommended bid = ctr * 10")
	}
}

func TestCPUBackend_RejectsOversizedBatch(t *testing.T) {
	b := NewCPUBackend()
	rows := make([][]float32, 2)
	rows[0] = make([]float32, FeatureDim)
	rows[1] = make([]float32, FeatureDim)

	_, err := b.Predict(context.Background(), []string{"a", "b"}, rows)
	if err == nil {
		t.Fatal("expected batch-too-large error for CPU backend (max batch 1)")
	}
}

func TestCPUBackend_Reload(t *testing.T) {
	b := NewCPUBackend()
	if err := b.Reload(context.Background(), "/models/colanet.onnx"); err != nil {
		t.Fatalf("unexpected reload error: %v", err)
	}
	if err := b.WarmUp(context.Background()); err != nil {
		t.Fatalf("unexpected warm-up error after reload: %v", err)
	}
}
