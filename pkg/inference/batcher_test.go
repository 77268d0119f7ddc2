// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package inference

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/campaignexpress/rtb/pkg/types"
)

type countingProvider struct {
	mu         sync.Mutex
	batchSizes []int
	maxBatch   int
}

func (p *countingProvider) Predict(ctx context.Context, offerIDs []string, rows [][]float32) ([]types.InferenceResult, error) {
	r, err := p.PredictBatch(ctx, [][]string{offerIDs}, [][][]float32{rows})
	if err != nil {
		return nil, err
	}
	return r[0], nil
}

func (p *countingProvider) PredictBatch(ctx context.Context, batches [][]string, rows [][][]float32) ([][]types.InferenceResult, error) {
	p.mu.Lock()
	total := 0
	for _, r := range rows {
		total += len(r)
	}
	p.batchSizes = append(p.batchSizes, total)
	p.mu.Unlock()

	out := make([][]types.InferenceResult, len(batches))
	for i, ids := range batches {
		res := make([]types.InferenceResult, len(ids))
		for j, id := range ids {
			res[j] = types.InferenceResult{OfferID: id, Score: 1.0, RecommendedBid: 1.0}
		}
		out[i] = res
	}
	return out, nil
}

func (p *countingProvider) ProviderName() string   { return "counting" }
func (p *countingProvider) SupportsBatching() bool { return true }
func (p *countingProvider) MaxBatchSize() int      { return p.maxBatch }
func (p *countingProvider) WarmUp(ctx context.Context) error { return nil }

func TestBatcher_CoalescesConcurrentSubmits(t *testing.T) {
	provider := &countingProvider{maxBatch: 100}
	b := NewBatcher(provider, 50_000) // generous window so concurrent submits land together

	var wg sync.WaitGroup
	n := 10
	results := make([][]types.InferenceResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := b.Submit(context.Background(), []string{"offer-0000"}, [][]float32{make([]float32, FeatureDim)})
			if err != nil {
				t.Errorf("submit %d failed: %v", i, err)
				return
			}
			results[i] = r
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if len(r) != 1 || r[0].OfferID != "offer-0000" {
			t.Errorf("result %d malformed: %+v", i, r)
		}
	}
}

func TestBatcher_RejectsOversizedRequest(t *testing.T) {
	provider := &countingProvider{maxBatch: 2}
	b := NewBatcher(provider, 1000)

	rows := make([][]float32, 5)
	for i := range rows {
		rows[i] = make([]float32, FeatureDim)
	}
	_, err := b.Submit(context.Background(), []string{"a", "b", "c", "d", "e"}, rows)
	if err == nil {
		t.Fatal("expected BatchTooLargeError")
	}
	var tooLarge *BatchTooLargeError
	if !asBatchTooLarge(err, &tooLarge) {
		t.Fatalf("expected BatchTooLargeError, got %v", err)
	}
}

func asBatchTooLarge(err error, target **BatchTooLargeError) bool {
	e, ok := err.(*BatchTooLargeError)
	if ok {
		*target = e
	}
	return ok
}

func TestBatcher_NonBatchingPassesThrough(t *testing.T) {
	provider := &countingProvider{maxBatch: 1}
	nonBatching := &passthroughProvider{countingProvider: provider}
	b := NewBatcher(nonBatching, 1000)

	r, err := b.Submit(context.Background(), []string{"x"}, [][]float32{make([]float32, FeatureDim)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r) != 1 {
		t.Fatalf("expected 1 result, got %d", len(r))
	}
}

type passthroughProvider struct {
	*countingProvider
}

func (p *passthroughProvider) SupportsBatching() bool { return false }

func TestBatcher_WaitsWindowBeforeFlush(t *testing.T) {
	provider := &countingProvider{maxBatch: 100}
	b := NewBatcher(provider, 20_000) // 20ms window

	start := time.Now()
	_, err := b.Submit(context.Background(), []string{"x"}, [][]float32{make([]float32, FeatureDim)})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed < 15*time.Millisecond {
		t.Errorf("expected submit to wait out the coalescing window, took %v", elapsed)
	}
}
