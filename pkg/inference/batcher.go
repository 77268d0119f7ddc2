// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package inference

import (
	"context"
	"time"

	"github.com/campaignexpress/rtb/pkg/types"
)

// Batcher coalesces concurrent Submit calls into provider-sized batches
// using a Nagle-style window: a batch flushes as soon as MaxBatchSize rows
// have accumulated, or MaxWait elapses since the first row in the window
// arrived, whichever comes first. Order is preserved within a batch.
type Batcher struct {
	provider Provider
	maxWait  time.Duration
	requests chan batchRequest
}

type batchRequest struct {
	ctx      context.Context
	offerIDs []string
	rows     [][]float32
	reply    chan batchReply
}

type batchReply struct {
	results []types.InferenceResult
	err     error
}

// NewBatcher starts the coalescing goroutine. maxWaitUS of 0 disables
// coalescing: every Submit is flushed immediately as its own batch.
func NewBatcher(provider Provider, maxWaitUS int64) *Batcher {
	b := &Batcher{
		provider: provider,
		maxWait:  time.Duration(maxWaitUS) * time.Microsecond,
		requests: make(chan batchRequest, 1024),
	}
	if provider.SupportsBatching() {
		go b.run()
	}
	return b
}

// ProviderMaxBatchSize exposes the wrapped provider's MaxBatchSize, used by
// the bid processor to size its candidate offer set.
func (b *Batcher) ProviderMaxBatchSize() int { return b.provider.MaxBatchSize() }

// Submit scores one candidate set. Non-batching providers pass straight
// through to Predict; batching providers queue into the coalescing loop.
func (b *Batcher) Submit(ctx context.Context, offerIDs []string, rows [][]float32) ([]types.InferenceResult, error) {
	if !b.provider.SupportsBatching() {
		return b.provider.Predict(ctx, offerIDs, rows)
	}

	reply := make(chan batchReply, 1)
	req := batchRequest{ctx: ctx, offerIDs: offerIDs, rows: rows, reply: reply}

	select {
	case b.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-reply:
		return r.results, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Batcher) run() {
	maxBatch := b.provider.MaxBatchSize()
	var pending []batchRequest
	pendingRows := 0
	var timer *time.Timer

	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := pending
		pending = nil
		pendingRows = 0
		b.flushBatch(batch)
	}

	for {
		if len(pending) == 0 {
			req, ok := <-b.requests
			if !ok {
				return
			}
			pending = append(pending, req)
			pendingRows += len(req.rows)
			if b.maxWait > 0 {
				timer = time.NewTimer(b.maxWait)
			}
			continue
		}

		if pendingRows >= maxBatch {
			flush()
			continue
		}

		if b.maxWait <= 0 {
			flush()
			continue
		}

		select {
		case req, ok := <-b.requests:
			if !ok {
				flush()
				return
			}
			pending = append(pending, req)
			pendingRows += len(req.rows)
			if pendingRows >= maxBatch {
				if timer != nil {
					timer.Stop()
				}
				flush()
			}
		case <-timer.C:
			flush()
		}
	}
}

// flushBatch groups queued requests into provider batches, respecting
// MaxBatchSize, and fans results back out to each waiter. A request whose
// row count alone exceeds MaxBatchSize is rejected without blocking the
// rest of the window.
func (b *Batcher) flushBatch(pending []batchRequest) {
	maxBatch := b.provider.MaxBatchSize()

	var group []batchRequest
	groupSize := 0

	dispatch := func(g []batchRequest) {
		if len(g) == 0 {
			return
		}
		offerBatches := make([][]string, len(g))
		rowBatches := make([][][]float32, len(g))
		for i, r := range g {
			offerBatches[i] = r.offerIDs
			rowBatches[i] = r.rows
		}
		ctx := g[0].ctx
		results, err := b.provider.PredictBatch(ctx, offerBatches, rowBatches)
		for i, r := range g {
			if err != nil {
				r.reply <- batchReply{err: err}
				continue
			}
			r.reply <- batchReply{results: results[i]}
		}
	}

	for _, req := range pending {
		if len(req.rows) > maxBatch {
			req.reply <- batchReply{err: &BatchTooLargeError{Max: maxBatch, Got: len(req.rows)}}
			continue
		}
		if groupSize+len(req.rows) > maxBatch {
			dispatch(group)
			group = nil
			groupSize = 0
		}
		group = append(group, req)
		groupSize += len(req.rows)
	}
	dispatch(group)
}
