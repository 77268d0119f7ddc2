// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package analytics implements the bounded, non-blocking analytics event
// queue and its background batch flush into columnar storage.
package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/campaignexpress/rtb/internal/metrics"
	"github.com/campaignexpress/rtb/internal/obslog"
	"github.com/campaignexpress/rtb/pkg/types"
)

// QueueCapacity bounds the analytics channel; once full, new events are
// dropped rather than blocking the bid path.
const QueueCapacity = 100_000

// Sink is the columnar storage backend a Writer flushes batches into.
type Sink interface {
	EnsureSchema(ctx context.Context) error
	WriteBatch(ctx context.Context, events []types.AnalyticsEvent) error
}

// Writer owns the bounded channel and the background flusher goroutine.
type Writer struct {
	events chan types.AnalyticsEvent
	sink   Sink
	log    obslog.Logger
	metrics *metrics.Metrics

	batchSize     int
	flushInterval time.Duration

	mu        sync.Mutex
	snapshot  snapshot
}

type snapshot struct {
	queued  uint64
	dropped uint64
	flushed uint64
	errors  uint64
}

// NewWriter constructs a Writer; call Run to start the background flusher.
func NewWriter(sink Sink, batchSize int, flushInterval time.Duration, log obslog.Logger, m *metrics.Metrics) *Writer {
	return &Writer{
		events:        make(chan types.AnalyticsEvent, QueueCapacity),
		sink:          sink,
		log:           log,
		metrics:       m,
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}
}

// TryEnqueue is a non-blocking send: if the channel is full the event is
// dropped and counted, never blocking the caller.
func (w *Writer) TryEnqueue(event types.AnalyticsEvent) {
	select {
	case w.events <- event:
		w.metrics.AnalyticsQueued.Inc()
		w.mu.Lock()
		w.snapshot.queued++
		w.mu.Unlock()
	default:
		w.metrics.AnalyticsDropped.Inc()
		w.mu.Lock()
		w.snapshot.dropped++
		w.mu.Unlock()
	}
}

// Run drains the channel into batches, flushing on batchSize or on every
// flushInterval tick, whichever comes first. It blocks until ctx is
// cancelled, so callers should run it in its own goroutine.
func (w *Writer) Run(ctx context.Context) {
	if err := w.sink.EnsureSchema(ctx); err != nil {
		w.log.Error("analytics: schema setup failed", obslog.Err(err))
	}

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	buf := make([]types.AnalyticsEvent, 0, w.batchSize)

	flush := func() {
		if len(buf) == 0 {
			return
		}
		if err := w.sink.WriteBatch(ctx, buf); err != nil {
			w.metrics.AnalyticsFlushErrors.Inc()
			w.mu.Lock()
			w.snapshot.errors++
			w.mu.Unlock()
			w.log.Warn("analytics: flush failed, batch discarded", obslog.Err(err))
		} else {
			w.mu.Lock()
			w.snapshot.flushed += uint64(len(buf))
			w.mu.Unlock()
		}
		buf = buf[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case ev := <-w.events:
			buf = append(buf, ev)
			if len(buf) >= w.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Snapshot reports a point-in-time view of queue throughput, an additive
// operational surface beyond the write path itself.
type Snapshot struct {
	Queued  uint64
	Dropped uint64
	Flushed uint64
	Errors  uint64
}

func (w *Writer) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		Queued:  w.snapshot.queued,
		Dropped: w.snapshot.dropped,
		Flushed: w.snapshot.flushed,
		Errors:  w.snapshot.errors,
	}
}
