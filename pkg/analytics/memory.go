// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package analytics

import (
	"context"
	"sync"

	"github.com/campaignexpress/rtb/pkg/types"
)

// RecordingSink is an in-memory Sink used in tests and local development,
// grounded in the teacher's InMemoryStorage pattern.
type RecordingSink struct {
	mu     sync.Mutex
	events []types.AnalyticsEvent
	schemaCalls int
}

func NewRecordingSink() *RecordingSink { return &RecordingSink{} }

func (s *RecordingSink) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	s.schemaCalls++
	s.mu.Unlock()
	return nil
}

func (s *RecordingSink) WriteBatch(ctx context.Context, events []types.AnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *RecordingSink) Events() []types.AnalyticsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.AnalyticsEvent, len(s.events))
	copy(out, s.events)
	return out
}
