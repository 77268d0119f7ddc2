// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"testing"
	"time"

	"github.com/campaignexpress/rtb/pkg/types"
)

func TestLocalCache_GetPutRoundTrip(t *testing.T) {
	lc := NewLocalCache(time.Minute, 10)
	p := &types.UserProfile{UserID: "u1"}
	lc.Put("u1", p)

	got, ok := lc.Get("u1")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.UserID != "u1" {
		t.Errorf("expected u1, got %s", got.UserID)
	}
}

func TestLocalCache_ExpiresByTTL(t *testing.T) {
	lc := NewLocalCache(10*time.Millisecond, 10)
	lc.Put("u1", &types.UserProfile{UserID: "u1"})
	time.Sleep(20 * time.Millisecond)

	if _, ok := lc.Get("u1"); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestLocalCache_SkipsInsertAtCapacity(t *testing.T) {
	lc := NewLocalCache(time.Minute, 1)
	lc.Put("u1", &types.UserProfile{UserID: "u1"})
	lc.Put("u2", &types.UserProfile{UserID: "u2"})

	if _, ok := lc.Get("u2"); ok {
		t.Fatal("expected u2 insert to be skipped at capacity")
	}
	if _, ok := lc.Get("u1"); !ok {
		t.Fatal("expected existing hot entry u1 to remain")
	}
}

func TestLocalCache_EvictExpired(t *testing.T) {
	lc := NewLocalCache(10*time.Millisecond, 100)
	lc.Put("u1", &types.UserProfile{UserID: "u1"})
	time.Sleep(20 * time.Millisecond)
	lc.EvictExpired()

	if lc.Len() != 0 {
		t.Errorf("expected 0 entries after eviction, got %d", lc.Len())
	}
}
