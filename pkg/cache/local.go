// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cache implements the two-tier profile cache: an in-process L1
// with lazy TTL expiry sitting in front of a distributed L2 (Redis).
package cache

import (
	"sync"
	"time"

	"github.com/campaignexpress/rtb/pkg/types"
)

// shardCount is fixed rather than configurable: enough to de-contend
// concurrent readers across cores without making eviction bookkeeping
// dynamic.
const shardCount = 32

type entry struct {
	profile    *types.UserProfile
	insertedAt time.Time
}

type shard struct {
	mu   sync.RWMutex
	data map[string]entry
}

// LocalCache is a sharded, capacity-bounded, TTL-expiring in-process cache.
// Go has no drop-in DashMap; sharded RWMutex maps are this tree's
// equivalent, keeping the same lazy-expiry-plus-periodic-scan design as
// the distributed-cache client it sits in front of.
type LocalCache struct {
	shards      [shardCount]*shard
	ttl         time.Duration
	maxEntries  int
	size        int64
	sizeMu      sync.Mutex
}

// NewLocalCache builds an L1 cache with the given per-entry TTL and an
// overall capacity bound. Once at capacity, new keys are skipped rather
// than evicting an existing (hot) entry.
func NewLocalCache(ttl time.Duration, maxEntries int) *LocalCache {
	lc := &LocalCache{ttl: ttl, maxEntries: maxEntries}
	for i := range lc.shards {
		lc.shards[i] = &shard{data: make(map[string]entry)}
	}
	return lc
}

func (c *LocalCache) shardFor(key string) *shard {
	var h uint32 = 2166136261
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= 16777619
	}
	return c.shards[h%shardCount]
}

// Get returns the cached profile if present and unexpired. Expired entries
// are evicted on access rather than waiting for the periodic scan.
func (c *LocalCache) Get(userID string) (*types.UserProfile, bool) {
	sh := c.shardFor(userID)
	sh.mu.RLock()
	e, ok := sh.data[userID]
	sh.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(e.insertedAt) > c.ttl {
		sh.mu.Lock()
		delete(sh.data, userID)
		sh.mu.Unlock()
		c.decrSize()
		return nil, false
	}
	return e.profile, true
}

// Put inserts or refreshes a profile. If the cache is at capacity and the
// key is not already present, the insert is skipped to keep the existing
// hot set stable rather than evicting arbitrarily.
func (c *LocalCache) Put(userID string, profile *types.UserProfile) {
	sh := c.shardFor(userID)
	sh.mu.Lock()
	_, existed := sh.data[userID]
	if !existed && c.maxEntries > 0 && c.Len() >= c.maxEntries {
		sh.mu.Unlock()
		return
	}
	sh.data[userID] = entry{profile: profile, insertedAt: time.Now()}
	sh.mu.Unlock()
	if !existed {
		c.incrSize()
	}
}

// Len reports the approximate number of entries across all shards.
func (c *LocalCache) Len() int {
	c.sizeMu.Lock()
	defer c.sizeMu.Unlock()
	return int(c.size)
}

func (c *LocalCache) incrSize() {
	c.sizeMu.Lock()
	c.size++
	c.sizeMu.Unlock()
}

func (c *LocalCache) decrSize() {
	c.sizeMu.Lock()
	if c.size > 0 {
		c.size--
	}
	c.sizeMu.Unlock()
}

// EvictExpired performs a full scan, removing any entry past its TTL. Run
// periodically from a background goroutine; Get's lazy check handles the
// common case, this backstops keys that are never read again.
func (c *LocalCache) EvictExpired() {
	now := time.Now()
	for _, sh := range c.shards {
		sh.mu.Lock()
		for k, e := range sh.data {
			if now.Sub(e.insertedAt) > c.ttl {
				delete(sh.data, k)
				c.decrSize()
			}
		}
		sh.mu.Unlock()
	}
}

// RunEvictionLoop ticks EvictExpired every interval until the returned
// stop function is called.
func (c *LocalCache) RunEvictionLoop(interval time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				c.EvictExpired()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}
