// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campaignexpress/rtb/internal/metrics"
	"github.com/campaignexpress/rtb/internal/obslog"
	"github.com/campaignexpress/rtb/pkg/types"
)

// ErrCacheUnavailable signals an L2 failure that the caller should swallow
// and fall back to a default profile, per the bid path's recovery rules.
var ErrCacheUnavailable = errCacheUnavailable{}

type errCacheUnavailable struct{}

func (errCacheUnavailable) Error() string { return "cache: L2 unavailable" }

// ProfileCache is the two-tier profile store the bid processor reads from.
type ProfileCache struct {
	l1       *LocalCache
	l2       redis.UniversalClient
	l2TTL    time.Duration
	log      obslog.Logger
	metrics  *metrics.Metrics
}

// NewProfileCache wires an L1 whose TTL is half the configured L2 TTL,
// matching the original client's "L1 TTL = L2 TTL / 2" freshness policy.
func NewProfileCache(client redis.UniversalClient, l2TTL time.Duration, maxL1Entries int, log obslog.Logger, m *metrics.Metrics) *ProfileCache {
	return &ProfileCache{
		l1:      NewLocalCache(l2TTL/2, maxL1Entries),
		l2:      client,
		l2TTL:   l2TTL,
		log:     log,
		metrics: m,
	}
}

func key(userID string) string { return "profile:" + userID }

// GetProfile checks L1, then L2, populating L1 on an L2 hit. Any L2 error
// (including a clean miss) is reported as ErrCacheUnavailable so the
// caller can fall back to a default profile without treating it as fatal.
func (c *ProfileCache) GetProfile(ctx context.Context, userID string) (*types.UserProfile, error) {
	if p, ok := c.l1.Get(userID); ok {
		c.metrics.CacheL1Hit.Inc()
		return p, nil
	}
	c.metrics.CacheL1Miss.Inc()

	raw, err := c.l2.Get(ctx, key(userID)).Bytes()
	if err != nil {
		c.metrics.CacheL2Miss.Inc()
		return nil, ErrCacheUnavailable
	}
	c.metrics.CacheL2Hit.Inc()

	var p types.UserProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		c.log.Warn("cache: corrupt profile payload", obslog.String("user_id", userID), obslog.Err(err))
		return nil, ErrCacheUnavailable
	}
	c.l1.Put(userID, &p)
	return &p, nil
}

// PutProfile writes through to L2 and refreshes L1.
func (c *ProfileCache) PutProfile(ctx context.Context, profile *types.UserProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	if err := c.l2.SetEx(ctx, key(profile.UserID), raw, c.l2TTL).Err(); err != nil {
		return ErrCacheUnavailable
	}
	c.l1.Put(profile.UserID, profile)
	return nil
}

// Ping checks L2 reachability at startup.
func (c *ProfileCache) Ping(ctx context.Context) error {
	return c.l2.Ping(ctx).Err()
}

// StartMaintenance runs the L1 eviction scan every interval until stopped.
func (c *ProfileCache) StartMaintenance(interval time.Duration) (stop func()) {
	return c.l1.RunEvictionLoop(interval)
}

// L1Size reports the current L1 entry count, used for operational
// visibility.
func (c *ProfileCache) L1Size() int { return c.l1.Len() }
