// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/campaignexpress/rtb/internal/metrics"
	"github.com/campaignexpress/rtb/internal/obslog"
	"github.com/campaignexpress/rtb/pkg/types"
)

func newTestCache(t *testing.T) *ProfileCache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewProfileCache(client, time.Minute, 100, obslog.NoOp(), metrics.New())
}

func TestProfileCache_MissFallsBackToUnavailable(t *testing.T) {
	c := newTestCache(t)
	_, err := c.GetProfile(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrCacheUnavailable)
}

func TestProfileCache_PutThenGetHitsL1(t *testing.T) {
	c := newTestCache(t)
	profile := &types.UserProfile{UserID: "u1", RecencyScore: 0.5}
	require.NoError(t, c.PutProfile(context.Background(), profile))

	got, err := c.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "u1", got.UserID)
}

func TestProfileCache_L2HitPopulatesL1(t *testing.T) {
	c := newTestCache(t)
	profile := &types.UserProfile{UserID: "u2"}
	require.NoError(t, c.PutProfile(context.Background(), profile))

	// Clear L1 directly to force an L2 round trip.
	c.l1 = NewLocalCache(time.Minute, 100)

	got, err := c.GetProfile(context.Background(), "u2")
	require.NoError(t, err)
	require.Equal(t, "u2", got.UserID)
	require.Equal(t, 1, c.L1Size())
}
