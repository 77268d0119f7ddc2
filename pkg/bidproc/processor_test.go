// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bidproc

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/campaignexpress/rtb/internal/metrics"
	"github.com/campaignexpress/rtb/internal/obslog"
	"github.com/campaignexpress/rtb/pkg/analytics"
	"github.com/campaignexpress/rtb/pkg/cache"
	"github.com/campaignexpress/rtb/pkg/inference"
	"github.com/campaignexpress/rtb/pkg/loyalty"
	"github.com/campaignexpress/rtb/pkg/rtb"
	"github.com/campaignexpress/rtb/pkg/types"
)

// fakeProvider returns one InferenceResult per offer, taken from perOffer
// by offer ID (score 0.1, bid 0.1 for IDs not in the map), so winner
// selection is predictable in tests.
type fakeProvider struct {
	maxBatch  int
	batching  bool
	perOffer  map[string]types.InferenceResult
	err       error
}

func (f *fakeProvider) Predict(ctx context.Context, offerIDs []string, rows [][]float32) ([]types.InferenceResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]types.InferenceResult, len(offerIDs))
	for i, id := range offerIDs {
		if r, ok := f.perOffer[id]; ok {
			out[i] = r
			continue
		}
		out[i] = types.InferenceResult{OfferID: id, Score: 0.1, RecommendedBid: 0.1}
	}
	return out, nil
}

func (f *fakeProvider) PredictBatch(ctx context.Context, batches [][]string, rows [][][]float32) ([][]types.InferenceResult, error) {
	out := make([][]types.InferenceResult, len(batches))
	for i := range batches {
		r, err := f.Predict(ctx, batches[i], rows[i])
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (f *fakeProvider) ProviderName() string   { return "fake" }
func (f *fakeProvider) SupportsBatching() bool { return f.batching }
func (f *fakeProvider) MaxBatchSize() int      { return f.maxBatch }
func (f *fakeProvider) WarmUp(ctx context.Context) error { return nil }

func newTestProcessor(t *testing.T, provider inference.Provider) (*Processor, *analytics.RecordingSink, redis.UniversalClient) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	m := metrics.New()
	log := obslog.NoOp()
	pc := cache.NewProfileCache(client, time.Minute, 1000, log, m)

	sink := analytics.NewRecordingSink()
	writer := analytics.NewWriter(sink, 10, time.Millisecond*10, log, m)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go writer.Run(ctx)

	batcher := inference.NewBatcher(provider, 0)
	proc := New(batcher, pc, writer, "node-test", log, m)
	return proc, sink, client
}

func bannerRequest(id string, bidFloor float64) *openrtb2.BidRequest {
	return &openrtb2.BidRequest{
		ID:   id,
		Site: &openrtb2.Site{ID: "site-1"},
		User: &openrtb2.User{ID: "user-1"},
		Imp: []openrtb2.Imp{
			{ID: "imp-1", BidFloor: bidFloor},
		},
	}
}

// S1: happy path, single impression, bid clears floor.
func TestProcess_HappyPath(t *testing.T) {
	provider := &fakeProvider{maxBatch: 1, perOffer: map[string]types.InferenceResult{
		"offer-0000": {OfferID: "offer-0000", Score: 0.9, RecommendedBid: 2.0},
	}}
	proc, sink, _ := newTestProcessor(t, provider)

	resp, err := proc.Process(context.Background(), bannerRequest("req-1", 0.5), "agent-1")
	require.NoError(t, err)
	require.Len(t, resp.SeatBid, 1)
	require.Len(t, resp.SeatBid[0].Bid, 1)
	require.Equal(t, 2.0, resp.SeatBid[0].Bid[0].Price)

	time.Sleep(20 * time.Millisecond)
	require.NotEmpty(t, sink.Events())
}

// S2: frequency cap already exceeded returns a no-bid without calling
// inference.
func TestProcess_FrequencyCapped(t *testing.T) {
	provider := &fakeProvider{maxBatch: 1}
	proc, _, client := newTestProcessor(t, provider)

	profile := &types.UserProfile{
		UserID: "user-1",
		FrequencyCap: types.FrequencyCap{Impressions1h: 10, MaxPerHour: 10, MaxPerDay: 50},
	}
	require.NoError(t, proc.cache.PutProfile(context.Background(), profile))

	resp, err := proc.Process(context.Background(), bannerRequest("req-2", 0.1), "agent-1")
	require.NoError(t, err)
	require.Empty(t, resp.SeatBid)
	_ = client
}

// S3: the only candidate's recommended bid is below the impression floor.
func TestProcess_BelowFloor(t *testing.T) {
	provider := &fakeProvider{maxBatch: 1, perOffer: map[string]types.InferenceResult{
		"offer-0000": {OfferID: "offer-0000", Score: 0.9, RecommendedBid: 0.05},
	}}
	proc, sink, _ := newTestProcessor(t, provider)

	resp, err := proc.Process(context.Background(), bannerRequest("req-3", 1.0), "agent-1")
	require.NoError(t, err)
	require.Empty(t, resp.SeatBid)

	deadline := time.After(time.Second)
	for len(sink.Events()) < 1 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for no-bid event")
		case <-time.After(time.Millisecond):
		}
	}
	events := sink.Events()
	require.Len(t, events, 1)
	require.Equal(t, types.EventNoBid, events[0].EventType)
}

// S4: multiple impressions each independently select the best clearing
// candidate among the shared candidate set.
func TestProcess_MultiImpressionWinnerSelection(t *testing.T) {
	provider := &fakeProvider{maxBatch: 4, batching: true, perOffer: map[string]types.InferenceResult{
		"offer-0000": {OfferID: "offer-0000", Score: 0.9, RecommendedBid: 2.0},
		"offer-0001": {OfferID: "offer-0001", Score: 0.5, RecommendedBid: 3.0},
		"offer-0002": {OfferID: "offer-0002", Score: 0.95, RecommendedBid: 0.2},
		"offer-0003": {OfferID: "offer-0003", Score: 0.1, RecommendedBid: 0.1},
	}}
	proc, _, _ := newTestProcessor(t, provider)

	req := bannerRequest("req-4", 0)
	req.Imp = []openrtb2.Imp{
		{ID: "imp-1", BidFloor: 1.0}, // offer-0002 filtered by floor; offer-0000 wins (score 0.9 > 0.5)
		{ID: "imp-2", BidFloor: 0.15}, // offer-0002 wins: highest score clearing floor
	}

	resp, err := proc.Process(context.Background(), req, "agent-1")
	require.NoError(t, err)
	require.Len(t, resp.SeatBid, 2)
}

// S5: loyalty boost is monotonic across tiers and never touches score.
func TestProcess_LoyaltyBoostMonotonic(t *testing.T) {
	base := types.InferenceResult{OfferID: "offer-0000", Score: 0.77, RecommendedBid: 1.0}

	reserve := []types.InferenceResult{base}
	loyalty.ApplyBoost(&types.LoyaltyProfile{Tier: loyalty.TierReserve}, reserve)

	gold := []types.InferenceResult{base}
	loyalty.ApplyBoost(&types.LoyaltyProfile{Tier: loyalty.TierGold}, gold)

	member := []types.InferenceResult{base}
	loyalty.ApplyBoost(&types.LoyaltyProfile{Tier: loyalty.TierMember}, member)

	require.True(t, reserve[0].RecommendedBid > gold[0].RecommendedBid)
	require.True(t, gold[0].RecommendedBid > member[0].RecommendedBid)
	require.Equal(t, base.Score, reserve[0].Score)
	require.Equal(t, base.Score, gold[0].Score)
}

// S6: validation rejects a malformed request before Process is ever
// invoked.
func TestValidation_RejectsBeforeProcess(t *testing.T) {
	req := bannerRequest("", 0.1)
	require.Error(t, rtb.ValidateBidRequest(req))
}
