// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bidproc implements the bid pipeline: profile lookup, frequency
// capping, candidate scoring, loyalty re-weighting and winner selection
// for a single OpenRTB bid request.
package bidproc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/campaignexpress/rtb/internal/metrics"
	"github.com/campaignexpress/rtb/internal/obslog"
	"github.com/campaignexpress/rtb/pkg/analytics"
	"github.com/campaignexpress/rtb/pkg/cache"
	"github.com/campaignexpress/rtb/pkg/inference"
	"github.com/campaignexpress/rtb/pkg/loyalty"
	"github.com/campaignexpress/rtb/pkg/rtb"
	"github.com/campaignexpress/rtb/pkg/types"
)

// Processor scores one bid request end to end. It holds no per-request
// state; every field is safe to share across concurrently running agents.
type Processor struct {
	batcher *inference.Batcher
	cache   *cache.ProfileCache
	writer  *analytics.Writer
	nodeID  string
	log     obslog.Logger
	metrics *metrics.Metrics
}

// New constructs a Processor bound to a node ID used to stamp outgoing
// analytics events and bid decisions.
func New(batcher *inference.Batcher, c *cache.ProfileCache, w *analytics.Writer, nodeID string, log obslog.Logger, m *metrics.Metrics) *Processor {
	return &Processor{batcher: batcher, cache: c, writer: w, nodeID: nodeID, log: log, metrics: m}
}

// Process runs the full pipeline for a validated request. Callers must
// invoke rtb.ValidateBidRequest first; Process assumes the request shape
// is already sound.
func (p *Processor) Process(ctx context.Context, req *openrtb2.BidRequest, agentID string) (*openrtb2.BidResponse, error) {
	start := time.Now()
	p.metrics.BidsRequests.Inc()

	userID := identifyUser(req)

	profile, err := p.cache.GetProfile(ctx, userID)
	if err != nil {
		// Cache failures and misses are swallowed: a cold or unreachable
		// cache degrades to a default profile rather than failing the bid.
		profile = types.DefaultProfile(userID)
	}

	if profile.FrequencyCap.Exceeded() {
		p.metrics.BidsFrequencyCapped.Inc()
		p.writer.TryEnqueue(p.noBidEvent(req.ID, agentID, &userID, durationUS(start)))
		p.metrics.BidsNoBid.Inc()
		return rtb.NoBidResponse(req.ID), nil
	}

	offerIDs := candidateOfferIDs(p.batcher.ProviderMaxBatchSize(), len(req.Imp))
	rows := inference.BuildFeatures(profile, offerIDs, len(offerIDs))

	inferStart := time.Now()
	results, err := p.batcher.Submit(ctx, offerIDs, rows)
	inferLatencyUS := durationUS(inferStart)
	if err != nil {
		p.log.Warn("bidproc: inference failed", obslog.String("request_id", req.ID), obslog.Err(err))
		p.writer.TryEnqueue(p.errorEvent(req.ID, agentID, err))
		p.metrics.BidsNoBid.Inc()
		return rtb.NoBidResponse(req.ID), nil
	}
	p.metrics.InferenceLatencyUS.Observe(float64(inferLatencyUS))

	if profile.Loyalty != nil && loyalty.Boost(profile.Loyalty.Tier) != 1.0 {
		p.metrics.BidsLoyaltyBoosted.Inc()
	}
	loyalty.ApplyBoost(profile.Loyalty, results)

	var seatBids []openrtb2.SeatBid
	for _, imp := range req.Imp {
		winner, ok := selectWinner(results, imp.BidFloor)
		if !ok {
			continue
		}
		decision := p.materializeDecision(req.ID, imp, winner, agentID, inferLatencyUS, durationUS(start))
		p.log.Debug("bidproc: winner selected",
			obslog.String("request_id", req.ID),
			obslog.String("offer_id", decision.OfferID),
			obslog.String("price", decision.DecimalPrice().String()))
		seatBids = append(seatBids, buildSeatBid(decision, imp))
		p.writer.TryEnqueue(p.bidResponseEvent(req.ID, imp.ID, agentID, &userID, decision, inferLatencyUS))
	}

	totalLatencyUS := durationUS(start)
	p.metrics.BidTotalLatencyUS.Observe(float64(totalLatencyUS))

	if len(seatBids) == 0 {
		p.metrics.BidsNoBid.Inc()
		p.writer.TryEnqueue(p.noBidEvent(req.ID, agentID, &userID, totalLatencyUS))
		return rtb.NoBidResponse(req.ID), nil
	}

	p.metrics.BidsResponded.Inc()
	bidID := uuid.New().String()
	return &openrtb2.BidResponse{
		ID:      req.ID,
		SeatBid: seatBids,
		BidID:   bidID,
		Cur:     "USD",
	}, nil
}

// identifyUser follows the user.id -> buyeruid -> "anonymous" fallback
// chain.
func identifyUser(req *openrtb2.BidRequest) string {
	if req.User != nil {
		if req.User.ID != "" {
			return req.User.ID
		}
		if req.User.BuyerUID != "" {
			return req.User.BuyerUID
		}
	}
	return "anonymous"
}

// candidateOfferIDs sizes the candidate set and names each candidate
// offer-NNNN, matching the original platform's placeholder offer naming.
func candidateOfferIDs(maxBatchSize, numImps int) []string {
	n := inference.CandidateCount(maxBatchSize, numImps)
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("offer-%04d", i)
	}
	return ids
}

// selectWinner picks the highest-scoring result whose recommended bid
// clears the impression's floor. Ties break by position (first occurrence
// wins), matching a stable max-by scan.
func selectWinner(results []types.InferenceResult, bidFloor float64) (types.InferenceResult, bool) {
	var best types.InferenceResult
	found := false
	for _, r := range results {
		if r.RecommendedBid < bidFloor {
			continue
		}
		if !found || r.Score > best.Score {
			best = r
			found = true
		}
	}
	return best, found
}

func (p *Processor) materializeDecision(requestID string, imp openrtb2.Imp, winner types.InferenceResult, agentID string, inferLatencyUS, totalLatencyUS uint64) types.BidDecision {
	return types.BidDecision{
		RequestID:      requestID,
		ImpressionID:   imp.ID,
		OfferID:        winner.OfferID,
		BidPrice:       winner.RecommendedBid,
		CreativeURL:    fmt.Sprintf("https://cdn.campaignexpress.io/creative/%s", winner.OfferID),
		LandingURL:     fmt.Sprintf("https://campaignexpress.io/click/%s", winner.OfferID),
		AgentID:        agentID,
		NodeID:         p.nodeID,
		InferenceLatUS: inferLatencyUS,
		TotalLatUS:     totalLatencyUS,
		Timestamp:      time.Now(),
	}
}

func buildSeatBid(decision types.BidDecision, imp openrtb2.Imp) openrtb2.SeatBid {
	w, h := bannerDims(imp)
	bid := openrtb2.Bid{
		ID:    uuid.New().String(),
		ImpID: imp.ID,
		Price: decision.BidPrice,
		Adm:   fmt.Sprintf(`<img src="%s" />`, decision.CreativeURL),
		NURL:  fmt.Sprintf("https://campaignexpress.io/win/%s/%s", decision.RequestID, decision.ImpressionID),
		W:     w,
		H:     h,
	}
	return openrtb2.SeatBid{
		Bid:   []openrtb2.Bid{bid},
		Seat:  "campaign-express",
		Group: 0,
	}
}

func bannerDims(imp openrtb2.Imp) (int64, int64) {
	if imp.Banner != nil {
		if imp.Banner.W != nil && imp.Banner.H != nil {
			return *imp.Banner.W, *imp.Banner.H
		}
	}
	return 300, 250
}

func durationUS(start time.Time) uint64 {
	return uint64(time.Since(start).Microseconds())
}

func (p *Processor) noBidEvent(requestID, agentID string, userID *string, totalLatencyUS uint64) types.AnalyticsEvent {
	ev := types.NewEvent(types.EventNoBid, requestID, agentID, p.nodeID)
	ev.UserID = userID
	ev.TotalLatencyUS = &totalLatencyUS
	return ev
}

func (p *Processor) errorEvent(requestID, agentID string, cause error) types.AnalyticsEvent {
	ev := types.NewEvent(types.EventError, requestID, agentID, p.nodeID)
	p.log.Warn("bidproc: emitting error event", obslog.String("request_id", requestID), obslog.Err(cause))
	return ev
}

func (p *Processor) bidResponseEvent(requestID, impID, agentID string, userID *string, decision types.BidDecision, inferLatencyUS uint64) types.AnalyticsEvent {
	ev := types.NewEvent(types.EventBidResponse, requestID, agentID, p.nodeID)
	ev.ImpressionID = &impID
	ev.UserID = userID
	ev.OfferID = &decision.OfferID
	ev.BidPrice = &decision.BidPrice
	ev.InferenceLatencyUS = &inferLatencyUS
	total := decision.TotalLatUS
	ev.TotalLatencyUS = &total
	return ev
}
