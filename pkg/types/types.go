// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package types holds the domain model shared across the bidding pipeline:
// user profiles, frequency caps, inference results and the analytics event
// envelope. Nothing here depends on the wire format or the storage layer.
package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeviceType mirrors the small device taxonomy the feature assembler needs.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceCTV     DeviceType = "ctv"
)

// FeatureCode returns the scalar encoding the inference feature layout uses
// at offset 138. Unknown/zero-value device types encode as -1.
func (d DeviceType) FeatureCode() float32 {
	switch d {
	case DeviceDesktop:
		return 0.0
	case DeviceTablet:
		return 0.5
	case DeviceCTV:
		return 0.75
	case DeviceMobile:
		return 1.0
	default:
		return -1.0
	}
}

// FrequencyCap tracks rolling impression counts for a user against the
// configured hourly/daily limits. The bid path only ever reads it; nothing
// in this module increments these counters itself.
type FrequencyCap struct {
	Impressions24h uint32
	Impressions1h  uint32
	MaxPerHour     uint32
	MaxPerDay      uint32
}

// DefaultFrequencyCap matches the original platform's defaults.
func DefaultFrequencyCap() FrequencyCap {
	return FrequencyCap{MaxPerHour: 10, MaxPerDay: 50}
}

// Exceeded reports whether the hourly cap has been reached. Daily caps are
// tracked for reporting but are not part of the bid-time gate.
func (f FrequencyCap) Exceeded() bool {
	return f.Impressions1h >= f.MaxPerHour
}

// Utilization returns the fraction of the hourly cap already consumed, used
// directly as a feature input. A zero cap reports 0 rather than dividing by
// zero.
func (f FrequencyCap) Utilization() float32 {
	if f.MaxPerHour == 0 {
		return 0
	}
	return float32(f.Impressions1h) / float32(f.MaxPerHour)
}

// UserProfile is the cached view of a user the bid processor scores
// against. It is looked up once per request and never mutated in place by
// the bid path.
type UserProfile struct {
	UserID       string
	Segments     []uint32
	Interests    []float32
	GeoRegion    string
	DeviceType   DeviceType
	RecencyScore float32
	FrequencyCap FrequencyCap
	LastSeen     time.Time
	Loyalty      *LoyaltyProfile
}

// DefaultProfile is returned whenever a profile cannot be resolved from
// cache; it carries no loyalty boost and an empty interest vector.
func DefaultProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:       userID,
		FrequencyCap: DefaultFrequencyCap(),
		LastSeen:     time.Now(),
	}
}

// LoyaltyTier is declared here to avoid an import cycle between types
// and loyalty; the loyalty package owns the tier constants and boost table.
type LoyaltyTier string

// LoyaltyProfile is the subset of loyalty-program state the feature
// assembler and the bid re-weighting step need. pkg/loyalty encodes it as
// features and maps its tier to a bid multiplier; no earn history or
// redemption ledger is modelled.
type LoyaltyProfile struct {
	Tier             LoyaltyTier
	StarsBalance     uint32
	StarsQualifying  uint32
	TierProgress     float32
	EarnRate         float32
	LifetimeStars    uint64
	TotalRedemptions uint32
}

// InferenceResult is what a Provider returns for a single candidate offer.
type InferenceResult struct {
	OfferID         string
	Score           float32
	PredictedCTR    float32
	RecommendedBid  float64
	InferenceLatUS  uint64
}

// BidDecision is the internal record of a winning impression, prior to
// being materialized into an OpenRTB Bid.
type BidDecision struct {
	RequestID      string
	ImpressionID   string
	OfferID        string
	BidPrice       float64
	CreativeURL    string
	LandingURL     string
	AgentID        string
	NodeID         string
	InferenceLatUS uint64
	TotalLatUS     uint64
	Timestamp      time.Time
}

// DecimalPrice rounds BidPrice to CPM cent precision using exact decimal
// arithmetic, avoiding the float drift that would otherwise creep into
// settlement and analytics reporting.
func (d BidDecision) DecimalPrice() decimal.Decimal {
	return decimal.NewFromFloat(d.BidPrice).Round(2)
}

// EventType enumerates the analytics events the bid path emits.
type EventType string

const (
	EventBidRequest  EventType = "bid_request"
	EventBidResponse EventType = "bid_response"
	EventImpression  EventType = "impression"
	EventClick       EventType = "click"
	EventConversion  EventType = "conversion"
	EventNoBid       EventType = "no_bid"
	EventTimeout     EventType = "timeout"
	EventError       EventType = "error"
)

// AnalyticsEvent is the envelope written to the analytics channel. Optional
// fields are nil when not applicable to the event type.
type AnalyticsEvent struct {
	EventID            uuid.UUID
	EventType          EventType
	RequestID          string
	ImpressionID       *string
	UserID             *string
	OfferID            *string
	BidPrice           *float64
	WinPrice           *float64
	AgentID            string
	NodeID             string
	InferenceLatencyUS *uint64
	TotalLatencyUS     *uint64
	Timestamp          time.Time
}

// NewEvent stamps a fresh event ID and timestamp.
func NewEvent(eventType EventType, requestID, agentID, nodeID string) AnalyticsEvent {
	return AnalyticsEvent{
		EventID:   uuid.New(),
		EventType: eventType,
		RequestID: requestID,
		AgentID:   agentID,
		NodeID:    nodeID,
		Timestamp: time.Now(),
	}
}
