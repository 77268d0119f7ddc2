// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package loyalty holds the loyalty-tier boost table and the feature
// encoding fed into the inference feature vector at offset [128, 136).
package loyalty

import "github.com/campaignexpress/rtb/pkg/types"

const (
	TierReserve types.LoyaltyTier = "reserve"
	TierGold    types.LoyaltyTier = "gold"
	TierSilver  types.LoyaltyTier = "silver"
	TierMember  types.LoyaltyTier = "member"
)

// boostTable maps tier to the multiplier applied to recommended_bid only.
// Scores are never touched by loyalty; only the price the processor is
// willing to offer moves.
var boostTable = map[types.LoyaltyTier]float64{
	TierReserve: 1.30,
	TierGold:    1.15,
	TierSilver:  1.05,
	TierMember:  1.00,
}

// Boost returns the bid multiplier for a tier, defaulting to 1.0 for any
// tier not in the table (including the zero value).
func Boost(tier types.LoyaltyTier) float64 {
	if b, ok := boostTable[tier]; ok {
		return b
	}
	return 1.00
}

// ApplyBoost re-weights a profile's loyalty tier onto recommended bids in
// place. Scores are left untouched.
func ApplyBoost(profile *types.LoyaltyProfile, results []types.InferenceResult) {
	if profile == nil {
		return
	}
	mult := Boost(profile.Tier)
	if mult == 1.0 {
		return
	}
	for i := range results {
		results[i].RecommendedBid *= mult
	}
}

// FeatureVector encodes an 8-dimensional loyalty feature block. A nil
// profile encodes as all zeros, matching an unknown/new user.
func FeatureVector(p *types.LoyaltyProfile) [8]float32 {
	var v [8]float32
	if p == nil {
		return v
	}
	v[0] = tierOrdinal(p.Tier)
	v[1] = normalize(float32(p.StarsBalance), 10000)
	v[2] = normalize(float32(p.StarsQualifying), 10000)
	v[3] = p.TierProgress
	v[4] = p.EarnRate
	v[5] = normalize(float32(p.LifetimeStars), 100000)
	v[6] = normalize(float32(p.TotalRedemptions), 500)
	// v[7] reserved for a future loyalty signal.
	return v
}

func tierOrdinal(t types.LoyaltyTier) float32 {
	switch t {
	case TierReserve:
		return 1.0
	case TierGold:
		return 0.66
	case TierSilver:
		return 0.33
	default:
		return 0.0
	}
}

func normalize(v, max float32) float32 {
	if max <= 0 {
		return 0
	}
	n := v / max
	if n > 1 {
		return 1
	}
	return n
}
