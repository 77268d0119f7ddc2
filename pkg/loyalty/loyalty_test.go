// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package loyalty

import (
	"testing"

	"github.com/campaignexpress/rtb/pkg/types"
)

func TestBoost_KnownTiers(t *testing.T) {
	if Boost(TierReserve) != 1.30 {
		t.Errorf("expected reserve boost 1.30, got %f", Boost(TierReserve))
	}
	if Boost(TierGold) != 1.15 {
		t.Errorf("expected gold boost 1.15, got %f", Boost(TierGold))
	}
	if Boost("unknown") != 1.0 {
		t.Errorf("expected unknown tier boost 1.0, got %f", Boost("unknown"))
	}
}

func TestApplyBoost_ScoreUntouched(t *testing.T) {
	results := []types.InferenceResult{{OfferID: "o1", Score: 0.5, RecommendedBid: 2.0}}
	ApplyBoost(&types.LoyaltyProfile{Tier: TierReserve}, results)

	if results[0].Score != 0.5 {
		t.Errorf("expected score untouched, got %f", results[0].Score)
	}
	if results[0].RecommendedBid != 2.6 {
		t.Errorf("expected recommended bid boosted to 2.6, got %f", results[0].RecommendedBid)
	}
}

func TestApplyBoost_NilProfileNoOp(t *testing.T) {
	results := []types.InferenceResult{{OfferID: "o1", Score: 0.5, RecommendedBid: 2.0}}
	ApplyBoost(nil, results)
	if results[0].RecommendedBid != 2.0 {
		t.Errorf("expected no change for nil profile, got %f", results[0].RecommendedBid)
	}
}

func TestFeatureVector_NilProfileIsZero(t *testing.T) {
	v := FeatureVector(nil)
	for i, x := range v {
		if x != 0 {
			t.Errorf("expected zero vector for nil profile, index %d = %f", i, x)
		}
	}
}
