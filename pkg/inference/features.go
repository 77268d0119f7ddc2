// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package inference

import (
	"github.com/campaignexpress/rtb/pkg/loyalty"
	"github.com/campaignexpress/rtb/pkg/types"
)

// BuildFeatures assembles one FeatureDim-wide row per candidate offer for a
// single user profile. Layout:
//
//	[0, 64)    interests, zero-padded/truncated
//	[64, 128)  segment one-hot, segment%64 bucketed
//	[128, 136) loyalty feature block
//	136        recency score
//	137        frequency-cap utilization
//	138        device type code
//	139        positional encoding (offer index / batch size)
//	[140, 256) reserved, left zero
func BuildFeatures(profile *types.UserProfile, offerIDs []string, batchSize int) [][]float32 {
	loyaltyVec := loyalty.FeatureVector(profile.Loyalty)
	rows := make([][]float32, len(offerIDs))
	if batchSize <= 0 {
		batchSize = 1
	}

	for i := range offerIDs {
		row := make([]float32, FeatureDim)

		for j, v := range profile.Interests {
			if j >= 64 {
				break
			}
			row[j] = v
		}

		for _, seg := range profile.Segments {
			row[64+int(seg%64)] = 1.0
		}

		for j, v := range loyaltyVec {
			row[128+j] = v
		}

		row[136] = profile.RecencyScore
		row[137] = profile.FrequencyCap.Utilization()
		row[138] = profile.DeviceType.FeatureCode()
		row[139] = float32(i) / float32(batchSize)

		rows[i] = row
	}
	return rows
}

// CandidateCount applies the offer_count = min(maxBatchSize, max(numImps, 4))
// rule used to size the candidate set before feature assembly.
func CandidateCount(maxBatchSize, numImps int) int {
	floor := numImps
	if floor < 4 {
		floor = 4
	}
	if maxBatchSize < floor {
		return maxBatchSize
	}
	return floor
}
