// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rtb holds the OpenRTB 2.6 wire-level validation and response
// helpers the bid pipeline builds on top of.
package rtb

import (
	"fmt"

	"github.com/prebid/openrtb/v20/openrtb2"
)

// ValidationError is returned by ValidateBidRequest. Code is the
// machine-readable reason a caller can branch on without parsing Msg.
type ValidationError struct {
	Code string
	Msg  string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Msg) }

func validationErr(code, msg string) *ValidationError {
	return &ValidationError{Code: code, Msg: msg}
}

const (
	maxFieldLen    = 256
	maxImpressions = 100
)

// ValidateBidRequest enforces the minimum shape the bid processor depends
// on. It never has side effects: a rejected request is rejected before any
// cache lookup, inference call, or analytics emission happens. Exactly one
// of site/app populated is conventional but not enforced here.
func ValidateBidRequest(req *openrtb2.BidRequest) error {
	if req == nil {
		return validationErr("invalid_bid_request", "request is nil")
	}
	if req.ID == "" {
		return validationErr("invalid_bid_request", "missing id")
	}
	if len(req.ID) > maxFieldLen {
		return validationErr("invalid_bid_request", "id exceeds max field length")
	}
	if len(req.Imp) == 0 {
		return validationErr("invalid_bid_request", "no impressions")
	}
	if len(req.Imp) > maxImpressions {
		return validationErr("invalid_bid_request", "too many impressions")
	}
	for i, imp := range req.Imp {
		if imp.ID == "" {
			return validationErr("invalid_bid_request", fmt.Sprintf("imp[%d] missing id", i))
		}
		if len(imp.ID) > maxFieldLen {
			return validationErr("invalid_bid_request", fmt.Sprintf("imp[%d] id exceeds max field length", i))
		}
		if imp.BidFloor < 0 {
			return validationErr("invalid_bid_request", fmt.Sprintf("imp[%d] negative bidfloor", i))
		}
	}
	return nil
}

// NoBidResponse matches the original platform's BidResponse::no_bid helper:
// an empty seatbid list, no bidid, a fixed currency, no ext payload.
func NoBidResponse(requestID string) *openrtb2.BidResponse {
	return &openrtb2.BidResponse{
		ID:      requestID,
		SeatBid: []openrtb2.SeatBid{},
		Cur:     "USD",
	}
}

// BidFloorCurrency defaults an impression's floor currency to USD when
// unset, matching the OpenRTB spec's own default.
func BidFloorCurrency(imp openrtb2.Imp) string {
	if imp.BidFloorCur == "" {
		return "USD"
	}
	return imp.BidFloorCur
}
