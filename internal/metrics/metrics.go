// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics registers the prometheus counters, gauges and histograms
// exercised by the bid pipeline, cache, analytics writer and agent
// supervisor.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the bid path touches, registered against
// a single registry so cmd/rtbd can expose one /metrics endpoint.
type Metrics struct {
	registry *prometheus.Registry

	CacheL1Hit  prometheus.Counter
	CacheL1Miss prometheus.Counter
	CacheL2Hit  prometheus.Counter
	CacheL2Miss prometheus.Counter

	AnalyticsDropped     prometheus.Counter
	AnalyticsQueued      prometheus.Counter
	AnalyticsFlushErrors prometheus.Counter

	AgentDeserializeErrors prometheus.Counter
	AgentProcessingErrors  prometheus.Counter

	BidsRequests        prometheus.Counter
	BidsFrequencyCapped prometheus.Counter
	BidsLoyaltyBoosted  prometheus.Counter
	BidsNoBid           prometheus.Counter
	BidsResponded       prometheus.Counter

	InferenceLatencyUS prometheus.Histogram
	BidTotalLatencyUS  prometheus.Histogram
}

// New registers every collector against a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
		reg.MustRegister(c)
		return c
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets})
		reg.MustRegister(h)
		return h
	}

	return &Metrics{
		registry: reg,

		CacheL1Hit:  counter("cache_l1_hit_total", "L1 profile cache hits"),
		CacheL1Miss: counter("cache_l1_miss_total", "L1 profile cache misses"),
		CacheL2Hit:  counter("cache_l2_hit_total", "L2 profile cache hits"),
		CacheL2Miss: counter("cache_l2_miss_total", "L2 profile cache misses"),

		AnalyticsDropped:     counter("analytics_dropped_total", "Analytics events dropped due to backpressure"),
		AnalyticsQueued:      counter("analytics_queued_total", "Analytics events accepted onto the queue"),
		AnalyticsFlushErrors: counter("analytics_flush_errors_total", "Analytics batch flush failures"),

		AgentDeserializeErrors: counter("agent_deserialize_errors_total", "Bid request deserialization failures"),
		AgentProcessingErrors:  counter("agent_processing_errors_total", "Bid processing failures"),

		BidsRequests:        counter("bids_requests_total", "Bid requests processed"),
		BidsFrequencyCapped: counter("bids_frequency_capped_total", "Bid requests rejected by frequency cap"),
		BidsLoyaltyBoosted:  counter("bids_loyalty_boosted_total", "Bids re-weighted by a loyalty tier boost"),
		BidsNoBid:           counter("bids_no_bid_total", "Bid requests resulting in no bid"),
		BidsResponded:       counter("bids_responded_total", "Bid requests resulting in a bid response"),

		InferenceLatencyUS: histogram("inference_latency_us", "Inference latency in microseconds",
			[]float64{100, 500, 1000, 2000, 5000, 10000, 20000}),
		BidTotalLatencyUS: histogram("bid_total_latency_us", "End-to-end bid processing latency in microseconds",
			[]float64{500, 1000, 2000, 5000, 10000, 20000, 50000}),
	}
}

// Registry returns the underlying prometheus registry for HTTP exposition.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
