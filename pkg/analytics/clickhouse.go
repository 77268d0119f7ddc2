// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package analytics

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/campaignexpress/rtb/pkg/types"
)

const createTableDDL = `
CREATE TABLE IF NOT EXISTS analytics_events (
	event_id UUID,
	event_type String,
	request_id String,
	impression_id Nullable(String),
	user_id Nullable(String),
	offer_id Nullable(String),
	bid_price Nullable(Float64),
	win_price Nullable(Float64),
	agent_id String,
	node_id String,
	inference_latency_us Nullable(UInt64),
	total_latency_us Nullable(UInt64),
	timestamp DateTime64(3)
) ENGINE = MergeTree()
ORDER BY (timestamp, event_type, node_id)
PARTITION BY toYYYYMM(timestamp)
TTL timestamp + INTERVAL 90 DAY
`

// ClickHouseSink writes analytics batches into the columnar schema above.
// Schema creation is idempotent so every node can run it at startup
// without coordination.
type ClickHouseSink struct {
	conn clickhouse.Conn
}

// NewClickHouseSink opens a connection to addr/database.
func NewClickHouseSink(addr, database string) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{Database: database},
	})
	if err != nil {
		return nil, err
	}
	return &ClickHouseSink{conn: conn}, nil
}

func (s *ClickHouseSink) EnsureSchema(ctx context.Context) error {
	return s.conn.Exec(ctx, createTableDDL)
}

func (s *ClickHouseSink) WriteBatch(ctx context.Context, events []types.AnalyticsEvent) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO analytics_events")
	if err != nil {
		return err
	}
	for _, e := range events {
		if err := batch.Append(
			e.EventID,
			string(e.EventType),
			e.RequestID,
			e.ImpressionID,
			e.UserID,
			e.OfferID,
			e.BidPrice,
			e.WinPrice,
			e.AgentID,
			e.NodeID,
			e.InferenceLatencyUS,
			e.TotalLatencyUS,
			e.Timestamp,
		); err != nil {
			return err
		}
	}
	return batch.Send()
}
