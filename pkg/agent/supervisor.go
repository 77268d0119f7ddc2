// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package agent runs the worker pool that pulls bid requests off the
// shared work-queue topic and drives them through the bid processor.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/campaignexpress/rtb/internal/metrics"
	"github.com/campaignexpress/rtb/internal/obslog"
	"github.com/campaignexpress/rtb/pkg/bidproc"
	"github.com/campaignexpress/rtb/pkg/rtb"
)

// Config configures one node's worker pool.
type Config struct {
	Brokers          []string
	Topic            string
	ConsumerGroup    string
	ReplyTopicSuffix string
	NodeID           string
	AgentsPerNode    int
	MaxReconnects    int
}

// Supervisor owns AgentsPerNode workers subscribed to Topic as a single
// consumer group, giving each message to exactly one worker in the group.
type Supervisor struct {
	cfg       Config
	processor *bidproc.Processor
	log       obslog.Logger
	metrics   *metrics.Metrics

	wg      sync.WaitGroup
	clients []*kgo.Client
}

// NewSupervisor builds a Supervisor; call Start to connect and spawn
// workers.
func NewSupervisor(cfg Config, processor *bidproc.Processor, log obslog.Logger, m *metrics.Metrics) *Supervisor {
	return &Supervisor{cfg: cfg, processor: processor, log: log, metrics: m}
}

// Start connects AgentsPerNode workers with bounded reconnect and returns
// once all of them are spawned. Workers run until ctx is cancelled; call
// Wait to block until every worker has exited.
func (s *Supervisor) Start(ctx context.Context) error {
	n := s.cfg.AgentsPerNode
	if n <= 0 {
		n = 1
	}

	for i := 0; i < n; i++ {
		agentID := fmt.Sprintf("%s-agent-%02d", s.cfg.NodeID, i)
		client, err := s.connect(agentID)
		if err != nil {
			return fmt.Errorf("agent %s: connect: %w", agentID, err)
		}
		s.clients = append(s.clients, client)

		s.wg.Add(1)
		go func(c *kgo.Client, id string) {
			defer s.wg.Done()
			s.runWorker(ctx, c, id)
		}(client, agentID)
	}
	return nil
}

func (s *Supervisor) connect(agentID string) (*kgo.Client, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(s.cfg.Brokers...),
		kgo.ConsumerGroup(s.cfg.ConsumerGroup),
		kgo.ConsumeTopics(s.cfg.Topic),
		kgo.ClientID(agentID),
	}
	if s.cfg.MaxReconnects > 0 {
		opts = append(opts, kgo.RetryBackoffFn(func(tries int) time.Duration {
			if tries > s.cfg.MaxReconnects {
				tries = s.cfg.MaxReconnects
			}
			return time.Duration(tries) * 100 * time.Millisecond
		}))
	}
	return kgo.NewClient(opts...)
}

// runWorker is the per-agent receive loop: poll, deserialize, process,
// publish the response to the reply topic, repeat. Deserialization and processing
// errors are counted, never fatal to the loop.
func (s *Supervisor) runWorker(ctx context.Context, client *kgo.Client, agentID string) {
	defer client.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fetches := client.PollFetches(ctx)
		if ctx.Err() != nil {
			return
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, e := range errs {
				s.log.Warn("agent: fetch error", obslog.String("agent_id", agentID), obslog.Err(e.Err))
			}
			continue
		}

		fetches.EachRecord(func(rec *kgo.Record) {
			s.handleRecord(ctx, client, agentID, rec)
		})
	}
}

func (s *Supervisor) handleRecord(ctx context.Context, client *kgo.Client, agentID string, rec *kgo.Record) {
	var req openrtb2.BidRequest
	if err := json.Unmarshal(rec.Value, &req); err != nil {
		s.metrics.AgentDeserializeErrors.Inc()
		s.log.Warn("agent: deserialize failed", obslog.String("agent_id", agentID), obslog.Err(err))
		return
	}

	if err := rtb.ValidateBidRequest(&req); err != nil {
		s.metrics.AgentProcessingErrors.Inc()
		s.log.Warn("agent: validation failed", obslog.String("agent_id", agentID), obslog.Err(err))
		return
	}

	resp, err := s.processor.Process(ctx, &req, agentID)
	if err != nil {
		s.metrics.AgentProcessingErrors.Inc()
		s.log.Warn("agent: processing failed", obslog.String("agent_id", agentID), obslog.Err(err))
		return
	}

	replyTopic := replyTopicFor(rec.Topic, s.cfg.ReplyTopicSuffix)
	payload, err := json.Marshal(resp)
	if err != nil {
		s.metrics.AgentProcessingErrors.Inc()
		return
	}
	client.Produce(ctx, &kgo.Record{Topic: replyTopic, Key: rec.Key, Value: payload}, func(_ *kgo.Record, err error) {
		if err != nil {
			s.log.Warn("agent: publish reply failed", obslog.String("agent_id", agentID), obslog.Err(err))
		}
	})
}

func replyTopicFor(topic, suffix string) string {
	if suffix == "" {
		return topic
	}
	return topic + suffix
}

// Wait blocks until every worker goroutine has returned, for graceful
// shutdown after ctx has been cancelled.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// AgentCount reports the number of workers this supervisor started.
func (s *Supervisor) AgentCount() int {
	return len(s.clients)
}
