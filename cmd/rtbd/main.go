// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command rtbd runs one bidding node: an agent supervisor consuming bid
// requests off the shared queue topic, backed by the two-tier cache,
// inference batcher and analytics writer, plus a small operational HTTP
// surface for health and metrics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/campaignexpress/rtb/internal/config"
	"github.com/campaignexpress/rtb/internal/metrics"
	"github.com/campaignexpress/rtb/internal/obslog"
	"github.com/campaignexpress/rtb/pkg/agent"
	"github.com/campaignexpress/rtb/pkg/analytics"
	"github.com/campaignexpress/rtb/pkg/bidproc"
	"github.com/campaignexpress/rtb/pkg/cache"
	"github.com/campaignexpress/rtb/pkg/inference"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "rtbd",
		Short: "Real-time bidding engine node daemon",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the bidding node: agent supervisor, cache, analytics writer, health/metrics HTTP",
		RunE:  runServe,
	}
	serve.Flags().StringVar(&configPath, "config", "", "path to a TOML config file")
	root.AddCommand(serve)

	warmUp := &cobra.Command{
		Use:   "warm-up",
		Short: "Load the configured inference provider and exit, without serving traffic",
		RunE:  runWarmUp,
	}
	warmUp.Flags().StringVar(&configPath, "config", "", "path to a TOML config file")
	root.AddCommand(warmUp)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the node version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("rtbd v1")
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := obslog.Named("rtbd", "info")
	defer log.Sync()

	m := metrics.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := selectProvider(cfg.Inference.Provider)
	if err := provider.WarmUp(ctx); err != nil {
		return fmt.Errorf("warm up inference provider: %w", err)
	}
	batcher := inference.NewBatcher(provider, cfg.Inference.MaxWaitUS)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		PoolSize: cfg.Redis.PoolSize,
	})
	profileCache := cache.NewProfileCache(redisClient, time.Duration(cfg.Redis.TTLSeconds)*time.Second, 1_000_000, log, m)

	sink, err := analytics.NewClickHouseSink(cfg.ClickHouse.Addr, cfg.ClickHouse.Database)
	if err != nil {
		log.Warn("analytics: clickhouse unavailable, falling back to recording sink", obslog.Err(err))
	}
	var analyticsSink analytics.Sink
	if sink != nil {
		analyticsSink = sink
	} else {
		analyticsSink = analytics.NewRecordingSink()
	}
	writer := analytics.NewWriter(analyticsSink, cfg.ClickHouse.BatchSize, time.Duration(cfg.ClickHouse.FlushIntervalMS)*time.Millisecond, log, m)

	go writer.Run(ctx)
	stopL1 := profileCache.StartMaintenance(30 * time.Second)
	defer stopL1()

	processor := bidproc.New(batcher, profileCache, writer, cfg.NodeID, log, m)

	sup := agent.NewSupervisor(agent.Config{
		Brokers:          cfg.Queue.Brokers,
		Topic:            cfg.Queue.Topic,
		ConsumerGroup:    cfg.Queue.ConsumerGroup,
		ReplyTopicSuffix: cfg.Queue.ReplyTopicSuffix,
		NodeID:           cfg.NodeID,
		AgentsPerNode:    cfg.AgentsPerNode,
	}, processor, log, m)

	if err := sup.Start(ctx); err != nil {
		return fmt.Errorf("start agent supervisor: %w", err)
	}
	log.Info("rtbd: agent supervisor started", obslog.Int("agent_count", sup.AgentCount()))

	httpSrv := startHTTPServer(cfg, profileCache, writer, log)
	metricsSrv := startMetricsServer(cfg, m, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("rtbd: shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)

	cancel()
	sup.Wait()
	log.Info("rtbd: shutdown complete")
	return nil
}

// runWarmUp loads the configured inference provider and exits. It is
// idempotent and does not start the agent supervisor or serve traffic,
// letting an orchestrator pre-warm a node's hardware backend before
// rotating it into the consumer group.
func runWarmUp(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := obslog.Named("rtbd-warmup", "info")
	defer log.Sync()

	provider := selectProvider(cfg.Inference.Provider)
	if err := provider.WarmUp(context.Background()); err != nil {
		return fmt.Errorf("warm up inference provider: %w", err)
	}
	log.Info("rtbd: warm-up complete", obslog.String("provider", provider.ProviderName()))
	return nil
}

func selectProvider(name string) inference.Provider {
	switch name {
	case "npu":
		return inference.NewNPUBackend()
	case "inferentia2":
		return inference.NewInferentiaBackend(inference.Inferentia2)
	case "inferentia3":
		return inference.NewInferentiaBackend(inference.Inferentia3)
	case "groq":
		return inference.NewGroqBackend()
	case "arm":
		return inference.NewARMBackend()
	case "riscv":
		return inference.NewRISCVBackend()
	default:
		return inference.NewCPUBackend()
	}
}

func startHTTPServer(cfg config.Config, pc *cache.ProfileCache, w *analytics.Writer, log obslog.Logger) *http.Server {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(rw http.ResponseWriter, req *http.Request) {
		rw.WriteHeader(http.StatusOK)
		fmt.Fprintln(rw, "ok")
	}).Methods(http.MethodGet)

	r.HandleFunc("/status", func(rw http.ResponseWriter, req *http.Request) {
		snap := w.Snapshot()
		fmt.Fprintf(rw, "l1_size=%d analytics_queued=%d analytics_dropped=%d analytics_flushed=%d\n",
			pc.L1Size(), snap.Queued, snap.Dropped, snap.Flushed)
	}).Methods(http.MethodGet)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("rtbd: http server error", obslog.Err(err))
		}
	}()
	log.Info("rtbd: http server listening", obslog.String("addr", addr))
	return srv
}

// startMetricsServer runs the Prometheus exporter on its own port, matching
// the original platform's separate metrics listener.
func startMetricsServer(cfg config.Config, m *metrics.Metrics, log obslog.Logger) *http.Server {
	r := http.NewServeMux()
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.Metrics.Port)
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("rtbd: metrics server error", obslog.Err(err))
		}
	}()
	log.Info("rtbd: metrics server listening", obslog.String("addr", addr))
	return srv
}
