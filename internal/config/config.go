// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads the engine's TOML configuration file, then applies
// RTB_-prefixed environment variable overrides on top, matching the
// defaults-plus-env-override pattern used elsewhere in this tree's sibling
// services.
package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration document for cmd/rtbd.
type Config struct {
	NodeID        string `toml:"node_id"`
	AgentsPerNode int    `toml:"agents_per_node"`

	HTTP    HTTPConfig    `toml:"http"`
	Queue   QueueConfig   `toml:"queue"`
	Redis   RedisConfig   `toml:"redis"`
	ClickHouse ClickHouseConfig `toml:"clickhouse"`
	Inference InferenceConfig `toml:"inference"`
	Metrics MetricsConfig `toml:"metrics"`
}

type HTTPConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type QueueConfig struct {
	Brokers         []string `toml:"brokers"`
	Topic           string   `toml:"topic"`
	ConsumerGroup   string   `toml:"consumer_group"`
	ReplyTopicSuffix string  `toml:"reply_topic_suffix"`
}

type RedisConfig struct {
	Addr            string `toml:"addr"`
	PoolSize        int    `toml:"pool_size"`
	TTLSeconds      int    `toml:"ttl_seconds"`
	ConnectTimeoutMS int   `toml:"connect_timeout_ms"`
}

type ClickHouseConfig struct {
	Addr            string `toml:"addr"`
	Database        string `toml:"database"`
	BatchSize       int    `toml:"batch_size"`
	FlushIntervalMS int    `toml:"flush_interval_ms"`
}

type InferenceConfig struct {
	Provider        string `toml:"provider"`
	ModelPath       string `toml:"model_path"`
	NumThreads      int    `toml:"num_threads"`
	MaxBatchSize    int    `toml:"max_batch_size"`
	MaxWaitUS       int64  `toml:"max_wait_us"`
	TimeoutMS       int    `toml:"timeout_ms"`
}

type MetricsConfig struct {
	Port int `toml:"port"`
}

// Default returns the configuration used when no file is present, matching
// the original platform's documented defaults.
func Default() Config {
	return Config{
		NodeID:        "node-01",
		AgentsPerNode: 20,
		HTTP:          HTTPConfig{Host: "0.0.0.0", Port: 8080},
		Queue: QueueConfig{
			Brokers:          []string{"localhost:9092"},
			Topic:            "campaign-bids",
			ConsumerGroup:    "bid-agents",
			ReplyTopicSuffix: ".replies",
		},
		Redis: RedisConfig{
			Addr:             "localhost:6379",
			PoolSize:         32,
			TTLSeconds:       3600,
			ConnectTimeoutMS: 5000,
		},
		ClickHouse: ClickHouseConfig{
			Addr:            "localhost:9000",
			Database:        "campaign_express",
			BatchSize:       10000,
			FlushIntervalMS: 1000,
		},
		Inference: InferenceConfig{
			Provider:     "cpu",
			ModelPath:    "/models/colanet.onnx",
			NumThreads:   4,
			MaxBatchSize: 64,
			MaxWaitUS:    500,
			TimeoutMS:    5,
		},
		Metrics: MetricsConfig{Port: 9091},
	}
}

// Load reads path if it exists, falling back to Default, then applies
// RTB_-prefixed environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, err
			}
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RTB_NODE_ID"); v != "" {
		cfg.NodeID = v
	}
	if v := os.Getenv("RTB_AGENTS_PER_NODE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AgentsPerNode = n
		}
	}
	if v := os.Getenv("RTB_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = n
		}
	}
	if v := os.Getenv("RTB_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RTB_CLICKHOUSE_ADDR"); v != "" {
		cfg.ClickHouse.Addr = v
	}
	if v := os.Getenv("RTB_QUEUE_BROKERS"); v != "" {
		cfg.Queue.Brokers = []string{v}
	}
	if v := os.Getenv("RTB_INFERENCE_PROVIDER"); v != "" {
		cfg.Inference.Provider = v
	}
}
