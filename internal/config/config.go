// Package config defines service configuration and its loading.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// PublicURL is the externally visible base URL used in join links.
	PublicURL string `koanf:"public_url"`

	// QueueSize bounds each sequencer shard queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of sequencer shards and workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many retry nonces are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// SubscriberBuffer is the outbound frame buffer per connection.
	SubscriberBuffer int `koanf:"subscriber_buffer"`

	// StoreDriver selects the repository: memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`
	StoreDSN    string `koanf:"store_dsn"`

	// CacheDriver selects the score cache: none, memory or redis.
	CacheDriver string `koanf:"cache_driver"`
	RedisAddr   string `koanf:"redis_addr"`

	// KafkaBrokers enables the audit export when non-empty.
	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic"`

	// TokenSecret signs room tokens. When empty an ephemeral secret is
	// generated at startup and tokens do not survive a restart.
	TokenSecret string        `koanf:"token_secret"`
	TokenTTL    time.Duration `koanf:"token_ttl"`

	// MaxSessionDuration ends sessions left open longer. Zero disables it.
	MaxSessionDuration time.Duration `koanf:"max_session_duration"`
	ReaperSchedule     string        `koanf:"reaper_schedule"`
}

// CacheNone disables the score cache.
const CacheNone = "none"

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		PublicURL:          "http://localhost:9080",
		QueueSize:          10_000,
		WorkerCount:        runtime.NumCPU(),
		DedupeSize:         50_000,
		SubscriberBuffer:   256,
		StoreDriver:        "memory",
		CacheDriver:        "memory",
		RedisAddr:          "localhost:6379",
		KafkaTopic:         "vigil.events",
		TokenTTL:           4 * time.Hour,
		MaxSessionDuration: 3 * time.Hour,
		ReaperSchedule:     "@every 1m",
	}
}
