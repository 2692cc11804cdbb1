package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration so main stays lean.
type Config struct {
	Addr string

	// StoreBackend selects the remote store implementation:
	// "memory", "postgres" or "supabase".
	StoreBackend string
	PostgresURL  string
	SupabaseURL  string
	SupabaseKey  string

	RedisURL string

	KafkaBrokers []string
	AuditTopic   string

	VerifierURL string
	VerifierKey string

	// ProbeTimeout bounds the initial try-live phase before a subscription
	// falls back to the seed dataset.
	ProbeTimeout time.Duration
	// RetryUnit is the linear backoff unit for multi-step registration flows.
	RetryUnit time.Duration
	// PollInterval paces the Supabase change feed.
	PollInterval time.Duration
}

// FromEnv builds a Config from environment variables with dev defaults.
func FromEnv() Config {
	cfg := Config{
		Addr:         envOr("AJIRA_ADDR", ":8080"),
		StoreBackend: envOr("AJIRA_STORE", "memory"),
		PostgresURL:  os.Getenv("AJIRA_POSTGRES_URL"),
		SupabaseURL:  os.Getenv("SUPABASE_URL"),
		SupabaseKey:  os.Getenv("SUPABASE_KEY"),
		RedisURL:     os.Getenv("AJIRA_REDIS_URL"),
		AuditTopic:   envOr("AJIRA_AUDIT_TOPIC", "ajira.audit"),
		VerifierURL:  os.Getenv("AJIRA_VERIFIER_URL"),
		VerifierKey:  os.Getenv("AJIRA_VERIFIER_KEY"),
		ProbeTimeout: envDuration("AJIRA_PROBE_TIMEOUT", 2*time.Second),
		RetryUnit:    envDuration("AJIRA_RETRY_UNIT", time.Second),
		PollInterval: envDuration("AJIRA_POLL_INTERVAL", 3*time.Second),
	}
	if brokers := os.Getenv("AJIRA_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
