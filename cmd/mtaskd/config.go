package main

import (
	"os"
	"strconv"
	"strings"
)

// Config is the daemon configuration, loaded from defaults and MTASK_*
// environment variables.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// RedisAddr selects the Redis backend for the queue substrate,
	// admission buckets, and the dedup ledger. Empty means in-memory.
	RedisAddr     string
	RedisPassword string

	// PostgresDSN selects the PostgreSQL backend for the transaction
	// ledger. Empty means in-memory.
	PostgresDSN string

	LogLevel    string
	Concurrency int
	Queues      []string

	// Admission bucket parameters, applied uniformly per tenant.
	BucketCapacity   int
	BucketRefillRate int

	// ReportDir is where generated report documents are written.
	ReportDir string

	// SMTP relay for the send_email task.
	SMTPAddr string
	SMTPFrom string

	// Tenants is the static tenant directory served by the API, as
	// "id=name" pairs.
	Tenants map[string]string
}

// DefaultDaemonConfig returns built-in defaults.
func DefaultDaemonConfig() Config {
	return Config{
		Addr:        ":8080",
		LogLevel:    "info",
		Concurrency: 10,
		Queues:      []string{"default"},
		ReportDir:   "./reports",
		SMTPAddr:    "localhost:25",
		SMTPFrom:    "noreply@localhost",
	}
}

// FromEnv overlays MTASK_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("MTASK_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("MTASK_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("MTASK_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("MTASK_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("MTASK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MTASK_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Concurrency = n
		}
	}
	if v := os.Getenv("MTASK_QUEUES"); v != "" {
		parts := strings.Split(v, ",")
		cfg.Queues = nil
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.Queues = append(cfg.Queues, p)
			}
		}
	}
	if v := os.Getenv("MTASK_BUCKET_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BucketCapacity = n
		}
	}
	if v := os.Getenv("MTASK_BUCKET_REFILL_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BucketRefillRate = n
		}
	}
	if v := os.Getenv("MTASK_REPORT_DIR"); v != "" {
		cfg.ReportDir = v
	}
	if v := os.Getenv("MTASK_SMTP_ADDR"); v != "" {
		cfg.SMTPAddr = v
	}
	if v := os.Getenv("MTASK_SMTP_FROM"); v != "" {
		cfg.SMTPFrom = v
	}
	if v := os.Getenv("MTASK_TENANTS"); v != "" {
		cfg.Tenants = make(map[string]string)
		for _, pair := range strings.Split(v, ",") {
			id, name, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || id == "" {
				continue
			}
			cfg.Tenants[id] = name
		}
	}
}
