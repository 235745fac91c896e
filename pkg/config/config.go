// Package config loads the server configuration from a YAML file, a .env file
// and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// StorageConfig selects the authoritative store.
type StorageConfig struct {
	Driver      string `yaml:"driver"` // memory | postgres
	PostgresURL string `yaml:"postgres_url"`
}

// BackupConfig selects the backup mirror.
type BackupConfig struct {
	Driver     string        `yaml:"driver"` // none | redis
	RedisAddr  string        `yaml:"redis_addr"`
	ListKey    string        `yaml:"list_key"`
	MaxEntries int64         `yaml:"max_entries"`
	Timeout    time.Duration `yaml:"timeout"`
}

// QueueConfig tunes the submission queue.
type QueueConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	MaxStorageRetries int           `yaml:"max_storage_retries"`
	BackoffBase       time.Duration `yaml:"backoff_base"`
	InterItemDelay    time.Duration `yaml:"inter_item_delay"`
	HistoryLimit      int           `yaml:"history_limit"`
	DurationWindow    int           `yaml:"duration_window"`
	HealthyThreshold  int           `yaml:"healthy_threshold"`
	RetryOrder        string        `yaml:"retry_order"` // in_place | tail
}

// MaintenanceConfig holds cron specs for periodic jobs. An empty spec disables the job.
type MaintenanceConfig struct {
	MetricsSpec      string `yaml:"metrics_spec"`
	HistoryClearSpec string `yaml:"history_clear_spec"`
}

// TracingConfig controls OTLP export.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// RateLimitConfig controls the per-client submission limit. It shares the backup Redis address.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	Rate    float64 `yaml:"rate"`
	Burst   int     `yaml:"burst"`
	// TrustProxy keys clients by X-Forwarded-For instead of the peer address.
	TrustProxy bool `yaml:"trust_proxy"`
}

// Config holds the application configuration.
type Config struct {
	ListenAddr      string            `yaml:"listen_addr"`
	MetricsAddr     string            `yaml:"metrics_addr"`
	APIKey          string            `yaml:"api_key"`
	LogLevel        string            `yaml:"log_level"`
	LogFormat       string            `yaml:"log_format"`
	ShutdownTimeout time.Duration     `yaml:"shutdown_timeout"`
	Storage         StorageConfig     `yaml:"storage"`
	Backup          BackupConfig      `yaml:"backup"`
	Queue           QueueConfig       `yaml:"queue"`
	Maintenance     MaintenanceConfig `yaml:"maintenance"`
	Tracing         TracingConfig     `yaml:"tracing"`
	RateLimit       RateLimitConfig   `yaml:"ratelimit"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		ListenAddr:      ":8081",
		MetricsAddr:     ":8080",
		LogLevel:        "info",
		LogFormat:       "console",
		ShutdownTimeout: 30 * time.Second,
		Storage: StorageConfig{
			Driver: "memory",
		},
		Backup: BackupConfig{
			Driver:     "none",
			ListKey:    "reports:mirror",
			MaxEntries: 1000,
			Timeout:    10 * time.Second,
		},
		Queue: QueueConfig{
			MaxAttempts:       3,
			MaxStorageRetries: 5,
			BackoffBase:       50 * time.Millisecond,
			InterItemDelay:    100 * time.Millisecond,
			HistoryLimit:      1000,
			DurationWindow:    100,
			HealthyThreshold:  50,
			RetryOrder:        "in_place",
		},
		Maintenance: MaintenanceConfig{
			MetricsSpec: "@every 5s",
		},
		Tracing: TracingConfig{
			Endpoint: "localhost:4318",
		},
		RateLimit: RateLimitConfig{
			Rate:  5,
			Burst: 10,
		},
	}
}

// Load loads the configuration from a YAML file and environment variables.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(c *Config) {
	lookupString("LISTEN_ADDR", &c.ListenAddr)
	lookupString("METRICS_ADDR", &c.MetricsAddr)
	lookupString("API_KEY", &c.APIKey)
	lookupString("LOG_LEVEL", &c.LogLevel)
	lookupString("LOG_FORMAT", &c.LogFormat)
	lookupString("STORAGE_DRIVER", &c.Storage.Driver)
	lookupString("POSTGRES_URL", &c.Storage.PostgresURL)
	lookupString("BACKUP_DRIVER", &c.Backup.Driver)
	lookupString("REDIS_ADDR", &c.Backup.RedisAddr)
	lookupString("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	lookupBool("TRACING_ENABLED", &c.Tracing.Enabled)
	lookupBool("RATE_LIMIT_ENABLED", &c.RateLimit.Enabled)
	lookupBool("RATE_LIMIT_TRUST_PROXY", &c.RateLimit.TrustProxy)

	if v, ok := os.LookupEnv("SHUTDOWN_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			c.ShutdownTimeout = d
		}
	}
	if v, ok := os.LookupEnv("QUEUE_MAX_ATTEMPTS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Queue.MaxAttempts = n
		}
	}
}

func lookupString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func lookupBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return errors.New("storage.postgres_url (POSTGRES_URL) is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Backup.Driver {
	case "", "none":
	case "redis":
		if c.Backup.RedisAddr == "" {
			return errors.New("backup.redis_addr (REDIS_ADDR) is required for the redis backup driver")
		}
	default:
		return fmt.Errorf("unknown backup driver %q", c.Backup.Driver)
	}

	if c.RateLimit.Enabled {
		if c.Backup.RedisAddr == "" {
			return errors.New("ratelimit requires backup.redis_addr (REDIS_ADDR)")
		}
		if c.RateLimit.Rate <= 0 || c.RateLimit.Burst <= 0 {
			return errors.New("ratelimit.rate and ratelimit.burst must be positive")
		}
	}

	q := c.Queue
	if q.MaxAttempts < 0 {
		return errors.New("queue.max_attempts must not be negative")
	}
	if q.MaxStorageRetries <= 0 || q.HistoryLimit <= 0 || q.DurationWindow <= 0 || q.HealthyThreshold <= 0 {
		return errors.New("queue.max_storage_retries, history_limit, duration_window and healthy_threshold must be positive")
	}
	if q.BackoffBase < 0 || q.InterItemDelay < 0 {
		return errors.New("queue durations must not be negative")
	}
	if q.RetryOrder != "" && q.RetryOrder != "in_place" && q.RetryOrder != "tail" {
		return fmt.Errorf("unknown queue.retry_order %q", q.RetryOrder)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be positive")
	}
	return nil
}
