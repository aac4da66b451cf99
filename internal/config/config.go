// Package config defines the matscan configuration surface: document store
// connection, processing pool sizing, and the rescan/fingerprint scheduling
// policies. The core receives these as already-parsed values; loading from
// YAML lives here so the CLI stays thin.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Puyodead1/matscan/internal/logging"
)

// Config represents the complete matscan configuration.
type Config struct {
	// Database configuration
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Processing configuration
	Processing ProcessingConfig `yaml:"processing" json:"processing"`

	// Rescan selection policy
	Rescan RescanConfig `yaml:"rescan" json:"rescan"`

	// Fingerprint candidate selection policy
	Fingerprint FingerprintConfig `yaml:"fingerprint" json:"fingerprint"`

	// Webhook notification settings
	Webhook WebhookConfig `yaml:"webhook" json:"webhook"`

	// Metrics exposition settings
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging logging.Config `yaml:"logging" json:"logging"`
}

// DatabaseConfig holds document store connection settings.
type DatabaseConfig struct {
	// Connection URI (mongodb://...)
	URI string `yaml:"uri" json:"uri" validate:"required"`

	// Database name
	Database string `yaml:"database" json:"database" validate:"required"`

	// Collection holding server records
	ServersCollection string `yaml:"servers_collection" json:"servers_collection" validate:"required"`

	// Collection holding blocklisted addresses
	BadIPsCollection string `yaml:"bad_ips_collection" json:"bad_ips_collection" validate:"required"`

	// Connection timeout
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// ProcessingConfig holds settings for the probe-response processing pool.
type ProcessingConfig struct {
	// Number of concurrent processing workers
	Workers int `yaml:"workers" json:"workers" validate:"gt=0"`

	// Size of the probe queue feeding the workers
	QueueSize int `yaml:"queue_size" json:"queue_size" validate:"gt=0"`

	// Batched writes flush when this many updates accumulate
	BatchSize int `yaml:"batch_size" json:"batch_size" validate:"gt=0"`

	// Batched writes also flush at this age regardless of size
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval" validate:"gt=0"`
}

// RescanConfig holds the re-probing selection policy.
type RescanConfig struct {
	// Minimum time between probes of the same server
	Interval time.Duration `yaml:"interval" json:"interval" validate:"gt=0"`

	// Servers unseen for longer than this are no longer rescanned
	MaxStaleness time.Duration `yaml:"max_staleness" json:"max_staleness" validate:"gt=0"`

	// Optional: only rescan servers that had players within this window
	ActivityWindow time.Duration `yaml:"activity_window" json:"activity_window"`

	// Optional cap on the number of selected targets
	Limit int `yaml:"limit" json:"limit" validate:"gte=0"`

	// Sort mode: "oldest" (most overdue first) or "random"
	Sort string `yaml:"sort" json:"sort" validate:"oneof=oldest random"`

	// Extra filter constraints merged verbatim into the selection query
	ExtraFilter map[string]interface{} `yaml:"extra_filter" json:"extra_filter"`

	// Cron expression for the selection pass in daemon mode
	Cron string `yaml:"cron" json:"cron"`
}

// FingerprintConfig holds the fingerprint candidate selection policy.
type FingerprintConfig struct {
	// Servers must have been seen within this window to be candidates
	OnlineWindow time.Duration `yaml:"online_window" json:"online_window" validate:"gt=0"`

	// Minimum time between fingerprint passes for the same server
	Cooldown time.Duration `yaml:"cooldown" json:"cooldown" validate:"gt=0"`

	// Cron expression for the selection pass in daemon mode
	Cron string `yaml:"cron" json:"cron"`
}

// WebhookConfig holds operator notification settings.
type WebhookConfig struct {
	// Destination URL; empty disables notifications
	URL string `yaml:"url" json:"url" validate:"omitempty,url"`

	// Delivery timeout per notification
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	// Listen address for the /metrics endpoint; empty disables it
	Listen string `yaml:"listen" json:"listen"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			URI:               "mongodb://localhost:27017",
			Database:          "matscan",
			ServersCollection: "servers",
			BadIPsCollection:  "badips",
			ConnectTimeout:    10 * time.Second,
		},
		Processing: ProcessingConfig{
			Workers:       16,
			QueueSize:     4096,
			BatchSize:     500,
			FlushInterval: 10 * time.Second,
		},
		Rescan: RescanConfig{
			Interval:     30 * time.Minute,
			MaxStaleness: 30 * 24 * time.Hour,
			Limit:        0,
			Sort:         "oldest",
			Cron:         "*/15 * * * *",
		},
		Fingerprint: FingerprintConfig{
			OnlineWindow: 2 * time.Hour,
			Cooldown:     7 * 24 * time.Hour,
			Cron:         "0 3 * * *",
		},
		Webhook: WebhookConfig{
			Timeout: 10 * time.Second,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a YAML file, applying defaults for any
// fields the file omits. A missing file returns the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	// Cross-field checks the struct tags can't express.
	if c.Rescan.MaxStaleness <= c.Rescan.Interval {
		return fmt.Errorf("rescan max_staleness (%v) must exceed the rescan interval (%v)",
			c.Rescan.MaxStaleness, c.Rescan.Interval)
	}
	if c.Rescan.ActivityWindow < 0 {
		return fmt.Errorf("rescan activity_window must not be negative")
	}

	return nil
}
