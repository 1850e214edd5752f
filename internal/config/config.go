// Package config loads and validates the retentiond configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	reterrors "git.home.luguber.info/inful/retentiond/internal/errors"
)

// Config represents the application configuration
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Events     EventsConfig     `yaml:"events"`
	Inventory  InventoryConfig  `yaml:"inventory,omitempty"`
	Retry      RetryConfig      `yaml:"retry,omitempty"`
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // memory|redis|sqlite
	Addr    string `yaml:"addr,omitempty"`
	DB      int    `yaml:"db,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// CheckpointConfig controls the periodic save pass and startup reconciliation.
type CheckpointConfig struct {
	Interval string `yaml:"interval,omitempty"` // Go duration string, e.g. "15m"
	// Reconcile toggles the startup cleanup scan. Must be disabled when
	// several scheduler instances share one store.
	Reconcile *bool `yaml:"reconcile,omitempty"`
}

// IntervalDuration returns the parsed checkpoint interval.
func (c CheckpointConfig) IntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// ReconcileEnabled reports whether the startup reconciliation pass runs.
// Defaults to enabled.
func (c CheckpointConfig) ReconcileEnabled() bool {
	return c.Reconcile == nil || *c.Reconcile
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Listen  string `yaml:"listen,omitempty"`
}

// EventsConfig controls the NATS pass-event publisher.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// InventoryConfig declares monitored-object identities for the one-shot
// CLI passes, standing in for a live scheduler's inventory.
type InventoryConfig struct {
	Hosts    []string     `yaml:"hosts,omitempty"`
	Services []ServiceRef `yaml:"services,omitempty"`
}

// ServiceRef names one service identity in the inventory.
type ServiceRef struct {
	Host        string `yaml:"host"`
	Description string `yaml:"description"`
}

// RetryConfig configures startup store-connection retries.
type RetryConfig struct {
	Backoff    string `yaml:"backoff,omitempty"` // fixed|linear|exponential
	Initial    string `yaml:"initial,omitempty"` // Go duration string
	Max        string `yaml:"max,omitempty"`     // Go duration string
	MaxRetries int    `yaml:"max_retries,omitempty"`
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists; existing process env wins.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Note: .env file couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Backend == "" {
		c.Store.Backend = "redis"
	}
	if c.Store.Addr == "" {
		c.Store.Addr = "localhost:6379"
	}
	if c.Store.Path == "" {
		c.Store.Path = "./retention.db"
	}
	if c.Checkpoint.Interval == "" {
		c.Checkpoint.Interval = "15m"
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9464"
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "retention.passes"
	}
	c.Logging.Level = string(NormalizeLogLevel(c.Logging.Level))
	c.Logging.Format = string(NormalizeLogFormat(c.Logging.Format))
}

// Validate checks cross-field consistency after defaults are applied.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "sqlite", "redis":
	default:
		return reterrors.ValidationError(fmt.Sprintf("store.backend must be one of memory, redis, sqlite; got %q", c.Store.Backend))
	}
	if _, err := time.ParseDuration(c.Checkpoint.Interval); err != nil {
		return reterrors.ValidationError(fmt.Sprintf("checkpoint.interval: %v", err))
	}
	if c.Events.Enabled && c.Events.URL == "" {
		return reterrors.ValidationError("events.url is required when events are enabled")
	}
	for i, svc := range c.Inventory.Services {
		if svc.Host == "" || svc.Description == "" {
			return reterrors.ValidationError(fmt.Sprintf("inventory.services[%d]: host and description are required", i))
		}
	}
	if c.Retry.Backoff != "" && NormalizeRetryBackoff(c.Retry.Backoff) == "" {
		return reterrors.ValidationError(fmt.Sprintf("retry.backoff must be fixed, linear, or exponential; got %q", c.Retry.Backoff))
	}
	return nil
}
