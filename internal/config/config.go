package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Upstream      UpstreamConfig      `mapstructure:"upstream"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Monitor       MonitorConfig       `mapstructure:"monitor"`
	Subscriptions SubscriptionsConfig `mapstructure:"subscriptions"`
	Notify        NotifyConfig        `mapstructure:"notify"`
	Lookup        LookupConfig        `mapstructure:"lookup"`
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

type UpstreamConfig struct {
	URL              string `mapstructure:"url"`
	TimeoutSec       int    `mapstructure:"timeout_sec"`
	MinIntervalMs    int    `mapstructure:"min_interval_ms"`
	JitterMs         int    `mapstructure:"jitter_ms"`
	RatePerMinute    int    `mapstructure:"rate_per_minute"`
	RetryCount       int    `mapstructure:"retry_count"`
	RetryDelaySec    int    `mapstructure:"retry_delay_sec"`
	RetryMaxDelaySec int    `mapstructure:"retry_max_delay_sec"`
}

type CacheConfig struct {
	TTLSec int `mapstructure:"ttl_sec"`
}

type MonitorConfig struct {
	IntervalSec int `mapstructure:"interval_sec"`
}

type SubscriptionsConfig struct {
	File        string `mapstructure:"file"`
	MaxPerOwner int    `mapstructure:"max_per_owner"`
}

type NotifyConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Server      string `mapstructure:"server"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	Priority    string `mapstructure:"priority"`
	Tags        string `mapstructure:"tags"`
	Token       string `mapstructure:"token"`
}

type LookupConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	CacheDir     string `mapstructure:"cache_dir"`
	ItemTTLSec   int    `mapstructure:"item_ttl_sec"`
	OrdersTTLSec int    `mapstructure:"orders_ttl_sec"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

type LoggingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	Level     string `mapstructure:"level"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("upstream.url", "https://content.warframe.com/dynamic/worldState.php")
	v.SetDefault("upstream.timeout_sec", 30)
	v.SetDefault("upstream.min_interval_ms", 350)
	v.SetDefault("upstream.jitter_ms", 200)
	v.SetDefault("upstream.rate_per_minute", 60)
	v.SetDefault("upstream.retry_count", 5)
	v.SetDefault("upstream.retry_delay_sec", 5)
	v.SetDefault("upstream.retry_max_delay_sec", 60)
	v.SetDefault("cache.ttl_sec", 60)
	v.SetDefault("monitor.interval_sec", 300)
	v.SetDefault("subscriptions.file", "data/subscriptions.json")
	v.SetDefault("subscriptions.max_per_owner", 10)
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.server", "https://ntfy.sh")
	v.SetDefault("notify.topic_prefix", "fissures")
	v.SetDefault("notify.priority", "default")
	v.SetDefault("notify.tags", "bell")
	v.SetDefault("lookup.base_url", "https://api.warframe.market/v2")
	v.SetDefault("lookup.cache_dir", "cache")
	v.SetDefault("lookup.item_ttl_sec", 3600)
	v.SetDefault("lookup.orders_ttl_sec", 300)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.listen", "127.0.0.1:8787")
	v.SetDefault("logging.enabled", true)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")

	// Environment variable support
	v.SetEnvPrefix("WSWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Explicitly bind nested keys to env vars
	_ = v.BindEnv("notify.token", "WSWATCH_NOTIFY_TOKEN")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Upstream.URL == "" {
		return fmt.Errorf("upstream.url is required")
	}
	if c.Monitor.IntervalSec < 1 {
		return fmt.Errorf("monitor.interval_sec must be >= 1")
	}
	if c.Subscriptions.MaxPerOwner < 1 {
		return fmt.Errorf("subscriptions.max_per_owner must be >= 1")
	}
	if c.Upstream.RetryCount < 0 {
		return fmt.Errorf("upstream.retry_count must be >= 0")
	}
	if c.Notify.Enabled {
		validPriorities := map[string]bool{
			"min": true, "low": true, "default": true, "high": true, "urgent": true,
		}
		if !validPriorities[c.Notify.Priority] {
			return fmt.Errorf("invalid notify.priority: %s (valid: min, low, default, high, urgent)", c.Notify.Priority)
		}
	}
	return nil
}

// UpstreamTimeout returns the upstream request timeout as a duration.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSec) * time.Second
}

// CacheTTL returns the world-state cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSec) * time.Second
}

// MonitorInterval returns the poll cadence as a duration.
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Monitor.IntervalSec) * time.Second
}
