package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Database  DatabaseConfig
	Twitter   TwitterConfig
	Redis     RedisConfig
	Server    ServerConfig
	Feed      FeedConfig
	Session   SessionConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

// DatabaseConfig holds local store configuration
type DatabaseConfig struct {
	Driver string // "sqlite" or "postgres"
	DSN    string
}

// TwitterConfig holds remote feed API configuration
type TwitterConfig struct {
	URL      string
	PageSize int
	Timeout  time.Duration
}

// RedisConfig holds the optional shared avatar cache configuration
type RedisConfig struct {
	URL     string
	Enabled bool
	TTL     time.Duration
}

// ServerConfig holds the local presentation HTTP server configuration
type ServerConfig struct {
	Port int
	Host string
}

// FeedConfig holds sync engine configuration
type FeedConfig struct {
	CacheFirst     bool
	ProbeURL       string
	ProbeInterval  time.Duration
	MirrorMaxPages int
}

// SessionConfig holds stored session configuration
type SessionConfig struct {
	TokenFile string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string
	Format     string // "json" or "text"
	FlatFormat bool   // Enable flattened single-line JSON for log shippers
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled           bool
	JaegerURL         string
	PrometheusEnabled bool
	PrometheusPort    int
	ServiceName       string
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	// Load from environment
	viper.SetEnvPrefix("FEEDDROP")
	viper.AutomaticEnv()

	// Load from config file if exists
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.feeddrop")
	viper.AddConfigPath("/etc/feeddrop")

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found; this is OK if we have env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Driver: getString("database_driver", "sqlite"),
			DSN:    getString("database_dsn", defaultDSN()),
		},
		Twitter: TwitterConfig{
			URL:      getString("twitter_url", "https://api.twitter.com/1.1"),
			PageSize: getInt("page_size", 20),
			Timeout:  GetDuration("twitter_timeout", 15*time.Second),
		},
		Redis: RedisConfig{
			URL:     getString("redis_url", ""),
			Enabled: getString("redis_url", "") != "",
			TTL:     GetDuration("redis_ttl", 24*time.Hour),
		},
		Server: ServerConfig{
			Port: getInt("http_server_port", 8080),
			Host: getString("http_server_host", "127.0.0.1"),
		},
		Feed: FeedConfig{
			CacheFirst:     getBool("cache_first", true),
			ProbeURL:       getString("probe_url", "https://api.twitter.com/robots.txt"),
			ProbeInterval:  GetDuration("probe_interval", 10*time.Second),
			MirrorMaxPages: getInt("mirror_max_pages", 10),
		},
		Session: SessionConfig{
			TokenFile: getString("token_file", defaultTokenFile()),
		},
		Logging: LoggingConfig{
			Level:      getString("log_level", "INFO"),
			Format:     getString("log_format", "json"),
			FlatFormat: getBool("log_flat_format", false),
		},
		Telemetry: TelemetryConfig{
			Enabled:           getBool("telemetry_enabled", false),
			JaegerURL:         getString("jaeger_url", ""),
			PrometheusEnabled: getBool("prometheus_enabled", false),
			PrometheusPort:    getInt("prometheus_port", 9090),
			ServiceName:       getString("service_name", "feeddrop"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("database_driver", "sqlite")
	viper.SetDefault("database_dsn", defaultDSN())
	viper.SetDefault("twitter_url", "https://api.twitter.com/1.1")
	viper.SetDefault("page_size", 20)
	viper.SetDefault("http_server_port", 8080)
	viper.SetDefault("http_server_host", "127.0.0.1")
	viper.SetDefault("cache_first", true)
	viper.SetDefault("probe_interval", "10s")
	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("service_name", "feeddrop")
}

func defaultDSN() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "feeddrop.db"
	}
	return home + "/.feeddrop/feeddrop.db"
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "session.token"
	}
	return home + "/.feeddrop/session.token"
}

func getString(key, defaultValue string) string {
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	// Also check environment variable directly
	if val := os.Getenv("FEEDDROP_" + toEnvKey(key)); val != "" {
		return val
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	if val := os.Getenv("FEEDDROP_" + toEnvKey(key)); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	if val := os.Getenv("FEEDDROP_" + toEnvKey(key)); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultValue
}

func toEnvKey(key string) string {
	// Convert snake_case to UPPER_SNAKE_CASE
	result := ""
	for i, r := range key {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result += "_"
		}
		if r == '-' || r == '_' {
			result += "_"
		} else {
			result += string(r)
		}
	}
	return result
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("database_driver must be sqlite or postgres")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database_dsn is required")
	}
	if c.Twitter.URL == "" {
		return fmt.Errorf("twitter_url is required")
	}
	if c.Twitter.PageSize <= 0 || c.Twitter.PageSize > 200 {
		return fmt.Errorf("page_size must be between 1 and 200")
	}
	if c.Feed.ProbeInterval < time.Second {
		return fmt.Errorf("probe_interval must be at least 1s")
	}
	return nil
}

// GetDuration returns a duration from config key, with default
func GetDuration(key string, defaultValue time.Duration) time.Duration {
	if viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	return defaultValue
}
