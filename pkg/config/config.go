package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Connector configuration
	Connector ConnectorConfig `mapstructure:"connector"`

	// KnowledgeBase configuration
	KnowledgeBase KnowledgeBaseConfig `mapstructure:"knowledge_base"`

	// Retry configuration for (re)connecting to a smart connector
	Retry RetryConfig `mapstructure:"retry"`

	// Metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics"`

	// FakeConnector configuration
	FakeConnector FakeConnectorConfig `mapstructure:"fake_connector"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
	Color  bool   `mapstructure:"color"`
}

// ConnectorConfig holds the smart connector endpoint and transport settings
type ConnectorConfig struct {
	Endpoint       string               `mapstructure:"endpoint"`
	RequestTimeout int                  `mapstructure:"request_timeout"` // in seconds, 0 = unbounded
	HTTP2          bool                 `mapstructure:"http2"`
	CAPath         string               `mapstructure:"ca_path"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// RequestTimeoutDuration returns the request timeout as a duration.
func (c ConnectorConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// KnowledgeBaseConfig describes the knowledge base a command registers
type KnowledgeBaseConfig struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	Lease       int    `mapstructure:"lease"` // in seconds, 0 = no lease
	Reregister  bool   `mapstructure:"reregister"`
}

// RetryConfig holds the caller-side retry policy
type RetryConfig struct {
	Delay       time.Duration `mapstructure:"delay"`
	MaxAttempts int           `mapstructure:"max_attempts"` // 0 = retry forever
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Listen string `mapstructure:"listen"` // empty disables the /metrics endpoint
}

// FakeConnectorConfig holds configuration of the in-memory smart connector
type FakeConnectorConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Mode        string        `mapstructure:"mode"` // gin mode: debug, release, test
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	return config, nil
}

// Validate checks the settings every client command needs
func (c *Config) Validate() error {
	if c.Connector.Endpoint == "" {
		return fmt.Errorf("connector endpoint is required")
	}
	if c.Connector.RequestTimeout < 0 {
		return fmt.Errorf("request timeout cannot be negative")
	}
	if c.KnowledgeBase.Lease < 0 {
		return fmt.Errorf("lease cannot be negative")
	}
	if c.Retry.Delay <= 0 {
		return fmt.Errorf("retry delay must be positive")
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.color", true)

	// Connector defaults
	viper.SetDefault("connector.endpoint", "http://localhost:8280/rest")
	viper.SetDefault("connector.request_timeout", 30)
	viper.SetDefault("connector.http2", false)
	viper.SetDefault("connector.circuit_breaker.enabled", false)
	viper.SetDefault("connector.circuit_breaker.max_requests", 1)
	viper.SetDefault("connector.circuit_breaker.interval", 60)
	viper.SetDefault("connector.circuit_breaker.timeout", 30)
	viper.SetDefault("connector.circuit_breaker.ready_to_trip_ratio", 0.6)

	// Knowledge base defaults
	viper.SetDefault("knowledge_base.id", "http://example.org/kb1")
	viper.SetDefault("knowledge_base.name", "KB1")
	viper.SetDefault("knowledge_base.description", "An example KB1")
	viper.SetDefault("knowledge_base.lease", 0)
	viper.SetDefault("knowledge_base.reregister", false)

	// Retry defaults
	viper.SetDefault("retry.delay", 2*time.Second)
	viper.SetDefault("retry.max_attempts", 0)

	// Fake connector defaults
	viper.SetDefault("fake_connector.host", "localhost")
	viper.SetDefault("fake_connector.port", 8280)
	viper.SetDefault("fake_connector.mode", "release")
	viper.SetDefault("fake_connector.poll_timeout", 29*time.Second)
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	// Variables used by the knowledge engine examples
	if endpoint := os.Getenv("KE_URL"); endpoint != "" {
		config.Connector.Endpoint = endpoint
	}
	if id := os.Getenv("KB_ID"); id != "" {
		config.KnowledgeBase.ID = id
		if os.Getenv("KB_NAME") == "" {
			config.KnowledgeBase.Name = id[strings.LastIndex(id, "/")+1:]
		}
	}
	if name := os.Getenv("KB_NAME"); name != "" {
		config.KnowledgeBase.Name = name
	}

	if endpoint := os.Getenv("TKE_ENDPOINT"); endpoint != "" {
		config.Connector.Endpoint = endpoint
	}
	if level := os.Getenv("TKE_LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
	if listen := os.Getenv("TKE_METRICS_LISTEN"); listen != "" {
		config.Metrics.Listen = listen
	}
}
