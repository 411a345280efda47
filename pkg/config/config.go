// Package config loads the gateway process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the configuration of a gateway process.
type Config struct {
	ServiceName string `env:"GATEWAY_SERVICE_NAME" envDefault:"commandgateway"`
	Environment string `env:"GATEWAY_ENVIRONMENT" envDefault:"dev"`
	LogLevel    string `env:"GATEWAY_LOG_LEVEL" envDefault:"info"`

	HandoffTimeout   time.Duration `env:"GATEWAY_HANDOFF_TIMEOUT" envDefault:"10s"`
	ReservedCommands []string      `env:"GATEWAY_RESERVED_COMMANDS" envSeparator:","`

	// QueueCapacity sizes the in-process receiver used when NATS is not configured.
	QueueCapacity int `env:"GATEWAY_QUEUE_CAPACITY" envDefault:"1024"`

	// DeadLetterDSN enables the dead-letter store when set.
	DeadLetterDSN string `env:"GATEWAY_DEADLETTER_DSN"`

	// TraceDSN stores finished spans in SQLite when set.
	TraceDSN        string  `env:"GATEWAY_TRACE_DSN"`
	TraceSampleRate float64 `env:"GATEWAY_TRACE_SAMPLE_RATE" envDefault:"1"`

	NATS NATS
}

// NATS configures the JetStream receiver. It is used when URL is set or
// Embedded is true.
type NATS struct {
	URL           string `env:"GATEWAY_NATS_URL"`
	Stream        string `env:"GATEWAY_NATS_STREAM" envDefault:"COMMANDS"`
	SubjectPrefix string `env:"GATEWAY_NATS_SUBJECT_PREFIX" envDefault:"commands"`
	Embedded      bool   `env:"GATEWAY_NATS_EMBEDDED"`

	// CredentialsFile is an encrypted credentials file opened with SecretKeeperURL.
	CredentialsFile string `env:"GATEWAY_NATS_CREDENTIALS_FILE"`
	SecretKeeperURL string `env:"GATEWAY_NATS_SECRET_KEEPER_URL"`
}

// Enabled reports whether commands are handed off through NATS.
func (n NATS) Enabled() bool {
	return n.URL != "" || n.Embedded
}

// Load parses the configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and combinations env tags cannot express.
func (c Config) Validate() error {
	if c.HandoffTimeout < 0 {
		return fmt.Errorf("GATEWAY_HANDOFF_TIMEOUT must not be negative")
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("GATEWAY_TRACE_SAMPLE_RATE must be between 0 and 1")
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("GATEWAY_QUEUE_CAPACITY must be positive")
	}
	if (c.NATS.CredentialsFile == "") != (c.NATS.SecretKeeperURL == "") {
		return fmt.Errorf("GATEWAY_NATS_CREDENTIALS_FILE and GATEWAY_NATS_SECRET_KEEPER_URL must be set together")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid GATEWAY_LOG_LEVEL '%s': %w", c.LogLevel, err)
	}
	return level, nil
}
