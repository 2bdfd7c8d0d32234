// Package config loads the service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreArango = "arango"
	StoreMemory = "memory"
)

// Config is the complete runtime configuration of the service.
type Config struct {
	Port            string `env:"MS_PORT" envDefault:"3000"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	StoreDriver     string `env:"STORE_DRIVER" envDefault:"arango"`
	SeedPath        string `env:"SEED_PATH"`
	JWTSecret       string `env:"JWT_SECRET" envDefault:"your-secret-key-change-this-in-production"`
	ConflictRetries uint64 `env:"WORKFLOW_CONFLICT_RETRIES" envDefault:"3"`

	Arango ArangoConfig `envPrefix:"ARANGO_"`
	Kafka  KafkaConfig  `envPrefix:"KAFKA_"`
}

// ArangoConfig holds the database connection settings.
type ArangoConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"8529"`
	User     string `env:"USER" envDefault:"root"`
	Pass     string `env:"PASS" envDefault:"mypassword"`
	URL      string `env:"URL"`
	Database string `env:"DATABASE" envDefault:"paycheck"`
	// MaxConnectWait bounds the backoff loop while the database comes up.
	// Zero retries forever.
	MaxConnectWait time.Duration `env:"MAX_CONNECT_WAIT" envDefault:"0s"`
}

// Endpoint returns the URL of the database server.
func (a ArangoConfig) Endpoint() string {
	if a.URL != "" {
		return a.URL
	}
	return "http://" + a.Host + ":" + a.Port
}

// KafkaConfig holds the event bus settings.
type KafkaConfig struct {
	Enabled       bool     `env:"ENABLED" envDefault:"false"`
	Brokers       []string `env:"BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	APIKey        string   `env:"API_KEY"`
	APISecret     string   `env:"API_SECRET"`
	EventsTopic   string   `env:"EVENTS_TOPIC" envDefault:"membership-events"`
	CommandsTopic string   `env:"COMMANDS_TOPIC" envDefault:"membership-commands"`
	GroupID       string   `env:"GROUP_ID" envDefault:"paycheck-membership-worker"`
}

// Load parses the environment into a Config and validates it.
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

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreArango, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	return nil
}
