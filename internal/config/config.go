// Package config loads and validates keyfs configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration is the complete keyfs configuration. Every field is
// immutable after construction; operations never mutate shared config.
type Configuration struct {
	Credentials CredentialsConfig `yaml:"credentials"`
	S3          S3Config          `yaml:"s3"`
	Retry       RetryConfig       `yaml:"retry"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// CredentialsConfig holds static access credentials. All fields are
// optional; when omitted the ambient credential chain is used.
type CredentialsConfig struct {
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

// S3Config holds endpoint settings.
type S3Config struct {
	// Endpoint, if set, is always used and bypasses region discovery.
	// A bare hostname is accepted and normalized to https://.
	Endpoint string `yaml:"endpoint"`

	// Region is the region name matching Endpoint. Only used when
	// Endpoint is set.
	Region string `yaml:"region"`
}

// RetryConfig tunes the retry policy applied to every service call.
type RetryConfig struct {
	Backoff    Duration `yaml:"backoff"`
	Multiplier float64  `yaml:"multiplier"`
	MaxTries   int      `yaml:"max_tries"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "20s"
// as well as integer nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := unmarshal(&n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// NewDefault returns the default configuration. The retry defaults accept
// roughly a day of service-side throttling before giving up.
func NewDefault() *Configuration {
	return &Configuration{
		Retry: RetryConfig{
			Backoff:    Duration(20 * time.Second),
			Multiplier: 1.5,
			MaxTries:   20,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "keyfs",
		},
	}
}

// Load reads a YAML configuration file, applying defaults for anything the
// file leaves unset.
func Load(path string) (*Configuration, error) {
	cfg := NewDefault()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Configuration) Validate() error {
	if c.Retry.MaxTries <= 0 {
		return fmt.Errorf("retry.max_tries must be greater than 0")
	}
	if c.Retry.Multiplier < 1.0 {
		return fmt.Errorf("retry.multiplier must be at least 1.0")
	}
	if c.Retry.Backoff <= 0 {
		return fmt.Errorf("retry.backoff must be positive")
	}
	if c.S3.Region != "" && c.S3.Endpoint == "" {
		return fmt.Errorf("s3.region is only meaningful together with s3.endpoint")
	}
	if c.Credentials.AccessKeyID == "" && c.Credentials.SecretAccessKey != "" {
		return fmt.Errorf("credentials.secret_access_key requires credentials.access_key_id")
	}
	switch c.Logging.Level {
	case "", "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}
	return nil
}
