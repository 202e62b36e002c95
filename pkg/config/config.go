package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coapkit/coap-go/pkg/reliability"
)

// Config errors.
var (
	ErrInvalidAckTimeout      = errors.New("ack timeout must be positive")
	ErrInvalidAckRandomFactor = errors.New("ack random factor must be at least 1.0")
	ErrInvalidMaxRetransmit   = errors.New("max retransmit must be positive")
	ErrInvalidLogLevel        = errors.New("unknown log level")
)

// Config is the on-disk client configuration.
type Config struct {
	// ListenAddress is the local bind address, e.g. ":0" or
	// "192.0.2.1:5683".
	ListenAddress string `yaml:"listen_address"`

	// RequestTimeout bounds requests without a context deadline.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Transmission holds the confirmable retransmission parameters.
	Transmission Transmission `yaml:"transmission"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// CaptureFile is an optional path for the binary protocol event
	// capture. Empty disables capture.
	CaptureFile string `yaml:"capture_file"`

	// Interface restricts discovery to one network interface by name.
	Interface string `yaml:"interface"`
}

// Transmission mirrors the RFC 7252 transmission parameters.
type Transmission struct {
	AckTimeout      time.Duration `yaml:"ack_timeout"`
	AckRandomFactor float64       `yaml:"ack_random_factor"`
	MaxRetransmit   int           `yaml:"max_retransmit"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		ListenAddress:  ":0",
		RequestTimeout: 30 * time.Second,
		Transmission: Transmission{
			AckTimeout:      reliability.AckTimeout,
			AckRandomFactor: reliability.AckRandomFactor,
			MaxRetransmit:   reliability.MaxRetransmit,
		},
		LogLevel: "info",
	}
}

// Load reads a YAML configuration file, filling unset fields with
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Transmission.AckTimeout <= 0 {
		return ErrInvalidAckTimeout
	}
	if c.Transmission.AckRandomFactor < 1 {
		return ErrInvalidAckRandomFactor
	}
	if c.Transmission.MaxRetransmit <= 0 {
		return ErrInvalidMaxRetransmit
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Backoff converts the transmission parameters for the reliability
// layer.
func (c *Config) Backoff() reliability.BackoffConfig {
	return reliability.BackoffConfig{
		AckTimeout:      c.Transmission.AckTimeout,
		AckRandomFactor: c.Transmission.AckRandomFactor,
		MaxRetransmit:   c.Transmission.MaxRetransmit,
	}
}

// SlogLevel maps the configured log level to its slog value.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
}
