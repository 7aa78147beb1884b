package config

import (
	"os"
	"time"
)

// Default values for configuration.
const (
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultTypeThreshold  = 20
	DefaultTypeDenylist   = "#!$%&*()=+-_[]{};:<>/\\?@`~ "
	DefaultBaudRate       = 115200
	DefaultSerialDuration = 30 * time.Second
	DefaultWebhookTimeout = 10 * time.Second

	// MaxWebhookRetries bounds webhooks[].retries.
	MaxWebhookRetries = 5
)

// Environment variable names.
const (
	EnvLogLevel       = "TRACEKIT_LOG_LEVEL"
	EnvLogFormat      = "TRACEKIT_LOG_FORMAT"
	EnvSerialPort     = "TRACEKIT_SERIAL_PORT"
	EnvUnmappedPolicy = "TRACEKIT_HCI_UNMAPPED_POLICY"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Threads: ThreadsConfig{
			TypeThreshold: DefaultTypeThreshold,
			TypeDenylist:  DefaultTypeDenylist,
		},
		HCI: HCIConfig{
			UnmappedPolicy: UnmappedSkip,
		},
		Serial: SerialConfig{
			BaudRate: DefaultBaudRate,
			Duration: DefaultSerialDuration,
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() {
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv(EnvLogFormat); format != "" {
		c.Logging.Format = format
	}
	if port := os.Getenv(EnvSerialPort); port != "" {
		c.Serial.Port = port
	}
	if policy := os.Getenv(EnvUnmappedPolicy); policy != "" {
		c.HCI.UnmappedPolicy = UnmappedPolicy(policy)
	}
}
