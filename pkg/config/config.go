package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a configuration file. An empty path yields the
// defaults with environment overrides applied.
func Load(_ context.Context, path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnvironmentOverrides()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks a configuration for errors and fills in defaults for
// optional fields left empty.
func Validate(cfg *Config) error {
	if err := validateLogging(&cfg.Logging); err != nil {
		return fmt.Errorf("logging.%w", err)
	}

	if err := validateThreads(&cfg.Threads); err != nil {
		return fmt.Errorf("threads.%w", err)
	}

	if err := validateHCI(&cfg.HCI); err != nil {
		return fmt.Errorf("hci.%w", err)
	}

	if err := validateSerial(&cfg.Serial); err != nil {
		return fmt.Errorf("serial.%w", err)
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

func validateLogging(lc *LoggingConfig) error {
	if lc.Level == "" {
		lc.Level = DefaultLogLevel
	}
	lc.Level = strings.ToLower(lc.Level)
	switch lc.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("level: invalid value %q (must be debug, info, warn, or error)", lc.Level)
	}

	if lc.Format == "" {
		lc.Format = DefaultLogFormat
	}
	switch lc.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format: invalid value %q (must be text or json)", lc.Format)
	}

	return nil
}

func validateThreads(tc *ThreadsConfig) error {
	if tc.TypeThreshold < 0 {
		return fmt.Errorf("type_threshold: must be >= 0, got %d", tc.TypeThreshold)
	}
	if tc.TypeThreshold == 0 {
		tc.TypeThreshold = DefaultTypeThreshold
	}
	if tc.TypeDenylist == "" {
		tc.TypeDenylist = DefaultTypeDenylist
	}

	seen := make(map[string]bool, len(tc.Rules))
	for i := range tc.Rules {
		rule := &tc.Rules[i]
		if err := validateRule(rule); err != nil {
			return fmt.Errorf("rules[%d] (%s): %w", i, rule.Name, err)
		}
		if seen[rule.Name] {
			return fmt.Errorf("rules[%d]: duplicate rule name %q", i, rule.Name)
		}
		seen[rule.Name] = true
	}
	return nil
}

func validateRule(rule *RuleConfig) error {
	if rule.Name == "" {
		return errors.New("name is required")
	}

	switch rule.Type {
	case RuleTypePeriodic:
		if rule.MessageType == "" {
			return errors.New("periodic rule requires message_type")
		}
		if rule.MaxGap <= 0 && rule.MinOccurrences <= 0 {
			return errors.New("periodic rule requires max_gap or min_occurrences")
		}
		if rule.MaxGap < 0 || rule.MinOccurrences < 0 {
			return errors.New("max_gap and min_occurrences must not be negative")
		}
	case RuleTypeConditional:
		if rule.Trigger == "" || rule.Expected == "" {
			return errors.New("conditional rule requires trigger and expected")
		}
		if rule.Timeout <= 0 {
			return errors.New("conditional rule requires a positive timeout")
		}
	default:
		return fmt.Errorf("invalid type %q (must be periodic or conditional)", rule.Type)
	}
	return nil
}

func validateHCI(hc *HCIConfig) error {
	if hc.SkipChars < 0 {
		return fmt.Errorf("skip_chars: must be >= 0, got %d", hc.SkipChars)
	}

	switch hc.UnmappedPolicy {
	case "":
		hc.UnmappedPolicy = UnmappedSkip
	case UnmappedSkip, UnmappedAbort:
	default:
		return fmt.Errorf("unmapped_policy: invalid value %q (must be skip or abort)", hc.UnmappedPolicy)
	}

	return nil
}

func validateSerial(sc *SerialConfig) error {
	if sc.BaudRate < 0 {
		return fmt.Errorf("baud_rate: must be > 0, got %d", sc.BaudRate)
	}
	if sc.BaudRate == 0 {
		sc.BaudRate = DefaultBaudRate
	}
	if sc.Duration < 0 {
		return fmt.Errorf("duration: must be > 0, got %s", sc.Duration)
	}
	if sc.Duration == 0 {
		sc.Duration = DefaultSerialDuration
	}
	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	// Validate URL format
	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	// Expand environment variables in token
	wh.Token = expandEnvVar(wh.Token)

	switch wh.Trigger {
	case "":
		wh.Trigger = WebhookTriggerOnIssues
	case WebhookTriggerOnIssues, WebhookTriggerAlways, WebhookTriggerNever:
	default:
		return fmt.Errorf("invalid trigger %q (must be on_issues, always, or never)", wh.Trigger)
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	if wh.Retries < 0 || wh.Retries > MaxWebhookRetries {
		return fmt.Errorf("retries must be between 0 and %d, got %d", MaxWebhookRetries, wh.Retries)
	}

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}

	if strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${") {
		return os.Getenv(s[1:])
	}

	return s
}
