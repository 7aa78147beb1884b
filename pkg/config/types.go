// Package config provides configuration loading and validation for tracekit.
package config

import "time"

// Config is the root configuration structure loaded from YAML.
type Config struct {
	Logging  LoggingConfig   `yaml:"logging"`
	Threads  ThreadsConfig   `yaml:"threads"`
	HCI      HCIConfig       `yaml:"hci"`
	Serial   SerialConfig    `yaml:"serial"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

// LoggingConfig controls diagnostic output on stderr.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// ThreadsConfig tunes message reconstruction from logic-analyzer exports.
type ThreadsConfig struct {
	// TypeThreshold is the number of distinct message types above which
	// noisy types are filtered out.
	TypeThreshold int `yaml:"type_threshold"`

	// TypeDenylist lists the characters that mark a message type as noise.
	TypeDenylist string `yaml:"type_denylist"`

	// Rules describe messages the device is expected to send. They are
	// checked against every reconstructed capture.
	Rules []RuleConfig `yaml:"rules,omitempty"`
}

// RuleType enumerates message rule kinds.
type RuleType string

const (
	// RuleTypePeriodic expects a message type to recur within MaxGap.
	RuleTypePeriodic RuleType = "periodic"
	// RuleTypeConditional expects every Trigger message to be followed by
	// an Expected message within Timeout.
	RuleTypeConditional RuleType = "conditional"
)

// RuleConfig defines one expectation on a reconstructed message stream.
type RuleConfig struct {
	// Name identifies the rule in reports (required, unique).
	Name string `yaml:"name"`

	// Type is periodic or conditional.
	Type RuleType `yaml:"type"`

	Description string `yaml:"description,omitempty"`

	// MessageType is the periodic message type, such as "TEMP".
	MessageType string `yaml:"message_type,omitempty"`

	// MaxGap is the longest allowed silence between periodic messages.
	MaxGap time.Duration `yaml:"max_gap,omitempty"`

	// MinOccurrences is the fewest periodic messages a capture may hold.
	MinOccurrences int `yaml:"min_occurrences,omitempty"`

	// Trigger and Expected are the conditional message types.
	Trigger  string `yaml:"trigger,omitempty"`
	Expected string `yaml:"expected,omitempty"`

	// Timeout bounds the delay between a trigger and its expected message.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// MatchPayload pairs a trigger only with an expected message carrying
	// the same payload, such as REQ:42 and ACK:42.
	MatchPayload bool `yaml:"match_payload,omitempty"`
}

// UnmappedPolicy names what the transcoder does with HCI packets whose type
// and direction have no btsnoop flags.
type UnmappedPolicy string

const (
	UnmappedSkip  UnmappedPolicy = "skip"
	UnmappedAbort UnmappedPolicy = "abort"
)

// HCIConfig tunes HCI trace transcoding.
type HCIConfig struct {
	// SkipChars drops this many leading characters from every trace line.
	SkipChars int `yaml:"skip_chars"`

	// BluetrumTimestamps strips the "(HH:MM:SS.mmm)" prefix some vendor
	// consoles add to every line.
	BluetrumTimestamps bool `yaml:"bluetrum_timestamps"`

	// UnmappedPolicy is skip (default) or abort.
	UnmappedPolicy UnmappedPolicy `yaml:"unmapped_policy"`
}

// SerialConfig configures console capture from a UART.
type SerialConfig struct {
	Port     string        `yaml:"port"`
	BaudRate int           `yaml:"baud_rate"`
	Duration time.Duration `yaml:"duration"`
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnIssues fires only when a decode reports issues (default).
	WebhookTriggerOnIssues WebhookTrigger = "on_issues"
	// WebhookTriggerAlways fires after every decode.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending decode reports.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_issues" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Retries is how many more times delivery is attempted after a
	// connection error or a 429/5xx answer. Zero sends once.
	Retries int `yaml:"retries,omitempty"`
}
