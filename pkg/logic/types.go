// Package logic rebuilds application messages from logic-analyzer exports.
//
// A logic analyzer decoding an SPI bus exports one CSV row per decoded frame.
// The MOSI column carries either a printable character or a control token
// ("NUL", "(SP)", "LF "). The reconstructor concatenates characters into
// line-feed terminated segments, keeps segments of the form "TYPE:payload"
// and discovers the set of message types present in the capture.
package logic

import (
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ccollicutt/tracekit/pkg/logging"
)

// Required CSV columns.
const (
	ColumnTime = "Time [s]"
	ColumnMOSI = "MOSI"
)

// MOSI control tokens.
const (
	TokenNUL      = "NUL"
	TokenSpace    = "(SP)"
	TokenLineFeed = "LF "
)

// Type discovery defaults.
const (
	// DefaultTypeThreshold is the number of distinct message types above which
	// the noise filter is applied.
	DefaultTypeThreshold = 20

	// DefaultTypeDenylist holds the characters that mark a type as noise once
	// the threshold is exceeded.
	DefaultTypeDenylist = "#!$%&*()=+-_[]{};:<>/\\?@`~ "
)

// ErrMissingColumn is returned when the CSV header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// Message is one reconstructed application message.
type Message struct {
	// Timestamp is the capture time of the first row of the segment, in seconds.
	Timestamp float64 `json:"timestamp"`

	// Content is the trimmed segment text, "TYPE:payload".
	Content string `json:"content"`
}

// Type returns the message type, the text before the first ':'.
func (m Message) Type() string {
	t, _, _ := strings.Cut(m.Content, ":")
	return t
}

// Options controls message validation and type discovery.
type Options struct {
	// TypeThreshold is the distinct-type count above which noisy types are
	// dropped. Zero or less means DefaultTypeThreshold.
	TypeThreshold int

	// TypeDenylist lists characters that make a type noisy.
	TypeDenylist string

	// Logger receives debug output about dropped segments. Nil disables logging.
	Logger logrus.FieldLogger
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		TypeThreshold: DefaultTypeThreshold,
		TypeDenylist:  DefaultTypeDenylist,
	}
}

// withDefaults fills unset fields from DefaultOptions.
func (o Options) withDefaults() Options {
	if o.TypeThreshold <= 0 {
		o.TypeThreshold = DefaultTypeThreshold
	}
	if o.TypeDenylist == "" {
		o.TypeDenylist = DefaultTypeDenylist
	}
	return o
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}

// Stats summarizes one reconstruction run.
type Stats struct {
	Rows       int  `json:"rows"`
	Segments   int  `json:"segments"`
	Candidates int  `json:"candidates"`
	Accepted   int  `json:"accepted"`
	Written    int  `json:"written"`
	RawTypes   int  `json:"raw_types"`
	Types      int  `json:"types"`
	Filtered   bool `json:"filtered"`
}

// Result is the outcome of a reconstruction.
type Result struct {
	// Messages are the messages that passed both validation passes, in capture order.
	Messages []Message `json:"messages"`

	// Allowlist is the final set of message types, sorted.
	Allowlist []string `json:"allowlist"`

	Stats Stats `json:"stats"`
}
