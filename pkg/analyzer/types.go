// Package analyzer checks reconstructed message streams for messages the
// device should have sent but did not: a heartbeat that went quiet, or a
// request that never got its reply.
package analyzer

import (
	"time"

	"github.com/ccollicutt/tracekit/pkg/config"
)

// IssueType categorizes detected issues.
type IssueType string

const (
	// IssueTypeGapExceeded indicates a periodic message went quiet for too long.
	IssueTypeGapExceeded IssueType = "gap_exceeded"

	// IssueTypeBelowMinOccurrences indicates fewer periodic messages than required.
	IssueTypeBelowMinOccurrences IssueType = "below_min_occurrences"

	// IssueTypeMissingConsequence indicates a trigger without its expected message.
	IssueTypeMissingConsequence IssueType = "missing_consequence"
)

// RuleResult contains findings from executing a single rule.
type RuleResult struct {
	RuleName    string          `json:"rule"`
	RuleType    config.RuleType `json:"type"`
	Description string          `json:"description,omitempty"`
	Issues      []Issue         `json:"issues"`
	Stats       RuleStats       `json:"stats"`
}

// RuleStats contains execution statistics for a rule.
type RuleStats struct {
	// MessagesProcessed is the number of messages examined.
	MessagesProcessed int `json:"messages_processed"`

	// MessagesMatched is the number of messages of a type the rule watches.
	MessagesMatched int `json:"messages_matched"`
}

// HasIssues returns true if any issues were detected.
func (r *RuleResult) HasIssues() bool {
	return len(r.Issues) > 0
}

// Issue represents a single detected problem.
type Issue struct {
	Type        IssueType    `json:"type"`
	Description string       `json:"description"`
	Context     IssueContext `json:"context"`
}

// IssueContext locates an issue in the capture. Times are offsets from the
// start of the capture.
type IssueContext struct {
	// Message is the content of the message the issue hangs off, if any.
	Message string `json:"message,omitempty"`

	// Payload is the correlated payload for payload-matched rules.
	Payload string `json:"payload,omitempty"`

	Start time.Duration `json:"start,omitempty"`
	End   time.Duration `json:"end,omitempty"`

	Timeout     time.Duration `json:"timeout,omitempty"`
	ActualGap   time.Duration `json:"actual_gap,omitempty"`
	ExpectedGap time.Duration `json:"expected_gap,omitempty"`
	Occurrences int           `json:"occurrences,omitempty"`
	MinRequired int           `json:"min_required,omitempty"`
}

// offset converts a capture timestamp in seconds to a duration.
func offset(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second)).Round(time.Microsecond)
}
