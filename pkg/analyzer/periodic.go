package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ccollicutt/tracekit/pkg/config"
	"github.com/ccollicutt/tracekit/pkg/logic"
)

// PeriodicEngine checks that one message type keeps arriving: no two
// consecutive occurrences more than MaxGap apart, and at least
// MinOccurrences of them in the capture.
type PeriodicEngine struct {
	rule config.RuleConfig

	mu      sync.Mutex
	seen    int
	lastAt  time.Duration
	lastMsg string
	gaps    []Issue
	stats   RuleStats
}

// NewPeriodicEngine creates a periodic engine from a rule config.
func NewPeriodicEngine(rule *config.RuleConfig) (*PeriodicEngine, error) {
	if rule.Type != config.RuleTypePeriodic {
		return nil, fmt.Errorf("rule %q is not a periodic rule", rule.Name)
	}
	if rule.MessageType == "" {
		return nil, fmt.Errorf("rule %q has no message type", rule.Name)
	}
	return &PeriodicEngine{rule: *rule}, nil
}

func (e *PeriodicEngine) Name() string          { return e.rule.Name }
func (e *PeriodicEngine) Type() config.RuleType { return config.RuleTypePeriodic }

// Process records an occurrence of the watched type, reporting the gap
// since the previous one when it is longer than MaxGap.
func (e *PeriodicEngine) Process(_ context.Context, msg logic.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.MessagesProcessed++
	if msg.Type() != e.rule.MessageType {
		return nil
	}
	e.stats.MessagesMatched++

	at := offset(msg.Timestamp)
	if gap := at - e.lastAt; e.seen > 0 && e.rule.MaxGap > 0 && gap > e.rule.MaxGap {
		e.gaps = append(e.gaps, Issue{
			Type: IssueTypeGapExceeded,
			Description: fmt.Sprintf("No %s message for %s after %s (max allowed: %s)",
				e.rule.MessageType, gap, e.lastAt, e.rule.MaxGap),
			Context: IssueContext{
				Message:     e.lastMsg,
				Start:       e.lastAt,
				End:         at,
				ActualGap:   gap,
				ExpectedGap: e.rule.MaxGap,
			},
		})
	}

	e.seen++
	e.lastAt, e.lastMsg = at, msg.Content
	return nil
}

// Finalize returns the gaps found plus, if too few occurrences were seen,
// a below-minimum issue.
func (e *PeriodicEngine) Finalize(_ context.Context) (*RuleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	issues := append([]Issue{}, e.gaps...)
	if want := e.rule.MinOccurrences; want > 0 && e.seen < want {
		issues = append(issues, Issue{
			Type: IssueTypeBelowMinOccurrences,
			Description: fmt.Sprintf("Only %d %s messages found (minimum required: %d)",
				e.seen, e.rule.MessageType, want),
			Context: IssueContext{Occurrences: e.seen, MinRequired: want},
		})
	}

	return &RuleResult{
		RuleName:    e.rule.Name,
		RuleType:    config.RuleTypePeriodic,
		Description: e.rule.Description,
		Issues:      issues,
		Stats:       e.stats,
	}, nil
}

// Reset clears internal state for reuse.
func (e *PeriodicEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seen, e.lastAt, e.lastMsg = 0, 0, ""
	e.gaps = nil
	e.stats = RuleStats{}
}
