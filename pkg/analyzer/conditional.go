package analyzer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ccollicutt/tracekit/pkg/config"
	"github.com/ccollicutt/tracekit/pkg/logic"
)

// triggerEvent tracks a trigger awaiting its expected message.
type triggerEvent struct {
	payload string // empty unless payloads are matched
	at      time.Duration
	content string
}

// ConditionalEngine reports trigger messages that were not followed by an
// expected message within the timeout.
type ConditionalEngine struct {
	name         string
	description  string
	trigger      string
	expected     string
	timeout      time.Duration
	matchPayload bool

	mu       sync.Mutex
	triggers []triggerEvent // awaiting their expected message
	stats    RuleStats
}

// NewConditionalEngine creates a conditional engine from a rule config.
func NewConditionalEngine(rule *config.RuleConfig) (*ConditionalEngine, error) {
	if rule.Type != config.RuleTypeConditional {
		return nil, fmt.Errorf("rule %q is not a conditional rule", rule.Name)
	}
	if rule.Trigger == "" || rule.Expected == "" {
		return nil, fmt.Errorf("rule %q needs trigger and expected message types", rule.Name)
	}

	return &ConditionalEngine{
		name:         rule.Name,
		description:  rule.Description,
		trigger:      rule.Trigger,
		expected:     rule.Expected,
		timeout:      rule.Timeout,
		matchPayload: rule.MatchPayload,
		triggers:     make([]triggerEvent, 0),
	}, nil
}

// Name returns the rule name.
func (e *ConditionalEngine) Name() string {
	return e.name
}

// Type returns the rule type.
func (e *ConditionalEngine) Type() config.RuleType {
	return config.RuleTypeConditional
}

// Process handles a single message.
func (e *ConditionalEngine) Process(_ context.Context, msg logic.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.MessagesProcessed++

	msgType := msg.Type()
	if msgType != e.trigger && msgType != e.expected {
		return nil
	}
	e.stats.MessagesMatched++

	var payload string
	if e.matchPayload {
		_, payload, _ = strings.Cut(msg.Content, ":")
	}
	at := offset(msg.Timestamp)

	// An expected message answers earlier triggers only.
	if msgType == e.expected {
		e.removeSatisfiedTriggers(payload, at)
	}
	if msgType == e.trigger {
		e.triggers = append(e.triggers, triggerEvent{
			payload: payload,
			at:      at,
			content: msg.Content,
		})
	}

	return nil
}

// removeSatisfiedTriggers drops the triggers answered by an expected message
// at the given time. Without payload matching only the oldest pending trigger
// within the timeout is answered.
func (e *ConditionalEngine) removeSatisfiedTriggers(payload string, at time.Duration) {
	kept := make([]triggerEvent, 0, len(e.triggers))

	for i, trigger := range e.triggers {
		satisfied := at-trigger.at <= e.timeout
		if e.matchPayload && trigger.payload != payload {
			satisfied = false
		}

		if !satisfied {
			kept = append(kept, trigger)
			continue
		}
		if !e.matchPayload {
			kept = append(kept, e.triggers[i+1:]...)
			break
		}
	}

	e.triggers = kept
}

// Finalize completes analysis and returns detected issues.
func (e *ConditionalEngine) Finalize(_ context.Context) (*RuleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := &RuleResult{
		RuleName:    e.name,
		RuleType:    config.RuleTypeConditional,
		Description: e.description,
		Issues:      make([]Issue, 0, len(e.triggers)),
		Stats:       e.stats,
	}

	for _, trigger := range e.triggers {
		result.Issues = append(result.Issues, Issue{
			Type: IssueTypeMissingConsequence,
			Description: fmt.Sprintf("%s at %s without %s within %s",
				trigger.content, trigger.at, e.expected, e.timeout),
			Context: IssueContext{
				Message: trigger.content,
				Payload: trigger.payload,
				Start:   trigger.at,
				Timeout: e.timeout,
			},
		})
	}

	return result, nil
}

// Reset clears internal state for reuse.
func (e *ConditionalEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.triggers = make([]triggerEvent, 0)
	e.stats = RuleStats{}
}
