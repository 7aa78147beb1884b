package analyzer

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ccollicutt/tracekit/pkg/config"
	"github.com/ccollicutt/tracekit/pkg/logic"
)

var (
	// ErrNoRules is returned when there is nothing to check.
	ErrNoRules = errors.New("no rules to execute")

	// ErrUnknownRule is returned when the filter names a rule that is not
	// configured.
	ErrUnknownRule = errors.New("unknown rule")
)

// Analyzer runs a set of rules over a message stream.
type Analyzer struct {
	engines []RuleEngine
	only    []string
}

// Option configures analyzer behavior.
type Option func(*Analyzer)

// WithRuleFilter limits analysis to the named rules. An empty list keeps
// every rule.
func WithRuleFilter(names []string) Option {
	return func(a *Analyzer) {
		a.only = names
	}
}

// NewAnalyzer builds one engine per selected rule, in config order.
func NewAnalyzer(rules []config.RuleConfig, opts ...Option) (*Analyzer, error) {
	a := &Analyzer{}
	for _, opt := range opts {
		opt(a)
	}

	for _, name := range a.only {
		if !slices.ContainsFunc(rules, func(r config.RuleConfig) bool { return r.Name == name }) {
			return nil, fmt.Errorf("%w %q", ErrUnknownRule, name)
		}
	}

	for i := range rules {
		rule := &rules[i]
		if len(a.only) > 0 && !slices.Contains(a.only, rule.Name) {
			continue
		}

		var engine RuleEngine
		var err error
		switch rule.Type {
		case config.RuleTypePeriodic:
			engine, err = NewPeriodicEngine(rule)
		case config.RuleTypeConditional:
			engine, err = NewConditionalEngine(rule)
		default:
			err = fmt.Errorf("unknown rule type: %s", rule.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
		}
		a.engines = append(a.engines, engine)
	}

	if len(a.engines) == 0 {
		return nil, ErrNoRules
	}
	return a, nil
}

// AnalysisResult holds one RuleResult per rule, in config order.
type AnalysisResult struct {
	Results           []*RuleResult `json:"results"`
	MessagesProcessed int           `json:"messages_processed"`
}

// TotalIssues sums issues across rules.
func (r *AnalysisResult) TotalIssues() int {
	total := 0
	for _, rr := range r.Results {
		total += len(rr.Issues)
	}
	return total
}

// RulesWithIssues counts rules that reported at least one issue.
func (r *AnalysisResult) RulesWithIssues() int {
	n := 0
	for _, rr := range r.Results {
		if rr.HasIssues() {
			n++
		}
	}
	return n
}

// Analyze feeds msgs, in capture order, to every engine. Engines are reset
// first, so an Analyzer can check several captures in turn.
func (a *Analyzer) Analyze(ctx context.Context, msgs []logic.Message) (*AnalysisResult, error) {
	for _, e := range a.engines {
		e.Reset()
	}

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, e := range a.engines {
			if err := e.Process(ctx, msg); err != nil {
				return nil, fmt.Errorf("rule %q: %w", e.Name(), err)
			}
		}
	}

	result := &AnalysisResult{
		Results:           make([]*RuleResult, 0, len(a.engines)),
		MessagesProcessed: len(msgs),
	}
	for _, e := range a.engines {
		rr, err := e.Finalize(ctx)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", e.Name(), err)
		}
		result.Results = append(result.Results, rr)
	}
	return result, nil
}
