package analyzer

import (
	"context"

	"github.com/ccollicutt/tracekit/pkg/config"
	"github.com/ccollicutt/tracekit/pkg/logic"
)

// RuleEngine consumes messages in capture order and reports what is missing.
// Each rule type (periodic, conditional) implements this interface.
type RuleEngine interface {
	// Name returns the rule name for reporting.
	Name() string

	// Type returns the rule type.
	Type() config.RuleType

	// Process handles a single message, updating internal state.
	Process(ctx context.Context, msg logic.Message) error

	// Finalize completes analysis and returns detected issues.
	// Called after all messages have been processed.
	Finalize(ctx context.Context) (*RuleResult, error)

	// Reset clears internal state for reuse.
	Reset()
}
