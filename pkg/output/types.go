// Package output provides formatting and output generation for decode results.
package output

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ccollicutt/tracekit/pkg/analyzer"
	"github.com/ccollicutt/tracekit/pkg/btsnoop"
	"github.com/ccollicutt/tracekit/pkg/logic"
	"github.com/ccollicutt/tracekit/pkg/regdump"
)

// Decoder names the decoder that produced a result.
type Decoder string

const (
	DecoderThreads Decoder = "threads"
	DecoderRegdump Decoder = "regdump"
	DecoderBTSnoop Decoder = "btsnoop"
)

// IssueKind classifies a finding worth a human look.
type IssueKind string

const (
	IssueNoMessages   IssueKind = "no-messages"
	IssueNoDump       IssueKind = "no-dump"
	IssuePartialDump  IssueKind = "partial-dump"
	IssueBadRegister  IssueKind = "bad-register-token"
	IssueSkippedLines IssueKind = "skipped-lines"
	IssueNoRecords    IssueKind = "no-records"

	// Message rule findings.
	IssueGapExceeded     IssueKind = "gap-exceeded"
	IssueTooFewMessages  IssueKind = "too-few-messages"
	IssueMissingResponse IssueKind = "missing-response"
)

var ruleIssueKinds = map[analyzer.IssueType]IssueKind{
	analyzer.IssueTypeGapExceeded:         IssueGapExceeded,
	analyzer.IssueTypeBelowMinOccurrences: IssueTooFewMessages,
	analyzer.IssueTypeMissingConsequence:  IssueMissingResponse,
}

// Issue is a single finding on one input.
type Issue struct {
	Kind        IssueKind `json:"kind"`
	Description string    `json:"description"`
}

// ThreadsSummary is the part of a message reconstruction kept in reports.
type ThreadsSummary struct {
	Allowlist []string    `json:"allowlist"`
	Stats     logic.Stats `json:"stats"`

	// Rules holds message rule results when rules were configured.
	Rules []*analyzer.RuleResult `json:"rules,omitempty"`
}

// Result is the outcome of decoding one input.
type Result struct {
	Decoder Decoder `json:"decoder"`
	Input   string  `json:"input"`
	Output  string  `json:"output,omitempty"`

	// Error is set when the decode failed outright.
	Error string `json:"error,omitempty"`

	Issues []Issue `json:"issues,omitempty"`

	Threads *ThreadsSummary       `json:"threads,omitempty"`
	Dump    *regdump.RegisterDump `json:"dump,omitempty"`
	Trace   *btsnoop.Stats        `json:"trace,omitempty"`
}

// HasIssues returns true if the result carries findings.
func (r *Result) HasIssues() bool {
	return len(r.Issues) > 0
}

// Failed returns true if the decode did not complete.
func (r *Result) Failed() bool {
	return r.Error != ""
}

// NewThreadsResult summarizes a message reconstruction.
func NewThreadsResult(input, outputPath string, res *logic.Result) *Result {
	r := &Result{
		Decoder: DecoderThreads,
		Input:   input,
		Output:  outputPath,
		Threads: &ThreadsSummary{Allowlist: res.Allowlist, Stats: res.Stats},
	}
	if len(res.Messages) == 0 {
		r.Issues = append(r.Issues, Issue{
			Kind:        IssueNoMessages,
			Description: fmt.Sprintf("no messages reconstructed from %d rows", res.Stats.Rows),
		})
	}
	return r
}

// AddRuleResults attaches message rule findings to a threads result. Each
// rule issue becomes one report issue prefixed with the rule name.
func (r *Result) AddRuleResults(analysis *analyzer.AnalysisResult) {
	if r.Threads == nil || analysis == nil {
		return
	}
	r.Threads.Rules = analysis.Results

	for _, rule := range analysis.Results {
		for _, issue := range rule.Issues {
			r.Issues = append(r.Issues, Issue{
				Kind:        ruleIssueKinds[issue.Type],
				Description: fmt.Sprintf("%s: %s", rule.RuleName, issue.Description),
			})
		}
	}
}

// NewRegdumpResult summarizes a register extraction.
func NewRegdumpResult(input string, dump *regdump.RegisterDump) *Result {
	r := &Result{
		Decoder: DecoderRegdump,
		Input:   input,
		Dump:    dump,
	}

	switch {
	case dump.Format == regdump.FormatNone:
		r.Issues = append(r.Issues, Issue{
			Kind:        IssueNoDump,
			Description: "no ERR:/EPC: or WDT_RST: marker found",
		})
	case !dump.Complete && dump.BadTokens == 0:
		r.Issues = append(r.Issues, Issue{
			Kind:        IssuePartialDump,
			Description: fmt.Sprintf("log ended after %d of %d register slots", dump.Filled(), regdump.NumRegisters),
		})
	}
	if dump.BadTokens > 0 {
		r.Issues = append(r.Issues, Issue{
			Kind:        IssueBadRegister,
			Description: fmt.Sprintf("%d register token(s) were not hex", dump.BadTokens),
		})
	}
	return r
}

// NewBTSnoopResult summarizes a trace transcoding.
func NewBTSnoopResult(stats *btsnoop.Stats) *Result {
	r := &Result{
		Decoder: DecoderBTSnoop,
		Input:   stats.Input,
		Output:  stats.Output,
		Trace:   stats,
	}
	if stats.Records == 0 {
		r.Issues = append(r.Issues, Issue{
			Kind:        IssueNoRecords,
			Description: fmt.Sprintf("no HCI records in %d lines", stats.Lines),
		})
	}
	if n := stats.SkippedTotal(); n > 0 && stats.Records > 0 {
		r.Issues = append(r.Issues, Issue{
			Kind:        IssueSkippedLines,
			Description: fmt.Sprintf("%d of %d lines skipped", n, stats.Lines),
		})
	}
	return r
}

// NewErrorResult records a failed decode.
func NewErrorResult(decoder Decoder, input string, err error) *Result {
	return &Result{
		Decoder: decoder,
		Input:   input,
		Error:   err.Error(),
	}
}

// Report is the complete output of one tracekit run.
type Report struct {
	// RunID identifies the run in webhook payloads and logs.
	RunID string `json:"run_id"`

	// Summary provides aggregate statistics.
	Summary Summary `json:"summary"`

	// Results contains one entry per input.
	Results []*Result `json:"results"`

	// Metadata provides context about the run.
	Metadata Metadata `json:"metadata"`
}

// Summary provides aggregate statistics.
type Summary struct {
	Inputs      int `json:"inputs"`
	Failed      int `json:"failed"`
	WithIssues  int `json:"with_issues"`
	TotalIssues int `json:"total_issues"`
}

// Metadata provides context about the run.
type Metadata struct {
	// ConfigFile is the path to the configuration file used, if any.
	ConfigFile string `json:"config_file,omitempty"`

	// Command is the tracekit subcommand that produced the report.
	Command string `json:"command"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`
}

// NewReport aggregates results into a Report with a fresh run id.
func NewReport(results []*Result, meta Metadata) *Report {
	report := &Report{
		RunID:    uuid.NewString(),
		Results:  results,
		Metadata: meta,
	}

	report.Summary.Inputs = len(results)
	for _, r := range results {
		if r.Failed() {
			report.Summary.Failed++
		}
		if r.HasIssues() {
			report.Summary.WithIssues++
			report.Summary.TotalIssues += len(r.Issues)
		}
	}

	return report
}

// HasIssues returns true if any input produced findings.
func (r *Report) HasIssues() bool {
	return r.Summary.TotalIssues > 0
}

// HasFailures returns true if any input could not be decoded.
func (r *Report) HasFailures() bool {
	return r.Summary.Failed > 0
}
