package output

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/ccollicutt/tracekit/pkg/btsnoop"
	"github.com/ccollicutt/tracekit/pkg/regdump"
)

// registersPerRow is the register table width in text output.
const registersPerRow = 4

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(_ context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	_, err := fmt.Fprintf(w, "tracekit: %d inputs, %d with issues, %d failed\n",
		report.Summary.Inputs,
		report.Summary.WithIssues,
		report.Summary.Failed)
	return err
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	fmt.Fprintln(w, "=== tracekit Decode Report ===")
	fmt.Fprintln(w)

	for _, result := range report.Results {
		f.formatResult(result, w)
	}

	fmt.Fprintln(w, "---")
	_, err := fmt.Fprintf(w, "Summary: %d inputs, %d with issues, %d total issues, %d failed\n",
		report.Summary.Inputs,
		report.Summary.WithIssues,
		report.Summary.TotalIssues,
		report.Summary.Failed)

	if f.opts.Verbose {
		fmt.Fprintf(w, "Run ID: %s\n", report.RunID)
		fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
	}

	return err
}

func (f *TextFormatter) formatResult(result *Result, w io.Writer) {
	fmt.Fprintf(w, "[%s] %s\n", strings.ToUpper(string(result.Decoder)), result.Input)

	if result.Failed() {
		fmt.Fprintf(w, "  Error: %s\n", result.Error)
		fmt.Fprintln(w)
		return
	}

	switch {
	case result.Threads != nil:
		f.formatThreads(result, w)
	case result.Dump != nil:
		f.formatDump(result.Dump, w)
	case result.Trace != nil:
		f.formatTrace(result.Trace, w)
	}

	if !result.HasIssues() {
		fmt.Fprintln(w, "  No issues detected")
	} else {
		for _, issue := range result.Issues {
			fmt.Fprintf(w, "  - %s: %s\n", issue.Kind, issue.Description)
		}
	}
	fmt.Fprintln(w)
}

func (f *TextFormatter) formatThreads(result *Result, w io.Writer) {
	th := result.Threads
	fmt.Fprintf(w, "  Messages: %d written to %s\n", th.Stats.Written, result.Output)
	fmt.Fprintf(w, "  Types (%d): %s\n", len(th.Allowlist), strings.Join(th.Allowlist, ", "))

	if th.Stats.Filtered {
		fmt.Fprintf(w, "  Noise filter dropped %d of %d types\n", th.Stats.RawTypes-th.Stats.Types, th.Stats.RawTypes)
	}

	if len(th.Rules) > 0 {
		withIssues := 0
		for _, rule := range th.Rules {
			if rule.HasIssues() {
				withIssues++
			}
		}
		fmt.Fprintf(w, "  Rules: %d checked, %d with issues\n", len(th.Rules), withIssues)
	}

	if f.opts.Verbose {
		fmt.Fprintf(w, "  Rows: %d, segments: %d, candidates: %d, accepted: %d\n",
			th.Stats.Rows, th.Stats.Segments, th.Stats.Candidates, th.Stats.Accepted)
		for _, rule := range th.Rules {
			fmt.Fprintf(w, "    %s (%s): %d of %d messages matched\n",
				rule.RuleName, rule.RuleType, rule.Stats.MessagesMatched, rule.Stats.MessagesProcessed)
		}
	}
}

func (f *TextFormatter) formatDump(dump *regdump.RegisterDump, w io.Writer) {
	if dump.Format == regdump.FormatNone {
		return
	}

	fmt.Fprintf(w, "  Header: %s\n", dump.Header)
	fmt.Fprintf(w, "  Format: %s, %d/%d slots filled\n", strings.ToUpper(string(dump.Format)), dump.Filled(), regdump.NumRegisters)

	for row := 0; row < regdump.NumRegisters; row += registersPerRow {
		var sb strings.Builder
		sb.WriteString(" ")
		for i := row; i < row+registersPerRow; i++ {
			val := dump.Regs[i]
			if val == "" {
				val = "-"
			}
			fmt.Fprintf(&sb, " r%02d=%-10s", i, val)
		}
		fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
	}
}

func (f *TextFormatter) formatTrace(stats *btsnoop.Stats, w io.Writer) {
	fmt.Fprintf(w, "  Records: %d written to %s\n", stats.Records, stats.Output)
	fmt.Fprintf(w, "  Lines: %d, skipped: %d\n", stats.Lines, stats.SkippedTotal())

	if f.opts.Verbose && len(stats.Skipped) > 0 {
		reasons := make([]string, 0, len(stats.Skipped))
		for r := range stats.Skipped {
			reasons = append(reasons, string(r))
		}
		slices.Sort(reasons)
		for _, r := range reasons {
			fmt.Fprintf(w, "    %s: %d\n", r, stats.Skipped[btsnoop.SkipReason(r)])
		}
	}
}
