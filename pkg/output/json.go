package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// JSONFormatter writes reports in the same JSON shape webhooks receive.
type JSONFormatter struct {
	opts FormatOptions
}

// NewJSONFormatter creates a new JSON formatter with the given options.
func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Name returns the format name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// quietReport is the quiet-mode document: enough to gate a script on.
type quietReport struct {
	RunID   string  `json:"run_id"`
	Summary Summary `json:"summary"`
}

// Format writes the report as indented JSON. Quiet mode writes only the run
// id and summary.
func (f *JSONFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var doc any = report
	if f.opts.Quiet {
		doc = quietReport{RunID: report.RunID, Summary: report.Summary}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding %s report: %w", report.Metadata.Command, err)
	}
	return nil
}
