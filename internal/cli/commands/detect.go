package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/tracekit/pkg/btsnoop"
	"github.com/ccollicutt/tracekit/pkg/detector"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output     string
	SampleSize int
	ShowAll    bool
	SkipChars  int
	Bluetrum   bool
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <capture-file>",
		Short: "Detect which decoder applies to a capture file",
		Long: `Sample the start of a capture file and report what kind of capture it
is, with the tracekit command that decodes it.

Recognized kinds:
  logic-csv   logic analyzer SPI export    -> tracekit threads
  crash-dump  console log with a register dump -> tracekit regdump
  hci-trace   textual HCI trace            -> tracekit btsnoop

Traces whose lines carry a log prefix are only recognized when the same
--skip-chars or --bluetrum-ts given to btsnoop are given here.

Example:
  tracekit detect capture.csv
  tracekit detect --skip-chars 7 --all console.log`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", detector.DefaultSampleSize, "Number of lines to sample")
	cmd.Flags().BoolVar(&opts.ShowAll, "all", false, "Show all matching kinds, not just the best match")
	cmd.Flags().IntVar(&opts.SkipChars, "skip-chars", 0, "Drop this many leading characters from trace lines")
	cmd.Flags().BoolVar(&opts.Bluetrum, "bluetrum-ts", false, "Strip a leading (HH:MM:SS.mmm) vendor clock from trace lines")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	file := args[0]
	ctx := commandContext(cmd)

	if _, err := os.Stat(file); os.IsNotExist(err) {
		return fmt.Errorf("capture file not found: %s", file)
	}

	d := detector.New(
		detector.WithSampleSize(opts.SampleSize),
		detector.WithHCIOptions(btsnoop.Options{
			SkipChars:          opts.SkipChars,
			BluetrumTimestamps: opts.Bluetrum,
		}),
	)

	result, err := d.DetectFromFile(ctx, file)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	switch opts.Output {
	case "json":
		return outputDetectJSON(cmd, result, file, opts)
	case "text":
		return outputDetectText(cmd, result, file, opts)
	default:
		return fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}
}

func outputDetectText(cmd *cobra.Command, result *detector.DetectionResult, file string, opts *DetectOptions) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, "=== Capture Detection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: %s\n", file)
	fmt.Fprintf(w, "Encoding: %s\n", result.Encoding)
	fmt.Fprintf(w, "Lines sampled: %d\n", result.SampledLines)
	fmt.Fprintln(w)

	if !result.HasMatch() {
		fmt.Fprintln(w, "No known capture kind detected.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tip: HCI traces with a log prefix need --skip-chars or --bluetrum-ts.")
		return nil
	}

	best := result.BestMatch()
	fmt.Fprintf(w, "Detected: %s (%s)\n", best.Kind.Name, best.Kind.Description)
	fmt.Fprintf(w, "Confidence: %.1f%% (%d/%d lines matched)\n",
		best.Confidence*100, best.MatchCount, result.SampledLines)
	fmt.Fprintf(w, "First match (line %d):\n  %s\n", best.FirstLine, best.SampleLine)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Decode with:\n  %s\n", result.Suggestion(file))
	fmt.Fprintln(w)

	if opts.ShowAll && len(result.Matches) > 1 {
		fmt.Fprintln(w, "--- Other kinds detected ---")
		for i, m := range result.Matches[1:] {
			fmt.Fprintf(w, "%d. %s (%.1f%% confidence, first at line %d)\n", i+2, m.Kind.Name, m.Confidence*100, m.FirstLine)
		}
		fmt.Fprintln(w)
	}

	return nil
}

// JSONMatch represents a kind match in JSON output.
type JSONMatch struct {
	Kind       string  `json:"kind"`
	Decoder    string  `json:"decoder"`
	Confidence float64 `json:"confidence"`
	MatchCount int     `json:"match_count"`
	FirstLine  int     `json:"first_line"`
	SampleLine string  `json:"sample_line"`
}

// JSONOutput represents the full JSON output.
type JSONOutput struct {
	File         string      `json:"file"`
	Encoding     string      `json:"encoding"`
	Matches      []JSONMatch `json:"matches"`
	SampledLines int         `json:"sampled_lines"`
	Suggestion   string      `json:"suggestion,omitempty"`
}

func outputDetectJSON(cmd *cobra.Command, result *detector.DetectionResult, file string, opts *DetectOptions) error {
	out := JSONOutput{
		File:         file,
		Encoding:     result.Encoding,
		SampledLines: result.SampledLines,
		Suggestion:   result.Suggestion(file),
		Matches:      make([]JSONMatch, 0),
	}

	matches := result.Matches
	if !opts.ShowAll && len(matches) > 1 {
		matches = matches[:1]
	}

	for _, m := range matches {
		out.Matches = append(out.Matches, JSONMatch{
			Kind:       m.Kind.Name,
			Decoder:    m.Kind.Decoder,
			Confidence: m.Confidence,
			MatchCount: m.MatchCount,
			FirstLine:  m.FirstLine,
			SampleLine: m.SampleLine,
		})
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
