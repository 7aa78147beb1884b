package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/tracekit/pkg/btsnoop"
	"github.com/ccollicutt/tracekit/pkg/inputs"
	"github.com/ccollicutt/tracekit/pkg/output"
)

// BTSnoopOptions holds command-line options for the btsnoop command.
type BTSnoopOptions struct {
	ReportOptions

	SkipChars int
	Bluetrum  bool
	Strict    bool
}

// NewBTSnoopCommand creates the btsnoop command.
func NewBTSnoopCommand() *cobra.Command {
	opts := &BTSnoopOptions{}

	cmd := &cobra.Command{
		Use:   "btsnoop <trace-file>...",
		Short: "Convert ASCII HCI traces to BTSnoop capture files",
		Long: `Transcode textual HCI traces into BTSnoop (.cfa) files that protocol
analyzers can open. The output is written next to each input with the
extension replaced by .cfa.

Valid trace lines look like:
  [HH:MM:SS.ffffff] CMD|ACL|EVT =>|<= XX XX ...

Other lines are skipped. Record times are the time of day from the trace
dated with the trace file's modification time. Packets whose type and
direction have no BTSnoop flags (such as EVT =>) are skipped, or abort the
file with --strict.

Arguments may be files or glob patterns; *.cfa matches are ignored.

Exit codes:
  0 - Every line produced a record
  1 - Lines were skipped or a trace had no records
  2 - Configuration or runtime error`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBTSnoop(cmd, args, opts)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().IntVar(&opts.SkipChars, "skip-chars", 0, "Drop this many leading characters from every line")
	cmd.Flags().BoolVar(&opts.Bluetrum, "bluetrum-ts", false, "Strip a leading (HH:MM:SS.mmm) vendor clock")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Abort a trace on packets with no BTSnoop flags")

	return cmd
}

// transcodeOptions merges config and flags; flags win when given.
func transcodeOptions(cmd *cobra.Command, rt *Runtime, opts *BTSnoopOptions) (btsnoop.Options, error) {
	hc := rt.Config.HCI

	policy, err := btsnoop.ParseUnmappedPolicy(string(hc.UnmappedPolicy))
	if err != nil {
		return btsnoop.Options{}, err
	}

	o := btsnoop.Options{
		SkipChars:          hc.SkipChars,
		BluetrumTimestamps: hc.BluetrumTimestamps,
		Unmapped:           policy,
	}
	if cmd.Flags().Changed("skip-chars") {
		if opts.SkipChars < 0 {
			return btsnoop.Options{}, fmt.Errorf("--skip-chars must be >= 0, got %d", opts.SkipChars)
		}
		o.SkipChars = opts.SkipChars
	}
	if cmd.Flags().Changed("bluetrum-ts") {
		o.BluetrumTimestamps = opts.Bluetrum
	}
	if opts.Strict {
		o.Unmapped = btsnoop.UnmappedAbort
	}
	return o, nil
}

func runBTSnoop(cmd *cobra.Command, args []string, opts *BTSnoopOptions) error {
	rt := runtimeFor(cmd)
	started := time.Now()

	tOpts, err := transcodeOptions(cmd, rt, opts)
	if err != nil {
		return err
	}

	files, err := inputs.ExpandGlobs(args, btsnoop.OutputExt)
	if err != nil {
		return fmt.Errorf("expanding inputs: %w", err)
	}

	results := make([]*output.Result, 0, len(files))
	for _, file := range files {
		fileOpts := tOpts
		fileOpts.Logger = rt.Logger.WithField("input", file)

		stats, err := btsnoop.TranscodeFile(file, fileOpts)
		if err != nil {
			fileOpts.Logger.WithError(err).Error("Transcoding failed")
			results = append(results, output.NewErrorResult(output.DecoderBTSnoop, file, err))
			continue
		}
		results = append(results, output.NewBTSnoopResult(stats))
	}

	return emitReport(cmd, rt, &opts.ReportOptions, results, started)
}
