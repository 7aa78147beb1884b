package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/tracekit/pkg/analyzer"
	"github.com/ccollicutt/tracekit/pkg/logic"
	"github.com/ccollicutt/tracekit/pkg/output"
)

// ThreadsOptions holds command-line options for the threads command.
type ThreadsOptions struct {
	ReportOptions

	TypeThreshold int
	TypeDenylist  string
	Rules         []string
}

// NewThreadsCommand creates the threads command.
func NewThreadsCommand() *cobra.Command {
	opts := &ThreadsOptions{}

	cmd := &cobra.Command{
		Use:   "threads <capture.csv> <messages.txt>",
		Short: "Reconstruct text messages from a logic analyzer SPI export",
		Long: `Rebuild the text messages a device streamed over SPI from a logic
analyzer CSV export, and write them to a text file.

The CSV must have "Time [s]" and "MOSI" columns. Every MOSI row carries one
character, a padding token (NUL or (SP)) or a line feed (LF) that ends a
message. Only messages of the form TYPE:payload are kept. When more than
--type-threshold distinct types appear, types that start with a digit or
contain a denylisted character are treated as corruption and dropped.

Each kept message is written as:
  [<start time, 6 decimals>]<message>

When the config file defines threads.rules, the reconstructed messages are
checked against them: periodic rules report a message type that went quiet
for longer than max_gap, conditional rules report a trigger message that
was not followed by its expected message within the timeout. Use --rule to
run only some of them.

Exit codes:
  0 - Messages reconstructed
  1 - The capture produced no messages, or a message rule found issues
  2 - Configuration or runtime error`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runThreads(cmd, args, opts)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().IntVar(&opts.TypeThreshold, "type-threshold", 0, "Distinct message types above which noisy types are dropped (default from config, 20)")
	cmd.Flags().StringVar(&opts.TypeDenylist, "denylist", "", "Characters that mark a message type as noise (default from config)")
	cmd.Flags().StringSliceVar(&opts.Rules, "rule", nil, "Run only the named message rules (repeatable)")

	return cmd
}

func runThreads(cmd *cobra.Command, args []string, opts *ThreadsOptions) error {
	csvPath, outPath := args[0], args[1]
	rt := runtimeFor(cmd)
	started := time.Now()

	logicOpts := logic.Options{
		TypeThreshold: rt.Config.Threads.TypeThreshold,
		TypeDenylist:  rt.Config.Threads.TypeDenylist,
		Logger:        rt.Logger.WithField("input", csvPath),
	}
	if cmd.Flags().Changed("type-threshold") {
		if opts.TypeThreshold < 1 {
			return fmt.Errorf("--type-threshold must be >= 1, got %d", opts.TypeThreshold)
		}
		logicOpts.TypeThreshold = opts.TypeThreshold
	}
	if cmd.Flags().Changed("denylist") {
		logicOpts.TypeDenylist = opts.TypeDenylist
	}

	checker, err := newRuleChecker(rt, opts.Rules)
	if err != nil {
		return err
	}

	var result *output.Result
	res, err := logic.ReconstructFile(csvPath, outPath, logicOpts)
	if err != nil {
		rt.Logger.WithError(err).WithField("input", csvPath).Error("Reconstruction failed")
		result = output.NewErrorResult(output.DecoderThreads, csvPath, err)
	} else {
		result = output.NewThreadsResult(csvPath, outPath, res)
	}

	if checker != nil && !result.Failed() {
		analysis, err := checker.Analyze(commandContext(cmd), res.Messages)
		if err != nil {
			return fmt.Errorf("checking message rules: %w", err)
		}
		rt.Logger.WithField("rules", len(analysis.Results)).
			WithField("issues", analysis.TotalIssues()).
			Debug("Message rules checked")
		result.AddRuleResults(analysis)
	}

	return emitReport(cmd, rt, &opts.ReportOptions, []*output.Result{result}, started)
}

// newRuleChecker builds the analyzer for the configured message rules. It
// returns nil when no rules are configured and none were asked for.
func newRuleChecker(rt *Runtime, only []string) (*analyzer.Analyzer, error) {
	rules := rt.Config.Threads.Rules
	if len(rules) == 0 {
		if len(only) > 0 {
			return nil, errors.New("--rule given but no threads.rules are configured")
		}
		return nil, nil
	}

	checker, err := analyzer.NewAnalyzer(rules, analyzer.WithRuleFilter(only))
	if err != nil {
		return nil, fmt.Errorf("loading message rules: %w", err)
	}
	return checker, nil
}
