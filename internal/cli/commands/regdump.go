package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/tracekit/pkg/inputs"
	"github.com/ccollicutt/tracekit/pkg/output"
	"github.com/ccollicutt/tracekit/pkg/regdump"
)

// RegdumpOptions holds command-line options for the regdump command.
type RegdumpOptions struct {
	ReportOptions
}

// NewRegdumpCommand creates the regdump command.
func NewRegdumpCommand() *cobra.Command {
	opts := &RegdumpOptions{}

	cmd := &cobra.Command{
		Use:   "regdump <log-file>...",
		Short: "Extract the CPU register dump from a crash log",
		Long: `Scan device console logs for a crash register dump and print the
32 register slots.

Two layouts are recognized:
  ERR: ... EPC: ...   exception dump, 32 registers in order
  WDT_RST: ...        watchdog dump, 19 registers with fixed gaps
                      (slots 0, 2-3 and 18-27 read 0xXXXXXXXX)

Register values are whitespace-separated hex words on the lines that follow
the marker. Arguments may be files or glob patterns; each file is decoded
on its own.

Exit codes:
  0 - Complete dump found in every file
  1 - A file has no dump, a partial dump or non-hex register tokens
  2 - Configuration or runtime error`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegdump(cmd, args, opts)
		},
	}

	opts.addFlags(cmd)

	return cmd
}

func runRegdump(cmd *cobra.Command, args []string, opts *RegdumpOptions) error {
	rt := runtimeFor(cmd)
	started := time.Now()

	files, err := inputs.ExpandGlobs(args)
	if err != nil {
		return fmt.Errorf("expanding inputs: %w", err)
	}

	results := make([]*output.Result, 0, len(files))
	for _, file := range files {
		log := rt.Logger.WithField("input", file)

		dump, err := regdump.ExtractFile(file, regdump.WithLogger(log))
		if err != nil {
			log.WithError(err).Error("Extraction failed")
			results = append(results, output.NewErrorResult(output.DecoderRegdump, file, err))
			continue
		}
		results = append(results, output.NewRegdumpResult(file, dump))
	}

	return emitReport(cmd, rt, &opts.ReportOptions, results, started)
}
