package commands

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/tracekit/pkg/btsnoop"
)

// InspectOptions holds command-line options for the inspect command.
type InspectOptions struct {
	Output string
	Limit  int
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	opts := &InspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect <capture.cfa>",
		Short: "List the records of a BTSnoop capture",
		Long: `Read a BTSnoop file, validate its header and list its records with
their time, packet type, direction and bytes.

Example:
  tracekit inspect hci.cfa
  tracekit inspect --limit 0 -o json hci.cfa`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 50, "Maximum records to list (0 for all)")

	return cmd
}

// InspectRecord is one record in inspect output.
type InspectRecord struct {
	Index     int       `json:"index"`
	Time      time.Time `json:"time"`
	Type      string    `json:"type"`
	Direction string    `json:"direction"`
	Flags     uint32    `json:"flags"`
	Length    uint32    `json:"length"`
	Data      string    `json:"data"`
}

// InspectOutput is the full inspect result.
type InspectOutput struct {
	File      string          `json:"file"`
	Version   uint32          `json:"version"`
	Datalink  uint32          `json:"datalink"`
	Records   int             `json:"records"`
	Truncated bool            `json:"truncated,omitempty"`
	Listed    []InspectRecord `json:"listed"`
}

func runInspect(cmd *cobra.Command, args []string, opts *InspectOptions) error {
	path := args[0]
	if opts.Output != "text" && opts.Output != "json" {
		return fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}

	f, err := os.Open(path) // #nosec G304 -- path is provided by user via CLI
	if err != nil {
		return fmt.Errorf("opening capture: %w", err)
	}
	defer f.Close()

	r, err := btsnoop.NewReader(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	out := InspectOutput{
		File:     path,
		Version:  r.Header.Version,
		Datalink: r.Header.Datalink,
		Listed:   make([]InspectRecord, 0),
	}

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			out.Truncated = true
			runtimeFor(cmd).Logger.WithError(err).WithField("record", out.Records+1).Warn("Capture ends mid-record")
			break
		}
		out.Records++

		if opts.Limit > 0 && len(out.Listed) >= opts.Limit {
			continue
		}
		out.Listed = append(out.Listed, describeRecord(out.Records, rec))
	}

	if out.Truncated {
		ExitCode = ExitFindings
	}

	w := cmd.OutOrStdout()
	if opts.Output == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}

	fmt.Fprintf(w, "File: %s\n", out.File)
	fmt.Fprintf(w, "BTSnoop version %d, datalink %d\n", out.Version, out.Datalink)
	fmt.Fprintf(w, "Records: %d\n", out.Records)
	if out.Truncated {
		fmt.Fprintln(w, "Warning: capture is truncated")
	}
	fmt.Fprintln(w)
	for _, rec := range out.Listed {
		fmt.Fprintf(w, "%5d  %s  %-3s %-2s  %3d  %s\n",
			rec.Index, rec.Time.Format("2006-01-02 15:04:05.000000"), rec.Type, rec.Direction, rec.Length, rec.Data)
	}
	if n := out.Records - len(out.Listed); n > 0 {
		fmt.Fprintf(w, "... %d more (use --limit 0 to list all)\n", n)
	}
	return nil
}

func describeRecord(index int, rec *btsnoop.Record) InspectRecord {
	ir := InspectRecord{
		Index:     index,
		Time:      rec.Time(),
		Type:      "?",
		Direction: "?",
		Flags:     rec.Flags,
		Length:    rec.OriginalLen,
		Data:      hex.EncodeToString(rec.Data),
	}
	if pt, dir, ok := rec.Route(); ok {
		ir.Type = string(pt)
		ir.Direction = string(dir)
	}
	return ir
}
