package btsnoop

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ccollicutt/tracekit/pkg/logging"
	"github.com/ccollicutt/tracekit/pkg/textnorm"
)

// OutputExt is the extension of transcoded capture files.
const OutputExt = ".cfa"

// UnmappedPolicy selects what happens to a line whose packet type and
// direction have no flags entry, such as a command sent by the controller.
type UnmappedPolicy string

const (
	// UnmappedSkip drops the line and continues.
	UnmappedSkip UnmappedPolicy = "skip"
	// UnmappedAbort stops the run with ErrUnmappedPacket.
	UnmappedAbort UnmappedPolicy = "abort"
)

// ErrUnmappedPacket is returned under UnmappedAbort.
var ErrUnmappedPacket = errors.New("packet type and direction have no btsnoop flags")

// ParseUnmappedPolicy parses a policy name. The empty string selects UnmappedSkip.
func ParseUnmappedPolicy(s string) (UnmappedPolicy, error) {
	switch UnmappedPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", UnmappedSkip:
		return UnmappedSkip, nil
	case UnmappedAbort:
		return UnmappedAbort, nil
	default:
		return "", fmt.Errorf("unknown unmapped packet policy %q (valid: skip, abort)", s)
	}
}

var bluetrumClock = regexp.MustCompile(`^\(\d{2}:\d{2}:\d{2}\.\d{3}\)`)

// Options controls line preprocessing and error policy.
type Options struct {
	// SkipChars drops this many leading characters from every line.
	SkipChars int

	// BluetrumTimestamps strips a leading "(HH:MM:SS.mmm)" vendor clock.
	BluetrumTimestamps bool

	// Unmapped selects the policy for unmapped packets. Empty means skip.
	Unmapped UnmappedPolicy

	// Logger receives skipped-line diagnostics. Nil disables logging.
	Logger logrus.FieldLogger
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}

// Stats summarizes a transcoding run.
type Stats struct {
	Input   string             `json:"input,omitempty"`
	Output  string             `json:"output,omitempty"`
	Lines   int                `json:"lines"`
	Records int                `json:"records"`
	Skipped map[SkipReason]int `json:"skipped,omitempty"`
}

// SkippedTotal returns the number of lines that produced no record.
func (s *Stats) SkippedTotal() int {
	n := 0
	for _, c := range s.Skipped {
		n += c
	}
	return n
}

func (s *Stats) skip(r SkipReason) {
	if s.Skipped == nil {
		s.Skipped = make(map[SkipReason]int)
	}
	s.Skipped[r]++
}

// Preprocess applies SkipChars and the vendor clock strip to one line.
func (o Options) Preprocess(line string) string {
	if o.SkipChars > 0 {
		n := 0
		cut := len(line)
		for i := range line {
			if n == o.SkipChars {
				cut = i
				break
			}
			n++
		}
		line = line[cut:]
	}
	if o.BluetrumTimestamps && strings.HasPrefix(line, "(") {
		line = bluetrumClock.ReplaceAllString(line, "")
	}
	return line
}

// Transcode writes a BTSnoop stream for the trace lines to w. baseUnixSeconds
// dates the time-of-day clocks found in the trace.
//
// Lines that fail the trace filter are skipped. An unparsable clock on an
// otherwise valid line is fatal. Records written before a fatal error remain
// in w; the returned Stats are valid in both cases.
func Transcode(lines iter.Seq[string], w io.Writer, baseUnixSeconds uint64, opts Options) (*Stats, error) {
	log := opts.logger()
	stats := &Stats{}

	bw, err := NewWriter(w)
	if err != nil {
		return stats, err
	}

	runErr := func() error {
		for raw := range lines {
			stats.Lines++
			n := stats.Lines

			line, err := ParseLine(opts.Preprocess(raw))
			if err != nil {
				var le *LineError
				if errors.As(err, &le) {
					stats.skip(le.Reason)
					log.WithFields(logrus.Fields{"line": n, "reason": le.Reason}).Debug("Skipping trace line")
				}
				continue
			}

			clock, err := ParseClock(line.Clock)
			if err != nil {
				return fmt.Errorf("line %d: %w", n, err)
			}

			flags, ok := Flags(line.Type, line.Direction)
			if !ok {
				if opts.Unmapped == UnmappedAbort {
					return fmt.Errorf("line %d: %w: %s %s", n, ErrUnmappedPacket, line.Type, line.Direction)
				}
				stats.skip(ReasonUnmappedRoute)
				log.WithFields(logrus.Fields{
					"line":      n,
					"type":      line.Type,
					"direction": line.Direction,
				}).Warn("Skipping packet with no btsnoop flags")
				continue
			}

			pkt, _ := line.Packet()
			if err := bw.WriteRecord(NewRecord(flags, clock.Timestamp(baseUnixSeconds), pkt)); err != nil {
				return fmt.Errorf("line %d: %w", n, err)
			}
			stats.Records++
		}
		return nil
	}()

	if err := bw.Flush(); err != nil && runErr == nil {
		runErr = fmt.Errorf("flushing output: %w", err)
	}
	return stats, runErr
}

// OutputPath returns path with its extension replaced by OutputExt.
func OutputPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + OutputExt
}

// TranscodeFile transcodes the trace at path into OutputPath(path), dating
// records with the trace file's modification time. The output is replaced if
// it exists. When a fatal error occurs after the output was created, the
// records written so far are kept.
func TranscodeFile(path string, opts Options) (*Stats, error) {
	out := OutputPath(path)
	if filepath.Clean(out) == filepath.Clean(path) {
		return nil, fmt.Errorf("output %s would overwrite the input trace", out)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading trace metadata: %w", err)
	}
	mtime := info.ModTime().Unix()
	if mtime < 0 {
		return nil, fmt.Errorf("trace modification time %s predates the Unix epoch", info.ModTime())
	}

	doc, err := textnorm.Open(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Create(out) // #nosec G304 -- output path derives from a user-provided path
	if err != nil {
		return nil, fmt.Errorf("creating btsnoop file: %w", err)
	}

	stats, err := Transcode(doc.Lines(), f, uint64(mtime), opts)
	stats.Input = path
	stats.Output = out

	if cerr := f.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("closing btsnoop file: %w", cerr)
	}
	if err != nil {
		return stats, fmt.Errorf("%s: %w", path, err)
	}

	opts.logger().WithFields(logrus.Fields{
		"input":   path,
		"output":  out,
		"records": stats.Records,
		"skipped": stats.SkippedTotal(),
	}).Debug("Transcoded HCI trace")

	return stats, nil
}
