package regdump

import (
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ccollicutt/tracekit/pkg/logging"
	"github.com/ccollicutt/tracekit/pkg/textnorm"
)

// RegisterDump is the register table captured from one crash log.
type RegisterDump struct {
	// Header is the marker line that started the capture.
	Header string `json:"header"`

	// Format is the layout of the captured dump, empty when no marker was seen.
	Format Format `json:"format,omitempty"`

	// Regs holds "0x%08X" values. Slots the log never filled are empty.
	Regs [NumRegisters]string `json:"regs"`

	// Complete is set when the capture reached its layout's end with no
	// bad token.
	Complete bool `json:"complete"`

	// BadTokens counts register tokens that were not valid hex.
	BadTokens int `json:"bad_tokens,omitempty"`
}

// Filled returns the number of non-empty slots.
func (d *RegisterDump) Filled() int {
	n := 0
	for _, r := range d.Regs {
		if r != "" {
			n++
		}
	}
	return n
}

// Extractor is the crash-dump state machine. It is not safe for concurrent use.
type Extractor struct {
	state  State
	dump   RegisterDump
	done   bool
	logger logrus.FieldLogger
}

// Option configures the Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for debug output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Extractor in the Idle state.
func New(opts ...Option) *Extractor {
	e := &Extractor{logger: logging.Discard()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current state.
func (e *Extractor) State() State {
	return e.state
}

// Dump returns a copy of the register table as currently filled.
func (e *Extractor) Dump() *RegisterDump {
	d := e.dump
	return &d
}

// Advance feeds one line to the extractor.
//
// Register tokens on the line are consumed against the state held before the
// line, then the line is checked for a dump marker. A marker only affects the
// lines that follow it. A full table ends the capture at once; otherwise the
// layout's completion index is checked when the line's tokens run out, so
// the rest of a line that crosses it is still stored. Once Done is returned
// the table is frozen and every later call returns Done.
func (e *Extractor) Advance(line string) Outcome {
	if e.done {
		return Done
	}
	outcome := Continue

	if e.state.Capturing() {
		lay := layouts[e.state.Kind]
		failed := false

		for _, tok := range strings.Split(line, " ") {
			if tok == "" {
				continue
			}
			e.fillGaps(lay)

			v, err := strconv.ParseUint(tok, 16, 32)
			if err != nil {
				e.logger.WithFields(logrus.Fields{
					"slot":  e.state.Index,
					"token": tok,
				}).Debug("Invalid register token")
				e.dump.BadTokens++
				failed = true
			} else {
				e.dump.Regs[e.state.Index] = fmt.Sprintf("0x%08X", v)
			}
			e.state.Index++

			if e.state.Index >= NumRegisters {
				return e.finish()
			}
		}

		if e.state.Index >= lay.complete {
			return e.finish()
		}
		if failed {
			e.state.Kind = Errored
			outcome = Failed
		}
	}

	switch {
	case strings.Contains(line, MarkerErr) && strings.Contains(line, MarkerEPC):
		e.begin(CapturingEPC, line)
	case strings.Contains(line, MarkerWDT):
		e.begin(CapturingWDT, line)
	}

	return outcome
}

// finish freezes the table.
func (e *Extractor) finish() Outcome {
	e.dump.Complete = e.dump.BadTokens == 0
	e.done = true
	return Done
}

// begin records the header and starts a capture on an empty table; slots
// and bad tokens from an earlier capture in the same log are dropped.
func (e *Extractor) begin(kind StateKind, header string) {
	lay := layouts[kind]
	e.dump = RegisterDump{Header: header, Format: lay.format}
	e.state = State{Kind: kind}
	e.fillGaps(lay)

	e.logger.WithFields(logrus.Fields{
		"format": lay.format,
		"header": header,
	}).Debug("Dump marker found")
}

// fillGaps writes Sentinel into the gap starting at the current index, if
// any, and moves the index past it.
func (e *Extractor) fillGaps(lay layout) {
	for {
		end, ok := lay.gaps[e.state.Index]
		if !ok {
			return
		}
		for ; e.state.Index < end; e.state.Index++ {
			e.dump.Regs[e.state.Index] = Sentinel
		}
	}
}

// Run advances the extractor over lines until the dump completes or the
// lines run out, and returns the register table.
func (e *Extractor) Run(lines iter.Seq[string]) *RegisterDump {
	for line := range lines {
		if e.Advance(line) == Done {
			break
		}
	}
	return e.Dump()
}

// Extract runs a fresh Extractor over lines.
func Extract(lines iter.Seq[string], opts ...Option) *RegisterDump {
	return New(opts...).Run(lines)
}

// ExtractFile decodes the crash log at path and extracts its register table.
// A log that ends before the dump completes yields the partial table.
// Only reading or decoding the file can fail.
func ExtractFile(path string, opts ...Option) (*RegisterDump, error) {
	doc, err := textnorm.Open(path)
	if err != nil {
		return nil, err
	}
	return Extract(doc.Lines(), opts...), nil
}
