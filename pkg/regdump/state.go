// Package regdump extracts CPU register tables from crash-dump logs.
//
// Two dump formats are recognized. An exception dump starts after a line
// carrying both "ERR:" and "EPC:" and lists 32 registers. A watchdog dump
// starts after a "WDT_RST:" line and ends on the line that takes the slot
// index to 19 or beyond; the slots the watchdog handler does not save are
// filled with Sentinel.
package regdump

import "fmt"

// NumRegisters is the size of the register table.
const NumRegisters = 32

// Sentinel marks a register slot the dump format never reports.
const Sentinel = "0xXXXXXXXX"

// Dump markers.
const (
	MarkerErr = "ERR:"
	MarkerEPC = "EPC:"
	MarkerWDT = "WDT_RST:"
)

// StateKind enumerates the extractor states.
type StateKind int

const (
	Idle StateKind = iota
	CapturingEPC
	CapturingWDT
	Errored
)

func (k StateKind) String() string {
	switch k {
	case Idle:
		return "idle"
	case CapturingEPC:
		return "capturing-epc"
	case CapturingWDT:
		return "capturing-wdt"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("StateKind(%d)", int(k))
	}
}

// State is the extractor position. Index is the next register slot and is
// only meaningful while capturing.
type State struct {
	Kind  StateKind
	Index int
}

// Capturing reports whether register tokens are being consumed.
func (s State) Capturing() bool {
	return s.Kind == CapturingEPC || s.Kind == CapturingWDT
}

// Outcome is the result of advancing the extractor by one line.
type Outcome int

const (
	// Continue means more lines are needed.
	Continue Outcome = iota
	// Done means the register table is complete.
	Done
	// Failed means a register token on the line could not be parsed.
	// Extraction may still resume at the next dump marker.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Format names a dump layout.
type Format string

const (
	FormatNone Format = ""
	FormatEPC  Format = "epc"
	FormatWDT  Format = "wdt"
)

// layout describes a dump format. gaps maps the first slot of each run the
// format never reports to the slot after it. A capture ends at the first
// line after which the next slot index is at least complete.
type layout struct {
	format   Format
	gaps     map[int]int
	complete int
}

var layouts = map[StateKind]layout{
	CapturingEPC: {format: FormatEPC, complete: NumRegisters},
	CapturingWDT: {format: FormatWDT, gaps: map[int]int{0: 1, 2: 4, 18: 28}, complete: 19},
}
