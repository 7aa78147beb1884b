package detector

import (
	"strings"

	"github.com/ccollicutt/tracekit/pkg/btsnoop"
	"github.com/ccollicutt/tracekit/pkg/logic"
	"github.com/ccollicutt/tracekit/pkg/regdump"
)

// Kind names a capture type and the decoder that handles it.
type Kind struct {
	Name        string // Stable identifier used in JSON output
	Decoder     string // tracekit subcommand that decodes it
	Description string

	// Conclusive kinds are identified by a single matching line, such as a
	// CSV header or a crash marker. Other kinds score by the share of
	// sampled lines that match.
	Conclusive bool

	match func(index int, line string) bool
}

// Names of the built-in capture kinds.
const (
	KindLogicCSV  = "logic-csv"
	KindCrashDump = "crash-dump"
	KindHCITrace  = "hci-trace"
)

// DefaultKinds returns the built-in capture kinds. hci lines are matched
// after applying opts, so a trace with a log prefix is only recognized when
// the same skip and strip options are given.
func DefaultKinds(opts btsnoop.Options) []*Kind {
	return []*Kind{
		{
			Name:        KindLogicCSV,
			Decoder:     "threads",
			Description: "Logic analyzer SPI export (CSV with Time [s] and MOSI columns)",
			Conclusive:  true,
			match: func(index int, line string) bool {
				return index == 0 && isLogicHeader(line)
			},
		},
		{
			Name:        KindCrashDump,
			Decoder:     "regdump",
			Description: "Console log with an ERR:/EPC: or WDT_RST: register dump",
			Conclusive:  true,
			match: func(_ int, line string) bool {
				if strings.Contains(line, regdump.MarkerErr) && strings.Contains(line, regdump.MarkerEPC) {
					return true
				}
				return strings.Contains(line, regdump.MarkerWDT)
			},
		},
		{
			Name:        KindHCITrace,
			Decoder:     "btsnoop",
			Description: "Textual HCI trace ([HH:MM:SS.ffffff] CMD|ACL|EVT =>|<= bytes)",
			match: func(_ int, line string) bool {
				_, err := btsnoop.ParseLine(opts.Preprocess(line))
				return err == nil
			},
		},
	}
}

func isLogicHeader(line string) bool {
	var hasTime, hasMOSI bool
	for _, col := range strings.Split(line, ",") {
		switch strings.Trim(strings.TrimSpace(col), `"`) {
		case logic.ColumnTime:
			hasTime = true
		case logic.ColumnMOSI:
			hasMOSI = true
		}
	}
	return hasTime && hasMOSI
}
