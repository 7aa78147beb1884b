package btsnoop

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ErrInvalidTimestamp is returned for a trace clock that does not parse.
var ErrInvalidTimestamp = errors.New("invalid trace timestamp")

var clockLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Digits", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[\[\]:.]`},
})

// clockAST is a bracketed "[HH:MM:SS.f]" trace clock holding the raw digits.
type clockAST struct {
	Hours    string `"[" @Digits ":"`
	Minutes  string `@Digits ":"`
	Seconds  string `@Digits "."`
	Fraction string `@Digits "]"`
}

var clockParser = participle.MustBuild[clockAST](
	participle.Lexer(clockLexer),
)

// Clock is a time of day read from a trace line.
type Clock struct {
	// Seconds since midnight.
	Seconds uint64
	// Micros is the fractional part. The digits are taken as a microsecond
	// count as written, so ".740" is 740µs.
	Micros uint64
}

// ParseClock parses a bracketed trace clock such as "[00:00:02.740]".
func ParseClock(s string) (Clock, error) {
	ast, err := clockParser.ParseString("", s)
	if err != nil {
		return Clock{}, fmt.Errorf("%w %q: %v", ErrInvalidTimestamp, s, err)
	}

	var parts [4]uint64
	for i, field := range []string{ast.Hours, ast.Minutes, ast.Seconds, ast.Fraction} {
		v, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			return Clock{}, fmt.Errorf("%w %q: %v", ErrInvalidTimestamp, s, err)
		}
		parts[i] = v
	}

	return Clock{
		Seconds: parts[0]*3600 + parts[1]*60 + parts[2],
		Micros:  parts[3],
	}, nil
}

// Timestamp combines the clock with the capture day, given as Unix seconds,
// into a BTSnoop timestamp.
func (c Clock) Timestamp(baseUnixSeconds uint64) uint64 {
	return Timestamp((baseUnixSeconds+c.Seconds)*1_000_000 + c.Micros)
}
