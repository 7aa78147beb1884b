package logic

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Decode reads a logic-analyzer CSV export and returns the validated messages
// together with the discovered type allowlist. Nothing is written.
func Decode(r io.Reader, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	log := opts.logger()

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	timeIdx := slices.Index(header, ColumnTime)
	if timeIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, ColumnTime)
	}
	mosiIdx := slices.Index(header, ColumnMOSI)
	if mosiIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, ColumnMOSI)
	}

	var (
		seg      segmenter
		accepted []Message
		stats    Stats
	)

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		stats.Rows++

		line, _ := cr.FieldPos(0)
		if timeIdx >= len(record) || mosiIdx >= len(record) {
			return nil, fmt.Errorf("line %d: row has %d fields, need columns %q and %q", line, len(record), ColumnTime, ColumnMOSI)
		}

		ts, err := strconv.ParseFloat(strings.TrimSpace(record[timeIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid time %q: %w", line, record[timeIdx], err)
		}

		msg, ok := seg.feed(ts, record[mosiIdx])
		if record[mosiIdx] == TokenLineFeed {
			stats.Segments++
		}
		if !ok {
			continue
		}

		stats.Candidates++
		if !hasSingleSeparator(msg.Content) {
			log.WithFields(logrus.Fields{
				"line":    line,
				"content": msg.Content,
			}).Debug("Dropping segment without a single type separator")
			continue
		}
		accepted = append(accepted, msg)
	}
	stats.Accepted = len(accepted)

	allow, rawTypes := discoverTypes(accepted, opts)
	stats.RawTypes = rawTypes
	stats.Types = len(allow)
	stats.Filtered = rawTypes > opts.TypeThreshold

	if stats.Filtered {
		log.WithFields(logrus.Fields{
			"raw_types": rawTypes,
			"kept":      len(allow),
			"threshold": opts.TypeThreshold,
		}).Debug("Filtering noisy message types")
	}

	kept := make([]Message, 0, len(accepted))
	for _, m := range accepted {
		if _, ok := allow[m.Type()]; ok && hasSingleSeparator(m.Content) {
			kept = append(kept, m)
		}
	}

	return &Result{
		Messages:  kept,
		Allowlist: sortedTypes(allow),
		Stats:     stats,
	}, nil
}

// WriteMessages writes one "[<timestamp>]<content>" line per message, with the
// timestamp in seconds to six decimal places.
func WriteMessages(w io.Writer, msgs []Message) (int, error) {
	bw := bufio.NewWriter(w)
	for i, m := range msgs {
		if _, err := fmt.Fprintf(bw, "[%.6f]%s\n", m.Timestamp, m.Content); err != nil {
			return i, fmt.Errorf("writing message: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("flushing messages: %w", err)
	}
	return len(msgs), nil
}

// ReconstructFile decodes csvPath and writes the surviving messages to
// outputPath, truncating any existing file. The output is only created once
// the input has been fully read and validated.
func ReconstructFile(csvPath, outputPath string, opts Options) (*Result, error) {
	in, err := os.Open(csvPath) // #nosec G304 -- capture paths are user-provided
	if err != nil {
		return nil, fmt.Errorf("opening CSV export: %w", err)
	}
	defer in.Close()

	res, err := Decode(bufio.NewReader(in), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", csvPath, err)
	}

	out, err := os.Create(outputPath) // #nosec G304 -- output path is user-provided
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}

	n, werr := WriteMessages(out, res.Messages)
	cerr := out.Close()
	if werr != nil {
		return nil, werr
	}
	if cerr != nil {
		return nil, fmt.Errorf("closing output file: %w", cerr)
	}
	res.Stats.Written = n

	opts.logger().WithFields(logrus.Fields{
		"input":    csvPath,
		"output":   outputPath,
		"messages": n,
		"types":    len(res.Allowlist),
	}).Debug("Reconstructed messages")

	return res, nil
}
