// Package detector identifies which decoder applies to a capture file.
package detector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ccollicutt/tracekit/pkg/btsnoop"
	"github.com/ccollicutt/tracekit/pkg/textnorm"
)

// DefaultSampleSize is the number of non-empty lines examined.
const DefaultSampleSize = 200

// DetectionResult holds the result of examining a capture.
type DetectionResult struct {
	Matches      []KindMatch // Kinds that matched, sorted by confidence descending
	SampledLines int         // Number of lines sampled
	Encoding     string      // Text encoding found by the normalizer
}

// KindMatch represents a capture kind that matched with its confidence score.
type KindMatch struct {
	Kind       *Kind
	Confidence float64 // 0.0 to 1.0
	MatchCount int     // Number of lines that matched
	SampleLine string  // First line that matched
	FirstLine  int     // 1-based line number of SampleLine
}

// Detector examines capture files to identify their kind.
type Detector struct {
	kinds      []*Kind
	sampleSize int
	hciOpts    btsnoop.Options
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of lines to sample.
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// WithHCIOptions sets the line preprocessing used to recognize HCI traces.
func WithHCIOptions(opts btsnoop.Options) Option {
	return func(d *Detector) {
		d.hciOpts = opts
	}
}

// New creates a new Detector with the built-in kinds.
func New(opts ...Option) *Detector {
	d := &Detector{
		sampleSize: DefaultSampleSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.kinds = DefaultKinds(d.hciOpts)
	return d
}

// DetectFromFile normalizes a capture file and examines its first lines.
func (d *Detector) DetectFromFile(_ context.Context, path string) (*DetectionResult, error) {
	doc, err := textnorm.Open(path)
	if err != nil {
		return nil, err
	}

	var lines []string
	for line := range doc.Lines() {
		if len(lines) == d.sampleSize {
			break
		}
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	result := d.DetectFromLines(lines)
	result.Encoding = doc.Encoding.String()
	return result, nil
}

// DetectFromLines examines a slice of non-empty capture lines.
func (d *Detector) DetectFromLines(lines []string) *DetectionResult {
	result := &DetectionResult{
		SampledLines: len(lines),
	}

	if len(lines) == 0 {
		return result
	}

	for _, kind := range d.kinds {
		m := KindMatch{Kind: kind}
		for i, line := range lines {
			if !kind.match(i, line) {
				continue
			}
			if m.MatchCount == 0 {
				m.SampleLine = line
				m.FirstLine = i + 1
			}
			m.MatchCount++
		}
		if m.MatchCount == 0 {
			continue
		}

		if kind.Conclusive {
			m.Confidence = 1.0
		} else {
			m.Confidence = float64(m.MatchCount) / float64(len(lines))
		}
		result.Matches = append(result.Matches, m)
	}

	// Conclusive kinds first at equal confidence, then by earliest evidence.
	sort.SliceStable(result.Matches, func(i, j int) bool {
		a, b := result.Matches[i], result.Matches[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Kind.Conclusive != b.Kind.Conclusive {
			return a.Kind.Conclusive
		}
		return a.FirstLine < b.FirstLine
	})

	return result
}

// BestMatch returns the highest confidence match, or nil if none found.
func (r *DetectionResult) BestMatch() *KindMatch {
	if len(r.Matches) == 0 {
		return nil
	}
	return &r.Matches[0]
}

// HasMatch returns true if at least one kind matched.
func (r *DetectionResult) HasMatch() bool {
	return len(r.Matches) > 0
}

// Suggestion returns the tracekit command line that decodes path, or "" if
// nothing matched.
func (r *DetectionResult) Suggestion(path string) string {
	best := r.BestMatch()
	if best == nil {
		return ""
	}
	switch best.Kind.Name {
	case KindLogicCSV:
		return fmt.Sprintf("tracekit threads %s messages.txt", path)
	default:
		return fmt.Sprintf("tracekit %s %s", best.Kind.Decoder, path)
	}
}
