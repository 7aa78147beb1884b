package textnorm

import (
	"fmt"
	"iter"
	"os"
	"strings"
	"unicode/utf8"
)

// Document is a fully decoded capture file.
// It is immutable once built and safe to iterate any number of times.
type Document struct {
	// Path is the file the document was read from, empty for in-memory input.
	Path string

	// Encoding is the encoding detected from the byte-order mark.
	Encoding Encoding

	text string
}

// Open reads and decodes the file at path.
// Read and decode failures are fatal; there is no partial document.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- capture paths are user-provided
	if err != nil {
		return nil, fmt.Errorf("reading capture file: %w", err)
	}

	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

// Decode builds a Document from raw bytes.
func Decode(data []byte) (*Document, error) {
	enc := DetectEncoding(data)
	text, err := decode(data, enc)
	if err != nil {
		return nil, err
	}
	return &Document{Encoding: enc, text: text}, nil
}

// FromString builds a Document from already decoded text.
func FromString(text string) *Document {
	return &Document{Encoding: EncodingUTF8, text: text}
}

// Lines returns the ASCII-filtered lines of the document.
// Lines are separated by "\n" with a trailing "\r" removed, and a final line
// terminator does not produce an empty last line. Breaking out of the range
// loop stops production; calling Lines again starts over from the top.
func (d *Document) Lines() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range d.NumberedLines() {
			if !yield(line) {
				return
			}
		}
	}
}

// NumberedLines is Lines paired with 1-based line numbers.
func (d *Document) NumberedLines() iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		rest := d.text
		for n := 1; rest != ""; n++ {
			line, tail, found := strings.Cut(rest, "\n")
			if !found {
				tail = ""
			}
			rest = tail

			if !yield(n, ASCIIOnly(strings.TrimSuffix(line, "\r"))) {
				return
			}
		}
	}
}

// ASCIIOnly drops every non-ASCII character from s.
func ASCIIOnly(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r < utf8.RuneSelf {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
