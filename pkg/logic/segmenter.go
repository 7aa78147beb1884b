package logic

import (
	"strings"
	"unicode/utf8"
)

// segmenter accumulates MOSI tokens into line-feed terminated segments.
type segmenter struct {
	buf     []byte
	start   float64
	started bool
}

// feed consumes one row. It returns a candidate message when the row closes
// a segment with non-blank content.
func (s *segmenter) feed(ts float64, token string) (Message, bool) {
	if !s.started {
		s.start = ts
		s.started = true
	}

	switch {
	case token == TokenNUL || token == TokenSpace:
		// Runs of padding collapse into a single space.
		if len(s.buf) == 0 || s.buf[len(s.buf)-1] != ' ' {
			s.buf = append(s.buf, ' ')
		}
	case token == TokenLineFeed:
		content := strings.TrimSpace(string(s.buf))
		start := s.start
		s.buf = s.buf[:0]
		s.started = false
		if content == "" {
			return Message{}, false
		}
		return Message{Timestamp: start, Content: content}, true
	case utf8.RuneCountInString(token) == 1:
		s.buf = append(s.buf, token...)
	}

	return Message{}, false
}
