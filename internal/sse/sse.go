// Package sse implements a minimal Server-Sent Events reader covering the
// subset of the format MCP streamable HTTP responses use: comment lines,
// multi-line data fields and blank-line event boundaries.
package sse

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// Scanner reads events from a stream and exposes the joined "data:" payload
// of each one.
type Scanner struct {
	r    *bufio.Reader
	data bytes.Buffer
	err  error
}

// NewScanner wraps r for event-by-event reading.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReader(r)}
}

// Next advances to the next event boundary. It returns false when the stream
// ends or fails; Err distinguishes the two. After a true return, Data holds
// the event payload.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}
	s.data.Reset()

	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			if err == io.EOF && s.data.Len() > 0 {
				s.err = io.EOF
				return true
			}
			s.err = err
			return false
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return true
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
		if s.data.Len() > 0 {
			s.data.WriteByte('\n')
		}
		s.data.WriteString(payload)
	}
}

// Data returns the payload of the current event.
func (s *Scanner) Data() []byte { return s.data.Bytes() }

// Err returns the terminal error, if any. A clean EOF is not an error.
func (s *Scanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
