package sse

import (
	"bufio"
	"io"
	"strings"
)

const (
	initialBufferSize = 64 * 1024
	maxLineSize       = 1024 * 1024
)

// TeeReader reads frames from a source io.Reader while writing every raw
// line, newline included, to a destination io.Writer.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │ TeeReader.Next() │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Frame       │
// └──────────────────┘
type TeeReader struct {
	scanner *bufio.Scanner
	dest    io.Writer
	line    int
}

// NewTeeReader returns a reader that parses frames from src and writes all
// raw bytes through to dest.
func NewTeeReader(src io.Reader, dest io.Writer) *TeeReader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, initialBufferSize), maxLineSize)

	return &TeeReader{
		scanner: scanner,
		dest:    dest,
	}
}

// NewReader returns a reader that parses frames from src and discards the
// raw bytes.
func NewReader(src io.Reader) *TeeReader {
	return NewTeeReader(src, io.Discard)
}

// Next returns the next frame. It blocks until a complete line is available.
// Next returns nil, nil when the source is exhausted.
func (r *TeeReader) Next() (*Frame, error) {
	for r.scanner.Scan() {
		raw := r.scanner.Text()
		r.line++

		// bufio.Scanner strips the newline from Scan() so we reinsert it here.
		if _, err := io.WriteString(r.dest, raw+"\n"); err != nil {
			return nil, err
		}

		// Some providers terminate lines with CRLF.
		raw = strings.TrimSuffix(raw, "\r")

		payload, ok := strings.CutPrefix(raw, DataPrefix)
		if !ok {
			continue
		}

		return &Frame{
			Data: strings.TrimSpace(payload),
			Line: r.line,
		}, nil
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	return nil, nil
}
