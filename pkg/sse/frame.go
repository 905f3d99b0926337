// Package sse provides a minimal line-framed reader for the streaming bodies
// of OpenAI-style chat completion providers. Each significant line has the
// form "data: <payload>" and the payload is handed to the caller verbatim,
// while the raw bytes may be teed to a secondary writer for capture.
//
// This package intentionally does NOT implement the full event-stream
// grammar: "event:" and "id:" fields, comments and blank lines are skipped,
// and multi-line data fields are not joined.
package sse

// DataPrefix is the case-sensitive framing prefix of a significant line.
const DataPrefix = "data: "

// Frame is one significant line of the stream.
type Frame struct {
	// Data is the line with DataPrefix removed and surrounding whitespace
	// trimmed.
	Data string

	// Line is the 1-based line number within the stream, for diagnostics.
	Line int
}
