// Package relay turns the streaming body of a chat completion provider into
// an ordered sequence of text fragments and a final assistant message.
//
// A Relay is configured once per provider (delta path, done token, dedupe
// policy, post-processing transforms) and opens one Stream per upstream
// response. Streams are blocking pulls over the response body: each call to
// Stream.Next suspends until the network delivers the next line.
package relay

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/scribe/pkg/logger"
	"github.com/papercomputeco/scribe/pkg/sse"
)

const (
	// DefaultDeltaPath is the gjson path of the incremental text in an
	// OpenAI-style chat completion chunk.
	DefaultDeltaPath = "choices.0.delta.content"

	// DefaultDoneToken terminates an OpenAI-style stream.
	DefaultDoneToken = "[DONE]"

	// maxErrorBody caps how much of a failed response body is kept.
	maxErrorBody = 2 * 1024
)

// Relay holds the provider-specific parsing policy shared by its streams.
type Relay struct {
	deltaPath  string
	doneToken  string
	dedupe     bool
	transforms []Transform
	rawCapture io.Writer
	logger     *slog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithDeltaPath sets the gjson path of the text delta within a frame.
// A path that resolves to an array (e.g. "messages.#.text") yields one
// fragment per non-empty string element.
func WithDeltaPath(path string) Option {
	return func(r *Relay) {
		if path != "" {
			r.deltaPath = path
		}
	}
}

// WithDoneToken sets the payload that terminates the stream.
func WithDoneToken(token string) Option {
	return func(r *Relay) {
		if token != "" {
			r.doneToken = token
		}
	}
}

// WithDedupe drops any fragment whose exact text was already yielded by the
// same stream. Some providers resend cumulative message parts.
func WithDedupe() Option {
	return func(r *Relay) {
		r.dedupe = true
	}
}

// WithTransform registers a post-processing transform applied to the
// accumulated content by Stream.Final, in registration order.
func WithTransform(t Transform) Option {
	return func(r *Relay) {
		if t != nil {
			r.transforms = append(r.transforms, t)
		}
	}
}

// WithRawCapture tees every raw line of every stream to w.
func WithRawCapture(w io.Writer) Option {
	return func(r *Relay) {
		r.rawCapture = w
	}
}

// WithLogger sets the logger used to report skipped frames.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Relay for OpenAI-style streams, adjusted by opts.
func New(opts ...Option) *Relay {
	r := &Relay{
		deltaPath: DefaultDeltaPath,
		doneToken: DefaultDoneToken,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// With returns a copy of r with opts applied on top of its configuration.
func (r *Relay) With(opts ...Option) *Relay {
	cp := *r
	cp.transforms = append([]Transform(nil), r.transforms...)
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// Open starts relaying resp. A non-2xx status is returned as a
// *TransportError without reading the body as a stream; the body is closed
// in that case. On success the returned Stream owns resp.Body.
func (r *Relay) Open(resp *http.Response) (*Stream, error) {
	if resp == nil {
		return nil, errors.New("nil response")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	return r.Read(resp.Body), nil
}

// Read relays an already-validated body.
func (r *Relay) Read(body io.ReadCloser) *Stream {
	dest := r.rawCapture
	if dest == nil {
		dest = io.Discard
	}

	s := &Stream{
		relay:  r,
		body:   body,
		reader: sse.NewTeeReader(body, dest),
	}
	if r.dedupe {
		s.seen = make(map[string]struct{})
	}
	return s
}

// extract returns the text deltas carried by one frame payload.
// ok is false when the payload is not valid JSON.
func (r *Relay) extract(data string) (deltas []string, ok bool) {
	if !gjson.Valid(data) {
		return nil, false
	}

	res := gjson.Get(data, r.deltaPath)
	if !res.Exists() {
		return nil, true
	}

	if res.IsArray() {
		for _, el := range res.Array() {
			if el.Type == gjson.String && el.Str != "" {
				deltas = append(deltas, el.Str)
			}
		}
		return deltas, true
	}

	if res.Type == gjson.String && res.Str != "" {
		deltas = append(deltas, res.Str)
	}
	return deltas, true
}

// finalize applies every registered transform to content.
func (r *Relay) finalize(content string) string {
	for _, t := range r.transforms {
		content = t(content)
	}
	return content
}
