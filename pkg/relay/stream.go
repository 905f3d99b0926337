package relay

import (
	"io"
	"iter"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/scribe/pkg/sse"
	"github.com/papercomputeco/scribe/pkg/utils"
)

// Stream is a lazy, finite, non-restartable sequence of fragments read from
// one upstream response.
//
// Next must be called from a single goroutine. Close may be called from any
// goroutine, including while Next is blocked on the network; it abandons the
// stream and closes the connection.
type Stream struct {
	relay  *Relay
	body   io.ReadCloser
	reader *sse.TeeReader

	pending []string
	seen    map[string]struct{}
	content strings.Builder

	fragments int
	malformed int

	done      atomic.Bool
	complete  bool
	err       error
	abandoned atomic.Bool
	closeOnce sync.Once
}

// Next blocks until the next fragment is available. It returns false once the
// stream has terminated: done token, end of body, read error or Close.
func (s *Stream) Next() (string, bool) {
	for {
		if s.abandoned.Load() {
			s.done.Store(true)
			return "", false
		}

		if len(s.pending) > 0 {
			fragment := s.pending[0]
			s.pending = s.pending[1:]
			s.content.WriteString(fragment)
			s.fragments++
			return fragment, true
		}

		if s.done.Load() {
			return "", false
		}

		frame, err := s.reader.Next()
		switch {
		case err != nil:
			s.terminate(false, err)
			continue
		case frame == nil:
			s.terminate(true, nil)
			continue
		case frame.Data == s.relay.doneToken:
			s.terminate(true, nil)
			continue
		}

		deltas, ok := s.relay.extract(frame.Data)
		if !ok {
			s.malformed++
			s.relay.logger.Debug("skipping malformed stream frame",
				"line", frame.Line,
				"data", utils.Truncate(frame.Data, 128),
			)
			continue
		}

		for _, d := range deltas {
			if s.seen != nil {
				if _, dup := s.seen[d]; dup {
					continue
				}
				s.seen[d] = struct{}{}
			}
			s.pending = append(s.pending, d)
		}
	}
}

// Fragments returns the remaining fragments as an iterator. Breaking out of
// the loop early leaves the stream open; call Close to abandon it.
func (s *Stream) Fragments() iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			fragment, ok := s.Next()
			if !ok || !yield(fragment) {
				return
			}
		}
	}
}

// Content is the ordered concatenation of every fragment yielded so far.
func (s *Stream) Content() string {
	return s.content.String()
}

// Final is Content with the relay's transforms applied.
func (s *Stream) Final() string {
	return s.relay.finalize(s.content.String())
}

// Complete reports whether the stream ended with the done token or a clean
// end of body. Abandoned and failed streams are not complete.
func (s *Stream) Complete() bool {
	return s.complete
}

// Abandoned reports whether Close was called before the stream terminated.
func (s *Stream) Abandoned() bool {
	return s.abandoned.Load()
}

// Err returns the read error that ended the stream early, if any.
// Errors caused by Close are not reported.
func (s *Stream) Err() error {
	return s.err
}

// Count is the number of fragments yielded so far.
func (s *Stream) Count() int { return s.fragments }

// Malformed is the number of frames skipped because they were not valid JSON.
func (s *Stream) Malformed() int { return s.malformed }

// Close releases the connection. Closing a stream that has not terminated
// abandons it; fragments already yielded stay yielded.
func (s *Stream) Close() error {
	if !s.done.Load() {
		s.abandoned.Store(true)
	}
	return s.closeBody()
}

func (s *Stream) terminate(complete bool, err error) {
	s.done.Store(true)
	if s.abandoned.Load() {
		// the read error was caused by Close
		err = nil
		complete = false
	}
	s.complete = complete
	s.err = err
	_ = s.closeBody()
}

func (s *Stream) closeBody() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}
