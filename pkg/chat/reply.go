package chat

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/relay"
	"github.com/papercomputeco/scribe/pkg/turnlog"
)

// Result describes how a reply ended.
type Result struct {
	// Content is the reply text after transforms. For an incomplete reply it
	// is the partial text received before the stream ended.
	Content string

	// Turn is the assistant turn appended to the log, nil when none was.
	Turn *llm.Turn

	// Appended reports whether an assistant turn was added to the log.
	Appended bool

	// Incomplete is set when the stream ended without completing: abandoned
	// by the caller, cancelled, or cut off by a read error.
	Incomplete bool

	// Abandoned is set when the stream was closed before it terminated.
	Abandoned bool

	// StreamErr is the read error that cut the stream short, if any.
	StreamErr error

	Fragments int
	Malformed int
	Duration  time.Duration
}

// Reply is an open upstream stream for one submitted message. Next and
// Fragments must be called from a single goroutine; Abandon may be called
// from any goroutine.
type Reply struct {
	svc     *Service
	log     *turnlog.TurnLog
	target  Target
	stream  *relay.Stream
	started time.Time

	release func()
	stop    func() bool
	saveErr error

	finishOnce sync.Once
	result     Result
	err        error
}

// Next blocks until the next fragment arrives. It returns false when the
// stream has ended.
func (r *Reply) Next() (string, bool) {
	return r.stream.Next()
}

// Fragments iterates over the remaining fragments.
func (r *Reply) Fragments() iter.Seq[string] {
	return r.stream.Fragments()
}

// Content is the text received so far.
func (r *Reply) Content() string {
	return r.stream.Content()
}

// SubmitErr is the error from saving the user turn, if that save failed.
// The turn is still in the log and is saved again with the next commit.
func (r *Reply) SubmitErr() error {
	return r.saveErr
}

// Abandon closes the upstream connection. Fragments already received stay
// received; Finish will not append an assistant turn.
func (r *Reply) Abandon() error {
	return r.stream.Close()
}

// Finish closes the stream and applies the finalization policy: a complete
// stream with non-blank content is appended to the log as an assistant turn
// and committed. Anything else appends nothing and is reported as
// incomplete with its partial content.
//
// A returned error is either a persistence failure of the assistant turn,
// in which case the turn is in the log and Result.Appended is true, or a
// rejected turn (content that is not valid UTF-8), which appends nothing.
func (r *Reply) Finish(ctx context.Context) (Result, error) {
	r.finishOnce.Do(func() {
		r.result, r.err = r.finish(ctx)
	})
	return r.result, r.err
}

func (r *Reply) finish(ctx context.Context) (Result, error) {
	defer r.release()
	r.stop()
	_ = r.stream.Close()

	s := r.svc
	res := Result{
		Content:    r.stream.Final(),
		Incomplete: !r.stream.Complete(),
		Abandoned:  r.stream.Abandoned(),
		StreamErr:  r.stream.Err(),
		Fragments:  r.stream.Count(),
		Malformed:  r.stream.Malformed(),
		Duration:   time.Since(r.started),
	}

	attrs := []any{
		"provider", r.target.Name,
		"owner", r.log.Owner(),
		"session", r.log.Name(),
		"fragments", res.Fragments,
		"malformed", res.Malformed,
		"duration", res.Duration,
	}

	if res.Incomplete {
		s.logger.Info("reply incomplete, not saved", append(attrs,
			"abandoned", res.Abandoned,
			"error", res.StreamErr,
		)...)
		return res, nil
	}

	if strings.TrimSpace(res.Content) == "" {
		s.logger.Info("reply empty, not saved", attrs...)
		return res, nil
	}

	turn := llm.NewTurn(llm.RoleAssistant, res.Content)
	if err := r.log.Append(turn); err != nil {
		if errors.Is(err, turnlog.ErrDetached) {
			s.logger.Info("session removed, reply not saved", attrs...)
			return res, nil
		}
		return res, err
	}
	res.Turn = &turn
	res.Appended = true
	s.publishTurn(ctx, r.log, r.target, r.log.Len()-1)

	s.logger.Info("reply complete", attrs...)
	return res, s.commit(ctx, r.log)
}
