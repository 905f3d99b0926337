// Package chat runs one user message through a provider and back into the
// session: append the user turn, stream the reply, then append the
// assistant turn when the stream completes.
package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/papercomputeco/scribe/pkg/eventstream"
	"github.com/papercomputeco/scribe/pkg/eventstream/nop"
	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/logger"
	"github.com/papercomputeco/scribe/pkg/provider"
	"github.com/papercomputeco/scribe/pkg/relay"
	"github.com/papercomputeco/scribe/pkg/turnlog"
)

// Target is where a message is sent: an adapter, the binding it needs and
// the name the user picked it by (a preset such as "deepseek").
type Target struct {
	Name     string
	Provider provider.Provider
	Binding  llm.Binding

	// Transforms are applied to this reply's final content after the
	// service-wide transforms.
	Transforms []relay.Transform
}

// Service submits user messages and finalizes replies. It is safe for
// concurrent use across sessions; each session streams one reply at a time.
type Service struct {
	client    *http.Client
	relay     *relay.Relay
	publisher eventstream.Publisher
	logger    *slog.Logger

	limit rate.Limit
	burst int

	mu       sync.Mutex
	inflight map[string]struct{}
	limiters map[string]*rate.Limiter
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient sets the client used for upstream calls.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		s.client = c
	}
}

// WithPublisher sets where turn and save events go.
func WithPublisher(p eventstream.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithLogger sets the service logger. The relay logs through it too.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithTransform registers a post-processing transform for every reply.
func WithTransform(t relay.Transform) Option {
	return func(s *Service) {
		s.relay = s.relay.With(relay.WithTransform(t))
	}
}

// WithRawCapture tees every upstream stream line to w.
func WithRawCapture(w io.Writer) Option {
	return func(s *Service) {
		s.relay = s.relay.With(relay.WithRawCapture(w))
	}
}

// WithRateLimit allows each owner r submissions per second with the given
// burst. A zero r disables limiting.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(s *Service) {
		s.limit = r
		s.burst = burst
	}
}

// NewService creates a Service.
func NewService(opts ...Option) *Service {
	s := &Service{
		client:    http.DefaultClient,
		relay:     relay.New(),
		publisher: nop.NewPublisher(),
		logger:    logger.Nop(),
		inflight:  make(map[string]struct{}),
		limiters:  make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.relay = s.relay.With(relay.WithLogger(s.logger))
	return s
}

// Submit appends prompt as a user turn, saves it when the session is named,
// and opens the upstream stream. The returned Reply must be finished with
// Reply.Finish.
//
// If the upstream call fails the user turn stays in the log and the error is
// returned; a *relay.TransportError carries the upstream status.
func (s *Service) Submit(ctx context.Context, log *turnlog.TurnLog, target Target, prompt string) (*Reply, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if target.Provider == nil {
		return nil, fmt.Errorf("no provider for %q", target.Name)
	}

	key := flightKey(log)
	if !s.acquire(key) {
		return nil, ErrStreamInFlight
	}

	released := false
	release := func() {
		if !released {
			released = true
			s.release(key)
		}
	}

	if !s.allow(log.Owner()) {
		release()
		return nil, ErrRateLimited
	}

	if err := log.Append(llm.NewTurn(llm.RoleUser, prompt)); err != nil {
		release()
		return nil, err
	}
	s.publishTurn(ctx, log, target, log.Len()-1)

	// a failed save leaves the turn in memory; the next commit retries it
	saveErr := s.commit(ctx, log)

	reply, err := s.open(ctx, log, target)
	if err != nil {
		release()
		return nil, err
	}

	reply.release = release
	reply.saveErr = saveErr
	return reply, nil
}

// AttachResult is the outcome of Attach.
type AttachResult struct {
	Turn llm.Turn

	// Appended is false when the same document was already in the session.
	Appended bool
}

// Attach adds a document's extracted text to the session as a system turn so
// later replies can use it, and saves the session when it is named. A
// document already in the session is not added twice. Attaching while a
// reply streams fails with ErrStreamInFlight.
func (s *Service) Attach(ctx context.Context, log *turnlog.TurnLog, filename, text string) (AttachResult, error) {
	if strings.TrimSpace(text) == "" {
		return AttachResult{}, fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}

	key := flightKey(log)
	if !s.acquire(key) {
		return AttachResult{}, ErrStreamInFlight
	}
	defer s.release(key)

	turn := llm.NewTurn(llm.RoleSystem, text)
	added, err := log.AppendUnique(turn)
	if err != nil {
		return AttachResult{}, err
	}
	if !added {
		return AttachResult{Turn: turn}, nil
	}

	s.logger.Debug("document attached",
		"owner", log.Owner(),
		"session", log.Name(),
		"file", filename,
		"chars", len(text),
	)
	s.publishTurn(ctx, log, Target{}, log.Len()-1)

	if err := s.commit(ctx, log); err != nil {
		return AttachResult{Turn: turn, Appended: true}, err
	}
	return AttachResult{Turn: turn, Appended: true}, nil
}

func (s *Service) open(ctx context.Context, log *turnlog.TurnLog, target Target) (*Reply, error) {
	req, err := target.Provider.NewRequest(ctx, target.Binding, log.Turns())
	if err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &relay.TransportError{Err: err}
	}

	opts := target.Provider.RelayOptions()
	for _, t := range target.Transforms {
		opts = append(opts, relay.WithTransform(t))
	}

	stream, err := s.relay.With(opts...).Open(resp)
	if err != nil {
		s.logger.Warn("upstream rejected request",
			"provider", target.Name,
			"owner", log.Owner(),
			"session", log.Name(),
			"error", err,
		)
		return nil, err
	}

	s.logger.Debug("stream opened",
		"provider", target.Name,
		"model", target.Binding.Model,
		"session", log.Name(),
		"status", resp.StatusCode,
	)

	return &Reply{
		svc:     s,
		log:     log,
		target:  target,
		stream:  stream,
		started: started,
		stop:    context.AfterFunc(ctx, func() { _ = stream.Close() }),
	}, nil
}

func (s *Service) commit(ctx context.Context, log *turnlog.TurnLog) error {
	if log.Name() == "" || log.Detached() {
		return nil
	}

	if err := log.CommitIfNamed(ctx); err != nil {
		s.logger.Error("session save failed",
			"owner", log.Owner(),
			"session", log.Name(),
			"error", err,
		)
		return err
	}

	event := eventstream.NewSessionEvent(eventstream.EventTypeSessionSaved, log.Owner(), log.Name())
	event.Turns = log.Len()
	s.publish(ctx, event)
	return nil
}

func (s *Service) publishTurn(ctx context.Context, log *turnlog.TurnLog, target Target, index int) {
	turns := log.Turns()
	if index < 0 || index >= len(turns) {
		return
	}

	event := eventstream.NewSessionEvent(eventstream.EventTypeTurnAppended, log.Owner(), log.Name())
	turn := turns[index]
	event.Turn = &turn
	event.TurnIndex = index
	event.Turns = len(turns)
	if turn.Role == llm.RoleAssistant {
		event.Source = eventstream.EventSource{Provider: target.Name, Model: target.Binding.Model}
	}
	s.publish(ctx, event)
}

func (s *Service) publish(ctx context.Context, event *eventstream.SessionEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Debug("event publish failed", "event_type", event.EventType, "error", err)
	}
}

func (s *Service) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *Service) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
}

func (s *Service) allow(owner string) bool {
	if s.limit == 0 {
		return true
	}

	s.mu.Lock()
	lim, ok := s.limiters[owner]
	if !ok {
		lim = rate.NewLimiter(s.limit, max(s.burst, 1))
		s.limiters[owner] = lim
	}
	s.mu.Unlock()

	return lim.Allow()
}

// flightKey identifies a session for the in-flight guard. Scratch logs have
// no name, so they are keyed by identity.
func flightKey(log *turnlog.TurnLog) string {
	if name := log.Name(); name != "" {
		return "session:" + log.Owner() + "/" + name
	}
	return fmt.Sprintf("scratch:%p", log)
}
