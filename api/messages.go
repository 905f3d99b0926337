package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/scribe/pkg/chat"
	"github.com/papercomputeco/scribe/pkg/llm"
)

// MessageRequest submits one user message to a session.
type MessageRequest struct {
	Content  string `json:"content"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Scene    string `json:"scene,omitempty"`
}

// FragmentEvent is the data of each unnamed SSE event.
type FragmentEvent struct {
	Fragment string `json:"fragment"`
}

// DoneEvent is the data of the final "done" SSE event.
type DoneEvent struct {
	// Turn is the appended assistant turn, nil when nothing was saved.
	Turn       *llm.Turn `json:"turn"`
	Content    string    `json:"content"`
	Incomplete bool      `json:"incomplete"`

	// Error describes why an incomplete stream stopped, when known.
	Error string `json:"error,omitempty"`

	// SaveError is set when the user turn could not be saved before the
	// request went upstream.
	SaveError string `json:"save_error,omitempty"`
}

func (s *Server) handleSendMessage(c *fiber.Ctx) error {
	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	log, err := s.deps.Registry.Get(c.Context(), owner(c), c.Params("name"))
	if err != nil {
		return s.fail(c, err)
	}

	target, err := s.deps.Resolver.Resolve(chat.Selection{
		Provider: req.Provider,
		Model:    req.Model,
		Scene:    req.Scene,
	})
	if err != nil {
		return badRequest(c, err.Error())
	}

	// fasthttp recycles the request context once the handler returns, but
	// the reply streams after that from its own goroutine.
	ctx, cancel := context.WithCancel(context.Background())

	reply, err := s.deps.Service.Submit(ctx, log, target, req.Content)
	if err != nil {
		cancel()
		return s.fail(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// pw.Write blocks until fasthttp flushes the chunk, so fragments reach
	// the client as they arrive.
	pr, pw := io.Pipe()
	go func() {
		defer cancel()
		s.streamReply(ctx, reply, pw)
	}()
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// streamReply forwards fragments to pw and finishes with a "done" event, or
// an "error" event when the assistant turn could not be saved. A client that
// goes away abandons the reply.
func (s *Server) streamReply(ctx context.Context, reply *chat.Reply, pw *io.PipeWriter) {
	defer pw.Close()

	for fragment := range reply.Fragments() {
		if err := writeEvent(pw, "", FragmentEvent{Fragment: fragment}); err != nil {
			s.logger.Debug("client went away, abandoning reply", "error", err)
			_ = reply.Abandon()
			break
		}
	}

	res, err := reply.Finish(ctx)
	if err != nil {
		// the assistant turn is in the open log but not on disk
		if err := writeEvent(pw, "error", llm.ErrorResponse{Error: err.Error()}); err != nil {
			s.logger.Debug("could not deliver error event", "error", err)
		}
		return
	}

	done := DoneEvent{
		Turn:       res.Turn,
		Content:    res.Content,
		Incomplete: res.Incomplete,
	}
	if res.StreamErr != nil {
		done.Error = res.StreamErr.Error()
	}
	if submitErr := reply.SubmitErr(); submitErr != nil {
		done.SaveError = submitErr.Error()
	}

	if err := writeEvent(pw, "done", done); err != nil {
		s.logger.Debug("could not deliver done event", "error", err)
	}
}

func writeEvent(w io.Writer, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
