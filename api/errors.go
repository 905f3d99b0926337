package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/scribe/pkg/chat"
	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/relay"
	"github.com/papercomputeco/scribe/pkg/session"
)

// statusFor maps domain errors to HTTP status codes. Persistence and
// unknown errors are 500.
func statusFor(err error) int {
	var (
		invalid   *session.InvalidNameError
		transport *relay.TransportError
	)

	switch {
	case errors.As(err, &invalid), errors.Is(err, chat.ErrEmptyPrompt), errors.Is(err, chat.ErrEmptyDocument):
		return fiber.StatusBadRequest
	case errors.Is(err, chat.ErrStreamInFlight):
		return fiber.StatusConflict
	case errors.Is(err, chat.ErrRateLimited):
		return fiber.StatusTooManyRequests
	case errors.As(err, &transport):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"error", err,
		)
	}
	return c.Status(status).JSON(llm.ErrorResponse{Error: err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: msg})
}
