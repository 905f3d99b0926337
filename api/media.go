package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/scribe/pkg/llm"
)

// TranscriptionResponse is the recognized text of an uploaded recording.
type TranscriptionResponse struct {
	Text string `json:"text"`
}

// ImageRequest asks for one generated image.
type ImageRequest struct {
	Prompt string `json:"prompt"`
}

// ImageResponse carries the generated image URL.
type ImageResponse struct {
	URL string `json:"url"`
}

func notConfigured(c *fiber.Ctx, what string) error {
	return c.Status(fiber.StatusNotImplemented).JSON(llm.ErrorResponse{Error: what + " is not configured"})
}

func (s *Server) handleTranscribe(c *fiber.Ctx) error {
	if s.deps.Transcriber == nil {
		return notConfigured(c, "transcription")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "multipart field \"file\" is required")
	}

	f, err := fh.Open()
	if err != nil {
		return s.fail(c, err)
	}
	defer f.Close()

	text, err := s.deps.Transcriber.Transcribe(c.Context(), f, fh.Filename)
	if err != nil {
		s.logger.Warn("transcription failed", "owner", owner(c), "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(TranscriptionResponse{Text: text})
}

func (s *Server) handleImagine(c *fiber.Ctx) error {
	if s.deps.Imager == nil {
		return notConfigured(c, "image generation")
	}

	var req ImageRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		return badRequest(c, "prompt is required")
	}

	url, err := s.deps.Imager.Generate(c.Context(), req.Prompt)
	if err != nil {
		s.logger.Warn("image generation failed", "owner", owner(c), "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(ImageResponse{URL: url})
}
