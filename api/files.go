package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/scribe/pkg/chat"
	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/media"
)

// AttachResponse reports the system turn an uploaded document became.
type AttachResponse struct {
	Turn llm.Turn `json:"turn"`

	// Appended is false when the session already held the same text.
	Appended bool `json:"appended"`
}

// SlidesRequest asks for a deck generated from a description.
type SlidesRequest struct {
	Text string `json:"text"`
}

// SlidesResponse carries the download URL of the deck.
type SlidesResponse struct {
	URL string `json:"url"`
}

// handleAttach extracts the text of an uploaded document with the selected
// provider and adds it to the session as context for later messages.
func (s *Server) handleAttach(c *fiber.Ctx) error {
	if s.deps.Extractors == nil {
		return notConfigured(c, "document extraction")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "multipart field \"file\" is required")
	}
	if _, err := media.DocumentType(fh.Filename); err != nil {
		return badRequest(c, err.Error())
	}

	log, err := s.deps.Registry.Get(c.Context(), owner(c), c.Params("name"))
	if err != nil {
		return s.fail(c, err)
	}

	target, err := s.deps.Resolver.Resolve(chat.Selection{
		Provider: c.FormValue("provider"),
		Model:    c.FormValue("model"),
		Scene:    c.FormValue("scene"),
	})
	if err != nil {
		return badRequest(c, err.Error())
	}

	extractor, err := s.deps.Extractors(target)
	if err != nil {
		return badRequest(c, err.Error())
	}

	f, err := fh.Open()
	if err != nil {
		return s.fail(c, err)
	}
	defer f.Close()

	text, err := extractor.Extract(c.Context(), f, fh.Filename)
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedDocument) {
			return badRequest(c, err.Error())
		}
		s.logger.Warn("document extraction failed",
			"owner", owner(c),
			"provider", target.Name,
			"file", fh.Filename,
			"error", err,
		)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	res, err := s.deps.Service.Attach(c.Context(), log, fh.Filename, text)
	if err != nil {
		return s.fail(c, err)
	}

	status := fiber.StatusCreated
	if !res.Appended {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(AttachResponse{Turn: res.Turn, Appended: res.Appended})
}

func (s *Server) handleSlides(c *fiber.Ctx) error {
	if s.deps.Slides == nil {
		return notConfigured(c, "slide generation")
	}

	var req SlidesRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return badRequest(c, "text is required")
	}

	deck, err := s.deps.Slides.MakeSlides(c.Context(), req.Text)
	if err != nil {
		s.logger.Warn("slide generation failed", "owner", owner(c), "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(SlidesResponse{URL: deck})
}
