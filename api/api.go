package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/scribe/pkg/chat"
	"github.com/papercomputeco/scribe/pkg/logger"
	"github.com/papercomputeco/scribe/pkg/media"
)

// OwnerHeader carries the id of the user a request acts for.
const OwnerHeader = "X-Scribe-User"

// Deps are the collaborators the server routes to. The media collaborators
// and MCP are optional; their routes answer 501 when unset.
type Deps struct {
	Registry *chat.Registry
	Service  *chat.Service
	Resolver *chat.Resolver

	Transcriber media.Transcriber
	Imager      media.Imager
	Slides      media.SlideMaker

	// Extractors returns the document extractor for a resolved target.
	Extractors func(chat.Target) (media.Extractor, error)

	MCP http.Handler
}

// Server is the scribe API server.
type Server struct {
	config Config
	deps   Deps
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
func NewServer(config Config, deps Deps, l *slog.Logger) (*Server, error) {
	if deps.Registry == nil {
		return nil, errors.New("session registry is required")
	}
	if deps.Service == nil {
		return nil, errors.New("chat service is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("target resolver is required")
	}
	if l == nil {
		l = logger.Nop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             32 * 1024 * 1024,
		UnescapePath:          true,
	})

	s := &Server{
		config: config,
		deps:   deps,
		logger: l,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/providers", s.handleProviders)

	v1 := app.Group("/v1", s.requireOwner)
	v1.Get("/sessions", s.handleListSessions)
	v1.Post("/sessions", s.handleCreateSession)
	v1.Get("/sessions/:name", s.handleGetSession)
	v1.Delete("/sessions/:name", s.handleRemoveSession)
	v1.Post("/sessions/:name/messages", s.handleSendMessage)
	v1.Post("/sessions/:name/files", s.handleAttach)
	v1.Post("/transcriptions", s.handleTranscribe)
	v1.Post("/images", s.handleImagine)
	v1.Post("/slides", s.handleSlides)

	if deps.MCP != nil {
		app.All("/mcp", adaptor.HTTPHandler(deps.MCP))
		app.All("/mcp/*", adaptor.HTTPHandler(deps.MCP))
	}

	return s, nil
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
