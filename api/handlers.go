package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/provider"
	"github.com/papercomputeco/scribe/pkg/session"
)

// ProvidersResponse lists what a message can be sent to.
type ProvidersResponse struct {
	Default  string            `json:"default"`
	Presets  []provider.Preset `json:"presets"`
	Adapters []string          `json:"adapters"`
	Scenes   []string          `json:"scenes"`
}

// SessionsResponse is the session listing of one owner.
type SessionsResponse struct {
	Count    int            `json:"count"`
	Sessions []session.Meta `json:"sessions"`
}

// SessionResponse is one session with its history.
type SessionResponse struct {
	Name      string     `json:"name"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	History   []llm.Turn `json:"history"`
}

// CreateSessionRequest names a new session; an empty name picks "chat_<n>".
type CreateSessionRequest struct {
	Name string `json:"name"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleProviders(c *fiber.Ctx) error {
	return c.JSON(ProvidersResponse{
		Default:  s.deps.Resolver.Defaults().Provider,
		Presets:  provider.Presets(),
		Adapters: provider.SupportedProviders(),
		Scenes:   llm.SceneNames(),
	})
}

// requireOwner rejects requests without a valid owner header and stores the
// owner in the request locals.
func (s *Server) requireOwner(c *fiber.Ctx) error {
	owner := strings.TrimSpace(c.Get(OwnerHeader))
	if err := session.ValidateOwner(owner); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(llm.ErrorResponse{Error: OwnerHeader + " header is required: " + err.Error()})
	}
	c.Locals(ownerLocal, owner)
	return c.Next()
}

const ownerLocal = "scribe.owner"

func owner(c *fiber.Ctx) string {
	o, _ := c.Locals(ownerLocal).(string)
	return o
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	metas, err := s.deps.Registry.Store().List(c.Context(), owner(c))
	if err != nil {
		return s.fail(c, err)
	}
	if metas == nil {
		metas = []session.Meta{}
	}
	return c.JSON(SessionsResponse{Count: len(metas), Sessions: metas})
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	log, err := s.deps.Registry.Create(c.Context(), owner(c), req.Name)
	if err != nil {
		return s.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(SessionResponse{
		Name:    log.Name(),
		History: log.Turns(),
	})
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	name, err := session.Validate(owner(c), c.Params("name"))
	if err != nil {
		return s.fail(c, err)
	}

	sess, err := s.deps.Registry.Store().Load(c.Context(), owner(c), name)
	if err != nil {
		return s.fail(c, err)
	}

	resp := SessionResponse{Name: name, History: sess.History}
	if !sess.CreatedAt.IsZero() {
		resp.CreatedAt = &sess.CreatedAt
		resp.UpdatedAt = &sess.UpdatedAt
	}
	if resp.History == nil {
		resp.History = []llm.Turn{}
	}
	return c.JSON(resp)
}

func (s *Server) handleRemoveSession(c *fiber.Ctx) error {
	if err := s.deps.Registry.Remove(c.Context(), owner(c), c.Params("name")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
