package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/session"
)

var (
	listSessionsToolName    = "list_sessions"
	listSessionsDescription = "List the saved chat sessions of a scribe user, most recently updated first, with their turn counts."

	readSessionToolName    = "read_session"
	readSessionDescription = "Read the full turn history of one saved scribe chat session. A session that does not exist reads as empty."
)

// ListSessionsInput represents the input arguments for the list_sessions tool.
type ListSessionsInput struct {
	Owner string `json:"owner" jsonschema:"the id of the user whose sessions to list"`
}

// SessionSummary describes one session in a listing. Timestamps are RFC 3339.
type SessionSummary struct {
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	Turns     int    `json:"turns"`
}

// ListSessionsOutput is the structured output of list_sessions.
type ListSessionsOutput struct {
	Sessions []SessionSummary `json:"sessions"`
}

// ReadSessionInput represents the input arguments for the read_session tool.
type ReadSessionInput struct {
	Owner string `json:"owner" jsonschema:"the id of the user who owns the session"`
	Name  string `json:"name" jsonschema:"the session name"`
}

// ReadSessionOutput is the structured output of read_session.
type ReadSessionOutput struct {
	Name    string     `json:"name"`
	History []llm.Turn `json:"history"`
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

func toolJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}, nil
}

func (s *Server) handleListSessions(ctx context.Context, _ *mcp.CallToolRequest, input ListSessionsInput) (*mcp.CallToolResult, ListSessionsOutput, error) {
	if err := session.ValidateOwner(input.Owner); err != nil {
		return toolError("%v", err), ListSessionsOutput{}, nil
	}

	metas, err := s.config.Store.List(ctx, input.Owner)
	if err != nil {
		s.config.Logger.Warn("mcp list_sessions failed", "owner", input.Owner, "error", err)
		return toolError("Listing sessions failed: %v", err), ListSessionsOutput{}, nil
	}
	output := ListSessionsOutput{Sessions: make([]SessionSummary, 0, len(metas))}
	for _, m := range metas {
		output.Sessions = append(output.Sessions, SessionSummary{
			Name:      m.Name,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
			UpdatedAt: m.UpdatedAt.Format(time.RFC3339),
			Turns:     m.Turns,
		})
	}
	result, err := toolJSON(output)
	if err != nil {
		return toolError("Failed to serialize results: %v", err), ListSessionsOutput{}, nil
	}
	return result, output, nil
}

func (s *Server) handleReadSession(ctx context.Context, _ *mcp.CallToolRequest, input ReadSessionInput) (*mcp.CallToolResult, ReadSessionOutput, error) {
	name, err := session.Validate(input.Owner, input.Name)
	if err != nil {
		return toolError("%v", err), ReadSessionOutput{}, nil
	}

	sess, err := s.config.Store.Load(ctx, input.Owner, name)
	if err != nil {
		s.config.Logger.Warn("mcp read_session failed", "owner", input.Owner, "session", name, "error", err)
		return toolError("Reading session failed: %v", err), ReadSessionOutput{}, nil
	}

	output := ReadSessionOutput{Name: name, History: sess.History}
	if output.History == nil {
		output.History = []llm.Turn{}
	}

	result, err := toolJSON(output)
	if err != nil {
		return toolError("Failed to serialize results: %v", err), ReadSessionOutput{}, nil
	}
	return result, output, nil
}
