// Package mcp provides an MCP (Model Context Protocol) server exposing
// scribe sessions as read-only tools.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/scribe/pkg/session"
	"github.com/papercomputeco/scribe/pkg/utils"
)

type Config struct {
	// Store is read by the session tools.
	Store session.Store

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the session tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "scribe",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Store == nil {
			return nil, errors.New("session store is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        listSessionsToolName,
			Description: listSessionsDescription,
		}, s.handleListSessions)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        readSessionToolName,
			Description: readSessionDescription,
		}, s.handleReadSession)
	}

	s.mcpServer = mcpServer

	// stateless streamable HTTP handler
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MCPServer returns the underlying SDK server, for in-process transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}
