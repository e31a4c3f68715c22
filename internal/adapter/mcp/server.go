// Package mcp exposes the coordination tools to agents over the Model
// Context Protocol. Every tool returns a structured result envelope; internal
// failures become error results, never transport-level errors.
package mcp

import (
	"context"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/CrewLink/internal/domain/agent"
	"github.com/Strob0t/CrewLink/internal/domain/message"
	"github.com/Strob0t/CrewLink/internal/domain/project"
	"github.com/Strob0t/CrewLink/internal/domain/task"
	"github.com/Strob0t/CrewLink/internal/service"
)

// Gateway is the slice of the coordinator the tool handlers call.
type Gateway interface {
	RegisterAgent(ctx context.Context, req agent.RegisterRequest) (*agent.Agent, error)
	CreateProject(ctx context.Context, req project.CreateRequest) (*project.Project, error)
	UpdateProjectStatus(ctx context.Context, id string, status project.Status) (*project.Project, error)
	CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status task.Status) (*task.Task, error)
	SendMessage(ctx context.Context, req message.CreateRequest) (*message.Message, error)
	GetProjectStatus(ctx context.Context, projectID string) (*service.ProjectStatus, error)
	GetAgentTasks(ctx context.Context, role string, status task.Status) ([]task.Task, error)
	ListProjects(ctx context.Context) ([]service.ProjectWithTasks, error)
	ListAgents(ctx context.Context) ([]agent.Agent, error)
}

// MessagePuller is the authoritative pull-consume surface.
type MessagePuller interface {
	Consume(ctx context.Context, role string) ([]message.Message, error)
}

// Deps bundles everything the MCP server needs.
type Deps struct {
	Gateway  Gateway
	Messages MessagePuller
}

// Server hosts the CrewLink MCP tool surface over streamable HTTP.
type Server struct {
	deps       Deps
	mcpServer  *mcpserver.MCPServer
	httpServer *mcpserver.StreamableHTTPServer
}

// NewServer creates the MCP server and registers all tools and resources.
func NewServer(deps Deps) *Server {
	s := &Server{deps: deps}

	s.mcpServer = mcpserver.NewMCPServer("crewlink", "0.1.0",
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)
	s.registerTools()
	s.registerResources()

	s.httpServer = mcpserver.NewStreamableHTTPServer(s.mcpServer)
	return s
}

// Handler returns the http.Handler serving the MCP endpoint.
func (s *Server) Handler() http.Handler {
	return s.httpServer
}

// MCPServer exposes the underlying MCP server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}
