package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"crewlink://projects",
			"Project List",
			mcplib.WithResourceDescription("All projects with their tasks"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleProjectsResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			"crewlink://agents",
			"Agent List",
			mcplib.WithResourceDescription("All registered agents and their status"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleAgentsResource,
	)
}

func (s *Server) handleProjectsResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	projects, err := s.deps.Gateway.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(projects)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleAgentsResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	agents, err := s.deps.Gateway.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(agents)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
