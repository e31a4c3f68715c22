package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/CrewLink/internal/domain"
	"github.com/Strob0t/CrewLink/internal/domain/agent"
	"github.com/Strob0t/CrewLink/internal/domain/message"
	"github.com/Strob0t/CrewLink/internal/domain/project"
	"github.com/Strob0t/CrewLink/internal/domain/task"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.registerAgentTool(),
		s.createProjectTool(),
		s.updateProjectStatusTool(),
		s.createTaskTool(),
		s.updateTaskStatusTool(),
		s.sendAgentMessageTool(),
		s.getProjectStatusTool(),
		s.getAgentTasksTool(),
		s.consumeMessagesTool(),
	)
}

func (s *Server) registerAgentTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("register_agent",
		mcplib.WithDescription("Register an agent identity (name, role) and mark it online"),
		mcplib.WithString("name",
			mcplib.Required(),
			mcplib.Description("The agent instance name"),
		),
		mcplib.WithString("role",
			mcplib.Required(),
			mcplib.Description("The agent role, e.g. planner, implementer, reviewer"),
		),
		mcplib.WithString("endpoint",
			mcplib.Description("Optional callback endpoint for the agent"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleRegisterAgent}
}

func (s *Server) createProjectTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("create_project",
		mcplib.WithDescription("Create a new project in planning status"),
		mcplib.WithString("name",
			mcplib.Required(),
			mcplib.Description("The project name"),
		),
		mcplib.WithString("description",
			mcplib.Description("Free-text project description"),
		),
		mcplib.WithString("priority",
			mcplib.Description("Project priority: low, medium, high or urgent"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleCreateProject}
}

func (s *Server) updateProjectStatusTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("update_project_status",
		mcplib.WithDescription("Move a project to a new lifecycle status"),
		mcplib.WithString("project_id",
			mcplib.Required(),
			mcplib.Description("The project ID"),
		),
		mcplib.WithString("status",
			mcplib.Required(),
			mcplib.Description("Target status: planning, active, completed or cancelled"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleUpdateProjectStatus}
}

func (s *Server) createTaskTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("create_task",
		mcplib.WithDescription("Create a task under a project; assigning a role routes a task_assignment message to it"),
		mcplib.WithString("project_id",
			mcplib.Required(),
			mcplib.Description("The owning project ID"),
		),
		mcplib.WithString("title",
			mcplib.Required(),
			mcplib.Description("The task title"),
		),
		mcplib.WithString("description",
			mcplib.Description("Free-text task description"),
		),
		mcplib.WithString("assigned_to",
			mcplib.Description("Role the task is assigned to"),
		),
		mcplib.WithString("priority",
			mcplib.Description("Task priority: low, medium, high or urgent"),
		),
		mcplib.WithNumber("estimated_hours",
			mcplib.Description("Estimated effort in hours"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleCreateTask}
}

func (s *Server) updateTaskStatusTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("update_task_status",
		mcplib.WithDescription("Move a task to a new status; start/completion timestamps are stamped automatically"),
		mcplib.WithString("task_id",
			mcplib.Required(),
			mcplib.Description("The task ID"),
		),
		mcplib.WithString("status",
			mcplib.Required(),
			mcplib.Description("Target status: todo, in_progress, review, testing, done, cancelled or blocked"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleUpdateTaskStatus}
}

func (s *Server) sendAgentMessageTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("send_agent_message",
		mcplib.WithDescription("Persist a message to a role (or broadcast) and push-notify connected instances"),
		mcplib.WithString("to_agent",
			mcplib.Required(),
			mcplib.Description("Target role, or 'broadcast' for all connected agents"),
		),
		mcplib.WithString("message_type",
			mcplib.Required(),
			mcplib.Description("Message type tag, e.g. task_assignment, feedback, question"),
		),
		mcplib.WithObject("content",
			mcplib.Required(),
			mcplib.Description("JSON payload matching the message type's schema"),
		),
		mcplib.WithString("from_agent",
			mcplib.Description("Sending role; defaults to 'system'"),
		),
		mcplib.WithString("project_id",
			mcplib.Description("Optional project backlink"),
		),
		mcplib.WithString("task_id",
			mcplib.Description("Optional task backlink"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleSendAgentMessage}
}

func (s *Server) getProjectStatusTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_project_status",
		mcplib.WithDescription("Get a project with its task status counts"),
		mcplib.WithString("project_id",
			mcplib.Required(),
			mcplib.Description("The project ID"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetProjectStatus}
}

func (s *Server) getAgentTasksTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_agent_tasks",
		mcplib.WithDescription("List tasks assigned to a role, priority descending then oldest first"),
		mcplib.WithString("role",
			mcplib.Required(),
			mcplib.Description("The role whose work queue to list"),
		),
		mcplib.WithString("status",
			mcplib.Description("Optional status filter"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetAgentTasks}
}

func (s *Server) consumeMessagesTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("consume_messages",
		mcplib.WithDescription("Atomically claim and mark read all unread messages for a role, including unread broadcasts"),
		mcplib.WithString("role",
			mcplib.Required(),
			mcplib.Description("The role pulling its messages"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleConsumeMessages}
}

// --- Handlers ---

func (s *Server) handleRegisterAgent(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	args := req.GetArguments()
	a, err := s.deps.Gateway.RegisterAgent(ctx, agent.RegisterRequest{
		Name:     stringArg(args, "name"),
		Role:     stringArg(args, "role"),
		Endpoint: stringArg(args, "endpoint"),
	})
	if err != nil {
		return errorResult("register agent", err), nil
	}
	return jsonResult(a)
}

func (s *Server) handleCreateProject(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	args := req.GetArguments()
	p, err := s.deps.Gateway.CreateProject(ctx, project.CreateRequest{
		Name:        stringArg(args, "name"),
		Description: stringArg(args, "description"),
		Priority:    project.Priority(stringArg(args, "priority")),
	})
	if err != nil {
		return errorResult("create project", err), nil
	}
	return jsonResult(p)
}

func (s *Server) handleUpdateProjectStatus(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	args := req.GetArguments()
	p, err := s.deps.Gateway.UpdateProjectStatus(ctx,
		stringArg(args, "project_id"),
		project.Status(stringArg(args, "status")))
	if err != nil {
		return errorResult("update project status", err), nil
	}
	return jsonResult(p)
}

func (s *Server) handleCreateTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	args := req.GetArguments()
	t, err := s.deps.Gateway.CreateTask(ctx, task.CreateRequest{
		ProjectID:      stringArg(args, "project_id"),
		Title:          stringArg(args, "title"),
		Description:    stringArg(args, "description"),
		AssignedRole:   stringArg(args, "assigned_to"),
		Priority:       project.Priority(stringArg(args, "priority")),
		EstimatedHours: numberArg(args, "estimated_hours"),
	})
	if err != nil {
		return errorResult("create task", err), nil
	}
	return jsonResult(t)
}

func (s *Server) handleUpdateTaskStatus(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	args := req.GetArguments()
	t, err := s.deps.Gateway.UpdateTaskStatus(ctx,
		stringArg(args, "task_id"),
		task.Status(stringArg(args, "status")))
	if err != nil {
		return errorResult("update task status", err), nil
	}
	return jsonResult(t)
}

func (s *Server) handleSendAgentMessage(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	args := req.GetArguments()

	content, err := json.Marshal(args["content"])
	if err != nil {
		return mcplib.NewToolResultError("content is not valid JSON"), nil
	}

	m, err := s.deps.Gateway.SendMessage(ctx, message.CreateRequest{
		FromAgent: stringArg(args, "from_agent"),
		ToAgent:   stringArg(args, "to_agent"),
		Type:      stringArg(args, "message_type"),
		Content:   content,
		ProjectID: stringArg(args, "project_id"),
		TaskID:    stringArg(args, "task_id"),
	})
	if err != nil {
		return errorResult("send message", err), nil
	}
	return jsonResult(m)
}

func (s *Server) handleGetProjectStatus(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	args := req.GetArguments()
	st, err := s.deps.Gateway.GetProjectStatus(ctx, stringArg(args, "project_id"))
	if err != nil {
		return errorResult("get project status", err), nil
	}
	return jsonResult(st)
}

func (s *Server) handleGetAgentTasks(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	args := req.GetArguments()
	tasks, err := s.deps.Gateway.GetAgentTasks(ctx,
		stringArg(args, "role"),
		task.Status(stringArg(args, "status")))
	if err != nil {
		return errorResult("get agent tasks", err), nil
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return jsonResult(tasks)
}

func (s *Server) handleConsumeMessages(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	args := req.GetArguments()
	msgs, err := s.deps.Messages.Consume(ctx, stringArg(args, "role"))
	if err != nil {
		return errorResult("consume messages", err), nil
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	return jsonResult(msgs)
}

// --- Helpers ---

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func numberArg(args map[string]any, key string) float64 {
	v, _ := args[key].(float64)
	return v
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}

// errorResult converts a domain error into a structured tool error result.
// Errors never cross the transport boundary as protocol failures.
func errorResult(op string, err error) *mcplib.CallToolResult {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return mcplib.NewToolResultError(fmt.Sprintf("%s: %v", op, err))
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrConflict):
		return mcplib.NewToolResultError(fmt.Sprintf("%s: %v", op, err))
	default:
		return mcplib.NewToolResultErrorFromErr(op+" failed", err)
	}
}
