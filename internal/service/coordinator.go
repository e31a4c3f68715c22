package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Strob0t/CrewLink/internal/domain"
	"github.com/Strob0t/CrewLink/internal/domain/agent"
	"github.com/Strob0t/CrewLink/internal/domain/message"
	"github.com/Strob0t/CrewLink/internal/domain/project"
	"github.com/Strob0t/CrewLink/internal/domain/task"
	"github.com/Strob0t/CrewLink/internal/port/cache"
	"github.com/Strob0t/CrewLink/internal/port/database"
)

const roleCacheKey = "agent-roles"

// Coordinator is the tool invocation gateway: it orchestrates store writes
// and router deliveries for every RPC operation. Persistence always commits
// before any push delivery is attempted.
type Coordinator struct {
	store   database.Store
	router  *Router
	roles   cache.Cache
	roleTTL time.Duration
}

// NewCoordinator creates a Coordinator. roles caches the known-role set used
// to validate message targets.
func NewCoordinator(store database.Store, router *Router, roles cache.Cache, roleTTL time.Duration) *Coordinator {
	return &Coordinator{store: store, router: router, roles: roles, roleTTL: roleTTL}
}

// RegisterAgent upserts the (name, role) agent identity and marks it online.
// Registering the same pair twice yields the same identity.
func (c *Coordinator) RegisterAgent(ctx context.Context, req agent.RegisterRequest) (*agent.Agent, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("name is required: %w", domain.ErrValidation)
	}
	if req.Role == "" {
		return nil, fmt.Errorf("role is required: %w", domain.ErrValidation)
	}

	a, err := c.store.UpsertAgent(ctx, req)
	if err != nil {
		return nil, err
	}

	// A new role may have appeared; drop the cached role set.
	_ = c.roles.Delete(ctx, roleCacheKey)

	c.router.Announce(ctx, a)
	return a, nil
}

// CreateProject inserts a project in planning status.
func (c *Coordinator) CreateProject(ctx context.Context, req project.CreateRequest) (*project.Project, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return c.store.CreateProject(ctx, req)
}

// UpdateProjectStatus moves a project through its caller-driven lifecycle,
// enforcing the legal-transition table.
func (c *Coordinator) UpdateProjectStatus(ctx context.Context, id string, status project.Status) (*project.Project, error) {
	p, err := c.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := project.ValidateTransition(p.Status, status); err != nil {
		return nil, err
	}
	return c.store.UpdateProjectStatus(ctx, id, status)
}

// CreateTask inserts a task in todo status. When the task is assigned to a
// role, a task_assignment message is persisted and push-delivered to that
// role after the task commit.
func (c *Coordinator) CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Reject unresolved projects before any mutation.
	if _, err := c.store.GetProject(ctx, req.ProjectID); err != nil {
		return nil, err
	}

	t, err := c.store.CreateTask(ctx, req)
	if err != nil {
		return nil, err
	}

	if t.AssignedRole != "" {
		if err := c.routeAssignment(ctx, t); err != nil {
			// The task exists; assignment notification failure must not
			// undo it. The role still sees the task via get_agent_tasks.
			return t, nil
		}
	}
	return t, nil
}

func (c *Coordinator) routeAssignment(ctx context.Context, t *task.Task) error {
	payload, err := json.Marshal(message.TaskAssignmentPayload{
		TaskID:    t.ID,
		ProjectID: t.ProjectID,
		Title:     t.Title,
		Priority:  string(t.Priority),
	})
	if err != nil {
		return err
	}

	msg, err := c.store.CreateMessage(ctx, message.CreateRequest{
		FromAgent: message.FromSystem,
		ToAgent:   t.AssignedRole,
		Type:      message.TypeTaskAssignment,
		Content:   payload,
		ProjectID: t.ProjectID,
		TaskID:    t.ID,
	})
	if err != nil {
		return err
	}

	c.router.Deliver(ctx, msg)
	return nil
}

// UpdateTaskStatus moves a task through its lifecycle, enforcing the
// legal-transition table and stamping start/completion timestamps.
func (c *Coordinator) UpdateTaskStatus(ctx context.Context, id string, status task.Status) (*task.Task, error) {
	if id == "" {
		return nil, fmt.Errorf("task_id is required: %w", domain.ErrValidation)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("unknown task status %q: %w", status, domain.ErrValidation)
	}

	t, err := c.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := task.ValidateTransition(t.Status, status); err != nil {
		return nil, err
	}
	return c.store.UpdateTaskStatus(ctx, id, status)
}

// SendMessage validates, persists and push-delivers an agent message.
// The target must be a recognized role or the broadcast sentinel; the
// payload must conform to the schema of its message type.
func (c *Coordinator) SendMessage(ctx context.Context, req message.CreateRequest) (*message.Message, error) {
	if req.ToAgent == "" {
		return nil, fmt.Errorf("to_agent is required: %w", domain.ErrValidation)
	}
	if req.FromAgent == "" {
		req.FromAgent = message.FromSystem
	}
	if err := message.ValidatePayload(req.Type, req.Content); err != nil {
		return nil, err
	}

	if req.ToAgent != message.Broadcast {
		known, err := c.knownRole(ctx, req.ToAgent)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, fmt.Errorf("unknown role %q: %w", req.ToAgent, domain.ErrValidation)
		}
	}

	msg, err := c.store.CreateMessage(ctx, req)
	if err != nil {
		return nil, err
	}

	// Push strictly after the commit.
	c.router.Deliver(ctx, msg)
	return msg, nil
}

// knownRole reports whether any agent has ever registered with the role.
// The role set is cached with a short TTL and invalidated on registration.
func (c *Coordinator) knownRole(ctx context.Context, role string) (bool, error) {
	var roles []string

	if data, ok, err := c.roles.Get(ctx, roleCacheKey); err == nil && ok {
		if err := json.Unmarshal(data, &roles); err != nil {
			roles = nil
		}
	}

	if roles == nil {
		var err error
		roles, err = c.store.ListAgentRoles(ctx)
		if err != nil {
			return false, err
		}
		if data, err := json.Marshal(roles); err == nil {
			_ = c.roles.Set(ctx, roleCacheKey, data, c.roleTTL)
		}
	}

	for _, r := range roles {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

// ProjectStatus aggregates per-status task counts for one project.
type ProjectStatus struct {
	Project    project.Project     `json:"project"`
	TaskCounts map[task.Status]int `json:"task_counts"`
	TotalTasks int                 `json:"total_tasks"`
}

// GetProjectStatus returns the project with its task status aggregation.
func (c *Coordinator) GetProjectStatus(ctx context.Context, projectID string) (*ProjectStatus, error) {
	p, err := c.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	counts, err := c.store.TaskStatusCounts(ctx, projectID)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	return &ProjectStatus{Project: *p, TaskCounts: counts, TotalTasks: total}, nil
}

// GetAgentTasks lists the work queue for a role, priority descending then
// creation ascending, optionally narrowed to one status.
func (c *Coordinator) GetAgentTasks(ctx context.Context, role string, status task.Status) ([]task.Task, error) {
	if role == "" {
		return nil, fmt.Errorf("role is required: %w", domain.ErrValidation)
	}
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("unknown task status %q: %w", status, domain.ErrValidation)
	}
	return c.store.ListTasksForRole(ctx, role, status)
}

// ListProjects returns all projects with their tasks attached, for the
// read-only status endpoints.
func (c *Coordinator) ListProjects(ctx context.Context) ([]ProjectWithTasks, error) {
	projects, err := c.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ProjectWithTasks, 0, len(projects))
	for i := range projects {
		tasks, err := c.store.ListTasks(ctx, projects[i].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, ProjectWithTasks{Project: projects[i], Tasks: tasks})
	}
	return out, nil
}

// ProjectWithTasks is a project with its tasks nested, as served by the
// read-only listing endpoint.
type ProjectWithTasks struct {
	Project project.Project `json:"project"`
	Tasks   []task.Task     `json:"tasks"`
}

// ListAgents returns all registered agents.
func (c *Coordinator) ListAgents(ctx context.Context) ([]agent.Agent, error) {
	return c.store.ListAgents(ctx)
}

// ListMessages returns the message audit log, optionally filtered by
// recipient. Read-only; consumption state is untouched.
func (c *Coordinator) ListMessages(ctx context.Context, toAgent string, limit int) ([]message.Message, error) {
	return c.store.ListMessages(ctx, toAgent, limit)
}
