// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/CrewLink/internal/domain/agent"
	"github.com/Strob0t/CrewLink/internal/domain/message"
	"github.com/Strob0t/CrewLink/internal/domain/project"
	"github.com/Strob0t/CrewLink/internal/domain/task"
)

// Store is the port interface for database operations.
type Store interface {
	// Agents. Registration is an upsert keyed on (name, role); agents are
	// never hard-deleted.
	UpsertAgent(ctx context.Context, req agent.RegisterRequest) (*agent.Agent, error)
	SetAgentStatus(ctx context.Context, id string, status agent.Status) error
	TouchAgent(ctx context.Context, id string) error
	ListAgents(ctx context.Context) ([]agent.Agent, error)
	ListAgentRoles(ctx context.Context) ([]string, error)

	// Projects
	CreateProject(ctx context.Context, req project.CreateRequest) (*project.Project, error)
	GetProject(ctx context.Context, id string) (*project.Project, error)
	ListProjects(ctx context.Context) ([]project.Project, error)
	UpdateProjectStatus(ctx context.Context, id string, status project.Status) (*project.Project, error)
	DeleteProject(ctx context.Context, id string) error

	// Tasks
	CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error)
	GetTask(ctx context.Context, id string) (*task.Task, error)
	ListTasks(ctx context.Context, projectID string) ([]task.Task, error)
	ListTasksForRole(ctx context.Context, role string, status task.Status) ([]task.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status task.Status) (*task.Task, error)
	TaskStatusCounts(ctx context.Context, projectID string) (map[task.Status]int, error)

	// Messages. ConsumeForRole is the one multi-row operation requiring
	// explicit atomicity: it claims and marks read, in a single transaction,
	// every unread message addressed to the role plus every broadcast the
	// role has not yet read. Concurrent callers for the same role receive
	// disjoint sets.
	CreateMessage(ctx context.Context, req message.CreateRequest) (*message.Message, error)
	ConsumeForRole(ctx context.Context, role string) ([]message.Message, error)
	ListMessages(ctx context.Context, toAgent string, limit int) ([]message.Message, error)
}
