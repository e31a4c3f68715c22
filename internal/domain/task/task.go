// Package task defines the Task domain entity.
package task

import (
	"fmt"
	"time"

	"github.com/Strob0t/CrewLink/internal/domain"
	"github.com/Strob0t/CrewLink/internal/domain/project"
)

// Status represents the current state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusTesting    Status = "testing"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
	StatusBlocked    Status = "blocked"
)

// Task represents a unit of work assigned to a role. AssignedRole targets a
// role rather than a specific agent instance, so any connected instance of
// that role may pick it up.
type Task struct {
	ID             string           `json:"id"`
	ProjectID      string           `json:"project_id"`
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	Status         Status           `json:"status"`
	AssignedRole   string           `json:"assigned_role,omitempty"`
	Priority       project.Priority `json:"priority"`
	EstimatedHours float64          `json:"estimated_hours,omitempty"`
	ActualHours    float64          `json:"actual_hours,omitempty"`
	DependsOn      []string         `json:"depends_on,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}

// CreateRequest holds the fields needed to create a new task.
type CreateRequest struct {
	ProjectID      string           `json:"project_id"`
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	AssignedRole   string           `json:"assigned_role,omitempty"`
	Priority       project.Priority `json:"priority,omitempty"`
	EstimatedHours float64          `json:"estimated_hours,omitempty"`
	DependsOn      []string         `json:"depends_on,omitempty"`
}

// Validate checks the request before any store write.
func (r *CreateRequest) Validate() error {
	if r.ProjectID == "" {
		return fmt.Errorf("project_id is required: %w", domain.ErrValidation)
	}
	if r.Title == "" {
		return fmt.Errorf("title is required: %w", domain.ErrValidation)
	}
	if r.Priority == "" {
		r.Priority = project.PriorityMedium
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("unknown priority %q: %w", r.Priority, domain.ErrValidation)
	}
	return nil
}

// Valid reports whether s is a known task status.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusTesting,
		StatusDone, StatusCancelled, StatusBlocked:
		return true
	}
	return false
}

// transitions maps each status to the statuses it may legally move to.
// Cancellation is allowed from any non-terminal state.
var transitions = map[Status][]Status{
	StatusTodo:       {StatusInProgress, StatusBlocked, StatusCancelled},
	StatusInProgress: {StatusReview, StatusTesting, StatusDone, StatusBlocked, StatusCancelled},
	StatusReview:     {StatusInProgress, StatusTesting, StatusDone, StatusCancelled},
	StatusTesting:    {StatusInProgress, StatusDone, StatusCancelled},
	StatusBlocked:    {StatusTodo, StatusInProgress, StatusCancelled},
	StatusDone:       {},
	StatusCancelled:  {},
}

// ValidateTransition reports whether a task may move from one status to
// another. Same-status updates are a no-op, not an error.
func ValidateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if !to.Valid() {
		return fmt.Errorf("unknown task status %q: %w", to, domain.ErrValidation)
	}
	for _, s := range transitions[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("task transition %s -> %s: %w", from, to, domain.ErrConflict)
}
