// Package project defines the Project domain entity.
package project

import (
	"fmt"
	"time"

	"github.com/Strob0t/CrewLink/internal/domain"
)

// Status represents the lifecycle state of a project.
type Status string

const (
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Priority orders projects and tasks for pickup.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Project represents a unit of coordinated work owning a set of tasks.
// Status transitions are caller-driven; completion is never inferred from
// task state.
type Project struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CreateRequest holds the fields needed to create a new project.
type CreateRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
}

// Validate checks the request before any store write.
func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required: %w", domain.ErrValidation)
	}
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("unknown priority %q: %w", r.Priority, domain.ErrValidation)
	}
	return nil
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// transitions maps each status to the statuses it may legally move to.
var transitions = map[Status][]Status{
	StatusPlanning:  {StatusActive, StatusCancelled},
	StatusActive:    {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// ValidateTransition reports whether a project may move from one status to
// another. Same-status updates are a no-op, not an error.
func ValidateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	allowed, ok := transitions[from]
	if !ok {
		return fmt.Errorf("unknown project status %q: %w", from, domain.ErrValidation)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("project transition %s -> %s: %w", from, to, domain.ErrConflict)
}
