// Package message defines the AgentMessage domain entity and its payload
// schemas.
package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Strob0t/CrewLink/internal/domain"
)

// Broadcast is the to_agent sentinel meaning "all currently connected
// agents regardless of role".
const Broadcast = "broadcast"

// FromSystem labels messages originated by the coordination core itself
// rather than an agent role.
const FromSystem = "system"

// Status represents the delivery state of a message. The message row is the
// single source of truth for consumption; push delivery is a best-effort
// notification layered on top and never advances this state. A message moves
// sent -> read exactly once, through the atomic consume claim.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// Known message types. The type tag is open-ended; unknown types carry an
// opaque payload and skip structural validation.
const (
	TypeTaskAssignment = "task_assignment"
	TypeTaskComplete   = "task_complete"
	TypeFeedback       = "feedback"
	TypeQuestion       = "question"
	TypePing           = "ping"
	TypePong           = "pong"
)

// Message represents one work notification between roles.
type Message struct {
	ID          string          `json:"id"`
	FromAgent   string          `json:"from_agent"`
	ToAgent     string          `json:"to_agent"`
	Type        string          `json:"type"`
	Content     json.RawMessage `json:"content"`
	ProjectID   string          `json:"project_id,omitempty"`
	TaskID      string          `json:"task_id,omitempty"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
	ReadAt      *time.Time      `json:"read_at,omitempty"`
}

// CreateRequest holds the fields needed to persist a new message.
type CreateRequest struct {
	FromAgent string          `json:"from_agent"`
	ToAgent   string          `json:"to_agent"`
	Type      string          `json:"type"`
	Content   json.RawMessage `json:"content"`
	ProjectID string          `json:"project_id,omitempty"`
	TaskID    string          `json:"task_id,omitempty"`
}

// TaskAssignmentPayload is the schema for task_assignment messages.
type TaskAssignmentPayload struct {
	TaskID    string `json:"task_id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Priority  string `json:"priority"`
}

// TaskCompletePayload is the schema for task_complete messages.
type TaskCompletePayload struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Summary string `json:"summary"`
}

// FeedbackPayload is the schema for feedback messages.
type FeedbackPayload struct {
	TaskID   string `json:"task_id,omitempty"`
	Text     string `json:"text"`
	Approved bool   `json:"approved"`
}

// QuestionPayload is the schema for question messages.
type QuestionPayload struct {
	Text string `json:"text"`
}

// ValidatePayload checks that content is valid JSON conforming to the schema
// associated with the given message type. Unknown types pass validation with
// any valid JSON payload.
func ValidatePayload(msgType string, content json.RawMessage) error {
	if msgType == "" {
		return fmt.Errorf("message type is required: %w", domain.ErrValidation)
	}
	if len(content) == 0 {
		return fmt.Errorf("content is required: %w", domain.ErrValidation)
	}
	if !json.Valid(content) {
		return fmt.Errorf("content is not valid JSON: %w", domain.ErrValidation)
	}

	var target any
	switch msgType {
	case TypeTaskAssignment:
		target = &TaskAssignmentPayload{}
	case TypeTaskComplete:
		target = &TaskCompletePayload{}
	case TypeFeedback:
		target = &FeedbackPayload{}
	case TypeQuestion:
		target = &QuestionPayload{}
	case TypePing, TypePong:
		return nil
	default:
		return nil
	}

	if err := json.Unmarshal(content, target); err != nil {
		return fmt.Errorf("content does not match %s schema: %w", msgType, domain.ErrValidation)
	}
	return nil
}
