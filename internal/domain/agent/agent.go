// Package agent defines the Agent domain entity.
package agent

import "time"

// Status represents the liveness state of an agent.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Well-known roles. Roles are open-ended; these are the specializations the
// demo crews register with. Routing always targets a role, never a specific
// agent instance.
const (
	RolePlanner     = "planner"
	RoleImplementer = "implementer"
	RoleReviewer    = "reviewer"
	RoleTester      = "tester"
)

// Agent represents a registered worker process bound to a fixed role.
// Identity is the (name, role) pair; registration is an upsert and agents
// are never hard-deleted, only flipped offline.
type Agent struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Status       Status    `json:"status"`
	Endpoint     string    `json:"endpoint,omitempty"`
	Capabilities []string  `json:"capabilities"`
	LastSeen     time.Time `json:"last_seen"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterRequest holds the fields needed to register (upsert) an agent.
type RegisterRequest struct {
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Endpoint     string   `json:"endpoint,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}
