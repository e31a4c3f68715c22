// Package registry defines the connection registry port (interface).
//
// The registry is the only place where "who is online" is known
// authoritatively at any instant. It maps live transport connections to
// agent identity and role; the message router consults it for push fan-out.
package registry

import (
	"context"
	"encoding/json"
	"time"
)

// Entry is a snapshot of one live connection.
type Entry struct {
	ConnectionID string    `json:"connection_id"`
	AgentID      string    `json:"agent_id"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	LastSeen     time.Time `json:"last_seen"`
}

// Registry is the port interface the router and heartbeat monitor use.
// Register/deregister themselves are driven by the transport adapter owning
// the connections; they are not part of this surface.
type Registry interface {
	// PushToRole sends a best-effort message frame to every currently
	// connected instance of the role. Returns the number of connections the
	// frame was written to; zero recipients is not an error.
	PushToRole(ctx context.Context, role string, content json.RawMessage) int

	// PushBroadcast sends a best-effort broadcast frame to every connected
	// agent regardless of role.
	PushBroadcast(ctx context.Context, content json.RawMessage) int

	// Touch records a liveness signal for the agent. Unknown agent ids are
	// a no-op: a late heartbeat from an already-deregistered connection
	// must not resurrect stale state.
	Touch(agentID string)

	// SweepStale deregisters every connection whose last liveness signal is
	// older than the threshold, exactly as if it had closed, and returns
	// the evicted entries.
	SweepStale(ctx context.Context, threshold time.Duration) []Entry

	// Snapshot returns the current connection set.
	Snapshot() []Entry

	// ConnectionCount returns the number of live connections.
	ConnectionCount() int
}
