// Package ws implements the live-connection adapter: the WebSocket endpoint
// agents register on, and the connection registry behind it. The registry is
// the single authoritative view of who is online right now; everything it
// pushes is a best-effort notification on top of the persisted message log.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/Strob0t/CrewLink/internal/domain/agent"
	"github.com/Strob0t/CrewLink/internal/port/registry"
)

// AgentStore is the slice of the database store the hub needs to keep agent
// rows in step with connection state.
type AgentStore interface {
	UpsertAgent(ctx context.Context, req agent.RegisterRequest) (*agent.Agent, error)
	SetAgentStatus(ctx context.Context, id string, status agent.Status) error
	TouchAgent(ctx context.Context, id string) error
}

// conn wraps a single WebSocket connection and its registry mapping.
// All fields past ws are guarded by the hub mutex.
type conn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc

	connID   string
	agentID  string
	name     string
	role     string
	lastSeen time.Time
	closed   bool
}

// Hub manages all active WebSocket connections. It implements
// registry.Registry.
type Hub struct {
	store AgentStore

	mu    sync.RWMutex
	conns map[*conn]struct{}
}

var _ registry.Registry = (*Hub)(nil)

// NewHub creates a new WebSocket hub backed by the given agent store.
func NewHub(store AgentStore) *Hub {
	return &Hub{
		store: store,
		conns: make(map[*conn]struct{}),
	}
}

// register resolves the agent identity for a connection and stores the
// mapping. An absent agent id is minted by the store upsert. Re-registering
// the same connection replaces its mapping.
func (h *Hub) register(ctx context.Context, c *conn, f Frame) (string, error) {
	a, err := h.store.UpsertAgent(ctx, agent.RegisterRequest{
		Name: f.Name,
		Role: f.Role,
	})
	if err != nil {
		return "", err
	}

	h.mu.Lock()
	c.agentID = a.ID
	c.name = a.Name
	c.role = a.Role
	c.lastSeen = time.Now()
	h.mu.Unlock()

	slog.Info("agent registered", "agent_id", a.ID, "name", a.Name, "role", a.Role,
		"connections", h.ConnectionCount())
	return a.ID, nil
}

// deregister removes the connection mapping and flips the agent row offline.
// Safe to call more than once per connection; only the first call acts.
func (h *Hub) deregister(ctx context.Context, c *conn) {
	h.mu.Lock()
	if c.closed {
		h.mu.Unlock()
		return
	}
	c.closed = true
	c.cancel()
	delete(h.conns, c)
	agentID := c.agentID
	h.mu.Unlock()

	if agentID != "" {
		if err := h.store.SetAgentStatus(ctx, agentID, agent.StatusOffline); err != nil {
			slog.Error("mark agent offline failed", "agent_id", agentID, "error", err)
		}
	}
	slog.Info("websocket disconnected", "agent_id", agentID)
}

// Touch records a liveness signal for every connection the agent holds.
// Unknown agent ids are a no-op: a late heartbeat from an already
// deregistered connection must not resurrect stale state.
func (h *Hub) Touch(agentID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		if c.agentID == agentID {
			c.lastSeen = time.Now()
		}
	}
}

// pushTarget pairs a connection with its agent id as captured under the hub
// lock, so fan-out never reads conn fields unguarded.
type pushTarget struct {
	c       *conn
	agentID string
}

// connectionsForRole snapshots the currently mapped connections for a role.
// A connection that deregisters mid-fan-out simply misses that one frame.
func (h *Hub) connectionsForRole(role string) []pushTarget {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []pushTarget
	for c := range h.conns {
		if c.role == role && c.agentID != "" {
			out = append(out, pushTarget{c: c, agentID: c.agentID})
		}
	}
	return out
}

func (h *Hub) allConnections() []pushTarget {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []pushTarget
	for c := range h.conns {
		if c.agentID != "" {
			out = append(out, pushTarget{c: c, agentID: c.agentID})
		}
	}
	return out
}

// PushToRole sends a message frame to every connected instance of the role.
// Write failures evict the connection but are not surfaced: push is a hint,
// the message row stays SENT for pull consumption.
func (h *Hub) PushToRole(ctx context.Context, role string, content json.RawMessage) int {
	return h.push(ctx, h.connectionsForRole(role), Frame{
		Type:      FrameMessage,
		Content:   content,
		Timestamp: now(),
	})
}

// PushBroadcast sends a broadcast frame to every connected agent.
func (h *Hub) PushBroadcast(ctx context.Context, content json.RawMessage) int {
	return h.push(ctx, h.allConnections(), Frame{
		Type:      FrameBroadcast,
		Content:   content,
		Timestamp: now(),
	})
}

func (h *Hub) push(ctx context.Context, targets []pushTarget, f Frame) int {
	if len(targets) == 0 {
		return 0
	}

	data, err := json.Marshal(f)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return 0
	}

	delivered := 0
	for _, t := range targets {
		if err := t.c.ws.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug("websocket write failed", "agent_id", t.agentID, "error", err)
			go h.deregister(context.WithoutCancel(ctx), t.c)
			continue
		}
		delivered++
	}
	return delivered
}

// SweepStale deregisters every connection whose last liveness signal is
// older than the threshold, exactly as if the peer had closed.
func (h *Hub) SweepStale(ctx context.Context, threshold time.Duration) []registry.Entry {
	cutoff := time.Now().Add(-threshold)

	h.mu.Lock()
	var stale []*conn
	for c := range h.conns {
		if c.agentID != "" && c.lastSeen.Before(cutoff) {
			stale = append(stale, c)
		}
	}
	h.mu.Unlock()

	entries := make([]registry.Entry, 0, len(stale))
	for _, c := range stale {
		entries = append(entries, h.entry(c))
		_ = c.ws.Close(websocket.StatusGoingAway, "heartbeat timeout")
		h.deregister(ctx, c)
	}
	return entries
}

// Snapshot returns the current connection set.
func (h *Hub) Snapshot() []registry.Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entries := make([]registry.Entry, 0, len(h.conns))
	for c := range h.conns {
		if c.agentID == "" {
			continue
		}
		entries = append(entries, registry.Entry{
			ConnectionID: c.connID,
			AgentID:      c.agentID,
			Name:         c.name,
			Role:         c.role,
			LastSeen:     c.lastSeen,
		})
	}
	return entries
}

func (h *Hub) entry(c *conn) registry.Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return registry.Entry{
		ConnectionID: c.connID,
		AgentID:      c.agentID,
		Name:         c.name,
		Role:         c.role,
		LastSeen:     c.lastSeen,
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// add inserts a freshly accepted, not-yet-registered connection.
func (h *Hub) add(c *conn) {
	c.connID = uuid.New().String()
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}
