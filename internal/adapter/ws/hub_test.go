package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/CrewLink/internal/domain/agent"
)

// mockAgentStore is an in-memory AgentStore for hub tests.
type mockAgentStore struct {
	upserted  int
	statusSet map[string]agent.Status
	touched   map[string]int

	upsertErr error
}

func newMockAgentStore() *mockAgentStore {
	return &mockAgentStore{
		statusSet: make(map[string]agent.Status),
		touched:   make(map[string]int),
	}
}

func (m *mockAgentStore) UpsertAgent(_ context.Context, req agent.RegisterRequest) (*agent.Agent, error) {
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	m.upserted++
	return &agent.Agent{
		ID:     "agent-" + req.Name,
		Name:   req.Name,
		Role:   req.Role,
		Status: agent.StatusOnline,
	}, nil
}

func (m *mockAgentStore) SetAgentStatus(_ context.Context, id string, status agent.Status) error {
	m.statusSet[id] = status
	return nil
}

func (m *mockAgentStore) TouchAgent(_ context.Context, id string) error {
	m.touched[id]++
	return nil
}

func TestNewHub(t *testing.T) {
	hub := NewHub(newMockAgentStore())
	if hub == nil {
		t.Fatal("expected non-nil hub")
	}
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestHubPushNoConnections(t *testing.T) {
	hub := NewHub(newMockAgentStore())

	// Push with nobody connected returns zero, never errors or panics.
	if n := hub.PushToRole(context.Background(), agent.RolePlanner, json.RawMessage(`{}`)); n != 0 {
		t.Fatalf("expected 0 deliveries, got %d", n)
	}
	if n := hub.PushBroadcast(context.Background(), json.RawMessage(`{}`)); n != 0 {
		t.Fatalf("expected 0 deliveries, got %d", n)
	}
}

func TestHubRegisterMapsConnection(t *testing.T) {
	store := newMockAgentStore()
	hub := NewHub(store)

	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &conn{cancel: cancel}
	hub.add(c)

	id, err := hub.register(context.Background(), c, Frame{
		Type: FrameRegister,
		Name: "crew-1",
		Role: agent.RoleImplementer,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "agent-crew-1" {
		t.Fatalf("unexpected agent id %q", id)
	}

	snap := hub.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(snap))
	}
	if snap[0].Role != agent.RoleImplementer || snap[0].AgentID != id {
		t.Fatalf("unexpected entry: %+v", snap[0])
	}
	if snap[0].ConnectionID == "" {
		t.Fatal("expected a minted connection id")
	}
}

func TestHubSnapshotSkipsUnregistered(t *testing.T) {
	hub := NewHub(newMockAgentStore())

	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.add(&conn{cancel: cancel})

	// Connected but not yet registered: counted, but not in the snapshot.
	if hub.ConnectionCount() != 1 {
		t.Fatalf("expected 1 connection, got %d", hub.ConnectionCount())
	}
	if len(hub.Snapshot()) != 0 {
		t.Fatal("unregistered connections must not appear in the snapshot")
	}
}

func TestHubDeregisterMarksOffline(t *testing.T) {
	store := newMockAgentStore()
	hub := NewHub(store)

	_, cancel := context.WithCancel(context.Background())
	c := &conn{cancel: cancel}
	hub.add(c)
	if _, err := hub.register(context.Background(), c, Frame{Name: "crew-1", Role: agent.RoleTester}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hub.deregister(context.Background(), c)

	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
	if store.statusSet["agent-crew-1"] != agent.StatusOffline {
		t.Fatal("expected the agent row to be flipped offline")
	}

	// Second deregister is a no-op.
	hub.deregister(context.Background(), c)
}

func TestHubTouchUpdatesLastSeen(t *testing.T) {
	hub := NewHub(newMockAgentStore())

	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &conn{cancel: cancel}
	hub.add(c)
	if _, err := hub.register(context.Background(), c, Frame{Name: "crew-1", Role: agent.RoleTester}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	before := hub.Snapshot()[0].LastSeen
	time.Sleep(5 * time.Millisecond)
	hub.Touch("agent-crew-1")

	after := hub.Snapshot()[0].LastSeen
	if !after.After(before) {
		t.Fatal("expected Touch to advance last_seen")
	}
}

func TestHubTouchUnknownAgent(t *testing.T) {
	hub := NewHub(newMockAgentStore())

	// A late heartbeat for an agent with no connection is a no-op.
	hub.Touch("ghost")
	if hub.ConnectionCount() != 0 {
		t.Fatal("touch must not create connections")
	}
}

func TestHubSweepStaleKeepsFresh(t *testing.T) {
	hub := NewHub(newMockAgentStore())

	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &conn{cancel: cancel}
	hub.add(c)
	if _, err := hub.register(context.Background(), c, Frame{Name: "crew-1", Role: agent.RoleTester}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	evicted := hub.SweepStale(context.Background(), time.Minute)
	if len(evicted) != 0 {
		t.Fatalf("fresh connection must survive the sweep, evicted %d", len(evicted))
	}
	if hub.ConnectionCount() != 1 {
		t.Fatalf("expected 1 connection, got %d", hub.ConnectionCount())
	}
}

func TestHubSweepStaleEvicts(t *testing.T) {
	store := newMockAgentStore()
	hub := NewHub(store)

	accepted := make(chan *conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		_, cancel := context.WithCancel(context.Background())
		c := &conn{ws: ws, cancel: cancel}
		hub.add(c)
		accepted <- c
	}))
	defer srv.Close()

	dialCtx, cancelDial := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelDial()
	client, _, err := websocket.Dial(dialCtx, srv.URL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = client.CloseNow() }()

	c := <-accepted
	if _, err := hub.register(context.Background(), c, Frame{Name: "crew-1", Role: agent.RoleTester}); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Backdate the liveness signal past the threshold: the agent went quiet
	// without a close event ever arriving.
	hub.mu.Lock()
	c.lastSeen = time.Now().Add(-2 * time.Minute)
	hub.mu.Unlock()

	evicted := hub.SweepStale(context.Background(), time.Minute)
	if len(evicted) != 1 {
		t.Fatalf("expected 1 eviction, got %d", len(evicted))
	}
	if evicted[0].AgentID != "agent-crew-1" {
		t.Fatalf("unexpected evicted entry: %+v", evicted[0])
	}
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections after sweep, got %d", hub.ConnectionCount())
	}
	if store.statusSet["agent-crew-1"] != agent.StatusOffline {
		t.Fatal("expected the swept agent to be flipped offline")
	}

	// A broadcast after the sweep reaches nobody.
	if n := hub.PushBroadcast(context.Background(), json.RawMessage(`{}`)); n != 0 {
		t.Fatalf("expected 0 deliveries after eviction, got %d", n)
	}

	// The peer observes the close.
	readCtx, cancelRead := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelRead()
	if _, _, err := client.Read(readCtx); err == nil {
		t.Fatal("expected the swept connection to be closed")
	}
}
