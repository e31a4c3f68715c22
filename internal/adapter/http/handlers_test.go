package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	clhttp "github.com/Strob0t/CrewLink/internal/adapter/http"
	"github.com/Strob0t/CrewLink/internal/domain"
	"github.com/Strob0t/CrewLink/internal/domain/agent"
	"github.com/Strob0t/CrewLink/internal/domain/message"
	"github.com/Strob0t/CrewLink/internal/domain/project"
	"github.com/Strob0t/CrewLink/internal/domain/task"
	"github.com/Strob0t/CrewLink/internal/port/messagequeue"
	"github.com/Strob0t/CrewLink/internal/port/registry"
	"github.com/Strob0t/CrewLink/internal/service"
)

// mockStore implements database.Store for handler testing. Only the read
// paths the HTTP surface exercises are populated.
type mockStore struct {
	agents   []agent.Agent
	projects []project.Project
	tasks    []task.Task
	messages []message.Message
}

func (m *mockStore) UpsertAgent(_ context.Context, req agent.RegisterRequest) (*agent.Agent, error) {
	return &agent.Agent{ID: "agent-1", Name: req.Name, Role: req.Role}, nil
}

func (m *mockStore) SetAgentStatus(context.Context, string, agent.Status) error { return nil }
func (m *mockStore) TouchAgent(context.Context, string) error                   { return nil }

func (m *mockStore) ListAgents(context.Context) ([]agent.Agent, error) { return m.agents, nil }
func (m *mockStore) ListAgentRoles(context.Context) ([]string, error)  { return nil, nil }

func (m *mockStore) CreateProject(context.Context, project.CreateRequest) (*project.Project, error) {
	return nil, domain.ErrValidation
}

func (m *mockStore) GetProject(_ context.Context, id string) (*project.Project, error) {
	for i := range m.projects {
		if m.projects[i].ID == id {
			return &m.projects[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) ListProjects(context.Context) ([]project.Project, error) {
	return m.projects, nil
}

func (m *mockStore) UpdateProjectStatus(context.Context, string, project.Status) (*project.Project, error) {
	return nil, domain.ErrNotFound
}

func (m *mockStore) DeleteProject(context.Context, string) error { return nil }

func (m *mockStore) CreateTask(context.Context, task.CreateRequest) (*task.Task, error) {
	return nil, domain.ErrValidation
}

func (m *mockStore) GetTask(context.Context, string) (*task.Task, error) {
	return nil, domain.ErrNotFound
}

func (m *mockStore) ListTasks(_ context.Context, projectID string) ([]task.Task, error) {
	var out []task.Task
	for _, tk := range m.tasks {
		if tk.ProjectID == projectID {
			out = append(out, tk)
		}
	}
	return out, nil
}

func (m *mockStore) ListTasksForRole(context.Context, string, task.Status) ([]task.Task, error) {
	return nil, nil
}

func (m *mockStore) UpdateTaskStatus(context.Context, string, task.Status) (*task.Task, error) {
	return nil, domain.ErrNotFound
}

func (m *mockStore) TaskStatusCounts(context.Context, string) (map[task.Status]int, error) {
	return nil, nil
}

func (m *mockStore) CreateMessage(context.Context, message.CreateRequest) (*message.Message, error) {
	return nil, domain.ErrValidation
}

func (m *mockStore) ConsumeForRole(context.Context, string) ([]message.Message, error) {
	return nil, nil
}

func (m *mockStore) ListMessages(_ context.Context, toAgent string, limit int) ([]message.Message, error) {
	var out []message.Message
	for _, msg := range m.messages {
		if toAgent != "" && msg.ToAgent != toAgent {
			continue
		}
		out = append(out, msg)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// noopQueue satisfies messagequeue.Queue.
type noopQueue struct{}

func (noopQueue) Publish(context.Context, string, []byte) error { return nil }
func (noopQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}
func (noopQueue) Drain() error      { return nil }
func (noopQueue) Close() error      { return nil }
func (noopQueue) IsConnected() bool { return true }

// stubRegistry serves a fixed snapshot.
type stubRegistry struct {
	entries []registry.Entry
}

func (s *stubRegistry) PushToRole(context.Context, string, json.RawMessage) int { return 0 }
func (s *stubRegistry) PushBroadcast(context.Context, json.RawMessage) int      { return 0 }
func (s *stubRegistry) Touch(string)                                            {}
func (s *stubRegistry) SweepStale(context.Context, time.Duration) []registry.Entry {
	return nil
}
func (s *stubRegistry) Snapshot() []registry.Entry { return s.entries }
func (s *stubRegistry) ConnectionCount() int       { return len(s.entries) }

// noopCache satisfies cache.Cache.
type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (noopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (noopCache) Delete(context.Context, string) error                     { return nil }

func newTestRouter(store *mockStore, reg *stubRegistry) http.Handler {
	router := service.NewRouter(store, noopQueue{}, reg, nil)
	coord := service.NewCoordinator(store, router, noopCache{}, time.Minute)

	r := chi.NewRouter()
	clhttp.MountRoutes(r, &clhttp.Handlers{Coordinator: coord, Registry: reg})
	return r
}

func TestListProjects(t *testing.T) {
	store := &mockStore{
		projects: []project.Project{{ID: "p1", Name: "Alpha", Status: project.StatusActive}},
		tasks:    []task.Task{{ID: "t1", ProjectID: "p1", Title: "Wire auth"}},
	}
	h := newTestRouter(store, &stubRegistry{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got []service.ProjectWithTasks
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(got) != 1 || len(got[0].Tasks) != 1 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestListProjectsEmpty(t *testing.T) {
	h := newTestRouter(&mockStore{}, &stubRegistry{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty array, got %q", body)
	}
}

func TestListAgentsAnnotatesConnections(t *testing.T) {
	store := &mockStore{
		agents: []agent.Agent{
			{ID: "a1", Name: "crew-1", Role: agent.RolePlanner, Status: agent.StatusOnline},
			{ID: "a2", Name: "crew-2", Role: agent.RoleTester, Status: agent.StatusOffline},
		},
	}
	reg := &stubRegistry{entries: []registry.Entry{
		{ConnectionID: "c1", AgentID: "a1", Role: agent.RolePlanner},
	}}
	h := newTestRouter(store, reg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got []struct {
		agent.Agent
		Connected   bool `json:"connected"`
		Connections int  `json:"connections"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(got))
	}
	for _, a := range got {
		switch a.Role {
		case agent.RolePlanner:
			if !a.Connected || a.Connections != 1 {
				t.Fatalf("planner should show 1 connection: %+v", a)
			}
		case agent.RoleTester:
			if a.Connected {
				t.Fatalf("tester should be disconnected: %+v", a)
			}
		}
	}
}

func TestListMessagesFilters(t *testing.T) {
	store := &mockStore{
		messages: []message.Message{
			{ID: "m1", ToAgent: agent.RoleTester},
			{ID: "m2", ToAgent: agent.RolePlanner},
			{ID: "m3", ToAgent: agent.RoleTester},
		},
	}
	h := newTestRouter(store, &stubRegistry{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/messages?to_agent=tester", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []message.Message
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
}

func TestListMessagesBadLimit(t *testing.T) {
	h := newTestRouter(&mockStore{}, &stubRegistry{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/messages?limit=nope", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
