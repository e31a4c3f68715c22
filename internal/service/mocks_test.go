package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Strob0t/CrewLink/internal/domain"
	"github.com/Strob0t/CrewLink/internal/domain/agent"
	"github.com/Strob0t/CrewLink/internal/domain/message"
	"github.com/Strob0t/CrewLink/internal/domain/project"
	"github.com/Strob0t/CrewLink/internal/domain/task"
	"github.com/Strob0t/CrewLink/internal/port/cache"
	"github.com/Strob0t/CrewLink/internal/port/database"
	"github.com/Strob0t/CrewLink/internal/port/messagequeue"
	"github.com/Strob0t/CrewLink/internal/port/registry"
)

// Ensure the mocks implement their ports at compile time.
var (
	_ database.Store     = (*mockStore)(nil)
	_ messagequeue.Queue = (*mockQueue)(nil)
	_ registry.Registry  = (*mockRegistry)(nil)
	_ cache.Cache        = (*mockCache)(nil)
)

// mockStore is a minimal in-memory implementation of database.Store for
// testing.
type mockStore struct {
	agents   []agent.Agent
	projects []project.Project
	tasks    []task.Task
	messages []message.Message
	roles    []string

	// Error hooks. Set these to inject failures.
	upsertAgentErr   error
	listRolesErr     error
	createProjectErr error
	getProjectErr    error
	createTaskErr    error
	createMessageErr error
	consumeErr       error
}

func (m *mockStore) UpsertAgent(_ context.Context, req agent.RegisterRequest) (*agent.Agent, error) {
	if m.upsertAgentErr != nil {
		return nil, m.upsertAgentErr
	}
	for i := range m.agents {
		if m.agents[i].Name == req.Name && m.agents[i].Role == req.Role {
			m.agents[i].Status = agent.StatusOnline
			return &m.agents[i], nil
		}
	}
	a := agent.Agent{
		ID:     "agent-1",
		Name:   req.Name,
		Role:   req.Role,
		Status: agent.StatusOnline,
	}
	m.agents = append(m.agents, a)
	m.roles = append(m.roles, req.Role)
	return &a, nil
}

func (m *mockStore) SetAgentStatus(_ context.Context, id string, status agent.Status) error {
	for i := range m.agents {
		if m.agents[i].ID == id {
			m.agents[i].Status = status
		}
	}
	return nil
}

func (m *mockStore) TouchAgent(_ context.Context, id string) error {
	for i := range m.agents {
		if m.agents[i].ID == id {
			m.agents[i].LastSeen = time.Now()
		}
	}
	return nil
}

func (m *mockStore) ListAgents(_ context.Context) ([]agent.Agent, error) {
	return m.agents, nil
}

func (m *mockStore) ListAgentRoles(_ context.Context) ([]string, error) {
	return m.roles, m.listRolesErr
}

func (m *mockStore) CreateProject(_ context.Context, req project.CreateRequest) (*project.Project, error) {
	if m.createProjectErr != nil {
		return nil, m.createProjectErr
	}
	p := project.Project{
		ID:       "proj-1",
		Name:     req.Name,
		Status:   project.StatusPlanning,
		Priority: req.Priority,
	}
	m.projects = append(m.projects, p)
	return &p, nil
}

func (m *mockStore) GetProject(_ context.Context, id string) (*project.Project, error) {
	if m.getProjectErr != nil {
		return nil, m.getProjectErr
	}
	for i := range m.projects {
		if m.projects[i].ID == id {
			return &m.projects[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) ListProjects(_ context.Context) ([]project.Project, error) {
	return m.projects, nil
}

func (m *mockStore) UpdateProjectStatus(_ context.Context, id string, status project.Status) (*project.Project, error) {
	for i := range m.projects {
		if m.projects[i].ID == id {
			m.projects[i].Status = status
			return &m.projects[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) DeleteProject(_ context.Context, id string) error {
	for i := range m.projects {
		if m.projects[i].ID == id {
			m.projects = append(m.projects[:i], m.projects[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) CreateTask(_ context.Context, req task.CreateRequest) (*task.Task, error) {
	if m.createTaskErr != nil {
		return nil, m.createTaskErr
	}
	tk := task.Task{
		ID:           "task-1",
		ProjectID:    req.ProjectID,
		Title:        req.Title,
		Status:       task.StatusTodo,
		AssignedRole: req.AssignedRole,
		Priority:     req.Priority,
	}
	m.tasks = append(m.tasks, tk)
	return &tk, nil
}

func (m *mockStore) GetTask(_ context.Context, id string) (*task.Task, error) {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			return &m.tasks[i], nil
		}
	}
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

func (m *mockStore) ListTasksForRole(_ context.Context, role string, status task.Status) ([]task.Task, error) {
	var out []task.Task
	for _, tk := range m.tasks {
		if tk.AssignedRole != role {
			continue
		}
		if status != "" && tk.Status != status {
			continue
		}
		out = append(out, tk)
	}
	return out, nil
}

func (m *mockStore) UpdateTaskStatus(_ context.Context, id string, status task.Status) (*task.Task, error) {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			m.tasks[i].Status = status
			return &m.tasks[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) TaskStatusCounts(_ context.Context, projectID string) (map[task.Status]int, error) {
	counts := make(map[task.Status]int)
	for _, tk := range m.tasks {
		if tk.ProjectID == projectID {
			counts[tk.Status]++
		}
	}
	return counts, nil
}

func (m *mockStore) CreateMessage(_ context.Context, req message.CreateRequest) (*message.Message, error) {
	if m.createMessageErr != nil {
		return nil, m.createMessageErr
	}
	msg := message.Message{
		ID:        "msg-1",
		FromAgent: req.FromAgent,
		ToAgent:   req.ToAgent,
		Type:      req.Type,
		Content:   req.Content,
		ProjectID: req.ProjectID,
		TaskID:    req.TaskID,
		Status:    message.StatusSent,
		CreatedAt: time.Now(),
	}
	m.messages = append(m.messages, msg)
	return &msg, nil
}

func (m *mockStore) ConsumeForRole(_ context.Context, role string) ([]message.Message, error) {
	if m.consumeErr != nil {
		return nil, m.consumeErr
	}
	var out []message.Message
	for i := range m.messages {
		if m.messages[i].Status == message.StatusRead {
			continue
		}
		if m.messages[i].ToAgent != role && m.messages[i].ToAgent != message.Broadcast {
			continue
		}
		m.messages[i].Status = message.StatusRead
		out = append(out, m.messages[i])
	}
	return out, nil
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

// mockQueue records published messages and routes them straight to the
// registered handlers.
type mockQueue struct {
	mu        sync.Mutex
	published map[string][][]byte
	handlers  map[string]messagequeue.Handler

	publishErr error
}

func newMockQueue() *mockQueue {
	return &mockQueue{
		published: make(map[string][][]byte),
		handlers:  make(map[string]messagequeue.Handler),
	}
}

func (q *mockQueue) Publish(ctx context.Context, subject string, data []byte) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	q.mu.Lock()
	q.published[subject] = append(q.published[subject], data)
	handler := q.handlers["wildcard"]
	q.mu.Unlock()

	if handler != nil {
		return handler(ctx, subject, data)
	}
	return nil
}

func (q *mockQueue) Subscribe(_ context.Context, _ string, handler messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	q.handlers["wildcard"] = handler
	q.mu.Unlock()
	return func() {}, nil
}

func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return true }

func (q *mockQueue) publishedOn(subject string) [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.published[subject]
}

// mockRegistry counts push attempts per role.
type mockRegistry struct {
	mu         sync.Mutex
	roleCount  map[string]int // connections simulated per role
	rolePushes map[string]int
	broadcasts int
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		roleCount:  make(map[string]int),
		rolePushes: make(map[string]int),
	}
}

func (r *mockRegistry) PushToRole(_ context.Context, role string, _ json.RawMessage) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rolePushes[role]++
	return r.roleCount[role]
}

func (r *mockRegistry) PushBroadcast(_ context.Context, _ json.RawMessage) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts++
	n := 0
	for _, c := range r.roleCount {
		n += c
	}
	return n
}

func (r *mockRegistry) Touch(string) {}

func (r *mockRegistry) SweepStale(context.Context, time.Duration) []registry.Entry { return nil }

func (r *mockRegistry) Snapshot() []registry.Entry { return nil }

func (r *mockRegistry) ConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.roleCount {
		n += c
	}
	return n
}

// mockCache is a plain map with no TTL handling.
type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (c *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}
