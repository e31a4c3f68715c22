package http

import (
	"net/http"
	"strconv"

	"github.com/Strob0t/CrewLink/internal/domain/agent"
	"github.com/Strob0t/CrewLink/internal/domain/message"
	"github.com/Strob0t/CrewLink/internal/port/registry"
	"github.com/Strob0t/CrewLink/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Coordinator *service.Coordinator
	Registry    registry.Registry
}

// agentView is an agent row joined with its live connection state.
type agentView struct {
	agent.Agent
	Connected   bool `json:"connected"`
	Connections int  `json:"connections"`
}

// ListProjects returns all projects with their tasks.
func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Coordinator.ListProjects(r.Context())
	if err != nil {
		writeDomainError(w, err, "failed to list projects")
		return
	}
	if projects == nil {
		projects = []service.ProjectWithTasks{}
	}
	writeJSON(w, http.StatusOK, projects)
}

// ListAgents returns all registered agents, annotated with the number of
// live connections each role currently holds.
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Coordinator.ListAgents(r.Context())
	if err != nil {
		writeDomainError(w, err, "failed to list agents")
		return
	}

	connsByRole := make(map[string]int)
	for _, e := range h.Registry.Snapshot() {
		connsByRole[e.Role]++
	}

	views := make([]agentView, 0, len(agents))
	for _, a := range agents {
		n := connsByRole[a.Role]
		views = append(views, agentView{Agent: a, Connected: n > 0, Connections: n})
	}
	writeJSON(w, http.StatusOK, views)
}

// ListMessages returns the message audit log. It never claims messages;
// status fields reflect whatever the pull path has recorded.
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	toAgent := r.URL.Query().Get("to_agent")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	msgs, err := h.Coordinator.ListMessages(r.Context(), toAgent, limit)
	if err != nil {
		writeDomainError(w, err, "failed to list messages")
		return
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}
