package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/CrewLink/internal/domain"
	"github.com/Strob0t/CrewLink/internal/domain/agent"
	"github.com/Strob0t/CrewLink/internal/domain/project"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Agents ---

const agentColumns = `id, name, role, status, endpoint, capabilities, last_seen, created_at, updated_at`

func scanAgent(row scannable) (agent.Agent, error) {
	var a agent.Agent
	err := row.Scan(&a.ID, &a.Name, &a.Role, &a.Status, &a.Endpoint,
		&a.Capabilities, &a.LastSeen, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// UpsertAgent registers an agent keyed on (name, role). Re-registering the
// same pair yields the same row flipped online with a fresh liveness stamp.
func (s *Store) UpsertAgent(ctx context.Context, req agent.RegisterRequest) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO agents (name, role, status, endpoint, capabilities, last_seen)
		 VALUES ($1, $2, 'online', $3, $4, now())
		 ON CONFLICT (name, role) DO UPDATE
		 SET status = 'online',
		     endpoint = EXCLUDED.endpoint,
		     capabilities = EXCLUDED.capabilities,
		     last_seen = now(),
		     updated_at = now()
		 RETURNING `+agentColumns,
		req.Name, req.Role, req.Endpoint, orEmpty(req.Capabilities))

	a, err := scanAgent(row)
	if err != nil {
		return nil, fmt.Errorf("upsert agent %s/%s: %w", req.Name, req.Role, err)
	}
	return &a, nil
}

// SetAgentStatus flips an agent's liveness status. Unknown ids are a no-op:
// disconnect cleanup for an agent that never persisted must not fail.
func (s *Store) SetAgentStatus(ctx context.Context, id string, status agent.Status) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE agents SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set agent %s status: %w", id, err)
	}
	return nil
}

// TouchAgent records a liveness signal. Unknown ids are a no-op.
func (s *Store) TouchAgent(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE agents SET last_seen = now(), updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch agent %s: %w", id, err)
	}
	return nil
}

func (s *Store) ListAgents(ctx context.Context) ([]agent.Agent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+agentColumns+` FROM agents ORDER BY role, name`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []agent.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// ListAgentRoles returns the distinct set of roles any agent has ever
// registered with. Used to validate message targets.
func (s *Store) ListAgentRoles(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT role FROM agents`)
	if err != nil {
		return nil, fmt.Errorf("list agent roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// --- Projects ---

const projectColumns = `id, name, description, status, priority, created_at, started_at, completed_at`

func scanProject(row scannable) (project.Project, error) {
	var p project.Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.Priority,
		&p.CreatedAt, &p.StartedAt, &p.CompletedAt)
	return p, err
}

func (s *Store) CreateProject(ctx context.Context, req project.CreateRequest) (*project.Project, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO projects (name, description, priority)
		 VALUES ($1, $2, $3)
		 RETURNING `+projectColumns,
		req.Name, req.Description, req.Priority)

	p, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return &p, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*project.Project, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)

	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get project %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	return &p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]project.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []project.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProjectStatus sets the project status and stamps started_at on the
// first move to active and completed_at on completion or cancellation.
func (s *Store) UpdateProjectStatus(ctx context.Context, id string, status project.Status) (*project.Project, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE projects
		 SET status = $2,
		     started_at = CASE WHEN $2 = 'active' AND started_at IS NULL THEN now() ELSE started_at END,
		     completed_at = CASE WHEN $2 IN ('completed', 'cancelled') AND completed_at IS NULL THEN now() ELSE completed_at END
		 WHERE id = $1
		 RETURNING `+projectColumns, id, status)

	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("update project %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("update project %s: %w", id, err)
	}
	return &p, nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete project %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
