package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/CrewLink/internal/domain"
	"github.com/Strob0t/CrewLink/internal/domain/task"
)

const taskColumns = `id, project_id, title, description, status, assigned_role, priority,
	estimated_hours, actual_hours, depends_on, created_at, started_at, completed_at`

// priorityRank orders tasks urgent-first in role work queues.
const priorityRank = `CASE priority WHEN 'urgent' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END`

func scanTask(row scannable) (task.Task, error) {
	var t task.Task
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status,
		&t.AssignedRole, &t.Priority, &t.EstimatedHours, &t.ActualHours,
		&t.DependsOn, &t.CreatedAt, &t.StartedAt, &t.CompletedAt)
	return t, err
}

func (s *Store) CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO tasks (project_id, title, description, assigned_role, priority, estimated_hours, depends_on)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+taskColumns,
		req.ProjectID, req.Title, req.Description, req.AssignedRole,
		req.Priority, req.EstimatedHours, orEmpty(req.DependsOn))

	t, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &t, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get task %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return &t, nil
}

func (s *Store) ListTasks(ctx context.Context, projectID string) ([]task.Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = $1
		 ORDER BY `+priorityRank+` DESC, created_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListTasksForRole returns the work queue for a role, ordered by priority
// descending then creation ascending. status narrows the queue when set.
func (s *Store) ListTasksForRole(ctx context.Context, role string, status task.Status) ([]task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE assigned_role = $1`
	args := []any{role}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY ` + priorityRank + ` DESC, created_at ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks for role %s: %w", role, err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func collectTasks(rows pgx.Rows) ([]task.Task, error) {
	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatus sets the task status, stamping started_at on the first
// move to in_progress and completed_at on done.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status task.Status) (*task.Task, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE tasks
		 SET status = $2,
		     started_at = CASE WHEN $2 = 'in_progress' AND started_at IS NULL THEN now() ELSE started_at END,
		     completed_at = CASE WHEN $2 = 'done' AND completed_at IS NULL THEN now() ELSE completed_at END
		 WHERE id = $1
		 RETURNING `+taskColumns, id, status)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("update task %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	return &t, nil
}

// TaskStatusCounts aggregates task counts by status for one project.
func (s *Store) TaskStatusCounts(ctx context.Context, projectID string) (map[task.Status]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM tasks WHERE project_id = $1 GROUP BY status`, projectID)
	if err != nil {
		return nil, fmt.Errorf("task status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[task.Status]int)
	for rows.Next() {
		var st task.Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, rows.Err()
}
