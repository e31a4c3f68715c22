package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/CrewLink/internal/domain/message"
)

const messageColumns = `id, from_agent, to_agent, type, content, project_id, task_id,
	status, created_at, delivered_at, read_at`

// messageColumnsQualified is messageColumns with the "m" alias, for queries
// joining messages against the claim CTE.
const messageColumnsQualified = `m.id, m.from_agent, m.to_agent, m.type, m.content, m.project_id, m.task_id,
	m.status, m.created_at, m.delivered_at, m.read_at`

func scanMessage(row scannable) (message.Message, error) {
	var m message.Message
	var projectID, taskID *string
	err := row.Scan(&m.ID, &m.FromAgent, &m.ToAgent, &m.Type, &m.Content,
		&projectID, &taskID, &m.Status, &m.CreatedAt, &m.DeliveredAt, &m.ReadAt)
	if projectID != nil {
		m.ProjectID = *projectID
	}
	if taskID != nil {
		m.TaskID = *taskID
	}
	return m, err
}

func (s *Store) CreateMessage(ctx context.Context, req message.CreateRequest) (*message.Message, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO messages (from_agent, to_agent, type, content, project_id, task_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+messageColumns,
		req.FromAgent, req.ToAgent, req.Type, req.Content,
		nullIfEmpty(req.ProjectID), nullIfEmpty(req.TaskID))

	m, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return &m, nil
}

// ConsumeForRole atomically claims every unread message addressed to the
// role plus every broadcast the role has not yet read, marks them read, and
// returns exactly that set.
//
// Both claims run in one transaction. Direct messages are claimed by a
// single UPDATE whose predicate is re-evaluated under the row lock, so a
// concurrent consumer of the same role skips rows this one took. Broadcasts
// are claimed by inserting per-role read markers; the (message_id, role)
// primary key makes concurrent claims disjoint. A select-then-update split
// would lose both guarantees.
func (s *Store) ConsumeForRole(ctx context.Context, role string) ([]message.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	direct, err := claimDirect(ctx, tx, role)
	if err != nil {
		return nil, err
	}

	broadcast, err := claimBroadcast(ctx, tx, role)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit consume: %w", err)
	}

	msgs := append(direct, broadcast...)
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

func claimDirect(ctx context.Context, tx pgx.Tx, role string) ([]message.Message, error) {
	rows, err := tx.Query(ctx,
		`UPDATE messages
		 SET status = 'read', read_at = now()
		 WHERE to_agent = $1 AND status <> 'read'
		 RETURNING `+messageColumns, role)
	if err != nil {
		return nil, fmt.Errorf("claim direct messages for %s: %w", role, err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func claimBroadcast(ctx context.Context, tx pgx.Tx, role string) ([]message.Message, error) {
	rows, err := tx.Query(ctx,
		`WITH claimed AS (
		     INSERT INTO message_reads (message_id, role)
		     SELECT m.id, $1 FROM messages m
		     WHERE m.to_agent = 'broadcast'
		       AND NOT EXISTS (
		           SELECT 1 FROM message_reads r
		           WHERE r.message_id = m.id AND r.role = $1
		       )
		     ON CONFLICT DO NOTHING
		     RETURNING message_id
		 )
		 UPDATE messages m
		 SET status = 'read', read_at = COALESCE(m.read_at, now())
		 FROM claimed c
		 WHERE m.id = c.message_id
		 RETURNING `+messageColumnsQualified, role)
	if err != nil {
		return nil, fmt.Errorf("claim broadcast messages for %s: %w", role, err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]message.Message, error) {
	var msgs []message.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ListMessages returns the audit log, newest first, optionally filtered by
// recipient. Consumption state is untouched; this is a read-only view.
func (s *Store) ListMessages(ctx context.Context, toAgent string, limit int) ([]message.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + messageColumns + ` FROM messages`
	args := []any{}
	if toAgent != "" {
		query += ` WHERE to_agent = $1`
		args = append(args, toAgent)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}
