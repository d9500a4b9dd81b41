package store

import (
	"context"
	"fmt"
	"time"
)

// SummaryAuditEntry is an audit row joined with its task and actor names
// for the daily activity digest.
type SummaryAuditEntry struct {
	AuditEntry
	TaskName  string
	ActorName string
}

type SummaryTimeEntry struct {
	TimeEntry
	TaskName  string
	ActorName string
}

type SummaryDueDateChange struct {
	DueDateChange
	TaskName  string
	ActorName string
}

func (s *PostgresStore) ListWorkspaceAuditWindow(ctx context.Context, workspaceID string, from, to time.Time) ([]SummaryAuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.task_id, a.field, a.old_value, a.new_value, a.changed_by, a.created_at, t.name, u.name
		FROM task_audit_log a
		JOIN tasks t ON t.id = a.task_id
		JOIN projects p ON p.id = t.project_id
		JOIN users u ON u.id = a.changed_by
		WHERE p.workspace_id=$1 AND a.created_at >= $2 AND a.created_at < $3
		ORDER BY a.created_at ASC
	`, workspaceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list audit window: %w", err)
	}
	defer rows.Close()

	var out []SummaryAuditEntry
	for rows.Next() {
		var e SummaryAuditEntry
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Field, &e.OldValue, &e.NewValue, &e.ChangedBy, &e.CreatedAt, &e.TaskName, &e.ActorName); err != nil {
			return nil, fmt.Errorf("scan audit window row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListWorkspaceTimeWindow(ctx context.Context, workspaceID string, from, to time.Time) ([]SummaryTimeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.task_id, e.started_at, e.ended_at, e.duration_minutes, e.source, e.note, e.created_by, e.created_at, t.name, u.name
		FROM task_time_entries e
		JOIN tasks t ON t.id = e.task_id
		JOIN projects p ON p.id = t.project_id
		JOIN users u ON u.id = e.created_by
		WHERE p.workspace_id=$1 AND e.created_at >= $2 AND e.created_at < $3
		ORDER BY e.created_at ASC
	`, workspaceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list time window: %w", err)
	}
	defer rows.Close()

	var out []SummaryTimeEntry
	for rows.Next() {
		var e SummaryTimeEntry
		if err := rows.Scan(&e.ID, &e.TaskID, &e.StartedAt, &e.EndedAt, &e.DurationMinutes, &e.Source, &e.Note, &e.CreatedBy, &e.CreatedAt, &e.TaskName, &e.ActorName); err != nil {
			return nil, fmt.Errorf("scan time window row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListWorkspaceDueDateWindow(ctx context.Context, workspaceID string, from, to time.Time) ([]SummaryDueDateChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.task_id, c.previous_date, c.new_date, c.reason, c.created_by, c.created_at, t.name, u.name
		FROM task_due_date_changes c
		JOIN tasks t ON t.id = c.task_id
		JOIN projects p ON p.id = t.project_id
		JOIN users u ON u.id = c.created_by
		WHERE p.workspace_id=$1 AND c.created_at >= $2 AND c.created_at < $3
		ORDER BY c.created_at ASC
	`, workspaceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list due date window: %w", err)
	}
	defer rows.Close()

	var out []SummaryDueDateChange
	for rows.Next() {
		var c SummaryDueDateChange
		if err := rows.Scan(&c.ID, &c.TaskID, &c.PreviousDate, &c.NewDate, &c.Reason, &c.CreatedBy, &c.CreatedAt, &c.TaskName, &c.ActorName); err != nil {
			return nil, fmt.Errorf("scan due date window row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
