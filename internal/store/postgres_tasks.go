package store

import (
	"context"
	"database/sql"
	"fmt"
)

const taskColumns = `
	id, project_id, name, description, sector, type,
	executors, validators, informed,
	start_date, due_date_original, due_date_current,
	estimated_minutes, actual_minutes, priority, status, display_order,
	created_by, created_at, updated_at
`

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var t Task
	var executors, validators, informed []byte
	err := row.Scan(
		&t.ID, &t.ProjectID, &t.Name, &t.Description, &t.Sector, &t.Type,
		&executors, &validators, &informed,
		&t.StartDate, &t.DueDateOriginal, &t.DueDateCurrent,
		&t.EstimatedMinutes, &t.ActualMinutes, &t.Priority, &t.Status, &t.DisplayOrder,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return Task{}, err
	}
	t.Executors = decodeStrings(executors)
	t.Validators = decodeStrings(validators)
	t.Informed = decodeStrings(informed)
	return t, nil
}

func (s *PostgresStore) InsertTask(ctx context.Context, t Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, project_id, name, description, sector, type,
			executors, validators, informed,
			start_date, due_date_original, due_date_current,
			estimated_minutes, actual_minutes, priority, status, display_order, created_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9::jsonb, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`,
		t.ID, t.ProjectID, t.Name, t.Description, t.Sector, t.Type,
		encodeStrings(t.Executors), encodeStrings(t.Validators), encodeStrings(t.Informed),
		t.StartDate, t.DueDateOriginal, t.DueDateCurrent,
		t.EstimatedMinutes, t.ActualMinutes, t.Priority, t.Status, t.DisplayOrder, t.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, id)
	return scanTask(row)
}

func (s *PostgresStore) ListTasksByProject(ctx context.Context, projectID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE project_id=$1
		ORDER BY status ASC, display_order ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MaxDisplayOrder returns the highest display order in a (project, status)
// lane, or 0 when the lane is empty.
func (s *PostgresStore) MaxDisplayOrder(ctx context.Context, projectID, status string) (int, error) {
	var max int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(display_order), 0) FROM tasks WHERE project_id=$1 AND status=$2
	`, projectID, status).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max display order: %w", err)
	}
	return max, nil
}

// UpdateTaskWithAudit writes the full task row and its per-field audit
// entries in one transaction so history never drifts from state.
func (s *PostgresStore) UpdateTaskWithAudit(ctx context.Context, t Task, entries []AuditEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin task update tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE tasks SET
			name=$2, description=$3, sector=$4, type=$5,
			executors=$6::jsonb, validators=$7::jsonb, informed=$8::jsonb,
			start_date=$9, estimated_minutes=$10, priority=$11, status=$12,
			display_order=$13, updated_at=NOW()
		WHERE id=$1
	`,
		t.ID, t.Name, t.Description, t.Sector, t.Type,
		encodeStrings(t.Executors), encodeStrings(t.Validators), encodeStrings(t.Informed),
		t.StartDate, t.EstimatedMinutes, t.Priority, t.Status, t.DisplayOrder,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO task_audit_log (id, task_id, field, old_value, new_value, changed_by)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, e.ID, e.TaskID, e.Field, e.OldValue, e.NewValue, e.ChangedBy); err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ListAuditEntries(ctx context.Context, taskID string) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, field, old_value, new_value, changed_by, created_at
		FROM task_audit_log WHERE task_id=$1
		ORDER BY created_at DESC, id DESC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Field, &e.OldValue, &e.NewValue, &e.ChangedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertTimeEntry appends the entry and bumps the task's actual minutes in
// one transaction. The total is floored at zero.
func (s *PostgresStore) InsertTimeEntry(ctx context.Context, e TimeEntry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin time entry tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO task_time_entries (id, task_id, started_at, ended_at, duration_minutes, source, note, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.TaskID, e.StartedAt, e.EndedAt, e.DurationMinutes, e.Source, e.Note, e.CreatedBy); err != nil {
		return 0, fmt.Errorf("insert time entry: %w", err)
	}

	var actual int
	err = tx.QueryRowContext(ctx, `
		UPDATE tasks SET actual_minutes = GREATEST(0, actual_minutes + $2), updated_at=NOW()
		WHERE id=$1
		RETURNING actual_minutes
	`, e.TaskID, e.DurationMinutes).Scan(&actual)
	if err != nil {
		return 0, fmt.Errorf("bump actual minutes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return actual, nil
}

func (s *PostgresStore) ListTimeEntries(ctx context.Context, taskID string) ([]TimeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, started_at, ended_at, duration_minutes, source, note, created_by, created_at
		FROM task_time_entries WHERE task_id=$1
		ORDER BY created_at DESC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	defer rows.Close()

	var out []TimeEntry
	for rows.Next() {
		var e TimeEntry
		if err := rows.Scan(&e.ID, &e.TaskID, &e.StartedAt, &e.EndedAt, &e.DurationMinutes, &e.Source, &e.Note, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan time entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertDueDateChange appends the change and moves the task's current due
// date in one transaction.
func (s *PostgresStore) InsertDueDateChange(ctx context.Context, c DueDateChange) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin due date tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO task_due_date_changes (id, task_id, previous_date, new_date, reason, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.TaskID, c.PreviousDate, c.NewDate, c.Reason, c.CreatedBy); err != nil {
		return fmt.Errorf("insert due date change: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE tasks SET due_date_current=$2, updated_at=NOW() WHERE id=$1
	`, c.TaskID, c.NewDate)
	if err != nil {
		return fmt.Errorf("move due date: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}

	return tx.Commit()
}

func (s *PostgresStore) ListDueDateChanges(ctx context.Context, taskID string) ([]DueDateChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, previous_date, new_date, reason, created_by, created_at
		FROM task_due_date_changes WHERE task_id=$1
		ORDER BY created_at DESC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list due date changes: %w", err)
	}
	defer rows.Close()

	var out []DueDateChange
	for rows.Next() {
		var c DueDateChange
		if err := rows.Scan(&c.ID, &c.TaskID, &c.PreviousDate, &c.NewDate, &c.Reason, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan due date change: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertComment(ctx context.Context, c Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_comments (id, task_id, content, author_id)
		VALUES ($1, $2, $3, $4)
	`, c.ID, c.TaskID, c.Content, c.AuthorID)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComment(ctx context.Context, id string) (Comment, error) {
	var c Comment
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.task_id, c.content, c.author_id, c.created_at, c.updated_at, u.name
		FROM task_comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.id=$1
	`, id).Scan(&c.ID, &c.TaskID, &c.Content, &c.AuthorID, &c.CreatedAt, &c.UpdatedAt, &c.AuthorName)
	if err != nil {
		return Comment{}, err
	}
	return c, nil
}

func (s *PostgresStore) ListComments(ctx context.Context, taskID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.task_id, c.content, c.author_id, c.created_at, c.updated_at, u.name
		FROM task_comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.task_id=$1
		ORDER BY c.created_at ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.Content, &c.AuthorID, &c.CreatedAt, &c.UpdatedAt, &c.AuthorName); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateComment(ctx context.Context, id, content string) (Comment, error) {
	_, err := s.db.ExecContext(ctx, `
		UPDATE task_comments SET content=$2, updated_at=NOW() WHERE id=$1
	`, id, content)
	if err != nil {
		return Comment{}, fmt.Errorf("update comment: %w", err)
	}
	return s.GetComment(ctx, id)
}

func (s *PostgresStore) DeleteComment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM task_comments WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
