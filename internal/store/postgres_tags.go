package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Sectors and task types share one shape (Tag) but live in separate tables
// so each keeps its own (workspace, name) uniqueness.

func (s *PostgresStore) insertTag(ctx context.Context, table string, t Tag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO `+table+` (id, workspace_id, name, color)
		VALUES ($1, $2, $3, $4)
	`, t.ID, t.WorkspaceID, t.Name, t.Color)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) listTags(ctx context.Context, table, workspaceID string) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, name, color, created_at
		FROM `+table+` WHERE workspace_id=$1
		ORDER BY name ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var out []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.WorkspaceID, &t.Name, &t.Color, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) updateTag(ctx context.Context, table string, t Tag) (Tag, error) {
	var out Tag
	err := s.db.QueryRowContext(ctx, `
		UPDATE `+table+` SET name=$2, color=$3 WHERE id=$1
		RETURNING id, workspace_id, name, color, created_at
	`, t.ID, t.Name, t.Color).Scan(&out.ID, &out.WorkspaceID, &out.Name, &out.Color, &out.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Tag{}, ErrDuplicate
		}
		return Tag{}, err
	}
	return out, nil
}

func (s *PostgresStore) deleteTag(ctx context.Context, table, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) GetTagWorkspace(ctx context.Context, table, id string) (string, error) {
	var workspaceID string
	err := s.db.QueryRowContext(ctx, `SELECT workspace_id FROM `+table+` WHERE id=$1`, id).Scan(&workspaceID)
	if err != nil {
		return "", err
	}
	return workspaceID, nil
}

const (
	TableSectors   = "sectors"
	TableTaskTypes = "task_types"
)

func (s *PostgresStore) InsertSector(ctx context.Context, t Tag) error {
	return s.insertTag(ctx, TableSectors, t)
}

func (s *PostgresStore) ListSectors(ctx context.Context, workspaceID string) ([]Tag, error) {
	return s.listTags(ctx, TableSectors, workspaceID)
}

func (s *PostgresStore) UpdateSector(ctx context.Context, t Tag) (Tag, error) {
	return s.updateTag(ctx, TableSectors, t)
}

func (s *PostgresStore) DeleteSector(ctx context.Context, id string) error {
	return s.deleteTag(ctx, TableSectors, id)
}

func (s *PostgresStore) InsertTaskType(ctx context.Context, t Tag) error {
	return s.insertTag(ctx, TableTaskTypes, t)
}

func (s *PostgresStore) ListTaskTypes(ctx context.Context, workspaceID string) ([]Tag, error) {
	return s.listTags(ctx, TableTaskTypes, workspaceID)
}

func (s *PostgresStore) UpdateTaskType(ctx context.Context, t Tag) (Tag, error) {
	return s.updateTag(ctx, TableTaskTypes, t)
}

func (s *PostgresStore) DeleteTaskType(ctx context.Context, id string) error {
	return s.deleteTag(ctx, TableTaskTypes, id)
}
