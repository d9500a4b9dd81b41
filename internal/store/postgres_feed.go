package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *PostgresStore) InsertFeedPost(ctx context.Context, p FeedPost) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feed_posts (id, workspace_id, content, task_ids, mentioned_user_ids, author_id)
		VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6)
	`, p.ID, p.WorkspaceID, p.Content, encodeStrings(p.TaskIDs), encodeStrings(p.MentionedUserIDs), p.AuthorID)
	if err != nil {
		return fmt.Errorf("insert feed post: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFeedPost(ctx context.Context, id string) (FeedPost, error) {
	var p FeedPost
	var taskIDs, mentioned []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.workspace_id, p.content, p.task_ids, p.mentioned_user_ids, p.author_id, p.created_at, p.updated_at, u.name
		FROM feed_posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.id=$1
	`, id).Scan(&p.ID, &p.WorkspaceID, &p.Content, &taskIDs, &mentioned, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt, &p.AuthorName)
	if err != nil {
		return FeedPost{}, err
	}
	p.TaskIDs = decodeStrings(taskIDs)
	p.MentionedUserIDs = decodeStrings(mentioned)
	return p, nil
}

func (s *PostgresStore) ListFeedPosts(ctx context.Context, workspaceID string, limit, offset int) ([]FeedPost, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.workspace_id, p.content, p.task_ids, p.mentioned_user_ids, p.author_id, p.created_at, p.updated_at, u.name
		FROM feed_posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.workspace_id=$1
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3
	`, workspaceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list feed posts: %w", err)
	}
	defer rows.Close()

	var out []FeedPost
	for rows.Next() {
		var p FeedPost
		var taskIDs, mentioned []byte
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.Content, &taskIDs, &mentioned, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt, &p.AuthorName); err != nil {
			return nil, fmt.Errorf("scan feed post: %w", err)
		}
		p.TaskIDs = decodeStrings(taskIDs)
		p.MentionedUserIDs = decodeStrings(mentioned)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateFeedPost(ctx context.Context, id, content string, taskIDs, mentioned []string) (FeedPost, error) {
	_, err := s.db.ExecContext(ctx, `
		UPDATE feed_posts SET content=$2, task_ids=$3::jsonb, mentioned_user_ids=$4::jsonb, updated_at=NOW()
		WHERE id=$1
	`, id, content, encodeStrings(taskIDs), encodeStrings(mentioned))
	if err != nil {
		return FeedPost{}, fmt.Errorf("update feed post: %w", err)
	}
	return s.GetFeedPost(ctx, id)
}

// DeleteFeedPost removes the post. Notifications follow via ON DELETE CASCADE.
func (s *PostgresStore) DeleteFeedPost(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM feed_posts WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete feed post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) InsertNotification(ctx context.Context, n Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, post_id, workspace_id, recipient_id, read)
		VALUES ($1, $2, $3, $4, $5)
	`, n.ID, n.PostID, n.WorkspaceID, n.RecipientID, n.Read)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]Notification, error) {
	query := `
		SELECT id, post_id, workspace_id, recipient_id, read, created_at
		FROM notifications
		WHERE recipient_id=$1
	`
	if unreadOnly {
		query += ` AND read=FALSE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.PostID, &n.WorkspaceID, &n.RecipientID, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetNotification(ctx context.Context, id string) (Notification, error) {
	var n Notification
	err := s.db.QueryRowContext(ctx, `
		SELECT id, post_id, workspace_id, recipient_id, read, created_at
		FROM notifications WHERE id=$1
	`, id).Scan(&n.ID, &n.PostID, &n.WorkspaceID, &n.RecipientID, &n.Read, &n.CreatedAt)
	if err != nil {
		return Notification{}, err
	}
	return n, nil
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read=TRUE WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read=TRUE WHERE recipient_id=$1 AND read=FALSE`, recipientID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) InsertInvitation(ctx context.Context, inv Invitation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invitations (id, email, role, workspace_ids, project_ids, invited_by)
		VALUES ($1, LOWER($2), $3, $4::jsonb, $5::jsonb, $6)
	`, inv.ID, inv.Email, inv.Role, encodeStrings(inv.WorkspaceIDs), encodeStrings(inv.ProjectIDs), inv.InvitedBy)
	if err != nil {
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}
