package app

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"trilha/api/internal/presence"
	"trilha/api/internal/rbac"
	"trilha/api/internal/search"
	"trilha/api/internal/store"
	"trilha/api/internal/util"
)

type FeedPostInput struct {
	Content          string
	TaskIDs          []string
	MentionedUserIDs []string
}

type FeedPostResult struct {
	Post     store.FeedPost
	Notified []string
	Warning  string
}

// CreateFeedPost publishes to the workspace feed and fans notifications
// out to mentioned members. Posting requires at least executor rights.
// Mentions of non-members are dropped silently; the author never receives
// their own notification. Fan-out failures do not fail the post.
func (s *Service) CreateFeedPost(ctx context.Context, session Session, workspaceID string, input FeedPostInput) (FeedPostResult, error) {
	if err := s.requireWorkspaceAction(ctx, session, workspaceID, rbac.ActionPost); err != nil {
		return FeedPostResult{}, err
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return FeedPostResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}

	post := store.FeedPost{
		ID:               util.NewID("pst"),
		WorkspaceID:      workspaceID,
		Content:          content,
		TaskIDs:          nonNilList(input.TaskIDs),
		MentionedUserIDs: nonNilList(input.MentionedUserIDs),
		AuthorID:         session.UserID,
	}
	if err := s.store.InsertFeedPost(ctx, post); err != nil {
		return FeedPostResult{}, err
	}

	created, err := s.store.GetFeedPost(ctx, post.ID)
	if err != nil {
		return FeedPostResult{}, err
	}
	s.indexPost(created)

	notified, warning := s.fanOutNotifications(ctx, created)
	return FeedPostResult{Post: created, Notified: notified, Warning: warning}, nil
}

func (s *Service) fanOutNotifications(ctx context.Context, post store.FeedPost) ([]string, string) {
	notified := []string{}
	var warning string
	seen := map[string]bool{}

	for _, userID := range post.MentionedUserIDs {
		if userID == post.AuthorID || seen[userID] {
			continue
		}
		seen[userID] = true

		member, err := s.store.IsWorkspaceMember(ctx, post.WorkspaceID, userID)
		if err != nil {
			log.Printf("feed: membership check for %s failed: %v", userID, err)
			warning = "some notifications could not be delivered"
			continue
		}
		if !member {
			continue
		}

		notification := store.Notification{
			ID:          util.NewID("ntf"),
			PostID:      post.ID,
			WorkspaceID: post.WorkspaceID,
			RecipientID: userID,
		}
		if err := s.store.InsertNotification(ctx, notification); err != nil {
			log.Printf("feed: notification for %s failed: %v", userID, err)
			warning = "some notifications could not be delivered"
			continue
		}
		notified = append(notified, userID)
	}
	return notified, warning
}

func (s *Service) ListFeedPosts(ctx context.Context, session Session, workspaceID string, limit, offset int) ([]store.FeedPost, error) {
	if err := s.requireWorkspaceMember(ctx, session, workspaceID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListFeedPosts(ctx, workspaceID, limit, offset)
}

// UpdateFeedPost is restricted to the author or a super user. Edits do
// not re-trigger notifications.
func (s *Service) UpdateFeedPost(ctx context.Context, session Session, postID string, input FeedPostInput) (store.FeedPost, error) {
	post, err := s.store.GetFeedPost(ctx, postID)
	if err != nil {
		return store.FeedPost{}, hideNotFound(err)
	}
	if err := requirePostOwnership(session, post); err != nil {
		return store.FeedPost{}, err
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return store.FeedPost{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}

	updated, err := s.store.UpdateFeedPost(ctx, postID, content, nonNilList(input.TaskIDs), nonNilList(input.MentionedUserIDs))
	if err != nil {
		return store.FeedPost{}, err
	}
	s.indexPost(updated)
	return updated, nil
}

func (s *Service) DeleteFeedPost(ctx context.Context, session Session, postID string) error {
	post, err := s.store.GetFeedPost(ctx, postID)
	if err != nil {
		return hideNotFound(err)
	}
	if err := requirePostOwnership(session, post); err != nil {
		return err
	}
	if err := s.store.DeleteFeedPost(ctx, postID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeletePost(postID)
	}
	return nil
}

// Feed posts belong to their author. Workspace managers have no say
// over them; only a super user may step in.
func requirePostOwnership(session Session, post store.FeedPost) error {
	if post.AuthorID == session.UserID || session.SuperUser {
		return nil
	}
	return errForbidden()
}

func (s *Service) ListNotifications(ctx context.Context, session Session, unreadOnly bool) ([]store.Notification, error) {
	return s.store.ListNotifications(ctx, session.UserID, unreadOnly)
}

// MarkNotificationRead works on the caller's own notifications; a super
// user may clear anyone's.
func (s *Service) MarkNotificationRead(ctx context.Context, session Session, notificationID string) error {
	notification, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		return hideNotFound(err)
	}
	if notification.RecipientID != session.UserID && !session.SuperUser {
		return errForbidden()
	}
	return s.store.MarkNotificationRead(ctx, notificationID)
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, session Session) (int, error) {
	return s.store.MarkAllNotificationsRead(ctx, session.UserID)
}

// TouchPresence records the caller as active in the workspace.
func (s *Service) TouchPresence(ctx context.Context, session Session, workspaceID string) error {
	if err := s.requireWorkspaceMember(ctx, session, workspaceID); err != nil {
		return err
	}
	if s.presence == nil {
		return nil
	}
	return s.presence.Touch(ctx, workspaceID, session.UserID, time.Now())
}

func (s *Service) ListPresence(ctx context.Context, session Session, workspaceID string) ([]presence.Entry, error) {
	if err := s.requireWorkspaceMember(ctx, session, workspaceID); err != nil {
		return nil, err
	}
	if s.presence == nil {
		return []presence.Entry{}, nil
	}
	return s.presence.List(ctx, workspaceID)
}

func (s *Service) indexPost(post store.FeedPost) {
	if s.search == nil {
		return
	}
	s.search.IndexPost(search.PostRecord{
		ID:          post.ID,
		Content:     post.Content,
		Author:      post.AuthorName,
		WorkspaceID: post.WorkspaceID,
	})
}
