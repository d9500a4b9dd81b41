package app

import (
	"time"

	"trilha/api/internal/store"
)

// Wire representations. All timestamps are RFC 3339 UTC.

type userDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PasswordSet bool   `json:"passwordSet"`
}

type workspaceDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type memberDTO struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type projectDTO struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Name        string    `json:"name"`
	Summary     string    `json:"summary"`
	Status      string    `json:"status"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type taskDTO struct {
	ID               string     `json:"id"`
	ProjectID        string     `json:"projectId"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	Sector           string     `json:"sector"`
	Type             string     `json:"type"`
	Executors        []string   `json:"executors"`
	Validators       []string   `json:"validators"`
	Informed         []string   `json:"informed"`
	StartDate        *time.Time `json:"startDate"`
	DueDateOriginal  *time.Time `json:"dueDateOriginal"`
	DueDateCurrent   *time.Time `json:"dueDateCurrent"`
	EstimatedMinutes int        `json:"estimatedMinutes"`
	ActualMinutes    int        `json:"actualMinutes"`
	Priority         string     `json:"priority"`
	Status           string     `json:"status"`
	DisplayOrder     int        `json:"displayOrder"`
	CreatedBy        string     `json:"createdBy"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type auditEntryDTO struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	Field     string    `json:"field"`
	OldValue  *string   `json:"oldValue"`
	NewValue  *string   `json:"newValue"`
	ChangedBy string    `json:"changedBy"`
	CreatedAt time.Time `json:"createdAt"`
}

type timeEntryDTO struct {
	ID              string     `json:"id"`
	TaskID          string     `json:"taskId"`
	StartedAt       *time.Time `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt"`
	DurationMinutes int        `json:"durationMinutes"`
	Source          string     `json:"source"`
	Note            string     `json:"note"`
	CreatedBy       string     `json:"createdBy"`
	CreatedAt       time.Time  `json:"createdAt"`
}

type dueDateChangeDTO struct {
	ID           string     `json:"id"`
	TaskID       string     `json:"taskId"`
	PreviousDate *time.Time `json:"previousDate"`
	NewDate      time.Time  `json:"newDate"`
	Reason       string     `json:"reason"`
	CreatedBy    string     `json:"createdBy"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type commentDTO struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"taskId"`
	Content    string    `json:"content"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type tagDTO struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"createdAt"`
}

type feedPostDTO struct {
	ID               string    `json:"id"`
	WorkspaceID      string    `json:"workspaceId"`
	Content          string    `json:"content"`
	TaskIDs          []string  `json:"taskIds"`
	MentionedUserIDs []string  `json:"mentionedUserIds"`
	AuthorID         string    `json:"authorId"`
	AuthorName       string    `json:"authorName"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type notificationDTO struct {
	ID          string    `json:"id"`
	PostID      string    `json:"postId"`
	WorkspaceID string    `json:"workspaceId"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toUserDTO(u store.User) userDTO {
	return userDTO{ID: u.ID, Name: u.Name, Email: u.Email, PasswordSet: u.PasswordSet}
}

func toWorkspaceDTO(ws store.Workspace) workspaceDTO {
	return workspaceDTO{
		ID: ws.ID, Name: ws.Name, Description: ws.Description,
		CreatedBy: ws.CreatedBy, CreatedAt: ws.CreatedAt, UpdatedAt: ws.UpdatedAt,
	}
}

func toProjectDTO(p store.Project) projectDTO {
	return projectDTO{
		ID: p.ID, WorkspaceID: p.WorkspaceID, Name: p.Name, Summary: p.Summary,
		Status: p.Status, CreatedBy: p.CreatedBy, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

func toTaskDTO(t store.Task) taskDTO {
	return taskDTO{
		ID: t.ID, ProjectID: t.ProjectID, Name: t.Name, Description: t.Description,
		Sector: t.Sector, Type: t.Type,
		Executors: nonNilList(t.Executors), Validators: nonNilList(t.Validators), Informed: nonNilList(t.Informed),
		StartDate: t.StartDate, DueDateOriginal: t.DueDateOriginal, DueDateCurrent: t.DueDateCurrent,
		EstimatedMinutes: t.EstimatedMinutes, ActualMinutes: t.ActualMinutes,
		Priority: t.Priority, Status: t.Status, DisplayOrder: t.DisplayOrder,
		CreatedBy: t.CreatedBy, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
}

func toAuditEntryDTO(e store.AuditEntry) auditEntryDTO {
	return auditEntryDTO{
		ID: e.ID, TaskID: e.TaskID, Field: e.Field,
		OldValue: e.OldValue, NewValue: e.NewValue,
		ChangedBy: e.ChangedBy, CreatedAt: e.CreatedAt,
	}
}

func toTimeEntryDTO(e store.TimeEntry) timeEntryDTO {
	return timeEntryDTO{
		ID: e.ID, TaskID: e.TaskID, StartedAt: e.StartedAt, EndedAt: e.EndedAt,
		DurationMinutes: e.DurationMinutes, Source: e.Source, Note: e.Note,
		CreatedBy: e.CreatedBy, CreatedAt: e.CreatedAt,
	}
}

func toDueDateChangeDTO(c store.DueDateChange) dueDateChangeDTO {
	return dueDateChangeDTO{
		ID: c.ID, TaskID: c.TaskID, PreviousDate: c.PreviousDate, NewDate: c.NewDate,
		Reason: c.Reason, CreatedBy: c.CreatedBy, CreatedAt: c.CreatedAt,
	}
}

func toCommentDTO(c store.Comment) commentDTO {
	return commentDTO{
		ID: c.ID, TaskID: c.TaskID, Content: c.Content,
		AuthorID: c.AuthorID, AuthorName: c.AuthorName,
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

func toTagDTO(t store.Tag) tagDTO {
	return tagDTO{ID: t.ID, WorkspaceID: t.WorkspaceID, Name: t.Name, Color: t.Color, CreatedAt: t.CreatedAt}
}

func toFeedPostDTO(p store.FeedPost) feedPostDTO {
	return feedPostDTO{
		ID: p.ID, WorkspaceID: p.WorkspaceID, Content: p.Content,
		TaskIDs: nonNilList(p.TaskIDs), MentionedUserIDs: nonNilList(p.MentionedUserIDs),
		AuthorID: p.AuthorID, AuthorName: p.AuthorName,
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

func toNotificationDTO(n store.Notification) notificationDTO {
	return notificationDTO{
		ID: n.ID, PostID: n.PostID, WorkspaceID: n.WorkspaceID,
		Read: n.Read, CreatedAt: n.CreatedAt,
	}
}

func toWorkspaceDTOs(in []store.Workspace) []workspaceDTO {
	out := make([]workspaceDTO, 0, len(in))
	for _, ws := range in {
		out = append(out, toWorkspaceDTO(ws))
	}
	return out
}

func toProjectDTOs(in []store.Project) []projectDTO {
	out := make([]projectDTO, 0, len(in))
	for _, p := range in {
		out = append(out, toProjectDTO(p))
	}
	return out
}

func toTaskDTOs(in []store.Task) []taskDTO {
	out := make([]taskDTO, 0, len(in))
	for _, t := range in {
		out = append(out, toTaskDTO(t))
	}
	return out
}
