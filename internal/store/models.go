package store

import "time"

type User struct {
	ID           string
	Name         string
	Email        string
	Role         string
	PasswordHash string
	PasswordSet  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Workspace struct {
	ID          string
	Name        string
	Description string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type WorkspaceMember struct {
	WorkspaceID string
	UserID      string
	Role        string
	CreatedAt   time.Time
	// Joined fields for API responses
	UserName  string
	UserEmail string
}

type Project struct {
	ID          string
	WorkspaceID string
	Name        string
	Summary     string
	Status      string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ProjectMember struct {
	ProjectID string
	UserID    string
	Role      string
	CreatedAt time.Time
	// Joined fields for API responses
	UserName  string
	UserEmail string
}

// Task statuses are the product's kanban lanes.
const (
	StatusBacklog     = "Backlog"
	StatusPendente    = "Pendente"
	StatusEmExecucao  = "Em Execução"
	StatusEmValidacao = "Em Validação"
	StatusConcluida   = "Concluída"
	StatusBloqueada   = "Bloqueada"
	StatusCancelada   = "Cancelada"
)

func ValidTaskStatus(status string) bool {
	switch status {
	case StatusBacklog, StatusPendente, StatusEmExecucao, StatusEmValidacao,
		StatusConcluida, StatusBloqueada, StatusCancelada:
		return true
	default:
		return false
	}
}

type Task struct {
	ID               string
	ProjectID        string
	Name             string
	Description      string
	Sector           string
	Type             string
	Executors        []string
	Validators       []string
	Informed         []string
	StartDate        *time.Time
	DueDateOriginal  *time.Time
	DueDateCurrent   *time.Time
	EstimatedMinutes int
	ActualMinutes    int
	Priority         string
	Status           string
	DisplayOrder     int
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TimeEntry is an immutable work log row. Appending one atomically bumps
// the parent task's actual-minutes total.
type TimeEntry struct {
	ID              string
	TaskID          string
	StartedAt       *time.Time
	EndedAt         *time.Time
	DurationMinutes int
	Source          string // timer | manual
	Note            string
	CreatedBy       string
	CreatedAt       time.Time
}

// DueDateChange is an immutable row capturing a reschedule. Appending one
// atomically moves the task's current due date.
type DueDateChange struct {
	ID           string
	TaskID       string
	PreviousDate *time.Time
	NewDate      time.Time
	Reason       string
	CreatedBy    string
	CreatedAt    time.Time
}

// AuditEntry is one field's before/after record for a task mutation.
// Values are serialized (nil for null, raw string for strings, canonical
// JSON for everything else).
type AuditEntry struct {
	ID        string
	TaskID    string
	Field     string
	OldValue  *string
	NewValue  *string
	ChangedBy string
	CreatedAt time.Time
}

type Comment struct {
	ID        string
	TaskID    string
	Content   string
	AuthorID  string
	CreatedAt time.Time
	UpdatedAt time.Time
	// Joined field for API responses
	AuthorName string
}

// Tag is a workspace-scoped vocabulary entry, used for both sectors and
// task types. Unique per (workspace, name).
type Tag struct {
	ID          string
	WorkspaceID string
	Name        string
	Color       string
	CreatedAt   time.Time
}

type FeedPost struct {
	ID               string
	WorkspaceID      string
	Content          string
	TaskIDs          []string
	MentionedUserIDs []string
	AuthorID         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	// Joined field for API responses
	AuthorName string
}

type Notification struct {
	ID          string
	PostID      string
	WorkspaceID string
	RecipientID string
	Read        bool
	CreatedAt   time.Time
}

type Invitation struct {
	ID           string
	Email        string
	Role         string
	WorkspaceIDs []string
	ProjectIDs   []string
	InvitedBy    string
	CreatedAt    time.Time
}
