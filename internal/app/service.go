package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"trilha/api/internal/auth"
	"trilha/api/internal/authpw"
	"trilha/api/internal/config"
	"trilha/api/internal/presence"
	"trilha/api/internal/rbac"
	"trilha/api/internal/search"
	"trilha/api/internal/store"
	"trilha/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	SuperUser    bool
	PasswordSet  bool
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	CreateUser(context.Context, store.User) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	EnsureUserByEmail(ctx context.Context, id, email, name, role string) (store.User, bool, error)
	SetUserPassword(ctx context.Context, userID, passwordHash string) error
	IsSuperUser(context.Context, string) (bool, error)
	ListUsers(context.Context) ([]store.User, error)
	ListUsersSharingWorkspaces(ctx context.Context, userID string) ([]store.User, error)

	InsertWorkspace(context.Context, store.Workspace) error
	GetWorkspace(context.Context, string) (store.Workspace, error)
	ListWorkspacesForUser(context.Context, string) ([]store.Workspace, error)
	ListAllWorkspaces(context.Context) ([]store.Workspace, error)
	UpdateWorkspace(ctx context.Context, id, name, description string) (store.Workspace, error)
	DeleteWorkspace(context.Context, string) error
	GetWorkspaceRole(ctx context.Context, workspaceID, userID string) (string, error)
	IsWorkspaceMember(ctx context.Context, workspaceID, userID string) (bool, error)
	ListWorkspaceMembers(context.Context, string) ([]store.WorkspaceMember, error)
	UpsertWorkspaceMember(ctx context.Context, workspaceID, userID, role string) error
	RemoveWorkspaceMember(ctx context.Context, workspaceID, userID string) error

	InsertProject(context.Context, store.Project) error
	GetProject(context.Context, string) (store.Project, error)
	ListProjectsByWorkspace(context.Context, string) ([]store.Project, error)
	UpdateProject(ctx context.Context, id, name, summary, status string) (store.Project, error)
	DeleteProject(context.Context, string) error
	GetProjectRole(ctx context.Context, projectID, userID string) (string, error)
	ListProjectMembers(context.Context, string) ([]store.ProjectMember, error)
	UpsertProjectMember(ctx context.Context, projectID, userID, role string) error
	RemoveProjectMember(ctx context.Context, projectID, userID string) error

	InsertTask(context.Context, store.Task) error
	GetTask(context.Context, string) (store.Task, error)
	ListTasksByProject(context.Context, string) ([]store.Task, error)
	MaxDisplayOrder(ctx context.Context, projectID, status string) (int, error)
	UpdateTaskWithAudit(context.Context, store.Task, []store.AuditEntry) error
	DeleteTask(context.Context, string) error
	ListAuditEntries(context.Context, string) ([]store.AuditEntry, error)
	InsertTimeEntry(context.Context, store.TimeEntry) (int, error)
	ListTimeEntries(context.Context, string) ([]store.TimeEntry, error)
	InsertDueDateChange(context.Context, store.DueDateChange) error
	ListDueDateChanges(context.Context, string) ([]store.DueDateChange, error)

	InsertComment(context.Context, store.Comment) error
	GetComment(context.Context, string) (store.Comment, error)
	ListComments(context.Context, string) ([]store.Comment, error)
	UpdateComment(ctx context.Context, id, content string) (store.Comment, error)
	DeleteComment(context.Context, string) error

	InsertSector(context.Context, store.Tag) error
	ListSectors(context.Context, string) ([]store.Tag, error)
	UpdateSector(context.Context, store.Tag) (store.Tag, error)
	DeleteSector(context.Context, string) error
	InsertTaskType(context.Context, store.Tag) error
	ListTaskTypes(context.Context, string) ([]store.Tag, error)
	UpdateTaskType(context.Context, store.Tag) (store.Tag, error)
	DeleteTaskType(context.Context, string) error
	GetTagWorkspace(ctx context.Context, table, id string) (string, error)

	InsertFeedPost(context.Context, store.FeedPost) error
	GetFeedPost(context.Context, string) (store.FeedPost, error)
	ListFeedPosts(ctx context.Context, workspaceID string, limit, offset int) ([]store.FeedPost, error)
	UpdateFeedPost(ctx context.Context, id, content string, taskIDs, mentioned []string) (store.FeedPost, error)
	DeleteFeedPost(context.Context, string) error
	InsertNotification(context.Context, store.Notification) error
	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]store.Notification, error)
	GetNotification(context.Context, string) (store.Notification, error)
	MarkNotificationRead(context.Context, string) error
	MarkAllNotificationsRead(context.Context, string) (int, error)
	InsertInvitation(context.Context, store.Invitation) error

	ListWorkspaceAuditWindow(ctx context.Context, workspaceID string, from, to time.Time) ([]store.SummaryAuditEntry, error)
	ListWorkspaceTimeWindow(ctx context.Context, workspaceID string, from, to time.Time) ([]store.SummaryTimeEntry, error)
	ListWorkspaceDueDateWindow(ctx context.Context, workspaceID string, from, to time.Time) ([]store.SummaryDueDateChange, error)
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type presenceStore interface {
	Touch(ctx context.Context, workspaceID, userID string, seenAt time.Time) error
	List(ctx context.Context, workspaceID string) ([]presence.Entry, error)
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexTask(t search.TaskRecord)
	IndexPost(p search.PostRecord)
	DeleteTask(id string)
	DeletePost(id string)
}

type emailSender interface {
	IsConfigured() bool
	SendInviteEmail(to, inviterName, workspaceName, role, setupURL string) error
	SendDailySummaryEmail(to []string, workspaceName, date string, lines []string) error
}

type Service struct {
	store    dataStore
	sessions sessionStore
	presence presenceStore
	search   searchIndex
	email    emailSender
	authpw   *authpw.Service
	cfg      config.Config
	pinger   interface{ PingContext(context.Context) error }
}

func NewService(
	dataStore dataStore,
	sessions sessionStore,
	presenceStore presenceStore,
	searchIndex searchIndex,
	email emailSender,
	authpwService *authpw.Service,
	cfg config.Config,
) *Service {
	return &Service{
		store:    dataStore,
		sessions: sessions,
		presence: presenceStore,
		search:   searchIndex,
		email:    email,
		authpw:   authpwService,
		cfg:      cfg,
	}
}

func (s *Service) SetPinger(pinger interface{ PingContext(context.Context) error }) {
	s.pinger = pinger
}

func (s *Service) Ping(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	return s.pinger.PingContext(ctx)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

// CreateSession issues an access token plus a rotating refresh token for
// the user.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}

	superUser, err := s.store.IsSuperUser(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}

	jti := util.NewID("jti")
	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:         user.ID,
		Name:        user.Name,
		Role:        user.Role,
		SuperUser:   superUser,
		PasswordSet: user.PasswordSet,
		JTI:         jti,
		Exp:         expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refreshToken := util.NewID("rft")
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refreshToken), user.ID, time.Now().Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refreshToken,
		UserID:       user.ID,
		UserName:     user.Name,
		Role:         user.Role,
		SuperUser:    superUser,
		PasswordSet:  user.PasswordSet,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh rotates the refresh token and issues a fresh access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	hash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, hash)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}

	if err := s.sessions.RevokeRefreshSession(ctx, hash); err != nil {
		return Session{}, err
	}
	return s.CreateSession(ctx, userID)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:       token,
		UserID:      claims.Sub,
		UserName:    claims.Name,
		Role:        claims.Role,
		SuperUser:   claims.SuperUser,
		PasswordSet: claims.PasswordSet,
		JTI:         claims.JTI,
		ExpiresAt:   time.Unix(claims.Exp, 0),
	}, nil
}

// CreateWorkspace provisions a workspace with the caller as its first
// manager. Only global managers and super users may create workspaces.
func (s *Service) CreateWorkspace(ctx context.Context, session Session, name, description string) (store.Workspace, error) {
	if !session.SuperUser && rbac.Normalize(session.Role) != rbac.RoleManager {
		return store.Workspace{}, errForbidden()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Workspace{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	ws := store.Workspace{
		ID:          util.NewID("ws"),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedBy:   session.UserID,
	}
	if err := s.store.InsertWorkspace(ctx, ws); err != nil {
		return store.Workspace{}, err
	}
	return s.store.GetWorkspace(ctx, ws.ID)
}

// ListWorkspaces returns the caller's workspaces. Super users see all of
// them.
func (s *Service) ListWorkspaces(ctx context.Context, session Session) ([]store.Workspace, error) {
	if session.SuperUser {
		return s.store.ListAllWorkspaces(ctx)
	}
	return s.store.ListWorkspacesForUser(ctx, session.UserID)
}

func (s *Service) GetWorkspace(ctx context.Context, session Session, workspaceID string) (store.Workspace, error) {
	if err := s.requireWorkspaceMember(ctx, session, workspaceID); err != nil {
		return store.Workspace{}, err
	}
	return s.store.GetWorkspace(ctx, workspaceID)
}

func (s *Service) UpdateWorkspace(ctx context.Context, session Session, workspaceID, name, description string) (store.Workspace, error) {
	if err := s.requireWorkspaceOwnership(ctx, session, workspaceID); err != nil {
		return store.Workspace{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Workspace{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	return s.store.UpdateWorkspace(ctx, workspaceID, name, strings.TrimSpace(description))
}

// DeleteWorkspace removes the workspace and everything beneath it.
func (s *Service) DeleteWorkspace(ctx context.Context, session Session, workspaceID string) error {
	if err := s.requireWorkspaceOwnership(ctx, session, workspaceID); err != nil {
		return err
	}
	return s.store.DeleteWorkspace(ctx, workspaceID)
}

// ListWorkspaceMembers exposes membership rows. Reading them is limited
// to the workspace owner and super users; plain members only ever learn
// their own standing.
func (s *Service) ListWorkspaceMembers(ctx context.Context, session Session, workspaceID string) ([]store.WorkspaceMember, error) {
	if err := s.requireWorkspaceOwnership(ctx, session, workspaceID); err != nil {
		return nil, err
	}
	return s.store.ListWorkspaceMembers(ctx, workspaceID)
}

func (s *Service) SetWorkspaceMember(ctx context.Context, session Session, workspaceID, userID, role string) error {
	if err := s.requireWorkspaceOwnership(ctx, session, workspaceID); err != nil {
		return err
	}
	if !validMemberRole(role) {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid role", nil)
	}
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return err
	}
	return s.store.UpsertWorkspaceMember(ctx, workspaceID, userID, role)
}

func (s *Service) RemoveWorkspaceMember(ctx context.Context, session Session, workspaceID, userID string) error {
	if err := s.requireWorkspaceOwnership(ctx, session, workspaceID); err != nil {
		return err
	}
	return s.store.RemoveWorkspaceMember(ctx, workspaceID, userID)
}

// ListUsers is scoped to the caller's own tenants: anyone only sees
// users they share a workspace with. Super users see the directory.
func (s *Service) ListUsers(ctx context.Context, session Session) ([]store.User, error) {
	if session.SuperUser {
		return s.store.ListUsers(ctx)
	}
	return s.store.ListUsersSharingWorkspaces(ctx, session.UserID)
}

func validMemberRole(role string) bool {
	switch role {
	case "manager", "executor", "viewer":
		return true
	default:
		return false
	}
}
