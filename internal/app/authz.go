package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"trilha/api/internal/rbac"
)

// Authorization failures are always the same FORBIDDEN response. Callers
// never learn whether the resource exists or which check failed.
func errForbidden() *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

// hideNotFound maps a missing row onto the uniform denial. Fetches that
// run before authorization must not leak existence through a 404.
func hideNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errForbidden()
	}
	return err
}

// ownsResource is the single predicate for destructive writes on
// workspaces and projects and for membership changes: the creator who
// also holds the global manager role, or a super user. A manager-role
// membership alone never qualifies.
func ownsResource(session Session, createdBy string) bool {
	if session.SuperUser {
		return true
	}
	return createdBy == session.UserID && rbac.Normalize(session.Role) == rbac.RoleManager
}

// workspaceRole resolves the caller's effective role in a workspace.
// Super users act as managers everywhere.
func (s *Service) workspaceRole(ctx context.Context, session Session, workspaceID string) (rbac.Role, error) {
	if session.SuperUser {
		return rbac.RoleManager, nil
	}
	role, err := s.store.GetWorkspaceRole(ctx, workspaceID, session.UserID)
	if err != nil {
		return "", err
	}
	if role == "" {
		return "", errForbidden()
	}
	return rbac.Normalize(role), nil
}

// projectRole resolves the caller's effective role in a project as the
// strongest of the scopes that apply: an explicit project membership,
// the workspace membership of the project's parent, and the creator
// grants. Any workspace member can operate on tasks in any project of
// that workspace.
func (s *Service) projectRole(ctx context.Context, session Session, projectID string) (rbac.Role, string, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return "", "", hideNotFound(err)
	}
	if session.SuperUser {
		return rbac.RoleManager, project.WorkspaceID, nil
	}

	var best rbac.Role
	member := false

	if project.CreatedBy == session.UserID {
		if rbac.Normalize(session.Role) == rbac.RoleManager {
			// Ownership fast-path: a global manager has full rights on
			// what they created.
			return rbac.RoleManager, project.WorkspaceID, nil
		}
		best = rbac.RoleExecutor
		member = true
	}

	prjRole, err := s.store.GetProjectRole(ctx, projectID, session.UserID)
	if err != nil {
		return "", "", err
	}
	if prjRole != "" {
		best = rbac.Strongest(best, rbac.Normalize(prjRole))
		member = true
	}

	wsRole, err := s.store.GetWorkspaceRole(ctx, project.WorkspaceID, session.UserID)
	if err != nil {
		return "", "", err
	}
	if wsRole != "" {
		best = rbac.Strongest(best, rbac.Normalize(wsRole))
		member = true
	}

	if !member {
		return "", "", errForbidden()
	}
	return best, project.WorkspaceID, nil
}

// requireWorkspaceMember gates read access: any membership (or super user)
// passes.
func (s *Service) requireWorkspaceMember(ctx context.Context, session Session, workspaceID string) error {
	role, err := s.workspaceRole(ctx, session, workspaceID)
	if err != nil {
		return err
	}
	if !rbac.Can(role, rbac.ActionRead) {
		return errForbidden()
	}
	return nil
}

// requireWorkspaceOwnership gates workspace update/delete and workspace
// membership writes.
func (s *Service) requireWorkspaceOwnership(ctx context.Context, session Session, workspaceID string) error {
	if session.SuperUser {
		return nil
	}
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return errForbidden()
	}
	if !ownsResource(session, ws.CreatedBy) {
		return errForbidden()
	}
	return nil
}

// requireProjectAction gates project-scoped operations by rbac action.
// Returns the parent workspace ID for handlers that need it.
func (s *Service) requireProjectAction(ctx context.Context, session Session, projectID string, action rbac.Action) (string, error) {
	role, workspaceID, err := s.projectRole(ctx, session, projectID)
	if err != nil {
		return "", err
	}
	if !rbac.Can(role, action) {
		return "", errForbidden()
	}
	return workspaceID, nil
}

// requireProjectOwnership gates project update/delete and project
// membership writes. Same predicate as workspaces.
func (s *Service) requireProjectOwnership(ctx context.Context, session Session, projectID string) error {
	if session.SuperUser {
		return nil
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return errForbidden()
	}
	if !ownsResource(session, project.CreatedBy) {
		return errForbidden()
	}
	return nil
}

// requireWorkspaceAction gates workspace-scoped operations (feed, tags)
// by rbac action.
func (s *Service) requireWorkspaceAction(ctx context.Context, session Session, workspaceID string, action rbac.Action) error {
	role, err := s.workspaceRole(ctx, session, workspaceID)
	if err != nil {
		return err
	}
	if !rbac.Can(role, action) {
		return errForbidden()
	}
	return nil
}
