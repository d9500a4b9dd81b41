package app

import (
	"context"
	"net/http"
	"strings"

	"trilha/api/internal/rbac"
	"trilha/api/internal/store"
	"trilha/api/internal/util"
)

// CreateProject mirrors the workspace-create rule: the creator must hold
// the global manager role (or be a super user), and must belong to the
// parent workspace.
func (s *Service) CreateProject(ctx context.Context, session Session, workspaceID, name, summary string) (store.Project, error) {
	if err := s.requireWorkspaceMember(ctx, session, workspaceID); err != nil {
		return store.Project{}, err
	}
	if !session.SuperUser && rbac.Normalize(session.Role) != rbac.RoleManager {
		return store.Project{}, errForbidden()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Project{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	project := store.Project{
		ID:          util.NewID("prj"),
		WorkspaceID: workspaceID,
		Name:        name,
		Summary:     strings.TrimSpace(summary),
		Status:      "active",
		CreatedBy:   session.UserID,
	}
	if err := s.store.InsertProject(ctx, project); err != nil {
		return store.Project{}, err
	}
	return s.store.GetProject(ctx, project.ID)
}

func (s *Service) ListProjects(ctx context.Context, session Session, workspaceID string) ([]store.Project, error) {
	if err := s.requireWorkspaceMember(ctx, session, workspaceID); err != nil {
		return nil, err
	}
	return s.store.ListProjectsByWorkspace(ctx, workspaceID)
}

func (s *Service) GetProject(ctx context.Context, session Session, projectID string) (store.Project, error) {
	if _, err := s.requireProjectAction(ctx, session, projectID, rbac.ActionRead); err != nil {
		return store.Project{}, err
	}
	return s.store.GetProject(ctx, projectID)
}

func (s *Service) UpdateProject(ctx context.Context, session Session, projectID, name, summary, status string) (store.Project, error) {
	if err := s.requireProjectOwnership(ctx, session, projectID); err != nil {
		return store.Project{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Project{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	return s.store.UpdateProject(ctx, projectID, name, strings.TrimSpace(summary), status)
}

// DeleteProject removes the project and its tasks.
func (s *Service) DeleteProject(ctx context.Context, session Session, projectID string) error {
	if err := s.requireProjectOwnership(ctx, session, projectID); err != nil {
		return err
	}
	tasks, err := s.store.ListTasksByProject(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	if s.search != nil {
		for _, t := range tasks {
			s.search.DeleteTask(t.ID)
		}
	}
	return nil
}

// ListProjectMembers is owner-or-super only, like the workspace variant.
func (s *Service) ListProjectMembers(ctx context.Context, session Session, projectID string) ([]store.ProjectMember, error) {
	if err := s.requireProjectOwnership(ctx, session, projectID); err != nil {
		return nil, err
	}
	return s.store.ListProjectMembers(ctx, projectID)
}

func (s *Service) SetProjectMember(ctx context.Context, session Session, projectID, userID, role string) error {
	if err := s.requireProjectOwnership(ctx, session, projectID); err != nil {
		return err
	}
	if !validMemberRole(role) {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid role", nil)
	}
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return err
	}
	return s.store.UpsertProjectMember(ctx, projectID, userID, role)
}

func (s *Service) RemoveProjectMember(ctx context.Context, session Session, projectID, userID string) error {
	if err := s.requireProjectOwnership(ctx, session, projectID); err != nil {
		return err
	}
	return s.store.RemoveProjectMember(ctx, projectID, userID)
}
