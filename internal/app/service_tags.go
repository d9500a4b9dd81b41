package app

import (
	"context"
	"net/http"
	"strings"

	"trilha/api/internal/rbac"
	"trilha/api/internal/store"
	"trilha/api/internal/util"
)

// Sectors and task types are workspace vocabularies. Reading needs
// membership; changing them needs manage rights. Names are unique per
// workspace.

func (s *Service) CreateSector(ctx context.Context, session Session, workspaceID, name, color string) (store.Tag, error) {
	return s.createTag(ctx, session, workspaceID, name, color, store.TableSectors)
}

func (s *Service) ListSectors(ctx context.Context, session Session, workspaceID string) ([]store.Tag, error) {
	if err := s.requireWorkspaceMember(ctx, session, workspaceID); err != nil {
		return nil, err
	}
	return s.store.ListSectors(ctx, workspaceID)
}

func (s *Service) UpdateSector(ctx context.Context, session Session, tagID, name, color string) (store.Tag, error) {
	return s.updateTag(ctx, session, tagID, name, color, store.TableSectors)
}

func (s *Service) DeleteSector(ctx context.Context, session Session, tagID string) error {
	return s.deleteTag(ctx, session, tagID, store.TableSectors)
}

func (s *Service) CreateTaskType(ctx context.Context, session Session, workspaceID, name, color string) (store.Tag, error) {
	return s.createTag(ctx, session, workspaceID, name, color, store.TableTaskTypes)
}

func (s *Service) ListTaskTypes(ctx context.Context, session Session, workspaceID string) ([]store.Tag, error) {
	if err := s.requireWorkspaceMember(ctx, session, workspaceID); err != nil {
		return nil, err
	}
	return s.store.ListTaskTypes(ctx, workspaceID)
}

func (s *Service) UpdateTaskType(ctx context.Context, session Session, tagID, name, color string) (store.Tag, error) {
	return s.updateTag(ctx, session, tagID, name, color, store.TableTaskTypes)
}

func (s *Service) DeleteTaskType(ctx context.Context, session Session, tagID string) error {
	return s.deleteTag(ctx, session, tagID, store.TableTaskTypes)
}

func (s *Service) createTag(ctx context.Context, session Session, workspaceID, name, color, table string) (store.Tag, error) {
	if err := s.requireWorkspaceAction(ctx, session, workspaceID, rbac.ActionManage); err != nil {
		return store.Tag{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Tag{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	tag := store.Tag{
		ID:          util.NewID("tag"),
		WorkspaceID: workspaceID,
		Name:        name,
		Color:       color,
	}
	var err error
	if table == store.TableSectors {
		err = s.store.InsertSector(ctx, tag)
	} else {
		err = s.store.InsertTaskType(ctx, tag)
	}
	if err == store.ErrDuplicate {
		return store.Tag{}, domainError(http.StatusConflict, "CONFLICT", "name already in use", nil)
	}
	if err != nil {
		return store.Tag{}, err
	}
	return tag, nil
}

func (s *Service) updateTag(ctx context.Context, session Session, tagID, name, color, table string) (store.Tag, error) {
	workspaceID, err := s.store.GetTagWorkspace(ctx, table, tagID)
	if err != nil {
		return store.Tag{}, hideNotFound(err)
	}
	if err := s.requireWorkspaceAction(ctx, session, workspaceID, rbac.ActionManage); err != nil {
		return store.Tag{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Tag{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	tag := store.Tag{ID: tagID, Name: name, Color: color}
	var updated store.Tag
	if table == store.TableSectors {
		updated, err = s.store.UpdateSector(ctx, tag)
	} else {
		updated, err = s.store.UpdateTaskType(ctx, tag)
	}
	if err == store.ErrDuplicate {
		return store.Tag{}, domainError(http.StatusConflict, "CONFLICT", "name already in use", nil)
	}
	if err != nil {
		return store.Tag{}, err
	}
	return updated, nil
}

func (s *Service) deleteTag(ctx context.Context, session Session, tagID, table string) error {
	workspaceID, err := s.store.GetTagWorkspace(ctx, table, tagID)
	if err != nil {
		return hideNotFound(err)
	}
	if err := s.requireWorkspaceAction(ctx, session, workspaceID, rbac.ActionManage); err != nil {
		return err
	}
	if table == store.TableSectors {
		return s.store.DeleteSector(ctx, tagID)
	}
	return s.store.DeleteTaskType(ctx, tagID)
}
