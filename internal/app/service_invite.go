package app

import (
	"context"
	"log"
	"net/http"
	"net/mail"
	"strings"

	"trilha/api/internal/store"
	"trilha/api/internal/util"
)

type InviteInput struct {
	Email        string
	Name         string
	Role         string
	WorkspaceIDs []string
	ProjectIDs   []string
}

type InviteResult struct {
	User       store.User
	Created    bool
	EmailSent  bool
	Invitation store.Invitation
}

// Invite grants a user access to workspaces and projects, provisioning
// the account when the email is new. Fresh accounts have no password and
// are forced through setup on first sign-in. Re-inviting an existing
// member is idempotent.
func (s *Service) Invite(ctx context.Context, session Session, input InviteInput) (InviteResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return InviteResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid email", nil)
	}
	if !validMemberRole(input.Role) {
		return InviteResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid role", nil)
	}
	if len(input.WorkspaceIDs) == 0 && len(input.ProjectIDs) == 0 {
		return InviteResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "at least one workspace or project is required", nil)
	}

	// The inviter must hold manage rights on every named scope before
	// anything is written.
	for _, workspaceID := range input.WorkspaceIDs {
		if err := s.requireWorkspaceOwnership(ctx, session, workspaceID); err != nil {
			return InviteResult{}, err
		}
	}
	for _, projectID := range input.ProjectIDs {
		if err := s.requireProjectOwnership(ctx, session, projectID); err != nil {
			return InviteResult{}, err
		}
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = input.Email[:strings.Index(input.Email, "@")]
	}

	// A fresh account takes the invited role as its global role; an
	// existing account keeps whatever it already has.
	user, created, err := s.store.EnsureUserByEmail(ctx, util.NewID("usr"), input.Email, name, input.Role)
	if err != nil {
		return InviteResult{}, err
	}

	for _, workspaceID := range input.WorkspaceIDs {
		if err := s.store.UpsertWorkspaceMember(ctx, workspaceID, user.ID, input.Role); err != nil {
			return InviteResult{}, err
		}
	}
	for _, projectID := range input.ProjectIDs {
		if err := s.store.UpsertProjectMember(ctx, projectID, user.ID, input.Role); err != nil {
			return InviteResult{}, err
		}
	}

	invitation := store.Invitation{
		ID:           util.NewID("inv"),
		Email:        input.Email,
		Role:         input.Role,
		WorkspaceIDs: nonNilList(input.WorkspaceIDs),
		ProjectIDs:   nonNilList(input.ProjectIDs),
		InvitedBy:    session.UserID,
	}
	if err := s.store.InsertInvitation(ctx, invitation); err != nil {
		return InviteResult{}, err
	}

	emailSent := s.sendInviteEmail(ctx, session, user, input)

	return InviteResult{User: user, Created: created, EmailSent: emailSent, Invitation: invitation}, nil
}

// sendInviteEmail is best effort. A delivery failure never fails the
// invite; it is logged and reported as a soft warning.
func (s *Service) sendInviteEmail(ctx context.Context, session Session, user store.User, input InviteInput) bool {
	if s.email == nil || !s.email.IsConfigured() {
		return false
	}

	workspaceName := ""
	if len(input.WorkspaceIDs) > 0 {
		if ws, err := s.store.GetWorkspace(ctx, input.WorkspaceIDs[0]); err == nil {
			workspaceName = ws.Name
		}
	} else if len(input.ProjectIDs) > 0 {
		if project, err := s.store.GetProject(ctx, input.ProjectIDs[0]); err == nil {
			if ws, err := s.store.GetWorkspace(ctx, project.WorkspaceID); err == nil {
				workspaceName = ws.Name
			}
		}
	}

	setupURL := strings.TrimRight(s.cfg.AppBaseURL, "/") + "/setup"
	if err := s.email.SendInviteEmail(user.Email, session.UserName, workspaceName, input.Role, setupURL); err != nil {
		log.Printf("invite: email to %s failed: %v", user.Email, err)
		return false
	}
	return true
}
