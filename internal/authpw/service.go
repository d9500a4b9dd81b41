// Package authpw provides email/password authentication with the forced
// first-login password setup step for invited users.
package authpw

import (
	"context"
	"errors"
	"fmt"

	"trilha/api/internal/store"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSetupRequired      = errors.New("password setup required")
	ErrSetupAlreadyDone   = errors.New("password already set")
)

// UserStore defines the storage interface for auth
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	SetUserPassword(ctx context.Context, userID, passwordHash string) error
}

// Service provides email/password authentication
type Service struct {
	store UserStore
}

func NewService(store UserStore) *Service {
	return &Service{store: store}
}

// SignInRequest contains sign-in parameters
type SignInRequest struct {
	Email    string
	Password string
}

// SignInResponse contains sign-in result
type SignInResponse struct {
	User          store.User
	RequiresSetup bool
}

// SignIn authenticates a user. An invited user who has never completed
// password setup gets RequiresSetup=true and must not reach any other
// screen until SetupPassword succeeds.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (*SignInResponse, error) {
	if req.Email == "" {
		return nil, errors.New("email is required")
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.PasswordSet {
		return &SignInResponse{User: user, RequiresSetup: true}, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &SignInResponse{User: user, RequiresSetup: false}, nil
}

// SetupPasswordRequest contains first-login setup parameters
type SetupPasswordRequest struct {
	UserID      string
	NewPassword string
}

// SetupPassword completes the forced first-login step for an invited user.
func (s *Service) SetupPassword(ctx context.Context, req SetupPasswordRequest) error {
	if req.UserID == "" || req.NewPassword == "" {
		return errors.New("user id and new password are required")
	}
	if len(req.NewPassword) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	user, err := s.store.GetUserByID(ctx, req.UserID)
	if err != nil {
		return err
	}
	if user.PasswordSet {
		return ErrSetupAlreadyDone
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.store.SetUserPassword(ctx, req.UserID, string(hash)); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}
