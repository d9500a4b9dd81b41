package authpw

import (
	"context"
	"database/sql"
	"testing"

	"trilha/api/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserStore struct {
	users     map[string]store.User
	passwords map[string]string
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]store.User{}, passwords: map[string]string{}}
}

func (f *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeUserStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserStore) SetUserPassword(ctx context.Context, userID, passwordHash string) error {
	u := f.users[userID]
	u.PasswordHash = passwordHash
	u.PasswordSet = true
	f.users[userID] = u
	return nil
}

func TestSignInInvitedUserRequiresSetup(t *testing.T) {
	fs := newFakeUserStore()
	fs.users["usr_1"] = store.User{ID: "usr_1", Email: "ana@acme.dev", PasswordSet: false}
	svc := NewService(fs)

	resp, err := svc.SignIn(context.Background(), SignInRequest{Email: "ana@acme.dev", Password: "whatever"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if !resp.RequiresSetup {
		t.Fatal("expected RequiresSetup for user without password")
	}
}

func TestSetupPasswordThenSignIn(t *testing.T) {
	fs := newFakeUserStore()
	fs.users["usr_1"] = store.User{ID: "usr_1", Email: "ana@acme.dev", PasswordSet: false}
	svc := NewService(fs)

	if err := svc.SetupPassword(context.Background(), SetupPasswordRequest{UserID: "usr_1", NewPassword: "s3cret-pass"}); err != nil {
		t.Fatalf("SetupPassword: %v", err)
	}

	user := fs.users["usr_1"]
	if !user.PasswordSet {
		t.Fatal("password_set not flipped")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret-pass")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}

	resp, err := svc.SignIn(context.Background(), SignInRequest{Email: "ana@acme.dev", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("SignIn after setup: %v", err)
	}
	if resp.RequiresSetup {
		t.Fatal("setup should be complete")
	}
}

func TestSetupPasswordRejectsSecondAttempt(t *testing.T) {
	fs := newFakeUserStore()
	fs.users["usr_1"] = store.User{ID: "usr_1", Email: "ana@acme.dev", PasswordSet: true, PasswordHash: "x"}
	svc := NewService(fs)

	err := svc.SetupPassword(context.Background(), SetupPasswordRequest{UserID: "usr_1", NewPassword: "s3cret-pass"})
	if err != ErrSetupAlreadyDone {
		t.Fatalf("expected ErrSetupAlreadyDone, got %v", err)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	fs := newFakeUserStore()
	hash, _ := bcrypt.GenerateFromPassword([]byte("right-pass"), bcrypt.DefaultCost)
	fs.users["usr_1"] = store.User{ID: "usr_1", Email: "ana@acme.dev", PasswordSet: true, PasswordHash: string(hash)}
	svc := NewService(fs)

	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "ana@acme.dev", Password: "wrong"}); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "ghost@acme.dev", Password: "x"}); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}
