package app

import (
	"context"
	"testing"
	"time"

	"trilha/api/internal/authpw"
	"trilha/api/internal/config"
	"trilha/api/internal/search"
	"trilha/api/internal/store"
)

type fakeSessions struct {
	tokens map[string]string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{tokens: map[string]string{}}
}

func (f *fakeSessions) SaveRefreshSession(_ context.Context, tokenHash, userID string, _ time.Time) error {
	f.tokens[tokenHash] = userID
	return nil
}

func (f *fakeSessions) LookupRefreshSession(_ context.Context, tokenHash string) (string, error) {
	userID, ok := f.tokens[tokenHash]
	if !ok {
		return "", context.Canceled
	}
	return userID, nil
}

func (f *fakeSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	delete(f.tokens, tokenHash)
	return nil
}

type fakeSearch struct {
	indexedTasks []search.TaskRecord
	indexedPosts []search.PostRecord
	deletedTasks []string
	deletedPosts []string
}

func (f *fakeSearch) Search(q search.Query) search.Response {
	return search.Response{Results: []search.Result{}, Query: q.Text}
}
func (f *fakeSearch) IndexTask(t search.TaskRecord) { f.indexedTasks = append(f.indexedTasks, t) }
func (f *fakeSearch) IndexPost(p search.PostRecord) { f.indexedPosts = append(f.indexedPosts, p) }
func (f *fakeSearch) DeleteTask(id string)          { f.deletedTasks = append(f.deletedTasks, id) }
func (f *fakeSearch) DeletePost(id string)          { f.deletedPosts = append(f.deletedPosts, id) }

type fakeEmail struct {
	configured bool
	invites    []string
	summaries  []string
	fail       bool
}

func (f *fakeEmail) IsConfigured() bool { return f.configured }

func (f *fakeEmail) SendInviteEmail(to, _, _, _, _ string) error {
	if f.fail {
		return context.Canceled
	}
	f.invites = append(f.invites, to)
	return nil
}

func (f *fakeEmail) SendDailySummaryEmail(to []string, _, _ string, _ []string) error {
	if f.fail {
		return context.Canceled
	}
	f.summaries = append(f.summaries, to...)
	return nil
}

type testEnv struct {
	service  *Service
	store    *fakeStore
	sessions *fakeSessions
	search   *fakeSearch
	email    *fakeEmail
}

func newTestEnv() *testEnv {
	fs := newFakeStore()
	sessions := newFakeSessions()
	searchFake := &fakeSearch{}
	emailFake := &fakeEmail{configured: true}
	cfg := config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
		AppBaseURL: "http://localhost:5173",
	}
	service := NewService(fs, sessions, nil, searchFake, emailFake, authpw.NewService(fs), cfg)
	return &testEnv{service: service, store: fs, sessions: sessions, search: searchFake, email: emailFake}
}

func (e *testEnv) addUser(id, name string) Session {
	e.store.users[id] = store.User{ID: id, Name: name, Email: id + "@acme.dev", PasswordSet: true}
	return Session{UserID: id, UserName: name, PasswordSet: true}
}

// addManager creates a user holding the global manager role. Only these
// accounts may create workspaces and projects or manage what they created.
func (e *testEnv) addManager(id, name string) Session {
	e.store.users[id] = store.User{ID: id, Name: name, Email: id + "@acme.dev", Role: "manager", PasswordSet: true}
	return Session{UserID: id, UserName: name, Role: "manager", PasswordSet: true}
}

func (e *testEnv) addSuperUser(id, name string) Session {
	session := e.addUser(id, name)
	e.store.superUsers[id] = true
	session.SuperUser = true
	return session
}

func (e *testEnv) addWorkspace(id, createdBy string) {
	e.store.workspaces[id] = store.Workspace{ID: id, Name: "WS " + id, CreatedBy: createdBy}
	e.store.setWorkspaceRole(id, createdBy, "manager")
}

func (e *testEnv) addMember(workspaceID, userID, role string) {
	e.store.setWorkspaceRole(workspaceID, userID, role)
}

func (e *testEnv) addProject(id, workspaceID, createdBy string) {
	e.store.projects[id] = store.Project{ID: id, WorkspaceID: workspaceID, Name: "P " + id, CreatedBy: createdBy}
}

func (e *testEnv) addTask(id, projectID string) store.Task {
	t := store.Task{
		ID: id, ProjectID: projectID, Name: "Task " + id,
		Executors: []string{}, Validators: []string{}, Informed: []string{},
		Status: store.StatusPendente, DisplayOrder: 1, CreatedBy: "u_creator",
	}
	e.store.tasks[id] = t
	return t
}

func assertForbidden(t *testing.T, err error) {
	t.Helper()
	domainErr, ok := err.(*DomainError)
	if !ok {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %s", domainErr.Code)
	}
}

func TestCreateWorkspaceGrantsManagerMembership(t *testing.T) {
	env := newTestEnv()
	alice := env.addManager("u_alice", "Alice")

	ws, err := env.service.CreateWorkspace(context.Background(), alice, "Growth", "")
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	role, _ := env.store.GetWorkspaceRole(context.Background(), ws.ID, "u_alice")
	if role != "manager" {
		t.Fatalf("creator role = %q, want manager", role)
	}
}

func TestCreateWorkspaceRequiresGlobalManager(t *testing.T) {
	env := newTestEnv()
	bob := env.addUser("u_bob", "Bob")

	_, err := env.service.CreateWorkspace(context.Background(), bob, "Skunkworks", "")
	assertForbidden(t, err)

	super := env.addSuperUser("u_root", "Root")
	if _, err := env.service.CreateWorkspace(context.Background(), super, "Ops", ""); err != nil {
		t.Fatalf("super user create: %v", err)
	}
}

func TestWorkspaceDeleteRequiresOwnership(t *testing.T) {
	env := newTestEnv()
	env.addManager("u_owner", "Owner")
	executor := env.addUser("u_exec", "Exec")
	viewer := env.addUser("u_view", "View")
	outsider := env.addUser("u_out", "Out")
	env.addWorkspace("ws_1", "u_owner")
	env.addMember("ws_1", "u_exec", "executor")
	env.addMember("ws_1", "u_view", "viewer")

	ctx := context.Background()
	for _, session := range []Session{executor, viewer, outsider} {
		err := env.service.DeleteWorkspace(ctx, session, "ws_1")
		assertForbidden(t, err)
	}
	if _, ok := env.store.workspaces["ws_1"]; !ok {
		t.Fatal("workspace should survive denied deletes")
	}

	super := env.addSuperUser("u_root", "Root")
	if err := env.service.DeleteWorkspace(ctx, super, "ws_1"); err != nil {
		t.Fatalf("super user delete: %v", err)
	}
}

func TestManagerMemberCannotDeleteForeignWorkspace(t *testing.T) {
	env := newTestEnv()
	env.addManager("u_owner", "Owner")
	rival := env.addManager("u_rival", "Rival")
	env.addWorkspace("ws_1", "u_owner")
	env.addMember("ws_1", "u_rival", "manager")

	// A manager-role membership grants day-to-day manage rights, never
	// the right to destroy what someone else created.
	err := env.service.DeleteWorkspace(context.Background(), rival, "ws_1")
	assertForbidden(t, err)
	if _, ok := env.store.workspaces["ws_1"]; !ok {
		t.Fatal("workspace must survive")
	}
}

func TestCreatorWithoutManagerRoleCannotDelete(t *testing.T) {
	env := newTestEnv()
	// The workspace exists but its creator only holds the viewer role
	// globally, e.g. after a demotion. Creation alone is not enough.
	demoted := env.addUser("u_demoted", "Demoted")
	env.addWorkspace("ws_1", "u_demoted")

	err := env.service.DeleteWorkspace(context.Background(), demoted, "ws_1")
	assertForbidden(t, err)
}

func TestMembershipListRestrictedToOwner(t *testing.T) {
	env := newTestEnv()
	env.addManager("u_owner", "Owner")
	exec := env.addUser("u_exec", "Exec")
	env.addWorkspace("ws_1", "u_owner")
	env.addMember("ws_1", "u_exec", "executor")

	_, err := env.service.ListWorkspaceMembers(context.Background(), exec, "ws_1")
	assertForbidden(t, err)
}

func TestWorkspaceDeleteCascades(t *testing.T) {
	env := newTestEnv()
	owner := env.addManager("u_owner", "Owner")
	env.addWorkspace("ws_1", "u_owner")
	env.addProject("prj_1", "ws_1", "u_owner")
	env.addTask("tsk_1", "prj_1")

	if err := env.service.DeleteWorkspace(context.Background(), owner, "ws_1"); err != nil {
		t.Fatalf("delete workspace: %v", err)
	}
	if len(env.store.projects) != 0 || len(env.store.tasks) != 0 {
		t.Fatal("projects and tasks should cascade")
	}
}

func TestProjectRoleTakesStrongestScope(t *testing.T) {
	env := newTestEnv()
	env.addUser("u_owner", "Owner")
	exec := env.addUser("u_exec", "Exec")
	env.addWorkspace("ws_1", "u_owner")
	env.addMember("ws_1", "u_exec", "executor")
	env.addProject("prj_1", "ws_1", "u_owner")
	env.addTask("tsk_1", "prj_1")

	ctx := context.Background()

	// Workspace executor can write tasks without an explicit project role.
	name := "Renamed"
	if _, err := env.service.ApplyTaskUpdate(ctx, exec, "tsk_1", TaskUpdateInput{Name: &name}); err != nil {
		t.Fatalf("workspace executor update: %v", err)
	}

	// A weaker explicit project role never demotes the workspace grant;
	// the effective role is the strongest of the overlapping scopes.
	env.store.prjMembers["prj_1"] = map[string]string{"u_exec": "viewer"}
	name2 := "Renamed again"
	if _, err := env.service.ApplyTaskUpdate(ctx, exec, "tsk_1", TaskUpdateInput{Name: &name2}); err != nil {
		t.Fatalf("workspace executor with project viewer row: %v", err)
	}

	// And a stronger project role lifts a weak workspace membership.
	lifted := env.addUser("u_lifted", "Lifted")
	env.addMember("ws_1", "u_lifted", "viewer")
	env.store.prjMembers["prj_1"]["u_lifted"] = "executor"
	name3 := "Lifted rename"
	if _, err := env.service.ApplyTaskUpdate(ctx, lifted, "tsk_1", TaskUpdateInput{Name: &name3}); err != nil {
		t.Fatalf("project executor over workspace viewer: %v", err)
	}
}

func TestNonMemberCannotReadProject(t *testing.T) {
	env := newTestEnv()
	env.addUser("u_owner", "Owner")
	outsider := env.addUser("u_out", "Out")
	env.addWorkspace("ws_1", "u_owner")
	env.addProject("prj_1", "ws_1", "u_owner")

	_, err := env.service.GetProject(context.Background(), outsider, "prj_1")
	assertForbidden(t, err)
}

func TestApplyTaskUpdateAuditsChangedFieldsOnly(t *testing.T) {
	env := newTestEnv()
	owner := env.addUser("u_owner", "Owner")
	env.addWorkspace("ws_1", "u_owner")
	env.addProject("prj_1", "ws_1", "u_owner")
	task := env.addTask("tsk_1", "prj_1")

	ctx := context.Background()
	newStatus := store.StatusEmExecucao
	sameName := task.Name
	updated, err := env.service.ApplyTaskUpdate(ctx, owner, "tsk_1", TaskUpdateInput{
		Name:   &sameName,
		Status: &newStatus,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != store.StatusEmExecucao {
		t.Fatalf("status = %s", updated.Status)
	}

	entries, _ := env.store.ListAuditEntries(ctx, "tsk_1")
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1 (unchanged fields must not audit)", len(entries))
	}
	entry := entries[0]
	if entry.Field != "Status da Tarefa" {
		t.Fatalf("field label = %q", entry.Field)
	}
	if entry.OldValue == nil || *entry.OldValue != store.StatusPendente {
		t.Fatalf("old value = %v", entry.OldValue)
	}
	if entry.NewValue == nil || *entry.NewValue != store.StatusEmExecucao {
		t.Fatalf("new value = %v", entry.NewValue)
	}
	if entry.ChangedBy != "u_owner" {
		t.Fatalf("changed by = %s", entry.ChangedBy)
	}
}

func TestApplyTaskUpdateNoChangesLeavesNoTrace(t *testing.T) {
	env := newTestEnv()
	owner := env.addUser("u_owner", "Owner")
	env.addWorkspace("ws_1", "u_owner")
	env.addProject("prj_1", "ws_1", "u_owner")
	task := env.addTask("tsk_1", "prj_1")

	ctx := context.Background()
	sameName := task.Name
	sameStatus := task.Status
	if _, err := env.service.ApplyTaskUpdate(ctx, owner, "tsk_1", TaskUpdateInput{
		Name:   &sameName,
		Status: &sameStatus,
	}); err != nil {
		t.Fatalf("no-op update: %v", err)
	}
	if len(env.store.audits) != 0 {
		t.Fatalf("no-op update wrote %d audit entries", len(env.store.audits))
	}
}

func TestAuditSerialization(t *testing.T) {
	env := newTestEnv()
	owner := env.addUser("u_owner", "Owner")
	env.addWorkspace("ws_1", "u_owner")
	env.addProject("prj_1", "ws_1", "u_owner")
	env.addTask("tsk_1", "prj_1")

	ctx := context.Background()
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if _, err := env.service.ApplyTaskUpdate(ctx, owner, "tsk_1", TaskUpdateInput{
		Executors: []string{"u_a", "u_b"},
		StartDate: &start,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	entries, _ := env.store.ListAuditEntries(ctx, "tsk_1")
	byField := map[string]store.AuditEntry{}
	for _, e := range entries {
		byField[e.Field] = e
	}

	executors := byField["Executores"]
	if executors.OldValue == nil || *executors.OldValue != "[]" {
		t.Fatalf("executors old = %v, want JSON []", executors.OldValue)
	}
	if executors.NewValue == nil || *executors.NewValue != `["u_a","u_b"]` {
		t.Fatalf("executors new = %v", executors.NewValue)
	}

	startEntry := byField["Data de Início"]
	if startEntry.OldValue != nil {
		t.Fatalf("start old = %v, want nil for null", startEntry.OldValue)
	}
	if startEntry.NewValue == nil || *startEntry.NewValue != `"2026-03-10T00:00:00Z"` {
		t.Fatalf("start new = %v", startEntry.NewValue)
	}
}

func TestStatusChangeAppendsToTargetLane(t *testing.T) {
	env := newTestEnv()
	owner := env.addUser("u_owner", "Owner")
	env.addWorkspace("ws_1", "u_owner")
	env.addProject("prj_1", "ws_1", "u_owner")
	env.addTask("tsk_1", "prj_1")

	occupied := store.Task{
		ID: "tsk_2", ProjectID: "prj_1", Name: "Busy",
		Executors: []string{}, Validators: []string{}, Informed: []string{},
		Status: store.StatusEmExecucao, DisplayOrder: 7, CreatedBy: "u_owner",
	}
	env.store.tasks["tsk_2"] = occupied

	newStatus := store.StatusEmExecucao
	updated, err := env.service.ApplyTaskUpdate(context.Background(), owner, "tsk_1", TaskUpdateInput{Status: &newStatus})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.DisplayOrder != 8 {
		t.Fatalf("display order = %d, want 8 (end of target lane)", updated.DisplayOrder)
	}
}

func TestRecordTimeEntryFloorsAtZero(t *testing.T) {
	env := newTestEnv()
	owner := env.addUser("u_owner", "Owner")
	env.addWorkspace("ws_1", "u_owner")
	env.addProject("prj_1", "ws_1", "u_owner")
	env.addTask("tsk_1", "prj_1")

	ctx := context.Background()
	_, actual, err := env.service.RecordTimeEntry(ctx, owner, "tsk_1", TimeEntryInput{DurationMinutes: 30})
	if err != nil {
		t.Fatalf("add time: %v", err)
	}
	if actual != 30 {
		t.Fatalf("actual = %d, want 30", actual)
	}

	_, actual, err = env.service.RecordTimeEntry(ctx, owner, "tsk_1", TimeEntryInput{DurationMinutes: -45})
	if err != nil {
		t.Fatalf("negative adjustment: %v", err)
	}
	if actual != 0 {
		t.Fatalf("actual = %d, want 0 (floored)", actual)
	}

	entries, _ := env.store.ListTimeEntries(ctx, "tsk_1")
	if len(entries) != 2 {
		t.Fatalf("time entries = %d, want both rows kept", len(entries))
	}
}

func TestRecordTimeEntryRejectsZeroDuration(t *testing.T) {
	env := newTestEnv()
	owner := env.addUser("u_owner", "Owner")
	env.addWorkspace("ws_1", "u_owner")
	env.addProject("prj_1", "ws_1", "u_owner")
	env.addTask("tsk_1", "prj_1")

	_, _, err := env.service.RecordTimeEntry(context.Background(), owner, "tsk_1", TimeEntryInput{DurationMinutes: 0})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestDueDateChangeCapturesPreviousDate(t *testing.T) {
	env := newTestEnv()
	owner := env.addUser("u_owner", "Owner")
	env.addWorkspace("ws_1", "u_owner")
	env.addProject("prj_1", "ws_1", "u_owner")

	original := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	task := store.Task{
		ID: "tsk_1", ProjectID: "prj_1", Name: "Due",
		Executors: []string{}, Validators: []string{}, Informed: []string{},
		Status: store.StatusPendente, DueDateOriginal: &original, CreatedBy: "u_owner",
	}
	env.store.tasks["tsk_1"] = task

	ctx := context.Background()

	// No current date yet: previous falls back to the original.
	first := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	change, err := env.service.RecordDueDateChange(ctx, owner, "tsk_1", first, "cliente pediu")
	if err != nil {
		t.Fatalf("first change: %v", err)
	}
	if change.PreviousDate == nil || !change.PreviousDate.Equal(original) {
		t.Fatalf("previous = %v, want original", change.PreviousDate)
	}

	// Second change: previous is the now-current date.
	second := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	change, err = env.service.RecordDueDateChange(ctx, owner, "tsk_1", second, "")
	if err != nil {
		t.Fatalf("second change: %v", err)
	}
	if change.PreviousDate == nil || !change.PreviousDate.Equal(first) {
		t.Fatalf("previous = %v, want first new date", change.PreviousDate)
	}

	// The original never moves.
	got, _ := env.store.GetTask(ctx, "tsk_1")
	if got.DueDateOriginal == nil || !got.DueDateOriginal.Equal(original) {
		t.Fatalf("original moved to %v", got.DueDateOriginal)
	}
	if got.DueDateCurrent == nil || !got.DueDateCurrent.Equal(second) {
		t.Fatalf("current = %v, want second", got.DueDateCurrent)
	}
}

func TestFeedPostFanOut(t *testing.T) {
	env := newTestEnv()
	env.addUser("u_owner", "Owner")
	author := env.addUser("u_author", "Author")
	env.addUser("u_member", "Member")
	env.addUser("u_stranger", "Stranger")
	env.addWorkspace("ws_1", "u_owner")
	env.addMember("ws_1", "u_author", "executor")
	env.addMember("ws_1", "u_member", "viewer")

	result, err := env.service.CreateFeedPost(context.Background(), author, "ws_1", FeedPostInput{
		Content:          "status do dia",
		MentionedUserIDs: []string{"u_member", "u_stranger", "u_author", "u_member"},
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	// Only the non-author member gets a notification: the stranger is
	// dropped silently, the author excluded, the duplicate collapsed.
	if len(result.Notified) != 1 || result.Notified[0] != "u_member" {
		t.Fatalf("notified = %v, want [u_member]", result.Notified)
	}
	if result.Warning != "" {
		t.Fatalf("unexpected warning %q", result.Warning)
	}
	if len(env.store.notifications) != 1 {
		t.Fatalf("notifications = %d", len(env.store.notifications))
	}
}

func TestFeedPostFanOutFailureIsSoft(t *testing.T) {
	env := newTestEnv()
	env.addUser("u_owner", "Owner")
	author := env.addUser("u_author", "Author")
	env.addUser("u_member", "Member")
	env.addWorkspace("ws_1", "u_owner")
	env.addMember("ws_1", "u_author", "executor")
	env.addMember("ws_1", "u_member", "viewer")
	env.store.failNotifications = true

	result, err := env.service.CreateFeedPost(context.Background(), author, "ws_1", FeedPostInput{
		Content:          "ainda publica",
		MentionedUserIDs: []string{"u_member"},
	})
	if err != nil {
		t.Fatalf("post should succeed despite fan-out failure: %v", err)
	}
	if result.Warning == "" {
		t.Fatal("expected soft warning")
	}
	if len(env.store.posts) != 1 {
		t.Fatal("post should be persisted")
	}
}

func TestFeedPostViewerForbidden(t *testing.T) {
	env := newTestEnv()
	env.addUser("u_owner", "Owner")
	viewer := env.addUser("u_view", "View")
	env.addWorkspace("ws_1", "u_owner")
	env.addMember("ws_1", "u_view", "viewer")

	_, err := env.service.CreateFeedPost(context.Background(), viewer, "ws_1", FeedPostInput{Content: "oi"})
	assertForbidden(t, err)
}

func TestInviteProvisionsUserWithoutPassword(t *testing.T) {
	env := newTestEnv()
	owner := env.addManager("u_owner", "Owner")
	env.addWorkspace("ws_1", "u_owner")

	ctx := context.Background()
	result, err := env.service.Invite(ctx, owner, InviteInput{
		Email:        "nova@acme.dev",
		Name:         "Nova",
		Role:         "executor",
		WorkspaceIDs: []string{"ws_1"},
	})
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if !result.Created {
		t.Fatal("expected a fresh account")
	}
	if result.User.PasswordSet {
		t.Fatal("invited account must require password setup")
	}
	if result.User.Role != "executor" {
		t.Fatalf("fresh account global role = %q, want the invited role", result.User.Role)
	}
	role, _ := env.store.GetWorkspaceRole(ctx, "ws_1", result.User.ID)
	if role != "executor" {
		t.Fatalf("role = %q", role)
	}
	if len(env.email.invites) != 1 || env.email.invites[0] != "nova@acme.dev" {
		t.Fatalf("invite emails = %v", env.email.invites)
	}

	// Re-inviting the same email is idempotent and can re-role.
	result, err = env.service.Invite(ctx, owner, InviteInput{
		Email:        "nova@acme.dev",
		Role:         "manager",
		WorkspaceIDs: []string{"ws_1"},
	})
	if err != nil {
		t.Fatalf("re-invite: %v", err)
	}
	if result.Created {
		t.Fatal("re-invite must not create a second account")
	}
	role, _ = env.store.GetWorkspaceRole(ctx, "ws_1", result.User.ID)
	if role != "manager" {
		t.Fatalf("role after re-invite = %q", role)
	}
}

func TestInviteRequiresOwnershipOnEveryScope(t *testing.T) {
	env := newTestEnv()
	env.addUser("u_owner", "Owner")
	exec := env.addUser("u_exec", "Exec")
	env.addWorkspace("ws_1", "u_owner")
	env.addMember("ws_1", "u_exec", "executor")

	_, err := env.service.Invite(context.Background(), exec, InviteInput{
		Email:        "x@acme.dev",
		Role:         "viewer",
		WorkspaceIDs: []string{"ws_1"},
	})
	assertForbidden(t, err)
	if len(env.store.invitations) != 0 {
		t.Fatal("denied invite must write nothing")
	}
}

func TestInviteEmailFailureIsSoft(t *testing.T) {
	env := newTestEnv()
	owner := env.addManager("u_owner", "Owner")
	env.addWorkspace("ws_1", "u_owner")
	env.email.fail = true

	result, err := env.service.Invite(context.Background(), owner, InviteInput{
		Email:        "nova@acme.dev",
		Role:         "viewer",
		WorkspaceIDs: []string{"ws_1"},
	})
	if err != nil {
		t.Fatalf("invite should survive email failure: %v", err)
	}
	if result.EmailSent {
		t.Fatal("emailSent should be false")
	}
}

func TestMarkNotificationReadOnlyOwn(t *testing.T) {
	env := newTestEnv()
	member := env.addUser("u_member", "Member")
	other := env.addUser("u_other", "Other")
	env.store.notifications["ntf_1"] = store.Notification{ID: "ntf_1", RecipientID: "u_member"}

	err := env.service.MarkNotificationRead(context.Background(), other, "ntf_1")
	assertForbidden(t, err)

	if err := env.service.MarkNotificationRead(context.Background(), member, "ntf_1"); err != nil {
		t.Fatalf("own notification: %v", err)
	}
	if !env.store.notifications["ntf_1"].Read {
		t.Fatal("notification should be read")
	}

	// A super user may clear anyone's.
	super := env.addSuperUser("u_root", "Root")
	env.store.notifications["ntf_2"] = store.Notification{ID: "ntf_2", RecipientID: "u_member"}
	if err := env.service.MarkNotificationRead(context.Background(), super, "ntf_2"); err != nil {
		t.Fatalf("super user mark read: %v", err)
	}
}

func TestSessionRefreshRotatesToken(t *testing.T) {
	env := newTestEnv()
	env.addUser("u_alice", "Alice")

	ctx := context.Background()
	session, err := env.service.CreateSession(ctx, "u_alice")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	refreshed, err := env.service.Refresh(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == session.RefreshToken {
		t.Fatal("refresh token must rotate")
	}

	// The old token is single use.
	if _, err := env.service.Refresh(ctx, session.RefreshToken); err == nil {
		t.Fatal("old refresh token should be revoked")
	}
}

func TestDailySummaryWindow(t *testing.T) {
	env := newTestEnv()
	owner := env.addUser("u_owner", "Owner")
	env.addWorkspace("ws_1", "u_owner")
	env.addProject("prj_1", "ws_1", "u_owner")
	env.addTask("tsk_1", "prj_1")

	today := time.Now().UTC()
	env.store.audits = append(env.store.audits, store.AuditEntry{
		ID: "aud_1", TaskID: "tsk_1", Field: "Status da Tarefa", ChangedBy: "u_owner", CreatedAt: today,
	})
	env.store.timeEntries = append(env.store.timeEntries, store.TimeEntry{
		ID: "tme_1", TaskID: "tsk_1", DurationMinutes: 90, CreatedBy: "u_owner", CreatedAt: today,
	}, store.TimeEntry{
		ID: "tme_old", TaskID: "tsk_1", DurationMinutes: 30, CreatedBy: "u_owner", CreatedAt: today.Add(-48 * time.Hour),
	})

	summary, err := env.service.GetDailySummary(context.Background(), owner, "ws_1", today.Format("2006-01-02"), false)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(summary.AuditEntries) != 1 {
		t.Fatalf("audit entries = %d", len(summary.AuditEntries))
	}
	if len(summary.TimeEntries) != 1 {
		t.Fatalf("time entries = %d (window must exclude other days)", len(summary.TimeEntries))
	}
	if summary.TotalMinutes != 90 {
		t.Fatalf("total minutes = %d", summary.TotalMinutes)
	}
}

func TestTagNamesUniquePerWorkspace(t *testing.T) {
	env := newTestEnv()
	owner := env.addUser("u_owner", "Owner")
	env.addWorkspace("ws_1", "u_owner")
	env.addWorkspace("ws_2", "u_owner")

	ctx := context.Background()
	if _, err := env.service.CreateSector(ctx, owner, "ws_1", "Marketing", "#f00"); err != nil {
		t.Fatalf("create sector: %v", err)
	}
	_, err := env.service.CreateSector(ctx, owner, "ws_1", "Marketing", "#0f0")
	domainErr, ok := err.(*DomainError)
	if !ok || domainErr.Code != "CONFLICT" {
		t.Fatalf("duplicate sector err = %v, want CONFLICT", err)
	}

	// Same name in another workspace is fine.
	if _, err := env.service.CreateSector(ctx, owner, "ws_2", "Marketing", "#00f"); err != nil {
		t.Fatalf("cross-workspace sector: %v", err)
	}
}

func TestDeleteTaskRemovesFromSearchIndex(t *testing.T) {
	env := newTestEnv()
	owner := env.addUser("u_owner", "Owner")
	env.addWorkspace("ws_1", "u_owner")
	env.addProject("prj_1", "ws_1", "u_owner")
	env.addTask("tsk_1", "prj_1")

	if err := env.service.DeleteTask(context.Background(), owner, "tsk_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(env.search.deletedTasks) != 1 || env.search.deletedTasks[0] != "tsk_1" {
		t.Fatalf("search deletions = %v", env.search.deletedTasks)
	}
}

func TestCreateProjectRequiresGlobalManager(t *testing.T) {
	env := newTestEnv()
	env.addManager("u_owner", "Owner")
	exec := env.addUser("u_exec", "Exec")
	env.addWorkspace("ws_1", "u_owner")
	env.addMember("ws_1", "u_exec", "executor")

	_, err := env.service.CreateProject(context.Background(), exec, "ws_1", "Side quest", "")
	assertForbidden(t, err)
}

func TestMissingResourcesDenyLikeForbidden(t *testing.T) {
	env := newTestEnv()
	user := env.addUser("u_alice", "Alice")
	ctx := context.Background()

	// A missing resource answers exactly like a denied one, so probing
	// IDs reveals nothing about what exists.
	_, err := env.service.GetTask(ctx, user, "tsk_ghost")
	assertForbidden(t, err)

	name := "x"
	_, err = env.service.ApplyTaskUpdate(ctx, user, "tsk_ghost", TaskUpdateInput{Name: &name})
	assertForbidden(t, err)

	_, err = env.service.UpdateComment(ctx, user, "cmt_ghost", "x")
	assertForbidden(t, err)

	err = env.service.DeleteFeedPost(ctx, user, "pst_ghost")
	assertForbidden(t, err)

	err = env.service.MarkNotificationRead(ctx, user, "ntf_ghost")
	assertForbidden(t, err)
}

func TestCommentEditRestrictedToAuthor(t *testing.T) {
	env := newTestEnv()
	env.addManager("u_owner", "Owner")
	author := env.addUser("u_author", "Author")
	env.addWorkspace("ws_1", "u_owner")
	env.addMember("ws_1", "u_author", "executor")
	env.addProject("prj_1", "ws_1", "u_owner")
	env.addTask("tsk_1", "prj_1")
	env.store.comments["cmt_1"] = store.Comment{ID: "cmt_1", TaskID: "tsk_1", AuthorID: "u_author", Content: "original"}

	ctx := context.Background()

	// Even a workspace manager cannot rewrite someone else's comment.
	manager := env.addUser("u_mgr", "Mgr")
	env.addMember("ws_1", "u_mgr", "manager")
	_, err := env.service.UpdateComment(ctx, manager, "cmt_1", "rewritten")
	assertForbidden(t, err)
	err = env.service.DeleteComment(ctx, manager, "cmt_1")
	assertForbidden(t, err)

	if _, err := env.service.UpdateComment(ctx, author, "cmt_1", "edited"); err != nil {
		t.Fatalf("author edit: %v", err)
	}

	super := env.addSuperUser("u_root", "Root")
	if err := env.service.DeleteComment(ctx, super, "cmt_1"); err != nil {
		t.Fatalf("super user delete: %v", err)
	}
}

func TestFeedPostEditRestrictedToAuthor(t *testing.T) {
	env := newTestEnv()
	env.addManager("u_owner", "Owner")
	author := env.addUser("u_author", "Author")
	env.addWorkspace("ws_1", "u_owner")
	env.addMember("ws_1", "u_author", "executor")
	env.store.posts["pst_1"] = store.FeedPost{
		ID: "pst_1", WorkspaceID: "ws_1", AuthorID: "u_author", Content: "original",
		TaskIDs: []string{}, MentionedUserIDs: []string{},
	}

	ctx := context.Background()

	manager := env.addUser("u_mgr", "Mgr")
	env.addMember("ws_1", "u_mgr", "manager")
	_, err := env.service.UpdateFeedPost(ctx, manager, "pst_1", FeedPostInput{Content: "hijacked"})
	assertForbidden(t, err)
	err = env.service.DeleteFeedPost(ctx, manager, "pst_1")
	assertForbidden(t, err)

	if _, err := env.service.UpdateFeedPost(ctx, author, "pst_1", FeedPostInput{Content: "edited"}); err != nil {
		t.Fatalf("author edit: %v", err)
	}
	if err := env.service.DeleteFeedPost(ctx, author, "pst_1"); err != nil {
		t.Fatalf("author delete: %v", err)
	}
}

func TestDisplayOrderChangeIsAudited(t *testing.T) {
	env := newTestEnv()
	owner := env.addUser("u_owner", "Owner")
	env.addWorkspace("ws_1", "u_owner")
	env.addProject("prj_1", "ws_1", "u_owner")
	env.addTask("tsk_1", "prj_1")

	ctx := context.Background()
	order := 5
	updated, err := env.service.ApplyTaskUpdate(ctx, owner, "tsk_1", TaskUpdateInput{DisplayOrder: &order})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if updated.DisplayOrder != 5 {
		t.Fatalf("display order = %d", updated.DisplayOrder)
	}

	entries, _ := env.store.ListAuditEntries(ctx, "tsk_1")
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want the reorder recorded", len(entries))
	}
	entry := entries[0]
	if entry.Field != "Ordem de Exibição" {
		t.Fatalf("field label = %q", entry.Field)
	}
	if entry.OldValue == nil || *entry.OldValue != "1" {
		t.Fatalf("old value = %v", entry.OldValue)
	}
	if entry.NewValue == nil || *entry.NewValue != "5" {
		t.Fatalf("new value = %v", entry.NewValue)
	}
}

func TestListUsersScopedToSharedWorkspaces(t *testing.T) {
	env := newTestEnv()
	env.addManager("u_owner", "Owner")
	bob := env.addUser("u_bob", "Bob")
	env.addUser("u_carol", "Carol")
	env.addWorkspace("ws_1", "u_owner")
	env.addMember("ws_1", "u_bob", "executor")
	// Carol shares no workspace with Bob.
	env.addWorkspace("ws_2", "u_owner")
	env.addMember("ws_2", "u_carol", "viewer")

	users, err := env.service.ListUsers(context.Background(), bob)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	seen := map[string]bool{}
	for _, u := range users {
		seen[u.ID] = true
	}
	if !seen["u_bob"] || !seen["u_owner"] {
		t.Fatalf("workspace peers missing: %v", seen)
	}
	if seen["u_carol"] {
		t.Fatal("users outside shared workspaces must stay invisible")
	}

	// Super users keep the full directory.
	super := env.addSuperUser("u_root", "Root")
	users, err = env.service.ListUsers(context.Background(), super)
	if err != nil {
		t.Fatalf("super list users: %v", err)
	}
	if len(users) != 4 {
		t.Fatalf("super sees %d users, want all 4", len(users))
	}
}
