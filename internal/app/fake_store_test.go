package app

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"trilha/api/internal/store"
)

// fakeStore is an in-memory dataStore for service and handler tests.
type fakeStore struct {
	users          map[string]store.User
	workspaces     map[string]store.Workspace
	wsMembers      map[string]map[string]string
	projects       map[string]store.Project
	prjMembers     map[string]map[string]string
	tasks          map[string]store.Task
	audits         []store.AuditEntry
	timeEntries    []store.TimeEntry
	dueDateChanges []store.DueDateChange
	comments       map[string]store.Comment
	sectors        map[string]store.Tag
	taskTypes      map[string]store.Tag
	posts          map[string]store.FeedPost
	notifications  map[string]store.Notification
	invitations    []store.Invitation
	superUsers     map[string]bool

	failNotifications bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         map[string]store.User{},
		workspaces:    map[string]store.Workspace{},
		wsMembers:     map[string]map[string]string{},
		projects:      map[string]store.Project{},
		prjMembers:    map[string]map[string]string{},
		tasks:         map[string]store.Task{},
		comments:      map[string]store.Comment{},
		sectors:       map[string]store.Tag{},
		taskTypes:     map[string]store.Tag{},
		posts:         map[string]store.FeedPost{},
		notifications: map[string]store.Notification{},
		superUsers:    map[string]bool{},
	}
}

func (f *fakeStore) CreateUser(_ context.Context, u store.User) error {
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) EnsureUserByEmail(ctx context.Context, id, email, name, role string) (store.User, bool, error) {
	if u, err := f.GetUserByEmail(ctx, email); err == nil {
		return u, false, nil
	}
	u := store.User{ID: id, Email: email, Name: name, Role: role, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.users[id] = u
	return u, true, nil
}

func (f *fakeStore) SetUserPassword(_ context.Context, userID, passwordHash string) error {
	u, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	u.PasswordSet = true
	f.users[userID] = u
	return nil
}

func (f *fakeStore) IsSuperUser(_ context.Context, userID string) (bool, error) {
	return f.superUsers[userID], nil
}

func (f *fakeStore) ListUsers(_ context.Context) ([]store.User, error) {
	var out []store.User
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStore) ListUsersSharingWorkspaces(_ context.Context, userID string) ([]store.User, error) {
	visible := map[string]bool{}
	for _, members := range f.wsMembers {
		if _, ok := members[userID]; !ok {
			continue
		}
		for memberID := range members {
			visible[memberID] = true
		}
	}
	var out []store.User
	for id := range visible {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStore) InsertWorkspace(_ context.Context, ws store.Workspace) error {
	ws.CreatedAt = time.Now()
	ws.UpdatedAt = ws.CreatedAt
	f.workspaces[ws.ID] = ws
	f.setWorkspaceRole(ws.ID, ws.CreatedBy, "manager")
	return nil
}

func (f *fakeStore) setWorkspaceRole(workspaceID, userID, role string) {
	if f.wsMembers[workspaceID] == nil {
		f.wsMembers[workspaceID] = map[string]string{}
	}
	f.wsMembers[workspaceID][userID] = role
}

func (f *fakeStore) GetWorkspace(_ context.Context, id string) (store.Workspace, error) {
	ws, ok := f.workspaces[id]
	if !ok {
		return store.Workspace{}, sql.ErrNoRows
	}
	return ws, nil
}

func (f *fakeStore) ListWorkspacesForUser(_ context.Context, userID string) ([]store.Workspace, error) {
	var out []store.Workspace
	for id, ws := range f.workspaces {
		if ws.CreatedBy == userID || f.wsMembers[id][userID] != "" {
			out = append(out, ws)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListAllWorkspaces(_ context.Context) ([]store.Workspace, error) {
	var out []store.Workspace
	for _, ws := range f.workspaces {
		out = append(out, ws)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateWorkspace(_ context.Context, id, name, description string) (store.Workspace, error) {
	ws, ok := f.workspaces[id]
	if !ok {
		return store.Workspace{}, sql.ErrNoRows
	}
	ws.Name = name
	ws.Description = description
	ws.UpdatedAt = time.Now()
	f.workspaces[id] = ws
	return ws, nil
}

func (f *fakeStore) DeleteWorkspace(_ context.Context, id string) error {
	if _, ok := f.workspaces[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.workspaces, id)
	delete(f.wsMembers, id)
	for pid, p := range f.projects {
		if p.WorkspaceID == id {
			for tid, t := range f.tasks {
				if t.ProjectID == pid {
					delete(f.tasks, tid)
				}
			}
			delete(f.projects, pid)
			delete(f.prjMembers, pid)
		}
	}
	for postID, post := range f.posts {
		if post.WorkspaceID == id {
			delete(f.posts, postID)
		}
	}
	return nil
}

func (f *fakeStore) GetWorkspaceRole(_ context.Context, workspaceID, userID string) (string, error) {
	return f.wsMembers[workspaceID][userID], nil
}

func (f *fakeStore) IsWorkspaceMember(_ context.Context, workspaceID, userID string) (bool, error) {
	return f.wsMembers[workspaceID][userID] != "", nil
}

func (f *fakeStore) ListWorkspaceMembers(_ context.Context, workspaceID string) ([]store.WorkspaceMember, error) {
	var out []store.WorkspaceMember
	for userID, role := range f.wsMembers[workspaceID] {
		m := store.WorkspaceMember{WorkspaceID: workspaceID, UserID: userID, Role: role}
		if u, ok := f.users[userID]; ok {
			m.UserName = u.Name
			m.UserEmail = u.Email
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *fakeStore) UpsertWorkspaceMember(_ context.Context, workspaceID, userID, role string) error {
	f.setWorkspaceRole(workspaceID, userID, role)
	return nil
}

func (f *fakeStore) RemoveWorkspaceMember(_ context.Context, workspaceID, userID string) error {
	if f.wsMembers[workspaceID][userID] == "" {
		return sql.ErrNoRows
	}
	delete(f.wsMembers[workspaceID], userID)
	return nil
}

func (f *fakeStore) InsertProject(_ context.Context, p store.Project) error {
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	f.projects[p.ID] = p
	return nil
}

func (f *fakeStore) GetProject(_ context.Context, id string) (store.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return store.Project{}, sql.ErrNoRows
	}
	return p, nil
}

func (f *fakeStore) ListProjectsByWorkspace(_ context.Context, workspaceID string) ([]store.Project, error) {
	var out []store.Project
	for _, p := range f.projects {
		if p.WorkspaceID == workspaceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateProject(_ context.Context, id, name, summary, status string) (store.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return store.Project{}, sql.ErrNoRows
	}
	p.Name = name
	p.Summary = summary
	p.Status = status
	p.UpdatedAt = time.Now()
	f.projects[id] = p
	return p, nil
}

func (f *fakeStore) DeleteProject(_ context.Context, id string) error {
	if _, ok := f.projects[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.projects, id)
	delete(f.prjMembers, id)
	for tid, t := range f.tasks {
		if t.ProjectID == id {
			delete(f.tasks, tid)
		}
	}
	return nil
}

func (f *fakeStore) GetProjectRole(_ context.Context, projectID, userID string) (string, error) {
	return f.prjMembers[projectID][userID], nil
}

func (f *fakeStore) ListProjectMembers(_ context.Context, projectID string) ([]store.ProjectMember, error) {
	var out []store.ProjectMember
	for userID, role := range f.prjMembers[projectID] {
		m := store.ProjectMember{ProjectID: projectID, UserID: userID, Role: role}
		if u, ok := f.users[userID]; ok {
			m.UserName = u.Name
			m.UserEmail = u.Email
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *fakeStore) UpsertProjectMember(_ context.Context, projectID, userID, role string) error {
	if f.prjMembers[projectID] == nil {
		f.prjMembers[projectID] = map[string]string{}
	}
	f.prjMembers[projectID][userID] = role
	return nil
}

func (f *fakeStore) RemoveProjectMember(_ context.Context, projectID, userID string) error {
	if f.prjMembers[projectID][userID] == "" {
		return sql.ErrNoRows
	}
	delete(f.prjMembers[projectID], userID)
	return nil
}

func (f *fakeStore) InsertTask(_ context.Context, t store.Task) error {
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeStore) GetTask(_ context.Context, id string) (store.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return store.Task{}, sql.ErrNoRows
	}
	return t, nil
}

func (f *fakeStore) ListTasksByProject(_ context.Context, projectID string) ([]store.Task, error) {
	var out []store.Task
	for _, t := range f.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (f *fakeStore) MaxDisplayOrder(_ context.Context, projectID, status string) (int, error) {
	max := 0
	for _, t := range f.tasks {
		if t.ProjectID == projectID && t.Status == status && t.DisplayOrder > max {
			max = t.DisplayOrder
		}
	}
	return max, nil
}

func (f *fakeStore) UpdateTaskWithAudit(_ context.Context, t store.Task, entries []store.AuditEntry) error {
	existing, ok := f.tasks[t.ID]
	if !ok {
		return sql.ErrNoRows
	}
	t.ActualMinutes = existing.ActualMinutes
	t.DueDateOriginal = existing.DueDateOriginal
	t.DueDateCurrent = existing.DueDateCurrent
	t.UpdatedAt = time.Now()
	f.tasks[t.ID] = t
	for _, e := range entries {
		e.CreatedAt = time.Now()
		f.audits = append(f.audits, e)
	}
	return nil
}

func (f *fakeStore) DeleteTask(_ context.Context, id string) error {
	if _, ok := f.tasks[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeStore) ListAuditEntries(_ context.Context, taskID string) ([]store.AuditEntry, error) {
	var out []store.AuditEntry
	for _, e := range f.audits {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertTimeEntry(_ context.Context, e store.TimeEntry) (int, error) {
	t, ok := f.tasks[e.TaskID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	e.CreatedAt = time.Now()
	f.timeEntries = append(f.timeEntries, e)
	t.ActualMinutes += e.DurationMinutes
	if t.ActualMinutes < 0 {
		t.ActualMinutes = 0
	}
	f.tasks[e.TaskID] = t
	return t.ActualMinutes, nil
}

func (f *fakeStore) ListTimeEntries(_ context.Context, taskID string) ([]store.TimeEntry, error) {
	var out []store.TimeEntry
	for _, e := range f.timeEntries {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertDueDateChange(_ context.Context, c store.DueDateChange) error {
	t, ok := f.tasks[c.TaskID]
	if !ok {
		return sql.ErrNoRows
	}
	c.CreatedAt = time.Now()
	f.dueDateChanges = append(f.dueDateChanges, c)
	newDate := c.NewDate
	t.DueDateCurrent = &newDate
	f.tasks[c.TaskID] = t
	return nil
}

func (f *fakeStore) ListDueDateChanges(_ context.Context, taskID string) ([]store.DueDateChange, error) {
	var out []store.DueDateChange
	for _, c := range f.dueDateChanges {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertComment(_ context.Context, c store.Comment) error {
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.comments[c.ID] = c
	return nil
}

func (f *fakeStore) GetComment(_ context.Context, id string) (store.Comment, error) {
	c, ok := f.comments[id]
	if !ok {
		return store.Comment{}, sql.ErrNoRows
	}
	if u, ok := f.users[c.AuthorID]; ok {
		c.AuthorName = u.Name
	}
	return c, nil
}

func (f *fakeStore) ListComments(_ context.Context, taskID string) ([]store.Comment, error) {
	var out []store.Comment
	for _, c := range f.comments {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateComment(_ context.Context, id, content string) (store.Comment, error) {
	c, ok := f.comments[id]
	if !ok {
		return store.Comment{}, sql.ErrNoRows
	}
	c.Content = content
	c.UpdatedAt = time.Now()
	f.comments[id] = c
	return c, nil
}

func (f *fakeStore) DeleteComment(_ context.Context, id string) error {
	if _, ok := f.comments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.comments, id)
	return nil
}

func (f *fakeStore) insertTag(tags map[string]store.Tag, t store.Tag) error {
	for _, existing := range tags {
		if existing.WorkspaceID == t.WorkspaceID && existing.Name == t.Name {
			return store.ErrDuplicate
		}
	}
	t.CreatedAt = time.Now()
	tags[t.ID] = t
	return nil
}

func (f *fakeStore) listTags(tags map[string]store.Tag, workspaceID string) []store.Tag {
	var out []store.Tag
	for _, t := range tags {
		if t.WorkspaceID == workspaceID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (f *fakeStore) InsertSector(_ context.Context, t store.Tag) error {
	return f.insertTag(f.sectors, t)
}

func (f *fakeStore) ListSectors(_ context.Context, workspaceID string) ([]store.Tag, error) {
	return f.listTags(f.sectors, workspaceID), nil
}

func (f *fakeStore) UpdateSector(_ context.Context, t store.Tag) (store.Tag, error) {
	return f.updateTag(f.sectors, t)
}

func (f *fakeStore) DeleteSector(_ context.Context, id string) error {
	return f.deleteTag(f.sectors, id)
}

func (f *fakeStore) InsertTaskType(_ context.Context, t store.Tag) error {
	return f.insertTag(f.taskTypes, t)
}

func (f *fakeStore) ListTaskTypes(_ context.Context, workspaceID string) ([]store.Tag, error) {
	return f.listTags(f.taskTypes, workspaceID), nil
}

func (f *fakeStore) UpdateTaskType(_ context.Context, t store.Tag) (store.Tag, error) {
	return f.updateTag(f.taskTypes, t)
}

func (f *fakeStore) DeleteTaskType(_ context.Context, id string) error {
	return f.deleteTag(f.taskTypes, id)
}

func (f *fakeStore) updateTag(tags map[string]store.Tag, t store.Tag) (store.Tag, error) {
	existing, ok := tags[t.ID]
	if !ok {
		return store.Tag{}, sql.ErrNoRows
	}
	for _, other := range tags {
		if other.ID != t.ID && other.WorkspaceID == existing.WorkspaceID && other.Name == t.Name {
			return store.Tag{}, store.ErrDuplicate
		}
	}
	existing.Name = t.Name
	existing.Color = t.Color
	tags[t.ID] = existing
	return existing, nil
}

func (f *fakeStore) deleteTag(tags map[string]store.Tag, id string) error {
	if _, ok := tags[id]; !ok {
		return sql.ErrNoRows
	}
	delete(tags, id)
	return nil
}

func (f *fakeStore) GetTagWorkspace(_ context.Context, table, id string) (string, error) {
	tags := f.sectors
	if table == store.TableTaskTypes {
		tags = f.taskTypes
	}
	t, ok := tags[id]
	if !ok {
		return "", sql.ErrNoRows
	}
	return t.WorkspaceID, nil
}

func (f *fakeStore) InsertFeedPost(_ context.Context, p store.FeedPost) error {
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	f.posts[p.ID] = p
	return nil
}

func (f *fakeStore) GetFeedPost(_ context.Context, id string) (store.FeedPost, error) {
	p, ok := f.posts[id]
	if !ok {
		return store.FeedPost{}, sql.ErrNoRows
	}
	if u, ok := f.users[p.AuthorID]; ok {
		p.AuthorName = u.Name
	}
	return p, nil
}

func (f *fakeStore) ListFeedPosts(_ context.Context, workspaceID string, limit, offset int) ([]store.FeedPost, error) {
	var out []store.FeedPost
	for _, p := range f.posts {
		if p.WorkspaceID == workspaceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) UpdateFeedPost(_ context.Context, id, content string, taskIDs, mentioned []string) (store.FeedPost, error) {
	p, ok := f.posts[id]
	if !ok {
		return store.FeedPost{}, sql.ErrNoRows
	}
	p.Content = content
	p.TaskIDs = taskIDs
	p.MentionedUserIDs = mentioned
	p.UpdatedAt = time.Now()
	f.posts[id] = p
	return p, nil
}

func (f *fakeStore) DeleteFeedPost(_ context.Context, id string) error {
	if _, ok := f.posts[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.posts, id)
	return nil
}

func (f *fakeStore) InsertNotification(_ context.Context, n store.Notification) error {
	if f.failNotifications {
		return sql.ErrConnDone
	}
	n.CreatedAt = time.Now()
	f.notifications[n.ID] = n
	return nil
}

func (f *fakeStore) ListNotifications(_ context.Context, recipientID string, unreadOnly bool) ([]store.Notification, error) {
	var out []store.Notification
	for _, n := range f.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetNotification(_ context.Context, id string) (store.Notification, error) {
	n, ok := f.notifications[id]
	if !ok {
		return store.Notification{}, sql.ErrNoRows
	}
	return n, nil
}

func (f *fakeStore) MarkNotificationRead(_ context.Context, id string) error {
	n, ok := f.notifications[id]
	if !ok {
		return sql.ErrNoRows
	}
	n.Read = true
	f.notifications[id] = n
	return nil
}

func (f *fakeStore) MarkAllNotificationsRead(_ context.Context, recipientID string) (int, error) {
	count := 0
	for id, n := range f.notifications {
		if n.RecipientID == recipientID && !n.Read {
			n.Read = true
			f.notifications[id] = n
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) InsertInvitation(_ context.Context, inv store.Invitation) error {
	inv.CreatedAt = time.Now()
	f.invitations = append(f.invitations, inv)
	return nil
}

func (f *fakeStore) ListWorkspaceAuditWindow(_ context.Context, workspaceID string, from, to time.Time) ([]store.SummaryAuditEntry, error) {
	var out []store.SummaryAuditEntry
	for _, e := range f.audits {
		t, ok := f.tasks[e.TaskID]
		if !ok {
			continue
		}
		p, ok := f.projects[t.ProjectID]
		if !ok || p.WorkspaceID != workspaceID {
			continue
		}
		if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
			continue
		}
		entry := store.SummaryAuditEntry{AuditEntry: e, TaskName: t.Name}
		if u, ok := f.users[e.ChangedBy]; ok {
			entry.ActorName = u.Name
		}
		out = append(out, entry)
	}
	return out, nil
}

func (f *fakeStore) ListWorkspaceTimeWindow(_ context.Context, workspaceID string, from, to time.Time) ([]store.SummaryTimeEntry, error) {
	var out []store.SummaryTimeEntry
	for _, e := range f.timeEntries {
		t, ok := f.tasks[e.TaskID]
		if !ok {
			continue
		}
		p, ok := f.projects[t.ProjectID]
		if !ok || p.WorkspaceID != workspaceID {
			continue
		}
		if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
			continue
		}
		entry := store.SummaryTimeEntry{TimeEntry: e, TaskName: t.Name}
		if u, ok := f.users[e.CreatedBy]; ok {
			entry.ActorName = u.Name
		}
		out = append(out, entry)
	}
	return out, nil
}

func (f *fakeStore) ListWorkspaceDueDateWindow(_ context.Context, workspaceID string, from, to time.Time) ([]store.SummaryDueDateChange, error) {
	var out []store.SummaryDueDateChange
	for _, c := range f.dueDateChanges {
		t, ok := f.tasks[c.TaskID]
		if !ok {
			continue
		}
		p, ok := f.projects[t.ProjectID]
		if !ok || p.WorkspaceID != workspaceID {
			continue
		}
		if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
			continue
		}
		entry := store.SummaryDueDateChange{DueDateChange: c, TaskName: t.Name}
		if u, ok := f.users[c.CreatedBy]; ok {
			entry.ActorName = u.Name
		}
		out = append(out, entry)
	}
	return out, nil
}
