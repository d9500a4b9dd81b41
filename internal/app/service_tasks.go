package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"trilha/api/internal/rbac"
	"trilha/api/internal/search"
	"trilha/api/internal/store"
	"trilha/api/internal/util"
)

// Audit entries carry the product's display labels so history renders
// without a client-side mapping.
var fieldLabels = map[string]string{
	"name":             "Nome da Tarefa",
	"description":      "Descrição",
	"sector":           "Setor",
	"type":             "Tipo de Tarefa",
	"executors":        "Executores",
	"validators":       "Validadores",
	"informed":         "Informados",
	"startDate":        "Data de Início",
	"estimatedMinutes": "Tempo Estimado",
	"priority":         "Prioridade",
	"status":           "Status da Tarefa",
	"displayOrder":     "Ordem de Exibição",
}

type CreateTaskInput struct {
	Name             string
	Description      string
	Sector           string
	Type             string
	Executors        []string
	Validators       []string
	Informed         []string
	StartDate        *time.Time
	DueDate          *time.Time
	EstimatedMinutes int
	Priority         string
	Status           string
}

// TaskUpdateInput models a partial update. Nil pointer fields were not
// provided; Clear flags distinguish explicit nulls for nullable fields.
type TaskUpdateInput struct {
	Name             *string
	Description      *string
	Sector           *string
	Type             *string
	Executors        []string
	Validators       []string
	Informed         []string
	StartDate        *time.Time
	ClearStartDate   bool
	EstimatedMinutes *int
	Priority         *string
	Status           *string
	DisplayOrder     *int
}

func (s *Service) CreateTask(ctx context.Context, session Session, projectID string, input CreateTaskInput) (store.Task, error) {
	workspaceID, err := s.requireProjectAction(ctx, session, projectID, rbac.ActionWrite)
	if err != nil {
		return store.Task{}, err
	}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return store.Task{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	status := input.Status
	if status == "" {
		status = store.StatusBacklog
	}
	if !store.ValidTaskStatus(status) {
		return store.Task{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status", nil)
	}

	// New tasks land at the end of their lane.
	maxOrder, err := s.store.MaxDisplayOrder(ctx, projectID, status)
	if err != nil {
		return store.Task{}, err
	}

	task := store.Task{
		ID:               util.NewID("tsk"),
		ProjectID:        projectID,
		Name:             input.Name,
		Description:      input.Description,
		Sector:           input.Sector,
		Type:             input.Type,
		Executors:        nonNilList(input.Executors),
		Validators:       nonNilList(input.Validators),
		Informed:         nonNilList(input.Informed),
		StartDate:        input.StartDate,
		DueDateOriginal:  input.DueDate,
		DueDateCurrent:   input.DueDate,
		EstimatedMinutes: input.EstimatedMinutes,
		Priority:         input.Priority,
		Status:           status,
		DisplayOrder:     maxOrder + 1,
		CreatedBy:        session.UserID,
	}
	if err := s.store.InsertTask(ctx, task); err != nil {
		return store.Task{}, err
	}

	created, err := s.store.GetTask(ctx, task.ID)
	if err != nil {
		return store.Task{}, err
	}
	s.indexTask(created, workspaceID)
	return created, nil
}

func (s *Service) ListTasks(ctx context.Context, session Session, projectID string) ([]store.Task, error) {
	if _, err := s.requireProjectAction(ctx, session, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListTasksByProject(ctx, projectID)
}

func (s *Service) GetTask(ctx context.Context, session Session, taskID string) (store.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return store.Task{}, hideNotFound(err)
	}
	if _, err := s.requireProjectAction(ctx, session, task.ProjectID, rbac.ActionRead); err != nil {
		return store.Task{}, err
	}
	return task, nil
}

// ApplyTaskUpdate writes a partial update and one audit entry per field
// that actually changed, in a single transaction. Unchanged fields leave
// no trace. Last write wins on concurrent updates.
func (s *Service) ApplyTaskUpdate(ctx context.Context, session Session, taskID string, input TaskUpdateInput) (store.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return store.Task{}, hideNotFound(err)
	}
	workspaceID, err := s.requireProjectAction(ctx, session, task.ProjectID, rbac.ActionWrite)
	if err != nil {
		return store.Task{}, err
	}

	if input.Status != nil && !store.ValidTaskStatus(*input.Status) {
		return store.Task{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status", nil)
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return store.Task{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name cannot be empty", nil)
	}

	updated := task
	var entries []store.AuditEntry

	record := func(field string, oldVal, newVal any) {
		entries = append(entries, store.AuditEntry{
			ID:        util.NewID("aud"),
			TaskID:    task.ID,
			Field:     fieldLabels[field],
			OldValue:  serializeAuditValue(oldVal),
			NewValue:  serializeAuditValue(newVal),
			ChangedBy: session.UserID,
		})
	}

	if input.Name != nil && *input.Name != task.Name {
		record("name", task.Name, *input.Name)
		updated.Name = *input.Name
	}
	if input.Description != nil && *input.Description != task.Description {
		record("description", task.Description, *input.Description)
		updated.Description = *input.Description
	}
	if input.Sector != nil && *input.Sector != task.Sector {
		record("sector", task.Sector, *input.Sector)
		updated.Sector = *input.Sector
	}
	if input.Type != nil && *input.Type != task.Type {
		record("type", task.Type, *input.Type)
		updated.Type = *input.Type
	}
	if input.Executors != nil && !sameList(input.Executors, task.Executors) {
		record("executors", task.Executors, input.Executors)
		updated.Executors = input.Executors
	}
	if input.Validators != nil && !sameList(input.Validators, task.Validators) {
		record("validators", task.Validators, input.Validators)
		updated.Validators = input.Validators
	}
	if input.Informed != nil && !sameList(input.Informed, task.Informed) {
		record("informed", task.Informed, input.Informed)
		updated.Informed = input.Informed
	}
	if input.ClearStartDate {
		if task.StartDate != nil {
			record("startDate", task.StartDate, nil)
			updated.StartDate = nil
		}
	} else if input.StartDate != nil && !sameTime(input.StartDate, task.StartDate) {
		record("startDate", task.StartDate, input.StartDate)
		updated.StartDate = input.StartDate
	}
	if input.EstimatedMinutes != nil && *input.EstimatedMinutes != task.EstimatedMinutes {
		record("estimatedMinutes", task.EstimatedMinutes, *input.EstimatedMinutes)
		updated.EstimatedMinutes = *input.EstimatedMinutes
	}
	if input.Priority != nil && *input.Priority != task.Priority {
		record("priority", task.Priority, *input.Priority)
		updated.Priority = *input.Priority
	}
	if input.Status != nil && *input.Status != task.Status {
		record("status", task.Status, *input.Status)
		updated.Status = *input.Status
		// A lane move without an explicit position appends to the end of
		// the target lane.
		if input.DisplayOrder == nil {
			maxOrder, err := s.store.MaxDisplayOrder(ctx, task.ProjectID, updated.Status)
			if err != nil {
				return store.Task{}, err
			}
			updated.DisplayOrder = maxOrder + 1
		}
	}
	if input.DisplayOrder != nil && *input.DisplayOrder != task.DisplayOrder {
		record("displayOrder", task.DisplayOrder, *input.DisplayOrder)
		updated.DisplayOrder = *input.DisplayOrder
	}

	if len(entries) == 0 {
		return task, nil
	}

	if err := s.store.UpdateTaskWithAudit(ctx, updated, entries); err != nil {
		return store.Task{}, err
	}

	fresh, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return store.Task{}, err
	}
	s.indexTask(fresh, workspaceID)
	return fresh, nil
}

func (s *Service) DeleteTask(ctx context.Context, session Session, taskID string) error {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return hideNotFound(err)
	}
	if _, err := s.requireProjectAction(ctx, session, task.ProjectID, rbac.ActionWrite); err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteTask(taskID)
	}
	return nil
}

func (s *Service) ListTaskHistory(ctx context.Context, session Session, taskID string) ([]store.AuditEntry, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, hideNotFound(err)
	}
	if _, err := s.requireProjectAction(ctx, session, task.ProjectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListAuditEntries(ctx, taskID)
}

type TimeEntryInput struct {
	StartedAt       *time.Time
	EndedAt         *time.Time
	DurationMinutes int
	Source          string
	Note            string
}

// RecordTimeEntry appends a work log row and bumps the task's actual
// minutes atomically. Negative durations are corrections; the total never
// drops below zero.
func (s *Service) RecordTimeEntry(ctx context.Context, session Session, taskID string, input TimeEntryInput) (store.TimeEntry, int, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return store.TimeEntry{}, 0, hideNotFound(err)
	}
	if _, err := s.requireProjectAction(ctx, session, task.ProjectID, rbac.ActionWrite); err != nil {
		return store.TimeEntry{}, 0, err
	}

	if input.DurationMinutes == 0 {
		return store.TimeEntry{}, 0, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "durationMinutes cannot be zero", nil)
	}
	source := input.Source
	if source == "" {
		source = "manual"
	}
	if source != "manual" && source != "timer" {
		return store.TimeEntry{}, 0, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid source", nil)
	}

	entry := store.TimeEntry{
		ID:              util.NewID("tme"),
		TaskID:          taskID,
		StartedAt:       input.StartedAt,
		EndedAt:         input.EndedAt,
		DurationMinutes: input.DurationMinutes,
		Source:          source,
		Note:            input.Note,
		CreatedBy:       session.UserID,
	}
	actual, err := s.store.InsertTimeEntry(ctx, entry)
	if err != nil {
		return store.TimeEntry{}, 0, err
	}
	return entry, actual, nil
}

func (s *Service) ListTimeEntries(ctx context.Context, session Session, taskID string) ([]store.TimeEntry, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, hideNotFound(err)
	}
	if _, err := s.requireProjectAction(ctx, session, task.ProjectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListTimeEntries(ctx, taskID)
}

// RecordDueDateChange reschedules a task. The recorded previous date is
// the current due date when one exists, otherwise the original.
func (s *Service) RecordDueDateChange(ctx context.Context, session Session, taskID string, newDate time.Time, reason string) (store.DueDateChange, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return store.DueDateChange{}, hideNotFound(err)
	}
	if _, err := s.requireProjectAction(ctx, session, task.ProjectID, rbac.ActionWrite); err != nil {
		return store.DueDateChange{}, err
	}

	previous := task.DueDateCurrent
	if previous == nil {
		previous = task.DueDateOriginal
	}

	change := store.DueDateChange{
		ID:           util.NewID("ddc"),
		TaskID:       taskID,
		PreviousDate: previous,
		NewDate:      newDate,
		Reason:       reason,
		CreatedBy:    session.UserID,
	}
	if err := s.store.InsertDueDateChange(ctx, change); err != nil {
		return store.DueDateChange{}, err
	}
	return change, nil
}

func (s *Service) ListDueDateChanges(ctx context.Context, session Session, taskID string) ([]store.DueDateChange, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, hideNotFound(err)
	}
	if _, err := s.requireProjectAction(ctx, session, task.ProjectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListDueDateChanges(ctx, taskID)
}

func (s *Service) CreateComment(ctx context.Context, session Session, taskID, content string) (store.Comment, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return store.Comment{}, hideNotFound(err)
	}
	if _, err := s.requireProjectAction(ctx, session, task.ProjectID, rbac.ActionWrite); err != nil {
		return store.Comment{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return store.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}

	comment := store.Comment{
		ID:       util.NewID("cmt"),
		TaskID:   taskID,
		Content:  content,
		AuthorID: session.UserID,
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return store.Comment{}, err
	}
	return s.store.GetComment(ctx, comment.ID)
}

func (s *Service) ListComments(ctx context.Context, session Session, taskID string) ([]store.Comment, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, hideNotFound(err)
	}
	if _, err := s.requireProjectAction(ctx, session, task.ProjectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, taskID)
}

// UpdateComment is restricted to the author or a super user.
func (s *Service) UpdateComment(ctx context.Context, session Session, commentID, content string) (store.Comment, error) {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return store.Comment{}, hideNotFound(err)
	}
	if err := requireCommentOwnership(session, comment); err != nil {
		return store.Comment{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return store.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}
	return s.store.UpdateComment(ctx, commentID, content)
}

func (s *Service) DeleteComment(ctx context.Context, session Session, commentID string) error {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return hideNotFound(err)
	}
	if err := requireCommentOwnership(session, comment); err != nil {
		return err
	}
	return s.store.DeleteComment(ctx, commentID)
}

// Comments belong to their author. Not even a manager may touch someone
// else's words; only a super user can.
func requireCommentOwnership(session Session, comment store.Comment) error {
	if comment.AuthorID == session.UserID || session.SuperUser {
		return nil
	}
	return errForbidden()
}

func (s *Service) indexTask(task store.Task, workspaceID string) {
	if s.search == nil {
		return
	}
	s.search.IndexTask(search.TaskRecord{
		ID:          task.ID,
		Name:        task.Name,
		Description: task.Description,
		Status:      task.Status,
		ProjectID:   task.ProjectID,
		WorkspaceID: workspaceID,
	})
}

// serializeAuditValue flattens a field value for the audit log: nil stays
// nil, strings are stored as-is, everything else as canonical JSON.
func serializeAuditValue(value any) *string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return &v
	case *time.Time:
		if v == nil {
			return nil
		}
		raw, _ := json.Marshal(v)
		out := string(raw)
		return &out
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		out := string(raw)
		return &out
	}
}

func sameList(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func nonNilList(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
