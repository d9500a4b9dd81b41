package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"
)

func (s *HTTPServer) handleCreateTask(w http.ResponseWriter, r *http.Request, session Session, projectID string) {
	var body struct {
		Name             string   `json:"name"`
		Description      string   `json:"description"`
		Sector           string   `json:"sector"`
		Type             string   `json:"type"`
		Executors        []string `json:"executors"`
		Validators       []string `json:"validators"`
		Informed         []string `json:"informed"`
		StartDate        *string  `json:"startDate"`
		DueDate          *string  `json:"dueDate"`
		EstimatedMinutes int      `json:"estimatedMinutes"`
		Priority         string   `json:"priority"`
		Status           string   `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	startDate, err := parseOptionalTime(body.StartDate)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid startDate", nil)
		return
	}
	dueDate, err := parseOptionalTime(body.DueDate)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid dueDate", nil)
		return
	}

	task, err := s.service.CreateTask(r.Context(), session, projectID, CreateTaskInput{
		Name:             body.Name,
		Description:      body.Description,
		Sector:           body.Sector,
		Type:             body.Type,
		Executors:        body.Executors,
		Validators:       body.Validators,
		Informed:         body.Informed,
		StartDate:        startDate,
		DueDate:          dueDate,
		EstimatedMinutes: body.EstimatedMinutes,
		Priority:         body.Priority,
		Status:           body.Status,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskDTO(task))
}

func (s *HTTPServer) routeTasks(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch len(rest) {
	case 1:
		taskID := rest[0]
		switch r.Method {
		case http.MethodGet:
			task, err := s.service.GetTask(r.Context(), session, taskID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toTaskDTO(task))
			return
		case http.MethodPut:
			s.handleUpdateTask(w, r, session, taskID)
			return
		case http.MethodDelete:
			if err := s.service.DeleteTask(r.Context(), session, taskID); err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	case 2:
		taskID := rest[0]
		switch rest[1] {
		case "history":
			if r.Method == http.MethodGet {
				entries, err := s.service.ListTaskHistory(r.Context(), session, taskID)
				if err != nil {
					s.fail(w, err)
					return
				}
				out := make([]auditEntryDTO, 0, len(entries))
				for _, e := range entries {
					out = append(out, toAuditEntryDTO(e))
				}
				writeJSON(w, http.StatusOK, map[string]any{"history": out})
				return
			}
		case "time-entries":
			s.handleTimeEntries(w, r, session, taskID)
			return
		case "due-date-changes":
			s.handleDueDateChanges(w, r, session, taskID)
			return
		case "comments":
			s.handleTaskComments(w, r, session, taskID)
			return
		}
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// handleUpdateTask decodes the partial update. Nullable fields use raw
// JSON so an explicit null clears while an absent key leaves the value
// alone.
func (s *HTTPServer) handleUpdateTask(w http.ResponseWriter, r *http.Request, session Session, taskID string) {
	var body struct {
		Name             *string         `json:"name"`
		Description      *string         `json:"description"`
		Sector           *string         `json:"sector"`
		Type             *string         `json:"type"`
		Executors        []string        `json:"executors"`
		Validators       []string        `json:"validators"`
		Informed         []string        `json:"informed"`
		StartDate        json.RawMessage `json:"startDate"`
		EstimatedMinutes *int            `json:"estimatedMinutes"`
		Priority         *string         `json:"priority"`
		Status           *string         `json:"status"`
		DisplayOrder     *int            `json:"displayOrder"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	input := TaskUpdateInput{
		Name:             body.Name,
		Description:      body.Description,
		Sector:           body.Sector,
		Type:             body.Type,
		Executors:        body.Executors,
		Validators:       body.Validators,
		Informed:         body.Informed,
		EstimatedMinutes: body.EstimatedMinutes,
		Priority:         body.Priority,
		Status:           body.Status,
		DisplayOrder:     body.DisplayOrder,
	}

	if len(body.StartDate) > 0 {
		if bytes.Equal(bytes.TrimSpace(body.StartDate), []byte("null")) {
			input.ClearStartDate = true
		} else {
			var raw string
			if err := json.Unmarshal(body.StartDate, &raw); err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid startDate", nil)
				return
			}
			parsed, err := parseOptionalTime(&raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid startDate", nil)
				return
			}
			input.StartDate = parsed
		}
	}

	task, err := s.service.ApplyTaskUpdate(r.Context(), session, taskID, input)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(task))
}

func (s *HTTPServer) handleTimeEntries(w http.ResponseWriter, r *http.Request, session Session, taskID string) {
	switch r.Method {
	case http.MethodGet:
		entries, err := s.service.ListTimeEntries(r.Context(), session, taskID)
		if err != nil {
			s.fail(w, err)
			return
		}
		out := make([]timeEntryDTO, 0, len(entries))
		for _, e := range entries {
			out = append(out, toTimeEntryDTO(e))
		}
		writeJSON(w, http.StatusOK, map[string]any{"timeEntries": out})
	case http.MethodPost:
		var body struct {
			StartedAt       *string `json:"startedAt"`
			EndedAt         *string `json:"endedAt"`
			DurationMinutes int     `json:"durationMinutes"`
			Source          string  `json:"source"`
			Note            string  `json:"note"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		startedAt, err := parseOptionalTime(body.StartedAt)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid startedAt", nil)
			return
		}
		endedAt, err := parseOptionalTime(body.EndedAt)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid endedAt", nil)
			return
		}

		entry, actualMinutes, err := s.service.RecordTimeEntry(r.Context(), session, taskID, TimeEntryInput{
			StartedAt:       startedAt,
			EndedAt:         endedAt,
			DurationMinutes: body.DurationMinutes,
			Source:          body.Source,
			Note:            body.Note,
		})
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"timeEntry":     toTimeEntryDTO(entry),
			"actualMinutes": actualMinutes,
		})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleDueDateChanges(w http.ResponseWriter, r *http.Request, session Session, taskID string) {
	switch r.Method {
	case http.MethodGet:
		changes, err := s.service.ListDueDateChanges(r.Context(), session, taskID)
		if err != nil {
			s.fail(w, err)
			return
		}
		out := make([]dueDateChangeDTO, 0, len(changes))
		for _, c := range changes {
			out = append(out, toDueDateChangeDTO(c))
		}
		writeJSON(w, http.StatusOK, map[string]any{"dueDateChanges": out})
	case http.MethodPost:
		var body struct {
			NewDate string `json:"newDate"`
			Reason  string `json:"reason"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		newDate, err := parseOptionalTime(&body.NewDate)
		if err != nil || newDate == nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "newDate is required", nil)
			return
		}

		change, err := s.service.RecordDueDateChange(r.Context(), session, taskID, *newDate, body.Reason)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toDueDateChangeDTO(change))
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleTaskComments(w http.ResponseWriter, r *http.Request, session Session, taskID string) {
	switch r.Method {
	case http.MethodGet:
		comments, err := s.service.ListComments(r.Context(), session, taskID)
		if err != nil {
			s.fail(w, err)
			return
		}
		out := make([]commentDTO, 0, len(comments))
		for _, c := range comments {
			out = append(out, toCommentDTO(c))
		}
		writeJSON(w, http.StatusOK, map[string]any{"comments": out})
	case http.MethodPost:
		var body struct {
			Content string `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		comment, err := s.service.CreateComment(r.Context(), session, taskID, body.Content)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toCommentDTO(comment))
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeComments(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	commentID := rest[0]

	switch r.Method {
	case http.MethodPut:
		var body struct {
			Content string `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		comment, err := s.service.UpdateComment(r.Context(), session, commentID, body.Content)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toCommentDTO(comment))
	case http.MethodDelete:
		if err := s.service.DeleteComment(r.Context(), session, commentID); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// parseOptionalTime accepts RFC 3339 timestamps and plain dates.
func parseOptionalTime(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, *raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
