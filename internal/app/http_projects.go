package app

import "net/http"

func (s *HTTPServer) routeProjects(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch len(rest) {
	case 1:
		projectID := rest[0]
		switch r.Method {
		case http.MethodGet:
			project, err := s.service.GetProject(r.Context(), session, projectID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toProjectDTO(project))
			return
		case http.MethodPut:
			var body struct {
				Name    string `json:"name"`
				Summary string `json:"summary"`
				Status  string `json:"status"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			project, err := s.service.UpdateProject(r.Context(), session, projectID, body.Name, body.Summary, body.Status)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toProjectDTO(project))
			return
		case http.MethodDelete:
			if err := s.service.DeleteProject(r.Context(), session, projectID); err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	case 2:
		projectID := rest[0]
		switch rest[1] {
		case "members":
			if r.Method == http.MethodGet {
				members, err := s.service.ListProjectMembers(r.Context(), session, projectID)
				if err != nil {
					s.fail(w, err)
					return
				}
				out := make([]memberDTO, 0, len(members))
				for _, m := range members {
					out = append(out, memberDTO{
						UserID: m.UserID, Name: m.UserName, Email: m.UserEmail,
						Role: m.Role, CreatedAt: m.CreatedAt,
					})
				}
				writeJSON(w, http.StatusOK, map[string]any{"members": out})
				return
			}
		case "tasks":
			switch r.Method {
			case http.MethodGet:
				tasks, err := s.service.ListTasks(r.Context(), session, projectID)
				if err != nil {
					s.fail(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"tasks": toTaskDTOs(tasks)})
				return
			case http.MethodPost:
				s.handleCreateTask(w, r, session, projectID)
				return
			}
		}
	case 3:
		if rest[1] == "members" {
			projectID, userID := rest[0], rest[2]
			switch r.Method {
			case http.MethodPut:
				var body struct {
					Role string `json:"role"`
				}
				if err := decodeBody(r, &body); err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
					return
				}
				if err := s.service.SetProjectMember(r.Context(), session, projectID, userID, body.Role); err != nil {
					s.fail(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"ok": true})
				return
			case http.MethodDelete:
				if err := s.service.RemoveProjectMember(r.Context(), session, projectID, userID); err != nil {
					s.fail(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"ok": true})
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
