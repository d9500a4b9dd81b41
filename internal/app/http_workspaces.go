package app

import (
	"net/http"
	"strconv"

	"trilha/api/internal/store"
)

func (s *HTTPServer) routeWorkspaces(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch len(rest) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			workspaces, err := s.service.ListWorkspaces(r.Context(), session)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"workspaces": toWorkspaceDTOs(workspaces)})
			return
		case http.MethodPost:
			var body struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			ws, err := s.service.CreateWorkspace(r.Context(), session, body.Name, body.Description)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, toWorkspaceDTO(ws))
			return
		}
	case 1:
		workspaceID := rest[0]
		switch r.Method {
		case http.MethodGet:
			ws, err := s.service.GetWorkspace(r.Context(), session, workspaceID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toWorkspaceDTO(ws))
			return
		case http.MethodPut:
			var body struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			ws, err := s.service.UpdateWorkspace(r.Context(), session, workspaceID, body.Name, body.Description)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toWorkspaceDTO(ws))
			return
		case http.MethodDelete:
			if err := s.service.DeleteWorkspace(r.Context(), session, workspaceID); err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	case 2:
		s.routeWorkspaceSub(w, r, session, rest[0], rest[1])
		return
	case 3:
		if rest[1] == "members" {
			s.handleWorkspaceMember(w, r, session, rest[0], rest[2])
			return
		}
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) routeWorkspaceSub(w http.ResponseWriter, r *http.Request, session Session, workspaceID, sub string) {
	switch sub {
	case "members":
		if r.Method == http.MethodGet {
			members, err := s.service.ListWorkspaceMembers(r.Context(), session, workspaceID)
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
	case "projects":
		switch r.Method {
		case http.MethodGet:
			projects, err := s.service.ListProjects(r.Context(), session, workspaceID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"projects": toProjectDTOs(projects)})
			return
		case http.MethodPost:
			var body struct {
				Name    string `json:"name"`
				Summary string `json:"summary"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			project, err := s.service.CreateProject(r.Context(), session, workspaceID, body.Name, body.Summary)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, toProjectDTO(project))
			return
		}
	case "sectors":
		s.handleWorkspaceTags(w, r, session, workspaceID, store.TableSectors)
		return
	case "task-types":
		s.handleWorkspaceTags(w, r, session, workspaceID, store.TableTaskTypes)
		return
	case "feed":
		s.handleWorkspaceFeed(w, r, session, workspaceID)
		return
	case "presence":
		switch r.Method {
		case http.MethodGet:
			entries, err := s.service.ListPresence(r.Context(), session, workspaceID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"presence": entries})
			return
		case http.MethodPost:
			if err := s.service.TouchPresence(r.Context(), session, workspaceID); err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	case "summary":
		if r.Method == http.MethodGet {
			query := r.URL.Query()
			sendEmail := query.Get("email") == "true"
			summary, err := s.service.GetDailySummary(r.Context(), session, workspaceID, query.Get("date"), sendEmail)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, summary)
			return
		}
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleWorkspaceMember(w http.ResponseWriter, r *http.Request, session Session, workspaceID, userID string) {
	switch r.Method {
	case http.MethodPut:
		var body struct {
			Role string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetWorkspaceMember(r.Context(), session, workspaceID, userID, body.Role); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case http.MethodDelete:
		if err := s.service.RemoveWorkspaceMember(r.Context(), session, workspaceID, userID); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleWorkspaceTags(w http.ResponseWriter, r *http.Request, session Session, workspaceID, table string) {
	switch r.Method {
	case http.MethodGet:
		var tags []store.Tag
		var err error
		if table == store.TableSectors {
			tags, err = s.service.ListSectors(r.Context(), session, workspaceID)
		} else {
			tags, err = s.service.ListTaskTypes(r.Context(), session, workspaceID)
		}
		if err != nil {
			s.fail(w, err)
			return
		}
		out := make([]tagDTO, 0, len(tags))
		for _, t := range tags {
			out = append(out, toTagDTO(t))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": out})
	case http.MethodPost:
		var body struct {
			Name  string `json:"name"`
			Color string `json:"color"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		var tag store.Tag
		var err error
		if table == store.TableSectors {
			tag, err = s.service.CreateSector(r.Context(), session, workspaceID, body.Name, body.Color)
		} else {
			tag, err = s.service.CreateTaskType(r.Context(), session, workspaceID, body.Name, body.Color)
		}
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toTagDTO(tag))
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleWorkspaceFeed(w http.ResponseWriter, r *http.Request, session Session, workspaceID string) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		limit, _ := strconv.Atoi(query.Get("limit"))
		offset, _ := strconv.Atoi(query.Get("offset"))
		posts, err := s.service.ListFeedPosts(r.Context(), session, workspaceID, limit, offset)
		if err != nil {
			s.fail(w, err)
			return
		}
		out := make([]feedPostDTO, 0, len(posts))
		for _, p := range posts {
			out = append(out, toFeedPostDTO(p))
		}
		writeJSON(w, http.StatusOK, map[string]any{"posts": out})
	case http.MethodPost:
		var body struct {
			Content          string   `json:"content"`
			TaskIDs          []string `json:"taskIds"`
			MentionedUserIDs []string `json:"mentionedUserIds"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.CreateFeedPost(r.Context(), session, workspaceID, FeedPostInput{
			Content:          body.Content,
			TaskIDs:          body.TaskIDs,
			MentionedUserIDs: body.MentionedUserIDs,
		})
		if err != nil {
			s.fail(w, err)
			return
		}
		payload := map[string]any{
			"post":     toFeedPostDTO(result.Post),
			"notified": result.Notified,
		}
		if result.Warning != "" {
			payload["warning"] = result.Warning
		}
		writeJSON(w, http.StatusCreated, payload)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeFeed(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	postID := rest[0]

	switch r.Method {
	case http.MethodPut:
		var body struct {
			Content          string   `json:"content"`
			TaskIDs          []string `json:"taskIds"`
			MentionedUserIDs []string `json:"mentionedUserIds"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		post, err := s.service.UpdateFeedPost(r.Context(), session, postID, FeedPostInput{
			Content:          body.Content,
			TaskIDs:          body.TaskIDs,
			MentionedUserIDs: body.MentionedUserIDs,
		})
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toFeedPostDTO(post))
	case http.MethodDelete:
		if err := s.service.DeleteFeedPost(r.Context(), session, postID); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeTags(w http.ResponseWriter, r *http.Request, session Session, rest []string, table string) {
	if len(rest) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	tagID := rest[0]

	switch r.Method {
	case http.MethodPut:
		var body struct {
			Name  string `json:"name"`
			Color string `json:"color"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		var tag store.Tag
		var err error
		if table == store.TableSectors {
			tag, err = s.service.UpdateSector(r.Context(), session, tagID, body.Name, body.Color)
		} else {
			tag, err = s.service.UpdateTaskType(r.Context(), session, tagID, body.Name, body.Color)
		}
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTagDTO(tag))
	case http.MethodDelete:
		var err error
		if table == store.TableSectors {
			err = s.service.DeleteSector(r.Context(), session, tagID)
		} else {
			err = s.service.DeleteTaskType(r.Context(), session, tagID)
		}
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}
