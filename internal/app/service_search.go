package app

import (
	"context"

	"trilha/api/internal/search"
)

// Search runs a workspace-scoped query. The allowlist is the caller's
// workspaces, so results never leak across tenant boundaries regardless
// of which backend serves the query.
func (s *Service) Search(ctx context.Context, session Session, text string, filterType search.ResultType, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}

	workspaces, err := s.ListWorkspaces(ctx, session)
	if err != nil {
		return search.Response{}, err
	}
	if len(workspaces) == 0 {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}

	allowed := make([]string, 0, len(workspaces))
	for _, ws := range workspaces {
		allowed = append(allowed, ws.ID)
	}

	return s.search.Search(search.Query{
		Text:         text,
		FilterType:   filterType,
		WorkspaceIDs: allowed,
		Limit:        limit,
		Offset:       offset,
	}), nil
}
