package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across tasks and feed_posts using
// plainto_tsquery and ts_rank, with ts_headline for snippets. Results are
// restricted to the caller's allowed workspaces.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" || len(q.WorkspaceIDs) == 0 {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('portuguese', $1)"
	args := []any{q.Text}
	argN := 2

	inClause := func(column string) string {
		placeholders := make([]string, 0, len(q.WorkspaceIDs))
		for _, id := range q.WorkspaceIDs {
			placeholders = append(placeholders, fmt.Sprintf("$%d", argN))
			args = append(args, id)
			argN++
		}
		return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", "))
	}

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultTask {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'task'::text AS type, t.id, t.name AS title,
				ts_headline('portuguese', coalesce(t.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				t.project_id, p.workspace_id, t.status,
				ts_rank(t.fts, %s) AS rank
			FROM tasks t
			JOIN projects p ON p.id = t.project_id
			WHERE t.fts @@ %s AND %s`, tsQuery, tsQuery, tsQuery, inClause("p.workspace_id")))
	}

	if q.FilterType == "" || q.FilterType == ResultPost {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'post'::text AS type, fp.id, u.name AS title,
				ts_headline('portuguese', coalesce(fp.content, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS project_id, fp.workspace_id, ''::text AS status,
				ts_rank(fp.fts, %s) AS rank
			FROM feed_posts fp
			JOIN users u ON u.id = fp.author_id
			WHERE fp.fts @@ %s AND %s`, tsQuery, tsQuery, tsQuery, inClause("fp.workspace_id")))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, project_id, workspace_id, status
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.ProjectID, &r.WorkspaceID, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]TaskRecord, []PostRecord, error) {
	taskRows, err := p.db.QueryContext(ctx, `
		SELECT t.id, t.name, coalesce(t.description, ''), t.status, t.project_id, p.workspace_id
		FROM tasks t
		JOIN projects p ON p.id = t.project_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load tasks for reindex: %w", err)
	}
	defer taskRows.Close()

	var tasks []TaskRecord
	for taskRows.Next() {
		var t TaskRecord
		if err := taskRows.Scan(&t.ID, &t.Name, &t.Description, &t.Status, &t.ProjectID, &t.WorkspaceID); err != nil {
			return nil, nil, fmt.Errorf("scan task for reindex: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := taskRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate tasks for reindex: %w", err)
	}

	postRows, err := p.db.QueryContext(ctx, `
		SELECT fp.id, fp.content, u.name, fp.workspace_id
		FROM feed_posts fp
		JOIN users u ON u.id = fp.author_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load posts for reindex: %w", err)
	}
	defer postRows.Close()

	var posts []PostRecord
	for postRows.Next() {
		var p PostRecord
		if err := postRows.Scan(&p.ID, &p.Content, &p.Author, &p.WorkspaceID); err != nil {
			return nil, nil, fmt.Errorf("scan post for reindex: %w", err)
		}
		posts = append(posts, p)
	}
	return tasks, posts, postRows.Err()
}
