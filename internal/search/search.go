package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultTask ResultType = "task"
	ResultPost ResultType = "post"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type        ResultType `json:"type"`
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Snippet     string     `json:"snippet"`
	ProjectID   string     `json:"projectId,omitempty"`
	WorkspaceID string     `json:"workspaceId"`
	Status      string     `json:"status,omitempty"`
}

// Query describes a search request. WorkspaceIDs is the set of workspaces
// the caller is allowed to read; results outside it are never returned.
type Query struct {
	Text         string
	FilterType   ResultType // empty = all types
	WorkspaceIDs []string
	Limit        int
	Offset       int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexTask(t TaskRecord) error
	IndexPost(p PostRecord) error
	DeleteTask(id string) error
	DeletePost(id string) error
}

// TaskRecord is the data we index for a task.
type TaskRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	ProjectID   string `json:"projectId"`
	WorkspaceID string `json:"workspaceId"`
}

// PostRecord is the data we index for a feed post.
type PostRecord struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	Author      string `json:"author"`
	WorkspaceID string `json:"workspaceId"`
}
