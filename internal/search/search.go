// Package search provides full-text search over drafts: Meilisearch when
// configured and healthy, PostgreSQL FTS otherwise.
package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Status  string `json:"status"`
}

// Query describes a search request. OwnerID scopes results to the caller's
// drafts.
type Query struct {
	Text    string
	OwnerID string
	Limit   int
	Offset  int
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

// DraftRecord is the data indexed for one draft.
type DraftRecord struct {
	ID      int64  `json:"id"`
	OwnerID string `json:"ownerId"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Status  string `json:"status"`
}
