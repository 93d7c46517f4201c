// Package search provides full-text search over research notes, backed
// by Meilisearch with a PostgreSQL FTS fallback.
package search

// Result is a single search hit returned to the caller.
type Result struct {
	NoteID     string `json:"noteId"`
	StoryID    string `json:"storyId"`
	StoryTitle string `json:"storyTitle"`
	Topic      string `json:"topic"`
	Snippet    string `json:"snippet"`
}

// Query describes a search request. OwnerID scopes results to the
// caller's own stories.
type Query struct {
	OwnerID string
	Text    string
	StoryID string // empty = all of the owner's stories
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

// NoteRecord is the data we index for a research note.
type NoteRecord struct {
	ID         string   `json:"id"`
	OwnerID    string   `json:"ownerId"`
	StoryID    string   `json:"storyId"`
	StoryTitle string   `json:"storyTitle"`
	Topic      string   `json:"topic"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
}
